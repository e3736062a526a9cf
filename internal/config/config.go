package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BlobModeLocal      = "local"
	BlobModeS3         = "s3"
	BlobModeCloudinary = "cloudinary"
	BlobModeAuto       = "auto"
)

const (
	AuthModeNone  = "none"
	AuthModeDev   = "dev"
	AuthModeAdmin = "admin"
)

const insecureJWTSecret = "change_me"

type S3Config struct {
	Endpoint          string
	Region            string
	Bucket            string
	AccessKeyID       string
	SecretAccessKey   string
	PublicBaseURL     string
	PresignTTLSeconds int
	PreferPublicURL   bool
}

func (c S3Config) MissingRequired() []string {
	missing := make([]string, 0, 6)
	if strings.TrimSpace(c.Endpoint) == "" {
		missing = append(missing, "S3_ENDPOINT")
	}
	if strings.TrimSpace(c.Region) == "" {
		missing = append(missing, "S3_REGION")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if strings.TrimSpace(c.AccessKeyID) == "" {
		missing = append(missing, "S3_ACCESS_KEY_ID")
	}
	if strings.TrimSpace(c.SecretAccessKey) == "" {
		missing = append(missing, "S3_SECRET_ACCESS_KEY")
	}
	if c.PreferPublicURL && strings.TrimSpace(c.PublicBaseURL) == "" {
		missing = append(missing, "S3_PUBLIC_BASE_URL")
	}
	return missing
}

func (c S3Config) IsConfigured() bool {
	return len(c.MissingRequired()) == 0
}

func (c S3Config) isEmpty() bool {
	return strings.TrimSpace(c.Endpoint) == "" &&
		strings.TrimSpace(c.Region) == "" &&
		strings.TrimSpace(c.Bucket) == "" &&
		strings.TrimSpace(c.AccessKeyID) == "" &&
		strings.TrimSpace(c.SecretAccessKey) == "" &&
		strings.TrimSpace(c.PublicBaseURL) == ""
}

// Diagnostics returns a log level, a stable code and a short message.
func (c S3Config) Diagnostics() (level string, code string, msg string) {
	if c.isEmpty() {
		return "INFO", "s3_not_configured", "not configured (all empty)"
	}

	if missing := c.MissingRequired(); len(missing) > 0 {
		return "WARN", "s3_partial_config", fmt.Sprintf("partial config, missing=%v", missing)
	}

	return "INFO", "s3_ready", "ready"
}

// DiagnosticsSummary returns a detailed summary for logging (no secrets)
func (c S3Config) DiagnosticsSummary() string {
	return fmt.Sprintf("endpoint=%s region=%s bucket=%s public_base_url=%s presign_ttl=%ds prefer_public_url=%t access_key_id=%s secret_access_key=%s",
		nonEmptyOrDash(c.Endpoint),
		nonEmptyOrDash(c.Region),
		nonEmptyOrDash(c.Bucket),
		nonEmptyOrDash(c.PublicBaseURL),
		c.PresignTTLSeconds,
		c.PreferPublicURL,
		SetOrNot(c.AccessKeyID),
		SetOrNot(c.SecretAccessKey),
	)
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

func (c CloudinaryConfig) MissingRequired() []string {
	var missing []string
	if strings.TrimSpace(c.CloudName) == "" {
		missing = append(missing, "CLOUDINARY_CLOUD_NAME")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "CLOUDINARY_API_KEY")
	}
	if strings.TrimSpace(c.APISecret) == "" {
		missing = append(missing, "CLOUDINARY_API_SECRET")
	}
	return missing
}

func (c CloudinaryConfig) IsConfigured() bool {
	return len(c.MissingRequired()) == 0
}

// BlobConfig — куда загружаются фото отчётов
type BlobConfig struct {
	Mode       string // local|s3|cloudinary|auto
	S3         S3Config
	Cloudinary CloudinaryConfig
}

// PhotoConfig — параметры конвейера обработки фото
type PhotoConfig struct {
	MaxDimension   int
	MaxOutputBytes int
	MaxInputBytes  int64
	SessionTTL     time.Duration
}

// DashboardConfig — параметры фильтрации, аналитики и экспорта
type DashboardConfig struct {
	Location         *time.Location
	TimezoneName     string
	ExportCooldown   time.Duration
	SearchDebounce   time.Duration
	BreakdownField   string
	LastKnownTTL     time.Duration
	RecordMaxBytes   int
	GenericErrors    bool // скрывать внутренние сообщения об ошибках
	LiveReadDeadline time.Duration
}

// Config содержит конфигурацию приложения
type Config struct {
	Env  string // local | staging | production
	Port int

	// Database
	DatabaseURL       string // runtime connection (resolved: pooled > url > direct)
	DatabaseURLRaw    string // DATABASE_URL as provided
	DatabaseURLPooled string // DATABASE_URL_POOLED as provided
	DatabaseURLDirect string // for migrations / DDL (may be empty)

	// Redis (last-known reports cache)
	RedisURL string

	// CORS
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	// Rate Limiting
	RateLimitRPS   int
	RateLimitBurst int

	Blob      BlobConfig
	Photo     PhotoConfig
	Dashboard DashboardConfig

	// Authentication & Authorization
	AuthMode          string // none | dev | admin
	AuthRequired      bool
	JWTSecret         string
	JWTIssuer         string
	JWTTTLMinutes     int
	AdminEmail        string
	AdminPasswordHash string // bcrypt

	// Migrations
	RunMigrationsOnStartup bool
}

// IsProduction reports whether secrets and error details must be locked down.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod" || c.Env == "staging"
}

// AuthProblem returns why the auth settings are unsafe for this environment, or "".
// Outside local/dev any mode but admin with AUTH_REQUIRED=1 leaves the dashboard open.
func (c *Config) AuthProblem() string {
	if !c.IsProduction() {
		return ""
	}
	switch {
	case c.AuthMode == AuthModeDev:
		return fmt.Sprintf("AUTH_MODE=dev is not allowed in %s", c.Env)
	case c.AuthMode != AuthModeAdmin:
		return fmt.Sprintf("AUTH_MODE=%s leaves the dashboard open in %s, use admin", c.AuthMode, c.Env)
	case !c.AuthRequired:
		return fmt.Sprintf("AUTH_REQUIRED=1 is required in %s", c.Env)
	case c.JWTSecret == "change_me":
		return fmt.Sprintf("JWT_SECRET must not be 'change_me' in %s", c.Env)
	}
	return ""
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	// APP_ENV (fallback to ENV, default: local)
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("ENV")
	}
	if env == "" {
		env = "local"
	}

	cfg := &Config{
		Env:  env,
		Port: envInt("PORT", 8080),
	}

	// ---------- Database ----------
	// Priority: DATABASE_URL_POOLED > DATABASE_URL > DATABASE_URL_DIRECT
	cfg.DatabaseURLPooled = strings.TrimSpace(os.Getenv("DATABASE_URL_POOLED"))
	cfg.DatabaseURLRaw = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.DatabaseURLDirect = strings.TrimSpace(os.Getenv("DATABASE_URL_DIRECT"))
	cfg.DatabaseURL = firstNonEmpty(cfg.DatabaseURLPooled, cfg.DatabaseURLRaw, cfg.DatabaseURLDirect)
	cfg.RunMigrationsOnStartup = parseBoolEnv("RUN_MIGRATIONS_ON_STARTUP")

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	// ---------- CORS ----------
	cfg.CORSAllowedOrigins = parseCORSOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"), env)
	cfg.CORSAllowCredentials = parseBoolEnv("CORS_ALLOW_CREDENTIALS")

	// ---------- Rate Limiting ----------
	cfg.RateLimitRPS = envInt("RATE_LIMIT_RPS", 0)
	cfg.RateLimitBurst = envInt("RATE_LIMIT_BURST", 0)

	// ---------- Blob ----------
	presignTTL := envInt("S3_PRESIGN_TTL_SECONDS", 900)
	if presignTTL <= 0 {
		presignTTL = 900
	}
	cfg.Blob = BlobConfig{
		Mode: parseBlobMode("BLOB_MODE", BlobModeLocal),
		S3: S3Config{
			Endpoint:          strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			Region:            strings.TrimSpace(os.Getenv("S3_REGION")),
			Bucket:            strings.TrimSpace(os.Getenv("S3_BUCKET")),
			AccessKeyID:       strings.TrimSpace(os.Getenv("S3_ACCESS_KEY_ID")),
			SecretAccessKey:   strings.TrimSpace(os.Getenv("S3_SECRET_ACCESS_KEY")),
			PublicBaseURL:     strings.TrimSpace(os.Getenv("S3_PUBLIC_BASE_URL")),
			PresignTTLSeconds: presignTTL,
			PreferPublicURL:   parseBoolEnv("S3_PREFER_PUBLIC_URL"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: strings.TrimSpace(os.Getenv("CLOUDINARY_CLOUD_NAME")),
			APIKey:    strings.TrimSpace(os.Getenv("CLOUDINARY_API_KEY")),
			APISecret: strings.TrimSpace(os.Getenv("CLOUDINARY_API_SECRET")),
			Folder:    envString("CLOUDINARY_FOLDER", "adminawaylog"),
		},
	}

	// ---------- Photo pipeline ----------
	cfg.Photo = PhotoConfig{
		MaxDimension:   envInt("PHOTO_MAX_DIMENSION", 1200),
		MaxOutputBytes: envInt("PHOTO_MAX_OUTPUT_BYTES", 1048576),
		MaxInputBytes:  int64(envInt("PHOTO_MAX_INPUT_MB", 5)) * 1024 * 1024,
		SessionTTL:     envDuration("PHOTO_SESSION_TTL", 10*time.Minute),
	}
	if cfg.Photo.MaxDimension <= 0 {
		cfg.Photo.MaxDimension = 1200
	}

	// ---------- Dashboard ----------
	tzName := envString("DASHBOARD_TIMEZONE", "Local")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Printf("WARNING: unknown DASHBOARD_TIMEZONE=%q, fallback to Local", tzName)
		tzName, loc = "Local", time.Local
	}
	cfg.Dashboard = DashboardConfig{
		Location:         loc,
		TimezoneName:     tzName,
		ExportCooldown:   envDuration("EXPORT_COOLDOWN", 5*time.Second),
		SearchDebounce:   envDuration("SEARCH_DEBOUNCE", 300*time.Millisecond),
		BreakdownField:   envString("DEFAULT_BREAKDOWN_FIELD", "vehicle"),
		LastKnownTTL:     envDuration("LAST_KNOWN_TTL", 24*time.Hour),
		RecordMaxBytes:   envInt("RECORD_MAX_BYTES", 1048576),
		GenericErrors:    cfg.IsProduction(),
		LiveReadDeadline: envDuration("LIVE_READ_DEADLINE", 2*time.Minute),
	}

	// ---------- Auth ----------
	authMode := strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_MODE")))
	if authMode == "" {
		authMode = AuthModeNone
	}
	if authMode != AuthModeNone && authMode != AuthModeDev && authMode != AuthModeAdmin {
		log.Printf("WARNING: unknown AUTH_MODE=%q, fallback to none", authMode)
		authMode = AuthModeNone
	}
	cfg.AuthMode = authMode
	cfg.AuthRequired = authMode != AuthModeNone && parseBoolEnv("AUTH_REQUIRED")

	cfg.JWTSecret = envString("JWT_SECRET", insecureJWTSecret)
	if cfg.JWTSecret == insecureJWTSecret && env != "local" {
		log.Println("WARNING: JWT_SECRET is set to 'change_me' in non-local environment!")
	}
	cfg.JWTIssuer = envString("JWT_ISSUER", "admin-away-log")
	cfg.JWTTTLMinutes = envInt("JWT_TTL_MINUTES", 720)
	cfg.AdminEmail = strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	cfg.AdminPasswordHash = strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH"))

	if authMode == AuthModeAdmin && (cfg.AdminEmail == "" || cfg.AdminPasswordHash == "") {
		log.Fatal("ADMIN_EMAIL and ADMIN_PASSWORD_HASH are required when AUTH_MODE=admin")
	}

	return cfg
}

// parseCORSOrigins parses CORS_ALLOWED_ORIGINS env var.
// In local mode, defaults to localhost origins if empty.
func parseCORSOrigins(raw, env string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if env == "local" {
			return []string{"http://localhost:5173", "http://localhost:8080"}
		}
		return nil // prod: deny by default
	}

	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

func parseBlobMode(key string, defaultVal string) string {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if mode == "" {
		return defaultVal
	}
	switch mode {
	case BlobModeLocal, BlobModeS3, BlobModeCloudinary, BlobModeAuto:
		return mode
	default:
		log.Printf("WARNING: unknown %s=%q, fallback to %s", key, mode, defaultVal)
		return defaultVal
	}
}

// envInt reads an int env var with a default value.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// envDuration accepts Go durations ("5s", "300ms") or a bare number of milliseconds.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return defaultVal
	}
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}

func envString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func nonEmptyOrDash(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "-"
	}
	return v
}

// SetOrNot masks a secret for logs.
func SetOrNot(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not set"
	}
	return "set"
}
