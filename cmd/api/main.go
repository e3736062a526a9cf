package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/Somchit-cmd/adminawaylog/internal/config"
	"github.com/Somchit-cmd/adminawaylog/internal/dbmigrate"
	"github.com/Somchit-cmd/adminawaylog/internal/httpserver"
)

func main() {
	cfg := config.Load()

	printStartupBanner(cfg)

	if cfg.RunMigrationsOnStartup {
		sel, err := dbmigrate.SelectDatabaseURL(cfg, true)
		if err != nil {
			log.Fatalf("FATAL startup migrations: %v", err)
		}

		log.Printf("startup migrations: command=up using=%s", sel.Source)
		if err := dbmigrate.Run(context.Background(), "up", sel.URL); err != nil {
			log.Fatalf("FATAL startup migrations failed: %v", err)
		}
		log.Printf("startup migrations: completed")
	}

	validateProductionConfig(cfg)

	server := httpserver.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal(err)
		}
	case <-ctx.Done():
		log.Println("shutdown: signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("WARN shutdown: %v", err)
		}
	}
}

// printStartupBanner logs a one-time summary of the resolved configuration.
// No secrets are ever printed, only "set" / "not set".
func printStartupBanner(cfg *config.Config) {
	log.Println("========== Admin Away Log API ==========")
	log.Printf("  env              = %s", cfg.Env)
	log.Printf("  port             = %d", cfg.Port)

	// ---- Database ----
	log.Println("---- database ----")
	log.Printf("  runtime_url      = %s", describeDBURL(cfg.DatabaseURL, cfg.DatabaseURLPooled))
	log.Printf("  pooled           = %s", config.SetOrNot(cfg.DatabaseURLPooled))
	log.Printf("  direct           = %s", config.SetOrNot(cfg.DatabaseURLDirect))
	log.Printf("  migrations_on_startup = %t", cfg.RunMigrationsOnStartup)
	log.Printf("  record_max_bytes = %d", cfg.Dashboard.RecordMaxBytes)

	// ---- Cache ----
	log.Println("---- cache ----")
	log.Printf("  redis            = %s", config.SetOrNot(cfg.RedisURL))
	log.Printf("  last_known_ttl   = %s", cfg.Dashboard.LastKnownTTL)

	// ---- Auth ----
	log.Println("---- auth ----")
	log.Printf("  auth_mode        = %s", cfg.AuthMode)
	log.Printf("  auth_required    = %t", cfg.AuthRequired)
	log.Printf("  jwt_secret       = %s", secretStatus(cfg.JWTSecret, "change_me"))
	if cfg.AuthMode == config.AuthModeAdmin {
		log.Printf("  admin_email      = %s", nonEmptyOrDash(cfg.AdminEmail))
	}

	// ---- Blob ----
	log.Println("---- blob ----")
	log.Printf("  blob_mode        = %s", cfg.Blob.Mode)
	switch cfg.Blob.Mode {
	case config.BlobModeS3, config.BlobModeAuto:
		log.Printf("  s3: %s", cfg.Blob.S3.DiagnosticsSummary())
		fallthrough
	case config.BlobModeCloudinary:
		log.Printf("  cloudinary_cloud = %s", nonEmptyOrDash(cfg.Blob.Cloudinary.CloudName))
	}

	// ---- Photos / dashboard ----
	log.Println("---- photos ----")
	log.Printf("  max_dimension    = %d", cfg.Photo.MaxDimension)
	log.Printf("  max_output_bytes = %d", cfg.Photo.MaxOutputBytes)
	log.Printf("  max_input_bytes  = %d", cfg.Photo.MaxInputBytes)
	log.Println("---- dashboard ----")
	log.Printf("  timezone         = %s", cfg.Dashboard.TimezoneName)
	log.Printf("  export_cooldown  = %s", cfg.Dashboard.ExportCooldown)
	log.Printf("  search_debounce  = %s", cfg.Dashboard.SearchDebounce)
	log.Printf("  breakdown        = %s", cfg.Dashboard.BreakdownField)

	log.Println("========================================")
}

// validateProductionConfig performs fatal checks that only matter in non-local envs.
func validateProductionConfig(cfg *config.Config) {
	isProd := cfg.IsProduction()

	if cfg.Blob.Mode == config.BlobModeS3 {
		if missing := cfg.Blob.S3.MissingRequired(); len(missing) > 0 {
			log.Fatalf("FATAL blob: BLOB_MODE is 's3' but S3 config is incomplete, missing: %s", strings.Join(missing, ", "))
		}
	}
	if cfg.Blob.Mode == config.BlobModeCloudinary {
		if missing := cfg.Blob.Cloudinary.MissingRequired(); len(missing) > 0 {
			log.Fatalf("FATAL blob: BLOB_MODE is 'cloudinary' but config is incomplete, missing: %s", strings.Join(missing, ", "))
		}
	}

	// В production дашборд только для админа
	if problem := cfg.AuthProblem(); problem != "" {
		log.Fatalf("FATAL auth: %s", problem)
	}

	// DATABASE_URL must be set in production
	if isProd && cfg.DatabaseURL == "" {
		log.Fatalf("FATAL db: no DATABASE_URL configured in %s", cfg.Env)
	}
}

// ---- helpers (no secrets) ----

func nonEmptyOrDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

func secretStatus(v, insecureDefault string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "not set"
	}
	if v == insecureDefault {
		return fmt.Sprintf("set (DEFAULT, insecure '%s')", insecureDefault)
	}
	return "set (custom)"
}

func describeDBURL(runtime, pooled string) string {
	if runtime == "" {
		return "not set (will use in-memory storage)"
	}
	if pooled != "" && runtime == pooled {
		return "set (via DATABASE_URL_POOLED)"
	}
	return "set"
}
