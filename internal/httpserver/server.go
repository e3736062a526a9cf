package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Somchit-cmd/adminawaylog/internal/aggregate"
	"github.com/Somchit-cmd/adminawaylog/internal/auth"
	"github.com/Somchit-cmd/adminawaylog/internal/blob"
	"github.com/Somchit-cmd/adminawaylog/internal/cache"
	"github.com/Somchit-cmd/adminawaylog/internal/config"
	"github.com/Somchit-cmd/adminawaylog/internal/fieldreports"
	"github.com/Somchit-cmd/adminawaylog/internal/photo"
	"github.com/Somchit-cmd/adminawaylog/internal/storage"
	"github.com/Somchit-cmd/adminawaylog/internal/storage/memory"
	"github.com/Somchit-cmd/adminawaylog/internal/storage/postgres"
	"github.com/Somchit-cmd/adminawaylog/internal/throttle"
)

// Server представляет HTTP сервер
type Server struct {
	config         *config.Config
	mux            *http.ServeMux
	storage        storage.FieldReportsStorage
	cache          cache.ReportCache
	blob           blob.Store
	blobMode       string
	reports        *fieldreports.Service
	authMiddleware *auth.Middleware
	httpServer     *http.Server
}

// New создаёт новый HTTP сервер
func New(cfg *config.Config) *Server {
	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
	}

	// Инициализируем storage, кэш и хранилище фото
	s.initStorage()
	s.initCache()
	s.initBlobStore()

	// Регистрируем маршруты
	s.routes()
	return s
}

// initStorage инициализирует storage (Memory или Postgres)
func (s *Server) initStorage() {
	maxBytes := s.config.Dashboard.RecordMaxBytes
	if s.config.DatabaseURL == "" {
		log.Println("Используется in-memory storage")
		s.storage = memory.NewWithLimit(maxBytes)
		return
	}

	log.Println("Подключение к PostgreSQL...")
	pgStorage, err := postgres.New(context.Background(), s.config.DatabaseURL, maxBytes)
	if err != nil {
		log.Printf("Ошибка подключения к PostgreSQL: %v", err)
		log.Println("Fallback на in-memory storage")
		s.storage = memory.NewWithLimit(maxBytes)
		return
	}
	log.Println("PostgreSQL подключен успешно")
	s.storage = pgStorage
}

// initCache выбирает кэш последнего списка отчётов (Redis или память)
func (s *Server) initCache() {
	ttl := s.config.Dashboard.LastKnownTTL
	if s.config.RedisURL == "" {
		log.Printf("INFO cache: mode=memory ttl=%s", ttl)
		s.cache = cache.NewMemory(ttl)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc, err := cache.NewRedis(ctx, s.config.RedisURL, ttl)
	if err != nil {
		log.Printf("WARN cache: redis unavailable (%v), fallback=memory", err)
		s.cache = cache.NewMemory(ttl)
		return
	}
	log.Printf("INFO cache: mode=redis ttl=%s", ttl)
	s.cache = rc
}

func (s *Server) initBlobStore() {
	store, mode, err := blob.NewBlobStore(context.Background(), s.config.Blob, log.Default())
	if err != nil {
		log.Fatalf("FATAL blob: failed to initialize photo store: %v", err)
	}
	log.Printf("INFO blob: photo blob mode: %s", mode)
	s.blob = store
	s.blobMode = mode
}

// routes регистрирует маршруты
func (s *Server) routes() {
	// Health check (no auth required)
	s.mux.HandleFunc("/healthz", s.handleHealthz)

	// Auth API (no auth required)
	authService := auth.NewService(s.config)
	authHandler := auth.NewHandlers(authService)
	s.authMiddleware = auth.NewMiddleware(s.config, authService)

	// POST /v1/auth/login - admin email + password
	s.mux.HandleFunc("POST /v1/auth/login", authHandler.HandleLogin)

	// POST /v1/auth/dev - local dev token
	s.mux.HandleFunc("POST /v1/auth/dev", authHandler.HandleDevAuth)

	// Field reports API
	dash := s.config.Dashboard
	field, err := aggregate.ParseField(dash.BreakdownField)
	if err != nil {
		log.Printf("WARN aggregate: %v, using %s", err, aggregate.FieldVehicle)
		field = aggregate.FieldVehicle
	}
	engine := aggregate.NewEngine(aggregate.Options{
		Location:       dash.Location,
		ExportLimiter:  throttle.NewCooldown(dash.ExportCooldown),
		BreakdownField: field,
		Logger:         log.Default(),
	})

	s.reports = fieldreports.NewService(fieldreports.Options{
		Storage:           s.storage,
		Cache:             s.cache,
		Blob:              s.blob,
		PresignTTLSeconds: s.config.Blob.S3.PresignTTLSeconds,
		Pipeline: photo.NewPipeline(photo.Options{
			MaxDimension:   s.config.Photo.MaxDimension,
			MaxOutputBytes: s.config.Photo.MaxOutputBytes,
			MaxInputBytes:  s.config.Photo.MaxInputBytes,
		}),
		Slots:    photo.NewSlotRegistry(s.config.Photo.SessionTTL),
		Engine:   engine,
		Location: dash.Location,
		Logger:   log.Default(),
	})
	reportsHandler := fieldreports.NewHandlers(s.reports, fieldreports.HandlerOptions{
		MaxUploadBytes: s.config.Photo.MaxInputBytes,
		GenericErrors:  dash.GenericErrors,
		SearchDebounce: dash.SearchDebounce,
		LiveDeadline:   dash.LiveReadDeadline,
		ExportCooldown: dash.ExportCooldown,
		AllowedOrigins: s.config.CORSAllowedOrigins,
		Logger:         log.Default(),
	})

	// POST /v1/reports - submit report (public form)
	s.mux.HandleFunc("POST /v1/reports", reportsHandler.HandleSubmit)

	// POST /v1/photos/preview - compress photo for the form preview
	s.mux.HandleFunc("POST /v1/photos/preview", reportsHandler.HandlePreview)

	// GET /v1/reports - list reports (?q=&date=)
	s.mux.HandleFunc("GET /v1/reports", reportsHandler.HandleList)

	// GET /v1/reports/analytics - summary and breakdown
	s.mux.HandleFunc("GET /v1/reports/analytics", reportsHandler.HandleAnalytics)

	// GET /v1/reports/export - csv|pdf download
	s.mux.HandleFunc("GET /v1/reports/export", reportsHandler.HandleExport)

	// GET /v1/reports/map - located reports and polyline
	s.mux.HandleFunc("GET /v1/reports/map", reportsHandler.HandleMap)

	// GET /v1/reports/live - websocket dashboard
	s.mux.HandleFunc("GET /v1/reports/live", reportsHandler.HandleLive)

	// GET /v1/reports/{id} - get report
	s.mux.HandleFunc("GET /v1/reports/{id}", reportsHandler.HandleGet)

	// GET /v1/reports/{id}/photo - photo bytes or redirect
	s.mux.HandleFunc("GET /v1/reports/{id}/photo", reportsHandler.HandlePhoto)
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	// Outermost first: Request ID → Security headers → CORS → Rate Limit → Auth → Router
	var handler http.Handler = s.mux
	if s.authMiddleware != nil && s.config.AuthMode != "" && s.config.AuthMode != config.AuthModeNone {
		handler = s.authMiddleware.RequireAdmin(handler)
	}
	handler = RateLimitMiddleware(s.config, handler)
	handler = CORSMiddleware(s.config, handler)
	handler = SecurityHeadersMiddleware(s.config, handler)
	handler = RequestIDMiddleware(handler)
	return handler
}

// handleHealthz возвращает статус сервера
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"blob":   s.blobMode,
	})
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Сервер запущен на http://localhost%s\n", addr)
	log.Printf("Health check: http://localhost%s/healthz\n", addr)
	log.Printf("Reports API: http://localhost%s/v1/reports\n", addr)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown останавливает сервер и закрывает ресурсы
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.Close()
}

// Close закрывает storage и кэш
func (s *Server) Close() error {
	var errs []error
	if rc, ok := s.cache.(*cache.Redis); ok {
		errs = append(errs, rc.Close())
	}
	if s.storage != nil {
		errs = append(errs, s.storage.Close())
	}
	return errors.Join(errs...)
}
