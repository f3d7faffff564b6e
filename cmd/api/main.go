package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/clearlane/claims-intake/internal/application"
	appclaims "github.com/clearlane/claims-intake/internal/application/claims"
	"github.com/clearlane/claims-intake/internal/config"
	domain "github.com/clearlane/claims-intake/internal/domain/claims"
	openaiClient "github.com/clearlane/claims-intake/internal/infra/ai/openai"
	mysqlp "github.com/clearlane/claims-intake/internal/infra/db/mysql"
	postgresp "github.com/clearlane/claims-intake/internal/infra/db/postgres"
	"github.com/clearlane/claims-intake/internal/infra/extract"
	"github.com/clearlane/claims-intake/internal/infra/httpserver"
	minioStore "github.com/clearlane/claims-intake/internal/infra/storage"
	"github.com/clearlane/claims-intake/internal/middleware"
	"github.com/clearlane/claims-intake/internal/ratelimit"
	"github.com/clearlane/claims-intake/internal/security"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// connect database per configured driver
	var (
		db   *sql.DB
		repo domain.Repository
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			logger.Fatal("postgres connect error", zap.Error(err))
		}
		repo = postgresp.NewClaimRepository(db)
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			logger.Fatal("mysql connect error", zap.Error(err))
		}
		repo = mysqlp.NewClaimRepository(db)
	}
	defer db.Close()

	// init minio artifact store
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		logger.Fatal("minio init error", zap.Error(err))
	}

	// per-model quota windows + background sweep
	windows := ratelimit.NewStore(nil)
	go windows.RunSweeper(ctx, logger)

	candidates := make([]ratelimit.Candidate, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		candidates = append(candidates, ratelimit.Candidate{
			Name: m.Name,
			Limits: ratelimit.Limits{
				RequestsPerMinute: m.RequestsPerMinute,
				TokensPerMinute:   m.TokensPerMinute,
				RequestsPerDay:    m.RequestsPerDay,
			},
		})
	}

	pdfExtractor := extract.NewPDFExtractor()
	scanner := security.NewScanner(extract.NewImageTextExtractor(), logger)

	svc := &appclaims.Service{
		Repo:            repo,
		Artifacts:       store,
		Analyzer:        openaiClient.NewClient(cfg.OpenAI.APIKey),
		Scanner:         scanner,
		Selector:        ratelimit.NewSelector(windows, candidates),
		Docs:            pdfExtractor,
		Clock:           application.SystemClock{},
		Logger:          logger,
		AnalysisTimeout: time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second,
	}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	mux.Use(middleware.Logging(logger))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.SessionAuth(cfg.Auth.APIKeys, []byte(cfg.Auth.JWTSecret)))
	mux.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))

	mux.Get("/health", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
		"storage":  &middleware.StorageHealthChecker{Ping: store.Ping},
	}))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Mount("/", httpserver.NewRouter(svc))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", addr), zap.String("driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server...")
	cancel()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}
