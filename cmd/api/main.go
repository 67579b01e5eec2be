package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	appai "github.com/bryanwahyu/analysis-vault/internal/application/ai"
	appsnapshots "github.com/bryanwahyu/analysis-vault/internal/application/snapshots"
	"github.com/bryanwahyu/analysis-vault/internal/config"
	domain "github.com/bryanwahyu/analysis-vault/internal/domain/analyses"
	openaiclient "github.com/bryanwahyu/analysis-vault/internal/infra/ai/openai"
	"github.com/bryanwahyu/analysis-vault/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/analysis-vault/internal/infra/storage"
	"github.com/bryanwahyu/analysis-vault/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// open the configured storage backend
	repo, err := appsnapshots.OpenRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("storage open error: %v", err)
	}
	defer repo.Close()
	log.Printf("storage backend: %s", cfg.Storage.Backend)

	// init state archive (optional)
	var archive domain.StateArchive
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		archive = store
	}

	// init services
	svc := appsnapshots.NewService(repo, archive)

	var reviewSvc *appai.Service
	if cfg.AI.APIKey != "" {
		reviewSvc = appai.NewService(openaiclient.NewClient(cfg.AI.APIKey, cfg.AI.Model))
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(middleware.RequestIDMiddleware)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if len(cfg.Server.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Server.APIKeys))
	}
	mux.Use(middleware.RateLimitMiddleware(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillRate))

	mux.Get("/healthz", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"repository": &middleware.RepositoryHealthChecker{Repo: repo},
	}))
	mux.Mount("/", httpserver.NewRouter(svc, reviewSvc, cfg.Server.AllowedOrigins))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
