//	@title			KTG Storage API
//	@version		1.0
//	@description	File-upload management service: direct-to-store uploads, metadata lifecycle, and thumbnail derivation.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/ktg/storage-service/internal/config"
	"github.com/ktg/storage-service/internal/db"
	"github.com/ktg/storage-service/internal/file"
	appMiddleware "github.com/ktg/storage-service/internal/middleware"
	"github.com/ktg/storage-service/internal/objectstore"
	"github.com/ktg/storage-service/internal/thumbnail"

	_ "github.com/ktg/storage-service/docs/swagger"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("database migration failed")
	}

	// One store client constructed here and injected everywhere that needs
	// store access.
	var store objectstore.Client
	var localStore *objectstore.LocalStore
	if cfg.IsRemote() {
		store, err = objectstore.NewMinioClient(objectstore.MinioOptions{
			Endpoint:      cfg.StorageEndpoint,
			AccessKey:     cfg.StorageAccessKey,
			SecretKey:     cfg.StorageSecretKey,
			Region:        cfg.StorageRegion,
			Bucket:        cfg.StorageBucket,
			UseSSL:        cfg.StorageUseSSL,
			PresignExpiry: time.Duration(cfg.PresignedExpirySec) * time.Second,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("object storage init failed")
		}
	} else {
		localStore, err = objectstore.NewLocalStore(cfg.LocalStorageDir, strings.TrimRight(cfg.AppDomain, "/")+"/media")
		if err != nil {
			logger.Fatal().Err(err).Msg("local storage init failed")
		}
		store = localStore
	}

	// Wire dependencies: repository → service → handler
	fileRepo := file.NewRepository(pool)
	thumbs := thumbnail.NewGenerator(store, cfg.DefaultACL, logger)
	fileSvc := file.NewService(fileRepo, store, thumbs, cfg, logger)
	urlSvc := file.NewURLService(store, cfg)
	fileHandler := file.NewHandler(fileSvc, urlSvc, logger)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI — available at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Local mode serves stored objects itself under /media/ and accepts the
	// upload bytes at the URL handed out by the start endpoint. No auth here:
	// like a presigned POST, knowing the record ID is the capability.
	if localStore != nil {
		fs := http.StripPrefix("/media/", http.FileServer(http.Dir(localStore.Root())))
		r.Get("/media/*", fs.ServeHTTP)
		r.Post("/upload/direct/local/{fileID}", fileHandler.UploadLocal)
		r.Post("/upload/direct/local/{fileID}/", fileHandler.UploadLocal)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(appMiddleware.Auth(cfg.JWTSecret, cfg.AllowAuth))
		fileHandler.Routes(r)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.AppEnv).
			Str("storage_mode", cfg.StorageMode).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	logger.Info().Msg("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("forced shutdown")
	}

	logger.Info().Msg("server stopped")
}
