package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/rpattn/draftsync/internal/api"
	"github.com/rpattn/draftsync/internal/cache"
	"github.com/rpattn/draftsync/internal/config"
	"github.com/rpattn/draftsync/internal/db"
	"github.com/rpattn/draftsync/internal/export"
	"github.com/rpattn/draftsync/internal/ingestion"
	"github.com/rpattn/draftsync/internal/logger"
	"github.com/rpattn/draftsync/internal/repository"
	"github.com/rpattn/draftsync/internal/resolution"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	// Build the storage backend. Memory mode keeps everything in-process
	// for local development; postgres is the default.
	var versions repository.VersionRepository
	var conflicts repository.ConflictRepository
	switch cfg.Storage {
	case "memory":
		log.Warn().Msg("using in-memory storage; nothing will survive a restart")
		versions = repository.NewMemoryVersionRepository()
		conflicts = repository.NewMemoryConflictRepository()
	default:
		if err := db.RunMigrations(cfg.Database); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		conn, err := db.NewConnection(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer conn.Close()
		versions = repository.NewVersionRepository(conn.Pool)
		conflicts = repository.NewConflictRepository(conn.Pool)
	}

	if cfg.Cache.Size > 0 {
		cached, err := cache.NewVersionCache(versions, cfg.Cache.Size)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build version cache")
		}
		versions = cached
	}

	resolver := resolution.NewService(versions, conflicts,
		resolution.WithLogger(log.With().Str("component", "resolution").Logger()),
	)

	ingestHandler := ingestion.NewHTTPHandler(ingestion.NewService(resolver))
	exportHandler := export.NewHTTPHandler(export.NewService(versions, conflicts))
	apiHandler := api.NewHandler(resolver, log.With().Str("component", "api").Logger())

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	handler := corsHandler.Handler(
		api.LoggingMiddleware(log)(
			apiHandler.Routes(ingestHandler, exportHandler),
		),
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("storage", cfg.Storage).Msg("starting draftsync server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
