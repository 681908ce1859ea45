package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/licenselens/licenselens-backend/internal/analysis/cache"
	"github.com/licenselens/licenselens-backend/internal/analysis/events"
	"github.com/licenselens/licenselens-backend/internal/analysis/gemini"
	"github.com/licenselens/licenselens-backend/internal/analysis/handler"
	"github.com/licenselens/licenselens-backend/internal/analysis/repository"
	"github.com/licenselens/licenselens-backend/internal/analysis/service"
	"github.com/licenselens/licenselens-backend/internal/analysis/store"
	"github.com/licenselens/licenselens-backend/pkg/config"
	"github.com/licenselens/licenselens-backend/pkg/database"
	"github.com/licenselens/licenselens-backend/pkg/httputil"
	"github.com/licenselens/licenselens-backend/pkg/logger"
	"github.com/licenselens/licenselens-backend/pkg/messaging"
	"github.com/licenselens/licenselens-backend/web"
)

func main() {
	// Local development reads credentials from a .env file; in deployment the
	// environment is already populated and the file is absent.
	_ = godotenv.Load()

	// Load configuration with validation (fails fast if the Gemini API key is missing)
	cfg, err := config.LoadWithValidation("analysis-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("analysis-service", cfg.Server.Environment)
	log.Info().Msg("starting Analysis Service")

	// Connect to the hosted model
	modelClient, err := gemini.NewClient(context.Background(), &cfg.Gemini, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client")
	}
	defer modelClient.Close()

	// Select the analysis store: Postgres when configured, in-memory otherwise
	var (
		analysisStore service.Store
		db            *database.DB
	)
	if cfg.Database.Enabled() {
		db, err = database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		analysisStore = repository.NewAnalysisRepository(db)
		log.Info().Msg("analysis history backed by Postgres")
	} else {
		memStore := store.NewMemory(24 * time.Hour)
		defer memStore.Close()
		analysisStore = memStore
		log.Info().Msg("no database configured, analysis history kept in memory")
	}

	// Optional Redis result cache
	var resultCache service.Cache
	var redisCache *cache.Redis
	if cfg.Redis.Enabled() {
		redisCache = cache.NewRedis(&cfg.Redis)
		if err := redisCache.Ping(context.Background()); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to Redis")
		}
		defer redisCache.Close()
		resultCache = redisCache
		log.Info().Str("addr", cfg.Redis.Addr).Msg("result cache enabled")
	}

	// Optional RabbitMQ event publishing
	var (
		rmq       *messaging.RabbitMQ
		publisher *events.AnalysisEventPublisher
	)
	if cfg.RabbitMQ.Enabled() {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		publisher, err = events.NewAnalysisEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}

		// Survive broker restarts for the life of the process
		watchCtx, watchCancel := context.WithCancel(context.Background())
		defer watchCancel()
		go rmq.Watch(watchCtx)
	}

	// Initialize service and handler
	analysisService := service.New(modelClient, analysisStore, resultCache, publisher, log)
	analysisHandler := handler.NewHandler(analysisService, log, cfg.Server.MaxUploadSize)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.CorrelationID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":  "healthy",
			"service": "analysis-service",
			"model":   cfg.Gemini.Model,
		}
		if db != nil {
			health["database"] = db.Health(r.Context())
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, health)
	})

	// Embedded analyzer page
	r.Get("/", web.IndexHandler())

	// API routes
	r.Route("/api/v1", analysisHandler.RegisterRoutes)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
