package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sohae-kim/foliochat/internal/config"
	"github.com/sohae-kim/foliochat/internal/db"
	dbRedis "github.com/sohae-kim/foliochat/internal/db/redis"
	logpkg "github.com/sohae-kim/foliochat/internal/logger"
	"github.com/sohae-kim/foliochat/internal/metrics"
	contentrepo "github.com/sohae-kim/foliochat/internal/repository/content"
	chiTransport "github.com/sohae-kim/foliochat/internal/transport/chi"
	openaiTransport "github.com/sohae-kim/foliochat/internal/transport/openai"
	answeruc "github.com/sohae-kim/foliochat/internal/usecase/answer"
	healthuc "github.com/sohae-kim/foliochat/internal/usecase/health"
	ratelimituc "github.com/sohae-kim/foliochat/internal/usecase/ratelimit"
	"github.com/sohae-kim/foliochat/internal/version"
)

func main() {
	// .env first, then YAML config with ${VAR} expansion over it
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting foliochat API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("data_dir", cfg.Content.DataDir),
		zap.Bool("cache_tier", cfg.Content.Cache.Enabled()),
	)

	ctx := context.Background()

	// Optional corpus cache tier
	var store db.Store
	if cfg.Content.Cache.Enabled() {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Content.Cache.Addrs,
			Password: cfg.Content.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		readiness := time.Duration(cfg.Content.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Cache tier not ready", zap.Error(err))
		}
		logger.Info("Connected to cache tier")
	}

	// Register chat metrics explicitly (no init())
	metrics.RegisterChatMetrics()

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:  cfg.Embedding.APIKey,
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		Timeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:  logger,
	})
	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:    cfg.Generation.APIKey,
		BaseURL:   cfg.Generation.BaseURL,
		Model:     cfg.Generation.Model,
		MaxTokens: cfg.Generation.MaxTokens,
		Timeout:   time.Duration(cfg.Generation.TimeoutSec) * time.Second,
		Logger:    logger,
	})
	logger.Info("Providers created",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("generation_model", cfg.Generation.Model),
	)

	contentRepo := contentrepo.New(contentrepo.Config{
		DataDir:         cfg.Content.DataDir,
		ExtraCandidates: cfg.Content.CandidatePaths,
		Dimensions:      cfg.Content.Dimensions,
		CacheKey:        cfg.Content.Cache.Key,
		CacheTTL:        time.Duration(cfg.Content.Cache.TTLSec) * time.Second,
	}, embedder, store, logger)

	governor := ratelimituc.New(
		cfg.RateLimit.PerMinute,
		cfg.RateLimit.PerDay,
		time.Duration(cfg.RateLimit.CleanupIntervalSec)*time.Second,
		logger,
	)

	pipeline := answeruc.New(embedder, generator, contentRepo, governor, logger)

	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(contentRepo, cachePinger, embedder, generator)

	server := chiTransport.NewServer(pipeline, healthSvc, contentRepo, chiTransport.DiagnosticInfo{
		DataDir:             cfg.Content.DataDir,
		EmbeddingKeySet:     cfg.Embedding.APIKey != "",
		GenerationKeySet:    cfg.Generation.APIKey != "",
		CacheTierConfigured: cfg.Content.Cache.Enabled(),
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	// The portfolio page may be served from another origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.RequestSizeLimit(cfg.HTTP.MaxBodyBytes))
	r.Use(metrics.Middleware())
	server.Mount(r)

	if cfg.HTTP.StaticDir != "" {
		index, assets := chiTransport.StaticHandler(cfg.HTTP.StaticDir)
		r.Get("/", index)
		r.Handle("/static/*", assets)
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"detail": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
