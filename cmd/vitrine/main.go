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
	"go.uber.org/zap"

	"github.com/vitrine-search/vitrine/internal/config"
	"github.com/vitrine-search/vitrine/internal/domain"
	indexredis "github.com/vitrine-search/vitrine/internal/index/redis"
	logpkg "github.com/vitrine-search/vitrine/internal/logger"
	"github.com/vitrine-search/vitrine/internal/metrics"
	"github.com/vitrine-search/vitrine/internal/repository/embcache"
	storesqlite "github.com/vitrine-search/vitrine/internal/store/sqlite"
	chiTransport "github.com/vitrine-search/vitrine/internal/transport/chi"
	"github.com/vitrine-search/vitrine/internal/transport/clip"
	openaiEmb "github.com/vitrine-search/vitrine/internal/transport/openai"
	enrichuc "github.com/vitrine-search/vitrine/internal/usecase/enrich"
	healthuc "github.com/vitrine-search/vitrine/internal/usecase/health"
	searchuc "github.com/vitrine-search/vitrine/internal/usecase/search"
	"github.com/vitrine-search/vitrine/internal/version"
)

func main() {
	// Load configuration based on ENV
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

	logger.Info("Starting vitrine API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("index_addrs", cfg.Index.Addrs),
	)

	// Vector index
	indexStore, err := indexredis.NewStore(indexredis.Config{
		Addrs:     cfg.Index.Addrs,
		Password:  cfg.Index.Password,
		KeyPrefix: cfg.Index.KeyPrefix,
		IndexName: cfg.Index.Name,
	})
	if err != nil {
		logger.Fatal("Failed to create index client", zap.Error(err))
	}
	defer indexStore.Close()

	ctx := context.Background()
	if err := indexStore.WaitForReady(ctx, time.Duration(cfg.Index.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Index not ready", zap.Error(err))
	}
	logger.Info("Connected to vector index")

	// Catalog store
	catalog, err := storesqlite.Open(cfg.Catalog.DSN)
	if err != nil {
		logger.Fatal("Failed to open catalog store", zap.Error(err))
	}
	defer catalog.Close()

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	embedTimeout := time.Duration(cfg.Embedding.TimeoutSec) * time.Second

	// Text embedder with optional query cache
	var textEmbedder searchuc.TextEmbedder
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.TextModel,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	textEmbedder = base
	if cfg.Embedding.Cache.Enabled {
		ttl := time.Duration(cfg.Embedding.Cache.TTLSec) * time.Second
		textEmbedder = embcache.New(
			base, indexStore, cfg.Embedding.TextModel, ttl,
			metrics.EmbeddingCacheTotal, logger,
		)
	}

	imageEmbedder := clip.NewEmbedder(&clip.Config{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.ImageModel,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Timeout:    embedTimeout,
		Logger:     logger,
	})

	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("text_model", cfg.Embedding.TextModel),
		zap.String("image_model", cfg.Embedding.ImageModel),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Use case services
	searchSvc := searchuc.New(indexStore, textEmbedder, imageEmbedder, searchuc.Config{
		DefaultTopK:   cfg.Search.DefaultTopK,
		MaxTopK:       cfg.Search.MaxTopK,
		EFRuntime:     cfg.Index.EFRuntime,
		EmbedTimeout:  embedTimeout,
		SearchTimeout: time.Duration(cfg.Search.TimeoutSec) * time.Second,
	})
	enrichSvc := enrichuc.New(catalog, *cfg.Search.ScoreThreshold)
	healthSvc := healthuc.New(indexStore, catalog, newEmbeddingHealthChecker(base))

	server := chiTransport.NewServer(searchSvc, enrichSvc, healthSvc, chiTransport.Config{
		MaxConcurrentSearches: cfg.HTTP.MaxConcurrentSearches,
		MaxImageBytes:         cfg.HTTP.MaxImageBytes,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

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

// embeddingHealthChecker adapts a TextEmbedder to health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.TextEmbedder
}

func newEmbeddingHealthChecker(embedder domain.TextEmbedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
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
						"code":    "internal_error",
						"message": "internal error",
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

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}
