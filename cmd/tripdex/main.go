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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/voyago/tripdex/internal/config"
	"github.com/voyago/tripdex/internal/domain"
	"github.com/voyago/tripdex/internal/extract"
	"github.com/voyago/tripdex/internal/index"
	"github.com/voyago/tripdex/internal/index/lexical"
	"github.com/voyago/tripdex/internal/index/vector"
	"github.com/voyago/tripdex/internal/indexer"
	logpkg "github.com/voyago/tripdex/internal/logger"
	"github.com/voyago/tripdex/internal/metrics"
	"github.com/voyago/tripdex/internal/provider/cache"
	openaiProvider "github.com/voyago/tripdex/internal/provider/openai"
	"github.com/voyago/tripdex/internal/rewrite"
	"github.com/voyago/tripdex/internal/search"
	"github.com/voyago/tripdex/internal/taxonomy"
	httpTransport "github.com/voyago/tripdex/internal/transport/http"
	"github.com/voyago/tripdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting tripdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("taxonomy", cfg.Taxonomy.Path),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterCoreMetrics()

	// Taxonomy is fail-fast: serving with a partial taxonomy would silently
	// mis-tag documents.
	tax, err := taxonomy.Load(cfg.Taxonomy.Path)
	if err != nil {
		logger.Fatal("Failed to load taxonomy", zap.Error(err))
	}
	matcher := taxonomy.NewMatcher(tax, cfg.Retrieval.FuzzyThreshold)
	logger.Info("Taxonomy loaded",
		zap.Int("synonyms", len(tax.SynonymKeys())),
		zap.Int("category_keys", len(tax.CategoryKeys())),
	)

	// Provider clients
	provCfg := &openaiProvider.Config{
		APIKey:          cfg.Provider.APIKey,
		BaseURL:         cfg.Provider.BaseURL,
		CompletionModel: cfg.Provider.CompletionModel,
		EmbeddingModel:  cfg.Provider.EmbeddingModel,
		Dimensions:      cfg.Provider.Dimensions,
		Logger:          logger,
	}
	completer := openaiProvider.NewCompleter(provCfg)
	embedder := buildEmbedder(provCfg, cfg, logger)

	// Dual index facade over BM25 and cosine indexes
	dual := index.NewDual(lexical.New(), vector.New(cfg.Provider.Dimensions))

	// Indexing side
	extractor := extract.New(completer, tax, matcher, extract.Options{
		Timeout:          time.Duration(cfg.Indexing.ExtractTimeoutMS) * time.Millisecond,
		BreakerThreshold: uint32(cfg.Indexing.BreakerThreshold),
		BreakerCooldown:  time.Duration(cfg.Indexing.BreakerCooldownSec) * time.Second,
		Logger:           logger,
	})
	pipeline, err := indexer.New(dual, extractor, embedder,
		indexer.WithWorkers(cfg.Indexing.Workers),
		indexer.WithWriteAttempts(cfg.Indexing.WriteAttempts),
		indexer.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("Failed to create indexing pipeline", zap.Error(err))
	}
	defer pipeline.Release()

	// Optional startup corpus
	if cfg.Corpus.Path != "" {
		if err := loadCorpus(context.Background(), cfg.Corpus.Path, pipeline, logger); err != nil {
			logger.Fatal("Failed to load corpus", zap.Error(err))
		}
		if err := dual.Verify(); err != nil {
			logger.Fatal("Index consistency check failed after corpus load", zap.Error(err))
		}
		logger.Info("Corpus loaded", zap.Int("documents", dual.Len()))
	}

	// Retrieval side
	rewriter := rewrite.New(completer, matcher,
		time.Duration(cfg.Retrieval.RewriteTimeoutMS)*time.Millisecond, logger)
	searchSvc := search.New(rewriter, dual, dual, embedder, search.Config{
		RRFK:             cfg.Retrieval.RRFK,
		SubSearchTimeout: time.Duration(cfg.Retrieval.SubSearchTimeoutMS) * time.Millisecond,
		DefaultLimit:     cfg.Retrieval.DefaultLimit,
		MaxLimit:         cfg.Retrieval.MaxLimit,
		Logger:           logger,
	})

	handler := httpTransport.NewHandler(pipeline, searchSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	r.Group(handler.Routes)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the embedder chain: OpenAI -> Cached (optional).
func buildEmbedder(provCfg *openaiProvider.Config, cfg config.Config, logger *zap.Logger) domain.Embedder {
	base := openaiProvider.NewEmbedder(provCfg)
	if len(cfg.Cache.Addrs) == 0 {
		return base
	}

	kv, err := cache.NewRedisKV(context.Background(), cfg.Cache.Addrs, cfg.Cache.Password)
	if err != nil {
		logger.Fatal("Failed to connect embedding cache", zap.Error(err))
	}
	logger.Info("Embedding cache enabled", zap.Strings("addrs", cfg.Cache.Addrs))
	return cache.NewEmbedder(base, kv, cfg.Provider.EmbeddingModel,
		time.Duration(cfg.Cache.TTLSec)*time.Second, logger)
}

// loadCorpus ingests a JSON documents file through the pipeline.
func loadCorpus(ctx context.Context, path string, pipeline *indexer.Pipeline, logger *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read corpus %s: %w", path, err)
	}

	var docs []indexer.RawDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("parse corpus %s: %w", path, err)
	}

	states := pipeline.UpsertBatch(ctx, docs)
	for id, state := range states {
		if state == domain.StateFailed {
			return fmt.Errorf("corpus document %q failed to index", id)
		}
		if state == domain.StateSkipped {
			logger.Warn("Skipped malformed corpus document", zap.String("doc_id", id))
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
						"error": "internal error",
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

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
