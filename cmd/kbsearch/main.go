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

	"github.com/clearhelm/kbsearch/internal/config"
	"github.com/clearhelm/kbsearch/internal/corpus"
	dbRedis "github.com/clearhelm/kbsearch/internal/db/redis"
	logpkg "github.com/clearhelm/kbsearch/internal/logger"
	"github.com/clearhelm/kbsearch/internal/metrics"
	"github.com/clearhelm/kbsearch/internal/repository/dense"
	"github.com/clearhelm/kbsearch/internal/sparse"
	"github.com/clearhelm/kbsearch/internal/transport/httpapi"
	openaiTransport "github.com/clearhelm/kbsearch/internal/transport/openai"
	"github.com/clearhelm/kbsearch/internal/transport/tei"
	"github.com/clearhelm/kbsearch/internal/usecase/retrieval"
	"github.com/clearhelm/kbsearch/internal/version"
)

func main() {
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

	logger.Info("Starting kbsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create vector store client", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Vector store not ready", zap.Error(err))
	}
	logger.Info("Connected to vector store")

	metrics.RegisterRetrievalMetrics()

	docs, err := corpus.LoadDocuments(cfg.Data.CorpusPath)
	if err != nil {
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}
	logger.Info("Corpus loaded", zap.Int("documents", len(docs)))

	sparseIdx, err := sparse.Build(docs, sparse.Params{
		K1: cfg.Retrieval.BM25K1,
		B:  cfg.Retrieval.BM25B,
	})
	if err != nil {
		logger.Fatal("Failed to build sparse index", zap.Error(err))
	}

	embedder := openaiTransport.NewEmbedder(openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})

	denseRepo := dense.New(store, cfg.Embedding.Dimensions)
	if err := denseRepo.IndexCorpus(ctx, docs, embedder); err != nil {
		logger.Fatal("Failed to index corpus in vector store", zap.Error(err))
	}
	logger.Info("Dense index built", zap.Int("documents", len(docs)))

	// Filter extraction and reranking are optional stages: the pipeline
	// runs without them when left unconfigured.
	var extractor retrieval.FilterExtractor
	if cfg.LLM.Model != "" {
		extractor = openaiTransport.NewFilterExtractor(openaiTransport.ExtractorConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
	}
	var scorer retrieval.PairScorer
	if cfg.Reranker.BaseURL != "" {
		scorer = tei.New(tei.Config{
			BaseURL: cfg.Reranker.BaseURL,
			APIKey:  cfg.Reranker.APIKey,
			Timeout: time.Duration(cfg.Reranker.TimeoutSec) * time.Second,
		})
	}

	retrievalSvc := retrieval.New(
		sparseIdx, sparseIdx,
		denseRepo, embedder,
		extractor, scorer,
		retrieval.Options{
			RRFK:                     cfg.Retrieval.RRFK,
			RerankTopN:               cfg.Retrieval.RerankTopN,
			UnscoredPolicy:           retrieval.UnscoredPolicy(cfg.Retrieval.UnscoredPolicy),
			SparseUnfilteredFallback: cfg.Retrieval.SparseUnfilteredFallback,
		},
	)

	server := httpapi.NewServer(retrievalSvc, store, logger, cfg.Retrieval.TopK)

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

// jsonRecoverer recovers panics and answers with a JSON 500.
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
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
