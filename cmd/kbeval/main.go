package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/clearhelm/kbsearch/internal/config"
	"github.com/clearhelm/kbsearch/internal/corpus"
	dbRedis "github.com/clearhelm/kbsearch/internal/db/redis"
	logpkg "github.com/clearhelm/kbsearch/internal/logger"
	"github.com/clearhelm/kbsearch/internal/metrics"
	"github.com/clearhelm/kbsearch/internal/repository/dense"
	"github.com/clearhelm/kbsearch/internal/sparse"
	openaiTransport "github.com/clearhelm/kbsearch/internal/transport/openai"
	"github.com/clearhelm/kbsearch/internal/transport/tei"
	"github.com/clearhelm/kbsearch/internal/usecase/evaluation"
	"github.com/clearhelm/kbsearch/internal/usecase/retrieval"
)

func main() {
	outDir := flag.String("out", "evals/results", "directory for JSON run reports")
	topK := flag.Int("top-k", 0, "retrieval depth per query (0 uses the eval default)")
	detail := flag.Bool("detail", false, "include per-query rows in the JSON report")
	flag.Parse()

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

	if err := run(cfg, logger, *outDir, *topK, *detail); err != nil {
		logger.Fatal("Evaluation run failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger, outDir string, topK int, detail bool) error {
	ctx := context.Background()

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return fmt.Errorf("create vector store client: %w", err)
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("vector store not ready: %w", err)
	}

	metrics.RegisterRetrievalMetrics()

	docs, err := corpus.LoadDocuments(cfg.Data.CorpusPath)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	queries, err := corpus.LoadEvalSet(cfg.Data.EvalSetPath)
	if err != nil {
		return fmt.Errorf("load eval set: %w", err)
	}
	logger.Info("Evaluation inputs loaded",
		zap.Int("documents", len(docs)),
		zap.Int("queries", len(queries)),
	)

	sparseIdx, err := sparse.Build(docs, sparse.Params{
		K1: cfg.Retrieval.BM25K1,
		B:  cfg.Retrieval.BM25B,
	})
	if err != nil {
		return fmt.Errorf("build sparse index: %w", err)
	}

	embedder := openaiTransport.NewEmbedder(openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})

	denseRepo := dense.New(store, cfg.Embedding.Dimensions)
	if err := denseRepo.IndexCorpus(ctx, docs, embedder); err != nil {
		return fmt.Errorf("index corpus: %w", err)
	}

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

	evalSvc := evaluation.New(retrievalSvc, evaluation.Options{
		TopK:               topK,
		IncludeQueryDetail: detail,
	})

	started := time.Now()
	report, err := evalSvc.Run(ctx, queries)
	if err != nil {
		return err
	}
	elapsed := time.Since(started)

	printSummary(report, elapsed)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	// The report body is deterministic for a given corpus and pipeline;
	// only the filename carries the run timestamp.
	path := filepath.Join(outDir, "run_"+started.UTC().Format("20060102T150405Z")+".json")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	if err := report.WriteJSON(f); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	logger.Info("Evaluation complete",
		zap.String("report", path),
		zap.Int("queries", report.TotalQueries),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func printSummary(report evaluation.Report, elapsed time.Duration) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tQUERIES\tRECALL@5\tRECALL@10\tMRR")
	for _, c := range report.Categories {
		fmt.Fprintf(w, "%s\t%d\t%.4f\t%.4f\t%.4f\n",
			c.Category, c.Queries, c.RecallAt5, c.RecallAt10, c.MRR)
	}
	fmt.Fprintf(w, "overall\t%d\t%.4f\t%.4f\t%.4f\n",
		report.Measured, report.Overall.RecallAt5, report.Overall.RecallAt10, report.Overall.MRR)
	w.Flush()

	fmt.Printf("\n%d queries, %d failed, %d degraded, %s\n",
		report.TotalQueries, report.Failed, report.Degraded, elapsed.Round(time.Millisecond))
	for _, f := range report.Failures {
		fmt.Printf("  FAILED %s: %s\n", f.QueryID, f.Error)
	}
}
