// Command mcp-server runs the trial matching engine as a standalone MCP
// server over stdio, with a file-based trial catalog and a local SQLite
// feedback store. It is configured entirely through environment variables
// so MCP clients can launch it without a config file.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/config"
	"github.com/trial-match-server/internal/feedback"
	"github.com/trial-match-server/internal/mcp"
	"github.com/trial-match-server/internal/repository"
	"github.com/trial-match-server/internal/service"
	"github.com/trial-match-server/pkg/oracle"
)

func main() {
	cfg := config.LoadLiteConfig()
	if err := cfg.EnsureDataDir(); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// stdout carries the MCP transport, so logs go to stderr.
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if cfg.CatalogFile == "" {
		log.Fatalf("TRIALMATCH_CATALOG_FILE is required")
	}
	catalog := repository.NewSnapshotCache(
		repository.NewFileCatalog(cfg.CatalogFile, logger),
		5*time.Minute,
		logger,
	)

	feedbackStore, err := feedback.NewSQLiteStore(cfg.FeedbackDBPath())
	if err != nil {
		log.Fatalf("Failed to open feedback store: %v", err)
	}

	sem := newSemanticEvaluator(ctx, cfg, logger)
	var semantic service.SemanticEvaluator
	var summarizer mcp.Summarizer
	if sem != nil {
		semantic = sem
		summarizer = sem
	}

	classifier := service.NewClassifier(1024, logger)
	evaluator := service.NewEvaluator(service.DefaultEvaluatorOptions())
	matcher := service.NewMatcher(
		service.NewPreFilter(logger),
		classifier,
		evaluator,
		service.NewAggregator(service.UndeterminedIgnore),
		semantic,
		service.MatcherOptions{
			ScoreThreshold:    cfg.ScoreThreshold,
			TopN:              cfg.TopN,
			MaxConcurrency:    4,
			RunTimeout:        cfg.RunTimeout,
			SemanticMaxTrials: 10,
		},
		logger,
	)

	server, err := mcp.NewServer(mcp.Deps{
		Matcher:    matcher,
		Classifier: classifier,
		Evaluator:  evaluator,
		Catalog:    catalog,
		Feedback:   feedbackStore,
		Summarizer: summarizer,
		ExportDir:  cfg.ExportDir(),
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("MCP server failed: %v", err)
	}

	logger.Info("MCP server stopped")
}

func newSemanticEvaluator(ctx context.Context, cfg *config.LiteConfig, logger *logrus.Logger) *oracle.Evaluator {
	if !cfg.OracleEnabled {
		return nil
	}

	var generator oracle.Generator
	var err error
	switch cfg.OracleBackend {
	case "gemini":
		generator, err = oracle.NewGeminiGenerator(ctx, cfg.OracleAPIKey, cfg.OracleModel)
	default:
		generator, err = oracle.NewOllamaGenerator(cfg.OracleBaseURL, cfg.OracleAPIKey, cfg.OracleModel)
	}
	if err != nil {
		logger.WithError(err).Warn("Semantic oracle unavailable, matching is deterministic only")
		return nil
	}

	generator = oracle.NewResilientGenerator(generator, oracle.ResilientOptions{}, logger)
	capability := oracle.NewCapability(cfg.OracleBackend, cfg.OracleModel)
	return oracle.NewEvaluator(generator, capability, logger)
}
