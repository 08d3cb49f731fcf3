package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/api"
	"github.com/trial-match-server/internal/config"
	"github.com/trial-match-server/internal/database"
	"github.com/trial-match-server/internal/domain"
	"github.com/trial-match-server/internal/feedback"
	"github.com/trial-match-server/internal/ingest"
	"github.com/trial-match-server/internal/repository"
	"github.com/trial-match-server/internal/service"
	"github.com/trial-match-server/pkg/oracle"
)

const catalogSnapshotTTL = 5 * time.Minute

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Catalog database
	db, err := database.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect to catalog database: %v", err)
	}
	defer db.Close()

	if err := runMigrations(cfg.Database, logger); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	trialRepo := repository.NewTrialRepository(db.Pool, logger)
	catalog := repository.NewSnapshotCache(trialRepo, catalogSnapshotTTL, logger)

	// Feedback store
	feedbackStore, err := newFeedbackStore(cfg.Feedback)
	if err != nil {
		log.Fatalf("Failed to create feedback store: %v", err)
	}
	defer feedbackStore.Close()

	// Semantic oracle
	semantic, capability, err := newOracle(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to configure semantic oracle: %v", err)
	}

	classifier := service.NewClassifier(1024, logger)
	matcher := newMatcher(cfg, classifier, semantic, logger)

	server := api.NewServer(api.Deps{
		Config:     cfg,
		Matcher:    matcher,
		Catalog:    catalog,
		Trials:     trialRepo,
		Feedback:   feedbackStore,
		Health:     db,
		Capability: capability,
		Importer:   ingest.NewCriteriaParser(classifier),
		Logger:     logger,
	})

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}

	logger.Info("Server stopped")
}

func newLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	if format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

func runMigrations(cfg domain.DatabaseConfig, logger *logrus.Logger) error {
	runner, err := database.NewMigrationRunner(database.ConnURL(cfg), cfg.MigrationsPath, logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	return runner.Up()
}

func newFeedbackStore(cfg domain.FeedbackConfig) (feedback.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return feedback.NewPostgresStoreFromURL(cfg.URL)
	default:
		return feedback.NewSQLiteStore(cfg.Path)
	}
}

func newOracle(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (service.SemanticEvaluator, oracle.Capability, error) {
	if !cfg.Oracle.Enabled {
		return nil, oracle.Unavailable(), nil
	}

	var generator oracle.Generator
	var err error
	switch cfg.Oracle.Backend {
	case "gemini":
		generator, err = oracle.NewGeminiGenerator(ctx, cfg.Oracle.APIKey, cfg.Oracle.Model)
	default:
		generator, err = oracle.NewOllamaGenerator(cfg.Oracle.BaseURL, cfg.Oracle.APIKey, cfg.Oracle.Model)
	}
	if err != nil {
		return nil, oracle.Unavailable(), err
	}

	generator = oracle.NewResilientGenerator(generator, oracle.ResilientOptions{
		Timeout:    cfg.Oracle.Timeout,
		RetryCount: cfg.Oracle.RetryCount,
		RateLimit:  cfg.Oracle.RateLimit,
		Burst:      cfg.Oracle.MaxConcurrent,
	}, logger)

	if cfg.Oracle.CacheResponses {
		cached, err := oracle.NewCachedGenerator(generator, cfg.Cache.RedisURL, cfg.Cache.DefaultTTL, logger)
		if err != nil {
			logger.WithError(err).Warn("Oracle response cache unavailable, continuing without it")
		} else {
			generator = cached
		}
	}

	capability := oracle.NewCapability(cfg.Oracle.Backend, cfg.Oracle.Model)
	return oracle.NewEvaluator(generator, capability, logger), capability, nil
}

func newMatcher(cfg *domain.Config, classifier *service.Classifier, semantic service.SemanticEvaluator, logger *logrus.Logger) *service.Matcher {
	return service.NewMatcher(
		service.NewPreFilter(logger),
		classifier,
		service.NewEvaluator(service.EvaluatorOptions{ECOGAssumedMax: cfg.Matching.ECOGAssumedMax}),
		service.NewAggregator(service.UndeterminedPolicy(cfg.Matching.UndeterminedPolicy)),
		semantic,
		service.MatcherOptions{
			ScoreThreshold:    cfg.Matching.ScoreThreshold,
			TopN:              cfg.Matching.TopN,
			MaxConcurrency:    cfg.Matching.MaxConcurrency,
			RunTimeout:        cfg.Matching.RunTimeout,
			SemanticMaxTrials: cfg.Oracle.MaxTrials,
		},
		logger,
	)
}
