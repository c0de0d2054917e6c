// Learner polls the learning queue and runs the learning pipeline for each
// claimed trade. It can run alongside the API server or replace its inline
// background learning entirely.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/poorman/SynapseStrike/internal/api/embeddings"
	"github.com/poorman/SynapseStrike/internal/api/llm"
	"github.com/poorman/SynapseStrike/internal/config"
	"github.com/poorman/SynapseStrike/internal/database"
	"github.com/poorman/SynapseStrike/internal/memory"
	"github.com/poorman/SynapseStrike/internal/metrics"
	"github.com/poorman/SynapseStrike/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(lvl)

	metrics.Init()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	requestTimeout := time.Duration(cfg.RequestTimeout) * time.Second
	llmTimeout := time.Duration(cfg.LLMTimeout) * time.Second

	store := memory.NewStore(memory.Options{
		URL:              cfg.QdrantURL,
		TradesCollection: cfg.TradesCollection,
		RulesCollection:  cfg.RulesCollection,
		Dimension:        cfg.EmbeddingDimension,
		Timeout:          requestTimeout,
	})

	bootstrapCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	if err := store.EnsureCollections(bootstrapCtx); err != nil {
		log.Warn().Err(err).Msg("Could not ensure memory collections")
	}
	cancel()

	embedder := embeddings.NewClient(cfg.EmbeddingsURL, cfg.EmbeddingDimension, requestTimeout)
	criticLLM := llm.NewClient(cfg.CriticURL, cfg.LLMAPIKey, cfg.CriticModel, llmTimeout)
	learningPipeline := pipeline.NewLearningPipeline(criticLLM, embedder, store, db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := time.Duration(cfg.LearnerInterval) * time.Second
	log.Info().Dur("interval", interval).Msg("Starting learner")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		drainQueue(ctx, db, learningPipeline)

		select {
		case <-ctx.Done():
			log.Info().Msg("Learner stopped")
			return
		case <-ticker.C:
		}
	}
}

// drainQueue claims and processes pending items until the queue is empty or
// the context is cancelled.
func drainQueue(ctx context.Context, db *database.DB, learning *pipeline.LearningPipeline) {
	for ctx.Err() == nil {
		item, err := db.ClaimNextPending(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to claim queue item")
			return
		}
		if item == nil {
			return
		}

		log.Info().Str("trade_id", item.TradeID).Int("attempts", item.Attempts).Msg("Processing queue item")
		learning.ExecuteLearning(ctx, item.TradeID)
	}
}
