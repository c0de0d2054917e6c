package main

import (
	"context"
	"errors"
	"net/http"
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
	"github.com/poorman/SynapseStrike/internal/server"
	"github.com/poorman/SynapseStrike/internal/session"
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
		// Degraded retrieval, not a fatal condition: the ledger still works.
		log.Warn().Err(err).Msg("Could not ensure memory collections")
	}
	cancel()

	embedder := embeddings.NewClient(cfg.EmbeddingsURL, cfg.EmbeddingDimension, requestTimeout)
	decisionLLM := llm.NewClient(cfg.LLMURL, cfg.LLMAPIKey, cfg.LLMModel, llmTimeout)
	criticLLM := llm.NewClient(cfg.CriticURL, cfg.LLMAPIKey, cfg.CriticModel, llmTimeout)

	decisionPipeline := pipeline.NewDecisionPipeline(decisionLLM, embedder, store, pipeline.DecisionLimits{
		MaxSimilarTrades:  cfg.MaxSimilarTrades,
		MaxRulesContext:   cfg.MaxRulesContext,
		MinRuleConfidence: cfg.MinRuleConfidence,
	})
	learningPipeline := pipeline.NewLearningPipeline(criticLLM, embedder, store, db)

	srv := server.New(decisionPipeline, learningPipeline, decisionLLM, session.NewStore(), cfg.LLMModel)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(),
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
	log.Info().Msg("Server stopped")
}
