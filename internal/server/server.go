// Package server exposes the HTTP API: the native /api surface, health and
// metrics, and an OpenAI-compatible facade for chat clients.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/poorman/SynapseStrike/internal/metrics"
	"github.com/poorman/SynapseStrike/internal/pipeline"
	"github.com/poorman/SynapseStrike/internal/session"
	"github.com/poorman/SynapseStrike/models"
)

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	decision  *pipeline.DecisionPipeline
	learning  *pipeline.LearningPipeline
	llm       models.LLMClient
	sessions  *session.Store
	modelName string
	logger    zerolog.Logger
}

// New wires the server from its collaborators. modelName is what the
// OpenAI-compatible surface reports from /v1/models.
func New(decision *pipeline.DecisionPipeline, learning *pipeline.LearningPipeline, llm models.LLMClient, sessions *session.Store, modelName string) *Server {
	return &Server{
		decision:  decision,
		learning:  learning,
		llm:       llm,
		sessions:  sessions,
		modelName: modelName,
		logger:    log.With().Str("component", "server").Logger(),
	}
}

// Handler builds the gin router with all routes registered.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		api.POST("/decision", s.handleDecision)
		api.POST("/trade/closed", s.handleTradeClosed)
		api.POST("/chat", s.handleChat)
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/chat/completions", s.handleChatCompletions)
		v1.GET("/models", s.handleModels)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
