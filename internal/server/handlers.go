package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/poorman/SynapseStrike/models"
)

// learningTimeout bounds one background learning run kicked off by
// handleTradeClosed.
const learningTimeout = 5 * time.Minute

// handleDecision runs the decision pipeline. A pipeline failure degrades to a
// conservative NO_TRADE answer instead of an error status, so callers always
// get an actionable verdict.
func (s *Server) handleDecision(c *gin.Context) {
	var req models.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.decision.Execute(c.Request.Context(), &req)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", req.Symbol).Msg("Decision pipeline failed")
		c.JSON(http.StatusOK, models.DecisionResult{
			Decision:   models.DecisionNoTrade,
			Confidence: 0,
			Reason:     "Pipeline error: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleTradeClosed records the trade and kicks learning off in the
// background. The response never waits on the critic model.
func (s *Server) handleTradeClosed(c *gin.Context) {
	var req models.TradeClosedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := s.learning.RecordTrade(c.Request.Context(), &req)
	if err != nil {
		s.logger.Error().Err(err).Str("trade_id", req.TradeID).Msg("Failed to record trade")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), learningTimeout)
		defer cancel()
		s.learning.ClaimAndExecuteLearning(ctx, id)
	}()

	c.JSON(http.StatusOK, gin.H{"status": "learning_queued", "id": id})
}

type chatRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

// handleChat is plain history-backed chat with the decision model, without
// the retrieval context.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userMsg := models.ChatMessage{Role: "user", Content: req.Message}
	messages := append(s.sessions.History(req.SessionID), userMsg)

	reply, err := s.llm.GetTextResponse(c.Request.Context(), messages, 0.7, 1024)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", req.SessionID).Msg("Chat completion failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	s.sessions.Append(req.SessionID, userMsg, models.ChatMessage{Role: "assistant", Content: reply})
	c.JSON(http.StatusOK, gin.H{"response": reply})
}
