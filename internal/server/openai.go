package server

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/poorman/SynapseStrike/models"
)

// tradingKeywords route a completion request into the decision pipeline
// instead of plain chat.
var tradingKeywords = []string{
	"trade", "buy", "sell", "position", "entry", "exit", "should i", "take trade",
}

var symbolPattern = regexp.MustCompile(`\b([A-Z]{2,10})\b`)

type completionRequest struct {
	Model    string               `json:"model"`
	Messages []models.ChatMessage `json:"messages" binding:"required"`
}

type completionChoice struct {
	Index        int                `json:"index"`
	Message      models.ChatMessage `json:"message"`
	FinishReason string             `json:"finish_reason"`
}

type completionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type completionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
	Usage   completionUsage    `json:"usage"`
}

// handleChatCompletions serves the OpenAI-compatible surface. Messages that
// look like trading questions are answered by the decision pipeline; anything
// else is forwarded to the model as-is.
func (s *Server) handleChatCompletions(c *gin.Context) {
	var req completionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error(), "type": "invalid_request_error"}})
		return
	}
	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "messages must not be empty", "type": "invalid_request_error"}})
		return
	}

	lastUser := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUser = req.Messages[i].Content
			break
		}
	}

	var reply string
	if isTradingQuestion(lastUser) {
		result, err := s.decision.Execute(c.Request.Context(), &models.DecisionRequest{
			Symbol:        extractSymbol(lastUser),
			Timeframe:     "1m",
			MarketContext: map[string]any{},
			Question:      lastUser,
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("Decision pipeline failed on completion request")
			reply = fmt.Sprintf("Decision: NO_TRADE\nConfidence: 0%%\nReason: Pipeline error: %s", err.Error())
		} else {
			reply = fmt.Sprintf("Decision: %s\nConfidence: %.0f%%\nReason: %s",
				result.Decision, result.Confidence*100, result.Reason)
		}
	} else {
		var err error
		reply, err = s.llm.GetTextResponse(c.Request.Context(), req.Messages, 0.7, 1024)
		if err != nil {
			s.logger.Error().Err(err).Msg("Chat completion failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"message": err.Error(), "type": "upstream_error"}})
			return
		}
	}

	promptWords := 0
	for _, m := range req.Messages {
		promptWords += len(strings.Fields(m.Content))
	}
	completionWords := len(strings.Fields(reply))

	c.JSON(http.StatusOK, completionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   s.modelName,
		Choices: []completionChoice{{
			Index:        0,
			Message:      models.ChatMessage{Role: "assistant", Content: reply},
			FinishReason: "stop",
		}},
		Usage: completionUsage{
			PromptTokens:     promptWords,
			CompletionTokens: completionWords,
			TotalTokens:      promptWords + completionWords,
		},
	})
}

// handleModels reports the single configured model in OpenAI list format.
func (s *Server) handleModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data": []gin.H{{
			"id":       s.modelName,
			"object":   "model",
			"created":  time.Now().Unix(),
			"owned_by": "synapsestrike",
		}},
	})
}

func isTradingQuestion(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range tradingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// extractSymbol pulls the first uppercase ticker-looking token out of the
// question, or UNKNOWN when none is present.
func extractSymbol(text string) string {
	if m := symbolPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return "UNKNOWN"
}
