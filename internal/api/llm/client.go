package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/poorman/SynapseStrike/internal/metrics"
	"github.com/poorman/SynapseStrike/models"
)

// Client wraps an OpenAI-compatible chat completion endpoint
type Client struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

// NewClient creates a client for the given OpenAI-compatible endpoint.
// baseURL points at the /v1 root of the service; apiKey may be empty for
// local deployments.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: log.With().Str("component", "llm_client").Str("model", model).Logger(),
	}
}

// GetTextResponse sends the message array and returns the content of the
// first choice.
func (c *Client) GetTextResponse(ctx context.Context, messages []models.ChatMessage, temperature float32, maxTokens int) (string, error) {
	c.logger.Debug().Int("messages", len(messages)).Msg("Sending chat completion request")

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	metrics.RecordAICall(c.model, time.Since(start), err != nil)

	if err != nil {
		c.logger.Error().Err(err).Msg("Chat completion request failed")
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		c.logger.Warn().Msg("Completion returned empty choices")
		return "", fmt.Errorf("chat completion: empty choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// GetJSONResponse sends the message array and parses the content as a JSON
// object, falling back to the first {...} substring in the content. A parse
// failure is returned as an error so the caller can degrade to the text path.
func (c *Client) GetJSONResponse(ctx context.Context, messages []models.ChatMessage, temperature float32, maxTokens int) (map[string]any, error) {
	content, err := c.GetTextResponse(ctx, messages, temperature, maxTokens)
	if err != nil {
		return nil, err
	}

	parsed, err := DecodeJSONObject(content)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Completion content is not valid JSON")
		return nil, err
	}
	return parsed, nil
}

func toOpenAIMessages(messages []models.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
