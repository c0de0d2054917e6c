package embeddings

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	platformhttp "github.com/poorman/SynapseStrike/internal/platform/http"
)

// Client talks to a text-embeddings-inference service (BGE-style models).
type Client struct {
	httpClient *platformhttp.Client
	baseURL    string
	dimension  int
	logger     zerolog.Logger
}

// NewClient creates a new embeddings client. dimension is the vector size the
// service is configured for (BGE-large = 1024, default local model = 384).
func NewClient(baseURL string, dimension int, timeout time.Duration) *Client {
	return &Client{
		httpClient: platformhttp.NewClient(platformhttp.ClientOptions{Timeout: timeout}),
		baseURL:    strings.TrimRight(baseURL, "/"),
		dimension:  dimension,
		logger:     log.With().Str("component", "embeddings_client").Logger(),
	}
}

// Dimension returns the configured vector size.
func (c *Client) Dimension() int {
	return c.dimension
}

type embedRequest struct {
	Inputs any `json:"inputs"`
}

// Embed generates an embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	// The service returns a nested list even for a single input
	var vectors [][]float32
	if err := c.httpClient.PostJSON(ctx, c.baseURL+"/embed", embedRequest{Inputs: text}, &vectors); err != nil {
		c.logger.Error().Err(err).Msg("Embeddings request failed")
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed: empty response")
	}

	c.logger.Debug().Int("dimension", len(vectors[0])).Msg("Generated embedding")
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts, one vector per input.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	if err := c.httpClient.PostJSON(ctx, c.baseURL+"/embed", embedRequest{Inputs: texts}, &vectors); err != nil {
		c.logger.Error().Err(err).Msg("Batch embeddings request failed")
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed batch: got %d vectors for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}

// CosineSimilarity calculates cosine similarity between two vectors.
// Returns 0 for mismatched or zero-magnitude vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
