package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/poorman/SynapseStrike/internal/metrics"
	platformhttp "github.com/poorman/SynapseStrike/internal/platform/http"
	"github.com/poorman/SynapseStrike/models"
)

// Similarity floors applied at the store layer.
const (
	TradeMinScore = 0.7
	RuleMinScore  = 0.6
)

// Store is a Qdrant-backed vector index over the trade and rule memory
// collections. It is derived state: losing it degrades retrieval quality but
// never loses ledger data.
type Store struct {
	httpClient       *platformhttp.Client
	baseURL          string
	tradesCollection string
	rulesCollection  string
	dimension        int
	logger           zerolog.Logger
}

// Options configures a Store.
type Options struct {
	URL              string
	TradesCollection string
	RulesCollection  string
	Dimension        int
	Timeout          time.Duration
}

// NewStore creates a Qdrant client for the two memory collections.
func NewStore(opts Options) *Store {
	return &Store{
		httpClient:       platformhttp.NewClient(platformhttp.ClientOptions{Timeout: opts.Timeout}),
		baseURL:          strings.TrimRight(opts.URL, "/"),
		tradesCollection: opts.TradesCollection,
		rulesCollection:  opts.RulesCollection,
		dimension:        opts.Dimension,
		logger:           log.With().Str("component", "memory_store").Logger(),
	}
}

// Qdrant REST request/response shapes

type fieldMatch struct {
	Value any `json:"value"`
}

type fieldCondition struct {
	Key   string     `json:"key"`
	Match fieldMatch `json:"match"`
}

type searchFilter struct {
	Must []fieldCondition `json:"must"`
}

type point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload any       `json:"payload"`
}

type upsertRequest struct {
	Points []point `json:"points"`
}

type searchRequest struct {
	Vector         []float32     `json:"vector"`
	Filter         *searchFilter `json:"filter,omitempty"`
	Limit          int           `json:"limit"`
	ScoreThreshold float64       `json:"score_threshold"`
	WithPayload    bool          `json:"with_payload"`
}

type searchHit struct {
	ID      string          `json:"id"`
	Score   float64         `json:"score"`
	Payload json.RawMessage `json:"payload"`
}

type searchResponse struct {
	Result []searchHit `json:"result"`
}

type deleteRequest struct {
	Filter searchFilter `json:"filter"`
}

type collectionsResponse struct {
	Result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	} `json:"result"`
}

type createCollectionRequest struct {
	Vectors struct {
		Size     int    `json:"size"`
		Distance string `json:"distance"`
	} `json:"vectors"`
}

// EnsureCollections creates the trade and rule collections if they don't
// exist. Both use cosine distance with the configured dimension.
func (s *Store) EnsureCollections(ctx context.Context) error {
	var existing collectionsResponse
	if err := s.httpClient.GetJSON(ctx, s.baseURL+"/collections", &existing); err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}

	present := make(map[string]bool)
	for _, c := range existing.Result.Collections {
		present[c.Name] = true
	}

	for _, name := range []string{s.tradesCollection, s.rulesCollection} {
		if present[name] {
			continue
		}
		var req createCollectionRequest
		req.Vectors.Size = s.dimension
		req.Vectors.Distance = "Cosine"
		if err := s.httpClient.PutJSON(ctx, s.baseURL+"/collections/"+name, req, nil); err != nil {
			return fmt.Errorf("creating collection %s: %w", name, err)
		}
		s.logger.Info().Str("collection", name).Int("dimension", s.dimension).Msg("Created collection")
	}
	return nil
}

// StoreTradeMemory upserts a trade embedding with its metadata payload and
// returns the generated point id.
func (s *Store) StoreTradeMemory(ctx context.Context, embedding []float32, payload models.TradeMemoryPayload) (string, error) {
	pointID := uuid.NewString()
	req := upsertRequest{Points: []point{{ID: pointID, Vector: embedding, Payload: payload}}}

	url := fmt.Sprintf("%s/collections/%s/points", s.baseURL, s.tradesCollection)
	if err := s.httpClient.PutJSON(ctx, url, req, nil); err != nil {
		return "", fmt.Errorf("storing trade memory: %w", err)
	}

	metrics.MemoryWritesTotal.WithLabelValues(s.tradesCollection).Inc()
	s.logger.Info().Str("trade_id", payload.TradeID).Str("point_id", pointID).Msg("Stored trade memory")
	return pointID, nil
}

// StoreRuleMemory upserts a rule embedding with its metadata payload and
// returns the generated point id.
func (s *Store) StoreRuleMemory(ctx context.Context, embedding []float32, payload models.RuleMemoryPayload) (string, error) {
	pointID := uuid.NewString()
	req := upsertRequest{Points: []point{{ID: pointID, Vector: embedding, Payload: payload}}}

	url := fmt.Sprintf("%s/collections/%s/points", s.baseURL, s.rulesCollection)
	if err := s.httpClient.PutJSON(ctx, url, req, nil); err != nil {
		return "", fmt.Errorf("storing rule memory: %w", err)
	}

	metrics.MemoryWritesTotal.WithLabelValues(s.rulesCollection).Inc()
	s.logger.Info().Str("rule_id", payload.RuleID).Str("point_id", pointID).Msg("Stored rule memory")
	return pointID, nil
}

// SearchSimilarTrades returns up to limit past trades ranked by descending
// similarity, optionally filtered by symbol, excluding scores below
// TradeMinScore.
func (s *Store) SearchSimilarTrades(ctx context.Context, embedding []float32, symbol string, limit int) ([]models.SimilarTrade, error) {
	req := searchRequest{
		Vector:         embedding,
		Limit:          limit,
		ScoreThreshold: TradeMinScore,
		WithPayload:    true,
	}
	if symbol != "" {
		req.Filter = &searchFilter{Must: []fieldCondition{
			{Key: "symbol", Match: fieldMatch{Value: symbol}},
		}}
	}

	var resp searchResponse
	url := fmt.Sprintf("%s/collections/%s/points/search", s.baseURL, s.tradesCollection)
	if err := s.httpClient.PostJSON(ctx, url, req, &resp); err != nil {
		return nil, fmt.Errorf("searching trade memory: %w", err)
	}

	trades := make([]models.SimilarTrade, 0, len(resp.Result))
	for _, hit := range resp.Result {
		var trade models.SimilarTrade
		if err := json.Unmarshal(hit.Payload, &trade); err != nil {
			s.logger.Warn().Err(err).Str("point_id", hit.ID).Msg("Skipping malformed trade payload")
			continue
		}
		trade.ID = hit.ID
		trade.Score = hit.Score
		trades = append(trades, trade)
	}

	s.logger.Debug().Int("count", len(trades)).Str("symbol", symbol).Msg("Found similar trades")
	return trades, nil
}

// SearchRelevantRules returns up to limit active rules ranked by descending
// similarity, optionally filtered by rule type, excluding scores below
// minScore.
func (s *Store) SearchRelevantRules(ctx context.Context, embedding []float32, ruleType string, limit int, minScore float64) ([]models.RelevantRule, error) {
	conditions := []fieldCondition{
		{Key: "is_active", Match: fieldMatch{Value: true}},
	}
	if ruleType != "" {
		conditions = append(conditions, fieldCondition{Key: "rule_type", Match: fieldMatch{Value: ruleType}})
	}

	req := searchRequest{
		Vector:         embedding,
		Filter:         &searchFilter{Must: conditions},
		Limit:          limit,
		ScoreThreshold: minScore,
		WithPayload:    true,
	}

	var resp searchResponse
	url := fmt.Sprintf("%s/collections/%s/points/search", s.baseURL, s.rulesCollection)
	if err := s.httpClient.PostJSON(ctx, url, req, &resp); err != nil {
		return nil, fmt.Errorf("searching rule memory: %w", err)
	}

	rules := make([]models.RelevantRule, 0, len(resp.Result))
	for _, hit := range resp.Result {
		var rule models.RelevantRule
		if err := json.Unmarshal(hit.Payload, &rule); err != nil {
			s.logger.Warn().Err(err).Str("point_id", hit.ID).Msg("Skipping malformed rule payload")
			continue
		}
		rule.ID = hit.ID
		rule.Score = hit.Score
		rules = append(rules, rule)
	}

	s.logger.Debug().Int("count", len(rules)).Msg("Found relevant rules")
	return rules, nil
}

// DeleteTradeMemory removes all points whose payload references the trade.
func (s *Store) DeleteTradeMemory(ctx context.Context, tradeID string) error {
	req := deleteRequest{Filter: searchFilter{Must: []fieldCondition{
		{Key: "trade_id", Match: fieldMatch{Value: tradeID}},
	}}}

	url := fmt.Sprintf("%s/collections/%s/points/delete", s.baseURL, s.tradesCollection)
	if err := s.httpClient.PostJSON(ctx, url, req, nil); err != nil {
		return fmt.Errorf("deleting trade memory: %w", err)
	}

	s.logger.Info().Str("trade_id", tradeID).Msg("Deleted trade memory")
	return nil
}

// DeleteRuleMemory removes all points whose payload references the rule.
func (s *Store) DeleteRuleMemory(ctx context.Context, ruleID string) error {
	req := deleteRequest{Filter: searchFilter{Must: []fieldCondition{
		{Key: "rule_id", Match: fieldMatch{Value: ruleID}},
	}}}

	url := fmt.Sprintf("%s/collections/%s/points/delete", s.baseURL, s.rulesCollection)
	if err := s.httpClient.PostJSON(ctx, url, req, nil); err != nil {
		return fmt.Errorf("deleting rule memory: %w", err)
	}

	s.logger.Info().Str("rule_id", ruleID).Msg("Deleted rule memory")
	return nil
}
