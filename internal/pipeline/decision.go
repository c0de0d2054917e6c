// Package pipeline contains the two core flows: decision (retrieve context,
// ask the model, normalize) and learning (critique, extract rules, remember).
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/poorman/SynapseStrike/internal/memory"
	"github.com/poorman/SynapseStrike/internal/metrics"
	"github.com/poorman/SynapseStrike/internal/prompts"
	"github.com/poorman/SynapseStrike/models"
)

// Decision model sampling parameters.
const (
	decisionTemperature = 0.3
	decisionMaxTokens   = 1024
)

var confidencePattern = regexp.MustCompile(`confidence[:\s]+(\d+\.?\d*)`)

// DecisionLimits bounds how much retrieved context enters the prompt.
type DecisionLimits struct {
	MaxSimilarTrades  int
	MaxRulesContext   int
	MinRuleConfidence float64
}

// DecisionPipeline answers "should I take this trade?" by retrieving similar
// past trades and learned rules, then asking the decision model.
type DecisionPipeline struct {
	llm        models.LLMClient
	embeddings models.EmbeddingsClient
	memory     models.MemoryStore
	limits     DecisionLimits
	logger     zerolog.Logger
}

// NewDecisionPipeline wires the pipeline from its collaborators.
func NewDecisionPipeline(llm models.LLMClient, embeddings models.EmbeddingsClient, mem models.MemoryStore, limits DecisionLimits) *DecisionPipeline {
	return &DecisionPipeline{
		llm:        llm,
		embeddings: embeddings,
		memory:     mem,
		limits:     limits,
		logger:     log.With().Str("component", "decision_pipeline").Logger(),
	}
}

// Execute runs the full decision flow. Embedding and memory failures abort
// the request (degrading to a safe verdict is the caller's policy); an
// unparseable model reply degrades through the text-parsing fallback instead.
// The result is always normalized: decision is TAKE_TRADE or NO_TRADE and
// confidence is within [0, 1].
func (p *DecisionPipeline) Execute(ctx context.Context, req *models.DecisionRequest) (*models.DecisionResult, error) {
	start := time.Now()
	defer func() { metrics.ObservePipeline("decision", time.Since(start)) }()

	contextText := formatContextForEmbedding(req.Symbol, req.Timeframe, req.MarketContext)
	embedding, err := p.embeddings.Embed(ctx, contextText)
	if err != nil {
		return nil, fmt.Errorf("embedding market context: %w", err)
	}

	similarTrades, err := p.memory.SearchSimilarTrades(ctx, embedding, req.Symbol, p.limits.MaxSimilarTrades)
	if err != nil {
		return nil, fmt.Errorf("searching similar trades: %w", err)
	}

	relevantRules, err := p.memory.SearchRelevantRules(ctx, embedding, "", p.limits.MaxRulesContext, memory.RuleMinScore)
	if err != nil {
		return nil, fmt.Errorf("searching rules: %w", err)
	}
	relevantRules = filterRulesByConfidence(relevantRules, p.limits.MinRuleConfidence)

	question := req.Question
	if question == "" {
		question = "Should I take this trade?"
	}
	messages := prompts.BuildDecisionPrompt(req.Symbol, req.Timeframe, req.MarketContext, question, similarTrades, relevantRules)

	var result *models.DecisionResult
	raw, err := p.llm.GetJSONResponse(ctx, messages, decisionTemperature, decisionMaxTokens)
	if err != nil {
		p.logger.Warn().Err(err).Msg("JSON response failed, falling back to text parsing")
		text, textErr := p.llm.GetTextResponse(ctx, messages, decisionTemperature, decisionMaxTokens)
		if textErr != nil {
			return nil, fmt.Errorf("decision model call: %w", textErr)
		}
		result = parseTextResponse(text)
	} else {
		result = normalizeResponse(raw)
	}

	metrics.RecordDecision(result.Decision)
	p.logger.Info().
		Str("symbol", req.Symbol).
		Str("decision", result.Decision).
		Float64("confidence", result.Confidence).
		Int("similar_trades", len(similarTrades)).
		Int("rules", len(relevantRules)).
		Msg("Decision made")

	return result, nil
}

// formatContextForEmbedding flattens the request into the deterministic text
// form used for all memory embeddings. Well-known indicator keys come first,
// remaining scalar keys follow sorted, nested values are skipped.
func formatContextForEmbedding(symbol, timeframe string, marketContext map[string]any) string {
	parts := []string{
		fmt.Sprintf("Symbol: %s", symbol),
		fmt.Sprintf("Timeframe: %s", timeframe),
	}

	known := []string{"current_price", "trend", "rsi", "volume"}
	seen := make(map[string]bool, len(known))
	for _, key := range known {
		if value, ok := marketContext[key]; ok {
			parts = append(parts, fmt.Sprintf("%s: %v", key, value))
			seen[key] = true
		}
	}

	rest := make([]string, 0, len(marketContext))
	for key := range marketContext {
		if seen[key] {
			continue
		}
		rest = append(rest, key)
	}
	sort.Strings(rest)
	for _, key := range rest {
		switch marketContext[key].(type) {
		case map[string]any, []any:
			continue // Scalars only
		}
		parts = append(parts, fmt.Sprintf("%s: %v", key, marketContext[key]))
	}

	return strings.Join(parts, " | ")
}

func filterRulesByConfidence(rules []models.RelevantRule, minConfidence float64) []models.RelevantRule {
	filtered := rules[:0]
	for _, rule := range rules {
		if rule.Confidence >= minConfidence {
			filtered = append(filtered, rule)
		}
	}
	return filtered
}

// normalizeResponse coerces a decoded model reply into a valid result.
// Unknown decisions become NO_TRADE, confidence is clamped to [0, 1] with a
// 0.5 default, and a missing reason falls back to the "reasoning" key.
func normalizeResponse(raw map[string]any) *models.DecisionResult {
	result := &models.DecisionResult{
		Decision:   models.DecisionNoTrade,
		Confidence: 0.5,
		Reason:     "No reasoning provided",
	}

	if d, ok := raw["decision"].(string); ok {
		if upper := strings.ToUpper(strings.TrimSpace(d)); upper == models.DecisionTakeTrade || upper == models.DecisionNoTrade {
			result.Decision = upper
		}
	}

	if c, ok := raw["confidence"]; ok {
		if v, ok := coerceFloat(c); ok {
			result.Confidence = clamp01(v)
		}
	}

	if r, ok := raw["reason"].(string); ok && r != "" {
		result.Reason = r
	} else if r, ok := raw["reasoning"].(string); ok && r != "" {
		result.Reason = r
	}

	return result
}

// parseTextResponse salvages a decision from free-form model output.
func parseTextResponse(text string) *models.DecisionResult {
	lower := strings.ToLower(text)

	decision := models.DecisionNoTrade
	if strings.Contains(lower, "take_trade") || strings.Contains(lower, "take trade") {
		decision = models.DecisionTakeTrade
	}

	confidence := 0.5
	if m := confidencePattern.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			if v > 1.0 {
				v = 1.0
			}
			confidence = v
		}
	}

	reason := strings.TrimSpace(text)
	if runes := []rune(reason); len(runes) > 500 {
		reason = string(runes[:500])
	}

	return &models.DecisionResult{
		Decision:   decision,
		Confidence: confidence,
		Reason:     reason,
	}
}

func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
