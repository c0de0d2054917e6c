package pipeline

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
	"github.com/poorman/SynapseStrike/internal/prompts"
	"github.com/poorman/SynapseStrike/models"
)

// Critic and extraction sampling parameters.
const (
	critiqueTemperature   = 0.4
	critiqueMaxTokens     = 2048
	extractionTemperature = 0.3
	extractionMaxTokens   = 1024
)

// LearningPipeline turns a closed trade into durable knowledge: a critique,
// extracted rules, memory entries, and an updated statistic row.
type LearningPipeline struct {
	critic     models.LLMClient
	embeddings models.EmbeddingsClient
	memory     models.MemoryStore
	ledger     models.Ledger
	logger     zerolog.Logger
}

// NewLearningPipeline wires the pipeline from its collaborators. The critic
// may point at the same endpoint as the decision model.
func NewLearningPipeline(critic models.LLMClient, embeddings models.EmbeddingsClient, mem models.MemoryStore, ledger models.Ledger) *LearningPipeline {
	return &LearningPipeline{
		critic:     critic,
		embeddings: embeddings,
		memory:     mem,
		ledger:     ledger,
		logger:     log.With().Str("component", "learning_pipeline").Logger(),
	}
}

// RecordTrade persists the closed trade and enqueues it for learning. It
// returns the internal trade id used by ExecuteLearning.
func (p *LearningPipeline) RecordTrade(ctx context.Context, req *models.TradeClosedRequest) (string, error) {
	now := time.Now().UTC()
	trade := &models.Trade{
		TradeID:    req.TradeID,
		Symbol:     contextString(req.Context, "symbol", "UNKNOWN"),
		Timeframe:  contextString(req.Context, "timeframe", "1m"),
		Direction:  contextString(req.Context, "direction", models.DirectionLong),
		EntryPrice: req.Entry,
		ExitPrice:  req.Exit,
		Result:     req.Result,
		ClosedAt:   &now,
	}
	if req.Entry != 0 {
		trade.ResultPercent = (req.Exit - req.Entry) / req.Entry * 100
	}
	if decision, ok := req.Context["decision"].(string); ok {
		trade.Decision = decision
	}
	if conf, ok := coerceFloat(req.Context["confidence"]); ok {
		trade.Confidence = conf
	}
	if reasoning, ok := req.Context["reasoning"].(string); ok {
		trade.Reasoning = reasoning
	}
	if mc, ok := req.Context["market_context"].(map[string]any); ok {
		trade.MarketContext = mc
	}
	trade.TradeContext = req.Context

	if err := p.ledger.RecordTrade(ctx, trade); err != nil {
		return "", fmt.Errorf("recording trade: %w", err)
	}

	metrics.TradesRecordedTotal.Inc()
	return trade.ID, nil
}

// ClaimAndExecuteLearning claims the trade's queue item before running the
// learning flow. The claim is what lets the inline path coexist with a
// polling learner: only one of them wins the PENDING item, the other skips.
func (p *LearningPipeline) ClaimAndExecuteLearning(ctx context.Context, tradeID string) {
	claimed, err := p.ledger.ClaimPending(ctx, tradeID)
	if err != nil {
		p.logger.Error().Err(err).Str("trade_id", tradeID).Msg("Failed to claim queue item")
		return
	}
	if !claimed {
		p.logger.Debug().Str("trade_id", tradeID).Msg("Queue item already claimed, skipping")
		return
	}
	p.ExecuteLearning(ctx, tradeID)
}

// ExecuteLearning runs the full learning flow for a recorded trade. It never
// returns an error to the caller's control flow beyond reporting: any failure
// is absorbed into the queue item's FAILED state so the serving path stays
// unaffected.
func (p *LearningPipeline) ExecuteLearning(ctx context.Context, tradeID string) {
	start := time.Now()
	defer func() { metrics.ObservePipeline("learning", time.Since(start)) }()

	if err := p.learn(ctx, tradeID); err != nil {
		p.logger.Error().Err(err).Str("trade_id", tradeID).Msg("Learning failed")
		if markErr := p.ledger.MarkLearningFailed(ctx, tradeID, err.Error()); markErr != nil {
			p.logger.Error().Err(markErr).Str("trade_id", tradeID).Msg("Failed to mark learning failure")
		}
		metrics.RecordLearningRun("failed")
	}
}

func (p *LearningPipeline) learn(ctx context.Context, tradeID string) error {
	trade, err := p.ledger.GetTrade(ctx, tradeID)
	if err != nil {
		return fmt.Errorf("loading trade: %w", err)
	}
	if trade == nil {
		p.logger.Warn().Str("trade_id", tradeID).Msg("Trade not found, skipping learning")
		metrics.RecordLearningRun("skipped")
		return nil
	}

	summary := createTradeSummary(trade)

	critique := p.critiqueTrade(ctx, summary)
	extracted := p.extractRules(ctx, summary, critique)

	p.storeInMemory(ctx, trade, summary, extracted)

	rules := make([]models.Rule, 0, len(extracted))
	for _, er := range extracted {
		if strings.TrimSpace(er.RuleText) == "" {
			continue
		}
		confidence := er.Confidence
		if confidence == 0 {
			confidence = 0.5
		}
		rules = append(rules, models.Rule{
			RuleID:        fmt.Sprintf("rule_%s_%s", trade.ID, uuid.NewString()[:8]),
			RuleText:      er.RuleText,
			RuleType:      normalizeRuleType(er.RuleType),
			Confidence:    confidence,
			SourceTradeID: trade.ID,
			IsActive:      true,
		})
	}

	critiqueJSON, err := json.Marshal(critique)
	if err != nil {
		return fmt.Errorf("encoding critique: %w", err)
	}
	trade.Critique = string(critiqueJSON)

	extractedJSON, err := json.Marshal(extracted)
	if err != nil {
		return fmt.Errorf("encoding extracted rules: %w", err)
	}
	trade.ExtractedRules = extractedJSON

	if err := p.ledger.FinalizeLearning(ctx, &models.LearningUpdate{Trade: trade, Rules: rules}); err != nil {
		return fmt.Errorf("finalizing learning: %w", err)
	}

	metrics.RecordLearningRun("completed")
	p.logger.Info().
		Str("trade_id", trade.TradeID).
		Str("result_type", trade.ResultType()).
		Int("rules", len(rules)).
		Msg("Learning completed")
	return nil
}

// critiqueTrade asks the critic model for a scored assessment. When the reply
// cannot be parsed as JSON, the raw text becomes the summary and the score
// defaults to 0.5 so learning always proceeds with something.
func (p *LearningPipeline) critiqueTrade(ctx context.Context, summary string) models.Critique {
	messages := prompts.BuildCritiquePrompt(summary)

	raw, err := p.critic.GetJSONResponse(ctx, messages, critiqueTemperature, critiqueMaxTokens)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Critique JSON failed, trying raw text")
		text, textErr := p.critic.GetTextResponse(ctx, messages, critiqueTemperature, critiqueMaxTokens)
		if textErr != nil {
			p.logger.Warn().Err(textErr).Msg("Critique unavailable")
			text = "Critique unavailable"
		}
		return models.Critique{
			Summary:        text,
			WhatWentWell:   []string{},
			WhatWentWrong:  []string{},
			LessonsLearned: []string{},
			OverallScore:   0.5,
		}
	}

	critique := models.Critique{
		WhatWentWell:   []string{},
		WhatWentWrong:  []string{},
		LessonsLearned: []string{},
		OverallScore:   0.5,
	}
	if s, ok := raw["summary"].(string); ok {
		critique.Summary = s
	}
	critique.WhatWentWell = stringList(raw["what_went_well"])
	critique.WhatWentWrong = stringList(raw["what_went_wrong"])
	critique.LessonsLearned = stringList(raw["lessons_learned"])
	if score, ok := coerceFloat(raw["overall_score"]); ok {
		critique.OverallScore = clamp01(score)
	}
	return critique
}

// extractRules asks the critic for actionable rules. Extraction is best
// effort: any failure yields an empty list, never an error.
func (p *LearningPipeline) extractRules(ctx context.Context, summary string, critique models.Critique) []models.ExtractedRule {
	messages := prompts.BuildRuleExtractionPrompt(summary, critique)

	raw, err := p.critic.GetJSONResponse(ctx, messages, extractionTemperature, extractionMaxTokens)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Rule extraction failed, continuing without rules")
		return nil
	}

	items, ok := raw["rules"].([]any)
	if !ok {
		return nil
	}

	rules := make([]models.ExtractedRule, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var rule models.ExtractedRule
		if text, ok := entry["rule_text"].(string); ok {
			rule.RuleText = text
		}
		if rule.RuleText == "" {
			continue
		}
		if t, ok := entry["rule_type"].(string); ok {
			rule.RuleType = t
		}
		if c, ok := coerceFloat(entry["confidence"]); ok {
			rule.Confidence = clamp01(c)
		} else {
			rule.Confidence = 0.5
		}
		rules = append(rules, rule)
	}
	return rules
}

// storeInMemory writes the trade embedding and one embedding per extracted
// rule. The trade memory is keyed on the full trade summary, the same text
// the critic saw. Memory is derived state, so failures are logged and
// swallowed.
func (p *LearningPipeline) storeInMemory(ctx context.Context, trade *models.Trade, summary string, extracted []models.ExtractedRule) {
	embedding, err := p.embeddings.Embed(ctx, summary)
	if err != nil {
		p.logger.Warn().Err(err).Str("trade_id", trade.TradeID).Msg("Trade embedding failed, skipping memory write")
	} else {
		_, err = p.memory.StoreTradeMemory(ctx, embedding, models.TradeMemoryPayload{
			TradeID:    trade.ID,
			Symbol:     trade.Symbol,
			Timeframe:  trade.Timeframe,
			Direction:  trade.Direction,
			Result:     trade.Result,
			ResultType: trade.ResultType(),
		})
		if err != nil {
			p.logger.Warn().Err(err).Str("trade_id", trade.TradeID).Msg("Trade memory write failed")
		}
	}

	for _, rule := range extracted {
		if strings.TrimSpace(rule.RuleText) == "" {
			continue
		}
		ruleEmbedding, err := p.embeddings.Embed(ctx, rule.RuleText)
		if err != nil {
			p.logger.Warn().Err(err).Msg("Rule embedding failed, skipping memory write")
			continue
		}
		_, err = p.memory.StoreRuleMemory(ctx, ruleEmbedding, models.RuleMemoryPayload{
			RuleID:        uuid.NewString(),
			RuleText:      rule.RuleText,
			RuleType:      normalizeRuleType(rule.RuleType),
			Confidence:    rule.Confidence,
			SourceTradeID: trade.ID,
			IsActive:      true,
		})
		if err != nil {
			p.logger.Warn().Err(err).Msg("Rule memory write failed")
		}
	}
}

// createTradeSummary renders the trade as the multi-line text block shared by
// the critique and extraction prompts.
func createTradeSummary(trade *models.Trade) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Trade ID: %s\n", trade.TradeID)
	fmt.Fprintf(&b, "Symbol: %s\n", trade.Symbol)
	fmt.Fprintf(&b, "Timeframe: %s\n", trade.Timeframe)
	fmt.Fprintf(&b, "Direction: %s\n", trade.Direction)
	fmt.Fprintf(&b, "Entry Price: %.8g\n", trade.EntryPrice)
	fmt.Fprintf(&b, "Exit Price: %.8g\n", trade.ExitPrice)
	fmt.Fprintf(&b, "Result: %.2f (%s)\n", trade.Result, trade.ResultType())
	fmt.Fprintf(&b, "Result Percent: %.2f%%\n", trade.ResultPercent)

	if trade.Decision != "" {
		fmt.Fprintf(&b, "Original Decision: %s (confidence %.2f)\n", trade.Decision, trade.Confidence)
	}
	if trade.Reasoning != "" {
		fmt.Fprintf(&b, "Original Reasoning: %s\n", trade.Reasoning)
	}

	if len(trade.MarketContext) > 0 {
		if mc, err := json.MarshalIndent(trade.MarketContext, "", "  "); err == nil {
			fmt.Fprintf(&b, "\nMarket Context at Entry:\n%s\n", mc)
		}
	}
	if len(trade.TradeContext) > 0 {
		if tc, err := json.MarshalIndent(trade.TradeContext, "", "  "); err == nil {
			fmt.Fprintf(&b, "\nTrade Context:\n%s\n", tc)
		}
	}

	return b.String()
}

// normalizeRuleType maps free-form model output onto the known rule types,
// defaulting to PATTERN.
func normalizeRuleType(t string) string {
	switch strings.ToUpper(strings.TrimSpace(t)) {
	case models.RuleTypeEntry:
		return models.RuleTypeEntry
	case models.RuleTypeExit:
		return models.RuleTypeExit
	case models.RuleTypeRisk:
		return models.RuleTypeRisk
	case models.RuleTypeMistake:
		return models.RuleTypeMistake
	default:
		return models.RuleTypePattern
	}
}

func contextString(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
