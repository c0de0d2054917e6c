package models

// ChatMessage is one entry of an ordered chat-completion message array.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DecisionRequest is the input of the decision pipeline.
type DecisionRequest struct {
	Symbol        string         `json:"symbol" binding:"required"`
	Timeframe     string         `json:"timeframe" binding:"required"`
	MarketContext map[string]any `json:"market_context"`
	Question      string         `json:"question"`
}

// DecisionResult is the normalized output of the decision pipeline.
// Decision is always TAKE_TRADE or NO_TRADE and Confidence is always
// within [0, 1].
type DecisionResult struct {
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// TradeClosedRequest reports a completed trade for recording and learning.
type TradeClosedRequest struct {
	TradeID string         `json:"trade_id" binding:"required"`
	Entry   float64        `json:"entry"`
	Exit    float64        `json:"exit"`
	Result  float64        `json:"result"`
	Context map[string]any `json:"context"`
}

// Critique is the critic model's scored assessment of a closed trade.
type Critique struct {
	Summary        string   `json:"summary"`
	WhatWentWell   []string `json:"what_went_well"`
	WhatWentWrong  []string `json:"what_went_wrong"`
	LessonsLearned []string `json:"lessons_learned"`
	OverallScore   float64  `json:"overall_score"`
}

// ExtractedRule is one rule candidate produced by the rule-extraction prompt.
type ExtractedRule struct {
	RuleText   string  `json:"rule_text"`
	RuleType   string  `json:"rule_type"`
	Confidence float64 `json:"confidence"`
}

// SimilarTrade is a trade-memory search hit.
type SimilarTrade struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	TradeID    string  `json:"trade_id"`
	Symbol     string  `json:"symbol"`
	Timeframe  string  `json:"timeframe"`
	Direction  string  `json:"direction"`
	Result     float64 `json:"result"`
	ResultType string  `json:"result_type"`
}

// RelevantRule is a rule-memory search hit.
type RelevantRule struct {
	ID            string  `json:"id"`
	Score         float64 `json:"score"`
	RuleID        string  `json:"rule_id"`
	RuleText      string  `json:"rule_text"`
	RuleType      string  `json:"rule_type"`
	Confidence    float64 `json:"confidence"`
	SourceTradeID string  `json:"source_trade_id"`
	IsActive      bool    `json:"is_active"`
}
