package models

import (
	"encoding/json"
	"time"
)

// Trade directions
const (
	DirectionLong  = "LONG"
	DirectionShort = "SHORT"
)

// Decision verdicts
const (
	DecisionTakeTrade = "TAKE_TRADE"
	DecisionNoTrade   = "NO_TRADE"
)

// Rule types extracted by the learning pipeline
const (
	RuleTypeEntry   = "ENTRY"
	RuleTypeExit    = "EXIT"
	RuleTypeRisk    = "RISK"
	RuleTypePattern = "PATTERN"
	RuleTypeMistake = "MISTAKE"
)

// Learning queue statuses
const (
	QueueStatusPending    = "PENDING"
	QueueStatusProcessing = "PROCESSING"
	QueueStatusCompleted  = "COMPLETED"
	QueueStatusFailed     = "FAILED"
)

// Trade is the durable record of a closed trade. It is mutated exactly once
// after creation, by the learning pipeline, and never deleted.
type Trade struct {
	ID            string  `json:"id"`
	TradeID       string  `json:"trade_id"`
	Symbol        string  `json:"symbol"`
	Timeframe     string  `json:"timeframe"`
	EntryPrice    float64 `json:"entry_price"`
	ExitPrice     float64 `json:"exit_price"`
	Direction     string  `json:"direction"`
	Result        float64 `json:"result"`
	ResultPercent float64 `json:"result_percent"`

	Decision   string  `json:"decision,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`

	MarketContext map[string]any `json:"market_context,omitempty"`
	TradeContext  map[string]any `json:"trade_context,omitempty"`

	Critique            string          `json:"critique,omitempty"`
	ExtractedRules      json.RawMessage `json:"extracted_rules,omitempty"`
	LearningProcessedAt *time.Time      `json:"learning_processed_at,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsWin reports whether the trade closed with a positive result.
// A zero result counts as a loss.
func (t *Trade) IsWin() bool {
	return t.Result > 0
}

// ResultType returns the WIN/LOSS label used in summaries and memory payloads.
func (t *Trade) ResultType() string {
	if t.IsWin() {
		return "WIN"
	}
	return "LOSS"
}

// Rule is a trading rule extracted from a closed trade. Rules are
// deactivated rather than deleted when superseded.
type Rule struct {
	ID             string    `json:"id"`
	RuleID         string    `json:"rule_id"`
	RuleText       string    `json:"rule_text"`
	RuleType       string    `json:"rule_type"`
	Confidence     float64   `json:"confidence"`
	TimesValidated int       `json:"times_validated"`
	TimesViolated  int       `json:"times_violated"`
	SourceTradeID  string    `json:"source_trade_id,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Statistic holds aggregated performance metrics, keyed uniquely by
// (symbol, timeframe).
type Statistic struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Timeframe     string    `json:"timeframe"`
	TotalTrades   int       `json:"total_trades"`
	WinningTrades int       `json:"winning_trades"`
	LosingTrades  int       `json:"losing_trades"`
	TotalPnL      float64   `json:"total_pnl"`
	AvgWin        float64   `json:"avg_win"`
	AvgLoss       float64   `json:"avg_loss"`
	MaxWin        float64   `json:"max_win"`
	MaxLoss       float64   `json:"max_loss"`
	WinRate       float64   `json:"win_rate"`
	ProfitFactor  float64   `json:"profit_factor"`
	Expectancy    float64   `json:"expectancy"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LearningQueueItem tracks deferred learning for one closed trade.
// COMPLETED and FAILED are terminal; retrying FAILED items is an external
// scheduling decision.
type LearningQueueItem struct {
	ID          string     `json:"id"`
	TradeID     string     `json:"trade_id"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	QueuedAt    time.Time  `json:"queued_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
