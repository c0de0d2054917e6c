package models

import "context"

// LLMClient is the gateway to an OpenAI-compatible chat completion endpoint.
type LLMClient interface {
	// GetTextResponse returns the raw content string of the first choice.
	GetTextResponse(ctx context.Context, messages []ChatMessage, temperature float32, maxTokens int) (string, error)
	// GetJSONResponse parses the content as JSON, falling back to the first
	// {...} substring. A parse failure is returned as an error so callers
	// decide whether to degrade to the text path.
	GetJSONResponse(ctx context.Context, messages []ChatMessage, temperature float32, maxTokens int) (map[string]any, error)
}

// EmbeddingsClient converts free text into fixed-dimension vectors.
type EmbeddingsClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// TradeMemoryPayload is the metadata stored alongside a trade embedding.
type TradeMemoryPayload struct {
	TradeID    string  `json:"trade_id"`
	Symbol     string  `json:"symbol"`
	Timeframe  string  `json:"timeframe"`
	Direction  string  `json:"direction"`
	Result     float64 `json:"result"`
	ResultType string  `json:"result_type"`
}

// RuleMemoryPayload is the metadata stored alongside a rule embedding.
type RuleMemoryPayload struct {
	RuleID        string  `json:"rule_id"`
	RuleText      string  `json:"rule_text"`
	RuleType      string  `json:"rule_type"`
	Confidence    float64 `json:"confidence"`
	SourceTradeID string  `json:"source_trade_id"`
	IsActive      bool    `json:"is_active"`
}

// MemoryStore is the vector index over the trade and rule collections.
// It is a derived, rebuildable index; callers must tolerate it being out of
// sync with the ledger.
type MemoryStore interface {
	StoreTradeMemory(ctx context.Context, embedding []float32, payload TradeMemoryPayload) (string, error)
	StoreRuleMemory(ctx context.Context, embedding []float32, payload RuleMemoryPayload) (string, error)
	SearchSimilarTrades(ctx context.Context, embedding []float32, symbol string, limit int) ([]SimilarTrade, error)
	SearchRelevantRules(ctx context.Context, embedding []float32, ruleType string, limit int, minScore float64) ([]RelevantRule, error)
	DeleteTradeMemory(ctx context.Context, tradeID string) error
	DeleteRuleMemory(ctx context.Context, ruleID string) error
}

// LearningUpdate carries everything the learning pipeline persists for one
// trade. The ledger applies it in a single transaction.
type LearningUpdate struct {
	Trade *Trade
	Rules []Rule
}

// Ledger is the durable system of record for trades, rules, statistics and
// the learning queue.
type Ledger interface {
	// RecordTrade inserts the trade and its PENDING queue item.
	RecordTrade(ctx context.Context, trade *Trade) error
	// GetTrade returns (nil, nil) when no trade with that internal id exists.
	GetTrade(ctx context.Context, id string) (*Trade, error)
	// FinalizeLearning atomically persists the trade's learning fields and
	// extracted rules, recomputes the (symbol, timeframe) statistic row, and
	// marks the queue item COMPLETED.
	FinalizeLearning(ctx context.Context, upd *LearningUpdate) error
	// MarkLearningFailed records the error on the queue item and increments
	// its attempt counter.
	MarkLearningFailed(ctx context.Context, tradeID, lastError string) error
	// ClaimPending atomically moves the trade's queue item from PENDING to
	// PROCESSING. Returns false when the item is absent or already claimed,
	// so concurrent workers never process the same trade twice.
	ClaimPending(ctx context.Context, tradeID string) (bool, error)
	// ClaimNextPending atomically moves the oldest PENDING queue item to
	// PROCESSING and returns it, or (nil, nil) when the queue is empty.
	ClaimNextPending(ctx context.Context) (*LearningQueueItem, error)
}
