package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/poorman/SynapseStrike/models"
)

type fakeLLM struct {
	jsonResp  map[string]any
	jsonErr   error
	textResp  string
	textErr   error
	jsonCalls int
	textCalls int
	messages  []models.ChatMessage
}

func (f *fakeLLM) GetTextResponse(ctx context.Context, messages []models.ChatMessage, temperature float32, maxTokens int) (string, error) {
	f.textCalls++
	f.messages = messages
	return f.textResp, f.textErr
}

func (f *fakeLLM) GetJSONResponse(ctx context.Context, messages []models.ChatMessage, temperature float32, maxTokens int) (map[string]any, error) {
	f.jsonCalls++
	f.messages = messages
	if f.jsonErr != nil {
		return nil, f.jsonErr
	}
	return f.jsonResp, nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
	texts  []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type fakeMemory struct {
	trades    []models.SimilarTrade
	rules     []models.RelevantRule
	searchErr error
	storeErr  error

	storedTrades []models.TradeMemoryPayload
	storedRules  []models.RuleMemoryPayload
	lastSymbol   string
	lastMinScore float64
}

func (f *fakeMemory) StoreTradeMemory(ctx context.Context, embedding []float32, payload models.TradeMemoryPayload) (string, error) {
	if f.storeErr != nil {
		return "", f.storeErr
	}
	f.storedTrades = append(f.storedTrades, payload)
	return uuid.NewString(), nil
}

func (f *fakeMemory) StoreRuleMemory(ctx context.Context, embedding []float32, payload models.RuleMemoryPayload) (string, error) {
	if f.storeErr != nil {
		return "", f.storeErr
	}
	f.storedRules = append(f.storedRules, payload)
	return uuid.NewString(), nil
}

func (f *fakeMemory) SearchSimilarTrades(ctx context.Context, embedding []float32, symbol string, limit int) ([]models.SimilarTrade, error) {
	f.lastSymbol = symbol
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.trades, nil
}

func (f *fakeMemory) SearchRelevantRules(ctx context.Context, embedding []float32, ruleType string, limit int, minScore float64) ([]models.RelevantRule, error) {
	f.lastMinScore = minScore
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.rules, nil
}

func (f *fakeMemory) DeleteTradeMemory(ctx context.Context, tradeID string) error { return nil }
func (f *fakeMemory) DeleteRuleMemory(ctx context.Context, ruleID string) error   { return nil }

type fakeLedger struct {
	trades  map[string]*models.Trade
	pending map[string]bool

	recordErr   error
	finalizeErr error
	claimErr    error

	finalized  *models.LearningUpdate
	failedID   string
	failedWith string
	claims     int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		trades:  make(map[string]*models.Trade),
		pending: make(map[string]bool),
	}
}

func (f *fakeLedger) RecordTrade(ctx context.Context, trade *models.Trade) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	f.trades[trade.ID] = trade
	f.pending[trade.ID] = true
	return nil
}

func (f *fakeLedger) ClaimPending(ctx context.Context, tradeID string) (bool, error) {
	f.claims++
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if !f.pending[tradeID] {
		return false, nil
	}
	f.pending[tradeID] = false
	return true, nil
}

func (f *fakeLedger) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	return f.trades[id], nil
}

func (f *fakeLedger) FinalizeLearning(ctx context.Context, upd *models.LearningUpdate) error {
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	f.finalized = upd
	return nil
}

func (f *fakeLedger) MarkLearningFailed(ctx context.Context, tradeID, lastError string) error {
	f.failedID = tradeID
	f.failedWith = lastError
	return nil
}

func (f *fakeLedger) ClaimNextPending(ctx context.Context) (*models.LearningQueueItem, error) {
	return nil, nil
}

var errUnavailable = errors.New("service unavailable")
