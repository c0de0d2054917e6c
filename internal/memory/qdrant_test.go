package memory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/poorman/SynapseStrike/models"
)

func newTestStore(t *testing.T, handler http.Handler) (*Store, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := NewStore(Options{
		URL:              srv.URL,
		TradesCollection: "trades_memory",
		RulesCollection:  "rules_memory",
		Dimension:        4,
		Timeout:          5 * time.Second,
	})
	return store, srv
}

func TestEnsureCollectionsCreatesMissing(t *testing.T) {
	created := make(map[string]bool)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"collections": []map[string]string{{"name": "trades_memory"}},
			},
		})
	})
	mux.HandleFunc("PUT /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		var req createCollectionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Vectors.Size != 4 || req.Vectors.Distance != "Cosine" {
			t.Errorf("vectors = %+v, want size 4 Cosine", req.Vectors)
		}
		created[r.PathValue("name")] = true
		w.Write([]byte(`{"result": true}`))
	})

	store, _ := newTestStore(t, mux)
	if err := store.EnsureCollections(context.Background()); err != nil {
		t.Fatalf("EnsureCollections() error = %v", err)
	}

	if created["trades_memory"] {
		t.Error("trades_memory already existed, must not be recreated")
	}
	if !created["rules_memory"] {
		t.Error("rules_memory missing, must be created")
	}
}

func TestStoreTradeMemory(t *testing.T) {
	var got upsertRequest
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /collections/trades_memory/points", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"result": {"status": "acknowledged"}}`))
	})

	store, _ := newTestStore(t, mux)
	pointID, err := store.StoreTradeMemory(context.Background(), []float32{1, 2, 3, 4}, models.TradeMemoryPayload{
		TradeID:    "t-1",
		Symbol:     "BTCUSDT",
		Result:     4.2,
		ResultType: "WIN",
	})
	if err != nil {
		t.Fatalf("StoreTradeMemory() error = %v", err)
	}
	if pointID == "" {
		t.Fatal("empty point id")
	}
	if len(got.Points) != 1 {
		t.Fatalf("points = %d, want 1", len(got.Points))
	}
	if got.Points[0].ID != pointID {
		t.Errorf("point id = %s, want %s", got.Points[0].ID, pointID)
	}
}

func TestSearchSimilarTradesFiltersAndScores(t *testing.T) {
	var got searchRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /collections/trades_memory/points/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{
					"id":    "p1",
					"score": 0.91,
					"payload": map[string]any{
						"trade_id": "t-1", "symbol": "BTCUSDT", "result": 3.5, "result_type": "WIN",
					},
				},
				{
					"id":      "p2",
					"score":   0.85,
					"payload": "not-an-object",
				},
			},
		})
	})

	store, _ := newTestStore(t, mux)
	trades, err := store.SearchSimilarTrades(context.Background(), []float32{1, 0, 0, 0}, "BTCUSDT", 5)
	if err != nil {
		t.Fatalf("SearchSimilarTrades() error = %v", err)
	}

	if got.ScoreThreshold != TradeMinScore {
		t.Errorf("score_threshold = %v, want %v", got.ScoreThreshold, TradeMinScore)
	}
	if got.Limit != 5 {
		t.Errorf("limit = %d, want 5", got.Limit)
	}
	if got.Filter == nil || len(got.Filter.Must) != 1 || got.Filter.Must[0].Key != "symbol" {
		t.Errorf("filter = %+v, want symbol must-condition", got.Filter)
	}

	// Malformed payload hits are skipped, not fatal.
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	if trades[0].TradeID != "t-1" || trades[0].Score != 0.91 {
		t.Errorf("trade = %+v, want t-1 @ 0.91", trades[0])
	}
}

func TestSearchRelevantRulesAlwaysFiltersActive(t *testing.T) {
	var got searchRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /collections/rules_memory/points/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{{
				"id":    "r1",
				"score": 0.77,
				"payload": map[string]any{
					"rule_id": "rule-1", "rule_text": "Avoid entries against the trend",
					"rule_type": "ENTRY", "confidence": 0.8, "is_active": true,
				},
			}},
		})
	})

	store, _ := newTestStore(t, mux)
	rules, err := store.SearchRelevantRules(context.Background(), []float32{0, 1, 0, 0}, "ENTRY", 10, 0.6)
	if err != nil {
		t.Fatalf("SearchRelevantRules() error = %v", err)
	}

	if got.Filter == nil || len(got.Filter.Must) != 2 {
		t.Fatalf("filter = %+v, want is_active + rule_type conditions", got.Filter)
	}
	if got.Filter.Must[0].Key != "is_active" {
		t.Errorf("first condition = %s, want is_active", got.Filter.Must[0].Key)
	}
	if got.ScoreThreshold != 0.6 {
		t.Errorf("score_threshold = %v, want 0.6", got.ScoreThreshold)
	}

	if len(rules) != 1 || rules[0].RuleID != "rule-1" {
		t.Fatalf("rules = %+v, want single rule-1", rules)
	}
}

func TestDeleteTradeMemory(t *testing.T) {
	var got deleteRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /collections/trades_memory/points/delete", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"result": true}`))
	})

	store, _ := newTestStore(t, mux)
	if err := store.DeleteTradeMemory(context.Background(), "t-9"); err != nil {
		t.Fatalf("DeleteTradeMemory() error = %v", err)
	}
	if len(got.Filter.Must) != 1 || got.Filter.Must[0].Key != "trade_id" {
		t.Errorf("filter = %+v, want trade_id condition", got.Filter)
	}
	if got.Filter.Must[0].Match.Value != "t-9" {
		t.Errorf("match = %v, want t-9", got.Filter.Must[0].Match.Value)
	}
}
