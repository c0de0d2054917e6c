package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "8065" {
		t.Errorf("Port = %s, want 8065", cfg.Port)
	}
	if cfg.EmbeddingDimension != 384 {
		t.Errorf("EmbeddingDimension = %d, want 384", cfg.EmbeddingDimension)
	}
	if cfg.MaxSimilarTrades != 5 || cfg.MaxRulesContext != 10 {
		t.Errorf("limits = %d/%d, want 5/10", cfg.MaxSimilarTrades, cfg.MaxRulesContext)
	}
	if cfg.MinRuleConfidence != 0.6 {
		t.Errorf("MinRuleConfidence = %v, want 0.6", cfg.MinRuleConfidence)
	}
	if cfg.TradesCollection != "trades_memory" || cfg.RulesCollection != "rules_memory" {
		t.Errorf("collections = %s/%s", cfg.TradesCollection, cfg.RulesCollection)
	}
	// The critic endpoint falls back to the main model.
	if cfg.CriticURL != cfg.LLMURL || cfg.CriticModel != cfg.LLMModel {
		t.Errorf("critic = %s/%s, want same as main", cfg.CriticURL, cfg.CriticModel)
	}
}

func TestLoadOverrides(t *testing.T) {
	os.Clearenv()
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_SIMILAR_TRADES", "3")
	t.Setenv("MIN_RULE_CONFIDENCE", "0.75")
	t.Setenv("LLM_CRITIC_URL", "http://critic:8051/v1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Port = %s, want 9000", cfg.Port)
	}
	if cfg.MaxSimilarTrades != 3 {
		t.Errorf("MaxSimilarTrades = %d, want 3", cfg.MaxSimilarTrades)
	}
	if cfg.MinRuleConfidence != 0.75 {
		t.Errorf("MinRuleConfidence = %v, want 0.75", cfg.MinRuleConfidence)
	}
	if cfg.CriticURL != "http://critic:8051/v1" {
		t.Errorf("CriticURL = %s", cfg.CriticURL)
	}
}

func TestGetEnvIntWithDefaultIgnoresGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	if got := getEnvIntWithDefault("SOME_INT", 42); got != 42 {
		t.Errorf("got %d, want default 42", got)
	}
}
