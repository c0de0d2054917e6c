package prompts

import (
	"strings"
	"testing"

	"github.com/poorman/SynapseStrike/models"
)

func TestBuildDecisionPromptEmbedsContext(t *testing.T) {
	messages := BuildDecisionPrompt(
		"BTCUSDT", "5m",
		map[string]any{"rsi": 71.2, "trend": "up"},
		"Should I take this long?",
		[]models.SimilarTrade{
			{ResultType: "WIN", Score: 0.92, Result: 4.5},
		},
		[]models.RelevantRule{
			{RuleType: "ENTRY", Confidence: 0.8, RuleText: "Avoid longs when RSI is above 70"},
		},
	)

	if len(messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(messages))
	}
	if messages[0].Role != "system" || messages[1].Role != "user" {
		t.Fatalf("roles = %s/%s, want system/user", messages[0].Role, messages[1].Role)
	}

	system := messages[0].Content
	for _, want := range []string{
		"TAKE_TRADE",
		"NO_TRADE",
		"when in doubt, choose NO_TRADE",
		"1. [ENTRY] (Confidence: 80%) Avoid longs when RSI is above 70",
		"1. [WIN] (Similarity: 92%) Result: 4.50",
	} {
		if !strings.Contains(system, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}

	user := messages[1].Content
	for _, want := range []string{
		"**Symbol**: BTCUSDT",
		"**Timeframe**: 5m",
		"```json",
		`"rsi": 71.2`,
		"Should I take this long?",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}

func TestBuildDecisionPromptOmitsEmptySections(t *testing.T) {
	messages := BuildDecisionPrompt("EURUSD", "1m", nil, "Entry now?", nil, nil)

	system := messages[0].Content
	if strings.Contains(system, "Active Trading Rules") {
		t.Error("rules section present without rules")
	}
	if strings.Contains(system, "Similar Past Trades") {
		t.Error("trades section present without trades")
	}
}

func TestBuildCritiquePrompt(t *testing.T) {
	messages := BuildCritiquePrompt("Trade ID: t-1\nResult: -2.00 (LOSS)")

	if len(messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(messages))
	}
	if !strings.Contains(messages[0].Content, "overall_score") {
		t.Error("system prompt missing the critique JSON contract")
	}
	if !strings.Contains(messages[1].Content, "Result: -2.00 (LOSS)") {
		t.Error("user prompt missing the trade summary")
	}
}

func TestBuildRuleExtractionPromptEmbedsCritique(t *testing.T) {
	critique := models.Critique{
		Summary:        "Entered against the trend",
		WhatWentWrong:  []string{"Ignored the higher timeframe"},
		LessonsLearned: []string{"Check the daily trend first"},
		OverallScore:   0.3,
	}

	messages := BuildRuleExtractionPrompt("Trade ID: t-1", critique)

	system := messages[0].Content
	for _, ruleType := range []string{"ENTRY", "EXIT", "RISK", "PATTERN", "MISTAKE"} {
		if !strings.Contains(system, ruleType) {
			t.Errorf("system prompt missing rule type %s", ruleType)
		}
	}

	user := messages[1].Content
	if !strings.Contains(user, "Entered against the trend") {
		t.Error("user prompt missing the critique summary")
	}
	if !strings.Contains(user, "Check the daily trend first") {
		t.Error("user prompt missing the lessons learned")
	}
}
