// Package prompts assembles the message arrays sent to the decision and
// critic models. The JSON shapes enumerated here are contracts: the pipeline
// parsers depend on them, so prompt and parser changes must be mirrored.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poorman/SynapseStrike/models"
)

const decisionSystemPrompt = `You are an expert quantitative trading analyst and decision-maker. Your role is to analyze market conditions and provide trading decisions.

## Your Capabilities
- Analyze technical indicators (RSI, MACD, volume, trend)
- Consider price action and market structure
- Factor in historical similar situations
- Apply learned trading rules
- Provide clear, actionable decisions

## Decision Types
- TAKE_TRADE: Market conditions favor entering the trade
- NO_TRADE: Conditions are unfavorable or uncertain

## Response Format
You MUST respond with valid JSON in this exact format:
{
    "decision": "TAKE_TRADE" or "NO_TRADE",
    "confidence": 0.0 to 1.0,
    "reason": "Clear explanation of the decision"
}

## Guidelines
- Be conservative: when in doubt, choose NO_TRADE
- Consider risk/reward ratio
- Reference similar past trades if available
- Apply relevant trading rules
- Confidence should reflect certainty, not optimism`

const critiqueSystemPrompt = `You are an expert trading coach and analyst. Your role is to objectively critique completed trades and extract lessons.

## Your Approach
- Be objective and analytical
- Look for patterns in both wins and losses
- Identify what could be improved
- Acknowledge what was done well
- Focus on actionable insights

## Response Format
Respond with valid JSON in this exact format:
{
    "summary": "Brief overall assessment of the trade",
    "what_went_well": ["Point 1", "Point 2"],
    "what_went_wrong": ["Point 1", "Point 2"],
    "lessons_learned": ["Lesson 1", "Lesson 2"],
    "overall_score": 0.0 to 1.0
}

## Scoring Guidelines
- 0.0-0.3: Poor execution, major mistakes
- 0.4-0.6: Average, room for improvement
- 0.7-0.8: Good execution, minor issues
- 0.9-1.0: Excellent, textbook trade`

const ruleExtractionSystemPrompt = `You are a trading systems expert. Your role is to extract actionable trading rules from trade analysis.

## Rule Types
- ENTRY: Rules about when to enter trades
- EXIT: Rules about when to exit trades
- RISK: Rules about position sizing and risk management
- PATTERN: Market patterns to look for
- MISTAKE: Common mistakes to avoid

## Response Format
Respond with valid JSON in this exact format:
{
    "rules": [
        {
            "rule_text": "Clear, actionable rule statement",
            "rule_type": "ENTRY|EXIT|RISK|PATTERN|MISTAKE",
            "confidence": 0.0 to 1.0
        }
    ]
}

## Guidelines
- Rules should be specific and actionable
- Avoid vague or overly broad rules
- Confidence reflects how strongly the trade supports this rule
- Maximum 5 rules per trade
- Focus on the most important insights`

// BuildDecisionPrompt builds the complete message array for a trading
// decision, embedding the retrieved rules and similar trades into the system
// prompt.
func BuildDecisionPrompt(
	symbol, timeframe string,
	marketContext map[string]any,
	question string,
	similarTrades []models.SimilarTrade,
	relevantRules []models.RelevantRule,
) []models.ChatMessage {
	var system strings.Builder
	system.WriteString(decisionSystemPrompt)

	if len(relevantRules) > 0 {
		system.WriteString("\n\n## Active Trading Rules (Apply These)\n")
		for i, rule := range relevantRules {
			fmt.Fprintf(&system, "%d. [%s] (Confidence: %.0f%%) %s\n",
				i+1, rule.RuleType, rule.Confidence*100, rule.RuleText)
		}
	}

	if len(similarTrades) > 0 {
		system.WriteString("\n\n## Similar Past Trades (Reference These)\n")
		for i, trade := range similarTrades {
			fmt.Fprintf(&system, "%d. [%s] (Similarity: %.0f%%) Result: %.2f\n",
				i+1, trade.ResultType, trade.Score*100, trade.Result)
		}
	}

	contextJSON, _ := json.MarshalIndent(marketContext, "", "  ")
	user := fmt.Sprintf(`## Current Trading Setup

**Symbol**: %s
**Timeframe**: %s

**Market Context**:
`+"```json\n%s\n```"+`

**Question**: %s

Please analyze this setup and provide your trading decision in JSON format.`,
		symbol, timeframe, contextJSON, question)

	return []models.ChatMessage{
		{Role: "system", Content: system.String()},
		{Role: "user", Content: user},
	}
}

// BuildCritiquePrompt builds the message array for a post-trade critique.
func BuildCritiquePrompt(tradeSummary string) []models.ChatMessage {
	user := fmt.Sprintf(`Please analyze and critique this completed trade:

%s

Provide your assessment in the required JSON format. Be thorough but constructive.`, tradeSummary)

	return []models.ChatMessage{
		{Role: "system", Content: critiqueSystemPrompt},
		{Role: "user", Content: user},
	}
}

// BuildRuleExtractionPrompt builds the message array for extracting rules
// from a trade summary and its critique.
func BuildRuleExtractionPrompt(tradeSummary string, critique models.Critique) []models.ChatMessage {
	critiqueJSON, _ := json.MarshalIndent(critique, "", "  ")

	user := fmt.Sprintf(`Based on this trade and its critique, extract actionable trading rules:

## Trade Summary
%s

## Critique
`+"```json\n%s\n```"+`

Extract the most important rules from this trade. Focus on patterns that would help in future similar situations.
Provide your response in the required JSON format.`, tradeSummary, critiqueJSON)

	return []models.ChatMessage{
		{Role: "system", Content: ruleExtractionSystemPrompt},
		{Role: "user", Content: user},
	}
}
