package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Matches the widest {...} span so fenced or prose-wrapped JSON still parses.
var jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// DecodeJSONObject decodes model output into a JSON object using a two-stage
// strategy: a strict parse of the whole content, then a bounded scan for the
// first {...} substring. Models frequently wrap their JSON in markdown fences
// or leading prose; the second stage recovers those responses.
func DecodeJSONObject(content string) (map[string]any, error) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(content), &parsed); err == nil {
		return parsed, nil
	}

	match := jsonObjectPattern.FindString(content)
	if match == "" {
		return nil, fmt.Errorf("no JSON object in content")
	}
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return nil, fmt.Errorf("parsing extracted JSON: %w", err)
	}
	return parsed, nil
}
