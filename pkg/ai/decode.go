package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeJSON parses a model response that should contain a JSON document.
// Models routinely wrap JSON in markdown code fences, so those are stripped
// before decoding.
func DecodeJSON(raw string, out any) error {
	cleaned := StripCodeFences(raw)
	if cleaned == "" {
		return fmt.Errorf("empty model response")
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("parse model response: %w", err)
	}
	return nil
}

// StripCodeFences removes a leading ```json (or bare ```) fence and the
// trailing ``` fence, if present.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
