package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/shiryo/internal/models"
)

// ExtractJSON returns the JSON object inside generated text, dropping markdown code fences and
// any prose around the outermost braces.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// DecodeJSON decodes generated text into v. Failures wrap models.ErrMalformedOutput.
func DecodeJSON(s string, v any) error {
	if err := json.Unmarshal([]byte(ExtractJSON(s)), v); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedOutput, err)
	}
	return nil
}
