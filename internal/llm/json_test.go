package llm

import (
	"errors"
	"testing"

	"github.com/hyperjump/shiryo/internal/models"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose", "Here you go: {\"a\":{\"b\":2}} hope it helps", `{"a":{"b":2}}`},
		{"no object", "nothing", "nothing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Topics []string `json:"topics"`
	}
	if err := DecodeJSON("```json\n{\"topics\":[\"a\"]}\n```", &v); err != nil {
		t.Fatal(err)
	}
	if len(v.Topics) != 1 {
		t.Errorf("topics = %v", v.Topics)
	}
	if err := DecodeJSON("not json", &v); !errors.Is(err, models.ErrMalformedOutput) {
		t.Errorf("err = %v, want ErrMalformedOutput", err)
	}
}
