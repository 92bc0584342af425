package presentation

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/shiryo/internal/llm"
	"github.com/hyperjump/shiryo/internal/models"
)

func TestSlideBullets(t *testing.T) {
	got := SlideBullets([]string{"• Fee waived", "  ", "Cashback"})
	want := []string{"• Fee waived", "• Cashback"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SlideBullets() = %q, want %q", got, want)
	}
}

func TestRender(t *testing.T) {
	topic := models.Topic{Title: "Credit Cards", KeyPoints: []string{"Cashback"}}

	tests := []struct {
		name string
		gen  llm.GeneratorFunc
		want string
	}{
		{
			name: "trims output",
			gen: func(context.Context, llm.Request) (string, error) {
				return "\n\nCredit Cards  \n\n**Credit Cards**\n\n• Cashback\n\n", nil
			},
			want: "Credit Cards\n\n**Credit Cards**\n\n• Cashback",
		},
		{
			name: "error yields error slide",
			gen: func(context.Context, llm.Request) (string, error) {
				return "", errors.New("boom")
			},
			want: ErrorSlide("Credit Cards"),
		},
		{
			name: "blank yields error slide",
			gen: func(context.Context, llm.Request) (string, error) {
				return "  \n ", nil
			},
			want: ErrorSlide("Credit Cards"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer(tt.gen, "", nil)
			if got := r.Render(context.Background(), topic, 5, models.DetailIntermediate); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_PromptCarriesBullets(t *testing.T) {
	var prompt string
	gen := llm.GeneratorFunc(func(_ context.Context, req llm.Request) (string, error) {
		prompt = req.Prompt
		return "ok", nil
	})
	NewRenderer(gen, "", nil).Render(context.Background(), models.Topic{Title: "Loans", KeyPoints: []string{"Rate 10%"}}, 7, "")
	for _, want := range []string{`"Loans"`, "• Rate 10%", "User requested 7 total slides"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

