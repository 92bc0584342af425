package presentation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hyperjump/shiryo/internal/models"
)

func TestTitleSlide(t *testing.T) {
	if got := TitleSlide("Personal Loans"); got != "Personal Loans\nProfessional Banking Services Overview" {
		t.Errorf("TitleSlide() = %q", got)
	}
}

func TestConclusionSlide(t *testing.T) {
	topics := []models.Topic{{Title: "Personal Loans"}, {Title: ""}, {Title: "Car Loans"}}
	want := "Conclusion\nKey Topics Covered:\n• Personal Loans\n• Car Loans"
	if got := ConclusionSlide(topics); got != want {
		t.Errorf("ConclusionSlide() = %q, want %q", got, want)
	}
}

func TestConclusionSlide_LimitsAndWraps(t *testing.T) {
	var topics []models.Topic
	long := strings.TrimSpace(strings.Repeat("Solar Panel Financing ", 5))
	topics = append(topics, models.Topic{Title: long})
	for i := 0; i < 10; i++ {
		topics = append(topics, models.Topic{Title: "Topic"})
	}
	got := ConclusionSlide(topics)
	if n := strings.Count(got, "• "); n != 8 {
		t.Errorf("expected 8 bullets, got %d", n)
	}
	lines := strings.Split(got, "\n")
	if !strings.HasPrefix(lines[2], "• Solar") || !strings.HasPrefix(lines[3], "  ") {
		t.Errorf("long title not wrapped: %q", lines[2:4])
	}
	for _, l := range lines {
		if utf8.RuneCountInString(l) > conclusionWidth+2 {
			t.Errorf("line too long: %q", l)
		}
	}
}

func TestSplitSlides(t *testing.T) {
	content := JoinSlides([]string{
		"Deck\nProfessional Banking Services Overview",
		"Car Loans\n\n**Car Loans**\n\n• Up to 7 years\n• 4% interest",
		"Conclusion\nKey Topics Covered:\n• Car Loans",
	})
	slides := SplitSlides(content)
	if len(slides) != 3 {
		t.Fatalf("expected 3 slides, got %d", len(slides))
	}
	if slides[1].Title != "Car Loans" {
		t.Errorf("title = %q", slides[1].Title)
	}
	wantBody := []string{"Car Loans", "• Up to 7 years", "• 4% interest"}
	if strings.Join(slides[1].Body, "|") != strings.Join(wantBody, "|") {
		t.Errorf("body = %q", slides[1].Body)
	}
	if SplitSlides("  ") != nil {
		t.Error("empty content should give no slides")
	}
}

func TestReadable(t *testing.T) {
	got := Readable(JoinSlides([]string{"a", "b"}))
	if got != "a\n\n---\n\nb" {
		t.Errorf("Readable() = %q", got)
	}
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		title string
		want  int
	}{
		{"Personal Loans Guide", 2},
		{"Credit Card Fees", 3},
		{"Savings Accounts", 1},
		{"Mutual Funds", 4},
		{"Corporate Banking", 5},
		{"Bancassurance Insurance Plans", 6},
		{"Mobile App Security", 7},
		{"Payroll Services", 8},
		{"Annual Report 2024", 9},
		{"Business Loans", 2},
	}
	for _, tt := range tests {
		if got := InferCategory(tt.title); got != tt.want {
			t.Errorf("InferCategory(%q) = %d, want %d", tt.title, got, tt.want)
		}
	}
}
