package indexer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/shiryo/internal/llm"
	"github.com/hyperjump/shiryo/internal/models"
)

func TestFallbackMetadata(t *testing.T) {
	tests := []struct {
		file, title string
	}{
		{"personal_loan_terms.pdf", "Personal Loan Terms"},
		{"CARD-fees.docx", "Card-Fees"},
		{"readme", "Readme"},
		{"mobile banking 2024.txt", "Mobile Banking 2024"},
	}
	for _, tt := range tests {
		doc := FallbackMetadata("hash", tt.file)
		if doc.Title != tt.title {
			t.Errorf("FallbackMetadata(%q).Title = %q, want %q", tt.file, doc.Title, tt.title)
		}
		if doc.CategoryID != models.GeneralCategoryID || doc.FileName != tt.file || doc.FileHash != "hash" {
			t.Errorf("FallbackMetadata(%q) = %+v", tt.file, doc)
		}
	}
}

func TestMetadataExtractor(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		err      error
		wantCat  int
		wantName string
	}{
		{"valid", `{"category_id":2,"title":"Home Loans","file_hash":"h","file_name":"f"}`, nil, 2, "Home Loans"},
		{"fenced", "```json\n{\"category_id\":1,\"title\":\"Savings\",\"file_hash\":\"h\",\"file_name\":\"f\",\"document_source\":null}\n```", nil, 1, "Savings"},
		{"missing title", `{"category_id":2,"file_hash":"h","file_name":"f"}`, nil, 9, "Loan Guide"},
		{"bad category", `{"category_id":12,"title":"X","file_hash":"h","file_name":"f"}`, nil, 9, "Loan Guide"},
		{"bad date", `{"category_id":2,"title":"X","file_hash":"h","file_name":"f","publication_date":"March"}`, nil, 9, "Loan Guide"},
		{"not json", "no idea", nil, 9, "Loan Guide"},
		{"upstream error", "", models.ErrUpstreamUnavailable, 9, "Loan Guide"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
				return tt.reply, tt.err
			})
			doc := NewMetadataExtractor(gen, "m", 0, 0, nil).Extract(context.Background(), "text", "h", "loan_guide.pdf")
			if doc.CategoryID != tt.wantCat || doc.Title != tt.wantName {
				t.Errorf("got %d %q, want %d %q", doc.CategoryID, doc.Title, tt.wantCat, tt.wantName)
			}
			if doc.FileHash != "h" || doc.FileName != "loan_guide.pdf" {
				t.Errorf("file fields must come from the upload: %+v", doc)
			}
		})
	}
}

func TestMetadataExtractor_PromptAndTimeout(t *testing.T) {
	var prompt string
	gen := llm.GeneratorFunc(func(ctx context.Context, req llm.Request) (string, error) {
		prompt = req.Prompt
		<-ctx.Done()
		return "", ctx.Err()
	})
	m := NewMetadataExtractor(gen, "m", 10, 20*time.Millisecond, nil)

	start := time.Now()
	doc := m.Extract(context.Background(), strings.Repeat("é", 50), "h", "cards.txt")
	if time.Since(start) > time.Second {
		t.Error("extraction should give up after the timeout")
	}
	if doc.Title != "Cards" {
		t.Errorf("title = %q", doc.Title)
	}
	if !strings.Contains(prompt, "Text Content: "+strings.Repeat("é", 10)+"\n") {
		t.Errorf("prompt should carry the first 10 characters: %q", prompt)
	}
	if !strings.Contains(prompt, "File Hash: h\nFile Name: cards.txt") {
		t.Errorf("prompt missing file fields: %q", prompt)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo", 2); got != "hé" {
		t.Errorf("got %q", got)
	}
	if got := truncateRunes("hi", 5); got != "hi" {
		t.Errorf("got %q", got)
	}
}
