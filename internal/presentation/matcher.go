package presentation

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/hyperjump/shiryo/internal/models"
)

// DocumentFinder is the storage subset used to pick a presentation's source document.
type DocumentFinder interface {
	FindDocumentByTerms(ctx context.Context, terms []string) (*models.Document, error)
	LatestDocument(ctx context.Context) (*models.Document, error)
}

var (
	nonAlnum = regexp.MustCompile(`[^0-9A-Za-z]+`)
	wordRe   = regexp.MustCompile(`\w+`)
)

// TitleTokens normalizes a requested title to lowercase alphanumeric words of two or more
// characters.
func TitleTokens(title string) []string {
	normalized := strings.ToLower(strings.TrimSpace(nonAlnum.ReplaceAllString(title, " ")))
	var tokens []string
	for _, w := range wordRe.FindAllString(normalized, -1) {
		if len(w) >= 2 {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// MatchDocument picks the source document for a requested title. It tries, in order, any title
// token, the whole title, the first token, and finally the newest document. It returns
// models.ErrNoDocuments when the store is empty.
func MatchDocument(ctx context.Context, store DocumentFinder, title string) (*models.Document, error) {
	title = strings.TrimSpace(title)
	tokens := TitleTokens(title)

	var attempts [][]string
	if len(title) >= 2 && len(tokens) > 0 {
		attempts = append(attempts, tokens, []string{title}, tokens[:1])
	}
	for _, terms := range attempts {
		doc, err := store.FindDocumentByTerms(ctx, terms)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}

	doc, err := store.LatestDocument(ctx)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrNoDocuments
	}
	return doc, err
}
