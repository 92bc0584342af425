// Package keyword provides full-text search over the document library.
package keyword

import (
	"context"

	"github.com/hyperjump/shiryo/internal/models"
)

// SearchOptions tune a library search. Nil means defaults.
type SearchOptions struct {
	// TitleBoost weights title matches over content matches. Default 3.
	TitleBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance (1 or 2). Default 1.
	Fuzziness int
	// CategoryID restricts hits to one service category when non-zero.
	CategoryID int
}

// DocumentIndex indexes documents by title, file name and normalized text.
type DocumentIndex interface {
	Index(ctx context.Context, doc *models.Document, text string) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Hit, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// Hit is one search result.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}
