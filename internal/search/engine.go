// Package search retrieves grounding context from a document's chunks.
package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/embedding"
	"github.com/hyperjump/shiryo/internal/models"
)

// ContextDelimiter separates passages in assembled context.
const ContextDelimiter = "\n\n---\n\n"

// NoRelevantInformation is returned as context when neither ranking finds a passage.
const NoRelevantInformation = "No relevant information found in the document for this query."

// ChunkSource loads a document's chunks in position order.
type ChunkSource interface {
	ListChunks(ctx context.Context, documentID string, limit int) ([]*models.Chunk, error)
}

// Engine ranks a document's chunks for a query, by embedding similarity first and by keyword
// overlap when no chunk is similar enough.
type Engine struct {
	chunks   ChunkSource
	embedder embedding.Embedder
	config   config.RetrievalConfig
	logger   *zap.Logger
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(chunks ChunkSource, embedder embedding.Embedder, cfg config.RetrievalConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{chunks: chunks, embedder: embedder, config: cfg, logger: logger}
}

// Result is a ranked retrieval.
type Result struct {
	Passages []Scored
	Lexical  bool
}

// Retrieve ranks the document's chunks for query. An embedding failure is returned as is, so
// callers can tell an unreachable gateway from an empty result.
func (e *Engine) Retrieve(ctx context.Context, query, documentID string) (*Result, error) {
	qvec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	chunks, err := e.chunks.ListChunks(ctx, documentID, e.config.MaxChunks)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	ranked := RankBySimilarity(qvec, chunks, e.config.MinSimilarity, e.logger)
	if len(ranked) > 0 {
		return &Result{Passages: Top(ranked, e.config.TopK)}, nil
	}

	terms := QueryTerms(query, e.config.MinWordLength)
	ranked = RankByTerms(terms, chunks)
	e.logger.Debug("similarity search found nothing, using keyword overlap",
		zap.String("document_id", documentID),
		zap.Int("chunks", len(chunks)),
		zap.Int("terms", len(terms)),
		zap.Int("matches", len(ranked)),
	)
	return &Result{Passages: Top(ranked, e.config.TopK), Lexical: true}, nil
}

// Search returns the assembled context for query, or NoRelevantInformation.
func (e *Engine) Search(ctx context.Context, query, documentID string) (string, error) {
	res, err := e.Retrieve(ctx, query, documentID)
	if err != nil {
		return "", err
	}
	return res.Context(), nil
}

// Context joins the passages with ContextDelimiter.
func (r *Result) Context() string {
	if r == nil || len(r.Passages) == 0 {
		return NoRelevantInformation
	}
	parts := make([]string, len(r.Passages))
	for i, p := range r.Passages {
		parts[i] = p.Chunk.Content
	}
	return strings.Join(parts, ContextDelimiter)
}
