// Package embedding maps text to vectors. Remote backends live in internal/llm; this package
// holds the contract, batching, caching, a local ONNX model and a deterministic mock.
package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Embedder produces vector embeddings for text. All vectors from one Embedder share a dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// BatchFunc embeds one batch and returns vectors in input order.
type BatchFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Batch splits texts into batches of size and runs up to concurrency batches at once.
// The result keeps the input order. The first failing batch cancels the rest.
func Batch(ctx context.Context, texts []string, size, concurrency int, embed BatchFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if size <= 0 {
		size = len(texts)
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for start := 0; start < len(texts); start += size {
		start := start
		end := min(start+size, len(texts))
		g.Go(func() error {
			vecs, err := embed(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding batch returned %d vectors for %d inputs", len(vecs), end-start)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
