package search

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/internal/vector"
)

// Scored is a chunk with its ranking score.
type Scored struct {
	Chunk *models.Chunk
	Score float64
}

// RankBySimilarity scores every embedded chunk against query and keeps those scoring strictly
// above threshold, best first. Ties keep chunk order. Dimension mismatches score 0 and are logged.
func RankBySimilarity(query []float32, chunks []*models.Chunk, threshold float64, logger *zap.Logger) []Scored {
	var out []Scored
	for _, c := range chunks {
		if !c.HasEmbedding() {
			continue
		}
		sim, err := vector.Cosine(query, c.Embedding)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping chunk with mismatched embedding",
					zap.String("chunk_id", c.ID),
					zap.Int("query_dims", len(query)),
					zap.Int("chunk_dims", len(c.Embedding)),
				)
			}
			sim = 0
		}
		if sim > threshold {
			out = append(out, Scored{Chunk: c, Score: sim})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// RankByTerms counts how many terms occur in each chunk's lowercased content and keeps chunks
// with at least one match, most matches first. Ties keep chunk order.
func RankByTerms(terms []string, chunks []*models.Chunk) []Scored {
	if len(terms) == 0 {
		return nil
	}
	var out []Scored
	for _, c := range chunks {
		content := strings.ToLower(c.Content)
		matches := 0
		for _, t := range terms {
			if strings.Contains(content, t) {
				matches++
			}
		}
		if matches > 0 {
			out = append(out, Scored{Chunk: c, Score: float64(matches)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Top returns at most k entries.
func Top(scored []Scored, k int) []Scored {
	if k > 0 && len(scored) > k {
		return scored[:k]
	}
	return scored
}
