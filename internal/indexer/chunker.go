// Package indexer provides text normalization, chunking and the ingestion pipeline.
package indexer

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/shiryo/internal/fileid"
	"github.com/hyperjump/shiryo/internal/models"
)

// defaultSeparators are tried in order: paragraphs, lines, words, then characters.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker splits text into overlapping passages measured in characters.
// It prefers paragraph boundaries, then line, then word boundaries, and only cuts
// inside a token when a single token exceeds the chunk size.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1200
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split returns the passages of text in document order.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, c.separators)
}

// Chunk splits text into Chunks for docID with stable ids and consecutive positions.
func (c *Chunker) Chunk(docID, text string) []*models.Chunk {
	passages := c.Split(text)
	if len(passages) == 0 {
		return nil
	}
	now := time.Now().UTC()
	chunks := make([]*models.Chunk, 0, len(passages))
	for i, p := range passages {
		chunks = append(chunks, &models.Chunk{
			ID:         fileid.ChunkID(docID, i, p),
			DocumentID: docID,
			Position:   i,
			Content:    p,
			CreatedAt:  now,
		})
	}
	return chunks
}

func (c *Chunker) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			next = separators[i+1:]
			break
		}
	}

	var out, good []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < c.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, c.merge(good)...)
			good = nil
		}
		if len(next) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, c.split(piece, next)...)
		}
	}
	if len(good) > 0 {
		out = append(out, c.merge(good)...)
	}
	return out
}

// merge packs consecutive pieces into passages no longer than chunkSize, carrying up to
// chunkOverlap characters of trailing pieces into the next passage.
func (c *Chunker) merge(pieces []string) []string {
	var docs, current []string
	total := 0
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > c.chunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for len(current) > 0 && (total > c.chunkOverlap || total+n > c.chunkSize) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeepingSeparator splits text on sep and keeps sep at the start of every piece but
// the first. An empty sep splits into characters.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
