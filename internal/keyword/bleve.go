package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/shiryo/internal/models"
)

const (
	defaultTitleBoost = 3.0
	defaultFuzziness  = 1
	maxFuzziness      = 2
)

var _ DocumentIndex = (*BleveIndex)(nil)

// BleveIndex implements DocumentIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// indexedDocument is the shape stored in Bleve.
type indexedDocument struct {
	Title      string  `json:"title"`
	FileName   string  `json:"file_name"`
	Content    string  `json:"content"`
	CategoryID float64 `json:"category_id"`
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates an in-memory index.
// If you change the mapping, remove the index directory and re-ingest.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// standard analyzer: lowercase + tokenize, no stemming, so product names match as written
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", text)
	docMapping.AddFieldMappingsAt("file_name", text)
	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.Store = false
	docMapping.AddFieldMappingsAt("content", content)
	docMapping.AddFieldMappingsAt("category_id", bleve.NewNumericFieldMapping())
	im.DefaultMapping = docMapping

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}
	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index adds or replaces a document. Underscores in the file name are indexed as spaces so
// "credit_card_terms.pdf" matches "credit card".
func (b *BleveIndex) Index(ctx context.Context, doc *models.Document, text string) error {
	return b.index.Index(doc.ID, indexedDocument{
		Title:      doc.Title,
		FileName:   strings.ReplaceAll(doc.FileName, "_", " "),
		Content:    text,
		CategoryID: float64(doc.CategoryID),
	})
}

// Search matches query against title, file name and content. Title and file name hits are
// boosted; with FuzzyEnabled every term also matches within the configured edit distance.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	o := SearchOptions{TitleBoost: defaultTitleBoost, Fuzziness: defaultFuzziness}
	if opts != nil {
		if opts.TitleBoost > 0 {
			o.TitleBoost = opts.TitleBoost
		}
		if opts.Fuzziness > 0 {
			o.Fuzziness = min(opts.Fuzziness, maxFuzziness)
		}
		o.FuzzyEnabled = opts.FuzzyEnabled
		o.CategoryID = opts.CategoryID
	}

	q := blevequery.Query(bleve.NewDisjunctionQuery(
		fieldQuery(query, "title", o.TitleBoost, o),
		fieldQuery(query, "file_name", o.TitleBoost, o),
		fieldQuery(query, "content", 1, o),
	))
	if o.CategoryID > 0 {
		id := float64(o.CategoryID)
		inclusive := true
		cat := bleve.NewNumericRangeInclusiveQuery(&id, &id, &inclusive, &inclusive)
		cat.SetField("category_id")
		q = bleve.NewConjunctionQuery(q, cat)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}
	hits := make([]*Hit, len(res.Hits))
	for i, h := range res.Hits {
		hits[i] = &Hit{ID: h.ID, Score: h.Score}
	}
	return hits, nil
}

// fieldQuery builds the per-field query: a match query, or a disjunction of fuzzy term queries.
func fieldQuery(query, field string, boost float64, o SearchOptions) blevequery.Query {
	if !o.FuzzyEnabled {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		mq.SetBoost(boost)
		return mq
	}
	terms := strings.Fields(strings.ToLower(query))
	parts := make([]blevequery.Query, 0, len(terms))
	for _, t := range terms {
		fq := bleve.NewFuzzyQuery(t)
		fq.SetFuzziness(o.Fuzziness)
		fq.SetField(field)
		fq.SetBoost(boost)
		parts = append(parts, fq)
	}
	return bleve.NewDisjunctionQuery(parts...)
}

// Delete removes a document from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the number of indexed documents.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
