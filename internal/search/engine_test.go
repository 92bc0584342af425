package search

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/embedding"
	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/internal/storage"
)

type fixedEmbedder struct {
	vec []float32
	err error
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, f.err
}

func (f *fixedEmbedder) Dimensions() int { return len(f.vec) }
func (f *fixedEmbedder) Close() error    { return nil }

type chunkList []*models.Chunk

func (c chunkList) ListChunks(ctx context.Context, documentID string, limit int) ([]*models.Chunk, error) {
	if limit > 0 && len(c) > limit {
		return c[:limit], nil
	}
	return c, nil
}

func testRetrieval() config.RetrievalConfig {
	return config.RetrievalConfig{MaxChunks: 20, TopK: 10, MinSimilarity: 0.3, MinWordLength: 3}
}

func TestEngine_SingleSimilarChunk(t *testing.T) {
	chunks := chunkList{
		{ID: "a", Content: "unrelated", Embedding: []float32{0, 1}},
		{ID: "b", Content: "the answer", Embedding: []float32{0.9, float32(math.Sqrt(1 - 0.81))}},
		{ID: "c", Content: "weak", Embedding: []float32{0.2, 0.98}},
		{ID: "d", Content: "no vector"},
	}
	e := NewEngine(chunks, &fixedEmbedder{vec: []float32{1, 0}}, testRetrieval(), nil)

	got, err := e.Search(context.Background(), "question", "doc")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got != "the answer" {
		t.Errorf("Search = %q, want single chunk", got)
	}
}

func TestEngine_SimilarityOrderAndTopK(t *testing.T) {
	chunks := chunkList{
		{ID: "low", Content: "low", Embedding: []float32{0.5, 0.5}},
		{ID: "high", Content: "high", Embedding: []float32{1, 0}},
		{ID: "tie", Content: "tie", Embedding: []float32{2, 0}},
	}
	cfg := testRetrieval()
	cfg.TopK = 2
	e := NewEngine(chunks, &fixedEmbedder{vec: []float32{1, 0}}, cfg, nil)

	got, err := e.Search(context.Background(), "q", "doc")
	if err != nil {
		t.Fatal(err)
	}
	if want := "high" + ContextDelimiter + "tie"; got != want {
		t.Errorf("Search = %q, want %q", got, want)
	}
}

func TestEngine_LexicalFallback(t *testing.T) {
	chunks := chunkList{
		{ID: "one", Content: "The FEE schedule"},
		{ID: "none", Content: "nothing here"},
		{ID: "three", Content: "Credit card annual charges"},
	}
	e := NewEngine(chunks, &fixedEmbedder{vec: []float32{1, 0}}, testRetrieval(), nil)

	got, err := e.Search(context.Background(), "credit card annual fee", "doc")
	if err != nil {
		t.Fatal(err)
	}
	want := "Credit card annual charges" + ContextDelimiter + "The FEE schedule"
	if got != want {
		t.Errorf("Search = %q, want %q", got, want)
	}
}

func TestEngine_FallbackWhenBelowThreshold(t *testing.T) {
	chunks := chunkList{
		{ID: "a", Content: "savings account rates", Embedding: []float32{0.1, 1}},
	}
	e := NewEngine(chunks, &fixedEmbedder{vec: []float32{1, 0}}, testRetrieval(), nil)

	res, err := e.Retrieve(context.Background(), "account", "doc")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Lexical || len(res.Passages) != 1 {
		t.Errorf("expected lexical match, got %+v", res)
	}
}

func TestEngine_NoRelevantInformation(t *testing.T) {
	tests := []struct {
		name   string
		chunks chunkList
	}{
		{"no chunks", nil},
		{"no matches", chunkList{{ID: "a", Content: "mortgage"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(tt.chunks, &fixedEmbedder{vec: []float32{1, 0}}, testRetrieval(), nil)
			got, err := e.Search(context.Background(), "credit card", "doc")
			if err != nil {
				t.Fatal(err)
			}
			if got != NoRelevantInformation {
				t.Errorf("Search = %q, want sentinel", got)
			}
		})
	}
}

func TestEngine_EmbeddingFailureIsReturned(t *testing.T) {
	e := NewEngine(chunkList{{ID: "a", Content: "x"}}, &fixedEmbedder{err: models.ErrUpstreamUnavailable}, testRetrieval(), nil)
	_, err := e.Search(context.Background(), "q", "doc")
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Errorf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestEngine_DimensionMismatchScoresZero(t *testing.T) {
	chunks := chunkList{
		{ID: "bad", Content: "three dims", Embedding: []float32{1, 0, 0}},
		{ID: "good", Content: "two dims", Embedding: []float32{1, 0}},
	}
	e := NewEngine(chunks, &fixedEmbedder{vec: []float32{1, 0}}, testRetrieval(), nil)
	got, err := e.Search(context.Background(), "q", "doc")
	if err != nil {
		t.Fatal(err)
	}
	if got != "two dims" {
		t.Errorf("Search = %q", got)
	}
}

func TestEngine_WithSQLiteStorage(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	emb := embedding.NewMockEmbedder(64)
	if _, _, err := store.CreateDocument(ctx, &models.Document{ID: "d1", Title: "Cards", FileHash: "h", FileName: "cards.pdf"}); err != nil {
		t.Fatal(err)
	}
	texts := []string{"credit card annual fee waived", "mortgage repayment schedule"}
	vecs, err := emb.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatal(err)
	}
	var chunks []*models.Chunk
	for i, text := range texts {
		chunks = append(chunks, &models.Chunk{ID: text, DocumentID: "d1", Position: i, Content: text, Embedding: vecs[i]})
	}
	if err := store.CreateChunks(ctx, chunks); err != nil {
		t.Fatal(err)
	}

	e := NewEngine(store, emb, testRetrieval(), nil)
	got, err := e.Search(ctx, "credit card annual fee", "d1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "credit card annual fee waived") {
		t.Errorf("Search = %q", got)
	}
}

func TestQueryTerms(t *testing.T) {
	got := QueryTerms("What is the Annual fee, the FEE?", 3)
	want := []string{"what", "the", "annual", "fee,", "fee?"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("QueryTerms = %v, want %v", got, want)
	}
}
