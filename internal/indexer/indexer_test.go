package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/embedding"
	"github.com/hyperjump/shiryo/internal/keyword"
	"github.com/hyperjump/shiryo/internal/llm"
	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/internal/storage"
)

type failingEmbedder struct{ embedding.Embedder }

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("gateway down")
}

// memCache is an in-process cache.Cache.
type memCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *memCache) Get(_ context.Context, k string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[k]
	return v, ok
}

func (c *memCache) Set(_ context.Context, k string, v []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string][]byte)
	}
	c.m[k] = v
}

func (c *memCache) Delete(_ context.Context, k string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, k)
}

func (c *memCache) Close() error { return nil }

type testEnv struct {
	idx   *Indexer
	store *storage.SQLiteStorage
	cache *memCache
}

func newTestIndexer(t *testing.T, emb embedding.Embedder, gen llm.Generator) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Chunking.Size, cfg.Chunking.Overlap = 60, 10
	cfg.Embedding.BatchSize = 2

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	kw, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	mc := &memCache{}
	return &testEnv{
		idx:   NewIndexer(store, emb, kw, gen, cfg, WithCache(mc)),
		store: store,
		cache: mc,
	}
}

const cardText = "Gold Card\n\nCashback of 5% on groceries. The annual fee is waived in the first year.\n\nLounge access at major airports."

func TestIngest(t *testing.T) {
	gen := llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		return "```json\n" + `{"category_id":3,"title":"Gold Card Benefits","document_source":"Marketing","publication_date":"2024-03-01","file_hash":"x","file_name":"x"}` + "\n```", nil
	})
	env := newTestIndexer(t, embedding.NewMockEmbedder(8), gen)
	ctx := context.Background()

	res, err := env.idx.Ingest(ctx, []byte(cardText), "gold_card.txt", "text/plain; charset=utf-8")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	doc := res.Document
	if doc.Title != "Gold Card Benefits" || doc.CategoryID != 3 || doc.DocumentSource != "Marketing" {
		t.Errorf("metadata = %+v", doc)
	}
	if doc.PublicationDate == nil || doc.PublicationDate.Format("2006-01-02") != "2024-03-01" {
		t.Errorf("publication date = %v", doc.PublicationDate)
	}
	if doc.FileName != "gold_card.txt" || len(doc.FileHash) != 64 {
		t.Errorf("file fields = %q %q", doc.FileName, doc.FileHash)
	}
	if res.Chunks < 2 || !res.Embedded {
		t.Errorf("chunks = %d embedded = %v", res.Chunks, res.Embedded)
	}

	chunks, err := env.store.ListChunks(ctx, doc.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range chunks {
		if c.Position != i || !c.HasEmbedding() {
			t.Errorf("chunk %d: position %d embedded %v", i, c.Position, c.HasEmbedding())
		}
	}

	hits, err := env.idx.Search(ctx, "cashback", 5, nil)
	if err != nil || len(hits) != 1 || hits[0].ID != doc.ID {
		t.Errorf("Search = %v, %v", hits, err)
	}
	if _, ok := env.cache.Get(ctx, "document:"+doc.ID); !ok {
		t.Error("document should be cached")
	}

	again, err := env.idx.Ingest(ctx, []byte(cardText), "copy.txt", "text/plain")
	if !errors.Is(err, models.ErrDuplicateContent) {
		t.Fatalf("second Ingest err = %v, want ErrDuplicateContent", err)
	}
	if again.Document.ID != doc.ID {
		t.Errorf("duplicate should return the existing document")
	}
}

func TestIngest_Rejects(t *testing.T) {
	env := newTestIndexer(t, embedding.NewMockEmbedder(8), nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		content  []byte
		filename string
		mime     string
		err      error
	}{
		{"unsupported type", []byte("x"), "sheet.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", models.ErrUnsupportedType},
		{"image", []byte("x"), "photo.png", "image/png", models.ErrUnsupportedType},
		{"empty", nil, "empty.txt", "text/plain", models.ErrEmptyContent},
		{"whitespace only", []byte(" \n\x00\n "), "blank.txt", "text/plain", models.ErrEmptyContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.idx.Ingest(ctx, tt.content, tt.filename, tt.mime); !errors.Is(err, tt.err) {
				t.Errorf("err = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestIngest_FallbackMetadataAndNoEmbeddings(t *testing.T) {
	gen := llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		return "I think this is about cards", nil
	})
	env := newTestIndexer(t, failingEmbedder{embedding.NewMockEmbedder(8)}, gen)
	ctx := context.Background()

	res, err := env.idx.Ingest(ctx, []byte(cardText), "gold_card_terms.md", "")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Document.Title != "Gold Card Terms" || res.Document.CategoryID != models.GeneralCategoryID {
		t.Errorf("fallback metadata = %+v", res.Document)
	}
	if res.Embedded || res.Chunks == 0 {
		t.Errorf("chunks = %d embedded = %v", res.Chunks, res.Embedded)
	}
	stats, err := env.idx.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Chunks != res.Chunks || stats.Embedded != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestDelete(t *testing.T) {
	env := newTestIndexer(t, embedding.NewMockEmbedder(8), nil)
	ctx := context.Background()

	res, err := env.idx.Ingest(ctx, []byte(cardText), "cards.txt", "text/plain")
	if err != nil {
		t.Fatal(err)
	}
	id := res.Document.ID
	if err := env.idx.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := env.idx.Get(ctx, id); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
	if hits, _ := env.idx.Search(ctx, "cashback", 5, nil); len(hits) != 0 {
		t.Errorf("deleted document still searchable")
	}
	if err := env.idx.Delete(ctx, id); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestIngestFile(t *testing.T) {
	env := newTestIndexer(t, embedding.NewMockEmbedder(8), nil)
	ctx := context.Background()
	dir := t.TempDir()

	if _, err := env.idx.IngestFile(ctx, dir); err == nil {
		t.Error("expected error for directory")
	}
	if _, err := env.idx.IngestFile(ctx, filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(dir, "payroll_services.txt")
	if err := os.WriteFile(path, []byte("Salary transfer for employees."), 0o600); err != nil {
		t.Fatal(err)
	}
	res, err := env.idx.IngestFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Document.Title != "Payroll Services" {
		t.Errorf("title = %q", res.Document.Title)
	}
}

func TestIngestDirectory(t *testing.T) {
	env := newTestIndexer(t, embedding.NewMockEmbedder(8), nil)
	ctx := context.Background()
	dir := t.TempDir()

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		filepath.Join(dir, "a.txt"):   "file a",
		filepath.Join(dir, "b.md"):    "file b",
		filepath.Join(sub, "c.txt"):   "file c",
		filepath.Join(sub, "dup.txt"): "file a",
		filepath.Join(dir, "x.xyz"):   "skipped",
	}
	for p, body := range files {
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	n, err := env.idx.IngestDirectory(ctx, dir)
	if err != nil {
		t.Fatalf("IngestDirectory: %v", err)
	}
	if n != 3 {
		t.Errorf("ingested %d files, want 3", n)
	}
	if _, err := env.idx.IngestDirectory(ctx, filepath.Join(dir, "a.txt")); err == nil {
		t.Error("expected error for a file path")
	}
}

func TestCategories(t *testing.T) {
	env := newTestIndexer(t, nil, nil)
	cats, err := env.idx.Categories(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != len(models.DefaultCategories) {
		t.Errorf("got %d categories", len(cats))
	}
}
