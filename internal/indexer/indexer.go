package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/cache"
	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/embedding"
	"github.com/hyperjump/shiryo/internal/extract"
	"github.com/hyperjump/shiryo/internal/fileid"
	"github.com/hyperjump/shiryo/internal/keyword"
	"github.com/hyperjump/shiryo/internal/llm"
	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/internal/storage"
)

// IngestResult describes one ingested (or already known) document.
type IngestResult struct {
	Document *models.Document `json:"document"`
	Chunks   int              `json:"chunks"`
	Embedded bool             `json:"embedded"`
}

// Indexer runs the ingestion pipeline and owns the document library: storage, keyword index
// and document cache stay consistent through it.
type Indexer struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	keywordIndex keyword.DocumentIndex
	cache        cache.Cache
	categories   *storage.CategoryBootstrapper
	extractor    *extract.Extractor
	metadata     *MetadataExtractor
	chunker      *Chunker
	allowed      []string
	batchSize    int
	concurrency  int
	logger       *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithCache sets the document cache. The default caches nothing.
func WithCache(c cache.Cache) IndexerOption {
	return func(idx *Indexer) { idx.cache = c }
}

// WithCategoryBootstrapper shares a bootstrapper with other services.
func WithCategoryBootstrapper(b *storage.CategoryBootstrapper) IndexerOption {
	return func(idx *Indexer) { idx.categories = b }
}

// NewIndexer creates an indexer. generator is used for metadata extraction and may be nil, in
// which case every document gets fallback metadata.
func NewIndexer(
	store storage.Storage,
	embedder embedding.Embedder,
	keywordIndex keyword.DocumentIndex,
	generator llm.Generator,
	cfg *config.Config,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		storage:      store,
		embedder:     embedder,
		keywordIndex: keywordIndex,
		cache:        cache.Nop{},
		extractor:    extract.NewExtractor(),
		chunker:      NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap),
		allowed:      cfg.Ingestion.AllowedMIMETypes,
		batchSize:    cfg.Embedding.BatchSize,
		concurrency:  cfg.Embedding.Concurrency,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.logger == nil {
		idx.logger = zap.NewNop()
	}
	if idx.categories == nil {
		idx.categories = storage.NewCategoryBootstrapper(store, nil)
	}
	if len(idx.allowed) == 0 {
		idx.allowed = config.DefaultAllowedMIMETypes
	}
	idx.metadata = NewMetadataExtractor(generator, cfg.LLM.Models.Ingestion,
		cfg.Ingestion.MetadataMaxChars, cfg.Ingestion.MetadataTimeout, idx.logger)
	return idx
}

// Ingest stores an uploaded file. An already stored file (same content hash) returns the
// existing document together with models.ErrDuplicateContent.
func (idx *Indexer) Ingest(ctx context.Context, content []byte, filename, mimeType string) (*IngestResult, error) {
	mimeType = extract.NormalizeMIME(mimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = extract.MIMEFromFilename(filename)
	}
	if !extract.Allowed(mimeType, idx.allowed) {
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedType, mimeType)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, models.ErrEmptyContent)
	}

	hash := fileid.ContentHash(content)
	existing, err := idx.storage.GetDocumentByHash(ctx, hash)
	switch {
	case err == nil:
		idx.logger.Info("document already ingested", zap.String("file", filename), zap.String("id", existing.ID))
		return &IngestResult{Document: existing}, models.ErrDuplicateContent
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("lookup content hash: %w", err)
	}

	raw, err := idx.extractor.ExtractMIME(content, mimeType, filename)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	text := Normalize(StripNUL(raw))
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s has no extractable text: %w", filename, models.ErrEmptyContent)
	}

	if err := idx.categories.Ensure(ctx); err != nil {
		return nil, fmt.Errorf("seed categories: %w", err)
	}

	doc := idx.metadata.Extract(ctx, text, hash, filename)
	doc.ID = fileid.New()
	stored, created, err := idx.storage.CreateDocument(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	if !created {
		// lost a race with a concurrent upload of the same file
		return &IngestResult{Document: stored}, models.ErrDuplicateContent
	}

	result := &IngestResult{Document: stored}
	result.Chunks, result.Embedded = idx.storeChunks(ctx, stored, text)

	if err := idx.keywordIndex.Index(ctx, stored, text); err != nil {
		idx.logger.Warn("keyword indexing failed", zap.String("id", stored.ID), zap.Error(err))
	}
	cache.SetJSON(ctx, idx.cache, cache.DocumentKey(stored.ID), stored)

	idx.logger.Info("document ingested",
		zap.String("id", stored.ID),
		zap.String("title", stored.Title),
		zap.Int("category_id", stored.CategoryID),
		zap.Int("chunks", result.Chunks),
		zap.Bool("embedded", result.Embedded))
	return result, nil
}

// storeChunks chunks and embeds text. When embedding fails the chunks are stored without
// vectors; they stay available to lexical retrieval and presentations.
func (idx *Indexer) storeChunks(ctx context.Context, doc *models.Document, text string) (int, bool) {
	chunks := idx.chunker.Chunk(doc.ID, text)
	if len(chunks) == 0 {
		return 0, false
	}

	embedded := false
	if idx.embedder != nil {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		vecs, err := embedding.Batch(ctx, texts, idx.batchSize, idx.concurrency, idx.embedder.EmbedBatch)
		if err != nil {
			idx.logger.Warn("embedding failed, storing chunks without vectors",
				zap.String("id", doc.ID),
				zap.Error(err))
		} else {
			for i := range chunks {
				chunks[i].Embedding = vecs[i]
			}
			embedded = true
		}
	}

	if err := idx.storage.CreateChunks(ctx, chunks); err != nil {
		idx.logger.Error("failed to store chunks", zap.String("id", doc.ID), zap.Error(err))
		return 0, false
	}
	return len(chunks), embedded
}

// IngestFile ingests a file from disk, taking its MIME type from the extension.
func (idx *Indexer) IngestFile(ctx context.Context, path string) (*IngestResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	name := filepath.Base(path)
	return idx.Ingest(ctx, content, name, extract.MIMEFromFilename(name))
}

// IngestDirectory walks dir and ingests every regular file with an accepted type. Duplicates are
// skipped silently. It returns the number of new documents and the first hard error.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string) (int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", dir)
	}
	n := 0
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !idx.Accepts(path) {
			return nil
		}
		_, err := idx.IngestFile(ctx, path)
		switch {
		case err == nil:
			n++
		case errors.Is(err, models.ErrDuplicateContent), errors.Is(err, models.ErrEmptyContent):
			idx.logger.Debug("skipping file", zap.String("path", path), zap.Error(err))
		default:
			return err
		}
		return nil
	})
	return n, err
}

// Accepts reports whether path has an extension whose MIME type is allowed.
func (idx *Indexer) Accepts(path string) bool {
	mt := extract.MIMEFromFilename(path)
	return mt != "" && extract.Allowed(mt, idx.allowed)
}

// Get returns a document, served from the cache when possible.
func (idx *Indexer) Get(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if cache.GetJSON(ctx, idx.cache, cache.DocumentKey(id), &doc) {
		return &doc, nil
	}
	stored, err := idx.storage.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	cache.SetJSON(ctx, idx.cache, cache.DocumentKey(id), stored)
	return stored, nil
}

// List returns documents ordered by title, optionally filtered by category (0 = all).
func (idx *Indexer) List(ctx context.Context, categoryID int) ([]*models.Document, error) {
	return idx.storage.ListDocuments(ctx, categoryID)
}

// Categories returns the service categories, seeding them on first use.
func (idx *Indexer) Categories(ctx context.Context) ([]*models.Category, error) {
	if err := idx.categories.Ensure(ctx); err != nil {
		return nil, err
	}
	return idx.storage.ListCategories(ctx)
}

// Search finds documents by keywords over title, file name and text.
func (idx *Indexer) Search(ctx context.Context, query string, limit int, opts *keyword.SearchOptions) ([]*models.Document, error) {
	hits, err := idx.keywordIndex.Search(ctx, query, limit, opts)
	if err != nil {
		return nil, err
	}
	docs := make([]*models.Document, 0, len(hits))
	for _, h := range hits {
		doc, err := idx.Get(ctx, h.ID)
		if errors.Is(err, models.ErrNotFound) {
			// index entry outlived its document
			_ = idx.keywordIndex.Delete(ctx, h.ID)
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Delete removes a document with its chunks and chat sessions from storage, then from the
// keyword index and the cache.
func (idx *Indexer) Delete(ctx context.Context, id string) error {
	if err := idx.storage.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if err := idx.keywordIndex.Delete(ctx, id); err != nil {
		idx.logger.Warn("keyword index delete failed", zap.String("id", id), zap.Error(err))
	}
	idx.cache.Delete(ctx, cache.DocumentKey(id))
	idx.logger.Info("document deleted", zap.String("id", id))
	return nil
}

// Stats returns library counts.
func (idx *Indexer) Stats(ctx context.Context) (*models.DocumentStats, error) {
	return idx.storage.Stats(ctx)
}
