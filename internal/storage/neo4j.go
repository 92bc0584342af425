package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/models"
)

const (
	chunkBatchSize = 500
	dateLayout     = "2006-01-02"
)

var _ Storage = (*Neo4jStorage)(nil)

// Neo4jStorage implements Storage on a Neo4j graph:
//
//	(:ServiceCategory)-[:HAS_DOCUMENTS]->(:Document)-[:HAS_CHUNK]->(:Chunk)
//	(:ChatSession)-[:ABOUT]->(:Document)
//	(:ChatSession)-[:HAS_MESSAGE]->(:Message)
//	(:Presentation)-[:GENERATED_FROM]->(:Document)
//	(:Presentation)-[:BELONGS_TO_CATEGORY]->(:ServiceCategory)
//
// Timestamps are stored as Unix nanoseconds so ordering is exact.
type Neo4jStorage struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewNeo4jStorage connects to Neo4j, verifies connectivity and creates constraints.
func NewNeo4jStorage(ctx context.Context, cfg config.Neo4jConfig, logger *zap.Logger) (*Neo4jStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	auth := neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		if cfg.MaxPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
		}
		if cfg.ConnectTimeout > 0 {
			c.SocketConnectTimeout = cfg.ConnectTimeout
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	vctx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	s := &Neo4jStorage{driver: driver, database: cfg.Database, logger: logger}
	s.initSchema(ctx)
	return s, nil
}

func (s *Neo4jStorage) initSchema(ctx context.Context) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT service_category_id_unique IF NOT EXISTS FOR (c:ServiceCategory) REQUIRE c.id IS UNIQUE`,
		`CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`,
		`CREATE CONSTRAINT document_hash_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.file_hash IS UNIQUE`,
		`CREATE CONSTRAINT chunk_id_unique IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE`,
		`CREATE CONSTRAINT chat_session_id_unique IF NOT EXISTS FOR (s:ChatSession) REQUIRE s.id IS UNIQUE`,
		`CREATE CONSTRAINT message_id_unique IF NOT EXISTS FOR (m:Message) REQUIRE m.id IS UNIQUE`,
		`CREATE CONSTRAINT presentation_id_unique IF NOT EXISTS FOR (p:Presentation) REQUIRE p.id IS UNIQUE`,
		`CREATE INDEX document_created_at IF NOT EXISTS FOR (d:Document) ON (d.created_at)`,
		`CREATE INDEX chat_session_user IF NOT EXISTS FOR (s:ChatSession) ON (s.user_id)`,
	}
	for _, q := range stmts {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			s.logger.Warn("neo4j schema init failed (continuing)", zap.Error(err))
			continue
		}
		_, _ = res.Consume(ctx)
	}
}

func (s *Neo4jStorage) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database, AccessMode: mode})
}

func (s *Neo4jStorage) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]*neo4j.Record), nil
}

func (s *Neo4jStorage) write(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	return session.ExecuteWrite(ctx, work)
}

func runCollect(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return res.Collect(ctx)
}

func runConsume(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) error {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

// recordReader reads typed record values and keeps the first error.
type recordReader struct {
	rec *neo4j.Record
	err error
}

func (r *recordReader) fail(key string, err error) {
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("field %s: %w", key, err)
	}
}

func (r *recordReader) str(key string) string {
	v, _, err := neo4j.GetRecordValue[string](r.rec, key)
	r.fail(key, err)
	return v
}

func (r *recordReader) int(key string) int64 {
	v, _, err := neo4j.GetRecordValue[int64](r.rec, key)
	r.fail(key, err)
	return v
}

func (r *recordReader) time(key string) time.Time {
	return fromNanos(r.int(key))
}

func (r *recordReader) vector(key string) []float32 {
	raw, isNil, err := neo4j.GetRecordValue[[]any](r.rec, key)
	r.fail(key, err)
	if isNil || len(raw) == 0 {
		return nil
	}
	v := make([]float32, len(raw))
	for i, x := range raw {
		f, ok := x.(float64)
		if !ok {
			r.fail(key, fmt.Errorf("element %d has type %T", i, x))
			return nil
		}
		v[i] = float32(f)
	}
	return v
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// EnsureCategories merges the taxonomy nodes.
func (s *Neo4jStorage) EnsureCategories(ctx context.Context, categories []models.Category) error {
	rows := make([]map[string]any, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, map[string]any{"id": int64(c.ID), "name": c.Name, "description": c.Description})
	}
	_, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, runConsume(ctx, tx, `
UNWIND $categories AS c
MERGE (sc:ServiceCategory {id: c.id})
SET sc.name = c.name, sc.description = c.description
`, map[string]any{"categories": rows})
	})
	if err != nil {
		return fmt.Errorf("failed to merge categories: %w", err)
	}
	return nil
}

// ListCategories returns categories ordered by name.
func (s *Neo4jStorage) ListCategories(ctx context.Context) ([]*models.Category, error) {
	recs, err := s.read(ctx, `
MATCH (c:ServiceCategory)
RETURN c.id AS id, c.name AS name, coalesce(c.description, '') AS description
ORDER BY c.name`, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Category, 0, len(recs))
	for _, rec := range recs {
		r := recordReader{rec: rec}
		c := &models.Category{ID: int(r.int("id")), Name: r.str("name"), Description: r.str("description")}
		if r.err != nil {
			return nil, r.err
		}
		out = append(out, c)
	}
	return out, nil
}

const documentReturn = `d.id AS id, d.category_id AS category_id, d.title AS title,
coalesce(d.document_source, '') AS document_source, d.publication_date AS publication_date,
d.file_hash AS file_hash, d.file_name AS file_name, d.created_at AS created_at`

func documentFromRecord(rec *neo4j.Record) (*models.Document, error) {
	r := recordReader{rec: rec}
	doc := &models.Document{
		ID:             r.str("id"),
		CategoryID:     int(r.int("category_id")),
		Title:          r.str("title"),
		DocumentSource: r.str("document_source"),
		FileHash:       r.str("file_hash"),
		FileName:       r.str("file_name"),
		CreatedAt:      r.time("created_at"),
	}
	if pub := r.str("publication_date"); pub != "" {
		if t, err := time.Parse(dateLayout, pub); err == nil {
			doc.PublicationDate = &t
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return doc, nil
}

func (s *Neo4jStorage) readDocument(ctx context.Context, cypher string, params map[string]any) (*models.Document, error) {
	recs, err := s.read(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, models.ErrNotFound
	}
	return documentFromRecord(recs[0])
}

func (s *Neo4jStorage) readDocuments(ctx context.Context, cypher string, params map[string]any) ([]*models.Document, error) {
	recs, err := s.read(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Document, 0, len(recs))
	for _, rec := range recs {
		doc, err := documentFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// CreateDocument merges the document on its file hash and links new documents to their category.
func (s *Neo4jStorage) CreateDocument(ctx context.Context, doc *models.Document) (*models.Document, bool, error) {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	var pub any
	if doc.PublicationDate != nil {
		pub = doc.PublicationDate.Format(dateLayout)
	}
	params := map[string]any{
		"id":               doc.ID,
		"category_id":      int64(doc.CategoryID),
		"title":            doc.Title,
		"document_source":  doc.DocumentSource,
		"publication_date": pub,
		"file_hash":        doc.FileHash,
		"file_name":        doc.FileName,
		"created_at":       toNanos(doc.CreatedAt),
	}
	out, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return runCollect(ctx, tx, `
MERGE (d:Document {file_hash: $file_hash})
ON CREATE SET d.id = $id, d.category_id = $category_id, d.title = $title,
              d.document_source = $document_source, d.publication_date = $publication_date,
              d.file_name = $file_name, d.created_at = $created_at, d.is_new = true
ON MATCH SET d.is_new = false
WITH d, d.is_new AS created
REMOVE d.is_new
FOREACH (_ IN CASE WHEN created THEN [1] ELSE [] END |
  MERGE (c:ServiceCategory {id: $category_id})
  MERGE (c)-[:HAS_DOCUMENTS]->(d)
)
RETURN `+documentReturn+`, created`, params)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to merge document: %w", err)
	}
	recs := out.([]*neo4j.Record)
	if len(recs) == 0 {
		return nil, false, fmt.Errorf("failed to merge document: no record returned")
	}
	stored, err := documentFromRecord(recs[0])
	if err != nil {
		return nil, false, err
	}
	created, _, err := neo4j.GetRecordValue[bool](recs[0], "created")
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// GetDocument returns a document by ID.
func (s *Neo4jStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return s.readDocument(ctx, `MATCH (d:Document {id: $id}) RETURN `+documentReturn, map[string]any{"id": id})
}

// GetDocumentByHash returns the document with the given content hash.
func (s *Neo4jStorage) GetDocumentByHash(ctx context.Context, hash string) (*models.Document, error) {
	return s.readDocument(ctx, `MATCH (d:Document {file_hash: $hash}) RETURN `+documentReturn, map[string]any{"hash": hash})
}

// GetDocumentByTitle returns the newest document with exactly this title.
func (s *Neo4jStorage) GetDocumentByTitle(ctx context.Context, title string) (*models.Document, error) {
	return s.readDocument(ctx, `
MATCH (d:Document {title: $title})
RETURN `+documentReturn+`
ORDER BY d.created_at DESC LIMIT 1`, map[string]any{"title": title})
}

// ListDocuments returns documents ordered by title, optionally restricted to one category.
func (s *Neo4jStorage) ListDocuments(ctx context.Context, categoryID int) ([]*models.Document, error) {
	if categoryID > 0 {
		return s.readDocuments(ctx, `
MATCH (:ServiceCategory {id: $category_id})-[:HAS_DOCUMENTS]->(d:Document)
RETURN `+documentReturn+`
ORDER BY d.title`, map[string]any{"category_id": int64(categoryID)})
	}
	return s.readDocuments(ctx, `MATCH (d:Document) RETURN `+documentReturn+` ORDER BY d.title`, nil)
}

// FindDocumentByTerms returns the newest document whose title or file name contains any term.
func (s *Neo4jStorage) FindDocumentByTerms(ctx context.Context, terms []string) (*models.Document, error) {
	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lowered = append(lowered, t)
		}
	}
	if len(lowered) == 0 {
		return nil, models.ErrNotFound
	}
	return s.readDocument(ctx, `
MATCH (d:Document)
WHERE any(t IN $terms WHERE toLower(d.title) CONTAINS t OR toLower(d.file_name) CONTAINS t)
RETURN `+documentReturn+`
ORDER BY d.created_at DESC LIMIT 1`, map[string]any{"terms": lowered})
}

// LatestDocument returns the most recently created document.
func (s *Neo4jStorage) LatestDocument(ctx context.Context) (*models.Document, error) {
	return s.readDocument(ctx, `MATCH (d:Document) RETURN `+documentReturn+` ORDER BY d.created_at DESC LIMIT 1`, nil)
}

// DeleteDocument removes the document with its chunks, sessions and messages. Presentations
// keep their content and lose the GENERATED_FROM link.
func (s *Neo4jStorage) DeleteDocument(ctx context.Context, id string) error {
	params := map[string]any{"id": id}
	_, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		recs, err := runCollect(ctx, tx, `MATCH (d:Document {id: $id}) RETURN d.id AS id`, params)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, models.ErrNotFound
		}
		stmts := []string{
			`MATCH (p:Presentation)-[:GENERATED_FROM]->(:Document {id: $id}) SET p.document_id = null`,
			`MATCH (s:ChatSession)-[:ABOUT]->(:Document {id: $id})
OPTIONAL MATCH (s)-[:HAS_MESSAGE]->(m:Message)
WITH s, collect(m) AS messages
FOREACH (m IN messages | DETACH DELETE m)
DETACH DELETE s`,
			`MATCH (d:Document {id: $id})
OPTIONAL MATCH (d)-[:HAS_CHUNK]->(c:Chunk)
WITH d, collect(c) AS chunks
FOREACH (c IN chunks | DETACH DELETE c)
DETACH DELETE d`,
		}
		for _, q := range stmts {
			if err := runConsume(ctx, tx, q, params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// CreateChunks writes chunks in batches, each linked to its document.
func (s *Neo4jStorage) CreateChunks(ctx context.Context, chunks []*models.Chunk) error {
	now := time.Now().UTC()
	rows := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		var emb any
		if c.HasEmbedding() {
			v := make([]float64, len(c.Embedding))
			for i, f := range c.Embedding {
				v[i] = float64(f)
			}
			emb = v
		}
		rows = append(rows, map[string]any{
			"id":          c.ID,
			"document_id": c.DocumentID,
			"position":    int64(c.Position),
			"content":     c.Content,
			"embedding":   emb,
			"created_at":  toNanos(c.CreatedAt),
		})
	}

	for start := 0; start < len(rows); start += chunkBatchSize {
		end := min(start+chunkBatchSize, len(rows))
		batch := rows[start:end]
		_, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return nil, runConsume(ctx, tx, `
UNWIND $chunks AS c
MATCH (d:Document {id: c.document_id})
CREATE (d)-[:HAS_CHUNK]->(:Chunk {
  id: c.id, document_id: c.document_id, position: c.position,
  content: c.content, embedding: c.embedding, created_at: c.created_at
})`, map[string]any{"chunks": batch})
		})
		if err != nil {
			return fmt.Errorf("failed to create chunks %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// ListChunks returns up to limit chunks of a document in position order. limit <= 0 means all.
func (s *Neo4jStorage) ListChunks(ctx context.Context, documentID string, limit int) ([]*models.Chunk, error) {
	cypher := `
MATCH (:Document {id: $id})-[:HAS_CHUNK]->(c:Chunk)
RETURN c.id AS id, c.document_id AS document_id, c.position AS position,
       c.content AS content, c.embedding AS embedding, c.created_at AS created_at
ORDER BY c.position`
	params := map[string]any{"id": documentID}
	if limit > 0 {
		cypher += ` LIMIT $limit`
		params["limit"] = int64(limit)
	}
	recs, err := s.read(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Chunk, 0, len(recs))
	for _, rec := range recs {
		r := recordReader{rec: rec}
		c := &models.Chunk{
			ID:         r.str("id"),
			DocumentID: r.str("document_id"),
			Position:   int(r.int("position")),
			Content:    r.str("content"),
			Embedding:  r.vector("embedding"),
			CreatedAt:  r.time("created_at"),
		}
		if r.err != nil {
			return nil, r.err
		}
		out = append(out, c)
	}
	return out, nil
}

const sessionReturn = `s.id AS id, s.user_id AS user_id, s.document_id AS document_id,
s.document_title AS document_title, s.name AS name, s.created_at AS created_at, s.updated_at AS updated_at`

func sessionFromRecord(rec *neo4j.Record) (*models.ChatSession, error) {
	r := recordReader{rec: rec}
	cs := &models.ChatSession{
		ID:            r.str("id"),
		UserID:        r.str("user_id"),
		DocumentID:    r.str("document_id"),
		DocumentTitle: r.str("document_title"),
		Name:          r.str("name"),
		CreatedAt:     r.time("created_at"),
		UpdatedAt:     r.time("updated_at"),
	}
	return cs, r.err
}

// CreateSession creates a session linked to its document.
func (s *Neo4jStorage) CreateSession(ctx context.Context, cs *models.ChatSession) error {
	if cs.CreatedAt.IsZero() {
		cs.CreatedAt = time.Now().UTC()
	}
	cs.UpdatedAt = cs.CreatedAt
	params := map[string]any{
		"id":             cs.ID,
		"user_id":        cs.UserID,
		"document_id":    cs.DocumentID,
		"document_title": cs.DocumentTitle,
		"name":           cs.Name,
		"created_at":     toNanos(cs.CreatedAt),
	}
	out, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return runCollect(ctx, tx, `
MATCH (d:Document {id: $document_id})
CREATE (s:ChatSession {
  id: $id, user_id: $user_id, document_id: $document_id, document_title: $document_title,
  name: $name, created_at: $created_at, updated_at: $created_at, message_count: 0
})-[:ABOUT]->(d)
RETURN s.id AS id`, params)
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if len(out.([]*neo4j.Record)) == 0 {
		return models.ErrNotFound
	}
	return nil
}

// GetSession returns a chat session by ID.
func (s *Neo4jStorage) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	recs, err := s.read(ctx, `MATCH (s:ChatSession {id: $id}) RETURN `+sessionReturn, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, models.ErrNotFound
	}
	return sessionFromRecord(recs[0])
}

// ListUserSessions returns a user's sessions, most recently active first.
func (s *Neo4jStorage) ListUserSessions(ctx context.Context, userID string) ([]*models.ChatSession, error) {
	recs, err := s.read(ctx, `
MATCH (s:ChatSession {user_id: $user_id})
RETURN `+sessionReturn+`
ORDER BY s.updated_at DESC`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	out := make([]*models.ChatSession, 0, len(recs))
	for _, rec := range recs {
		cs, err := sessionFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, nil
}

// AppendMessages stores messages after the session's existing log. Each message carries a
// sequence number so ties on created_at keep insertion order.
func (s *Neo4jStorage) AppendMessages(ctx context.Context, sessionID string, messages ...*models.Message) error {
	now := time.Now().UTC()
	_, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		recs, err := runCollect(ctx, tx, `
MATCH (s:ChatSession {id: $id})
WITH s, coalesce(s.message_count, 0) AS base
SET s.message_count = base + $count, s.updated_at = $now
RETURN base`, map[string]any{"id": sessionID, "count": int64(len(messages)), "now": toNanos(now)})
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, models.ErrNotFound
		}
		base, _, err := neo4j.GetRecordValue[int64](recs[0], "base")
		if err != nil {
			return nil, err
		}

		rows := make([]map[string]any, 0, len(messages))
		for i, m := range messages {
			m.SessionID = sessionID
			if m.CreatedAt.IsZero() {
				m.CreatedAt = now
			}
			rows = append(rows, map[string]any{
				"id":         m.ID,
				"role":       m.Role,
				"content":    m.Content,
				"created_at": toNanos(m.CreatedAt),
				"seq":        base + int64(i),
			})
		}
		return nil, runConsume(ctx, tx, `
MATCH (s:ChatSession {id: $id})
UNWIND $messages AS m
CREATE (s)-[:HAS_MESSAGE]->(:Message {
  id: m.id, session_id: $id, role: m.role, content: m.content,
  created_at: m.created_at, seq: m.seq
})`, map[string]any{"id": sessionID, "messages": rows})
	})
	return err
}

// ListMessages returns up to limit messages of a session, oldest first.
func (s *Neo4jStorage) ListMessages(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	recs, err := s.read(ctx, `
MATCH (:ChatSession {id: $id})-[:HAS_MESSAGE]->(m:Message)
RETURN m.id AS id, m.session_id AS session_id, m.role AS role, m.content AS content, m.created_at AS created_at
ORDER BY m.created_at, m.seq
LIMIT $limit`, map[string]any{"id": sessionID, "limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	out := make([]*models.Message, 0, len(recs))
	for _, rec := range recs {
		r := recordReader{rec: rec}
		m := &models.Message{
			ID:        r.str("id"),
			SessionID: r.str("session_id"),
			Role:      r.str("role"),
			Content:   r.str("content"),
			CreatedAt: r.time("created_at"),
		}
		if r.err != nil {
			return nil, r.err
		}
		out = append(out, m)
	}
	return out, nil
}

const presentationReturn = `p.id AS id, p.config AS config, p.status AS status,
coalesce(p.content, '') AS content, coalesce(p.output_file_path, '') AS output_file_path,
coalesce(p.document_id, '') AS document_id, coalesce(p.category_id, 0) AS category_id,
p.created_at AS created_at, p.updated_at AS updated_at`

func presentationFromRecord(rec *neo4j.Record) (*models.Presentation, error) {
	r := recordReader{rec: rec}
	p := &models.Presentation{
		ID:             r.str("id"),
		Status:         r.str("status"),
		Content:        r.str("content"),
		OutputFilePath: r.str("output_file_path"),
		DocumentID:     r.str("document_id"),
		CategoryID:     int(r.int("category_id")),
		CreatedAt:      r.time("created_at"),
		UpdatedAt:      r.time("updated_at"),
	}
	cfg := r.str("config")
	if r.err != nil {
		return nil, r.err
	}
	if err := json.Unmarshal([]byte(cfg), &p.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presentation config: %w", err)
	}
	return p, nil
}

// CreatePresentation inserts a presentation in processing state.
func (s *Neo4jStorage) CreatePresentation(ctx context.Context, p *models.Presentation) error {
	cfg, err := json.Marshal(p.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal presentation config: %w", err)
	}
	now := time.Now().UTC()
	p.Status = models.StatusProcessing
	p.Content, p.OutputFilePath = "", ""
	p.CreatedAt, p.UpdatedAt = now, now
	_, err = s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, runConsume(ctx, tx, `
CREATE (:Presentation {
  id: $id, title: $title, config: $config, status: $status, content: '', output_file_path: '',
  created_at: $now, updated_at: $now
})`, map[string]any{
			"id":     p.ID,
			"title":  p.Config.Title,
			"config": string(cfg),
			"status": p.Status,
			"now":    toNanos(now),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to create presentation: %w", err)
	}
	return nil
}

// GetPresentation returns a presentation by ID.
func (s *Neo4jStorage) GetPresentation(ctx context.Context, id string) (*models.Presentation, error) {
	recs, err := s.read(ctx, `MATCH (p:Presentation {id: $id}) RETURN `+presentationReturn, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, models.ErrNotFound
	}
	return presentationFromRecord(recs[0])
}

// CompletePresentation stores the final deck and links it to its source document and category.
func (s *Neo4jStorage) CompletePresentation(ctx context.Context, id string, r PresentationResult) error {
	var docID any
	if r.DocumentID != "" {
		docID = r.DocumentID
	}
	params := map[string]any{
		"id":               id,
		"processing":       models.StatusProcessing,
		"status":           models.StatusCompleted,
		"content":          r.Content,
		"output_file_path": r.OutputFilePath,
		"document_id":      docID,
		"category_id":      int64(r.CategoryID),
		"now":              toNanos(time.Now().UTC()),
	}
	return s.transition(ctx, id, `
MATCH (p:Presentation {id: $id})
WHERE p.status = $processing
SET p.status = $status, p.content = $content, p.output_file_path = $output_file_path,
    p.document_id = $document_id, p.category_id = $category_id, p.updated_at = $now
WITH p
OPTIONAL MATCH (d:Document {id: $document_id})
FOREACH (_ IN CASE WHEN d IS NULL THEN [] ELSE [1] END | MERGE (p)-[:GENERATED_FROM]->(d))
WITH p
OPTIONAL MATCH (c:ServiceCategory {id: $category_id})
FOREACH (_ IN CASE WHEN c IS NULL THEN [] ELSE [1] END | MERGE (p)-[:BELONGS_TO_CATEGORY]->(c))
RETURN p.id AS id`, params)
}

// FailPresentation marks a presentation failed and stores reason as its content.
func (s *Neo4jStorage) FailPresentation(ctx context.Context, id, reason string) error {
	return s.transition(ctx, id, `
MATCH (p:Presentation {id: $id})
WHERE p.status = $processing
SET p.status = $status, p.content = $content, p.updated_at = $now
RETURN p.id AS id`, map[string]any{
		"id":         id,
		"processing": models.StatusProcessing,
		"status":     models.StatusFailed,
		"content":    reason,
		"now":        toNanos(time.Now().UTC()),
	})
}

func (s *Neo4jStorage) transition(ctx context.Context, id, cypher string, params map[string]any) error {
	out, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return runCollect(ctx, tx, cypher, params)
	})
	if err != nil {
		return fmt.Errorf("failed to update presentation: %w", err)
	}
	if len(out.([]*neo4j.Record)) == 1 {
		return nil
	}
	if _, err := s.GetPresentation(ctx, id); err != nil {
		return err
	}
	return models.ErrStatusFinal
}

// ListPresentations returns the newest presentations first.
func (s *Neo4jStorage) ListPresentations(ctx context.Context, limit int) ([]*models.Presentation, error) {
	if limit <= 0 {
		limit = DefaultPresentationLimit
	}
	recs, err := s.read(ctx, `
MATCH (p:Presentation)
RETURN `+presentationReturn+`
ORDER BY p.created_at DESC
LIMIT $limit`, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	out := make([]*models.Presentation, 0, len(recs))
	for _, rec := range recs {
		p, err := presentationFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Stats counts documents and chunks.
func (s *Neo4jStorage) Stats(ctx context.Context) (*models.DocumentStats, error) {
	recs, err := s.read(ctx, `
CALL { MATCH (d:Document) RETURN count(d) AS documents }
CALL { MATCH (c:Chunk) RETURN count(c) AS chunks, count(c.embedding) AS embedded }
RETURN documents, chunks, embedded`, nil)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return &models.DocumentStats{}, nil
	}
	r := recordReader{rec: recs[0]}
	st := &models.DocumentStats{
		Documents: int(r.int("documents")),
		Chunks:    int(r.int("chunks")),
		Embedded:  int(r.int("embedded")),
	}
	return st, r.err
}

// Close closes the driver.
func (s *Neo4jStorage) Close() error {
	return s.driver.Close(context.Background())
}
