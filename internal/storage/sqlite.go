package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/shiryo/internal/models"
)

var _ Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implements Storage using an embedded SQLite database.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS service_categories (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		category_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		document_source TEXT,
		publication_date DATE,
		file_hash TEXT NOT NULL UNIQUE,
		file_name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category_id);
	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_position ON chunks(document_id, position);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		document_title TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user ON chat_sessions(user_id, updated_at);

	CREATE TABLE IF NOT EXISTS chat_messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, created_at);

	CREATE TABLE IF NOT EXISTS presentations (
		id TEXT PRIMARY KEY,
		config TEXT NOT NULL,
		status TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		output_file_path TEXT NOT NULL DEFAULT '',
		document_id TEXT,
		category_id INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_presentations_created_at ON presentations(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// EnsureCategories upserts the taxonomy. Running it concurrently or repeatedly is harmless.
func (s *SQLiteStorage) EnsureCategories(ctx context.Context, categories []models.Category) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO service_categories (id, name, description) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range categories {
		if _, err := stmt.ExecContext(ctx, c.ID, c.Name, c.Description); err != nil {
			return fmt.Errorf("failed to upsert category %d: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// ListCategories returns categories ordered by name.
func (s *SQLiteStorage) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, COALESCE(description, '') FROM service_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

const documentColumns = `id, category_id, title, COALESCE(document_source, ''), publication_date, file_hash, file_name, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var pub sql.NullTime
	if err := row.Scan(&doc.ID, &doc.CategoryID, &doc.Title, &doc.DocumentSource, &pub, &doc.FileHash, &doc.FileName, &doc.CreatedAt); err != nil {
		return nil, err
	}
	if pub.Valid {
		t := pub.Time
		doc.PublicationDate = &t
	}
	return &doc, nil
}

func (s *SQLiteStorage) queryDocument(ctx context.Context, query string, args ...any) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return doc, err
}

func (s *SQLiteStorage) queryDocuments(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// CreateDocument inserts doc unless a document with the same file hash exists.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) (*models.Document, bool, error) {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	var pub any
	if doc.PublicationDate != nil {
		pub = *doc.PublicationDate
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, category_id, title, document_source, publication_date, file_hash, file_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(file_hash) DO NOTHING`,
		doc.ID, doc.CategoryID, doc.Title, nullString(doc.DocumentSource), pub, doc.FileHash, doc.FileName, doc.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	stored, err := scanDocument(tx.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE file_hash = ?`, doc.FileHash))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return stored, n == 1, nil
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return s.queryDocument(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
}

// GetDocumentByHash returns the document with the given content hash.
func (s *SQLiteStorage) GetDocumentByHash(ctx context.Context, hash string) (*models.Document, error) {
	return s.queryDocument(ctx, `SELECT `+documentColumns+` FROM documents WHERE file_hash = ?`, hash)
}

// GetDocumentByTitle returns the newest document with exactly this title.
func (s *SQLiteStorage) GetDocumentByTitle(ctx context.Context, title string) (*models.Document, error) {
	return s.queryDocument(ctx, `SELECT `+documentColumns+` FROM documents WHERE title = ? ORDER BY created_at DESC LIMIT 1`, title)
}

// ListDocuments returns documents ordered by title, optionally restricted to one category.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, categoryID int) ([]*models.Document, error) {
	if categoryID > 0 {
		return s.queryDocuments(ctx, `SELECT `+documentColumns+` FROM documents WHERE category_id = ? ORDER BY title`, categoryID)
	}
	return s.queryDocuments(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY title`)
}

// FindDocumentByTerms returns the newest document whose title or file name contains any term,
// ignoring case.
func (s *SQLiteStorage) FindDocumentByTerms(ctx context.Context, terms []string) (*models.Document, error) {
	var conds []string
	var args []any
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		conds = append(conds, `instr(lower(title), ?) > 0 OR instr(lower(file_name), ?) > 0`)
		args = append(args, t, t)
	}
	if len(conds) == 0 {
		return nil, models.ErrNotFound
	}
	return s.queryDocument(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE `+strings.Join(conds, " OR ")+` ORDER BY created_at DESC LIMIT 1`,
		args...)
}

// LatestDocument returns the most recently created document.
func (s *SQLiteStorage) LatestDocument(ctx context.Context) (*models.Document, error) {
	return s.queryDocument(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC LIMIT 1`)
}

// DeleteDocument removes the document with its chunks, sessions and messages. Presentations
// keep their content and lose the document link.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	stmts := []string{
		`DELETE FROM chunks WHERE document_id = ?`,
		`DELETE FROM chat_messages WHERE session_id IN (SELECT id FROM chat_sessions WHERE document_id = ?)`,
		`DELETE FROM chat_sessions WHERE document_id = ?`,
		`UPDATE presentations SET document_id = NULL WHERE document_id = ?`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to cascade delete: %w", err)
		}
	}
	return tx.Commit()
}

// CreateChunks inserts chunks in one transaction.
func (s *SQLiteStorage) CreateChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, position, content, embedding, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, c := range chunks {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Position, c.Content, encodeVector(c.Embedding), c.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.Position, err)
		}
	}
	return tx.Commit()
}

// ListChunks returns up to limit chunks of a document in position order. limit <= 0 means all.
func (s *SQLiteStorage) ListChunks(ctx context.Context, documentID string, limit int) ([]*models.Chunk, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, position, content, embedding, created_at
		 FROM chunks WHERE document_id = ? ORDER BY position LIMIT ?`, documentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Chunk
	for rows.Next() {
		var c models.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Position, &c.Content, &blob, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Embedding = decodeVector(blob)
		out = append(out, &c)
	}
	return out, rows.Err()
}

const sessionColumns = `id, user_id, document_id, document_title, name, created_at, updated_at`

func scanSession(row rowScanner) (*models.ChatSession, error) {
	var cs models.ChatSession
	err := row.Scan(&cs.ID, &cs.UserID, &cs.DocumentID, &cs.DocumentTitle, &cs.Name, &cs.CreatedAt, &cs.UpdatedAt)
	return &cs, err
}

// CreateSession inserts a chat session.
func (s *SQLiteStorage) CreateSession(ctx context.Context, cs *models.ChatSession) error {
	now := time.Now().UTC()
	if cs.CreatedAt.IsZero() {
		cs.CreatedAt = now
	}
	cs.UpdatedAt = cs.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cs.ID, cs.UserID, cs.DocumentID, cs.DocumentTitle, cs.Name, cs.CreatedAt, cs.UpdatedAt)
	return err
}

// GetSession returns a chat session by ID.
func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	cs, err := scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM chat_sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return cs, nil
}

// ListUserSessions returns a user's sessions, most recently active first.
func (s *SQLiteStorage) ListUserSessions(ctx context.Context, userID string) ([]*models.ChatSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ChatSession
	for rows.Next() {
		cs, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// AppendMessages stores messages in order and touches the session.
func (s *SQLiteStorage) AppendMessages(ctx context.Context, sessionID string, messages ...*models.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = ? WHERE id = ?`, now, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	for _, m := range messages {
		m.SessionID = sessionID
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			m.ID, m.SessionID, m.Role, m.Content, m.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}
	return tx.Commit()
}

// ListMessages returns up to limit messages of a session, oldest first.
func (s *SQLiteStorage) ListMessages(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at FROM chat_messages
		 WHERE session_id = ? ORDER BY created_at, seq LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

const presentationColumns = `id, config, status, content, output_file_path, COALESCE(document_id, ''), COALESCE(category_id, 0), created_at, updated_at`

func scanPresentation(row rowScanner) (*models.Presentation, error) {
	var p models.Presentation
	var cfg string
	if err := row.Scan(&p.ID, &cfg, &p.Status, &p.Content, &p.OutputFilePath, &p.DocumentID, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cfg), &p.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presentation config: %w", err)
	}
	return &p, nil
}

// CreatePresentation inserts a presentation in processing state.
func (s *SQLiteStorage) CreatePresentation(ctx context.Context, p *models.Presentation) error {
	cfg, err := json.Marshal(p.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal presentation config: %w", err)
	}
	now := time.Now().UTC()
	p.Status = models.StatusProcessing
	p.Content = ""
	p.OutputFilePath = ""
	p.CreatedAt, p.UpdatedAt = now, now
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO presentations (id, config, status, content, output_file_path, created_at, updated_at)
		 VALUES (?, ?, ?, '', '', ?, ?)`,
		p.ID, string(cfg), p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

// GetPresentation returns a presentation by ID.
func (s *SQLiteStorage) GetPresentation(ctx context.Context, id string) (*models.Presentation, error) {
	p, err := scanPresentation(s.db.QueryRowContext(ctx, `SELECT `+presentationColumns+` FROM presentations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return p, err
}

// CompletePresentation stores the final deck.
func (s *SQLiteStorage) CompletePresentation(ctx context.Context, id string, r PresentationResult) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE presentations SET status = ?, content = ?, output_file_path = ?, document_id = ?, category_id = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		models.StatusCompleted, r.Content, r.OutputFilePath, nullString(r.DocumentID), r.CategoryID, time.Now().UTC(),
		id, models.StatusProcessing)
	if err != nil {
		return err
	}
	return s.checkTransition(ctx, res, id)
}

// FailPresentation marks a presentation failed and stores reason as its content.
func (s *SQLiteStorage) FailPresentation(ctx context.Context, id, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE presentations SET status = ?, content = ?, updated_at = ? WHERE id = ? AND status = ?`,
		models.StatusFailed, reason, time.Now().UTC(), id, models.StatusProcessing)
	if err != nil {
		return err
	}
	return s.checkTransition(ctx, res, id)
}

func (s *SQLiteStorage) checkTransition(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetPresentation(ctx, id); err != nil {
		return err
	}
	return models.ErrStatusFinal
}

// ListPresentations returns the newest presentations first.
func (s *SQLiteStorage) ListPresentations(ctx context.Context, limit int) ([]*models.Presentation, error) {
	if limit <= 0 {
		limit = DefaultPresentationLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+presentationColumns+` FROM presentations ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Presentation
	for rows.Next() {
		p, err := scanPresentation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Stats counts documents and chunks.
func (s *SQLiteStorage) Stats(ctx context.Context) (*models.DocumentStats, error) {
	var st models.DocumentStats
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM documents),
		        (SELECT COUNT(*) FROM chunks),
		        (SELECT COUNT(*) FROM chunks WHERE embedding IS NOT NULL)`,
	).Scan(&st.Documents, &st.Chunks, &st.Embedded)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// encodeVector stores a vector as little-endian float32s. A nil vector is stored as NULL.
func encodeVector(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
