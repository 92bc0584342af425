// Package storage defines the persistence interface for documents, chunks, chat sessions and
// presentations, with a Neo4j graph backend and an embedded SQLite backend.
package storage

import (
	"context"

	"github.com/hyperjump/shiryo/internal/models"
)

// Default list bounds.
const (
	DefaultMessageLimit      = 100
	DefaultPresentationLimit = 50
)

// Storage is the single persistence contract. Every operation is named; backends never
// inspect query text.
type Storage interface {
	// Categories
	EnsureCategories(ctx context.Context, categories []models.Category) error
	ListCategories(ctx context.Context) ([]*models.Category, error)

	// Documents. CreateDocument merges on FileHash: when a document with the same hash exists
	// it is returned with created=false and nothing is written.
	CreateDocument(ctx context.Context, doc *models.Document) (stored *models.Document, created bool, err error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	GetDocumentByHash(ctx context.Context, hash string) (*models.Document, error)
	GetDocumentByTitle(ctx context.Context, title string) (*models.Document, error)
	ListDocuments(ctx context.Context, categoryID int) ([]*models.Document, error)
	FindDocumentByTerms(ctx context.Context, terms []string) (*models.Document, error)
	LatestDocument(ctx context.Context) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// Chunks, ordered by position.
	CreateChunks(ctx context.Context, chunks []*models.Chunk) error
	ListChunks(ctx context.Context, documentID string, limit int) ([]*models.Chunk, error)

	// Chat
	CreateSession(ctx context.Context, session *models.ChatSession) error
	GetSession(ctx context.Context, id string) (*models.ChatSession, error)
	ListUserSessions(ctx context.Context, userID string) ([]*models.ChatSession, error)
	AppendMessages(ctx context.Context, sessionID string, messages ...*models.Message) error
	ListMessages(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)

	// Presentations. Complete and Fail only apply to a processing presentation and write
	// status and content in one statement; otherwise they return models.ErrStatusFinal.
	CreatePresentation(ctx context.Context, p *models.Presentation) error
	GetPresentation(ctx context.Context, id string) (*models.Presentation, error)
	CompletePresentation(ctx context.Context, id string, result PresentationResult) error
	FailPresentation(ctx context.Context, id, reason string) error
	ListPresentations(ctx context.Context, limit int) ([]*models.Presentation, error)

	Stats(ctx context.Context) (*models.DocumentStats, error)
	Close() error
}

// PresentationResult is what a finished generation writes.
type PresentationResult struct {
	Content        string
	OutputFilePath string
	DocumentID     string
	CategoryID     int
}
