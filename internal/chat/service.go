// Package chat answers questions about one document per session.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/fileid"
	"github.com/hyperjump/shiryo/internal/llm"
	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/internal/storage"
)

// Retriever returns grounding context for a query against one document.
type Retriever interface {
	Search(ctx context.Context, query, documentID string) (string, error)
}

// Service runs chat sessions.
type Service struct {
	store     storage.Storage
	retriever Retriever
	generator llm.Generator
	model     string
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithModel sets the generation model used for replies.
func WithModel(model string) Option {
	return func(s *Service) { s.model = model }
}

// NewService creates a chat service.
func NewService(store storage.Storage, retriever Retriever, generator llm.Generator, opts ...Option) *Service {
	s := &Service{
		store:     store,
		retriever: retriever,
		generator: generator,
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionRequest opens a session on a document given by ID or, failing that, by title.
type SessionRequest struct {
	UserID        string `json:"user_id"`
	DocumentID    string `json:"document_id,omitempty"`
	DocumentTitle string `json:"book_title,omitempty"`
	Name          string `json:"session_name,omitempty"`
}

// CreateSession opens a chat session. An unknown document returns models.ErrNotFound.
func (s *Service) CreateSession(ctx context.Context, req SessionRequest) (*models.ChatSession, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("user_id is required: %w", models.ErrEmptyContent)
	}

	var (
		doc *models.Document
		err error
	)
	switch {
	case req.DocumentID != "":
		doc, err = s.store.GetDocument(ctx, req.DocumentID)
	case strings.TrimSpace(req.DocumentTitle) != "":
		doc, err = s.store.GetDocumentByTitle(ctx, strings.TrimSpace(req.DocumentTitle))
	default:
		return nil, fmt.Errorf("document_id or book_title is required: %w", models.ErrEmptyContent)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Chat about " + doc.Title
	}
	session := &models.ChatSession{
		ID:            fileid.New(),
		UserID:        req.UserID,
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		Name:          name,
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info("chat session created",
		zap.String("session_id", session.ID),
		zap.String("document_id", doc.ID),
	)
	return session, nil
}

// Reply is the answer to one user message.
type Reply struct {
	Response      string `json:"response"`
	SessionID     string `json:"session_id"`
	DocumentTitle string `json:"document_title"`
	// Unavailable is set when the answer is UnavailableReply.
	Unavailable bool `json:"unavailable,omitempty"`
}

// Reply answers message from the session's document. It makes exactly one generation call. When
// the embedding or generation service is unreachable it returns UnavailableReply and stores
// nothing; other failures are returned.
func (s *Service) Reply(ctx context.Context, sessionID, message string) (*Reply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("message is required: %w", models.ErrEmptyContent)
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	asked := s.now()

	reply := &Reply{SessionID: session.ID, DocumentTitle: session.DocumentTitle}

	passages, err := s.retriever.Search(ctx, message, session.DocumentID)
	if err != nil {
		if errors.Is(err, models.ErrUpstreamUnavailable) {
			return s.unavailable(reply, err), nil
		}
		return nil, fmt.Errorf("context search failed: %w", err)
	}

	answer, err := s.generator.Generate(ctx, llm.Request{
		System: SystemPrompt(session.DocumentTitle),
		Prompt: UserPrompt(passages, message),
		Model:  s.model,
	})
	if err != nil {
		if errors.Is(err, models.ErrUpstreamUnavailable) {
			return s.unavailable(reply, err), nil
		}
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	err = s.store.AppendMessages(ctx, session.ID,
		&models.Message{ID: fileid.New(), Role: models.RoleUser, Content: message, CreatedAt: asked},
		&models.Message{ID: fileid.New(), Role: models.RoleAssistant, Content: answer, CreatedAt: s.now()},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save messages: %w", err)
	}

	s.logger.Debug("chat reply generated",
		zap.String("session_id", session.ID),
		zap.Int("context_chars", len(passages)),
		zap.Int("response_chars", len(answer)),
	)
	reply.Response = answer
	return reply, nil
}

func (s *Service) unavailable(reply *Reply, err error) *Reply {
	s.logger.Warn("model service unreachable", zap.String("session_id", reply.SessionID), zap.Error(err))
	reply.Response = UnavailableReply
	reply.Unavailable = true
	return reply
}

// History returns up to limit messages of a session, oldest first.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, sessionID, limit)
}

// UserSessions lists a user's sessions, most recently active first.
func (s *Service) UserSessions(ctx context.Context, userID string) ([]*models.ChatSession, error) {
	return s.store.ListUserSessions(ctx, userID)
}
