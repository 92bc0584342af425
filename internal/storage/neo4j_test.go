package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/models"
)

func newNeo4jTestStorage(t *testing.T) *Neo4jStorage {
	t.Helper()
	uri := os.Getenv("SHIRYO_TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("SHIRYO_TEST_NEO4J_URI not set")
	}
	cfg := config.Neo4jConfig{
		URI:            uri,
		Username:       os.Getenv("SHIRYO_TEST_NEO4J_USER"),
		Password:       os.Getenv("SHIRYO_TEST_NEO4J_PASSWORD"),
		ConnectTimeout: 5 * time.Second,
	}
	s, err := NewNeo4jStorage(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewNeo4jStorage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNeo4jDocumentLifecycle(t *testing.T) {
	s := newNeo4jTestStorage(t)
	ctx := context.Background()

	if err := s.EnsureCategories(ctx, models.DefaultCategories); err != nil {
		t.Fatalf("EnsureCategories: %v", err)
	}

	id := uuid.NewString()
	hash := "test-" + id
	doc := testDocument(id, hash, "Neo4j Test "+id, time.Now().UTC())
	stored, created, err := s.CreateDocument(ctx, doc)
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if !created || stored.ID != id {
		t.Fatalf("created=%v id=%s", created, stored.ID)
	}
	t.Cleanup(func() { _ = s.DeleteDocument(context.Background(), id) })

	_, created, err = s.CreateDocument(ctx, testDocument(uuid.NewString(), hash, "dup", time.Now().UTC()))
	if err != nil {
		t.Fatalf("CreateDocument duplicate: %v", err)
	}
	if created {
		t.Error("duplicate hash should not create")
	}

	chunks := []*models.Chunk{
		{ID: uuid.NewString(), DocumentID: id, Position: 1, Content: "b"},
		{ID: uuid.NewString(), DocumentID: id, Position: 0, Content: "a", Embedding: []float32{1, 0.5}},
	}
	if err := s.CreateChunks(ctx, chunks); err != nil {
		t.Fatalf("CreateChunks: %v", err)
	}
	got, err := s.ListChunks(ctx, id, 0)
	if err != nil {
		t.Fatalf("ListChunks: %v", err)
	}
	if len(got) != 2 || got[0].Content != "a" || len(got[0].Embedding) != 2 || got[1].HasEmbedding() {
		t.Errorf("unexpected chunks: %+v", got)
	}

	sessID := uuid.NewString()
	if err := s.CreateSession(ctx, &models.ChatSession{ID: sessID, UserID: "u-" + id, DocumentID: id, DocumentTitle: doc.Title, Name: "n"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	now := time.Now().UTC()
	if err := s.AppendMessages(ctx, sessID,
		&models.Message{ID: uuid.NewString(), Role: models.RoleUser, Content: "q", CreatedAt: now},
		&models.Message{ID: uuid.NewString(), Role: models.RoleAssistant, Content: "a", CreatedAt: now},
	); err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}
	msgs, err := s.ListMessages(ctx, sessID, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != models.RoleUser {
		t.Errorf("unexpected messages: %+v", msgs)
	}

	if err := s.DeleteDocument(ctx, id); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := s.GetSession(ctx, sessID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("session survived delete: %v", err)
	}
}

func TestNeo4jPresentationTransitions(t *testing.T) {
	s := newNeo4jTestStorage(t)
	ctx := context.Background()

	id := uuid.NewString()
	if err := s.CreatePresentation(ctx, &models.Presentation{ID: id, Config: models.PresentationConfig{Title: "t", NumSlides: 5}}); err != nil {
		t.Fatalf("CreatePresentation: %v", err)
	}
	if err := s.CompletePresentation(ctx, id, PresentationResult{Content: "deck", CategoryID: 9}); err != nil {
		t.Fatalf("CompletePresentation: %v", err)
	}
	if err := s.FailPresentation(ctx, id, "late"); !errors.Is(err, models.ErrStatusFinal) {
		t.Errorf("fail after complete err = %v", err)
	}
	p, err := s.GetPresentation(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != models.StatusCompleted || p.Content != "deck" || p.Config.NumSlides != 5 {
		t.Errorf("presentation = %+v", p)
	}
}
