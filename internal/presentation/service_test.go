package presentation

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/llm"
	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/internal/storage"
)

const twoTopics = `{"topics":[
  {"title":"Personal Loans","key_points":["Rate 10%","Up to 7 years"]},
  {"title":"Car Loans","key_points":["Down payment 20%"]}
]}`

func newStore(t *testing.T, withChunks bool) *storage.SQLiteStorage {
	t.Helper()
	s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "p.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if !withChunks {
		return s
	}
	ctx := context.Background()
	if _, _, err := s.CreateDocument(ctx, &models.Document{
		ID: "doc-1", CategoryID: 2, Title: "Retail Loans", FileHash: "h1", FileName: "loans.pdf",
	}); err != nil {
		t.Fatal(err)
	}
	err = s.CreateChunks(ctx, []*models.Chunk{
		{ID: "c1", DocumentID: "doc-1", Position: 0, Content: "Personal Loans: rate 10%"},
		{ID: "c2", DocumentID: "doc-1", Position: 1, Content: "Car Loans: down payment 20%"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newTestService(t *testing.T, store storage.Storage, gen llm.Generator) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	svc := NewService(store, gen, config.PresentationConfig{ExportDir: dir, StreamBuffer: 1},
		WithPublicBaseURL("http://localhost:8003/"))
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return svc, dir
}

func TestGenerate(t *testing.T) {
	store := newStore(t, true)
	gen := &scripted{topics: "1. Personal Loans\n2. Car Loans", outline: twoTopics}
	svc, dir := newTestService(t, store, gen)
	ctx := context.Background()

	p, err := svc.Create(ctx, models.PresentationConfig{Title: "Retail Loans", NumSlides: 4})
	if err != nil {
		t.Fatal(err)
	}
	if p.Config.DetailLevel != models.DetailIntermediate {
		t.Errorf("detail level not defaulted: %q", p.Config.DetailLevel)
	}

	var events []Event
	done, err := svc.Generate(ctx, p.ID, func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if done.Status != models.StatusCompleted {
		t.Fatalf("status = %s (%s)", done.Status, done.Content)
	}
	if done.DocumentID != "doc-1" || done.CategoryID != 2 {
		t.Errorf("links = %q/%d", done.DocumentID, done.CategoryID)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	for i, ev := range events {
		if ev.Index != i+1 || ev.TotalSlides != 4 {
			t.Errorf("event %d = index %d total %d", i, ev.Index, ev.TotalSlides)
		}
	}
	if events[0].Content != TitleSlide("Retail Loans") {
		t.Errorf("first slide = %q", events[0].Content)
	}
	if !strings.HasPrefix(events[1].Content, "Personal Loans") || !strings.HasPrefix(events[2].Content, "Car Loans") {
		t.Errorf("content slides out of order: %q / %q", events[1].Content, events[2].Content)
	}
	if !strings.HasPrefix(events[3].Content, "Conclusion\nKey Topics Covered:") {
		t.Errorf("last slide = %q", events[3].Content)
	}
	if got := strings.Count(done.Content, strings.TrimSpace(SlideSeparator)); got != 3 {
		t.Errorf("separators = %d, want 3", got)
	}
	if gen.count("expansion") != 0 {
		t.Error("no expansion expected when topics fill the deck")
	}

	name := "Retail_Loans_20240501093000.txt"
	if done.OutputFilePath != "http://localhost:8003/saved_presentations/"+name {
		t.Errorf("output path = %q", done.OutputFilePath)
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "SLIDE_SEPARATOR") || !strings.Contains(string(data), ReadableSeparator) {
		t.Error("export should use the readable separator")
	}

	if _, err := svc.Generate(ctx, p.ID, nil); !errors.Is(err, models.ErrStatusFinal) {
		t.Errorf("second Generate err = %v, want ErrStatusFinal", err)
	}
}

func TestGenerate_PlaceholderWhenNoTopics(t *testing.T) {
	store := newStore(t, true)
	gen := &scripted{outline: "{}"}
	svc, _ := newTestService(t, store, gen)
	ctx := context.Background()

	p, _ := svc.Create(ctx, models.PresentationConfig{Title: "Loans", NumSlides: 10})
	done, err := svc.Generate(ctx, p.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	slides := SplitSlides(done.Content)
	if len(slides) != MinSlides {
		t.Fatalf("got %d slides, want %d", len(slides), MinSlides)
	}
	if slides[1].Title != "Additional Insights" {
		t.Errorf("middle slide = %q", slides[1].Title)
	}
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name       string
		withChunks bool
		setup      func(t *testing.T, s *storage.SQLiteStorage)
		reason     string
	}{
		{"no documents", false, nil, NoDocumentsReason},
		{"no chunks", false, func(t *testing.T, s *storage.SQLiteStorage) {
			if _, _, err := s.CreateDocument(context.Background(), &models.Document{
				ID: "empty", CategoryID: 9, Title: "Empty", FileHash: "e", FileName: "e.txt",
			}); err != nil {
				t.Fatal(err)
			}
		}, NoContentReason},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t, tt.withChunks)
			if tt.setup != nil {
				tt.setup(t, store)
			}
			gen := &scripted{}
			svc, _ := newTestService(t, store, gen)
			ctx := context.Background()
			p, _ := svc.Create(ctx, models.PresentationConfig{Title: "Loans"})
			done, err := svc.Generate(ctx, p.ID, nil)
			if err != nil {
				t.Fatal(err)
			}
			if done.Status != models.StatusFailed || done.Content != tt.reason {
				t.Errorf("got %s %q", done.Status, done.Content)
			}
			if gen.count("outline") != 0 {
				t.Error("generation should not start")
			}
		})
	}
}

func TestCreate_RequiresTitle(t *testing.T) {
	svc, _ := newTestService(t, newStore(t, false), &scripted{})
	if _, err := svc.Create(context.Background(), models.PresentationConfig{Title: "  "}); !errors.Is(err, models.ErrEmptyContent) {
		t.Errorf("err = %v, want ErrEmptyContent", err)
	}
}

func TestStream(t *testing.T) {
	store := newStore(t, true)
	svc, _ := newTestService(t, store, &scripted{outline: twoTopics})

	p, events, err := svc.Stream(context.Background(), models.PresentationConfig{Title: "Loans", NumSlides: 4})
	if err != nil {
		t.Fatal(err)
	}
	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	if len(got) != 5 {
		t.Fatalf("got %d events, want 5", len(got))
	}
	last := got[len(got)-1]
	if !last.Done || last.Status != models.StatusCompleted || last.PresentationID != p.ID {
		t.Errorf("final event = %+v", last)
	}
	for _, ev := range got[:4] {
		if ev.Done {
			t.Error("only the last event is terminal")
		}
	}
}

func TestStream_Cancelled(t *testing.T) {
	store := newStore(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := &scripted{outline: twoTopics, slideErr: errors.New("client went away")}
	svc, _ := newTestService(t, store, llm.GeneratorFunc(func(c context.Context, req llm.Request) (string, error) {
		if gen.stage(req.Prompt) == "slide" {
			cancel()
			return "", c.Err()
		}
		return gen.Generate(c, req)
	}))

	p, events, err := svc.Stream(ctx, models.PresentationConfig{Title: "Loans", NumSlides: 4})
	if err != nil {
		t.Fatal(err)
	}
	for ev := range events {
		if ev.Done {
			t.Error("cancelled stream should not emit a terminal event")
		}
	}

	stored, err := store.GetPresentation(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.StatusFailed {
		t.Errorf("status = %s, want failed", stored.Status)
	}
}

func TestExportPPTX(t *testing.T) {
	store := newStore(t, true)
	svc, _ := newTestService(t, store, &scripted{outline: twoTopics})
	ctx := context.Background()

	p, _ := svc.Create(ctx, models.PresentationConfig{Title: "Retail Loans", NumSlides: 4})
	if _, _, err := svc.ExportPPTX(ctx, p.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("processing export err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Generate(ctx, p.ID, nil); err != nil {
		t.Fatal(err)
	}

	data, name, err := svc.ExportPPTX(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if name != "Retail_Loans.pptx" {
		t.Errorf("name = %q", name)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	slides := 0
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") {
			slides++
		}
	}
	if slides != 4 {
		t.Errorf("pptx has %d slides, want 4", slides)
	}

	if _, _, err := svc.ExportPPTX(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing export err = %v", err)
	}
}
