package presentation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/fileid"
	"github.com/hyperjump/shiryo/internal/llm"
	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/internal/pptx"
	"github.com/hyperjump/shiryo/internal/storage"
)

// Failure reasons stored as presentation content.
const (
	NoDocumentsReason = "Error: No documents found in database. Please upload a document first."
	NoContentReason   = "Error: No content found in document"
)

// SavedPresentationsPath is the URL prefix exported text files are served under.
const SavedPresentationsPath = "/saved_presentations/"

const (
	defaultMaxChunks    = 30
	defaultStreamBuffer = 8
)

// Event is one streamed step of a generation. Content events carry a slide; the last event has
// Done set and the final status.
type Event struct {
	PresentationID string `json:"presentation_id,omitempty"`
	Index          int    `json:"index,omitempty"`
	Content        string `json:"content,omitempty"`
	TotalSlides    int    `json:"total_slides,omitempty"`
	Done           bool   `json:"done,omitempty"`
	Status         string `json:"status,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Service generates, stores and exports presentations.
type Service struct {
	store         storage.Storage
	outliner      *Outliner
	renderer      *Renderer
	cfg           config.PresentationConfig
	publicBaseURL string
	logger        *zap.Logger
	now           func() time.Time
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	logger        *zap.Logger
	model         string
	publicBaseURL string
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *serviceOptions) { o.logger = logger }
}

// WithModel sets the generation model used for every presentation stage.
func WithModel(model string) Option {
	return func(o *serviceOptions) { o.model = model }
}

// WithPublicBaseURL sets the prefix of exported file links.
func WithPublicBaseURL(url string) Option {
	return func(o *serviceOptions) { o.publicBaseURL = strings.TrimRight(url, "/") }
}

// NewService creates a presentation service.
func NewService(store storage.Storage, generator llm.Generator, cfg config.PresentationConfig, opts ...Option) *Service {
	o := serviceOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = defaultMaxChunks
	}
	if cfg.StreamBuffer <= 0 {
		cfg.StreamBuffer = defaultStreamBuffer
	}
	return &Service{
		store:         store,
		outliner:      NewOutliner(generator, o.model, cfg.SampleChunks, cfg.SampleChars, o.logger),
		renderer:      NewRenderer(generator, o.model, o.logger),
		cfg:           cfg,
		publicBaseURL: o.publicBaseURL,
		logger:        o.logger,
		now:           time.Now,
	}
}

// Create stores a new processing presentation for cfg.
func (s *Service) Create(ctx context.Context, cfg models.PresentationConfig) (*models.Presentation, error) {
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.Title == "" {
		return nil, fmt.Errorf("presentation title: %w", models.ErrEmptyContent)
	}
	cfg.Normalize()
	p := &models.Presentation{
		ID:     fileid.New(),
		Config: cfg,
		Status: models.StatusProcessing,
	}
	if err := s.store.CreatePresentation(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns a stored presentation.
func (s *Service) Get(ctx context.Context, id string) (*models.Presentation, error) {
	return s.store.GetPresentation(ctx, id)
}

// List returns the newest presentations.
func (s *Service) List(ctx context.Context, limit int) ([]*models.Presentation, error) {
	if limit <= 0 {
		limit = storage.DefaultPresentationLimit
	}
	return s.store.ListPresentations(ctx, limit)
}

// Generate runs the whole pipeline for a processing presentation. emit, when not nil, receives
// every slide as soon as it is ready; an emit error cancels generation. Expected failures (no
// documents, no content) are stored on the presentation and returned with a nil error.
func (s *Service) Generate(ctx context.Context, id string, emit func(Event) error) (*models.Presentation, error) {
	p, err := s.store.GetPresentation(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusProcessing {
		return nil, fmt.Errorf("presentation %s is %s: %w", id, p.Status, models.ErrStatusFinal)
	}
	if emit == nil {
		emit = func(Event) error { return nil }
	}

	result, reason, err := s.build(ctx, p, emit)
	switch {
	case err != nil:
		s.fail(ctx, id, "Error: "+err.Error())
		return nil, err
	case reason != "":
		s.fail(ctx, id, reason)
	default:
		if err := s.store.CompletePresentation(ctx, id, result); err != nil {
			return nil, err
		}
	}
	return s.store.GetPresentation(context.WithoutCancel(ctx), id)
}

// fail records reason on the presentation. It also runs after cancellation so a cancelled
// generation never stays processing.
func (s *Service) fail(ctx context.Context, id, reason string) {
	if err := s.store.FailPresentation(context.WithoutCancel(ctx), id, reason); err != nil {
		s.logger.Error("failed to mark presentation failed", zap.String("id", id), zap.Error(err))
	}
}

func (s *Service) build(ctx context.Context, p *models.Presentation, emit func(Event) error) (storage.PresentationResult, string, error) {
	var result storage.PresentationResult
	cfg := p.Config

	doc, err := MatchDocument(ctx, s.store, cfg.Title)
	if errors.Is(err, models.ErrNoDocuments) {
		return result, NoDocumentsReason, nil
	}
	if err != nil {
		return result, "", fmt.Errorf("match document: %w", err)
	}
	s.logger.Info("presentation source selected",
		zap.String("id", p.ID),
		zap.String("document", doc.Title))

	chunks, err := s.store.ListChunks(ctx, doc.ID, s.cfg.MaxChunks)
	if err != nil {
		return result, "", fmt.Errorf("load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return result, NoContentReason, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	topics, err := s.outliner.Outline(ctx, texts, cfg.Title, cfg.DetailLevel, cfg.NumSlides)
	if err != nil {
		return result, "", err
	}
	plan := Allocate(len(topics), cfg.NumSlides)

	slides := make([]string, 0, plan.TotalSlides)
	send := func(content string) error {
		slides = append(slides, content)
		if err := emit(Event{
			PresentationID: p.ID,
			Index:          len(slides),
			Content:        content,
			TotalSlides:    plan.TotalSlides,
		}); err != nil {
			return err
		}
		return ctx.Err()
	}

	if err := send(TitleSlide(cfg.Title)); err != nil {
		return result, "", err
	}
	for _, group := range plan.Groups {
		content := PlaceholderSlide()
		if len(group) > 0 {
			content = s.renderer.Render(ctx, topics[group[0]], plan.TotalSlides, cfg.DetailLevel)
		}
		if err := send(content); err != nil {
			return result, "", err
		}
	}
	if err := send(ConclusionSlide(topics)); err != nil {
		return result, "", err
	}

	result.Content = JoinSlides(slides)
	result.DocumentID = doc.ID
	result.CategoryID = InferCategory(cfg.Title)
	result.OutputFilePath = s.export(cfg.Title, result.Content)
	return result, "", nil
}

// export writes the readable text copy and returns its public URL, or "" when writing fails.
func (s *Service) export(title, content string) string {
	if s.cfg.ExportDir == "" {
		return ""
	}
	name := ExportFileName(title, s.now())
	if err := os.MkdirAll(s.cfg.ExportDir, 0o755); err != nil {
		s.logger.Warn("cannot create export directory", zap.String("dir", s.cfg.ExportDir), zap.Error(err))
		return ""
	}
	if err := os.WriteFile(filepath.Join(s.cfg.ExportDir, name), []byte(Readable(content)), 0o644); err != nil {
		s.logger.Warn("cannot write presentation export", zap.String("file", name), zap.Error(err))
		return ""
	}
	return s.publicBaseURL + SavedPresentationsPath + name
}

// ExportFileName returns "{title}_{YYYYmmddHHMMSS}.txt" with spaces and slashes replaced.
func ExportFileName(title string, at time.Time) string {
	return safeName(title) + "_" + at.Format("20060102150405") + ".txt"
}

func safeName(title string) string {
	return strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(strings.TrimSpace(title))
}

// Stream creates a presentation and generates it in the background. Slides arrive on the
// returned channel as they are produced; the final event has Done set, after which the channel
// is closed. Cancelling ctx stops generation and marks the presentation failed.
func (s *Service) Stream(ctx context.Context, cfg models.PresentationConfig) (*models.Presentation, <-chan Event, error) {
	p, err := s.Create(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	events := make(chan Event, s.cfg.StreamBuffer)
	go func() {
		defer close(events)
		emit := func(ev Event) error {
			select {
			case events <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		final := Event{PresentationID: p.ID, Done: true}
		done, err := s.Generate(ctx, p.ID, emit)
		switch {
		case err != nil:
			final.Status = models.StatusFailed
			final.Error = err.Error()
		default:
			final.Status = done.Status
			if done.Status == models.StatusFailed {
				final.Error = done.Content
			}
		}
		if ctx.Err() != nil {
			s.logger.Info("presentation stream cancelled", zap.String("id", p.ID))
			return
		}
		_ = emit(final)
	}()
	return p, events, nil
}

// ExportPPTX renders a stored presentation as a .pptx file and returns it with its file name.
func (s *Service) ExportPPTX(ctx context.Context, id string) ([]byte, string, error) {
	p, err := s.store.GetPresentation(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if p.Status != models.StatusCompleted || strings.TrimSpace(p.Content) == "" {
		return nil, "", fmt.Errorf("presentation %s has no content: %w", id, models.ErrNotFound)
	}

	texts := SplitSlides(p.Content)
	deck := pptx.Deck{Title: p.Config.Title, Author: "shiryo", Created: p.CreatedAt}
	for _, t := range texts {
		deck.Slides = append(deck.Slides, pptx.Slide{Title: t.Title, Body: t.Body})
	}
	data, err := pptx.Bytes(deck)
	if err != nil {
		return nil, "", fmt.Errorf("render pptx: %w", err)
	}
	return data, safeName(p.Config.Title) + ".pptx", nil
}
