package presentation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/llm"
	"github.com/hyperjump/shiryo/internal/models"
)

// Renderer formats one topic into one slide.
type Renderer struct {
	generator llm.Generator
	model     string
	logger    *zap.Logger
}

// NewRenderer creates a slide renderer.
func NewRenderer(generator llm.Generator, model string, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{generator: generator, model: model, logger: logger}
}

// SlideBullets prepares a topic's key points for a slide: grouped down to MaxBullets, blanks
// dropped and a bullet marker on every entry.
func SlideBullets(points []string) []string {
	grouped := GroupBullets(points, MaxBullets)
	out := make([]string, 0, len(grouped))
	for _, p := range grouped {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, withBullet(p))
	}
	return out
}

// Render makes one generation call for topic. A failed call yields ErrorSlide so one bad slide
// does not abort the deck.
func (r *Renderer) Render(ctx context.Context, topic models.Topic, totalSlides int, detail string) string {
	out, err := r.generator.Generate(ctx, llm.Request{
		Prompt: slidePrompt(topic.Title, SlideBullets(topic.KeyPoints), totalSlides, detail),
		Model:  r.model,
	})
	if err != nil {
		r.logger.Warn("slide generation failed", zap.String("topic", topic.Title), zap.Error(err))
		return ErrorSlide(topic.Title)
	}
	slide := tidySlide(out)
	if slide == "" {
		r.logger.Warn("slide generation returned nothing", zap.String("topic", topic.Title))
		return ErrorSlide(topic.Title)
	}
	return slide
}

// ErrorSlide is the minimal slide used when rendering fails.
func ErrorSlide(title string) string {
	return title + "\n\n**" + title + "**\n\n• Error generating content"
}

// tidySlide strips trailing whitespace from every line and drops leading and trailing blank lines.
func tidySlide(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
