package presentation

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/llm"
	"github.com/hyperjump/shiryo/internal/models"
)

const (
	maxTopicNames      = 20
	maxOutlinePoints   = 5
	maxExpansionPool   = 15
	fallbackKeyPoint   = "Key information available"
	expansionKeyPoint  = "Additional details"
	defaultSampleCount = 15
	defaultSampleChars = 5000
)

var enumeration = regexp.MustCompile(`^\s*(?:\d+\s*[.)]|[-*•])\s*`)

// Outliner turns document text into a cleaned topic outline. Each stage makes at most one
// generation call; a failed stage logs and yields an empty result for the next stage to handle.
type Outliner struct {
	generator    llm.Generator
	model        string
	sampleChunks int
	sampleChars  int
	logger       *zap.Logger
}

// NewOutliner creates an Outliner. sampleChunks and sampleChars bound the topic-name sample.
func NewOutliner(generator llm.Generator, model string, sampleChunks, sampleChars int, logger *zap.Logger) *Outliner {
	if sampleChunks <= 0 {
		sampleChunks = defaultSampleCount
	}
	if sampleChars <= 0 {
		sampleChars = defaultSampleChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Outliner{
		generator:    generator,
		model:        model,
		sampleChunks: sampleChunks,
		sampleChars:  sampleChars,
		logger:       logger,
	}
}

// Outline runs every stage: topic names from a sample, the outline from the full text, the
// fallback to names when the outline is empty, key-point cleanup, and expansion toward the
// requested slide count. Only context cancellation is returned as an error.
func (o *Outliner) Outline(ctx context.Context, chunks []string, title, detail string, requestedSlides int) ([]models.Topic, error) {
	names := o.TopicNames(ctx, chunks, title)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	topics := o.BuildOutline(ctx, strings.Join(chunks, "\n\n"), title, detail)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		o.logger.Warn("outline empty, falling back to extracted topic names", zap.Int("names", len(names)))
		topics = FallbackTopics(names)
	}

	topics = CleanupOutline(topics)
	topics = o.Expand(ctx, topics, requestedSlides)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return topics, nil
}

// TopicNames asks for a numbered list of topics from the first chunks of the document.
func (o *Outliner) TopicNames(ctx context.Context, chunks []string, title string) []string {
	if len(chunks) == 0 {
		return nil
	}
	sample := chunks
	if len(sample) > o.sampleChunks {
		sample = sample[:o.sampleChunks]
	}
	text := truncateRunes(strings.Join(sample, "\n\n"), o.sampleChars)

	out, err := o.generator.Generate(ctx, llm.Request{Prompt: topicListPrompt(title, text), Model: o.model})
	if err != nil {
		o.logger.Warn("topic extraction failed", zap.Error(err))
		return nil
	}
	names := ParseTopicList(out)
	o.logger.Debug("topic names extracted", zap.Int("count", len(names)))
	return names
}

// ParseTopicList reads a numbered or bulleted list, dropping enumeration, entries of two
// characters or fewer and case-insensitive duplicates. At most 20 names are kept.
func ParseTopicList(text string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, line := range strings.Split(text, "\n") {
		name := strings.TrimSpace(enumeration.ReplaceAllString(strings.TrimSpace(line), ""))
		if utf8.RuneCountInString(name) <= 2 {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, name)
		if len(names) == maxTopicNames {
			break
		}
	}
	return names
}

type outlineResponse struct {
	Topics []models.Topic `json:"topics"`
}

// BuildOutline asks for a strict JSON outline of the complete source text. Each topic keeps at
// most five key points.
func (o *Outliner) BuildOutline(ctx context.Context, source, title, detail string) []models.Topic {
	out, err := o.generator.Generate(ctx, llm.Request{
		Prompt: outlinePrompt(title, source, detail),
		Model:  o.model,
		JSON:   true,
	})
	if err != nil {
		o.logger.Warn("outline generation failed", zap.Error(err))
		return nil
	}
	var resp outlineResponse
	if err := llm.DecodeJSON(out, &resp); err != nil {
		o.logger.Warn("outline response unusable", zap.Error(err))
		return nil
	}
	topics := make([]models.Topic, 0, len(resp.Topics))
	for _, t := range resp.Topics {
		if len(t.KeyPoints) > maxOutlinePoints {
			t.KeyPoints = t.KeyPoints[:maxOutlinePoints]
		}
		topics = append(topics, t)
	}
	return topics
}

// FallbackTopics makes one placeholder topic per extracted name.
func FallbackTopics(names []string) []models.Topic {
	topics := make([]models.Topic, 0, len(names))
	for _, n := range names {
		topics = append(topics, models.Topic{Title: n, KeyPoints: []string{fallbackKeyPoint}})
	}
	return topics
}

// CleanupOutline removes key points already seen under an earlier topic, comparing trimmed
// lowercase text, and drops topics left without points. Titles default to "Untitled".
func CleanupOutline(topics []models.Topic) []models.Topic {
	seen := make(map[string]struct{})
	var cleaned []models.Topic
	for _, t := range topics {
		var points []string
		for _, p := range t.KeyPoints {
			key := strings.ToLower(strings.TrimSpace(p))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			points = append(points, p)
		}
		if len(points) == 0 {
			continue
		}
		title := strings.TrimSpace(t.Title)
		if title == "" {
			title = "Untitled"
		}
		cleaned = append(cleaned, models.Topic{Title: title, KeyPoints: points})
	}
	return cleaned
}

type expansionResponse struct {
	Subtopics []models.Topic `json:"subtopics"`
}

// Expand asks for more subtopics when there are fewer topics than content slides. The new
// subtopics are built only from the existing key points; when there are fewer points than
// missing topics, the outline is returned unchanged.
func (o *Outliner) Expand(ctx context.Context, topics []models.Topic, requestedSlides int) []models.Topic {
	needed := ExpansionNeeded(len(topics), requestedSlides)
	if needed == 0 {
		return topics
	}

	var pool []string
	for _, t := range topics {
		points := t.KeyPoints
		if len(points) > maxOutlinePoints {
			points = points[:maxOutlinePoints]
		}
		pool = append(pool, points...)
	}
	if len(pool) < needed {
		o.logger.Debug("not enough key points to expand", zap.Int("points", len(pool)), zap.Int("needed", needed))
		return topics
	}
	if len(pool) > maxExpansionPool {
		pool = pool[:maxExpansionPool]
	}

	out, err := o.generator.Generate(ctx, llm.Request{
		Prompt: expansionPrompt(pool, needed),
		Model:  o.model,
		JSON:   true,
	})
	if err != nil {
		o.logger.Warn("topic expansion failed", zap.Error(err))
		return topics
	}
	var resp expansionResponse
	if err := llm.DecodeJSON(out, &resp); err != nil {
		o.logger.Warn("topic expansion response unusable", zap.Error(err))
		return topics
	}

	expanded := append([]models.Topic(nil), topics...)
	for i, st := range resp.Subtopics {
		if i == needed {
			break
		}
		if strings.TrimSpace(st.Title) == "" {
			st.Title = "Topic " + strconv.Itoa(i+1)
		}
		if len(st.KeyPoints) == 0 {
			st.KeyPoints = []string{expansionKeyPoint}
		}
		expanded = append(expanded, st)
	}
	o.logger.Debug("topics expanded", zap.Int("from", len(topics)), zap.Int("to", len(expanded)))
	return expanded
}

// ExpansionNeeded returns how many topics are missing to fill the content slides, or 0 when
// none are missing or there is nothing to expand from.
func ExpansionNeeded(topicCount, requestedSlides int) int {
	if topicCount == 0 || requestedSlides <= 0 {
		return 0
	}
	needed := requestedSlides - 2 - topicCount
	if needed < 0 {
		return 0
	}
	return needed
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
