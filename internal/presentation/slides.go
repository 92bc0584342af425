package presentation

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/shiryo/internal/models"
)

const (
	// SlideSeparator delimits slides in the stored deck.
	SlideSeparator = "\n\n---SLIDE_SEPARATOR---\n\n"
	// ReadableSeparator replaces SlideSeparator in exported text files.
	ReadableSeparator = "\n\n---\n\n"

	titleSubtitle   = "Professional Banking Services Overview"
	placeholderText = "Additional Insights\nThis slide provides space for additional examples or expansion on key points.\n• Content can be customized based on audience needs"

	maxConclusionTopics = 8
	conclusionWrapAt    = 75
	conclusionWidth     = 70
)

// TitleSlide returns the opening slide for a deck.
func TitleSlide(title string) string {
	return title + "\n" + titleSubtitle
}

// PlaceholderSlide is used for a content slot without a topic.
func PlaceholderSlide() string {
	return placeholderText
}

// ConclusionSlide lists up to eight topic titles. Long titles are wrapped.
func ConclusionSlide(topics []models.Topic) string {
	parts := []string{"Conclusion", "Key Topics Covered:"}
	n := 0
	for _, t := range topics {
		if t.Title == "" {
			continue
		}
		if n == maxConclusionTopics {
			break
		}
		n++
		if utf8.RuneCountInString(t.Title) > conclusionWrapAt {
			parts = append(parts, wrapBullet(t.Title, conclusionWidth))
			continue
		}
		parts = append(parts, bulletPrefix+t.Title)
	}
	return strings.Join(parts, "\n")
}

// wrapBullet wraps text at word boundaries. The first line gets a bullet, later lines are
// indented by two spaces. Words longer than width are never broken.
func wrapBullet(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return bulletPrefix
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if utf8.RuneCountInString(line)+1+utf8.RuneCountInString(w) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		line += " " + w
	}
	lines = append(lines, line)
	for i := range lines {
		if i == 0 {
			lines[i] = bulletPrefix + lines[i]
		} else {
			lines[i] = "  " + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

// JoinSlides joins slides into the stored deck format.
func JoinSlides(slides []string) string {
	return strings.Join(slides, SlideSeparator)
}

// Readable converts stored deck content into the exported text form.
func Readable(content string) string {
	return strings.ReplaceAll(content, SlideSeparator, ReadableSeparator)
}

// SlideText is a slide split into its title line and body lines.
type SlideText struct {
	Title string
	Body  []string
}

// SplitSlides parses stored deck content. The first line of each slide, with bold markers
// removed, is its title.
func SplitSlides(content string) []SlideText {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	var out []SlideText
	for _, raw := range strings.Split(content, strings.TrimSpace(SlideSeparator)) {
		raw = strings.Trim(raw, "\n")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		lines := strings.Split(raw, "\n")
		s := SlideText{Title: strings.TrimSpace(strings.ReplaceAll(lines[0], "**", ""))}
		for _, l := range lines[1:] {
			if strings.TrimSpace(l) == "" {
				continue
			}
			s.Body = append(s.Body, strings.ReplaceAll(l, "**", ""))
		}
		out = append(out, s)
	}
	return out
}
