package presentation

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/hyperjump/shiryo/internal/llm"
)

// scripted answers each pipeline stage from a fixed reply, recognised by its prompt.
type scripted struct {
	mu        sync.Mutex
	topics    string
	outline   string
	expansion string
	slideErr  error
	calls     map[string]int
}

var slideTitle = regexp.MustCompile(`Product/Service Name: "([^"]*)"`)

func (s *scripted) stage(prompt string) string {
	switch {
	case strings.Contains(prompt, "Extract COMPREHENSIVE list of topics"):
		return "topics"
	case strings.Contains(prompt, "Financial Content Analyzer"):
		return "outline"
	case strings.Contains(prompt, "Break these into"):
		return "expansion"
	case strings.Contains(prompt, "Presentation slide formatter"):
		return "slide"
	}
	return "unknown"
}

func (s *scripted) Generate(_ context.Context, req llm.Request) (string, error) {
	stage := s.stage(req.Prompt)
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[stage]++
	s.mu.Unlock()

	switch stage {
	case "topics":
		return s.topics, nil
	case "outline":
		return s.outline, nil
	case "expansion":
		return s.expansion, nil
	case "slide":
		if s.slideErr != nil {
			return "", s.slideErr
		}
		title := ""
		if m := slideTitle.FindStringSubmatch(req.Prompt); m != nil {
			title = m[1]
		}
		return title + "\n\n**" + title + "**\n\n• rendered\n", nil
	}
	return "", errors.New("unexpected prompt")
}

func (s *scripted) count(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[stage]
}
