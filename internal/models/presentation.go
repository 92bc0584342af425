package models

import "time"

// Presentation statuses. Status only moves from processing to completed or failed.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Scopes.
const (
	ScopeWholeDocument  = "whole_document"
	ScopeSpecificTopics = "specific_topics"
)

// Detail levels.
const (
	DetailBeginner     = "beginner"
	DetailIntermediate = "intermediate"
	DetailProfessional = "professional"
)

// PresentationConfig is the user request for a deck.
type PresentationConfig struct {
	Title               string `json:"title"`
	Scope               string `json:"scope"`
	Topic               string `json:"topic,omitempty"`
	DetailLevel         string `json:"detail_level"`
	Difficulty          string `json:"difficulty,omitempty"`
	SlideStyle          string `json:"slide_style,omitempty"`
	NumSlides           int    `json:"num_slides"`
	IncludeDiagrams     bool   `json:"include_diagrams"`
	IncludeCodeExamples bool   `json:"include_code_examples"`
}

// Normalize fills defaults in place.
func (c *PresentationConfig) Normalize() {
	if c.Scope == "" {
		c.Scope = ScopeWholeDocument
	}
	switch c.DetailLevel {
	case DetailBeginner, DetailIntermediate, DetailProfessional:
	default:
		c.DetailLevel = DetailIntermediate
	}
	if c.NumSlides <= 0 {
		c.NumSlides = 10
	}
}

// Presentation is a generated slide deck.
type Presentation struct {
	ID             string             `json:"id"`
	Config         PresentationConfig `json:"config"`
	Status         string             `json:"status"`
	Content        string             `json:"content"`
	OutputFilePath string             `json:"output_file_path"`
	DocumentID     string             `json:"document_id,omitempty"`
	CategoryID     int                `json:"category_id,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Topic is a pipeline-internal outline entry. It is never persisted.
type Topic struct {
	Title     string   `json:"title"`
	KeyPoints []string `json:"key_points"`
}
