// Package models defines core data structures for documents, chat sessions and presentations.
package models

import "time"

// Document represents an ingested source file. Documents are content-addressed by FileHash.
type Document struct {
	ID              string     `json:"id" db:"id"`
	CategoryID      int        `json:"category_id" db:"category_id"`
	Title           string     `json:"title" db:"title"`
	DocumentSource  string     `json:"document_source,omitempty" db:"document_source"`
	PublicationDate *time.Time `json:"publication_date,omitempty" db:"publication_date"`
	FileHash        string     `json:"file_hash" db:"file_hash"`
	FileName        string     `json:"file_name" db:"file_name"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Chunk is a passage of a document's normalized text.
// Embedding is nil when the embedding call failed; such chunks are still searchable lexically.
type Chunk struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Position   int       `json:"position" db:"position"`
	Content    string    `json:"content" db:"content"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// HasEmbedding reports whether the chunk carries a vector.
func (c *Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// DocumentStats summarizes the store.
type DocumentStats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Embedded  int `json:"embedded_chunks"`
}
