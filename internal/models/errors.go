package models

import "errors"

var (
	// ErrNotFound is returned when a document, session or presentation does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateContent is returned when the uploaded bytes are already stored.
	ErrDuplicateContent = errors.New("document with identical content already exists")
	// ErrUpstreamUnavailable is returned when the generation or embedding endpoint cannot be reached.
	ErrUpstreamUnavailable = errors.New("upstream model service unreachable")
	// ErrMalformedOutput is returned when generated text cannot be parsed.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrUnsupportedType is returned for MIME types outside the allow-list.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrEmptyContent is returned for empty uploads or documents without text.
	ErrEmptyContent = errors.New("empty content")
	// ErrStatusFinal is returned when updating a presentation that already completed or failed.
	ErrStatusFinal = errors.New("presentation status is final")
	// ErrNoDocuments is returned when no document exists to build a presentation from.
	ErrNoDocuments = errors.New("no documents available")
)
