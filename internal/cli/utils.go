// Package cli formats command output for the shiryo binary.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/shiryo/internal/chat"
	"github.com/hyperjump/shiryo/internal/indexer"
	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/internal/presentation"
	"github.com/hyperjump/shiryo/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// IngestOutcome is the result of ingesting one file.
type IngestOutcome struct {
	Path      string                `json:"path"`
	Result    *indexer.IngestResult `json:"result,omitempty"`
	Duplicate bool                  `json:"duplicate,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// WriteIngestOutcomes writes one line per ingested file.
func WriteIngestOutcomes(w io.Writer, outcomes []IngestOutcome, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, outcomes)
	}
	for _, o := range outcomes {
		switch {
		case o.Error != "":
			fmt.Fprintf(w, "FAILED     %s: %s\n", o.Path, o.Error)
		case o.Duplicate:
			fmt.Fprintf(w, "DUPLICATE  %s -> %s (%s)\n", o.Path, o.Result.Document.ID, o.Result.Document.Title)
		default:
			embedded := ""
			if !o.Result.Embedded {
				embedded = ", without embeddings"
			}
			fmt.Fprintf(w, "INGESTED   %s -> %s (%s, %d chunks%s)\n",
				o.Path, o.Result.Document.ID, o.Result.Document.Title, o.Result.Chunks, embedded)
		}
	}
	return nil
}

// WriteDocuments writes a document listing.
func WriteDocuments(w io.Writer, docs []*models.Document, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents.")
		return nil
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%s  [%d] %s\n", d.ID, d.CategoryID, utils.Truncate(d.Title, 60))
		fmt.Fprintf(w, "    file: %s  added: %s\n", d.FileName, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "\n%d document(s)\n", len(docs))
	return nil
}

// WriteCategories writes the service category taxonomy.
func WriteCategories(w io.Writer, categories []*models.Category, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, categories)
	}
	for _, c := range categories {
		fmt.Fprintf(w, "%d  %s\n", c.ID, c.Name)
		if c.Description != "" {
			fmt.Fprintf(w, "   %s\n", utils.Truncate(c.Description, 100))
		}
	}
	return nil
}

// Status is what the status command reports.
type Status struct {
	Documents      int    `json:"documents"`
	Chunks         int    `json:"chunks"`
	EmbeddedChunks int    `json:"embedded_chunks"`
	StorageBackend string `json:"storage_backend,omitempty"`
	LLMBackend     string `json:"llm_backend,omitempty"`
	DiskUsageBytes int64  `json:"disk_usage_bytes,omitempty"`
}

// WriteStatus writes library counts and configuration.
func WriteStatus(w io.Writer, s *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "documents:        %d   # ingested documents\n", s.Documents)
	fmt.Fprintf(w, "chunks:           %d   # stored passages\n", s.Chunks)
	fmt.Fprintf(w, "embedded_chunks:  %d   # passages with a vector\n", s.EmbeddedChunks)
	if s.DiskUsageBytes > 0 {
		fmt.Fprintf(w, "disk_usage_bytes: %d\n", s.DiskUsageBytes)
	}
	if s.StorageBackend != "" || s.LLMBackend != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "storage_backend:  %s\n", s.StorageBackend)
		fmt.Fprintf(w, "llm_backend:      %s\n", s.LLMBackend)
	}
	return nil
}

// WriteReply writes a chat answer.
func WriteReply(w io.Writer, reply *chat.Reply, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, reply)
	}
	fmt.Fprintf(w, "[%s] session %s\n\n%s\n", reply.DocumentTitle, reply.SessionID, reply.Response)
	return nil
}

// WriteEvent writes one presentation stream event. In JSON mode each event is one line.
func WriteEvent(w io.Writer, ev presentation.Event, format OutputFormat) error {
	if format == OutputJSON {
		return json.NewEncoder(w).Encode(ev)
	}
	if ev.Done {
		if ev.Error != "" {
			fmt.Fprintf(w, "Presentation %s %s: %s\n", ev.PresentationID, ev.Status, ev.Error)
			return nil
		}
		fmt.Fprintf(w, "Presentation %s %s\n", ev.PresentationID, ev.Status)
		return nil
	}
	fmt.Fprintf(w, "── Slide %d ──\n%s\n\n", ev.Index, strings.ReplaceAll(ev.Content, "**", ""))
	return nil
}
