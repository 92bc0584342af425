// Package extract turns uploaded documents into plain text.
package extract

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/shiryo/internal/models"
)

// MIME types accepted for upload.
const (
	MIMEPDF      = "application/pdf"
	MIMEPlain    = "text/plain"
	MIMEMarkdown = "text/markdown"
	MIMEMSWord   = "application/msword"
	MIMEDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEPPTX     = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MIMEODT      = "application/vnd.oasis.opendocument.text"
	MIMEODP      = "application/vnd.oasis.opendocument.presentation"
	MIMEODS      = "application/vnd.oasis.opendocument.spreadsheet"
	MIMERTF      = "application/rtf"
)

var extensionTypes = map[string]string{
	".pdf":  MIMEPDF,
	".txt":  MIMEPlain,
	".text": MIMEPlain,
	".md":   MIMEMarkdown,
	".rst":  MIMEPlain,
	".doc":  MIMEMSWord,
	".docx": MIMEDOCX,
	".xlsx": MIMEXLSX,
	".pptx": MIMEPPTX,
	".odt":  MIMEODT,
	".odp":  MIMEODP,
	".ods":  MIMEODS,
	".rtf":  MIMERTF,
}

// MIMEFromFilename returns the MIME type for a file name's extension, or "" when unknown.
func MIMEFromFilename(name string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(name))]
}

// NormalizeMIME strips parameters ("text/plain; charset=utf-8") and lowercases the type.
func NormalizeMIME(value string) string {
	mt, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(value))
	}
	return mt
}

// Allowed reports whether mimeType is in the allow-list.
func Allowed(mimeType string, allowed []string) bool {
	mimeType = NormalizeMIME(mimeType)
	for _, a := range allowed {
		if NormalizeMIME(a) == mimeType {
			return true
		}
	}
	return false
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content, choosing the format by extension.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractMIME extracts text by MIME type. Generic types such as application/octet-stream fall
// back to the file name's extension.
func (e *Extractor) ExtractMIME(content []byte, mimeType, filename string) (string, error) {
	switch NormalizeMIME(mimeType) {
	case MIMEPDF:
		return extractPDF(content)
	case MIMEPlain, MIMEMarkdown:
		return extractPlain(content)
	case MIMEDOCX:
		return extractDOCX(content)
	case MIMEMSWord:
		return extractLegacyWord(content)
	case MIMEODT, MIMERTF, "text/rtf":
		return extractCat(content)
	case MIMEXLSX:
		return extractExcel(content)
	case MIMEPPTX:
		return extractPPTX(content)
	case MIMEODP:
		return extractODP(content)
	case MIMEODS:
		return extractODS(content)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := extensionTypes[ext]; !ok {
		return "", fmt.Errorf("%w: %s", models.ErrUnsupportedType, mimeType)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".doc":
		return extractLegacyWord(content)
	case ".odt", ".rtf":
		return extractCat(content)
	case ".xlsx":
		return extractExcel(content)
	case ".pptx":
		return extractPPTX(content)
	case ".odp":
		return extractODP(content)
	case ".ods":
		return extractODS(content)
	default:
		return extractPlain(content)
	}
}
