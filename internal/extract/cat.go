package extract

import (
	"bytes"
	"fmt"

	"github.com/lu4p/cat"

	"github.com/hyperjump/shiryo/internal/models"
)

// extractCat handles ODT and RTF through lu4p/cat, which detects the format from the content.
func extractCat(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract document: %w", err)
	}
	return text, nil
}

// extractLegacyWord handles files sent as application/msword. Those are often RTF or a
// mislabeled DOCX; binary Word 97 files are not supported.
func extractLegacyWord(content []byte) (string, error) {
	if bytes.HasPrefix(content, []byte("PK")) {
		return extractDOCX(content)
	}
	if bytes.HasPrefix(content, []byte(`{\rtf`)) {
		return extractCat(content)
	}
	return "", fmt.Errorf("%w: binary .doc", models.ErrUnsupportedType)
}
