package extract

import (
	"regexp"
	"strings"
)

const openDocumentContent = "content.xml"

var (
	odfParagraph = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odfSpan      = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odfHeading   = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
)

func extractODP(content []byte) (string, error) {
	return extractOpenDocument(content, "ODP", odfParagraph, odfSpan, odfHeading)
}

func extractODS(content []byte) (string, error) {
	return extractOpenDocument(content, "ODS", odfParagraph, odfSpan)
}

// extractOpenDocument collects the text elements of content.xml, one pattern after another.
func extractOpenDocument(content []byte, kind string, patterns ...*regexp.Regexp) (string, error) {
	zr, err := openZip(content, kind)
	if err != nil {
		return "", err
	}
	xml, err := readPart(zr, openDocumentContent, kind)
	if err != nil {
		return "", err
	}
	var runs []string
	for _, re := range patterns {
		runs = append(runs, textRuns(re, xml)...)
	}
	return strings.Join(runs, " "), nil
}
