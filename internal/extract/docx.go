package extract

import (
	"archive/zip"
	"regexp"
	"strings"
)

const (
	docxDefaultPart     = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	// the Override attributes may come in either order
	mainPartRe = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	mainPartRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// docxMainPart finds the main document part from [Content_Types].xml, or the default path.
func docxMainPart(zr *zip.Reader) string {
	types, err := readPart(zr, contentTypesPath, "DOCX")
	if err != nil {
		return docxDefaultPart
	}
	for _, re := range []*regexp.Regexp{mainPartRe, mainPartRe2} {
		if m := re.FindSubmatch(types); m != nil {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return docxDefaultPart
}

// extractDOCX joins every <w:t> run of the main document part. Runs are matched with their
// attributes so paragraphs carrying rsid attributes are not skipped.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}
	doc, err := readPart(zr, docxMainPart(zr), "DOCX")
	if err != nil {
		return "", err
	}
	return strings.Join(textRuns(wtTag, doc), " "), nil
}
