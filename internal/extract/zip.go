package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

func openZip(content []byte, kind string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	return zr, nil
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

// readPart returns the named part of a package.
func readPart(zr *zip.Reader, name, kind string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		data, err := readFile(f)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", kind, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("extract %s: %s not found", kind, name)
}

// textRuns returns the unescaped, trimmed, non-empty first group of every match.
func textRuns(re *regexp.Regexp, xml []byte) []string {
	var runs []string
	for _, m := range re.FindAllSubmatch(xml, -1) {
		if s := strings.TrimSpace(html.UnescapeString(string(m[1]))); s != "" {
			runs = append(runs, s)
		}
	}
	return runs
}
