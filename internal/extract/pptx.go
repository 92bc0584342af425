package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	atTag     = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
)

// extractPPTX returns the <a:t> text of every slide in slide order, one line per slide.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return "", err
	}
	type slide struct {
		n    int
		text string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slidePart.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		data, err := readFile(f)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		n, _ := strconv.Atoi(m[1])
		if runs := textRuns(atTag, data); len(runs) > 0 {
			slides = append(slides, slide{n: n, text: strings.Join(runs, " ")})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })
	lines := make([]string, len(slides))
	for i, s := range slides {
		lines[i] = s.text
	}
	return strings.Join(lines, "\n"), nil
}
