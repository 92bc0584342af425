package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel renders each row as "cell | cell". Rate and fee tables keep their columns
// readable after chunking. Sheets are introduced by their name when there is more than one.
func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	blocks := make([]string, 0, len(sheets))
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		var lines []string
		if len(sheets) > 1 {
			lines = append(lines, sheet)
		}
		for _, row := range rows {
			if line := tableRow(row); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 && (len(sheets) == 1 || len(lines) > 1) {
			blocks = append(blocks, strings.Join(lines, "\n"))
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}

// tableRow joins the cells of a row, dropping trailing empty cells. A blank row yields "".
func tableRow(cells []string) string {
	end := len(cells)
	for end > 0 && strings.TrimSpace(cells[end-1]) == "" {
		end--
	}
	if end == 0 {
		return ""
	}
	trimmed := make([]string, end)
	for i, c := range cells[:end] {
		trimmed[i] = strings.TrimSpace(c)
	}
	return strings.Join(trimmed, " | ")
}
