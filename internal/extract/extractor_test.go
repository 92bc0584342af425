package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/internal/pptx"
)

func zipOf(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range parts {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(body))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func wordDoc(text string) string {
	return `<w:document><w:body><w:p w:rsidR="00A1"><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p></w:body></w:document>`
}

func excelFile(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetCellValue("Sheet1", "A1", "Product")
	_ = f.SetCellValue("Sheet1", "B1", "Rate")
	_ = f.SetCellValue("Sheet1", "A3", "Home Loan")
	_ = f.SetCellValue("Sheet1", "B3", " 7.5% ")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractBytes(t *testing.T) {
	contentTypes := `<Types><Override ContentType="` + docxMainContentType + `" PartName="/word/document2.xml"/></Types>`
	odp := `<office:body><draw:page><text:h>Slide title</text:h><text:p>Body text</text:p></draw:page></office:body>`
	ods := `<table:table-row><table:table-cell><text:p>Cell A</text:p></table:table-cell><table:table-cell><text:span>Cell B</text:span></table:table-cell></table:table-row>`

	tests := []struct {
		name    string
		ext     string
		content []byte
		want    string
	}{
		{"plain", ".txt", []byte("Hello world\nLine 2"), "Hello world\nLine 2"},
		{"markdown utf8", ".md", []byte("caf\xc3\xa9"), "café"},
		{"invalid utf8", ".rst", []byte("hello\x80world"), "hello�world"},
		{"unknown extension is plain", ".xyz", []byte("raw content"), "raw content"},
		{"excel", ".xlsx", excelFile(t), "Product | Rate\nHome Loan | 7.5%"},
		{"bom and crlf", ".txt", []byte("\xef\xbb\xbfFees\r\nNone"), "Fees\nNone"},
		{"docx", ".docx", zipOf(t, map[string]string{"word/document.xml": wordDoc("Card fees &amp; limits")}), "Card fees & limits"},
		{"docx custom part", ".docx", zipOf(t, map[string]string{
			contentTypesPath:     contentTypes,
			"word/document2.xml": wordDoc("From document2"),
		}), "From document2"},
		{"pptx slide order", ".pptx", zipOf(t, map[string]string{
			"ppt/slides/slide10.xml": `<p:sld><a:t>Tenth</a:t></p:sld>`,
			"ppt/slides/slide2.xml":  `<p:sld><a:t>Second</a:t><a:t> part </a:t></p:sld>`,
			"ppt/slides/_rels/slide2.xml.rels": `<a:t>ignored</a:t>`,
		}), "Second part\nTenth"},
		{"pptx without slides", ".pptx", zipOf(t, map[string]string{"docProps/core.xml": ""}), ""},
		{"odp", ".odp", zipOf(t, map[string]string{"content.xml": odp}), "Body text Slide title"},
		{"ods", ".ods", zipOf(t, map[string]string{"content.xml": ods}), "Cell A Cell B"},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractBytes(tt.content, tt.ext)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBytes_Errors(t *testing.T) {
	e := NewExtractor()
	tests := []struct {
		name    string
		ext     string
		content []byte
	}{
		{"pptx not zip", ".pptx", []byte("not a zip")},
		{"odp without content", ".odp", zipOf(t, map[string]string{"other.xml": ""})},
		{"ods without content", ".ods", zipOf(t, map[string]string{"other.xml": ""})},
		{"docx without body", ".docx", zipOf(t, map[string]string{"other.xml": ""})},
		{"pdf garbage", ".pdf", []byte("%PDF-nope")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.ExtractBytes(tt.content, tt.ext); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExtractMIME(t *testing.T) {
	e := NewExtractor()
	docx := zipOf(t, map[string]string{"word/document.xml": wordDoc("Savings account")})

	tests := []struct {
		name     string
		content  []byte
		mime     string
		filename string
		want     string
		err      error
	}{
		{"plain with charset", []byte("Loans"), "text/plain; charset=utf-8", "a.txt", "Loans", nil},
		{"markdown", []byte("# Cards"), MIMEMarkdown, "a.md", "# Cards", nil},
		{"docx", docx, MIMEDOCX, "a.docx", "Savings account", nil},
		{"msword holding docx", docx, MIMEMSWord, "a.doc", "Savings account", nil},
		{"binary doc", []byte{0xD0, 0xCF, 0x11, 0xE0}, MIMEMSWord, "a.doc", "", models.ErrUnsupportedType},
		{"octet stream uses extension", []byte("Payroll"), "application/octet-stream", "notes.txt", "Payroll", nil},
		{"unknown type and extension", []byte("x"), "image/png", "a.png", "", models.ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractMIME(tt.content, tt.mime, tt.filename)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllowed(t *testing.T) {
	allowed := []string{MIMEPDF, MIMEPlain, MIMEMarkdown, MIMEMSWord, MIMEDOCX}
	tests := []struct {
		mime string
		want bool
	}{
		{MIMEPDF, true},
		{"Text/Plain; charset=UTF-8", true},
		{MIMEDOCX, true},
		{MIMEXLSX, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Allowed(tt.mime, allowed); got != tt.want {
			t.Errorf("Allowed(%q) = %v, want %v", tt.mime, got, tt.want)
		}
	}
}

func TestMIMEFromFilename(t *testing.T) {
	if got := MIMEFromFilename("Report.PDF"); got != MIMEPDF {
		t.Errorf("got %q", got)
	}
	if got := MIMEFromFilename("photo.png"); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.txt")
	if err := os.WriteFile(path, []byte("Annual fee waived"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().Extract(path)
	if err != nil || got != "Annual fee waived" {
		t.Errorf("Extract = %q, %v", got, err)
	}
	if _, err := NewExtractor().Extract(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExtract_GeneratedDeck(t *testing.T) {
	data, err := pptx.Bytes(pptx.Deck{
		Title: "Cards",
		Slides: []pptx.Slide{
			{Title: "Cards", Body: []string{"Professional Banking Services Overview"}},
			{Title: "Gold Card", Body: []string{"• Cashback <5%>"}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().ExtractBytes(data, ".pptx")
	if err != nil {
		t.Fatal(err)
	}
	want := "Cards Professional Banking Services Overview\nGold Card • Cashback <5%>"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
