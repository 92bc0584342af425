package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/llm"
	"github.com/hyperjump/shiryo/internal/models"
)

const (
	defaultMetadataChars   = 8000
	defaultMetadataTimeout = 10 * time.Second
)

const metadataSystemPrompt = `You are an expert assistant for the bank. Your sole function is to analyze the provided document text and metadata to create a complete, structured JSON record.

Your response MUST be a single, clean JSON object with the following keys: category_id, title, document_source, publication_date, file_hash, file_name.

Category ID Mapping (CHOOSE EXACTLY ONE):
- 1 = Accounts & Savings: bank accounts, savings accounts, current accounts, deposit accounts
- 2 = Loans: loans, borrowing, lending, personal loans, home loans, car loans, mortgages
- 3 = Cards: credit cards, debit cards, payment cards
- 4 = Investments: investments, funds, stocks, bonds, portfolios
- 5 = Business & Corporate Banking: business banking, corporate and commercial services
- 6 = Insurance: insurance products, protection, cover
- 7 = Digital & E-Banking: digital, online and mobile banking, apps
- 8 = Payroll Services: payroll, salary, employees
- 9 = General Information: the document does not fit any category above

CATEGORIZATION STEPS:
1. Read the document title and first 200 words carefully
2. Identify the MAIN topic
3. Match it to the BEST fitting category
4. A document about accounts is category 1, NOT 4
5. A document about loans is category 2, NOT 4
6. Only use category 9 if truly nothing matches

INSTRUCTIONS:
1. Extract the title (use the file name as fallback)
2. Extract document_source (Marketing Department, Annual Report, etc.), null if not found
3. Extract publication_date in YYYY-MM-DD format, null if not found
4. Copy file_hash and file_name directly from the metadata

Respond with ONLY valid JSON, no other text.`

// metadataResponse uses pointers so missing required keys can be told apart from zero values.
type metadataResponse struct {
	CategoryID      *int    `json:"category_id"`
	Title           *string `json:"title"`
	DocumentSource  *string `json:"document_source"`
	PublicationDate *string `json:"publication_date"`
	FileHash        *string `json:"file_hash"`
	FileName        *string `json:"file_name"`
}

// MetadataExtractor classifies a document and reads its title, source and publication date.
type MetadataExtractor struct {
	generator llm.Generator
	model     string
	maxChars  int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewMetadataExtractor creates an extractor. Zero maxChars or timeout use 8000 characters and 10s.
func NewMetadataExtractor(generator llm.Generator, model string, maxChars int, timeout time.Duration, logger *zap.Logger) *MetadataExtractor {
	if maxChars <= 0 {
		maxChars = defaultMetadataChars
	}
	if timeout <= 0 {
		timeout = defaultMetadataTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetadataExtractor{generator: generator, model: model, maxChars: maxChars, timeout: timeout, logger: logger}
}

// Extract returns a document filled from the model's answer. Any failure, including a timeout,
// yields FallbackMetadata; Extract itself never fails.
func (m *MetadataExtractor) Extract(ctx context.Context, text, fileHash, fileName string) *models.Document {
	if m.generator == nil {
		return FallbackMetadata(fileHash, fileName)
	}
	doc, err := m.extract(ctx, text, fileHash, fileName)
	if err != nil {
		m.logger.Warn("metadata extraction failed, using fallback",
			zap.String("file", fileName),
			zap.Error(err))
		return FallbackMetadata(fileHash, fileName)
	}
	m.logger.Info("metadata extracted",
		zap.String("title", doc.Title),
		zap.Int("category_id", doc.CategoryID))
	return doc
}

func (m *MetadataExtractor) extract(ctx context.Context, text, fileHash, fileName string) (*models.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	prompt := fmt.Sprintf("Text Content: %s\n\nFile Hash: %s\nFile Name: %s", truncateRunes(text, m.maxChars), fileHash, fileName)
	out, err := m.generator.Generate(ctx, llm.Request{
		System: metadataSystemPrompt,
		Prompt: prompt,
		Model:  m.model,
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	var resp metadataResponse
	if err := llm.DecodeJSON(out, &resp); err != nil {
		return nil, err
	}
	if resp.CategoryID == nil || resp.Title == nil || resp.FileHash == nil || resp.FileName == nil {
		return nil, fmt.Errorf("%w: response missing required fields", models.ErrMalformedOutput)
	}
	if *resp.CategoryID < 1 || *resp.CategoryID > models.GeneralCategoryID {
		return nil, fmt.Errorf("%w: category_id %d out of range", models.ErrMalformedOutput, *resp.CategoryID)
	}
	title := strings.TrimSpace(*resp.Title)
	if title == "" {
		return nil, errors.New("empty title")
	}

	doc := &models.Document{
		CategoryID: *resp.CategoryID,
		Title:      title,
		FileHash:   fileHash,
		FileName:   fileName,
	}
	if resp.DocumentSource != nil {
		doc.DocumentSource = strings.TrimSpace(*resp.DocumentSource)
	}
	if resp.PublicationDate != nil && *resp.PublicationDate != "" {
		d, err := time.Parse("2006-01-02", *resp.PublicationDate)
		if err != nil {
			return nil, fmt.Errorf("%w: publication_date: %v", models.ErrMalformedOutput, err)
		}
		doc.PublicationDate = &d
	}
	return doc, nil
}

// FallbackMetadata files a document under General Information with a title made from its name:
// "personal_loan_terms.pdf" becomes "Personal Loan Terms".
func FallbackMetadata(fileHash, fileName string) *models.Document {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	return &models.Document{
		CategoryID: models.GeneralCategoryID,
		Title:      titleCase(strings.ReplaceAll(base, "_", " ")),
		FileHash:   fileHash,
		FileName:   fileName,
	}
}

// titleCase upper-cases the first letter of every run of letters and lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) && !prevLetter:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsLetter(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
