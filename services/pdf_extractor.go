package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"pdf-rag-chatbot/internal/config"
	"pdf-rag-chatbot/models"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor handles per-page PDF text extraction
type PDFExtractor struct {
	config *config.Config
}

// NewPDFExtractor creates a new PDF extractor
func NewPDFExtractor(cfg *config.Config) *PDFExtractor {
	return &PDFExtractor{
		config: cfg,
	}
}

// ExtractionResult contains the result of a per-page extraction pass
type ExtractionResult struct {
	Pages          []models.PageText
	PageCount      int
	ProcessingTime time.Duration
	WordCount      int
}

// ExtractPagesFromFile reads the file and extracts text page by page.
func (e *PDFExtractor) ExtractPagesFromFile(ctx context.Context, filePath string) (*ExtractionResult, error) {
	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF file: %w", err)
	}
	if stat.Size() > 200<<20 { // 200MB safety cap
		return nil, fmt.Errorf("pdf too large for in-memory extraction")
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF file: %w", err)
	}

	return e.ExtractPages(ctx, content)
}

// ExtractPages extracts text from every page. A page that fails native
// extraction is returned with empty text rather than aborting the pass;
// the caller decides whether OCR can recover it.
func (e *PDFExtractor) ExtractPages(ctx context.Context, content []byte) (*ExtractionResult, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	pageCount := reader.NumPage()
	if pageCount == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	result := &ExtractionResult{
		Pages:     make([]models.PageText, 0, pageCount),
		PageCount: pageCount,
	}

	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageText := models.PageText{Number: i}

		page := reader.Page(i)
		if !page.V.IsNull() {
			fonts := make(map[string]*pdf.Font)
			text, err := page.GetPlainText(fonts)
			if err == nil {
				pageText.Text = normalizeExtractedText(text)
			}
		}

		pageText.WordCount = pageText.Words()
		result.WordCount += pageText.WordCount
		result.Pages = append(result.Pages, pageText)
	}

	result.ProcessingTime = time.Since(start)
	return result, nil
}

// IsSparsePage reports whether a page's native extraction is too thin to
// trust. Such pages are candidates for the OCR fallback.
func (e *PDFExtractor) IsSparsePage(page models.PageText) bool {
	return page.WordCount < e.config.OCRDensityThreshold
}

// normalizeExtractedText collapses runs of whitespace that PDF text
// streams tend to produce while keeping paragraph breaks.
func normalizeExtractedText(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		out = append(out, line)
	}

	joined := strings.Join(out, "\n")
	for strings.Contains(joined, "\n\n\n") {
		joined = strings.ReplaceAll(joined, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(joined)
}
