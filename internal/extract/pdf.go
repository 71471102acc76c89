package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
)

// PDFPageExtractor downloads a PDF and extracts the plain text of one page.
type PDFPageExtractor struct {
	fetcher harvest.Fetcher
	field   string
	page    int
}

// NewPDFPage returns an extractor for page (1-based) of the row's source PDF.
func NewPDFPage(fetcher harvest.Fetcher, field string, page int) (*PDFPageExtractor, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if field == "" {
		return nil, fmt.Errorf("field is required")
	}
	if page <= 0 {
		return nil, fmt.Errorf("page must be > 0")
	}
	return &PDFPageExtractor{fetcher: fetcher, field: field, page: page}, nil
}

// Fields implements harvest.Extractor.
func (e *PDFPageExtractor) Fields() []string {
	return []string{e.field}
}

// Extract implements harvest.Extractor.
func (e *PDFPageExtractor) Extract(ctx context.Context, item harvest.WorkItem) (harvest.Outcome, error) {
	if !item.HasSource() {
		return harvest.NoSourceOutcome(item.Key, e.Fields()), nil
	}
	resp, err := e.fetcher.Fetch(ctx, harvest.FetchRequest{URL: strings.TrimSpace(item.Source())})
	if err != nil {
		return harvest.FailAll(item.Key, e.Fields(), err), nil
	}
	text, err := pageText(resp.Body, e.page)
	if err != nil {
		return harvest.FailAll(item.Key, e.Fields(), err), nil
	}
	return harvest.Outcome{Key: item.Key, Fields: []harvest.FieldResult{harvest.Text(e.field, text)}}, nil
}

// pageText returns the trimmed plain text of page n. The pdf reader panics on
// some malformed inputs, so panics are converted to errors here.
func pageText(body []byte, n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	if reader.NumPage() < n {
		return "", &harvest.NotFoundError{Anchor: fmt.Sprintf("page %d", n)}
	}
	page := reader.Page(n)
	if page.V.IsNull() {
		return "", &harvest.NotFoundError{Anchor: fmt.Sprintf("page %d", n)}
	}
	raw, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d text: %w", n, err)
	}
	return strings.TrimSpace(raw), nil
}
