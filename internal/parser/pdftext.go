package parser

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

var errNoText = eris.New("no extractable text")

// PDFTextName identifies the local plain-text fallback. Extractions produced
// by it are always routed to human review.
const PDFTextName = "pdftext"

// pdfTextConfidence is deliberately low: plain-text extraction loses all
// layout and table structure.
const pdfTextConfidence = 0.40

// PDFText is the last-resort PDF adapter. It runs in-process with no
// external service and yields plain text only, no fields or tables.
type PDFText struct{}

// NewPDFText creates the plain-text PDF fallback adapter.
func NewPDFText() *PDFText {
	return &PDFText{}
}

func (p *PDFText) Name() string { return PDFTextName }

func (p *PDFText) Supports(mimeType string) bool {
	return mimeType == "application/pdf"
}

// Parse extracts plain text page by page. Unreadable pages are skipped; a
// document with no extractable text at all is an adapter failure.
func (p *PDFText) Parse(ctx context.Context, content []byte, mimeType string) (*ParseResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, NewError(PDFTextName, err)
	}

	var all strings.Builder
	var pages []PageText
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, NewTransientError(PDFTextName, err)
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, PageText{Number: i, Text: text})
		all.WriteString(text)
		all.WriteString("\n")
	}

	text := strings.TrimSpace(all.String())
	if text == "" {
		return nil, NewError(PDFTextName, errNoText)
	}

	return &ParseResult{
		Text:       text,
		Pages:      pages,
		Confidence: pdfTextConfidence,
	}, nil
}

// HealthCheck always succeeds: the adapter has no external dependency.
func (p *PDFText) HealthCheck(ctx context.Context) error { return nil }
