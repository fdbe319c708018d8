package loader

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// Page is one parsed unit of a file. PDFs yield one per page; other formats one per file.
type Page struct {
	Text string
	// Number is the 1-based page number, or 0 for formats without pages.
	Number int
}

// ParserFunc turns raw file content into pages.
type ParserFunc func(ctx context.Context, data []byte) ([]Page, error)

// DefaultParsers maps lowercase file extensions to parsers.
func DefaultParsers() map[string]ParserFunc {
	return map[string]ParserFunc{
		".txt":  ParseText,
		".md":   ParseText,
		".html": ParseHTML,
		".htm":  ParseHTML,
		".pdf":  ParsePDF,
	}
}

// ParseText loads plain text and markdown.
func ParseText(ctx context.Context, data []byte) ([]Page, error) {
	docs, err := documentloaders.NewText(bytes.NewReader(data)).Load(ctx)
	if err != nil {
		return nil, err
	}
	return toPages(docs), nil
}

// ParseHTML loads an HTML document, keeping only its text content.
func ParseHTML(ctx context.Context, data []byte) ([]Page, error) {
	docs, err := documentloaders.NewHTML(bytes.NewReader(data)).Load(ctx)
	if err != nil {
		return nil, err
	}
	return toPages(docs), nil
}

// ParsePDF loads a PDF, one Page per PDF page.
func ParsePDF(ctx context.Context, data []byte) (pages []Page, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	docs, err := documentloaders.NewPDF(bytes.NewReader(data), int64(len(data))).Load(ctx)
	if err != nil {
		return nil, err
	}
	return toPages(docs), nil
}

func toPages(docs []schema.Document) []Page {
	pages := make([]Page, 0, len(docs))
	for _, doc := range docs {
		pages = append(pages, Page{Text: doc.PageContent, Number: pageNumber(doc.Metadata["page"])})
	}
	return pages
}

func pageNumber(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}
