/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pdftext

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chainguard-dev/clog"
	"github.com/ledongthuc/pdf"
)

// Result is the extracted text of one document with its page accounting.
type Result struct {
	Text  string
	Pages int
	Chars int
}

// CharsPerPage returns the average extracted characters per page.
func (r *Result) CharsPerPage() float64 {
	if r.Pages == 0 {
		return 0
	}
	return float64(r.Chars) / float64(r.Pages)
}

// Extractor pulls plain text from a document on disk.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Result, error)
}

// ExtractionError wraps a failure to read or parse one document.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting text from %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PDF extracts text with a pure-Go PDF parser.
type PDF struct {
	maxPages int
}

// PDFOption configures the PDF extractor.
type PDFOption func(*PDF)

// WithMaxPages caps how many pages are read per document. 0 means no cap.
func WithMaxPages(n int) PDFOption {
	return func(p *PDF) { p.maxPages = n }
}

// NewPDF constructs the default PDF extractor.
func NewPDF(opts ...PDFOption) *PDF {
	p := &PDF{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extract reads every page of the PDF at path and concatenates its text.
// Pages that fail to render are skipped with a warning; the document as a
// whole only fails if it cannot be opened at all.
func (p *PDF) Extract(ctx context.Context, path string) (*Result, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}
	defer f.Close()

	total := r.NumPage()
	pages := total
	if p.maxPages > 0 && pages > p.maxPages {
		pages = p.maxPages
	}

	var text strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, &ExtractionError{Path: path, Err: err}
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			clog.FromContext(ctx).With("path", path).With("page", i).
				With("error", err.Error()).Warn("Skipping unreadable page")
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n")
		}
		text.WriteString(content)
	}

	out := text.String()
	return &Result{
		Text:  out,
		Pages: total,
		Chars: utf8.RuneCountInString(out),
	}, nil
}
