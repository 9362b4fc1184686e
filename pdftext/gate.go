/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pdftext

import "fmt"

// Quality classifies an extraction relative to the gate thresholds.
type Quality string

const (
	// QualityOK means the text comfortably clears both thresholds.
	QualityOK Quality = "ok"
	// QualityLow means the text is under a threshold but grading proceeds
	// because partial text is allowed.
	QualityLow Quality = "low"
	// QualityRejected means the text is under a threshold and grading must
	// not proceed.
	QualityRejected Quality = "rejected"
)

// Gate holds the thresholds below which an extraction is considered too thin
// to grade, typically indicating a scanned or image-only PDF.
type Gate struct {
	// MinChars is the minimum total characters across the document.
	MinChars int
	// MinCharsPerPage is the minimum average characters per page.
	MinCharsPerPage int
	// AllowPartial downgrades a rejection to a warning.
	AllowPartial bool
}

// DefaultGate returns the standard thresholds.
func DefaultGate() Gate {
	return Gate{MinChars: 500, MinCharsPerPage: 200}
}

// Verdict is the gate's decision for one extraction.
type Verdict struct {
	Quality Quality
	Reason  string
}

// Check applies the gate to an extraction result.
func (g Gate) Check(r *Result) Verdict {
	var reason string
	switch {
	case g.MinChars > 0 && r.Chars < g.MinChars:
		reason = fmt.Sprintf("extracted %d characters across %d pages, below the %d character minimum", r.Chars, r.Pages, g.MinChars)
	case g.MinCharsPerPage > 0 && r.Pages > 0 && r.CharsPerPage() < float64(g.MinCharsPerPage):
		reason = fmt.Sprintf("extracted %.0f characters per page across %d pages, below the %d per-page minimum", r.CharsPerPage(), r.Pages, g.MinCharsPerPage)
	default:
		return Verdict{Quality: QualityOK}
	}
	if g.AllowPartial {
		return Verdict{Quality: QualityLow, Reason: reason}
	}
	return Verdict{Quality: QualityRejected, Reason: reason}
}

// RemediationMessage explains how to produce a gradable PDF when extraction
// comes up short. Included verbatim in failure artifacts so it reaches the
// person who submitted the file.
const RemediationMessage = "The PDF appears to contain little or no selectable text, which usually means it was scanned or exported as images. Please re-export the document from the original editor (for example with File > Save As > PDF), or run OCR on the scan, and submit the text-based PDF."
