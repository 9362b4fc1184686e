/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package pdftext extracts plain text from PDF essays and judges whether the
// extraction yielded enough text to grade. Scanned image PDFs extract little
// or no text; the gate catches those before any model call is spent on them.
package pdftext
