/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// essayRecord is the full per-essay detail appended to logs/results.jsonl.
// One line per essay, written after the essay reaches a terminal status.
type essayRecord struct {
	Timestamp    time.Time `json:"ts"`
	Student      string    `json:"student"`
	Status       string    `json:"status"`
	DurationMS   int64     `json:"duration_ms"`
	Retries      int       `json:"retries"`
	Error        string    `json:"error,omitempty"`
	SchemaErrors []string  `json:"schema_errors,omitempty"`

	TextQuality  string  `json:"text_quality,omitempty"`
	Chars        int     `json:"chars"`
	Pages        int     `json:"pages"`
	CharsPerPage float64 `json:"chars_per_page"`
	// Thresholds in force when the essay was gated, for auditability.
	MinTextChars    int  `json:"min_text_chars"`
	MinCharsPerPage int  `json:"min_chars_per_page"`
	AllowPartial    bool `json:"allow_partial_text"`

	OverallScore     string `json:"overall_score,omitempty"`
	PointsEarned     *int   `json:"points_earned,omitempty"`
	PointsPossible   *int   `json:"points_possible,omitempty"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
}

// appendLogLine appends one human-readable line to logs/job.log.
func appendLogLine(dir string, rec essayRecord) error {
	detail := fmt.Sprintf("retries=%d", rec.Retries)
	if rec.Status == "low_text_rejected" {
		detail = fmt.Sprintf("chars=%d pages=%d avg=%.0f", rec.Chars, rec.Pages, rec.CharsPerPage)
	}
	line := fmt.Sprintf("%s | %s | %s | %dms | %s\n",
		rec.Timestamp.UTC().Format(time.RFC3339), rec.Student, rec.Status, rec.DurationMS, detail)
	return appendFile(filepath.Join(dir, "logs", "job.log"), []byte(line))
}

// appendResult appends one JSON line to logs/results.jsonl.
func appendResult(dir string, rec essayRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding result record: %w", err)
	}
	return appendFile(filepath.Join(dir, "logs", "results.jsonl"), append(raw, '\n'))
}

func appendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("appending to %s: %w", path, err)
	}
	return f.Close()
}
