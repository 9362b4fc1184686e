/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package batch

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"chainguard.dev/gradeflow/grading/evaluation"
)

// writeEvaluation persists the validated, trimmed evaluation for one student
// under outputs/json/.
func writeEvaluation(dir, student string, m *evaluation.Model) (string, error) {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding evaluation for %s: %w", student, err)
	}
	path := filepath.Join(dir, "outputs", "json", student+".json")
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing evaluation for %s: %w", student, err)
	}
	return path, nil
}

// failureArtifact is the record written for essays that produced no valid
// evaluation, under outputs/json_failed/.
type failureArtifact struct {
	Status       string   `json:"status"`
	Error        string   `json:"error"`
	RawResponse  string   `json:"raw_response,omitempty"`
	SchemaErrors []string `json:"schema_errors,omitempty"`
}

func writeFailure(dir, student string, fa failureArtifact) (string, error) {
	raw, err := json.MarshalIndent(fa, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding failure record for %s: %w", student, err)
	}
	path := filepath.Join(dir, "outputs", "json_failed", student+".json")
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing failure record for %s: %w", student, err)
	}
	return path, nil
}

// writeText persists the extracted essay text under outputs/text/.
func writeText(dir, student, text string) (string, error) {
	path := filepath.Join(dir, "outputs", "text", student+".txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("writing text for %s: %w", student, err)
	}
	return path, nil
}

// writeArchive bundles the per-student outputs into evaluations.zip with
// json/ and text/ members.
func writeArchive(dir string) (string, error) {
	path := filepath.Join(dir, "evaluations.zip")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating archive: %w", err)
	}
	zw := zip.NewWriter(f)

	for _, member := range []struct{ src, prefix string }{
		{filepath.Join(dir, "outputs", "json"), "json"},
		{filepath.Join(dir, "outputs", "json_failed"), "json_failed"},
		{filepath.Join(dir, "outputs", "text"), "text"},
	} {
		if err := addDirToZip(zw, member.src, member.prefix); err != nil {
			zw.Close()
			f.Close()
			return "", err
		}
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return "", fmt.Errorf("finalizing archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing archive: %w", err)
	}
	return path, nil
}

func addDirToZip(zw *zip.Writer, src, prefix string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		w, err := zw.Create(prefix + "/" + e.Name())
		if err != nil {
			return fmt.Errorf("adding %s to archive: %w", e.Name(), err)
		}
		f, err := os.Open(filepath.Join(src, e.Name()))
		if err != nil {
			return fmt.Errorf("opening %s: %w", e.Name(), err)
		}
		if _, err := io.Copy(w, f); err != nil {
			f.Close()
			return fmt.Errorf("archiving %s: %w", e.Name(), err)
		}
		f.Close()
	}
	return nil
}
