/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package batch

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"chainguard.dev/gradeflow/batch/report"
	"chainguard.dev/gradeflow/grading/evaluation"
)

// summaryBuilder accumulates one row per essay for the end-of-job summary
// artifacts. criteria fixes the per-criterion score columns for the job,
// in rubric order.
type summaryBuilder struct {
	criteria []string

	mu   sync.Mutex
	rows []report.Row
}

func newSummaryBuilder(criteria []string) *summaryBuilder {
	return &summaryBuilder{criteria: criteria}
}

// addSuccess records a graded essay.
func (b *summaryBuilder) addSuccess(student string, m *evaluation.Model, retries int) {
	row := report.Row{
		Student:      student,
		Status:       "graded",
		OverallScore: m.OverallScore.Token(),
		Retries:      strconv.Itoa(retries),
	}
	if m.Overall != nil {
		row.PointsEarned = strconv.Itoa(m.Overall.PointsEarned)
		row.PointsPossible = strconv.Itoa(m.Overall.PointsPossible)
	}

	scores := make(map[string]string, len(m.Criteria))
	for _, c := range m.Criteria {
		scores[c.ID] = c.Score.Token()
	}
	for _, id := range b.criteria {
		row.CriterionScores = append(row.CriterionScores, scores[id])
	}
	b.add(row)
}

// addFailure records an ungraded essay. Score cells stay blank.
func (b *summaryBuilder) addFailure(student, status string) {
	b.add(report.Row{Student: student, Status: status})
}

func (b *summaryBuilder) add(row report.Row) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = append(b.rows, row)
}

// sorted returns the rows ordered by student, case-insensitively.
func (b *summaryBuilder) sorted() []report.Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	rows := make([]report.Row, len(b.rows))
	copy(rows, b.rows)
	sort.SliceStable(rows, func(i, k int) bool {
		return strings.ToLower(rows[i].Student) < strings.ToLower(rows[k].Student)
	})
	return rows
}

// writeSummaries renders summary.csv and summary.txt for the job.
func writeSummaries(dir string, criteria []string, rows []report.Row) ([]string, error) {
	csvPath := filepath.Join(dir, "summary.csv")
	if err := writeCSV(csvPath, criteria, rows); err != nil {
		return nil, err
	}

	txtPath := filepath.Join(dir, "summary.txt")
	table := report.Render(criteria, rows)
	if err := os.WriteFile(txtPath, []byte(table), 0o644); err != nil {
		return nil, fmt.Errorf("writing summary table: %w", err)
	}
	return []string{csvPath, txtPath}, nil
}

func writeCSV(path string, criteria []string, rows []report.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating summary CSV: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(report.Header(criteria)); err != nil {
		f.Close()
		return fmt.Errorf("writing summary CSV header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row.Cells(criteria)); err != nil {
			f.Close()
			return fmt.Errorf("writing summary CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flushing summary CSV: %w", err)
	}
	return f.Close()
}
