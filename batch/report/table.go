/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package report renders the per-student score summary as a markdown table,
// written to summary.txt and echoed by the CLI.
package report

import (
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// Row is one student's line in the summary. Cells are pre-rendered strings;
// essays that produced no evaluation leave their score cells blank.
type Row struct {
	Student        string
	Status         string
	OverallScore   string
	PointsEarned   string
	PointsPossible string
	Retries        string
	// CriterionScores holds one score cell per rubric criterion, in the
	// rubric's criterion order. A short or nil slice renders as blanks.
	CriterionScores []string
}

// Header returns the summary column names, shared by the CSV and the table.
// One criterion_<id>_score column follows the fixed columns for each rubric
// criterion id, in rubric order.
func Header(criterionIDs []string) []string {
	cols := []string{"student", "status", "overall_score", "points_earned", "points_possible", "retries"}
	for _, id := range criterionIDs {
		cols = append(cols, "criterion_"+id+"_score")
	}
	return cols
}

// Cells returns the row in Header order, padding missing criterion scores
// with blanks so failed students keep the column count.
func (r Row) Cells(criterionIDs []string) []string {
	cells := []string{r.Student, r.Status, r.OverallScore, r.PointsEarned, r.PointsPossible, r.Retries}
	for i := range criterionIDs {
		if i < len(r.CriterionScores) {
			cells = append(cells, r.CriterionScores[i])
		} else {
			cells = append(cells, "")
		}
	}
	return cells
}

// Render returns the rows as a markdown table.
func Render(criterionIDs []string, rows []Row) string {
	var b strings.Builder
	table := newTable(Header(criterionIDs), &b)
	for _, row := range rows {
		_ = table.Append(row.Cells(criterionIDs))
	}
	_ = table.Render()
	return b.String()
}

// newTable creates a table writer with consistent markdown formatting.
func newTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}
