/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package evaluation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"chainguard.dev/gradeflow/grading/rubric"
)

// floatTolerance bounds the score-sum and bound comparisons.
const floatTolerance = 1e-6

// Issue is a structured validation problem pointing at an evaluation field.
type Issue struct {
	Loc string `json:"loc"`
	Msg string `json:"msg"`
}

func (i Issue) String() string {
	if i.Loc == "" {
		return i.Msg
	}
	return fmt.Sprintf("%s: %s", i.Loc, i.Msg)
}

// Messages flattens issues into "loc: msg" strings for logs and prompts.
func Messages(issues []Issue) []string {
	msgs := make([]string, 0, len(issues))
	for _, issue := range issues {
		msgs = append(msgs, issue.String())
	}
	return msgs
}

// Validate checks an evaluation payload against the rubric-derived context.
// It returns every violated constraint rather than stopping at the first, so
// the retry loop can restate all of them to the model at once.
func Validate(m *Model, ctx rubric.Context) []Issue {
	var issues []Issue

	if m.OverallScore.Token() == "" {
		issues = append(issues, Issue{Loc: "overall_score", Msg: "overall_score must not be blank"})
	}
	if strings.TrimSpace(m.Summary) == "" {
		issues = append(issues, Issue{Loc: "summary", Msg: "summary must not be blank"})
	}

	allNumeric := true
	totalNumeric := 0.0
	seen := make(map[string]struct{}, len(m.Criteria))
	for i, c := range m.Criteria {
		loc := func(field string) string { return fmt.Sprintf("criteria[%d].%s", i, field) }

		if strings.TrimSpace(c.ID) == "" {
			issues = append(issues, Issue{Loc: loc("id"), Msg: "criterion id must not be blank"})
			continue
		}
		seen[c.ID] = struct{}{}
		if _, known := ctx.IDs[c.ID]; !known && len(ctx.IDs) > 0 {
			issues = append(issues, Issue{Loc: loc("id"), Msg: fmt.Sprintf("Unexpected criterion id %q", c.ID)})
		}

		if strings.TrimSpace(c.AssignedLevel) == "" {
			issues = append(issues, Issue{Loc: loc("assigned_level"), Msg: "value must not be blank"})
		}
		if strings.TrimSpace(c.ImprovementSuggestion) == "" {
			issues = append(issues, Issue{Loc: loc("improvement_suggestion"), Msg: "value must not be blank"})
		}
		if len(c.Examples) != 2 {
			issues = append(issues, Issue{Loc: loc("examples"), Msg: fmt.Sprintf("exactly 2 examples required, got %d", len(c.Examples))})
		}
		for j, example := range c.Examples {
			if strings.TrimSpace(example.Excerpt) == "" {
				issues = append(issues, Issue{Loc: fmt.Sprintf("criteria[%d].examples[%d].excerpt", i, j), Msg: "value must not be blank"})
			}
			if strings.TrimSpace(example.Comment) == "" {
				issues = append(issues, Issue{Loc: fmt.Sprintf("criteria[%d].examples[%d].comment", i, j), Msg: "value must not be blank"})
			}
		}

		score, numeric := c.Score.Float()
		if !numeric {
			allNumeric = false
			continue
		}
		totalNumeric += score
		if max, bounded := ctx.MaxScores[c.ID]; bounded && score > max+floatTolerance {
			issues = append(issues, Issue{
				Loc: loc("score"),
				Msg: fmt.Sprintf("Score %s for criterion %q exceeds max %s", c.Score.Token(), c.ID, formatNumber(max)),
			})
		}
	}

	issues = append(issues, coverageIssues(seen, ctx.IDs)...)

	if m.Overall != nil {
		if m.Overall.PointsEarned < 0 {
			issues = append(issues, Issue{Loc: "overall.points_earned", Msg: "points_earned must not be negative"})
		}
		if m.Overall.PointsPossible <= 0 {
			issues = append(issues, Issue{Loc: "overall.points_possible", Msg: "points_possible must be positive"})
		}
		if m.Overall.PointsEarned > m.Overall.PointsPossible {
			issues = append(issues, Issue{Loc: "overall.points_earned", Msg: "overall points_earned cannot exceed points_possible"})
		}
		if allNumeric && math.Abs(float64(m.Overall.PointsEarned)-totalNumeric) > floatTolerance {
			issues = append(issues, Issue{
				Loc: "overall.points_earned",
				Msg: "overall.points_earned must equal the sum of all numeric criterion scores",
			})
		}
		if ctx.PointsPossible > 0 && math.Abs(float64(m.Overall.PointsPossible)-ctx.PointsPossible) > floatTolerance {
			issues = append(issues, Issue{
				Loc: "overall.points_possible",
				Msg: "overall.points_possible must equal the sum of rubric max scores",
			})
		}
	}

	return issues
}

// coverageIssues reports the missing and extra criterion id sets, both
// directions, so the correction prompt can name every gap.
func coverageIssues(seen, want map[string]struct{}) []Issue {
	if len(want) == 0 {
		return nil
	}
	var missing, extra []string
	for id := range want {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	for id := range seen {
		if _, ok := want[id]; !ok {
			extra = append(extra, id)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)

	var issues []Issue
	if len(missing) > 0 {
		issues = append(issues, Issue{Loc: "criteria", Msg: "missing rubric ids: " + strings.Join(missing, ", ")})
	}
	if len(extra) > 0 {
		issues = append(issues, Issue{Loc: "criteria", Msg: "unknown rubric ids: " + strings.Join(extra, ", ")})
	}
	return issues
}
