/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package evaluation

import "strings"

// Limits caps the free-text fields of a stored evaluation. Model output can
// ramble well past what a report should carry, so artifacts are trimmed to
// these bounds before persistence.
type Limits struct {
	SummaryWords    int
	CommentWords    int
	ExcerptLines    int
	SuggestionWords int
}

// DefaultLimits returns the trim bounds applied to persisted artifacts.
func DefaultLimits() Limits {
	return Limits{
		SummaryWords:    80,
		CommentWords:    30,
		ExcerptLines:    3,
		SuggestionWords: 120,
	}
}

// Trim returns a copy of m with free-text fields capped per the limits.
// Scores and structure are never altered.
func Trim(m *Model, limits Limits) *Model {
	if m == nil {
		return nil
	}
	out := *m
	out.Summary = trimWords(m.Summary, limits.SummaryWords)
	out.Criteria = make([]Criterion, len(m.Criteria))
	for i, c := range m.Criteria {
		trimmed := c
		trimmed.ImprovementSuggestion = trimWords(c.ImprovementSuggestion, limits.SuggestionWords)
		trimmed.Examples = make([]Example, len(c.Examples))
		for j, example := range c.Examples {
			trimmed.Examples[j] = Example{
				Excerpt: trimLines(example.Excerpt, limits.ExcerptLines),
				Comment: trimWords(example.Comment, limits.CommentWords),
			}
		}
		out.Criteria[i] = trimmed
	}
	return &out
}

func trimWords(s string, max int) string {
	if max <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= max {
		return s
	}
	return strings.Join(words[:max], " ")
}

// trimLines keeps the first max non-empty lines, preserving their original
// text, and drops everything after.
func trimLines(s string, max int) string {
	if max <= 0 {
		return s
	}
	var kept []string
	nonEmpty := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			nonEmpty++
			if nonEmpty > max {
				break
			}
		}
		kept = append(kept, line)
	}
	if nonEmpty <= max && len(kept) == strings.Count(s, "\n")+1 {
		return s
	}
	return strings.TrimRight(strings.Join(kept, "\n"), "\n")
}
