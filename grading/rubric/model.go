/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package rubric

import (
	"fmt"
	"strings"
)

// Criterion is a single scoring criterion in canonical form.
type Criterion struct {
	// ID uniquely identifies the criterion within the rubric.
	// Canonical form is lowercase alphanumerics and underscores.
	ID string `json:"id"`
	// MaxScore is the highest score this criterion can earn.
	MaxScore int `json:"max_score"`
	// Name is the optional human-readable label.
	Name string `json:"name,omitempty"`
	// Descriptors maps score tokens to performance-level descriptions.
	Descriptors map[string]string `json:"descriptors,omitempty"`
}

// Model is a canonical rubric: an ordered set of criteria with unique ids
// plus the total points declaration. It is immutable once created for a job.
type Model struct {
	Criteria              []Criterion `json:"criteria"`
	OverallPointsPossible int         `json:"overall_points_possible,omitempty"`
}

// Context carries the rubric-derived facts the evaluation validator needs.
// Modeling it as an explicit value keeps the evaluation schema independent
// of any particular rubric shape.
type Context struct {
	// IDs is the exact set of criterion ids an evaluation must cover.
	IDs map[string]struct{}
	// MaxScores bounds the numeric score per criterion id.
	MaxScores map[string]float64
	// PointsPossible is the total the evaluation's overall block must declare.
	PointsPossible float64
}

// Validate checks the model's internal invariants. Canonicalize enforces the
// same rules with structured locations; this is the last line of defense for
// models constructed directly.
func (m *Model) Validate() error {
	if len(m.Criteria) == 0 {
		return fmt.Errorf("rubric must include at least one criterion")
	}
	seen := make(map[string]struct{}, len(m.Criteria))
	total := 0
	for _, c := range m.Criteria {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return fmt.Errorf("criterion id must not be blank")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate criterion id detected: %s", id)
		}
		seen[id] = struct{}{}
		if c.MaxScore <= 0 {
			return fmt.Errorf("criterion %q: max_score must be positive", id)
		}
		total += c.MaxScore
	}
	if m.OverallPointsPossible != 0 && m.OverallPointsPossible != total {
		return fmt.Errorf("overall_points_possible must equal the sum of all criterion max_score values")
	}
	return nil
}

// IDSet returns the set of criterion ids.
func (m *Model) IDSet() map[string]struct{} {
	ids := make(map[string]struct{}, len(m.Criteria))
	for _, c := range m.Criteria {
		ids[c.ID] = struct{}{}
	}
	return ids
}

// CriterionIDs returns the criterion ids in rubric order.
func (m *Model) CriterionIDs() []string {
	ids := make([]string, 0, len(m.Criteria))
	for _, c := range m.Criteria {
		ids = append(ids, c.ID)
	}
	return ids
}

// ScoreMap returns the max score per criterion id.
func (m *Model) ScoreMap() map[string]float64 {
	scores := make(map[string]float64, len(m.Criteria))
	for _, c := range m.Criteria {
		scores[c.ID] = float64(c.MaxScore)
	}
	return scores
}

// PointsPossible returns the declared total, or the sum of criterion max
// scores when no total was declared.
func (m *Model) PointsPossible() int {
	if m.OverallPointsPossible != 0 {
		return m.OverallPointsPossible
	}
	total := 0
	for _, c := range m.Criteria {
		total += c.MaxScore
	}
	return total
}

// Context derives the validation context consumed by the evaluation package.
func (m *Model) Context() Context {
	return Context{
		IDs:            m.IDSet(),
		MaxScores:      m.ScoreMap(),
		PointsPossible: float64(m.PointsPossible()),
	}
}
