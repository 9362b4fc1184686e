/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package evaluation

import (
	"strings"
	"testing"

	"chainguard.dev/gradeflow/grading/rubric"
	"github.com/google/go-cmp/cmp"
)

func twoCriterionContext() rubric.Context {
	return rubric.Context{
		IDs: map[string]struct{}{
			"clarity":  {},
			"evidence": {},
		},
		MaxScores: map[string]float64{
			"clarity":  10,
			"evidence": 10,
		},
		PointsPossible: 20,
	}
}

func goodCriterion(id string, score float64) Criterion {
	return Criterion{
		ID:            id,
		AssignedLevel: "proficient",
		Score:         NumericScore(score),
		Examples: []Example{
			{Excerpt: "The opening paragraph states the thesis.", Comment: "Clear framing."},
			{Excerpt: "The conclusion restates the argument.", Comment: "Good closure."},
		},
		ImprovementSuggestion: "Tighten the transitions between paragraphs.",
	}
}

func TestValidate_CleanPayload(t *testing.T) {
	t.Parallel()

	m := &Model{
		OverallScore: TokenScore("17/20"),
		Summary:      "A well structured essay with solid evidence.",
		Criteria: []Criterion{
			goodCriterion("clarity", 8),
			goodCriterion("evidence", 9),
		},
		Overall: &Overall{PointsEarned: 17, PointsPossible: 20},
	}
	if issues := Validate(m, twoCriterionContext()); len(issues) != 0 {
		t.Errorf("Validate() = %v, want none", Messages(issues))
	}
}

func TestValidate_ScoreExceedsMax(t *testing.T) {
	t.Parallel()

	m := &Model{
		OverallScore: TokenScore("19/20"),
		Summary:      "Strong essay.",
		Criteria: []Criterion{
			goodCriterion("clarity", 8),
			goodCriterion("evidence", 11),
		},
		Overall: &Overall{PointsEarned: 19, PointsPossible: 20},
	}
	issues := Validate(m, twoCriterionContext())
	if len(issues) == 0 {
		t.Fatal("Validate() passed a score above the rubric max")
	}
	found := false
	for _, issue := range issues {
		if strings.Contains(issue.Msg, "exceeds max") && strings.Contains(issue.Msg, "evidence") {
			found = true
		}
	}
	if !found {
		t.Errorf("Validate() = %v, want an exceeds-max issue for evidence", Messages(issues))
	}
}

func TestValidate_CoverageBothDirections(t *testing.T) {
	t.Parallel()

	m := &Model{
		OverallScore: TokenScore("8/20"),
		Summary:      "Partial coverage.",
		Criteria: []Criterion{
			goodCriterion("clarity", 8),
			goodCriterion("tone", 7),
		},
	}
	issues := Validate(m, twoCriterionContext())
	var missing, extra bool
	for _, issue := range issues {
		if strings.Contains(issue.Msg, "missing rubric ids: evidence") {
			missing = true
		}
		if strings.Contains(issue.Msg, "unknown rubric ids: tone") {
			extra = true
		}
	}
	if !missing || !extra {
		t.Errorf("Validate() = %v, want both missing and unknown id issues", Messages(issues))
	}
}

func TestValidate_BlankFieldsAndExampleCount(t *testing.T) {
	t.Parallel()

	c := goodCriterion("clarity", 5)
	c.AssignedLevel = "  "
	c.ImprovementSuggestion = ""
	c.Examples = []Example{{Excerpt: "one", Comment: ""}}

	m := &Model{
		OverallScore: TokenScore("5/20"),
		Summary:      "",
		Criteria:     []Criterion{c, goodCriterion("evidence", 0)},
	}
	issues := Validate(m, twoCriterionContext())

	wantLocs := []string{
		"summary",
		"criteria[0].assigned_level",
		"criteria[0].improvement_suggestion",
		"criteria[0].examples",
		"criteria[0].examples[0].comment",
	}
	got := make(map[string]bool)
	for _, issue := range issues {
		got[issue.Loc] = true
	}
	for _, loc := range wantLocs {
		if !got[loc] {
			t.Errorf("Validate() missing issue at %q, got %v", loc, Messages(issues))
		}
	}
}

func TestValidate_OverallSumMismatch(t *testing.T) {
	t.Parallel()

	m := &Model{
		OverallScore: TokenScore("17/20"),
		Summary:      "Totals disagree.",
		Criteria: []Criterion{
			goodCriterion("clarity", 8),
			goodCriterion("evidence", 9),
		},
		Overall: &Overall{PointsEarned: 16, PointsPossible: 20},
	}
	issues := Validate(m, twoCriterionContext())
	found := false
	for _, issue := range issues {
		if issue.Loc == "overall.points_earned" && strings.Contains(issue.Msg, "sum of all numeric") {
			found = true
		}
	}
	if !found {
		t.Errorf("Validate() = %v, want a sum mismatch issue", Messages(issues))
	}
}

func TestValidate_NonNumericScoresSkipSum(t *testing.T) {
	t.Parallel()

	c1 := goodCriterion("clarity", 0)
	c1.Score = TokenScore("meets")
	c2 := goodCriterion("evidence", 9)

	m := &Model{
		OverallScore: TokenScore("strong"),
		Summary:      "Mixed scale.",
		Criteria:     []Criterion{c1, c2},
		Overall:      &Overall{PointsEarned: 9, PointsPossible: 20},
	}
	for _, issue := range Validate(m, twoCriterionContext()) {
		if issue.Loc == "overall.points_earned" {
			t.Errorf("sum check fired despite non-numeric score: %v", issue)
		}
	}
}

func TestValidate_PointsPossibleMismatch(t *testing.T) {
	t.Parallel()

	m := &Model{
		OverallScore: TokenScore("17/20"),
		Summary:      "Wrong denominator.",
		Criteria: []Criterion{
			goodCriterion("clarity", 8),
			goodCriterion("evidence", 9),
		},
		Overall: &Overall{PointsEarned: 17, PointsPossible: 25},
	}
	issues := Validate(m, twoCriterionContext())
	found := false
	for _, issue := range issues {
		if issue.Loc == "overall.points_possible" {
			found = true
		}
	}
	if !found {
		t.Errorf("Validate() = %v, want a points_possible issue", Messages(issues))
	}
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"overall_score": "8/10", "summary": "ok", "criteria": [], "surprise": true}`)
	if _, err := Decode(raw); err == nil {
		t.Error("Decode() accepted an unknown top-level field")
	}
}

func TestDecode_ScoreShapes(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"overall_score": 17,
		"summary": "ok",
		"criteria": [
			{"id": "clarity", "assigned_level": "good", "score": 8.5, "examples": [], "improvement_suggestion": "x"},
			{"id": "evidence", "assigned_level": "good", "score": "B+", "examples": [], "improvement_suggestion": "x"}
		]
	}`)
	m, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() = %v", err)
	}
	if v, ok := m.Criteria[0].Score.Float(); !ok || v != 8.5 {
		t.Errorf("numeric score = %v, %v; want 8.5, true", v, ok)
	}
	if _, ok := m.Criteria[1].Score.Float(); ok {
		t.Error("token score reported a numeric value")
	}
	if got := m.Criteria[1].Score.Token(); got != "B+" {
		t.Errorf("token = %q, want B+", got)
	}
}

func TestTrim_CapsFreeText(t *testing.T) {
	t.Parallel()

	longWords := strings.Repeat("word ", 200)
	c := goodCriterion("clarity", 8)
	c.ImprovementSuggestion = longWords
	c.Examples[0].Excerpt = "line one\nline two\nline three\nline four\nline five"
	c.Examples[0].Comment = longWords

	m := &Model{
		OverallScore: NumericScore(8),
		Summary:      longWords,
		Criteria:     []Criterion{c},
	}
	got := Trim(m, DefaultLimits())

	if n := len(strings.Fields(got.Summary)); n != 80 {
		t.Errorf("summary trimmed to %d words, want 80", n)
	}
	if n := len(strings.Fields(got.Criteria[0].ImprovementSuggestion)); n != 120 {
		t.Errorf("improvement_suggestion trimmed to %d words, want 120", n)
	}
	if n := len(strings.Fields(got.Criteria[0].Examples[0].Comment)); n != 30 {
		t.Errorf("comment trimmed to %d words, want 30", n)
	}
	if got, want := got.Criteria[0].Examples[0].Excerpt, "line one\nline two\nline three"; got != want {
		t.Errorf("excerpt = %q, want %q", got, want)
	}

	// The original must be untouched.
	if n := len(strings.Fields(m.Summary)); n != 200 {
		t.Errorf("Trim mutated its input, summary now %d words", n)
	}
}

func TestTrim_ShortTextUnchanged(t *testing.T) {
	t.Parallel()

	m := &Model{
		OverallScore: NumericScore(17),
		Summary:      "Short and fine.",
		Criteria:     []Criterion{goodCriterion("clarity", 8)},
		Overall:      &Overall{PointsEarned: 8, PointsPossible: 10},
	}
	if diff := cmp.Diff(m, Trim(m, DefaultLimits()), cmp.AllowUnexported(Score{})); diff != "" {
		t.Errorf("Trim changed a payload within limits (-want +got):\n%s", diff)
	}
}
