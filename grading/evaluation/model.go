/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package evaluation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
)

// Score is a criterion score as produced by the model: either a plain number
// or a scale token such as "B+" or "meets". A numeric view is available when
// the token parses as a number.
type Score struct {
	token     string
	value     float64
	isNumeric bool
	asString  bool
}

// NumericScore builds a numeric Score, mostly for tests and synthetic payloads.
func NumericScore(v float64) Score {
	return Score{token: formatNumber(v), value: v, isNumeric: true}
}

// TokenScore builds a non-numeric scale token Score.
func TokenScore(token string) Score {
	s := Score{token: strings.TrimSpace(token), asString: true}
	if v, err := strconv.ParseFloat(s.token, 64); err == nil {
		s.value = v
		s.isNumeric = true
	}
	return s
}

// Float returns the numeric value and whether one is available. Numeric
// strings like "7" count as numeric, matching how totals are summed.
func (s Score) Float() (float64, bool) {
	return s.value, s.isNumeric
}

// Token returns the normalized textual form of the score.
func (s Score) Token() string {
	return s.token
}

func (s *Score) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*s = Score{token: formatNumber(n), value: n, isNumeric: true}
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("score must be a number or a string")
	}
	*s = TokenScore(str)
	return nil
}

func (s Score) MarshalJSON() ([]byte, error) {
	if s.isNumeric && !s.asString {
		return json.Marshal(s.value)
	}
	return json.Marshal(s.token)
}

// JSONSchema declares the wire shape for reflection: a number or a string.
func (Score) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "number"},
			{Type: "string"},
		},
		Description: "Criterion score, either a number or a scale label",
	}
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Example is one concrete excerpt from the essay with a comment on it.
type Example struct {
	Excerpt string `json:"excerpt"`
	Comment string `json:"comment"`
}

// Overall is the numeric points breakdown for the whole essay.
type Overall struct {
	PointsEarned   int `json:"points_earned"`
	PointsPossible int `json:"points_possible"`
}

// Criterion is the model's feedback for a single rubric criterion.
type Criterion struct {
	ID                    string    `json:"id"`
	Criterion             string    `json:"criterion,omitempty"`
	Description           string    `json:"description,omitempty"`
	AssignedLevel         string    `json:"assigned_level"`
	Score                 Score     `json:"score"`
	Examples              []Example `json:"examples"`
	ImprovementSuggestion string    `json:"improvement_suggestion"`
}

// Model is the complete evaluation payload for one essay.
type Model struct {
	OverallScore Score       `json:"overall_score"`
	Summary      string      `json:"summary"`
	Criteria     []Criterion `json:"criteria"`
	Overall      *Overall    `json:"overall,omitempty"`
}

// Decode strictly parses raw JSON into a Model. Unknown fields are rejected
// so the retry loop can push the model back toward the declared schema.
func Decode(raw []byte) (*Model, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var m Model
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding evaluation payload: %w", err)
	}
	return &m, nil
}
