/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package rubric

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// idPattern is the canonical criterion id form.
var idPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// floatTolerance bounds all floating comparisons during canonicalization.
const floatTolerance = 1e-6

// Config holds the runtime settings that influence canonicalization.
type Config struct {
	// IDMaxLength caps the length of canonical criterion ids.
	IDMaxLength int
	// RequireTotalsEqual treats a declared total that disagrees with the
	// computed sum as an error. When false the declared total is overwritten
	// to match the sum and a warning is recorded instead.
	RequireTotalsEqual bool
}

// DefaultConfig returns the canonicalization defaults.
func DefaultConfig() Config {
	return Config{
		IDMaxLength:        40,
		RequireTotalsEqual: true,
	}
}

// Issue is a structured validation problem pointing at a rubric field.
type Issue struct {
	Loc string `json:"loc"`
	Msg string `json:"msg"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Loc, i.Msg)
}

// Result is the outcome of transforming an arbitrary payload into canonical
// form. Canonical is nil whenever Issues is non-empty.
type Result struct {
	// Canonical is the validated rubric, nil if validation failed.
	Canonical *Model
	// Normalized is the payload after any heuristic conversion, kept so a
	// corrective UI can show the user what was attempted.
	Normalized map[string]any
	// Issues are the remaining validation problems.
	Issues []Issue
	// Warnings describe heuristic adjustments that were applied.
	Warnings []string
	// Converted reports whether any heuristic transformation was applied.
	Converted bool
}

// Valid reports whether the payload canonicalized cleanly.
func (r *Result) Valid() bool {
	return r.Canonical != nil && len(r.Issues) == 0
}

// Messages flattens the issues into "loc: msg" strings.
func (r *Result) Messages() []string {
	msgs := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		msgs = append(msgs, issue.String())
	}
	return msgs
}

// Canonicalize returns a canonical rubric or the list of remaining issues.
//
// The algorithm is two-pass: strict validation of the payload as-is, then a
// bounded set of structural heuristics tolerant of legacy shapes, then strict
// validation again. Heuristics operate on a deep copy; the input is never
// mutated, which keeps the two-pass structure auditable.
func Canonicalize(payload any, cfg Config) Result {
	root, ok := ensureMap(payload)
	if !ok {
		msg := "Rubric must be a JSON object"
		return Result{
			Issues: []Issue{{Loc: "__root__", Msg: msg}},
		}
	}

	strict := validateCanonical(deepCopyMap(root), cfg)
	if strict.Valid() {
		return strict
	}

	converted, changed, warnings := autoConvert(root, cfg)
	if changed {
		res := validateCanonical(converted, cfg)
		res.Converted = true
		res.Warnings = append(warnings, res.Warnings...)
		return res
	}

	strict.Warnings = append(strict.Warnings, warnings...)
	return strict
}

// validateCanonical validates a payload against the canonical schema and, on
// success, fills in a missing overall_points_possible from the computed sum.
func validateCanonical(payload map[string]any, cfg Config) Result {
	var issues []Issue

	for _, key := range sortedKeys(payload) {
		switch key {
		case "criteria", "overall_points_possible":
		default:
			issues = append(issues, Issue{Loc: key, Msg: "unexpected field"})
		}
	}

	rawCriteria, ok := payload["criteria"].([]any)
	if !ok || len(rawCriteria) == 0 {
		issues = append(issues, Issue{Loc: "criteria", Msg: "Rubric must include at least one criterion"})
		return Result{Normalized: payload, Issues: issues}
	}

	criteria := make([]Criterion, 0, len(rawCriteria))
	for i, raw := range rawCriteria {
		item, ok := raw.(map[string]any)
		if !ok {
			issues = append(issues, Issue{Loc: fmt.Sprintf("criteria[%d]", i), Msg: "criterion must be an object"})
			continue
		}
		criterion, itemIssues := validateCriterion(item, i)
		issues = append(issues, itemIssues...)
		criteria = append(criteria, criterion)
	}

	issues = append(issues, validateIDs(criteria, cfg)...)

	sum := 0
	for _, c := range criteria {
		sum += c.MaxScore
	}

	overall, overallIssue := intField(payload, "overall_points_possible")
	if overallIssue != nil {
		issues = append(issues, *overallIssue)
	}
	declared := payload["overall_points_possible"] != nil && overallIssue == nil
	switch {
	case !declared:
		overall = sum
	case overall <= 0:
		issues = append(issues, Issue{
			Loc: "overall_points_possible",
			Msg: "overall_points_possible must be a positive integer",
		})
	case cfg.RequireTotalsEqual && overall != sum:
		issues = append(issues, Issue{
			Loc: "overall_points_possible",
			Msg: "Sum of criterion max_score values must equal overall_points_possible",
		})
	}

	model := &Model{Criteria: criteria, OverallPointsPossible: overall}
	normalized := dumpModel(model)
	if len(issues) > 0 {
		return Result{Normalized: normalized, Issues: issues}
	}
	return Result{Canonical: model, Normalized: normalized}
}

func validateCriterion(item map[string]any, index int) (Criterion, []Issue) {
	var issues []Issue
	loc := func(field string) string { return fmt.Sprintf("criteria[%d].%s", index, field) }

	for _, key := range sortedKeys(item) {
		switch key {
		case "id", "max_score", "name", "descriptors":
		default:
			issues = append(issues, Issue{Loc: loc(key), Msg: "unexpected field"})
		}
	}

	var c Criterion
	if id, ok := item["id"].(string); ok {
		c.ID = strings.TrimSpace(id)
	}

	score, scoreIssue := intField(item, "max_score")
	if scoreIssue != nil {
		issues = append(issues, Issue{Loc: loc("max_score"), Msg: scoreIssue.Msg})
	} else if score <= 0 {
		issues = append(issues, Issue{Loc: loc("max_score"), Msg: "max_score must be a positive integer"})
	}
	c.MaxScore = score

	if name, ok := item["name"].(string); ok {
		c.Name = name
	} else if _, present := item["name"]; present {
		issues = append(issues, Issue{Loc: loc("name"), Msg: "name must be a string"})
	}

	if rawDescriptors, present := item["descriptors"]; present {
		descriptors, ok := rawDescriptors.(map[string]any)
		if !ok {
			issues = append(issues, Issue{Loc: loc("descriptors"), Msg: "descriptors must be an object"})
		} else {
			c.Descriptors = make(map[string]string, len(descriptors))
			for token, value := range descriptors {
				text, ok := value.(string)
				if !ok {
					issues = append(issues, Issue{Loc: loc("descriptors." + token), Msg: "descriptor must be a string"})
					continue
				}
				c.Descriptors[token] = text
			}
		}
	}

	return c, issues
}

// validateIDs enforces the snake_case, length, and uniqueness rules.
func validateIDs(criteria []Criterion, cfg Config) []Issue {
	var issues []Issue
	seen := make(map[string]int, len(criteria))
	for i, c := range criteria {
		loc := fmt.Sprintf("criteria[%d].id", i)
		if c.ID == "" {
			issues = append(issues, Issue{Loc: loc, Msg: "Criterion id must not be blank"})
			continue
		}
		seen[c.ID]++
		if !idPattern.MatchString(c.ID) {
			issues = append(issues, Issue{Loc: loc, Msg: "Criterion id must be snake_case (a-z, 0-9, underscore)"})
		}
		if len(c.ID) > cfg.IDMaxLength {
			issues = append(issues, Issue{Loc: loc, Msg: fmt.Sprintf("Criterion id must be at most %d characters", cfg.IDMaxLength)})
		}
	}
	for _, id := range sortedCountKeys(seen) {
		if seen[id] > 1 {
			issues = append(issues, Issue{Loc: "criteria[].id", Msg: fmt.Sprintf("Duplicate id detected: %s", id)})
		}
	}
	return issues
}

// autoConvert applies the heuristic conversions for legacy rubric shapes to a
// deep copy of the payload. It reports whether anything changed.
func autoConvert(payload map[string]any, cfg Config) (map[string]any, bool, []string) {
	working := deepCopyMap(payload)
	changed := false
	var warnings []string

	if nested, ok := working["rubric"].(map[string]any); ok {
		working = deepCopyMap(nested)
		changed = true
	}

	if total, present := working["total_points"]; present {
		if _, declared := working["overall_points_possible"]; !declared {
			working["overall_points_possible"] = total
			changed = true
		}
		delete(working, "total_points")
	}

	criteria, ok := working["criteria"].([]any)
	if !ok {
		return working, changed, warnings
	}

	taken := make(map[string]int)
	for i, raw := range criteria {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		identifier, _ := item["id"].(string)
		name, _ := item["name"].(string)
		base := name
		if base == "" {
			base = identifier
		}
		if base == "" {
			base = fmt.Sprintf("criterion_%d", i+1)
		}

		if identifier == "" {
			item["id"] = dedupeID(slugify(base, cfg.IDMaxLength), taken)
			changed = true
		} else {
			slug := dedupeID(slugify(identifier, cfg.IDMaxLength), taken)
			if slug != identifier {
				item["id"] = slug
				changed = true
			}
		}
		taken[item["id"].(string)]++

		if !isIntegral(item["max_score"]) {
			if max, ok := extractMaxScore(item["levels"]); ok {
				item["max_score"] = float64(max)
				changed = true
			}
		}

		if _, present := item["descriptors"]; !present {
			if descriptors := levelsToDescriptors(item["levels"]); len(descriptors) > 0 {
				item["descriptors"] = descriptors
				changed = true
			}
		}
	}

	if sum, ok := safeSum(criteria); ok {
		overall, declared := numeric(working["overall_points_possible"])
		switch {
		case !declared:
			working["overall_points_possible"] = sum
			changed = true
		case math.Abs(overall-sum) > floatTolerance && !cfg.RequireTotalsEqual:
			working["overall_points_possible"] = sum
			changed = true
			warnings = append(warnings, "Adjusted overall_points_possible to match the sum of criterion max_score values")
		}
	}

	if _, present := working["levels"]; present {
		delete(working, "levels")
		changed = true
	}
	for _, raw := range criteria {
		if item, ok := raw.(map[string]any); ok {
			if _, present := item["levels"]; present {
				delete(item, "levels")
				changed = true
			}
		}
	}

	return working, changed, warnings
}

// slugify lowercases the value and collapses every non-alphanumeric run into
// a single underscore, capped at maxLength.
func slugify(value string, maxLength int) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	cleaned := strings.Trim(b.String(), "_")
	if cleaned == "" {
		cleaned = "criterion"
	}
	if len(cleaned) > maxLength {
		cleaned = cleaned[:maxLength]
	}
	return cleaned
}

// dedupeID disambiguates id collisions with a numeric suffix.
func dedupeID(id string, taken map[string]int) string {
	if taken[id] == 0 {
		return id
	}
	counter := taken[id]
	for {
		candidate := fmt.Sprintf("%s_%d", id, counter+1)
		if taken[candidate] == 0 {
			taken[id] = counter + 1
			return candidate
		}
		counter++
	}
}

// extractMaxScore derives a max score from the highest numeric score among
// declared performance levels.
func extractMaxScore(levels any) (int, bool) {
	entries, ok := levels.([]any)
	if !ok {
		return 0, false
	}
	found := false
	max := 0
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if score, ok := numeric(entry["score"]); ok {
			if int(score) > max || !found {
				max = int(score)
			}
			found = true
		}
	}
	return max, found
}

// levelsToDescriptors derives a score-token to description map from levels.
func levelsToDescriptors(levels any) map[string]any {
	entries, ok := levels.([]any)
	if !ok {
		return nil
	}
	descriptors := make(map[string]any)
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		score, ok := numeric(entry["score"])
		if !ok {
			continue
		}
		description, _ := entry["description"].(string)
		if description == "" {
			description, _ = entry["text"].(string)
		}
		description = strings.TrimSpace(description)
		if description != "" {
			descriptors[fmt.Sprintf("%d", int(score))] = description
		}
	}
	return descriptors
}

// safeSum returns the sum of max_score values, or false when any criterion
// is missing a numeric max_score.
func safeSum(criteria []any) (float64, bool) {
	if len(criteria) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, raw := range criteria {
		item, ok := raw.(map[string]any)
		if !ok {
			return 0, false
		}
		value, ok := numeric(item["max_score"])
		if !ok {
			return 0, false
		}
		sum += value
	}
	return sum, true
}

func ensureMap(payload any) (map[string]any, bool) {
	m, ok := payload.(map[string]any)
	if !ok || m == nil {
		return nil, false
	}
	return m, true
}

// deepCopyMap copies a JSON-shaped map through a marshal round trip.
func deepCopyMap(m map[string]any) map[string]any {
	data, err := json.Marshal(m)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// dumpModel produces the canonical JSON shape as a generic map.
func dumpModel(m *Model) map[string]any {
	criteria := make([]any, 0, len(m.Criteria))
	for _, c := range m.Criteria {
		item := map[string]any{
			"id":        c.ID,
			"max_score": float64(c.MaxScore),
		}
		if c.Name != "" {
			item["name"] = c.Name
		}
		if len(c.Descriptors) > 0 {
			descriptors := make(map[string]any, len(c.Descriptors))
			for token, text := range c.Descriptors {
				descriptors[token] = text
			}
			item["descriptors"] = descriptors
		}
		criteria = append(criteria, item)
	}
	return map[string]any{
		"criteria":                criteria,
		"overall_points_possible": float64(m.OverallPointsPossible),
	}
}

// intField reads an integral numeric field from a JSON-shaped map. A missing
// field returns zero with no issue; a non-integral value is an issue.
func intField(m map[string]any, key string) (int, *Issue) {
	raw, present := m[key]
	if !present || raw == nil {
		return 0, nil
	}
	value, ok := numeric(raw)
	if !ok || value != math.Trunc(value) {
		return 0, &Issue{Loc: key, Msg: "value must be an integer"}
	}
	return int(value), nil
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func isIntegral(v any) bool {
	n, ok := numeric(v)
	return ok && n == math.Trunc(n)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedCountKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
