/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls the JSON body out of a completion that may wrap it in
// markdown code fences. A ```json fence on its own line wins; failing that,
// whole-response fences are stripped; otherwise the trimmed input is returned.
func ExtractJSON(responseText string) string {
	if body, ok := fencedBlock(responseText); ok {
		return body
	}

	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	return strings.TrimSpace(responseText)
}

// fencedBlock returns the content of the first ```json fence, if any. An
// empty fence returns ("", true) so the caller surfaces it as a decode error
// rather than silently falling through to the raw text.
func fencedBlock(text string) (string, bool) {
	var body []string
	open := false
	for _, line := range strings.Split(text, "\n") {
		switch {
		case !open && line == "```json":
			open = true
		case open && line == "```":
			return strings.TrimSpace(strings.Join(body, "\n")), true
		case open:
			body = append(body, line)
		}
	}
	if open {
		return strings.TrimSpace(strings.Join(body, "\n")), true
	}
	return "", false
}

// Extract combines ExtractJSON with unmarshaling into T.
func Extract[T any](responseText string) (T, error) {
	var out T
	if err := json.Unmarshal([]byte(ExtractJSON(responseText)), &out); err != nil {
		return out, err
	}
	return out, nil
}
