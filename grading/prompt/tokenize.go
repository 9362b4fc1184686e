/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package prompt

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// walkTemplate scans for {{name}} placeholders and calls resolve for each,
// splicing the returned text into the output.
func walkTemplate(template string, resolve func(name string) (string, error)) (string, error) {
	var out strings.Builder
	for {
		start := strings.Index(template, "{{")
		if start == -1 {
			out.WriteString(template)
			return out.String(), nil
		}
		out.WriteString(template[:start])

		end := strings.Index(template[start:], "}}")
		if end == -1 {
			return "", errors.New("unclosed placeholder: missing '}}'")
		}
		end += start + 2

		name := strings.TrimSpace(template[start+2 : end-2])
		if !validIdentifier(name) {
			return "", fmt.Errorf("invalid placeholder identifier %q", name)
		}
		replacement, err := resolve(name)
		if err != nil {
			return "", err
		}
		out.WriteString(replacement)
		template = template[end:]
	}
}

// validIdentifier reports whether s starts with a letter and contains only
// letters, digits, and underscores.
func validIdentifier(s string) bool {
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return s != ""
}
