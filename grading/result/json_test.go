/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{{
		name: "fenced block with surrounding prose",
		input: `Here is the evaluation:

` + "```json" + `
{"overall_score": "17/20"}
` + "```" + `

Let me know if anything is unclear.`,
		expected: `{"overall_score": "17/20"}`,
	}, {
		name: "multi-line fenced block",
		input: "```json\n" + `{
  "summary": "Strong essay",
  "criteria": []
}` + "\n```",
		expected: `{
  "summary": "Strong essay",
  "criteria": []
}`,
	}, {
		name:     "empty fenced block",
		input:    "```json\n```",
		expected: "",
	}, {
		name:     "plain json passthrough",
		input:    `  {"plain": true}  `,
		expected: `{"plain": true}`,
	}, {
		name:     "unclosed fence keeps body",
		input:    "```json\n{\"incomplete\": true",
		expected: `{"incomplete": true`,
	}, {
		name:     "first of multiple blocks wins",
		input:    "```json\n{\"first\": true}\n```\n\n```json\n{\"second\": true}\n```",
		expected: `{"first": true}`,
	}, {
		name:     "generic fence without json marker",
		input:    "```\n{\"generic\": true}\n```",
		expected: `{"generic": true}`,
	}, {
		name:     "inline fence",
		input:    "```json{\"inline\": true}```",
		expected: `{"inline": true}`,
	}, {
		name:     "windows line endings fall through to trim",
		input:    "```json\r\n{\"windows\": true}\r\n```",
		expected: `{"windows": true}`,
	}, {
		name:     "empty input",
		input:    "",
		expected: "",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.input); got != tt.expected {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestExtractJSON_NoPanicOnGarbage(t *testing.T) {
	inputs := []string{
		"```json",
		"```",
		"``````",
		"```json```json```",
		"```json" + strings.Repeat("\n", 500) + "```",
		"```json\x00\x01```",
	}
	for _, input := range inputs {
		_ = ExtractJSON(input)
	}
}

func TestExtract(t *testing.T) {
	type payload struct {
		Summary string `json:"summary"`
		Count   int    `json:"count"`
	}

	t.Run("fenced struct", func(t *testing.T) {
		got, err := Extract[payload]("```json\n{\"summary\": \"ok\", \"count\": 2}\n```")
		if err != nil {
			t.Fatalf("Extract() = %v", err)
		}
		if want := (payload{Summary: "ok", Count: 2}); !reflect.DeepEqual(got, want) {
			t.Errorf("Extract() = %+v, want %+v", got, want)
		}
	})

	t.Run("empty fence is an error", func(t *testing.T) {
		if _, err := Extract[payload]("```json\n```"); err == nil {
			t.Error("Extract() accepted an empty fence")
		}
	})

	t.Run("prose without json is an error", func(t *testing.T) {
		if _, err := Extract[payload]("no structured content here"); err == nil {
			t.Error("Extract() accepted prose")
		}
	})
}
