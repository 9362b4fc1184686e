/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudechat

import (
	"errors"
	"strings"
	"testing"
	"time"

	"chainguard.dev/gradeflow/completion"
	"chainguard.dev/gradeflow/grading/evaluation"
	"chainguard.dev/gradeflow/grading/schema"
	"github.com/anthropics/anthropic-sdk-go"
)

func TestNew_RejectsNonClaudeModel(t *testing.T) {
	t.Parallel()

	if _, err := New(anthropic.Client{}, "gpt-4o"); err == nil {
		t.Error("New() accepted a non-Claude model")
	}
}

func TestNew_OptionErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opt  Option
	}{
		{"zero max tokens", WithMaxTokens(0)},
		{"negative timeout", WithTimeout(-time.Second)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(anthropic.Client{}, "claude-sonnet-4-5", tt.opt); err == nil {
				t.Error("New() accepted an invalid option")
			}
		})
	}
}

func TestSchemaInstruction(t *testing.T) {
	t.Parallel()

	req := completion.Request{
		Schema:     schema.ReflectType[evaluation.Model](),
		SchemaName: "essay_evaluation",
	}
	got, err := schemaInstruction(req)
	if err != nil {
		t.Fatalf("schemaInstruction() = %v", err)
	}
	for _, want := range []string{"essay_evaluation", "overall_score", "JSON schema"} {
		if !strings.Contains(got, want) {
			t.Errorf("schemaInstruction() missing %q:\n%s", want, got)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	apiErr := &anthropic.Error{StatusCode: 529}
	wrapped := classify(apiErr)
	if !completion.Retryable(wrapped) {
		t.Errorf("classify(%v) not retryable", apiErr)
	}

	plain := errors.New("dial tcp: connection refused")
	if completion.Retryable(classify(plain)) {
		t.Error("classify passed a plain error as retryable")
	}
}
