/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package grader

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/gradeflow/completion"
	"chainguard.dev/gradeflow/grading/evaluation"
	"chainguard.dev/gradeflow/grading/result"
	"chainguard.dev/gradeflow/grading/rubric"
	"chainguard.dev/gradeflow/grading/schema"
	"chainguard.dev/gradeflow/metrics"
	"github.com/chainguard-dev/clog"
)

// Status classifies how an evaluation concluded.
type Status string

const (
	// StatusOK means the first response passed validation.
	StatusOK Status = "ok"
	// StatusRetryOK means a corrective retry produced a valid response.
	StatusRetryOK Status = "retry_ok"
	// StatusSchemaFail means every attempt failed validation.
	StatusSchemaFail Status = "schema_fail"
)

// Config controls the evaluation loop.
type Config struct {
	// RetryBudget is the number of corrective retries after the first
	// attempt. Forced to 0 when StructuredOutput is off, since without a
	// schema-constrained response corrective retries rarely converge.
	RetryBudget int
	// StructuredOutput requests a schema-constrained response from the
	// provider.
	StructuredOutput bool
	// MaxTokens caps the response size per call. 0 uses the client default.
	MaxTokens int64
	// Limits trims free-text fields before the evaluation is returned.
	Limits evaluation.Limits
}

// DefaultConfig returns the standard evaluation loop settings.
func DefaultConfig() Config {
	return Config{
		RetryBudget:      1,
		StructuredOutput: true,
		Limits:           evaluation.DefaultLimits(),
	}
}

// Outcome is the terminal result of evaluating one essay.
type Outcome struct {
	Status     Status
	Evaluation *evaluation.Model
	// Raw is the last response text, kept for failure artifacts.
	Raw string
	// Issues holds the last validation problems. Empty unless the status
	// is StatusSchemaFail.
	Issues []string
	// Retries is how many corrective retries were spent.
	Retries int
	// Usage is the token usage accumulated across all attempts.
	Usage completion.Usage
}

// Evaluator grades essays against a canonical rubric.
type Evaluator struct {
	client       completion.Client
	cfg          Config
	genaiMetrics *metrics.GenAI
}

// New constructs an Evaluator on top of a completion client.
func New(client completion.Client, cfg Config) (*Evaluator, error) {
	if client == nil {
		return nil, errors.New("completion client cannot be nil")
	}
	if cfg.RetryBudget < 0 {
		return nil, fmt.Errorf("retry budget cannot be negative, got %d", cfg.RetryBudget)
	}
	if !cfg.StructuredOutput {
		cfg.RetryBudget = 0
	}
	return &Evaluator{
		client:       client,
		cfg:          cfg,
		genaiMetrics: metrics.NewGenAI("gradeflow.grading"),
	}, nil
}

// Evaluate runs the full loop for one essay: prompt, validate, and retry
// with corrective feedback until the response passes or the budget runs out.
// A returned error means no evaluation could be attempted at all, typically
// a transport failure; validation failures end in a StatusSchemaFail outcome
// instead.
func (e *Evaluator) Evaluate(ctx context.Context, rub *rubric.Model, essayText string) (*Outcome, error) {
	log := clog.FromContext(ctx).With("model", e.client.Model())

	userPrompt, err := buildUserPrompt(rub, essayText)
	if err != nil {
		return nil, err
	}

	req := completion.Request{
		System:    systemPrompt,
		Messages:  []completion.Message{{Role: completion.RoleUser, Content: userPrompt}},
		MaxTokens: e.cfg.MaxTokens,
	}
	if e.cfg.StructuredOutput {
		req.Schema = schema.ReflectType[evaluation.Model]()
		req.SchemaName = "essay_evaluation"
	}

	rubricCtx := rub.Context()
	outcome := &Outcome{}

	for attempt := 0; attempt <= e.cfg.RetryBudget; attempt++ {
		resp, err := e.client.Complete(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("completion attempt %d: %w", attempt+1, err)
		}
		outcome.Raw = resp.Text
		outcome.Usage.PromptTokens += resp.Usage.PromptTokens
		outcome.Usage.CompletionTokens += resp.Usage.CompletionTokens

		issues := checkResponse(resp.Text, rubricCtx, &outcome.Evaluation)
		if len(issues) == 0 {
			outcome.Status = StatusOK
			if attempt > 0 {
				outcome.Status = StatusRetryOK
			}
			outcome.Retries = attempt
			outcome.Evaluation = evaluation.Trim(outcome.Evaluation, e.cfg.Limits)
			return outcome, nil
		}

		outcome.Issues = issues
		if attempt >= e.cfg.RetryBudget {
			break
		}

		log.With("attempt", attempt+1).With("issues", len(issues)).
			Warn("Evaluation failed validation, retrying with feedback")
		e.genaiMetrics.RecordValidationRetry(ctx, e.client.Model())

		req.Messages = append(req.Messages,
			completion.Message{Role: completion.RoleAssistant, Content: resp.Text},
			completion.Message{Role: completion.RoleUser, Content: buildCorrection(issues)},
		)
	}

	outcome.Status = StatusSchemaFail
	outcome.Retries = e.cfg.RetryBudget
	outcome.Evaluation = nil
	return outcome, nil
}

// checkResponse decodes and validates one response, storing the decoded
// payload through out when it parses. The returned issues are empty only
// when the payload is fully valid.
func checkResponse(text string, rubricCtx rubric.Context, out **evaluation.Model) []string {
	payload, err := evaluation.Decode([]byte(result.ExtractJSON(text)))
	if err != nil {
		return []string{err.Error()}
	}
	*out = payload
	return evaluation.Messages(evaluation.Validate(payload, rubricCtx))
}

func buildUserPrompt(rub *rubric.Model, essayText string) (string, error) {
	p, err := userTemplate.BindJSON("rubric", rub)
	if err != nil {
		return "", err
	}
	p, err = p.BindText("essay", essayText)
	if err != nil {
		return "", err
	}
	return p.Build()
}
