/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudechat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainguard.dev/gradeflow/completion"
	"chainguard.dev/gradeflow/completion/retry"
	"chainguard.dev/gradeflow/metrics"
	"github.com/anthropics/anthropic-sdk-go"
)

// Client issues completions against one Claude model.
type Client struct {
	api          anthropic.Client
	model        string
	maxTokens    int64
	timeout      time.Duration
	retryConfig  retry.Config
	genaiMetrics *metrics.GenAI
}

// Option is a functional option for configuring the client.
type Option func(*Client) error

// WithMaxTokens sets the default response token cap.
func WithMaxTokens(tokens int64) Option {
	return func(c *Client) error {
		if tokens <= 0 {
			return fmt.Errorf("max tokens must be positive, got %d", tokens)
		}
		c.maxTokens = tokens
		return nil
	}
}

// WithTimeout bounds each API call, retries included, with a deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return errors.New("timeout cannot be negative")
		}
		c.timeout = d
		return nil
	}
}

// WithRetryConfig sets the backoff configuration for transient API errors.
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Client) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.retryConfig = cfg
		return nil
	}
}

// WithAttributeEnricher sets a custom attribute enricher for metrics.
func WithAttributeEnricher(enricher metrics.AttributeEnricher) Option {
	return func(c *Client) error {
		c.genaiMetrics.SetAttributeEnricher(enricher)
		return nil
	}
}

// New creates a client for the given Claude model.
func New(api anthropic.Client, model string, opts ...Option) (*Client, error) {
	if !strings.HasPrefix(strings.ToLower(model), "claude-") {
		return nil, fmt.Errorf("model %q does not appear to be a Claude model (expected claude-* format)", model)
	}

	c := &Client{
		api:          api,
		model:        model,
		maxTokens:    8192,
		timeout:      2 * time.Minute,
		retryConfig:  retry.DefaultConfig(),
		genaiMetrics: metrics.NewGenAI("gradeflow.completion"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete sends the conversation to the Messages API and returns the
// concatenated text blocks of the reply.
func (c *Client) Complete(ctx context.Context, req completion.Request) (*completion.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = req.MaxTokens
	}

	system := req.System
	if req.Schema != nil {
		instr, err := schemaInstruction(req)
		if err != nil {
			return nil, err
		}
		system = strings.TrimSpace(system + "\n\n" + instr)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case completion.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	msg, err := retry.Do(ctx, c.retryConfig, "claude_completion", completion.Retryable, func() (*anthropic.Message, error) {
		out, err := c.api.Messages.New(ctx, params)
		if err != nil {
			return nil, classify(err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	usage := completion.Usage{
		PromptTokens:     msg.Usage.InputTokens,
		CompletionTokens: msg.Usage.OutputTokens,
	}
	c.genaiMetrics.RecordTokens(ctx, c.model, usage.PromptTokens, usage.CompletionTokens)

	return &completion.Response{Text: text.String(), Usage: usage}, nil
}

// schemaInstruction renders the schema constraint appended to the system
// prompt for models without native structured output.
func schemaInstruction(req completion.Request) (string, error) {
	raw, err := json.Marshal(req.Schema)
	if err != nil {
		return "", fmt.Errorf("marshaling response schema: %w", err)
	}
	name := req.SchemaName
	if name == "" {
		name = "response"
	}
	return fmt.Sprintf("Respond with a single JSON object named %q conforming exactly to this JSON schema, with no surrounding prose or markdown fences:\n%s", name, raw), nil
}

// classify wraps Anthropic API errors with their status code so the shared
// retry predicate can classify them.
func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &completion.TransportError{StatusCode: apiErr.StatusCode, Err: err}
	}
	return err
}
