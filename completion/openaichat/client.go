/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package openaichat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chainguard.dev/gradeflow/completion"
	"chainguard.dev/gradeflow/completion/retry"
	"chainguard.dev/gradeflow/metrics"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// Client issues completions against one OpenAI (or compatible) chat model.
type Client struct {
	api          openai.Client
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

// New creates a client for the given model name.
func New(api openai.Client, model string, opts ...Option) (*Client, error) {
	if model == "" {
		return nil, errors.New("model cannot be empty")
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

// Complete sends the conversation to the Chat Completions API.
func (c *Client) Complete(ctx context.Context, req completion.Request) (*completion.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case completion.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: msgs,
	}
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	params.MaxCompletionTokens = openai.Int(maxTokens)

	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	out, err := retry.Do(ctx, c.retryConfig, "openai_completion", completion.Retryable, func() (*openai.ChatCompletion, error) {
		resp, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, classify(err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("completion returned no choices")
	}

	usage := completion.Usage{
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}
	c.genaiMetrics.RecordTokens(ctx, c.model, usage.PromptTokens, usage.CompletionTokens)

	return &completion.Response{Text: out.Choices[0].Message.Content, Usage: usage}, nil
}

// classify wraps OpenAI API errors with their status code so the shared
// retry predicate can classify them.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &completion.TransportError{StatusCode: apiErr.StatusCode, Err: err}
	}
	return err
}
