/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    Role
	Content string
}

// Request is a provider-neutral chat completion request. When Schema is set,
// providers that support structured output constrain the response to it;
// providers that do not simply include the instructions already present in
// the prompt.
type Request struct {
	System     string
	Messages   []Message
	Schema     *jsonschema.Schema
	SchemaName string
	MaxTokens  int64
}

// Usage is the token accounting reported by the provider for one call.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

// Response is the completed text plus its usage.
type Response struct {
	Text  string
	Usage Usage
}

// Client issues chat completions against one configured model.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Model() string
}

// TransportError wraps a provider API failure with its HTTP status so the
// retry layer can distinguish rate limits and server errors from hard
// failures like bad credentials.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider error (status %d): %v", e.StatusCode, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether err is a transport error worth retrying:
// rate limits, overloaded upstreams, and transient server failures.
func Retryable(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	switch te.StatusCode {
	case 408, 429, 500, 502, 503, 504, 529:
		return true
	}
	return false
}
