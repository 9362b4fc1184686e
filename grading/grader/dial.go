/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package grader

import (
	"fmt"
	"strings"
	"time"

	"chainguard.dev/gradeflow/completion"
	"chainguard.dev/gradeflow/completion/claudechat"
	"chainguard.dev/gradeflow/completion/openaichat"
	"chainguard.dev/gradeflow/completion/retry"
	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
)

// DialConfig holds provider connection settings.
type DialConfig struct {
	// Model selects the provider by prefix: claude-* models use Anthropic;
	// everything else goes to the OpenAI-compatible endpoint.
	Model string
	// APIKey authenticates against the selected provider.
	APIKey string
	// BaseURL overrides the provider endpoint, for OpenAI-compatible
	// gateways and test servers.
	BaseURL string
	// MaxTokens caps response size per call. 0 uses the provider default.
	MaxTokens int64
	// Timeout bounds each call, transport retries included.
	Timeout time.Duration
	// Retry configures transport-level backoff.
	Retry retry.Config
}

// Dial builds the completion client for the configured model.
func Dial(cfg DialConfig) (completion.Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}

	if strings.HasPrefix(strings.ToLower(cfg.Model), "claude-") {
		reqOpts := []anthropicoption.RequestOption{}
		if cfg.APIKey != "" {
			reqOpts = append(reqOpts, anthropicoption.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			reqOpts = append(reqOpts, anthropicoption.WithBaseURL(cfg.BaseURL))
		}
		return claudechat.New(anthropic.NewClient(reqOpts...), cfg.Model, clientOptions[claudechat.Option](cfg,
			claudechat.WithMaxTokens, claudechat.WithTimeout, claudechat.WithRetryConfig)...)
	}

	reqOpts := []openaioption.RequestOption{}
	if cfg.APIKey != "" {
		reqOpts = append(reqOpts, openaioption.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, openaioption.WithBaseURL(cfg.BaseURL))
	}
	return openaichat.New(openai.NewClient(reqOpts...), cfg.Model, clientOptions[openaichat.Option](cfg,
		openaichat.WithMaxTokens, openaichat.WithTimeout, openaichat.WithRetryConfig)...)
}

// clientOptions translates the shared dial settings into a provider's
// functional options, skipping unset values.
func clientOptions[O any](cfg DialConfig,
	withMaxTokens func(int64) O,
	withTimeout func(time.Duration) O,
	withRetry func(retry.Config) O,
) []O {
	var opts []O
	if cfg.MaxTokens > 0 {
		opts = append(opts, withMaxTokens(cfg.MaxTokens))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, withTimeout(cfg.Timeout))
	}
	if cfg.Retry != (retry.Config{}) {
		opts = append(opts, withRetry(cfg.Retry))
	}
	return opts
}
