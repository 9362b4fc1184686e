/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package batch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds the grading job settings. Values come from the environment,
// optionally overridden by a YAML file for settings teachers tune per course.
type Config struct {
	// Model selects the provider by prefix (claude-* vs everything else).
	Model string `env:"AI_MODEL, default=gpt-4o-mini"`
	// APIKey authenticates against the provider.
	APIKey string `env:"AI_API_KEY"`
	// BaseURL overrides the provider endpoint for compatible gateways.
	BaseURL string `env:"AI_BASE_URL"`
	// TimeoutSeconds bounds each model call, transport retries included.
	TimeoutSeconds int `env:"AI_TIMEOUT_SECONDS, default=60"`
	// MaxTokens caps the response size per call.
	MaxTokens int64 `env:"AI_MAX_TOKENS, default=8192"`

	// ValidationRetry is the corrective retry budget after a response fails
	// schema or rubric validation.
	ValidationRetry int `env:"VALIDATION_RETRY, default=1"`
	// StructuredOutput requests schema-constrained responses.
	StructuredOutput bool `env:"STRUCTURED_OUTPUT, default=true"`

	// MinTextChars is the minimum extracted characters per essay.
	MinTextChars int `env:"MIN_TEXT_CHARS, default=500"`
	// MinCharsPerPage is the minimum average characters per page.
	MinCharsPerPage int `env:"MIN_CHARS_PER_PAGE, default=200"`
	// AllowPartialText grades thin extractions with a warning instead of
	// rejecting them.
	AllowPartialText bool `env:"ALLOW_PARTIAL_TEXT, default=false"`

	// OutputDir is the base directory under which job directories are made.
	OutputDir string `env:"OUTPUT_DIR, default=output"`
	// ConfigFile points at an optional YAML overlay.
	ConfigFile string `env:"GRADEFLOW_CONFIG"`
}

// Load resolves the configuration from the environment and, when
// GRADEFLOW_CONFIG is set, applies the YAML overlay on top. Explicitly
// pointing at a file is the strongest signal, so its values win.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	if cfg.ConfigFile != "" {
		if err := cfg.applyYAML(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.ValidationRetry < 0 {
		return fmt.Errorf("validation retry budget cannot be negative, got %d", c.ValidationRetry)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.TimeoutSeconds)
	}
	if c.MinTextChars < 0 || c.MinCharsPerPage < 0 {
		return fmt.Errorf("text gate thresholds cannot be negative")
	}
	return nil
}

// Timeout returns the per-call deadline as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// overlay mirrors Config with optional fields so unset YAML keys leave the
// environment values alone.
type overlay struct {
	Model            *string `yaml:"model"`
	APIKey           *string `yaml:"api_key"`
	BaseURL          *string `yaml:"base_url"`
	TimeoutSeconds   *int    `yaml:"timeout_seconds"`
	MaxTokens        *int64  `yaml:"max_tokens"`
	ValidationRetry  *int    `yaml:"validation_retry"`
	StructuredOutput *bool   `yaml:"structured_output"`
	MinTextChars     *int    `yaml:"min_text_chars"`
	MinCharsPerPage  *int    `yaml:"min_chars_per_page"`
	AllowPartialText *bool   `yaml:"allow_partial_text"`
	OutputDir        *string `yaml:"output_dir"`
}

func (c *Config) applyYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	var o overlay
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	setString(&c.Model, o.Model)
	setString(&c.APIKey, o.APIKey)
	setString(&c.BaseURL, o.BaseURL)
	setInt(&c.TimeoutSeconds, o.TimeoutSeconds)
	if o.MaxTokens != nil {
		c.MaxTokens = *o.MaxTokens
	}
	setInt(&c.ValidationRetry, o.ValidationRetry)
	setBool(&c.StructuredOutput, o.StructuredOutput)
	setInt(&c.MinTextChars, o.MinTextChars)
	setInt(&c.MinCharsPerPage, o.MinCharsPerPage)
	setBool(&c.AllowPartialText, o.AllowPartialText)
	setString(&c.OutputDir, o.OutputDir)
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
