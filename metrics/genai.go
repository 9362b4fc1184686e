/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// GenAI provides OpenTelemetry counters for grading calls: token usage per
// model plus validation retries. Counter creation degrades to no-ops on
// failure rather than disabling grading.
type GenAI struct {
	meter             metric.Meter
	promptTokens      metric.Int64Counter
	completionTokens  metric.Int64Counter
	validationRetries metric.Int64Counter
	attrEnricher      AttributeEnricher
}

// NewGenAI creates a GenAI metrics instance with the specified meter name.
// The meter name should be shared across providers, with the model recorded
// as a dimension to tell them apart.
func NewGenAI(meterName string) *GenAI {
	meter := otel.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))

	promptTokens, err := meter.Int64Counter("genai.token.prompt",
		metric.WithDescription("The number of prompt tokens used"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		slog.Warn("Failed to create prompt tokens counter, metrics will be disabled", "error", err, "meter", meterName)
		promptTokens = noop.Int64Counter{}
	}

	completionTokens, err := meter.Int64Counter("genai.token.completion",
		metric.WithDescription("The number of completion tokens used"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		slog.Warn("Failed to create completion tokens counter, metrics will be disabled", "error", err, "meter", meterName)
		completionTokens = noop.Int64Counter{}
	}

	validationRetries, err := meter.Int64Counter("grading.validation.retries",
		metric.WithDescription("The number of corrective retries after failed validation"),
		metric.WithUnit("{retries}"))
	if err != nil {
		slog.Warn("Failed to create validation retry counter, metrics will be disabled", "error", err, "meter", meterName)
		validationRetries = noop.Int64Counter{}
	}

	return &GenAI{
		meter:             meter,
		promptTokens:      promptTokens,
		completionTokens:  completionTokens,
		validationRetries: validationRetries,
	}
}

// SetAttributeEnricher sets the enricher called before recording each metric,
// letting the batch layer attach job and student attributes.
func (m *GenAI) SetAttributeEnricher(enricher AttributeEnricher) {
	m.attrEnricher = enricher
}

// RecordTokens records prompt and completion token usage for one call.
func (m *GenAI) RecordTokens(ctx context.Context, model string, promptTokens, completionTokens int64, attrs ...attribute.KeyValue) {
	baseAttrs := []attribute.KeyValue{
		attribute.String("model", model),
	}
	if m.attrEnricher != nil {
		baseAttrs = m.attrEnricher(ctx, baseAttrs)
	}
	baseAttrs = append(baseAttrs, attrs...)

	m.promptTokens.Add(ctx, promptTokens, metric.WithAttributes(baseAttrs...))
	m.completionTokens.Add(ctx, completionTokens, metric.WithAttributes(baseAttrs...))
}

// RecordValidationRetry records one corrective retry for the given model.
func (m *GenAI) RecordValidationRetry(ctx context.Context, model string, attrs ...attribute.KeyValue) {
	baseAttrs := []attribute.KeyValue{
		attribute.String("model", model),
	}
	if m.attrEnricher != nil {
		baseAttrs = m.attrEnricher(ctx, baseAttrs)
	}
	baseAttrs = append(baseAttrs, attrs...)

	m.validationRetries.Add(ctx, 1, metric.WithAttributes(baseAttrs...))
}
