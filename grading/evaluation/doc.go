/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package evaluation defines the structured feedback payload produced by the
// model for one essay, and validates it against a rubric-derived context.
//
// Validation is deliberately a two-argument function over payload and
// rubric.Context rather than rubric knowledge baked into the types, so the
// same payload schema works for differently-shaped rubrics.
package evaluation
