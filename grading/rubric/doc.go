/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package rubric defines the canonical grading rubric model and the
// canonicalizer that upgrades arbitrary legacy rubric payloads into it.
//
// A canonical rubric is the sole source of truth for evaluation validation:
// every criterion id is unique, non-blank, and snake_case, and the sum of
// per-criterion max scores always equals the declared total. Canonicalization
// happens once, before any essay is processed.
package rubric
