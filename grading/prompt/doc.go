/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package prompt assembles grading prompts from templates with explicit
// placeholders. Placeholders use {{name}} syntax and every one must be bound
// before Build succeeds, so a template change that adds a placeholder fails
// loudly instead of sending a half-filled prompt to the model.
package prompt
