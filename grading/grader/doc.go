/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package grader runs one essay through the model and validates the result
// against the rubric, retrying with corrective feedback when the response
// fails schema or rubric checks. Transport failures are retried separately
// inside the completion layer with their own budget.
package grader
