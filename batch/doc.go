/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package batch orchestrates grading jobs: it lays out the job directory,
// canonicalizes the rubric once, walks the essays sequentially through
// extraction, the text gate, and the grader, and persists one artifact per
// input no matter how that essay fared. A job only fails outright when the
// rubric is invalid at startup or the final artifacts cannot be written.
package batch
