/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package result recovers JSON payloads from raw completion text. Even with
// structured output requested, some models wrap the payload in markdown
// fences or prepend prose; this package strips that decoration before the
// strict evaluation decoder runs.
package result
