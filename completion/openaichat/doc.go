/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package openaichat implements the completion.Client contract on top of the
// OpenAI Chat Completions API, including strict json_schema response format
// for structured output. It also serves OpenAI-compatible endpoints via a
// custom base URL.
package openaichat
