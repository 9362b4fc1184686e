/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package claudechat implements the completion.Client contract on top of
// Anthropic's Messages API. Claude has no response_format parameter, so when
// a schema is requested it is appended to the system prompt and the strict
// decoder downstream enforces conformance.
package claudechat
