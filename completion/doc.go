/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package completion defines the provider-neutral chat completion contract.
// Provider implementations live in subpackages (openaichat, claudechat) and
// the grader picks one by model name prefix.
package completion
