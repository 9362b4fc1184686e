/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package rubric

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint returns a content hash of the canonical rubric, stable across
// processes, so downstream consumers can detect rubric changes between jobs.
func Fingerprint(m *Model) string {
	// Maps marshal with sorted keys, so the dump is deterministic.
	data, err := json.Marshal(dumpModel(m))
	if err != nil {
		// dumpModel only produces JSON-encodable values.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
