/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package grader

import (
	"fmt"
	"strings"
)

// buildCorrection renders the follow-up message sent after a response fails
// validation. It restates every problem at once so the model can fix them in
// a single pass.
func buildCorrection(issues []string) string {
	var b strings.Builder
	b.WriteString("Your previous response did not satisfy the required format. Fix the following problems and resend the complete corrected JSON object, with no other text:\n")
	for _, issue := range issues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}
	b.WriteString("\nKeep everything that was already correct unchanged.")
	return b.String()
}
