/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package grader

import "chainguard.dev/gradeflow/grading/prompt"

// systemPrompt frames the model as a grader and pins the response contract.
// Providers with native structured output additionally enforce the schema.
const systemPrompt = `You are an experienced writing instructor grading a student essay against a rubric.

Score each rubric criterion independently, citing concrete excerpts from the essay as evidence. Be fair and consistent: the same essay must earn the same scores regardless of its author.

Respond with a single JSON object and nothing else. For every rubric criterion include exactly two examples quoting the essay, the assigned level, a score no higher than the criterion maximum, and one improvement suggestion. Include an overall summary and the overall points earned and possible.`

var userTemplate = prompt.Must(prompt.New(`Grade the following essay against this rubric.

<rubric>
{{rubric}}
</rubric>

<essay>
{{essay}}
</essay>`))
