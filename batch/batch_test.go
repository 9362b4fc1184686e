/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"chainguard.dev/gradeflow/completion"
	"chainguard.dev/gradeflow/pdftext"
	"github.com/stretchr/testify/require"
)

const testRubricJSON = `{
	"criteria": [
		{"id": "clarity", "max_score": 10, "name": "Clarity"},
		{"id": "evidence", "max_score": 10, "name": "Evidence"}
	],
	"overall_points_possible": 20
}`

// fakeExtractor returns canned text per student and fails for the students
// listed in failFor.
type fakeExtractor struct {
	failFor  map[string]bool
	thinFor  map[string]bool
	extracts atomic.Int32
}

func (f *fakeExtractor) Extract(_ context.Context, path string) (*pdftext.Result, error) {
	f.extracts.Add(1)
	student := strings.TrimSuffix(filepath.Base(path), ".pdf")
	if f.failFor[student] {
		return nil, &pdftext.ExtractionError{Path: path, Err: errors.New("corrupt xref table")}
	}
	if f.thinFor[student] {
		return &pdftext.Result{Text: "scan", Pages: 3, Chars: 4}, nil
	}
	text := strings.Repeat("The essay argues its thesis with care. ", 30)
	return &pdftext.Result{Text: text, Pages: 2, Chars: len(text)}, nil
}

// scriptedClient returns the same payload for every call, counting calls.
type scriptedClient struct {
	payload string
	calls   atomic.Int32
}

func (c *scriptedClient) Complete(context.Context, completion.Request) (*completion.Response, error) {
	c.calls.Add(1)
	return &completion.Response{
		Text:  c.payload,
		Usage: completion.Usage{PromptTokens: 10, CompletionTokens: 5},
	}, nil
}

func (c *scriptedClient) Model() string { return "test-model" }

func validPayload() string {
	criterion := func(id string, score int) string {
		return fmt.Sprintf(`{
			"id": %q, "assigned_level": "proficient", "score": %d,
			"examples": [
				{"excerpt": "one", "comment": "good"},
				{"excerpt": "two", "comment": "fine"}
			],
			"improvement_suggestion": "Vary sentence openings."
		}`, id, score)
	}
	return fmt.Sprintf(`{
		"overall_score": "17/20",
		"summary": "Solid work.",
		"criteria": [%s, %s],
		"overall": {"points_earned": 17, "points_possible": 20}
	}`, criterion("clarity", 8), criterion("evidence", 9))
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Model:            "test-model",
		TimeoutSeconds:   5,
		MaxTokens:        1024,
		ValidationRetry:  1,
		StructuredOutput: true,
		MinTextChars:     100,
		MinCharsPerPage:  10,
		OutputDir:        t.TempDir(),
	}
}

// writeInputs creates an essays directory with the given student PDFs and a
// rubric file, returning both paths.
func writeInputs(t *testing.T, rubricJSON string, students ...string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	essays := filepath.Join(dir, "essays")
	require.NoError(t, os.MkdirAll(essays, 0o755))
	for _, s := range students {
		require.NoError(t, os.WriteFile(filepath.Join(essays, s+".pdf"), []byte("%PDF-1.4 stub"), 0o644))
	}
	rubricPath := filepath.Join(dir, "rubric.json")
	require.NoError(t, os.WriteFile(rubricPath, []byte(rubricJSON), 0o644))
	return essays, rubricPath
}

func waitDone(t *testing.T, job *Job) Snapshot {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("job did not finish in time")
	}
	return job.Snapshot()
}

func TestStartJob_Preconditions(t *testing.T) {
	t.Parallel()

	m, err := NewManager(testConfig(t), &scriptedClient{payload: validPayload()}, &fakeExtractor{})
	require.NoError(t, err)

	empty := t.TempDir()
	_, rubricPath := writeInputs(t, testRubricJSON, "alice")
	if _, err := m.StartJob(context.Background(), empty, rubricPath, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("StartJob(empty essays) = %v, want ErrNotFound", err)
	}

	essays, _ := writeInputs(t, testRubricJSON, "alice")
	if _, err := m.StartJob(context.Background(), essays, filepath.Join(empty, "missing.json"), ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("StartJob(missing rubric) = %v, want ErrNotFound", err)
	}
}

func TestStartJob_FailureLeavesNoRegistration(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	// Point the output root at a regular file so laying out the job
	// directory fails after the id has been reserved.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	cfg.OutputDir = blocker

	m, err := NewManager(cfg, &scriptedClient{payload: validPayload()}, &fakeExtractor{})
	require.NoError(t, err)

	essays, rubricPath := writeInputs(t, testRubricJSON, "alice")
	_, err = m.StartJob(context.Background(), essays, rubricPath, "broken")
	require.Error(t, err)

	// The failed start must not leave a half-registered job behind.
	require.Empty(t, m.Jobs())
}

func TestJob_EssayIsolation(t *testing.T) {
	t.Parallel()

	students := []string{"alice", "bob", "carol", "dave", "erin"}
	client := &scriptedClient{payload: validPayload()}
	extractor := &fakeExtractor{failFor: map[string]bool{"carol": true}}

	m, err := NewManager(testConfig(t), client, extractor)
	require.NoError(t, err)

	essays, rubricPath := writeInputs(t, testRubricJSON, students...)
	job, err := m.StartJob(context.Background(), essays, rubricPath, "midterm")
	require.NoError(t, err)
	require.Contains(t, job.ID(), "midterm")

	snap := waitDone(t, job)
	require.Equal(t, StatusCompleted, snap.Status)
	require.Equal(t, 5, snap.Counters.Total)
	require.Equal(t, 5, snap.Counters.Processed)
	require.Equal(t, 4, snap.Counters.Succeeded)
	require.Equal(t, 1, snap.Counters.Failed)
	require.Equal(t, 4, snap.Counters.Validated)
	require.Equal(t, 4, snap.Counters.TextOK)
	require.NotEmpty(t, snap.RubricFingerprint)

	// Exactly one artifact per input, success or failure.
	okFiles, err := os.ReadDir(filepath.Join(job.Dir(), "outputs", "json"))
	require.NoError(t, err)
	require.Len(t, okFiles, 4)
	failedFiles, err := os.ReadDir(filepath.Join(job.Dir(), "outputs", "json_failed"))
	require.NoError(t, err)
	require.Len(t, failedFiles, 1)
	require.Equal(t, "carol.json", failedFiles[0].Name())

	// The broken essay never reached the model.
	require.Equal(t, int32(4), client.calls.Load())

	// Job-level artifacts.
	for _, name := range []string{"summary.csv", "summary.txt", "evaluations.zip"} {
		_, err := os.Stat(filepath.Join(job.Dir(), name))
		require.NoError(t, err, name)
	}
	state, err := os.ReadFile(filepath.Join(job.Dir(), "logs", "state.json"))
	require.NoError(t, err)
	require.Contains(t, string(state), `"status": "completed"`)

	// summary.csv: header with one score column per rubric criterion,
	// then rows sorted by student; carol's score cells are blank.
	csvRaw, err := os.ReadFile(filepath.Join(job.Dir(), "summary.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvRaw)), "\n")
	require.Len(t, lines, 6)
	require.Equal(t, "student,status,overall_score,points_earned,points_possible,retries,criterion_clarity_score,criterion_evidence_score", lines[0])
	require.Equal(t, "alice,graded,17/20,17,20,0,8,9", lines[1])
	require.Equal(t, "carol,error,,,,,,", lines[3])

	// summary.txt carries the same per-criterion columns.
	txtRaw, err := os.ReadFile(filepath.Join(job.Dir(), "summary.txt"))
	require.NoError(t, err)
	require.Contains(t, string(txtRaw), "criterion_clarity_score")
	require.Contains(t, string(txtRaw), "criterion_evidence_score")

	// job.log and results.jsonl carry one line per essay.
	logRaw, err := os.ReadFile(filepath.Join(job.Dir(), "logs", "job.log"))
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(string(logRaw)), "\n"), 5)
	resultsRaw, err := os.ReadFile(filepath.Join(job.Dir(), "logs", "results.jsonl"))
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(string(resultsRaw)), "\n"), 5)
}

func TestJob_InvalidRubricFailsBeforeGrading(t *testing.T) {
	t.Parallel()

	badRubric := `{
		"criteria": [{"id": "clarity", "max_score": 10, "name": "Clarity"}],
		"overall_points_possible": 99
	}`
	client := &scriptedClient{payload: validPayload()}
	m, err := NewManager(testConfig(t), client, &fakeExtractor{})
	require.NoError(t, err)

	essays, rubricPath := writeInputs(t, badRubric, "alice", "bob")
	job, err := m.StartJob(context.Background(), essays, rubricPath, "")
	require.NoError(t, err)

	snap := waitDone(t, job)
	require.Equal(t, StatusFailed, snap.Status)
	require.Contains(t, snap.Error, "invalid rubric")
	require.Equal(t, 0, snap.Counters.Processed)
	require.Equal(t, int32(0), client.calls.Load())
}

func TestJob_LowTextRejection(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{payload: validPayload()}
	extractor := &fakeExtractor{thinFor: map[string]bool{"alice": true}}
	m, err := NewManager(testConfig(t), client, extractor)
	require.NoError(t, err)

	essays, rubricPath := writeInputs(t, testRubricJSON, "alice")
	job, err := m.StartJob(context.Background(), essays, rubricPath, "")
	require.NoError(t, err)

	snap := waitDone(t, job)
	require.Equal(t, StatusCompleted, snap.Status)
	require.Equal(t, 1, snap.Counters.LowTextRejected)
	require.Equal(t, 1, snap.Counters.Failed)
	require.Equal(t, int32(0), client.calls.Load(), "rejected essay must not reach the model")

	raw, err := os.ReadFile(filepath.Join(job.Dir(), "outputs", "json_failed", "alice.json"))
	require.NoError(t, err)
	require.Contains(t, string(raw), "low_text_rejected")
	require.Contains(t, string(raw), "re-export")
}

func TestJob_LowTextWarningStillGrades(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.AllowPartialText = true
	client := &scriptedClient{payload: validPayload()}
	extractor := &fakeExtractor{thinFor: map[string]bool{"alice": true}}
	m, err := NewManager(cfg, client, extractor)
	require.NoError(t, err)

	essays, rubricPath := writeInputs(t, testRubricJSON, "alice")
	job, err := m.StartJob(context.Background(), essays, rubricPath, "")
	require.NoError(t, err)

	snap := waitDone(t, job)
	require.Equal(t, StatusCompleted, snap.Status)
	require.Equal(t, 1, snap.Counters.LowTextWarning)
	require.Equal(t, 1, snap.Counters.Succeeded)
	require.Equal(t, int32(1), client.calls.Load())
}

func TestJob_SchemaFailureArtifacts(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{payload: `{"overall_score": "A", "summary": "", "criteria": []}`}
	m, err := NewManager(testConfig(t), client, &fakeExtractor{})
	require.NoError(t, err)

	essays, rubricPath := writeInputs(t, testRubricJSON, "alice")
	job, err := m.StartJob(context.Background(), essays, rubricPath, "")
	require.NoError(t, err)

	snap := waitDone(t, job)
	require.Equal(t, StatusCompleted, snap.Status)
	require.Equal(t, 1, snap.Counters.SchemaFail)
	require.Equal(t, 1, snap.Counters.Failed)
	require.Equal(t, 1, snap.Counters.RetriesUsed)
	// Initial attempt plus one corrective retry.
	require.Equal(t, int32(2), client.calls.Load())

	raw, err := os.ReadFile(filepath.Join(job.Dir(), "outputs", "json_failed", "alice.json"))
	require.NoError(t, err)
	require.Contains(t, string(raw), "schema_fail")
	require.Contains(t, string(raw), "raw_response")
	require.Contains(t, string(raw), "schema_errors")
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	m, err := NewManager(testConfig(t), &scriptedClient{payload: validPayload()}, &fakeExtractor{})
	require.NoError(t, err)

	if _, err := m.GetJob("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJob(unknown) = %v, want ErrNotFound", err)
	}

	essays, rubricPath := writeInputs(t, testRubricJSON, "alice")
	job, err := m.StartJob(context.Background(), essays, rubricPath, "")
	require.NoError(t, err)

	got, err := m.GetJob(job.ID())
	require.NoError(t, err)
	require.Same(t, job, got)
	waitDone(t, job)
}

func TestSlugifyName(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"Midterm Essays", "midterm-essays"},
		{"  period 3 / block B  ", "period-3-block-b"},
		{"___", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := slugifyName(tt.in); got != tt.want {
			t.Errorf("slugifyName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
