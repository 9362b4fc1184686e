/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Status is a job's lifecycle state. Running is the only non-terminal state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Counters tracks per-essay outcomes across a job.
type Counters struct {
	Total           int `json:"total"`
	Processed       int `json:"processed"`
	Succeeded       int `json:"succeeded"`
	Failed          int `json:"failed"`
	Validated       int `json:"validated"`
	SchemaFail      int `json:"schema_fail"`
	RetriesUsed     int `json:"retries_used"`
	TextOK          int `json:"text_ok"`
	LowTextWarning  int `json:"low_text_warning"`
	LowTextRejected int `json:"low_text_rejected"`
}

// Job is one grading run over a directory of essays. All mutation goes
// through the lock; readers take a Snapshot.
type Job struct {
	id  string
	dir string

	mu                sync.Mutex
	status            Status
	errMsg            string
	rubricFingerprint string
	startedAt         time.Time
	finishedAt        time.Time
	counters          Counters
	artifacts         map[string]string

	done chan struct{}
}

func newJob(id, dir string, total int) *Job {
	return &Job{
		id:        id,
		dir:       dir,
		status:    StatusRunning,
		startedAt: time.Now().UTC(),
		counters:  Counters{Total: total},
		artifacts: map[string]string{},
		done:      make(chan struct{}),
	}
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Dir returns the job's directory on disk.
func (j *Job) Dir() string { return j.dir }

// Done returns a channel closed when the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} { return j.done }

// Snapshot is a point-in-time copy of the job state, also persisted as
// logs/state.json.
type Snapshot struct {
	ID                string            `json:"id"`
	Dir               string            `json:"dir"`
	Status            Status            `json:"status"`
	Error             string            `json:"error,omitempty"`
	RubricFingerprint string            `json:"rubric_fingerprint,omitempty"`
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        *time.Time        `json:"finished_at,omitempty"`
	Counters          Counters          `json:"counters"`
	Artifacts         map[string]string `json:"artifacts"`
}

// Snapshot returns a consistent copy of the job state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked()
}

func (j *Job) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:                j.id,
		Dir:               j.dir,
		Status:            j.status,
		Error:             j.errMsg,
		RubricFingerprint: j.rubricFingerprint,
		StartedAt:         j.startedAt,
		Counters:          j.counters,
		Artifacts:         make(map[string]string, len(j.artifacts)),
	}
	for k, v := range j.artifacts {
		s.Artifacts[k] = v
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		s.FinishedAt = &t
	}
	return s
}

// update applies fn under the lock and rewrites state.json wholesale so the
// on-disk view never trails the in-memory one by more than one essay.
func (j *Job) update(fn func(*Job)) error {
	j.mu.Lock()
	fn(j)
	snap := j.snapshotLocked()
	j.mu.Unlock()
	return writeState(j.dir, snap)
}

// finish transitions the job to a terminal status exactly once.
func (j *Job) finish(status Status, errMsg string) error {
	var already bool
	err := j.update(func(j *Job) {
		if j.status != StatusRunning {
			already = true
			return
		}
		j.status = status
		j.errMsg = errMsg
		j.finishedAt = time.Now().UTC()
	})
	if !already {
		close(j.done)
	}
	return err
}

// setFingerprint records the canonical rubric fingerprint.
func (j *Job) setFingerprint(fp string) error {
	return j.update(func(j *Job) { j.rubricFingerprint = fp })
}

// addArtifact records a named artifact path.
func (j *Job) addArtifact(name, path string) error {
	return j.update(func(j *Job) { j.artifacts[name] = path })
}

func writeState(dir string, snap Snapshot) error {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding job state: %w", err)
	}
	path := filepath.Join(dir, "logs", "state.json")
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing job state: %w", err)
	}
	return nil
}
