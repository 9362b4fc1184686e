/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"chainguard.dev/gradeflow/completion"
	"chainguard.dev/gradeflow/pdftext"
	"github.com/chainguard-dev/clog"
)

var (
	// ErrNotFound marks missing jobs, essay directories without PDFs, and
	// missing rubric files.
	ErrNotFound = errors.New("not found")
	// ErrJobExists marks an id collision with a registered job.
	ErrJobExists = errors.New("job already exists")
)

// Manager creates and tracks grading jobs.
type Manager struct {
	cfg       *Config
	client    completion.Client
	extractor pdftext.Extractor

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewManager wires a manager with its provider client and text extractor.
func NewManager(cfg *Config, client completion.Client, extractor pdftext.Extractor) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("completion client cannot be nil")
	}
	if extractor == nil {
		return nil, errors.New("extractor cannot be nil")
	}
	return &Manager{
		cfg:       cfg,
		client:    client,
		extractor: extractor,
		jobs:      map[string]*Job{},
	}, nil
}

// StartJob validates the inputs, lays out the job directory, and kicks off
// processing in the background. It returns as soon as the job is registered.
func (m *Manager) StartJob(ctx context.Context, essaysDir, rubricPath, name string) (*Job, error) {
	essays, err := listEssays(essaysDir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(rubricPath); err != nil {
		return nil, fmt.Errorf("rubric file %s: %w", rubricPath, ErrNotFound)
	}

	id, err := m.reserveID(name)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(m.cfg.OutputDir, id)

	copied, err := layoutJobDir(dir, essays, rubricPath)
	if err != nil {
		m.release(id)
		return nil, err
	}

	job := newJob(id, dir, len(copied))
	if err := writeState(dir, job.Snapshot()); err != nil {
		m.release(id)
		return nil, err
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	clog.FromContext(ctx).With("job", id).With("essays", len(copied)).
		Info("Starting grading job")

	// The job outlives the request that started it.
	go m.run(context.WithoutCancel(ctx), job, copied)

	return job, nil
}

// GetJob looks up a registered job by id.
func (m *Manager) GetJob(id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job == nil {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return job, nil
}

// Jobs returns snapshots of every registered job.
func (m *Manager) Jobs() []Snapshot {
	m.mu.Lock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j != nil {
			jobs = append(jobs, j)
		}
	}
	m.mu.Unlock()

	snaps := make([]Snapshot, 0, len(jobs))
	for _, j := range jobs {
		snaps = append(snaps, j.Snapshot())
	}
	sort.Slice(snaps, func(i, k int) bool { return snaps[i].ID < snaps[k].ID })
	return snaps
}

// reserveID derives a unique job id and reserves it against both registered
// jobs and pre-existing job directories.
func (m *Manager) reserveID(name string) (string, error) {
	base := time.Now().UTC().Format("20060102-150405")
	if slug := slugifyName(name); slug != "" {
		base += "-" + slug
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := base
	for n := 2; ; n++ {
		_, registered := m.jobs[id]
		_, statErr := os.Stat(filepath.Join(m.cfg.OutputDir, id))
		if !registered && statErr != nil {
			break
		}
		if n > 1000 {
			return "", fmt.Errorf("job id %s: %w", base, ErrJobExists)
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
	// Reserve the slot so a concurrent StartJob cannot grab the same id.
	m.jobs[id] = nil
	return id, nil
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobs[id] == nil {
		delete(m.jobs, id)
	}
}

// slugifyName reduces a human-entered job name to [a-z0-9-].
func slugifyName(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// listEssays returns the sorted PDF paths in dir.
func listEssays(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading essays directory %s: %w", dir, err)
	}
	var essays []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			essays = append(essays, filepath.Join(dir, e.Name()))
		}
	}
	if len(essays) == 0 {
		return nil, fmt.Errorf("no PDF essays in %s: %w", dir, ErrNotFound)
	}
	sort.Strings(essays)
	return essays, nil
}

// layoutJobDir creates the job tree and copies the inputs in, returning the
// copied essay paths in processing order.
func layoutJobDir(dir string, essays []string, rubricPath string) ([]string, error) {
	for _, sub := range []string{
		filepath.Join("inputs", "essays"),
		filepath.Join("outputs", "json"),
		filepath.Join("outputs", "json_failed"),
		filepath.Join("outputs", "text"),
		"logs",
	} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating job directory: %w", err)
		}
	}

	if err := copyFile(rubricPath, filepath.Join(dir, "inputs", "rubric.json")); err != nil {
		return nil, err
	}

	copied := make([]string, 0, len(essays))
	for _, src := range essays {
		dst := filepath.Join(dir, "inputs", "essays", filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return nil, err
		}
		copied = append(copied, dst)
	}
	sort.Strings(copied)
	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}
