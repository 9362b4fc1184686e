/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chainguard.dev/gradeflow/grading/evaluation"
	"chainguard.dev/gradeflow/grading/grader"
	"chainguard.dev/gradeflow/grading/rubric"
	"chainguard.dev/gradeflow/pdftext"
	"github.com/chainguard-dev/clog"
)

// run drives one job to a terminal status. Per-essay errors are converted to
// failed essays; only an invalid rubric or a finalization disk error fails
// the job itself.
func (m *Manager) run(ctx context.Context, job *Job, essays []string) {
	log := clog.FromContext(ctx).With("job", job.ID())
	ctx = clog.WithLogger(ctx, log)

	rub, err := m.loadRubric(ctx, job)
	if err != nil {
		log.With("error", err.Error()).Error("Job failed before grading")
		_ = job.finish(StatusFailed, err.Error())
		return
	}

	evaluator, err := grader.New(m.client, grader.Config{
		RetryBudget:      m.cfg.ValidationRetry,
		StructuredOutput: m.cfg.StructuredOutput,
		MaxTokens:        m.cfg.MaxTokens,
		Limits:           evaluation.DefaultLimits(),
	})
	if err != nil {
		log.With("error", err.Error()).Error("Job failed before grading")
		_ = job.finish(StatusFailed, err.Error())
		return
	}

	gate := pdftext.Gate{
		MinChars:        m.cfg.MinTextChars,
		MinCharsPerPage: m.cfg.MinCharsPerPage,
		AllowPartial:    m.cfg.AllowPartialText,
	}

	summary := newSummaryBuilder(rub.CriterionIDs())
	for _, path := range essays {
		m.processEssay(ctx, job, evaluator, gate, rub, path, summary)
	}

	if err := m.finalize(job, summary); err != nil {
		log.With("error", err.Error()).Error("Job failed during finalization")
		_ = job.finish(StatusFailed, err.Error())
		return
	}

	_ = job.finish(StatusCompleted, "")
	snap := job.Snapshot()
	log.With("succeeded", snap.Counters.Succeeded).
		With("failed", snap.Counters.Failed).
		Info("Grading job completed")
}

// loadRubric reads and canonicalizes the copied rubric. Any remaining issue
// after canonicalization is fatal for the job.
func (m *Manager) loadRubric(ctx context.Context, job *Job) (*rubric.Model, error) {
	raw, err := os.ReadFile(filepath.Join(job.Dir(), "inputs", "rubric.json"))
	if err != nil {
		return nil, fmt.Errorf("reading rubric: %w", err)
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("invalid rubric: %w", err)
	}

	res := rubric.Canonicalize(payload, rubric.DefaultConfig())
	if !res.Valid() {
		return nil, fmt.Errorf("invalid rubric: %s", strings.Join(res.Messages(), "; "))
	}

	log := clog.FromContext(ctx)
	for _, warning := range res.Warnings {
		log.With("warning", warning).Warn("Rubric canonicalization warning")
	}
	if res.Converted {
		log.Info("Rubric converted from a legacy shape")
	}

	if err := job.setFingerprint(rubric.Fingerprint(res.Canonical)); err != nil {
		return nil, err
	}
	return res.Canonical, nil
}

// processEssay takes one essay to a terminal per-essay status and persists
// its artifact, log line, and results record. It never returns an error:
// everything that can go wrong becomes a failed essay.
func (m *Manager) processEssay(ctx context.Context, job *Job, evaluator *grader.Evaluator, gate pdftext.Gate, rub *rubric.Model, path string, summary *summaryBuilder) {
	student := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	log := clog.FromContext(ctx).With("student", student)
	start := time.Now()

	rec := essayRecord{
		Timestamp:       start.UTC(),
		Student:         student,
		MinTextChars:    gate.MinChars,
		MinCharsPerPage: gate.MinCharsPerPage,
		AllowPartial:    gate.AllowPartial,
	}

	conclude := func(bump func(*Counters)) {
		rec.DurationMS = time.Since(start).Milliseconds()
		if err := appendLogLine(job.Dir(), rec); err != nil {
			log.With("error", err.Error()).Warn("Failed to append job log line")
		}
		if err := appendResult(job.Dir(), rec); err != nil {
			log.With("error", err.Error()).Warn("Failed to append results record")
		}
		if err := job.update(func(j *Job) {
			j.counters.Processed++
			bump(&j.counters)
		}); err != nil {
			log.With("error", err.Error()).Warn("Failed to persist job state")
		}
	}

	failEssay := func(status, msg string, fa failureArtifact) {
		rec.Status = status
		rec.Error = msg
		if _, err := writeFailure(job.Dir(), student, fa); err != nil {
			log.With("error", err.Error()).Warn("Failed to write failure artifact")
		}
		summary.addFailure(student, status)
		log.With("status", status).With("error", msg).Warn("Essay failed")
	}

	extracted, err := m.extractor.Extract(ctx, path)
	if err != nil {
		msg := fmt.Sprintf("text extraction failed: %v", err)
		failEssay("error", msg, failureArtifact{Status: "error", Error: msg})
		conclude(func(c *Counters) { c.Failed++ })
		return
	}
	rec.Chars = extracted.Chars
	rec.Pages = extracted.Pages
	rec.CharsPerPage = extracted.CharsPerPage()

	if _, err := writeText(job.Dir(), student, extracted.Text); err != nil {
		log.With("error", err.Error()).Warn("Failed to write text artifact")
	}

	verdict := gate.Check(extracted)
	rec.TextQuality = string(verdict.Quality)
	switch verdict.Quality {
	case pdftext.QualityRejected:
		failEssay("low_text_rejected", verdict.Reason, failureArtifact{
			Status: "low_text_rejected",
			Error:  verdict.Reason + "\n\n" + pdftext.RemediationMessage,
		})
		conclude(func(c *Counters) {
			c.Failed++
			c.LowTextRejected++
		})
		return
	case pdftext.QualityLow:
		log.With("reason", verdict.Reason).Warn("Grading despite thin extracted text")
	}

	outcome, err := evaluator.Evaluate(ctx, rub, extracted.Text)
	if err != nil {
		msg := fmt.Sprintf("evaluation failed: %v", err)
		failEssay("error", msg, failureArtifact{Status: "error", Error: msg})
		conclude(func(c *Counters) {
			c.Failed++
			bumpTextQuality(c, verdict.Quality)
		})
		return
	}

	rec.Retries = outcome.Retries
	rec.PromptTokens = outcome.Usage.PromptTokens
	rec.CompletionTokens = outcome.Usage.CompletionTokens

	if outcome.Status == grader.StatusSchemaFail {
		msg := "response failed validation after exhausting retries"
		rec.SchemaErrors = outcome.Issues
		failEssay("schema_fail", msg, failureArtifact{
			Status:       "schema_fail",
			Error:        msg,
			RawResponse:  outcome.Raw,
			SchemaErrors: outcome.Issues,
		})
		conclude(func(c *Counters) {
			c.Failed++
			c.SchemaFail++
			c.RetriesUsed += outcome.Retries
			bumpTextQuality(c, verdict.Quality)
		})
		return
	}

	if _, err := writeEvaluation(job.Dir(), student, outcome.Evaluation); err != nil {
		msg := fmt.Sprintf("persisting evaluation: %v", err)
		failEssay("error", msg, failureArtifact{Status: "error", Error: msg})
		conclude(func(c *Counters) {
			c.Failed++
			bumpTextQuality(c, verdict.Quality)
		})
		return
	}

	rec.Status = string(outcome.Status)
	rec.OverallScore = outcome.Evaluation.OverallScore.Token()
	if overall := outcome.Evaluation.Overall; overall != nil {
		earned, possible := overall.PointsEarned, overall.PointsPossible
		rec.PointsEarned = &earned
		rec.PointsPossible = &possible
	}
	summary.addSuccess(student, outcome.Evaluation, outcome.Retries)
	log.With("status", rec.Status).With("retries", outcome.Retries).
		With("score", rec.OverallScore).Info("Essay graded")

	conclude(func(c *Counters) {
		c.Succeeded++
		c.Validated++
		c.RetriesUsed += outcome.Retries
		bumpTextQuality(c, verdict.Quality)
	})
}

func bumpTextQuality(c *Counters, q pdftext.Quality) {
	switch q {
	case pdftext.QualityOK:
		c.TextOK++
	case pdftext.QualityLow:
		c.LowTextWarning++
	}
}

// finalize writes the job-level summary artifacts. A failure here fails the
// job; per-essay artifacts already on disk are left in place.
func (m *Manager) finalize(job *Job, summary *summaryBuilder) error {
	rows := summary.sorted()

	paths, err := writeSummaries(job.Dir(), summary.criteria, rows)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := job.addArtifact(filepath.Base(p), p); err != nil {
			return err
		}
	}

	archive, err := writeArchive(job.Dir())
	if err != nil {
		return err
	}
	return job.addArtifact("evaluations.zip", archive)
}
