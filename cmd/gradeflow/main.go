/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main runs one grading job over a directory of PDF essays and a
// rubric file, printing the per-student score table when the job finishes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chainguard.dev/gradeflow/batch"
	"chainguard.dev/gradeflow/grading/grader"
	"chainguard.dev/gradeflow/pdftext"
	"github.com/chainguard-dev/clog"
)

func main() {
	essaysDir := flag.String("essays", "", "directory of PDF essays to grade")
	rubricPath := flag.String("rubric", "", "path to the rubric JSON file")
	jobName := flag.String("name", "", "optional job name, slugified into the job id")
	flag.Parse()

	ctx := context.Background()
	interrupts := make(chan os.Signal, 2)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)

	if *essaysDir == "" || *rubricPath == "" {
		fmt.Fprintln(os.Stderr, "usage: gradeflow -essays <dir> -rubric <file> [-name <name>]")
		os.Exit(2)
	}

	cfg, err := batch.Load(ctx)
	if err != nil {
		clog.FatalContextf(ctx, "loading config: %v", err)
	}

	client, err := grader.Dial(grader.DialConfig{
		Model:     cfg.Model,
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.Timeout(),
	})
	if err != nil {
		clog.FatalContextf(ctx, "building completion client: %v", err)
	}

	manager, err := batch.NewManager(cfg, client, pdftext.NewPDF())
	if err != nil {
		clog.FatalContextf(ctx, "building job manager: %v", err)
	}

	job, err := manager.StartJob(ctx, *essaysDir, *rubricPath, *jobName)
	if err != nil {
		clog.FatalContextf(ctx, "starting job: %v", err)
	}
	clog.InfoContextf(ctx, "Job %s started, writing to %s", job.ID(), job.Dir())

	if !awaitJob(ctx, job.ID(), job.Done(), interrupts) {
		clog.WarnContextf(ctx, "Aborting, job %s is incomplete and its state file shows the last finished essay", job.ID())
		os.Exit(1)
	}

	snap := job.Snapshot()
	fmt.Printf("\nJob %s: %s\n", snap.ID, snap.Status)
	if snap.Error != "" {
		fmt.Printf("Error: %s\n", snap.Error)
	}
	fmt.Printf("Essays: %d processed, %d succeeded, %d failed (%d schema failures, %d low-text rejections)\n",
		snap.Counters.Processed, snap.Counters.Succeeded, snap.Counters.Failed,
		snap.Counters.SchemaFail, snap.Counters.LowTextRejected)
	fmt.Printf("Retries used: %d\n\n", snap.Counters.RetriesUsed)

	if table := readSummaryTable(snap); table != "" {
		fmt.Println(table)
	}

	if snap.Status == batch.StatusFailed {
		os.Exit(1)
	}
}

// awaitJob blocks until the job is done. The job cannot outlive the process,
// so the first interrupt only warns and keeps waiting; a second interrupt
// gives up, returning false with the job unfinished.
func awaitJob(ctx context.Context, id string, done <-chan struct{}, interrupts <-chan os.Signal) bool {
	select {
	case <-done:
		return true
	case <-interrupts:
		clog.WarnContextf(ctx, "Interrupted, waiting for job %s to finish the current essay, interrupt again to abort", id)
	}
	select {
	case <-done:
		return true
	case <-interrupts:
		return false
	}
}

// readSummaryTable prints the rendered summary.txt artifact when the job got
// far enough to produce one.
func readSummaryTable(snap batch.Snapshot) string {
	path, ok := snap.Artifacts["summary.txt"]
	if !ok {
		return ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(raw)
}
