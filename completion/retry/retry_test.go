/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package retry_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"chainguard.dev/gradeflow/completion"
	"chainguard.dev/gradeflow/completion/retry"
)

func testConfig() retry.Config {
	return retry.Config{
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  10 * time.Millisecond,
		MaxJitter:   time.Millisecond,
	}
}

func TestDo_FirstTrySuccess(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	got, err := retry.Do(context.Background(), testConfig(), "complete", completion.Retryable, func() (string, error) {
		attempts.Add(1)
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("Do() = %q, %v", got, err)
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("attempts = %d, want 1", n)
	}
}

func TestDo_RecoversFromRateLimit(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	got, err := retry.Do(context.Background(), testConfig(), "complete", completion.Retryable, func() (string, error) {
		if attempts.Add(1) < 3 {
			return "", &completion.TransportError{StatusCode: 429, Err: errors.New("rate limited")}
		}
		return "recovered", nil
	})
	if err != nil || got != "recovered" {
		t.Fatalf("Do() = %q, %v", got, err)
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}

func TestDo_ExhaustsBudget(t *testing.T) {
	t.Parallel()

	cause := &completion.TransportError{StatusCode: 503, Err: errors.New("unavailable")}
	var attempts atomic.Int32
	_, err := retry.Do(context.Background(), testConfig(), "complete", completion.Retryable, func() (string, error) {
		attempts.Add(1)
		return "", cause
	})
	if err == nil {
		t.Fatal("Do() succeeded after permanent failure")
	}
	if n := attempts.Load(); n != 4 {
		t.Errorf("attempts = %d, want 4 (1 initial + 3 retries)", n)
	}
	if !errors.Is(err, cause.Err) {
		t.Errorf("Do() error %v does not wrap the cause", err)
	}
	if !strings.Contains(err.Error(), "complete failed after 3 retries") {
		t.Errorf("Do() error = %v, want operation context", err)
	}
}

func TestDo_NonRetryableFailsFast(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	_, err := retry.Do(context.Background(), testConfig(), "complete", completion.Retryable, func() (string, error) {
		attempts.Add(1)
		return "", &completion.TransportError{StatusCode: 401, Err: errors.New("bad key")}
	})
	if err == nil {
		t.Fatal("Do() succeeded")
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("attempts = %d, want 1", n)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.BaseBackoff = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := retry.Do(ctx, cfg, "complete", completion.Retryable, func() (string, error) {
		return "", &completion.TransportError{StatusCode: 429, Err: errors.New("rate limited")}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() = %v, want context.Canceled", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	if err := retry.DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
	bad := retry.Config{MaxRetries: -1}
	if err := bad.Validate(); err == nil {
		t.Error("Validate() accepted negative retries")
	}
}
