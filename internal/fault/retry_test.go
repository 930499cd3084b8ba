package fault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vintera/labelforge/internal/log"
)

// fastRetry keeps test backoff in the microsecond range.
func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:     attempts,
		BaseDelay:       time.Microsecond,
		MaxDelay:        time.Millisecond,
		ExponentialBase: 2.0,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	op := func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection reset by peer")
		}
		return "ok", nil
	}

	got, err := Retry(context.Background(), log.NewNop(), "test-op", fastRetry(3), op)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("Retry() = %q, want %q", got, "ok")
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestRetry_NonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	op := func(context.Context) (int, error) {
		calls++
		return 0, errors.New("401 unauthorized")
	}

	_, err := Retry(context.Background(), log.NewNop(), "test-op", fastRetry(5), op)
	if err == nil {
		t.Fatal("Retry() error = nil, want failure")
	}
	if calls != 1 {
		t.Errorf("op called %d times, want exactly 1 for a validation error", calls)
	}
}

func TestRetry_ExhaustionReturnsLastErrorUnchanged(t *testing.T) {
	last := errors.New("request timed out (attempt 3)")
	calls := 0
	op := func(context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, last
		}
		return 0, errors.New("request timed out")
	}

	_, err := Retry(context.Background(), log.NewNop(), "test-op", fastRetry(3), op)
	if !errors.Is(err, last) {
		t.Errorf("Retry() error = %v, want the final attempt's error unchanged", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestRetry_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	op := func(context.Context) (int, error) {
		cancel()
		return 0, errors.New("timeout")
	}

	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour, ExponentialBase: 2}
	_, err := Retry(ctx, log.NewNop(), "test-op", cfg, op)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() error = %v, want context.Canceled", err)
	}
}

func TestRetryConfigDelay(t *testing.T) {
	cfg := RetryConfig{
		BaseDelay:       100 * time.Millisecond,
		MaxDelay:        time.Second,
		ExponentialBase: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{5, time.Second}, // capped at MaxDelay
	}
	for _, tt := range tests {
		if got := cfg.delay(tt.attempt); got != tt.want {
			t.Errorf("delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryConfigDelay_JitterStaysBounded(t *testing.T) {
	cfg := RetryConfig{
		BaseDelay:       100 * time.Millisecond,
		MaxDelay:        time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}

	for range 100 {
		d := cfg.delay(2) // 200ms nominal
		if d < 100*time.Millisecond || d > 300*time.Millisecond {
			t.Fatalf("jittered delay %v outside [0.5x, 1.5x) of nominal", d)
		}
	}
}

func TestWithCleanup_SkipsCleanupOnSuccess(t *testing.T) {
	cleaned := false
	got, err := WithCleanup(context.Background(), log.NewNop(),
		func(context.Context) (string, error) { return "done", nil },
		func(context.Context) error { cleaned = true; return nil },
	)
	if err != nil {
		t.Fatalf("WithCleanup() error = %v", err)
	}
	if got != "done" {
		t.Errorf("WithCleanup() = %q", got)
	}
	if cleaned {
		t.Error("cleanup ran on success")
	}
}

func TestWithCleanup_RunsAllCleanupsAndKeepsOriginalError(t *testing.T) {
	opErr := errors.New("upload failed")
	var ran []int

	_, err := WithCleanup(context.Background(), log.NewNop(),
		func(context.Context) (string, error) { return "", opErr },
		func(context.Context) error { ran = append(ran, 1); return errors.New("cleanup 1 failed") },
		func(context.Context) error { ran = append(ran, 2); return nil },
	)

	if !errors.Is(err, opErr) {
		t.Errorf("WithCleanup() error = %v, want the original operation error", err)
	}
	if len(ran) != 2 {
		t.Errorf("ran %v cleanups, want both despite the first failing", ran)
	}
}
