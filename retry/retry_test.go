package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	// WHAT: all attempts fail — last error is returned, attempt count bounded.
	sentinel := errors.New("boom")
	calls := 0
	err := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}.Do(context.Background(), func() error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_RecoversMidway(t *testing.T) {
	calls := 0
	err := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	// WHY: a cancelled context must stop the loop instead of sleeping out
	// the full backoff schedule.
	ctx, cancel := context.WithCancel(context.Background())
	sentinel := errors.New("boom")
	calls := 0
	err := Policy{MaxAttempts: 10, BaseDelay: time.Hour}.Do(ctx, func() error {
		calls++
		cancel()
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected last error back, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestDo_ZeroPolicyDefaults(t *testing.T) {
	calls := 0
	Policy{BaseDelay: time.Millisecond}.Do(context.Background(), func() error {
		calls++
		return errors.New("x")
	})
	if calls != 3 {
		t.Errorf("default MaxAttempts should be 3, observed %d calls", calls)
	}
}
