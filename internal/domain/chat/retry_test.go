package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"karanbot/internal/domain/chat"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	policy := chat.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}

	attempts := 0
	err := policy.Do(context.Background(), "test", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	t.Logf("✅ Recovered on attempt %d", attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	policy := chat.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}

	attempts := 0
	wantErr := errors.New("permanent")
	err := policy.Do(context.Background(), "test", func() error {
		attempts++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected last error after exhaustion, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	policy := chat.RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := policy.Do(ctx, "test", func() error {
		attempts++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts >= 5 {
		t.Errorf("cancellation should have cut retries short, got %d attempts", attempts)
	}
}
