package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDoSucceedsThirdAttempt(t *testing.T) {
	calls := 0
	var stamps []time.Time

	got, err := Do(context.Background(), Config{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond},
		func(ctx context.Context) (string, error) {
			calls++
			stamps = append(stamps, time.Now())
			if calls < 3 {
				return "", errors.New("transient")
			}
			return "ok", nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("got %q, want ok", got)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 calls, got %d", calls)
	}

	gap1 := stamps[1].Sub(stamps[0])
	gap2 := stamps[2].Sub(stamps[1])
	if gap2 <= gap1 {
		t.Fatalf("delays should be strictly increasing: %v then %v", gap1, gap2)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Config{MaxAttempts: 3, BaseDelay: time.Millisecond},
		func(ctx context.Context) (int, error) {
			calls++
			return 0, errors.New("boom")
		})
	if err == nil {
		t.Fatalf("expected error after exhaustion")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("last error should be wrapped: %v", err)
	}
}

func TestDoFirstAttemptSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Default, func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil || got != 42 || calls != 1 {
		t.Fatalf("got (%d, %v) after %d calls", got, err, calls)
	}
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, Config{MaxAttempts: 3, BaseDelay: time.Second},
		func(ctx context.Context) (int, error) {
			return 0, errors.New("fail")
		})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
