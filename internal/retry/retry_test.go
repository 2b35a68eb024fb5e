package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/contentagent/internal/platform/providererr"
)

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func TestCallSucceedsAfterTwoFailures(t *testing.T) {
	rec := &recordingSleeper{}
	p := Policy{Op: "search", MaxAttempts: 3, BaseDelay: time.Second, Sleep: rec.sleep}

	calls := 0
	got, err := Call(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", providererr.Transient("serp", errors.New("503"))
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "ok" {
		t.Fatalf("expected ok, got %q", got)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(rec.waits) != 2 || rec.waits[0] != time.Second || rec.waits[1] != 2*time.Second {
		t.Fatalf("unexpected waits: %v", rec.waits)
	}
}

func TestCallExhausted(t *testing.T) {
	rec := &recordingSleeper{}
	p := Policy{Op: "poll", MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, Sleep: rec.sleep}
	cause := providererr.Transient("payment", errors.New("timeout"))

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return cause
	})
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if ex.Attempts != 3 || !errors.Is(err, ErrExhausted) {
		t.Fatalf("unexpected exhausted error: %+v", ex)
	}
	if !providererr.IsTransient(err) {
		t.Fatalf("exhausted error should wrap the transient cause")
	}
	if len(rec.waits) != 2 {
		t.Fatalf("expected 2 waits, got %v", rec.waits)
	}
}

func TestPermanentErrorNotRetried(t *testing.T) {
	rec := &recordingSleeper{}
	p := Policy{MaxAttempts: 5, Sleep: rec.sleep}
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return providererr.Permanent("payment", errors.New("401"))
	})
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	if !providererr.IsPermanent(err) || errors.Is(err, ErrExhausted) {
		t.Fatalf("expected permanent error returned as-is, got %v", err)
	}
	if len(rec.waits) != 0 {
		t.Fatalf("no waits expected, got %v", rec.waits)
	}
}

func TestDelayCap(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 3 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Fatalf("Delay(%d)=%s want %s", i+1, got, w)
		}
	}
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, Sleep: func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}}
	calls := 0
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("flaky")
	})
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
