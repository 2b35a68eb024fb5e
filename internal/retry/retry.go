// Package retry runs fallible remote calls with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/yungbote/contentagent/internal/platform/httpx"
	"github.com/yungbote/contentagent/internal/platform/logger"
	"github.com/yungbote/contentagent/internal/platform/providererr"
)

// ErrExhausted matches every *ExhaustedError via errors.Is.
var ErrExhausted = errors.New("retry budget exhausted")

type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	op := e.Op
	if op == "" {
		op = "operation"
	}
	return fmt.Sprintf("%s failed after %d attempts: %v", op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Policy struct {
	Op          string
	MaxAttempts int           // total attempts including the first; default 3
	BaseDelay   time.Duration // default 1s
	MaxDelay    time.Duration // 0 leaves growth uncapped
	JitterFrac  float64

	// Retryable decides whether a failure is worth another attempt.
	// Defaults to everything except permanent provider errors.
	Retryable func(err error) bool
	Sleep     Sleeper
	OnRetry   func(attempt int, err error, wait time.Duration)
	Log       *logger.Logger
}

func Default(op string) Policy {
	return Policy{Op: op, MaxAttempts: 3, BaseDelay: time.Second}
}

func (p Policy) WithLogger(log *logger.Logger) Policy {
	p.Log = log
	return p
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.JitterFrac < 0 {
		p.JitterFrac = 0
	}
	if p.Retryable == nil {
		p.Retryable = func(err error) bool { return !providererr.IsPermanent(err) }
	}
	if p.Sleep == nil {
		p.Sleep = SleepContext
	}
	return p
}

// Delay is the wait after the given failed attempt (1-based):
// BaseDelay * 2^(attempt-1), capped by MaxDelay, before jitter.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do invokes op until it succeeds, fails permanently, or the attempt budget
// is spent. Exhaustion yields *ExhaustedError wrapping the last failure.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Call(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func Call[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()
	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return zero, err
		}
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !p.Retryable(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			break
		}
		wait := httpx.Jitter(p.Delay(attempt), p.JitterFrac)
		if p.Log != nil {
			p.Log.Warn("retrying operation",
				"op", p.Op,
				"attempt", attempt,
				"max_attempts", p.MaxAttempts,
				"sleep", wait.String(),
				"error", err,
			)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		if serr := p.Sleep(ctx, wait); serr != nil {
			return zero, fmt.Errorf("%w (last error: %v)", serr, lastErr)
		}
	}
	return zero, &ExhaustedError{Op: p.Op, Attempts: p.MaxAttempts, Err: lastErr}
}
