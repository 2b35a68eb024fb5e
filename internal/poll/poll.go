// Package poll repeatedly checks a remote condition at a fixed interval.
// It backs both the payment monitor (uncapped) and the image job wait
// (capped).
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/contentagent/internal/retry"
)

var ErrLimit = errors.New("poll limit reached")

type LimitError struct {
	Attempts int
	Last     string
}

func (e *LimitError) Error() string {
	if e.Last == "" {
		return fmt.Sprintf("poll limit reached after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("poll limit reached after %d attempts (last: %s)", e.Attempts, e.Last)
}

func (e *LimitError) Is(target error) bool { return target == ErrLimit }

// Check is one poll. done=true ends polling with out; a non-nil err ends it
// with that error. last is a short description kept for the limit error.
type Check[T any] func(ctx context.Context, attempt int) (out T, done bool, last string, err error)

type Poller struct {
	Interval    time.Duration
	MaxAttempts int // 0 polls until done, error or ctx cancellation
	Sleep       retry.Sleeper
}

// Until runs check immediately and then once per Interval. Cancelling ctx
// prevents any further check from starting; an in-flight check finishes.
func Until[T any](ctx context.Context, p Poller, check Check[T]) (T, error) {
	var zero T
	sleep := p.Sleep
	if sleep == nil {
		sleep = retry.SleepContext
	}
	var last string
	for attempt := 1; p.MaxAttempts <= 0 || attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, p.Interval); err != nil {
				return zero, err
			}
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		out, done, desc, err := check(ctx, attempt)
		if err != nil {
			return zero, err
		}
		if done {
			return out, nil
		}
		last = desc
	}
	return zero, &LimitError{Attempts: p.MaxAttempts, Last: last}
}
