// Package payment watches a payment reference until the provider reports
// the buyer's funds as locked.
package payment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/platform/logger"
	"github.com/yungbote/contentagent/internal/platform/providererr"
	"github.com/yungbote/contentagent/internal/poll"
	"github.com/yungbote/contentagent/internal/retry"
)

// Provider is the payment service as the job controller uses it.
type Provider interface {
	CreatePaymentRequest(ctx context.Context, req domain.PaymentRequest) (domain.PaymentTerms, error)
	StatusChecker
	SubmitResult(ctx context.Context, ref, resultHash string) error
}

type StatusChecker interface {
	PaymentStatus(ctx context.Context, ref string) (domain.ProviderStatus, error)
}

type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeAbandoned Outcome = "abandoned"
	OutcomeFailed    Outcome = "failed"
	OutcomeStopped   Outcome = "stopped"
)

var ErrAbandoned = errors.New("payment not confirmed before abandonment timeout")

type Options struct {
	Interval     time.Duration // default 60s
	AbandonAfter time.Duration // 0 polls until confirmed or stopped
	Retry        retry.Policy
	Sleep        retry.Sleeper

	// OnState receives every payment state the monitor observes.
	OnState func(domain.PaymentState)
	// OnPoll receives confirmed, pending, not_found or error per poll.
	OnPoll func(result string)
}

// Monitor polls one reference. Confirmed delivers the reference at most once
// and Done closes when polling has ended for any reason.
type Monitor struct {
	ref       string
	checker   StatusChecker
	opts      Options
	log       *logger.Logger
	confirmed chan string
	done      chan struct{}
	cancel    context.CancelFunc
	stopped   atomic.Bool

	mu      sync.Mutex
	outcome Outcome
	err     error
}

// Start begins polling in its own goroutine. Cancelling parent has the same
// effect as Stop.
func Start(parent context.Context, log *logger.Logger, checker StatusChecker, ref string, opts Options) *Monitor {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.Retry.Op == "" {
		opts.Retry.Op = "payment.status"
	}
	l := log.With("service", "PaymentMonitor", "blockchain_identifier", ref)
	opts.Retry = opts.Retry.WithLogger(l)

	ctx, cancel := context.WithCancel(parent)
	if opts.AbandonAfter > 0 {
		var stopTimer context.CancelFunc
		ctx, stopTimer = context.WithTimeoutCause(ctx, opts.AbandonAfter, ErrAbandoned)
		inner := cancel
		cancel = func() { stopTimer(); inner() }
	}

	m := &Monitor{
		ref:       ref,
		checker:   checker,
		opts:      opts,
		log:       l,
		confirmed: make(chan string, 1),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	go m.run(ctx)
	return m
}

func (m *Monitor) Reference() string { return m.ref }

// Confirmed is never closed; at most one value is ever sent.
func (m *Monitor) Confirmed() <-chan string { return m.confirmed }

func (m *Monitor) Done() <-chan struct{} { return m.done }

// Active reports whether polling is still in progress.
func (m *Monitor) Active() bool {
	select {
	case <-m.done:
		return false
	default:
		return !m.stopped.Load()
	}
}

// Stop ends polling without waiting for it. Safe to call repeatedly and
// from any goroutine.
func (m *Monitor) Stop() {
	if m.stopped.CompareAndSwap(false, true) {
		m.cancel()
	}
}

// Result is valid once Done is closed.
func (m *Monitor) Result() (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome, m.err
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	defer m.cancel()

	p := poll.Poller{Interval: m.opts.Interval, Sleep: m.opts.Sleep}
	ref, err := poll.Until(ctx, p, m.check)

	outcome := OutcomeConfirmed
	switch {
	case err == nil:
		m.confirmed <- ref
	case m.stopped.Load():
		outcome, err = OutcomeStopped, nil
	case errors.Is(context.Cause(ctx), ErrAbandoned):
		outcome, err = OutcomeAbandoned, ErrAbandoned
	case ctx.Err() != nil:
		outcome, err = OutcomeStopped, nil
	default:
		outcome = OutcomeFailed
	}

	m.mu.Lock()
	m.outcome, m.err = outcome, err
	m.mu.Unlock()

	if err != nil {
		m.log.Warn("payment monitor ended", "outcome", outcome, "error", err)
	} else {
		m.log.Info("payment monitor ended", "outcome", outcome)
	}
}

func (m *Monitor) check(ctx context.Context, attempt int) (string, bool, string, error) {
	status, err := retry.Call(ctx, m.opts.Retry, func(ctx context.Context) (domain.ProviderStatus, error) {
		return m.checker.PaymentStatus(ctx, m.ref)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", false, "", ctx.Err()
		}
		m.notePoll("error")
		if providererr.IsPermanent(err) {
			m.setState(domain.PaymentError)
			return "", false, "", err
		}
		// Exhausted transient failures: try again next interval.
		m.log.Warn("payment status check failed", "attempt", attempt, "error", err)
		return "", false, "error", nil
	}

	m.notePoll(string(status))
	m.setState(status.PaymentState())
	if status == domain.ProviderConfirmed {
		return m.ref, true, string(status), nil
	}
	m.log.Debug("payment not yet confirmed", "attempt", attempt, "status", status)
	return "", false, string(status), nil
}

func (m *Monitor) setState(s domain.PaymentState) {
	if m.opts.OnState != nil && !m.stopped.Load() {
		m.opts.OnState(s)
	}
}

func (m *Monitor) notePoll(result string) {
	if m.opts.OnPoll != nil {
		m.opts.OnPoll(result)
	}
}
