package payment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/platform/logger"
	"github.com/yungbote/contentagent/internal/platform/providererr"
	"github.com/yungbote/contentagent/internal/retry"
)

type scriptedChecker struct {
	mu      sync.Mutex
	replies []reply
	calls   atomic.Int32
}

type reply struct {
	status domain.ProviderStatus
	err    error
}

func (s *scriptedChecker) PaymentStatus(ctx context.Context, ref string) (domain.ProviderStatus, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return r.status, r.err
}

func instantSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func fastOptions() Options {
	return Options{
		Interval: time.Millisecond,
		Sleep:    instantSleep,
		Retry:    retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Sleep: instantSleep},
	}
}

func waitDone(t *testing.T, m *Monitor) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("monitor did not finish")
	}
}

func TestMonitorConfirmsExactlyOnce(t *testing.T) {
	checker := &scriptedChecker{replies: []reply{
		{status: domain.ProviderNotFound},
		{status: domain.ProviderPending},
		{status: domain.ProviderConfirmed},
	}}
	var states []domain.PaymentState
	var mu sync.Mutex
	opts := fastOptions()
	opts.OnState = func(s domain.PaymentState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}

	m := Start(context.Background(), logger.Nop(), checker, "bc-1", opts)
	waitDone(t, m)

	select {
	case ref := <-m.Confirmed():
		if ref != "bc-1" {
			t.Fatalf("ref=%s", ref)
		}
	default:
		t.Fatalf("expected confirmation")
	}
	select {
	case <-m.Confirmed():
		t.Fatalf("confirmation delivered twice")
	default:
	}
	if out, err := m.Result(); out != OutcomeConfirmed || err != nil {
		t.Fatalf("outcome=%s err=%v", out, err)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []domain.PaymentState{domain.PaymentUnknown, domain.PaymentPending, domain.PaymentConfirmed}
	if len(states) != len(want) {
		t.Fatalf("states=%v", states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states=%v want %v", states, want)
		}
	}
}

func TestMonitorContinuesAfterRetryExhaustion(t *testing.T) {
	transient := providererr.Transient("masumi", errors.New("503"))
	checker := &scriptedChecker{replies: []reply{
		{err: transient}, {err: transient}, // one exhausted poll
		{err: transient}, {err: transient}, // another
		{status: domain.ProviderConfirmed},
	}}
	var polls []string
	opts := fastOptions()
	opts.OnPoll = func(r string) { polls = append(polls, r) }

	m := Start(context.Background(), logger.Nop(), checker, "bc-2", opts)
	waitDone(t, m)

	if out, _ := m.Result(); out != OutcomeConfirmed {
		t.Fatalf("outcome=%s", out)
	}
	if got := checker.calls.Load(); got != 5 {
		t.Fatalf("calls=%d", got)
	}
	if len(polls) != 3 || polls[0] != "error" || polls[2] != "confirmed" {
		t.Fatalf("polls=%v", polls)
	}
}

func TestMonitorPermanentErrorFails(t *testing.T) {
	checker := &scriptedChecker{replies: []reply{{err: providererr.Permanent("masumi", errors.New("401"))}}}
	var last domain.PaymentState
	opts := fastOptions()
	opts.OnState = func(s domain.PaymentState) { last = s }

	m := Start(context.Background(), logger.Nop(), checker, "bc-3", opts)
	waitDone(t, m)

	out, err := m.Result()
	if out != OutcomeFailed || !providererr.IsPermanent(err) {
		t.Fatalf("outcome=%s err=%v", out, err)
	}
	if last != domain.PaymentError {
		t.Fatalf("last state=%s", last)
	}
	if checker.calls.Load() != 1 {
		t.Fatalf("permanent errors must not be retried")
	}
}

func TestMonitorStopIsIdempotentAndEndsPolling(t *testing.T) {
	checker := &scriptedChecker{replies: []reply{{status: domain.ProviderPending}}}
	opts := fastOptions()
	opts.Sleep = retry.SleepContext
	opts.Interval = time.Hour

	m := Start(context.Background(), logger.Nop(), checker, "bc-4", opts)
	if !m.Active() {
		t.Fatalf("monitor should be active")
	}
	m.Stop()
	m.Stop()
	waitDone(t, m)
	m.Stop()

	if m.Active() {
		t.Fatalf("monitor should be inactive")
	}
	if out, err := m.Result(); out != OutcomeStopped || err != nil {
		t.Fatalf("outcome=%s err=%v", out, err)
	}
	calls := checker.calls.Load()
	time.Sleep(10 * time.Millisecond)
	if checker.calls.Load() != calls {
		t.Fatalf("provider called after stop")
	}
	select {
	case <-m.Confirmed():
		t.Fatalf("stopped monitor must not confirm")
	default:
	}
}

func TestMonitorAbandons(t *testing.T) {
	checker := &scriptedChecker{replies: []reply{{status: domain.ProviderPending}}}
	opts := fastOptions()
	opts.Sleep = retry.SleepContext
	opts.Interval = time.Millisecond
	opts.AbandonAfter = 20 * time.Millisecond

	m := Start(context.Background(), logger.Nop(), checker, "bc-5", opts)
	waitDone(t, m)

	out, err := m.Result()
	if out != OutcomeAbandoned || !errors.Is(err, ErrAbandoned) {
		t.Fatalf("outcome=%s err=%v", out, err)
	}
}
