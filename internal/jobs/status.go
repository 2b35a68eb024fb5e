package jobs

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/payment"
	"github.com/yungbote/contentagent/internal/platform/logger"
	"github.com/yungbote/contentagent/internal/retry"
)

// liveCheckTimeout bounds a shared live check once it is detached from the
// caller that started it.
const liveCheckTimeout = 30 * time.Second

type StatusService interface {
	QueryStatus(ctx context.Context, jobID string) (domain.JobRecord, error)
}

type statusService struct {
	log     *logger.Logger
	store   *Store
	checker payment.StatusChecker
	archive Archive
	retry   retry.Policy
	group   singleflight.Group
}

func NewStatusService(log *logger.Logger, store *Store, checker payment.StatusChecker, archive Archive, policy retry.Policy) StatusService {
	if log == nil {
		log = logger.Nop()
	}
	l := log.With("service", "StatusService")
	policy.Op = "payment.status_query"
	return &statusService{
		log:     l,
		store:   store,
		checker: checker,
		archive: archive,
		retry:   policy.WithLogger(l),
	}
}

// QueryStatus returns the job, refreshing payment_status with one live
// provider check while the job's monitor is still polling. Concurrent
// queries for the same job share that check.
func (s *statusService) QueryStatus(ctx context.Context, jobID string) (domain.JobRecord, error) {
	e, ok := s.store.lookup(jobID)
	if !ok {
		if s.archive == nil {
			return domain.JobRecord{}, ErrJobNotFound
		}
		return s.archive.Get(ctx, jobID)
	}

	rec, mon := e.snapshot()
	if rec.Lifecycle != domain.LifecycleAwaitingPayment || mon == nil || !mon.Active() {
		return rec, nil
	}

	// The shared check must not inherit the first caller's cancellation.
	ch := s.group.DoChan(jobID, func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), liveCheckTimeout)
		defer cancel()
		return retry.Call(checkCtx, s.retry, func(ctx context.Context) (domain.ProviderStatus, error) {
			return s.checker.PaymentStatus(ctx, rec.PaymentReference)
		})
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return rec, ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.Lifecycle == domain.LifecycleAwaitingPayment {
		switch {
		case res.Err == nil:
			e.rec.Payment = res.Val.(domain.ProviderStatus).PaymentState()
		case errors.Is(res.Err, context.Canceled):
			// Only a provider failure degrades the stored payment state.
		default:
			s.log.Warn("live payment check failed", "job_id", jobID, "error", res.Err)
			e.rec.Payment = domain.PaymentError
		}
	}
	return e.rec.Clone(), nil
}
