// Package jobs owns the payment-gated job lifecycle:
// awaiting_payment -> running -> completed | failed.
package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/payment"
	"github.com/yungbote/contentagent/internal/platform/ctxutil"
	"github.com/yungbote/contentagent/internal/platform/logger"
	"github.com/yungbote/contentagent/internal/retry"
)

var (
	ErrMissingPurchaser  = errors.New("identifier_from_purchaser is required")
	ErrPaymentRequest    = errors.New("payment request failed")
	ErrReferenceMismatch = errors.New("payment reference does not match job")
)

// ContentRunner executes the content pipeline for one request.
type ContentRunner interface {
	Run(ctx context.Context, req domain.ContentRequest) (domain.ContentResult, error)
}

// Archive keeps terminal jobs beyond the in-memory retention window.
type Archive interface {
	Save(ctx context.Context, rec domain.JobRecord) error
	Get(ctx context.Context, id string) (domain.JobRecord, error)
}

type Metrics interface {
	JobCreated()
	JobFinished(state domain.LifecycleState, elapsed time.Duration)
	PaymentPolled(result string)
	ResultSubmitted(err error)
}

type Options struct {
	PollInterval time.Duration
	AbandonAfter time.Duration
	Retry        retry.Policy
	Sleep        retry.Sleeper
	SubmitResult bool
}

type Deps struct {
	Store     *Store
	Provider  payment.Provider
	Runner    ContentRunner
	Publisher Publisher
	Archive   Archive // optional
	Metrics   Metrics // optional
}

type Controller struct {
	log       *logger.Logger
	store     *Store
	provider  payment.Provider
	runner    ContentRunner
	publisher Publisher
	archive   Archive
	metrics   Metrics
	opts      Options
	now       func() time.Time

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewController(log *logger.Logger, deps Deps, opts Options) (*Controller, error) {
	if log == nil {
		log = logger.Nop()
	}
	if deps.Store == nil || deps.Provider == nil || deps.Runner == nil {
		return nil, errors.New("jobs: store, payment provider and runner are required")
	}
	if deps.Publisher == nil {
		deps.Publisher = NewLogPublisher(log)
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	base, cancel := context.WithCancel(context.Background())
	return &Controller{
		log:       log.With("service", "JobController"),
		store:     deps.Store,
		provider:  deps.Provider,
		runner:    deps.Runner,
		publisher: deps.Publisher,
		archive:   deps.Archive,
		metrics:   deps.Metrics,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		base:      base,
		cancel:    cancel,
	}, nil
}

// InputHash binds the purchaser identifier to the exact request content.
func InputHash(identifierFromPurchaser string, req domain.ContentRequest) string {
	raw, _ := json.Marshal(req)
	sum := sha256.Sum256([]byte(identifierFromPurchaser + ";" + string(raw)))
	return hex.EncodeToString(sum[:])
}

// ResultHash is the digest reported to the payment provider.
func ResultHash(res domain.ContentResult) string {
	raw, _ := json.Marshal(res)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// CreateJob registers a payment request with the provider and starts
// watching it. The job is returned in awaiting_payment.
func (c *Controller) CreateJob(ctx context.Context, identifierFromPurchaser string, req domain.ContentRequest) (domain.JobRecord, error) {
	identifierFromPurchaser = strings.TrimSpace(identifierFromPurchaser)
	if identifierFromPurchaser == "" {
		return domain.JobRecord{}, ErrMissingPurchaser
	}
	req = req.Normalized()
	if err := req.Validate(); err != nil {
		return domain.JobRecord{}, err
	}

	jobID := uuid.NewString()
	log := c.log.With("job_id", jobID)
	inputHash := InputHash(identifierFromPurchaser, req)

	policy := c.opts.Retry
	policy.Op = "payment.create_request"
	terms, err := retry.Call(ctx, policy.WithLogger(log), func(ctx context.Context) (domain.PaymentTerms, error) {
		return c.provider.CreatePaymentRequest(ctx, domain.PaymentRequest{
			IdentifierFromPurchaser: identifierFromPurchaser,
			InputHash:               inputHash,
		})
	})
	if err != nil {
		log.Error("payment request failed", "error", err)
		return domain.JobRecord{}, fmt.Errorf("%w: %w", ErrPaymentRequest, err)
	}

	now := c.now()
	rec := domain.JobRecord{
		ID:                      jobID,
		Lifecycle:               domain.LifecycleAwaitingPayment,
		Payment:                 domain.PaymentPending,
		PaymentReference:        terms.BlockchainIdentifier,
		IdentifierFromPurchaser: identifierFromPurchaser,
		InputHash:               inputHash,
		Terms:                   terms,
		Input:                   req,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	e, err := c.store.insert(rec)
	if err != nil {
		return domain.JobRecord{}, err
	}
	c.metrics.JobCreated()
	c.publish(domain.JobEvent{JobID: jobID, To: rec.Lifecycle, Payment: rec.Payment, At: now})

	mon := payment.Start(c.base, log, c.provider, terms.BlockchainIdentifier, payment.Options{
		Interval:     c.opts.PollInterval,
		AbandonAfter: c.opts.AbandonAfter,
		Retry:        c.opts.Retry,
		Sleep:        c.opts.Sleep,
		OnState:      func(s domain.PaymentState) { c.setPaymentState(jobID, s) },
		OnPoll:       c.metrics.PaymentPolled,
	})
	e.mu.Lock()
	e.monitor = mon
	e.mu.Unlock()

	c.wg.Add(1)
	go c.watch(jobID, mon)

	log.Info("job created", "blockchain_identifier", terms.BlockchainIdentifier, "topic", req.Topic, "platform", req.Platform)
	return rec.Clone(), nil
}

func (c *Controller) watch(jobID string, mon *payment.Monitor) {
	defer c.wg.Done()
	select {
	case ref := <-mon.Confirmed():
		_ = c.HandlePaymentConfirmed(jobID, ref)
		return
	case <-mon.Done():
	}
	// A confirmation sent just before Done still wins.
	select {
	case ref := <-mon.Confirmed():
		_ = c.HandlePaymentConfirmed(jobID, ref)
		return
	default:
	}
	switch outcome, err := mon.Result(); outcome {
	case payment.OutcomeAbandoned, payment.OutcomeFailed:
		c.failAwaiting(jobID, err)
	}
}

// HandlePaymentConfirmed runs the job's pipeline if, and only if, the job is
// still awaiting payment. Duplicate or late confirmations are no-ops.
func (c *Controller) HandlePaymentConfirmed(jobID, ref string) error {
	e, ok := c.store.lookup(jobID)
	if !ok {
		return ErrJobNotFound
	}
	log := c.log.With("job_id", jobID)

	e.mu.Lock()
	if ref != "" && ref != e.rec.PaymentReference {
		e.mu.Unlock()
		log.Warn("confirmation for foreign payment reference ignored", "blockchain_identifier", ref)
		return ErrReferenceMismatch
	}
	if e.rec.Lifecycle != domain.LifecycleAwaitingPayment {
		state := e.rec.Lifecycle
		e.mu.Unlock()
		log.Debug("duplicate payment confirmation ignored", "status", state)
		return nil
	}
	from := e.rec.Lifecycle
	e.rec.Lifecycle = domain.LifecycleRunning
	e.rec.Payment = domain.PaymentConfirmed
	e.rec.UpdatedAt = c.now()
	input := e.rec.Input
	mon := e.monitor
	ev := domain.JobEvent{JobID: jobID, From: from, To: e.rec.Lifecycle, Payment: e.rec.Payment, At: e.rec.UpdatedAt}
	e.mu.Unlock()

	if mon != nil {
		mon.Stop()
	}
	c.publish(ev)
	log.Info("payment confirmed, running content pipeline", "blockchain_identifier", ref)

	// The run must outlive whatever request or poll triggered it.
	ctx := ctxutil.WithJobID(context.Background(), jobID)
	result, runErr := c.runSafely(ctx, input)

	e.mu.Lock()
	from = e.rec.Lifecycle
	if runErr != nil {
		e.rec.Lifecycle = domain.LifecycleFailed
		e.rec.Error = runErr.Error()
	} else {
		e.rec.Lifecycle = domain.LifecycleCompleted
		e.rec.Result = &result
	}
	e.rec.UpdatedAt = c.now()
	rec := e.rec.Clone()
	e.mu.Unlock()

	c.publish(domain.JobEvent{JobID: jobID, From: from, To: rec.Lifecycle, Payment: rec.Payment, Error: rec.Error, At: rec.UpdatedAt})
	c.metrics.JobFinished(rec.Lifecycle, rec.UpdatedAt.Sub(rec.CreatedAt))

	if runErr != nil {
		log.Error("content pipeline failed", "error", runErr)
	} else {
		log.Info("job completed", "stage_errors", len(result.Errors))
		if c.opts.SubmitResult {
			c.submitResult(log, rec.PaymentReference, result)
		}
	}
	c.archiveRecord(log, rec)
	return nil
}

func (c *Controller) runSafely(ctx context.Context, req domain.ContentRequest) (res domain.ContentResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("content pipeline panic", "job_id", ctxutil.JobID(ctx), "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("content pipeline panic: %v", r)
		}
	}()
	return c.runner.Run(ctx, req)
}

func (c *Controller) submitResult(log *logger.Logger, ref string, result domain.ContentResult) {
	policy := c.opts.Retry
	policy.Op = "payment.submit_result"
	hash := ResultHash(result)
	err := policy.WithLogger(log).Do(context.Background(), func(ctx context.Context) error {
		return c.provider.SubmitResult(ctx, ref, hash)
	})
	c.metrics.ResultSubmitted(err)
	if err != nil {
		log.Warn("submitting result hash failed", "blockchain_identifier", ref, "error", err)
	}
}

// failAwaiting ends a job whose payment never arrived.
func (c *Controller) failAwaiting(jobID string, cause error) {
	e, ok := c.store.lookup(jobID)
	if !ok {
		return
	}
	if cause == nil {
		cause = errors.New("payment monitoring ended without confirmation")
	}
	e.mu.Lock()
	if e.rec.Lifecycle != domain.LifecycleAwaitingPayment {
		e.mu.Unlock()
		return
	}
	from := e.rec.Lifecycle
	e.rec.Lifecycle = domain.LifecycleFailed
	e.rec.Error = cause.Error()
	e.rec.UpdatedAt = c.now()
	rec := e.rec.Clone()
	e.mu.Unlock()

	log := c.log.With("job_id", jobID)
	log.Warn("job failed before payment", "error", cause)
	c.publish(domain.JobEvent{JobID: jobID, From: from, To: rec.Lifecycle, Payment: rec.Payment, Error: rec.Error, At: rec.UpdatedAt})
	c.metrics.JobFinished(rec.Lifecycle, rec.UpdatedAt.Sub(rec.CreatedAt))
	c.archiveRecord(log, rec)
}

// setPaymentState records what the monitor saw while payment is outstanding.
func (c *Controller) setPaymentState(jobID string, s domain.PaymentState) {
	e, ok := c.store.lookup(jobID)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.Lifecycle == domain.LifecycleAwaitingPayment && e.rec.Payment != s {
		e.rec.Payment = s
		e.rec.UpdatedAt = c.now()
	}
}

func (c *Controller) archiveRecord(log *logger.Logger, rec domain.JobRecord) {
	if c.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.archive.Save(ctx, rec); err != nil {
		log.Warn("archiving job failed", "error", err)
	}
}

func (c *Controller) publish(ev domain.JobEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.publisher.Publish(ctx, ev); err != nil {
		c.log.Warn("publishing job event failed", "job_id", ev.JobID, "to", ev.To, "error", err)
	}
}

// GetJob returns the live record, falling back to the archive.
func (c *Controller) GetJob(ctx context.Context, jobID string) (domain.JobRecord, error) {
	rec, err := c.store.Get(jobID)
	if err == nil {
		return rec, nil
	}
	if c.archive == nil {
		return domain.JobRecord{}, ErrJobNotFound
	}
	return c.archive.Get(ctx, jobID)
}

// Close stops every payment monitor and waits for in-flight pipeline runs
// until ctx is done.
func (c *Controller) Close(ctx context.Context) error {
	for _, e := range c.store.entries() {
		e.mu.Lock()
		mon := e.monitor
		e.mu.Unlock()
		if mon != nil {
			mon.Stop()
		}
	}
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

type nopMetrics struct{}

func (nopMetrics) JobCreated()                                      {}
func (nopMetrics) JobFinished(domain.LifecycleState, time.Duration) {}
func (nopMetrics) PaymentPolled(string)                             {}
func (nopMetrics) ResultSubmitted(error)                            {}
