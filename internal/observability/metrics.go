package observability

import (
	"context"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/pipeline"
)

const namespace = "contentagent"

// PrometheusRecorder counts pipeline stages, job outcomes, payment polls and
// provider retries. A nil recorder drops every observation.
type PrometheusRecorder struct {
	reg           *prom.Registry
	stageDuration *prom.HistogramVec
	stageResults  *prom.CounterVec
	jobsCreated   prom.Counter
	jobOutcomes   *prom.CounterVec
	jobDuration   *prom.HistogramVec
	paymentPolls  *prom.CounterVec
	retries       *prom.CounterVec
	resultSubmits *prom.CounterVec
	httpRequests  *prom.CounterVec
	httpLatency   *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers the metrics on reg, or on
// a fresh registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of content pipeline stages",
		Buckets:   prom.DefBuckets,
	}, []string{"stage"})
	pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "stage_results_total",
		Help:      "Stage result counts by outcome",
	}, []string{"stage", "result"})
	pr.jobsCreated = prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_created_total",
		Help:      "Jobs accepted and awaiting payment",
	})
	pr.jobOutcomes = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "job_outcomes_total",
		Help:      "Jobs by terminal state",
	}, []string{"status"})
	pr.jobDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Time from job creation to terminal state",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 900, 3600, 4 * 3600, 24 * 3600},
	}, []string{"status"})
	pr.paymentPolls = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "payment_polls_total",
		Help:      "Payment status polls by observed result",
	}, []string{"result"})
	pr.retries = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "provider_retries_total",
		Help:      "Retried provider calls (transient failures)",
	}, []string{"op"})
	pr.resultSubmits = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "result_submissions_total",
		Help:      "Result hash submissions to the payment service",
	}, []string{"result"})
	pr.httpRequests = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Inbound HTTP requests",
	}, []string{"method", "route", "status"})
	pr.httpLatency = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Inbound HTTP request latency",
		Buckets:   prom.DefBuckets,
	}, []string{"method", "route"})
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.jobsCreated, pr.jobOutcomes, pr.jobDuration,
		pr.paymentPolls, pr.retries, pr.resultSubmits, pr.httpRequests, pr.httpLatency)
	return pr
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	if p == nil || p.reg == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *PrometheusRecorder) BeforeStage(ctx context.Context, _ string) context.Context { return ctx }

func (p *PrometheusRecorder) AfterStage(_ context.Context, stage string, outcome pipeline.Outcome, _ error, elapsed time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	if outcome != pipeline.OutcomeSkipped {
		p.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	}
	p.stageResults.WithLabelValues(stage, string(outcome)).Inc()
}

func (p *PrometheusRecorder) JobCreated() {
	if p == nil || p.jobsCreated == nil {
		return
	}
	p.jobsCreated.Inc()
}

func (p *PrometheusRecorder) JobFinished(state domain.LifecycleState, elapsed time.Duration) {
	if p == nil || p.jobOutcomes == nil {
		return
	}
	p.jobOutcomes.WithLabelValues(string(state)).Inc()
	p.jobDuration.WithLabelValues(string(state)).Observe(elapsed.Seconds())
}

func (p *PrometheusRecorder) PaymentPolled(result string) {
	if p == nil || p.paymentPolls == nil {
		return
	}
	p.paymentPolls.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) ResultSubmitted(err error) {
	if p == nil || p.resultSubmits == nil {
		return
	}
	res := "success"
	if err != nil {
		res = "failed"
	}
	p.resultSubmits.WithLabelValues(res).Inc()
}

// RetryHook returns a retry.Policy OnRetry callback counting retries of op.
func (p *PrometheusRecorder) RetryHook(op string) func(attempt int, err error, wait time.Duration) {
	return func(int, error, time.Duration) {
		if p == nil || p.retries == nil {
			return
		}
		p.retries.WithLabelValues(op).Inc()
	}
}

func (p *PrometheusRecorder) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if p == nil || p.httpRequests == nil {
		return
	}
	p.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	p.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
