package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/pipeline"
)

func TestPrometheusRecorderCounts(t *testing.T) {
	rec := NewPrometheusRecorder(prom.NewRegistry())

	ctx := rec.BeforeStage(context.Background(), "fetch_snippets")
	rec.AfterStage(ctx, "fetch_snippets", pipeline.OutcomeSucceeded, nil, 10*time.Millisecond)
	rec.AfterStage(ctx, "generate_image", pipeline.OutcomeFailed, errors.New("x"), time.Second)
	rec.JobCreated()
	rec.JobFinished(domain.LifecycleCompleted, time.Minute)
	rec.PaymentPolled("pending")
	rec.PaymentPolled("pending")
	rec.ResultSubmitted(nil)
	rec.RetryHook("serpapi.search")(1, errors.New("503"), time.Second)

	if got := testutil.ToFloat64(rec.stageResults.WithLabelValues("generate_image", "failed")); got != 1 {
		t.Fatalf("stage failures=%v", got)
	}
	if got := testutil.ToFloat64(rec.jobsCreated); got != 1 {
		t.Fatalf("jobs created=%v", got)
	}
	if got := testutil.ToFloat64(rec.jobOutcomes.WithLabelValues("completed")); got != 1 {
		t.Fatalf("completed=%v", got)
	}
	if got := testutil.ToFloat64(rec.paymentPolls.WithLabelValues("pending")); got != 2 {
		t.Fatalf("polls=%v", got)
	}
	if got := testutil.ToFloat64(rec.retries.WithLabelValues("serpapi.search")); got != 1 {
		t.Fatalf("retries=%v", got)
	}
	if got := testutil.ToFloat64(rec.resultSubmits.WithLabelValues("success")); got != 1 {
		t.Fatalf("submits=%v", got)
	}
}

func TestPrometheusRecorderHandler(t *testing.T) {
	rec := NewPrometheusRecorder(nil)
	rec.JobCreated()

	rr := httptest.NewRecorder()
	rec.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "contentagent_jobs_created_total 1") {
		t.Fatalf("missing counter in exposition:\n%s", rr.Body.String())
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *PrometheusRecorder
	rec.JobCreated()
	rec.PaymentPolled("x")
	rec.AfterStage(context.Background(), "s", pipeline.OutcomeSucceeded, nil, 0)
	rec.RetryHook("op")(1, nil, 0)
	rec.ObserveHTTP("GET", "/health", 200, time.Millisecond)
}

func TestRecordersOnSeparateRegistriesAreIndependent(t *testing.T) {
	a := NewPrometheusRecorder(prom.NewRegistry())
	b := NewPrometheusRecorder(prom.NewRegistry())
	a.JobCreated()
	a.JobCreated()
	b.JobCreated()

	if got := testutil.ToFloat64(a.jobsCreated); got != 2 {
		t.Fatalf("a jobs created=%v", got)
	}
	if got := testutil.ToFloat64(b.jobsCreated); got != 1 {
		t.Fatalf("b jobs created=%v", got)
	}
	if n := testutil.CollectAndCount(a.stageResults); n != 0 {
		t.Fatalf("unused stage results should export no series, got %d", n)
	}
}
