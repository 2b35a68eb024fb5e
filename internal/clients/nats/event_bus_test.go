package nats

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/platform/logger"
)

// testBus connects to TEST_NATS_URL; tests skip when it is unset or down.
func testBus(t *testing.T) *EventBus {
	t.Helper()
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}
	b, err := NewEventBus(logger.Nop(), url, fmt.Sprintf("content.jobs.test.%d", time.Now().UnixNano()))
	if err != nil {
		t.Skipf("nats unavailable: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestNewEventBusRequiresURL(t *testing.T) {
	if _, err := NewEventBus(logger.Nop(), " ", ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestPublishReachesForwarder(t *testing.T) {
	b := testBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan domain.JobEvent, 4)
	if err := b.StartForwarder(ctx, func(ev domain.JobEvent) { got <- ev }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}

	sent := domain.JobEvent{
		JobID:   "job-1",
		From:    domain.LifecycleAwaitingPayment,
		To:      domain.LifecycleRunning,
		Payment: domain.PaymentConfirmed,
		At:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := b.Publish(ctx, sent); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case ev := <-got:
		if ev.JobID != sent.JobID || ev.From != sent.From || ev.To != sent.To || ev.Payment != sent.Payment || !ev.At.Equal(sent.At) {
			t.Fatalf("event = %+v, want %+v", ev, sent)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("event not delivered")
	}
}

func TestPublishAfterCancelFails(t *testing.T) {
	b := testBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Publish(ctx, domain.JobEvent{JobID: "job-1"}); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
