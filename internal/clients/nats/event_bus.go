// Package nats publishes job lifecycle events on a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/platform/logger"
)

type EventBus struct {
	log     *logger.Logger
	conn    *nats.Conn
	subject string
}

func NewEventBus(log *logger.Logger, url, subject string) (*EventBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("missing NATS_URL")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "content.jobs"
	}
	conn, err := nats.Connect(url,
		nats.Name("contentagent"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	l := log.With("service", "NATSEventBus")
	l.Info("NATS event bus connected", "url", url, "subject", subject)
	return &EventBus{log: l, conn: conn, subject: subject}, nil
}

func (b *EventBus) Publish(ctx context.Context, ev domain.JobEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// StartForwarder delivers events to onEvent until ctx is done.
func (b *EventBus) StartForwarder(ctx context.Context, onEvent func(ev domain.JobEvent)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	sub, err := b.conn.Subscribe(b.subject, func(m *nats.Msg) {
		var ev domain.JobEvent
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			b.log.Warn("bad NATS job event payload", "error", err)
			return
		}
		onEvent(ev)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	// The subscription must reach the server before the caller publishes.
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("nats subscribe: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}

func (b *EventBus) Close() error {
	if b == nil || b.conn == nil {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return err
	}
	return nil
}
