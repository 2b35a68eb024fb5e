package jobs

import (
	"context"
	"errors"

	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/platform/logger"
)

// Publisher receives every lifecycle transition, in order per job.
type Publisher interface {
	Publish(ctx context.Context, ev domain.JobEvent) error
}

type logPublisher struct {
	log *logger.Logger
}

// NewLogPublisher writes events to the log only.
func NewLogPublisher(log *logger.Logger) Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &logPublisher{log: log.With("service", "JobEventLog")}
}

func (p *logPublisher) Publish(_ context.Context, ev domain.JobEvent) error {
	p.log.Info("job transition",
		"job_id", ev.JobID,
		"from", ev.From,
		"to", ev.To,
		"payment_status", ev.Payment,
	)
	return nil
}

// MultiPublisher publishes to each member and joins their errors.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, ev domain.JobEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
