package jobs

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/yungbote/contentagent/internal/platform/logger"
)

// Retention periodically evicts finished jobs from memory. Archived jobs
// stay readable through the archive.
type Retention struct {
	log       *logger.Logger
	store     *Store
	ttl       time.Duration
	interval  time.Duration
	now       func() time.Time
	scheduler gocron.Scheduler
}

func NewRetention(log *logger.Logger, store *Store, ttl, interval time.Duration) (*Retention, error) {
	if log == nil {
		log = logger.Nop()
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("retention ttl must be positive")
	}
	if interval <= 0 {
		interval = ttl / 4
		if interval < time.Minute {
			interval = time.Minute
		}
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	r := &Retention{
		log:       log.With("service", "JobRetention"),
		store:     store,
		ttl:       ttl,
		interval:  interval,
		now:       func() time.Time { return time.Now().UTC() },
		scheduler: s,
	}
	if _, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { r.Sweep() }),
		gocron.WithName("job-retention-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to schedule retention sweep: %w", err)
	}
	return r, nil
}

func (r *Retention) Start() {
	r.log.Info("Starting retention sweep", "ttl", r.ttl.String(), "interval", r.interval.String())
	r.scheduler.Start()
}

func (r *Retention) Stop() error {
	return r.scheduler.Shutdown()
}

// Sweep evicts terminal jobs older than the ttl and returns the count.
func (r *Retention) Sweep() int {
	n := r.store.EvictTerminal(r.now().Add(-r.ttl))
	if n > 0 {
		r.log.Info("evicted finished jobs", "count", n, "remaining", r.store.Len())
	}
	return n
}
