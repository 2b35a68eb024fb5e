package app

import (
	"fmt"

	"github.com/yungbote/contentagent/internal/config"
	"github.com/yungbote/contentagent/internal/content"
	"github.com/yungbote/contentagent/internal/data/db"
	"github.com/yungbote/contentagent/internal/data/repos"
	"github.com/yungbote/contentagent/internal/jobs"
	"github.com/yungbote/contentagent/internal/observability"
	"github.com/yungbote/contentagent/internal/pipeline"
	"github.com/yungbote/contentagent/internal/platform/logger"
)

type Services struct {
	Runner     *content.Runner
	Store      *jobs.Store
	Controller *jobs.Controller
	Status     jobs.StatusService
	Retention  *jobs.Retention // nil when retention is disabled
}

// NewContentRunner builds the research -> copy -> image -> hashtags runner
// with tracing and metrics attached to every stage.
func NewContentRunner(log *logger.Logger, cfg *config.Config, clients ContentClients, metrics *observability.PrometheusRecorder) (*content.Runner, error) {
	deps := content.Deps{
		Search: clients.Search,
		LLM:    clients.LLM,
		Prompts: content.Prompts{
			Research:   cfg.Prompts.Research,
			Copywriter: cfg.Prompts.Copywriter,
			Hashtags:   cfg.Prompts.Hashtags,
		},
	}
	if clients.Images != nil {
		deps.Images = clients.Images
	}
	exec, err := content.NewPipeline(deps)
	if err != nil {
		return nil, fmt.Errorf("build content pipeline: %w", err)
	}
	obs := pipeline.MultiObserver{observability.NewStageTracer(), metrics}
	return content.NewRunner(exec, obs, log), nil
}

func wireArchive(log *logger.Logger, cfg config.ArchiveConfig) (*db.Service, jobs.Archive, error) {
	if !cfg.Enabled() {
		return nil, nil, nil
	}
	log.Info("Opening job archive...", "driver", cfg.Driver)
	svc, err := db.Open(log, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	if err := svc.AutoMigrate(); err != nil {
		_ = svc.Close()
		return nil, nil, fmt.Errorf("archive automigrate: %w", err)
	}
	rs := repos.New(svc.DB(), log)
	return svc, rs.JobArchive, nil
}

func wireServices(log *logger.Logger, cfg *config.Config, clients Clients, archive jobs.Archive, metrics *observability.PrometheusRecorder) (Services, error) {
	log.Info("Wiring services...")

	runner, err := NewContentRunner(log, cfg, clients.ContentClients, metrics)
	if err != nil {
		return Services{}, err
	}

	publisher := jobs.MultiPublisher{jobs.NewLogPublisher(log)}
	if clients.EventBus != nil {
		publisher = append(publisher, clients.EventBus)
	}

	// The controller and monitor name each payment op themselves.
	paymentRetry := retryPolicy(cfg.Retry, "payment", metrics)
	paymentRetry.Op = ""

	store := jobs.NewStore()
	controller, err := jobs.NewController(log, jobs.Deps{
		Store:     store,
		Provider:  clients.Payment,
		Runner:    runner,
		Publisher: publisher,
		Archive:   archive,
		Metrics:   metrics,
	}, jobs.Options{
		PollInterval: cfg.Payment.PollInterval.Duration,
		AbandonAfter: cfg.Payment.AbandonAfter.Duration,
		Retry:        paymentRetry,
		SubmitResult: cfg.Payment.SubmitResult,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init job controller: %w", err)
	}

	status := jobs.NewStatusService(log, store, clients.Payment, archive, retryPolicy(cfg.Retry, "payment.status_query", metrics))

	var retention *jobs.Retention
	if cfg.Jobs.Retention.Duration > 0 {
		retention, err = jobs.NewRetention(log, store, cfg.Jobs.Retention.Duration, cfg.Jobs.SweepInterval.Duration)
		if err != nil {
			return Services{}, fmt.Errorf("init retention: %w", err)
		}
	}

	return Services{
		Runner:     runner,
		Store:      store,
		Controller: controller,
		Status:     status,
		Retention:  retention,
	}, nil
}
