package app

import (
	"context"
	"fmt"

	"github.com/yungbote/contentagent/internal/clients/imagegen"
	"github.com/yungbote/contentagent/internal/clients/masumi"
	natsbus "github.com/yungbote/contentagent/internal/clients/nats"
	"github.com/yungbote/contentagent/internal/clients/openai"
	"github.com/yungbote/contentagent/internal/clients/redis"
	"github.com/yungbote/contentagent/internal/clients/serp"
	"github.com/yungbote/contentagent/internal/config"
	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/observability"
	"github.com/yungbote/contentagent/internal/platform/logger"
	"github.com/yungbote/contentagent/internal/retry"
)

// EventBus is implemented by the redis and nats job event transports.
type EventBus interface {
	Publish(ctx context.Context, ev domain.JobEvent) error
	StartForwarder(ctx context.Context, onEvent func(ev domain.JobEvent)) error
	Close() error
}

// ContentClients are the providers a pipeline run talks to.
type ContentClients struct {
	Search *serp.Client
	LLM    openai.Client
	Images *imagegen.Client // nil when no image agent is configured
}

type Clients struct {
	ContentClients
	Payment  *masumi.Client
	EventBus EventBus // nil for the log-only backend
}

func retryPolicy(cfg config.RetryConfig, op string, metrics *observability.PrometheusRecorder) retry.Policy {
	return retry.Policy{
		Op:          op,
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay.Duration,
		MaxDelay:    cfg.MaxDelay.Duration,
		JitterFrac:  cfg.Jitter,
		OnRetry:     metrics.RetryHook(op),
	}
}

// WireContentClients builds the providers a pipeline run needs. metrics may be nil.
func WireContentClients(log *logger.Logger, cfg *config.Config, metrics *observability.PrometheusRecorder) (ContentClients, error) {
	log.Info("Wiring content clients...")

	search, err := serp.New(log, serp.Options{
		APIKey:     cfg.Search.APIKey,
		BaseURL:    cfg.Search.BaseURL,
		Engine:     cfg.Search.Engine,
		Location:   cfg.Search.Location,
		Language:   cfg.Search.Language,
		NumResults: cfg.Search.NumResults,
		Timeout:    cfg.Search.Timeout.Duration,
		Retry:      retryPolicy(cfg.Retry, "serpapi.search", metrics),
	})
	if err != nil {
		return ContentClients{}, fmt.Errorf("init search client: %w", err)
	}

	llm, err := openai.NewClient(log, openai.Options{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout.Duration,
		Retry:       retryPolicy(cfg.Retry, "openai.chat_completion", metrics),
	})
	if err != nil {
		return ContentClients{}, fmt.Errorf("init llm client: %w", err)
	}

	out := ContentClients{Search: search, LLM: llm}
	if !cfg.Image.Enabled() {
		log.Info("Image agent not configured; posts will ship without images")
		return out, nil
	}

	purchaser, err := masumi.New(log.With("payment_role", "image_purchase"), masumi.Options{
		BaseURL:      cfg.Image.PaymentServiceURL,
		APIKey:       cfg.Image.PaymentAPIKey,
		APIKeyHeader: cfg.Image.PaymentAPIKeyHeader,
		Network:      cfg.Image.Network,
		Timeout:      cfg.Payment.Timeout.Duration,
	})
	if err != nil {
		return ContentClients{}, fmt.Errorf("init image payment client: %w", err)
	}
	images, err := imagegen.New(log, purchaser, imagegen.Options{
		AgentURL:                cfg.Image.AgentURL,
		ModelType:               cfg.Image.ModelType,
		IdentifierFromPurchaser: cfg.Image.IdentifierFromPurchaser,
		IPFSGateway:             cfg.Image.IPFSGateway,
		PollInterval:            cfg.Image.PollInterval.Duration,
		MaxPolls:                cfg.Image.MaxPolls,
		Timeout:                 cfg.Image.Timeout.Duration,
		Retry:                   retryPolicy(cfg.Retry, "image_agent.request", metrics),
	})
	if err != nil {
		return ContentClients{}, fmt.Errorf("init image client: %w", err)
	}
	out.Images = images
	return out, nil
}

func wireClients(log *logger.Logger, cfg *config.Config, metrics *observability.PrometheusRecorder) (Clients, error) {
	content, err := WireContentClients(log, cfg, metrics)
	if err != nil {
		return Clients{}, err
	}

	log.Info("Wiring payment client...")
	pay, err := masumi.New(log, masumi.Options{
		BaseURL:         cfg.Payment.ServiceURL,
		APIKey:          cfg.Payment.APIKey,
		APIKeyHeader:    cfg.Payment.APIKeyHeader,
		AgentIdentifier: cfg.Agent.Identifier,
		Network:         cfg.Payment.Network,
		PayByWindow:     cfg.Payment.PayByWindow.Duration,
		SubmitWindow:    cfg.Payment.SubmitWindow.Duration,
		Timeout:         cfg.Payment.Timeout.Duration,
		Amount:          cfg.Payment.Amount,
		Unit:            cfg.Payment.Unit,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init payment client: %w", err)
	}

	bus, err := wireEventBus(log, cfg.Events)
	if err != nil {
		return Clients{}, err
	}

	return Clients{
		ContentClients: content,
		Payment:        pay,
		EventBus:       bus,
	}, nil
}

func wireEventBus(log *logger.Logger, cfg config.EventsConfig) (EventBus, error) {
	switch cfg.Backend {
	case "redis":
		b, err := redis.NewEventBus(log, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			return nil, fmt.Errorf("init redis event bus: %w", err)
		}
		return b, nil
	case "nats":
		b, err := natsbus.NewEventBus(log, cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, fmt.Errorf("init nats event bus: %w", err)
		}
		return b, nil
	default:
		return nil, nil
	}
}

// OpenEventBus connects to the configured transport for read-only use.
func OpenEventBus(log *logger.Logger, cfg config.EventsConfig) (EventBus, error) {
	bus, err := wireEventBus(log, cfg)
	if err != nil {
		return nil, err
	}
	if bus == nil {
		return nil, fmt.Errorf("events backend %q has no transport to follow", cfg.Backend)
	}
	return bus, nil
}
