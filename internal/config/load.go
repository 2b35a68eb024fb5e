package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/contentagent/internal/platform/envutil"
)

// UnmarshalYAML accepts a duration string ("90s", "24h") or a bare number of seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	s := strings.TrimSpace(value.Value)
	if s == "" || value.Tag == "!!null" {
		d.Duration = 0
		return nil
	}
	if value.Tag == "!!int" || value.Tag == "!!float" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("duration %q: %w", s, err)
		}
		d.Duration = time.Duration(f * float64(time.Second))
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or a number of seconds: %w", err)
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return d.Duration.String(), nil }

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8000",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			IdleTimeout:       Duration{Duration: 2 * time.Minute},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			MaxRequestBytes:   1 << 20,
		},
		Payment: PaymentConfig{
			APIKeyHeader: "token",
			Network:      "Preprod",
			Amount:       "1000000",
			Unit:         "lovelace",
			PollInterval: Duration{Duration: 60 * time.Second},
			AbandonAfter: Duration{Duration: 24 * time.Hour},
			PayByWindow:  Duration{Duration: 12 * time.Hour},
			SubmitWindow: Duration{Duration: 24 * time.Hour},
			SubmitResult: true,
			Timeout:      Duration{Duration: 30 * time.Second},
		},
		Search: SearchConfig{
			BaseURL:    "https://serpapi.com",
			Engine:     "google",
			Location:   "United States",
			Language:   "en",
			NumResults: 8,
			Timeout:    Duration{Duration: 30 * time.Second},
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.4,
			Timeout:     Duration{Duration: 120 * time.Second},
		},
		Image: ImageConfig{
			ModelType:    "DALLE",
			IPFSGateway:  "https://ipfs.io/ipfs",
			PollInterval: Duration{Duration: 60 * time.Second},
			MaxPolls:     60,
			Timeout:      Duration{Duration: 60 * time.Second},
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   Duration{Duration: time.Second},
			MaxDelay:    Duration{Duration: 30 * time.Second},
			Jitter:      0.2,
		},
		Jobs: JobsConfig{
			Retention:     Duration{Duration: 24 * time.Hour},
			SweepInterval: Duration{Duration: 10 * time.Minute},
		},
		Events: EventsConfig{
			Backend:      "log",
			RedisChannel: "content_jobs",
			NATSSubject:  "content.jobs",
		},
		Tracing: TracingConfig{SampleRatio: 1},
	}
}

// Load builds the configuration from defaults, the optional YAML file and the
// environment, then normalizes it. Callers pick Validate or ValidatePipeline
// depending on what they are about to run.
func Load() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("CONTENT_AGENT_CONFIG"))
	explicit := cfgPath != ""
	if !explicit {
		if wd, err := os.Getwd(); err == nil {
			cfgPath = filepath.Join(wd, "config", "content_agent.yml")
		}
	}
	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", cfgPath, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	applyEnv(cfg)
	cfg.normalize()
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)
	cfg.HTTP.Addr = envutil.String("HTTP_ADDR", cfg.HTTP.Addr)
	if port := envutil.String("PORT", ""); port != "" && os.Getenv("HTTP_ADDR") == "" {
		cfg.HTTP.Addr = ":" + port
	}
	if v := envutil.String("CORS_ORIGINS", ""); v != "" {
		cfg.HTTP.CORSOrigins = splitList(v)
	}

	cfg.Agent.Identifier = envutil.String("AGENT_IDENTIFIER", cfg.Agent.Identifier)
	cfg.Agent.SellerVKey = envutil.String("SELLER_VKEY", cfg.Agent.SellerVKey)

	p := &cfg.Payment
	p.ServiceURL = envutil.String("PAYMENT_SERVICE_URL", p.ServiceURL)
	p.APIKey = envutil.String("PAYMENT_API_KEY", p.APIKey)
	p.APIKeyHeader = envutil.String("PAYMENT_API_KEY_HEADER", p.APIKeyHeader)
	p.Network = envutil.String("NETWORK", p.Network)
	p.Amount = envutil.String("PAYMENT_AMOUNT", p.Amount)
	p.Unit = envutil.String("PAYMENT_UNIT", p.Unit)
	p.PollInterval.Duration = envutil.Duration("PAYMENT_POLL_INTERVAL", p.PollInterval.Duration)
	p.AbandonAfter.Duration = envutil.Duration("PAYMENT_ABANDON_AFTER", p.AbandonAfter.Duration)
	p.SubmitResult = envutil.Bool("PAYMENT_SUBMIT_RESULT", p.SubmitResult)

	cfg.Search.APIKey = envutil.String("SERPAPI_KEY", cfg.Search.APIKey)
	cfg.Search.Engine = envutil.String("SERPAPI_ENGINE", cfg.Search.Engine)
	cfg.Search.Location = envutil.String("SERPAPI_LOCATION", cfg.Search.Location)
	cfg.Search.Language = envutil.String("SERPAPI_LANGUAGE", cfg.Search.Language)
	cfg.Search.NumResults = envutil.Int("SERPAPI_NUM_RESULTS", cfg.Search.NumResults)

	cfg.LLM.APIKey = envutil.String("OPENAI_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.BaseURL = envutil.String("OPENAI_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Model = envutil.String("OPENAI_MODEL", cfg.LLM.Model)
	cfg.LLM.Temperature = envutil.Float("OPENAI_TEMPERATURE", cfg.LLM.Temperature)
	cfg.LLM.MaxTokens = envutil.Int("OPENAI_MAX_TOKENS", cfg.LLM.MaxTokens)

	img := &cfg.Image
	img.AgentURL = envutil.String("IMAGE_AGENT_BASE_URL", img.AgentURL)
	img.ModelType = envutil.String("IMAGE_AGENT_MODEL_TYPE", img.ModelType)
	img.IdentifierFromPurchaser = envutil.String("IMAGE_IDENTIFIER_FROM_PURCHASER", img.IdentifierFromPurchaser)
	img.IPFSGateway = envutil.String("IMAGE_IPFS_GATEWAY", img.IPFSGateway)
	img.PaymentServiceURL = envutil.String("IMAGE_PAYMENT_SERVICE_URL", img.PaymentServiceURL)
	img.PaymentAPIKey = envutil.String("IMAGE_PAYMENT_API_KEY", img.PaymentAPIKey)
	img.PaymentAPIKeyHeader = envutil.String("IMAGE_PAYMENT_API_KEY_HEADER", img.PaymentAPIKeyHeader)
	img.Network = envutil.String("IMAGE_NETWORK", img.Network)
	img.PollInterval.Duration = envutil.Duration("IMAGE_POLL_INTERVAL", img.PollInterval.Duration)
	img.MaxPolls = envutil.Int("IMAGE_MAX_POLLS", img.MaxPolls)

	cfg.Retry.MaxAttempts = envutil.Int("RETRY_MAX_ATTEMPTS", cfg.Retry.MaxAttempts)
	cfg.Retry.BaseDelay.Duration = envutil.Duration("RETRY_BASE_DELAY", cfg.Retry.BaseDelay.Duration)
	cfg.Retry.MaxDelay.Duration = envutil.Duration("RETRY_MAX_DELAY", cfg.Retry.MaxDelay.Duration)

	cfg.Jobs.Retention.Duration = envutil.Duration("JOB_RETENTION", cfg.Jobs.Retention.Duration)
	cfg.Jobs.SweepInterval.Duration = envutil.Duration("JOB_SWEEP_INTERVAL", cfg.Jobs.SweepInterval.Duration)

	cfg.Events.Backend = envutil.String("EVENTS_BACKEND", cfg.Events.Backend)
	cfg.Events.RedisAddr = envutil.String("REDIS_ADDR", cfg.Events.RedisAddr)
	cfg.Events.RedisChannel = envutil.String("REDIS_CHANNEL", cfg.Events.RedisChannel)
	cfg.Events.NATSURL = envutil.String("NATS_URL", cfg.Events.NATSURL)
	cfg.Events.NATSSubject = envutil.String("NATS_SUBJECT", cfg.Events.NATSSubject)

	cfg.Archive.Driver = envutil.String("ARCHIVE_DRIVER", cfg.Archive.Driver)
	cfg.Archive.DSN = envutil.String("ARCHIVE_DSN", cfg.Archive.DSN)

	tr := &cfg.Tracing
	tr.Enabled = envutil.Bool("OTEL_ENABLED", tr.Enabled)
	tr.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", tr.Endpoint)
	tr.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", tr.Insecure)
	tr.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", tr.SampleRatio)
	if v := envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""); v != "" {
		tr.Headers = parseHeaders(v)
	}
}

// parseHeaders reads "k1=v1,k2=v2"; malformed pairs are skipped.
func parseHeaders(raw string) map[string]string {
	out := map[string]string{}
	for _, part := range splitList(raw) {
		k, v, ok := strings.Cut(part, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (cfg *Config) normalize() {
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8000"
	}
	if cfg.HTTP.MaxRequestBytes <= 0 {
		cfg.HTTP.MaxRequestBytes = 1 << 20
	}

	cfg.Payment.ServiceURL = strings.TrimRight(strings.TrimSpace(cfg.Payment.ServiceURL), "/")
	if cfg.Payment.APIKeyHeader == "" {
		cfg.Payment.APIKeyHeader = "token"
	}
	if cfg.Payment.Network == "" {
		cfg.Payment.Network = "Preprod"
	}
	if cfg.Payment.PollInterval.Duration <= 0 {
		cfg.Payment.PollInterval.Duration = 60 * time.Second
	}
	if cfg.Payment.AbandonAfter.Duration < 0 {
		cfg.Payment.AbandonAfter.Duration = 0
	}

	if cfg.Search.NumResults <= 0 {
		cfg.Search.NumResults = 8
	}
	cfg.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.LLM.BaseURL), "/")

	img := &cfg.Image
	img.AgentURL = strings.TrimRight(strings.TrimSpace(img.AgentURL), "/")
	img.PaymentServiceURL = strings.TrimRight(strings.TrimSpace(img.PaymentServiceURL), "/")
	if img.PaymentServiceURL == "" {
		img.PaymentServiceURL = cfg.Payment.ServiceURL
	}
	if img.PaymentAPIKey == "" {
		img.PaymentAPIKey = cfg.Payment.APIKey
	}
	if img.PaymentAPIKeyHeader == "" {
		img.PaymentAPIKeyHeader = cfg.Payment.APIKeyHeader
	}
	if img.Network == "" {
		img.Network = cfg.Payment.Network
	}
	img.IPFSGateway = strings.TrimRight(img.IPFSGateway, "/")

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Jobs.SweepInterval.Duration <= 0 {
		cfg.Jobs.SweepInterval.Duration = 10 * time.Minute
	}
	cfg.Events.Backend = strings.ToLower(strings.TrimSpace(cfg.Events.Backend))
	if cfg.Events.Backend == "" {
		cfg.Events.Backend = "log"
	}
	cfg.Archive.Driver = strings.ToLower(strings.TrimSpace(cfg.Archive.Driver))

	cfg.Tracing.Endpoint = strings.TrimSpace(cfg.Tracing.Endpoint)
	cfg.Tracing.SampleRatio = min(max(cfg.Tracing.SampleRatio, 0), 1)
}

// ValidatePipeline checks what a single pipeline run needs.
func (cfg *Config) ValidatePipeline() error {
	var errs []error
	if cfg.Search.APIKey == "" {
		errs = append(errs, errors.New("SERPAPI_KEY is required"))
	}
	if cfg.LLM.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if cfg.Image.Enabled() {
		if err := checkHTTPURL("IMAGE_AGENT_BASE_URL", cfg.Image.AgentURL); err != nil {
			errs = append(errs, err)
		}
		if err := checkHTTPURL("IMAGE_PAYMENT_SERVICE_URL", cfg.Image.PaymentServiceURL); err != nil {
			errs = append(errs, err)
		}
		if cfg.Image.PaymentAPIKey == "" {
			errs = append(errs, errors.New("IMAGE_PAYMENT_API_KEY or PAYMENT_API_KEY is required for image generation"))
		}
	}
	return errors.Join(errs...)
}

// Validate checks everything the HTTP service needs.
func (cfg *Config) Validate() error {
	var errs []error
	if err := checkHTTPURL("PAYMENT_SERVICE_URL", cfg.Payment.ServiceURL); err != nil {
		errs = append(errs, err)
	}
	if cfg.Payment.APIKey == "" {
		errs = append(errs, errors.New("PAYMENT_API_KEY is required"))
	}
	switch id := cfg.Agent.Identifier; {
	case id == "":
		errs = append(errs, errors.New("AGENT_IDENTIFIER is required"))
	case strings.Contains(id, "REPLACE"):
		errs = append(errs, errors.New("AGENT_IDENTIFIER still holds a placeholder"))
	}
	switch cfg.Events.Backend {
	case "log":
	case "redis":
		if cfg.Events.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis event backend"))
		}
	case "nats":
		if cfg.Events.NATSURL == "" {
			errs = append(errs, errors.New("NATS_URL is required for the nats event backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events backend %q", cfg.Events.Backend))
	}
	switch cfg.Archive.Driver {
	case "":
	case "postgres", "sqlite":
		if cfg.Archive.DSN == "" {
			errs = append(errs, errors.New("ARCHIVE_DSN is required when ARCHIVE_DRIVER is set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown archive driver %q", cfg.Archive.Driver))
	}
	if err := cfg.ValidatePipeline(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func checkHTTPURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL", name)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
