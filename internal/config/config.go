package config

import "time"

type Duration struct {
	Duration time.Duration
}

type Config struct {
	Env string `yaml:"env"`

	HTTP    HTTPConfig    `yaml:"http"`
	Agent   AgentConfig   `yaml:"agent"`
	Payment PaymentConfig `yaml:"payment"`
	Search  SearchConfig  `yaml:"search"`
	LLM     LLMConfig     `yaml:"llm"`
	Image   ImageConfig   `yaml:"image"`
	Retry   RetryConfig   `yaml:"retry"`
	Jobs    JobsConfig    `yaml:"jobs"`
	Events  EventsConfig  `yaml:"events"`
	Archive ArchiveConfig `yaml:"archive"`
	Tracing TracingConfig `yaml:"tracing"`
	Prompts PromptsConfig `yaml:"prompts"`
}

type HTTPConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	IdleTimeout       Duration `yaml:"idle_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
	MaxRequestBytes   int64    `yaml:"max_request_bytes"`

	// CORSOrigins is the browser allow-list; empty allows any origin.
	CORSOrigins []string `yaml:"cors_origins"`
}

// AgentConfig describes this agent as registered with the payment network.
type AgentConfig struct {
	Identifier  string `yaml:"identifier"`
	SellerVKey  string `yaml:"seller_vkey"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type PaymentConfig struct {
	ServiceURL   string   `yaml:"service_url"`
	APIKey       string   `yaml:"api_key"`
	APIKeyHeader string   `yaml:"api_key_header"`
	Network      string   `yaml:"network"`
	Amount       string   `yaml:"amount"`
	Unit         string   `yaml:"unit"`
	PollInterval Duration `yaml:"poll_interval"`

	// AbandonAfter fails jobs still awaiting payment; 0 disables.
	AbandonAfter Duration `yaml:"abandon_after"`
	PayByWindow  Duration `yaml:"pay_by_window"`
	SubmitWindow Duration `yaml:"submit_window"`
	SubmitResult bool     `yaml:"submit_result"`
	Timeout      Duration `yaml:"timeout"`
}

type SearchConfig struct {
	APIKey     string   `yaml:"api_key"`
	BaseURL    string   `yaml:"base_url"`
	Engine     string   `yaml:"engine"`
	Location   string   `yaml:"location"`
	Language   string   `yaml:"language"`
	NumResults int      `yaml:"num_results"`
	Timeout    Duration `yaml:"timeout"`
}

type LLMConfig struct {
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	Temperature float64  `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	Timeout     Duration `yaml:"timeout"`
}

// ImageConfig enables the paid image agent when AgentURL is set.
// Payment fields fall back to the main payment block.
type ImageConfig struct {
	AgentURL                string   `yaml:"agent_url"`
	ModelType               string   `yaml:"model_type"`
	IdentifierFromPurchaser string   `yaml:"identifier_from_purchaser"`
	IPFSGateway             string   `yaml:"ipfs_gateway"`
	PaymentServiceURL       string   `yaml:"payment_service_url"`
	PaymentAPIKey           string   `yaml:"payment_api_key"`
	PaymentAPIKeyHeader     string   `yaml:"payment_api_key_header"`
	Network                 string   `yaml:"network"`
	PollInterval            Duration `yaml:"poll_interval"`
	MaxPolls                int      `yaml:"max_polls"`
	Timeout                 Duration `yaml:"timeout"`
}

func (c ImageConfig) Enabled() bool { return c.AgentURL != "" }

type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
	Jitter      float64  `yaml:"jitter"`
}

type JobsConfig struct {
	Retention     Duration `yaml:"retention"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// EventsConfig selects where job lifecycle events go: "log", "redis" or "nats".
type EventsConfig struct {
	Backend      string `yaml:"backend"`
	RedisAddr    string `yaml:"redis_addr"`
	RedisChannel string `yaml:"redis_channel"`
	NATSURL      string `yaml:"nats_url"`
	NATSSubject  string `yaml:"nats_subject"`
}

// ArchiveConfig persists terminal jobs; an empty Driver disables the archive.
type ArchiveConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

func (c ArchiveConfig) Enabled() bool { return c.Driver != "" }

// TracingConfig drives span export. An empty Endpoint exports to stdout.
type TracingConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Endpoint    string            `yaml:"endpoint"`
	Headers     map[string]string `yaml:"headers"`
	Insecure    bool              `yaml:"insecure"`
	SampleRatio float64           `yaml:"sample_ratio"`
}

type PromptsConfig struct {
	Research   string `yaml:"research"`
	Copywriter string `yaml:"copywriter"`
	Hashtags   string `yaml:"hashtags"`
}
