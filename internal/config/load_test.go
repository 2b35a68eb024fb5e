package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "content_agent.yml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("PAYMENT_SERVICE_URL", "http://localhost:3001/api/v1/")
	t.Setenv("PAYMENT_API_KEY", "pay-key")
	t.Setenv("AGENT_IDENTIFIER", "agent-123")
	t.Setenv("SERPAPI_KEY", "serp-key")
	t.Setenv("OPENAI_API_KEY", "oa-key")
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONTENT_AGENT_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Model != "gpt-4o-mini" || cfg.LLM.Temperature != 0.4 {
		t.Fatalf("llm defaults = %+v", cfg.LLM)
	}
	if cfg.Search.Engine != "google" || cfg.Search.NumResults != 8 {
		t.Fatalf("search defaults = %+v", cfg.Search)
	}
	if cfg.Payment.Network != "Preprod" || cfg.Payment.AbandonAfter.Duration != 24*time.Hour {
		t.Fatalf("payment defaults = %+v", cfg.Payment)
	}
	if cfg.Image.Enabled() || cfg.Archive.Enabled() {
		t.Fatalf("optional blocks should be disabled by default")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	p := writeConfig(t, `
search:
  engine: bing
  num_results: 5
llm:
  model: gpt-4o
  temperature: 0.7
payment:
  poll_interval: 30
  abandon_after: 2h
prompts:
  research: "custom {topic}"
`)
	t.Setenv("CONTENT_AGENT_CONFIG", p)
	t.Setenv("OPENAI_MODEL", "gpt-4.1-mini")
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.Engine != "bing" || cfg.Search.NumResults != 5 {
		t.Fatalf("search = %+v", cfg.Search)
	}
	if cfg.Search.Location != "United States" {
		t.Fatalf("unset file keys should keep defaults, got location %q", cfg.Search.Location)
	}
	if cfg.LLM.Model != "gpt-4.1-mini" {
		t.Fatalf("env should override file model, got %q", cfg.LLM.Model)
	}
	if cfg.Payment.PollInterval.Duration != 30*time.Second {
		t.Fatalf("numeric duration = %v", cfg.Payment.PollInterval.Duration)
	}
	if cfg.Payment.AbandonAfter.Duration != 2*time.Hour {
		t.Fatalf("abandon_after = %v", cfg.Payment.AbandonAfter.Duration)
	}
	if cfg.Payment.ServiceURL != "http://localhost:3001/api/v1" {
		t.Fatalf("service url should be trimmed, got %q", cfg.Payment.ServiceURL)
	}
	if cfg.Prompts.Research != "custom {topic}" {
		t.Fatalf("prompts = %+v", cfg.Prompts)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	t.Setenv("CONTENT_AGENT_CONFIG", filepath.Join(t.TempDir(), "nope.yml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestValidateRequired(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONTENT_AGENT_CONFIG", "")
	setRequired(t)
	t.Setenv("PAYMENT_SERVICE_URL", "ftp://payments")
	t.Setenv("AGENT_IDENTIFIER", "REPLACE_ME")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"PAYMENT_SERVICE_URL", "AGENT_IDENTIFIER", "OPENAI_API_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %s", err, want)
		}
	}
	if strings.Contains(err.Error(), "SERPAPI_KEY") {
		t.Fatalf("unexpected SERPAPI_KEY complaint: %v", err)
	}
}

func TestValidatePipelineIgnoresPayment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONTENT_AGENT_CONFIG", "")
	t.Setenv("SERPAPI_KEY", "serp-key")
	t.Setenv("OPENAI_API_KEY", "oa-key")
	t.Setenv("PAYMENT_SERVICE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.ValidatePipeline(); err != nil {
		t.Fatalf("ValidatePipeline: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate should still require payment settings")
	}
}

func TestImageInheritsPaymentSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONTENT_AGENT_CONFIG", "")
	setRequired(t)
	t.Setenv("IMAGE_AGENT_BASE_URL", "https://images.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Image.Enabled() {
		t.Fatalf("image should be enabled")
	}
	if cfg.Image.AgentURL != "https://images.example.com" {
		t.Fatalf("agent url = %q", cfg.Image.AgentURL)
	}
	if cfg.Image.PaymentServiceURL != cfg.Payment.ServiceURL || cfg.Image.PaymentAPIKey != "pay-key" {
		t.Fatalf("image payment settings not inherited: %+v", cfg.Image)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateEventBackend(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONTENT_AGENT_CONFIG", "")
	setRequired(t)
	t.Setenv("EVENTS_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Events.Backend != "redis" {
		t.Fatalf("backend = %q", cfg.Events.Backend)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "REDIS_ADDR") {
		t.Fatalf("expected REDIS_ADDR error, got %v", err)
	}
}

func TestTracingFromFileAndEnv(t *testing.T) {
	p := writeConfig(t, `
tracing:
  enabled: true
  endpoint: collector:4318
  sample_ratio: 2
`)
	t.Setenv("CONTENT_AGENT_CONFIG", p)
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "authorization=Bearer x, broken ,=y")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tr := cfg.Tracing
	if !tr.Enabled || tr.Endpoint != "collector:4318" || !tr.Insecure {
		t.Fatalf("tracing = %+v", tr)
	}
	if tr.SampleRatio != 1 {
		t.Fatalf("sample ratio not clamped: %v", tr.SampleRatio)
	}
	if len(tr.Headers) != 1 || tr.Headers["authorization"] != "Bearer x" {
		t.Fatalf("headers = %v", tr.Headers)
	}
}
