package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/contentagent/internal/clients/rest"
	"github.com/yungbote/contentagent/internal/platform/logger"
	"github.com/yungbote/contentagent/internal/platform/providererr"
	"github.com/yungbote/contentagent/internal/retry"
)

const provider = "openai"

// Client produces chat completions for the content agents.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Options struct {
	APIKey      string
	BaseURL     string // default https://api.openai.com/v1
	Model       string // default gpt-4o-mini
	Temperature float64
	MaxTokens   int // 0 leaves the provider default
	Timeout     time.Duration
	Retry       retry.Policy
}

type client struct {
	log         *logger.Logger
	http        *rest.Client
	model       string
	temperature float64
	maxTokens   int
	retry       retry.Policy
}

func NewClient(log *logger.Logger, opts Options) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	hc := rest.New(provider, baseURL, timeout)
	hc.Header.Set("Authorization", "Bearer "+apiKey)

	l := log.With("service", "OpenAIClient")
	p := opts.Retry
	if p.Op == "" {
		p.Op = "openai.chat_completion"
	}
	return &client{
		log:         l,
		http:        hc,
		model:       model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		retry:       p.WithLogger(l),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

var errEmptyCompletion = errors.New("completion returned no choices")

func (c *client) Complete(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	return retry.Call(ctx, c.retry, func(ctx context.Context) (string, error) {
		var resp chatResponse
		if err := c.http.Post(ctx, "/chat/completions", req, &resp); err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", providererr.Permanent(provider, errEmptyCompletion)
		}
		return stripFences(resp.Choices[0].Message.Content), nil
	})
}

// stripFences drops a surrounding ``` block so callers see the raw payload.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop a language tag such as ```json
		if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
