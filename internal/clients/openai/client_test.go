package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/contentagent/internal/platform/logger"
	"github.com/yungbote/contentagent/internal/retry"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, rt roundTripperFunc) *client {
	t.Helper()
	c, err := NewClient(logger.Nop(), Options{
		APIKey: "sk-test",
		Model:  "test-model",
		Retry:  retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleep: noSleep},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	cc := c.(*client)
	cc.http.WithHTTPClient(&http.Client{Transport: rt})
	return cc
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Header: http.Header{}, Body: io.NopCloser(strings.NewReader(body))}
}

func TestCompleteSendsMessagesAndStripsFences(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path=%s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("authorization=%q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "user prompt" {
			t.Fatalf("unexpected request %+v", req)
		}
		return jsonResponse(200, `{"choices":[{"message":{"content":"`+"```json\\n{\\\"a\\\":1}\\n```"+`"}}]}`), nil
	})

	out, err := c.Complete(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"a":1}` {
		t.Fatalf("out=%q", out)
	}
}

func TestCompleteRetriesTransientStatus(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return jsonResponse(503, `overloaded`), nil
		}
		return jsonResponse(200, `{"choices":[{"message":{"content":"ok"}}]}`), nil
	})
	out, err := c.Complete(context.Background(), "s", "u")
	if err != nil || out != "ok" {
		t.Fatalf("out=%q err=%v", out, err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestCompleteDoesNotRetryBadRequest(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(400, `{"error":"bad"}`), nil
	})
	if _, err := c.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"choices":[]}`), nil
	})
	_, err := c.Complete(context.Background(), "s", "u")
	if !errors.Is(err, errEmptyCompletion) {
		t.Fatalf("expected errEmptyCompletion, got %v", err)
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"plain":                      "plain",
		"```\n{\"a\":1}\n```":        `{"a":1}`,
		"```json\n{\"a\":1}\n```":    `{"a":1}`,
		"  ```JSON\n[1,2]\n```  ":    "[1,2]",
		"```{\"inline\":true}```":    `{"inline":true}`,
	}
	for in, want := range cases {
		if got := stripFences(in); got != want {
			t.Fatalf("stripFences(%q)=%q want %q", in, got, want)
		}
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(logger.Nop(), Options{}); err == nil {
		t.Fatalf("expected missing key error")
	}
}
