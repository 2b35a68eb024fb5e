package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/contentagent/internal/platform/httpx"
	"github.com/yungbote/contentagent/internal/platform/providererr"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestDoSendsHeadersAndDecodes(t *testing.T) {
	c := New("payment", "https://pay.example/api/v1/", time.Second)
	c.Header.Set("token", "secret")
	c.WithHTTPClient(&http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.String() != "https://pay.example/api/v1/payment/?limit=10" {
			t.Fatalf("unexpected url %s", r.URL)
		}
		if r.Header.Get("token") != "secret" {
			t.Fatalf("missing token header")
		}
		return respond(200, `{"status":"success"}`), nil
	})})

	var out struct {
		Status string `json:"status"`
	}
	if err := c.Get(context.Background(), "/payment/", url.Values{"limit": {"10"}}, &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out.Status != "success" {
		t.Fatalf("status=%q", out.Status)
	}
}

func TestDoClassifiesStatus(t *testing.T) {
	cases := map[int]bool{503: true, 429: true, 400: false, 401: false}
	for status, transient := range cases {
		c := New("serp", "https://serp.example", 0).WithHTTPClient(&http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return respond(status, `{"error":"x"}`), nil
		})})
		err := c.Post(context.Background(), "/search", map[string]string{"q": "x"}, nil)
		if providererr.IsTransient(err) != transient || providererr.IsPermanent(err) == transient {
			t.Fatalf("status %d: unexpected classification %v", status, err)
		}
		var serr *httpx.StatusError
		if !errors.As(err, &serr) || serr.StatusCode != status {
			t.Fatalf("status %d: expected StatusError, got %v", status, err)
		}
	}
}

func TestDoDecodeFailureIsPermanent(t *testing.T) {
	c := New("llm", "https://llm.example", 0).WithHTTPClient(&http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return respond(200, `not json`), nil
	})})
	var out map[string]any
	if err := c.Get(context.Background(), "/x", nil, &out); !providererr.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestDoCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New("llm", "https://llm.example", 0).WithHTTPClient(&http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return nil, r.Context().Err()
	})})
	err := c.Get(ctx, "/x", nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if providererr.IsTransient(err) || providererr.IsPermanent(err) {
		t.Fatalf("cancellation should not be classified, got %v", err)
	}
}
