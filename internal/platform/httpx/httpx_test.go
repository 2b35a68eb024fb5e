package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := map[int]bool{
		200: false,
		400: false,
		404: false,
		408: true,
		429: true,
		500: true,
		503: true,
	}
	for code, want := range cases {
		if got := IsRetryableHTTPStatus(code); got != want {
			t.Fatalf("IsRetryableHTTPStatus(%d)=%v want %v", code, got, want)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	if IsRetryableError(nil) {
		t.Fatalf("nil must not be retryable")
	}
	if !IsRetryableError(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)) {
		t.Fatalf("deadline exceeded should be retryable")
	}
	if !IsRetryableError(&StatusError{StatusCode: 502}) {
		t.Fatalf("502 should be retryable")
	}
	if IsRetryableError(&StatusError{StatusCode: 401}) {
		t.Fatalf("401 should not be retryable")
	}
	if IsRetryableError(errors.New("bad json")) {
		t.Fatalf("plain errors should not be retryable")
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "7")
	if got := RetryAfterDuration(resp, time.Second, 5*time.Second); got != 5*time.Second {
		t.Fatalf("expected cap at 5s, got %s", got)
	}
	if got := RetryAfterDuration(nil, time.Second, 0); got != time.Second {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestJitterBounds(t *testing.T) {
	base := 10 * time.Second
	for i := 0; i < 100; i++ {
		d := Jitter(base, 0.2)
		if d < 8*time.Second || d > 12*time.Second {
			t.Fatalf("jitter out of bounds: %s", d)
		}
	}
	if Jitter(base, 0) != base {
		t.Fatalf("zero fraction should return base")
	}
}
