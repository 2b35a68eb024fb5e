// Package rest is the small JSON-over-HTTP client shared by the provider
// integrations. Every error it returns is classified as transient or
// permanent for the retry layer.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/contentagent/internal/platform/httpx"
	"github.com/yungbote/contentagent/internal/platform/providererr"
)

type Client struct {
	Provider string
	BaseURL  string
	Header   http.Header
	Timeout  time.Duration
	HTTP     *http.Client
}

func New(provider, baseURL string, timeout time.Duration) *Client {
	return &Client{
		Provider: provider,
		BaseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Header:   http.Header{},
		Timeout:  timeout,
		HTTP:     &http.Client{Transport: httpx.NewTransport()},
	}
}

// WithHTTPClient swaps the underlying client, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.HTTP = hc
	}
	return c
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return providererr.Permanent(c.Provider, fmt.Errorf("encode request: %w", err))
		}
	}

	reqCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(reqCtx, method, target, &buf)
	if err != nil {
		return providererr.Permanent(c.Provider, err)
	}
	for k, vals := range c.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		// A cancelled caller is not a provider failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return providererr.Classify(c.Provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		serr := &httpx.StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			RetryAfter: httpx.RetryAfterDuration(resp, 0, time.Minute),
		}
		return providererr.Classify(c.Provider, serr)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return providererr.Permanent(c.Provider, errors.New("empty response body"))
		}
		return providererr.Permanent(c.Provider, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
