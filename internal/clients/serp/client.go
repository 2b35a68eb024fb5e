// Package serp fetches research snippets from SerpAPI.
package serp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/contentagent/internal/clients/rest"
	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/platform/logger"
	"github.com/yungbote/contentagent/internal/platform/providererr"
	"github.com/yungbote/contentagent/internal/retry"
)

const provider = "serpapi"

type Options struct {
	APIKey     string
	BaseURL    string // default https://serpapi.com
	Engine     string // default google
	Location   string // default United States
	Language   string // default en
	NumResults int    // default 8
	Timeout    time.Duration
	Retry      retry.Policy
}

type Client struct {
	log   *logger.Logger
	http  *rest.Client
	opts  Options
	retry retry.Policy
}

func New(log *logger.Logger, opts Options) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("missing SERPAPI_KEY")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://serpapi.com"
	}
	if opts.Engine == "" {
		opts.Engine = "google"
	}
	if opts.Location == "" {
		opts.Location = "United States"
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.NumResults <= 0 {
		opts.NumResults = 8
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	l := log.With("service", "SerpClient")
	p := opts.Retry
	if p.Op == "" {
		p.Op = "serpapi.search"
	}
	return &Client{
		log:   l,
		http:  rest.New(provider, opts.BaseURL, opts.Timeout),
		opts:  opts,
		retry: p.WithLogger(l),
	}, nil
}

// BuildQuery joins topic and keywords, scoping to link's site when given.
func BuildQuery(topic string, keywords []string, link string) string {
	parts := make([]string, 0, 2)
	if t := strings.TrimSpace(topic); t != "" {
		parts = append(parts, t)
	}
	if kw := strings.TrimSpace(strings.Join(keywords, " ")); kw != "" {
		parts = append(parts, kw)
	}
	q := strings.Join(parts, " ")
	if link = strings.TrimSpace(link); link != "" {
		q += " site:" + link
	}
	return strings.TrimSpace(q)
}

type result struct {
	Title       string          `json:"title"`
	Question    string          `json:"question"`
	Link        string          `json:"link"`
	Snippet     string          `json:"snippet"`
	Answer      string          `json:"answer"`
	Description string          `json:"description"`
	Source      json.RawMessage `json:"source"`
}

type searchResponse struct {
	Error            string   `json:"error"`
	OrganicResults   []result `json:"organic_results"`
	NewsResults      []result `json:"news_results"`
	RelatedQuestions []result `json:"related_questions"`
}

var ErrSearch = errors.New("serpapi error")

func (c *Client) Search(ctx context.Context, topic string, keywords []string, link string) ([]domain.Snippet, error) {
	query := BuildQuery(topic, keywords, link)
	params := url.Values{
		"engine":   {c.opts.Engine},
		"api_key":  {c.opts.APIKey},
		"q":        {query},
		"num":      {strconv.Itoa(c.opts.NumResults)},
		"location": {c.opts.Location},
		"hl":       {c.opts.Language},
	}
	resp, err := retry.Call(ctx, c.retry, func(ctx context.Context) (searchResponse, error) {
		var out searchResponse
		if err := c.http.Get(ctx, "/search", params, &out); err != nil {
			return out, err
		}
		if out.Error != "" {
			// SerpAPI reports quota and key problems in the body.
			return out, providererr.Permanent(provider, fmt.Errorf("%w: %s", ErrSearch, out.Error))
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	snippets := normalize(resp, query, c.opts.NumResults)
	c.log.Debug("serp snippets fetched", "query", query, "count", len(snippets))
	return snippets, nil
}

func normalize(resp searchResponse, query string, limit int) []domain.Snippet {
	var out []domain.Snippet
	push := func(r result, fallbackSource string) {
		title := firstNonEmpty(r.Title, r.Question, "Untitled")
		src := sourceName(r.Source)
		out = append(out, domain.Snippet{
			Title:   title,
			Link:    firstNonEmpty(r.Link, src),
			Excerpt: firstNonEmpty(r.Snippet, r.Answer, r.Description),
			Source:  firstNonEmpty(src, fallbackSource),
		})
	}
	for _, r := range head(resp.OrganicResults, limit) {
		push(r, "organic")
	}
	for _, r := range head(resp.NewsResults, limit) {
		push(r, "news")
	}
	for _, r := range head(resp.RelatedQuestions, 2) {
		r.Source = nil
		push(r, "related_question")
	}
	if len(out) == 0 {
		return []domain.Snippet{{
			Title:   "No public snippets for " + query,
			Excerpt: "SerpAPI returned no organic results.",
			Source:  "serpapi",
		}}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// sourceName accepts both "source": "Site" and "source": {"name": "Site"}.
func sourceName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Name)
	}
	return ""
}

func head(rs []result, n int) []result {
	if len(rs) > n {
		return rs[:n]
	}
	return rs
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
