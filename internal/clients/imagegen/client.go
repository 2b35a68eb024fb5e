// Package imagegen buys an image from a Masumi image agent: start the job,
// purchase it through the payment service, then wait for the IPFS result.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/contentagent/internal/clients/masumi"
	"github.com/yungbote/contentagent/internal/clients/rest"
	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/platform/logger"
	"github.com/yungbote/contentagent/internal/platform/providererr"
	"github.com/yungbote/contentagent/internal/poll"
	"github.com/yungbote/contentagent/internal/retry"
)

const provider = "image_agent"

var (
	ErrFailed  = errors.New("image job failed")
	ErrTimeout = errors.New("image job did not complete within poll limit")
)

// FailedError carries the agent's last status payload for a failed job.
type FailedError struct {
	JobID  string
	Status string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("image job %s failed with status %q", e.JobID, e.Status)
}

func (e *FailedError) Is(target error) bool { return target == ErrFailed }

// TimeoutError reports a job still running when the poll cap was reached.
type TimeoutError struct {
	JobID string
	Polls int
	Last  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("image job %s not completed after %d polls (last status %q)", e.JobID, e.Polls, e.Last)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Purchaser locks funds for the image agent's offer.
type Purchaser interface {
	Purchase(ctx context.Context, offer masumi.Offer) error
}

type Options struct {
	AgentURL                string
	ModelType               string // default DALLE
	IdentifierFromPurchaser string // generated per image when empty
	IPFSGateway             string // default https://ipfs.io/ipfs
	PollInterval            time.Duration
	MaxPolls                int
	Timeout                 time.Duration
	Retry                   retry.Policy
	Sleep                   retry.Sleeper
}

type Client struct {
	log      *logger.Logger
	http     *rest.Client
	purchase Purchaser
	opts     Options
	retry    retry.Policy
}

func New(log *logger.Logger, purchaser Purchaser, opts Options) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	if strings.TrimSpace(opts.AgentURL) == "" {
		return nil, fmt.Errorf("missing IMAGE_AGENT_BASE_URL")
	}
	if purchaser == nil {
		return nil, fmt.Errorf("image purchaser required")
	}
	if opts.ModelType == "" {
		opts.ModelType = "DALLE"
	}
	if opts.IPFSGateway == "" {
		opts.IPFSGateway = "https://ipfs.io/ipfs"
	}
	opts.IPFSGateway = strings.TrimRight(opts.IPFSGateway, "/")
	if opts.PollInterval <= 0 {
		opts.PollInterval = 60 * time.Second
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = 60
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	l := log.With("service", "ImageAgentClient")
	p := opts.Retry
	if p.Op == "" {
		p.Op = "image_agent.request"
	}
	return &Client{
		log:      l,
		http:     rest.New(provider, opts.AgentURL, opts.Timeout),
		purchase: purchaser,
		opts:     opts,
		retry:    p.WithLogger(l),
	}, nil
}

type startJobBody struct {
	IdentifierFromPurchaser string         `json:"identifier_from_purchaser"`
	InputData               map[string]any `json:"input_data"`
}

type statusResponse struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Result        any    `json:"result"`
}

// Generate runs the whole purchase flow and returns the IPFS reference.
func (c *Client) Generate(ctx context.Context, prompt string) (domain.Image, error) {
	offer, err := c.start(ctx, prompt)
	if err != nil {
		return domain.Image{}, err
	}
	log := c.log.With("image_job_id", offer.JobID)
	if err := c.purchase.Purchase(ctx, offer); err != nil {
		return domain.Image{}, fmt.Errorf("purchase image job %s: %w", offer.JobID, err)
	}
	log.Info("image job purchased", "blockchain_identifier", offer.BlockchainIdentifier)

	status, err := c.wait(ctx, offer.JobID)
	if err != nil {
		return domain.Image{}, err
	}
	hash := resultHash(status.Result)
	if hash == "" {
		return domain.Image{}, providererr.Permanent(provider, fmt.Errorf("image job %s completed without result", offer.JobID))
	}
	log.Info("image job completed", "payment_status", status.PaymentStatus)
	return domain.Image{Reference: hash, ImageURL: c.opts.IPFSGateway + "/" + hash}, nil
}

func (c *Client) start(ctx context.Context, prompt string) (masumi.Offer, error) {
	ident := c.opts.IdentifierFromPurchaser
	if ident == "" {
		ident = strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	}
	body := startJobBody{
		IdentifierFromPurchaser: ident,
		InputData: map[string]any{
			"model_type": c.opts.ModelType,
			"prompt":     prompt,
		},
	}
	offer, err := retry.Call(ctx, c.retry, func(ctx context.Context) (masumi.Offer, error) {
		var out masumi.Offer
		err := c.http.Post(ctx, "/start_job", body, &out)
		return out, err
	})
	if err != nil {
		return masumi.Offer{}, fmt.Errorf("start image job: %w", err)
	}
	if offer.JobID == "" {
		return masumi.Offer{}, providererr.Permanent(provider, errors.New("start_job response missing job_id"))
	}
	if offer.IdentifierFromPurchaser == "" {
		offer.IdentifierFromPurchaser = ident
	}
	return offer, nil
}

func (c *Client) wait(ctx context.Context, jobID string) (statusResponse, error) {
	p := poll.Poller{Interval: c.opts.PollInterval, MaxAttempts: c.opts.MaxPolls, Sleep: c.opts.Sleep}
	q := url.Values{"job_id": {jobID}}
	out, err := poll.Until(ctx, p, func(ctx context.Context, attempt int) (statusResponse, bool, string, error) {
		st, err := retry.Call(ctx, c.retry, func(ctx context.Context) (statusResponse, error) {
			var s statusResponse
			err := c.http.Get(ctx, "/status", q, &s)
			return s, err
		})
		if err != nil {
			return st, false, "", fmt.Errorf("image status: %w", err)
		}
		c.log.Debug("image job polled", "image_job_id", jobID, "attempt", attempt, "status", st.Status)
		switch strings.ToLower(st.Status) {
		case "completed":
			return st, true, st.Status, nil
		case "failed":
			return st, false, st.Status, &FailedError{JobID: jobID, Status: st.Status}
		}
		return st, false, st.Status, nil
	})
	var limit *poll.LimitError
	if errors.As(err, &limit) {
		return out, &TimeoutError{JobID: jobID, Polls: limit.Attempts, Last: limit.Last}
	}
	return out, err
}

// resultHash accepts the agent's result as a bare hash string or an object
// carrying one.
func resultHash(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		for _, k := range []string{"ipfs_hash", "hash", "cid", "result"} {
			if s, ok := t[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
