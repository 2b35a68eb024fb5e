// Package masumi talks to a Masumi payment service node: payment requests
// for jobs sold by this agent, status lookups, result submission, and
// purchases of other agents' work.
package masumi

import (
	"bytes"
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
)

const provider = "masumi"

// onChainState values that mean the buyer's funds are committed to the job.
var confirmedStates = map[string]bool{
	"FundsLocked":     true,
	"ResultSubmitted": true,
	"Withdrawn":       true,
}

type Options struct {
	BaseURL         string // payment service base, e.g. https://node/api/v1
	APIKey          string
	APIKeyHeader    string // default "token"
	AgentIdentifier string
	Network         string // default Preprod
	PayByWindow     time.Duration
	SubmitWindow    time.Duration
	Timeout         time.Duration

	// Amount and Unit price the agent; empty Amount uses the registry price.
	Amount string
	Unit   string
}

type Client struct {
	log  *logger.Logger
	http *rest.Client
	opts Options
	now  func() time.Time
}

func New(log *logger.Logger, opts Options) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("missing PAYMENT_SERVICE_URL")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("missing PAYMENT_API_KEY")
	}
	if opts.APIKeyHeader == "" {
		opts.APIKeyHeader = "token"
	}
	if opts.Network == "" {
		opts.Network = "Preprod"
	}
	if opts.PayByWindow <= 0 {
		opts.PayByWindow = 12 * time.Hour
	}
	if opts.SubmitWindow <= 0 {
		opts.SubmitWindow = 24 * time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	hc := rest.New(provider, opts.BaseURL, opts.Timeout)
	hc.Header.Set(opts.APIKeyHeader, opts.APIKey)
	return &Client{
		log:  log.With("service", "MasumiPaymentClient"),
		http: hc,
		opts: opts,
		now:  time.Now,
	}, nil
}

func (c *Client) Network() string { return c.opts.Network }

type envelope[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
}

// Timestamp decodes a provider time that arrives either as a JSON string or
// as a number and keeps it as the provider's string form.
type Timestamp string

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Timestamp(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*t = Timestamp(n.String())
	return nil
}

type createPaymentBody struct {
	AgentIdentifier         string `json:"agentIdentifier"`
	Network                 string `json:"network"`
	InputHash               string `json:"inputHash"`
	PayByTime               string `json:"payByTime"`
	SubmitResultTime        string `json:"submitResultTime"`
	Metadata                string `json:"metadata,omitempty"`
	PaymentType             string `json:"paymentType"`
	IdentifierFromPurchaser string `json:"identifierFromPurchaser"`
	RequestedFunds          []Fund `json:"RequestedFunds,omitempty"`
}

type Fund struct {
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

type paymentData struct {
	ID                        string    `json:"id"`
	BlockchainIdentifier      string    `json:"blockchainIdentifier"`
	PayByTime                 Timestamp `json:"payByTime"`
	SubmitResultTime          Timestamp `json:"submitResultTime"`
	UnlockTime                Timestamp `json:"unlockTime"`
	ExternalDisputeUnlockTime Timestamp `json:"externalDisputeUnlockTime"`
	InputHash                 string    `json:"inputHash"`
	OnChainState              *string   `json:"onChainState"`
}

var ErrMissingIdentifier = errors.New("payment response missing blockchainIdentifier")

func (c *Client) CreatePaymentRequest(ctx context.Context, req domain.PaymentRequest) (domain.PaymentTerms, error) {
	now := c.now().UTC()
	body := createPaymentBody{
		AgentIdentifier:         c.opts.AgentIdentifier,
		Network:                 c.opts.Network,
		InputHash:               req.InputHash,
		PayByTime:               now.Add(c.opts.PayByWindow).Format(time.RFC3339),
		SubmitResultTime:        now.Add(c.opts.SubmitWindow).Format(time.RFC3339),
		Metadata:                req.Metadata,
		PaymentType:             "Web3CardanoV1",
		IdentifierFromPurchaser: req.IdentifierFromPurchaser,
	}
	if c.opts.Amount != "" {
		body.RequestedFunds = []Fund{{Amount: c.opts.Amount, Unit: c.opts.Unit}}
	}
	var out envelope[paymentData]
	if err := c.http.Post(ctx, "/payment/", body, &out); err != nil {
		return domain.PaymentTerms{}, fmt.Errorf("create payment request: %w", err)
	}
	d := out.Data
	if strings.TrimSpace(d.BlockchainIdentifier) == "" {
		return domain.PaymentTerms{}, providererr.Permanent(provider, ErrMissingIdentifier)
	}
	inputHash := d.InputHash
	if inputHash == "" {
		inputHash = req.InputHash
	}
	c.log.Info("payment request created", "blockchain_identifier", d.BlockchainIdentifier, "identifier_from_purchaser", req.IdentifierFromPurchaser)
	return domain.PaymentTerms{
		BlockchainIdentifier:      d.BlockchainIdentifier,
		PayByTime:                 string(d.PayByTime),
		SubmitResultTime:          string(d.SubmitResultTime),
		UnlockTime:                string(d.UnlockTime),
		ExternalDisputeUnlockTime: string(d.ExternalDisputeUnlockTime),
		InputHash:                 inputHash,
	}, nil
}

type paymentList struct {
	Payments []paymentData `json:"Payments"`
}

const (
	statusPageSize = 10
	maxStatusPages = 20
)

// PaymentStatus looks the reference up among the node's payments, following
// cursor pages until it is found or the listing ends. A reference the node
// does not list yet reports not_found.
func (c *Client) PaymentStatus(ctx context.Context, ref string) (domain.ProviderStatus, error) {
	cursor := ""
	for page := 0; page < maxStatusPages; page++ {
		q := url.Values{
			"limit":          {strconv.Itoa(statusPageSize)},
			"network":        {c.opts.Network},
			"includeHistory": {"false"},
		}
		if cursor != "" {
			q.Set("cursorId", cursor)
		}
		var out envelope[paymentList]
		if err := c.http.Get(ctx, "/payment/", q, &out); err != nil {
			return "", fmt.Errorf("payment status: %w", err)
		}
		payments := out.Data.Payments
		for _, p := range payments {
			if p.BlockchainIdentifier != ref {
				continue
			}
			if p.OnChainState != nil && confirmedStates[*p.OnChainState] {
				return domain.ProviderConfirmed, nil
			}
			return domain.ProviderPending, nil
		}
		if len(payments) < statusPageSize {
			break
		}
		next := payments[len(payments)-1].ID
		if next == "" || next == cursor {
			break
		}
		cursor = next
	}
	return domain.ProviderNotFound, nil
}

type submitResultBody struct {
	Network              string `json:"network"`
	BlockchainIdentifier string `json:"blockchainIdentifier"`
	SubmitResultHash     string `json:"submitResultHash"`
}

func (c *Client) SubmitResult(ctx context.Context, ref, resultHash string) error {
	body := submitResultBody{
		Network:              c.opts.Network,
		BlockchainIdentifier: ref,
		SubmitResultHash:     resultHash,
	}
	if err := c.http.Post(ctx, "/payment/submit-result", body, nil); err != nil {
		return fmt.Errorf("submit result: %w", err)
	}
	c.log.Info("result submitted", "blockchain_identifier", ref)
	return nil
}

// Offer is what a selling agent's /start_job returns; it carries everything
// a purchase needs.
type Offer struct {
	JobID                     string    `json:"job_id"`
	BlockchainIdentifier      string    `json:"blockchainIdentifier"`
	SellerVKey                string    `json:"sellerVKey"`
	AgentIdentifier           string    `json:"agentIdentifier"`
	IdentifierFromPurchaser   string    `json:"identifierFromPurchaser"`
	PayByTime                 Timestamp `json:"payByTime"`
	SubmitResultTime          Timestamp `json:"submitResultTime"`
	UnlockTime                Timestamp `json:"unlockTime"`
	ExternalDisputeUnlockTime Timestamp `json:"externalDisputeUnlockTime"`
	InputHash                 string    `json:"input_hash"`
	InputHashAlt              string    `json:"inputHash"`
}

// Missing lists the purchase fields the offer lacks.
func (o Offer) Missing() []string {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("identifierFromPurchaser", o.IdentifierFromPurchaser)
	check("blockchainIdentifier", o.BlockchainIdentifier)
	check("sellerVkey", o.SellerVKey)
	check("agentIdentifier", o.AgentIdentifier)
	check("payByTime", string(o.PayByTime))
	check("submitResultTime", string(o.SubmitResultTime))
	check("unlockTime", string(o.UnlockTime))
	check("externalDisputeUnlockTime", string(o.ExternalDisputeUnlockTime))
	check("inputHash", o.hash())
	return missing
}

func (o Offer) hash() string {
	if o.InputHash != "" {
		return o.InputHash
	}
	return o.InputHashAlt
}

var ErrIncompleteOffer = errors.New("offer missing fields required for purchase")

type purchaseBody struct {
	IdentifierFromPurchaser   string `json:"identifierFromPurchaser"`
	Network                   string `json:"network"`
	SellerVkey                string `json:"sellerVkey"`
	BlockchainIdentifier      string `json:"blockchainIdentifier"`
	PayByTime                 string `json:"payByTime"`
	SubmitResultTime          string `json:"submitResultTime"`
	UnlockTime                string `json:"unlockTime"`
	ExternalDisputeUnlockTime string `json:"externalDisputeUnlockTime"`
	AgentIdentifier           string `json:"agentIdentifier"`
	InputHash                 string `json:"inputHash"`
}

// Purchase locks funds for another agent's offer.
func (c *Client) Purchase(ctx context.Context, offer Offer) error {
	if missing := offer.Missing(); len(missing) > 0 {
		return providererr.Permanent(provider, fmt.Errorf("%w: %s", ErrIncompleteOffer, strings.Join(missing, ", ")))
	}
	body := purchaseBody{
		IdentifierFromPurchaser:   offer.IdentifierFromPurchaser,
		Network:                   c.opts.Network,
		SellerVkey:                offer.SellerVKey,
		BlockchainIdentifier:      offer.BlockchainIdentifier,
		PayByTime:                 string(offer.PayByTime),
		SubmitResultTime:          string(offer.SubmitResultTime),
		UnlockTime:                string(offer.UnlockTime),
		ExternalDisputeUnlockTime: string(offer.ExternalDisputeUnlockTime),
		AgentIdentifier:           offer.AgentIdentifier,
		InputHash:                 offer.hash(),
	}
	if err := c.http.Post(ctx, "/purchase/", body, nil); err != nil {
		return fmt.Errorf("purchase: %w", err)
	}
	c.log.Info("purchase submitted", "blockchain_identifier", offer.BlockchainIdentifier, "agent_identifier", offer.AgentIdentifier)
	return nil
}
