package domain

import (
	"errors"
	"time"
)

type LifecycleState string

const (
	LifecycleAwaitingPayment LifecycleState = "awaiting_payment"
	LifecycleRunning         LifecycleState = "running"
	LifecycleCompleted       LifecycleState = "completed"
	LifecycleFailed          LifecycleState = "failed"
)

func (s LifecycleState) Terminal() bool {
	return s == LifecycleCompleted || s == LifecycleFailed
}

// CanTransition reports whether s -> to moves forward along
// awaiting_payment -> running -> {completed, failed}.
func (s LifecycleState) CanTransition(to LifecycleState) bool {
	switch s {
	case LifecycleAwaitingPayment:
		// failed covers abandonment and permanent payment errors.
		return to == LifecycleRunning || to == LifecycleFailed
	case LifecycleRunning:
		return to == LifecycleCompleted || to == LifecycleFailed
	default:
		return false
	}
}

type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentConfirmed PaymentState = "confirmed"
	PaymentUnknown   PaymentState = "unknown"
	PaymentError     PaymentState = "error"
)

// ProviderStatus is what the payment provider reports for a reference.
type ProviderStatus string

const (
	ProviderConfirmed ProviderStatus = "confirmed"
	ProviderPending   ProviderStatus = "pending"
	ProviderNotFound  ProviderStatus = "not_found"
)

func (s ProviderStatus) PaymentState() PaymentState {
	switch s {
	case ProviderConfirmed:
		return PaymentConfirmed
	case ProviderPending:
		return PaymentPending
	default:
		return PaymentUnknown
	}
}

// PaymentTerms are the provider-issued identifiers and deadlines for one
// payment request. Times are passed through as the provider formats them.
type PaymentTerms struct {
	BlockchainIdentifier      string `json:"blockchainIdentifier"`
	PayByTime                 string `json:"payByTime"`
	SubmitResultTime          string `json:"submitResultTime"`
	UnlockTime                string `json:"unlockTime"`
	ExternalDisputeUnlockTime string `json:"externalDisputeUnlockTime"`
	InputHash                 string `json:"inputHash"`
}

type PaymentRequest struct {
	IdentifierFromPurchaser string
	InputHash               string
	Metadata                string
}

type JobRecord struct {
	ID                      string         `json:"job_id"`
	Lifecycle               LifecycleState `json:"status"`
	Payment                 PaymentState   `json:"payment_status"`
	PaymentReference        string         `json:"blockchain_identifier"`
	IdentifierFromPurchaser string         `json:"identifier_from_purchaser"`
	InputHash               string         `json:"input_hash"`
	Terms                   PaymentTerms   `json:"payment_terms"`
	Input                   ContentRequest `json:"input_data"`
	Result                  *ContentResult `json:"result,omitempty"`
	Error                   string         `json:"error,omitempty"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

// Clone returns a copy that shares no mutable state with r.
func (r JobRecord) Clone() JobRecord {
	out := r
	out.Input.Keywords = append([]string(nil), r.Input.Keywords...)
	if r.Result != nil {
		res := *r.Result
		res.Hashtags = append([]string(nil), r.Result.Hashtags...)
		res.Insights = append([]string(nil), r.Result.Insights...)
		res.Snippets = append([]Snippet(nil), r.Result.Snippets...)
		res.Errors = append([]string(nil), r.Result.Errors...)
		if r.Result.Metadata != nil {
			res.Metadata = make(map[string]any, len(r.Result.Metadata))
			for k, v := range r.Result.Metadata {
				res.Metadata[k] = v
			}
		}
		if r.Result.Image != nil {
			img := *r.Result.Image
			res.Image = &img
		}
		out.Result = &res
	}
	return out
}

var ErrJobNotFound = errors.New("job not found")
