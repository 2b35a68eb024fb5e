package domain

import "time"

// JobEvent records one lifecycle transition. From is empty for creation.
type JobEvent struct {
	JobID   string         `json:"job_id"`
	From    LifecycleState `json:"from,omitempty"`
	To      LifecycleState `json:"to"`
	Payment PaymentState   `json:"payment_status,omitempty"`
	Error   string         `json:"error,omitempty"`
	At      time.Time      `json:"at"`
}
