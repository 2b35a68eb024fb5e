package domain

import (
	"time"

	"gorm.io/datatypes"
)

// ArchivedJob is the persisted form of a job that reached a terminal state.
type ArchivedJob struct {
	JobID                   string         `gorm:"column:job_id;primaryKey" json:"job_id"`
	Status                  string         `gorm:"column:status;not null;index" json:"status"`
	PaymentStatus           string         `gorm:"column:payment_status;not null" json:"payment_status"`
	BlockchainIdentifier    string         `gorm:"column:blockchain_identifier;not null;uniqueIndex" json:"blockchain_identifier"`
	IdentifierFromPurchaser string         `gorm:"column:identifier_from_purchaser" json:"identifier_from_purchaser"`
	InputHash               string         `gorm:"column:input_hash;index" json:"input_hash"`
	Input                   datatypes.JSON `gorm:"column:input" json:"input"`
	Terms                   datatypes.JSON `gorm:"column:terms" json:"terms"`
	Result                  datatypes.JSON `gorm:"column:result" json:"result,omitempty"`
	Error                   string         `gorm:"column:error" json:"error,omitempty"`
	CreatedAt               time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
	FinishedAt              time.Time      `gorm:"column:finished_at;not null;index" json:"finished_at"`
}

func (ArchivedJob) TableName() string { return "content_job_archive" }
