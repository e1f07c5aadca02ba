package domain

import "time"

// BatchStatus represents the processing state of a batch.
type BatchStatus string

const (
	BatchStatusPending        BatchStatus = "PENDING"
	BatchStatusProcessing     BatchStatus = "PROCESSING"
	BatchStatusCompleted      BatchStatus = "COMPLETED"
	BatchStatusPartialFailure BatchStatus = "PARTIAL_FAILURE"
	BatchStatusFailed         BatchStatus = "FAILED"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPending, BatchStatusProcessing, BatchStatusCompleted,
		BatchStatusPartialFailure, BatchStatusFailed:
		return true
	}
	return false
}

// StatusForReport derives the final batch status from its report.
func StatusForReport(report BatchReport) BatchStatus {
	switch {
	case report.Failed == 0:
		return BatchStatusCompleted
	case report.Succeeded == 0:
		return BatchStatusFailed
	default:
		return BatchStatusPartialFailure
	}
}

// Batch groups the records extracted from one uploaded file.
type Batch struct {
	ID             string
	CorrelationID  string
	FileName       string
	TotalCount     int
	SucceededCount int
	FailedCount    int
	Status         BatchStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BatchRecord is the persisted form of a record and, once processed, its outcome.
type BatchRecord struct {
	ID          string
	BatchID     string
	Index       int
	Record      IssuanceRecord
	Processed   bool
	Stage       Stage
	Error       *string
	MetadataURI *string
	TxHash      *string
	TokenID     *string
	UpdatedAt   time.Time
}

// Outcome converts a terminal batch record back into an IssuanceOutcome.
func (r BatchRecord) Outcome() IssuanceOutcome {
	outcome := IssuanceOutcome{
		Record:    r.Record,
		Succeeded: r.Stage == StageSucceeded,
		Stage:     r.Stage,
	}
	if r.Error != nil {
		outcome.Error = *r.Error
	}
	if r.MetadataURI != nil {
		outcome.MetadataURI = *r.MetadataURI
	}
	if r.TxHash != nil {
		outcome.TxHash = *r.TxHash
	}
	if r.TokenID != nil {
		outcome.TokenID = *r.TokenID
	}
	return outcome
}
