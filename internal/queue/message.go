package queue

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// BatchJobMessage is the broker payload asking a worker to run one batch.
type BatchJobMessage struct {
	BatchID       string `json:"batchId"`
	CorrelationID string `json:"correlationId,omitempty"`
	RecordCount   int    `json:"recordCount"`
}

func (m BatchJobMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	if _, err := uuid.Parse(m.BatchID); err != nil {
		return fmt.Errorf("invalid batchId %q: %w", m.BatchID, err)
	}
	if m.RecordCount < 0 {
		return fmt.Errorf("recordCount must not be negative")
	}
	return nil
}
