package ledger

import (
	"strings"
)

// SubmissionError reports a ledger transaction that was rejected before or
// after it was sent. TxHash is set once the transaction reached the network.
type SubmissionError struct {
	Reason    string
	TxHash    string
	Transient bool
	Cause     error
}

func (e *SubmissionError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "submission failed")

	if reason := strings.TrimSpace(e.Reason); reason != "" {
		parts = append(parts, reason)
	}
	if e.TxHash != "" {
		parts = append(parts, "tx="+e.TxHash)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *SubmissionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *SubmissionError) IsTransient() bool {
	return e != nil && e.Transient
}
