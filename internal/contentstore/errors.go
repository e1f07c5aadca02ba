package contentstore

import (
	"fmt"
	"strings"
)

// UploadFailure classifies a failed content store call as transient or permanent.
type UploadFailure struct {
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *UploadFailure) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "upload failed")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *UploadFailure) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *UploadFailure) IsTransient() bool {
	return e != nil && e.Transient
}
