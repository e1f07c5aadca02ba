package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// Transient is implemented by errors that know whether a retry may help.
type Transient interface {
	IsTransient() bool
}

// IsTransient reports whether an error should be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var classified Transient
	if errors.As(err, &classified) {
		return classified.IsTransient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// TransientHTTPStatus reports whether a response status is worth retrying.
func TransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}
