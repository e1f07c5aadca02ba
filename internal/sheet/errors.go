package sheet

import (
	"fmt"

	"github.com/kursadbilgin/certmint/internal/domain"
)

// ParseError reports an input file that cannot be turned into records at all.
// It is fatal to the whole batch.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse batch file: %s: %v", e.Reason, e.Err)
	}
	return "parse batch file: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return domain.ErrValidation
}
