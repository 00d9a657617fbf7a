package goldapi

import (
	"errors"
	"fmt"
)

type Reason string

const (
	ReasonKeyNotConfigured Reason = "KEY_NOT_CONFIGURED"
	ReasonInvalidResponse  Reason = "INVALID_RESPONSE"
	ReasonConnectionFailed Reason = "CONNECTION_FAILED"
	ReasonRateLimited      Reason = "RATE_LIMITED"
	ReasonUnauthorized     Reason = "UNAUTHORIZED"
	ReasonUnknown          Reason = "UNKNOWN"
)

// SourceError is returned when no market price could be obtained.
type SourceError struct {
	Reason Reason
	Metal  string
	Err    error
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("goldapi %s", e.Reason)
	if e.Metal != "" {
		msg += " metal=" + e.Metal
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the failure reason, UNKNOWN for foreign errors.
func ReasonOf(err error) Reason {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Reason
	}
	return ReasonUnknown
}
