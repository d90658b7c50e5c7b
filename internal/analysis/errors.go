package analysis

import "errors"

var (
	// ErrNoImage is returned when analysis is requested without a staged image.
	ErrNoImage = errors.New("no image staged")
	// ErrAlreadyInFlight is returned when an analysis is already pending.
	ErrAlreadyInFlight = errors.New("analysis already in flight")
	// ErrRequestFailed matches every RequestFailedError.
	ErrRequestFailed = errors.New("analysis request failed")
)

// RequestFailedError covers transport failures, non-2xx responses and
// undecodable bodies alike.
type RequestFailedError struct {
	Reason string
	Err    error
}

func (e *RequestFailedError) Error() string {
	return "analysis request failed: " + e.Reason
}

func (e *RequestFailedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRequestFailed}
	}
	return []error{ErrRequestFailed, e.Err}
}

func requestFailed(reason string, err error) error {
	return &RequestFailedError{Reason: reason, Err: err}
}
