package api

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrRequestFailed covers transport failures and non-2xx responses
	ErrRequestFailed = errors.New("request failed")
	// ErrMalformedResponse is returned when a response body cannot be decoded
	// or lacks the expected fields
	ErrMalformedResponse = errors.New("malformed response")
	// ErrUnsuccessful is returned when the envelope reports success=false
	ErrUnsuccessful = errors.New("api reported failure")
	// ErrInvalidBaseURL is returned by NewClient for an unusable base URL
	ErrInvalidBaseURL = errors.New("invalid base url")
)

// StatusError is a non-2xx HTTP response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api error %d", e.StatusCode)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Body)
}

// Unwrap makes StatusError match ErrRequestFailed
func (e *StatusError) Unwrap() error {
	return ErrRequestFailed
}

// Retryable reports whether the request may succeed if repeated
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
