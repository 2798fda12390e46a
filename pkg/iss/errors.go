package iss

import (
	"errors"
	"fmt"
)

// Sentinel errors for ISS API operations.
var (
	// ErrAuthentication indicates authentication failed after the retry.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrRateLimited indicates the request was throttled by ISS.
	// The client does not wait or retry; that is left to the caller.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrValidation indicates a response record failed validation.
	ErrValidation = errors.New("invalid record")

	// ErrConfiguration indicates the client lacks a usable credential shape.
	ErrConfiguration = errors.New("no usable credentials configured")

	// ErrTimeout indicates an outbound call exceeded its deadline.
	ErrTimeout = errors.New("request timeout")
)

// ClientError wraps ISS API failures with request context.
type ClientError struct {
	// Op is the operation that failed (e.g., "ListJobs", "GetPlatform").
	Op string

	// Status is the HTTP status code, if the request produced a response.
	Status int

	// Body is the response body, truncated for logging.
	Body string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("iss %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("iss %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// IsAuthentication returns true if the error indicates authentication failed.
func IsAuthentication(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited returns true if the error indicates remote throttling.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsValidation returns true if the error indicates a malformed record.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConfiguration returns true if the error indicates missing credential config.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsTimeout returns true if the error indicates an outbound call deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
