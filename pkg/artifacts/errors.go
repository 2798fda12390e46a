package artifacts

import (
	"errors"
	"fmt"
)

// Sentinel errors for file-service operations.
var (
	// ErrNotFound indicates the requested file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrAccessDenied indicates the file service refused the request.
	ErrAccessDenied = errors.New("file access denied")

	// ErrBadArchive indicates a bundled log archive could not be parsed
	// as a valid zip.
	ErrBadArchive = errors.New("invalid archive format")

	// ErrAuthentication indicates authentication failed after the retry.
	ErrAuthentication = errors.New("file service authentication failed")
)

// ServiceError wraps file-service failures with request context.
type ServiceError struct {
	// Op is the operation that failed (e.g., "ListFiles").
	Op string

	// Path is the file-service path, if applicable.
	Path string

	// Status is the HTTP status code, if the request produced a response.
	Status int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("artifacts %s: %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("artifacts %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates a missing file.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsBadArchive returns true if the error indicates a corrupt archive.
func IsBadArchive(err error) bool {
	return errors.Is(err, ErrBadArchive)
}
