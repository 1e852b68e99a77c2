package llm

import (
	"errors"
	"fmt"
)

// APIError is a rejection from the upstream model service itself, as
// opposed to a network-layer failure reaching it. Callers count the two
// separately for diagnostics.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsAPIError reports whether err (or anything it wraps) is an upstream
// API rejection rather than a connectivity failure.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
