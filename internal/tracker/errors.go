package tracker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when the tracker does not know the issue.
var ErrNotFound = errors.New("issue not found")

// APIError carries the HTTP status and response body of a failed tracker
// call so callers can classify the failure.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tracker api error (status %d): %s", e.StatusCode, e.Body)
}

// IsSchemaRejection reports whether an error is the tracker rejecting a field
// shape it does not support (e.g. epic link or parent-by-key in a
// team-managed project). Only these failures warrant the alternate payload
// shape; anything else is surfaced as-is.
func IsSchemaRejection(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode != 400 {
		return false
	}
	body := strings.ToLower(apiErr.Body)
	for _, marker := range []string{"cannot be set", "not on the appropriate screen", "unknown field", "parent"} {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}
