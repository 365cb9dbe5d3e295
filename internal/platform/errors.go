package platform

import "fmt"

// APIError represents a completed request the platform rejected, either
// via a non-2xx status or an error field in the response envelope. It is
// distinct from transport errors, which are returned as plain wrapped
// errors and indicate the request never completed.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("platform error: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("platform error: %s", e.Message)
}

// IsRetryable returns true for server errors (5xx). Client errors (4xx)
// and envelope-level rejections are considered permanent.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500
}
