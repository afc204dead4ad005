package webhook

import (
	"fmt"
	"time"
)

// HTTPStatusError captures non-2xx webhook responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("webhook: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// TimeoutError reports an exchange that was aborted after the configured
// deadline. Timeout reports true so callers can probe it without importing
// this package.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("webhook: request timed out after %s", e.After)
}

func (e *TimeoutError) Timeout() bool { return true }
