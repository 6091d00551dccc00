package arxiv

import (
	"errors"
	"fmt"
)

// Common errors returned by the arXiv client.
var (
	// ErrRateLimited indicates the API answered 429 or 503 (arXiv's throttle signal).
	ErrRateLimited = errors.New("arXiv rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with arXiv")

	// ErrInvalidResponse indicates a response that is not a parsable Atom feed.
	ErrInvalidResponse = errors.New("invalid response from arXiv")

	// ErrInvalidQuery indicates arguments rejected before any request is made.
	ErrInvalidQuery = errors.New("invalid arXiv query")
)

// APIError represents an error reported by the arXiv export API, either as
// an HTTP status or as an error entry inside the feed.
type APIError struct {
	StatusCode int
	Message    string
	Start      int // Paging offset of the failed request
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("arXiv API error (status %d, start %d): %s", e.StatusCode, e.Start, e.Message)
	}
	return fmt.Sprintf("arXiv API error (start %d): %s", e.Start, e.Message)
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode == 503
	}
	return false
}

// IsAPIError returns true if the error came from the arXiv API itself rather
// than from the transport.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrInvalidResponse)
}
