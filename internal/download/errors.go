package download

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAssetNotFound is matched when the release host reports 404 or 410 for
// an artifact.
var ErrAssetNotFound = errors.New("asset not found")

// NetworkError describes a failed transfer.
type NetworkError struct {
	URL        string
	StatusCode int // zero when no response was received

	// Retryable is set for 5xx, 429, timeouts and transport failures.
	Retryable bool
	Err       error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a NetworkError worth another attempt.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) && netErr.Retryable
}

// ChecksumMismatchError is returned when downloaded bytes do not hash to
// the published digest.
type ChecksumMismatchError struct {
	URL      string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("checksum mismatch:\n  expected: %s\n  actual:   %s", e.Expected, e.Actual)
	}
	return fmt.Sprintf("checksum mismatch for %s:\n  expected: %s\n  actual:   %s", e.URL, e.Expected, e.Actual)
}

func statusError(url string, code int) *NetworkError {
	e := &NetworkError{URL: url, StatusCode: code}
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		e.Err = ErrAssetNotFound
	case code == http.StatusTooManyRequests || code >= 500:
		e.Retryable = true
		e.Err = fmt.Errorf("server returned %d", code)
	default:
		e.Err = fmt.Errorf("server returned %d", code)
	}
	return e
}
