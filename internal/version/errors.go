package version

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrNoMatchingVersion is returned (inside a ResolverError) when no catalog
// tag satisfies a constraint.
var ErrNoMatchingVersion = errors.New("no matching version")

// ErrorType classifies resolver errors for better handling
type ErrorType int

const (
	// ErrTypeNetwork indicates a generic network-related error (fallback when specific type is unknown)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeNotFound indicates the catalog repository or release does not exist
	ErrTypeNotFound
	// ErrTypeValidation indicates an unparsable version constraint
	ErrTypeValidation
	// ErrTypeNoMatch indicates no catalog tag satisfies the constraint
	ErrTypeNoMatch
	// ErrTypeRateLimit indicates API rate limit exceeded (HTTP 429, or 403 with rate limit headers)
	ErrTypeRateLimit
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeDNS indicates DNS resolution failure
	ErrTypeDNS
	// ErrTypeConnection indicates connection refused or reset
	ErrTypeConnection
	// ErrTypeTLS indicates TLS/SSL certificate errors
	ErrTypeTLS
)

// ResolverError provides structured error information for catalog and
// resolution failures.
type ResolverError struct {
	Type    ErrorType
	Source  string // Catalog name (e.g., "github", "catalog")
	Message string // Human-readable error message
	Err     error  // Underlying error (if any)
}

// Error implements the error interface
func (e *ResolverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s resolver: %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("%s resolver: %s", e.Source, e.Message)
}

// Unwrap returns the underlying error for error chain support
func (e *ResolverError) Unwrap() error {
	return e.Err
}

// IsNetwork reports whether the error came from talking to the catalog
// rather than from the request itself.
func (e *ResolverError) IsNetwork() bool {
	switch e.Type {
	case ErrTypeNetwork, ErrTypeRateLimit, ErrTypeTimeout, ErrTypeDNS, ErrTypeConnection, ErrTypeTLS:
		return true
	}
	return false
}

// Suggestion returns an actionable suggestion for the user based on the error type.
// Returns an empty string if no specific suggestion is available.
func (e *ResolverError) Suggestion() string {
	switch e.Type {
	case ErrTypeRateLimit:
		return "Wait a few minutes before trying again, or set GITHUB_TOKEN to raise the limit"
	case ErrTypeTimeout:
		return "Check your internet connection or raise WASMEDGEUP_API_TIMEOUT"
	case ErrTypeDNS:
		return "Check your DNS settings and internet connection"
	case ErrTypeConnection:
		return "The service may be down or blocked. Check if you can access it in a browser"
	case ErrTypeTLS:
		return "There may be a certificate issue. Check your system time is correct"
	case ErrTypeNotFound:
		return "Check the catalog_repo setting (wasmedgeup config get catalog_repo)"
	case ErrTypeNoMatch:
		return "Run 'wasmedgeup list --remote' to see available versions"
	case ErrTypeValidation:
		return "Use an exact version (0.14.0), a range (>=0.13, <0.15) or 'latest'"
	case ErrTypeNetwork:
		return "Check your internet connection and try again"
	default:
		return ""
	}
}

// ClassifyError examines an error and returns the most specific ErrorType.
// This function uses Go's error unwrapping to detect specific network error types.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrTypeNetwork
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTypeTimeout
	}

	// User interrupt
	if errors.Is(err, context.Canceled) {
		return ErrTypeNetwork
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return ErrTypeTimeout
		}
		return ErrTypeDNS
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return ErrTypeTLS
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return ErrTypeTimeout
		}
		var innerDNS *net.DNSError
		if errors.As(opErr.Err, &innerDNS) {
			return ErrTypeDNS
		}
		// Connection refused, reset, etc.
		return ErrTypeConnection
	}

	// url.Error wraps transport errors
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return ErrTypeTimeout
		}
		if strings.Contains(urlErr.Err.Error(), "certificate") ||
			strings.Contains(urlErr.Err.Error(), "tls") ||
			strings.Contains(urlErr.Err.Error(), "x509") {
			return ErrTypeTLS
		}
		return ClassifyError(urlErr.Err)
	}

	return ErrTypeNetwork
}

// WrapNetworkError wraps an error with the appropriate error type based on classification.
func WrapNetworkError(err error, source, message string) *ResolverError {
	return &ResolverError{
		Type:    ClassifyError(err),
		Source:  source,
		Message: message,
		Err:     err,
	}
}
