package errmsg

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/tsukumogami/wasmedgeup/internal/archive"
	"github.com/tsukumogami/wasmedgeup/internal/download"
	"github.com/tsukumogami/wasmedgeup/internal/install"
	"github.com/tsukumogami/wasmedgeup/internal/platform"
	"github.com/tsukumogami/wasmedgeup/internal/version"
)

func requireContains(t *testing.T, result string, checks ...string) {
	t.Helper()
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_NilError(t *testing.T) {
	result := Format(nil, nil)
	if result != "" {
		t.Errorf("expected empty string for nil error, got %q", result)
	}
}

func TestFormat_GenericError(t *testing.T) {
	err := errors.New("something went wrong")
	result := Format(err, nil)
	if result != "something went wrong" {
		t.Errorf("expected original error message, got %q", result)
	}
}

func TestFormat_ResolverError_Network(t *testing.T) {
	err := &version.ResolverError{
		Type:    version.ErrTypeNetwork,
		Source:  "github",
		Message: "connection failed",
	}

	result := Format(err, &ErrorContext{Version: "latest"})
	requireContains(t, result,
		"connection failed",
		"Possible causes:",
		"Network connectivity issue",
		"Suggestions:",
		"Check your internet connection",
		"GITHUB_TOKEN",
	)
}

func TestFormat_NoMatchingVersion(t *testing.T) {
	err := &install.OpError{
		Op:    "install",
		Stage: install.StageResolve,
		Input: "^9",
		Err: &version.ResolverError{
			Type:    version.ErrTypeNoMatch,
			Source:  "catalog",
			Message: `no version matches "^9"`,
			Err:     version.ErrNoMatchingVersion,
		},
	}

	result := Format(err, &ErrorContext{Version: "^9"})
	requireContains(t, result,
		"install ^9 failed during resolve",
		"Failed during: resolve",
		"wasmedgeup list --remote",
	)
}

func TestFormat_ResolverError_Validation(t *testing.T) {
	err := &version.ResolverError{
		Type:    version.ErrTypeValidation,
		Source:  "catalog",
		Message: "invalid constraint",
	}
	requireContains(t, Format(err, nil), "Invalid version format", "'latest'")
}

func TestFormat_ResolverError_Timeout(t *testing.T) {
	err := &version.ResolverError{
		Type:    version.ErrTypeTimeout,
		Source:  "github",
		Message: "listing tags",
	}
	requireContains(t, Format(err, nil), "WASMEDGEUP_API_TIMEOUT", "Try again in a few minutes")
}

func TestFormat_RateLimitError(t *testing.T) {
	err := errors.New("GitHub API rate limit exceeded")
	result := Format(err, &ErrorContext{Version: "0.14.0"})

	requireContains(t, result,
		"rate limit",
		"Possible causes:",
		"Too many requests",
		"Suggestions:",
		"GITHUB_TOKEN",
		"already installed needs no API request",
	)
}

func TestFormat_UnsupportedPlatform(t *testing.T) {
	err := &install.OpError{
		Op:    "install",
		Stage: install.StageResolve,
		Input: "latest",
		Err: &platform.UnsupportedPlatformError{
			Descriptor: platform.Descriptor{OS: platform.OSLinux, Arch: platform.ArchX86_64},
			Reason:     "could not determine the C library",
		},
	}

	result := Format(err, nil)
	requireContains(t, result,
		"unsupported platform",
		"Failed during: resolve",
		"--libc glibc",
	)
}

func TestFormat_ChecksumMismatch(t *testing.T) {
	err := &install.OpError{
		Op:    "install",
		Stage: install.StageVerify,
		Input: "https://example.com/a.tar.gz",
		Err:   &download.ChecksumMismatchError{URL: "https://example.com/a.tar.gz", Expected: "aa", Actual: "bb"},
	}

	result := Format(err, nil)
	requireContains(t, result,
		"checksum mismatch",
		"expected: aa",
		"Failed during: verify",
		"corrupted in transit",
	)
}

func TestFormat_ExtractionFailed(t *testing.T) {
	err := &archive.ExtractionError{Archive: "a.tar.gz", Dest: "/tmp/x", Err: errors.New("unexpected EOF")}
	requireContains(t, Format(err, nil), "truncated or corrupt", "disk space")
}

func TestFormat_AssetNotFound(t *testing.T) {
	err := &download.NetworkError{URL: "https://example.com/x", StatusCode: 404, Err: download.ErrAssetNotFound}

	result := Format(err, &ErrorContext{Plugin: "wasi_nn"})
	requireContains(t, result,
		"HTTP 404",
		"no artifact for this platform",
		"Plugin wasi_nn is not built",
		"plugin list --available",
	)
}

func TestFormat_RetryableFetch(t *testing.T) {
	err := &download.NetworkError{URL: "https://example.com/x", StatusCode: 503, Retryable: true, Err: errors.New("server returned 503")}
	requireContains(t, Format(err, nil), "fetch_retries")
}

func TestFormat_InstallSentinels(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check string
	}{
		{"not installed", fmt.Errorf("%w: 0.14.0", install.ErrVersionNotInstalled), "wasmedgeup install 0.14.0"},
		{"no active", install.ErrNoActiveVersion, "wasmedgeup use <version>"},
		{"plugin", install.ErrPluginNotInstalled, "wasmedgeup plugin list"},
		{"lock", install.ErrLockContention, "lock_retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.err, &ErrorContext{Version: "0.14.0"})
			requireContains(t, result, tt.err.Error(), tt.check)
		})
	}
}

func TestFormat_NetworkError(t *testing.T) {
	err := errors.New("dial tcp: connection refused")
	result := Format(err, nil)

	requireContains(t, result,
		"connection refused",
		"Possible causes:",
		"Network connectivity issue",
		"Suggestions:",
		"Check your internet connection",
	)
}

func TestFormat_PermissionError(t *testing.T) {
	err := errors.New("open /home/user/.wasmedge/versions: permission denied")
	result := Format(err, nil)

	requireContains(t, result,
		"permission denied",
		"Possible causes:",
		"Insufficient permissions",
		"Suggestions:",
		"~/.wasmedge",
	)
}

// mockNetError implements net.Error for testing
type mockNetError struct {
	msg       string
	timeout   bool
	temporary bool
}

func (e mockNetError) Error() string   { return e.msg }
func (e mockNetError) Timeout() bool   { return e.timeout }
func (e mockNetError) Temporary() bool { return e.temporary }

// Ensure mockNetError implements net.Error
var _ net.Error = mockNetError{}

func TestFormat_NetError_Timeout(t *testing.T) {
	err := mockNetError{
		msg:     "i/o timeout",
		timeout: true,
	}
	result := Format(err, nil)

	requireContains(t, result,
		"i/o timeout",
		"Possible causes:",
		"Request timed out",
		"Suggestions:",
		"--timeout",
	)
}

func TestFprint(t *testing.T) {
	var buf bytes.Buffer
	Fprint(&buf, install.ErrNoActiveVersion, nil)

	out := buf.String()
	if !strings.HasPrefix(out, "Error: no active version\n") {
		t.Errorf("unexpected prefix:\n%s", out)
	}
	if strings.HasSuffix(out, "\n\n") {
		t.Errorf("expected a single trailing newline, got:\n%q", out)
	}

	buf.Reset()
	Fprint(&buf, nil, nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output for nil error, got %q", buf.String())
	}
}

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		msg      string
		expected bool
	}{
		{"GitHub API rate limit exceeded", true},
		{"rate-limit: too many requests", true},
		{"Too many requests to the server", true},
		{"connection failed", false},
		{"file not found", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := isRateLimitError(tt.msg); got != tt.expected {
				t.Errorf("isRateLimitError(%q) = %v, want %v", tt.msg, got, tt.expected)
			}
		})
	}
}

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		msg      string
		expected bool
	}{
		{"dial tcp: connection refused", true},
		{"connection reset by peer", true},
		{"no such host", true},
		{"i/o timeout", true},
		{"file not found", false},
		{"permission denied", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := isNetworkError(tt.msg); got != tt.expected {
				t.Errorf("isNetworkError(%q) = %v, want %v", tt.msg, got, tt.expected)
			}
		})
	}
}

func TestIsPermissionError(t *testing.T) {
	tests := []struct {
		msg      string
		expected bool
	}{
		{"permission denied", true},
		{"access denied", true},
		{"operation not permitted", true},
		{"file not found", false},
		{"connection refused", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := isPermissionError(tt.msg); got != tt.expected {
				t.Errorf("isPermissionError(%q) = %v, want %v", tt.msg, got, tt.expected)
			}
		})
	}
}
