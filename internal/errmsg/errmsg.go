// Package errmsg provides enhanced error message formatting with actionable suggestions.
package errmsg

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/tsukumogami/wasmedgeup/internal/archive"
	"github.com/tsukumogami/wasmedgeup/internal/download"
	"github.com/tsukumogami/wasmedgeup/internal/install"
	"github.com/tsukumogami/wasmedgeup/internal/platform"
	"github.com/tsukumogami/wasmedgeup/internal/version"
)

// ErrorContext provides additional context for error formatting
type ErrorContext struct {
	Version string // The runtime version or constraint being operated on
	Plugin  string // The plugin being operated on, if any
}

// Fprint writes the formatted error to w, prefixed with "Error: ".
func Fprint(w io.Writer, err error, ctx *ErrorContext) {
	if err == nil {
		return
	}
	msg := strings.TrimRight(Format(err, ctx), "\n")
	fmt.Fprintf(w, "Error: %s\n", msg)
}

// Format returns a formatted error message with possible causes and suggestions.
// The context parameter is optional - pass nil for generic formatting.
func Format(err error, ctx *ErrorContext) string {
	if err == nil {
		return ""
	}

	errMsg := err.Error()
	var h hints

	var platErr *platform.UnsupportedPlatformError
	var sumErr *download.ChecksumMismatchError
	var resolverErr *version.ResolverError
	var fetchErr *download.NetworkError
	var netErr net.Error

	switch {
	case errors.Is(err, install.ErrLockContention):
		h = lockHints()
	case errors.As(err, &platErr):
		h = platformHints(platErr)
	case errors.As(err, &sumErr):
		h = checksumHints()
	case errors.Is(err, archive.ErrExtractionFailed):
		h = extractionHints()
	case errors.Is(err, install.ErrVersionNotInstalled):
		h = notInstalledHints(ctx)
	case errors.Is(err, install.ErrNoActiveVersion):
		h = noActiveHints()
	case errors.Is(err, install.ErrPluginNotInstalled):
		h = pluginNotInstalledHints()
	case errors.Is(err, download.ErrAssetNotFound):
		h = assetNotFoundHints(ctx)
	case errors.As(err, &resolverErr):
		h = resolverHints(resolverErr, ctx)
	case isRateLimitError(errMsg):
		h = rateLimitHints(ctx)
	case errors.As(err, &fetchErr):
		h = fetchHints(fetchErr)
	case errors.As(err, &netErr):
		h = netErrorHints(netErr)
	case isNetworkError(errMsg):
		h = genericNetworkHints()
	case isPermissionError(errMsg):
		h = permissionHints()
	default:
		// Return original error for unrecognized types
		return errMsg
	}

	return h.render(errMsg, stageOf(err))
}

// hints holds the explanatory sections appended to an error message.
type hints struct {
	causes      []string
	suggestions []string
}

func (h hints) render(errMsg, stage string) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	if stage != "" {
		sb.WriteString(fmt.Sprintf("\nFailed during: %s\n", stage))
	}
	if len(h.causes) > 0 {
		sb.WriteString("\nPossible causes:\n")
		for _, c := range h.causes {
			sb.WriteString("  - " + c + "\n")
		}
	}
	if len(h.suggestions) > 0 {
		sb.WriteString("\nSuggestions:\n")
		for _, s := range h.suggestions {
			sb.WriteString("  - " + s + "\n")
		}
	}
	return sb.String()
}

func stageOf(err error) string {
	var opErr *install.OpError
	if errors.As(err, &opErr) && opErr.Stage != "" {
		return string(opErr.Stage)
	}
	return ""
}

func versionOr(ctx *ErrorContext, fallback string) string {
	if ctx != nil && ctx.Version != "" {
		return ctx.Version
	}
	return fallback
}

func lockHints() hints {
	return hints{
		causes: []string{
			"Another wasmedgeup command is running",
			"A previous command is still finishing in another terminal",
		},
		suggestions: []string{
			"Wait for the other command to finish and try again",
			"Raise the retry limit: wasmedgeup config set lock_retries 20",
		},
	}
}

func platformHints(err *platform.UnsupportedPlatformError) hints {
	h := hints{
		causes: []string{
			"No WasmEdge release is published for this OS, architecture or C library",
		},
		suggestions: []string{
			"Pass --os, --arch or --libc to choose a supported target",
		},
	}
	if err.Descriptor.OS == platform.OSLinux && err.Descriptor.Libc == "" {
		h.causes = append(h.causes, "The C library of this system could not be determined")
		h.suggestions = append(h.suggestions, "Pass --libc glibc or --libc musl")
	}
	return h
}

func checksumHints() hints {
	return hints{
		causes: []string{
			"The download was corrupted in transit",
			"The artifact was modified after its checksum was published",
			"A proxy or mirror served different content",
		},
		suggestions: []string{
			"Try the install again",
			"If you use release_base_url, check that the mirror is up to date",
		},
	}
}

func extractionHints() hints {
	return hints{
		causes: []string{
			"The archive is truncated or corrupt",
			"The archive contains entries that escape the install directory",
			"The disk is full",
		},
		suggestions: []string{
			"Try the install again",
			"Check free disk space under $WASMEDGEUP_HOME",
		},
	}
}

func notInstalledHints(ctx *ErrorContext) hints {
	return hints{
		suggestions: []string{
			"Run 'wasmedgeup list' to see installed versions",
			fmt.Sprintf("Run 'wasmedgeup install %s' to install it", versionOr(ctx, "<version>")),
		},
	}
}

func noActiveHints() hints {
	return hints{
		suggestions: []string{
			"Run 'wasmedgeup use <version>' to activate an installed version",
			"Pass --runtime <version> to target a specific version",
		},
	}
}

func pluginNotInstalledHints() hints {
	return hints{
		suggestions: []string{
			"Run 'wasmedgeup plugin list' to see installed plugins",
		},
	}
}

func assetNotFoundHints(ctx *ErrorContext) hints {
	h := hints{
		causes: []string{
			"The release has no artifact for this platform",
			"The release is still being published",
		},
		suggestions: []string{
			"Run 'wasmedgeup list --remote' to see available versions",
			"Pass --os, --arch or --libc to choose another build",
		},
	}
	if ctx != nil && ctx.Plugin != "" {
		h.causes = append(h.causes, fmt.Sprintf("Plugin %s is not built for this version", ctx.Plugin))
		h.suggestions = append(h.suggestions, "Run 'wasmedgeup plugin list --available' to see published plugins")
	}
	return h
}

func resolverHints(err *version.ResolverError, ctx *ErrorContext) hints {
	switch err.Type {
	case version.ErrTypeNoMatch:
		return hints{
			causes: []string{
				"No published version satisfies the request",
				"Pre-releases are only chosen when named exactly",
			},
			suggestions: []string{
				"Run 'wasmedgeup list --remote' to see available versions",
				"Use 'latest' to get the most recent version",
			},
		}

	case version.ErrTypeNotFound:
		return hints{
			causes: []string{
				"The catalog repository does not exist",
				fmt.Sprintf("Version %s was never released", versionOr(ctx, "requested")),
			},
			suggestions: []string{
				"Check the catalog_repo setting: wasmedgeup config get catalog_repo",
			},
		}

	case version.ErrTypeValidation:
		return hints{
			causes: []string{
				"Invalid version format",
			},
			suggestions: []string{
				"Use an exact version (0.14.0), a range (>=0.13, <0.15) or 'latest'",
			},
		}

	case version.ErrTypeRateLimit:
		return rateLimitHints(ctx)

	default:
		h := hints{
			causes: []string{
				"Network connectivity issue",
				"Service temporarily unavailable",
				"GitHub API rate limit exceeded",
			},
			suggestions: []string{
				"Check your internet connection",
				"Set GITHUB_TOKEN to increase rate limit",
				"Try again in a few minutes",
			},
		}
		if s := err.Suggestion(); s != "" && err.Type != version.ErrTypeNetwork {
			h.suggestions = append([]string{s}, h.suggestions...)
		}
		return h
	}
}

func rateLimitHints(ctx *ErrorContext) hints {
	h := hints{
		causes: []string{
			"Too many requests to the API",
			"Unauthenticated requests have lower limits",
		},
		suggestions: []string{
			"Set GITHUB_TOKEN environment variable to increase rate limit",
			"Wait a few minutes before retrying",
		},
	}
	if ctx != nil && ctx.Version != "" {
		h.suggestions = append(h.suggestions,
			"An exact version that is already installed needs no API request")
	}
	return h
}

func fetchHints(err *download.NetworkError) hints {
	h := hints{
		causes: []string{
			"Network connectivity issue",
			"The release host is temporarily unavailable",
		},
		suggestions: []string{
			"Check your internet connection",
			"Try again in a few minutes",
		},
	}
	if err.Retryable {
		h.suggestions = append(h.suggestions, "Retry transient failures automatically: wasmedgeup config set fetch_retries 3")
	}
	return h
}

func netErrorHints(err net.Error) hints {
	h := hints{}
	if err.Timeout() {
		h.causes = append(h.causes, "Request timed out", "Slow or unstable network connection")
	} else {
		h.causes = append(h.causes, "Network connectivity issue", "DNS resolution failure")
	}
	h.causes = append(h.causes, "Firewall or proxy blocking the connection")

	h.suggestions = []string{"Check your internet connection", "Try again in a few minutes"}
	if err.Timeout() {
		h.suggestions = append(h.suggestions, "Raise --timeout or WASMEDGEUP_DOWNLOAD_TIMEOUT")
	}
	return h
}

func genericNetworkHints() hints {
	return hints{
		causes: []string{
			"Network connectivity issue",
			"DNS resolution failure",
			"Service temporarily unavailable",
		},
		suggestions: []string{
			"Check your internet connection",
			"Try again in a few minutes",
		},
	}
}

func permissionHints() hints {
	return hints{
		causes: []string{
			"Insufficient permissions on $WASMEDGEUP_HOME directory",
			"File or directory owned by different user",
		},
		suggestions: []string{
			"Check permissions on ~/.wasmedge directory",
			"Ensure you own the wasmedgeup directories: ls -la ~/.wasmedge",
		},
	}
}

// isRateLimitError checks if the error message indicates a rate limit
func isRateLimitError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate-limit") ||
		strings.Contains(lower, "too many requests")
}

// isNetworkError checks if the error message indicates a network issue
func isNetworkError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "network is unreachable") ||
		strings.Contains(lower, "dial tcp") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "i/o timeout")
}

// isPermissionError checks if the error message indicates a permission issue
func isPermissionError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "operation not permitted")
}
