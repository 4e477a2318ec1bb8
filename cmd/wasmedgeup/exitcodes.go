package main

import (
	"context"
	"errors"
	"os"

	"github.com/tsukumogami/wasmedgeup/internal/archive"
	"github.com/tsukumogami/wasmedgeup/internal/download"
	"github.com/tsukumogami/wasmedgeup/internal/install"
	"github.com/tsukumogami/wasmedgeup/internal/platform"
	"github.com/tsukumogami/wasmedgeup/internal/version"
)

// Exit codes for different error types.
// These enable scripts to distinguish between failure modes.
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0

	// ExitGeneral indicates a general error
	ExitGeneral = 1

	// ExitUsage indicates invalid arguments or usage error
	ExitUsage = 2

	// ExitUnsupportedPlatform indicates no build exists for the platform
	ExitUnsupportedPlatform = 3

	// ExitNoMatchingVersion indicates no release satisfies the request
	ExitNoMatchingVersion = 4

	// ExitNetwork indicates a network error
	ExitNetwork = 5

	// ExitAssetNotFound indicates the release has no artifact to download
	ExitAssetNotFound = 6

	// ExitChecksumMismatch indicates verification failed
	ExitChecksumMismatch = 7

	// ExitExtractionFailed indicates the archive could not be unpacked
	ExitExtractionFailed = 8

	// ExitNotInstalled indicates the named version or plugin is not installed
	ExitNotInstalled = 9

	// ExitNoActiveVersion indicates an active version is required
	ExitNoActiveVersion = 10

	// ExitLockContention indicates another process holds the state lock
	ExitLockContention = 11

	// ExitInterrupted indicates the operation was cancelled
	ExitInterrupted = 130
)

// exitCodeFor maps an error to its exit code. More specific kinds are
// checked first: an AssetNotFound is also a NetworkError.
func exitCodeFor(err error) int {
	var resolverErr *version.ResolverError
	var fetchErr *download.NetworkError
	var sumErr *download.ChecksumMismatchError

	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, install.ErrLockContention):
		return ExitLockContention
	case errors.Is(err, platform.ErrUnsupportedPlatform):
		return ExitUnsupportedPlatform
	case errors.As(err, &sumErr):
		return ExitChecksumMismatch
	case errors.Is(err, archive.ErrExtractionFailed):
		return ExitExtractionFailed
	case errors.Is(err, install.ErrVersionNotInstalled), errors.Is(err, install.ErrPluginNotInstalled):
		return ExitNotInstalled
	case errors.Is(err, install.ErrNoActiveVersion):
		return ExitNoActiveVersion
	case errors.Is(err, version.ErrNoMatchingVersion):
		return ExitNoMatchingVersion
	case errors.Is(err, download.ErrAssetNotFound):
		return ExitAssetNotFound
	case errors.As(err, &resolverErr):
		if resolverErr.Type == version.ErrTypeValidation {
			return ExitUsage
		}
		if resolverErr.IsNetwork() {
			return ExitNetwork
		}
		return ExitGeneral
	case errors.As(err, &fetchErr):
		return ExitNetwork
	default:
		return ExitGeneral
	}
}

// exitWithCode exits with the specified exit code
func exitWithCode(code int) {
	os.Exit(code)
}
