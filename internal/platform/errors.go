package platform

import (
	"errors"
	"fmt"
)

// ErrUnsupportedPlatform matches every UnsupportedPlatformError via errors.Is.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// UnsupportedPlatformError reports a platform that has no release artifacts
// or could not be determined.
type UnsupportedPlatformError struct {
	Descriptor Descriptor
	Reason     string
}

func (e *UnsupportedPlatformError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unsupported platform %s", e.Descriptor)
	}
	return fmt.Sprintf("unsupported platform %s: %s", e.Descriptor, e.Reason)
}

func (e *UnsupportedPlatformError) Unwrap() error {
	return ErrUnsupportedPlatform
}
