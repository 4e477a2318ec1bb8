package install

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionNotInstalled is returned when no record exists for a version.
	ErrVersionNotInstalled = errors.New("version not installed")

	// ErrNoActiveVersion is returned when an operation needs an active
	// version and none is set.
	ErrNoActiveVersion = errors.New("no active version")

	// ErrPluginNotInstalled is returned when no record exists for a plugin.
	ErrPluginNotInstalled = errors.New("plugin not installed")

	// ErrLockContention is returned when another process holds the state
	// lock for longer than the configured retries allow.
	ErrLockContention = errors.New("state directory is locked by another wasmedgeup process")
)

// Stage names the step of an operation that failed.
type Stage string

const (
	StageResolve Stage = "resolve"
	StageFetch   Stage = "fetch"
	StageVerify  Stage = "verify"
	StageExtract Stage = "extract"
	StageCommit  Stage = "commit"
)

// OpError wraps every failure returned by Manager.
type OpError struct {
	Op    string // install, use, remove, plugin install, plugin remove
	Stage Stage
	Input string // version, constraint, plugin name or URL
	Err   error
}

func (e *OpError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("%s failed during %s: %v", e.Op, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s failed during %s: %v", e.Op, e.Input, e.Stage, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
