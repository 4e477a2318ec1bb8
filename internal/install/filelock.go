package install

import (
	"errors"
	"os"
)

// errLockHeld is returned by tryLock when another holder owns the lock.
var errLockHeld = errors.New("lock held")

// FileLock is an exclusive advisory lock on a file. Locks are held per open
// file, so two FileLocks on the same path exclude each other even within
// one process.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock returns an unlocked FileLock for path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryLock acquires the lock without blocking. It returns errLockHeld when
// the lock is taken.
func (l *FileLock) TryLock() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	if err := tryLockFile(f); err != nil {
		f.Close()
		return err
	}
	l.file = f
	return nil
}

// Unlock releases the lock. Unlocking an unheld lock is a no-op.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	err := unlockFile(l.file)
	if closeErr := l.file.Close(); err == nil {
		err = closeErr
	}
	l.file = nil
	return err
}
