package sync

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/notedb/notedb/internal/errors"
)

// SessionLock serializes syncs against one database across processes.
type SessionLock struct {
	fl     *flock.Flock
	locked bool
}

// NewSessionLock creates a lock at path. The lock is not held until
// TryLock succeeds.
func NewSessionLock(path string) *SessionLock {
	return &SessionLock{fl: flock.New(path)}
}

// TryLock attempts to take the lock without blocking. A lock held by
// another process yields an ERR_506 error.
func (l *SessionLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.fl.Path()), 0o755); err != nil {
		return errors.New(errors.ErrCodeFilePermission,
			"cannot create lock directory", err)
	}

	ok, err := l.fl.TryLock()
	if err != nil {
		return errors.InternalError("cannot acquire sync lock", err)
	}
	if !ok {
		return errors.New(errors.ErrCodeSyncBusy,
			"another sync is already running against this database", nil).
			WithDetail("lock", l.fl.Path()).
			WithSuggestion("wait for the running sync to finish and retry")
	}

	l.locked = true
	return nil
}

// Unlock releases the lock if held.
func (l *SessionLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	return l.fl.Unlock()
}
