// Package runlock keeps a single encoder process draining a queue at a time.
// Admission commands never take the lock; only the encode loop and the
// commands that would disturb a running encode consult it.
package runlock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"reencode/internal/services"
)

// Lock guards the encoder loop with an advisory file lock.
type Lock struct {
	path string
	lock *flock.Flock
}

// New returns an unlocked Lock for path.
func New(path string) *Lock {
	return &Lock{path: path, lock: flock.New(path)}
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes the lock without blocking. It returns ErrAlreadyActive when
// another encoder holds it.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return services.Wrap(services.ErrAlreadyActive, "runlock", "acquire",
			fmt.Sprintf("another encoder holds %s", l.path), nil)
	}
	return nil
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *Lock) Release() error {
	if !l.lock.Locked() {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Held reports whether this Lock currently owns the file lock.
func (l *Lock) Held() bool {
	return l.lock.Locked()
}

// InUse reports whether any process, this one included, holds the lock at
// path. It probes with a second handle and releases it immediately.
func InUse(path string) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	probe := flock.New(path)
	ok, err := probe.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe lock: %w", err)
	}
	if !ok {
		return true, nil
	}
	if err := probe.Unlock(); err != nil {
		return false, fmt.Errorf("release probe lock: %w", err)
	}
	return false, nil
}
