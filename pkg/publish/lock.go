package publish

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/jlrickert/letterpress/pkg/config"
)

// ErrLocked is returned when another process publishes into the same site
// directory.
var ErrLocked = errors.New("site directory locked by another process")

// SiteLock is an exclusive advisory lock on a site directory, held through
// {site_dir}/.letterpress.lock.
type SiteLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewSiteLock returns an unlocked lock for siteDir.
func NewSiteLock(siteDir string) *SiteLock {
	path := filepath.Join(siteDir, config.LockFileName)
	return &SiteLock{path: path, flock: flock.New(path)}
}

// TryLock acquires the lock without blocking. It returns ErrLocked when the
// lock is held elsewhere.
func (l *SiteLock) TryLock() error {
	if l.locked {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", l.path, ErrLocked)
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Unlocking an unlocked lock is a no-op.
func (l *SiteLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (l *SiteLock) Path() string { return l.path }

// Locked reports whether this process holds the lock.
func (l *SiteLock) Locked() bool { return l.locked }
