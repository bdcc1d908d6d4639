// Package worklock enforces the single-reader-single-writer invariant on
// a directory (spec.md §5), using a filesystem advisory lock. The
// orchestrator takes it on the work directory for a whole run; the music
// cache directory is not locked through this package.
//
// Grounded on five82-spindle, a disc-ripping/encode pipeline that flocks
// its working-state directory for the same "one active run at a time"
// reason.
package worklock

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is a held advisory lock over a directory's control file.
type Lock struct {
	fl   *flock.Flock
	path string
}

// Acquire takes an exclusive, non-blocking lock over dir. Returns an error
// if another process already holds it — callers should surface this as a
// user-facing "another cinecut run is already using this directory" hint.
func Acquire(dir string) (*Lock, error) {
	lockPath := filepath.Join(dir, ".cinecut.lock")
	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("work directory %s is locked by another run", dir)
	}
	return &Lock{fl: fl, path: lockPath}, nil
}

// Release unlocks the lock; the lock file itself is left in place.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	return l.fl.Unlock()
}
