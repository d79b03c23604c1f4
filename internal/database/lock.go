package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFile marks a data directory as owned by a writing process.
const LockFile = ".lock"

// lockDataDir takes the exclusive advisory lock on dir. The lock is held on
// an open file descriptor, so a second writer fails even inside the same
// process.
func lockDataDir(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrPersistence, dir, err)
	}
	fl := flock.New(filepath.Join(dir, LockFile))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: lock %s: %w", ErrPersistence, dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrIndexLocked, dir)
	}
	return fl, nil
}
