package state

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/datallboy/autodl/internal/domain"
)

// fileLock serializes every read-modify-write of the persisted queue file.
type fileLock struct {
	mu       sync.Mutex
	poisoned atomic.Bool
}

// WithFileLock runs fn while holding the queue file lock. The lock is
// released on every return path. If fn panics the lock is poisoned: the
// panic is converted into ErrLockPoisoned and every later acquisition fails
// the same way, so nobody writes the file on top of a half-finished write.
func (a *Actor) WithFileLock(fn func() error) (err error) {
	if a.lock.poisoned.Load() {
		return domain.ErrLockPoisoned
	}

	a.lock.mu.Lock()
	defer a.lock.mu.Unlock()

	// Another holder may have poisoned it while we waited
	if a.lock.poisoned.Load() {
		return domain.ErrLockPoisoned
	}

	defer func() {
		if r := recover(); r != nil {
			a.lock.poisoned.Store(true)
			err = fmt.Errorf("%w: %v", domain.ErrLockPoisoned, r)
		}
	}()

	return fn()
}

// FileLockPoisoned reports whether a previous holder faulted
func (a *Actor) FileLockPoisoned() bool {
	return a.lock.poisoned.Load()
}
