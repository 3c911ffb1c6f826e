package queue

// Locker hands out the scoped lock that serializes queue file access.
// *state.Actor implements it.
type Locker interface {
	WithFileLock(fn func() error) error
}

// Guarded runs every Store operation under the shared file lock. It is the
// only way the rest of the program touches links.txt.
type Guarded struct {
	store *Store
	lock  Locker
}

func NewGuarded(store *Store, lock Locker) *Guarded {
	return &Guarded{store: store, lock: lock}
}

func (g *Guarded) Path() string {
	return g.store.Path()
}

func (g *Guarded) Load() (urls []string, err error) {
	err = g.lock.WithFileLock(func() error {
		urls, err = g.store.Load()
		return err
	})
	return urls, err
}

func (g *Guarded) Save(urls []string) error {
	return g.lock.WithFileLock(func() error {
		return g.store.Save(urls)
	})
}

func (g *Guarded) Append(urls ...string) error {
	return g.lock.WithFileLock(func() error {
		return g.store.Append(urls...)
	})
}

func (g *Guarded) RemoveValue(url string) error {
	return g.lock.WithFileLock(func() error {
		return g.store.RemoveValue(url)
	})
}

func (g *Guarded) Sanitize() (res SanitizeResult, err error) {
	err = g.lock.WithFileLock(func() error {
		res, err = g.store.Sanitize()
		return err
	})
	return res, err
}
