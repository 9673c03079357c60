// Package locks provides the per-watch mutual-exclusion registry shared by
// the scheduler loop and the job workers. At most one holder per key; a
// failed acquire means someone else is reconciling that watch right now.
package locks

import "sync"

type Keyed struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

func NewKeyed() *Keyed {
	return &Keyed{held: make(map[int64]struct{})}
}

// TryAcquire claims the key if it is free. Never blocks; callers that miss
// skip the watch and come back on a later tick or dispatch round.
func (k *Keyed) TryAcquire(key int64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.held[key]; ok {
		return false
	}
	k.held[key] = struct{}{}
	return true
}

// Release frees the key. Releasing an unheld key is a no-op.
func (k *Keyed) Release(key int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.held, key)
}

// Held reports whether the key is currently claimed.
func (k *Keyed) Held(key int64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.held[key]
	return ok
}
