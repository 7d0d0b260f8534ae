// Package lock provides per-key mutual exclusion. The ledger uses it to keep
// one in-flight writer per account.
package lock

import (
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Keyed hands out one mutex per key. Mutexes are created on first use and
// kept for the process lifetime.
type Keyed struct {
	locks cmap.ConcurrentMap[string, *sync.Mutex]
}

// NewKeyed creates an empty keyed lock.
func NewKeyed() *Keyed {
	return &Keyed{locks: cmap.New[*sync.Mutex]()}
}

// Lock blocks until key is held and returns the matching unlock func.
func (k *Keyed) Lock(key string) (unlock func()) {
	m := k.locks.Upsert(key, nil, func(exist bool, current, _ *sync.Mutex) *sync.Mutex {
		if exist {
			return current
		}
		return &sync.Mutex{}
	})
	m.Lock()
	return m.Unlock
}

// Len returns how many keys have a mutex.
func (k *Keyed) Len() int {
	return k.locks.Count()
}
