package keylock

import "sync"

// KeyedMutex serializes work per key. Every mutation touching a listing or
// its offers runs inside the listing's critical section; operations on
// different listings never contend.
type KeyedMutex struct {
	locks sync.Map // key → *sync.Mutex
}

// New returns an empty KeyedMutex.
func New() *KeyedMutex {
	return &KeyedMutex{}
}

// Lock acquires the mutex for key, creating it on first use.
// Mutexes are never evicted; the key space (listing ids) is bounded by the
// listings table and each entry is two words.
func (k *KeyedMutex) Lock(key string) {
	m, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	m.(*sync.Mutex).Lock()
}

// Unlock releases the mutex for key. Panics if Lock was not called first,
// same as sync.Mutex.
func (k *KeyedMutex) Unlock(key string) {
	m, ok := k.locks.Load(key)
	if !ok {
		panic("keylock: unlock of unheld key " + key)
	}
	m.(*sync.Mutex).Unlock()
}
