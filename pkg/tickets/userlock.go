package tickets

import "sync"

// keyedMutex serialises work per key. Different keys never contend.
type keyedMutex struct {
	mut   sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		locks: make(map[string]*refMutex),
	}
}

// Lock locks key and returns the func that unlocks it.
func (k *keyedMutex) Lock(key string) func() {
	k.mut.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = new(refMutex)
		k.locks[key] = m
	}
	m.refs++
	k.mut.Unlock()

	m.Lock()
	return func() {
		m.Unlock()

		k.mut.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mut.Unlock()
	}
}
