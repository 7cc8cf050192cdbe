// Package lock provides lazily-allocated named mutexes.
package lock

import "sync"

// Map hands out one mutex per key. The execution tracker uses it to
// serialize writes per command record: records own disjoint state, so no
// cross-record locking is ever taken.
type Map struct {
	mu      sync.Mutex
	mutexes map[string]*sync.Mutex
}

func NewMap() *Map {
	return &Map{mutexes: make(map[string]*sync.Mutex)}
}

func (m *Map) Lock(key string) {
	m.get(key).Lock()
}

func (m *Map) Unlock(key string) {
	m.get(key).Unlock()
}

func (m *Map) get(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mu, ok := m.mutexes[key]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	m.mutexes[key] = mu
	return mu
}
