package main

import "sync"

// mutexMap serializes the read-modify-commit sequence per task identifier.
// Two concurrent runs for the same task would otherwise both read the same
// branch head and race to advance it.
type mutexMap struct {
	mu      sync.Mutex
	mutexes map[string]*sync.Mutex
}

func newMutexMap() *mutexMap {
	return &mutexMap{
		mutexes: make(map[string]*sync.Mutex),
	}
}

func (m *mutexMap) lock(key string) {
	m.getMutex(key).Lock()
}

func (m *mutexMap) unlock(key string) {
	m.getMutex(key).Unlock()
}

func (m *mutexMap) getMutex(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mu, ok := m.mutexes[key]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	m.mutexes[key] = mu
	return mu
}
