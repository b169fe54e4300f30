package persistent

import (
	"container/list"
	"sync"
)

type memoryEntry struct {
	id      string
	payload []byte
}

// memoryQueue mirrors the Redis list + set pair in process memory.
type memoryQueue struct {
	mu    sync.Mutex
	items *list.List
	ids   map[string]struct{}
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{
		items: list.New(),
		ids:   make(map[string]struct{}),
	}
}

// push appends unless id is already present; it reports whether it did.
func (m *memoryQueue) push(id string, payload []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ids[id]; ok {
		return false
	}

	m.ids[id] = struct{}{}
	m.items.PushBack(memoryEntry{id: id, payload: payload})

	return true
}

func (m *memoryQueue) pop() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	front := m.items.Front()
	if front == nil {
		return nil, false
	}

	entry := m.items.Remove(front).(memoryEntry)
	delete(m.ids, entry.id)

	return entry.payload, true
}

func (m *memoryQueue) contains(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.ids[id]

	return ok
}

func (m *memoryQueue) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.items.Len()
}
