package storage

import (
	"sync"

	"wumen-backend/internal/model"
)

type MemoryStore struct {
	snapshots map[string][]model.Session
	mu        sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string][]model.Session),
	}
}

func (m *MemoryStore) Init() error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) Backup() error {
	return nil
}

func (m *MemoryStore) Load(key string) ([]model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot, exists := m.snapshots[key]
	if !exists {
		return nil, nil
	}

	// 拷贝一份，避免调用方改写内部状态
	out := make([]model.Session, len(snapshot))
	copy(out, snapshot)
	return out, nil
}

func (m *MemoryStore) Save(key string, sessions []model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make([]model.Session, len(sessions))
	copy(snapshot, sessions)
	m.snapshots[key] = snapshot
	return nil
}
