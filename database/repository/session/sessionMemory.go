package sessionRepo

import (
	"context"
	"sync"

	"flexify/models"
)

// MemorySessionStorage keeps the session for the lifetime of the process.
// Used when no Redis is configured and in tests.
type MemorySessionStorage struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemorySessionStorage() *MemorySessionStorage {
	return &MemorySessionStorage{data: make(map[string]string)}
}

func (m *MemorySessionStorage) Load(ctx context.Context) (models.PersistedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.PersistedSession{
		Token:        m.data[KeyToken],
		RefreshToken: m.data[KeyRefreshToken],
		User:         m.data[KeyUser],
		Role:         m.data[KeyRole],
	}, nil
}

func (m *MemorySessionStorage) Save(ctx context.Context, s models.PersistedSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[KeyToken] = s.Token
	m.data[KeyRefreshToken] = s.RefreshToken
	m.data[KeyUser] = s.User
	m.data[KeyRole] = s.Role
	return nil
}

func (m *MemorySessionStorage) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range Keys {
		delete(m.data, k)
	}
	return nil
}

// Set writes a single key. Tests use it to simulate partially written state.
func (m *MemorySessionStorage) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// Len returns the number of stored keys.
func (m *MemorySessionStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
