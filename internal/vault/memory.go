package vault

import (
	"context"
	"sync"

	"github.com/clapogame/clapobot/internal/domain"
)

// Memory is an in-memory vault for tests. It mirrors Bolt's semantics,
// including the combined Adopt/Resolve operations, but survives nothing.
type Memory struct {
	mu       sync.Mutex
	secrets  map[string]domain.Secret
	sessions map[string]uint64
}

// NewMemory creates an empty in-memory vault.
func NewMemory() *Memory {
	return &Memory{
		secrets:  make(map[string]domain.Secret),
		sessions: make(map[string]uint64),
	}
}

func (m *Memory) Store(ctx context.Context, key string, secret domain.Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[key] = secret
	return nil
}

func (m *Memory) Load(ctx context.Context, key string) (domain.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	secret, ok := m.secrets[key]
	if !ok {
		return domain.Secret{}, domain.ErrNotFound
	}
	return secret, nil
}

func (m *Memory) Clear(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, key)
	return nil
}

func (m *Memory) Rename(ctx context.Context, oldKey, newKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	secret, ok := m.secrets[oldKey]
	if !ok {
		return domain.ErrNotFound
	}
	m.secrets[newKey] = secret
	delete(m.secrets, oldKey)
	return nil
}

func (m *Memory) Adopt(ctx context.Context, address string, matchID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	secret, ok := m.secrets[PendingKey(address)]
	if !ok {
		return domain.ErrNotFound
	}
	m.secrets[MatchKey(matchID)] = secret
	delete(m.secrets, PendingKey(address))
	m.sessions[address] = matchID
	return nil
}

func (m *Memory) Resolve(ctx context.Context, address string, matchID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, MatchKey(matchID))
	delete(m.secrets, PendingKey(address))
	delete(m.sessions, address)
	return nil
}

// Sessions returns the session-store view.
func (m *Memory) Sessions() domain.SessionStore {
	return memorySessions{m}
}

type memorySessions struct {
	m *Memory
}

func (s memorySessions) Get(ctx context.Context, address string) (uint64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	id, ok := s.m.sessions[address]
	if !ok {
		return 0, domain.ErrNoActiveMatch
	}
	return id, nil
}

func (s memorySessions) Set(ctx context.Context, address string, matchID uint64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.sessions[address] = matchID
	return nil
}

func (s memorySessions) Clear(ctx context.Context, address string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.sessions, address)
	return nil
}

// Compile-time interface checks.
var _ domain.SecretVault = (*Memory)(nil)
