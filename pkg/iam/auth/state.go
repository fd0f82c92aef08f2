package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStateManager keeps login state in process memory. Suitable for
// development and tests only; a multi-instance deployment needs the redis
// backend so a callback can land on any instance.
type InMemoryStateManager struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]stateEntry

	now func() time.Time
}

type stateEntry struct {
	state     LoginState
	expiresAt time.Time
}

func NewInMemoryStateManager(ttl time.Duration) *InMemoryStateManager {
	return &InMemoryStateManager{
		ttl:     ttl,
		entries: make(map[string]stateEntry),
		now:     time.Now,
	}
}

func (m *InMemoryStateManager) Save(ctx context.Context, state LoginState) (string, error) {
	nonce := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	m.entries[nonce] = stateEntry{state: state, expiresAt: m.now().Add(m.ttl)}
	return nonce, nil
}

// Consume is one-shot: the entry is removed before it is returned, so a
// replayed nonce fails even when two callbacks race.
func (m *InMemoryStateManager) Consume(ctx context.Context, nonce string) (*LoginState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[nonce]
	if !ok {
		return nil, ErrInvalidState()
	}
	delete(m.entries, nonce)

	if m.now().After(entry.expiresAt) {
		return nil, ErrInvalidState().WithDetail("reason", "expired")
	}
	state := entry.state
	return &state, nil
}

func (m *InMemoryStateManager) pruneLocked() {
	now := m.now()
	for nonce, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, nonce)
		}
	}
}
