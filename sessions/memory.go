package sessions

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-process [Store]. Suitable for tests
// and single-node deployments; production setups use the gormstore
// implementation.
type MemoryStore struct {
	mu   sync.Mutex
	byID map[string]*Session
}

// NewMemoryStore describes the newmemorystore operation and its observable behavior.
//
// NewMemoryStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Session)}
}

// Save describes the save operation and its observable behavior.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

// Get describes the get operation and its observable behavior.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// GetByKey describes the getbykey operation and its observable behavior.
func (m *MemoryStore) GetByKey(_ context.Context, key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.findByKey(key)
	if s == nil {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// ListActive describes the listactive operation and its observable behavior.
func (m *MemoryStore) ListActive(_ context.Context, tenantID, userID string) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Session
	for _, s := range m.byID {
		if s.TenantID == tenantID && s.UserID == userID && s.EndedAt == nil {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

// End describes the end operation and its observable behavior.
func (m *MemoryStore) End(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[id]
	if !ok || s.EndedAt != nil {
		return ErrNotFound
	}
	s.EndedAt = &at
	return nil
}

// EndByKey describes the endbykey operation and its observable behavior.
func (m *MemoryStore) EndByKey(_ context.Context, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.findByKey(key)
	if s == nil || s.EndedAt != nil {
		return ErrNotFound
	}
	s.EndedAt = &at
	return nil
}

// EndAllForUser describes the endallforuser operation and its observable behavior.
func (m *MemoryStore) EndAllForUser(_ context.Context, tenantID, userID, exceptKey string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, s := range m.byID {
		if s.TenantID != tenantID || s.UserID != userID || s.EndedAt != nil {
			continue
		}
		if exceptKey != "" && s.Key == exceptKey {
			continue
		}
		ended := at
		s.EndedAt = &ended
		count++
	}
	return count, nil
}

// Touch describes the touch operation and its observable behavior.
func (m *MemoryStore) Touch(_ context.Context, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.findByKey(key)
	if s == nil || s.EndedAt != nil {
		return ErrNotFound
	}
	s.LastActivity = at
	return nil
}

// RotateKey describes the rotatekey operation and its observable behavior.
func (m *MemoryStore) RotateKey(_ context.Context, oldKey, newKey string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.findByKey(oldKey)
	if s == nil || s.EndedAt != nil {
		return ErrNotFound
	}
	s.Key = newKey
	s.LastActivity = at
	return nil
}

// EndInactive describes the endinactive operation and its observable behavior.
func (m *MemoryStore) EndInactive(_ context.Context, inactiveSince, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, s := range m.byID {
		if s.EndedAt == nil && s.LastActivity.Before(inactiveSince) {
			ended := at
			s.EndedAt = &ended
			count++
		}
	}
	return count, nil
}

// PurgeEnded describes the purgeended operation and its observable behavior.
func (m *MemoryStore) PurgeEnded(_ context.Context, endedBefore time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for id, s := range m.byID {
		if s.EndedAt != nil && s.EndedAt.Before(endedBefore) {
			delete(m.byID, id)
			count++
		}
	}
	return count, nil
}

// findByKey returns the open session holding key, falling back to an
// ended one so GetByKey can still report history. Callers under the lock.
func (m *MemoryStore) findByKey(key string) *Session {
	var ended *Session
	for _, s := range m.byID {
		if s.Key != key {
			continue
		}
		if s.EndedAt == nil {
			return s
		}
		ended = s
	}
	return ended
}
