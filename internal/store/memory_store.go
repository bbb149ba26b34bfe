package store

import (
	"sort"
	"sync"

	"autodiag/pkg/domain"
)

// MemoryStore keeps sessions in-process. State is lost on restart by
// design; it is the default backend when no database URL is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]domain.Session)}
}

// CreateSession stores a new session record.
func (m *MemoryStore) CreateSession(s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

// GetSession retrieves a session by id.
func (m *MemoryStore) GetSession(id string) (domain.Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, false, nil
	}
	return copySession(s), true, nil
}

// AppendTurn appends both turn messages and refreshes derived fields.
func (m *MemoryStore) AppendTurn(id string, userMsg, assistantMsg domain.Message, diagnosisComplete bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Messages = append(s.Messages, userMsg, assistantMsg)
	s.LastMessage = preview(assistantMsg.Content)
	s.MessageCount = len(s.Messages)
	if diagnosisComplete {
		s.DiagnosisComplete = true
	}
	m.sessions[id] = s
	return nil
}

// ListSessionsByOwner returns summaries sorted by creation time descending.
func (m *MemoryStore) ListSessionsByOwner(ownerID string) ([]domain.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.SessionSummary, 0)
	for _, s := range m.sessions {
		if s.OwnerID == ownerID {
			res = append(res, s.Summary())
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// DeleteSessionsByOwner removes all sessions for an owner in one critical
// section, so a concurrent append either lands before the delete or sees
// the session gone.
func (m *MemoryStore) DeleteSessionsByOwner(ownerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, s := range m.sessions {
		if s.OwnerID == ownerID {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// copySession returns a session with its own message slice so callers
// cannot mutate stored state.
func copySession(s domain.Session) domain.Session {
	msgs := make([]domain.Message, len(s.Messages))
	copy(msgs, s.Messages)
	s.Messages = msgs
	return s
}
