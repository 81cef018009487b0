package callstore

import (
	"context"
	"sort"
	"sync"

	"famline/internal/callsession"
)

// MemoryLive implements LiveStore in process memory.
// Used by tests and redis-less local runs.
type MemoryLive struct {
	mu   sync.RWMutex
	live map[string]*callsession.CallSession // key: group/type/call
}

func NewMemoryLive() *MemoryLive {
	return &MemoryLive{live: make(map[string]*callsession.CallSession)}
}

func liveKey(groupID string, t callsession.CallType, callID string) string {
	return groupID + "/" + string(t) + "/" + callID
}

func (m *MemoryLive) Put(_ context.Context, s *callsession.CallSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live[liveKey(s.GroupID, s.Type, s.CallID)] = s.Clone()
	return nil
}

func (m *MemoryLive) Get(_ context.Context, groupID string, t callsession.CallType, callID string) (*callsession.CallSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.live[liveKey(groupID, t, callID)]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryLive) List(_ context.Context, groupID string, t callsession.CallType) ([]*callsession.CallSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*callsession.CallSession
	for _, s := range m.live {
		if s.GroupID == groupID && s.Type == t {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryLive) Delete(_ context.Context, groupID string, t callsession.CallType, callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, liveKey(groupID, t, callID))
	return nil
}

// MemoryHistory implements HistoryStore in process memory.
type MemoryHistory struct {
	mu      sync.RWMutex
	history map[string]*callsession.CallSession // key: call id
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{history: make(map[string]*callsession.CallSession)}
}

func (m *MemoryHistory) Insert(_ context.Context, s *callsession.CallSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[s.CallID] = s.Clone()
	return nil
}

func (m *MemoryHistory) ListEnded(_ context.Context, groupID string, t callsession.CallType, limit int) ([]*callsession.CallSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*callsession.CallSession
	for _, s := range m.history {
		if s.GroupID == groupID && s.Type == t {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryHistory) SetRecording(_ context.Context, callID string, rec callsession.Recording) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.history[callID]
	if !ok {
		return ErrNotFound
	}
	r := rec
	s.Recording = &r
	return nil
}

func (m *MemoryHistory) Get(_ context.Context, callID string) (*callsession.CallSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.history[callID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}
