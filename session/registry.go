package session

import (
	"fmt"
	"sync"

	"github.com/fablemesh/converse/core"
)

// Registry owns the mapping of session id to live session and provides
// participant lookups. It is safe for concurrent access, though in normal
// operation all mutation arrives from the engine's main loop.
//
// Invariants enforced here:
//   - an agent belongs to at most one registered session
//   - Remove is idempotent
//   - All returns a snapshot safe to iterate during bulk teardown
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*core.Session)}
}

// Create allocates and indexes a new active session. It fails with
// core.ErrParticipantConflict if any requested agent is already a member of a
// registered session.
func (r *Registry) Create(players []core.PlayerID, agents []core.AgentID) (*core.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range agents {
		for _, existing := range r.sessions {
			if existing.HasAgent(a) {
				return nil, fmt.Errorf("agent %s: %w", a, core.ErrParticipantConflict)
			}
		}
	}
	s := core.NewSession(players, agents)
	r.sessions[s.ID] = s
	return s, nil
}

// Get returns the session with the given id, or nil.
func (r *Registry) Get(id string) *core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// FindByPlayer returns the registered session containing the player, or nil.
func (r *Registry) FindByPlayer(p core.PlayerID) *core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.HasPlayer(p) {
			return s
		}
	}
	return nil
}

// FindByAgent returns the registered session containing the agent, or nil.
func (r *Registry) FindByAgent(a core.AgentID) *core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.HasAgent(a) {
			return s
		}
	}
	return nil
}

// Remove unindexes a session. Removing an unknown or already removed session
// is a no-op.
func (r *Registry) Remove(s *core.Session) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s.ID)
}

// All returns a snapshot copy of the registered sessions so callers can end
// sessions while iterating without concurrent-modification hazards.
func (r *Registry) All() []*core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
