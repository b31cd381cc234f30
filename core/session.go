package core

import (
	"sync"
	"time"
)

// SessionState is the lifecycle state of a Session.
type SessionState int

const (
	// SessionActive means the session accepts messages and participant changes.
	SessionActive SessionState = iota
	// SessionEnded is terminal. A session transitions to it exactly once and
	// is never resurrected.
	SessionEnded
)

// Session represents one live multi-party conversation: its player set, its
// ordered agent sequence (order defines turn order) and its append-only
// message history. It is safe for concurrent access.
//
// Contract:
//   - History/Players/Agents return defensive copies
//   - Append is a no-op once the session has ended
//   - End succeeds exactly once; later calls report false
type Session struct {
	ID      string
	Created time.Time

	mu      sync.RWMutex
	players []PlayerID
	agents  []AgentID
	history []Message
	state   SessionState
}

// NewSession creates an active session with the given participants. The agent
// order is preserved; duplicate agents are dropped.
func NewSession(players []PlayerID, agents []AgentID) *Session {
	s := &Session{ID: NewID(), Created: time.Now(), state: SessionActive}
	for _, p := range players {
		s.players = append(s.players, p)
	}
	for _, a := range agents {
		if !containsAgent(s.agents, a) {
			s.agents = append(s.agents, a)
		}
	}
	return s
}

// Active reports whether the session is still in the active state.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == SessionActive
}

// End transitions the session to the ended state. It returns true only for
// the call that performed the transition, making teardown idempotent.
func (s *Session) End() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionEnded {
		return false
	}
	s.state = SessionEnded
	return true
}

// Players returns a copy of the player set.
func (s *Session) Players() []PlayerID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PlayerID, len(s.players))
	copy(out, s.players)
	return out
}

// Agents returns a copy of the ordered agent sequence.
func (s *Session) Agents() []AgentID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AgentID, len(s.agents))
	copy(out, s.agents)
	return out
}

// AgentCount returns the number of agents currently in the session.
func (s *Session) AgentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents)
}

// HasPlayer reports membership of a player.
func (s *Session) HasPlayer(p PlayerID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, existing := range s.players {
		if existing == p {
			return true
		}
	}
	return false
}

// HasAgent reports membership of an agent.
func (s *Session) HasAgent(a AgentID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return containsAgent(s.agents, a)
}

// AddPlayer adds a player to the session. It returns false if the player is
// already a member or the session has ended.
func (s *Session) AddPlayer(p PlayerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionActive {
		return false
	}
	for _, existing := range s.players {
		if existing == p {
			return false
		}
	}
	s.players = append(s.players, p)
	return true
}

// AddAgent appends an agent to the end of the turn sequence. It returns false
// if the agent is already a member or the session has ended.
func (s *Session) AddAgent(a AgentID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionActive || containsAgent(s.agents, a) {
		return false
	}
	s.agents = append(s.agents, a)
	return true
}

// RemoveAgent removes an agent from the turn sequence, preserving the order of
// the remaining agents. It returns false if the agent was not a member.
func (s *Session) RemoveAgent(a AgentID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.agents {
		if existing == a {
			s.agents = append(s.agents[:i], s.agents[i+1:]...)
			return true
		}
	}
	return false
}

// NextAgentAfter returns the agent following a in the turn sequence, wrapping
// to the first. The second return is false when a is not a member or the
// session has no agents.
func (s *Session) NextAgentAfter(a AgentID) (AgentID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, existing := range s.agents {
		if existing == a {
			return s.agents[(i+1)%len(s.agents)], true
		}
	}
	return "", false
}

// Append adds a message to the history. Appends after the session has ended
// are silently dropped; delayed turn continuations rely on this to avoid
// mutating a dead conversation.
func (s *Session) Append(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionActive {
		return
	}
	s.history = append(s.history, m)
}

// History returns a copy of the message history in insertion order.
func (s *Session) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

func containsAgent(agents []AgentID, a AgentID) bool {
	for _, existing := range agents {
		if existing == a {
			return true
		}
	}
	return false
}
