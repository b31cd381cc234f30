package memory

import (
	"sync"

	"github.com/fablemesh/converse/core"
)

// DefaultMaxHistory bounds the trailing history retained per agent: the fixed
// leading system entry plus this many most-recent entries.
const DefaultMaxHistory = 200

// InMemoryStore is a volatile core.MemoryStore keeping agent records in a
// process local map. Safe for concurrent access. Records are deep-copied on
// the way in and out so callers cannot mutate stored state.
type InMemoryStore struct {
	mu         sync.RWMutex
	records    map[core.AgentID]*core.AgentMemory
	maxHistory int
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[core.AgentID]*core.AgentMemory), maxHistory: DefaultMaxHistory}
}

// Load returns the memory record for an agent, materializing an empty one for
// unknown agents.
func (s *InMemoryStore) Load(agent core.AgentID) (*core.AgentMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[agent]; ok {
		return cloneMemory(rec), nil
	}
	return &core.AgentMemory{Relations: map[string]int{}}, nil
}

// Save stores a deep copy of the record.
func (s *InMemoryStore) Save(agent core.AgentID, mem *core.AgentMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[agent] = cloneMemory(mem)
	return nil
}

// AppendSystemEntry appends a system-role entry to the agent's trailing
// history, trimming to the retention bound.
func (s *InMemoryStore) AppendSystemEntry(agent core.AgentID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[agent]
	if !ok {
		rec = &core.AgentMemory{Relations: map[string]int{}}
		s.records[agent] = rec
	}
	rec.History = append(rec.History, core.NewSystemMessage(text))
	rec.History = trimHistory(rec.History, s.maxHistory)
	return nil
}

// AdjustRelation applies a bounded delta to the agent's relationship value
// toward target.
func (s *InMemoryStore) AdjustRelation(agent core.AgentID, target string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[agent]
	if !ok {
		rec = &core.AgentMemory{Relations: map[string]int{}}
		s.records[agent] = rec
	}
	if rec.Relations == nil {
		rec.Relations = map[string]int{}
	}
	rec.Relations[target] = clampRelation(rec.Relations[target] + delta)
	return nil
}

// trimHistory keeps the fixed leading entry plus the most-recent max entries.
func trimHistory(history []core.Message, max int) []core.Message {
	if max <= 0 || len(history) <= max+1 {
		return history
	}
	trimmed := make([]core.Message, 0, max+1)
	trimmed = append(trimmed, history[0])
	trimmed = append(trimmed, history[len(history)-max:]...)
	return trimmed
}

func clampRelation(v int) int {
	if v < core.RelationMin {
		return core.RelationMin
	}
	if v > core.RelationMax {
		return core.RelationMax
	}
	return v
}

func cloneMemory(mem *core.AgentMemory) *core.AgentMemory {
	clone := &core.AgentMemory{
		Persona:   mem.Persona,
		Context:   mem.Context,
		Location:  mem.Location,
		History:   make([]core.Message, len(mem.History)),
		Relations: make(map[string]int, len(mem.Relations)),
	}
	copy(clone.History, mem.History)
	for k, v := range mem.Relations {
		clone.Relations[k] = v
	}
	return clone
}
