package core

// Relationship values are clamped to this range. Only the consequence
// pipeline adjusts them; the prompt assembler reads them verbatim.
const (
	RelationMin = -100
	RelationMax = 100
)

// AgentMemory is the persistent per-agent record: a persona description, free
// text context, a bounded trailing conversation history whose first entry is a
// fixed system prompt, numeric relationship values toward other participants,
// and the agent's registered location name.
type AgentMemory struct {
	Persona   string         `yaml:"persona"`
	Context   string         `yaml:"context"`
	Location  string         `yaml:"location,omitempty"`
	History   []Message      `yaml:"history"`
	Relations map[string]int `yaml:"relations,omitempty"`
}

// Window returns the fixed leading system entry followed by the most recent k
// entries of the remaining history. With an empty history it returns nil.
func (m *AgentMemory) Window(k int) []Message {
	if len(m.History) == 0 {
		return nil
	}
	rest := m.History[1:]
	if len(rest) > k {
		rest = rest[len(rest)-k:]
	}
	out := make([]Message, 0, len(rest)+1)
	out = append(out, m.History[0])
	out = append(out, rest...)
	return out
}

// MemoryStore persists agent memory. Implementations must tolerate unknown
// agents by materializing an empty record on first access.
type MemoryStore interface {
	// Load returns the memory record for an agent.
	Load(agent AgentID) (*AgentMemory, error)

	// Save persists the full memory record for an agent.
	Save(agent AgentID, mem *AgentMemory) error

	// AppendSystemEntry appends a system-role entry (typically a conversation
	// summary) to the agent's trailing history.
	AppendSystemEntry(agent AgentID, text string) error

	// AdjustRelation applies a bounded delta to the agent's relationship
	// value toward target, clamping to [RelationMin, RelationMax].
	AdjustRelation(agent AgentID, target string, delta int) error
}
