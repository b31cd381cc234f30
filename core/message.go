package core

import "fmt"

// Message roles mirror the chat-completion convention. Synthetic markers
// (joins, leaves, "X is listening") use RoleSystem or RoleUser exactly as they
// should appear in the prompt; the engine never rewrites history entries.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a conversation history or an assembled prompt.
// After being appended to a session it should be treated as immutable.
type Message struct {
	Role string `json:"role" yaml:"role"`
	Text string `json:"text" yaml:"text"`
}

// NewSystemMessage creates a system-role message.
func NewSystemMessage(text string) Message { return Message{Role: RoleSystem, Text: text} }

// NewUserMessage creates a user-role message attributed to a display name.
func NewUserMessage(name, text string) Message {
	return Message{Role: RoleUser, Text: fmt.Sprintf("%s: %s", name, text)}
}

// NewAgentMessage creates an assistant-role message spoken by an agent. The
// speaker name is embedded in the text so multi-party histories stay
// attributable after assembly.
func NewAgentMessage(agent AgentID, text string) Message {
	return Message{Role: RoleAssistant, Text: fmt.Sprintf("%s: %s", agent, text)}
}

// NewListeningMarker creates the synthetic turn-handoff marker naming the next
// speaker in sequence.
func NewListeningMarker(next AgentID) Message {
	return Message{Role: RoleUser, Text: fmt.Sprintf("%s listens", next)}
}
