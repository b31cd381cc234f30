// Package prompt builds the ordered message list handed to the completion
// service before each turn. The layering is fixed: agent memory window,
// process-wide context, location context, session history, relationship
// context, then the turn instruction. Later entries sit closer to the
// "current turn" end of the sequence.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fablemesh/converse/core"
	"github.com/fablemesh/converse/logging"
)

// Assembler merges layered context sources into a single prompt. It only ever
// reads collaborator state; relationship values are adjusted elsewhere.
type Assembler struct {
	memory core.MemoryStore
	world  core.WorldContext
	names  core.NameResolver
	window int
	logger logging.Logger
}

// Options configure an Assembler.
type Options struct {
	// MemoryWindow is the number of trailing agent-memory entries included
	// after the memory's fixed leading entry.
	MemoryWindow int
	// Logger receives memory-load failures; assembly itself never fails.
	Logger logging.Logger
}

// NewAssembler constructs an Assembler over the given collaborators.
func NewAssembler(memory core.MemoryStore, world core.WorldContext, names core.NameResolver, optFns ...func(o *Options)) *Assembler {
	opts := Options{MemoryWindow: 20, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Assembler{memory: memory, world: world, names: names, window: opts.MemoryWindow, logger: opts.Logger}
}

// Assemble builds the prompt for one turn of speaker within sess. The result
// is handed verbatim to the completion service.
func (a *Assembler) Assemble(speaker core.AgentID, sess *core.Session) []core.Message {
	mem, err := a.memory.Load(speaker)
	if err != nil {
		a.logger.Warn("failed to load memory for %s: %v", speaker, err)
		mem = &core.AgentMemory{}
	}

	var out []core.Message

	out = append(out, mem.Window(a.window)...)

	for _, entry := range a.world.GeneralContext() {
		out = append(out, core.NewSystemMessage(entry))
	}
	if mem.Location != "" {
		for _, entry := range a.world.LocationContext(mem.Location) {
			out = append(out, core.NewSystemMessage(entry))
		}
	}

	out = append(out, sess.History()...)

	out = append(out, core.NewSystemMessage(a.relationContext(mem)))
	out = append(out, core.NewSystemMessage(a.turnInstruction(speaker, sess)))

	return out
}

// AssembleGreeting builds the prompt used to generate a greeting for an agent
// joining an ongoing conversation: the agent's own context, the most recent
// history lines, and a single-line instruction.
func (a *Assembler) AssembleGreeting(joining core.AgentID, sess *core.Session) []core.Message {
	mem, err := a.memory.Load(joining)
	if err != nil {
		a.logger.Warn("failed to load memory for %s: %v", joining, err)
		mem = &core.AgentMemory{}
	}

	others := a.participantNames(sess, joining)

	var out []core.Message
	out = append(out, core.NewSystemMessage(fmt.Sprintf(
		"You are %s. %s\n\nYou are joining an ongoing conversation with: %s\n\n"+
			"Generate a greeting or introduction that acknowledges the ongoing conversation. "+
			"Keep it brief and in-character. Don't use quotation marks or indicate who is speaking.",
		joining, mem.Context, strings.Join(others, ", "))))

	history := sess.History()
	if len(history) > 10 {
		history = history[len(history)-10:]
	}
	for _, m := range history {
		out = append(out, core.Message{Role: core.RoleUser, Text: fmt.Sprintf("%s: %s", m.Role, m.Text)})
	}

	out = append(out, core.Message{Role: core.RoleUser, Text: fmt.Sprintf(
		"Write a single greeting or introduction line as %s joining this conversation.", joining)})
	return out
}

// relationContext renders the speaker's relationship values in deterministic
// order plus the directive not to leak them as dialogue.
func (a *Assembler) relationContext(mem *core.AgentMemory) string {
	keys := make([]string, 0, len(mem.Relations))
	for k := range mem.Relations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("Relations: {")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%d", k, mem.Relations[k])
	}
	sb.WriteString("}. Your responses should reflect your relations with the other characters if applicable. Never print out the relation as dialogue.")
	return sb.String()
}

// turnInstruction names the speaker and the other participants and forbids
// fabricating their lines.
func (a *Assembler) turnInstruction(speaker core.AgentID, sess *core.Session) string {
	others := a.participantNames(sess, speaker)
	return fmt.Sprintf(
		"You are %s. You are currently in a conversation with: %s. "+
			"This is YOUR turn to speak. Do NOT generate dialogue for others. "+
			"Address the relevant character(s) naturally based on previous dialogue.",
		speaker, strings.Join(others, ", "))
}

// participantNames lists every participant except exclude, agents first in
// turn order, then player display names.
func (a *Assembler) participantNames(sess *core.Session, exclude core.AgentID) []string {
	var names []string
	for _, agent := range sess.Agents() {
		if agent != exclude {
			names = append(names, string(agent))
		}
	}
	for _, p := range sess.Players() {
		names = append(names, a.names.PlayerName(p))
	}
	return names
}
