// Package consequence implements the post-session pipeline: summarization
// with significance scoring, structured relationship-effect extraction, and
// rumor propagation. All sub-pipelines run asynchronously and are
// fire-and-forget relative to session teardown; failures are logged, never
// propagated.
package consequence

import (
	"context"
	"fmt"
	"strings"

	"github.com/fablemesh/converse/core"
	"github.com/fablemesh/converse/logging"
	"github.com/fablemesh/converse/model"
)

const summaryInstruction = `Summarize this conversation concisely and chronologically, focusing on key information and events.
Analyze what happened and rate the conversation's significance on a scale of 0-10:
- 0-2: Not significant (greetings, small talk with no useful information)
- 3-5: Somewhat significant (basic information shared)
- 6-8: Significant (meaningful interaction, relationship development)
- 9-10: Highly significant (major revelations, critical information)

Format your response exactly like this:
[SUMMARY]
Your actual summary text here...
[SIGNIFICANCE: X]

Where X is the numeric significance rating (0-10).
Both sections are required.`

// Processor runs the post-session consequence pipeline.
type Processor struct {
	completer model.Completer
	memory    core.MemoryStore
	rumors    core.RumorSink
	logger    logging.Logger
	threshold int
}

// Options configure a Processor.
type Options struct {
	// SignificanceThreshold gates writing summaries to agent memory: only
	// ratings strictly greater than it are persisted.
	SignificanceThreshold int
	// Rumors receives every finished conversation. Nil disables propagation.
	Rumors core.RumorSink
	// Logger receives pipeline failures.
	Logger logging.Logger
}

// NewProcessor constructs a Processor over the completion service and memory
// store.
func NewProcessor(completer model.Completer, memory core.MemoryStore, optFns ...func(o *Options)) *Processor {
	opts := Options{SignificanceThreshold: 2, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Processor{
		completer: completer,
		memory:    memory,
		rumors:    opts.Rumors,
		logger:    opts.Logger,
		threshold: opts.SignificanceThreshold,
	}
}

// Process runs all three sub-pipelines for a finished conversation. Each runs
// on its own goroutine; Process returns immediately.
func (p *Processor) Process(history []core.Message, agents []core.AgentID, playerName, location string) {
	go p.summarize(history, agents)
	go p.applyEffects(history, agents, playerName)
	go p.propagate(history, agents, location)
}

// LeaveSummary asynchronously writes a private plain summary of the dialogue
// so far into the departing agent's memory. Used when an agent leaves a
// conversation that keeps going without it.
func (p *Processor) LeaveSummary(history []core.Message, agents []core.AgentID, playerName string, departing core.AgentID) {
	if len(history) == 0 {
		return
	}
	prompt := buildTranscriptPrompt(fmt.Sprintf("Summarize this conversation between %s and NPCs %s.\n", playerName, joinAgents(agents)), history)
	go func() {
		summary, err := p.completer.Complete(context.Background(), []core.Message{core.NewSystemMessage(prompt)})
		if err != nil || summary == "" {
			p.logger.Warn("failed to summarize conversation for departing agent %s: %v", departing, err)
			return
		}
		if err := p.memory.AppendSystemEntry(departing, summary); err != nil {
			p.logger.Warn("failed to store leave summary for %s: %v", departing, err)
		}
	}()
}

func (p *Processor) summarize(history []core.Message, agents []core.AgentID) {
	if len(history) < 3 {
		// Trivial conversations carry nothing worth remembering.
		return
	}
	prompts := make([]core.Message, 0, len(history)+1)
	prompts = append(prompts, history...)
	prompts = append(prompts, core.NewSystemMessage(summaryInstruction))

	response, err := p.completer.Complete(context.Background(), prompts)
	if err != nil {
		p.logger.Warn("conversation summarization failed: %v", err)
		return
	}
	if response == "" {
		p.logger.Warn("conversation summarization returned no text")
		return
	}

	summary, significance := ParseSummary(response)
	p.logger.Info("conversation summary significance: %d", significance)

	if significance <= p.threshold {
		p.logger.Info("skipped adding insignificant conversation to memory")
		return
	}
	for _, agent := range agents {
		if err := p.memory.AppendSystemEntry(agent, summary); err != nil {
			p.logger.Warn("failed to store summary for %s: %v", agent, err)
		}
	}
	p.logger.Info("added significant conversation to memory")
}

func (p *Processor) applyEffects(history []core.Message, agents []core.AgentID, playerName string) {
	if len(history) == 0 {
		return
	}
	prompt := p.effectsPrompt(history, agents, playerName)

	for _, agent := range agents {
		response, err := p.completer.Complete(context.Background(), []core.Message{core.NewSystemMessage(prompt)})
		if err != nil || response == "" {
			p.logger.Warn("effect extraction for %s returned nothing: %v", agent, err)
			continue
		}
		for _, effect := range ParseEffects(response) {
			p.apply(effect)
		}
	}
}

func (p *Processor) apply(effect Effect) {
	switch effect.Kind {
	case "relation":
		if err := p.memory.AdjustRelation(core.AgentID(effect.Character), effect.Target, effect.Value); err != nil {
			p.logger.Warn("failed to adjust relation %s -> %s: %v", effect.Character, effect.Target, err)
		}
	default:
		p.logger.Info("ignoring unknown effect kind %q for %s", effect.Kind, effect.Character)
	}
}

func (p *Processor) propagate(history []core.Message, agents []core.AgentID, location string) {
	if p.rumors == nil {
		return
	}
	// Always invoked once per session end; not gated by significance.
	p.rumors.RecordSignificantConversation(history, agents, location)
}

func (p *Processor) effectsPrompt(history []core.Message, agents []core.AgentID, playerName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Apply effects of this conversation between %s and %s.\n", playerName, joinAgents(agents))
	sb.WriteString("To apply effects, output the effects in the following format: \n")
	sb.WriteString("Character: <name> possible values: [name of the npc] \n")
	sb.WriteString("Effect: <effect name> possible values: [relation] \n")
	fmt.Fprintf(&sb, "Target: <target name> possible values: %s\n", playerName)
	sb.WriteString("Value: -20, 20 (only change as much needed) \n")
	sb.WriteString("Example: \n")
	sb.WriteString("Conversation summarisation: Player helps NPC greatly, which gains trust. \n")
	sb.WriteString("Character: Mira \nEffect: relation \nTarget: player \nValue: 10 \n")
	sb.WriteString("Here's the conversation, apply effects only if necessary: \n")
	for _, m := range history {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Text)
	}
	return sb.String()
}

func buildTranscriptPrompt(header string, history []core.Message) string {
	var sb strings.Builder
	sb.WriteString(header)
	for _, m := range history {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Text)
	}
	return sb.String()
}

func joinAgents(agents []core.AgentID) string {
	names := make([]string, len(agents))
	for i, a := range agents {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}
