// Package converse provides a high-level façade over the conversation
// orchestration engine: multi-party, turn-based dialogue sessions between
// generated characters (agents) and human players. Most applications interact
// with this package by:
//  1. Creating a Converse via New() with a completion service (optionally
//     overriding the default in-memory collaborators)
//  2. Starting sessions and posting player messages as world events arrive
//  3. Letting the engine schedule staggered agent turns, indicators and
//     post-session consequences
//
// The façade delegates orchestration to engine.Engine while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; production hosts supply real positioning, rendering, broadcast and
// persistence implementations.
package converse

import (
	"github.com/fablemesh/converse/core"
	"github.com/fablemesh/converse/engine"
	"github.com/fablemesh/converse/logging"
	"github.com/fablemesh/converse/model"
)

// Options configures the Converse instance.
type Options struct {
	// EngineConfig contains scheduling parameters (debounce, stagger, think
	// delay, memory window, generation pool size).
	EngineConfig engine.Config

	// Memory persists per-agent memory. Defaults to an in-memory store.
	Memory core.MemoryStore

	// World supplies general and per-location context entries for prompts.
	World core.WorldContext

	// Positioner exposes world positioning and navigation.
	Positioner core.Positioner

	// Renderer draws presence indicators.
	Renderer core.IndicatorRenderer

	// Broadcaster delivers spoken lines and player notices.
	Broadcaster core.Broadcaster

	// Names resolves player display names. Defaults to identity.
	Names core.NameResolver

	// Rumors receives every finished conversation. Nil disables propagation.
	Rumors core.RumorSink

	// Logger defaults to NoOp logger if nil.
	Logger logging.Logger
}

// Converse is the high-level façade aggregating the engine and its
// collaborators.
type Converse struct {
	opts   Options
	engine *engine.Engine
}

// New creates a Converse instance around a completion service with optional
// overrides. Any unset collaborator is initialized with an in-memory or no-op
// implementation.
func New(completer model.Completer, optFns ...func(o *Options)) *Converse {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(completer, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		if opts.Memory != nil {
			o.Memory = opts.Memory
		}
		if opts.World != nil {
			o.World = opts.World
		}
		if opts.Positioner != nil {
			o.Positioner = opts.Positioner
		}
		if opts.Renderer != nil {
			o.Renderer = opts.Renderer
		}
		if opts.Broadcaster != nil {
			o.Broadcaster = opts.Broadcaster
		}
		if opts.Names != nil {
			o.Names = opts.Names
		}
		o.Rumors = opts.Rumors
		if opts.Logger != nil {
			o.Logger = opts.Logger
		}
	})

	return &Converse{opts: opts, engine: e}
}

// Engine exposes the underlying engine for hosts that need the full surface.
func (c *Converse) Engine() *engine.Engine { return c.engine }

// StartSession starts a conversation between a player and an ordered set of
// agents, superseding any session either side is already in.
func (c *Converse) StartSession(player core.PlayerID, agents []core.AgentID) (*core.Session, error) {
	return c.engine.StartSession(player, agents)
}

// StartAmbientSession starts a player-less conversation: one round through
// the agents, then teardown.
func (c *Converse) StartAmbientSession(agents []core.AgentID) (*core.Session, error) {
	return c.engine.StartAmbientSession(agents)
}

// PostPlayerMessage records a player's chat line and arms the debounced
// response round.
func (c *Converse) PostPlayerMessage(player core.PlayerID, text string) error {
	return c.engine.PostPlayerMessage(player, text, true)
}

// EndSession ends the player's active session, running summarization, effect
// extraction and rumor propagation on its history.
func (c *Converse) EndSession(player core.PlayerID) error {
	return c.engine.EndSessionForPlayer(player)
}

// AddAgent adds an agent to an active session.
func (c *Converse) AddAgent(sessionID string, agent core.AgentID) bool {
	return c.engine.AddAgent(sessionID, agent)
}

// RemoveAgent removes an agent from the player's session, or ends the session
// when it was the last agent and nobody else is nearby.
func (c *Converse) RemoveAgent(player core.PlayerID, agent core.AgentID, otherAgentsNearby bool) error {
	return c.engine.RemoveAgent(player, agent, otherAgentsNearby)
}

// Close ends every active session and stops the engine loop.
func (c *Converse) Close() {
	c.engine.StopAll()
	c.engine.Close()
}
