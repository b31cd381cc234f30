package core

// Positioner exposes world positioning and navigation for agents. The engine
// treats a false/error result as ErrCollaboratorUnavailable: the dependent
// operation is abandoned, not retried.
type Positioner interface {
	// CurrentLocation returns the agent's position, or false if the agent is
	// not currently present in the world.
	CurrentLocation(agent AgentID) (Position, bool)

	// PlayerLocation returns a player's position, or false if the player is
	// not online.
	PlayerLocation(player PlayerID) (Position, bool)

	// NavigateTo directs the agent toward target and invokes onArrival from
	// the host once the agent is within arrivalRadius.
	NavigateTo(agent AgentID, target Position, arrivalRadius float64, onArrival func()) error
}

// IndicatorRenderer renders transient visual cues keyed by an opaque string.
// Creation, movement and removal must all be idempotent on the host side.
type IndicatorRenderer interface {
	Create(key string, pos Position, text string)
	Move(key string, pos Position)
	Remove(key string)
}

// Broadcaster delivers conversation output. Formatting is the host's concern.
type Broadcaster interface {
	// Broadcast delivers a spoken line to everyone who should hear it.
	Broadcast(text string, speaker string)

	// NotifyPlayer delivers an operation outcome to a single player.
	NotifyPlayer(player PlayerID, text string)
}

// NameResolver maps player identities to display names (nicknames).
type NameResolver interface {
	PlayerName(player PlayerID) string
}

// WorldContext supplies the layered context entries merged into every prompt:
// process-wide entries plus entries registered for a named location.
type WorldContext interface {
	GeneralContext() []string
	LocationContext(location string) []string
}

// RumorSink receives every finished conversation for longer-term world-state
// effects. It is invoked exactly once per session end, regardless of the
// significance rating produced by summarization.
type RumorSink interface {
	RecordSignificantConversation(history []Message, participants []AgentID, location string)
}

// StaticWorldContext is a fixed WorldContext convenient for wiring and tests.
type StaticWorldContext struct {
	General   []string
	Locations map[string][]string
}

// GeneralContext implements WorldContext.
func (w StaticWorldContext) GeneralContext() []string { return w.General }

// LocationContext implements WorldContext.
func (w StaticWorldContext) LocationContext(location string) []string {
	return w.Locations[location]
}

// IdentityNameResolver resolves every player to its raw identity string.
type IdentityNameResolver struct{}

// PlayerName implements NameResolver.
func (IdentityNameResolver) PlayerName(player PlayerID) string { return string(player) }
