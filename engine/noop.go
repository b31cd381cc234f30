package engine

import "github.com/fablemesh/converse/core"

// No-op collaborator defaults so an Engine constructed without host wiring
// still exercises the full scheduling path. Agents are "present" at the
// origin and navigation arrives instantly.

type noopPositioner struct{}

func (noopPositioner) CurrentLocation(core.AgentID) (core.Position, bool) {
	return core.Position{}, true
}

func (noopPositioner) PlayerLocation(core.PlayerID) (core.Position, bool) {
	return core.Position{}, true
}

func (noopPositioner) NavigateTo(_ core.AgentID, _ core.Position, _ float64, onArrival func()) error {
	onArrival()
	return nil
}

type noopRenderer struct{}

func (noopRenderer) Create(string, core.Position, string) {}
func (noopRenderer) Move(string, core.Position)           {}
func (noopRenderer) Remove(string)                        {}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(string, string)           {}
func (noopBroadcaster) NotifyPlayer(core.PlayerID, string) {}
