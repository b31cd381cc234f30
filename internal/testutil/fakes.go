package testutil

import (
	"sync"

	"github.com/fablemesh/converse/core"
)

// FakeWorld is a recording Positioner, IndicatorRenderer and Broadcaster in
// one. Agents and players are present once a position is set for them;
// navigation invokes onArrival immediately unless HoldNavigation is set.
type FakeWorld struct {
	mu sync.Mutex

	agentPos  map[core.AgentID]core.Position
	playerPos map[core.PlayerID]core.Position

	indicators map[string]core.Position

	// HoldNavigation keeps NavigateTo callbacks queued until ReleaseNavigation.
	HoldNavigation bool
	heldArrivals   []func()

	broadcasts []BroadcastRecord
	notices    []NoticeRecord
}

// BroadcastRecord is one captured Broadcast call.
type BroadcastRecord struct {
	Text    string
	Speaker string
}

// NoticeRecord is one captured NotifyPlayer call.
type NoticeRecord struct {
	Player core.PlayerID
	Text   string
}

// NewFakeWorld returns an empty world: nobody is present yet.
func NewFakeWorld() *FakeWorld {
	return &FakeWorld{
		agentPos:   make(map[core.AgentID]core.Position),
		playerPos:  make(map[core.PlayerID]core.Position),
		indicators: make(map[string]core.Position),
	}
}

// PlaceAgent makes an agent present at pos.
func (w *FakeWorld) PlaceAgent(agent core.AgentID, pos core.Position) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.agentPos[agent] = pos
}

// RemoveAgentFromWorld makes an agent absent.
func (w *FakeWorld) RemoveAgentFromWorld(agent core.AgentID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.agentPos, agent)
}

// PlacePlayer makes a player online at pos.
func (w *FakeWorld) PlacePlayer(player core.PlayerID, pos core.Position) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.playerPos[player] = pos
}

// CurrentLocation implements core.Positioner.
func (w *FakeWorld) CurrentLocation(agent core.AgentID) (core.Position, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pos, ok := w.agentPos[agent]
	return pos, ok
}

// PlayerLocation implements core.Positioner.
func (w *FakeWorld) PlayerLocation(player core.PlayerID) (core.Position, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pos, ok := w.playerPos[player]
	return pos, ok
}

// NavigateTo implements core.Positioner.
func (w *FakeWorld) NavigateTo(agent core.AgentID, target core.Position, _ float64, onArrival func()) error {
	w.mu.Lock()
	w.agentPos[agent] = target
	hold := w.HoldNavigation
	if hold {
		w.heldArrivals = append(w.heldArrivals, onArrival)
	}
	w.mu.Unlock()
	if !hold {
		onArrival()
	}
	return nil
}

// ReleaseNavigation fires all held arrival callbacks.
func (w *FakeWorld) ReleaseNavigation() {
	w.mu.Lock()
	arrivals := w.heldArrivals
	w.heldArrivals = nil
	w.mu.Unlock()
	for _, fn := range arrivals {
		fn()
	}
}

// Create implements core.IndicatorRenderer.
func (w *FakeWorld) Create(key string, pos core.Position, _ string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.indicators[key] = pos
}

// Move implements core.IndicatorRenderer.
func (w *FakeWorld) Move(key string, pos core.Position) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.indicators[key]; ok {
		w.indicators[key] = pos
	}
}

// Remove implements core.IndicatorRenderer.
func (w *FakeWorld) Remove(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.indicators, key)
}

// IndicatorPosition returns the rendered position for key, if visible.
func (w *FakeWorld) IndicatorPosition(key string) (core.Position, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pos, ok := w.indicators[key]
	return pos, ok
}

// IndicatorCount returns the number of visible indicators.
func (w *FakeWorld) IndicatorCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.indicators)
}

// Broadcast implements core.Broadcaster.
func (w *FakeWorld) Broadcast(text, speaker string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.broadcasts = append(w.broadcasts, BroadcastRecord{Text: text, Speaker: speaker})
}

// NotifyPlayer implements core.Broadcaster.
func (w *FakeWorld) NotifyPlayer(player core.PlayerID, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notices = append(w.notices, NoticeRecord{Player: player, Text: text})
}

// Broadcasts returns a copy of the captured broadcast calls.
func (w *FakeWorld) Broadcasts() []BroadcastRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]BroadcastRecord, len(w.broadcasts))
	copy(out, w.broadcasts)
	return out
}

// Notices returns a copy of the captured player notices.
func (w *FakeWorld) Notices() []NoticeRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]NoticeRecord, len(w.notices))
	copy(out, w.notices)
	return out
}

// FakeRumorSink records RecordSignificantConversation calls.
type FakeRumorSink struct {
	mu    sync.Mutex
	calls []RumorRecord
}

// RumorRecord is one captured rumor propagation call.
type RumorRecord struct {
	History      []core.Message
	Participants []core.AgentID
	Location     string
}

// RecordSignificantConversation implements core.RumorSink.
func (r *FakeRumorSink) RecordSignificantConversation(history []core.Message, participants []core.AgentID, location string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, RumorRecord{History: history, Participants: participants, Location: location})
}

// Calls returns a copy of the captured calls.
func (r *FakeRumorSink) Calls() []RumorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RumorRecord, len(r.calls))
	copy(out, r.calls)
	return out
}

var (
	_ core.Positioner        = (*FakeWorld)(nil)
	_ core.IndicatorRenderer = (*FakeWorld)(nil)
	_ core.Broadcaster       = (*FakeWorld)(nil)
	_ core.RumorSink         = (*FakeRumorSink)(nil)
)
