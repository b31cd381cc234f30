package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fablemesh/converse/consequence"
	"github.com/fablemesh/converse/core"
	"github.com/fablemesh/converse/indicator"
	"github.com/fablemesh/converse/logging"
	"github.com/fablemesh/converse/memory"
	"github.com/fablemesh/converse/model"
	"github.com/fablemesh/converse/prompt"
	"github.com/fablemesh/converse/schedule"
	"github.com/fablemesh/converse/session"
)

// ErrRadiantDisabled is returned by StartAmbientSession while ambient
// conversations are switched off.
var ErrRadiantDisabled = errors.New("radiant conversations are disabled")

// Engine is the conversation orchestration engine. It owns the session
// registry, the turn scheduler, the indicator controller and the consequence
// pipeline, and exposes the public operations external triggers call into.
//
// All public methods are safe for concurrent use; they marshal onto the
// engine's main loop and return synchronously.
type Engine struct {
	cfg Config

	registry     *session.Registry
	sched        *schedule.Scheduler
	indicators   *indicator.Controller
	assembler    *prompt.Assembler
	completer    model.Completer
	consequences *consequence.Processor
	memory       core.MemoryStore
	positioner   core.Positioner
	broadcaster  core.Broadcaster
	names        core.NameResolver
	logger       logging.Logger

	radiantEnabled bool
	disabledAgents map[core.AgentID]bool

	tasks     chan func()
	quit      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
}

// New constructs an Engine around a completion service. Collaborators default
// to in-memory / no-op implementations; production hosts override them via
// functional options.
func New(completer model.Completer, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Names:  core.IdentityNameResolver{},
		World:  core.StaticWorldContext{},
		Clock:  core.RealClock(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Memory == nil {
		opts.Memory = memory.NewInMemoryStore()
	}
	if opts.Positioner == nil {
		opts.Positioner = noopPositioner{}
	}
	if opts.Renderer == nil {
		opts.Renderer = noopRenderer{}
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = noopBroadcaster{}
	}

	e := &Engine{
		cfg:            opts.Config,
		registry:       session.NewRegistry(),
		completer:      completer,
		memory:         opts.Memory,
		positioner:     opts.Positioner,
		broadcaster:    opts.Broadcaster,
		names:          opts.Names,
		logger:         opts.Logger,
		radiantEnabled: opts.Config.RadiantEnabled,
		disabledAgents: make(map[core.AgentID]bool),
		tasks:          make(chan func(), 256),
		quit:           make(chan struct{}),
		loopDone:       make(chan struct{}),
	}

	e.assembler = prompt.NewAssembler(opts.Memory, opts.World, opts.Names, func(o *prompt.Options) {
		o.MemoryWindow = opts.Config.MemoryWindow
		o.Logger = opts.Logger
	})

	e.indicators = indicator.NewController(opts.Renderer, opts.Positioner, opts.Clock, e.post, func(o *indicator.Options) {
		o.SyncInterval = opts.Config.IndicatorSyncInterval
		o.Logger = opts.Logger
	})

	e.consequences = consequence.NewProcessor(completer, opts.Memory, func(o *consequence.Options) {
		o.Rumors = opts.Rumors
		o.Logger = opts.Logger
	})

	e.sched = schedule.NewScheduler(
		opts.Clock, e.post, completer, e.assembler, e.indicators, opts.Positioner, opts.Broadcaster,
		func(o *schedule.Options) {
			o.TurnStagger = opts.Config.TurnStagger
			o.ThinkDelay = opts.Config.ThinkDelay
			o.ResponseDelay = opts.Config.ResponseDelay
			o.MaxConcurrentGenerations = opts.Config.MaxConcurrentGenerations
			o.Logger = opts.Logger
			o.Disabled = func(a core.AgentID) bool { return e.disabledAgents[a] }
			o.OnEndToken = func(p core.PlayerID) { e.endSessionForPlayer(p) }
			o.OnRadiantComplete = func(s *core.Session) { e.endAmbientSession(s) }
		},
	)

	go e.loop()
	return e
}

// Close stops the main loop after draining queued work. Sessions are not
// ended implicitly; call StopAll first if teardown should run consequences.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.quit) })
	<-e.loopDone
}

func (e *Engine) loop() {
	defer close(e.loopDone)
	for {
		select {
		case fn := <-e.tasks:
			fn()
		case <-e.quit:
			for {
				select {
				case fn := <-e.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// post enqueues a task for the main loop. Dropped silently after Close.
func (e *Engine) post(fn func()) {
	select {
	case e.tasks <- fn:
	case <-e.quit:
	}
}

// run executes fn on the main loop and waits for it.
func (e *Engine) run(fn func()) {
	done := make(chan struct{})
	e.post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
	case <-e.loopDone:
	}
}

// StartSession starts a conversation between a player and an ordered set of
// agents. If the player already has an active session it is ended first; any
// agent already drafted into another session is superseded by ending that
// session. End-before-start, never merge.
func (e *Engine) StartSession(player core.PlayerID, agents []core.AgentID) (*core.Session, error) {
	var sess *core.Session
	var err error
	e.run(func() { sess, err = e.startSession(player, agents) })
	return sess, err
}

func (e *Engine) startSession(player core.PlayerID, agents []core.AgentID) (*core.Session, error) {
	if existing := e.registry.FindByPlayer(player); existing != nil && existing.Active() {
		e.endSession(existing)
	}
	for _, a := range agents {
		other := e.registry.FindByAgent(a)
		if other == nil {
			continue
		}
		// A player-initiated start wins over whatever the agent was doing.
		if len(other.Players()) == 0 {
			e.endAmbientSession(other)
		} else {
			e.endSession(other)
		}
	}
	sess, err := e.registry.Create([]core.PlayerID{player}, agents)
	if err != nil {
		return nil, err
	}
	e.broadcaster.NotifyPlayer(player, "You started a conversation with: "+joinAgents(agents))
	e.logger.Info("started session %s for player %s with %s", sess.ID, player, joinAgents(agents))
	return sess, nil
}

// StartAmbientSession starts a player-less (radiant) conversation: a single
// round through all agents, after which the session ends with light teardown.
// It fails with core.ErrParticipantConflict if any agent is already in a
// session.
func (e *Engine) StartAmbientSession(agents []core.AgentID) (*core.Session, error) {
	var sess *core.Session
	var err error
	e.run(func() { sess, err = e.startAmbientSession(agents) })
	return sess, err
}

func (e *Engine) startAmbientSession(agents []core.AgentID) (*core.Session, error) {
	if !e.radiantEnabled {
		return nil, ErrRadiantDisabled
	}
	sess, err := e.registry.Create(nil, agents)
	if err != nil {
		return nil, err
	}
	if sess.AgentCount() < 2 {
		// A one-sided ambient conversation has nothing to say.
		e.endAmbientSession(sess)
		return nil, fmt.Errorf("ambient session needs at least two agents")
	}
	e.logger.Info("started ambient session %s with %s", sess.ID, joinAgents(agents))
	e.sched.StartRound(sess, "", true)
	return sess, nil
}

// StartAgentSession creates a player-less session without triggering a round.
// Callers feed it via PostAgentMessage or end it explicitly.
func (e *Engine) StartAgentSession(agents []core.AgentID) (*core.Session, error) {
	var sess *core.Session
	var err error
	e.run(func() { sess, err = e.registry.Create(nil, agents) })
	return sess, err
}

// AddAgent adds an agent to an active session, appending a join marker to the
// history. It returns false if the session is unknown or ended, the agent is
// already present, or the agent is in another session.
func (e *Engine) AddAgent(sessionID string, agent core.AgentID) bool {
	var ok bool
	e.run(func() { ok = e.addAgent(sessionID, agent) })
	return ok
}

func (e *Engine) addAgent(sessionID string, agent core.AgentID) bool {
	sess := e.registry.Get(sessionID)
	if sess == nil || !sess.Active() {
		return false
	}
	if other := e.registry.FindByAgent(agent); other != nil {
		return false
	}
	if !sess.AddAgent(agent) {
		return false
	}
	sess.Append(core.NewSystemMessage(fmt.Sprintf("%s has joined the conversation.", agent)))
	for _, p := range sess.Players() {
		e.broadcaster.NotifyPlayer(p, fmt.Sprintf("%s has joined the conversation.", agent))
	}
	return true
}

// RemoveAgent removes an agent from the player's session. With more than one
// agent remaining (or another agent nearby) the agent leaves and receives a
// private summary of the dialogue so far; as the last agent with nobody
// nearby, the whole session ends instead.
func (e *Engine) RemoveAgent(player core.PlayerID, agent core.AgentID, otherAgentsNearby bool) error {
	var err error
	e.run(func() { err = e.removeAgent(player, agent, otherAgentsNearby) })
	return err
}

func (e *Engine) removeAgent(player core.PlayerID, agent core.AgentID, otherAgentsNearby bool) error {
	sess := e.registry.FindByPlayer(player)
	if sess == nil || !sess.Active() {
		e.broadcaster.NotifyPlayer(player, "You are not currently in an active conversation.")
		return core.ErrNoActiveSession
	}
	if !sess.HasAgent(agent) {
		e.broadcaster.NotifyPlayer(player, fmt.Sprintf("%s is not part of the conversation.", agent))
		return nil
	}
	if sess.AgentCount() == 1 && !otherAgentsNearby {
		e.endSession(sess)
		return nil
	}
	sess.RemoveAgent(agent)
	sess.Append(core.NewSystemMessage(fmt.Sprintf("%s has left the conversation.", agent)))
	e.broadcaster.NotifyPlayer(player, fmt.Sprintf("%s has left the conversation.", agent))
	e.consequences.LeaveSummary(sess.History(), sess.Agents(), e.names.PlayerName(player), agent)
	return nil
}

// PostPlayerMessage appends a player's message to their session history and,
// when broadcastEnabled, arms the debounced agent-response round. Consecutive
// messages within the debounce window collapse into one round.
func (e *Engine) PostPlayerMessage(player core.PlayerID, text string, broadcastEnabled bool) error {
	var err error
	e.run(func() { err = e.postPlayerMessage(player, text, broadcastEnabled) })
	return err
}

func (e *Engine) postPlayerMessage(player core.PlayerID, text string, broadcastEnabled bool) error {
	sess := e.registry.FindByPlayer(player)
	if sess == nil || !sess.Active() {
		e.broadcaster.NotifyPlayer(player, "You are not currently in an active conversation.")
		return core.ErrNoActiveSession
	}
	sess.Append(core.NewUserMessage(e.names.PlayerName(player), text))
	if broadcastEnabled {
		e.sched.ScheduleDebounced(sess, player)
	}
	return nil
}

// PostAgentMessage appends an externally supplied agent line to the session
// the agent is in, followed by the listening marker. Returns false when the
// agent is not in a session.
func (e *Engine) PostAgentMessage(agent core.AgentID, text string) bool {
	var ok bool
	e.run(func() { ok = e.postAgentMessage(agent, text) })
	return ok
}

func (e *Engine) postAgentMessage(agent core.AgentID, text string) bool {
	sess := e.registry.FindByAgent(agent)
	if sess == nil || !sess.Active() {
		return false
	}
	sess.Append(core.NewAgentMessage(agent, text))
	sess.Append(core.Message{Role: core.RoleUser, Text: "*Rest are listening...*"})
	return true
}

// AddPlayerByAgent joins a player into the session that contains the given
// agent. Returns false if the agent has no session or the player is already a
// member.
func (e *Engine) AddPlayerByAgent(player core.PlayerID, agent core.AgentID) bool {
	var ok bool
	e.run(func() { ok = e.addPlayerByAgent(player, agent) })
	return ok
}

func (e *Engine) addPlayerByAgent(player core.PlayerID, agent core.AgentID) bool {
	sess := e.registry.FindByAgent(agent)
	if sess == nil || !sess.Active() {
		return false
	}
	if existing := e.registry.FindByPlayer(player); existing != nil && existing != sess {
		return false
	}
	if !sess.AddPlayer(player) {
		e.broadcaster.NotifyPlayer(player, fmt.Sprintf("You are already part of the conversation with %s", agent))
		return false
	}
	e.broadcaster.NotifyPlayer(player, fmt.Sprintf("You joined the conversation with %s", agent))
	return true
}

// EndSessionForPlayer ends the player's active session, running the
// consequence pipeline on its history. Idempotent: a player without a session
// gets a notice and ErrNoActiveSession.
func (e *Engine) EndSessionForPlayer(player core.PlayerID) error {
	var err error
	e.run(func() { err = e.endSessionForPlayerChecked(player) })
	return err
}

func (e *Engine) endSessionForPlayerChecked(player core.PlayerID) error {
	sess := e.registry.FindByPlayer(player)
	if sess == nil || !sess.Active() {
		e.broadcaster.NotifyPlayer(player, "You are not currently in an active conversation.")
		return core.ErrNoActiveSession
	}
	e.endSession(sess)
	return nil
}

func (e *Engine) endSessionForPlayer(player core.PlayerID) {
	if sess := e.registry.FindByPlayer(player); sess != nil {
		e.endSession(sess)
	}
}

// EndSession ends a session by id. Unknown ids are a no-op.
func (e *Engine) EndSession(sessionID string) {
	e.run(func() {
		if sess := e.registry.Get(sessionID); sess != nil {
			e.endSession(sess)
		}
	})
}

// endSession marks the session ended exactly once, cancels all of its
// scheduled work and indicators, hands the final history to the consequence
// pipeline, and removes it from the registry. Session removal does not wait
// on the pipeline.
func (e *Engine) endSession(sess *core.Session) {
	if !sess.End() {
		e.registry.Remove(sess)
		return
	}
	e.sched.CancelSession(sess.ID)
	agents := sess.Agents()
	for _, a := range agents {
		e.indicators.Hide(a)
	}

	history := sess.History()
	players := sess.Players()
	playerName := ""
	if len(players) > 0 {
		playerName = e.names.PlayerName(players[0])
	}
	e.consequences.Process(history, agents, playerName, e.sessionLocation(agents))

	e.registry.Remove(sess)
	for _, p := range players {
		e.broadcaster.NotifyPlayer(p, "The conversation has ended.")
	}
	e.logger.Info("ended session %s", sess.ID)
}

// endAmbientSession is the light teardown for player-less sessions: no
// consequence pipeline.
func (e *Engine) endAmbientSession(sess *core.Session) {
	if !sess.End() {
		e.registry.Remove(sess)
		return
	}
	e.sched.CancelSession(sess.ID)
	for _, a := range sess.Agents() {
		e.indicators.Hide(a)
	}
	e.registry.Remove(sess)
	e.logger.Info("ended ambient session %s", sess.ID)
}

// StopAll ends every currently active session. The registry is snapshotted
// first so teardown can run while sessions are being removed.
func (e *Engine) StopAll() {
	e.run(func() {
		for _, sess := range e.registry.All() {
			if len(sess.Players()) == 0 {
				e.endAmbientSession(sess)
			} else {
				e.endSession(sess)
			}
		}
	})
}

// ActiveSession returns the player's active session, or nil.
func (e *Engine) ActiveSession(player core.PlayerID) *core.Session {
	var sess *core.Session
	e.run(func() { sess = e.registry.FindByPlayer(player) })
	return sess
}

// AgentSession returns the session containing the agent, or nil.
func (e *Engine) AgentSession(agent core.AgentID) *core.Session {
	var sess *core.Session
	e.run(func() { sess = e.registry.FindByAgent(agent) })
	return sess
}

// Participants lists the display names of everyone in the player's session,
// agents first in turn order.
func (e *Engine) Participants(player core.PlayerID) []string {
	var names []string
	e.run(func() {
		sess := e.registry.FindByPlayer(player)
		if sess == nil {
			return
		}
		for _, a := range sess.Agents() {
			names = append(names, string(a))
		}
		for _, p := range sess.Players() {
			names = append(names, e.names.PlayerName(p))
		}
	})
	return names
}

// SetRadiantEnabled toggles ambient conversation starts.
func (e *Engine) SetRadiantEnabled(enabled bool) {
	e.run(func() { e.radiantEnabled = enabled })
}

// RadiantEnabled reports whether ambient conversations may start.
func (e *Engine) RadiantEnabled() bool {
	var enabled bool
	e.run(func() { enabled = e.radiantEnabled })
	return enabled
}

// SetAgentDisabled marks an agent to be skipped during rounds.
func (e *Engine) SetAgentDisabled(agent core.AgentID, disabled bool) {
	e.run(func() {
		if disabled {
			e.disabledAgents[agent] = true
		} else {
			delete(e.disabledAgents, agent)
		}
	})
}

// sessionLocation resolves the location name for the consequence pipeline:
// the first participating agent with a registered location wins.
func (e *Engine) sessionLocation(agents []core.AgentID) string {
	for _, a := range agents {
		mem, err := e.memory.Load(a)
		if err != nil {
			continue
		}
		if mem.Location != "" {
			return mem.Location
		}
	}
	return e.cfg.DefaultLocation
}

func joinAgents(agents []core.AgentID) string {
	names := make([]string, len(agents))
	for i, a := range agents {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}
