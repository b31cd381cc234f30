// Package schedule sequences delayed, cancellable agent turns for a session.
//
// A round is the full set of turns triggered by one event. Turns are staggered
// by a fixed per-agent offset and pass through an explicit state machine
// (Pending, IndicatorShown, Generating, Completing, Done, with an escape to
// Skipped). The expensive completion call runs on a bounded worker pool; its
// continuation is posted back onto the owning loop and re-checks session
// liveness before touching any state, so a round that was cancelled or
// superseded while a call was in flight never mutates the session.
package schedule

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fablemesh/converse/core"
	"github.com/fablemesh/converse/indicator"
	"github.com/fablemesh/converse/logging"
	"github.com/fablemesh/converse/model"
	"github.com/fablemesh/converse/prompt"
)

// EndToken in generated text requests session termination when a player is
// present.
const EndToken = "[End]"

// TurnState is the state of one agent turn within a round.
type TurnState int

const (
	// TurnPending means the turn's stagger delay has not elapsed yet.
	TurnPending TurnState = iota
	// TurnIndicatorShown means the thinking cue is visible and the follow-on
	// delay is running.
	TurnIndicatorShown
	// TurnGenerating means the completion call is in flight on the worker pool.
	TurnGenerating
	// TurnCompleting means the continuation is mutating the session.
	TurnCompleting
	// TurnDone is the successful terminal state.
	TurnDone
	// TurnSkipped is the terminal state for abandoned turns: agent absent or
	// disabled, empty generation, or session no longer active.
	TurnSkipped
)

// Turn is one agent's scheduled thinking+response action.
type Turn struct {
	Agent core.AgentID
	Index int
	state TurnState
}

// State returns the turn's current state.
func (t *Turn) State() TurnState { return t.state }

func (t *Turn) terminal() bool { return t.state == TurnDone || t.state == TurnSkipped }

// Round is one in-flight "produce the next set of agent turns" request. At
// most one round is outstanding per session; starting a new one supersedes
// (cancels) the previous one.
type Round struct {
	ID      string
	session *core.Session
	player  core.PlayerID // empty for radiant rounds
	radiant bool

	turns    []*Turn
	timers   []core.Timer
	canceled bool
	pending  int
	done     chan struct{}
}

// Turns returns the turns scheduled for this round.
func (r *Round) Turns() []*Turn { return r.turns }

// Done is closed once every turn has reached a terminal state. The original
// trigger does not wait on it; it exists for callers that need a completion
// signal (radiant teardown, tests).
func (r *Round) Done() <-chan struct{} { return r.done }

// Canceled reports whether the round was cancelled or superseded.
func (r *Round) Canceled() bool { return r.canceled }

// Scheduler owns round scheduling for all sessions. Like the session
// registry it is confined to the engine's main loop; every delayed step
// re-enters through the post function.
type Scheduler struct {
	clock     core.Clock
	post      func(func())
	completer model.Completer
	assembler *prompt.Assembler

	indicators  *indicator.Controller
	positioner  core.Positioner
	broadcaster core.Broadcaster
	logger      logging.Logger

	sem *semaphore.Weighted

	stagger    time.Duration
	thinkDelay time.Duration
	debounce   time.Duration

	rounds    map[string]*Round     // sessionID -> outstanding round
	debounces map[string]core.Timer // sessionID -> pending debounce token

	disabled   func(core.AgentID) bool
	onEndToken func(player core.PlayerID)
	onRadiant  func(sess *core.Session)
}

// Options configure a Scheduler.
type Options struct {
	// TurnStagger is the base offset between consecutive agents in a round.
	TurnStagger time.Duration
	// ThinkDelay is the follow-on delay between showing the indicator and
	// starting generation.
	ThinkDelay time.Duration
	// ResponseDelay is the debounce window before a player-triggered round.
	ResponseDelay time.Duration
	// MaxConcurrentGenerations bounds the completion worker pool.
	MaxConcurrentGenerations int
	// Disabled reports agents that should be skipped during rounds.
	Disabled func(core.AgentID) bool
	// OnEndToken is invoked after broadcasting a reply containing EndToken in
	// a round with a player present.
	OnEndToken func(player core.PlayerID)
	// OnRadiantComplete is invoked when a radiant round finishes so the owner
	// can tear the session down.
	OnRadiantComplete func(sess *core.Session)
	// Logger receives turn lifecycle events.
	Logger logging.Logger
}

// NewScheduler constructs a Scheduler. The post function marshals delayed
// steps and worker continuations onto the thread that owns session state.
func NewScheduler(
	clock core.Clock,
	post func(func()),
	completer model.Completer,
	assembler *prompt.Assembler,
	indicators *indicator.Controller,
	positioner core.Positioner,
	broadcaster core.Broadcaster,
	optFns ...func(o *Options),
) *Scheduler {
	opts := Options{
		TurnStagger:              3 * time.Second,
		ThinkDelay:               3 * time.Second,
		ResponseDelay:            5 * time.Second,
		MaxConcurrentGenerations: 4,
		Logger:                   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	s := &Scheduler{
		clock:       clock,
		post:        post,
		completer:   completer,
		assembler:   assembler,
		indicators:  indicators,
		positioner:  positioner,
		broadcaster: broadcaster,
		logger:      opts.Logger,
		sem:         semaphore.NewWeighted(int64(opts.MaxConcurrentGenerations)),
		stagger:     opts.TurnStagger,
		thinkDelay:  opts.ThinkDelay,
		debounce:    opts.ResponseDelay,
		rounds:      make(map[string]*Round),
		debounces:   make(map[string]core.Timer),
		disabled:    opts.Disabled,
		onEndToken:  opts.OnEndToken,
		onRadiant:   opts.OnRadiantComplete,
	}
	return s
}

// ScheduleDebounced arms (or re-arms) the debounce window for a session so
// rapid consecutive player messages collapse into one response round.
func (s *Scheduler) ScheduleDebounced(sess *core.Session, player core.PlayerID) {
	if t, ok := s.debounces[sess.ID]; ok {
		t.Stop()
	}
	var timer core.Timer
	timer = s.clock.AfterFunc(s.debounce, func() {
		s.post(func() {
			if s.debounces[sess.ID] != timer {
				// A later message re-armed the window between this timer
				// firing and its continuation reaching the loop. The newer
				// timer owns the round; leave its token in place.
				return
			}
			delete(s.debounces, sess.ID)
			if !sess.Active() {
				return
			}
			s.StartRound(sess, player, false)
		})
	})
	s.debounces[sess.ID] = timer
}

// StartRound schedules one round of agent turns for the session, superseding
// any outstanding round or pending debounce batch first.
func (s *Scheduler) StartRound(sess *core.Session, player core.PlayerID, radiant bool) *Round {
	s.CancelSession(sess.ID)

	r := &Round{
		ID:      core.NewID(),
		session: sess,
		player:  player,
		radiant: radiant,
		done:    make(chan struct{}),
	}

	for i, agent := range sess.Agents() {
		if s.disabled != nil && s.disabled(agent) {
			continue
		}
		r.turns = append(r.turns, &Turn{Agent: agent, Index: i})
	}
	r.pending = len(r.turns)
	s.rounds[sess.ID] = r

	if r.pending == 0 {
		s.finishRound(r)
		return r
	}

	for _, t := range r.turns {
		turn := t
		delay := time.Duration(turn.Index) * s.stagger
		r.timers = append(r.timers, s.clock.AfterFunc(delay, func() {
			s.post(func() { s.beginTurn(r, turn) })
		}))
	}
	return r
}

// CancelSession cancels the session's pending debounce batch and any unfired
// steps of its outstanding round. Generation calls already in flight complete
// on the worker pool but their continuations will find the round cancelled
// and no-op.
func (s *Scheduler) CancelSession(sessionID string) {
	if t, ok := s.debounces[sessionID]; ok {
		t.Stop()
		delete(s.debounces, sessionID)
	}
	r, ok := s.rounds[sessionID]
	if !ok {
		return
	}
	r.canceled = true
	for _, t := range r.timers {
		t.Stop()
	}
	delete(s.rounds, sessionID)
	for _, turn := range r.turns {
		if turn.state != TurnDone && turn.state != TurnSkipped && turn.state != TurnGenerating {
			s.skipTurn(r, turn)
		}
	}
}

// HasPendingWork reports whether the session has an outstanding round or an
// armed debounce timer.
func (s *Scheduler) HasPendingWork(sessionID string) bool {
	_, round := s.rounds[sessionID]
	_, debounce := s.debounces[sessionID]
	return round || debounce
}

// beginTurn is the Pending -> IndicatorShown transition. Every transition
// re-checks liveness: the delays leave room for the session to end or the
// agent to leave in between.
func (s *Scheduler) beginTurn(r *Round, turn *Turn) {
	if turn.terminal() {
		// The cancellation path may have skipped this turn while its timer
		// callback was already queued.
		return
	}
	if r.canceled || !r.session.Active() || !r.session.HasAgent(turn.Agent) {
		s.skipTurn(r, turn)
		return
	}
	if !s.indicators.Show(turn.Agent) {
		s.logger.Debug("agent %s not present, skipping turn", turn.Agent)
		s.skipTurn(r, turn)
		return
	}
	turn.state = TurnIndicatorShown

	r.timers = append(r.timers, s.clock.AfterFunc(s.thinkDelay, func() {
		s.post(func() { s.startGeneration(r, turn) })
	}))
}

// startGeneration is the IndicatorShown -> Generating transition. The prompt
// is assembled on the main loop; the completion call itself runs on the
// worker pool so an unbounded network stall never blocks other turns.
func (s *Scheduler) startGeneration(r *Round, turn *Turn) {
	if turn.terminal() {
		return
	}
	if r.canceled || !r.session.Active() || !r.session.HasAgent(turn.Agent) {
		s.indicators.Hide(turn.Agent)
		s.skipTurn(r, turn)
		return
	}
	turn.state = TurnGenerating

	messages := s.assembler.Assemble(turn.Agent, r.session)

	go func() {
		ctx := context.Background()
		if err := s.sem.Acquire(ctx, 1); err != nil {
			s.post(func() { s.completeTurn(r, turn, "", err) })
			return
		}
		text, err := s.completer.Complete(ctx, messages)
		s.sem.Release(1)
		s.post(func() { s.completeTurn(r, turn, text, err) })
	}()
}

// completeTurn is the Generating -> Completing -> Done transition, back on
// the main loop. The indicator always comes down; the session is only mutated
// if it is still live and the round was not superseded.
func (s *Scheduler) completeTurn(r *Round, turn *Turn, text string, err error) {
	if turn.terminal() {
		return
	}
	turn.state = TurnCompleting
	s.indicators.Hide(turn.Agent)

	if r.canceled || !r.session.Active() || !r.session.HasAgent(turn.Agent) {
		s.skipTurn(r, turn)
		return
	}
	if err != nil || text == "" {
		s.logger.Warn("failed to generate response for %s: %v", turn.Agent, err)
		s.skipTurn(r, turn)
		return
	}

	r.session.Append(core.NewAgentMessage(turn.Agent, text))
	if next, ok := r.session.NextAgentAfter(turn.Agent); ok {
		r.session.Append(core.NewListeningMarker(next))
	}
	s.broadcaster.Broadcast(text, string(turn.Agent))

	turn.state = TurnDone
	s.settleTurn(r)

	// The end-token callback may tear the session down synchronously, which
	// cancels the round's remaining turns. This turn is settled first so the
	// cancellation sweep cannot count it a second time.
	if r.player != "" && strings.Contains(text, EndToken) && s.onEndToken != nil {
		s.onEndToken(r.player)
	}
}

func (s *Scheduler) skipTurn(r *Round, turn *Turn) {
	if turn.terminal() {
		return
	}
	turn.state = TurnSkipped
	s.settleTurn(r)
}

func (s *Scheduler) settleTurn(r *Round) {
	r.pending--
	if r.pending == 0 {
		s.finishRound(r)
	}
}

func (s *Scheduler) finishRound(r *Round) {
	if s.rounds[r.session.ID] == r {
		delete(s.rounds, r.session.ID)
	}
	close(r.done)
	if r.radiant && !r.canceled && s.onRadiant != nil {
		s.onRadiant(r.session)
	}
}
