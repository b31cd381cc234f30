// Package indicator manages the lifecycle of one "is thinking" visual cue per
// agent: creation above the agent's head, a recurring position-sync timer that
// follows the agent around, and removal when the turn completes or the agent
// disappears.
package indicator

import (
	"time"

	"github.com/fablemesh/converse/core"
	"github.com/fablemesh/converse/logging"
)

// DefaultText is the cue rendered while a response is being generated.
const DefaultText = "thinking..."

// Controller owns the per-agent indicator map. It is confined to the engine's
// main loop: Show and Hide must only be called from there, and timer callbacks
// re-enter through the post function supplied at construction.
type Controller struct {
	renderer   core.IndicatorRenderer
	positioner core.Positioner
	clock      core.Clock
	post       func(func())
	logger     logging.Logger

	interval time.Duration
	offsetY  float64

	active map[core.AgentID]*handle
}

// handle tracks one live indicator and its position-sync token.
type handle struct {
	key     string
	timer   core.Timer
	stopped bool
}

// Options configure a Controller.
type Options struct {
	// SyncInterval is the period of the position-sync timer.
	SyncInterval time.Duration
	// OffsetY lifts the indicator above the agent's position.
	OffsetY float64
	// Logger receives disappearance notices.
	Logger logging.Logger
}

// NewController constructs a Controller. The post function marshals timer
// callbacks onto the thread that owns session state.
func NewController(renderer core.IndicatorRenderer, positioner core.Positioner, clock core.Clock, post func(func()), optFns ...func(o *Options)) *Controller {
	opts := Options{SyncInterval: 250 * time.Millisecond, OffsetY: 2.10, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Controller{
		renderer:   renderer,
		positioner: positioner,
		clock:      clock,
		post:       post,
		logger:     opts.Logger,
		interval:   opts.SyncInterval,
		offsetY:    opts.OffsetY,
		active:     make(map[core.AgentID]*handle),
	}
}

// Show creates the indicator for an agent, replacing any existing one, and
// starts its position-sync timer. It returns false when the agent is not
// currently present in the world.
func (c *Controller) Show(agent core.AgentID) bool {
	pos, ok := c.positioner.CurrentLocation(agent)
	if !ok {
		return false
	}
	c.Hide(agent)

	h := &handle{key: string(agent)}
	c.active[agent] = h
	c.renderer.Create(h.key, c.raise(pos), DefaultText)
	c.scheduleSync(agent, h)
	return true
}

// Hide removes an agent's indicator and cancels its sync timer. Safe to call
// when none exists.
func (c *Controller) Hide(agent core.AgentID) {
	h, ok := c.active[agent]
	if !ok {
		return
	}
	h.stopped = true
	if h.timer != nil {
		h.timer.Stop()
	}
	c.renderer.Remove(h.key)
	delete(c.active, agent)
}

// Visible reports whether an indicator currently exists for the agent.
func (c *Controller) Visible(agent core.AgentID) bool {
	_, ok := c.active[agent]
	return ok
}

func (c *Controller) scheduleSync(agent core.AgentID, h *handle) {
	h.timer = c.clock.AfterFunc(c.interval, func() {
		c.post(func() { c.sync(agent, h) })
	})
}

// sync re-reads the agent's position and moves the indicator to match. If the
// agent has disappeared the indicator removes itself and the timer chain ends.
func (c *Controller) sync(agent core.AgentID, h *handle) {
	if h.stopped || c.active[agent] != h {
		return
	}
	pos, ok := c.positioner.CurrentLocation(agent)
	if !ok {
		c.logger.Debug("agent %s disappeared, removing indicator", agent)
		c.Hide(agent)
		return
	}
	c.renderer.Move(h.key, c.raise(pos))
	c.scheduleSync(agent, h)
}

func (c *Controller) raise(pos core.Position) core.Position {
	pos.Y += c.offsetY
	return pos
}
