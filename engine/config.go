package engine

import (
	"time"

	"github.com/fablemesh/converse/core"
	"github.com/fablemesh/converse/logging"
)

// Config defines tuning parameters for the engine's scheduling behavior.
type Config struct {
	// ResponseDelay is the debounce window between a player message and the
	// agent-response round it triggers. Rapid consecutive messages within the
	// window collapse into one round.
	ResponseDelay time.Duration

	// TurnStagger is the base offset between consecutive agent turns in a
	// round: agent i starts i×TurnStagger after the round fires.
	TurnStagger time.Duration

	// ThinkDelay is the additional delay between showing an agent's thinking
	// indicator and starting its generation call.
	ThinkDelay time.Duration

	// IndicatorSyncInterval is the period of the indicator position-sync
	// timer.
	IndicatorSyncInterval time.Duration

	// MemoryWindow is the number of trailing agent-memory entries included in
	// each prompt after the memory's fixed leading entry.
	MemoryWindow int

	// MaxConcurrentGenerations bounds the completion-call worker pool.
	MaxConcurrentGenerations int

	// ArrivalRadius is the distance margin used when directing an agent to
	// walk into a conversation.
	ArrivalRadius float64

	// RadiantEnabled controls whether ambient (player-less) sessions may
	// start.
	RadiantEnabled bool

	// DefaultLocation is the location name reported to the rumor collaborator
	// when no participating agent has a registered location.
	DefaultLocation string
}

// DefaultConfig provides the defaults the original tuning converged on: a
// 5 second debounce, 3 second stagger and think delay, and a 20 entry memory
// window.
var DefaultConfig = Config{
	ResponseDelay:            5 * time.Second,
	TurnStagger:              3 * time.Second,
	ThinkDelay:               3 * time.Second,
	IndicatorSyncInterval:    250 * time.Millisecond,
	MemoryWindow:             20,
	MaxConcurrentGenerations: 4,
	ArrivalRadius:            2.0,
	RadiantEnabled:           true,
	DefaultLocation:          "Village",
}

// Options configures an Engine instance using the functional options pattern.
// Every collaborator has an in-memory or no-op default so the engine is
// usable immediately in tests and demos.
type Options struct {
	// Config contains scheduling parameters. Defaults to DefaultConfig.
	Config Config

	// Memory persists per-agent memory. Defaults to an in-memory store.
	Memory core.MemoryStore

	// World supplies general and location context entries for prompts.
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

	// Clock schedules delayed steps. Defaults to the real clock; tests
	// substitute a fake.
	Clock core.Clock

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// WithConfig overrides the scheduling configuration.
func WithConfig(cfg Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithMemoryStore sets the agent memory store.
func WithMemoryStore(m core.MemoryStore) func(o *Options) {
	return func(o *Options) { o.Memory = m }
}

// WithWorldContext sets the world context source.
func WithWorldContext(w core.WorldContext) func(o *Options) {
	return func(o *Options) { o.World = w }
}

// WithPositioner sets the positioning collaborator.
func WithPositioner(p core.Positioner) func(o *Options) {
	return func(o *Options) { o.Positioner = p }
}

// WithIndicatorRenderer sets the indicator rendering collaborator.
func WithIndicatorRenderer(r core.IndicatorRenderer) func(o *Options) {
	return func(o *Options) { o.Renderer = r }
}

// WithBroadcaster sets the broadcast collaborator.
func WithBroadcaster(b core.Broadcaster) func(o *Options) {
	return func(o *Options) { o.Broadcaster = b }
}

// WithNameResolver sets the player name resolver.
func WithNameResolver(n core.NameResolver) func(o *Options) {
	return func(o *Options) { o.Names = n }
}

// WithRumorSink sets the rumor/world-knowledge collaborator.
func WithRumorSink(r core.RumorSink) func(o *Options) {
	return func(o *Options) { o.Rumors = r }
}

// WithClock substitutes the timer source.
func WithClock(c core.Clock) func(o *Options) {
	return func(o *Options) { o.Clock = c }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}
