// Package engine hosts the conversation orchestration engine: the public
// operations (start, join, leave, end, post message) that mutate sessions and
// drive the turn scheduler.
//
// Concurrency model: a single main loop owns every session-state mutation,
// all registry and indicator bookkeeping, and all collaborator calls except
// text generation. Completion calls run on a bounded worker pool; their
// continuations are posted back onto the loop and re-check session liveness
// before touching anything. Public methods marshal onto the loop and return
// synchronously, so they are safe to call from any goroutine.
package engine
