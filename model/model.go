package model

import (
	"context"
	"sync"

	"github.com/fablemesh/converse/core"
)

// Completer is the minimal interface required to drive dialogue generation.
// The assembled message sequence is handed over verbatim; the engine trims and
// validates nothing.
//
// An empty string with a nil error is the uniform "generation failed" signal:
// the affected turn is abandoned and no retry is performed here. Retries,
// timeouts and rate limiting are the provider's concern.
type Completer interface {
	Complete(ctx context.Context, messages []core.Message) (string, error)
}

// CompleterFunc adapts an ordinary function to the Completer interface.
type CompleterFunc func(ctx context.Context, messages []core.Message) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, messages []core.Message) (string, error) {
	return f(ctx, messages)
}

// ScriptedCompleter is an in-memory Completer that replays a fixed sequence of
// responses and records every request it receives. Useful for tests and demos.
type ScriptedCompleter struct {
	mu        sync.Mutex
	responses []string
	next      int
	requests  [][]core.Message
}

// NewScriptedCompleter constructs a completer replaying the given responses in
// order. Once exhausted it keeps returning the last response, or "" if none
// were provided.
func NewScriptedCompleter(responses ...string) *ScriptedCompleter {
	return &ScriptedCompleter{responses: responses}
}

// Complete implements Completer.
func (s *ScriptedCompleter) Complete(_ context.Context, messages []core.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]core.Message, len(messages))
	copy(snapshot, messages)
	s.requests = append(s.requests, snapshot)
	if len(s.responses) == 0 {
		return "", nil
	}
	if s.next >= len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	resp := s.responses[s.next]
	s.next++
	return resp, nil
}

// Requests returns a copy of all recorded request message sequences.
func (s *ScriptedCompleter) Requests() [][]core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]core.Message, len(s.requests))
	copy(out, s.requests)
	return out
}

// CallCount returns how many completion calls were made.
func (s *ScriptedCompleter) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
