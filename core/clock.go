package core

import "time"

// Timer is a cancellation token for a scheduled callback. Stop reports
// whether the callback was prevented from firing; stopping an already-fired
// or already-stopped timer is a safe no-op.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed callbacks. The engine stores the returned tokens
// per session so supersession and teardown can cancel deterministically. A
// fake implementation drives the test suite without wall-clock sleeps.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (rt realTimer) Stop() bool { return rt.t.Stop() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return realTimer{t: time.AfterFunc(d, fn)}
}

// RealClock returns a Clock backed by the runtime timer wheel.
func RealClock() Clock { return realClock{} }
