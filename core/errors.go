package core

import "errors"

var (
	// ErrParticipantConflict is returned when an agent requested for a new
	// session is already a member of another active session.
	ErrParticipantConflict = errors.New("participant already in an active session")

	// ErrNoActiveSession is returned by operations that require the caller to
	// be in an active session when none exists.
	ErrNoActiveSession = errors.New("no active session")

	// ErrGenerationFailed signals that the completion service returned an
	// empty or null result. It is non-fatal: the affected turn is abandoned
	// and the round continues.
	ErrGenerationFailed = errors.New("completion service returned no text")

	// ErrCollaboratorUnavailable signals that a positioning or rendering call
	// could not be served, typically because the agent is no longer present
	// in the world. The operation is abandoned, never retried.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)
