package core

import "github.com/google/uuid"

// PlayerID identifies a human participant. Hosts typically use account UUIDs
// but any stable string works.
type PlayerID string

// AgentID identifies an autonomous character by its unique display name.
type AgentID string

// Position is a point in the host world. The engine only ever passes positions
// through between collaborators; it attaches no meaning to the coordinates.
type Position struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// NewID generates a unique identifier for sessions and rounds.
func NewID() string { return uuid.NewString() }
