// Package core contains the domain types and collaborator contracts shared by
// every layer of the framework: messages, participant identities, the Session
// entity, agent memory, and the interfaces through which the engine talks to
// the host world (positioning, indicator rendering, broadcasting, memory
// persistence, rumor propagation).
//
// Keeping the contracts here prevents higher level packages (engine, schedule,
// consequence) from depending on concrete implementations; only the wiring
// layer decides which implementation to instantiate.
package core
