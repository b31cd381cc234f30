// Package memory provides core.MemoryStore implementations: a process-local
// InMemoryStore for tests and demos, and a yaml-file-backed FileStore for
// hosts that persist agent memory across restarts.
package memory
