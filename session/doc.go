// Package session houses the Registry that indexes live core.Session
// instances and answers "which session is this participant in". The Session
// entity itself lives in core to centralize domain contracts; this package
// only owns the bookkeeping around it.
package session
