// Package logging provides a minimal logging interface and adapters for the
// conversation engine.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) used throughout the framework. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// The design intentionally keeps the interface minimal so hosts can plug in
// whatever structured logger they already run.
package logging
