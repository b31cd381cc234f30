// Package testutil provides shared test doubles: a deterministic manual
// clock and recording fakes for the world-facing collaborator interfaces.
package testutil
