// Package presence looks up whether a tracked remote account is currently in
// an active play session on the remote platform.
package presence

import "context"

// Status is the observed presence of a remote account at one point in time.
type Status string

const (
	// StatusUnknown means the lookup failed or returned no information.
	// Callers must treat it as "no observation", never as offline.
	StatusUnknown Status = "unknown"

	// StatusInactive means the account is not in a play session. Being
	// merely online on the platform website counts as inactive.
	StatusInactive Status = "inactive"

	// StatusActive means the account is inside a play session.
	StatusActive Status = "active"
)

// Result is one presence observation.
type Result struct {
	Status Status

	// Location names where the session is taking place, when the platform
	// exposes it. Empty for inactive/unknown.
	Location string
}

// Source resolves the current presence of a remote account. A failed lookup
// is reported through the error; callers fall back to StatusUnknown and retry
// on their own cadence.
type Source interface {
	Lookup(ctx context.Context, remoteID string) (Result, error)
}
