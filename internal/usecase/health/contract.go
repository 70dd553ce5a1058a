package health

import "context"

// Pinger checks store availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker checks a remote collaborator (embedding provider, language model).
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// StateStore is the conversation state store. Probe lets a degraded store
// return to its remote backend; Degraded reports whether it still runs from memory.
type StateStore interface {
	Pinger
	Probe(ctx context.Context) error
	Degraded() bool
}
