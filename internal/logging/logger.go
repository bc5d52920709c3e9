// Package logging defines the structured-logging interface used by the sync
// daemon. The reconciler, the publisher and the queue adapters only depend on
// Logger, so tests can swap the handler or discard output entirely.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "applied envelope", "model", model, "uuid", id)
type Logger interface {
	// Debug logs diagnostic details such as skipped stale updates.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}
