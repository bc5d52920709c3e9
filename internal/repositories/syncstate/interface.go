// Package syncstate keeps, per model, the moment the records of that model
// were last exported to the other deployment. The stamp travels as
// last_sync on every serialized record.
package syncstate

import (
	"context"
	"time"
)

type Repository interface {
	// Get returns the last-sync stamp of model. ok is false when none was
	// recorded yet.
	Get(ctx context.Context, model string) (t time.Time, ok bool, err error)
	Set(ctx context.Context, model string, t time.Time) error
	All(ctx context.Context) (map[string]time.Time, error)
}
