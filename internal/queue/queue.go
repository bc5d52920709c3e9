// Package queue is the message transport contract between deployments: a
// send primitive that may fail when the broker is unreachable and a receive
// callback invoked once per delivered payload.
package queue

import (
	"context"
	"errors"
)

// ErrUnavailable reports a closed or unreachable transport.
var ErrUnavailable = errors.New("queue unavailable")

// Sender enqueues raw payloads on a named queue.
type Sender interface {
	Enqueue(ctx context.Context, queue string, payload []byte) error
}

// Handler processes one delivered payload.
type Handler func(ctx context.Context, payload []byte) error

// Consumer feeds deliveries of a named queue to a Handler, one at a time,
// until ctx is done or the transport fails.
type Consumer interface {
	Consume(ctx context.Context, queue string, h Handler) error
}
