// Package memqueue is an in-process queue.Sender and queue.Consumer for
// tests and single-process runs.
package memqueue

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/osissync/internal/queue"
)

// Broker holds named FIFO queues of payloads.
type Broker struct {
	mu     sync.Mutex
	queues map[string][][]byte
	notify chan struct{}
	closed bool
}

func New() *Broker {
	return &Broker{queues: make(map[string][][]byte), notify: make(chan struct{})}
}

func (b *Broker) Enqueue(_ context.Context, name string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return queue.ErrUnavailable
	}
	b.queues[name] = append(b.queues[name], append([]byte(nil), payload...))
	b.wake()
	return nil
}

// wake releases every waiting consumer. Callers hold mu.
func (b *Broker) wake() {
	close(b.notify)
	b.notify = make(chan struct{})
}

// Len returns the number of pending payloads on name.
func (b *Broker) Len(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[name])
}

// Drain removes and returns every pending payload on name.
func (b *Broker) Drain(name string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queues[name]
	delete(b.queues, name)
	return out
}

func (b *Broker) pop(name string) ([]byte, <-chan struct{}, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nil, true
	}
	q := b.queues[name]
	if len(q) == 0 {
		return nil, b.notify, false
	}
	b.queues[name] = q[1:]
	return q[0], nil, false
}

// Consume hands payloads to h in FIFO order. Handler errors are dropped
// along with the payload, like a rejected delivery without requeue.
func (b *Broker) Consume(ctx context.Context, name string, h queue.Handler) error {
	for {
		payload, wait, closed := b.pop(name)
		if closed {
			return queue.ErrUnavailable
		}
		if wait != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-wait:
			}
			continue
		}
		_ = h(ctx, payload)
	}
}

// Close makes every later Enqueue fail with queue.ErrUnavailable and stops
// consumers.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		b.wake()
	}
}
