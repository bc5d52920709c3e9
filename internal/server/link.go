package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/osissync/internal/logging"
	"github.com/dmitrijs2005/osissync/internal/queue"
	"github.com/dmitrijs2005/osissync/internal/queue/amqpqueue"
)

type broker interface {
	queue.Sender
	queue.Consumer
	Close() error
}

// dial is a seam for tests.
var dial = func(url string, logger logging.Logger, prefetch int) (broker, error) {
	return amqpqueue.Dial(url, logger, amqpqueue.WithPrefetch(prefetch))
}

// link keeps one broker connection alive. Enqueue fails fast with
// queue.ErrUnavailable while disconnected; consume redials.
type link struct {
	url      string
	prefetch int
	delay    time.Duration
	logger   logging.Logger

	mu      sync.RWMutex
	current broker
}

func newLink(url string, prefetch int, delay time.Duration, logger logging.Logger) *link {
	return &link{url: url, prefetch: prefetch, delay: delay, logger: logger.With("module", "link")}
}

func (l *link) connect() (broker, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current != nil {
		return l.current, nil
	}
	b, err := dial(l.url, l.logger, l.prefetch)
	if err != nil {
		return nil, err
	}
	l.current = b
	return b, nil
}

func (l *link) drop(b broker) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == b {
		l.current = nil
	}
	_ = b.Close()
}

func (l *link) Enqueue(ctx context.Context, name string, payload []byte) error {
	l.mu.RLock()
	b := l.current
	l.mu.RUnlock()
	if b == nil {
		return queue.ErrUnavailable
	}
	err := b.Enqueue(ctx, name, payload)
	if errors.Is(err, queue.ErrUnavailable) {
		l.drop(b)
	}
	return err
}

// consume feeds name to h until ctx is done, reconnecting after l.delay
// whenever the broker goes away.
func (l *link) consume(ctx context.Context, name string, h queue.Handler) {
	for ctx.Err() == nil {
		b, err := l.connect()
		if err == nil {
			err = b.Consume(ctx, name, h)
			if ctx.Err() != nil {
				return
			}
			l.drop(b)
		}
		l.logger.Warn(ctx, "broker connection lost", "queue", name, "retry_in", l.delay.String(), "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.delay):
		}
	}
}

func (l *link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return nil
	}
	err := l.current.Close()
	l.current = nil
	return err
}
