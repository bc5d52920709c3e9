// Package amqpqueue implements the queue contract over RabbitMQ.
package amqpqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/osissync/internal/logging"
	"github.com/dmitrijs2005/osissync/internal/queue"
	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the part of *amqp.Channel the client uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	IsClosed() bool
	Close() error
}

// Client publishes and consumes over one AMQP connection. Publishing uses a
// dedicated channel guarded by a mutex; each Consume call opens its own.
type Client struct {
	conn     *amqp.Connection
	open     func() (channel, error)
	prefetch int
	logger   logging.Logger

	mu       sync.Mutex
	pub      channel
	declared map[string]bool
}

type Option func(*Client)

// WithPrefetch limits unacknowledged deliveries per consumer.
func WithPrefetch(n int) Option {
	return func(c *Client) { c.prefetch = n }
}

// Dial connects to the broker at url.
func Dial(url string, logger logging.Logger, opts ...Option) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", queue.ErrUnavailable, err)
	}
	c := newClient(func() (channel, error) { return conn.Channel() }, logger, opts...)
	c.conn = conn
	return c, nil
}

func newClient(open func() (channel, error), logger logging.Logger, opts ...Option) *Client {
	c := &Client{
		open:     open,
		prefetch: 1,
		logger:   logger.With("module", "amqpqueue"),
		declared: make(map[string]bool),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func declare(ch channel, name string) error {
	_, err := ch.QueueDeclare(name, true, false, false, false, nil)
	return err
}

// Enqueue publishes payload to the default exchange with the queue name as
// routing key, as a persistent JSON message.
func (c *Client) Enqueue(ctx context.Context, name string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pub == nil || c.pub.IsClosed() {
		ch, err := c.open()
		if err != nil {
			return mapErr(err)
		}
		c.pub = ch
		c.declared = make(map[string]bool)
	}

	if !c.declared[name] {
		if err := declare(c.pub, name); err != nil {
			return mapErr(err)
		}
		c.declared[name] = true
	}

	err := c.pub.PublishWithContext(ctx, "", name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	if err != nil {
		return mapErr(err)
	}
	return nil
}

// Consume blocks, handing each delivery to h before reading the next one.
// Deliveries are acknowledged after h returns; a failed delivery is rejected
// without requeue. It returns nil when ctx is done and ErrUnavailable when
// the broker goes away.
func (c *Client) Consume(ctx context.Context, name string, h queue.Handler) error {
	ch, err := c.open()
	if err != nil {
		return mapErr(err)
	}
	defer ch.Close()

	if err := declare(ch, name); err != nil {
		return mapErr(err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return mapErr(err)
	}
	deliveries, err := ch.Consume(name, "", false, false, false, false, nil)
	if err != nil {
		return mapErr(err)
	}

	c.logger.Info(ctx, "consuming", "queue", name)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%w: delivery channel closed", queue.ErrUnavailable)
			}
			if err := h(ctx, d.Body); err != nil {
				c.logger.Warn(ctx, "rejecting delivery", "queue", name, "error", err)
				if err := d.Nack(false, false); err != nil {
					return mapErr(err)
				}
				continue
			}
			if err := d.Ack(false); err != nil {
				return mapErr(err)
			}
		}
	}
}

// Close shuts the publishing channel and the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.pub != nil && !c.pub.IsClosed() {
		errs = append(errs, c.pub.Close())
	}
	if c.conn != nil && !c.conn.IsClosed() {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}

// mapErr turns closed-connection and closed-channel errors into
// queue.ErrUnavailable.
func mapErr(err error) error {
	var amqpErr *amqp.Error
	if errors.Is(err, amqp.ErrClosed) || (errors.As(err, &amqpErr) && !amqpErr.Recover) {
		return fmt.Errorf("%w: %v", queue.ErrUnavailable, err)
	}
	return err
}
