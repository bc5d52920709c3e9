// Package publisher turns committed local mutations into envelopes on the
// outbound queue. Delivery is best-effort: a transport failure is logged and
// the mutation, which is already committed, stands.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/osissync/internal/codec"
	"github.com/dmitrijs2005/osissync/internal/envelope"
	"github.com/dmitrijs2005/osissync/internal/logging"
	"github.com/dmitrijs2005/osissync/internal/models"
	"github.com/dmitrijs2005/osissync/internal/queue"
)

type Publisher struct {
	codec  *codec.Codec
	sender queue.Sender
	queue  string
	logger logging.Logger
}

// New returns a publisher sending to the named queue. A nil sender yields a
// disabled publisher whose methods do nothing.
func New(c *codec.Codec, sender queue.Sender, queueName string, logger logging.Logger) *Publisher {
	return &Publisher{
		codec:  c,
		sender: sender,
		queue:  queueName,
		logger: logger.With("module", "publisher"),
	}
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.sender != nil
}

// Publish enqueues the envelope for one mutation. Codec failures are
// returned; transport failures are not.
func (p *Publisher) Publish(ctx context.Context, mut models.Mutation) error {
	if !p.Enabled() {
		return nil
	}

	body, err := p.codec.Serialize(mut.Record, nil)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", mut.Op, err)
	}
	if body == nil {
		return nil
	}

	env := envelope.Upsert(body)
	if mut.Op == models.OpDelete {
		env = envelope.Delete(body)
	}
	return p.send(ctx, env)
}

// PublishBatch enqueues one upsert envelope per record. Mixed models fail
// with *codec.MultipleTypesError before anything is sent.
func (p *Publisher) PublishBatch(ctx context.Context, recs []*models.Record, lastSyncs map[string]time.Time) error {
	if !p.Enabled() {
		return nil
	}

	bodies, err := p.codec.SerializeBatch(recs, lastSyncs)
	if err != nil {
		return err
	}
	for _, body := range bodies {
		if body == nil {
			continue
		}
		if err := p.send(ctx, envelope.Upsert(body)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) send(ctx context.Context, env envelope.Envelope) error {
	payload, err := env.Encode()
	if err != nil {
		return err
	}

	err = p.sender.Enqueue(ctx, p.queue, payload)
	switch {
	case err == nil:
		p.logger.Debug(ctx, "enqueued", "queue", p.queue, "model", env.Body.Model,
			"uuid", env.Body.UUID(), "to_delete", env.ToDelete)
	case errors.Is(err, queue.ErrUnavailable):
		p.logger.Warn(ctx, "queue unavailable, message dropped", "queue", p.queue,
			"model", env.Body.Model, "uuid", env.Body.UUID(), "error", err)
	default:
		p.logger.Error(ctx, "enqueue failed, message dropped", "queue", p.queue,
			"model", env.Body.Model, "uuid", env.Body.UUID(), "error", err)
	}
	return nil
}
