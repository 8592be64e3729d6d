package audit

import (
	"context"
	"log/slog"
	"time"

	"facecards/internal/platform/kafka"
)

// OutboxEntry is an unpublished row of the outbox table.
type OutboxEntry struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// Outbox is the relay's view of the outbox table.
type Outbox interface {
	FetchUnprocessed(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkProcessed(ctx context.Context, ids []string, at time.Time) error
}

// Producer publishes to the audit topic.
type Producer interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Relay moves committed outbox rows to Kafka. Delivery is at-least-once: a
// crash between publish and mark republishes the batch, so consumers dedupe
// on the event ID header.
type Relay struct {
	outbox   Outbox
	producer Producer
	interval time.Duration
	batch    int
	logger   *slog.Logger
	now      func() time.Time
}

func NewRelay(outbox Outbox, producer Producer, interval time.Duration, batch int, logger *slog.Logger) *Relay {
	if batch <= 0 {
		batch = 100
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Relay{
		outbox:   outbox,
		producer: producer,
		interval: interval,
		batch:    batch,
		logger:   logger,
		now:      time.Now,
	}
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
					break
				}
				if n < r.batch {
					break
				}
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many rows it moved.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.outbox.FetchUnprocessed(ctx, r.batch)
	if err != nil || len(entries) == 0 {
		return 0, err
	}

	msgs := make([]kafka.Message, 0, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, kafka.Message{
			Key:   e.AggregateID,
			Value: e.Payload,
			Headers: map[string]string{
				"event_id":       e.ID,
				"event_type":     e.EventType,
				"aggregate_type": e.AggregateType,
			},
		})
		ids = append(ids, e.ID)
	}
	if err := r.producer.Publish(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := r.outbox.MarkProcessed(ctx, ids, r.now()); err != nil {
		return 0, err
	}
	r.logger.DebugContext(ctx, "outbox batch relayed", "count", len(ids))
	return len(ids), nil
}
