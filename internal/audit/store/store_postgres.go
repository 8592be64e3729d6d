package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"facecards/internal/audit"
	txcontext "facecards/pkg/platform/tx"
)

// PostgresStore implements audit.Store with the transactional outbox pattern:
// events are written to the outbox table in the caller's transaction and
// published to Kafka by audit.Relay after commit.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// outboxPayload is the JSON published to Kafka.
type outboxPayload struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"`
	Subject   string            `json:"subject,omitempty"`
	ActorID   string            `json:"actor_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *PostgresStore) Append(ctx context.Context, event audit.Event) error {
	eventID := event.ID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	payload, err := json.Marshal(outboxPayload{
		ID:        eventID,
		Action:    string(event.Action),
		Subject:   event.Subject,
		ActorID:   event.ActorID,
		RequestID: event.RequestID,
		Details:   event.Details,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType, aggregateID := "audit", eventID
	if event.Subject != "" {
		aggregateType, aggregateID = "roster", event.Subject
	}

	_, err = txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		eventID, aggregateType, aggregateID, string(event.Action), payload, ts,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// FetchUnprocessed returns the oldest unpublished rows. Run one relay per
// deployment; two relays would publish the same rows twice.
func (s *PostgresStore) FetchUnprocessed(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var out []audit.OutboxEntry
	for rows.Next() {
		var e audit.OutboxEntry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET processed_at = $2
		WHERE id::text = ANY($1::text[])`,
		pq.Array(ids), at,
	)
	if err != nil {
		return fmt.Errorf("mark outbox processed: %w", err)
	}
	return nil
}
