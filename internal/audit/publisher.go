package audit

import (
	"context"
	"log/slog"
)

// Publisher emits events that are not part of a roster transaction, such as
// logins. Failures are logged, never returned.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, logger: logger}
}

func (p *Publisher) Emit(ctx context.Context, e Event) {
	e = Stamp(ctx, e)
	if err := p.store.Append(ctx, e); err != nil {
		p.logger.ErrorContext(ctx, "failed to append audit event",
			"request_id", e.RequestID,
			"action", string(e.Action),
			"error", err,
		)
	}
}
