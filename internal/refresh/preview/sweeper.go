package preview

import (
	"context"
	"log/slog"
	"time"
)

// Purger is satisfied by *Service.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Sweeper drops expired previews on an interval. Expired previews are already
// unusable; sweeping only bounds storage.
type Sweeper struct {
	purger   Purger
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(purger Purger, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{purger: purger, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled. A failed sweep is logged and retried on
// the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.purger.PurgeExpired(ctx)
			if err != nil {
				s.logger.WarnContext(ctx, "preview sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.InfoContext(ctx, "purged expired previews", "count", n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
