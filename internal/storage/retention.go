package storage

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// InactivePurger is what the Purger drives; *Postgres implements it.
type InactivePurger interface {
	PurgeInactive(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// Purger physically removes soft-deleted rows past the retention window. It
// works in small batches and paces itself with a rate limiter so purging
// never monopolizes the connection pool.
type Purger struct {
	db        InactivePurger
	retention time.Duration
	interval  time.Duration
	batch     int
	limiter   *rate.Limiter
	log       *slog.Logger
}

func NewPurger(db InactivePurger, retention, interval time.Duration, log *slog.Logger) *Purger {
	if log == nil {
		log = slog.Default()
	}
	return &Purger{
		db:        db,
		retention: retention,
		interval:  interval,
		batch:     500,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		log:       log,
	}
}

// Run purges on every tick until ctx is cancelled.
func (p *Purger) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := p.PurgeOnce(ctx); err != nil {
				p.log.Warn("retention purge failed", "err", err)
			} else if n > 0 {
				p.log.Info("retention purge", "rows", n)
			}
		}
	}
}

// PurgeOnce drains all eligible rows in rate-limited batches and returns the
// total removed.
func (p *Purger) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-p.retention)
	var total int64
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return total, err
		}
		n, err := p.db.PurgeInactive(ctx, cutoff, p.batch)
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(p.batch) {
			return total, nil
		}
	}
}
