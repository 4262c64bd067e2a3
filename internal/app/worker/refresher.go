// Package worker contains the background catalog refresher that keeps the
// cache warm independent of cache-miss refreshes on the request path.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// Catalog is the slice of the catalog service the refresher needs.
type Catalog interface {
	Refresh(ctx context.Context) error
}

// Refresher runs one refresh immediately and then one per interval until
// the context is cancelled. Refresh errors are logged and the loop keeps
// going: a failed cycle just means the cache stays stale until the next.
type Refresher struct {
	catalog  Catalog
	interval time.Duration
	logger   *slog.Logger
}

func NewRefresher(catalog Catalog, interval time.Duration, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Refresher{
		catalog:  catalog,
		interval: interval,
		logger:   logger,
	}
}

func (r *Refresher) Run(ctx context.Context) error {
	r.refreshOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.refreshOnce(ctx)
		}
	}
}

func (r *Refresher) refreshOnce(ctx context.Context) {
	start := time.Now()
	if err := r.catalog.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("scheduled catalog refresh failed", "err", err)
		return
	}
	r.logger.Info("catalog refreshed", "took", time.Since(start).String())
}
