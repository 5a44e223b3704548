// Package worker runs background maintenance next to the webhook server.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Maycon01282/bot2/internal/dedupe"
)

var (
	recordsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_dedupe_records_evicted_total",
		Help: "Processed-event records dropped after leaving the dedupe window",
	})
	evictErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_dedupe_evict_errors_total",
		Help: "Failed eviction passes",
	})
)

// Janitor periodically drops dedupe records older than the window.
type Janitor struct {
	store    dedupe.Evictor
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewJanitor(store dedupe.Evictor, ttl, interval time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		store:    store,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run blocks until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("dedupe janitor started", "ttl", j.ttl.String(), "interval", j.interval.String())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one eviction pass and returns how many records it dropped.
func (j *Janitor) Sweep(ctx context.Context) int {
	n, err := j.store.Evict(ctx, j.now().Add(-j.ttl))
	if err != nil {
		evictErrors.Inc()
		j.logger.Warn("failed to evict dedupe records", "error", err)
		return 0
	}
	if n > 0 {
		recordsEvicted.Add(float64(n))
		j.logger.Info("evicted dedupe records", "count", n)
	}
	return n
}
