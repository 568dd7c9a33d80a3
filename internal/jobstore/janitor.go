package jobstore

import (
	"context"
	"log/slog"
	"time"
)

// CleanupFunc removes the on-disk artifacts belonging to an evicted record.
type CleanupFunc func(Record)

// Janitor evicts terminal job records after a retention window, along with
// their artifacts. The original service retained jobs and artifacts for the
// life of the process; the janitor closes that leak.
type Janitor struct {
	store    *Store
	ttl      time.Duration
	interval time.Duration
	cleanup  CleanupFunc
	logger   *slog.Logger
}

// NewJanitor creates a janitor. A zero ttl disables eviction.
func NewJanitor(store *Store, ttl, interval time.Duration, cleanup CleanupFunc, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Janitor{
		store:    store,
		ttl:      ttl,
		interval: interval,
		cleanup:  cleanup,
		logger:   logger.With("component", "janitor"),
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
// Run in a goroutine.
func (j *Janitor) Run(ctx context.Context) {
	if j.ttl <= 0 {
		j.logger.Info("retention disabled, janitor idle")
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.Sweep(now)
		}
	}
}

// Sweep evicts every terminal record older than the retention window.
func (j *Janitor) Sweep(now time.Time) {
	for _, rec := range j.store.Expired(j.ttl, now) {
		if _, err := j.store.Delete(rec.ID); err != nil {
			continue
		}
		if j.cleanup != nil {
			j.cleanup(rec)
		}
		j.logger.Info("evicted expired job", "job_id", rec.ID, "status", rec.Status)
	}
}
