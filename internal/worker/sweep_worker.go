package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often the mock test store is pruned.
const DefaultSweepInterval = time.Minute

// Sweeper removes expired entries from a store.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepWorker periodically prunes abandoned mock tests.
type SweepWorker struct {
	store    Sweeper
	interval time.Duration
	log      zerolog.Logger
}

// NewSweepWorker creates a new SweepWorker.
func NewSweepWorker(store Sweeper, interval time.Duration, log zerolog.Logger) *SweepWorker {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &SweepWorker{
		store:    store,
		interval: interval,
		log:      log.With().Str("component", "sweep_worker").Logger(),
	}
}

// Start runs until ctx is cancelled. Call in a goroutine.
func (w *SweepWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and logs the outcome.
func (w *SweepWorker) RunOnce(ctx context.Context) int {
	removed, err := w.store.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Sweep failed")
		}
		return removed
	}
	if removed > 0 {
		w.log.Debug().Int("removed", removed).Msg("Swept expired mock tests")
	}
	return removed
}
