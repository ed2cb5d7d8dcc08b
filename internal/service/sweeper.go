package service

import (
	"context"
	"log/slog"
	"time"
)

// StaleSweeper periodically force-fails transactions that never reached a
// terminal state, compensating for lost or undelivered responses. It is
// stateless between runs; safety under concurrency comes from the conditional
// transition, not from the schedule.
type StaleSweeper struct {
	service   *TransactionService
	threshold time.Duration
	interval  time.Duration
	logger    *slog.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewStaleSweeper(service *TransactionService, threshold, interval time.Duration, logger *slog.Logger) *StaleSweeper {
	return &StaleSweeper{
		service:   service,
		threshold: threshold,
		interval:  interval,
		logger:    logger,
	}
}

// Start launches the sweep loop. The first sweep runs after one interval.
func (w *StaleSweeper) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.logger.Info("Stale sweeper started",
			"threshold", w.threshold, "interval", w.interval)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.service.SweepStale(ctx, w.threshold); err != nil {
					w.logger.Error("Stale sweep failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (w *StaleSweeper) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.logger.Info("Stale sweeper stopped")
}
