// Package stats runs the background reconciliation of the aggregate
// statistics singleton.
package stats

import (
	"context"
	"log/slog"
	"time"

	"tap4impact/internal/server/database"
)

// Reconciler periodically re-runs the authoritative stats recompute.
// Every donation write already recomputes the singleton in its own
// transaction; this loop only heals drift from out-of-band changes such as
// manual data fixes.
type Reconciler struct {
	repo     *database.Repository
	interval time.Duration
	done     chan struct{}
}

// NewReconciler creates a new stats reconciler.
func NewReconciler(repo *database.Repository, interval time.Duration) *Reconciler {
	return &Reconciler{
		repo:     repo,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the reconciliation loop in a background goroutine.
func (rc *Reconciler) Start(ctx context.Context) {
	slog.Info("stats reconciler started", "interval", rc.interval)

	go func() {
		ticker := time.NewTicker(rc.interval)
		defer ticker.Stop()

		// Run once immediately on start
		rc.run(ctx)

		for {
			select {
			case <-ticker.C:
				rc.run(ctx)
			case <-ctx.Done():
				slog.Info("stats reconciler stopping")
				close(rc.done)
				return
			}
		}
	}()
}

// Wait blocks until the reconciler has fully stopped.
func (rc *Reconciler) Wait() {
	<-rc.done
}

func (rc *Reconciler) run(ctx context.Context) {
	start := time.Now()
	if err := rc.repo.RecomputeStats(ctx); err != nil {
		slog.Error("stats reconciliation failed", "error", err)
		return
	}
	slog.Info("stats reconciled", "elapsed_ms", time.Since(start).Milliseconds())
}
