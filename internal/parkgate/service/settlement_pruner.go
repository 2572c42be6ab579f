package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
)

// SettlementPruner periodically deletes settlement audit entries older than
// the retention period. A retention of 0 disables it.
type SettlementPruner struct {
	store     store.SettlementEventStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

type PrunerConfig struct {
	// RetentionDays is how many days of audit history to keep.
	// 0 means keep everything.
	RetentionDays int

	// IntervalHours is how often the pruner runs. Defaults to 6.
	IntervalHours int
}

// NewSettlementPruner creates a pruner but does not start it.
func NewSettlementPruner(s store.SettlementEventStore, cfg PrunerConfig, logger *slog.Logger) *SettlementPruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	return &SettlementPruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start prunes once immediately and then on every interval until ctx is
// cancelled or Stop is called. Calling Start twice is a no-op.
func (p *SettlementPruner) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	if p.retention <= 0 {
		p.logger.Info("settlement pruner disabled", "retention_days", 0)
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)

	p.logger.Info("settlement pruner started",
		"retention_days", int(p.retention.Hours()/24),
		"interval_hours", int(p.interval.Hours()))
}

// Stop signals the loop to exit and waits for it. Safe to call more than
// once, and before Start.
func (p *SettlementPruner) Stop() {
	p.mu.Lock()
	started, cancel := p.started, p.cancel
	p.mu.Unlock()

	if !started {
		return
	}
	if cancel != nil {
		cancel()
	}
	<-p.done
}

func (p *SettlementPruner) loop(ctx context.Context) {
	defer close(p.done)

	p.PruneOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PruneOnce(ctx)
		}
	}
}

// PruneOnce deletes entries older than the retention window and returns how
// many were removed.
func (p *SettlementPruner) PruneOnce(ctx context.Context) int64 {
	if p.retention <= 0 {
		return 0
	}
	cutoff := time.Now().UTC().Add(-p.retention)
	deleted, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("settlement prune failed", "err", err)
		return 0
	}
	if deleted > 0 {
		p.logger.Info("settlement prune", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	}
	return deleted
}
