package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/BrandonDHaskell/medledger/internal/medledger/store"
)

// AuditPruner periodically deletes audit events older than a retention
// window.  A retention of 0 disables it.
type AuditPruner struct {
	store     store.AuditStore
	retention time.Duration
	interval  time.Duration
	logger    *log.Logger

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// PrunerConfig holds the parameters for NewAuditPruner.
type PrunerConfig struct {
	// RetentionDays is how many days of audit history to keep.
	// 0 keeps everything and the pruner never starts.
	RetentionDays int

	// IntervalHours is how often the pruner runs.  Defaults to 6.
	IntervalHours int
}

// NewAuditPruner creates a pruner but does not start it.
func NewAuditPruner(s store.AuditStore, cfg PrunerConfig, logger *log.Logger) *AuditPruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	return &AuditPruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start prunes once immediately, then on every interval until ctx is
// cancelled or Stop is called.
func (p *AuditPruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Printf("audit pruner disabled (retention=0)")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	go p.loop(ctx)

	p.logger.Printf("audit pruner started (retention=%dd, interval=%s)",
		int(p.retention.Hours()/24), p.interval)
}

// Stop signals the loop to exit and waits for it.  Safe to call more than
// once.
func (p *AuditPruner) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
	<-p.done
}

func (p *AuditPruner) loop(ctx context.Context) {
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

// PruneOnce runs a single pass and returns how many events it deleted.
func (p *AuditPruner) PruneOnce(ctx context.Context) int64 {
	cutoff := time.Now().UTC().Add(-p.retention)
	deleted, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Printf("audit prune error: %v", err)
		return 0
	}
	if deleted > 0 {
		p.logger.Printf("audit prune: deleted %d events older than %s",
			deleted, cutoff.Format(time.RFC3339))
	}
	return deleted
}
