package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Pruner trims the revision history of every document on a cron
// schedule.
type Pruner struct {
	store  Store
	keep   int
	logger *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
}

// NewPruner schedules pruning of s down to keep revisions per document.
// schedule is a standard five-field cron expression or a descriptor such
// as "@hourly" or "@every 30m".
func NewPruner(s Store, schedule string, keep int, logger *slog.Logger) (*Pruner, error) {
	p := &Pruner{store: s, keep: clampKeep(keep), logger: logger, cron: cron.New()}
	if _, err := p.cron.AddFunc(schedule, p.run); err != nil {
		return nil, fmt.Errorf("prune schedule %q: %w", schedule, err)
	}
	return p, nil
}

// Start runs the schedule in the background.
func (p *Pruner) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		p.started = true
		p.cron.Start()
	}
}

// Stop halts the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	started := p.started
	p.started = false
	p.mu.Unlock()
	if started {
		<-p.cron.Stop().Done()
	}
}

func (p *Pruner) run() {
	n, err := p.RunOnce(context.Background())
	if p.logger == nil {
		return
	}
	if err != nil {
		p.logger.Error("prune revisions failed", "error", err)
		return
	}
	p.logger.Debug("pruned revisions", "removed", n, "keep", p.keep)
}

// RunOnce prunes every document now and returns the revisions removed.
func (p *Pruner) RunOnce(ctx context.Context) (int, error) {
	infos, err := p.store.List(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, info := range infos {
		n, err := p.store.Prune(ctx, info.DocID, p.keep)
		total += n
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", info.DocID, err)
		}
	}
	return total, nil
}
