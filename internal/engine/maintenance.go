package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lazypower/retain/internal/model"
)

// RunMaintenance sweeps every memory in scope through score → decay →
// expiry → promotion, one worker per owner up to the configured limit.
// Per-owner and per-memory failures are recorded in the report, never
// thrown; the only error return is failing to enumerate owners. Dry runs
// report the transitions a real run would make without writing anything.
//
// A sweep applied twice back to back produces zero transitions the second
// time: decay advances in whole-day periods, and promotion requires dwell
// time in the current tier.
func (e *Engine) RunMaintenance(ctx context.Context, scope string, dryRun bool) (*model.MaintenanceReport, error) {
	started := e.now()
	if scope == "" {
		scope = model.ScopeAll
	}

	var owners []string
	if scope == model.ScopeAll {
		var err error
		owners, err = e.store.ListOwners(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		owners = []string{scope}
	}

	report := model.NewMaintenanceReport(scope, dryRun, started)
	e.log.Info("maintenance run starting",
		"run_id", report.RunID, "scope", scope, "dry_run", dryRun, "owners", len(owners))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(e.cfg.MaintenanceWorkers)
	for _, owner := range owners {
		if ctx.Err() != nil {
			break
		}
		owner := owner
		g.Go(func() error {
			or := e.sweepOwner(ctx, owner, dryRun)
			mu.Lock()
			report.Add(or)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	report.FinishedAt = e.now()
	e.log.Info("maintenance run finished",
		"run_id", report.RunID,
		"processed", report.Processed, "promoted", report.Promoted,
		"decayed", report.Decayed, "expired", report.Expired,
		"degraded", report.Degraded, "skipped", report.Skipped,
		"duration", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

func (e *Engine) sweepOwner(ctx context.Context, owner string, dryRun bool) model.OwnerReport {
	or := model.OwnerReport{Owner: owner}

	memories, err := e.store.ListByOwner(ctx, owner)
	if err != nil {
		or.Err = err.Error()
		e.log.Error("owner sweep failed", "owner", owner, "error", err)
		return or
	}

	for i := range memories {
		if ctx.Err() != nil {
			or.Err = ctx.Err().Error()
			break
		}
		res := e.sweepMemory(ctx, memories[i].ID, dryRun)
		or.Processed++
		if res.promoted {
			or.Promoted++
		}
		if res.decayed {
			or.Decayed++
		}
		if res.expired {
			or.Expired++
		}
		if res.degraded {
			or.Degraded++
		}
		if res.skipped {
			or.Skipped++
		}
	}
	return or
}

type sweepResult struct {
	promoted bool
	decayed  bool
	expired  bool
	degraded bool
	skipped  bool
}

// sweepMemory runs one memory through the full lifecycle pass under its
// lock, retrying the whole read-evaluate-write cycle on version conflicts.
func (e *Engine) sweepMemory(ctx context.Context, id string, dryRun bool) sweepResult {
	unlock := e.locks.Lock(id)
	defer unlock()

	for attempt := 0; attempt < e.cfg.StoreRetries; attempt++ {
		res := sweepResult{}

		m, err := e.store.GetMemory(ctx, id)
		if err != nil {
			// Deleted underneath the sweep, or the store timed out.
			if !errors.Is(err, model.ErrNotFound) {
				e.log.Warn("sweep read failed", "memory_id", id, "error", err)
			}
			res.skipped = true
			return res
		}

		if err := m.CheckInvariants(); err != nil {
			e.log.Error("invariant violation, record needs manual review",
				"memory_id", id, "tier", m.Tier, "importance", m.Importance)
			res.skipped = true
			return res
		}

		now := e.now()
		b := e.scoreMemory(ctx, m)
		m.Score = b
		res.degraded = b.Degraded
		if !dryRun {
			if err := e.store.AppendScore(ctx, m.ID, b.Composite, now); err != nil {
				e.log.Warn("score history append failed", "memory_id", id, "error", err)
			}
		}

		if e.applyDecay(m, now) {
			res.decayed = true
		}

		if e.shouldExpire(m, now) {
			res.expired = true
			if dryRun {
				return res
			}
			if err := e.store.DeleteMemory(ctx, m.ID); err != nil && !errors.Is(err, model.ErrNotFound) {
				e.log.Warn("expiry delete failed", "memory_id", id, "error", err)
				res.expired = false
				res.skipped = true
				return res
			}
			e.log.Info("memory expired",
				"memory_id", id, "tier", m.Tier, "importance", m.Importance,
				"age_hours", m.AgeHours(now))
			return res
		}

		if !e.cooldownActive(m, now) {
			if b.Degraded {
				if e.fallbackEligible(m, now) && e.promote(m, now, reasonFallback) {
					res.promoted = true
				}
			} else if e.promotionEligible(m, b, now) && e.promote(m, now, reasonComposite) {
				res.promoted = true
			}
		}

		if dryRun {
			return res
		}
		if err := e.store.UpdateMemory(ctx, m); err != nil {
			if errors.Is(err, model.ErrConflict) {
				e.log.Debug("sweep write conflict, retrying",
					"memory_id", id, "attempt", attempt+1)
				continue
			}
			e.log.Warn("sweep write failed", "memory_id", id, "error", err)
			res.skipped = true
			return res
		}
		return res
	}

	e.log.Warn("sweep retry budget exhausted", "memory_id", id)
	return sweepResult{skipped: true}
}

// StartMaintenance launches the periodic background sweep.
func (e *Engine) StartMaintenance(interval time.Duration) {
	if e.stopCh != nil {
		return
	}
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	go e.maintenanceLoop(interval)
	e.log.Info("maintenance timer started", "interval", interval)
}

func (e *Engine) maintenanceLoop(interval time.Duration) {
	defer close(e.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			if _, err := e.RunMaintenance(ctx, model.ScopeAll, false); err != nil {
				e.log.Error("scheduled maintenance failed", "error", err)
			}
			cancel()
		case <-e.stopCh:
			return
		}
	}
}

// Stop shuts the maintenance timer down and waits for any in-flight sweep.
func (e *Engine) Stop() {
	if e.stopCh == nil {
		return
	}
	close(e.stopCh)
	<-e.doneCh
	e.stopCh = nil
}
