// Package engine implements the tiered memory lifecycle: scoring, immediate
// promotion triggers, decay, expiry, and maintenance sweeps.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/lazypower/retain/internal/analyzer"
	"github.com/lazypower/retain/internal/config"
	"github.com/lazypower/retain/internal/model"
)

// Store is the metadata store adapter. Writes are optimistic: UpdateMemory
// returns model.ErrConflict when the version token is stale, and the engine
// re-reads and retries within a bounded budget.
type Store interface {
	CreateMemory(ctx context.Context, m *model.Memory) error
	GetMemory(ctx context.Context, id string) (*model.Memory, error)
	UpdateMemory(ctx context.Context, m *model.Memory) error
	DeleteMemory(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, owner string) ([]model.Memory, error)
	ListOwners(ctx context.Context) ([]string, error)
	DeleteOwner(ctx context.Context, owner string) (int, error)
	AppendScore(ctx context.Context, memoryID string, composite float64, at time.Time) error
	OwnerScoreSummary(ctx context.Context, owner string) (entries int, avg float64, err error)
	AddEvent(ctx context.Context, ev model.Event) error
}

// Analyzer supplies content signals for scoring and trigger detection.
// Implementations may be remote; any error puts scoring into degraded mode
// rather than failing the operation.
type Analyzer interface {
	EmotionalWeight(text string) (float64, error)
	DetectCorrection(text string) (bool, error)
	DetectImportance(text string) (bool, error)
	ContentWeights(text string) (model.ContentWeights, error)
}

// ConsistencyChecker rates how well a memory agrees with the owner's other
// memories, in [0,2]. Errors degrade scoring, never fail it.
type ConsistencyChecker interface {
	Check(ctx context.Context, m *model.Memory) (float64, error)
}

// Searcher retrieves an owner's memories relevant to a query.
type Searcher interface {
	Search(ctx context.Context, owner, query string, limit int) ([]model.Memory, error)
}

// Engine drives the memory lifecycle against a Store.
type Engine struct {
	store       Store
	analyzer    Analyzer
	consistency ConsistencyChecker
	searcher    Searcher
	cfg         config.LifecycleConfig
	log         *slog.Logger
	locks       *keyedLocks

	// nowFn is swapped in tests to simulate the passage of days.
	nowFn func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates an engine with the built-in lexical analyzer, bigram
// consistency checker, and keyword searcher.
func New(st Store, cfg config.LifecycleConfig, log *slog.Logger) *Engine {
	return &Engine{
		store:       st,
		analyzer:    analyzer.New(),
		consistency: NewBigramConsistency(st),
		searcher:    NewKeywordSearcher(st),
		cfg:         cfg,
		log:         log,
		locks:       newKeyedLocks(),
		nowFn:       time.Now,
	}
}

// SetAnalyzer replaces the content analyzer.
func (e *Engine) SetAnalyzer(a Analyzer) { e.analyzer = a }

// SetConsistency replaces the consistency checker.
func (e *Engine) SetConsistency(c ConsistencyChecker) { e.consistency = c }

// SetSearcher replaces the searcher.
func (e *Engine) SetSearcher(s Searcher) { e.searcher = s }

func (e *Engine) now() time.Time { return e.nowFn().UTC() }

// Ingest stores new content as a WORKING-tier memory. Correction and
// explicit-importance fast tracks are evaluated inline; a detected
// correction also contradicts the closest existing memory so the
// superseded fact stops climbing.
func (e *Engine) Ingest(ctx context.Context, owner, content, sessionID string) (*model.Memory, error) {
	now := e.now()
	m := &model.Memory{
		ID:             model.NewMemoryID(),
		Owner:          owner,
		Content:        content,
		Tier:           model.TierWorking,
		CreatedAt:      now,
		TierChangedAt:  now,
		LastAccessedAt: now,
		LastDecayedAt:  now,
	}
	m.Importance = e.initialImportance(content)

	corrected, err := e.analyzer.DetectCorrection(content)
	if err != nil {
		e.log.Warn("correction detection unavailable", "error", err)
	}
	if corrected {
		m.CorrectionCount = 1
	}

	if fired, reason := e.checkImmediateTriggers(m, triggerEvent{SessionID: sessionID, Text: content}); fired {
		e.promote(m, now, reason)
	}

	if err := e.store.CreateMemory(ctx, m); err != nil {
		return nil, err
	}

	if corrected {
		e.supersedeSimilar(ctx, m, sessionID)
	}

	e.log.Info("memory ingested",
		"memory_id", m.ID, "owner", owner, "tier", m.Tier, "importance", m.Importance)
	return m, nil
}

// supersedeSimilar marks the existing memory closest to m as contradicted.
// Best effort: a miss or store error only logs.
func (e *Engine) supersedeSimilar(ctx context.Context, m *model.Memory, sessionID string) {
	hits, err := e.searcher.Search(ctx, m.Owner, m.Content, 3)
	if err != nil {
		e.log.Warn("supersede search failed", "memory_id", m.ID, "error", err)
		return
	}
	for _, h := range hits {
		if h.ID == m.ID {
			continue
		}
		if _, err := e.Contradict(ctx, h.ID, sessionID); err != nil {
			e.log.Warn("supersede contradiction failed", "memory_id", h.ID, "error", err)
		}
		return
	}
}

// Retrieve searches an owner's memories and records a read access on every
// hit. Results are best effort: if tracking a hit fails, the stale copy is
// returned and the failure logged.
func (e *Engine) Retrieve(ctx context.Context, owner, query, sessionID string, limit int) ([]model.Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	hits, err := e.searcher.Search(ctx, owner, query, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "search memories", goerr.V("owner", owner))
	}

	out := make([]model.Memory, 0, len(hits))
	for _, h := range hits {
		updated, err := e.RecordAccess(ctx, h.ID, sessionID, model.EventRead)
		if err != nil {
			e.log.Warn("access tracking failed, returning stale copy",
				"memory_id", h.ID, "error", err)
			out = append(out, h)
			continue
		}
		out = append(out, *updated)
	}
	return out, nil
}

// Reinforce records an explicit confirmation of a memory. It counts as an
// access, bumps the reinforcement counter, and nudges importance up.
func (e *Engine) Reinforce(ctx context.Context, id, sessionID string) (*model.Memory, error) {
	return e.RecordAccess(ctx, id, sessionID, model.EventReinforcement)
}

// Contradict marks a memory as contradicted, starting its promotion
// cooldown. Importance is left alone; the scoring penalty and the cooldown
// do the demoting.
func (e *Engine) Contradict(ctx context.Context, id, sessionID string) (*model.Memory, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	now := e.now()
	for attempt := 0; attempt < e.cfg.StoreRetries; attempt++ {
		m, err := e.store.GetMemory(ctx, id)
		if err != nil {
			return nil, err
		}

		m.ContradictionCount++
		at := now
		m.LastContradicted = &at

		if err := e.store.UpdateMemory(ctx, m); err != nil {
			if errors.Is(err, model.ErrConflict) {
				continue
			}
			return nil, err
		}

		if err := e.store.AddEvent(ctx, model.Event{
			MemoryID:  m.ID,
			Owner:     m.Owner,
			SessionID: sessionID,
			Kind:      model.EventContradiction,
			CreatedAt: now,
		}); err != nil {
			e.log.Warn("event append failed", "memory_id", m.ID, "error", err)
		}

		e.log.Info("contradiction recorded",
			"memory_id", m.ID, "count", m.ContradictionCount,
			"cooldown_hours", e.cfg.ContradictionCooldownHours)
		return m, nil
	}
	return nil, goerr.Wrap(model.ErrRetryExhausted, "contradict memory", goerr.V("id", id))
}

// ClearOwner deletes all of an owner's memories. History and events cascade.
func (e *Engine) ClearOwner(ctx context.Context, owner string) (int, error) {
	n, err := e.store.DeleteOwner(ctx, owner)
	if err != nil {
		return 0, err
	}
	e.log.Info("owner cleared", "owner", owner, "removed", n)
	return n, nil
}

// Stats assembles the per-owner statistics snapshot.
func (e *Engine) Stats(ctx context.Context, owner string) (*model.Stats, error) {
	memories, err := e.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	now := e.now()
	stats := &model.Stats{
		Owner:       owner,
		Total:       len(memories),
		TotalByTier: make(map[model.Tier]int, 4),
	}
	for _, t := range model.Tiers() {
		stats.TotalByTier[t] = 0
	}

	var importanceSum float64
	for i := range memories {
		m := &memories[i]
		stats.TotalByTier[m.Tier]++
		importanceSum += m.Importance
		stats.Access.TotalAccesses += m.AccessCount
		if m.AccessCount > stats.Access.MostAccessed {
			stats.Access.MostAccessed = m.AccessCount
		}
		if now.Sub(m.LastAccessedAt) > 7*24*time.Hour {
			stats.Access.Stale++
		}
		if m.Tier.Rank() > model.TierWorking.Rank() {
			stats.Promotion.AboveWorking++
		}
	}
	if len(memories) > 0 {
		stats.AverageImportance = importanceSum / float64(len(memories))
	}

	entries, avg, err := e.store.OwnerScoreSummary(ctx, owner)
	if err != nil {
		return nil, err
	}
	stats.Promotion.HistoryEntries = entries
	stats.Promotion.AvgComposite = avg
	return stats, nil
}

// initialImportance classifies new content into a starting importance.
// Analyzer failures just leave the base value; ingest never fails on them.
func (e *Engine) initialImportance(content string) float64 {
	score := 2.0

	if w, err := e.analyzer.ContentWeights(content); err == nil {
		score += (w.Identity + w.Preference + w.Belief + w.Factual) * 0.5
		score += math.Min(w.Pronoun, 1.5)
	}
	if ew, err := e.analyzer.EmotionalWeight(content); err == nil {
		score += ew
	}
	if len(content) > 50 {
		score += 0.5
	}
	if len(content) > 100 {
		score += 0.5
	}

	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}
