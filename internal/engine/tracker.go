package engine

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"

	"github.com/lazypower/retain/internal/model"
)

// RecordAccess applies one read or reinforcement to a memory: counters,
// session set, timestamp window, and any immediate promotion trigger the
// event sets off. The memory's lock serializes concurrent accessors in
// this process; the version token covers writers elsewhere, with a bounded
// re-read-and-retry on conflict.
func (e *Engine) RecordAccess(ctx context.Context, id, sessionID string, kind model.EventKind) (*model.Memory, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	now := e.now()
	for attempt := 0; attempt < e.cfg.StoreRetries; attempt++ {
		m, err := e.store.GetMemory(ctx, id)
		if err != nil {
			return nil, err
		}

		m.AccessCount++
		newSession := false
		if sessionID != "" && !m.HasSession(sessionID) {
			m.AccessSessions = append(m.AccessSessions, sessionID)
			newSession = true
		}
		m.AccessTimes = append(m.AccessTimes, now.UnixMilli())
		if over := len(m.AccessTimes) - e.cfg.AccessWindow; over > 0 {
			m.AccessTimes = m.AccessTimes[over:]
		}
		m.LastAccessedAt = now

		if kind == model.EventReinforcement {
			m.ReinforcementCount++
			m.Importance += 0.5
			m.ClampImportance()
		}

		ev := triggerEvent{SessionID: sessionID, NewSession: newSession}
		if fired, reason := e.checkImmediateTriggers(m, ev); fired && !e.cooldownActive(m, now) {
			e.promote(m, now, reason)
		}

		if err := e.store.UpdateMemory(ctx, m); err != nil {
			if errors.Is(err, model.ErrConflict) {
				e.log.Debug("access write conflict, retrying",
					"memory_id", id, "attempt", attempt+1)
				continue
			}
			return nil, err
		}

		if err := e.store.AddEvent(ctx, model.Event{
			MemoryID:  m.ID,
			Owner:     m.Owner,
			SessionID: sessionID,
			Kind:      kind,
			CreatedAt: now,
		}); err != nil {
			e.log.Warn("event append failed", "memory_id", m.ID, "error", err)
		}
		return m, nil
	}
	return nil, goerr.Wrap(model.ErrRetryExhausted, "record access",
		goerr.V("id", id), goerr.V("retries", e.cfg.StoreRetries))
}
