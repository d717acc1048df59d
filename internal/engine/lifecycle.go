package engine

import (
	"time"

	"github.com/lazypower/retain/internal/model"
)

// promote moves m one tier up, resetting its tier clock. Returns false when
// m is already CORE.
func (e *Engine) promote(m *model.Memory, now time.Time, reason string) bool {
	next, ok := m.Tier.Next()
	if !ok {
		return false
	}
	from := m.Tier
	m.Tier = next
	m.TierChangedAt = now
	e.log.Info("memory promoted",
		"memory_id", m.ID, "from", from, "to", next, "reason", reason)
	return true
}

// promotionEligible applies the composite-path gates: threshold, dwell time
// in the current tier, and access minimum. The cooldown gate is checked by
// the caller so it uniformly covers the fallback path too.
func (e *Engine) promotionEligible(m *model.Memory, b model.ScoreBreakdown, now time.Time) bool {
	if b.Degraded {
		return false
	}
	if b.Composite < e.cfg.PromotionThreshold {
		return false
	}
	if m.TierAgeHours(now) < e.cfg.MinimumAgeHours {
		return false
	}
	return m.AccessCount >= e.cfg.MinimumAccessCount
}

// fallbackEligible is the counter-only promotion rule used when scoring is
// degraded. Deliberately conservative: plain arithmetic on counters, no
// analyzer involvement, so it cannot itself fail.
func (e *Engine) fallbackEligible(m *model.Memory, now time.Time) bool {
	return m.AccessCount >= 7 &&
		m.Importance >= 5 &&
		m.ReinforcementCount >= 3 &&
		m.TierAgeHours(now) >= 24
}

// applyDecay subtracts the tier's decay rate for every whole idle day not
// yet accounted for. The decay clock advances by whole periods only, so an
// immediate re-run finds nothing left to apply. Returns whether importance
// changed.
func (e *Engine) applyDecay(m *model.Memory, now time.Time) bool {
	idle := now.Sub(m.LastAccessedAt)
	if idle.Hours() < e.cfg.DecayIdleHours {
		return false
	}

	ref := m.LastAccessedAt
	if m.LastDecayedAt.After(ref) {
		ref = m.LastDecayedAt
	}
	period := 24 * time.Hour
	periods := int64(now.Sub(ref) / period)
	if periods <= 0 {
		return false
	}

	rate := e.cfg.DecayRates.For(m.Tier)
	m.Importance -= rate * float64(periods)
	if m.Tier == model.TierCore && m.Importance < e.cfg.CoreFloor {
		m.Importance = e.cfg.CoreFloor
	}
	if m.Importance < 0 {
		m.Importance = 0
	}
	m.LastDecayedAt = ref.Add(time.Duration(periods) * period)
	return true
}

// shouldExpire reports whether the memory has aged out of its tier with
// importance below the tier's floor. CORE memories never expire.
func (e *Engine) shouldExpire(m *model.Memory, now time.Time) bool {
	if m.Tier == model.TierCore {
		return false
	}
	maxAge := e.cfg.ExpiryMaxAgeHours.For(m.Tier)
	if maxAge <= 0 {
		return false
	}
	if m.AgeHours(now) <= maxAge {
		return false
	}
	return m.Importance < e.cfg.ExpiryImportanceFloor.For(m.Tier)
}
