package engine

import (
	"context"
	"math"
	"time"

	"github.com/lazypower/retain/internal/model"
)

// scoreMemory computes the four-component promotion score. Components live
// in [0,10]; the composite is their weighted sum. Any capability failure
// zeroes the affected component and flags the breakdown Degraded, so the
// caller falls back to the counter-based promotion rule instead of the
// composite threshold. Scoring itself never returns an error.
func (e *Engine) scoreMemory(ctx context.Context, m *model.Memory) model.ScoreBreakdown {
	now := e.now()
	b := model.ScoreBreakdown{
		AccessPattern: e.accessPatternScore(m, now),
	}

	stability, degraded := e.contentStabilityScore(ctx, m, now)
	b.ContentStability = stability
	b.Degraded = b.Degraded || degraded

	engagement, degraded := e.userEngagementScore(m)
	b.UserEngagement = engagement
	b.Degraded = b.Degraded || degraded

	semantic, degraded := e.semanticImportanceScore(m)
	b.SemanticImportance = semantic
	b.Degraded = b.Degraded || degraded

	w := e.cfg.Weights
	b.Composite = clamp10(b.AccessPattern*w.AccessPattern +
		b.ContentStability*w.ContentStability +
		b.UserEngagement*w.UserEngagement +
		b.SemanticImportance*w.SemanticImportance)

	if b.Degraded {
		e.log.Warn("scoring degraded, composite unreliable",
			"memory_id", m.ID, "composite", b.Composite)
	}
	return b
}

// accessPatternScore rewards frequency, spread over time buckets, and
// spread over distinct sessions. Pure arithmetic; never degrades.
func (e *Engine) accessPatternScore(m *model.Memory, now time.Time) float64 {
	score := math.Min(float64(m.AccessCount)*1.5, 6.0)

	bucketMs := int64(e.cfg.BucketHours * float64(time.Hour/time.Millisecond))
	if bucketMs > 0 {
		buckets := make(map[int64]struct{}, len(m.AccessTimes))
		for _, ts := range m.AccessTimes {
			buckets[ts/bucketMs] = struct{}{}
		}
		score += math.Min(float64(len(buckets))*0.5, 2.0)
	}

	score += math.Min(float64(len(m.AccessSessions))*0.5, 2.0)
	return clamp10(score)
}

// contentStabilityScore rewards survival and reinforcement, penalizes
// contradictions, and adds the consistency checker's [0,2] agreement
// rating. A checker failure degrades the component to its counter-only
// portion.
func (e *Engine) contentStabilityScore(ctx context.Context, m *model.Memory, now time.Time) (float64, bool) {
	score := math.Min(m.AgeHours(now)/24.0, 3.0)
	score += float64(m.ReinforcementCount) * 1.0
	score -= float64(m.ContradictionCount) * 2.0

	degraded := false
	consistency, err := e.consistency.Check(ctx, m)
	if err != nil {
		e.log.Warn("consistency check unavailable", "memory_id", m.ID, "error", err)
		degraded = true
	} else {
		score += consistency
	}

	if score < 0 {
		score = 0
	}
	return clamp10(score), degraded
}

// userEngagementScore rewards explicit reinforcement, user-initiated
// mentions (plain reads), corrections, and emotional loading. An analyzer
// failure degrades the component.
func (e *Engine) userEngagementScore(m *model.Memory) (float64, bool) {
	mentions := m.AccessCount - m.ReinforcementCount
	if mentions < 0 {
		mentions = 0
	}
	score := float64(m.ReinforcementCount)*2.0 +
		float64(mentions)*1.5 +
		float64(m.CorrectionCount)*3.0

	degraded := false
	emotional, err := e.analyzer.EmotionalWeight(m.Content)
	if err != nil {
		e.log.Warn("emotional analysis unavailable", "memory_id", m.ID, "error", err)
		degraded = true
	} else {
		score += emotional
	}
	return clamp10(score), degraded
}

// semanticImportanceScore sums the lexical marker weights. An analyzer
// failure degrades the component.
func (e *Engine) semanticImportanceScore(m *model.Memory) (float64, bool) {
	w, err := e.analyzer.ContentWeights(m.Content)
	if err != nil {
		e.log.Warn("content analysis unavailable", "memory_id", m.ID, "error", err)
		return 0, true
	}
	return clamp10(w.Sum()), false
}

func clamp10(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
