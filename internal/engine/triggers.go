package engine

import (
	"time"

	"github.com/lazypower/retain/internal/model"
)

// Promotion reasons, logged and carried in trigger decisions.
const (
	reasonCorrection   = "user_correction"
	reasonImportance   = "importance_marked"
	reasonCrossSession = "cross_session"
	reasonEmotional    = "emotional_repeat"
	reasonComposite    = "composite_threshold"
	reasonFallback     = "fallback_rule"
)

// triggerEvent carries the context of the access being evaluated.
type triggerEvent struct {
	SessionID string
	// Text is the triggering utterance, when there is one (ingest).
	Text string
	// MarkedImportant is set when the caller explicitly flagged the
	// content as important.
	MarkedImportant bool
	// NewSession is set when this event added a session id the memory
	// had not seen before.
	NewSession bool
}

// checkImmediateTriggers evaluates the fast-track promotion conditions
// against a memory whose counters already reflect the current event.
// Detection failures disable the affected trigger for this event only.
//
// The cross-session trigger fires only on the event that brings a new
// distinct session at or past the threshold, and the emotional trigger
// only on the access that crosses the repeat minimum. Each piece of new
// evidence promotes at most once.
func (e *Engine) checkImmediateTriggers(m *model.Memory, ev triggerEvent) (bool, string) {
	if ev.Text != "" {
		if corrected, err := e.analyzer.DetectCorrection(ev.Text); err == nil && corrected {
			return true, reasonCorrection
		}
	}

	if ev.MarkedImportant {
		return true, reasonImportance
	}
	if ev.Text != "" {
		if marked, err := e.analyzer.DetectImportance(ev.Text); err == nil && marked {
			return true, reasonImportance
		}
	}

	if ev.NewSession && len(m.AccessSessions) >= e.cfg.CrossSessionThreshold {
		return true, reasonCrossSession
	}

	if m.AccessCount == e.cfg.EmotionalMinAccess {
		if emotional, err := e.analyzer.EmotionalWeight(m.Content); err == nil &&
			emotional >= e.cfg.EmotionalThreshold {
			return true, reasonEmotional
		}
	}

	return false, ""
}

// cooldownActive reports whether the memory is inside its post-contradiction
// promotion cooldown. Everything else about the memory keeps operating;
// only promotion is blocked.
func (e *Engine) cooldownActive(m *model.Memory, now time.Time) bool {
	if m.LastContradicted == nil {
		return false
	}
	cooldown := time.Duration(e.cfg.ContradictionCooldownHours * float64(time.Hour))
	return now.Sub(*m.LastContradicted) < cooldown
}
