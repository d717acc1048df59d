// Package model defines the core memory data types.
package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Tier is the durability class of a memory. Tiers are ordered: promotion
// moves a memory one step up, and CORE is terminal.
type Tier string

const (
	TierWorking   Tier = "working"
	TierShortTerm Tier = "short_term"
	TierLongTerm  Tier = "long_term"
	TierCore      Tier = "core"
)

var tierOrder = []Tier{TierWorking, TierShortTerm, TierLongTerm, TierCore}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	for _, v := range tierOrder {
		if t == v {
			return true
		}
	}
	return false
}

// Rank returns the position of t in the promotion order (working = 0).
func (t Tier) Rank() int {
	for i, v := range tierOrder {
		if t == v {
			return i
		}
	}
	return -1
}

// Next returns the tier above t. ok is false when t is CORE (or unknown).
func (t Tier) Next() (next Tier, ok bool) {
	r := t.Rank()
	if r < 0 || r >= len(tierOrder)-1 {
		return t, false
	}
	return tierOrder[r+1], true
}

// Tiers returns all tiers in promotion order.
func Tiers() []Tier {
	out := make([]Tier, len(tierOrder))
	copy(out, tierOrder)
	return out
}

// ScoreBreakdown is the last computed promotion score for a memory.
// Each component is in [0,10]; Composite is the weighted sum, also in [0,10].
type ScoreBreakdown struct {
	AccessPattern      float64 `json:"access_pattern"`
	ContentStability   float64 `json:"content_stability"`
	UserEngagement     float64 `json:"user_engagement"`
	SemanticImportance float64 `json:"semantic_importance"`
	Composite          float64 `json:"composite"`
	Degraded           bool    `json:"degraded,omitempty"`
}

// Memory is a single retained piece of conversational knowledge.
type Memory struct {
	ID      string `json:"id"`
	Owner   string `json:"owner"`
	Content string `json:"content"`
	Tier    Tier   `json:"tier"`

	// Importance is clamped to [0,10] after every mutation.
	Importance float64 `json:"importance"`

	AccessCount        int `json:"access_count"`
	ReinforcementCount int `json:"reinforcement_count"`
	ContradictionCount int `json:"contradiction_count"`
	CorrectionCount    int `json:"correction_count"`

	// AccessSessions is the set of distinct session ids that touched this
	// memory. AccessTimes is a bounded window of access instants (unix ms),
	// oldest pruned first.
	AccessSessions []string `json:"access_sessions,omitempty"`
	AccessTimes    []int64  `json:"access_times,omitempty"`

	CreatedAt        time.Time  `json:"created_at"`
	TierChangedAt    time.Time  `json:"tier_changed_at"`
	LastAccessedAt   time.Time  `json:"last_accessed_at"`
	LastContradicted *time.Time `json:"last_contradicted,omitempty"`
	LastDecayedAt    time.Time  `json:"last_decayed_at"`

	Score ScoreBreakdown `json:"score"`

	// Version is the optimistic-concurrency token maintained by the store.
	Version int `json:"version"`
}

// NewMemoryID generates a new lexically sortable memory id.
func NewMemoryID() string {
	return ulid.Make().String()
}

// AgeHours returns the memory's age at the given instant.
func (m *Memory) AgeHours(now time.Time) float64 {
	return now.Sub(m.CreatedAt).Hours()
}

// TierAgeHours returns the time spent in the current tier at the given instant.
func (m *Memory) TierAgeHours(now time.Time) float64 {
	return now.Sub(m.TierChangedAt).Hours()
}

// HasSession reports whether sessionID is already in the access-session set.
func (m *Memory) HasSession(sessionID string) bool {
	for _, s := range m.AccessSessions {
		if s == sessionID {
			return true
		}
	}
	return false
}

// ClampImportance bounds Importance to [0,10].
func (m *Memory) ClampImportance() {
	if m.Importance < 0 {
		m.Importance = 0
	}
	if m.Importance > 10 {
		m.Importance = 10
	}
}

// CheckInvariants verifies the counters and tier are internally consistent.
// A non-nil result means the record needs manual review and must not be
// transitioned further.
func (m *Memory) CheckInvariants() error {
	if !m.Tier.Valid() {
		return ErrInvariant
	}
	if m.AccessCount < 0 || m.ReinforcementCount < 0 || m.ContradictionCount < 0 || m.CorrectionCount < 0 {
		return ErrInvariant
	}
	if m.Importance < 0 || m.Importance > 10 {
		return ErrInvariant
	}
	return nil
}

// EventKind classifies an access-tracker event.
type EventKind string

const (
	EventRead          EventKind = "read"
	EventReinforcement EventKind = "reinforcement"
	EventContradiction EventKind = "contradiction"
)

// Event is one recorded access/reinforcement/contradiction, attributing a
// memory mutation to exactly one trigger.
type Event struct {
	ID        int64     `json:"id"`
	MemoryID  string    `json:"memory_id"`
	Owner     string    `json:"owner"`
	SessionID string    `json:"session_id"`
	Kind      EventKind `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// ScorePoint is one append-only promotion-score history entry.
type ScorePoint struct {
	MemoryID   string    `json:"memory_id"`
	Composite  float64   `json:"composite"`
	RecordedAt time.Time `json:"recorded_at"`
}
