package model

import (
	"time"

	"github.com/google/uuid"
)

// ScopeAll sweeps every owner in the store.
const ScopeAll = "all"

// OwnerReport is the outcome of one owner's maintenance sweep.
type OwnerReport struct {
	Owner     string `json:"owner"`
	Processed int    `json:"processed"`
	Promoted  int    `json:"promoted"`
	Decayed   int    `json:"decayed"`
	Expired   int    `json:"expired"`
	Degraded  int    `json:"degraded"`
	Skipped   int    `json:"skipped"`
	Err       string `json:"error,omitempty"`
}

// MaintenanceReport aggregates a full maintenance run. Per-owner failures
// are recorded in Owners; they never abort the run.
type MaintenanceReport struct {
	RunID      string        `json:"run_id"`
	Scope      string        `json:"scope"`
	DryRun     bool          `json:"dry_run"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Processed  int           `json:"processed"`
	Promoted   int           `json:"promoted"`
	Decayed    int           `json:"decayed"`
	Expired    int           `json:"expired"`
	Degraded   int           `json:"degraded"`
	Skipped    int           `json:"skipped"`
	Owners     []OwnerReport `json:"owners"`
}

// NewMaintenanceReport starts a report for the given scope.
func NewMaintenanceReport(scope string, dryRun bool, startedAt time.Time) *MaintenanceReport {
	return &MaintenanceReport{
		RunID:     uuid.New().String(),
		Scope:     scope,
		DryRun:    dryRun,
		StartedAt: startedAt,
	}
}

// Add merges one owner's results into the run totals.
func (r *MaintenanceReport) Add(o OwnerReport) {
	r.Owners = append(r.Owners, o)
	r.Processed += o.Processed
	r.Promoted += o.Promoted
	r.Decayed += o.Decayed
	r.Expired += o.Expired
	r.Degraded += o.Degraded
	r.Skipped += o.Skipped
}

// Transitions returns the number of state changes the run produced.
func (r *MaintenanceReport) Transitions() int {
	return r.Promoted + r.Decayed + r.Expired
}

// AccessSummary describes access activity across one owner's memories.
type AccessSummary struct {
	TotalAccesses int `json:"total_accesses"`
	MostAccessed  int `json:"most_accessed"`
	Stale         int `json:"stale"`
}

// PromotionSummary describes how far an owner's memories have climbed.
type PromotionSummary struct {
	AboveWorking   int     `json:"above_working"`
	HistoryEntries int     `json:"history_entries"`
	AvgComposite   float64 `json:"avg_composite"`
}

// Stats is the per-owner statistics snapshot returned by getStats.
type Stats struct {
	Owner             string           `json:"owner"`
	Total             int              `json:"total"`
	TotalByTier       map[Tier]int     `json:"total_by_tier"`
	AverageImportance float64          `json:"average_importance"`
	Access            AccessSummary    `json:"access_summary"`
	Promotion         PromotionSummary `json:"promotion_summary"`
}
