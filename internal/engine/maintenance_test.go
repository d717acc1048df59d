package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/retain/internal/model"
	"github.com/lazypower/retain/internal/store"
)

// seedPromotable writes a memory whose composite clears the threshold once
// a consistency value of 2.0 is injected.
func seedPromotable(t *testing.T, db *store.DB, clock *testClock, owner string) *model.Memory {
	t.Helper()
	now := clock.Now()

	m := &model.Memory{
		ID:                 model.NewMemoryID(),
		Owner:              owner,
		Content:            "I love Python",
		Tier:               model.TierWorking,
		Importance:         5.0,
		AccessCount:        5,
		ReinforcementCount: 2,
		AccessSessions:     []string{"s1", "s2", "s3"},
		AccessTimes: []int64{
			now.Add(-71 * time.Hour).UnixMilli(),
			now.Add(-48 * time.Hour).UnixMilli(),
			now.Add(-24 * time.Hour).UnixMilli(),
			now.Add(-23 * time.Hour).UnixMilli(),
			now.Add(-2 * time.Hour).UnixMilli(),
		},
		CreatedAt:      now.Add(-72 * time.Hour),
		TierChangedAt:  now.Add(-72 * time.Hour),
		LastAccessedAt: now.Add(-2 * time.Hour),
		LastDecayedAt:  now.Add(-2 * time.Hour),
	}
	require.NoError(t, db.CreateMemory(context.Background(), m))
	return m
}

func TestMaintenancePromotesDecaysExpires(t *testing.T) {
	e, db, clock := testEngine(t)
	e.SetConsistency(fixedConsistency{v: 2.0})
	ctx := context.Background()
	now := clock.Now()

	promotable := seedPromotable(t, db, clock, "alice")

	decaying := seedMemory(t, db, clock, &model.Memory{
		Owner: "alice", Content: "idle note", Importance: 5.0,
		CreatedAt:      now.Add(-80 * time.Hour),
		LastAccessedAt: now.Add(-50 * time.Hour),
	})

	expiring := seedMemory(t, db, clock, &model.Memory{
		Owner: "alice", Content: "transient scratch detail", Importance: 0.4,
		CreatedAt:      now.Add(-90 * 24 * time.Hour),
		LastAccessedAt: now.Add(-2 * time.Hour),
	})

	report, err := e.RunMaintenance(ctx, "alice", false)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 1, report.Promoted)
	assert.Equal(t, 1, report.Decayed)
	assert.Equal(t, 1, report.Expired)
	assert.Zero(t, report.Skipped)
	assert.NotEmpty(t, report.RunID)

	got, err := db.GetMemory(ctx, promotable.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierShortTerm, got.Tier)
	assert.WithinDuration(t, clock.Now(), got.TierChangedAt, time.Millisecond)

	got, err = db.GetMemory(ctx, decaying.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5.0-2*0.8, got.Importance, 0.001)

	_, err = db.GetMemory(ctx, expiring.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMaintenanceSecondRunIsNoOp(t *testing.T) {
	e, db, clock := testEngine(t)
	e.SetConsistency(fixedConsistency{v: 2.0})
	ctx := context.Background()
	now := clock.Now()

	seedPromotable(t, db, clock, "alice")
	seedMemory(t, db, clock, &model.Memory{
		Owner: "alice", Content: "idle note", Importance: 5.0,
		CreatedAt:      now.Add(-80 * time.Hour),
		LastAccessedAt: now.Add(-50 * time.Hour),
	})
	seedMemory(t, db, clock, &model.Memory{
		Owner: "alice", Content: "transient scratch detail", Importance: 0.4,
		CreatedAt:      now.Add(-90 * 24 * time.Hour),
		LastAccessedAt: now.Add(-2 * time.Hour),
	})

	first, err := e.RunMaintenance(ctx, model.ScopeAll, false)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Transitions())

	second, err := e.RunMaintenance(ctx, model.ScopeAll, false)
	require.NoError(t, err)
	assert.Zero(t, second.Transitions(), "immediate re-run makes no further changes")
	assert.Equal(t, first.Processed-first.Expired, second.Processed)
}

func TestMaintenanceDryRunWritesNothing(t *testing.T) {
	e, db, clock := testEngine(t)
	e.SetConsistency(fixedConsistency{v: 2.0})
	ctx := context.Background()
	now := clock.Now()

	promotable := seedPromotable(t, db, clock, "alice")
	expiring := seedMemory(t, db, clock, &model.Memory{
		Owner: "alice", Content: "transient scratch detail", Importance: 0.4,
		CreatedAt:      now.Add(-90 * 24 * time.Hour),
		LastAccessedAt: now.Add(-2 * time.Hour),
	})

	report, err := e.RunMaintenance(ctx, "alice", true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Promoted)
	assert.Equal(t, 1, report.Expired)

	// Nothing actually moved, nothing was deleted, no history appended.
	got, err := db.GetMemory(ctx, promotable.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierWorking, got.Tier)
	assert.Equal(t, 1, got.Version)

	_, err = db.GetMemory(ctx, expiring.ID)
	require.NoError(t, err)

	points, err := db.ScoreHistory(ctx, promotable.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestMaintenanceDegradedFallsBackToCounterRule(t *testing.T) {
	e, db, clock := testEngine(t)
	e.SetAnalyzer(failingAnalyzer{})
	e.SetConsistency(failingConsistency{})
	ctx := context.Background()
	now := clock.Now()

	eligible := seedMemory(t, db, clock, &model.Memory{
		Owner: "alice", Content: "well known fact", Importance: 6.0,
		AccessCount: 8, ReinforcementCount: 3,
		CreatedAt:      now.Add(-48 * time.Hour),
		TierChangedAt:  now.Add(-48 * time.Hour),
		LastAccessedAt: now.Add(-1 * time.Hour),
	})
	ineligible := seedMemory(t, db, clock, &model.Memory{
		Owner: "alice", Content: "barely touched", Importance: 6.0,
		AccessCount:    2,
		CreatedAt:      now.Add(-48 * time.Hour),
		TierChangedAt:  now.Add(-48 * time.Hour),
		LastAccessedAt: now.Add(-1 * time.Hour),
	})

	report, err := e.RunMaintenance(ctx, "alice", false)
	require.NoError(t, err, "capability outages must not fail the sweep")

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.Degraded)
	assert.Equal(t, 1, report.Promoted)
	assert.Zero(t, report.Skipped)

	got, err := db.GetMemory(ctx, eligible.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierShortTerm, got.Tier)
	assert.True(t, got.Score.Degraded)

	got, err = db.GetMemory(ctx, ineligible.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierWorking, got.Tier)
}

func TestMaintenanceCooldownBlocksPromotion(t *testing.T) {
	e, db, clock := testEngine(t)
	e.SetConsistency(fixedConsistency{v: 2.0})
	ctx := context.Background()

	m := seedPromotable(t, db, clock, "alice")
	_, err := e.Contradict(ctx, m.ID, "s9")
	require.NoError(t, err)

	report, err := e.RunMaintenance(ctx, "alice", false)
	require.NoError(t, err)
	assert.Zero(t, report.Promoted)

	got, err := db.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierWorking, got.Tier)

	// History still accumulates during the cooldown.
	points, err := db.ScoreHistory(ctx, m.ID, 10)
	require.NoError(t, err)
	assert.Len(t, points, 1)

	// Once the cooldown lapses the same evidence promotes.
	clock.Advance(25 * time.Hour)
	report, err = e.RunMaintenance(ctx, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Promoted)
}

func TestMaintenanceSkipsInvariantViolations(t *testing.T) {
	e, db, clock := testEngine(t)
	ctx := context.Background()

	broken := seedMemory(t, db, clock, &model.Memory{
		Owner: "alice", Content: "corrupt", Importance: 3.0,
		AccessCount: -5,
	})

	report, err := e.RunMaintenance(ctx, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Transitions())

	// Left untouched pending manual review.
	got, err := db.GetMemory(ctx, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, -5, got.AccessCount)
	assert.Equal(t, 1, got.Version)
}

func TestMaintenanceScopeSingleOwner(t *testing.T) {
	e, db, clock := testEngine(t)
	ctx := context.Background()

	seedMemory(t, db, clock, &model.Memory{Owner: "alice", Content: "a", Importance: 3})
	seedMemory(t, db, clock, &model.Memory{Owner: "bob", Content: "b", Importance: 3})

	report, err := e.RunMaintenance(ctx, "alice", false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	require.Len(t, report.Owners, 1)
	assert.Equal(t, "alice", report.Owners[0].Owner)
}

func TestMaintenanceAllOwners(t *testing.T) {
	e, db, clock := testEngine(t)
	ctx := context.Background()

	seedMemory(t, db, clock, &model.Memory{Owner: "alice", Content: "a", Importance: 3})
	seedMemory(t, db, clock, &model.Memory{Owner: "bob", Content: "b", Importance: 3})
	seedMemory(t, db, clock, &model.Memory{Owner: "bob", Content: "c", Importance: 3})

	report, err := e.RunMaintenance(ctx, model.ScopeAll, false)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Processed)
	assert.Len(t, report.Owners, 2)
}

func TestMaintenanceCanceledContext(t *testing.T) {
	e, db, clock := testEngine(t)

	seedMemory(t, db, clock, &model.Memory{Owner: "alice", Content: "a", Importance: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := e.RunMaintenance(ctx, model.ScopeAll, false)
	if err != nil {
		// Enumerating owners may already observe the cancellation.
		return
	}
	assert.Zero(t, report.Transitions())
}

func TestMaintenanceTimerStartStop(t *testing.T) {
	e, _, _ := testEngine(t)

	e.StartMaintenance(time.Hour)
	e.Stop()

	// Stop is idempotent and a second timer can start cleanly.
	e.Stop()
	e.StartMaintenance(time.Hour)
	e.Stop()
}
