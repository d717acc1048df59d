package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/retain/internal/model"
)

func TestRecordAccessCounters(t *testing.T) {
	e, db, clock := testEngine(t)
	ctx := context.Background()

	m := seedMemory(t, db, clock, &model.Memory{Owner: "alice", Content: "fact", Importance: 3})

	clock.Advance(time.Hour)
	got, err := e.RecordAccess(ctx, m.ID, "s1", model.EventRead)
	require.NoError(t, err)

	assert.Equal(t, 1, got.AccessCount)
	assert.Equal(t, []string{"s1"}, got.AccessSessions)
	assert.Len(t, got.AccessTimes, 1)
	assert.Equal(t, clock.Now(), got.LastAccessedAt)
	assert.Equal(t, 2, got.Version)

	// Same session again: counted, not re-added to the session set.
	got, err = e.RecordAccess(ctx, m.ID, "s1", model.EventRead)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AccessCount)
	assert.Equal(t, []string{"s1"}, got.AccessSessions)
}

func TestRecordAccessPrunesTimestampWindow(t *testing.T) {
	e, db, clock := testEngine(t)
	e.cfg.AccessWindow = 4
	ctx := context.Background()

	m := seedMemory(t, db, clock, &model.Memory{Owner: "alice", Content: "fact"})

	var first int64
	for i := 0; i < 6; i++ {
		clock.Advance(time.Minute)
		if i == 0 {
			first = clock.Now().UnixMilli()
		}
		_, err := e.RecordAccess(ctx, m.ID, "s1", model.EventRead)
		require.NoError(t, err)
	}

	got, err := db.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.AccessCount)
	assert.Len(t, got.AccessTimes, 4)
	assert.NotContains(t, got.AccessTimes, first, "oldest timestamps pruned first")
}

func TestRecordAccessUnknownMemory(t *testing.T) {
	e, _, _ := testEngine(t)

	_, err := e.RecordAccess(context.Background(), "missing", "s1", model.EventRead)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCrossSessionTriggerFiresOnNewSessionsOnly(t *testing.T) {
	e, db, clock := testEngine(t)
	ctx := context.Background()

	m := seedMemory(t, db, clock, &model.Memory{Owner: "alice", Content: "fact", Importance: 3})

	for _, session := range []string{"s1", "s2"} {
		_, err := e.RecordAccess(ctx, m.ID, session, model.EventRead)
		require.NoError(t, err)
	}
	got, err := db.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierWorking, got.Tier)

	// Third distinct session promotes.
	got, err = e.RecordAccess(ctx, m.ID, "s3", model.EventRead)
	require.NoError(t, err)
	assert.Equal(t, model.TierShortTerm, got.Tier)

	// A repeat session brings no new cross-session evidence.
	got, err = e.RecordAccess(ctx, m.ID, "s3", model.EventRead)
	require.NoError(t, err)
	assert.Equal(t, model.TierShortTerm, got.Tier)
}

func TestCrossSessionTriggerBlockedByCooldown(t *testing.T) {
	e, db, clock := testEngine(t)
	ctx := context.Background()

	m := seedMemory(t, db, clock, &model.Memory{Owner: "alice", Content: "fact", Importance: 3})
	_, err := e.Contradict(ctx, m.ID, "s0")
	require.NoError(t, err)

	for _, session := range []string{"s1", "s2", "s3"} {
		_, err := e.RecordAccess(ctx, m.ID, session, model.EventRead)
		require.NoError(t, err)
	}

	got, err := db.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierWorking, got.Tier, "promotion blocked inside cooldown")
}

func TestEmotionalTriggerFiresAtRepeatThreshold(t *testing.T) {
	e, db, clock := testEngine(t)
	ctx := context.Background()

	// Three distinct emotional words clear the default weight threshold.
	m := seedMemory(t, db, clock, &model.Memory{
		Owner:   "alice",
		Content: "I love this team, so happy and excited to be here",
	})

	for i := 0; i < 4; i++ {
		got, err := e.RecordAccess(ctx, m.ID, "s1", model.EventRead)
		require.NoError(t, err)
		assert.Equal(t, model.TierWorking, got.Tier)
	}

	// Fifth access crosses the repeat minimum.
	got, err := e.RecordAccess(ctx, m.ID, "s1", model.EventRead)
	require.NoError(t, err)
	assert.Equal(t, model.TierShortTerm, got.Tier)
}

func TestRecordAccessConcurrentSameMemory(t *testing.T) {
	e, db, clock := testEngine(t)
	ctx := context.Background()

	m := seedMemory(t, db, clock, &model.Memory{Owner: "alice", Content: "hot fact"})

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := e.RecordAccess(ctx, m.ID, "s1", model.EventRead)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := db.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.AccessCount, "per-memory serialization loses no increments")
}
