package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lazypower/retain/internal/model"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testMemory(owner, content string) *model.Memory {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.Memory{
		ID:             model.NewMemoryID(),
		Owner:          owner,
		Content:        content,
		Tier:           model.TierWorking,
		Importance:     2.5,
		CreatedAt:      now,
		TierChangedAt:  now,
		LastAccessedAt: now,
		LastDecayedAt:  now,
	}
}

func TestCreateAndGetMemory(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	m := testMemory("alice", "I love Python")
	m.AccessSessions = []string{"s1", "s2"}
	m.AccessTimes = []int64{100, 200}
	if err := db.CreateMemory(ctx, m); err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}
	if m.Version != 1 {
		t.Errorf("Version = %d, want 1", m.Version)
	}

	got, err := db.GetMemory(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if got.Owner != "alice" || got.Content != "I love Python" {
		t.Errorf("got %q/%q", got.Owner, got.Content)
	}
	if got.Tier != model.TierWorking {
		t.Errorf("Tier = %q, want working", got.Tier)
	}
	if got.Importance != 2.5 {
		t.Errorf("Importance = %v, want 2.5", got.Importance)
	}
	if len(got.AccessSessions) != 2 || got.AccessSessions[0] != "s1" {
		t.Errorf("AccessSessions = %v", got.AccessSessions)
	}
	if len(got.AccessTimes) != 2 || got.AccessTimes[1] != 200 {
		t.Errorf("AccessTimes = %v", got.AccessTimes)
	}
	if !got.CreatedAt.Equal(m.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, m.CreatedAt)
	}
	if got.LastContradicted != nil {
		t.Errorf("LastContradicted = %v, want nil", got.LastContradicted)
	}
}

func TestGetMemoryNotFound(t *testing.T) {
	db := testDB(t)

	_, err := db.GetMemory(context.Background(), "nope")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateMemoryBumpsVersion(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	m := testMemory("alice", "original")
	if err := db.CreateMemory(ctx, m); err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}

	m.AccessCount = 3
	m.Importance = 4.0
	at := time.Now().UTC().Truncate(time.Millisecond)
	m.LastContradicted = &at
	if err := db.UpdateMemory(ctx, m); err != nil {
		t.Fatalf("UpdateMemory: %v", err)
	}
	if m.Version != 2 {
		t.Errorf("Version = %d, want 2", m.Version)
	}

	got, err := db.GetMemory(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if got.AccessCount != 3 || got.Importance != 4.0 || got.Version != 2 {
		t.Errorf("got access=%d importance=%v version=%d", got.AccessCount, got.Importance, got.Version)
	}
	if got.LastContradicted == nil || !got.LastContradicted.Equal(at) {
		t.Errorf("LastContradicted = %v, want %v", got.LastContradicted, at)
	}
}

func TestUpdateMemoryConflict(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	m := testMemory("alice", "contended")
	if err := db.CreateMemory(ctx, m); err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}

	// Two readers pick up version 1; the second writer loses.
	a, _ := db.GetMemory(ctx, m.ID)
	b, _ := db.GetMemory(ctx, m.ID)

	a.AccessCount = 1
	if err := db.UpdateMemory(ctx, a); err != nil {
		t.Fatalf("first update: %v", err)
	}

	b.AccessCount = 99
	err := db.UpdateMemory(ctx, b)
	if !errors.Is(err, model.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}

	got, _ := db.GetMemory(ctx, m.ID)
	if got.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1 (losing write must not land)", got.AccessCount)
	}
}

func TestUpdateMemoryDeletedUnderneath(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	m := testMemory("alice", "going away")
	if err := db.CreateMemory(ctx, m); err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}
	if err := db.DeleteMemory(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMemory: %v", err)
	}

	err := db.UpdateMemory(ctx, m)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteMemoryCascades(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	m := testMemory("alice", "with history")
	if err := db.CreateMemory(ctx, m); err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}
	if err := db.AppendScore(ctx, m.ID, 5.5, time.Now()); err != nil {
		t.Fatalf("AppendScore: %v", err)
	}
	if err := db.AddEvent(ctx, model.Event{
		MemoryID: m.ID, Owner: "alice", SessionID: "s1", Kind: model.EventRead,
	}); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}

	if err := db.DeleteMemory(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMemory: %v", err)
	}

	points, err := db.ScoreHistory(ctx, m.ID, 10)
	if err != nil {
		t.Fatalf("ScoreHistory: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("history rows survived delete: %d", len(points))
	}

	events, err := db.EventsByMemory(ctx, m.ID)
	if err != nil {
		t.Fatalf("EventsByMemory: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("event rows survived delete: %d", len(events))
	}
}

func TestListByOwnerOrdering(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	low := testMemory("alice", "minor detail")
	low.Importance = 1.0
	high := testMemory("alice", "core fact")
	high.Importance = 9.0
	other := testMemory("bob", "unrelated")

	for _, m := range []*model.Memory{low, high, other} {
		if err := db.CreateMemory(ctx, m); err != nil {
			t.Fatalf("CreateMemory: %v", err)
		}
	}

	memories, err := db.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(memories) != 2 {
		t.Fatalf("len = %d, want 2", len(memories))
	}
	if memories[0].ID != high.ID {
		t.Errorf("first = %q, want highest importance first", memories[0].Content)
	}
}

func TestListOwnersAndDeleteOwner(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, owner := range []string{"alice", "alice", "bob"} {
		if err := db.CreateMemory(ctx, testMemory(owner, "x")); err != nil {
			t.Fatalf("CreateMemory: %v", err)
		}
	}

	owners, err := db.ListOwners(ctx)
	if err != nil {
		t.Fatalf("ListOwners: %v", err)
	}
	if len(owners) != 2 {
		t.Errorf("owners = %v, want 2 distinct", owners)
	}

	n, err := db.DeleteOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("DeleteOwner: %v", err)
	}
	if n != 2 {
		t.Errorf("removed = %d, want 2", n)
	}

	remaining, _ := db.ListByOwner(ctx, "alice")
	if len(remaining) != 0 {
		t.Errorf("alice still has %d memories", len(remaining))
	}
}

func TestScoreHistoryNewestFirst(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	m := testMemory("alice", "scored")
	if err := db.CreateMemory(ctx, m); err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}

	base := time.Now().UTC()
	for i, composite := range []float64{3.0, 5.0, 7.0} {
		if err := db.AppendScore(ctx, m.ID, composite, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("AppendScore: %v", err)
		}
	}

	points, err := db.ScoreHistory(ctx, m.ID, 2)
	if err != nil {
		t.Fatalf("ScoreHistory: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("len = %d, want 2", len(points))
	}
	if points[0].Composite != 7.0 || points[1].Composite != 5.0 {
		t.Errorf("points = %v, want newest first", points)
	}

	entries, avg, err := db.OwnerScoreSummary(ctx, "alice")
	if err != nil {
		t.Fatalf("OwnerScoreSummary: %v", err)
	}
	if entries != 3 {
		t.Errorf("entries = %d, want 3", entries)
	}
	if avg < 4.9 || avg > 5.1 {
		t.Errorf("avg = %v, want 5.0", avg)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("version = %d, want %d", v, len(migrations))
	}
}
