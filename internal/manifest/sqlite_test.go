package manifest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func setupRun(t *testing.T, db *sql.DB) (*SQLiteRepository, string) {
	t.Helper()
	r := NewSQLiteRepository(db)
	run := &Run{ID: "run-1", RootDir: "/data", StartedAt: time.Now()}
	require.NoError(t, r.CreateRun(context.Background(), run))
	return r, run.ID
}

func TestCreateRun_DuplicateIDFails(t *testing.T) {
	db := setupDB(t)
	r, runID := setupRun(t, db)

	err := r.CreateRun(context.Background(), &Run{ID: runID, RootDir: "/other", StartedAt: time.Now()})
	require.Error(t, err)
}

func TestUpsert_InsertAndUpdate(t *testing.T) {
	db := setupDB(t)
	r, runID := setupRun(t, db)
	ctx := context.Background()

	f := &FileRecord{RunID: runID, Path: "/data/a.txt", Size: 120, State: StatePending}
	require.NoError(t, r.Upsert(ctx, f))

	got, err := r.Get(ctx, runID, "/data/a.txt")
	require.NoError(t, err)
	assert.Equal(t, StatePending, got.State)
	assert.Equal(t, int64(120), got.Size)
	assert.Equal(t, "", got.Detail)

	f.State = StateFailed
	f.Detail = "encrypt: backend unavailable"
	require.NoError(t, r.Upsert(ctx, f))

	got, err = r.Get(ctx, runID, "/data/a.txt")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, got.State)
	assert.Equal(t, "encrypt: backend unavailable", got.Detail)

	// still a single row
	list, err := r.ListByRun(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGet_NotFound(t *testing.T) {
	db := setupDB(t)
	r, runID := setupRun(t, db)

	_, err := r.Get(context.Background(), runID, "/data/absent.txt")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListByRun_OrderedByPath(t *testing.T) {
	db := setupDB(t)
	r, runID := setupRun(t, db)
	ctx := context.Background()

	for _, p := range []string{"/data/c.txt", "/data/a.txt", "/data/b.txt"} {
		require.NoError(t, r.Upsert(ctx, &FileRecord{RunID: runID, Path: p, State: StatePending}))
	}

	list, err := r.ListByRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "/data/a.txt", list[0].Path)
	assert.Equal(t, "/data/b.txt", list[1].Path)
	assert.Equal(t, "/data/c.txt", list[2].Path)
}

func TestListByState_FiltersAndIsolatesRuns(t *testing.T) {
	db := setupDB(t)
	r, runID := setupRun(t, db)
	ctx := context.Background()

	require.NoError(t, r.CreateRun(ctx, &Run{ID: "run-2", RootDir: "/data", StartedAt: time.Now()}))

	require.NoError(t, r.Upsert(ctx, &FileRecord{RunID: runID, Path: "/data/a.txt", State: StateUploaded}))
	require.NoError(t, r.Upsert(ctx, &FileRecord{RunID: runID, Path: "/data/b.txt", State: StateEncrypted}))
	require.NoError(t, r.Upsert(ctx, &FileRecord{RunID: "run-2", Path: "/data/a.txt", State: StateUploaded}))

	list, err := r.ListByState(ctx, runID, StateUploaded)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "/data/a.txt", list[0].Path)
	assert.Equal(t, runID, list[0].RunID)
}

func TestCountStates(t *testing.T) {
	db := setupDB(t)
	r, runID := setupRun(t, db)
	ctx := context.Background()

	records := []struct {
		path  string
		state State
	}{
		{"/data/a.txt", StateUploaded},
		{"/data/b.txt", StateUploaded},
		{"/data/c.txt", StateFailed},
		{"/data/d.txt", StateSkippedEmpty},
	}
	for _, rec := range records {
		require.NoError(t, r.Upsert(ctx, &FileRecord{RunID: runID, Path: rec.path, State: rec.state}))
	}

	counts, err := r.CountStates(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, map[State]int{
		StateUploaded:     2,
		StateFailed:       1,
		StateSkippedEmpty: 1,
	}, counts)
}
