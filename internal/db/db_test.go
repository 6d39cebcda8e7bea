package db

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/treecrown/internal/monitoring"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	monitoring.SetLogger(zerolog.Nop())
	db, err := NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPragmasApplied(t *testing.T) {
	db := setupTestDB(t)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var timeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}

func TestMigrateUpDownVersion(t *testing.T) {
	monitoring.SetLogger(zerolog.Nop())
	db, err := OpenDB(filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer db.Close()

	migrations := MigrationsFS()
	version, dirty, err := db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateUp(migrations))
	latest, err := LatestMigrationVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)

	version, _, err = db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, latest, version)

	// Up again is a no-op.
	require.NoError(t, db.MigrateUp(migrations))

	require.NoError(t, db.MigrateDown(migrations))
	version, _, err = db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='trees'`).Scan(&n))
	assert.Equal(t, 0, n)

	require.NoError(t, db.MigrateForce(migrations, 2))
	version, dirty, err = db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
}

func TestRunMigrateCommand(t *testing.T) {
	monitoring.SetLogger(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "cli.db")

	var out bytes.Buffer
	require.NoError(t, RunMigrateCommand([]string{"status"}, path, &out))
	assert.Contains(t, out.String(), "Current version: 0")
	assert.Contains(t, out.String(), "2 migration(s) pending")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"up"}, path, &out))
	assert.Contains(t, out.String(), "Current version: 2")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"status"}, path, &out))
	assert.Contains(t, out.String(), "Schema is up to date.")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"down"}, path, &out))
	assert.Contains(t, out.String(), "Current version: 1")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"force", "2"}, path, &out))
	assert.Contains(t, out.String(), "Forced migration version to 2")

	assert.Error(t, RunMigrateCommand([]string{"force"}, path, &out))
	assert.Error(t, RunMigrateCommand([]string{"force", "x"}, path, &out))
	assert.Error(t, RunMigrateCommand([]string{"sideways"}, path, &out))
	assert.Error(t, RunMigrateCommand(nil, path, &out))

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"help"}, path, &out))
	assert.Contains(t, out.String(), "Usage: treecrown migrate")
}

func sampleRun(created time.Time) *Run {
	return &Run{
		CreatedAt:        created,
		InputPath:        "NEON_D17_SOAP_DP3_chm.tif",
		TrainingPath:     "SJER_Biomass_Training.csv",
		ParamsJSON:       `{"gaussian_sigma":2}`,
		Rows:             1000,
		Cols:             1000,
		SegmentCount:     2,
		OrphanCells:      3,
		OrphanComponents: 1,
		OrphanArea:       3,
		BiomassMean:      150,
		BiomassStd:       50,
		BiomassMin:       100,
		BiomassMax:       200,
		BiomassSum:       300,
		ElapsedMs:        1234,
	}
}

func TestRunStoreRoundTrip(t *testing.T) {
	store := setupTestDB(t).Runs()

	created := time.Unix(1717243200, 5)
	run := sampleRun(created)
	require.NoError(t, store.InsertRun(run))
	require.NotEmpty(t, run.RunID)

	trees := []Tree{
		{Label: 2, Area: 40, MaxHeight: 18, BiomassKg: 200},
		{Label: 1, Area: 25, MaxHeight: 12, BiomassKg: 100},
	}
	require.NoError(t, store.InsertTrees(run.RunID, trees))

	got, err := store.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, got.RunID)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.Equal(t, run.ParamsJSON, got.ParamsJSON)
	assert.Equal(t, 300.0, got.BiomassSum)
	assert.Equal(t, 1, got.OrphanComponents)

	stored, err := store.TreesByRun(run.RunID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, int32(1), stored[0].Label)
	assert.Equal(t, run.RunID, stored[0].RunID)
	assert.Equal(t, 200.0, stored[1].BiomassKg)
}

func TestRunStoreListNewestFirst(t *testing.T) {
	store := setupTestDB(t).Runs()
	base := time.Unix(1717243200, 0)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.InsertRun(sampleRun(base.Add(time.Duration(i)*time.Hour))))
	}

	all, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))

	limited, err := store.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRunStoreNotFoundAndDelete(t *testing.T) {
	store := setupTestDB(t).Runs()
	_, err := store.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, store.DeleteRun("missing"), ErrRunNotFound)

	run := sampleRun(time.Now())
	require.NoError(t, store.InsertRun(run))
	require.NoError(t, store.InsertTrees(run.RunID, []Tree{{Label: 1}}))
	require.NoError(t, store.DeleteRun(run.RunID))

	trees, err := store.TreesByRun(run.RunID)
	require.NoError(t, err)
	assert.Empty(t, trees)
}

func TestInsertTreesRequiresRun(t *testing.T) {
	store := setupTestDB(t).Runs()
	err := store.InsertTrees("no-such-run", []Tree{{Label: 1}})
	assert.Error(t, err)
}

func TestInsertRunDefaults(t *testing.T) {
	store := setupTestDB(t).Runs()
	run := &Run{InputPath: "a.tif", TrainingPath: "b.csv"}
	require.NoError(t, store.InsertRun(run))
	assert.False(t, run.CreatedAt.IsZero())
	assert.Equal(t, "{}", run.ParamsJSON)
}

func TestInsertRunWithTreesCommitsTogether(t *testing.T) {
	store := setupTestDB(t).Runs()
	run := sampleRun(time.Unix(1717243200, 0))
	trees := []Tree{{Label: 1, BiomassKg: 100}, {Label: 2, BiomassKg: 200}}
	require.NoError(t, store.InsertRunWithTrees(run, trees))

	stored, err := store.TreesByRun(run.RunID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestInsertRunWithTreesRollsBackRunOnTreeFailure(t *testing.T) {
	store := setupTestDB(t).Runs()
	run := sampleRun(time.Unix(1717243200, 0))
	dup := []Tree{{Label: 1}, {Label: 1}}

	err := store.InsertRunWithTrees(run, dup)
	require.Error(t, err)
	assert.ErrorContains(t, err, "insert tree 1")

	_, err = store.GetRun(run.RunID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
