package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licdata/licmerge/internal/testutil"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	dir := t.TempDir()
	a, err := Open(filepath.Join(dir, "journal.db"), filepath.Join(dir, "captures"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestArchive_OpenIdempotent(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "journal.db")

	a, err := Open(dbPath, filepath.Join(dir, "captures"))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	a, err = Open(dbPath, filepath.Join(dir, "captures"))
	require.NoError(t, err)
	require.NoError(t, a.Close())
}

func TestArchive_SaveAndReadBack(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	runID, err := a.BeginRun(ctx, testutil.NewFixedIDGenerator("run-1"), "live", "https://registry.example")
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)

	body := []byte(`{"license_number":"L100","status":"ACTIVE"}`)
	rel, err := a.SaveResponse(ctx, runID, "profile", "L100", body)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("profile", "L100.json"), rel)

	got, err := a.ReadBody(rel)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	fetches, err := a.Fetches(ctx, runID, "profile")
	require.NoError(t, err)
	require.Len(t, fetches, 1)
	assert.Equal(t, "L100", fetches[0].Key)
	assert.True(t, fetches[0].OK())
}

func TestArchive_FetchesInInsertionOrder(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	runID, err := a.BeginRun(ctx, testutil.NewFixedIDGenerator("run-1"), "live", "")
	require.NoError(t, err)

	for _, key := range []string{"L3", "L1", "L2"} {
		_, err := a.SaveResponse(ctx, runID, "quicksearch", key, []byte("{}"))
		require.NoError(t, err)
	}

	fetches, err := a.Fetches(ctx, runID, "quicksearch")
	require.NoError(t, err)
	require.Len(t, fetches, 3)
	assert.Equal(t, "L3", fetches[0].Key)
	assert.Equal(t, "L1", fetches[1].Key)
	assert.Equal(t, "L2", fetches[2].Key)
}

func TestArchive_FetchesFilteredBySource(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	runID, err := a.BeginRun(ctx, testutil.NewFixedIDGenerator("run-1"), "live", "")
	require.NoError(t, err)

	_, err = a.SaveResponse(ctx, runID, "cdc", "page-1", []byte("{}"))
	require.NoError(t, err)
	_, err = a.SaveResponse(ctx, runID, "profile", "L1", []byte("{}"))
	require.NoError(t, err)

	fetches, err := a.Fetches(ctx, runID, "cdc")
	require.NoError(t, err)
	require.Len(t, fetches, 1)
	assert.Equal(t, "page-1", fetches[0].Key)
}

func TestArchive_RecordError(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	runID, err := a.BeginRun(ctx, testutil.NewFixedIDGenerator("run-1"), "live", "")
	require.NoError(t, err)

	require.NoError(t, a.RecordError(ctx, runID, "profile", "L9", errors.New("503 from origin")))

	fetches, err := a.Fetches(ctx, runID, "profile")
	require.NoError(t, err)
	require.Len(t, fetches, 1)
	assert.False(t, fetches[0].OK())
	assert.Equal(t, "503 from origin", fetches[0].Error)
	assert.Empty(t, fetches[0].Path)
}

func TestArchive_ListRunsAndHasRun(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	_, err := a.BeginRun(ctx, testutil.NewFixedIDGenerator("run-a"), "live", "https://registry.example")
	require.NoError(t, err)
	_, err = a.BeginRun(ctx, testutil.NewFixedIDGenerator("run-b"), "replay", "")
	require.NoError(t, err)

	runs, err := a.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	ok, err := a.HasRun(ctx, "run-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.HasRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArchive_SanitizesHostileKeys(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	runID, err := a.BeginRun(ctx, testutil.NewFixedIDGenerator("run-1"), "live", "")
	require.NoError(t, err)

	rel, err := a.SaveResponse(ctx, runID, "profile", "../etc/passwd", []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("profile", ".._etc_passwd.json"), rel)

	// The capture must land inside the archive dir.
	_, err = os.Stat(filepath.Join(a.Dir(), rel))
	require.NoError(t, err)
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
