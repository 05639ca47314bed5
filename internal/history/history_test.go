package history

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/orientd/internal/engine"
	"github.com/banshee-data/orientd/internal/orientation"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	log, _ := test.NewNullLogger()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenMigratesSchema(t *testing.T) {
	s := openTestStore(t)

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	_, err = uuid.Parse(s.RunID())
	assert.NoError(t, err)

	// A second migration run is a no-op.
	require.NoError(t, s.MigrateUp())
}

func TestMigrateDownDropsTable(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.MigrateDown())
	version, _, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	_, err = s.Recent(context.Background(), 10)
	assert.Error(t, err)
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, engine.Transition{
		From: orientation.Unknown, To: orientation.Normal,
		Sample: orientation.Sample{X: 0.2, Y: -9.1}, At: base,
	}))
	require.NoError(t, s.Record(ctx, engine.Transition{
		From: orientation.Normal, To: orientation.Left,
		Sample: orientation.Sample{X: 8, Y: -3}, At: base.Add(time.Second),
		ApplyErr: errors.New("xinput: exit status 1"),
	}))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, orientation.Left, entries[0].Orientation)
	assert.Equal(t, orientation.Normal, entries[0].Previous)
	assert.Equal(t, "xinput: exit status 1", entries[0].ApplyError)
	assert.True(t, base.Add(time.Second).Equal(entries[0].CreatedAt))

	assert.Equal(t, orientation.Normal, entries[1].Orientation)
	assert.Equal(t, orientation.Unknown, entries[1].Previous)
	assert.Equal(t, 0.2, entries[1].X)
	assert.Empty(t, entries[1].ApplyError)
	assert.Equal(t, s.RunID(), entries[1].RunID)

	limited, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, entries[0].ID, limited[0].ID)
}

func TestRunIDsDifferAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	log, _ := test.NewNullLogger()

	a, err := Open(path, log)
	require.NoError(t, err)
	require.NoError(t, a.Record(context.Background(), engine.Transition{To: orientation.Right, At: time.Now()}))
	require.NoError(t, a.Close())

	b, err := Open(path, log)
	require.NoError(t, err)
	defer b.Close()
	assert.NotEqual(t, a.RunID(), b.RunID())

	entries, err := b.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, a.RunID(), entries[0].RunID)
}

func TestObserveTransitionLogsFailures(t *testing.T) {
	log, hook := test.NewNullLogger()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), log)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s.ObserveTransition(context.Background(), engine.Transition{To: orientation.Left, At: time.Now()})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "history write failed", entry.Message)
}

func TestAttachAdminRoutes(t *testing.T) {
	s := openTestStore(t)
	mux := http.NewServeMux()
	require.NoError(t, s.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Orientation history SQL console")
}
