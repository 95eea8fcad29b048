package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hh6422123-cyber/Eak/internal/store"
)

func newTestStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	s, err := New(path, 20*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetSetRoundTrip(t *testing.T) {
	s := newTestStore(t, ":memory:")
	ctx := context.Background()

	_, found, err := s.Get(ctx, "rooms")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Set(ctx, "rooms", []byte(`{}`)))
	require.NoError(t, s.Set(ctx, "rooms", []byte(`{"123456":{}}`)))

	v, found, err := s.Get(ctx, "rooms")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `{"123456":{}}`, string(v))

	versions, err := s.versions(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), versions["rooms"])
}

func TestWatchSeesWritesFromAnotherConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "area.db")
	watcher := newTestStore(t, path)
	writer := newTestStore(t, path)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	changes, err := watcher.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, writer.Set(ctx, "rooms", []byte(`{}`)))

	select {
	case c := <-changes:
		require.Equal(t, "rooms", c.Key)
	case <-ctx.Done():
		t.Fatal("no change observed")
	}
}

func TestBrokenSchemaSurfacesError(t *testing.T) {
	s, err := NewWithSetup(":memory:", 0, nil, func(db *sql.DB) error {
		_, err := db.Exec(`CREATE TABLE other (id INTEGER)`)
		return err
	})
	require.NoError(t, err)
	defer s.Close()

	_, _, err = s.Get(context.Background(), "rooms")
	require.Error(t, err)
	require.Error(t, s.Set(context.Background(), "rooms", []byte(`{}`)))
}

func TestClosed(t *testing.T) {
	s, err := New(":memory:", 0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, _, err = s.Get(context.Background(), "rooms")
	require.ErrorIs(t, err, store.ErrUnavailable)
}
