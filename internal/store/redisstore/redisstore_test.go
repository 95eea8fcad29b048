package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to the Redis named by ROOMCHAT_TEST_REDIS_ADDR and
// isolates the test under a random key prefix and channel.
func newTestStore(t *testing.T) *RedisStore {
	t.Helper()

	addr := os.Getenv("ROOMCHAT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ROOMCHAT_TEST_REDIS_ADDR not set")
	}

	ns := uuid.NewString()
	s, err := New(context.Background(), Options{
		Addr:      addr,
		Channel:   "test:" + ns,
		KeyPrefix: "test:" + ns + ":",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetSetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, found, err := s.Get(ctx, "rooms")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Set(ctx, "rooms", []byte(`{}`)))

	v, found, err := s.Get(ctx, "rooms")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `{}`, string(v))
}

func TestWatchSeesWrites(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	changes, err := s.Watch(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "rooms", []byte(`{}`)))

	select {
	case c := <-changes:
		require.Equal(t, "rooms", c.Key)
	case <-ctx.Done():
		t.Fatal("no change observed")
	}
}

func TestNewFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := New(ctx, Options{Addr: "127.0.0.1:1"}, nil)
	require.Error(t, err)
}
