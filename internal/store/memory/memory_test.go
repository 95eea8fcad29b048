package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hh6422123-cyber/Eak/internal/store"
)

func TestGetSetRoundTrip(t *testing.T) {
	a := New()
	ctx := context.Background()

	_, found, err := a.Get(ctx, "rooms")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, a.Set(ctx, "rooms", []byte(`{"a":1}`)))

	v, found, err := a.Get(ctx, "rooms")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `{"a":1}`, string(v))
}

func TestGetReturnsCopy(t *testing.T) {
	a := New()
	ctx := context.Background()
	require.NoError(t, a.Set(ctx, "k", []byte("abc")))

	v, _, err := a.Get(ctx, "k")
	require.NoError(t, err)
	v[0] = 'x'

	again, _, err := a.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(again))
}

func TestQuotaExceededKeepsPriorValue(t *testing.T) {
	a := New(WithQuota(10))
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "k", []byte("12345")))
	err := a.Set(ctx, "k", []byte("1234567890"))
	require.True(t, errors.Is(err, store.ErrQuotaExceeded))

	v, _, err := a.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "12345", string(v))
}

func TestFailSwitch(t *testing.T) {
	a := New()
	ctx := context.Background()
	a.Fail(store.ErrUnavailable)

	_, _, err := a.Get(ctx, "k")
	require.ErrorIs(t, err, store.ErrUnavailable)
	require.ErrorIs(t, a.Set(ctx, "k", []byte("v")), store.ErrUnavailable)

	a.Fail(nil)
	require.NoError(t, a.Set(ctx, "k", []byte("v")))
}

func TestWatchSeesWrites(t *testing.T) {
	a := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := a.Watch(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Set(ctx, "rooms", []byte("{}")))

	select {
	case c := <-changes:
		require.Equal(t, "rooms", c.Key)
	case <-time.After(time.Second):
		t.Fatal("no change received")
	}
}

func TestClose(t *testing.T) {
	a := New()
	require.NoError(t, a.Close())

	_, _, err := a.Get(context.Background(), "k")
	require.ErrorIs(t, err, store.ErrUnavailable)
	_, err = a.Watch(context.Background())
	require.ErrorIs(t, err, store.ErrUnavailable)
}
