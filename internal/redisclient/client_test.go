package redisclient

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	c, err := NewClient(srv.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, srv
}

func TestClientGetSetDel(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMissing)

	require.NoError(t, c.Set(ctx, "session:1:token", "tok", 0))
	val, err := c.Get(ctx, "session:1:token")
	require.NoError(t, err)
	assert.Equal(t, "tok", val)

	require.NoError(t, c.Del(ctx, "session:1:token", "absent"))
	_, err = c.Get(ctx, "session:1:token")
	assert.ErrorIs(t, err, ErrMissing)
	require.NoError(t, c.Del(ctx))
}

func TestClientSetNXHonoursTTL(t *testing.T) {
	ctx := context.Background()
	c, srv := newTestClient(t)

	ok, err := c.SetNX(ctx, "reconcile:claim:CHK-1", "tab-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "reconcile:claim:CHK-1", "tab-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	owner, err := c.Get(ctx, "reconcile:claim:CHK-1")
	require.NoError(t, err)
	assert.Equal(t, "tab-a", owner)

	srv.FastForward(2 * time.Minute)
	ok, err = c.SetNX(ctx, "reconcile:claim:CHK-1", "tab-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClientSetNXSingleWinner(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := c.SetNX(ctx, "claim", "1", time.Minute)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestClientReportsUnreachableServer(t *testing.T) {
	ctx := context.Background()
	c, srv := newTestClient(t)

	require.NoError(t, c.Ping(ctx))
	srv.Close()

	assert.Error(t, c.Ping(ctx))
	_, err := c.Get(ctx, "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissing)
}
