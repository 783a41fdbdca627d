package notification

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zllovesuki/rtdn/cache"
	"github.com/zllovesuki/rtdn/response"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type brokenStore struct{}

var errCacheDown = errors.New("cache down")

func (brokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errCacheDown
}

func (brokenStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return false, errCacheDown
}

func (brokenStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errCacheDown
}

func (brokenStore) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	return false, errCacheDown
}

func newTestGuard(t *testing.T, store cache.Store) *Guard {
	g, err := NewGuard(GuardOptions{
		Store:  store,
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	return g
}

func counting(calls *int32, result response.Result, err error) ProcessFunc {
	return func(ctx context.Context) (response.Result, error) {
		atomic.AddInt32(calls, 1)
		return result, err
	}
}

func TestGuardProcessedOnce(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	g := newTestGuard(t, store)

	var calls int32
	for i := 0; i < 3; i++ {
		res, err := g.Run(ctx, "m-1", counting(&calls, response.SUCCESS, nil))
		require.NoError(t, err)
		assert.Equal(t, response.SUCCESS, res)
	}
	assert.Equal(t, int32(1), calls)

	v, ok, err := store.Get(ctx, keyPrefix+"m-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, stateProcessed, v)
}

func TestGuardFailureClearsClaim(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	g := newTestGuard(t, store)

	var calls int32
	res, err := g.Run(ctx, "m-1", counting(&calls, response.FAIL, nil))
	require.NoError(t, err)
	assert.Equal(t, response.FAIL, res)

	_, ok, err := store.Get(ctx, keyPrefix+"m-1")
	require.NoError(t, err)
	assert.False(t, ok)

	res, err = g.Run(ctx, "m-1", counting(&calls, response.SUCCESS, nil))
	require.NoError(t, err)
	assert.Equal(t, response.SUCCESS, res)
	assert.Equal(t, int32(2), calls)
}

func TestGuardErrorClearsClaim(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	g := newTestGuard(t, store)

	boom := errors.New("boom")
	var calls int32
	_, err := g.Run(ctx, "m-1", counting(&calls, response.FAIL, boom))
	assert.ErrorIs(t, err, boom)

	_, ok, err := store.Get(ctx, keyPrefix+"m-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGuardPanicClearsClaim(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	g := newTestGuard(t, store)

	assert.Panics(t, func() {
		g.Run(ctx, "m-1", func(ctx context.Context) (response.Result, error) {
			panic("handler bug")
		})
	})

	_, ok, err := store.Get(ctx, keyPrefix+"m-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGuardInFlightIsNotCleared(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	g := newTestGuard(t, store)

	claim := stateProcessing + ":someone-else"
	require.NoError(t, store.Set(ctx, keyPrefix+"m-1", claim, time.Minute))

	var calls int32
	res, err := g.Run(ctx, "m-1", counting(&calls, response.SUCCESS, nil))
	require.NoError(t, err)
	assert.Equal(t, response.FAIL, res)
	assert.Zero(t, calls)

	v, ok, err := store.Get(ctx, keyPrefix+"m-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, claim, v)
}

func TestGuardConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	g := newTestGuard(t, cache.NewMemoryStore())

	const n = 10
	var (
		calls    int32
		failures int32
	)
	process := func(ctx context.Context) (response.Result, error) {
		atomic.AddInt32(&calls, 1)
		// hold the claim until every other delivery has been turned away
		deadline := time.Now().Add(2 * time.Second)
		for atomic.LoadInt32(&failures) < n-1 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		return response.SUCCESS, nil
	}

	var wg conc.WaitGroup
	for i := 0; i < n; i++ {
		wg.Go(func() {
			res, err := g.Run(ctx, "m-1", process)
			assert.NoError(t, err)
			if res == response.FAIL {
				atomic.AddInt32(&failures, 1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls)
	assert.Equal(t, int32(n-1), failures)
}

func TestGuardCacheOutageRunsUnguarded(t *testing.T) {
	g := newTestGuard(t, brokenStore{})

	var calls int32
	for i := 0; i < 2; i++ {
		res, err := g.Run(context.Background(), "m-1", counting(&calls, response.SUCCESS, nil))
		require.NoError(t, err)
		assert.Equal(t, response.SUCCESS, res)
	}
	assert.Equal(t, int32(2), calls)
}

func TestGuardWithoutMessageID(t *testing.T) {
	g := newTestGuard(t, cache.NewMemoryStore())

	var calls int32
	_, err := g.Run(context.Background(), "", counting(&calls, response.SUCCESS, nil))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls)
}
