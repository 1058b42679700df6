package loader

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Humphrey-He/guardcache/pkg/cache"
	"github.com/Humphrey-He/guardcache/pkg/level"
)

func newCache(t *testing.T) *cache.Cache {
	t.Helper()
	cfg := cache.NewDefaultConfig().WithAutoCleanup(false, time.Minute)
	c := cache.New(*cfg)
	t.Cleanup(c.Cleanup)
	return c
}

func TestReadThroughLoadsOnMiss(t *testing.T) {
	c := newCache(t)
	calls := 0
	l := NewFunctionLoader(func(ctx context.Context, key string) (string, error) {
		calls++
		time.Sleep(2 * time.Millisecond)
		return "value-of-" + key, nil
	})
	rt := NewReadThrough[string](c, l, WithSetOptions(cache.SetOptions{
		Protocol: "ssm",
		Priority: level.High,
		Tags:     []string{"params"},
	}))

	v, err := rt.Get(context.Background(), "db/password")
	require.NoError(t, err)
	assert.Equal(t, "value-of-db/password", v)

	v, err = rt.Get(context.Background(), "db/password")
	require.NoError(t, err)
	assert.Equal(t, "value-of-db/password", v)
	assert.Equal(t, 1, calls, "second read is served from the cache")

	e, ok := c.Peek("db/password")
	require.True(t, ok)
	assert.Equal(t, "ssm", e.Protocol)
	assert.Equal(t, level.High, e.Priority)
	assert.Equal(t, []string{"params"}, e.Tags)
	assert.GreaterOrEqual(t, e.ResolutionCost, 2*time.Millisecond, "load time is recorded as resolution cost")
}

func TestReadThroughUsesLoaderTTL(t *testing.T) {
	c := newCache(t)
	l := LoaderFunc[int](func(ctx context.Context, key string) (int, time.Duration, error) {
		return 7, time.Hour, nil
	})

	_, err := NewReadThrough[int](c, l).Get(context.Background(), "k")
	require.NoError(t, err)

	e, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, time.Hour, e.TTL)
}

func TestReadThroughRetries(t *testing.T) {
	c := newCache(t)
	attempts := 0
	l := NewFunctionLoader(func(ctx context.Context, key string) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("throttled")
		}
		return 42, nil
	})

	v, err := NewReadThrough[int](c, l, WithRetries(2, time.Millisecond)).Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, attempts)
}

func TestReadThroughGivesUp(t *testing.T) {
	c := newCache(t)
	attempts := 0
	l := NewFunctionLoader(func(ctx context.Context, key string) (int, error) {
		attempts++
		return 0, errors.New("not found")
	})

	_, err := NewReadThrough[int](c, l, WithRetries(1, time.Millisecond)).Get(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Equal(t, 2, attempts)
	assert.False(t, c.Has("k"), "failures are not cached")
}

func TestReadThroughAbortOn(t *testing.T) {
	c := newCache(t)
	errNotFound := errors.New("parameter not found")
	attempts := 0
	l := NewFunctionLoader(func(ctx context.Context, key string) (int, error) {
		attempts++
		return 0, fmt.Errorf("lookup %s: %w", key, errNotFound)
	})

	_, err := NewReadThrough[int](c, l, WithRetries(3, time.Millisecond), WithAbortOn(errNotFound)).
		Get(context.Background(), "k")
	require.ErrorIs(t, err, errNotFound)
	assert.Equal(t, 1, attempts)
}

func TestReadThroughCancelledContext(t *testing.T) {
	c := newCache(t)
	attempts := 0
	l := NewFunctionLoader(func(ctx context.Context, key string) (int, error) {
		attempts++
		return 1, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewReadThrough[int](c, l, WithRetries(3, time.Millisecond)).Get(ctx, "k")
	require.Error(t, err)
	assert.Equal(t, 0, attempts)
}

func TestReadThroughCancelInterruptsRetryDelay(t *testing.T) {
	c := newCache(t)
	l := NewFunctionLoader(func(ctx context.Context, key string) (int, error) {
		return 0, errors.New("throttled")
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	_, err := NewReadThrough[int](c, l, WithRetries(3, time.Hour)).Get(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation ends the retry delay")
}

func TestReadThroughTypeMismatchReloads(t *testing.T) {
	c := newCache(t)
	c.Set("k", "not an int", cache.SetOptions{})

	l := NewFunctionLoader(func(ctx context.Context, key string) (int, error) {
		return 5, nil
	})
	v, err := NewReadThrough[int](c, l).Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	e, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, 5, e.Value)
}

func TestReadThroughOptionsFunc(t *testing.T) {
	c := newCache(t)
	l := NewFunctionLoader(func(ctx context.Context, key string) (string, error) {
		return "v", nil
	})
	rt := NewReadThrough[string](c, l,
		WithSetOptions(cache.SetOptions{Priority: level.Low}),
		WithSetOptionsFunc(func(key string) cache.SetOptions {
			return cache.SetOptions{Priority: level.Critical, Tags: []string{"path:" + key}}
		}),
	)

	_, err := rt.Get(context.Background(), "app/db")
	require.NoError(t, err)

	e, ok := c.Peek("app/db")
	require.True(t, ok)
	assert.Equal(t, level.Critical, e.Priority)
	assert.Equal(t, []string{"path:app/db"}, e.Tags)
}

// refusingCache never stores anything.
type refusingCache struct{}

func (refusingCache) Get(string) (cache.Entry, bool) { return cache.Entry{}, false }
func (refusingCache) Set(string, any, cache.SetOptions) bool { return false }

func TestReadThroughCacheFailureIsNotFatal(t *testing.T) {
	l := NewFunctionLoader(func(ctx context.Context, key string) (string, error) {
		return "v", nil
	})
	v, err := NewReadThrough[string](refusingCache{}, l).Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestFallbackLoader(t *testing.T) {
	primary := NewFunctionLoader(func(ctx context.Context, key string) (string, error) {
		return "", errors.New("primary down")
	})
	secondary := LoaderFunc[string](func(ctx context.Context, key string) (string, time.Duration, error) {
		return "backup", time.Minute, nil
	})

	v, ttl, err := NewFallbackLoader[string](primary, secondary).Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "backup", v)
	assert.Equal(t, time.Minute, ttl)
}
