package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/valuescreen/pkg/logger"
)

func TestKey(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "http:AAPL:2025-06-30", Key("http", "AAPL", asOf))
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	val, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, m.Delete(ctx, "k"))
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Millisecond))

	time.Sleep(5 * time.Millisecond)
	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len(), "expired entry evicted on read")
}

func TestGetOrFetchCachesResult(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore(), time.Minute, logger.NewNop())

	var calls atomic.Int32
	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("payload"), nil
	}

	for i := 0; i < 3; i++ {
		val, err := c.GetOrFetch(ctx, "k", fetch)
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), val)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrFetchSharesConcurrentFetch(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore(), time.Minute, logger.NewNop())

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("shared"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, err := c.GetOrFetch(ctx, "hot", fetch)
			assert.NoError(t, err)
			assert.Equal(t, []byte("shared"), val)
		}()
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "one fetch serves all callers")
}

func TestGetOrFetchPropagatesFetchError(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore(), time.Minute, logger.NewNop())

	wantErr := errors.New("upstream down")
	_, err := c.GetOrFetch(ctx, "k", func(context.Context) ([]byte, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	// Errors are not cached: the next call fetches again.
	val, err := c.GetOrFetch(ctx, "k", func(context.Context) ([]byte, error) {
		return []byte("recovered"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("recovered"), val)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend down")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("backend down")
}
func (failingStore) Delete(context.Context, string) error { return errors.New("backend down") }

func TestBrokenBackendDegradesToDirectFetch(t *testing.T) {
	c := New(failingStore{}, time.Minute, logger.NewNop())

	val, err := c.GetOrFetch(context.Background(), "k", func(context.Context) ([]byte, error) {
		return []byte("direct"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("direct"), val)
}
