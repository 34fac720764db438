package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-rtc/device"
)

const testChecksum = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func srcOnce(t *testing.T, src string) (func() (string, error), *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	return func() (string, error) {
		calls.Add(1)
		return src, nil
	}, &calls
}

func TestCompileCachesResult(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	tc := device.NewMockToolchain()
	c := New(store, tc, Options{Logger: testLogger()})

	srcFn, calls := srcOnce(t, "kernel source")

	first, err := c.Compile(context.Background(), "k1", "gfx90a", testChecksum, srcFn)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	assert.Equal(t, 1, tc.Compiles())
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, 1, store.Len())

	second, err := c.Compile(context.Background(), "k1", "gfx90a", testChecksum, srcFn)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, tc.Compiles(), "second call must be served from the store")
	assert.Equal(t, int64(1), calls.Load(), "source must not be regenerated on a hit")
}

func TestCompileKeyComponents(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	tc := device.NewMockToolchain()
	c := New(store, tc, Options{Logger: testLogger()})

	srcFn, _ := srcOnce(t, "kernel source")
	ctx := context.Background()

	_, err := c.Compile(ctx, "k1", "gfx90a", testChecksum, srcFn)
	require.NoError(t, err)

	// a different architecture is a different key
	_, err = c.Compile(ctx, "k1", "gfx1030", testChecksum, srcFn)
	require.NoError(t, err)
	assert.Equal(t, 2, tc.Compiles())

	// a generator version bump orphans the old entry
	other := "ffff" + testChecksum[4:]
	_, err = c.Compile(ctx, "k1", "gfx90a", other, srcFn)
	require.NoError(t, err)
	assert.Equal(t, 3, tc.Compiles())
	assert.Equal(t, 3, store.Len())
}

func TestCompileCoalescesConcurrentRequests(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	tc := device.NewMockToolchain()
	c := New(store, tc, Options{Logger: testLogger()})

	var calls atomic.Int64
	release := make(chan struct{})
	srcFn := func() (string, error) {
		calls.Add(1)
		<-release
		return "slow source", nil
	}

	const waiters = 16
	var wg sync.WaitGroup
	results := make([][]byte, waiters)
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Compile(context.Background(), "k1", "gfx90a", testChecksum, srcFn)
		}(i)
	}
	// let the waiters pile onto the in-flight compile before releasing it
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < waiters; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, int64(1), calls.Load(), "concurrent requests must coalesce onto one generation")
	assert.Equal(t, 1, tc.Compiles(), "concurrent requests must coalesce onto one compile")
}

func TestCompileFailureNotCached(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	tc := device.NewMockToolchain()
	tc.FailWith = errors.New("syntax error")
	c := New(store, tc, Options{Logger: testLogger()})

	srcFn, _ := srcOnce(t, "bad source")
	_, err := c.Compile(context.Background(), "k1", "gfx90a", testChecksum, srcFn)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "k1", cerr.Name)
	assert.Equal(t, "gfx90a", cerr.Arch)
	assert.Equal(t, 0, store.Len(), "failed compiles must not be cached")

	// a fixed toolchain is allowed to succeed on retry
	tc.FailWith = nil
	_, err = c.Compile(context.Background(), "k1", "gfx90a", testChecksum, srcFn)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestCompileGenerationError(t *testing.T) {
	t.Parallel()

	c := New(NewMemStore(), device.NewMockToolchain(), Options{Logger: testLogger()})
	genErr := errors.New("unsupported factorization")
	_, err := c.Compile(context.Background(), "k1", "gfx90a", testChecksum, func() (string, error) {
		return "", genErr
	})
	require.ErrorIs(t, err, genErr)
}

type corruptStore struct {
	*MemStore
	getErr error
}

func (s *corruptStore) Get(key Key) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemStore.Get(key)
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	t.Parallel()

	store := &corruptStore{MemStore: NewMemStore(), getErr: errors.New("checksum mismatch")}
	tc := device.NewMockToolchain()
	c := New(store, tc, Options{Logger: testLogger()})

	srcFn, _ := srcOnce(t, "kernel source")
	code, err := c.Compile(context.Background(), "k1", "gfx90a", testChecksum, srcFn)
	require.NoError(t, err, "an unreadable entry must fall through to a fresh compile")
	require.NotEmpty(t, code)
	assert.Equal(t, 1, tc.Compiles())
}

type failingPutStore struct {
	*MemStore
}

func (s *failingPutStore) Put(Key, []byte) error {
	return errors.New("disk full")
}

func TestStoreWriteFailureNonFatal(t *testing.T) {
	t.Parallel()

	store := &failingPutStore{MemStore: NewMemStore()}
	tc := device.NewMockToolchain()
	c := New(store, tc, Options{Logger: testLogger()})

	srcFn, _ := srcOnce(t, "kernel source")
	code, err := c.Compile(context.Background(), "k1", "gfx90a", testChecksum, srcFn)
	require.NoError(t, err, "a failed cache write must not fail the compile")
	require.NotEmpty(t, code)
}

func TestDisabledCacheAlwaysCompiles(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	tc := device.NewMockToolchain()
	c := New(store, tc, Options{Logger: testLogger(), Disabled: true})

	srcFn, _ := srcOnce(t, "kernel source")
	ctx := context.Background()

	_, err := c.Compile(ctx, "k1", "gfx90a", testChecksum, srcFn)
	require.NoError(t, err)
	_, err = c.Compile(ctx, "k1", "gfx90a", testChecksum, srcFn)
	require.NoError(t, err)

	assert.Equal(t, 2, tc.Compiles(), "disabled cache must compile every time")
	assert.Equal(t, 0, store.Len(), "disabled cache must not persist entries")
}

func TestCompileContextCancellation(t *testing.T) {
	t.Parallel()

	c := New(NewMemStore(), device.NewMockToolchain(), Options{Logger: testLogger()})

	release := make(chan struct{})
	defer close(release)
	srcFn := func() (string, error) {
		<-release
		return "slow source", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Compile(ctx, "k1", "gfx90a", testChecksum, srcFn)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled Compile did not return")
	}
}

func TestMetricsRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := New(NewMemStore(), device.NewMockToolchain(), Options{Logger: testLogger(), Registerer: reg})

	srcFn, _ := srcOnce(t, "kernel source")
	ctx := context.Background()
	_, err := c.Compile(ctx, "k1", "gfx90a", testChecksum, srcFn)
	require.NoError(t, err)
	_, err = c.Compile(ctx, "k1", "gfx90a", testChecksum, srcFn)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	counters := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			counters[mf.GetName()] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, counters["algortc_cache_hits_total"])
	assert.Equal(t, 1.0, counters["algortc_cache_misses_total"])
	assert.Equal(t, 1.0, counters["algortc_compiles_total"])
}
