package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/cwbudde/algo-rtc/device"
)

// CompileError wraps a native toolchain failure for one kernel.  Compile
// failures are never cached; retrying with a fixed generator is allowed
// to succeed.
type CompileError struct {
	Name string
	Arch string
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s for %s: %v", e.Name, e.Arch, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

type metrics struct {
	hits            prometheus.Counter
	misses          prometheus.Counter
	compiles        prometheus.Counter
	compileFailures prometheus.Counter
	storeErrors     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algortc_cache_hits_total",
			Help: "Compiled kernels served from the cache.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algortc_cache_misses_total",
			Help: "Cache lookups that required a native compile.",
		}),
		compiles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algortc_compiles_total",
			Help: "Successful native kernel compiles.",
		}),
		compileFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algortc_compile_failures_total",
			Help: "Native kernel compiles rejected by the toolchain.",
		}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algortc_cache_store_errors_total",
			Help: "Failed cache writes after a successful compile.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.compiles, m.compileFailures, m.storeErrors)
	}
	return m
}

// Options configures a Cache.  The zero value uses slog.Default, no
// metrics registration, and an enabled cache.
type Options struct {
	Logger     *slog.Logger
	Registerer prometheus.Registerer
	Disabled   bool
}

// Cache compiles kernels at most once per key.  Concurrent requests for
// the same key coalesce onto a single compile; every waiter gets the
// same binary.
type Cache struct {
	store    Store
	tc       device.Toolchain
	log      *slog.Logger
	metrics  *metrics
	disabled bool

	group singleflight.Group
}

func New(store Store, tc device.Toolchain, opts Options) *Cache {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		store:    store,
		tc:       tc,
		log:      log,
		metrics:  newMetrics(opts.Registerer),
		disabled: opts.Disabled,
	}
}

// Compile returns the compiled binary for the named kernel, consulting
// the store first.  srcFn is only invoked on a miss, and at most once
// across concurrent callers of the same key.  Corrupt or unreadable
// store entries are treated as misses; compile failures propagate and
// are not cached; store write failures are logged but the binary is
// still returned.
func (c *Cache) Compile(ctx context.Context, name, arch, checksum string, srcFn func() (string, error)) ([]byte, error) {
	key := Key{Name: name, Arch: arch, Checksum: checksum}

	ch := c.group.DoChan(key.String(), func() (any, error) {
		return c.compileLocked(key, srcFn)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *Cache) compileLocked(key Key, srcFn func() (string, error)) ([]byte, error) {
	if !c.disabled {
		code, err := c.store.Get(key)
		if err == nil {
			c.metrics.hits.Inc()
			c.log.Debug("kernel cache hit", "kernel", key.Name, "arch", key.Arch)
			return code, nil
		}
		if !errors.Is(err, ErrNotFound) {
			// recoverable: fall through to a fresh compile
			c.log.Warn("unreadable kernel cache entry", "kernel", key.Name, "error", err)
		}
	}
	c.metrics.misses.Inc()

	src, err := srcFn()
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", key.Name, err)
	}

	code, err := c.tc.Compile(key.Name, key.Arch, src)
	if err != nil {
		c.metrics.compileFailures.Inc()
		return nil, &CompileError{Name: key.Name, Arch: key.Arch, Err: err}
	}
	c.metrics.compiles.Inc()
	c.log.Debug("kernel compiled", "kernel", key.Name, "arch", key.Arch, "bytes", len(code))

	if !c.disabled {
		if err := c.store.Put(key, code); err != nil {
			c.metrics.storeErrors.Inc()
			c.log.Warn("kernel cache write failed", "kernel", key.Name, "error", err)
		}
	}
	return code, nil
}
