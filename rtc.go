package algortc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwbudde/algo-rtc/device"
	"github.com/cwbudde/algo-rtc/internal/cache"
	"github.com/cwbudde/algo-rtc/internal/kernels"
)

// GeneratorSum returns the checksum identifying the current generator
// logic.  It is part of every cache key; bumping any family's version
// invalidates all previously compiled kernels.
func GeneratorSum() string {
	return kernels.GeneratorSum()
}

// RuntimeOptions configures a Runtime.  The zero value uses the config
// from the environment, a file store in the user cache directory, and
// slog.Default.
type RuntimeOptions struct {
	Config *cache.Config
	Store  cache.Store
	Logger *slog.Logger

	// Registerer receives the cache metrics when set.
	Registerer prometheus.Registerer
}

// Runtime compiles kernels for one device.  Compilation is dispatched on
// its own goroutine per request; callers hold a Future and wait at their
// leisure.
type Runtime struct {
	dev   device.Device
	cache *cache.Cache
	store cache.Store
	cfg   cache.Config
	log   *slog.Logger
}

// NewRuntime builds a runtime for dev, compiling through tc.
func NewRuntime(dev device.Device, tc device.Toolchain, opts RuntimeOptions) (*Runtime, error) {
	cfg := cache.FromEnv()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	store := opts.Store
	if store == nil {
		if cfg.DisableCache {
			store = cache.NewMemStore()
		} else {
			dir := cfg.Path
			if dir == "" {
				base, err := os.UserCacheDir()
				if err != nil {
					return nil, fmt.Errorf("algortc: resolve cache dir: %w", err)
				}
				dir = filepath.Join(base, "algortc")
			}
			fs, err := cache.NewFileStore(dir)
			if err != nil {
				return nil, err
			}
			store = fs
		}
	}

	c := cache.New(store, tc, cache.Options{
		Logger:     log,
		Registerer: opts.Registerer,
		Disabled:   cfg.DisableCache,
	})
	return &Runtime{dev: dev, cache: c, store: store, cfg: cfg, log: log}, nil
}

// Close releases the cache store.
func (r *Runtime) Close() error {
	return r.store.Close()
}

// KernelName resolves the kernel name a node will compile to, without
// compiling.  Statically precompiled nodes resolve to the name of the
// shipped kernel.
func KernelName(node *PlanNode, enableCallbacks bool) (string, error) {
	sel, err := kernels.FromNode(node, enableCallbacks)
	if err != nil {
		return "", &SpecError{Scheme: node.Scheme, Err: err}
	}
	switch sel.State {
	case kernels.SelectionApplicable:
		return sel.Generator.Name, nil
	case kernels.SelectionPrecompiled:
		return sel.PrecompiledName, nil
	default:
		return "", nil
	}
}

// RuntimeCompile maps a plan node onto its generator family and kicks
// off an asynchronous compile.  The returned future resolves to a loaded
// kernel, or to a nil kernel for metadata-only nodes, statically
// precompiled nodes, and compile-only mode.
func (r *Runtime) RuntimeCompile(node *PlanNode, enableCallbacks bool) (*Future, error) {
	sel, err := kernels.FromNode(node, enableCallbacks)
	if err != nil {
		return nil, &SpecError{Scheme: node.Scheme, Err: err}
	}

	switch sel.State {
	case kernels.SelectionNone:
		return resolvedFuture("", nil, nil, nil), nil
	case kernels.SelectionPrecompiled:
		// the binary ships at build time; only the name is resolved here
		r.log.Debug("statically precompiled kernel", "kernel", sel.PrecompiledName)
		return resolvedFuture(sel.PrecompiledName, nil, nil, nil), nil
	}

	gen := sel.Generator
	arch := r.dev.Info().Arch
	fut := newFuture(gen.Name)

	go func() {
		// in-flight compiles are never cancelled; droppers of the
		// future simply stop waiting
		code, err := r.cache.Compile(context.Background(), gen.Name, arch, kernels.GeneratorSum(), gen.Source)
		if err != nil {
			fut.resolve(nil, nil, err)
			return
		}
		if r.cfg.CompileOnly {
			fut.resolve(nil, code, nil)
			return
		}
		k, err := NewKernel(r.dev, gen.Name, code, gen.GridDim, gen.BlockDim)
		if err != nil {
			fut.resolve(nil, code, err)
			return
		}
		k.buildArgs = gen.BuildArgs
		fut.resolve(k, code, nil)
	}()
	return fut, nil
}
