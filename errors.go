package algortc

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-rtc/internal/cache"
	"github.com/cwbudde/algo-rtc/internal/fftypes"
)

// Sentinel errors returned by kernel construction and launch.
var (
	// ErrNoGenerator is returned when no generator family accepts a
	// plan node's scheme.
	ErrNoGenerator = errors.New("algortc: no generator for plan node")

	// ErrCompileOnly is returned when a launch is attempted on a future
	// resolved in compile-only mode.
	ErrCompileOnly = errors.New("algortc: kernel compiled but not loaded (compile-only mode)")

	// ErrNoArgBuilder is returned when BuildArgs is called on a kernel
	// constructed without a generator.
	ErrNoArgBuilder = errors.New("algortc: kernel has no argument builder")
)

// CompileError reports a native toolchain rejection of generated source.
// Not cached; fatal to the containing plan unless the caller retries
// with a static fallback.
type CompileError = cache.CompileError

// LoadError reports a failure to load a compiled binary onto a device or
// to resolve its entry point.  Load failures are fatal and never retried.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("algortc: load kernel %s: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LaunchConfigError reports a launch geometry that exceeds device
// limits.  Raised before any device call is made.
type LaunchConfigError struct {
	Name   string
	Reason string
}

func (e *LaunchConfigError) Error() string {
	return fmt.Sprintf("algortc: launch %s: %s", e.Name, e.Reason)
}

// SpecError reports a plan node that no kernel can be specialized for.
type SpecError struct {
	Scheme fftypes.Scheme
	Err    error
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("algortc: invalid spec for scheme %q: %v", e.Scheme, e.Err)
}

func (e *SpecError) Unwrap() error { return e.Err }
