// Package device abstracts the accelerator runtime and native compiler
// toolchain that the kernel-compilation core talks to.  Real backends wrap
// HIP/CUDA driver APIs; the mock backend executes nothing and exists for
// development and tests.
package device

import "github.com/cwbudde/algo-rtc/internal/fftypes"

// Limits describes the launch limits of a device, queried from the runtime.
type Limits struct {
	MaxThreadsPerBlock uint32
	MaxBlockDim        fftypes.Dim3
	MaxGridDim         fftypes.Dim3
	SharedMemPerBlock  uint32
}

// Info describes a device.
type Info struct {
	Name string
	// Arch is the architecture identifier used to select which
	// instruction-set variant of a kernel to compile (e.g. "gfx90a").
	Arch     string
	MemoryMB int
}

// Device is implemented by accelerator backends.  It owns module loading
// and stream creation for one device context.
type Device interface {
	Info() Info
	Limits() Limits
	// LoadModule loads a compiled code object and prepares it for
	// entry-point resolution.
	LoadModule(code []byte) (Module, error)
	NewStream() (Stream, error)
	Close() error
}

// Module is a loaded code object.
type Module interface {
	// Function resolves a kernel entry point by name.
	Function(name string) (Function, error)
	Unload() error
}

// Function is a resolved kernel entry point.
type Function interface {
	// Launch enqueues the kernel on stream with the packed argument
	// buffer.  The caller has already validated grid/block against the
	// device limits.
	Launch(grid, block fftypes.Dim3, sharedBytes uint32, stream Stream, args []byte) error
	// MaxActiveBlocksPerCU reports how many blocks of the given shape can
	// be resident per compute unit.
	MaxActiveBlocksPerCU(blockSize uint32, sharedBytes uint32) (int, error)
}

// Stream is an execution queue.  Launches on one stream execute in enqueue
// order.
type Stream interface {
	Synchronize() error
	Close() error
}

// Toolchain compiles kernel source text into a loadable code object for a
// target architecture.  The compilation cache owns the only path through
// this interface.
type Toolchain interface {
	Compile(name, arch, source string) ([]byte, error)
}
