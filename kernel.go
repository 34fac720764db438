package algortc

import (
	"fmt"

	"github.com/cwbudde/algo-rtc/device"
	"github.com/cwbudde/algo-rtc/internal/fftypes"
)

// Kernel is a compiled kernel loaded onto one device.  A kernel is owned
// by a single plan step; it is not safe for concurrent launches on the
// same stream.
type Kernel struct {
	name     string
	module   device.Module
	fn       device.Function
	gridDim  Dim3
	blockDim Dim3

	buildArgs func(fftypes.DeviceCallInfo) *fftypes.ArgBuffer
}

// NewKernel loads a compiled binary and resolves its entry point, which
// is always the kernel name.  Load failures are fatal and never retried.
func NewKernel(dev device.Device, name string, code []byte, grid, block Dim3) (*Kernel, error) {
	module, err := dev.LoadModule(code)
	if err != nil {
		return nil, &LoadError{Name: name, Err: err}
	}
	fn, err := module.Function(name)
	if err != nil {
		module.Unload()
		return nil, &LoadError{Name: name, Err: err}
	}
	return &Kernel{
		name:     name,
		module:   module,
		fn:       fn,
		gridDim:  grid,
		blockDim: block,
	}, nil
}

// Name returns the kernel's entry-point symbol.
func (k *Kernel) Name() string { return k.name }

// GridDim returns the default launch grid chosen at generation time.
func (k *Kernel) GridDim() Dim3 { return k.gridDim }

// BlockDim returns the default work-group shape.
func (k *Kernel) BlockDim() Dim3 { return k.blockDim }

// BuildArgs packs the launch arguments for the kernel's generated
// parameter list.  Only available on kernels built through
// RuntimeCompile, where the generator's packer is attached.
func (k *Kernel) BuildArgs(info DeviceCallInfo) (*ArgBuffer, error) {
	if k.buildArgs == nil {
		return nil, ErrNoArgBuilder
	}
	return k.buildArgs(info), nil
}

// LaunchConfig describes one launch.  Zero Grid or Block fall back to
// the kernel's generation-time defaults.
type LaunchConfig struct {
	Grid        Dim3
	Block       Dim3
	SharedBytes uint32
	Stream      device.Stream
}

// Launch validates the geometry against device limits and enqueues the
// kernel.  Validation happens before any device call; an invalid
// configuration never reaches the driver.
func (k *Kernel) Launch(args *ArgBuffer, cfg LaunchConfig, limits device.Limits) error {
	grid := cfg.Grid
	if grid == (Dim3{}) {
		grid = k.gridDim
	}
	block := cfg.Block
	if block == (Dim3{}) {
		block = k.blockDim
	}

	if total := block.Total(); total > uint64(limits.MaxThreadsPerBlock) {
		return &LaunchConfigError{Name: k.name,
			Reason: fmt.Sprintf("block size %d exceeds device limit %d", total, limits.MaxThreadsPerBlock)}
	}
	if block.X > limits.MaxBlockDim.X || block.Y > limits.MaxBlockDim.Y || block.Z > limits.MaxBlockDim.Z {
		return &LaunchConfigError{Name: k.name,
			Reason: fmt.Sprintf("block (%d,%d,%d) exceeds per-dimension limits (%d,%d,%d)",
				block.X, block.Y, block.Z,
				limits.MaxBlockDim.X, limits.MaxBlockDim.Y, limits.MaxBlockDim.Z)}
	}
	if grid.X > limits.MaxGridDim.X || grid.Y > limits.MaxGridDim.Y || grid.Z > limits.MaxGridDim.Z {
		return &LaunchConfigError{Name: k.name,
			Reason: fmt.Sprintf("grid (%d,%d,%d) exceeds per-dimension limits (%d,%d,%d)",
				grid.X, grid.Y, grid.Z,
				limits.MaxGridDim.X, limits.MaxGridDim.Y, limits.MaxGridDim.Z)}
	}
	if cfg.SharedBytes > limits.SharedMemPerBlock {
		return &LaunchConfigError{Name: k.name,
			Reason: fmt.Sprintf("shared memory %d exceeds device limit %d", cfg.SharedBytes, limits.SharedMemPerBlock)}
	}

	return k.fn.Launch(grid, block, cfg.SharedBytes, cfg.Stream, args.Bytes())
}

// Occupancy reports the active blocks per compute unit for a block size
// and shared memory usage.  Callers that only log the result may treat
// an error as non-fatal.
func (k *Kernel) Occupancy(blockSize uint32, sharedBytes uint32) (int, error) {
	return k.fn.MaxActiveBlocksPerCU(blockSize, sharedBytes)
}

// Free unloads the kernel's module.  The kernel must not be launched
// afterwards.
func (k *Kernel) Free() error {
	return k.module.Unload()
}
