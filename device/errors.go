package device

import "errors"

var (
	// ErrNoDevice is returned when no device is available.
	ErrNoDevice = errors.New("algortc/device: no device available")

	// ErrModuleLoad is returned when a code object cannot be loaded.
	ErrModuleLoad = errors.New("algortc/device: module load failed")

	// ErrFunctionNotFound is returned when an entry point is absent from
	// a loaded module.
	ErrFunctionNotFound = errors.New("algortc/device: kernel function not found")

	// ErrClosed is returned when operating on a closed device or stream.
	ErrClosed = errors.New("algortc/device: closed")
)
