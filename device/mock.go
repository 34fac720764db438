package device

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-rtc/internal/fftypes"
)

// mockObjMagic prefixes every code object produced by the mock toolchain.
const mockObjMagic = "ALGORTC-MOCK-OBJ\n"

// MockToolchain is a stand-in for the native compiler.  It produces a
// deterministic pseudo code object embedding the kernel name, architecture
// and a digest of the source, so that identical sources yield identical
// binaries and the mock device can verify entry-point names at load time.
type MockToolchain struct {
	compiles atomic.Int64

	// FailWith, when non-nil, makes every compile fail.  Used to test
	// compile-error propagation.
	FailWith error
}

// NewMockToolchain returns an empty mock toolchain.
func NewMockToolchain() *MockToolchain {
	return &MockToolchain{}
}

// Compile implements Toolchain.
func (t *MockToolchain) Compile(name, arch, source string) ([]byte, error) {
	t.compiles.Add(1)
	if t.FailWith != nil {
		return nil, t.FailWith
	}
	sum := sha256.Sum256([]byte(source))
	var buf bytes.Buffer
	buf.WriteString(mockObjMagic)
	buf.WriteString(name)
	buf.WriteByte('\n')
	buf.WriteString(arch)
	buf.WriteByte('\n')
	buf.WriteString(hex.EncodeToString(sum[:]))
	return buf.Bytes(), nil
}

// Compiles reports how many times the native compiler was invoked.
func (t *MockToolchain) Compiles() int {
	return int(t.compiles.Load())
}

// LaunchRecord captures one enqueued kernel launch on the mock device.
type LaunchRecord struct {
	Name        string
	Grid        fftypes.Dim3
	Block       fftypes.Dim3
	SharedBytes uint32
	Args        []byte
}

// MockDevice is a device backend that loads mock code objects and records
// launches instead of executing them.
type MockDevice struct {
	info   Info
	limits Limits

	mu       sync.Mutex
	closed   bool
	launches []LaunchRecord
}

// NewMockDevice returns a mock device with typical launch limits.
func NewMockDevice(arch string) *MockDevice {
	return &MockDevice{
		info: Info{
			Name:     "MockAccelerator",
			Arch:     arch,
			MemoryMB: 0,
		},
		limits: Limits{
			MaxThreadsPerBlock: 1024,
			MaxBlockDim:        fftypes.Dim3{X: 1024, Y: 1024, Z: 64},
			MaxGridDim:         fftypes.Dim3{X: 2147483647, Y: 65535, Z: 65535},
			SharedMemPerBlock:  64 * 1024,
		},
	}
}

func (d *MockDevice) Info() Info {
	return d.info
}

func (d *MockDevice) Limits() Limits {
	return d.limits
}

// SetLimits overrides the reported launch limits.  Tests use this to force
// validation failures.
func (d *MockDevice) SetLimits(l Limits) {
	d.limits = l
}

// LoadModule implements Device.  The code object must have been produced by
// MockToolchain.
func (d *MockDevice) LoadModule(code []byte) (Module, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if !bytes.HasPrefix(code, []byte(mockObjMagic)) {
		return nil, fmt.Errorf("%w: bad code object magic", ErrModuleLoad)
	}
	fields := bytes.Split(code[len(mockObjMagic):], []byte{'\n'})
	if len(fields) != 3 {
		return nil, fmt.Errorf("%w: truncated code object", ErrModuleLoad)
	}
	return &mockModule{dev: d, name: string(fields[0])}, nil
}

func (d *MockDevice) NewStream() (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	return &mockStream{}, nil
}

func (d *MockDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Launches returns a copy of all launches recorded so far.
func (d *MockDevice) Launches() []LaunchRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]LaunchRecord, len(d.launches))
	copy(out, d.launches)
	return out
}

func (d *MockDevice) record(r LaunchRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.launches = append(d.launches, r)
	return nil
}

type mockModule struct {
	dev      *MockDevice
	name     string
	unloaded bool
}

func (m *mockModule) Function(name string) (Function, error) {
	if m.unloaded {
		return nil, ErrClosed
	}
	if name != m.name {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	return &mockFunction{mod: m, name: name}, nil
}

func (m *mockModule) Unload() error {
	m.unloaded = true
	return nil
}

type mockFunction struct {
	mod  *mockModule
	name string
}

func (f *mockFunction) Launch(grid, block fftypes.Dim3, sharedBytes uint32, stream Stream, args []byte) error {
	if f.mod.unloaded {
		return ErrClosed
	}
	argsCopy := make([]byte, len(args))
	copy(argsCopy, args)
	return f.mod.dev.record(LaunchRecord{
		Name:        f.name,
		Grid:        grid,
		Block:       block,
		SharedBytes: sharedBytes,
		Args:        argsCopy,
	})
}

func (f *mockFunction) MaxActiveBlocksPerCU(blockSize uint32, sharedBytes uint32) (int, error) {
	if f.mod.unloaded {
		return 0, ErrClosed
	}
	if blockSize == 0 {
		return 0, fmt.Errorf("algortc/device: zero block size")
	}
	// crude occupancy model: bounded by threads and shared memory
	occ := int(f.mod.dev.limits.MaxThreadsPerBlock*2) / int(blockSize)
	if sharedBytes > 0 {
		byShared := int(f.mod.dev.limits.SharedMemPerBlock / sharedBytes)
		if byShared < occ {
			occ = byShared
		}
	}
	if occ < 1 {
		occ = 1
	}
	return occ, nil
}

type mockStream struct{}

func (s *mockStream) Synchronize() error { return nil }
func (s *mockStream) Close() error       { return nil }
