package algortc

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-rtc/device"
)

func loadTestKernel(t *testing.T, dev *device.MockDevice, grid, block Dim3) *Kernel {
	t.Helper()
	tc := device.NewMockToolchain()
	code, err := tc.Compile("test_kernel", dev.Info().Arch, "source")
	if err != nil {
		t.Fatal(err)
	}
	k, err := NewKernel(dev, "test_kernel", code, grid, block)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func TestNewKernelLoadError(t *testing.T) {
	t.Parallel()

	dev := device.NewMockDevice("gfx90a")
	_, err := NewKernel(dev, "k", []byte("not a code object"), Dim3{}, Dim3{})
	var lerr *LoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("err = %v, want *LoadError", err)
	}
	if lerr.Name != "k" {
		t.Errorf("LoadError.Name = %q, want k", lerr.Name)
	}
}

func TestNewKernelEntryPointMismatch(t *testing.T) {
	t.Parallel()

	dev := device.NewMockDevice("gfx90a")
	tc := device.NewMockToolchain()
	code, err := tc.Compile("real_name", "gfx90a", "source")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewKernel(dev, "wrong_name", code, Dim3{}, Dim3{}); err == nil {
		t.Fatal("entry-point mismatch must fail the load")
	}
}

func TestLaunchValidation(t *testing.T) {
	t.Parallel()

	dev := device.NewMockDevice("gfx90a")
	limits := device.Limits{
		MaxThreadsPerBlock: 1024,
		MaxBlockDim:        Dim3{X: 1024, Y: 1024, Z: 64},
		MaxGridDim:         Dim3{X: 1 << 16, Y: 1 << 16, Z: 1 << 16},
		SharedMemPerBlock:  64 * 1024,
	}
	k := loadTestKernel(t, dev, Dim3{X: 1, Y: 1, Z: 1}, Dim3{X: 256, Y: 1, Z: 1})

	tests := []struct {
		name string
		cfg  LaunchConfig
		ok   bool
	}{
		{"defaults", LaunchConfig{}, true},
		{"explicit valid", LaunchConfig{Grid: Dim3{X: 8, Y: 1, Z: 1}, Block: Dim3{X: 512, Y: 1, Z: 1}}, true},
		{"block total over limit", LaunchConfig{Block: Dim3{X: 1024, Y: 2, Z: 1}}, false},
		{"block z over per-dim limit", LaunchConfig{Block: Dim3{X: 1, Y: 1, Z: 128}}, false},
		{"grid y over per-dim limit", LaunchConfig{Grid: Dim3{X: 1, Y: 1 << 20, Z: 1}}, false},
		{"shared memory over limit", LaunchConfig{SharedBytes: 128 * 1024}, false},
		{"shared memory at limit", LaunchConfig{SharedBytes: 64 * 1024}, true},
	}

	for _, tt := range tests {
		args := &ArgBuffer{}
		err := k.Launch(args, tt.cfg, limits)
		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok {
			var cerr *LaunchConfigError
			if !errors.As(err, &cerr) {
				t.Errorf("%s: err = %v, want *LaunchConfigError", tt.name, err)
			}
		}
	}

	// invalid configurations never reach the device
	valid := 0
	for _, tt := range tests {
		if tt.ok {
			valid++
		}
	}
	if got := len(dev.Launches()); got != valid {
		t.Errorf("device saw %d launches, want %d", got, valid)
	}
}

func TestLaunchDefaultsToGenerationGeometry(t *testing.T) {
	t.Parallel()

	dev := device.NewMockDevice("gfx90a")
	grid := Dim3{X: 7, Y: 3, Z: 1}
	block := Dim3{X: 64, Y: 16, Z: 1}
	k := loadTestKernel(t, dev, grid, block)

	if err := k.Launch(&ArgBuffer{}, LaunchConfig{}, dev.Limits()); err != nil {
		t.Fatal(err)
	}
	rec := dev.Launches()[0]
	if rec.Grid != grid || rec.Block != block {
		t.Errorf("launch used %v/%v, want generation-time %v/%v", rec.Grid, rec.Block, grid, block)
	}
}

func TestKernelBuildArgsWithoutGenerator(t *testing.T) {
	t.Parallel()

	dev := device.NewMockDevice("gfx90a")
	k := loadTestKernel(t, dev, Dim3{X: 1, Y: 1, Z: 1}, Dim3{X: 64, Y: 1, Z: 1})
	if _, err := k.BuildArgs(DeviceCallInfo{}); !errors.Is(err, ErrNoArgBuilder) {
		t.Errorf("err = %v, want ErrNoArgBuilder", err)
	}
}

func TestKernelFree(t *testing.T) {
	t.Parallel()

	dev := device.NewMockDevice("gfx90a")
	k := loadTestKernel(t, dev, Dim3{X: 1, Y: 1, Z: 1}, Dim3{X: 64, Y: 1, Z: 1})
	if err := k.Free(); err != nil {
		t.Fatal(err)
	}
	if err := k.Launch(&ArgBuffer{}, LaunchConfig{}, dev.Limits()); err == nil {
		t.Error("launch after Free must fail")
	}
}

func TestKernelOccupancy(t *testing.T) {
	t.Parallel()

	dev := device.NewMockDevice("gfx90a")
	k := loadTestKernel(t, dev, Dim3{X: 1, Y: 1, Z: 1}, Dim3{X: 256, Y: 1, Z: 1})
	occ, err := k.Occupancy(256, 0)
	if err != nil {
		t.Fatal(err)
	}
	if occ < 1 {
		t.Errorf("occupancy = %d, want at least 1", occ)
	}
}
