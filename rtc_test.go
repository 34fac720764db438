package algortc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/algo-rtc/device"
	"github.com/cwbudde/algo-rtc/internal/cache"
)

func testRuntime(t *testing.T, cfg *cache.Config) (*Runtime, *device.MockDevice, *device.MockToolchain, *cache.MemStore) {
	t.Helper()
	dev := device.NewMockDevice("gfx90a")
	tc := device.NewMockToolchain()
	store := cache.NewMemStore()
	if cfg == nil {
		cfg = &cache.Config{}
	}
	rt, err := NewRuntime(dev, tc, RuntimeOptions{
		Config: cfg,
		Store:  store,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt, dev, tc, store
}

func stockhamPlanNode(length uint) *PlanNode {
	return &PlanNode{
		Scheme:    SchemeStockham,
		Length:    []uint{length},
		InStride:  []uint{1},
		OutStride: []uint{1},
		IDist:     length,
		ODist:     length,
		Batch:     4,
		Precision: PrecisionSingle,
		InType:    ArrayComplexInterleaved,
		OutType:   ArrayComplexInterleaved,
	}
}

func TestRuntimeCompileEndToEnd(t *testing.T) {
	t.Parallel()

	rt, dev, tc, store := testRuntime(t, nil)
	node := stockhamPlanNode(64)

	fut, err := rt.RuntimeCompile(node, false)
	if err != nil {
		t.Fatal(err)
	}
	if want := "fft_stockham_rtc_len64_fac16x4_dim1_sp_CI_CI"; fut.Name() != want {
		t.Errorf("future name = %q, want %q", fut.Name(), want)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	k, err := fut.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if k == nil {
		t.Fatal("expected a loaded kernel")
	}
	if k.Name() != fut.Name() {
		t.Errorf("kernel name %q, future name %q", k.Name(), fut.Name())
	}
	if tc.Compiles() != 1 {
		t.Errorf("first compile: %d native compiles, want 1", tc.Compiles())
	}
	if store.Len() != 1 {
		t.Errorf("first compile: %d cache entries, want 1", store.Len())
	}

	// the second request for the same node is served from the cache
	fut2, err := rt.RuntimeCompile(node, false)
	if err != nil {
		t.Fatal(err)
	}
	k2, err := fut2.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tc.Compiles() != 1 {
		t.Errorf("second compile: %d native compiles, want 1", tc.Compiles())
	}

	// both kernels launch with their generator geometry and packed args
	args, err := k2.BuildArgs(DeviceCallInfo{Twiddles: 0x100, BufIn: [2]uint64{0x200}, BufOut: [2]uint64{0x300}})
	if err != nil {
		t.Fatal(err)
	}
	if err := k2.Launch(args, LaunchConfig{}, dev.Limits()); err != nil {
		t.Fatal(err)
	}
	launches := dev.Launches()
	if len(launches) != 1 {
		t.Fatalf("%d launches recorded, want 1", len(launches))
	}
	if launches[0].Block != (Dim3{X: 256, Y: 1, Z: 1}) {
		t.Errorf("launch block = %v, want 256x1x1", launches[0].Block)
	}
}

func TestRuntimeCompileMetadataNode(t *testing.T) {
	t.Parallel()

	rt, _, tc, _ := testRuntime(t, nil)

	fut, err := rt.RuntimeCompile(&PlanNode{Scheme: SchemeNone}, false)
	if err != nil {
		t.Fatal(err)
	}
	k, err := fut.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if k != nil {
		t.Error("metadata-only nodes must resolve to a nil kernel")
	}
	if tc.Compiles() != 0 {
		t.Errorf("metadata-only node triggered %d compiles", tc.Compiles())
	}
}

func TestRuntimeCompilePrecompiledNode(t *testing.T) {
	t.Parallel()

	rt, _, tc, _ := testRuntime(t, nil)

	fut, err := rt.RuntimeCompile(stockhamPlanNode(8192), false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(fut.Name(), "fft_stockham_rtc_len8192") {
		t.Errorf("future name = %q", fut.Name())
	}
	k, err := fut.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if k != nil {
		t.Error("statically precompiled nodes resolve a name, not a kernel")
	}
	if tc.Compiles() != 0 {
		t.Errorf("precompiled node triggered %d compiles", tc.Compiles())
	}
}

func TestRuntimeCompileInvalidNode(t *testing.T) {
	t.Parallel()

	rt, _, _, _ := testRuntime(t, nil)

	// prime length outside every radix decomposition
	_, err := rt.RuntimeCompile(stockhamPlanNode(17), false)
	var serr *SpecError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *SpecError", err)
	}
	if serr.Scheme != SchemeStockham {
		t.Errorf("SpecError.Scheme = %v, want stockham", serr.Scheme)
	}
}

func TestRuntimeCompileOnlyMode(t *testing.T) {
	t.Parallel()

	rt, dev, tc, store := testRuntime(t, &cache.Config{CompileOnly: true})

	fut, err := rt.RuntimeCompile(stockhamPlanNode(64), false)
	if err != nil {
		t.Fatal(err)
	}
	k, err := fut.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if k != nil {
		t.Error("compile-only mode must not load a kernel")
	}
	if fut.Code() == nil {
		t.Error("compile-only mode must still yield the binary")
	}
	if tc.Compiles() != 1 {
		t.Errorf("%d native compiles, want 1", tc.Compiles())
	}
	if store.Len() != 1 {
		t.Errorf("%d cache entries, want 1", store.Len())
	}
	if len(dev.Launches()) != 0 {
		t.Error("compile-only mode must never touch the device")
	}
}

func TestRuntimeCompileFailure(t *testing.T) {
	t.Parallel()

	dev := device.NewMockDevice("gfx90a")
	tc := device.NewMockToolchain()
	tc.FailWith = errors.New("register spill")
	rt, err := NewRuntime(dev, tc, RuntimeOptions{
		Config: &cache.Config{},
		Store:  cache.NewMemStore(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	fut, err := rt.RuntimeCompile(stockhamPlanNode(64), false)
	if err != nil {
		t.Fatal(err)
	}
	_, err = fut.Wait(context.Background())
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *CompileError", err)
	}
}

func TestFutureWaitHonorsContext(t *testing.T) {
	t.Parallel()

	fut := newFuture("k")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fut.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if fut.Code() != nil {
		t.Error("Code must be nil before the future resolves")
	}
}

func TestFutureSharedBetweenWaiters(t *testing.T) {
	t.Parallel()

	rt, _, _, _ := testRuntime(t, nil)
	fut, err := rt.RuntimeCompile(stockhamPlanNode(64), false)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	k1, err1 := fut.Wait(ctx)
	k2, err2 := fut.Wait(ctx)
	if err1 != nil || err2 != nil {
		t.Fatal(err1, err2)
	}
	if k1 != k2 {
		t.Error("every waiter must observe the same kernel")
	}
}

func TestKernelName(t *testing.T) {
	t.Parallel()

	name, err := KernelName(stockhamPlanNode(64), false)
	if err != nil {
		t.Fatal(err)
	}
	if want := "fft_stockham_rtc_len64_fac16x4_dim1_sp_CI_CI"; name != want {
		t.Errorf("KernelName = %q, want %q", name, want)
	}

	name, err = KernelName(stockhamPlanNode(16384), false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(name, "fft_stockham_rtc_len16384") {
		t.Errorf("precompiled KernelName = %q", name)
	}

	name, err = KernelName(&PlanNode{Scheme: SchemeNone}, false)
	if err != nil {
		t.Fatal(err)
	}
	if name != "" {
		t.Errorf("metadata-only KernelName = %q, want empty", name)
	}

	if _, err := KernelName(stockhamPlanNode(17), false); err == nil {
		t.Error("invalid nodes must yield a SpecError")
	}
}

func TestGeneratorSumShape(t *testing.T) {
	t.Parallel()

	sum := GeneratorSum()
	if len(sum) != 64 {
		t.Errorf("GeneratorSum length = %d, want 64", len(sum))
	}
}
