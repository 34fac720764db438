package kernels

import (
	"strings"
	"testing"

	"github.com/cwbudde/algo-rtc/internal/fftypes"
)

func stockhamNode(length uint) *fftypes.PlanNode {
	return &fftypes.PlanNode{
		Scheme:    fftypes.SchemeStockham,
		Length:    []uint{length},
		InStride:  []uint{1},
		OutStride: []uint{1},
		IDist:     length,
		ODist:     length,
		Batch:     8,
		Precision: fftypes.PrecisionSingle,
		InType:    fftypes.ArrayComplexInterleaved,
		OutType:   fftypes.ArrayComplexInterleaved,
	}
}

func TestFromNodeNone(t *testing.T) {
	t.Parallel()

	sel, err := FromNode(&fftypes.PlanNode{Scheme: fftypes.SchemeNone}, false)
	if err != nil {
		t.Fatal(err)
	}
	if sel.State != SelectionNone {
		t.Errorf("metadata-only node: state = %v, want SelectionNone", sel.State)
	}
}

func TestFromNodeStockham(t *testing.T) {
	t.Parallel()

	sel, err := FromNode(stockhamNode(64), false)
	if err != nil {
		t.Fatal(err)
	}
	if sel.State != SelectionApplicable {
		t.Fatalf("state = %v, want SelectionApplicable", sel.State)
	}
	gen := sel.Generator
	if want := "fft_stockham_rtc_len64_fac16x4_dim1_sp_CI_CI"; gen.Name != want {
		t.Errorf("name = %q, want %q", gen.Name, want)
	}
	if gen.BlockDim != (fftypes.Dim3{X: 256, Y: 1, Z: 1}) {
		t.Errorf("block = %v, want 256x1x1", gen.BlockDim)
	}
	// 8 batches, 16 transforms per block
	if gen.GridDim != (fftypes.Dim3{X: 1, Y: 1, Z: 1}) {
		t.Errorf("grid = %v, want 1x1x1", gen.GridDim)
	}

	src, err := gen.Source()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(src, "void "+gen.Name+"(") {
		t.Error("emitted source must define the entry point under the kernel name")
	}
}

func TestFromNodePrecompiled(t *testing.T) {
	t.Parallel()

	for _, length := range []uint{8192, 16384} {
		sel, err := FromNode(stockhamNode(length), false)
		if err != nil {
			t.Fatal(err)
		}
		if sel.State != SelectionPrecompiled {
			t.Fatalf("len %d: state = %v, want SelectionPrecompiled", length, sel.State)
		}
		if sel.Generator != nil {
			t.Errorf("len %d: precompiled selection must carry no generator", length)
		}
		if !strings.HasPrefix(sel.PrecompiledName, "fft_stockham_rtc_len") {
			t.Errorf("len %d: precompiled name = %q", length, sel.PrecompiledName)
		}
	}
}

func TestFromNodeStockhamErrors(t *testing.T) {
	t.Parallel()

	// prime length beyond the butterfly radices
	if _, err := FromNode(stockhamNode(17), false); err == nil {
		t.Error("length 17 must be rejected; it belongs to the bluestein path")
	}

	node := stockhamNode(64)
	node.Length = []uint{64, 64}
	if _, err := FromNode(node, false); err == nil {
		t.Error("multi-dimensional stockham nodes must be rejected")
	}
}

func TestFromNodeUnknownScheme(t *testing.T) {
	t.Parallel()

	node := stockhamNode(64)
	node.Scheme = fftypes.Scheme(200)
	if _, err := FromNode(node, false); err == nil {
		t.Error("unknown schemes must be rejected")
	}
}

func TestFromNodeCallbackGating(t *testing.T) {
	t.Parallel()

	node := stockhamNode(64)
	node.Callback = fftypes.CallbackLoadStore

	sel, err := FromNode(node, false)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(sel.Generator.Name, "_CB") {
		t.Errorf("callbacks disabled: name %q must not carry the callback suffix", sel.Generator.Name)
	}

	sel, err = FromNode(node, true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(sel.Generator.Name, "_CB") {
		t.Errorf("callbacks enabled: name %q must carry the callback suffix", sel.Generator.Name)
	}
}

func TestFromNodeArgBufferLayout(t *testing.T) {
	t.Parallel()

	sel, err := FromNode(stockhamNode(64), false)
	if err != nil {
		t.Fatal(err)
	}
	info := fftypes.DeviceCallInfo{
		BufIn:    [2]uint64{0x1000, 0},
		BufOut:   [2]uint64{0x2000, 0},
		Twiddles: 0x3000,
	}
	args := sel.Generator.BuildArgs(info)

	// twiddles ptr (8) + five u32 (20) + pad (4) + in ptr (8) + out ptr
	// (8) + callback block (8+8+4+pad4+8+8)
	if want := 88; args.Size() != want {
		t.Errorf("packed args = %d bytes, want %d", args.Size(), want)
	}

	// planar output adds exactly one more pointer
	node := stockhamNode(64)
	node.OutType = fftypes.ArrayComplexPlanar
	sel2, err := FromNode(node, false)
	if err != nil {
		t.Fatal(err)
	}
	planarArgs := sel2.Generator.BuildArgs(info)
	if want := args.Size() + 8; planarArgs.Size() != want {
		t.Errorf("planar packed args = %d bytes, want %d", planarArgs.Size(), want)
	}
}

func TestFromNodeTranspose(t *testing.T) {
	t.Parallel()

	node := &fftypes.PlanNode{
		Scheme:    fftypes.SchemeTranspose,
		Length:    []uint{128, 128},
		InStride:  []uint{1, 128},
		OutStride: []uint{1, 128},
		IDist:     128 * 128,
		ODist:     128 * 128,
		Batch:     4,
		Precision: fftypes.PrecisionSingle,
		InType:    fftypes.ArrayComplexInterleaved,
		OutType:   fftypes.ArrayComplexInterleaved,
	}
	sel, err := FromNode(node, false)
	if err != nil {
		t.Fatal(err)
	}
	gen := sel.Generator
	if !strings.Contains(gen.Name, "_aligned") {
		t.Errorf("128x128 is tile aligned, name = %q", gen.Name)
	}
	if gen.GridDim != (fftypes.Dim3{X: 2, Y: 2, Z: 4}) {
		t.Errorf("grid = %v, want 2x2x4", gen.GridDim)
	}
	if gen.BlockDim != (fftypes.Dim3{X: 64, Y: 16, Z: 1}) {
		t.Errorf("block = %v, want 64x16x1", gen.BlockDim)
	}

	node.Length = []uint{100, 100}
	sel, err = FromNode(node, false)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(sel.Generator.Name, "_aligned") {
		t.Errorf("100x100 is not tile aligned, name = %q", sel.Generator.Name)
	}
}

func TestFromNodeRealComplexEven(t *testing.T) {
	t.Parallel()

	// r2c post-processing after a half-length transform of 64: N = 128,
	// N/4 pairs with itself
	node := &fftypes.PlanNode{
		Scheme:    fftypes.SchemeRealToComplexEven,
		Length:    []uint{64},
		InStride:  []uint{1},
		OutStride: []uint{1},
		IDist:     64,
		ODist:     65,
		Batch:     1,
		Precision: fftypes.PrecisionSingle,
		InType:    fftypes.ArrayComplexInterleaved,
		OutType:   fftypes.ArrayHermitianInterleaved,
	}
	sel, err := FromNode(node, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sel.Generator.Name, "_Ndiv4") {
		t.Errorf("half length 64 must select the Ndiv4 variant, name = %q", sel.Generator.Name)
	}
}

func TestFromNodeBluestein(t *testing.T) {
	t.Parallel()

	node := stockhamNode(17)
	node.Scheme = fftypes.SchemeBluesteinSingle
	node.Direction = -1
	sel, err := FromNode(node, false)
	if err != nil {
		t.Fatal(err)
	}
	if want := "bluestein_single_rtc_len17_fwd_dim1_sp_CI_CI"; sel.Generator.Name != want {
		t.Errorf("name = %q, want %q", sel.Generator.Name, want)
	}
	if sel.Generator.GridDim.X != 8 {
		t.Errorf("one transform per block: grid.X = %d, want batch 8", sel.Generator.GridDim.X)
	}

	// above the single-kernel cap the selector must refuse
	big := stockhamNode(1000)
	big.Scheme = fftypes.SchemeBluesteinSingle
	if _, err := FromNode(big, false); err == nil {
		t.Error("single-kernel bluestein beyond the cap must be rejected")
	}

	// chirp table setup is batch-independent
	chirp := stockhamNode(100)
	chirp.Scheme = fftypes.SchemeBluesteinChirp
	sel, err = FromNode(chirp, false)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Generator.GridDim.Y != 1 {
		t.Errorf("chirp grid.Y = %d, want 1", sel.Generator.GridDim.Y)
	}
	// pad 256, block 256
	if sel.Generator.GridDim.X != 1 {
		t.Errorf("chirp grid.X = %d, want 1", sel.Generator.GridDim.X)
	}
}

func TestBluesteinPadLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		length uint
		want   uint
	}{
		{2, 4},
		{17, 64},
		{100, 256},
		{129, 512},
		{1000, 2048},
	}
	for _, tt := range tests {
		if got := BluesteinPadLength(tt.length); got != tt.want {
			t.Errorf("BluesteinPadLength(%d) = %d, want %d", tt.length, got, tt.want)
		}
	}
}

func TestFromNodeSourceMatchesName(t *testing.T) {
	t.Parallel()

	// every runtime-generated family: the emitted entry point must be the
	// kernel name, since module loading resolves the symbol by name
	nodes := []*fftypes.PlanNode{
		stockhamNode(64),
		{
			Scheme:    fftypes.SchemeTranspose,
			Length:    []uint{64, 32},
			InStride:  []uint{1, 64},
			OutStride: []uint{1, 32},
			IDist:     2048,
			ODist:     2048,
			Batch:     1,
			InType:    fftypes.ArrayComplexInterleaved,
			OutType:   fftypes.ArrayComplexInterleaved,
		},
		{
			Scheme:    fftypes.SchemeCopyRealToComplex,
			Length:    []uint{64},
			InStride:  []uint{1},
			OutStride: []uint{1},
			IDist:     64,
			ODist:     64,
			Batch:     1,
			InType:    fftypes.ArrayReal,
			OutType:   fftypes.ArrayComplexInterleaved,
		},
		{
			Scheme:    fftypes.SchemeRealToComplexEven,
			Length:    []uint{32},
			InStride:  []uint{1},
			OutStride: []uint{1},
			IDist:     32,
			ODist:     33,
			Batch:     1,
			InType:    fftypes.ArrayComplexInterleaved,
			OutType:   fftypes.ArrayHermitianInterleaved,
		},
		{
			Scheme:    fftypes.SchemeBluesteinPadMul,
			Length:    []uint{17},
			InStride:  []uint{1},
			OutStride: []uint{1},
			IDist:     17,
			ODist:     64,
			Batch:     1,
			Direction: -1,
			InType:    fftypes.ArrayComplexInterleaved,
			OutType:   fftypes.ArrayComplexInterleaved,
		},
	}
	for _, node := range nodes {
		sel, err := FromNode(node, false)
		if err != nil {
			t.Fatalf("%v: %v", node.Scheme, err)
		}
		src, err := sel.Generator.Source()
		if err != nil {
			t.Fatalf("%v: %v", node.Scheme, err)
		}
		if !strings.Contains(src, "void "+sel.Generator.Name+"(") {
			t.Errorf("%v: source does not define entry point %q", node.Scheme, sel.Generator.Name)
		}
		if !strings.HasPrefix(src, "// generated by algo-rtc") {
			t.Errorf("%v: source missing the generated-file banner", node.Scheme)
		}
	}
}
