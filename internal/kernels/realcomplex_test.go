package kernels

import (
	"strings"
	"testing"

	"github.com/cwbudde/algo-rtc/internal/fftypes"
)

func TestRealComplexSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		scheme fftypes.Scheme
		in     fftypes.ArrayType
		out    fftypes.ArrayType
		checks []string
	}{
		{
			fftypes.SchemeCopyRealToComplex,
			fftypes.ArrayReal, fftypes.ArrayComplexInterleaved,
			[]string{
				"real_type_t<scalar_type> * __restrict__ input",
				// runs at the start of a transform, so stores bypass the
				// store callback
				"output[outputIdx] = scalar_type{re, 0.0};",
			},
		},
		{
			fftypes.SchemeCopyComplexToHermitian,
			fftypes.ArrayComplexInterleaved, fftypes.ArrayHermitianInterleaved,
			[]string{
				// conjugate redundancy: only length0/2+1 elements move
				"if(idx_0 < (1 + (lengths0 / 2)))",
				"store_cb(output, outputIdx,",
			},
		},
		{
			fftypes.SchemeCopyComplexToReal,
			fftypes.ArrayComplexInterleaved, fftypes.ArrayReal,
			[]string{
				"real_type_t<scalar_type> * __restrict__ output",
				"store_cb(output, outputIdx, elem.x,",
			},
		},
	}
	for _, tt := range tests {
		spec := RealComplexSpec{SpecBase: specBase(tt.scheme, 1)}
		spec.InType = tt.in
		spec.OutType = tt.out
		name, err := RealComplexName(spec)
		if err != nil {
			t.Fatalf("%v: %v", tt.scheme, err)
		}
		src, err := RealComplexSource(name, spec)
		if err != nil {
			t.Fatalf("%v: %v", tt.scheme, err)
		}
		for _, want := range tt.checks {
			if !strings.Contains(src, want) {
				t.Errorf("%v: source missing %q", tt.scheme, want)
			}
		}
	}
}

func TestHermitianToComplexSource(t *testing.T) {
	t.Parallel()

	spec := RealComplexSpec{SpecBase: specBase(fftypes.SchemeCopyHermitianToComplex, 1)}
	spec.InType = fftypes.ArrayHermitianInterleaved
	name, err := RealComplexName(spec)
	if err != nil {
		t.Fatal(err)
	}
	src, err := RealComplexSource(name, spec)
	if err != nil {
		t.Fatal(err)
	}

	checks := []string{
		// the packed input size is an explicit argument and bounds the
		// thread allocation
		"const unsigned int hermitian_size",
		"idx_0 = global_idx % hermitian_size;",
		// DC and Nyquist write exactly once and return
		"if((is0 == 0) || ((is0 * 2) == lengths0))",
		// every other thread writes the element and its conjugate pair
		"if(is0 < hermitian_size)",
		"elem.y = -elem.y;",
		// index reflection for the conjugate half
		"(is0 == 0) ? 0 : (lengths0 - is0)",
	}
	for _, want := range checks {
		if !strings.Contains(src, want) {
			t.Errorf("herm2c source missing %q", want)
		}
	}

	// expansion writes bypass the store callback (never the last kernel)
	if strings.Contains(src, "store_cb(output") {
		t.Error("herm2c stores must be direct, not through the store callback")
	}
}

func TestHermitianToComplexPlanarOutput(t *testing.T) {
	t.Parallel()

	spec := RealComplexSpec{SpecBase: specBase(fftypes.SchemeCopyHermitianToComplex, 1)}
	spec.InType = fftypes.ArrayHermitianInterleaved
	spec.OutType = fftypes.ArrayComplexPlanar
	name, err := RealComplexName(spec)
	if err != nil {
		t.Fatal(err)
	}
	src, err := RealComplexSource(name, spec)
	if err != nil {
		t.Fatal(err)
	}

	// the direct-index expansion writes must split too, not only the
	// callback sites
	if !strings.Contains(src, "outputre[") || !strings.Contains(src, "outputim[") {
		t.Error("planar output must rewrite the direct-index conjugate writes")
	}
	if strings.Contains(src, "output[") {
		t.Error("complex direct-index write survived the planar rewrite")
	}
}

func TestRealComplexEvenSource(t *testing.T) {
	t.Parallel()

	r2c := RealComplexEvenSpec{SpecBase: specBase(fftypes.SchemeRealToComplexEven, 1)}
	r2c.OutType = fftypes.ArrayHermitianInterleaved
	name, err := RealComplexEvenName(r2c)
	if err != nil {
		t.Fatal(err)
	}
	src, err := RealComplexEvenSource(name, r2c)
	if err != nil {
		t.Fatal(err)
	}

	checks := []string{
		"static const bool Ndiv4 = false;",
		"const unsigned int half_N",
		// conjugate pair indices
		"idx_q = half_N - idx_p;",
		// the butterfly multiplies by the pth twiddle
		"twiddles[idx_p]",
		"__launch_bounds__(512)",
	}
	for _, want := range checks {
		if !strings.Contains(src, want) {
			t.Errorf("r2c even source missing %q", want)
		}
	}

	ndiv4 := r2c
	ndiv4.Ndiv4 = true
	name, err = RealComplexEvenName(ndiv4)
	if err != nil {
		t.Fatal(err)
	}
	srcNdiv4, err := RealComplexEvenSource(name, ndiv4)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(srcNdiv4, "static const bool Ndiv4 = true;") {
		t.Error("Ndiv4 specialization missing from the source")
	}
	if srcNdiv4 == src {
		t.Error("Ndiv4 variants must emit distinct source")
	}
}

func TestRealComplexEvenTransposeSource(t *testing.T) {
	t.Parallel()

	r2c := RealComplexEvenTransposeSpec{SpecBase: specBase(fftypes.SchemeRealToComplexEvenTranspose, 2)}
	name, err := RealComplexEvenTransposeName(r2c)
	if err != nil {
		t.Fatal(err)
	}
	src, err := RealComplexEvenTransposeSource(name, r2c)
	if err != nil {
		t.Fatal(err)
	}
	checks := []string{
		"__device__ unsigned int output_row_base(",
		"leftTile",
		"rightTile",
		"__syncthreads();",
	}
	for _, want := range checks {
		if !strings.Contains(src, want) {
			t.Errorf("fused r2c transpose source missing %q", want)
		}
	}

	c2r := RealComplexEvenTransposeSpec{SpecBase: specBase(fftypes.SchemeTransposeComplexToRealEven, 2)}
	name, err = RealComplexEvenTransposeName(c2r)
	if err != nil {
		t.Fatal(err)
	}
	srcC2R, err := RealComplexEvenTransposeSource(name, c2r)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(srcC2R, "output_row_base(") {
		t.Error("c2r direction must not emit the r2c row-base helper")
	}
}

func TestTransposeSource(t *testing.T) {
	t.Parallel()

	spec := TransposeSpec{SpecBase: specBase(fftypes.SchemeTranspose, 2), TileX: 64, TileY: 16}
	name, err := TransposeName(spec)
	if err != nil {
		t.Fatal(err)
	}
	src, err := TransposeSource(name, spec)
	if err != nil {
		t.Fatal(err)
	}
	checks := []string{
		"__shared__ scalar_type lds[64][64];",
		"__launch_bounds__(1024)",
		"__syncthreads();",
		"typedef scalar_type T;",
	}
	for _, want := range checks {
		if !strings.Contains(src, want) {
			t.Errorf("transpose source missing %q", want)
		}
	}
	if strings.Contains(src, "algortc_large_twiddles.h") {
		t.Error("unfused transpose must not pull in the large-twiddle header")
	}

	fused := spec
	fused.LargeTwdSteps = 3
	fused.LargeTwdDirection = -1
	name, err = TransposeName(fused)
	if err != nil {
		t.Fatal(err)
	}
	srcFused, err := TransposeSource(name, fused)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(srcFused, "algortc_large_twiddles.h") {
		t.Error("fused transpose must include the large-twiddle header")
	}
	if !strings.Contains(srcFused, "TWIDDLE_STEP_MUL_FWD") {
		t.Error("forward fusion must emit the forward twiddle macro")
	}

	bad := spec
	bad.TileY = 24 // does not divide the tile width
	if _, err := TransposeSource(name, bad); err == nil {
		t.Error("non-integral elements per thread must be rejected")
	}
}

func TestBluesteinSingleSource(t *testing.T) {
	t.Parallel()

	spec := BluesteinSingleSpec{
		SpecBase:  specBase(fftypes.SchemeBluesteinSingle, 1),
		Length:    17,
		Direction: -1,
	}
	name, err := BluesteinSingleName(spec)
	if err != nil {
		t.Fatal(err)
	}
	src, err := BluesteinSingleSource(name, spec)
	if err != nil {
		t.Fatal(err)
	}
	checks := []string{
		"static const double dft_phase_step = -6.283185307179586476925286766559 / 17.0;",
		"__shared__ scalar_type lds[17];",
		// phase index reduced mod N before the float conversion
		"(double)((unsigned long long)n * k % 17)",
	}
	for _, want := range checks {
		if !strings.Contains(src, want) {
			t.Errorf("bluestein single source missing %q", want)
		}
	}

	inverse := spec
	inverse.Direction = 1
	name, err = BluesteinSingleName(inverse)
	if err != nil {
		t.Fatal(err)
	}
	srcInv, err := BluesteinSingleSource(name, inverse)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(srcInv, "dft_phase_step = 6.2831853") {
		t.Error("inverse direction must flip the phase sign")
	}
}

func TestBluesteinMultiSource(t *testing.T) {
	t.Parallel()

	base := func(scheme fftypes.Scheme) BluesteinMultiSpec {
		return BluesteinMultiSpec{
			SpecBase:  specBase(scheme, 1),
			Length:    100,
			LengthPad: 256,
			Direction: -1,
		}
	}

	chirp := base(fftypes.SchemeBluesteinChirp)
	name, err := BluesteinMultiName(chirp)
	if err != nil {
		t.Fatal(err)
	}
	src, err := BluesteinMultiSource(name, chirp)
	if err != nil {
		t.Fatal(err)
	}
	checks := []string{
		"static const double chirp_pi_over_n = -3.1415926535897932384626433832795 / 100.0;",
		// i^2 reduced mod 2N keeps precision for large indices
		"(double)((unsigned long long)i * i % 200)",
		// conjugate copy in the upper half of the table
		"chirp[i + 256]",
	}
	for _, want := range checks {
		if !strings.Contains(src, want) {
			t.Errorf("chirp source missing %q", want)
		}
	}

	fftMul := base(fftypes.SchemeBluesteinFFTMul)
	name, err = BluesteinMultiName(fftMul)
	if err != nil {
		t.Fatal(err)
	}
	src, err = BluesteinMultiSource(name, fftMul)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(src, "static const double pad_scale = 1.0 / 256.0;") {
		t.Error("fft_mul must fold the 1/M convolution scale into the source")
	}

	resMul := base(fftypes.SchemeBluesteinResMul)
	name, err = BluesteinMultiName(resMul)
	if err != nil {
		t.Fatal(err)
	}
	src, err = BluesteinMultiSource(name, resMul)
	if err != nil {
		t.Fatal(err)
	}
	// the final stage is the last write of the transform and must honor
	// the store callback
	if !strings.Contains(src, "store_cb(output,") {
		t.Error("res_mul must store through the store callback")
	}
}
