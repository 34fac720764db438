package kernels

import (
	"strconv"

	"github.com/cwbudde/algo-rtc/internal/fftypes"
	gen "github.com/cwbudde/algo-rtc/internal/generator"
)

// bluesteinBlockSize is the work-group size for the pointwise Bluestein
// kernels and the single-kernel small-length path.
const bluesteinBlockSize = 256

// maxBluesteinSingleLength bounds the single-kernel path; above this the
// multi-kernel chirp convolution takes over.
const maxBluesteinSingleLength = 256

func bluesteinDirName(direction int) string {
	if direction == -1 {
		return "_fwd"
	}
	return "_back"
}

// BluesteinSingleName derives the kernel name for a single-kernel
// Bluestein spec.
func BluesteinSingleName(spec BluesteinSingleSpec) (string, error) {
	if spec.Scheme != fftypes.SchemeBluesteinSingle {
		return "", invalidScheme("bluestein single", spec.Scheme)
	}
	name := "bluestein_single_rtc_len" + strconv.FormatUint(uint64(spec.Length), 10)
	name += bluesteinDirName(spec.Direction)
	name += "_dim" + strconv.Itoa(spec.Dim)
	return name + spec.nameSuffix(), nil
}

// BluesteinSingleSource emits a one-kernel transform for small arbitrary
// lengths: the input is staged into LDS and each thread evaluates one
// output point of the DFT sum with on-the-fly twiddles.  Quadratic in
// length, which is why the selector caps it.
func BluesteinSingleSource(name string, spec BluesteinSingleSpec) (string, error) {
	if spec.Scheme != fftypes.SchemeBluesteinSingle {
		return "", invalidScheme("bluestein single", spec.Scheme)
	}
	length := spec.Length

	src := spec.declarations(true)

	// forward transform rotates clockwise
	sign := "-"
	if spec.Direction != -1 {
		sign = ""
	}
	src += "static const double dft_phase_step = " + sign + "6.283185307179586476925286766559 / " +
		strconv.FormatUint(uint64(length), 10) + ".0;\n"

	ntransforms := gen.Variable{Name: "ntransforms", Type: "const unsigned int"}
	strideIn0 := gen.Variable{Name: "stride_in0", Type: "const unsigned int"}
	idist := gen.Variable{Name: "idist", Type: "const unsigned int"}
	strideOut0 := gen.Variable{Name: "stride_out0", Type: "const unsigned int"}
	odist := gen.Variable{Name: "odist", Type: "const unsigned int"}
	input := gen.Variable{Name: "input", Type: "scalar_type", Pointer: true, Restrict: true}
	output := gen.Variable{Name: "output", Type: "scalar_type", Pointer: true, Restrict: true}

	fn := gen.Function{
		Name:         name,
		Qualifier:    `extern "C" __global__`,
		LaunchBounds: bluesteinBlockSize,
	}
	fn.Args = append(fn.Args, ntransforms, strideIn0, idist, strideOut0, odist, input, output)
	fn.Args = append(fn.Args, gen.CallbackArgs()...)

	lds := gen.Variable{Name: "lds", Type: "__shared__ scalar_type", Size: gen.Int(length)}
	fn.Body.Add(gen.Decl{Var: lds})

	k := gen.Variable{Name: "k", Type: "const unsigned int"}
	transform := gen.Variable{Name: "transform", Type: "const unsigned int"}
	fn.Body.Add(gen.CommentLines{"one transform per block, one output point per thread"})
	fn.Body.Add(gen.Decl{Var: k, Init: gen.Literal("threadIdx.x")})
	fn.Body.Add(gen.Decl{Var: transform, Init: gen.Literal("blockIdx.x")})

	batchGuard := gen.If{Cond: gen.Ge(transform, ntransforms)}
	batchGuard.Then.Add(gen.Return{})
	fn.Body.Add(batchGuard)

	offsetIn := gen.Variable{Name: "offset_in", Type: "const unsigned int"}
	offsetOut := gen.Variable{Name: "offset_out", Type: "const unsigned int"}
	fn.Body.Add(gen.Decl{Var: offsetIn, Init: gen.Mul(transform, idist)})
	fn.Body.Add(gen.Decl{Var: offsetOut, Init: gen.Mul(transform, odist)})

	fn.Body.Add(gen.CallbackLoadDecl("scalar_type"))
	fn.Body.Add(gen.CallbackStoreDecl("scalar_type"))

	loadGuard := gen.If{Cond: gen.Lt(k, gen.Int(length))}
	loadGuard.Then.Add(gen.Assign{
		LHS: lds.Index(k),
		RHS: gen.LoadGlobal{Ptr: input, Idx: gen.Add(offsetIn, gen.Mul(k, strideIn0))}})
	fn.Body.Add(loadGuard)
	fn.Body.Add(gen.SyncThreads{})

	acc := gen.Variable{Name: "acc", Type: "scalar_type"}
	elem := gen.Variable{Name: "elem", Type: "scalar_type"}
	phase := gen.Variable{Name: "phase", Type: "const double"}
	c := gen.Variable{Name: "c", Type: "const real_type_t<scalar_type>"}
	s := gen.Variable{Name: "s", Type: "const real_type_t<scalar_type>"}
	n := gen.Variable{Name: "n", Type: "unsigned int"}

	sumGuard := gen.If{Cond: gen.Lt(k, gen.Int(length))}
	sumGuard.Then.Add(gen.Decl{Var: acc, Init: gen.ComplexLiteral{Re: gen.Literal("0.0"), Im: gen.Literal("0.0")}})

	sumLoop := gen.For{Var: n, Init: gen.Int(0), Cond: gen.Lt(n, gen.Int(length)), Inc: gen.Int(1)}
	sumLoop.Body.Add(gen.Decl{Var: phase,
		Init: gen.Mul(gen.Literal("dft_phase_step"),
			gen.Literal("(double)((unsigned long long)n * k % "+strconv.FormatUint(uint64(length), 10)+")"))})
	sumLoop.Body.Add(gen.Decl{Var: c, Init: gen.CallExpr{Name: "cos", Args: []gen.Expr{phase}}})
	sumLoop.Body.Add(gen.Decl{Var: s, Init: gen.CallExpr{Name: "sin", Args: []gen.Expr{phase}}})
	sumLoop.Body.Add(gen.Decl{Var: elem, Init: lds.Index(n)})
	sumLoop.Body.Add(gen.AddAssign{LHS: acc.X(),
		RHS: gen.Sub(gen.Mul(elem.X(), c), gen.Mul(elem.Y(), s))})
	sumLoop.Body.Add(gen.AddAssign{LHS: acc.Y(),
		RHS: gen.Add(gen.Mul(elem.X(), s), gen.Mul(elem.Y(), c))})
	sumGuard.Then.Add(sumLoop)

	sumGuard.Then.Add(gen.StoreGlobal{
		Ptr: output,
		Idx: gen.Add(offsetOut, gen.Mul(k, strideOut0)),
		Val: acc})
	fn.Body.Add(sumGuard)

	return renderWithLayouts(src, fn, spec.SpecBase)
}

// BluesteinMultiName derives the kernel name for one stage of the
// multi-kernel Bluestein path.
func BluesteinMultiName(spec BluesteinMultiSpec) (string, error) {
	var name string
	switch spec.Scheme {
	case fftypes.SchemeBluesteinChirp:
		name = "bluestein_chirp_rtc"
	case fftypes.SchemeBluesteinPadMul:
		name = "bluestein_pad_mul_rtc"
	case fftypes.SchemeBluesteinFFTMul:
		name = "bluestein_fft_mul_rtc"
	case fftypes.SchemeBluesteinResMul:
		name = "bluestein_res_mul_rtc"
	default:
		return "", invalidScheme("bluestein multi", spec.Scheme)
	}
	name += "_len" + strconv.FormatUint(uint64(spec.Length), 10)
	name += "_pad" + strconv.FormatUint(uint64(spec.LengthPad), 10)
	name += bluesteinDirName(spec.Direction)
	name += "_dim" + strconv.Itoa(spec.Dim)
	return name + spec.nameSuffix(), nil
}

// BluesteinMultiSource emits one pointwise stage of the chirp-convolution
// Bluestein path.  The chirp stage fills the chirp table; pad_mul,
// fft_mul, and res_mul are elementwise complex multiplies against it,
// with zero-padding and 1/M scaling where the convolution needs them.
func BluesteinMultiSource(name string, spec BluesteinMultiSpec) (string, error) {
	length := spec.Length
	lengthPad := spec.LengthPad

	src := spec.declarations(true)

	// chirp phase: pi * i^2 / N, reduced mod 2N before the divide so
	// large indices keep full precision
	sign := "-"
	if spec.Direction != -1 {
		sign = ""
	}
	src += "static const double chirp_pi_over_n = " + sign + "3.1415926535897932384626433832795 / " +
		strconv.FormatUint(uint64(length), 10) + ".0;\n"

	chirp := gen.Variable{Name: "chirp", Type: "scalar_type", Pointer: true, Restrict: true}
	ntransforms := gen.Variable{Name: "ntransforms", Type: "const unsigned int"}
	strideIn0 := gen.Variable{Name: "stride_in0", Type: "const unsigned int"}
	idist := gen.Variable{Name: "idist", Type: "const unsigned int"}
	strideOut0 := gen.Variable{Name: "stride_out0", Type: "const unsigned int"}
	odist := gen.Variable{Name: "odist", Type: "const unsigned int"}
	input := gen.Variable{Name: "input", Type: "scalar_type", Pointer: true, Restrict: true}
	output := gen.Variable{Name: "output", Type: "scalar_type", Pointer: true, Restrict: true}

	fn := gen.Function{
		Name:         name,
		Qualifier:    `extern "C" __global__`,
		LaunchBounds: bluesteinBlockSize,
	}
	isChirp := spec.Scheme == fftypes.SchemeBluesteinChirp
	if isChirp {
		fn.Args = append(fn.Args, chirp)
	} else {
		fn.Args = append(fn.Args, chirp, ntransforms, strideIn0, idist, strideOut0, odist, input, output)
	}
	fn.Args = append(fn.Args, gen.CallbackArgs()...)

	i := gen.Variable{Name: "i", Type: "const unsigned int"}
	fn.Body.Add(gen.Decl{Var: i, Init: gen.Literal("blockIdx.x * blockDim.x + threadIdx.x")})

	switch spec.Scheme {
	case fftypes.SchemeBluesteinChirp:
		// chirp[0..M) holds a_i (zero-padded past N);
		// chirp[M..2M) holds conj(a_i) for the final unwind
		phase := gen.Variable{Name: "phase", Type: "const double"}
		val := gen.Variable{Name: "val", Type: "scalar_type"}
		guard := gen.If{Cond: gen.Lt(i, gen.Int(lengthPad))}
		guard.Then.Add(gen.Decl{Var: val})
		inRange := gen.If{Cond: gen.Lt(i, gen.Int(length))}
		inRange.Then.Add(gen.Decl{Var: phase,
			Init: gen.Mul(gen.Literal("chirp_pi_over_n"),
				gen.Literal("(double)((unsigned long long)i * i % "+
					strconv.FormatUint(uint64(2*length), 10)+")"))})
		inRange.Then.Add(gen.Assign{LHS: val.X(), RHS: gen.CallExpr{Name: "cos", Args: []gen.Expr{phase}}})
		inRange.Then.Add(gen.Assign{LHS: val.Y(), RHS: gen.CallExpr{Name: "sin", Args: []gen.Expr{phase}}})
		inRange.Else.Add(gen.Assign{LHS: val, RHS: gen.ComplexLiteral{Re: gen.Literal("0.0"), Im: gen.Literal("0.0")}})
		guard.Then.Add(inRange)
		guard.Then.Add(gen.Assign{LHS: chirp.Index(i), RHS: val})
		conj := gen.Variable{Name: "conj_val", Type: "scalar_type"}
		guard.Then.Add(gen.Decl{Var: conj})
		guard.Then.Add(gen.Assign{LHS: conj.X(), RHS: val.X()})
		guard.Then.Add(gen.Assign{LHS: conj.Y(), RHS: gen.Neg{Of: val.Y()}})
		guard.Then.Add(gen.Assign{LHS: chirp.Index(gen.Add(i, gen.Int(lengthPad))), RHS: conj})
		fn.Body.Add(guard)

	case fftypes.SchemeBluesteinPadMul:
		// y_i = x_i * conj-chirp a_i for i < N, zero up to M
		transform := gen.Variable{Name: "transform", Type: "const unsigned int"}
		fn.Body.Add(gen.Decl{Var: transform, Init: gen.Literal("blockIdx.y")})
		batchGuard := gen.If{Cond: gen.Ge(transform, ntransforms)}
		batchGuard.Then.Add(gen.Return{})
		fn.Body.Add(batchGuard)
		fn.Body.Add(gen.CallbackLoadDecl("scalar_type"))
		fn.Body.Add(gen.CallbackStoreDecl("scalar_type"))

		a := gen.Variable{Name: "a", Type: "scalar_type"}
		x := gen.Variable{Name: "x", Type: "scalar_type"}
		out := gen.Variable{Name: "out", Type: "scalar_type"}
		guard := gen.If{Cond: gen.Lt(i, gen.Int(lengthPad))}
		guard.Then.Add(gen.Decl{Var: out})
		inRange := gen.If{Cond: gen.Lt(i, gen.Int(length))}
		inRange.Then.Add(gen.Decl{Var: a, Init: chirp.Index(gen.Add(i, gen.Int(lengthPad)))})
		inRange.Then.Add(gen.Decl{Var: x})
		inRange.Then.Add(gen.Assign{LHS: x,
			RHS: gen.LoadGlobal{Ptr: input,
				Idx: gen.Add(gen.Mul(transform, idist), gen.Mul(i, strideIn0))}})
		inRange.Then.Add(gen.Assign{LHS: out.X(), RHS: gen.Sub(gen.Mul(x.X(), a.X()), gen.Mul(x.Y(), a.Y()))})
		inRange.Then.Add(gen.Assign{LHS: out.Y(), RHS: gen.Add(gen.Mul(x.X(), a.Y()), gen.Mul(x.Y(), a.X()))})
		inRange.Else.Add(gen.Assign{LHS: out, RHS: gen.ComplexLiteral{Re: gen.Literal("0.0"), Im: gen.Literal("0.0")}})
		guard.Then.Add(inRange)
		guard.Then.Add(gen.Assign{
			LHS: output.Index(gen.Add(gen.Mul(transform, odist), gen.Mul(i, strideOut0))),
			RHS: out})
		fn.Body.Add(guard)

	case fftypes.SchemeBluesteinFFTMul:
		// pointwise convolution product, scaled by 1/M for the inverse
		// transform that follows
		transform := gen.Variable{Name: "transform", Type: "const unsigned int"}
		fn.Body.Add(gen.Decl{Var: transform, Init: gen.Literal("blockIdx.y")})
		batchGuard := gen.If{Cond: gen.Ge(transform, ntransforms)}
		batchGuard.Then.Add(gen.Return{})
		fn.Body.Add(batchGuard)

		src += "static const double pad_scale = 1.0 / " + strconv.FormatUint(uint64(lengthPad), 10) + ".0;\n"

		b := gen.Variable{Name: "b", Type: "scalar_type"}
		x := gen.Variable{Name: "x", Type: "scalar_type"}
		out := gen.Variable{Name: "out", Type: "scalar_type"}
		guard := gen.If{Cond: gen.Lt(i, gen.Int(lengthPad))}
		guard.Then.Add(gen.Decl{Var: b, Init: chirp.Index(i)})
		guard.Then.Add(gen.Decl{Var: x,
			Init: input.Index(gen.Add(gen.Mul(transform, idist), gen.Mul(i, strideIn0)))})
		guard.Then.Add(gen.Decl{Var: out})
		guard.Then.Add(gen.Assign{LHS: out.X(),
			RHS: gen.Mul(gen.Literal("pad_scale"), gen.Paren{Of: gen.Sub(gen.Mul(x.X(), b.X()), gen.Mul(x.Y(), b.Y()))})})
		guard.Then.Add(gen.Assign{LHS: out.Y(),
			RHS: gen.Mul(gen.Literal("pad_scale"), gen.Paren{Of: gen.Add(gen.Mul(x.X(), b.Y()), gen.Mul(x.Y(), b.X()))})})
		guard.Then.Add(gen.Assign{
			LHS: output.Index(gen.Add(gen.Mul(transform, odist), gen.Mul(i, strideOut0))),
			RHS: out})
		fn.Body.Add(guard)

	case fftypes.SchemeBluesteinResMul:
		// final unwind: multiply by conj-chirp and store the N results
		transform := gen.Variable{Name: "transform", Type: "const unsigned int"}
		fn.Body.Add(gen.Decl{Var: transform, Init: gen.Literal("blockIdx.y")})
		batchGuard := gen.If{Cond: gen.Ge(transform, ntransforms)}
		batchGuard.Then.Add(gen.Return{})
		fn.Body.Add(batchGuard)
		fn.Body.Add(gen.CallbackLoadDecl("scalar_type"))
		fn.Body.Add(gen.CallbackStoreDecl("scalar_type"))

		a := gen.Variable{Name: "a", Type: "scalar_type"}
		x := gen.Variable{Name: "x", Type: "scalar_type"}
		out := gen.Variable{Name: "out", Type: "scalar_type"}
		guard := gen.If{Cond: gen.Lt(i, gen.Int(length))}
		guard.Then.Add(gen.Decl{Var: a, Init: chirp.Index(gen.Add(i, gen.Int(lengthPad)))})
		guard.Then.Add(gen.Decl{Var: x,
			Init: input.Index(gen.Add(gen.Mul(transform, idist), gen.Mul(i, strideIn0)))})
		guard.Then.Add(gen.Decl{Var: out})
		guard.Then.Add(gen.Assign{LHS: out.X(), RHS: gen.Sub(gen.Mul(x.X(), a.X()), gen.Mul(x.Y(), a.Y()))})
		guard.Then.Add(gen.Assign{LHS: out.Y(), RHS: gen.Add(gen.Mul(x.X(), a.Y()), gen.Mul(x.Y(), a.X()))})
		guard.Then.Add(gen.StoreGlobal{
			Ptr: output,
			Idx: gen.Add(gen.Mul(transform, odist), gen.Mul(i, strideOut0)),
			Val: out})
		fn.Body.Add(guard)

	default:
		return "", invalidScheme("bluestein multi", spec.Scheme)
	}

	return renderWithLayouts(src, fn, spec.SpecBase)
}
