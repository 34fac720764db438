package kernels

import (
	"strconv"

	"github.com/cwbudde/algo-rtc/internal/fftypes"
	gen "github.com/cwbudde/algo-rtc/internal/generator"
)

// RealComplexEvenName derives the kernel name for an even-length real
// transform post/pre-processing spec.
func RealComplexEvenName(spec RealComplexEvenSpec) (string, error) {
	var name string
	switch spec.Scheme {
	case fftypes.SchemeRealToComplexEven:
		name = "r2c_even_post"
	case fftypes.SchemeComplexToRealEven:
		name = "c2r_even_pre"
	default:
		return "", invalidScheme("realcomplex even", spec.Scheme)
	}
	if spec.Ndiv4 {
		name += "_Ndiv4"
	}
	name += "_dim" + strconv.Itoa(spec.Dim)
	return name + spec.nameSuffix(), nil
}

// RealComplexEvenSource emits the butterfly kernel that turns a
// half-length complex transform into an even-length real transform (post)
// or back (pre).  Each thread handles the conjugate pair (p, half_N-p);
// when the length is divisible by four the quarter index pairs with
// itself and is handled by the thread for index zero.
func RealComplexEvenSource(name string, spec RealComplexEvenSpec) (string, error) {
	isR2C := spec.Scheme == fftypes.SchemeRealToComplexEven
	if !isR2C && spec.Scheme != fftypes.SchemeComplexToRealEven {
		return "", invalidScheme("realcomplex even", spec.Scheme)
	}

	src := spec.declarations(true)
	if spec.Ndiv4 {
		src += "static const bool Ndiv4 = true;\n"
	} else {
		src += "static const bool Ndiv4 = false;\n"
	}
	src += "// Each thread handles 2 points.\n"
	src += "// When N is divisible by 4, one value is handled separately; this is controlled by Ndiv4.\n"

	halfN := gen.Variable{Name: "half_N", Type: "const unsigned int"}
	idist1D := gen.Variable{Name: "idist1D", Type: "const unsigned int"}
	odist1D := gen.Variable{Name: "odist1D", Type: "const unsigned int"}
	input := gen.Variable{Name: "input", Type: "scalar_type", Pointer: true, Restrict: true}
	idist := gen.Variable{Name: "idist", Type: "const unsigned int"}
	output := gen.Variable{Name: "output", Type: "scalar_type", Pointer: true, Restrict: true}
	odist := gen.Variable{Name: "odist", Type: "const unsigned int"}
	twiddles := gen.Variable{Name: "twiddles", Type: "const scalar_type", Pointer: true, Restrict: true}

	fn := gen.Function{Name: name, Qualifier: `extern "C" __global__`, LaunchBounds: launchBoundsRealComplex}
	fn.Args = append(fn.Args, halfN)
	if spec.Dim > 1 {
		fn.Args = append(fn.Args, idist1D, odist1D)
	}
	fn.Args = append(fn.Args, input, idist, output, odist, twiddles)
	fn.Args = append(fn.Args, gen.CallbackArgs()...)

	idxP := gen.Variable{Name: "idx_p", Type: "const unsigned int"}
	idxQ := gen.Variable{Name: "idx_q", Type: "const unsigned int"}
	fn.Body.Add(gen.CommentLines{
		"blockIdx.y gives the multi-dimensional offset",
		"blockIdx.z gives the batch offset"})
	fn.Body.Add(gen.Decl{Var: idxP, Init: gen.Literal("blockIdx.x * blockDim.x + threadIdx.x")})
	fn.Body.Add(gen.Decl{Var: idxQ, Init: gen.Sub(halfN, idxP)})

	quarterN := gen.Variable{Name: "quarter_N", Type: "const unsigned int"}
	fn.Body.Add(gen.Decl{Var: quarterN, Init: gen.Div(gen.Paren{Of: gen.Add(halfN, gen.Int(1))}, gen.Int(2))})

	guard := gen.If{Cond: gen.Lt(idxP, quarterN)}

	inputOffset := gen.Variable{Name: "input_offset", Type: "unsigned int"}
	outputOffset := gen.Variable{Name: "output_offset", Type: "unsigned int"}
	guard.Then.Add(gen.CommentLines{"blockIdx.z gives the batch offset"})
	guard.Then.Add(gen.Decl{Var: inputOffset, Init: gen.Mul(gen.Literal("blockIdx.z"), idist)})
	guard.Then.Add(gen.Decl{Var: outputOffset, Init: gen.Mul(gen.Literal("blockIdx.z"), odist)})
	if spec.Dim > 1 {
		guard.Then.Add(gen.CommentLines{"blockIdx.y gives the multi-dimensional offset, stride is [i/o]dist1D"})
		guard.Then.Add(gen.AddAssign{LHS: inputOffset, RHS: gen.Mul(gen.Literal("blockIdx.y"), idist1D)})
		guard.Then.Add(gen.AddAssign{LHS: outputOffset, RHS: gen.Mul(gen.Literal("blockIdx.y"), odist1D)})
	}

	if isR2C {
		guard.Then.Add(gen.CommentLines{
			"post processing is never the first kernel of the transform,",
			"so loads do not need to go through the load callback"})
	} else {
		guard.Then.Add(gen.CommentLines{
			"pre processing is never the last kernel of the transform,",
			"so stores do not need to go through the store callback"})
	}
	guard.Then.Add(gen.CallbackLoadDecl("scalar_type"))
	guard.Then.Add(gen.CallbackStoreDecl("scalar_type"))

	outval := gen.Variable{Name: "outval", Type: "scalar_type"}
	guard.Then.Add(gen.Decl{Var: outval})

	p := gen.Variable{Name: "p", Type: "scalar_type"}
	q := gen.Variable{Name: "q", Type: "scalar_type"}
	u := gen.Variable{Name: "u", Type: "scalar_type"}
	v := gen.Variable{Name: "v", Type: "scalar_type"}
	twdP := gen.Variable{Name: "twd_p", Type: "scalar_type"}

	ifZero := gen.If{Cond: gen.Eq(idxP, gen.Int(0))}
	if isR2C {
		first := gen.Variable{Name: "first_elem", Type: "scalar_type"}
		ifZero.Then.Add(gen.Decl{Var: first})
		ifZero.Then.Add(gen.Assign{LHS: first, RHS: input.Index(gen.Add(inputOffset, gen.Int(0)))})
		ifZero.Then.Add(gen.Assign{LHS: outval.X(), RHS: gen.Sub(first.X(), first.Y())})
		ifZero.Then.Add(gen.Assign{LHS: outval.Y(), RHS: gen.Int(0)})
		ifZero.Then.Add(gen.StoreGlobal{Ptr: output, Idx: gen.Add(outputOffset, halfN), Val: outval})
		ifZero.Then.Add(gen.Assign{LHS: outval.X(), RHS: gen.Add(first.X(), first.Y())})
		ifZero.Then.Add(gen.Assign{LHS: outval.Y(), RHS: gen.Int(0)})
		ifZero.Then.Add(gen.StoreGlobal{Ptr: output, Idx: gen.Add(outputOffset, gen.Int(0)), Val: outval})
	} else {
		ifZero.Then.Add(gen.Decl{Var: p})
		ifZero.Then.Add(gen.Assign{LHS: p, RHS: gen.LoadGlobal{Ptr: input, Idx: gen.Add(inputOffset, idxP)}})
		ifZero.Then.Add(gen.Decl{Var: q})
		ifZero.Then.Add(gen.Assign{LHS: q, RHS: gen.LoadGlobal{Ptr: input, Idx: gen.Add(inputOffset, idxQ)}})
		outIdx := gen.Add(outputOffset, idxP)
		ifZero.Then.Add(gen.Assign{LHS: outval.X(), RHS: gen.Add(p.X(), q.X())})
		ifZero.Then.Add(gen.Assign{LHS: outval.Y(), RHS: gen.Sub(p.X(), q.X())})
		ifZero.Then.Add(gen.Assign{LHS: output.Index(outIdx), RHS: outval})
	}

	ifNdiv4 := gen.If{Cond: gen.Literal("Ndiv4")}
	if isR2C {
		quarterElem := gen.Variable{Name: "quarter_elem", Type: "scalar_type"}
		ifNdiv4.Then.Add(gen.Decl{Var: quarterElem})
		ifNdiv4.Then.Add(gen.Assign{LHS: quarterElem, RHS: input.Index(gen.Add(inputOffset, quarterN))})
		ifNdiv4.Then.Add(gen.Assign{LHS: outval.X(), RHS: quarterElem.X()})
		ifNdiv4.Then.Add(gen.Assign{LHS: outval.Y(), RHS: gen.Neg{Of: quarterElem.Y()}})
		ifNdiv4.Then.Add(gen.StoreGlobal{Ptr: output, Idx: gen.Add(outputOffset, quarterN), Val: outval})
	} else {
		quarterElem := gen.Variable{Name: "quarter_elem", Type: "scalar_type"}
		ifNdiv4.Then.Add(gen.Decl{Var: quarterElem})
		ifNdiv4.Then.Add(gen.Assign{LHS: quarterElem, RHS: gen.LoadGlobal{Ptr: input, Idx: gen.Add(inputOffset, quarterN)}})
		ifNdiv4.Then.Add(gen.Assign{LHS: outval.X(), RHS: gen.Mul(gen.Literal("2.0"), quarterElem.X())})
		ifNdiv4.Then.Add(gen.Assign{LHS: outval.Y(), RHS: gen.Mul(gen.Literal("-2.0"), quarterElem.Y())})
		ifNdiv4.Then.Add(gen.Assign{LHS: output.Index(gen.Add(outputOffset, quarterN)), RHS: outval})
	}
	ifZero.Then.Add(ifNdiv4)

	nonzero := gen.StmtList{}
	if isR2C {
		nonzero.Add(gen.Decl{Var: p})
		nonzero.Add(gen.Assign{LHS: p, RHS: input.Index(gen.Add(inputOffset, idxP))})
		nonzero.Add(gen.Decl{Var: q})
		nonzero.Add(gen.Assign{LHS: q, RHS: input.Index(gen.Add(inputOffset, idxQ))})
		nonzero.Add(gen.Decl{Var: u})
		nonzero.Add(gen.Assign{LHS: u.X(), RHS: gen.Mul(gen.Literal("0.5"), gen.Add(p.X(), q.X()))})
		nonzero.Add(gen.Assign{LHS: u.Y(), RHS: gen.Mul(gen.Literal("0.5"), gen.Add(p.Y(), q.Y()))})
		nonzero.Add(gen.Decl{Var: v})
		nonzero.Add(gen.Assign{LHS: v.X(), RHS: gen.Mul(gen.Literal("0.5"), gen.Sub(p.X(), q.X()))})
		nonzero.Add(gen.Assign{LHS: v.Y(), RHS: gen.Mul(gen.Literal("0.5"), gen.Sub(p.Y(), q.Y()))})

		nonzero.Add(gen.Decl{Var: twdP})
		nonzero.Add(gen.Assign{LHS: twdP, RHS: twiddles.Index(idxP)})
		nonzero.Add(gen.CommentLines{"NB: twd_q = -conj(twd_p) = (-twd_p.x, twd_p.y)"})

		nonzero.Add(gen.Assign{LHS: outval.X(), RHS: gen.AddN(u.X(), gen.Mul(v.X(), twdP.Y()), gen.Mul(u.Y(), twdP.X()))})
		nonzero.Add(gen.Assign{LHS: outval.Y(), RHS: gen.Sub(gen.Add(v.Y(), gen.Mul(u.Y(), twdP.Y())), gen.Mul(v.X(), twdP.X()))})
		nonzero.Add(gen.StoreGlobal{Ptr: output, Idx: gen.Add(outputOffset, idxP), Val: outval})

		nonzero.Add(gen.Assign{LHS: outval.X(), RHS: gen.Sub(gen.Sub(u.X(), gen.Mul(v.X(), twdP.Y())), gen.Mul(u.Y(), twdP.X()))})
		nonzero.Add(gen.Assign{LHS: outval.Y(), RHS: gen.Sub(gen.Add(gen.Neg{Of: v.Y()}, gen.Mul(u.Y(), twdP.Y())), gen.Mul(v.X(), twdP.X()))})
		nonzero.Add(gen.StoreGlobal{Ptr: output, Idx: gen.Add(outputOffset, idxQ), Val: outval})
	} else {
		nonzero.Add(gen.Decl{Var: p})
		nonzero.Add(gen.Assign{LHS: p, RHS: gen.LoadGlobal{Ptr: input, Idx: gen.Add(inputOffset, idxP)}})
		nonzero.Add(gen.Decl{Var: q})
		nonzero.Add(gen.Assign{LHS: q, RHS: gen.LoadGlobal{Ptr: input, Idx: gen.Add(inputOffset, idxQ)}})
		nonzero.Add(gen.Decl{Var: u})
		nonzero.Add(gen.Assign{LHS: u.X(), RHS: gen.Add(p.X(), q.X())})
		nonzero.Add(gen.Assign{LHS: u.Y(), RHS: gen.Add(p.Y(), q.Y())})
		nonzero.Add(gen.Decl{Var: v})
		nonzero.Add(gen.Assign{LHS: v.X(), RHS: gen.Sub(p.X(), q.X())})
		nonzero.Add(gen.Assign{LHS: v.Y(), RHS: gen.Sub(p.Y(), q.Y())})

		nonzero.Add(gen.Decl{Var: twdP})
		nonzero.Add(gen.Assign{LHS: twdP, RHS: twiddles.Index(idxP)})
		nonzero.Add(gen.CommentLines{"NB: twd_q = -conj(twd_p)"})

		outvalP := gen.Variable{Name: "outval_p", Type: "scalar_type"}
		outvalQ := gen.Variable{Name: "outval_q", Type: "scalar_type"}
		nonzero.Add(gen.Decl{Var: outvalP})
		nonzero.Add(gen.Assign{LHS: outvalP.X(), RHS: gen.Sub(gen.Add(u.X(), gen.Mul(v.X(), twdP.Y())), gen.Mul(u.Y(), twdP.X()))})
		nonzero.Add(gen.Assign{LHS: outvalP.Y(), RHS: gen.AddN(v.Y(), gen.Mul(u.Y(), twdP.Y()), gen.Mul(v.X(), twdP.X()))})
		nonzero.Add(gen.Assign{LHS: output.Index(gen.Add(outputOffset, idxP)), RHS: outvalP})

		nonzero.Add(gen.Decl{Var: outvalQ})
		nonzero.Add(gen.Assign{LHS: outvalQ.X(), RHS: gen.AddN(gen.Sub(u.X(), gen.Mul(v.X(), twdP.Y())), gen.Mul(u.Y(), twdP.X()))})
		nonzero.Add(gen.Assign{LHS: outvalQ.Y(), RHS: gen.AddN(gen.Neg{Of: v.Y()}, gen.Mul(u.Y(), twdP.Y()), gen.Mul(v.X(), twdP.X()))})
		nonzero.Add(gen.Assign{LHS: output.Index(gen.Add(outputOffset, idxQ)), RHS: outvalQ})
	}

	ifZero.Else = nonzero
	guard.Then.Add(ifZero)
	fn.Body.Add(guard)

	return renderWithLayouts(src, fn, spec.SpecBase)
}
