package kernels

import (
	"strconv"

	"github.com/cwbudde/algo-rtc/internal/fftypes"
	gen "github.com/cwbudde/algo-rtc/internal/generator"
)

// RealComplexName derives the kernel name for a real/complex copy spec.
func RealComplexName(spec RealComplexSpec) (string, error) {
	var name string
	switch spec.Scheme {
	case fftypes.SchemeCopyRealToComplex:
		name = "r2c_copy_rtc"
	case fftypes.SchemeCopyComplexToHermitian:
		name = "c2herm_copy_rtc"
	case fftypes.SchemeCopyComplexToReal:
		name = "c2r_copy_rtc"
	case fftypes.SchemeCopyHermitianToComplex:
		name = "herm2c_copy_rtc"
	default:
		return "", invalidScheme("realcomplex", spec.Scheme)
	}
	name += "_dim" + strconv.Itoa(spec.Dim)
	return name + spec.nameSuffix(), nil
}

// RealComplexSource emits the thread-per-element copy kernel between real,
// complex, and hermitian layouts.
func RealComplexSource(name string, spec RealComplexSpec) (string, error) {
	switch spec.Scheme {
	case fftypes.SchemeCopyRealToComplex, fftypes.SchemeCopyComplexToHermitian,
		fftypes.SchemeCopyComplexToReal, fftypes.SchemeCopyHermitianToComplex:
	default:
		return "", invalidScheme("realcomplex", spec.Scheme)
	}

	src := spec.declarations(true)

	inputType := "scalar_type"
	if spec.Scheme == fftypes.SchemeCopyRealToComplex {
		inputType = "real_type_t<scalar_type>"
	}
	outputType := "scalar_type"
	if spec.Scheme == fftypes.SchemeCopyComplexToReal {
		outputType = "real_type_t<scalar_type>"
	}

	hermitianSize := gen.Variable{Name: "hermitian_size", Type: "const unsigned int"}
	lengths := [3]gen.Variable{
		{Name: "lengths0", Type: "unsigned int"},
		{Name: "lengths1", Type: "unsigned int"},
		{Name: "lengths2", Type: "unsigned int"},
	}
	nbatch := gen.Variable{Name: "nbatch", Type: "unsigned int"}
	strideIn := [4]gen.Variable{
		{Name: "stride_in0", Type: "unsigned int"},
		{Name: "stride_in1", Type: "unsigned int"},
		{Name: "stride_in2", Type: "unsigned int"},
		{Name: "stride_in3", Type: "unsigned int"},
	}
	strideOut := [4]gen.Variable{
		{Name: "stride_out0", Type: "unsigned int"},
		{Name: "stride_out1", Type: "unsigned int"},
		{Name: "stride_out2", Type: "unsigned int"},
		{Name: "stride_out3", Type: "unsigned int"},
	}
	input := gen.Variable{Name: "input", Type: inputType, Pointer: true, Restrict: true}
	output := gen.Variable{Name: "output", Type: outputType, Pointer: true, Restrict: true}

	fn := gen.Function{Name: name, Qualifier: `extern "C" __global__`, LaunchBounds: launchBoundsRealComplex}
	if spec.Scheme == fftypes.SchemeCopyHermitianToComplex {
		fn.Args = append(fn.Args, hermitianSize)
	}
	fn.Args = append(fn.Args, lengths[0], lengths[1], lengths[2], nbatch)
	fn.Args = append(fn.Args, strideIn[0], strideIn[1], strideIn[2], strideIn[3])
	fn.Args = append(fn.Args, strideOut[0], strideOut[1], strideOut[2], strideOut[3])
	fn.Args = append(fn.Args, input, output)
	fn.Args = append(fn.Args, gen.CallbackArgs()...)

	globalIdx := gen.Variable{Name: "global_idx", Type: "unsigned int"}
	fn.Body.Add(gen.Decl{Var: globalIdx, Init: gen.Literal("blockIdx.x * blockDim.x + threadIdx.x")})

	idx0 := gen.Variable{Name: "idx_0", Type: "const unsigned int"}
	idx1 := gen.Variable{Name: "idx_1", Type: "const unsigned int"}
	idx2 := gen.Variable{Name: "idx_2", Type: "const unsigned int"}
	idxBatch := gen.Variable{Name: "idx_batch", Type: "const unsigned int"}

	// herm2c allocates threads along the hermitian length; every other
	// scheme allocates along the transform length
	divide := lengths[0]
	if spec.Scheme == fftypes.SchemeCopyHermitianToComplex {
		divide = hermitianSize
	}

	fn.Body.Add(gen.CommentLines{"per-dimension indexes"})
	fn.Body.Add(gen.Decl{Var: idx0, Init: gen.Mod(globalIdx, divide)})
	fn.Body.Add(gen.Assign{LHS: globalIdx, RHS: gen.Div(globalIdx, divide)})
	if spec.Dim > 1 {
		fn.Body.Add(gen.Decl{Var: idx1, Init: gen.Mod(globalIdx, lengths[1])})
		fn.Body.Add(gen.Assign{LHS: globalIdx, RHS: gen.Div(globalIdx, lengths[1])})
	} else {
		fn.Body.Add(gen.Decl{Var: idx1, Init: gen.Int(0)})
	}
	if spec.Dim > 2 {
		fn.Body.Add(gen.Decl{Var: idx2, Init: gen.Mod(globalIdx, lengths[2])})
		fn.Body.Add(gen.Assign{LHS: globalIdx, RHS: gen.Div(globalIdx, lengths[2])})
	} else {
		fn.Body.Add(gen.Decl{Var: idx2, Init: gen.Int(0)})
	}
	fn.Body.Add(gen.Decl{Var: idxBatch, Init: globalIdx})

	fn.Body.Add(gen.CommentLines{"any excess threads will be past the end of batch"})
	fn.Body.Add(gen.If{Cond: gen.Ge(idxBatch, nbatch), Then: gen.StmtList{gen.Return{}}})

	batchStrideIn := strideIn[spec.Dim]
	batchStrideOut := strideOut[spec.Dim]

	if spec.Scheme == fftypes.SchemeCopyHermitianToComplex {
		emitHermitianToComplex(&fn, spec, hermitianSize, lengths, strideIn, strideOut,
			batchStrideIn, batchStrideOut, idx0, idx1, idx2, idxBatch, input, output)
	} else {
		inputIdx := gen.Variable{Name: "inputIdx", Type: "auto"}
		outputIdx := gen.Variable{Name: "outputIdx", Type: "auto"}
		fn.Body.Add(gen.Decl{Var: inputIdx, Init: gen.AddN(
			gen.Mul(idx0, strideIn[0]), gen.Mul(idx1, strideIn[1]),
			gen.Mul(idx2, strideIn[2]), gen.Mul(idxBatch, batchStrideIn))})
		fn.Body.Add(gen.Decl{Var: outputIdx, Init: gen.AddN(
			gen.Mul(idx0, strideOut[0]), gen.Mul(idx1, strideOut[1]),
			gen.Mul(idx2, strideOut[2]), gen.Mul(idxBatch, batchStrideOut))})

		elem := gen.Variable{Name: "elem", Type: "scalar_type"}
		switch spec.Scheme {
		case fftypes.SchemeCopyRealToComplex:
			guard := gen.If{Cond: gen.Lt(idx0, lengths[0])}
			guard.Then.Add(gen.CommentLines{
				"real2complex runs at the beginning of an R2C transform, so it",
				"is never the last kernel to write global memory; the store",
				"does not need to go through the store callback"})
			guard.Then.Add(gen.CallbackLoadDecl("real_type_t<scalar_type>"))
			guard.Then.Add(gen.CallbackStoreDecl("real_type_t<scalar_type>"))
			rl := gen.Variable{Name: "re", Type: "real_type_t<scalar_type>"}
			guard.Then.Add(gen.Decl{Var: rl})
			guard.Then.Add(gen.Assign{LHS: rl, RHS: gen.LoadGlobal{Ptr: input, Idx: inputIdx}})
			guard.Then.Add(gen.Assign{LHS: output.Index(outputIdx), RHS: gen.ComplexLiteral{Re: rl, Im: gen.Literal("0.0")}})
			fn.Body.Add(guard)
		case fftypes.SchemeCopyComplexToHermitian:
			fn.Body.Add(gen.CommentLines{
				"only read and write the first [length0/2+1] elements",
				"due to conjugate redundancy"})
			guard := gen.If{Cond: gen.Lt(idx0, gen.Paren{Of: gen.Add(gen.Int(1), gen.Div(lengths[0], gen.Int(2)))})}
			guard.Then.Add(gen.CallbackLoadDecl("scalar_type"))
			guard.Then.Add(gen.CallbackStoreDecl("scalar_type"))
			guard.Then.Add(gen.Decl{Var: elem})
			guard.Then.Add(gen.Assign{LHS: elem, RHS: gen.LoadGlobal{Ptr: input, Idx: inputIdx}})
			guard.Then.Add(gen.StoreGlobal{Ptr: output, Idx: outputIdx, Val: elem})
			fn.Body.Add(guard)
		case fftypes.SchemeCopyComplexToReal:
			fn.Body.Add(gen.CallbackLoadDecl("real_type_t<scalar_type>"))
			fn.Body.Add(gen.CallbackStoreDecl("real_type_t<scalar_type>"))
			fn.Body.Add(gen.Decl{Var: elem})
			fn.Body.Add(gen.Assign{LHS: elem, RHS: gen.LoadGlobal{Ptr: input, Idx: inputIdx}})
			fn.Body.Add(gen.StoreGlobal{Ptr: output, Idx: outputIdx, Val: elem.X()})
		}
	}

	return renderWithLayouts(src, fn, spec.SpecBase)
}

// emitHermitianToComplex expands the packed hermitian input to a full
// complex array.  The DC element and (for even lengths) the Nyquist
// element are copied exactly once; every other thread writes its element
// and the conjugate-paired element, so no output is written twice.
func emitHermitianToComplex(fn *gen.Function, spec RealComplexSpec,
	hermitianSize gen.Variable, lengths [3]gen.Variable,
	strideIn, strideOut [4]gen.Variable, batchStrideIn, batchStrideOut gen.Variable,
	idx0, idx1, idx2, idxBatch, input, output gen.Variable) {

	inputOffset := gen.Variable{Name: "input_offset", Type: "auto"}
	fn.Body.Add(gen.Decl{Var: inputOffset, Init: gen.AddN(
		gen.Mul(idx0, strideIn[0]), gen.Mul(idx1, strideIn[1]),
		gen.Mul(idx2, strideIn[2]), gen.Mul(idxBatch, batchStrideIn))})

	fn.Body.Add(gen.CommentLines{"straight copy indices"})
	is0 := gen.Variable{Name: "is0", Type: "auto"}
	is1 := gen.Variable{Name: "is1", Type: "auto"}
	is2 := gen.Variable{Name: "is2", Type: "auto"}
	fn.Body.Add(gen.Decl{Var: is0, Init: idx0})
	fn.Body.Add(gen.Decl{Var: is1, Init: idx1})
	fn.Body.Add(gen.Decl{Var: is2, Init: idx2})

	fn.Body.Add(gen.CommentLines{"conjugate copy indices"})
	ic0 := gen.Variable{Name: "ic0", Type: "auto"}
	ic1 := gen.Variable{Name: "ic1", Type: "auto"}
	ic2 := gen.Variable{Name: "ic2", Type: "auto"}
	fn.Body.Add(gen.Decl{Var: ic0, Init: gen.Ternary{Cond: gen.Eq(is0, gen.Int(0)), Then: gen.Int(0), Else: gen.Sub(lengths[0], is0)}})
	fn.Body.Add(gen.Decl{Var: ic1, Init: gen.Ternary{Cond: gen.Eq(is1, gen.Int(0)), Then: gen.Int(0), Else: gen.Sub(lengths[1], is1)}})
	fn.Body.Add(gen.Decl{Var: ic2, Init: gen.Ternary{Cond: gen.Eq(is2, gen.Int(0)), Then: gen.Int(0), Else: gen.Sub(lengths[2], is2)}})

	outputsOffset := gen.Variable{Name: "outputs_offset", Type: "auto"}
	outputcOffset := gen.Variable{Name: "outputc_offset", Type: "auto"}
	fn.Body.Add(gen.Decl{Var: outputsOffset, Init: gen.AddN(
		gen.Mul(is0, strideOut[0]), gen.Mul(is1, strideOut[1]),
		gen.Mul(is2, strideOut[2]), gen.Mul(idxBatch, batchStrideOut))})
	fn.Body.Add(gen.Decl{Var: outputcOffset, Init: gen.AddN(
		gen.Mul(ic0, strideOut[0]), gen.Mul(ic1, strideOut[1]),
		gen.Mul(ic2, strideOut[2]), gen.Mul(idxBatch, batchStrideOut))})

	fn.Body.Add(gen.CallbackLoadDecl("scalar_type"))
	fn.Body.Add(gen.CallbackStoreDecl("scalar_type"))

	elem := gen.Variable{Name: "elem", Type: "scalar_type"}

	fn.Body.Add(gen.CommentLines{
		"hermitian2complex runs at the start of a C2R transform, so it is",
		"never the last kernel to write global memory; stores bypass the",
		"store callback"})

	// DC and Nyquist elements are written once, never conjugated
	writeSimple := gen.If{Cond: gen.Or(gen.Eq(is0, gen.Int(0)), gen.Eq(gen.Mul(is0, gen.Int(2)), lengths[0]))}
	writeSimple.Then.Add(gen.CommentLines{"simply write the element to output"})
	writeSimple.Then.Add(gen.Decl{Var: elem})
	writeSimple.Then.Add(gen.Assign{LHS: elem, RHS: gen.LoadGlobal{Ptr: input, Idx: inputOffset}})
	writeSimple.Then.Add(gen.Assign{LHS: output.Index(outputsOffset), RHS: elem})
	writeSimple.Then.Add(gen.Return{})
	fn.Body.Add(writeSimple)

	writeConj := gen.If{Cond: gen.Lt(is0, hermitianSize)}
	writeConj.Then.Add(gen.Decl{Var: elem})
	writeConj.Then.Add(gen.Assign{LHS: elem, RHS: gen.LoadGlobal{Ptr: input, Idx: inputOffset}})
	writeConj.Then.Add(gen.Assign{LHS: output.Index(outputsOffset), RHS: elem})
	writeConj.Then.Add(gen.Assign{LHS: elem.Y(), RHS: gen.Neg{Of: elem.Y()}})
	writeConj.Then.Add(gen.Assign{LHS: output.Index(outputcOffset), RHS: elem})
	fn.Body.Add(writeConj)
}

// renderWithLayouts applies the planar rewrite for planar layouts and
// renders the function, emitting a standalone harness when enabled via
// SetHarnessDir.
func renderWithLayouts(src string, fn gen.Function, base SpecBase) (string, error) {
	if base.InType.IsPlanar() {
		fn = gen.MakePlanar(fn, "input")
	}
	if base.OutType.IsPlanar() {
		fn = gen.MakePlanar(fn, "output")
	}
	out := src + fn.Render()
	if err := writeHarness(&fn, out); err != nil {
		return "", err
	}
	return out, nil
}
