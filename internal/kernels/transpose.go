package kernels

import (
	"fmt"
	"strconv"

	"github.com/cwbudde/algo-rtc/internal/fftypes"
	gen "github.com/cwbudde/algo-rtc/internal/generator"
)

// TransposeName derives the kernel name for a tiled transpose spec.  Tile
// shape, specialized rank, large-twiddle fusion, and the diagonal and
// aligned variants all land in the name.
func TransposeName(spec TransposeSpec) (string, error) {
	if spec.Scheme != fftypes.SchemeTranspose {
		return "", invalidScheme("transpose", spec.Scheme)
	}
	name := "transpose_rtc"
	name += fmt.Sprintf("_tile%dx%d", spec.TileX, spec.TileY)

	// 2D + 3D kernels are specialized to omit loops
	switch spec.Dim {
	case 2:
		name += "_dim2"
	case 3:
		name += "_dim3"
	}

	name += spec.Precision.String()
	name += spec.InType.String()
	name += spec.OutType.String()

	if spec.LargeTwdSteps != 0 {
		name += "_twd" + strconv.Itoa(spec.LargeTwdSteps) + "step"
		if spec.LargeTwdDirection == -1 {
			name += "_fwd"
		} else {
			name += "_back"
		}
	}

	if spec.Diagonal {
		name += "_diag"
	}
	if spec.TileAligned {
		name += "_aligned"
	}
	return name + spec.Callback.String(), nil
}

// TransposeSource emits a tiled LDS transpose kernel, optionally fused
// with large-twiddle multiplication.  Threads read a tileX*tileX tile in
// tileY-row strips, barrier, then write it back transposed.
func TransposeSource(name string, spec TransposeSpec) (string, error) {
	if spec.Scheme != fftypes.SchemeTranspose {
		return "", invalidScheme("transpose", spec.Scheme)
	}
	// tileY must evenly divide tileX so that each thread handles a
	// whole number of elements
	if spec.TileY == 0 || spec.TileX%spec.TileY != 0 {
		return "", fmt.Errorf("non-integral transpose elements per thread for tile %dx%d", spec.TileX, spec.TileY)
	}
	elemsPerThread := spec.TileX / spec.TileY

	src := preamble
	src += spec.Precision.ScalarTypeDecl(spec.InType.IsComplex())
	src += spec.Callback.ConstDecl()
	if spec.LargeTwdSteps != 0 {
		src += "#include \"algortc_large_twiddles.h\"\n"
	}
	// twiddle code assumes scalar type is named T
	src += "typedef scalar_type T;\n"

	input := gen.Variable{Name: "input", Type: "scalar_type", Pointer: true, Restrict: true}
	output := gen.Variable{Name: "output", Type: "scalar_type", Pointer: true, Restrict: true}
	twiddlesLarge := gen.Variable{Name: "twiddles_large", Type: "const scalar_type", Pointer: true, Restrict: true}
	dim := gen.Variable{Name: "dim", Type: "unsigned int"}
	length0 := gen.Variable{Name: "length0", Type: "unsigned int"}
	length1 := gen.Variable{Name: "length1", Type: "unsigned int"}
	length2 := gen.Variable{Name: "length2", Type: "unsigned int"}
	lengths := gen.Variable{Name: "lengths", Type: "const unsigned int", Pointer: true, Restrict: true}
	strideIn0 := gen.Variable{Name: "stride_in0", Type: "unsigned int"}
	strideIn1 := gen.Variable{Name: "stride_in1", Type: "unsigned int"}
	strideIn2 := gen.Variable{Name: "stride_in2", Type: "unsigned int"}
	strideIn := gen.Variable{Name: "stride_in", Type: "const unsigned int", Pointer: true, Restrict: true}
	idist := gen.Variable{Name: "idist", Type: "unsigned int"}
	strideOut0 := gen.Variable{Name: "stride_out0", Type: "unsigned int"}
	strideOut1 := gen.Variable{Name: "stride_out1", Type: "unsigned int"}
	strideOut2 := gen.Variable{Name: "stride_out2", Type: "unsigned int"}
	strideOut := gen.Variable{Name: "stride_out", Type: "const unsigned int", Pointer: true, Restrict: true}
	odist := gen.Variable{Name: "odist", Type: "unsigned int"}

	fn := gen.Function{
		Name:         name,
		Qualifier:    `extern "C" __global__`,
		LaunchBounds: uint32(spec.TileX * spec.TileY),
	}
	fn.Args = append(fn.Args,
		input, output, twiddlesLarge, dim,
		length0, length1, length2, lengths,
		strideIn0, strideIn1, strideIn2, strideIn, idist,
		strideOut0, strideOut1, strideOut2, strideOut, odist)
	fn.Args = append(fn.Args, gen.CallbackArgs()...)

	lds := gen.Variable{Name: "lds", Type: "__shared__ scalar_type", Size: gen.Int(spec.TileX), Size2D: gen.Int(spec.TileX)}
	fn.Body.Add(gen.Decl{Var: lds})

	tileBlockY := gen.Variable{Name: "tileBlockIdx_y", Type: "unsigned int"}
	tileBlockX := gen.Variable{Name: "tileBlockIdx_x", Type: "unsigned int"}
	fn.Body.Add(gen.Decl{Var: tileBlockY, Init: gen.Literal("blockIdx.y")})
	fn.Body.Add(gen.Decl{Var: tileBlockX, Init: gen.Literal("blockIdx.x")})

	if spec.Diagonal {
		bid := gen.Variable{Name: "bid", Type: "unsigned int"}
		fn.Body.Add(gen.Decl{Var: bid, Init: gen.Literal("blockIdx.x + gridDim.x * blockIdx.y")})
		fn.Body.Add(gen.Assign{LHS: tileBlockY, RHS: gen.Mod(bid, gen.Literal("gridDim.y"))})
		fn.Body.Add(gen.Assign{LHS: tileBlockX,
			RHS: gen.Mod(gen.Paren{Of: gen.Add(gen.Div(bid, gen.Literal("gridDim.y")), tileBlockY)}, gen.Literal("gridDim.x"))})
	}

	if spec.Dim == 2 {
		fn.Body.Add(gen.CommentLines{
			"only using 2 dimensions, pretend length2 is 1 so the",
			"compiler can optimize out comparisons against it"})
		fn.Body.Add(gen.Assign{LHS: length2, RHS: gen.Int(1)})
	}

	tileXIdx := gen.Variable{Name: "tile_x_index", Type: "unsigned int"}
	tileYIdx := gen.Variable{Name: "tile_y_index", Type: "unsigned int"}
	fn.Body.Add(gen.Decl{Var: tileXIdx, Init: gen.Literal("threadIdx.x")})
	fn.Body.Add(gen.Decl{Var: tileYIdx, Init: gen.Literal("threadIdx.y")})

	fn.Body.Add(gen.CommentLines{"work out offset for dimensions after the first 3"})
	remaining := gen.Variable{Name: "remaining", Type: "unsigned int"}
	offsetIn := gen.Variable{Name: "offset_in", Type: "unsigned int"}
	offsetOut := gen.Variable{Name: "offset_out", Type: "unsigned int"}
	fn.Body.Add(gen.Decl{Var: remaining, Init: gen.Literal("blockIdx.z")})
	fn.Body.Add(gen.Decl{Var: offsetIn, Init: gen.Int(0)})
	fn.Body.Add(gen.Decl{Var: offsetOut, Init: gen.Int(0)})

	// rank is part of the specialization for 2D and 3D, so the offset
	// loop only appears for higher ranks
	if spec.Dim > 3 {
		d := gen.Variable{Name: "d", Type: "unsigned int"}
		idxAlongD := gen.Variable{Name: "index_along_d", Type: "const unsigned int"}
		offsetLoop := gen.For{Var: d, Init: gen.Int(3), Cond: gen.Lt(d, dim), Inc: gen.Int(1)}
		offsetLoop.Body.Add(gen.Decl{Var: idxAlongD, Init: gen.Mod(remaining, lengths.Index(d))})
		offsetLoop.Body.Add(gen.Assign{LHS: remaining, RHS: gen.Div(remaining, lengths.Index(d))})
		offsetLoop.Body.Add(gen.AddAssign{LHS: offsetIn, RHS: gen.Mul(idxAlongD, strideIn.Index(d))})
		offsetLoop.Body.Add(gen.AddAssign{LHS: offsetOut, RHS: gen.Mul(idxAlongD, strideOut.Index(d))})
		fn.Body.Add(offsetLoop)
	}

	fn.Body.Add(gen.CommentLines{"remaining is now the batch"})
	fn.Body.Add(gen.AddAssign{LHS: offsetIn, RHS: gen.Mul(remaining, idist)})
	fn.Body.Add(gen.AddAssign{LHS: offsetOut, RHS: gen.Mul(remaining, odist)})
	fn.Body.Add(gen.CallbackLoadDecl("scalar_type"))
	fn.Body.Add(gen.CallbackStoreDecl("scalar_type"))

	i := gen.Variable{Name: "i", Type: "unsigned int"}
	logicalRow := gen.Variable{Name: "logical_row", Type: "const unsigned int"}
	logicalCol := gen.Variable{Name: "logical_col", Type: "const unsigned int"}
	idx0 := gen.Variable{Name: "idx0", Type: "const unsigned int"}
	idx1 := gen.Variable{Name: "idx1", Type: "unsigned int"}
	idx2 := gen.Variable{Name: "idx2", Type: "const unsigned int"}
	globalReadIdx := gen.Variable{Name: "global_read_idx", Type: "const unsigned int"}
	globalWriteIdx := gen.Variable{Name: "global_write_idx", Type: "const unsigned int"}
	elem := gen.Variable{Name: "elem", Type: "scalar_type"}

	readLoop := gen.For{Var: i, Init: gen.Int(0), Cond: gen.Lt(i, gen.Int(elemsPerThread)), Inc: gen.Int(1), Unroll: true}
	readLoop.Body.Add(gen.Decl{Var: logicalRow,
		Init: gen.AddN(gen.Mul(gen.Int(spec.TileX), tileBlockY), tileYIdx, gen.Mul(i, gen.Int(spec.TileY)))})
	readLoop.Body.Add(gen.Decl{Var: idx0, Init: gen.Add(gen.Mul(gen.Int(spec.TileX), tileBlockX), tileXIdx)})
	readLoop.Body.Add(gen.Decl{Var: idx1, Init: logicalRow})
	if spec.Dim != 2 {
		readLoop.Body.Add(gen.ModAssign{LHS: idx1, RHS: length1})
	}
	if spec.Dim == 2 {
		readLoop.Body.Add(gen.Decl{Var: idx2, Init: gen.Int(0)})
	} else {
		readLoop.Body.Add(gen.Decl{Var: idx2, Init: gen.Div(logicalRow, length1)})
	}

	boundsCheck := gen.If{Cond: gen.Or(gen.Or(gen.Ge(idx0, length0), gen.Ge(idx1, length1)), gen.Ge(idx2, length2))}
	boundsCheck.Then.Add(gen.Break{})
	if !spec.TileAligned {
		readLoop.Body.Add(boundsCheck)
	}

	readLoop.Body.Add(gen.Decl{Var: globalReadIdx,
		Init: gen.AddN(gen.Mul(idx0, strideIn0), gen.Mul(idx1, strideIn1), gen.Mul(idx2, strideIn2), offsetIn)})
	readLoop.Body.Add(gen.Decl{Var: elem})
	readLoop.Body.Add(gen.Assign{LHS: elem, RHS: gen.LoadGlobal{Ptr: input, Idx: globalReadIdx}})

	if spec.LargeTwdSteps != 0 {
		macro := "TWIDDLE_STEP_MUL_FWD"
		if spec.LargeTwdDirection != -1 {
			macro = "TWIDDLE_STEP_MUL_INV"
		}
		stepFunc := "TWLstep" + strconv.Itoa(spec.LargeTwdSteps)

		twlIdx := gen.Variable{Name: "twl_idx", Type: "const unsigned int"}
		readLoop.Body.Add(gen.Decl{Var: twlIdx, Init: gen.Mul(idx0, idx1)})
		readLoop.Body.Add(gen.CallStmt{Call: gen.CallExpr{
			Name: macro,
			Args: []gen.Expr{gen.Literal(stepFunc), twiddlesLarge, twlIdx, elem},
		}})
	}
	readLoop.Body.Add(gen.Assign{LHS: lds.At(tileXIdx, gen.Add(gen.Mul(i, gen.Int(spec.TileY)), tileYIdx)), RHS: elem})
	fn.Body.Add(readLoop)

	fn.Body.Add(gen.SyncThreads{})

	val := gen.Variable{Name: "val", Type: "scalar_type", Size: gen.Int(elemsPerThread)}
	fn.Body.Add(gen.Decl{Var: val})

	fn.Body.Add(gen.CommentLines{
		"reallocate threads to write along fastest dim (length1) and",
		"read transposed from LDS"})
	fn.Body.Add(gen.Assign{LHS: tileXIdx, RHS: gen.Literal("threadIdx.y")})
	fn.Body.Add(gen.Assign{LHS: tileYIdx, RHS: gen.Literal("threadIdx.x")})

	transposeLoop := gen.For{Var: i, Init: gen.Int(0), Cond: gen.Lt(i, gen.Int(elemsPerThread)), Inc: gen.Int(1), Unroll: true}
	transposeLoop.Body.Add(gen.Assign{
		LHS: val.Index(i),
		RHS: lds.At(gen.Add(tileXIdx, gen.Mul(i, gen.Int(spec.TileY))), tileYIdx)})
	fn.Body.Add(transposeLoop)

	writeLoop := gen.For{Var: i, Init: gen.Int(0), Cond: gen.Lt(i, gen.Int(elemsPerThread)), Inc: gen.Int(1), Unroll: true}
	writeLoop.Body.Add(gen.Decl{Var: logicalCol,
		Init: gen.AddN(gen.Mul(gen.Int(spec.TileX), tileBlockX), tileXIdx, gen.Mul(i, gen.Int(spec.TileY)))})
	writeLoop.Body.Add(gen.Decl{Var: logicalRow, Init: gen.Add(gen.Mul(gen.Int(spec.TileX), tileBlockY), tileYIdx)})

	writeLoop.Body.Add(gen.Decl{Var: idx0, Init: logicalCol})
	writeLoop.Body.Add(gen.Decl{Var: idx1, Init: logicalRow})
	if spec.Dim != 2 {
		writeLoop.Body.Add(gen.ModAssign{LHS: idx1, RHS: length1})
	}
	if spec.Dim == 2 {
		writeLoop.Body.Add(gen.Decl{Var: idx2, Init: gen.Int(0)})
	} else {
		writeLoop.Body.Add(gen.Decl{Var: idx2, Init: gen.Div(logicalRow, length1)})
	}
	if !spec.TileAligned {
		writeLoop.Body.Add(boundsCheck)
	}
	writeLoop.Body.Add(gen.Decl{Var: globalWriteIdx,
		Init: gen.AddN(gen.Mul(idx0, strideOut0), gen.Mul(idx1, strideOut1), gen.Mul(idx2, strideOut2), offsetOut)})
	writeLoop.Body.Add(gen.StoreGlobal{Ptr: output, Idx: globalWriteIdx, Val: val.Index(i)})
	fn.Body.Add(writeLoop)

	return renderWithLayouts(src, fn, spec.SpecBase)
}
