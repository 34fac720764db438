package kernels

import (
	"fmt"

	"github.com/cwbudde/algo-rtc/internal/fftypes"
	gen "github.com/cwbudde/algo-rtc/internal/generator"
)

// RealComplexEvenTransposeName derives the kernel name for a fused
// even-length butterfly plus transpose spec.
func RealComplexEvenTransposeName(spec RealComplexEvenTransposeSpec) (string, error) {
	var name string
	switch spec.Scheme {
	case fftypes.SchemeRealToComplexEvenTranspose:
		name = "r2c_even_post_transpose"
	case fftypes.SchemeTransposeComplexToRealEven:
		name = "transpose_c2r_even_pre"
	default:
		return "", invalidScheme("realcomplex even transpose", spec.Scheme)
	}
	name += fmt.Sprintf("_tile%dx%d", spec.TileX(), spec.TileY())
	return name + spec.nameSuffix(), nil
}

// outputRowBaseHelper resolves the output row base for the r2c direction,
// which transposes into a different dimension depending on rank.
const outputRowBaseHelper = `
__device__ unsigned int output_row_base(unsigned int        dim,
                                        unsigned int        output_batch_start,
                                        const unsigned int* outStride,
                                        const unsigned int  col)
{
    if(dim == 2)
        return output_batch_start + outStride[1] * col;
    else if(dim == 3)
        return output_batch_start + outStride[2] * col;
    return 0;
}
`

// RealComplexEvenTransposeSource emits the fused kernel that combines the
// even-length real transform butterfly with a tiled transpose.  Two LDS
// tiles are filled, one from each end of the row, and butterflied
// together; first, middle, and last elements take separate branches.
func RealComplexEvenTransposeSource(name string, spec RealComplexEvenTransposeSpec) (string, error) {
	isR2C := spec.Scheme == fftypes.SchemeRealToComplexEvenTranspose
	if !isR2C && spec.Scheme != fftypes.SchemeTransposeComplexToRealEven {
		return "", invalidScheme("realcomplex even transpose", spec.Scheme)
	}
	tileX := spec.TileX()
	tileY := spec.TileY()

	src := preamble
	src += spec.Precision.ScalarTypeDecl(true)
	src += spec.Callback.ConstDecl()
	if isR2C {
		src += outputRowBaseHelper
	}

	dim := gen.Variable{Name: "dim", Type: "unsigned int"}
	input := gen.Variable{Name: "input", Type: "scalar_type", Pointer: true, Restrict: true}
	idist := gen.Variable{Name: "idist", Type: "unsigned int"}
	output := gen.Variable{Name: "output", Type: "scalar_type", Pointer: true, Restrict: true}
	odist := gen.Variable{Name: "odist", Type: "unsigned int"}
	twiddles := gen.Variable{Name: "twiddles", Type: "const scalar_type", Pointer: true, Restrict: true}
	lengths := gen.Variable{Name: "lengths", Type: "const unsigned int", Pointer: true, Restrict: true}
	inStride := gen.Variable{Name: "inStride", Type: "const unsigned int", Pointer: true, Restrict: true}
	outStride := gen.Variable{Name: "outStride", Type: "const unsigned int", Pointer: true, Restrict: true}

	fn := gen.Function{
		Name:         name,
		Qualifier:    `extern "C" __global__`,
		LaunchBounds: uint32(tileX * tileY),
	}
	fn.Args = append(fn.Args, dim, input, idist, output, odist, twiddles, lengths, inStride, outStride)
	fn.Args = append(fn.Args, gen.CallbackArgs()...)

	inputBatchStart := gen.Variable{Name: "input_batch_start", Type: "unsigned int"}
	outputBatchStart := gen.Variable{Name: "output_batch_start", Type: "unsigned int"}
	fn.Body.Add(gen.Decl{Var: inputBatchStart, Init: gen.Mul(idist, gen.Literal("blockIdx.z"))})
	fn.Body.Add(gen.Decl{Var: outputBatchStart, Init: gen.Mul(odist, gen.Literal("blockIdx.z"))})

	leftTile := gen.Variable{Name: "leftTile", Type: "__shared__ scalar_type", Size: gen.Int(tileX), Size2D: gen.Int(tileY)}
	rightTile := gen.Variable{Name: "rightTile", Type: "__shared__ scalar_type", Size: gen.Int(tileX), Size2D: gen.Int(tileY)}
	fn.Body.Add(gen.CommentLines{
		"post-processing reads rows and transposes them to columns.",
		"pre-processing reads columns and transposes them to rows."})
	fn.Body.Add(gen.LineBreak{})
	fn.Body.Add(gen.CommentLines{
		"allocate 2 tiles so we can butterfly the values together.",
		"left tile grabs values from towards the beginnings of the rows",
		"right tile grabs values from towards the ends"})
	fn.Body.Add(gen.Decl{Var: leftTile})
	fn.Body.Add(gen.Decl{Var: rightTile})

	// r2c reads the fastest dimension as a row, c2r reads higher
	// dimensions.  Variable names in the emitted source are adjusted
	// to suit both directions.
	pick := func(r2c, c2r string) string {
		if isR2C {
			return r2c
		}
		return c2r
	}
	lenRow := gen.Variable{Name: pick("len_row", "len_col"), Type: "const unsigned int"}
	tileSize := gen.Variable{Name: "tile_size", Type: "const unsigned int"}
	leftColStart := gen.Variable{Name: pick("left_col_start", "left_row_start"), Type: "const unsigned int"}
	middle := gen.Variable{Name: "middle", Type: "const unsigned int"}
	colsToRead := gen.Variable{Name: pick("cols_to_read", "rows_to_read"), Type: "unsigned int"}
	rowLimit := gen.Variable{Name: pick("row_limit", "col_limit"), Type: "const unsigned int"}
	rowStart := gen.Variable{Name: pick("row_start", "col_start"), Type: "const unsigned int"}
	rowEnd := gen.Variable{Name: pick("row_end", "col_end"), Type: "unsigned int"}

	var lenRowInit, tileSizeInit, leftColStartInit, rowLimitInit, rowStartInit, rowEndInit gen.Expr
	if isR2C {
		fn.Body.Add(gen.CommentLines{
			"take fastest dimension and partition it into lengths that will go into each tile"})
		lenRowInit = lengths.Index(gen.Int(0))
		tileSizeInit = gen.Ternary{
			Cond: gen.Lt(gen.Div(gen.Paren{Of: gen.Sub(lenRow, gen.Int(1))}, gen.Int(2)), gen.Int(tileX)),
			Then: gen.Div(gen.Paren{Of: gen.Sub(lenRow, gen.Int(1))}, gen.Int(2)),
			Else: gen.Int(tileX),
		}
		leftColStartInit = gen.Add(gen.Mul(gen.Literal("blockIdx.x"), tileSize), gen.Int(1))
		rowLimitInit = gen.Ternary{
			Cond: gen.Eq(dim, gen.Int(2)),
			Then: lengths.Index(gen.Int(1)),
			Else: gen.Mul(lengths.Index(gen.Int(1)), lengths.Index(gen.Int(2))),
		}
		rowStartInit = gen.Mul(gen.Literal("blockIdx.y"), gen.Int(tileY))
		rowEndInit = gen.Add(gen.Int(tileY), rowStart)
	} else {
		fn.Body.Add(gen.CommentLines{
			"take middle dimension and partition it into lengths that will go into each tile",
			"note that last row effectively gets thrown away"})
		lenRowInit = gen.Ternary{
			Cond: gen.Eq(dim, gen.Int(2)),
			Then: gen.Sub(lengths.Index(gen.Int(1)), gen.Int(1)),
			Else: gen.Sub(lengths.Index(gen.Int(2)), gen.Int(1)),
		}
		tileSizeInit = gen.Ternary{
			Cond: gen.Lt(gen.Div(gen.Paren{Of: gen.Sub(lenRow, gen.Int(1))}, gen.Int(2)), gen.Int(tileY)),
			Then: gen.Div(gen.Paren{Of: gen.Sub(lenRow, gen.Int(1))}, gen.Int(2)),
			Else: gen.Int(tileY),
		}
		leftColStartInit = gen.Add(gen.Mul(gen.Literal("blockIdx.y"), tileSize), gen.Int(1))
		rowLimitInit = gen.Ternary{
			Cond: gen.Eq(dim, gen.Int(2)),
			Then: lengths.Index(gen.Int(0)),
			Else: gen.Mul(lengths.Index(gen.Int(0)), lengths.Index(gen.Int(1))),
		}
		rowStartInit = gen.Mul(gen.Literal("blockIdx.x"), gen.Int(tileX))
		rowEndInit = gen.Add(gen.Int(tileX), rowStart)
	}

	fn.Body.Add(gen.Decl{Var: lenRow, Init: lenRowInit})
	fn.Body.Add(gen.CommentLines{
		"size of a complete tile for this problem - ignore the first",
		"element and middle element (if there is one).  those are",
		"treated specially"})
	fn.Body.Add(gen.Decl{Var: tileSize, Init: tileSizeInit})
	fn.Body.Add(gen.CommentLines{
		"first column to read into the left tile, offset by one because",
		"first element is already handled"})
	fn.Body.Add(gen.Decl{Var: leftColStart, Init: leftColStartInit})
	fn.Body.Add(gen.Decl{Var: middle, Init: gen.Div(gen.Paren{Of: gen.Add(lenRow, gen.Int(1))}, gen.Int(2))})

	fn.Body.Add(gen.CommentLines{
		"number of columns to actually read into the tile (can be less",
		"than tile size if we're out of data)"})
	fn.Body.Add(gen.Decl{Var: colsToRead, Init: tileSize})

	fn.Body.Add(gen.CommentLines{"maximum number of rows in the problem"})
	fn.Body.Add(gen.Decl{Var: rowLimit, Init: rowLimitInit})

	fn.Body.Add(gen.CommentLines{"start+end of range this thread will work on"})
	fn.Body.Add(gen.Decl{Var: rowStart, Init: rowStartInit})
	fn.Body.Add(gen.Decl{Var: rowEnd, Init: rowEndInit})
	clampEnd := gen.If{Cond: gen.Gt(rowEnd, rowLimit)}
	clampEnd.Then.Add(gen.Assign{LHS: rowEnd, RHS: rowLimit})
	fn.Body.Add(clampEnd)

	clampCols := gen.If{Cond: gen.Ge(gen.Add(leftColStart, tileSize), middle)}
	clampCols.Then.Add(gen.Assign{LHS: colsToRead, RHS: gen.Sub(middle, leftColStart)})
	fn.Body.Add(clampCols)

	ldsRow := gen.Variable{Name: "lds_row", Type: "const unsigned int"}
	ldsCol := gen.Variable{Name: "lds_col", Type: "const unsigned int"}
	val := gen.Variable{Name: "val", Type: "scalar_type"}
	firstElem := gen.Variable{Name: "first_elem", Type: "scalar_type"}
	middleElem := gen.Variable{Name: "middle_elem", Type: "scalar_type"}
	lastElem := gen.Variable{Name: "last_elem", Type: "scalar_type"}

	fn.Body.Add(gen.Decl{Var: ldsRow, Init: gen.Literal("threadIdx.y")})
	fn.Body.Add(gen.Decl{Var: ldsCol, Init: gen.Literal("threadIdx.x")})

	var readCond, readLeftIdx, readRightIdx gen.Expr
	var readFirstCond, readFirstIdx, readMiddleIdx, readLastIdx gen.Expr
	var writeCond, writeFirstIdx, writeMiddleIdx, writeLastIdx gen.Expr
	var computeFirstVal, computeMiddleVal, computeLastVal gen.StmtList

	inputRowIdx := gen.Variable{Name: "input_row_idx", Type: "const unsigned int"}
	inputRowBase := gen.Variable{Name: "input_row_base", Type: "unsigned int"}
	inputColBase := gen.Variable{Name: "input_col_base", Type: "const unsigned int"}
	inputColStride := gen.Variable{Name: "input_col_stride", Type: "const unsigned int"}
	outputRowBase := gen.Variable{Name: "output_row_base_idx", Type: "const unsigned int"}
	outputRowStride := gen.Variable{Name: "output_row_stride", Type: "const unsigned int"}

	if isR2C {
		fn.Body.Add(gen.Decl{Var: inputRowIdx, Init: gen.Add(rowStart, ldsRow)})
		fn.Body.Add(gen.Decl{Var: inputRowBase,
			Init: gen.Mul(gen.Mod(inputRowIdx, lengths.Index(gen.Int(1))), inStride.Index(gen.Int(1)))})
		dimGT2 := gen.If{Cond: gen.Gt(dim, gen.Int(2))}
		dimGT2.Then.Add(gen.AddAssign{LHS: inputRowBase,
			RHS: gen.Mul(gen.Div(inputRowIdx, lengths.Index(gen.Int(1))), inStride.Index(gen.Int(2)))})
		fn.Body.Add(dimGT2)

		readCond = gen.And(gen.Lt(gen.Add(rowStart, ldsRow), rowEnd), gen.Lt(ldsCol, colsToRead))
		readLeftIdx = gen.AddN(inputBatchStart, inputRowBase, leftColStart, ldsCol)
		readRightIdx = gen.AddN(inputBatchStart, inputRowBase,
			gen.Paren{Of: gen.Sub(lenRow, gen.Paren{Of: gen.Sub(gen.Add(leftColStart, colsToRead), gen.Int(1))})},
			ldsCol)
		readFirstCond = gen.And(
			gen.And(gen.Eq(gen.Literal("blockIdx.x"), gen.Int(0)), gen.Eq(gen.Literal("threadIdx.x"), gen.Int(0))),
			gen.Lt(gen.Add(rowStart, ldsRow), rowEnd))
		readFirstIdx = gen.Add(inputBatchStart, inputRowBase)
		readMiddleIdx = gen.AddN(inputBatchStart, inputRowBase, gen.Div(lenRow, gen.Int(2)))

		writeCond = readFirstCond

		computeFirstVal.Add(
			gen.Assign{LHS: val.X(), RHS: gen.Sub(firstElem.X(), firstElem.Y())},
			gen.Assign{LHS: val.Y(), RHS: gen.Literal("0.0")},
		)
		writeFirstIdx = gen.AddN(
			gen.CallExpr{Name: "output_row_base", Args: []gen.Expr{dim, outputBatchStart, outStride, lenRow}},
			rowStart, ldsRow)

		computeMiddleVal.Add(
			gen.Assign{LHS: val.X(), RHS: middleElem.X()},
			gen.Assign{LHS: val.Y(), RHS: gen.Neg{Of: middleElem.Y()}},
		)
		writeMiddleIdx = gen.AddN(
			gen.CallExpr{Name: "output_row_base", Args: []gen.Expr{dim, outputBatchStart, outStride, middle}},
			rowStart, ldsRow)

		computeLastVal.Add(
			gen.Assign{LHS: val.X(), RHS: gen.Add(firstElem.X(), firstElem.Y())},
			gen.Assign{LHS: val.Y(), RHS: gen.Literal("0.0")},
		)
		writeLastIdx = gen.AddN(
			gen.CallExpr{Name: "output_row_base", Args: []gen.Expr{dim, outputBatchStart, outStride, gen.Int(0)}},
			rowStart, ldsRow)
	} else {
		fn.Body.Add(gen.Decl{Var: inputColBase,
			Init: gen.Add(
				gen.Mul(gen.Mod(gen.Paren{Of: gen.Add(rowStart, ldsCol)}, lengths.Index(gen.Int(0))), inStride.Index(gen.Int(0))),
				gen.Mul(gen.Div(gen.Paren{Of: gen.Add(rowStart, ldsCol)}, lengths.Index(gen.Int(0))), inStride.Index(gen.Int(1))))})
		fn.Body.Add(gen.Decl{Var: inputColStride, Init: gen.Ternary{
			Cond: gen.Eq(dim, gen.Int(2)),
			Then: inStride.Index(gen.Int(1)),
			Else: inStride.Index(gen.Int(2)),
		}})

		fn.Body.Add(gen.Decl{Var: outputRowBase,
			Init: gen.Add(
				gen.Mul(gen.Mod(gen.Paren{Of: gen.Add(rowStart, ldsCol)}, lengths.Index(gen.Int(0))), outStride.Index(gen.Int(1))),
				gen.Mul(gen.Div(gen.Paren{Of: gen.Add(rowStart, ldsCol)}, lengths.Index(gen.Int(0))), outStride.Index(gen.Int(2))))})
		fn.Body.Add(gen.Decl{Var: outputRowStride, Init: outStride.Index(gen.Int(0))})

		readCond = gen.And(gen.Lt(gen.Add(rowStart, ldsCol), rowEnd), gen.Lt(ldsRow, colsToRead))
		readLeftIdx = gen.AddN(inputBatchStart, inputColBase,
			gen.Mul(gen.Paren{Of: gen.Add(leftColStart, ldsRow)}, inputColStride))
		readRightIdx = gen.AddN(inputBatchStart, inputColBase,
			gen.Mul(gen.Paren{Of: gen.Sub(lenRow, gen.Paren{Of: gen.Add(leftColStart, ldsRow)})}, inputColStride))
		readFirstCond = gen.And(
			gen.And(gen.Eq(gen.Literal("blockIdx.y"), gen.Int(0)), gen.Eq(gen.Literal("threadIdx.y"), gen.Int(0))),
			gen.Lt(gen.Add(rowStart, ldsCol), rowEnd))
		readFirstIdx = gen.Add(inputBatchStart, inputColBase)
		readMiddleIdx = gen.AddN(inputBatchStart, inputColBase, gen.Mul(middle, inputColStride))
		readLastIdx = gen.AddN(inputBatchStart, inputColBase, gen.Mul(lenRow, inputColStride))

		writeCond = readFirstCond

		computeFirstVal.Add(
			gen.Assign{LHS: val.X(), RHS: gen.Add(firstElem.X(), lastElem.X())},
			gen.Assign{LHS: val.Y(), RHS: gen.Sub(firstElem.X(), lastElem.X())},
		)
		writeFirstIdx = gen.Add(outputBatchStart, outputRowBase)

		computeMiddleVal.Add(
			gen.Assign{LHS: val.X(), RHS: gen.Mul(gen.Literal("2.0"), middleElem.X())},
			gen.Assign{LHS: val.Y(), RHS: gen.Mul(gen.Literal("-2.0"), middleElem.Y())},
		)
		writeMiddleIdx = gen.AddN(outputBatchStart, outputRowBase, gen.Mul(middle, outputRowStride))
	}

	fn.Body.Add(gen.CallbackLoadDecl("scalar_type"))
	fn.Body.Add(gen.CallbackStoreDecl("scalar_type"))

	fn.Body.Add(gen.Decl{Var: val})

	readBlock := gen.If{Cond: readCond}
	readBlock.Then.Add(gen.Assign{LHS: val, RHS: gen.LoadGlobal{Ptr: input, Idx: readLeftIdx}})
	readBlock.Then.Add(gen.Assign{LHS: leftTile.At(ldsCol, ldsRow), RHS: val})
	readBlock.Then.Add(gen.Assign{LHS: val, RHS: gen.LoadGlobal{Ptr: input, Idx: readRightIdx}})
	readBlock.Then.Add(gen.Assign{LHS: rightTile.At(ldsCol, ldsRow), RHS: val})
	fn.Body.Add(readBlock)

	fn.Body.Add(gen.Decl{Var: firstElem})
	fn.Body.Add(gen.Decl{Var: middleElem})
	if !isR2C {
		fn.Body.Add(gen.Decl{Var: lastElem})
	}

	readFirstBlock := gen.If{Cond: readFirstCond}
	readFirstBlock.Then.Add(gen.Assign{LHS: firstElem, RHS: gen.LoadGlobal{Ptr: input, Idx: readFirstIdx}})
	evenRow := gen.If{Cond: gen.Eq(gen.Mod(lenRow, gen.Int(2)), gen.Int(0))}
	evenRow.Then.Add(gen.Assign{LHS: middleElem, RHS: gen.LoadGlobal{Ptr: input, Idx: readMiddleIdx}})
	readFirstBlock.Then.Add(evenRow)
	if !isR2C {
		readFirstBlock.Then.Add(gen.Assign{LHS: lastElem, RHS: gen.LoadGlobal{Ptr: input, Idx: readLastIdx}})
	}

	fn.Body.Add(gen.CommentLines{
		"handle first + middle element (if there is a middle),",
		"and last element (for c2r)"})
	fn.Body.Add(readFirstBlock)
	fn.Body.Add(gen.SyncThreads{})

	fn.Body.Add(gen.CommentLines{"write first + middle"})
	writeFirstBlock := gen.If{Cond: writeCond}
	writeFirstBlock.Then.Add(computeFirstVal...)
	writeFirstBlock.Then.Add(gen.StoreGlobal{Ptr: output, Idx: writeFirstIdx, Val: val})
	if isR2C {
		writeFirstBlock.Then.Add(computeLastVal...)
		writeFirstBlock.Then.Add(gen.StoreGlobal{Ptr: output, Idx: writeLastIdx, Val: val})
	}
	writeMiddleBlock := gen.If{Cond: gen.Eq(gen.Mod(lenRow, gen.Int(2)), gen.Int(0))}
	writeMiddleBlock.Then.Add(computeMiddleVal...)
	writeMiddleBlock.Then.Add(gen.StoreGlobal{Ptr: output, Idx: writeMiddleIdx, Val: val})
	writeFirstBlock.Then.Add(writeMiddleBlock)
	fn.Body.Add(writeFirstBlock)

	fn.Body.Add(gen.CommentLines{
		"butterfly the two tiles we've collected (offset col by one",
		"because first element is special)"})

	p := gen.Variable{Name: "p", Type: "const scalar_type"}
	q := gen.Variable{Name: "q", Type: "const scalar_type"}
	u := gen.Variable{Name: "u", Type: "scalar_type"}
	v := gen.Variable{Name: "v", Type: "scalar_type"}
	twdP := gen.Variable{Name: "twd_p", Type: "const scalar_type"}

	if isR2C {
		col := gen.Variable{Name: "col", Type: "unsigned int"}
		butterfly := gen.If{Cond: readCond}
		butterfly.Then.Add(gen.Decl{Var: col,
			Init: gen.AddN(gen.Mul(gen.Literal("blockIdx.x"), tileSize), gen.Int(1), gen.Literal("threadIdx.x"))})

		butterfly.Then.Add(gen.Decl{Var: p, Init: leftTile.At(ldsCol, ldsRow)})
		butterfly.Then.Add(gen.Decl{Var: q, Init: rightTile.At(gen.Sub(gen.Sub(colsToRead, ldsCol), gen.Int(1)), ldsRow)})
		butterfly.Then.Add(gen.Decl{Var: u})
		butterfly.Then.Add(gen.Assign{LHS: u.X(), RHS: gen.Mul(gen.Literal("0.5"), gen.Add(p.X(), q.X()))})
		butterfly.Then.Add(gen.Assign{LHS: u.Y(), RHS: gen.Mul(gen.Literal("0.5"), gen.Add(p.Y(), q.Y()))})
		butterfly.Then.Add(gen.Decl{Var: v})
		butterfly.Then.Add(gen.Assign{LHS: v.X(), RHS: gen.Mul(gen.Literal("0.5"), gen.Sub(p.X(), q.X()))})
		butterfly.Then.Add(gen.Assign{LHS: v.Y(), RHS: gen.Mul(gen.Literal("0.5"), gen.Sub(p.Y(), q.Y()))})

		butterfly.Then.Add(gen.Decl{Var: twdP, Init: twiddles.Index(col)})
		butterfly.Then.Add(gen.CommentLines{"NB: twd_q = -conj(twd_p) = (-twd_p.x, twd_p.y)"})

		butterfly.Then.Add(gen.CommentLines{"write left side"})
		butterfly.Then.Add(gen.Assign{LHS: val.X(), RHS: gen.AddN(u.X(), gen.Mul(v.X(), twdP.Y()), gen.Mul(u.Y(), twdP.X()))})
		butterfly.Then.Add(gen.Assign{LHS: val.Y(), RHS: gen.Sub(gen.Add(v.Y(), gen.Mul(u.Y(), twdP.Y())), gen.Mul(v.X(), twdP.X()))})
		butterfly.Then.Add(gen.StoreGlobal{Ptr: output,
			Idx: gen.AddN(
				gen.CallExpr{Name: "output_row_base", Args: []gen.Expr{dim, outputBatchStart, outStride, col}},
				rowStart, ldsRow),
			Val: val})

		butterfly.Then.Add(gen.CommentLines{"write right side"})
		butterfly.Then.Add(gen.Assign{LHS: val.X(), RHS: gen.Sub(gen.Sub(u.X(), gen.Mul(v.X(), twdP.Y())), gen.Mul(u.Y(), twdP.X()))})
		butterfly.Then.Add(gen.Assign{LHS: val.Y(), RHS: gen.Sub(gen.Add(gen.Neg{Of: v.Y()}, gen.Mul(u.Y(), twdP.Y())), gen.Mul(v.X(), twdP.X()))})
		butterfly.Then.Add(gen.StoreGlobal{Ptr: output,
			Idx: gen.AddN(
				gen.CallExpr{Name: "output_row_base", Args: []gen.Expr{dim, outputBatchStart, outStride, gen.Sub(lenRow, col)}},
				rowStart, ldsRow),
			Val: val})
		fn.Body.Add(butterfly)
	} else {
		butterfly := gen.If{Cond: readCond}
		butterfly.Then.Add(gen.Decl{Var: p, Init: leftTile.At(ldsCol, ldsRow)})
		butterfly.Then.Add(gen.Decl{Var: q, Init: rightTile.At(ldsCol, ldsRow)})
		butterfly.Then.Add(gen.Decl{Var: u})
		butterfly.Then.Add(gen.Assign{LHS: u.X(), RHS: gen.Add(p.X(), q.X())})
		butterfly.Then.Add(gen.Assign{LHS: u.Y(), RHS: gen.Add(p.Y(), q.Y())})
		butterfly.Then.Add(gen.Decl{Var: v})
		butterfly.Then.Add(gen.Assign{LHS: v.X(), RHS: gen.Sub(p.X(), q.X())})
		butterfly.Then.Add(gen.Assign{LHS: v.Y(), RHS: gen.Sub(p.Y(), q.Y())})

		butterfly.Then.Add(gen.Decl{Var: twdP, Init: twiddles.Index(gen.Add(leftColStart, ldsRow))})
		butterfly.Then.Add(gen.CommentLines{"NB: twd_q = -conj(twd_p)"})

		butterfly.Then.Add(gen.CommentLines{"write top side"})
		butterfly.Then.Add(gen.Assign{LHS: val.X(), RHS: gen.Sub(gen.Add(u.X(), gen.Mul(v.X(), twdP.Y())), gen.Mul(u.Y(), twdP.X()))})
		butterfly.Then.Add(gen.Assign{LHS: val.Y(), RHS: gen.AddN(v.Y(), gen.Mul(u.Y(), twdP.Y()), gen.Mul(v.X(), twdP.X()))})
		butterfly.Then.Add(gen.StoreGlobal{Ptr: output,
			Idx: gen.AddN(outputBatchStart, outputRowBase,
				gen.Mul(gen.Paren{Of: gen.Add(leftColStart, ldsRow)}, outputRowStride)),
			Val: val})

		butterfly.Then.Add(gen.CommentLines{"write bottom side"})
		butterfly.Then.Add(gen.Assign{LHS: val.X(), RHS: gen.AddN(gen.Sub(u.X(), gen.Mul(v.X(), twdP.Y())), gen.Mul(u.Y(), twdP.X()))})
		butterfly.Then.Add(gen.Assign{LHS: val.Y(), RHS: gen.AddN(gen.Neg{Of: v.Y()}, gen.Mul(u.Y(), twdP.Y()), gen.Mul(v.X(), twdP.X()))})
		butterfly.Then.Add(gen.StoreGlobal{Ptr: output,
			Idx: gen.AddN(outputBatchStart, outputRowBase,
				gen.Mul(gen.Paren{Of: gen.Sub(lenRow, gen.Paren{Of: gen.Add(leftColStart, ldsRow)})}, outputRowStride)),
			Val: val})
		fn.Body.Add(butterfly)
	}

	return renderWithLayouts(src, fn, spec.SpecBase)
}
