package kernels

import (
	"strconv"

	"github.com/cwbudde/algo-rtc/internal/fftypes"
	gen "github.com/cwbudde/algo-rtc/internal/generator"
)

// stockhamRadices are the supported butterfly widths, tried largest
// first when factorizing a length.
var stockhamRadices = []uint{16, 13, 11, 8, 7, 5, 4, 3, 2}

// maxStockhamLength bounds single-kernel lengths by LDS capacity.
const maxStockhamLength = 4096

// FactorizeLength greedily decomposes a transform length into supported
// radices.  Returns nil if the length has a prime factor no butterfly
// covers; such lengths go down the Bluestein path instead.
func FactorizeLength(length uint) []uint {
	if length < 2 || length > maxStockhamLength {
		return nil
	}
	return factorize(length)
}

// factorize is FactorizeLength without the LDS length cap; statically
// precompiled lengths above the cap still need a resolvable name.
func factorize(length uint) []uint {
	var factors []uint
	rem := length
	for rem > 1 {
		found := false
		for _, r := range stockhamRadices {
			if rem%r == 0 {
				factors = append(factors, r)
				rem /= r
				found = true
				break
			}
		}
		if !found {
			return nil
		}
	}
	return factors
}

// StockhamName derives the kernel name for a single-pass Stockham spec.
// Length and factorization are both part of the identity.
func StockhamName(spec StockhamSpec) (string, error) {
	if spec.Scheme != fftypes.SchemeStockham {
		return "", invalidScheme("stockham", spec.Scheme)
	}
	name := "fft_stockham_rtc_len" + strconv.FormatUint(uint64(spec.Length), 10)
	name += "_fac"
	for i, f := range spec.Factors {
		if i > 0 {
			name += "x"
		}
		name += strconv.FormatUint(uint64(f), 10)
	}
	name += "_dim" + strconv.Itoa(spec.Dim)
	return name + spec.nameSuffix(), nil
}

// threadsPerTransform is the widest per-pass butterfly count, so every
// pass has enough threads.
func (s StockhamSpec) threadsPerTransform() uint {
	min := s.Factors[0]
	for _, f := range s.Factors[1:] {
		if f < min {
			min = f
		}
	}
	return s.Length / min
}

// transformsPerBlock packs transforms into a work-group up to the fixed
// block size.
func (s StockhamSpec) transformsPerBlock() uint {
	tpb := stockhamBlockSize / s.threadsPerTransform()
	if tpb == 0 {
		tpb = 1
	}
	return tpb
}

// BlockSize returns the launch block width for the spec.
func (s StockhamSpec) BlockSize() uint {
	return s.threadsPerTransform() * s.transformsPerBlock()
}

// StockhamSource emits a single-kernel Stockham FFT: each transform is
// staged through LDS, with one butterfly pass per radix factor and a
// barrier between passes.  The twiddle table holds, for every pass after
// the first, height*(radix-1) entries in pass-major order.
func StockhamSource(name string, spec StockhamSpec) (string, error) {
	if spec.Scheme != fftypes.SchemeStockham {
		return "", invalidScheme("stockham", spec.Scheme)
	}
	if len(spec.Factors) == 0 {
		return "", invalidScheme("stockham (no factors)", spec.Scheme)
	}

	length := spec.Length
	tpt := spec.threadsPerTransform()
	tpb := spec.transformsPerBlock()
	elemsPerThread := length / tpt

	maxRadix := spec.Factors[0]
	for _, f := range spec.Factors[1:] {
		if f > maxRadix {
			maxRadix = f
		}
	}

	src := spec.declarations(true)
	src += "#include \"algortc_butterfly.h\"\n"

	twiddles := gen.Variable{Name: "twiddles", Type: "const scalar_type", Pointer: true, Restrict: true}
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
		LaunchBounds: uint32(spec.BlockSize()),
	}
	fn.Args = append(fn.Args, twiddles, ntransforms, strideIn0, idist, strideOut0, odist, input, output)
	fn.Args = append(fn.Args, gen.CallbackArgs()...)

	lds := gen.Variable{Name: "lds", Type: "__shared__ scalar_type", Size: gen.Int(length * tpb)}
	fn.Body.Add(gen.Decl{Var: lds})

	t := gen.Variable{Name: "t", Type: "const unsigned int"}
	tIB := gen.Variable{Name: "transform_in_block", Type: "const unsigned int"}
	transform := gen.Variable{Name: "transform", Type: "const unsigned int"}
	ldsBase := gen.Variable{Name: "lds_base", Type: "const unsigned int"}
	fn.Body.Add(gen.Decl{Var: t, Init: gen.Mod(gen.Literal("threadIdx.x"), gen.Int(tpt))})
	fn.Body.Add(gen.Decl{Var: tIB, Init: gen.Div(gen.Literal("threadIdx.x"), gen.Int(tpt))})
	fn.Body.Add(gen.Decl{Var: transform,
		Init: gen.Add(gen.Mul(gen.Literal("blockIdx.x"), gen.Int(tpb)), tIB)})
	fn.Body.Add(gen.Decl{Var: ldsBase, Init: gen.Mul(tIB, gen.Int(length))})

	batchGuard := gen.If{Cond: gen.Ge(transform, ntransforms)}
	batchGuard.Then.Add(gen.Return{})
	fn.Body.Add(batchGuard)

	offsetIn := gen.Variable{Name: "offset_in", Type: "const unsigned int"}
	offsetOut := gen.Variable{Name: "offset_out", Type: "const unsigned int"}
	fn.Body.Add(gen.Decl{Var: offsetIn, Init: gen.Mul(transform, idist)})
	fn.Body.Add(gen.Decl{Var: offsetOut, Init: gen.Mul(transform, odist)})

	fn.Body.Add(gen.CallbackLoadDecl("scalar_type"))
	fn.Body.Add(gen.CallbackStoreDecl("scalar_type"))

	e := gen.Variable{Name: "e", Type: "unsigned int"}
	idx := gen.Variable{Name: "idx", Type: "const unsigned int"}

	fn.Body.Add(gen.CommentLines{"stage the whole transform into LDS"})
	loadLoop := gen.For{Var: e, Init: gen.Int(0), Cond: gen.Lt(e, gen.Int(elemsPerThread)), Inc: gen.Int(1), Unroll: true}
	loadLoop.Body.Add(gen.Decl{Var: idx, Init: gen.Add(t, gen.Mul(e, gen.Int(tpt)))})
	loadLoop.Body.Add(gen.Assign{
		LHS: lds.Index(gen.Add(ldsBase, idx)),
		RHS: gen.LoadGlobal{Ptr: input, Idx: gen.Add(offsetIn, gen.Mul(idx, strideIn0))}})
	fn.Body.Add(loadLoop)
	fn.Body.Add(gen.SyncThreads{})

	reg := gen.Variable{Name: "R", Type: "scalar_type", Size: gen.Int(maxRadix)}
	fn.Body.Add(gen.Decl{Var: reg})
	w := gen.Variable{Name: "w", Type: "scalar_type"}
	tmp := gen.Variable{Name: "tmp", Type: "scalar_type"}
	fn.Body.Add(gen.Decl{Var: w})
	fn.Body.Add(gen.Decl{Var: tmp})

	// one butterfly pass per factor, fully specialized at generation
	// time: height, twiddle base, and indices are all constants folded
	// into the emitted arithmetic
	height := uint(1)
	twBase := uint(0)
	for pass, radix := range spec.Factors {
		m := length / radix

		fn.Body.Add(gen.CommentLines{
			"pass " + strconv.Itoa(pass) + ": radix " + strconv.FormatUint(uint64(radix), 10) +
				", height " + strconv.FormatUint(uint64(height), 10)})

		body := gen.StmtList{}

		i := gen.Variable{Name: "i" + strconv.Itoa(pass), Type: "const unsigned int"}
		j := gen.Variable{Name: "j" + strconv.Itoa(pass), Type: "const unsigned int"}
		body.Add(gen.Decl{Var: i, Init: gen.Div(t, gen.Int(height))})
		body.Add(gen.Decl{Var: j, Init: gen.Mod(t, gen.Int(height))})

		for k := uint(0); k < radix; k++ {
			body.Add(gen.Assign{
				LHS: reg.Index(gen.Int(k)),
				RHS: lds.Index(gen.AddN(ldsBase, t, gen.Int(k*m)))})
		}

		// unity twiddles on the first pass
		if height > 1 {
			for k := uint(1); k < radix; k++ {
				twIdx := gen.Add(
					gen.Int(twBase+(k-1)),
					gen.Mul(j, gen.Int(radix-1)))
				rk := reg.Index(gen.Int(k))
				body.Add(gen.Assign{LHS: w, RHS: twiddles.Index(twIdx)})
				body.Add(gen.Assign{LHS: tmp.X(),
					RHS: gen.Sub(
						gen.Mul(w.X(), gen.Member{Of: rk, Field: "x"}),
						gen.Mul(w.Y(), gen.Member{Of: rk, Field: "y"}))})
				body.Add(gen.Assign{LHS: tmp.Y(),
					RHS: gen.Add(
						gen.Mul(w.X(), gen.Member{Of: rk, Field: "y"}),
						gen.Mul(w.Y(), gen.Member{Of: rk, Field: "x"}))})
				body.Add(gen.Assign{LHS: rk, RHS: tmp})
			}
		}

		body.Add(gen.CallStmt{Call: gen.CallExpr{
			Name: "fwd_rad" + strconv.FormatUint(uint64(radix), 10),
			Args: []gen.Expr{gen.Literal("R")}}})

		for k := uint(0); k < radix; k++ {
			body.Add(gen.Assign{
				LHS: lds.Index(gen.AddN(ldsBase,
					gen.Mul(i, gen.Int(height*radix)),
					gen.Int(k*height), j)),
				RHS: reg.Index(gen.Int(k))})
		}

		if m < tpt {
			passGuard := gen.If{Cond: gen.Lt(t, gen.Int(m))}
			passGuard.Then = body
			fn.Body.Add(passGuard)
		} else {
			fn.Body.Add(body...)
		}
		fn.Body.Add(gen.SyncThreads{})

		if height > 1 {
			twBase += height * (radix - 1)
		}
		height *= radix
	}

	fn.Body.Add(gen.CommentLines{"write the transform back out"})
	storeLoop := gen.For{Var: e, Init: gen.Int(0), Cond: gen.Lt(e, gen.Int(elemsPerThread)), Inc: gen.Int(1), Unroll: true}
	storeLoop.Body.Add(gen.Decl{Var: idx, Init: gen.Add(t, gen.Mul(e, gen.Int(tpt)))})
	storeLoop.Body.Add(gen.StoreGlobal{
		Ptr: output,
		Idx: gen.Add(offsetOut, gen.Mul(idx, strideOut0)),
		Val: lds.Index(gen.Add(ldsBase, idx))})
	fn.Body.Add(storeLoop)

	return renderWithLayouts(src, fn, spec.SpecBase)
}

// TwiddleTableSize returns the number of twiddle entries the generated
// kernel expects for a factorization, matching the per-pass layout the
// emitter indexes.
func TwiddleTableSize(factors []uint) uint {
	height := uint(1)
	total := uint(0)
	for _, radix := range factors {
		if height > 1 {
			total += height * (radix - 1)
		}
		height *= radix
	}
	return total
}
