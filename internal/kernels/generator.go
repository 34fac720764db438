package kernels

import (
	"fmt"

	"github.com/cwbudde/algo-rtc/internal/fftypes"
)

// Generator is the fully specialized kernel recipe for one plan node:
// its name (also the entry symbol and cache key component), a deferred
// source emitter, the launch shape, and the argument packer that mirrors
// the emitted parameter list exactly.
type Generator struct {
	Name      string
	Source    func() (string, error)
	BuildArgs func(info fftypes.DeviceCallInfo) *fftypes.ArgBuffer
	GridDim   fftypes.Dim3
	BlockDim  fftypes.Dim3
}

// SelectionState classifies the outcome of generator selection.
type SelectionState uint8

const (
	// SelectionNone means the node launches no kernel.
	SelectionNone SelectionState = iota
	// SelectionApplicable means a runtime generator was specialized.
	SelectionApplicable
	// SelectionPrecompiled means a build-time kernel already exists;
	// only its name was resolved.
	SelectionPrecompiled
)

// Selection is the result of mapping a plan node onto a generator family.
type Selection struct {
	State     SelectionState
	Generator *Generator

	// PrecompiledName is set for SelectionPrecompiled.
	PrecompiledName string
}

// precompiledStockhamLengths are lengths whose kernels ship precompiled
// at build time; they exceed the single-kernel LDS budget, so runtime
// generation never covers them.
var precompiledStockhamLengths = map[uint]bool{
	8192:  true,
	16384: true,
}

// FromNode maps a plan node onto the first applicable generator family.
// Families are tried in a fixed order; their applicability predicates are
// mutually exclusive, so the order is a tie-break policy rather than a
// search.  enableCallbacks gates the node's callback configuration into
// the specialization.
func FromNode(node *fftypes.PlanNode, enableCallbacks bool) (Selection, error) {
	if node.Scheme == fftypes.SchemeNone {
		return Selection{State: SelectionNone}, nil
	}

	type family func(*fftypes.PlanNode, fftypes.CallbackType) (*Generator, bool, error)
	families := []family{
		stockhamFamily,
		transposeFamily,
		realComplexFamily,
		realComplexEvenFamily,
		realComplexEvenTransposeFamily,
		bluesteinSingleFamily,
		bluesteinMultiFamily,
	}

	cb := node.CallbackType(enableCallbacks)
	for _, f := range families {
		gen, ok, err := f(node, cb)
		if err != nil {
			return Selection{}, err
		}
		if !ok {
			continue
		}
		if gen == nil {
			// resolved to a statically precompiled kernel
			name, err := precompiledStockhamName(node, cb)
			if err != nil {
				return Selection{}, err
			}
			return Selection{State: SelectionPrecompiled, PrecompiledName: name}, nil
		}
		return Selection{State: SelectionApplicable, Generator: gen}, nil
	}
	return Selection{}, fmt.Errorf("no generator family accepts scheme %q", node.Scheme)
}

func ceilDiv(a, b uint) uint32 {
	return uint32((a + b - 1) / b)
}

func highDims(lengths []uint) uint {
	n := uint(1)
	for _, l := range lengths[1:] {
		n *= l
	}
	return n
}

// strides4 pads per-dimension strides to the fixed 4-wide argument list,
// with the batch distance in the slot just past the node's rank.
func strides4(strides []uint, dim int, dist uint) [4]uint32 {
	var out [4]uint32
	for i := 0; i < dim && i < len(strides); i++ {
		out[i] = uint32(strides[i])
	}
	out[dim] = uint32(dist)
	return out
}

func appendBuf(b *fftypes.ArgBuffer, buf [2]uint64, planar bool) {
	b.AppendPtr(buf[0])
	if planar {
		b.AppendPtr(buf[1])
	}
}

func appendCallbacks(b *fftypes.ArgBuffer, info fftypes.DeviceCallInfo) {
	b.AppendPtr(info.LoadCBFn)
	b.AppendPtr(info.LoadCBData)
	b.AppendUint32(info.LoadCBLDSBytes)
	b.AppendPtr(info.StoreCBFn)
	b.AppendPtr(info.StoreCBData)
}

func baseSpec(node *fftypes.PlanNode, cb fftypes.CallbackType) SpecBase {
	return SpecBase{
		Scheme:    node.Scheme,
		Dim:       node.Dim(),
		Precision: node.Precision,
		InType:    node.InType,
		OutType:   node.OutType,
		Callback:  cb,
	}
}

func stockhamFamily(node *fftypes.PlanNode, cb fftypes.CallbackType) (*Generator, bool, error) {
	if node.Scheme != fftypes.SchemeStockham {
		return nil, false, nil
	}
	if node.Dim() != 1 {
		return nil, false, fmt.Errorf("stockham nodes must be 1D, got %dD", node.Dim())
	}
	length := node.Length[0]
	if precompiledStockhamLengths[length] {
		return nil, true, nil
	}
	factors := FactorizeLength(length)
	if factors == nil {
		return nil, false, fmt.Errorf("length %d has no radix decomposition; expected a bluestein node", length)
	}
	spec := StockhamSpec{SpecBase: baseSpec(node, cb), Length: length, Factors: factors}
	name, err := StockhamName(spec)
	if err != nil {
		return nil, false, err
	}

	tpb := spec.transformsPerBlock()
	node0 := *node
	return &Generator{
		Name:   name,
		Source: func() (string, error) { return StockhamSource(name, spec) },
		BuildArgs: func(info fftypes.DeviceCallInfo) *fftypes.ArgBuffer {
			b := &fftypes.ArgBuffer{}
			b.AppendPtr(info.Twiddles)
			b.AppendUint32(uint32(node0.Batch))
			b.AppendUint32(uint32(node0.InStride[0]))
			b.AppendUint32(uint32(node0.IDist))
			b.AppendUint32(uint32(node0.OutStride[0]))
			b.AppendUint32(uint32(node0.ODist))
			appendBuf(b, info.BufIn, node0.InType.IsPlanar())
			appendBuf(b, info.BufOut, node0.OutType.IsPlanar())
			appendCallbacks(b, info)
			return b
		},
		GridDim:  fftypes.Dim3{X: ceilDiv(node.Batch, tpb), Y: 1, Z: 1},
		BlockDim: fftypes.Dim3{X: uint32(spec.BlockSize()), Y: 1, Z: 1},
	}, true, nil
}

func precompiledStockhamName(node *fftypes.PlanNode, cb fftypes.CallbackType) (string, error) {
	length := node.Length[0]
	spec := StockhamSpec{SpecBase: baseSpec(node, cb), Length: length, Factors: factorize(length)}
	return StockhamName(spec)
}

const transposeTileX = 64
const transposeTileY = 16

func transposeFamily(node *fftypes.PlanNode, cb fftypes.CallbackType) (*Generator, bool, error) {
	if node.Scheme != fftypes.SchemeTranspose {
		return nil, false, nil
	}
	if node.Dim() < 2 {
		return nil, false, fmt.Errorf("transpose nodes must be at least 2D, got %dD", node.Dim())
	}
	rows := highDims(node.Length)
	spec := TransposeSpec{
		SpecBase:          baseSpec(node, cb),
		TileX:             transposeTileX,
		TileY:             transposeTileY,
		LargeTwdSteps:     node.LargeTwdSteps,
		LargeTwdDirection: node.LargeTwdDirection,
		Diagonal:          node.Diagonal,
		TileAligned:       node.Length[0]%transposeTileX == 0 && rows%transposeTileX == 0,
	}
	name, err := TransposeName(spec)
	if err != nil {
		return nil, false, err
	}

	node0 := *node
	return &Generator{
		Name:   name,
		Source: func() (string, error) { return TransposeSource(name, spec) },
		BuildArgs: func(info fftypes.DeviceCallInfo) *fftypes.ArgBuffer {
			lens := [3]uint32{uint32(node0.Length[0]), 1, 1}
			if node0.Dim() > 1 {
				lens[1] = uint32(node0.Length[1])
			}
			if node0.Dim() > 2 {
				lens[2] = uint32(node0.Length[2])
			}
			b := &fftypes.ArgBuffer{}
			appendBuf(b, info.BufIn, node0.InType.IsPlanar())
			appendBuf(b, info.BufOut, node0.OutType.IsPlanar())
			b.AppendPtr(info.TwiddlesLarge)
			b.AppendUint32(uint32(node0.Dim()))
			b.AppendUint32(lens[0])
			b.AppendUint32(lens[1])
			b.AppendUint32(lens[2])
			b.AppendPtr(info.DevLengths)
			b.AppendUint32(uint32(node0.InStride[0]))
			b.AppendUint32(uint32(node0.InStride[1]))
			if node0.Dim() > 2 {
				b.AppendUint32(uint32(node0.InStride[2]))
			} else {
				b.AppendUint32(0)
			}
			b.AppendPtr(info.DevStrideIn)
			b.AppendUint32(uint32(node0.IDist))
			b.AppendUint32(uint32(node0.OutStride[0]))
			b.AppendUint32(uint32(node0.OutStride[1]))
			if node0.Dim() > 2 {
				b.AppendUint32(uint32(node0.OutStride[2]))
			} else {
				b.AppendUint32(0)
			}
			b.AppendPtr(info.DevStrideOut)
			b.AppendUint32(uint32(node0.ODist))
			appendCallbacks(b, info)
			return b
		},
		GridDim: fftypes.Dim3{
			X: ceilDiv(node.Length[0], transposeTileX),
			Y: ceilDiv(rows, transposeTileX),
			Z: uint32(node.Batch),
		},
		BlockDim: fftypes.Dim3{X: transposeTileX, Y: transposeTileY, Z: 1},
	}, true, nil
}

func realComplexFamily(node *fftypes.PlanNode, cb fftypes.CallbackType) (*Generator, bool, error) {
	switch node.Scheme {
	case fftypes.SchemeCopyRealToComplex, fftypes.SchemeCopyComplexToHermitian,
		fftypes.SchemeCopyComplexToReal, fftypes.SchemeCopyHermitianToComplex:
	default:
		return nil, false, nil
	}
	spec := RealComplexSpec{SpecBase: baseSpec(node, cb)}
	name, err := RealComplexName(spec)
	if err != nil {
		return nil, false, err
	}

	isHerm2C := node.Scheme == fftypes.SchemeCopyHermitianToComplex

	// herm2c threads cover the packed hermitian input; the lengths
	// arguments describe the unpacked output
	lengths := node.Length
	if isHerm2C && node.OutputLength != nil {
		lengths = node.OutputLength
	}
	inputLength0 := lengths[0]
	if isHerm2C {
		inputLength0 = lengths[0]/2 + 1
	}
	elems := inputLength0 * highDims(lengths) * node.Batch

	node0 := *node
	lengths0 := lengths
	return &Generator{
		Name:   name,
		Source: func() (string, error) { return RealComplexSource(name, spec) },
		BuildArgs: func(info fftypes.DeviceCallInfo) *fftypes.ArgBuffer {
			b := &fftypes.ArgBuffer{}
			if isHerm2C {
				b.AppendUint32(uint32(inputLength0))
			}
			lens := [3]uint32{uint32(lengths0[0]), 1, 1}
			if len(lengths0) > 1 {
				lens[1] = uint32(lengths0[1])
			}
			if len(lengths0) > 2 {
				lens[2] = uint32(lengths0[2])
			}
			b.AppendUint32(lens[0])
			b.AppendUint32(lens[1])
			b.AppendUint32(lens[2])
			b.AppendUint32(uint32(node0.Batch))
			for _, s := range strides4(node0.InStride, node0.Dim(), node0.IDist) {
				b.AppendUint32(s)
			}
			for _, s := range strides4(node0.OutStride, node0.Dim(), node0.ODist) {
				b.AppendUint32(s)
			}
			appendBuf(b, info.BufIn, node0.InType.IsPlanar())
			appendBuf(b, info.BufOut, node0.OutType.IsPlanar())
			appendCallbacks(b, info)
			return b
		},
		GridDim:  fftypes.Dim3{X: ceilDiv(elems, launchBoundsRealComplex), Y: 1, Z: 1},
		BlockDim: fftypes.Dim3{X: launchBoundsRealComplex, Y: 1, Z: 1},
	}, true, nil
}

func realComplexEvenFamily(node *fftypes.PlanNode, cb fftypes.CallbackType) (*Generator, bool, error) {
	isR2C := node.Scheme == fftypes.SchemeRealToComplexEven
	if !isR2C && node.Scheme != fftypes.SchemeComplexToRealEven {
		return nil, false, nil
	}

	// the node's fastest length counts the half-length complex transform
	halfN := node.Length[0]
	if !isR2C {
		halfN = node.Length[0] - 1
	}
	spec := RealComplexEvenSpec{SpecBase: baseSpec(node, cb), Ndiv4: halfN%2 == 0}
	name, err := RealComplexEvenName(spec)
	if err != nil {
		return nil, false, err
	}

	quarterBlocks := ceilDiv((halfN+1)/2, stockhamBlockSize)
	if quarterBlocks == 0 {
		quarterBlocks = 1
	}

	node0 := *node
	return &Generator{
		Name:   name,
		Source: func() (string, error) { return RealComplexEvenSource(name, spec) },
		BuildArgs: func(info fftypes.DeviceCallInfo) *fftypes.ArgBuffer {
			b := &fftypes.ArgBuffer{}
			b.AppendUint32(uint32(halfN))
			if node0.Dim() > 1 {
				b.AppendUint32(uint32(node0.InStride[1]))
				b.AppendUint32(uint32(node0.OutStride[1]))
			}
			appendBuf(b, info.BufIn, node0.InType.IsPlanar())
			b.AppendUint32(uint32(node0.IDist))
			appendBuf(b, info.BufOut, node0.OutType.IsPlanar())
			b.AppendUint32(uint32(node0.ODist))
			b.AppendPtr(info.Twiddles)
			appendCallbacks(b, info)
			return b
		},
		GridDim: fftypes.Dim3{
			X: quarterBlocks,
			Y: uint32(highDims(node.Length)),
			Z: uint32(node.Batch),
		},
		BlockDim: fftypes.Dim3{X: stockhamBlockSize, Y: 1, Z: 1},
	}, true, nil
}

func realComplexEvenTransposeFamily(node *fftypes.PlanNode, cb fftypes.CallbackType) (*Generator, bool, error) {
	isR2C := node.Scheme == fftypes.SchemeRealToComplexEvenTranspose
	if !isR2C && node.Scheme != fftypes.SchemeTransposeComplexToRealEven {
		return nil, false, nil
	}
	if node.Dim() < 2 {
		return nil, false, fmt.Errorf("fused even transpose nodes must be at least 2D, got %dD", node.Dim())
	}
	spec := RealComplexEvenTransposeSpec{SpecBase: baseSpec(node, cb)}
	name, err := RealComplexEvenTransposeName(spec)
	if err != nil {
		return nil, false, err
	}
	tileX := spec.TileX()
	tileY := spec.TileY()

	var grid fftypes.Dim3
	if isR2C {
		// tiles along half the fastest dimension, rows along the rest
		n := node.Length[0]
		rows := highDims(node.Length)
		grid = fftypes.Dim3{
			X: ceilDiv((n-1)/2, tileX),
			Y: ceilDiv(rows, tileY),
			Z: uint32(node.Batch),
		}
	} else {
		lenCol := node.Length[node.Dim()-1] - 1
		cols := uint(1)
		for _, l := range node.Length[:node.Dim()-1] {
			cols *= l
		}
		grid = fftypes.Dim3{
			X: ceilDiv(cols, tileX),
			Y: ceilDiv((lenCol-1)/2, tileY),
			Z: uint32(node.Batch),
		}
	}
	if grid.X == 0 {
		grid.X = 1
	}
	if grid.Y == 0 {
		grid.Y = 1
	}

	node0 := *node
	return &Generator{
		Name:   name,
		Source: func() (string, error) { return RealComplexEvenTransposeSource(name, spec) },
		BuildArgs: func(info fftypes.DeviceCallInfo) *fftypes.ArgBuffer {
			b := &fftypes.ArgBuffer{}
			b.AppendUint32(uint32(node0.Dim()))
			appendBuf(b, info.BufIn, node0.InType.IsPlanar())
			b.AppendUint32(uint32(node0.IDist))
			appendBuf(b, info.BufOut, node0.OutType.IsPlanar())
			b.AppendUint32(uint32(node0.ODist))
			b.AppendPtr(info.Twiddles)
			b.AppendPtr(info.DevLengths)
			b.AppendPtr(info.DevStrideIn)
			b.AppendPtr(info.DevStrideOut)
			appendCallbacks(b, info)
			return b
		},
		GridDim:  grid,
		BlockDim: fftypes.Dim3{X: uint32(tileX), Y: uint32(tileY), Z: 1},
	}, true, nil
}

func normalizeDirection(d int) int {
	if d == 1 {
		return 1
	}
	return -1
}

func bluesteinSingleFamily(node *fftypes.PlanNode, cb fftypes.CallbackType) (*Generator, bool, error) {
	if node.Scheme != fftypes.SchemeBluesteinSingle {
		return nil, false, nil
	}
	length := node.Length[0]
	if length > maxBluesteinSingleLength {
		return nil, false, fmt.Errorf("length %d exceeds the single-kernel bluestein limit", length)
	}
	spec := BluesteinSingleSpec{
		SpecBase:  baseSpec(node, cb),
		Length:    length,
		Direction: normalizeDirection(node.Direction),
	}
	name, err := BluesteinSingleName(spec)
	if err != nil {
		return nil, false, err
	}

	node0 := *node
	return &Generator{
		Name:   name,
		Source: func() (string, error) { return BluesteinSingleSource(name, spec) },
		BuildArgs: func(info fftypes.DeviceCallInfo) *fftypes.ArgBuffer {
			b := &fftypes.ArgBuffer{}
			b.AppendUint32(uint32(node0.Batch))
			b.AppendUint32(uint32(node0.InStride[0]))
			b.AppendUint32(uint32(node0.IDist))
			b.AppendUint32(uint32(node0.OutStride[0]))
			b.AppendUint32(uint32(node0.ODist))
			appendBuf(b, info.BufIn, node0.InType.IsPlanar())
			appendBuf(b, info.BufOut, node0.OutType.IsPlanar())
			appendCallbacks(b, info)
			return b
		},
		GridDim:  fftypes.Dim3{X: uint32(node.Batch), Y: 1, Z: 1},
		BlockDim: fftypes.Dim3{X: bluesteinBlockSize, Y: 1, Z: 1},
	}, true, nil
}

// BluesteinPadLength returns the convolution length for a Bluestein
// transform: the next power of two at or above 2N-1.
func BluesteinPadLength(length uint) uint {
	pad := uint(1)
	for pad < 2*length-1 {
		pad *= 2
	}
	return pad
}

func bluesteinMultiFamily(node *fftypes.PlanNode, cb fftypes.CallbackType) (*Generator, bool, error) {
	switch node.Scheme {
	case fftypes.SchemeBluesteinChirp, fftypes.SchemeBluesteinPadMul,
		fftypes.SchemeBluesteinFFTMul, fftypes.SchemeBluesteinResMul:
	default:
		return nil, false, nil
	}
	length := node.Length[0]
	pad := BluesteinPadLength(length)
	spec := BluesteinMultiSpec{
		SpecBase:  baseSpec(node, cb),
		Length:    length,
		LengthPad: pad,
		Direction: normalizeDirection(node.Direction),
	}
	name, err := BluesteinMultiName(spec)
	if err != nil {
		return nil, false, err
	}

	isChirp := node.Scheme == fftypes.SchemeBluesteinChirp
	span := pad
	if node.Scheme == fftypes.SchemeBluesteinResMul {
		span = length
	}
	grid := fftypes.Dim3{X: ceilDiv(span, bluesteinBlockSize), Y: uint32(node.Batch), Z: 1}
	if isChirp {
		grid.Y = 1
	}

	node0 := *node
	return &Generator{
		Name:   name,
		Source: func() (string, error) { return BluesteinMultiSource(name, spec) },
		BuildArgs: func(info fftypes.DeviceCallInfo) *fftypes.ArgBuffer {
			b := &fftypes.ArgBuffer{}
			b.AppendPtr(info.ChirpTable)
			if !isChirp {
				b.AppendUint32(uint32(node0.Batch))
				b.AppendUint32(uint32(node0.InStride[0]))
				b.AppendUint32(uint32(node0.IDist))
				b.AppendUint32(uint32(node0.OutStride[0]))
				b.AppendUint32(uint32(node0.ODist))
				appendBuf(b, info.BufIn, node0.InType.IsPlanar())
				appendBuf(b, info.BufOut, node0.OutType.IsPlanar())
			}
			appendCallbacks(b, info)
			return b
		},
		GridDim:  grid,
		BlockDim: fftypes.Dim3{X: bluesteinBlockSize, Y: 1, Z: 1},
	}, true, nil
}
