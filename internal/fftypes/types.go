package fftypes

import "strconv"

// Precision selects the scalar width used by a generated kernel.
type Precision uint8

const (
	PrecisionSingle Precision = iota
	PrecisionDouble
	PrecisionHalf
)

// String returns the kernel-name suffix for the precision.
func (p Precision) String() string {
	switch p {
	case PrecisionSingle:
		return "_sp"
	case PrecisionDouble:
		return "_dp"
	case PrecisionHalf:
		return "_half"
	default:
		return "_unknown"
	}
}

// ScalarTypeDecl returns the typedef line that generated source uses to
// declare its scalar type.  Complex kernels work on complex_t<T>, real
// kernels on the bare scalar.
func (p Precision) ScalarTypeDecl(isComplex bool) string {
	var base string
	switch p {
	case PrecisionSingle:
		base = "float"
	case PrecisionDouble:
		base = "double"
	case PrecisionHalf:
		base = "_Float16"
	}
	if isComplex {
		return "typedef complex_t<" + base + "> scalar_type;\n"
	}
	return "typedef " + base + " scalar_type;\n"
}

// ArrayType describes the memory layout of a kernel input or output.
type ArrayType uint8

const (
	ArrayComplexInterleaved ArrayType = iota
	ArrayComplexPlanar
	ArrayReal
	ArrayHermitianInterleaved
	ArrayHermitianPlanar
)

// IsPlanar reports whether real and imaginary parts live in separate arrays.
func (a ArrayType) IsPlanar() bool {
	return a == ArrayComplexPlanar || a == ArrayHermitianPlanar
}

// IsComplex reports whether elements are complex pairs.
func (a ArrayType) IsComplex() bool {
	return a != ArrayReal
}

// String returns the kernel-name suffix for the layout.  Hermitian layouts
// generate the same code as their complex counterparts, so they share names.
func (a ArrayType) String() string {
	switch a {
	case ArrayComplexInterleaved, ArrayHermitianInterleaved:
		return "_CI"
	case ArrayComplexPlanar, ArrayHermitianPlanar:
		return "_CP"
	case ArrayReal:
		return "_R"
	default:
		return "_UN"
	}
}

// CallbackType describes which user element-transform hooks a kernel honors.
type CallbackType uint8

const (
	CallbackNone CallbackType = iota
	CallbackLoadStore
	CallbackLoadStoreR2C
	CallbackLoadStoreC2R
)

// String returns the kernel-name suffix for the callback configuration.
func (c CallbackType) String() string {
	switch c {
	case CallbackNone:
		return ""
	case CallbackLoadStore:
		return "_CB"
	case CallbackLoadStoreR2C:
		return "_CBr2c"
	case CallbackLoadStoreC2R:
		return "_CBc2r"
	default:
		return ""
	}
}

// ConstDecl returns the compile-time callback constant for generated source.
func (c CallbackType) ConstDecl() string {
	name := "NONE"
	switch c {
	case CallbackLoadStore:
		name = "USER_LOAD_STORE"
	case CallbackLoadStoreR2C:
		name = "USER_LOAD_STORE_R2C"
	case CallbackLoadStoreC2R:
		name = "USER_LOAD_STORE_C2R"
	}
	return "static const CallbackType cbtype = CallbackType::" + name + ";\n"
}

// Scheme tags one step of a transform plan.  The planning stage (outside
// this module) decomposes a transform into a tree of nodes, each carrying
// one of these schemes.
type Scheme uint8

const (
	// SchemeNone marks metadata-only nodes that launch no kernel.
	SchemeNone Scheme = iota
	SchemeStockham
	SchemeTranspose
	SchemeCopyRealToComplex
	SchemeCopyComplexToHermitian
	SchemeCopyHermitianToComplex
	SchemeCopyComplexToReal
	SchemeRealToComplexEven
	SchemeComplexToRealEven
	SchemeRealToComplexEvenTranspose
	SchemeTransposeComplexToRealEven
	SchemeBluesteinSingle
	SchemeBluesteinChirp
	SchemeBluesteinPadMul
	SchemeBluesteinFFTMul
	SchemeBluesteinResMul
)

var schemeNames = map[Scheme]string{
	SchemeNone:                       "none",
	SchemeStockham:                   "stockham",
	SchemeTranspose:                  "transpose",
	SchemeCopyRealToComplex:          "r2c_copy",
	SchemeCopyComplexToHermitian:     "c2herm_copy",
	SchemeCopyHermitianToComplex:     "herm2c_copy",
	SchemeCopyComplexToReal:          "c2r_copy",
	SchemeRealToComplexEven:          "r2c_even_post",
	SchemeComplexToRealEven:          "c2r_even_pre",
	SchemeRealToComplexEvenTranspose: "r2c_even_post_transpose",
	SchemeTransposeComplexToRealEven: "transpose_c2r_even_pre",
	SchemeBluesteinSingle:            "bluestein_single",
	SchemeBluesteinChirp:             "bluestein_chirp",
	SchemeBluesteinPadMul:            "bluestein_pad_mul",
	SchemeBluesteinFFTMul:            "bluestein_fft_mul",
	SchemeBluesteinResMul:            "bluestein_res_mul",
}

func (s Scheme) String() string {
	if n, ok := schemeNames[s]; ok {
		return n
	}
	return "scheme" + strconv.Itoa(int(s))
}

// Dim3 is a three-dimensional launch shape (grid or work-group).
type Dim3 struct {
	X, Y, Z uint32
}

// Total returns the element count of the shape.
func (d Dim3) Total() uint64 {
	return uint64(d.X) * uint64(d.Y) * uint64(d.Z)
}

// PlanNode describes one step of a transform plan.  It is produced by the
// external planning stage and consumed here to select and specialize a
// kernel.  Nodes are immutable once handed to RuntimeCompile.
type PlanNode struct {
	Scheme    Scheme
	Length    []uint // per-dimension lengths, fastest first
	InStride  []uint
	OutStride []uint
	IDist     uint // distance between batches, input
	ODist     uint
	Batch     uint
	Precision Precision
	InType    ArrayType
	OutType   ArrayType
	Callback  CallbackType

	// OutputLength is set on nodes whose output shape differs from the
	// input shape (hermitian unpacking).
	OutputLength []uint

	// LargeTwdSteps/LargeTwdDirection configure twiddle multiplication
	// fused into transpose kernels.  Zero steps means no fusion.
	LargeTwdSteps     int
	LargeTwdDirection int

	// Diagonal enables diagonal block reordering for transpose kernels.
	Diagonal bool

	// Direction is -1 for forward transforms and +1 for inverse; only
	// the Bluestein families specialize on it.
	Direction int
}

// Dim returns the dimensionality of the node (1-3).
func (n *PlanNode) Dim() int {
	return len(n.Length)
}

// CallbackType returns the node's callback configuration, downgraded to
// CallbackNone unless callbacks were requested by the caller.
func (n *PlanNode) CallbackType(enable bool) CallbackType {
	if !enable {
		return CallbackNone
	}
	return n.Callback
}

// DeviceCallInfo carries the per-launch device pointers for a node.  All
// pointers are opaque device addresses owned by the execution stage.
type DeviceCallInfo struct {
	BufIn  [2]uint64
	BufOut [2]uint64

	Twiddles      uint64
	TwiddlesLarge uint64

	// ChirpTable is the Bluestein chirp buffer, where applicable.
	ChirpTable uint64

	// Device-resident copies of lengths/strides for kernels that take
	// them as pointer arguments.
	DevLengths   uint64
	DevStrideIn  uint64
	DevStrideOut uint64

	LoadCBFn       uint64
	LoadCBData     uint64
	LoadCBLDSBytes uint32
	StoreCBFn      uint64
	StoreCBData    uint64
}
