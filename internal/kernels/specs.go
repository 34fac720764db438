// Package kernels holds the kernel specifications, the per-family source
// emitters, and the selector that maps a plan node onto the first
// applicable generator family.
package kernels

import (
	"fmt"
	"strconv"

	"github.com/cwbudde/algo-rtc/internal/fftypes"
)

// launchBoundsRealComplex is the work-group size used by the thread-per-
// element real/complex conversion kernels.
const launchBoundsRealComplex = 512

// stockhamBlockSize is the work-group size for single-pass Stockham
// kernels.
const stockhamBlockSize = 256

// preamble is the fixed header text prepended to every generated kernel:
// the complex type, arithmetic helpers, and callback plumbing that the
// device runtime headers normally provide.
const preamble = `// generated by algo-rtc; do not edit
#include "algortc_complex.h"
#include "algortc_common.h"
#include "algortc_callback.h"
`

// SpecBase carries the attributes shared by every kernel specification.
// Two attribute-equal specs must generate byte-identical source; any
// attribute difference must show up in the kernel name.
type SpecBase struct {
	Scheme    fftypes.Scheme
	Dim       int
	Precision fftypes.Precision
	InType    fftypes.ArrayType
	OutType   fftypes.ArrayType
	Callback  fftypes.CallbackType
}

// nameSuffix renders the common trailing name components: precision,
// layouts, callback kind.
func (s SpecBase) nameSuffix() string {
	return s.Precision.String() + s.InType.String() + s.OutType.String() + s.Callback.String()
}

// declarations renders the common source prologue for the spec.
func (s SpecBase) declarations(isComplex bool) string {
	src := preamble
	src += s.Precision.ScalarTypeDecl(isComplex)
	src += s.Callback.ConstDecl()
	src += "static const unsigned int dim = " + strconv.Itoa(s.Dim) + ";\n"
	return src
}

// RealComplexSpec specializes the thread-per-element copy kernels between
// real, complex, and hermitian layouts.
type RealComplexSpec struct {
	SpecBase
}

// RealComplexEvenSpec specializes the post/pre-processing butterfly kernels
// of even-length real transforms.  Ndiv4 marks lengths divisible by four,
// whose quarter index pairs with itself and takes a separate branch.
type RealComplexEvenSpec struct {
	SpecBase
	Ndiv4 bool
}

// RealComplexEvenTransposeSpec fuses the even-length pre/post butterfly
// with a tiled transpose.
type RealComplexEvenTransposeSpec struct {
	SpecBase
}

// TileX is the tile width for the fused kernel.  The r2c direction reads
// rows from the fastest dimension and uses a wide tile.
func (s RealComplexEvenTransposeSpec) TileX() uint {
	if s.Scheme == fftypes.SchemeRealToComplexEvenTranspose {
		return 64
	}
	return 32
}

// TileY is the tile height for the fused kernel.
func (s RealComplexEvenTransposeSpec) TileY() uint {
	return 16
}

// TransposeSpec specializes the tiled transpose kernels, optionally fused
// with large-twiddle multiplication.
type TransposeSpec struct {
	SpecBase
	TileX             uint
	TileY             uint
	LargeTwdSteps     int
	LargeTwdDirection int
	Diagonal          bool
	TileAligned       bool
}

// StockhamSpec specializes single-pass Stockham butterfly kernels for one
// 1D length decomposed into radix factors.
type StockhamSpec struct {
	SpecBase
	Length  uint
	Factors []uint
}

// BluesteinSingleSpec specializes the whole-transform single-kernel
// Bluestein path for small arbitrary lengths.
type BluesteinSingleSpec struct {
	SpecBase
	Length    uint
	Direction int
}

// BluesteinMultiSpec specializes one of the pointwise kernels of the
// multi-kernel Bluestein path (chirp table setup, padded forward chirp
// multiply, convolution product, final result multiply).
type BluesteinMultiSpec struct {
	SpecBase
	Length    uint
	LengthPad uint
	Direction int
}

func invalidScheme(family string, s fftypes.Scheme) error {
	return fmt.Errorf("invalid %s scheme %q", family, s)
}
