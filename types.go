// Package algortc generates, compiles, caches, and launches specialized
// transform kernels at runtime.  A plan node (produced by an external
// planning stage) is mapped onto a generator family, emitted as target
// source, compiled through a pluggable toolchain with a persistent
// binary cache, and loaded onto a device for validated launch.
package algortc

import "github.com/cwbudde/algo-rtc/internal/fftypes"

// Core value types.  The canonical definitions live in internal/fftypes
// so the generator, cache, and device layers can share them without
// importing this package.
type (
	Precision      = fftypes.Precision
	ArrayType      = fftypes.ArrayType
	CallbackType   = fftypes.CallbackType
	Scheme         = fftypes.Scheme
	Dim3           = fftypes.Dim3
	PlanNode       = fftypes.PlanNode
	DeviceCallInfo = fftypes.DeviceCallInfo
	ArgBuffer      = fftypes.ArgBuffer
)

const (
	PrecisionSingle = fftypes.PrecisionSingle
	PrecisionDouble = fftypes.PrecisionDouble
	PrecisionHalf   = fftypes.PrecisionHalf
)

const (
	ArrayComplexInterleaved   = fftypes.ArrayComplexInterleaved
	ArrayComplexPlanar        = fftypes.ArrayComplexPlanar
	ArrayReal                 = fftypes.ArrayReal
	ArrayHermitianInterleaved = fftypes.ArrayHermitianInterleaved
	ArrayHermitianPlanar      = fftypes.ArrayHermitianPlanar
)

const (
	CallbackNone         = fftypes.CallbackNone
	CallbackLoadStore    = fftypes.CallbackLoadStore
	CallbackLoadStoreR2C = fftypes.CallbackLoadStoreR2C
	CallbackLoadStoreC2R = fftypes.CallbackLoadStoreC2R
)

const (
	SchemeNone                       = fftypes.SchemeNone
	SchemeStockham                   = fftypes.SchemeStockham
	SchemeTranspose                  = fftypes.SchemeTranspose
	SchemeCopyRealToComplex          = fftypes.SchemeCopyRealToComplex
	SchemeCopyComplexToHermitian     = fftypes.SchemeCopyComplexToHermitian
	SchemeCopyHermitianToComplex     = fftypes.SchemeCopyHermitianToComplex
	SchemeCopyComplexToReal          = fftypes.SchemeCopyComplexToReal
	SchemeRealToComplexEven          = fftypes.SchemeRealToComplexEven
	SchemeComplexToRealEven          = fftypes.SchemeComplexToRealEven
	SchemeRealToComplexEvenTranspose = fftypes.SchemeRealToComplexEvenTranspose
	SchemeTransposeComplexToRealEven = fftypes.SchemeTransposeComplexToRealEven
	SchemeBluesteinSingle            = fftypes.SchemeBluesteinSingle
	SchemeBluesteinChirp             = fftypes.SchemeBluesteinChirp
	SchemeBluesteinPadMul            = fftypes.SchemeBluesteinPadMul
	SchemeBluesteinFFTMul            = fftypes.SchemeBluesteinFFTMul
	SchemeBluesteinResMul            = fftypes.SchemeBluesteinResMul
)
