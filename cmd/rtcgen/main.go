// rtcgen emits generated kernel source offline: the same specialization
// the runtime performs, but written to disk for inspection or for
// building standalone with the device toolchain.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-rtc/internal/fftypes"
	"github.com/cwbudde/algo-rtc/internal/kernels"
)

var schemes = map[string]fftypes.Scheme{
	"stockham":                fftypes.SchemeStockham,
	"transpose":               fftypes.SchemeTranspose,
	"r2c_copy":                fftypes.SchemeCopyRealToComplex,
	"c2herm_copy":             fftypes.SchemeCopyComplexToHermitian,
	"herm2c_copy":             fftypes.SchemeCopyHermitianToComplex,
	"c2r_copy":                fftypes.SchemeCopyComplexToReal,
	"r2c_even_post":           fftypes.SchemeRealToComplexEven,
	"c2r_even_pre":            fftypes.SchemeComplexToRealEven,
	"r2c_even_post_transpose": fftypes.SchemeRealToComplexEvenTranspose,
	"transpose_c2r_even_pre":  fftypes.SchemeTransposeComplexToRealEven,
	"bluestein_single":        fftypes.SchemeBluesteinSingle,
	"bluestein_chirp":         fftypes.SchemeBluesteinChirp,
	"bluestein_pad_mul":       fftypes.SchemeBluesteinPadMul,
	"bluestein_fft_mul":       fftypes.SchemeBluesteinFFTMul,
	"bluestein_res_mul":       fftypes.SchemeBluesteinResMul,
}

var precisions = map[string]fftypes.Precision{
	"single": fftypes.PrecisionSingle,
	"double": fftypes.PrecisionDouble,
	"half":   fftypes.PrecisionHalf,
}

var arrayTypes = map[string]fftypes.ArrayType{
	"ci":   fftypes.ArrayComplexInterleaved,
	"cp":   fftypes.ArrayComplexPlanar,
	"real": fftypes.ArrayReal,
	"hi":   fftypes.ArrayHermitianInterleaved,
	"hp":   fftypes.ArrayHermitianPlanar,
}

var callbacks = map[string]fftypes.CallbackType{
	"none":      fftypes.CallbackNone,
	"loadstore": fftypes.CallbackLoadStore,
	"r2c":       fftypes.CallbackLoadStoreR2C,
	"c2r":       fftypes.CallbackLoadStoreC2R,
}

type emitFlags struct {
	scheme    string
	lengths   []uint
	precision string
	inType    string
	outType   string
	callback  string
	batch     uint
	direction int
	outDir    string
	harness   bool
}

func lookup[V any](table map[string]V, key, what string) (V, error) {
	v, ok := table[strings.ToLower(key)]
	if !ok {
		var zero V
		keys := make([]string, 0, len(table))
		for k := range table {
			keys = append(keys, k)
		}
		return zero, fmt.Errorf("unknown %s %q (one of: %s)", what, key, strings.Join(keys, ", "))
	}
	return v, nil
}

func buildNode(f emitFlags) (*fftypes.PlanNode, error) {
	scheme, err := lookup(schemes, f.scheme, "scheme")
	if err != nil {
		return nil, err
	}
	prec, err := lookup(precisions, f.precision, "precision")
	if err != nil {
		return nil, err
	}
	inType, err := lookup(arrayTypes, f.inType, "input layout")
	if err != nil {
		return nil, err
	}
	outType, err := lookup(arrayTypes, f.outType, "output layout")
	if err != nil {
		return nil, err
	}
	cb, err := lookup(callbacks, f.callback, "callback kind")
	if err != nil {
		return nil, err
	}
	if len(f.lengths) == 0 || len(f.lengths) > 3 {
		return nil, fmt.Errorf("need 1-3 lengths, got %d", len(f.lengths))
	}

	// contiguous row-major strides; rtcgen emits source, it never
	// launches, so only the specialization-relevant attributes matter
	strides := make([]uint, len(f.lengths))
	stride := uint(1)
	for i, l := range f.lengths {
		strides[i] = stride
		stride *= l
	}
	dist := stride

	return &fftypes.PlanNode{
		Scheme:    scheme,
		Length:    f.lengths,
		InStride:  strides,
		OutStride: strides,
		IDist:     dist,
		ODist:     dist,
		Batch:     f.batch,
		Precision: prec,
		InType:    inType,
		OutType:   outType,
		Callback:  cb,
		Direction: f.direction,
	}, nil
}

func runEmit(f emitFlags, nameOnly bool) error {
	node, err := buildNode(f)
	if err != nil {
		return err
	}
	sel, err := kernels.FromNode(node, f.callback != "none")
	if err != nil {
		return err
	}
	switch sel.State {
	case kernels.SelectionNone:
		return fmt.Errorf("scheme %q launches no kernel", f.scheme)
	case kernels.SelectionPrecompiled:
		fmt.Println(sel.PrecompiledName)
		if !nameOnly {
			slog.Info("kernel is statically precompiled, nothing to emit")
		}
		return nil
	}

	if nameOnly {
		fmt.Println(sel.Generator.Name)
		return nil
	}

	if err := os.MkdirAll(f.outDir, 0o755); err != nil {
		return err
	}
	if f.harness {
		kernels.SetHarnessDir(f.outDir)
		defer kernels.SetHarnessDir("")
	}
	src, err := sel.Generator.Source()
	if err != nil {
		return err
	}
	path := filepath.Join(f.outDir, sel.Generator.Name+".cpp")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		return err
	}
	slog.Info("kernel emitted", "kernel", sel.Generator.Name, "path", path,
		"grid", sel.Generator.GridDim, "block", sel.Generator.BlockDim)
	return nil
}

func main() {
	var f emitFlags

	root := &cobra.Command{
		Use:           "rtcgen",
		Short:         "emit runtime-generated kernels offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addSpecFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&f.scheme, "scheme", "stockham", "kernel scheme")
		cmd.Flags().UintSliceVar(&f.lengths, "length", []uint{64}, "per-dimension lengths, fastest first")
		cmd.Flags().StringVar(&f.precision, "precision", "single", "single, double, or half")
		cmd.Flags().StringVar(&f.inType, "in", "ci", "input layout (ci, cp, real, hi, hp)")
		cmd.Flags().StringVar(&f.outType, "out", "ci", "output layout (ci, cp, real, hi, hp)")
		cmd.Flags().StringVar(&f.callback, "callback", "none", "callback kind (none, loadstore, r2c, c2r)")
		cmd.Flags().UintVar(&f.batch, "batch", 1, "batch count")
		cmd.Flags().IntVar(&f.direction, "direction", -1, "-1 forward, 1 inverse")
	}

	emit := &cobra.Command{
		Use:   "emit",
		Short: "write generated kernel source to disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmit(f, false)
		},
	}
	addSpecFlags(emit)
	emit.Flags().StringVar(&f.outDir, "dir", ".", "output directory")
	emit.Flags().BoolVar(&f.harness, "harness", false, "also write a standalone test harness")

	name := &cobra.Command{
		Use:   "name",
		Short: "print the kernel name a specification resolves to",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmit(f, true)
		},
	}
	addSpecFlags(name)

	checksum := &cobra.Command{
		Use:   "checksum",
		Short: "print the generator checksum used in cache keys",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(kernels.GeneratorSum())
		},
	}

	root.AddCommand(emit, name, checksum)
	if err := root.Execute(); err != nil {
		slog.Error("rtcgen failed", "error", err)
		os.Exit(1)
	}
}
