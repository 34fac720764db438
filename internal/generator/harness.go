package generator

import "strings"

// isCallbackArg reports whether a parameter belongs to the callback tail
// appended to every kernel.  The harness hardcodes those to null/zero.
func isCallbackArg(name string) bool {
	switch name {
	case "load_cb_fn", "load_cb_data", "load_cb_lds_bytes", "store_cb_fn", "store_cb_data":
		return true
	}
	return false
}

// harnessType strips qualifiers that make sense for kernel parameters but
// not for host-side declarations.
func harnessType(t string) string {
	return strings.TrimPrefix(t, "const ")
}

// Harness wraps generated kernel source in a minimal host driver that
// allocates device buffers for every pointer argument, zero-initializes
// scalar arguments, and launches the kernel once.  The output is a
// standalone translation unit for offline validation; it is a development
// side output, never compiled in production.
func Harness(f *Function, kernelSrc string) string {
	var sb strings.Builder
	sb.WriteString("// standalone harness for ")
	sb.WriteString(f.Name)
	sb.WriteString("\n// edit init_kernel() to set problem inputs, then build this file\n")
	sb.WriteString("// with the device toolchain and run it directly.\n\n")
	sb.WriteString(kernelSrc)
	sb.WriteString("\n")

	sb.WriteString("dim3 gridDim;\ndim3 blockDim;\nunsigned int lds_bytes;\n\n")

	// one host-side global per kernel argument
	for _, arg := range f.Args {
		if isCallbackArg(arg.Name) {
			continue
		}
		if arg.Pointer {
			sb.WriteString("gpubuf_t<")
			sb.WriteString(harnessType(arg.Type))
			sb.WriteString("> ")
		} else {
			sb.WriteString(harnessType(arg.Type))
			sb.WriteString(" ")
		}
		sb.WriteString(arg.Name)
		sb.WriteString(";\n")
	}

	sb.WriteString("\nvoid init_kernel()\n{\n")
	sb.WriteString("    // edit this function to set the inputs to the kernel\n")
	sb.WriteString("    gridDim = {1, 1, 1};\n")
	sb.WriteString("    blockDim = {1, 1, 1};\n")
	sb.WriteString("    lds_bytes = 0;\n")
	for _, arg := range f.Args {
		if isCallbackArg(arg.Name) || arg.Pointer {
			continue
		}
		sb.WriteString("    ")
		sb.WriteString(arg.Name)
		sb.WriteString(" = 0;\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("int main()\n{\n")
	sb.WriteString("    init_kernel();\n")
	sb.WriteString("    ")
	sb.WriteString(f.Name)
	sb.WriteString("<<<gridDim, blockDim, lds_bytes>>>(")
	for i, arg := range f.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		switch {
		case isCallbackArg(arg.Name) && strings.HasPrefix(arg.Name, "load_cb_lds"):
			sb.WriteString("0")
		case isCallbackArg(arg.Name):
			sb.WriteString("nullptr")
		case arg.Pointer:
			sb.WriteString(arg.Name)
			sb.WriteString(".data()")
		default:
			sb.WriteString(arg.Name)
		}
	}
	sb.WriteString(");\n")
	sb.WriteString("    return hipDeviceSynchronize() == hipSuccess ? 0 : 1;\n")
	sb.WriteString("}\n")
	return sb.String()
}
