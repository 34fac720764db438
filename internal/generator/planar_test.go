package generator

import (
	"strings"
	"testing"
)

func planarTestFunction() Function {
	input := Variable{Name: "input", Type: "scalar_type", Pointer: true, Restrict: true}
	output := Variable{Name: "output", Type: "scalar_type", Pointer: true, Restrict: true}
	n := Variable{Name: "n", Type: "const unsigned int"}
	idx := Variable{Name: "idx", Type: "const unsigned int"}
	elem := Variable{Name: "elem", Type: "scalar_type"}

	fn := Function{Name: "k", Qualifier: "__global__", Args: []Variable{n, input, output}}
	fn.Body.Add(Decl{Var: idx, Init: Literal("threadIdx.x")})
	guard := If{Cond: Lt(idx, n)}
	guard.Then.Add(Decl{Var: elem, Init: LoadGlobal{Ptr: input, Idx: idx}})
	guard.Then.Add(StoreGlobal{Ptr: output, Idx: idx, Val: elem})
	fn.Body.Add(guard)
	return fn
}

func TestMakePlanarSplitsArgument(t *testing.T) {
	t.Parallel()

	fn := planarTestFunction()
	got := MakePlanar(fn, "input")

	if len(got.Args) != len(fn.Args)+1 {
		t.Fatalf("planar rewrite: %d args, want %d", len(got.Args), len(fn.Args)+1)
	}
	if got.Args[1].Name != "inputre" || got.Args[2].Name != "inputim" {
		t.Errorf("planar args = %q, %q, want inputre, inputim", got.Args[1].Name, got.Args[2].Name)
	}
	for _, arg := range got.Args {
		if arg.Name == "input" {
			t.Error("original complex argument must be removed")
		}
	}
	if got.Args[0].Name != "n" || got.Args[3].Name != "output" {
		t.Error("unrelated arguments must keep their positions")
	}
}

func TestMakePlanarRewritesLoads(t *testing.T) {
	t.Parallel()

	fn := MakePlanar(planarTestFunction(), "input")
	src := fn.Render()

	if strings.Contains(src, "load_cb(input,") {
		t.Error("complex load site survived the rewrite")
	}
	if !strings.Contains(src, "elem.x = load_cb(inputre, idx, load_cb_data, load_cb_lds_bytes);") {
		t.Errorf("missing real-part load:\n%s", src)
	}
	if !strings.Contains(src, "elem.y = load_cb(inputim, idx, load_cb_data, load_cb_lds_bytes);") {
		t.Errorf("missing imaginary-part load:\n%s", src)
	}
	// the store through the untouched argument stays complex
	if !strings.Contains(src, "store_cb(output, idx, elem, store_cb_data, nullptr);") {
		t.Errorf("store through non-planar argument was rewritten:\n%s", src)
	}
}

func TestMakePlanarRewritesStores(t *testing.T) {
	t.Parallel()

	fn := MakePlanar(planarTestFunction(), "output")
	src := fn.Render()

	if strings.Contains(src, "store_cb(output,") {
		t.Error("complex store site survived the rewrite")
	}
	if !strings.Contains(src, "store_cb(outputre, idx, elem.x, store_cb_data, nullptr);") {
		t.Errorf("missing real-part store:\n%s", src)
	}
	if !strings.Contains(src, "store_cb(outputim, idx, elem.y, store_cb_data, nullptr);") {
		t.Errorf("missing imaginary-part store:\n%s", src)
	}
}

func TestMakePlanarDirectIndexing(t *testing.T) {
	t.Parallel()

	// direct-index traffic deliberately bypasses the callbacks (the
	// hermitian unpack and the bluestein products do this); the rewrite
	// must still split those sites
	input := Variable{Name: "input", Type: "scalar_type", Pointer: true, Restrict: true}
	output := Variable{Name: "output", Type: "scalar_type", Pointer: true, Restrict: true}
	idx := Variable{Name: "idx", Type: "const unsigned int"}
	elem := Variable{Name: "elem", Type: "scalar_type"}

	fn := Function{Name: "k", Qualifier: "__global__", Args: []Variable{input, output}}
	fn.Body.Add(Decl{Var: elem, Init: input.Index(idx)})
	fn.Body.Add(Assign{LHS: output.Index(idx), RHS: elem})
	fn.Body.Add(Assign{LHS: output.Index(Add(idx, Int(1))),
		RHS: ComplexLiteral{Re: Literal("0.0"), Im: Literal("1.0")}})

	planar := MakePlanar(MakePlanar(fn, "input"), "output")
	src := planar.Render()

	checks := []string{
		"elem.x = inputre[idx];",
		"elem.y = inputim[idx];",
		"outputre[idx] = elem.x;",
		"outputim[idx] = elem.y;",
		// literal stores split into their components without a temporary
		"outputre[idx + 1] = 0.0;",
		"outputim[idx + 1] = 1.0;",
	}
	for _, want := range checks {
		if !strings.Contains(src, want) {
			t.Errorf("missing %q in:\n%s", want, src)
		}
	}
	if strings.Contains(src, "input[") || strings.Contains(src, "output[") {
		t.Errorf("complex direct-index site survived:\n%s", src)
	}
}

func TestMakePlanarRecursesIntoBlocks(t *testing.T) {
	t.Parallel()

	input := Variable{Name: "input", Type: "scalar_type", Pointer: true, Restrict: true}
	idx := Variable{Name: "e", Type: "unsigned int"}
	elem := Variable{Name: "elem", Type: "scalar_type"}

	fn := Function{Name: "k", Qualifier: "__global__", Args: []Variable{input}}
	loop := For{Var: idx, Init: Int(0), Cond: Lt(idx, Int(4)), Inc: Int(1)}
	inner := If{Cond: Lt(idx, Int(2))}
	inner.Then.Add(Decl{Var: elem, Init: LoadGlobal{Ptr: input, Idx: idx}})
	loop.Body.Add(inner)
	fn.Body.Add(loop)

	planar := MakePlanar(fn, "input")
	src := planar.Render()
	if !strings.Contains(src, "load_cb(inputre, e,") || !strings.Contains(src, "load_cb(inputim, e,") {
		t.Errorf("rewrite must reach loads nested in loops and branches:\n%s", src)
	}
}

func TestMakePlanarLeavesInputUnmodified(t *testing.T) {
	t.Parallel()

	fn := planarTestFunction()
	before := fn.Render()
	MakePlanar(fn, "input")
	if fn.Render() != before {
		t.Error("MakePlanar must not modify its input function")
	}
}
