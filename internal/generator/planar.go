package generator

// MakePlanar rewrites a generated function so that the named complex
// pointer argument becomes a pair of real pointer arguments, and every
// global load/store through it becomes a pair of real loads/stores.  The
// rewrite is mechanical and independent of which family emitted the
// function; it is applied as a final pass, once per planar argument.
//
// The input function is not modified.
func MakePlanar(f Function, argName string) Function {
	re := Variable{Name: argName + "re", Type: "real_type_t<scalar_type>", Pointer: true, Restrict: true}
	im := Variable{Name: argName + "im", Type: "real_type_t<scalar_type>", Pointer: true, Restrict: true}

	out := Function{
		Name:         f.Name,
		Qualifier:    f.Qualifier,
		LaunchBounds: f.LaunchBounds,
	}
	for _, arg := range f.Args {
		if arg.Name == argName && arg.Pointer {
			out.Args = append(out.Args, re, im)
			continue
		}
		out.Args = append(out.Args, arg)
	}
	out.Body = planarRewrite(f.Body, argName, re, im)
	return out
}

// argIndex matches a direct subscript of the named argument and returns
// the subscript expression.
func argIndex(e Expr, argName string) (Expr, bool) {
	ix, ok := e.(indexExpr)
	if !ok {
		return nil, false
	}
	v, ok := ix.base.(Variable)
	if !ok || v.Name != argName {
		return nil, false
	}
	return ix.idx, true
}

// splitComplex returns the real and imaginary halves of a complex-valued
// expression.
func splitComplex(e Expr) (Expr, Expr) {
	if lit, ok := e.(ComplexLiteral); ok {
		return lit.Re, lit.Im
	}
	return Member{Of: e, Field: "x"}, Member{Of: e, Field: "y"}
}

func planarRewrite(body StmtList, argName string, re, im Variable) StmtList {
	var out StmtList
	for _, s := range body {
		switch st := s.(type) {
		case Assign:
			if load, ok := st.RHS.(LoadGlobal); ok && load.Ptr.Name == argName {
				out.Add(
					Assign{LHS: Member{Of: st.LHS, Field: "x"}, RHS: LoadGlobal{Ptr: re, Idx: load.Idx}},
					Assign{LHS: Member{Of: st.LHS, Field: "y"}, RHS: LoadGlobal{Ptr: im, Idx: load.Idx}},
				)
				continue
			}
			if idx, ok := argIndex(st.LHS, argName); ok {
				reVal, imVal := splitComplex(st.RHS)
				out.Add(
					Assign{LHS: re.Index(idx), RHS: reVal},
					Assign{LHS: im.Index(idx), RHS: imVal},
				)
				continue
			}
			if idx, ok := argIndex(st.RHS, argName); ok {
				out.Add(
					Assign{LHS: Member{Of: st.LHS, Field: "x"}, RHS: re.Index(idx)},
					Assign{LHS: Member{Of: st.LHS, Field: "y"}, RHS: im.Index(idx)},
				)
				continue
			}
			out.Add(st)
		case Decl:
			if load, ok := st.Init.(LoadGlobal); ok && load.Ptr.Name == argName {
				out.Add(
					Decl{Var: st.Var},
					Assign{LHS: st.Var.X(), RHS: LoadGlobal{Ptr: re, Idx: load.Idx}},
					Assign{LHS: st.Var.Y(), RHS: LoadGlobal{Ptr: im, Idx: load.Idx}},
				)
				continue
			}
			if idx, ok := argIndex(st.Init, argName); ok {
				out.Add(
					Decl{Var: st.Var},
					Assign{LHS: st.Var.X(), RHS: re.Index(idx)},
					Assign{LHS: st.Var.Y(), RHS: im.Index(idx)},
				)
				continue
			}
			out.Add(st)
		case StoreGlobal:
			if st.Ptr.Name == argName {
				out.Add(
					StoreGlobal{Ptr: re, Idx: st.Idx, Val: Member{Of: st.Val, Field: "x"}},
					StoreGlobal{Ptr: im, Idx: st.Idx, Val: Member{Of: st.Val, Field: "y"}},
				)
				continue
			}
			out.Add(st)
		case If:
			out.Add(If{
				Cond: st.Cond,
				Then: planarRewrite(st.Then, argName, re, im),
				Else: planarRewrite(st.Else, argName, re, im),
			})
		case For:
			out.Add(For{
				Var:    st.Var,
				Init:   st.Init,
				Cond:   st.Cond,
				Inc:    st.Inc,
				Body:   planarRewrite(st.Body, argName, re, im),
				Unroll: st.Unroll,
			})
		default:
			out.Add(s)
		}
	}
	return out
}
