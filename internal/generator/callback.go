package generator

// CallbackArgs returns the trailing parameters every kernel carries for
// user load/store hooks, in the order launch-arg packing appends them.
func CallbackArgs() []Variable {
	return []Variable{
		{Name: "load_cb_fn", Type: "void", Pointer: true},
		{Name: "load_cb_data", Type: "void", Pointer: true},
		{Name: "load_cb_lds_bytes", Type: "unsigned int"},
		{Name: "store_cb_fn", Type: "void", Pointer: true},
		{Name: "store_cb_data", Type: "void", Pointer: true},
	}
}

// CallbackLoadDecl resolves the load hook into a callable for the given
// element type.  With cbtype == NONE the helper degenerates to a plain
// global read.
func CallbackLoadDecl(elemType string) Stmt {
	return RawDecl("auto load_cb = get_load_cb<" + elemType + ", cbtype>(load_cb_fn);")
}

// CallbackStoreDecl resolves the store hook into a callable.
func CallbackStoreDecl(elemType string) Stmt {
	return RawDecl("auto store_cb = get_store_cb<" + elemType + ", cbtype>(store_cb_fn);")
}
