// Package generator provides a small statement/expression tree for emitting
// kernel source text.  Per-family emitters build a Function out of these
// nodes and render it; layout and callback specializations are tree-to-tree
// rewrites applied after emission, so emitters stay free of special cases.
package generator

import (
	"strconv"
	"strings"
)

// Expr is a renderable expression node.
type Expr interface {
	renderExpr(sb *strings.Builder)
}

// Literal is raw expression text: thread builtins, numeric constants,
// identifiers that need no further structure.
type Literal string

func (l Literal) renderExpr(sb *strings.Builder) {
	sb.WriteString(string(l))
}

// Int renders an integer literal.
func Int[T int | uint | uint32 | uint64](v T) Literal {
	return Literal(strconv.FormatUint(uint64(v), 10))
}

// Variable is a named value: a kernel argument, a local, or a shared-memory
// tile.  Variables are valid expressions wherever their name is.
type Variable struct {
	Name string
	Type string
	// Pointer marks pointer-typed variables; Restrict adds __restrict__
	// to the declaration.
	Pointer  bool
	Restrict bool
	// Size/Size2D make the declaration an array (shared-memory tiles).
	Size   Expr
	Size2D Expr
}

func (v Variable) renderExpr(sb *strings.Builder) {
	sb.WriteString(v.Name)
}

// Index returns v[i].
func (v Variable) Index(i Expr) Expr {
	return indexExpr{base: v, idx: i}
}

// At returns v[x][y] for 2D tiles.
func (v Variable) At(x, y Expr) Expr {
	return indexExpr{base: indexExpr{base: v, idx: x}, idx: y}
}

// X returns the real component v.x.
func (v Variable) X() Expr { return Member{Of: v, Field: "x"} }

// Y returns the imaginary component v.y.
func (v Variable) Y() Expr { return Member{Of: v, Field: "y"} }

func (v Variable) renderDecl(sb *strings.Builder) {
	sb.WriteString(v.Type)
	sb.WriteByte(' ')
	if v.Pointer {
		sb.WriteByte('*')
		if v.Restrict {
			sb.WriteString(" __restrict__ ")
		}
	}
	sb.WriteString(v.Name)
	if v.Size != nil {
		sb.WriteByte('[')
		v.Size.renderExpr(sb)
		sb.WriteByte(']')
	}
	if v.Size2D != nil {
		sb.WriteByte('[')
		v.Size2D.renderExpr(sb)
		sb.WriteByte(']')
	}
}

type indexExpr struct {
	base Expr
	idx  Expr
}

func (e indexExpr) renderExpr(sb *strings.Builder) {
	e.base.renderExpr(sb)
	sb.WriteByte('[')
	e.idx.renderExpr(sb)
	sb.WriteByte(']')
}

// Index returns base[i] for an arbitrary base expression.
func Index(base, i Expr) Expr {
	return indexExpr{base: base, idx: i}
}

// Member is a component access like elem.x.
type Member struct {
	Of    Expr
	Field string
}

func (m Member) renderExpr(sb *strings.Builder) {
	m.Of.renderExpr(sb)
	sb.WriteByte('.')
	sb.WriteString(m.Field)
}

type binExpr struct {
	op   string
	l, r Expr
}

func (e binExpr) renderExpr(sb *strings.Builder) {
	renderOperand(sb, e.l)
	sb.WriteByte(' ')
	sb.WriteString(e.op)
	sb.WriteByte(' ')
	renderOperand(sb, e.r)
}

// renderOperand parenthesizes nested binary and ternary operands so that
// rendering never depends on operator precedence.
func renderOperand(sb *strings.Builder, e Expr) {
	switch e.(type) {
	case binExpr, Ternary:
		sb.WriteByte('(')
		e.renderExpr(sb)
		sb.WriteByte(')')
	default:
		e.renderExpr(sb)
	}
}

// Binary operator constructors.
func Add(l, r Expr) Expr { return binExpr{"+", l, r} }
func Sub(l, r Expr) Expr { return binExpr{"-", l, r} }
func Mul(l, r Expr) Expr { return binExpr{"*", l, r} }
func Div(l, r Expr) Expr { return binExpr{"/", l, r} }
func Mod(l, r Expr) Expr { return binExpr{"%", l, r} }
func Lt(l, r Expr) Expr  { return binExpr{"<", l, r} }
func Le(l, r Expr) Expr  { return binExpr{"<=", l, r} }
func Gt(l, r Expr) Expr  { return binExpr{">", l, r} }
func Ge(l, r Expr) Expr  { return binExpr{">=", l, r} }
func Eq(l, r Expr) Expr  { return binExpr{"==", l, r} }
func Ne(l, r Expr) Expr  { return binExpr{"!=", l, r} }
func And(l, r Expr) Expr { return binExpr{"&&", l, r} }
func Or(l, r Expr) Expr  { return binExpr{"||", l, r} }

// AddN folds a list of terms into a sum.
func AddN(terms ...Expr) Expr {
	e := terms[0]
	for _, t := range terms[1:] {
		e = Add(e, t)
	}
	return e
}

// Neg is unary minus.
type Neg struct {
	Of Expr
}

func (n Neg) renderExpr(sb *strings.Builder) {
	sb.WriteByte('-')
	renderOperand(sb, n.Of)
}

// Ternary is cond ? then : otherwise.
type Ternary struct {
	Cond, Then, Else Expr
}

func (t Ternary) renderExpr(sb *strings.Builder) {
	renderOperand(sb, t.Cond)
	sb.WriteString(" ? ")
	renderOperand(sb, t.Then)
	sb.WriteString(" : ")
	renderOperand(sb, t.Else)
}

// Paren forces parentheses.
type Paren struct {
	Of Expr
}

func (p Paren) renderExpr(sb *strings.Builder) {
	sb.WriteByte('(')
	p.Of.renderExpr(sb)
	sb.WriteByte(')')
}

// CallExpr is a function-call expression.
type CallExpr struct {
	Name string
	Args []Expr
}

func (c CallExpr) renderExpr(sb *strings.Builder) {
	sb.WriteString(c.Name)
	sb.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		a.renderExpr(sb)
	}
	sb.WriteByte(')')
}

// ComplexLiteral builds a scalar_type value from real/imaginary parts.
type ComplexLiteral struct {
	Re, Im Expr
}

func (c ComplexLiteral) renderExpr(sb *strings.Builder) {
	sb.WriteString("scalar_type{")
	c.Re.renderExpr(sb)
	sb.WriteString(", ")
	c.Im.renderExpr(sb)
	sb.WriteByte('}')
}

// LoadGlobal reads one element from global memory through the load
// callback.  Emitters must use it for every global read so that the planar
// rewrite can find all load sites.
type LoadGlobal struct {
	Ptr Variable
	Idx Expr
}

func (l LoadGlobal) renderExpr(sb *strings.Builder) {
	sb.WriteString("load_cb(")
	sb.WriteString(l.Ptr.Name)
	sb.WriteString(", ")
	l.Idx.renderExpr(sb)
	sb.WriteString(", load_cb_data, load_cb_lds_bytes)")
}

// Stmt is a renderable statement node.
type Stmt interface {
	renderStmt(sb *strings.Builder, indent int)
}

// StmtList is an ordered statement sequence.
type StmtList []Stmt

func (l *StmtList) Add(s ...Stmt) {
	*l = append(*l, s...)
}

func (l StmtList) renderList(sb *strings.Builder, indent int) {
	for _, s := range l {
		s.renderStmt(sb, indent)
	}
}

func writeIndent(sb *strings.Builder, indent int) {
	for i := 0; i < indent; i++ {
		sb.WriteString("    ")
	}
}

// Decl declares a variable with an optional initializer.
type Decl struct {
	Var  Variable
	Init Expr
}

func (d Decl) renderStmt(sb *strings.Builder, indent int) {
	writeIndent(sb, indent)
	d.Var.renderDecl(sb)
	if d.Init != nil {
		sb.WriteString(" = ")
		d.Init.renderExpr(sb)
	}
	sb.WriteString(";\n")
}

// Assign is lhs = rhs.
type Assign struct {
	LHS, RHS Expr
}

func (a Assign) renderStmt(sb *strings.Builder, indent int) {
	writeIndent(sb, indent)
	a.LHS.renderExpr(sb)
	sb.WriteString(" = ")
	a.RHS.renderExpr(sb)
	sb.WriteString(";\n")
}

// AddAssign is lhs += rhs.
type AddAssign struct {
	LHS, RHS Expr
}

func (a AddAssign) renderStmt(sb *strings.Builder, indent int) {
	writeIndent(sb, indent)
	a.LHS.renderExpr(sb)
	sb.WriteString(" += ")
	a.RHS.renderExpr(sb)
	sb.WriteString(";\n")
}

// ModAssign is lhs %= rhs.
type ModAssign struct {
	LHS, RHS Expr
}

func (a ModAssign) renderStmt(sb *strings.Builder, indent int) {
	writeIndent(sb, indent)
	a.LHS.renderExpr(sb)
	sb.WriteString(" %= ")
	a.RHS.renderExpr(sb)
	sb.WriteString(";\n")
}

// StoreGlobal writes one element to global memory through the store
// callback.  Emitters must use it for every global write.
type StoreGlobal struct {
	Ptr Variable
	Idx Expr
	Val Expr
}

func (s StoreGlobal) renderStmt(sb *strings.Builder, indent int) {
	writeIndent(sb, indent)
	sb.WriteString("store_cb(")
	sb.WriteString(s.Ptr.Name)
	sb.WriteString(", ")
	s.Idx.renderExpr(sb)
	sb.WriteString(", ")
	s.Val.renderExpr(sb)
	sb.WriteString(", store_cb_data, nullptr);\n")
}

// If is a conditional block with an optional else branch.
type If struct {
	Cond Expr
	Then StmtList
	Else StmtList
}

func (i If) renderStmt(sb *strings.Builder, indent int) {
	writeIndent(sb, indent)
	sb.WriteString("if(")
	i.Cond.renderExpr(sb)
	sb.WriteString(")\n")
	writeIndent(sb, indent)
	sb.WriteString("{\n")
	i.Then.renderList(sb, indent+1)
	writeIndent(sb, indent)
	sb.WriteString("}\n")
	if len(i.Else) > 0 {
		writeIndent(sb, indent)
		sb.WriteString("else\n")
		writeIndent(sb, indent)
		sb.WriteString("{\n")
		i.Else.renderList(sb, indent+1)
		writeIndent(sb, indent)
		sb.WriteString("}\n")
	}
}

// For is a counted loop.
type For struct {
	Var    Variable
	Init   Expr
	Cond   Expr
	Inc    Expr
	Body   StmtList
	Unroll bool
}

func (f For) renderStmt(sb *strings.Builder, indent int) {
	if f.Unroll {
		writeIndent(sb, indent)
		sb.WriteString("#pragma unroll\n")
	}
	writeIndent(sb, indent)
	sb.WriteString("for(")
	f.Var.renderDecl(sb)
	sb.WriteString(" = ")
	f.Init.renderExpr(sb)
	sb.WriteString("; ")
	f.Cond.renderExpr(sb)
	sb.WriteString("; ")
	f.Var.renderExpr(sb)
	sb.WriteString(" += ")
	f.Inc.renderExpr(sb)
	sb.WriteString(")\n")
	writeIndent(sb, indent)
	sb.WriteString("{\n")
	f.Body.renderList(sb, indent+1)
	writeIndent(sb, indent)
	sb.WriteString("}\n")
}

// Return exits the kernel.
type Return struct{}

func (Return) renderStmt(sb *strings.Builder, indent int) {
	writeIndent(sb, indent)
	sb.WriteString("return;\n")
}

// Break exits the innermost loop.
type Break struct{}

func (Break) renderStmt(sb *strings.Builder, indent int) {
	writeIndent(sb, indent)
	sb.WriteString("break;\n")
}

// SyncThreads is a work-group barrier.
type SyncThreads struct{}

func (SyncThreads) renderStmt(sb *strings.Builder, indent int) {
	writeIndent(sb, indent)
	sb.WriteString("__syncthreads();\n")
}

// CommentLines renders structured comments.
type CommentLines []string

func (c CommentLines) renderStmt(sb *strings.Builder, indent int) {
	for _, line := range c {
		writeIndent(sb, indent)
		sb.WriteString("// ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
}

// LineBreak inserts a blank line.
type LineBreak struct{}

func (LineBreak) renderStmt(sb *strings.Builder, _ int) {
	sb.WriteByte('\n')
}

// CallStmt is a call used for its side effect.
type CallStmt struct {
	Call CallExpr
}

func (c CallStmt) renderStmt(sb *strings.Builder, indent int) {
	writeIndent(sb, indent)
	c.Call.renderExpr(sb)
	sb.WriteString(";\n")
}

// RawDecl injects a verbatim declaration statement (callback handle setup
// and similar lines that need no tree structure).
type RawDecl string

func (r RawDecl) renderStmt(sb *strings.Builder, indent int) {
	writeIndent(sb, indent)
	sb.WriteString(string(r))
	sb.WriteByte('\n')
}

// Function is one generated kernel.
type Function struct {
	Name      string
	Qualifier string
	// LaunchBounds caps threads per block for the compiler; zero omits
	// the attribute.
	LaunchBounds uint32
	Args         []Variable
	Body         StmtList
}

// Render emits the function as source text.  Rendering is deterministic:
// equal trees produce byte-identical output.
func (f *Function) Render() string {
	var sb strings.Builder
	sb.WriteString(f.Qualifier)
	if f.LaunchBounds > 0 {
		sb.WriteString(" __launch_bounds__(")
		sb.WriteString(strconv.FormatUint(uint64(f.LaunchBounds), 10))
		sb.WriteByte(')')
	}
	sb.WriteString(" void ")
	sb.WriteString(f.Name)
	sb.WriteString("(")
	for i := range f.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		f.Args[i].renderDecl(&sb)
	}
	sb.WriteString(")\n{\n")
	f.Body.renderList(&sb, 1)
	sb.WriteString("}\n")
	return sb.String()
}
