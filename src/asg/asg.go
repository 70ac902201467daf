// Package asg fixes the shape of the abstract semantic graph boundary that
// a real front-end (lexer, preprocessor, parser — all out of scope per
// spec §1) would hand to Emit-IR. It defines only the Go interfaces and
// node structs spec §4.2/§6 name; it never reads source text or builds a
// tree from tokens. Tests in src/emitir and src/pipeline construct these
// structs directly, exactly as a real parser would.
package asg

import "yatcc/src/ir"

// Expr is any expression node. Every node carries its resolved type, as
// spec §6 requires ("each expression node carries a resolved type").
type Expr interface {
	ResolvedType() ir.Type
}

// Stmt is any statement node.
type Stmt interface {
	isStmt()
}

// Decl is any top-level or local declaration node.
type Decl interface {
	isDecl()
}

// ---------------------------------------------------------------------
// Expressions (spec §4.2)
// ---------------------------------------------------------------------

// IntegerLiteral is a constant integer of type T.
type IntegerLiteral struct {
	Value int64
	T     ir.Type
}

func (e *IntegerLiteral) ResolvedType() ir.Type { return e.T }

// StringLiteral is a constant string; lowered as a pointer to a synthesized
// global. Out of the distilled spec's scenarios but kept for completeness
// of the expression set spec §6 names.
type StringLiteral struct {
	Value string
	T     ir.Type
}

func (e *StringLiteral) ResolvedType() ir.Type { return e.T }

// DeclRefExpr references a previously declared variable or function by
// name. Emit-IR resolves Name against the current scope (spec §4.2).
type DeclRefExpr struct {
	Name string
	T    ir.Type
}

func (e *DeclRefExpr) ResolvedType() ir.Type { return e.T }

// ParenExpr is a parenthesized sub-expression; it lowers transparently.
type ParenExpr struct {
	Sub Expr
}

func (e *ParenExpr) ResolvedType() ir.Type { return e.Sub.ResolvedType() }

// UnaryOp enumerates the unary operators spec §4.2 lowers.
type UnaryOp int

const (
	UnaryNot UnaryOp = iota // !
	UnaryNeg                // -
	UnaryPlus               // +
)

// UnaryExpr applies Op to Sub.
type UnaryExpr struct {
	Op  UnaryOp
	Sub Expr
	T   ir.Type
}

func (e *UnaryExpr) ResolvedType() ir.Type { return e.T }

// BinaryOp enumerates the binary operators spec §4.2.1/§4.5 name, including
// the short-circuit logical operators.
type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinShl
	BinShr
	BinAnd // bitwise
	BinOr  // bitwise
	BinEQ
	BinNE
	BinLT
	BinLE
	BinGT
	BinGE
	BinLAnd // && (short-circuit)
	BinLOr  // || (short-circuit)
)

// BinaryExpr applies Op to LHS, RHS.
type BinaryExpr struct {
	Op       BinaryOp
	LHS, RHS Expr
	T        ir.Type
}

func (e *BinaryExpr) ResolvedType() ir.Type { return e.T }

// AssignExpr is `LHS = RHS`: store RHS's value into the storage LHS
// denotes and yield that value, the same "assignment is an expression"
// rule spec §4.2 and a real C front-end use (LHS is evaluated for its
// address, never loaded).
type AssignExpr struct {
	LHS, RHS Expr
	T        ir.Type
}

func (e *AssignExpr) ResolvedType() ir.Type { return e.T }

// CallExpr calls the function named Callee with Args.
type CallExpr struct {
	Callee string
	Args   []Expr
	T      ir.Type
}

func (e *CallExpr) ResolvedType() ir.Type { return e.T }

// InitListExpr is a brace initializer list; it produces no standalone value
// (spec §4.2: "consumed only by the enclosing initializer logic").
type InitListExpr struct {
	Elems []Expr
	T     ir.Type
}

func (e *InitListExpr) ResolvedType() ir.Type { return e.T }

// ImplicitInitExpr denotes the implicit zero-fill of the remainder of an
// array/scalar initializer (spec §4.2.3).
type ImplicitInitExpr struct {
	T ir.Type
}

func (e *ImplicitInitExpr) ResolvedType() ir.Type { return e.T }

// CastKind enumerates the implicit cast kinds spec §4.2 lists.
type CastKind int

const (
	LValueToRValue CastKind = iota
	IntegralCast
	ArrayToPointerDecay
	FunctionToPointerDecay
	NoOp
)

// ImplicitCastExpr wraps Sub with an implicit conversion the front-end
// resolved (spec §4.2, §6: "ASG nodes carry implicit-cast annotations so
// that the lowering rules ... are total").
type ImplicitCastExpr struct {
	Kind CastKind
	Sub  Expr
	T    ir.Type
}

func (e *ImplicitCastExpr) ResolvedType() ir.Type { return e.T }

// ---------------------------------------------------------------------
// Statements (spec §4.2.2)
// ---------------------------------------------------------------------

// CompoundStmt is an ordered list of statements (a `{ ... }` block).
type CompoundStmt struct{ Stmts []Stmt }

func (*CompoundStmt) isStmt() {}

// ReturnStmt returns Value, or nothing if Value is nil.
type ReturnStmt struct{ Value Expr }

func (*ReturnStmt) isStmt() {}

// NullStmt is a bare `;`.
type NullStmt struct{}

func (*NullStmt) isStmt() {}

// DeclStmt lowers a local declaration (spec §4.2.3).
type DeclStmt struct{ Decl Decl }

func (*DeclStmt) isStmt() {}

// ExprStmt lowers Expr and discards the result.
type ExprStmt struct{ Expr Expr }

func (*ExprStmt) isStmt() {}

// IfStmt is `if (Cond) Then [else Else]`.
type IfStmt struct {
	Cond       Expr
	Then, Else Stmt // Else may be nil
}

func (*IfStmt) isStmt() {}

// WhileStmt is `while (Cond) Body`.
type WhileStmt struct {
	Cond Expr
	Body Stmt
}

func (*WhileStmt) isStmt() {}

// BreakStmt is `break;`.
type BreakStmt struct{}

func (*BreakStmt) isStmt() {}

// ContinueStmt is `continue;`.
type ContinueStmt struct{}

func (*ContinueStmt) isStmt() {}

// ---------------------------------------------------------------------
// Declarations (spec §4.2.3)
// ---------------------------------------------------------------------

// VarDecl is a variable declaration, local or file-scope depending on where
// it appears in the tree. Init may be nil, a scalar Expr, or an
// *InitListExpr for arrays.
type VarDecl struct {
	Name string
	T    ir.Type
	Init Expr
}

func (*VarDecl) isDecl() {}

// Param is one function parameter (name, type); Emit-IR allocates the
// `<name>.addr` slot for it (spec §4.2.3).
type Param struct {
	Name string
	T    ir.Type
}

// FunctionDecl is a function declaration or definition. Body is nil for a
// declaration (e.g. an extern function with no definition in this unit).
type FunctionDecl struct {
	Name    string
	Params  []Param
	RetType ir.Type
	Body    *CompoundStmt
}

func (*FunctionDecl) isDecl() {}

// TranslationUnit is the top-level ASG node: an ordered sequence of
// top-level declarations (spec §4.2: "one function per function
// declaration and one global per variable declaration at file scope").
type TranslationUnit struct {
	Decls []Decl
}
