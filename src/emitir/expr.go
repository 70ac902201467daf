package emitir

import (
	"fmt"

	"yatcc/src/asg"
	"yatcc/src/diag"
	"yatcc/src/ir"
)

// lowerExpr lowers e as an ordinary (non-boolean-position) expression and
// returns its SSA value.
func (l *Lowering) lowerExpr(e asg.Expr) ir.Value {
	switch n := e.(type) {
	case *asg.IntegerLiteral:
		return ir.NewConstantInt(n.T.(*ir.IntType), n.Value)
	case *asg.StringLiteral:
		return l.lowerStringLiteral(n)
	case *asg.DeclRefExpr:
		// A real front-end always wraps an lvalue use in an
		// ImplicitCastExpr (LValueToRValue/ArrayToPointerDecay/
		// FunctionToPointerDecay per asg's doc comment); reaching a bare
		// DeclRefExpr here means the caller wants the address itself.
		return l.lookup(n.Name)
	case *asg.ParenExpr:
		return l.lowerExpr(n.Sub)
	case *asg.UnaryExpr:
		return l.lowerUnary(n)
	case *asg.AssignExpr:
		return l.lowerAssign(n)
	case *asg.BinaryExpr:
		if n.Op == asg.BinLAnd || n.Op == asg.BinLOr {
			return l.materializeLogical(n)
		}
		return l.lowerBinary(n)
	case *asg.CallExpr:
		return l.lowerCall(n)
	case *asg.ImplicitCastExpr:
		return l.lowerCast(n)
	default:
		l.fatal(diag.UnsupportedConstruct, "unsupported expression %T", e)
		return nil
	}
}

// lowerAddress lowers e to the address it names, for the handful of
// expression forms that denote a storage location rather than a value.
func (l *Lowering) lowerAddress(e asg.Expr) ir.Value {
	switch n := e.(type) {
	case *asg.DeclRefExpr:
		return l.lookup(n.Name)
	case *asg.ParenExpr:
		return l.lowerAddress(n.Sub)
	default:
		l.fatal(diag.UnsupportedConstruct, "expression %T is not addressable", e)
		return nil
	}
}

// lowerAssign stores RHS's value into LHS's address and yields that value,
// so `s = s + i` both mutates s's storage and can itself appear as the
// operand of an enclosing expression (spec §4.2).
func (l *Lowering) lowerAssign(n *asg.AssignExpr) ir.Value {
	addr := l.lowerAddress(n.LHS)
	v := l.lowerExpr(n.RHS)
	l.bd.CreateStore(v, addr)
	return v
}

func (l *Lowering) lowerStringLiteral(n *asg.StringLiteral) ir.Value {
	ctx := l.mod.Ctx
	name := fmt.Sprintf(".str.%d", l.ctorSeq)
	l.ctorSeq++
	// The IR's value lattice has no constant-array form (spec §3 lists only
	// scalar constants), so a string literal's byte contents cannot be
	// attached as an initializer; the global is reserved but left
	// zero-initialized. Out of the distilled spec's worked scenarios, kept
	// only so StringLiteral remains lowerable rather than rejected outright.
	g := ir.NewGlobalVariable(l.mod, name, ctx.Array(ctx.I8(), int64(len(n.Value)+1)), ir.Private, false)
	l.mod.AddGlobal(g)
	return g
}

func (l *Lowering) lowerUnary(n *asg.UnaryExpr) ir.Value {
	v := l.lowerExpr(n.Sub)
	switch n.Op {
	case asg.UnaryPlus:
		return v
	case asg.UnaryNeg:
		zero := ir.NewConstantInt(n.T.(*ir.IntType), 0)
		return l.bd.CreateBinOp(n.T, ir.Sub, zero, v)
	case asg.UnaryNot:
		cond := l.coerceToI1(v)
		inverted := l.bd.CreateICmp(ir.EQ, cond, ir.NewConstantInt(l.mod.Ctx.I1(), 0))
		return l.boolToInt(inverted, n.T)
	default:
		l.fatal(diag.UnsupportedConstruct, "unsupported unary operator")
		return nil
	}
}

func (l *Lowering) lowerBinary(n *asg.BinaryExpr) ir.Value {
	lhs := l.lowerExpr(n.LHS)
	rhs := l.lowerExpr(n.RHS)
	switch n.Op {
	case asg.BinAdd:
		return l.bd.CreateBinOp(n.T, ir.Add, lhs, rhs)
	case asg.BinSub:
		return l.bd.CreateBinOp(n.T, ir.Sub, lhs, rhs)
	case asg.BinMul:
		return l.bd.CreateBinOp(n.T, ir.Mul, lhs, rhs)
	case asg.BinDiv:
		return l.bd.CreateBinOp(n.T, ir.SDiv, lhs, rhs)
	case asg.BinRem:
		return l.bd.CreateBinOp(n.T, ir.SRem, lhs, rhs)
	case asg.BinShl:
		return l.bd.CreateBinOp(n.T, ir.Shl, lhs, rhs)
	case asg.BinShr:
		return l.bd.CreateBinOp(n.T, ir.AShr, lhs, rhs)
	case asg.BinAnd:
		return l.bd.CreateBinOp(n.T, ir.And, lhs, rhs)
	case asg.BinOr:
		return l.bd.CreateBinOp(n.T, ir.Or, lhs, rhs)
	case asg.BinEQ:
		return l.boolToInt(l.bd.CreateICmp(ir.EQ, lhs, rhs), n.T)
	case asg.BinNE:
		return l.boolToInt(l.bd.CreateICmp(ir.NE, lhs, rhs), n.T)
	case asg.BinLT:
		return l.boolToInt(l.bd.CreateICmp(ir.SLT, lhs, rhs), n.T)
	case asg.BinLE:
		return l.boolToInt(l.bd.CreateICmp(ir.SLE, lhs, rhs), n.T)
	case asg.BinGT:
		return l.boolToInt(l.bd.CreateICmp(ir.SGT, lhs, rhs), n.T)
	case asg.BinGE:
		return l.boolToInt(l.bd.CreateICmp(ir.SGE, lhs, rhs), n.T)
	default:
		l.fatal(diag.UnsupportedConstruct, "unsupported binary operator")
		return nil
	}
}

func (l *Lowering) lowerCall(n *asg.CallExpr) ir.Value {
	fn := l.mod.GetFunction(n.Callee)
	if fn == nil {
		l.fatal(diag.InputInvalid, "call to undeclared function %q", n.Callee)
	}
	args := make([]ir.Value, len(n.Args))
	for i, a := range n.Args {
		args[i] = l.lowerExpr(a)
	}
	return l.bd.CreateCall(fn, args...)
}

func (l *Lowering) lowerCast(n *asg.ImplicitCastExpr) ir.Value {
	switch n.Kind {
	case asg.LValueToRValue:
		addr := l.lowerAddress(n.Sub)
		return l.bd.CreateLoad(n.T, addr)
	case asg.ArrayToPointerDecay, asg.FunctionToPointerDecay:
		// Pointers are opaque in this IR (spec §3); decaying an array or
		// function designator to a pointer is a no-op on the address
		// already produced by lowerAddress.
		return l.lowerAddress(n.Sub)
	case asg.IntegralCast:
		return l.bd.CreateSExt(n.T, l.lowerExpr(n.Sub))
	case asg.NoOp:
		return l.lowerExpr(n.Sub)
	default:
		l.fatal(diag.UnsupportedConstruct, "unsupported cast kind")
		return nil
	}
}

// coerceToI1 reduces v to an i1 boolean the way a C condition would be
// evaluated: unchanged if already i1, otherwise a "!= 0" comparison.
func (l *Lowering) coerceToI1(v ir.Value) ir.Value {
	if it, ok := v.Type().(*ir.IntType); ok && it.Width == 1 {
		return v
	}
	zero := ir.NewConstantInt(v.Type().(*ir.IntType), 0)
	return l.bd.CreateICmp(ir.NE, v, zero)
}

// boolToInt widens an i1 to dest, producing exactly 0 or 1. The IR has no
// dedicated zero-extension instruction (spec §3 names only SExt, which
// sign-extends), so zero-extension is realized as sign-extend then mask.
func (l *Lowering) boolToInt(cond ir.Value, dest ir.Type) ir.Value {
	if it, ok := dest.(*ir.IntType); ok && it.Width == 1 {
		return cond
	}
	ext := l.bd.CreateSExt(dest, cond)
	one := ir.NewConstantInt(dest.(*ir.IntType), 1)
	return l.bd.CreateBinOp(dest, ir.And, ext, one)
}

// lowerBool lowers e in boolean position: a top-level && or || pushes
// pending conditional edges (spec §4.2.1) instead of eagerly branching.
// IfStmt and WhileStmt call this directly for their condition; everything
// else reaches && / || only through materializeLogical.
func (l *Lowering) lowerBool(e asg.Expr) ir.Value {
	switch n := e.(type) {
	case *asg.BinaryExpr:
		switch n.Op {
		case asg.BinLAnd:
			return l.lowerAnd(n)
		case asg.BinLOr:
			return l.lowerOr(n)
		}
	case *asg.ParenExpr:
		return l.lowerBool(n.Sub)
	}
	return l.coerceToI1(l.lowerExpr(e))
}

// lowerAnd implements the `a && b` rule of spec §4.2.1: lower a, coerce to
// i1, open a land.rhs block and push a pending-AND edge for it, then lower
// b inside land.rhs and return its value.
func (l *Lowering) lowerAnd(n *asg.BinaryExpr) ir.Value {
	va := l.lowerBool(n.LHS)
	source := l.bd.Block()
	rhs := l.fn.NewBlock("land.rhs")
	l.andStack = append(l.andStack, edge{cond: va, source: source, rhs: rhs})
	l.bd.SetInsertPointEnd(rhs)
	vb := l.lowerBool(n.RHS)
	l.lhsValues = append(l.lhsValues, edge{cond: vb, source: rhs})
	return vb
}

// lowerOr implements the `a || b` rule of spec §4.2.1: lower a, coerce and
// invert it, commit any pending-AND entry still open (its false edge now
// targets this OR's rhs block), push a pending-OR edge, then lower b.
func (l *Lowering) lowerOr(n *asg.BinaryExpr) ir.Value {
	va := l.lowerBool(n.LHS)
	notVa := l.bd.CreateICmp(ir.EQ, va, ir.NewConstantInt(l.mod.Ctx.I1(), 0))
	source := l.bd.Block()
	rhs := l.fn.NewBlock("lor.rhs")
	if len(l.andStack) > 0 {
		top := l.andStack[len(l.andStack)-1]
		l.andStack = l.andStack[:len(l.andStack)-1]
		l.commitAnd(top, rhs)
	}
	l.orStack = append(l.orStack, edge{cond: notVa, source: source, rhs: rhs})
	l.bd.SetInsertPointEnd(rhs)
	return l.lowerBool(n.RHS)
}

func (l *Lowering) commitAnd(e edge, falseTarget *ir.Block) {
	l.bd.SetInsertPointEnd(e.source)
	l.bd.CreateCondBr(e.cond, e.rhs, falseTarget)
}

func (l *Lowering) commitOr(e edge, trueTarget *ir.Block) {
	l.bd.SetInsertPointEnd(e.source)
	l.bd.CreateCondBr(e.cond, e.rhs, trueTarget)
}

// drainAnd commits every pending-AND edge pushed since mark, targeting
// falseTarget on failure (its own rhs block on success).
func (l *Lowering) drainAnd(mark int, falseTarget *ir.Block) {
	for _, e := range l.andStack[mark:] {
		l.commitAnd(e, falseTarget)
	}
	l.andStack = l.andStack[:mark]
}

// drainOr commits every pending-OR edge pushed since mark, targeting
// trueTarget on success (its own rhs block on failure).
func (l *Lowering) drainOr(mark int, trueTarget *ir.Block) {
	for _, e := range l.orStack[mark:] {
		l.commitOr(e, trueTarget)
	}
	l.orStack = l.orStack[:mark]
}

// materializeLogical lowers a standalone && / || expression (one that is
// not the direct condition of an if/while) into an i1 value via a small
// true/false/merge diamond and a phi. Spec §4.2.1 only specifies how if and
// while drain the pending-edge stacks; this resolves the otherwise-silent
// case of `x = a && b;` by materializing the boolean the same way a
// compiler lowering a non-short-circuit-consuming context normally would.
func (l *Lowering) materializeLogical(n *asg.BinaryExpr) ir.Value {
	ctx := l.mod.Ctx
	andMark, orMark := len(l.andStack), len(l.orStack)
	vc := l.lowerBool(n)

	trueBB := l.fn.NewBlock("land.true")
	falseBB := l.fn.NewBlock("land.false")
	mergeBB := l.fn.NewBlock("land.end")

	if l.bd.Block().Terminator() == nil {
		l.bd.CreateCondBr(vc, trueBB, falseBB)
	}
	l.drainAnd(andMark, falseBB)
	l.drainOr(orMark, trueBB)

	l.bd.SetInsertPointEnd(trueBB)
	l.bd.CreateBr(mergeBB)
	l.bd.SetInsertPointEnd(falseBB)
	l.bd.CreateBr(mergeBB)

	l.bd.SetInsertPointEnd(mergeBB)
	phi := l.bd.CreatePhi(ctx.I1())
	phi.AddIncoming(ir.NewConstantInt(ctx.I1(), 1), trueBB)
	phi.AddIncoming(ir.NewConstantInt(ctx.I1(), 0), falseBB)
	return l.boolToInt(phi, n.T)
}
