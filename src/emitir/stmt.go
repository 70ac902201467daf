package emitir

import (
	"yatcc/src/asg"
	"yatcc/src/diag"
	"yatcc/src/ir"
)

// lowerStmt lowers s into the builder's current block.
func (l *Lowering) lowerStmt(s asg.Stmt) {
	switch n := s.(type) {
	case *asg.CompoundStmt:
		l.lowerCompound(n)
	case *asg.ReturnStmt:
		l.lowerReturn(n)
	case *asg.NullStmt:
		// nothing to emit
	case *asg.DeclStmt:
		l.lowerLocalDecl(n.Decl.(*asg.VarDecl))
	case *asg.ExprStmt:
		l.lowerExpr(n.Expr)
	case *asg.IfStmt:
		l.lowerIf(n)
	case *asg.WhileStmt:
		l.lowerWhile(n)
	case *asg.BreakStmt:
		l.lowerBreak()
	case *asg.ContinueStmt:
		l.lowerContinue()
	default:
		l.fatal(diag.UnsupportedConstruct, "unsupported statement %T", s)
	}
}

// lowerCompound lowers each statement in turn. After any statement that
// leaves the current block terminated (return, break, continue, or a
// fully-terminating if/while), a fresh block absorbs whatever statements
// textually follow it — an unreachable block that control-flow
// simplification later removes, rather
// than an attempt to append past a terminator (spec §4.2.2).
func (l *Lowering) lowerCompound(n *asg.CompoundStmt) {
	l.pushScope()
	for _, stmt := range n.Stmts {
		l.lowerStmt(stmt)
		if l.bd.Block().Terminator() != nil {
			dead := l.fn.NewBlock("dead")
			l.bd.SetInsertPointEnd(dead)
		}
	}
	l.popScope()
}

func (l *Lowering) lowerReturn(n *asg.ReturnStmt) {
	if n.Value == nil {
		l.bd.CreateRet(nil)
		return
	}
	l.bd.CreateRet(l.lowerExpr(n.Value))
}

func (l *Lowering) lowerBreak() {
	if len(l.breakTargets) == 0 {
		l.fatal(diag.InputInvalid, "break statement not inside a loop")
	}
	l.bd.CreateBr(l.breakTargets[len(l.breakTargets)-1])
}

func (l *Lowering) lowerContinue() {
	if len(l.continueTargets) == 0 {
		l.fatal(diag.InputInvalid, "continue statement not inside a loop")
	}
	l.bd.CreateBr(l.continueTargets[len(l.continueTargets)-1])
}

// lowerIf implements spec §4.2.2's IfStmt rule: lower cond in boolean
// position, emit the final CondBr at the block that ends up holding its
// value, then drain whatever pending-AND/OR edges remain onto then_bb and
// else_bb (or if.end directly when there is no else branch).
func (l *Lowering) lowerIf(n *asg.IfStmt) {
	andMark, orMark := len(l.andStack), len(l.orStack)
	vc := l.lowerBool(n.Cond)
	condTail := l.bd.Block()

	thenBB := l.fn.NewBlock("if.then")
	var elseBB *ir.Block
	if n.Else != nil {
		elseBB = l.fn.NewBlock("if.else")
	}
	mergeBB := l.fn.NewBlock("if.end")
	branchFalse := elseBB
	if branchFalse == nil {
		branchFalse = mergeBB
	}

	if condTail.Terminator() == nil {
		l.bd.SetInsertPointEnd(condTail)
		l.bd.CreateCondBr(vc, thenBB, branchFalse)
	}
	l.drainAnd(andMark, branchFalse)
	l.drainOr(orMark, thenBB)

	l.bd.SetInsertPointEnd(thenBB)
	l.lowerStmt(n.Then)
	if l.bd.Block().Terminator() == nil {
		l.bd.CreateBr(mergeBB)
	}

	if n.Else != nil {
		l.bd.SetInsertPointEnd(elseBB)
		l.lowerStmt(n.Else)
		if l.bd.Block().Terminator() == nil {
			l.bd.CreateBr(mergeBB)
		}
	}

	l.bd.SetInsertPointEnd(mergeBB)
}

// lowerWhile implements spec §4.2.2's WhileStmt rule. Unlike
// original_source/task/3/EmitIR.hpp, which defers break/continue fix-up
// until while.end exists, this creates while.end alongside while.body
// before lowering the loop body — break/continue then branch straight to
// their target instead of being patched up afterward; see the doc comment
// on Lowering.breakTargets.
func (l *Lowering) lowerWhile(n *asg.WhileStmt) {
	condBB := l.fn.NewBlock("while.cond")
	if l.bd.Block().Terminator() == nil {
		l.bd.CreateBr(condBB)
	}
	l.bd.SetInsertPointEnd(condBB)

	andMark, orMark := len(l.andStack), len(l.orStack)
	vc := l.lowerBool(n.Cond)
	condTail := l.bd.Block()

	bodyBB := l.fn.NewBlock("while.body")
	endBB := l.fn.NewBlock("while.end")
	l.drainOr(orMark, bodyBB)
	l.drainAnd(andMark, endBB)

	l.continueTargets = append(l.continueTargets, condBB)
	l.breakTargets = append(l.breakTargets, endBB)

	l.bd.SetInsertPointEnd(bodyBB)
	l.lowerStmt(n.Body)
	if l.bd.Block().Terminator() == nil {
		l.bd.CreateBr(condBB)
	}

	l.continueTargets = l.continueTargets[:len(l.continueTargets)-1]
	l.breakTargets = l.breakTargets[:len(l.breakTargets)-1]

	if condTail.Terminator() == nil {
		l.bd.SetInsertPointEnd(condTail)
		l.bd.CreateCondBr(vc, bodyBB, endBB)
	}

	l.bd.SetInsertPointEnd(endBB)
}
