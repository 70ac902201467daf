package transform

import (
	"yatcc/src/analysis"
	"yatcc/src/ir"
)

// UnrollLoops implements spec §4.9: fully unroll every loop matching the
// bounded-countable shape (single latch, header is the sole exiting block,
// no nested loops, a phi induction variable compared against a
// loop-invariant constant with a positive trip count no greater than
// tripLimit), innermost first, repeating until no more loops qualify. A
// non-positive tripLimit falls back to the distilled spec's default of 80.
func UnrollLoops(fn *ir.Function, tripLimit int) bool {
	if fn.IsDeclaration() {
		return false
	}
	if tripLimit <= 0 {
		tripLimit = 80
	}
	changed := false
	for {
		dom := analysis.BuildDominators(fn)
		li := analysis.BuildLoopInfo(fn, dom)
		did := false
		for _, loop := range innermostFirst(li) {
			if plan, ok := planUnroll(loop, tripLimit); ok {
				unroll(fn, loop, plan)
				did = true
				changed = true
				break
			}
		}
		if !did {
			break
		}
	}
	return changed
}

type unrollPlan struct {
	indVar *ir.Phi
	init   int64
	step   int64
	trip   int64
}

// planUnroll recognizes spec §4.9's exact loop shape and computes its
// trip count; it returns ok=false for anything broader, leaving the loop
// to LICM/no further transform instead.
func planUnroll(loop *analysis.Loop, tripLimit int) (*unrollPlan, bool) {
	if len(loop.SubLoops) != 0 || len(loop.Latches) != 1 || len(loop.Exiting) != 1 || loop.Exiting[0] != loop.Header {
		return nil, false
	}
	latch := loop.Latches[0]
	for b := range loop.Blocks {
		if b == loop.Header {
			continue
		}
		if _, ok := b.Terminator().(*ir.CondBr); ok {
			return nil, false
		}
	}
	cb, ok := loop.Header.Terminator().(*ir.CondBr)
	if !ok {
		return nil, false
	}
	cmp, ok := cb.Cond().(*ir.ICmp)
	if !ok || cmp.Pred != ir.SLT {
		return nil, false
	}
	phi, ok := cmp.LHS().(*ir.Phi)
	if !ok || phi.Block() != loop.Header {
		return nil, false
	}
	n, ok := loopInvariantConstant(cmp.RHS(), loop)
	if !ok {
		return nil, false
	}

	var init, step int64
	foundInit, foundStep := false, false
	for _, in := range phi.Incoming {
		if in.Block == latch {
			bo, ok := in.Value.(*ir.BinOp)
			if !ok || bo.Op != ir.Add || bo.LHS() != ir.Value(phi) {
				return nil, false
			}
			k, ok := bo.RHS().(*ir.ConstantInt)
			if !ok {
				return nil, false
			}
			step, foundStep = k.Val, true
		} else {
			c, ok := in.Value.(*ir.ConstantInt)
			if !ok {
				return nil, false
			}
			init, foundInit = c.Val, true
		}
	}
	if !foundInit || !foundStep || step == 0 || (n-init)%step != 0 {
		return nil, false
	}
	trip := (n - init) / step
	if trip <= 0 || trip > int64(tripLimit) {
		return nil, false
	}
	return &unrollPlan{indVar: phi, init: init, step: step, trip: trip}, true
}

func loopInvariantConstant(v ir.Value, loop *analysis.Loop) (int64, bool) {
	c, ok := v.(*ir.ConstantInt)
	if !ok || definedInLoop(v, loop) {
		return 0, false
	}
	return c.Val, true
}

// unroll replaces the loop with trip copies of its body, substituting a
// constant for the induction variable in each copy, threading every other
// header phi's value (e.g. a loop-carried accumulator) from one copy's
// clone of its latch-defining instruction into the next, and rewires the
// header's entry predecessors, the exit block's phis, and any use of a
// header phi reached from outside the loop to the new block/final value
// (spec §8 scenario 4: the loop body's own accumulator, not just its
// induction variable, must still resolve to a constant after unrolling).
func unroll(fn *ir.Function, loop *analysis.Loop, plan *unrollPlan) {
	header := loop.Header
	latch := loop.Latches[0]
	exit := otherExit(header, loop)
	ctx := fn.Module.Ctx

	var entryPreds []*ir.Block
	for _, p := range header.Predecessors() {
		if !loop.Blocks[p] {
			entryPreds = append(entryPreds, p)
		}
	}

	bodyInstrs := collectBodyInstrs(fn, loop, header)
	indType := plan.indVar.Type().(*ir.IntType)

	// carried holds every non-induction header phi's current value across
	// iterations, seeded with its preheader-incoming value; latchExpr holds
	// the original (pre-clone) instruction that defines its value at the
	// end of one trip, used to look up that trip's cloned/folded result.
	carried := map[*ir.Phi]ir.Value{}
	latchExpr := map[*ir.Phi]ir.Value{}
	for _, ph := range header.Phis() {
		if ph == plan.indVar {
			continue
		}
		for _, in := range ph.Incoming {
			if in.Block == latch {
				latchExpr[ph] = in.Value
			} else {
				carried[ph] = in.Value
			}
		}
	}

	newBlock := fn.InsertBlockAfter(header, "unrolled")
	for t := int64(0); t < plan.trip; t++ {
		valueMap := map[ir.Value]ir.Value{
			ir.Value(plan.indVar): ir.NewConstantInt(indType, plan.init+t*plan.step),
		}
		for ph, v := range carried {
			valueMap[ir.Value(ph)] = v
		}
		for _, inst := range bodyInstrs {
			valueMap[inst] = cloneOrFold(ctx, inst, valueMap, newBlock)
		}
		for ph, expr := range latchExpr {
			carried[ph] = mapOperand(valueMap, expr)
		}
	}
	newBlock.Append(ir.NewBr(exit))

	ir.ReplaceAllUsesWith(ir.Value(plan.indVar), ir.NewConstantInt(indType, plan.init+plan.trip*plan.step))
	for ph, v := range carried {
		ir.ReplaceAllUsesWith(ir.Value(ph), v)
	}

	for _, p := range entryPreds {
		redirectTerminator(p, header, newBlock)
	}
	for _, ph := range exit.Phis() {
		ph.RewriteIncomingBlock(header, newBlock)
	}

	for b := range loop.Blocks {
		for _, inst := range append([]ir.Instruction(nil), b.Instrs...) {
			detachAndRemove(inst)
		}
		fn.RemoveBlock(b)
	}
}

func otherExit(header *ir.Block, loop *analysis.Loop) *ir.Block {
	cb := header.Terminator().(*ir.CondBr)
	if loop.Blocks[cb.True] {
		return cb.False
	}
	return cb.True
}

// collectBodyInstrs gathers, in program order, every instruction the
// unrolled copies need: everything in the non-header loop blocks, plus
// anything in the header besides its induction-variable phi, the loop
// condition comparison, and the induction-variable increment (all three
// are resolved directly by constant substitution instead of being cloned).
func collectBodyInstrs(fn *ir.Function, loop *analysis.Loop, header *ir.Block) []ir.Instruction {
	cb := header.Terminator().(*ir.CondBr)
	cond := cb.Cond()
	var out []ir.Instruction
	for _, b := range fn.Blocks {
		if !loop.Blocks[b] {
			continue
		}
		for _, inst := range b.Instrs {
			if inst.IsTerminator() {
				continue
			}
			if _, ok := inst.(*ir.Phi); ok {
				continue
			}
			if b == header {
				if ir.Value(inst) == cond {
					continue
				}
				if bo, ok := inst.(*ir.BinOp); ok && isIndVarStep(bo, loop) {
					continue
				}
			}
			out = append(out, inst)
		}
	}
	return out
}

func isIndVarStep(bo *ir.BinOp, loop *analysis.Loop) bool {
	if bo.Op != ir.Add {
		return false
	}
	for _, u := range bo.Uses() {
		if p, ok := u.User.(*ir.Phi); ok && loop.Blocks[p.Block()] {
			return true
		}
	}
	return false
}

// cloneOrFold clones inst into dest with operands remapped through
// valueMap, folding BinOps with two now-constant operands directly into a
// ConstantInt instead of emitting a redundant instruction (spec §4.9:
// "constant-folding during copy").
func cloneOrFold(ctx *ir.Context, inst ir.Instruction, valueMap map[ir.Value]ir.Value, dest *ir.Block) ir.Value {
	if bo, ok := inst.(*ir.BinOp); ok {
		lhs, rhs := mapOperand(valueMap, bo.LHS()), mapOperand(valueMap, bo.RHS())
		if lc, ok := lhs.(*ir.ConstantInt); ok {
			if rc, ok := rhs.(*ir.ConstantInt); ok {
				if folded, ok := foldBinOp(bo.Op, lc.Val, rc.Val); ok {
					return ir.NewConstantInt(bo.Type().(*ir.IntType), folded)
				}
			}
		}
		clone := ir.NewBinOp(bo.Type(), bo.Op, lhs, rhs, "")
		dest.Append(clone)
		return clone
	}
	clone := cloneInstruction(ctx, inst, valueMap)
	if alloc, ok := clone.(*ir.Alloca); ok {
		placeInEntry(dest.Parent, alloc)
	} else {
		dest.Append(clone)
	}
	return clone
}

func foldBinOp(op ir.BinOpKind, a, b int64) (int64, bool) {
	switch op {
	case ir.Add:
		return a + b, true
	case ir.Sub:
		return a - b, true
	case ir.Mul:
		return a * b, true
	case ir.SDiv:
		if b == 0 {
			return 0, false
		}
		return a / b, true
	case ir.SRem:
		if b == 0 {
			return 0, false
		}
		return a % b, true
	case ir.Shl:
		return a << uint(b), true
	case ir.AShr:
		return a >> uint(b), true
	case ir.And:
		return a & b, true
	case ir.Or:
		return a | b, true
	default:
		return 0, false
	}
}
