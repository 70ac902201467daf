package transform

import (
	"yatcc/src/analysis"
	"yatcc/src/ir"
)

// LICM implements spec §4.8: for each loop, innermost first, hoist
// instructions whose operands are all loop-invariant and which are either
// safe to speculate unconditionally or whose block dominates every loop
// exit. A preheader is synthesized when the analysis found none, since
// analyses themselves must not mutate the module.
func LICM(fn *ir.Function) bool {
	if fn.IsDeclaration() {
		return false
	}
	dom := analysis.BuildDominators(fn)
	li := analysis.BuildLoopInfo(fn, dom)
	changed := false
	for _, loop := range innermostFirst(li) {
		if licmLoop(fn, loop, dom) {
			changed = true
		}
	}
	return changed
}

func innermostFirst(li *analysis.LoopInfo) []*analysis.Loop {
	var out []*analysis.Loop
	visited := map[*analysis.Loop]bool{}
	var visit func(*analysis.Loop)
	visit = func(l *analysis.Loop) {
		if visited[l] {
			return
		}
		visited[l] = true
		for _, sub := range l.SubLoops {
			visit(sub)
		}
		out = append(out, l)
	}
	for _, l := range li.Loops {
		visit(l)
	}
	return out
}

func licmLoop(fn *ir.Function, loop *analysis.Loop, dom *analysis.Dominators) bool {
	preheader := ensurePreheader(fn, loop)
	term := preheader.Terminator()

	invariant := map[ir.Instruction]bool{}
	for progress := true; progress; {
		progress = false
		for _, b := range fn.Blocks {
			if !loop.Blocks[b] {
				continue
			}
			for _, inst := range b.Instrs {
				if invariant[inst] || inst.IsTerminator() {
					continue
				}
				if _, ok := inst.(*ir.Phi); ok {
					continue
				}
				if !operandsInvariant(inst, loop, invariant) {
					continue
				}
				if !hoistable(inst, loop, dom) {
					continue
				}
				invariant[inst] = true
				progress = true
			}
		}
	}

	changed := false
	for _, b := range fn.Blocks {
		if !loop.Blocks[b] {
			continue
		}
		for _, inst := range append([]ir.Instruction(nil), b.Instrs...) {
			if !invariant[inst] {
				continue
			}
			b.Remove(inst)
			if term != nil {
				preheader.InsertBefore(inst, term)
			} else {
				preheader.Append(inst)
			}
			changed = true
		}
	}
	return changed
}

// ensurePreheader returns loop's existing preheader, or synthesizes one
// immediately after the header and redirects the header's non-loop
// predecessors to branch through it instead.
func ensurePreheader(fn *ir.Function, loop *analysis.Loop) *ir.Block {
	if loop.Preheader != nil {
		return loop.Preheader
	}
	var nonLoopPreds []*ir.Block
	for _, p := range loop.Header.Predecessors() {
		if !loop.Blocks[p] {
			nonLoopPreds = append(nonLoopPreds, p)
		}
	}
	ph := fn.InsertBlockAfter(loop.Header, "preheader")
	for _, p := range nonLoopPreds {
		redirectTerminator(p, loop.Header, ph)
	}
	for _, p := range loop.Header.Phis() {
		for _, pred := range nonLoopPreds {
			p.RewriteIncomingBlock(pred, ph)
		}
	}
	ph.Append(ir.NewBr(loop.Header))
	loop.Preheader = ph
	return ph
}

func operandsInvariant(inst ir.Instruction, loop *analysis.Loop, invariant map[ir.Instruction]bool) bool {
	for _, op := range inst.Operands() {
		if op == nil || !definedInLoop(op, loop) {
			continue
		}
		oi, ok := op.(ir.Instruction)
		if !ok || !invariant[oi] {
			return false
		}
	}
	return true
}

func definedInLoop(v ir.Value, loop *analysis.Loop) bool {
	inst, ok := v.(ir.Instruction)
	return ok && loop.Blocks[inst.Block()]
}

func hoistable(inst ir.Instruction, loop *analysis.Loop, dom *analysis.Dominators) bool {
	switch v := inst.(type) {
	case *ir.BinOp, *ir.ICmp, *ir.SExt, *ir.GEP:
		return true
	case *ir.Load:
		return !addressStoredInLoop(v.Pointer(), loop)
	case *ir.Call:
		return isIdempotentCall(v.Callee(), map[*ir.Function]bool{})
	default:
		return dominatesAllExits(inst.Block(), loop, dom)
	}
}

func dominatesAllExits(b *ir.Block, loop *analysis.Loop, dom *analysis.Dominators) bool {
	for _, exiting := range loop.Exiting {
		if !dom.Dominates(b, exiting) {
			return false
		}
	}
	return true
}

func addressStoredInLoop(addr ir.Value, loop *analysis.Loop) bool {
	for b := range loop.Blocks {
		for _, inst := range b.Instrs {
			if st, ok := inst.(*ir.Store); ok && st.Pointer() == addr {
				return true
			}
			if c, ok := inst.(*ir.Call); ok && calleeWritesThroughParams(c.Callee(), map[*ir.Function]bool{}) {
				return true
			}
		}
	}
	return false
}

// calleeWritesThroughParams conservatively detects whether fn (or anything
// it calls) stores to a global or to an address derived from one of its
// own parameters. Declarations are assumed to write, since their bodies
// are unknown.
func calleeWritesThroughParams(fn *ir.Function, visiting map[*ir.Function]bool) bool {
	if visiting[fn] {
		return false
	}
	visiting[fn] = true
	if fn.IsDeclaration() {
		return true
	}
	for _, b := range fn.Blocks {
		for _, inst := range b.Instrs {
			switch v := inst.(type) {
			case *ir.Store:
				if _, isGlobal := v.Pointer().(*ir.GlobalVariable); isGlobal {
					return true
				}
				if isParamDerived(v.Pointer(), fn) {
					return true
				}
			case *ir.Call:
				if calleeWritesThroughParams(v.Callee(), visiting) {
					return true
				}
			}
		}
	}
	return false
}

func isParamDerived(addr ir.Value, fn *ir.Function) bool {
	switch v := addr.(type) {
	case *ir.Param:
		return v.Parent == fn
	case *ir.GEP:
		return isParamDerived(v.Base(), fn)
	default:
		return false
	}
}

// isIdempotentCall reports whether fn is safe to hoist as a loop-invariant
// call: it writes to no global and to nothing derived from its own
// parameters, transitively. Recursion is broken optimistically (spec
// §4.8: a call already being checked is tentatively idempotent).
func isIdempotentCall(fn *ir.Function, visiting map[*ir.Function]bool) bool {
	if visiting[fn] {
		return true
	}
	visiting[fn] = true
	if fn.IsDeclaration() {
		return false
	}
	for _, b := range fn.Blocks {
		for _, inst := range b.Instrs {
			switch v := inst.(type) {
			case *ir.Store:
				if _, isGlobal := v.Pointer().(*ir.GlobalVariable); isGlobal {
					return false
				}
				if isParamDerived(v.Pointer(), fn) {
					return false
				}
			case *ir.Call:
				if !isIdempotentCall(v.Callee(), visiting) {
					return false
				}
			}
		}
	}
	return true
}
