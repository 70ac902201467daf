package transform

import (
	"yatcc/src/analysis"
	"yatcc/src/ir"
)

// SimplifyCFG implements spec §4.6: dead-block removal, folding of
// conditional branches the conservative CFG has collapsed to a single
// edge, and merging a block into its unique successor, iterated together
// to a fixed point.
func SimplifyCFG(fn *ir.Function) bool {
	if fn.IsDeclaration() {
		return false
	}
	changed := false
	for {
		iter := false
		if removeUnreachable(fn) {
			iter = true
		}
		if foldOneSidedBranches(fn) {
			iter = true
		}
		if mergeBlocks(fn) {
			iter = true
		}
		if !iter {
			break
		}
		changed = true
	}
	return changed
}

func removeUnreachable(fn *ir.Function) bool {
	reach := analysis.Reachable(fn)
	changed := false
	for _, b := range append([]*ir.Block(nil), fn.Blocks...) {
		if reach[b] {
			continue
		}
		for _, s := range b.Successors() {
			for _, p := range s.Phis() {
				p.RemoveIncoming(b)
			}
		}
		for _, inst := range append([]ir.Instruction(nil), b.Instrs...) {
			detachAndRemove(inst)
		}
		fn.RemoveBlock(b)
		changed = true
	}
	return changed
}

// foldOneSidedBranches replaces a CondBr whose conservative successor set
// has cardinality one with an unconditional branch, per spec §4.6's
// improvement over the original's unconditional dead-ICmp erase: the
// comparison is only removed if nothing else still reads it.
func foldOneSidedBranches(fn *ir.Function) bool {
	changed := false
	cfg := analysis.BuildCFG(fn)
	for _, b := range append([]*ir.Block(nil), fn.Blocks...) {
		cb, ok := b.Terminator().(*ir.CondBr)
		if !ok {
			continue
		}
		succs := cfg.Succs[b]
		if len(succs) != 1 {
			continue
		}
		taken := succs[0]
		dead := cb.False
		if taken == cb.False {
			dead = cb.True
		}
		cond := cb.Cond()
		detachAndRemove(cb)
		bd := ir.NewBuilder(fn.Module.Ctx)
		bd.SetInsertPointEnd(b)
		bd.CreateBr(taken)
		if dead != taken {
			for _, p := range dead.Phis() {
				p.RemoveIncoming(b)
			}
		}
		if cmp, ok := cond.(*ir.ICmp); ok && len(cmp.Uses()) == 0 {
			detachAndRemove(cmp)
		}
		changed = true
	}
	return changed
}

// mergeBlocks repeatedly folds a block into its unique successor when that
// successor has no other predecessor, moving instructions across and
// rewriting phi incoming-block references.
func mergeBlocks(fn *ir.Function) bool {
	changed := false
	for {
		merged := false
		for _, a := range fn.Blocks {
			succs := a.Successors()
			if len(succs) != 1 {
				continue
			}
			b := succs[0]
			if b == fn.Entry() || b == a || len(b.Predecessors()) != 1 {
				continue
			}
			mergeInto(fn, a, b)
			merged = true
			changed = true
			break
		}
		if !merged {
			break
		}
	}
	return changed
}

// mergeInto drops a's terminator (the branch to b), appends b's
// instructions to a, rewrites phi incoming-block references in b's
// successors from b to a, and deletes b.
func mergeInto(fn *ir.Function, a, b *ir.Block) {
	detachAndRemove(a.Terminator())
	for _, inst := range append([]ir.Instruction(nil), b.Instrs...) {
		b.Remove(inst)
		a.Append(inst)
	}
	for _, s := range b.Successors() {
		for _, p := range s.Phis() {
			p.RewriteIncomingBlock(b, a)
		}
	}
	fn.RemoveBlock(b)
}
