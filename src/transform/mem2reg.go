package transform

import (
	"yatcc/src/analysis"
	"yatcc/src/ir"
)

// Mem2Reg promotes allocas that are of integer type and touched only by
// direct loads and stores (spec §4.4) into SSA values. Phis are inserted
// at the iterated dominance frontier of each alloca's store set, then a
// pre-order walk of the dominator tree replaces loads with the value
// currently reaching them and wires phi incoming values at block exits.
func Mem2Reg(fn *ir.Function) bool {
	if fn.IsDeclaration() {
		return false
	}
	dom := analysis.BuildDominators(fn)
	df := dom.DominanceFrontier()

	allocas := promotableAllocas(fn)
	if len(allocas) == 0 {
		return false
	}

	phis := make(map[*ir.Alloca]map[*ir.Block]*ir.Phi)
	for _, a := range allocas {
		frontier := iteratedFrontier(storeBlocks(a), df)
		placed := make(map[*ir.Block]*ir.Phi)
		for b := range frontier {
			p := ir.NewPhi(a.Elem, "")
			if len(b.Instrs) > 0 {
				b.InsertBefore(p, b.Instrs[0])
			} else {
				b.Append(p)
			}
			placed[b] = p
		}
		phis[a] = placed
	}

	renameBlock(fn.Entry(), fn, dom, allocas, phis, renameMap{})

	for _, a := range allocas {
		detachAndRemove(a)
	}
	pruneDeadPhis(phis)
	return true
}

func promotableAllocas(fn *ir.Function) []*ir.Alloca {
	var out []*ir.Alloca
outer:
	for _, inst := range fn.Entry().Instrs {
		a, ok := inst.(*ir.Alloca)
		if !ok {
			continue
		}
		if _, ok := a.Elem.(*ir.IntType); !ok {
			continue
		}
		for _, u := range a.Uses() {
			switch u.User.(type) {
			case *ir.Load:
				if u.Index != 0 {
					continue outer
				}
			case *ir.Store:
				if u.Index != 1 {
					continue outer
				}
			default:
				continue outer
			}
		}
		out = append(out, a)
	}
	return out
}

func storeBlocks(a *ir.Alloca) map[*ir.Block]bool {
	set := make(map[*ir.Block]bool)
	for _, u := range a.Uses() {
		if s, ok := u.User.(*ir.Store); ok {
			set[s.Block()] = true
		}
	}
	return set
}

func iteratedFrontier(defs map[*ir.Block]bool, df map[*ir.Block]map[*ir.Block]bool) map[*ir.Block]bool {
	result := make(map[*ir.Block]bool)
	seen := make(map[*ir.Block]bool)
	var worklist []*ir.Block
	for b := range defs {
		worklist = append(worklist, b)
		seen[b] = true
	}
	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for f := range df[b] {
			result[f] = true
			if !seen[f] {
				seen[f] = true
				worklist = append(worklist, f)
			}
		}
	}
	return result
}

type renameMap map[*ir.Alloca]ir.Value

func (m renameMap) clone() renameMap {
	cp := make(renameMap, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// renameBlock is the dominator-tree pre-order walk: it resolves loads and
// stores of the tracked allocas against the incoming state, wires phi
// operands for every successor, then recurses into the blocks this one
// immediately dominates.
func renameBlock(b *ir.Block, fn *ir.Function, dom *analysis.Dominators, allocas []*ir.Alloca, phis map[*ir.Alloca]map[*ir.Block]*ir.Phi, incoming renameMap) {
	state := incoming.clone()
	for _, a := range allocas {
		if p, ok := phis[a][b]; ok {
			state[a] = p
		}
	}

	var dead []ir.Instruction
	for _, inst := range b.Instrs {
		switch v := inst.(type) {
		case *ir.Load:
			a, ok := allocaFor(v.Pointer(), allocas)
			if !ok {
				continue
			}
			cur := state[a]
			if cur == nil {
				cur = ir.NewUndef(a.Elem)
			}
			ir.ReplaceAllUsesWith(v, cur)
			dead = append(dead, v)
		case *ir.Store:
			a, ok := allocaFor(v.Pointer(), allocas)
			if !ok {
				continue
			}
			state[a] = v.StoredValue()
			dead = append(dead, v)
		}
	}
	for _, inst := range dead {
		detachAndRemove(inst)
	}

	for _, s := range b.Successors() {
		for _, a := range allocas {
			p, ok := phis[a][s]
			if !ok {
				continue
			}
			cur := state[a]
			if cur == nil {
				cur = ir.NewUndef(a.Elem)
			}
			p.AddIncoming(cur, b)
		}
	}

	for _, child := range domChildren(b, dom, fn) {
		renameBlock(child, fn, dom, allocas, phis, state)
	}
}

func allocaFor(v ir.Value, allocas []*ir.Alloca) (*ir.Alloca, bool) {
	a, ok := v.(*ir.Alloca)
	if !ok {
		return nil, false
	}
	for _, cand := range allocas {
		if cand == a {
			return a, true
		}
	}
	return nil, false
}

func domChildren(b *ir.Block, dom *analysis.Dominators, fn *ir.Function) []*ir.Block {
	var out []*ir.Block
	for _, x := range fn.Blocks {
		if x == fn.Entry() {
			continue
		}
		if dom.ImmediateDominator(x) == b {
			out = append(out, x)
		}
	}
	return out
}

// pruneDeadPhis removes phis mem2reg inserted that ended up with no real
// uses, cascading since removing one phi can strand another.
func pruneDeadPhis(phis map[*ir.Alloca]map[*ir.Block]*ir.Phi) {
	var all []*ir.Phi
	for _, m := range phis {
		for _, p := range m {
			all = append(all, p)
		}
	}
	for changed := true; changed; {
		changed = false
		for i, p := range all {
			if p == nil || len(p.Uses()) != 0 {
				continue
			}
			for j := range p.Operands() {
				p.SetOperand(j, nil)
			}
			if p.Block() != nil {
				p.Block().Remove(p)
			}
			all[i] = nil
			changed = true
		}
	}
}
