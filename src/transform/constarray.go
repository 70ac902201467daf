package transform

import (
	"yatcc/src/analysis"
	"yatcc/src/ir"
)

// PromoteConstantArrays implements spec §4.10: for each entry-block array
// alloca used only by GEPs with exactly two indices, the second a constant
// (arrays addressed through any other GEP shape, such as the wider index
// lists of a multi-dimensional array, are skipped), and whose every store through
// such a GEP writes a constant, forward those constants to dominated loads
// through the same index (a GEP-equivalence class). Promotion is
// all-or-nothing per array: if even one load cannot be resolved, the array
// and its instructions are left untouched.
func PromoteConstantArrays(fn *ir.Function) bool {
	if fn.IsDeclaration() {
		return false
	}
	dom := analysis.BuildDominators(fn)
	changed := false
	for _, inst := range append([]ir.Instruction(nil), fn.Entry().Instrs...) {
		a, ok := inst.(*ir.Alloca)
		if !ok {
			continue
		}
		if _, ok := a.Elem.(*ir.ArrayType); !ok {
			continue
		}
		if promoteArray(fn, a, dom) {
			changed = true
		}
	}
	return changed
}

func promoteArray(fn *ir.Function, a *ir.Alloca, dom *analysis.Dominators) bool {
	geps := make(map[*ir.GEP]int64)
	var loads []*ir.Load
	var stores []*ir.Store

	for _, u := range a.Uses() {
		g, ok := u.User.(*ir.GEP)
		if !ok {
			return false
		}
		idx, ok := constantIndex(g)
		if !ok {
			return false
		}
		geps[g] = idx
		for _, gu := range g.Uses() {
			switch user := gu.User.(type) {
			case *ir.Store:
				if user.Pointer() != ir.Value(g) {
					return false
				}
				if _, ok := user.StoredValue().(*ir.ConstantInt); !ok {
					return false
				}
				stores = append(stores, user)
			case *ir.Load:
				loads = append(loads, user)
			default:
				return false
			}
		}
	}
	if len(loads) == 0 {
		return false
	}

	lastConst := make(map[int64]*ir.Store)
	resolved := make(map[*ir.Load]*ir.ConstantInt)
	for _, b := range fn.Blocks {
		for _, inst := range b.Instrs {
			switch v := inst.(type) {
			case *ir.Store:
				g, ok := v.Pointer().(*ir.GEP)
				if !ok {
					continue
				}
				if idx, ok := geps[g]; ok {
					lastConst[idx] = v
				}
			case *ir.Load:
				g, ok := v.Pointer().(*ir.GEP)
				if !ok {
					continue
				}
				idx, ok := geps[g]
				if !ok {
					continue
				}
				st := lastConst[idx]
				if st == nil || !dom.Dominates(st.Block(), v.Block()) {
					continue
				}
				resolved[v] = st.StoredValue().(*ir.ConstantInt)
			}
		}
	}

	if len(resolved) != len(loads) {
		return false
	}

	for l, c := range resolved {
		ir.ReplaceAllUsesWith(l, ir.NewConstantInt(c.Type().(*ir.IntType), c.Val))
		detachAndRemove(l)
	}
	for _, st := range stores {
		detachAndRemove(st)
	}
	for g := range geps {
		detachAndRemove(g)
	}
	detachAndRemove(a)
	return true
}

func constantIndex(g *ir.GEP) (int64, bool) {
	indices := g.Indices()
	if len(indices) != 2 {
		return 0, false
	}
	c, ok := indices[1].(*ir.ConstantInt)
	if !ok {
		return 0, false
	}
	return c.Val, true
}
