package transform

import (
	"fmt"
	"math/bits"

	"yatcc/src/analysis"
	"yatcc/src/ir"
)

// ConstantPropagateGlobals implements spec §4.5's global constant
// propagation: a global that is never stored to after its initial constant
// initializer has every load of it replaced by that constant directly.
func ConstantPropagateGlobals(mod *ir.Module) bool {
	changed := false
	for _, g := range mod.Globals {
		if g.Init == nil || g.Ctor != nil || everStoredTo(g) {
			continue
		}
		for _, u := range append([]*ir.Use(nil), g.Uses()...) {
			l, ok := u.User.(*ir.Load)
			if !ok {
				continue
			}
			ir.ReplaceAllUsesWith(l, g.Init)
			detachAndRemove(l)
			changed = true
		}
	}
	return changed
}

func everStoredTo(g *ir.GlobalVariable) bool {
	for _, u := range g.Uses() {
		if _, ok := u.User.(*ir.Store); ok {
			return true
		}
	}
	return false
}

// AlgebraicIdentities implements spec §4.5's identity simplifications
// (x+0, 0+x, x-0, x*1, 1*x, x*0, 0*x, 0/x, x/1, x%1) and, as a prerequisite
// for spec §8 scenario 6's "after inlining and folding, ret i32 5", folds
// any BinOp whose operands are both already constant — reusing
// unroll.go's foldBinOp, since the loop unroller already needed the exact
// same arithmetic during copy-with-constant-induction-variable cloning.
func AlgebraicIdentities(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		for _, inst := range append([]ir.Instruction(nil), b.Instrs...) {
			bo, ok := inst.(*ir.BinOp)
			if !ok {
				continue
			}
			if repl, ok := simplifyBinOp(bo); ok {
				ir.ReplaceAllUsesWith(bo, repl)
				detachAndRemove(bo)
				changed = true
			}
		}
	}
	return changed
}

func simplifyBinOp(bo *ir.BinOp) (ir.Value, bool) {
	lhs, rhs := bo.LHS(), bo.RHS()
	lc, lok := lhs.(*ir.ConstantInt)
	rc, rok := rhs.(*ir.ConstantInt)
	zero := func() ir.Value { return ir.NewConstantInt(bo.Type().(*ir.IntType), 0) }
	if lok && rok {
		if folded, ok := foldBinOp(bo.Op, lc.Val, rc.Val); ok {
			return ir.NewConstantInt(bo.Type().(*ir.IntType), folded), true
		}
	}
	switch bo.Op {
	case ir.Add:
		if rok && rc.Val == 0 {
			return lhs, true
		}
		if lok && lc.Val == 0 {
			return rhs, true
		}
	case ir.Sub:
		if rok && rc.Val == 0 {
			return lhs, true
		}
	case ir.Mul:
		if rok && rc.Val == 1 {
			return lhs, true
		}
		if lok && lc.Val == 1 {
			return rhs, true
		}
		if (rok && rc.Val == 0) || (lok && lc.Val == 0) {
			return zero(), true
		}
	case ir.SDiv:
		if lok && lc.Val == 0 {
			return zero(), true
		}
		if rok && rc.Val == 1 {
			return lhs, true
		}
	case ir.SRem:
		if rok && rc.Val == 1 {
			return zero(), true
		}
	}
	return nil, false
}

// StrengthReduction implements spec §4.5: x*2^k becomes a shift, and x%2^k
// becomes a shift/subtract, the latter restricted to provably non-negative
// dividends (the distilled spec leaves the general case, with its
// round-toward-zero correction, unaddressed).
func StrengthReduction(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		for _, inst := range append([]ir.Instruction(nil), b.Instrs...) {
			bo, ok := inst.(*ir.BinOp)
			if !ok {
				continue
			}
			switch bo.Op {
			case ir.Mul:
				if reduceMul(fn, bo) {
					changed = true
				}
			case ir.SRem:
				if reduceSRem(fn, bo) {
					changed = true
				}
			}
		}
	}
	return changed
}

func reduceMul(fn *ir.Function, bo *ir.BinOp) bool {
	if k, ok := powerOfTwoShift(bo.RHS()); ok {
		bd := ir.NewBuilder(fn.Module.Ctx)
		bd.SetInsertPointBefore(bo)
		repl := bd.CreateBinOp(bo.Type(), ir.Shl, bo.LHS(), ir.NewConstantInt(bo.Type().(*ir.IntType), int64(k)))
		ir.ReplaceAllUsesWith(bo, repl)
		detachAndRemove(bo)
		return true
	}
	if k, ok := powerOfTwoShift(bo.LHS()); ok {
		bd := ir.NewBuilder(fn.Module.Ctx)
		bd.SetInsertPointBefore(bo)
		repl := bd.CreateBinOp(bo.Type(), ir.Shl, bo.RHS(), ir.NewConstantInt(bo.Type().(*ir.IntType), int64(k)))
		ir.ReplaceAllUsesWith(bo, repl)
		detachAndRemove(bo)
		return true
	}
	return false
}

func reduceSRem(fn *ir.Function, bo *ir.BinOp) bool {
	k, ok := powerOfTwoShift(bo.RHS())
	if !ok || !isNonNegative(bo.LHS()) {
		return false
	}
	t := bo.Type().(*ir.IntType)
	bd := ir.NewBuilder(fn.Module.Ctx)
	bd.SetInsertPointBefore(bo)
	shiftAmt := ir.NewConstantInt(t, int64(k))
	div := bd.CreateBinOp(t, ir.AShr, bo.LHS(), shiftAmt)
	shl := bd.CreateBinOp(t, ir.Shl, div, shiftAmt)
	sub := bd.CreateBinOp(t, ir.Sub, bo.LHS(), shl)
	ir.ReplaceAllUsesWith(bo, sub)
	detachAndRemove(bo)
	return true
}

func powerOfTwoShift(v ir.Value) (int, bool) {
	c, ok := v.(*ir.ConstantInt)
	if !ok || c.Val <= 0 {
		return 0, false
	}
	u := uint64(c.Val)
	if u&(u-1) != 0 {
		return 0, false
	}
	return bits.TrailingZeros64(u), true
}

// isNonNegative conservatively recognizes values spec §4.5's strength
// reduction may treat as non-negative dividends; anything else is left to
// the general (unreduced) srem.
func isNonNegative(v ir.Value) bool {
	c, ok := v.(*ir.ConstantInt)
	return ok && c.Val >= 0
}

// CSE implements spec §4.5's basic-block-local common subexpression
// elimination: a running map from (operator, canonical operands) to the
// first instruction that produced it, with loads canonicalized by pointer
// and invalidated by any store in between. Long chains of constant-offset
// or repeated-operand additions are folded on top of the per-instruction
// pass.
func CSE(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		if cseBlock(b) {
			changed = true
		}
		if foldAdditionChains(b) {
			changed = true
		}
		if foldRepeatedAddChains(b) {
			changed = true
		}
	}
	return changed
}

type cseKey struct {
	kind string
	a, b ir.Value
}

func canonical(v ir.Value) ir.Value {
	if l, ok := v.(*ir.Load); ok {
		return l.Pointer()
	}
	return v
}

func cseBlock(b *ir.Block) bool {
	changed := false
	seen := make(map[cseKey]ir.Value)
	seenGEP := make(map[string]ir.Value)
	for _, inst := range append([]ir.Instruction(nil), b.Instrs...) {
		switch v := inst.(type) {
		case *ir.Store:
			for k := range seen {
				if k.kind == "load" {
					delete(seen, k)
				}
			}
		case *ir.Load:
			key := cseKey{kind: "load", a: canonical(v)}
			if prior, ok := seen[key]; ok {
				ir.ReplaceAllUsesWith(v, prior)
				detachAndRemove(v)
				changed = true
				continue
			}
			seen[key] = v
		case *ir.BinOp:
			key := cseKey{kind: "binop:" + v.Op.String(), a: canonical(v.LHS()), b: canonical(v.RHS())}
			if prior, ok := seen[key]; ok {
				ir.ReplaceAllUsesWith(v, prior)
				detachAndRemove(v)
				changed = true
				continue
			}
			seen[key] = v
		case *ir.ICmp:
			key := cseKey{kind: "icmp:" + v.Pred.String(), a: canonical(v.LHS()), b: canonical(v.RHS())}
			if prior, ok := seen[key]; ok {
				ir.ReplaceAllUsesWith(v, prior)
				detachAndRemove(v)
				changed = true
				continue
			}
			seen[key] = v
		case *ir.GEP:
			key := gepKey(v)
			if prior, ok := seenGEP[key]; ok {
				ir.ReplaceAllUsesWith(v, prior)
				detachAndRemove(v)
				changed = true
				continue
			}
			seenGEP[key] = v
		}
	}
	return changed
}

func gepKey(g *ir.GEP) string {
	s := fmt.Sprintf("gep:%p", canonical(g.Base()))
	for _, idx := range g.Indices() {
		s += fmt.Sprintf(":%p", canonical(idx))
	}
	return s
}

// foldAdditionChains folds a run of additions each adding a distinct
// integer constant, e.g. (x+1)+2)+3, into a single addition of the
// accumulated constant, provided every intermediate add has no other use.
func foldAdditionChains(b *ir.Block) bool {
	changed := false
	for _, inst := range append([]ir.Instruction(nil), b.Instrs...) {
		bo, ok := inst.(*ir.BinOp)
		if !ok || bo.Op != ir.Add || bo.Block() == nil {
			continue
		}
		rc, ok := bo.RHS().(*ir.ConstantInt)
		if !ok {
			continue
		}
		base := bo.LHS()
		sum := rc.Val
		count := 1
		for {
			prev, ok := base.(*ir.BinOp)
			if !ok || prev.Op != ir.Add || len(prev.Uses()) != 1 {
				break
			}
			pc, ok := prev.RHS().(*ir.ConstantInt)
			if !ok {
				break
			}
			sum += pc.Val
			base = prev.LHS()
			count++
		}
		if count < 2 {
			continue
		}
		bd := ir.NewBuilder(bo.Block().Parent.Module.Ctx)
		bd.SetInsertPointBefore(bo)
		repl := bd.CreateBinOp(bo.Type(), ir.Add, base, ir.NewConstantInt(bo.Type().(*ir.IntType), sum))
		ir.ReplaceAllUsesWith(bo, repl)
		cur := ir.Value(bo)
		for i := 0; i < count; i++ {
			cbo := cur.(*ir.BinOp)
			next := cbo.LHS()
			detachAndRemove(cbo)
			cur = next
		}
		changed = true
	}
	return changed
}

// foldRepeatedAddChains recognizes a run of more than five additions of the
// same value (x+v)+v)+v..., and replaces it with a multiplication (spec
// §4.5).
func foldRepeatedAddChains(b *ir.Block) bool {
	changed := false
	for _, inst := range append([]ir.Instruction(nil), b.Instrs...) {
		bo, ok := inst.(*ir.BinOp)
		if !ok || bo.Op != ir.Add || bo.Block() == nil {
			continue
		}
		v := bo.RHS()
		base := bo.LHS()
		count := 1
		for {
			prev, ok := base.(*ir.BinOp)
			if !ok || prev.Op != ir.Add || prev.RHS() != v || len(prev.Uses()) != 1 {
				break
			}
			base = prev.LHS()
			count++
		}
		if count <= 5 {
			continue
		}
		it, ok := v.Type().(*ir.IntType)
		if !ok {
			continue
		}
		bd := ir.NewBuilder(bo.Block().Parent.Module.Ctx)
		bd.SetInsertPointBefore(bo)
		var repl ir.Value
		if base == v {
			repl = bd.CreateBinOp(bo.Type(), ir.Mul, v, ir.NewConstantInt(it, int64(count+1)))
		} else {
			mul := bd.CreateBinOp(bo.Type(), ir.Mul, v, ir.NewConstantInt(it, int64(count)))
			repl = bd.CreateBinOp(bo.Type(), ir.Add, base, mul)
		}
		ir.ReplaceAllUsesWith(bo, repl)
		cur := ir.Value(bo)
		for i := 0; i < count; i++ {
			cbo := cur.(*ir.BinOp)
			next := cbo.LHS()
			detachAndRemove(cbo)
			cur = next
		}
		changed = true
	}
	return changed
}

// DCE implements spec §4.5's dead-store elimination: a store to a global
// never loaded, or a store with no reaching load per analysis.ReachingDefs,
// is removed, cascading into whatever instructions produced its stored
// value if those are now themselves unused. Stores into arrays are always
// preserved, since array reads are not tracked field-by-field.
func DCE(fn *ir.Function) bool {
	changed := false
	reach := analysis.BuildReachingDefs(fn)
	for _, b := range fn.Blocks {
		for _, inst := range append([]ir.Instruction(nil), b.Instrs...) {
			st, ok := inst.(*ir.Store)
			if !ok || st.Block() == nil {
				continue
			}
			if isArrayPointer(st.Pointer()) {
				continue
			}
			if g, ok := st.Pointer().(*ir.GlobalVariable); ok {
				if globalIsLoaded(g) {
					continue
				}
				removeStoreCascading(st)
				changed = true
				continue
			}
			if len(reach.StoreToLoads[st]) == 0 {
				removeStoreCascading(st)
				changed = true
			}
		}
	}
	return changed
}

func isArrayPointer(addr ir.Value) bool {
	switch v := addr.(type) {
	case *ir.Alloca:
		_, ok := v.Elem.(*ir.ArrayType)
		return ok
	case *ir.GlobalVariable:
		_, ok := v.ElemType().(*ir.ArrayType)
		return ok
	case *ir.GEP:
		return true
	}
	return false
}

func globalIsLoaded(g *ir.GlobalVariable) bool {
	for _, u := range g.Uses() {
		if _, ok := u.User.(*ir.Load); ok {
			return true
		}
	}
	return false
}

func removeStoreCascading(st *ir.Store) {
	v := st.StoredValue()
	detachAndRemove(st)
	for {
		inst, ok := v.(ir.Instruction)
		if !ok || inst.Block() == nil || len(inst.Uses()) != 0 {
			return
		}
		ops := inst.Operands()
		if len(ops) == 0 {
			detachAndRemove(inst)
			return
		}
		next := ops[0]
		detachAndRemove(inst)
		v = next
	}
}
