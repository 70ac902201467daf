// Package transform implements the IR-mutating passes of spec §4.4-§4.10:
// mem2reg, the scalar transforms, control-flow simplification, the
// function inliner, LICM, the loop unroller, and local constant-array
// promotion. Every pass reads and mutates one *ir.Function (or, for the
// inliner, one *ir.Module); package analysis supplies the pure analyses
// they depend on.
package transform

import "yatcc/src/ir"

// detachAndRemove clears inst's operands from their values' use-lists,
// then removes inst from its containing block. Used by every pass that
// deletes a dead instruction.
func detachAndRemove(inst ir.Instruction) {
	for i := range inst.Operands() {
		inst.SetOperand(i, nil)
	}
	if b := inst.Block(); b != nil {
		b.Remove(inst)
	}
}

// mapOperand resolves v through a clone's value map, falling back to v
// itself for constants, globals, and other values the map does not cover.
func mapOperand(valueMap map[ir.Value]ir.Value, v ir.Value) ir.Value {
	if v == nil {
		return nil
	}
	if mapped, ok := valueMap[v]; ok {
		return mapped
	}
	return v
}

// cloneInstruction builds a structural copy of inst with its operands
// remapped through valueMap. Used by both the inliner and the loop
// unroller. The clone is not yet attached to any block.
func cloneInstruction(ctx *ir.Context, inst ir.Instruction, valueMap map[ir.Value]ir.Value) ir.Instruction {
	switch v := inst.(type) {
	case *ir.Alloca:
		return ir.NewAlloca(ctx, v.Elem, v.Name())
	case *ir.Load:
		return ir.NewLoad(v.Type(), mapOperand(valueMap, v.Pointer()), "")
	case *ir.Store:
		return ir.NewStore(mapOperand(valueMap, v.StoredValue()), mapOperand(valueMap, v.Pointer()))
	case *ir.BinOp:
		return ir.NewBinOp(v.Type(), v.Op, mapOperand(valueMap, v.LHS()), mapOperand(valueMap, v.RHS()), "")
	case *ir.ICmp:
		return ir.NewICmp(ctx, v.Pred, mapOperand(valueMap, v.LHS()), mapOperand(valueMap, v.RHS()), "")
	case *ir.GEP:
		idx := make([]ir.Value, len(v.Indices()))
		for i, x := range v.Indices() {
			idx[i] = mapOperand(valueMap, x)
		}
		return ir.NewGEP(ctx, v.SourceType, mapOperand(valueMap, v.Base()), idx, "")
	case *ir.SExt:
		return ir.NewSExt(v.DestType, mapOperand(valueMap, v.Value0()), "")
	case *ir.Call:
		args := make([]ir.Value, len(v.Args()))
		for i, a := range v.Args() {
			args[i] = mapOperand(valueMap, a)
		}
		return ir.NewCall(v.Callee(), args, "")
	default:
		return nil
	}
}

// placeInEntry inserts alloc right after fn's existing entry-block
// allocas, the same convention src/emitir uses (spec §4.2.3).
func placeInEntry(fn *ir.Function, alloc *ir.Alloca) {
	entry := fn.Entry()
	var mark ir.Instruction
	for _, inst := range entry.Instrs {
		if _, ok := inst.(*ir.Alloca); !ok {
			mark = inst
			break
		}
	}
	if mark != nil {
		entry.InsertBefore(alloc, mark)
	} else {
		entry.Append(alloc)
	}
}

// redirectTerminator rewrites every edge from p that targets oldTarget to
// point at newTarget instead. Block targets are plain fields, not
// use-tracked Values, so this is a direct mutation.
func redirectTerminator(p *ir.Block, oldTarget, newTarget *ir.Block) {
	switch t := p.Terminator().(type) {
	case *ir.Br:
		if t.Target == oldTarget {
			t.Target = newTarget
		}
	case *ir.CondBr:
		if t.True == oldTarget {
			t.True = newTarget
		}
		if t.False == oldTarget {
			t.False = newTarget
		}
	}
}
