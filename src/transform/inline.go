package transform

import (
	"yatcc/src/analysis"
	"yatcc/src/ir"
)

// Inline implements spec §4.7: repeatedly inline every eligible call site
// across the module, then delete functions left with no remaining callers
// (other than main, which always keeps its own definition). sizeCeiling
// caps the callee's instruction count; a non-positive ceiling means
// unlimited, matching the distilled spec's original no-ceiling behavior.
func Inline(mod *ir.Module, sizeCeiling int) bool {
	changed := false
	cg := analysis.BuildCallGraph(mod)
	for _, fn := range mod.Functions {
		if fn.IsDeclaration() {
			continue
		}
		for {
			call := findInlinableCall(fn, cg, sizeCeiling)
			if call == nil {
				break
			}
			inlineCall(mod, call)
			changed = true
			cg = analysis.BuildCallGraph(mod)
		}
	}
	if removeDeadFunctions(mod) {
		changed = true
	}
	return changed
}

func findInlinableCall(fn *ir.Function, cg *analysis.CallGraph, sizeCeiling int) *ir.Call {
	for _, b := range fn.Blocks {
		for _, inst := range b.Instrs {
			c, ok := inst.(*ir.Call)
			if ok && isInlineable(c.Callee(), cg, sizeCeiling) {
				return c
			}
		}
	}
	return nil
}

// isInlineable implements spec §4.7's eligibility rule: the callee must be
// defined (not a declaration), must not be directly or indirectly
// self-recursive, and its body must contain no branch instruction,
// conditional or not. A positive sizeCeiling additionally bounds the
// callee's instruction count (spec §5.1's "inline size ceiling"
// configuration knob).
func isInlineable(callee *ir.Function, cg *analysis.CallGraph, sizeCeiling int) bool {
	if callee.IsDeclaration() || cg.Reaches(callee, callee) {
		return false
	}
	for _, b := range callee.Blocks {
		switch b.Terminator().(type) {
		case *ir.CondBr, *ir.Br:
			return false
		}
	}
	if sizeCeiling > 0 && len(callee.Entry().Instrs) > sizeCeiling {
		return false
	}
	return true
}

// inlineCall clones callee's (single, branch-free) entry block into the
// call's block immediately before the call, maps parameters to arguments,
// hoists cloned allocas to the caller's entry block, rewrites the callee's
// Ret into a replace-all-uses-with on the call result, and erases the
// original call.
func inlineCall(mod *ir.Module, call *ir.Call) {
	caller := call.Block().Parent
	callee := call.Callee()
	args := call.Args()
	callBlock := call.Block()

	valueMap := make(map[ir.Value]ir.Value)
	for i, p := range callee.Params {
		valueMap[p] = args[i]
	}

	var retVal ir.Value
	for _, inst := range callee.Entry().Instrs {
		if ret, ok := inst.(*ir.Ret); ok {
			retVal = mapOperand(valueMap, ret.Value0())
			continue
		}
		clone := cloneInstruction(mod.Ctx, inst, valueMap)
		if alloc, ok := clone.(*ir.Alloca); ok {
			placeInEntry(caller, alloc)
		} else {
			callBlock.InsertBefore(clone, call)
		}
		valueMap[inst] = clone
	}

	if retVal != nil {
		ir.ReplaceAllUsesWith(call, retVal)
	}
	detachAndRemove(call)
}

// removeDeadFunctions drops every definition with no remaining callers,
// except main and any function still reachable as a global's Ctor: a
// synthesized global initializer (emitir/decl.go's lowerGlobalVarDecl) is
// referenced only through GlobalVariable.Ctor, never as a Value operand, so
// it would otherwise look unused and be deleted along with the global
// initialization it performs (spec §4.2.3).
func removeDeadFunctions(mod *ir.Module) bool {
	changed := false
	for {
		ctors := make(map[*ir.Function]bool)
		for _, g := range mod.Globals {
			if g.Ctor != nil {
				ctors[g.Ctor] = true
			}
		}
		removed := false
		for _, fn := range append([]*ir.Function(nil), mod.Functions...) {
			if fn.Name() == "main" || len(fn.Uses()) != 0 || ctors[fn] {
				continue
			}
			mod.RemoveFunction(fn)
			removed = true
			changed = true
		}
		if !removed {
			break
		}
	}
	return changed
}
