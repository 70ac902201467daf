package analysis

import "yatcc/src/ir"

// CallGraph maps each function to the set of functions it calls directly
// (spec §4.3).
type CallGraph struct {
	Callees map[*ir.Function]map[*ir.Function]bool
}

// BuildCallGraph scans every Call instruction in every function body.
func BuildCallGraph(mod *ir.Module) *CallGraph {
	cg := &CallGraph{Callees: make(map[*ir.Function]map[*ir.Function]bool)}
	for _, fn := range mod.Functions {
		set := make(map[*ir.Function]bool)
		for _, b := range fn.Blocks {
			for _, inst := range b.Instrs {
				if c, ok := inst.(*ir.Call); ok {
					set[c.Callee()] = true
				}
			}
		}
		cg.Callees[fn] = set
	}
	return cg
}

// Reaches reports whether from can reach to through one or more call
// edges (so Reaches(f, f) holds only when f lies on a call cycle), used by
// the inliner to reject callees that are directly or indirectly
// self-recursive (spec §4.7).
func (cg *CallGraph) Reaches(from, to *ir.Function) bool {
	visited := make(map[*ir.Function]bool)
	var dfs func(*ir.Function) bool
	dfs = func(f *ir.Function) bool {
		if visited[f] {
			return false
		}
		visited[f] = true
		for callee := range cg.Callees[f] {
			if callee == to || dfs(callee) {
				return true
			}
		}
		return false
	}
	return dfs(from)
}
