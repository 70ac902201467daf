// Package analysis implements the pure, module-mutation-free analyses of
// spec §4.3: reaching definitions, call graph, conservative CFG, dominator
// tree/dominance frontiers, and natural loop info. Every exported Build*
// function reads a *ir.Module or *ir.Function and returns a result value;
// none of them write to the IR.
package analysis

import "yatcc/src/ir"

// CFG is the conservative control-flow graph of one function (spec §4.3):
// a CondBr whose condition is an ICmp of two integer constants collapses to
// its single taken edge, so control-flow simplification can recognize
// one-sided branches left behind by constant propagation.
type CFG struct {
	Succs map[*ir.Block][]*ir.Block
}

// BuildCFG performs a BFS from fn's entry block.
func BuildCFG(fn *ir.Function) *CFG {
	cfg := &CFG{Succs: make(map[*ir.Block][]*ir.Block)}
	if fn.IsDeclaration() {
		return cfg
	}
	visited := map[*ir.Block]bool{fn.Entry(): true}
	queue := []*ir.Block{fn.Entry()}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		succs := conservativeSuccessors(b)
		cfg.Succs[b] = succs
		for _, s := range succs {
			if !visited[s] {
				visited[s] = true
				queue = append(queue, s)
			}
		}
	}
	return cfg
}

func conservativeSuccessors(b *ir.Block) []*ir.Block {
	cb, ok := b.Terminator().(*ir.CondBr)
	if !ok {
		return b.Successors()
	}
	if taken, ok := ConstantTakenBranch(cb); ok {
		return []*ir.Block{taken}
	}
	return b.Successors()
}

// ConstantTakenBranch reports the single edge a CondBr collapses to when
// its condition is an ICmp of two integer constants, per spec §4.3.
func ConstantTakenBranch(cb *ir.CondBr) (*ir.Block, bool) {
	cmp, ok := cb.Cond().(*ir.ICmp)
	if !ok {
		return nil, false
	}
	lhs, lok := cmp.LHS().(*ir.ConstantInt)
	rhs, rok := cmp.RHS().(*ir.ConstantInt)
	if !lok || !rok {
		return nil, false
	}
	if evalICmp(cmp.Pred, lhs.Val, rhs.Val) {
		return cb.True, true
	}
	return cb.False, true
}

func evalICmp(pred ir.ICmpPred, a, b int64) bool {
	switch pred {
	case ir.EQ:
		return a == b
	case ir.NE:
		return a != b
	case ir.SLT:
		return a < b
	case ir.SLE:
		return a <= b
	case ir.SGT:
		return a > b
	case ir.SGE:
		return a >= b
	default:
		return false
	}
}

// Reachable returns the set of blocks reachable from fn's entry block
// following real (non-collapsed) terminator edges, used by control-flow
// simplification to delete dead blocks (spec §4.6).
func Reachable(fn *ir.Function) map[*ir.Block]bool {
	reached := make(map[*ir.Block]bool)
	if fn.IsDeclaration() {
		return reached
	}
	queue := []*ir.Block{fn.Entry()}
	reached[fn.Entry()] = true
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, s := range b.Successors() {
			if !reached[s] {
				reached[s] = true
				queue = append(queue, s)
			}
		}
	}
	return reached
}
