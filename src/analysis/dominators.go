package analysis

import "yatcc/src/ir"

// Dominators is the immediate-dominator function of one function's CFG,
// computed with the iterative Cooper-Harvey-Kennedy algorithm over a
// reverse-postorder numbering (spec §4.3).
type Dominators struct {
	fn    *ir.Function
	order []*ir.Block
	index map[*ir.Block]int
	idom  map[*ir.Block]*ir.Block
}

// BuildDominators computes idom for every block reachable from fn's entry.
func BuildDominators(fn *ir.Function) *Dominators {
	d := &Dominators{fn: fn, index: make(map[*ir.Block]int), idom: make(map[*ir.Block]*ir.Block)}
	if fn.IsDeclaration() {
		return d
	}
	d.order = reversePostorder(fn.Entry())
	for i, b := range d.order {
		d.index[b] = i
	}
	entry := fn.Entry()
	d.idom[entry] = entry

	for changed := true; changed; {
		changed = false
		for _, b := range d.order {
			if b == entry {
				continue
			}
			var newIdom *ir.Block
			for _, p := range b.Predecessors() {
				if d.idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
				} else {
					newIdom = d.intersect(newIdom, p)
				}
			}
			if newIdom != nil && d.idom[b] != newIdom {
				d.idom[b] = newIdom
				changed = true
			}
		}
	}
	return d
}

func (d *Dominators) intersect(a, b *ir.Block) *ir.Block {
	for a != b {
		for d.index[a] > d.index[b] {
			a = d.idom[a]
		}
		for d.index[b] > d.index[a] {
			b = d.idom[b]
		}
	}
	return a
}

func reversePostorder(entry *ir.Block) []*ir.Block {
	visited := make(map[*ir.Block]bool)
	var post []*ir.Block
	var dfs func(*ir.Block)
	dfs = func(b *ir.Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Successors() {
			dfs(s)
		}
		post = append(post, b)
	}
	dfs(entry)
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// ImmediateDominator returns b's immediate dominator, or nil for the entry
// block.
func (d *Dominators) ImmediateDominator(b *ir.Block) *ir.Block {
	if b == d.fn.Entry() {
		return nil
	}
	return d.idom[b]
}

// Dominates reports whether a dominates b, reflexively.
func (d *Dominators) Dominates(a, b *ir.Block) bool {
	for {
		if b == a {
			return true
		}
		if b == d.fn.Entry() {
			return a == b
		}
		b = d.idom[b]
	}
}

// DominanceFrontier computes DF(b) for every block by the naive
// idom-chain-walk algorithm grounded on
// original_source/task/4/TransformPass.hpp's Memory2Register: for every
// block n with at least two predecessors, each predecessor's idom chain is
// walked up to (but not including) n's immediate dominator, adding n to the
// frontier of every block visited along the way.
func (d *Dominators) DominanceFrontier() map[*ir.Block]map[*ir.Block]bool {
	df := make(map[*ir.Block]map[*ir.Block]bool, len(d.order))
	for _, b := range d.order {
		df[b] = make(map[*ir.Block]bool)
	}
	for _, n := range d.order {
		preds := n.Predecessors()
		if len(preds) < 2 {
			continue
		}
		for _, p := range preds {
			for runner := p; runner != d.idom[n]; runner = d.idom[runner] {
				df[runner][n] = true
			}
		}
	}
	return df
}
