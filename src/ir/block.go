package ir

import (
	"strconv"
	"strings"
)

// Block is an ordered list of instructions, the last of which is a
// terminator once the module is well-formed (spec §3). Predecessor/successor
// relations are not stored; they are derived from terminators on demand, as
// the distilled spec requires.
type Block struct {
	id     int
	label  string
	Parent *Function
	Instrs []Instruction
}

// Name returns the block's debug label as given to NewBlock, e.g. "entry"
// or "if.then" (labels are not made unique), or "bb<id>" when unlabelled.
func (b *Block) Name() string {
	if b.label != "" {
		return b.label
	}
	return blockLabelPrefix(b.id)
}

func blockLabelPrefix(id int) string { return "bb" + strconv.Itoa(id) }

// Successors returns the block's immediate CFG successors, derived from its
// terminator instruction. Returns nil if the block has no terminator yet.
func (b *Block) Successors() []*Block {
	if len(b.Instrs) == 0 {
		return nil
	}
	switch t := b.Instrs[len(b.Instrs)-1].(type) {
	case *Br:
		return []*Block{t.Target}
	case *CondBr:
		return []*Block{t.True, t.False}
	default:
		return nil
	}
}

// Predecessors scans every block of Parent and returns those whose
// successors include b.
func (b *Block) Predecessors() []*Block {
	var preds []*Block
	for _, other := range b.Parent.Blocks {
		for _, s := range other.Successors() {
			if s == b {
				preds = append(preds, other)
				break
			}
		}
	}
	return preds
}

// Terminator returns the block's terminator instruction, or nil if the
// block is not yet terminated.
func (b *Block) Terminator() Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	if last := b.Instrs[len(b.Instrs)-1]; last.IsTerminator() {
		return last
	}
	return nil
}

// Phis returns the leading run of Phi instructions (spec §3: "Phi nodes
// appear only at the beginning of a block").
func (b *Block) Phis() []*Phi {
	var phis []*Phi
	for _, inst := range b.Instrs {
		p, ok := inst.(*Phi)
		if !ok {
			break
		}
		phis = append(phis, p)
	}
	return phis
}

// Append adds inst to the end of the block's instruction list and records
// the block as its owner.
func (b *Block) Append(inst Instruction) {
	inst.setBlock(b)
	b.Instrs = append(b.Instrs, inst)
}

// InsertBefore inserts inst immediately before mark in the block's
// instruction list.
func (b *Block) InsertBefore(inst, mark Instruction) {
	inst.setBlock(b)
	for i, e := range b.Instrs {
		if e == mark {
			b.Instrs = append(b.Instrs[:i], append([]Instruction{inst}, b.Instrs[i:]...)...)
			return
		}
	}
	b.Append(inst)
}

// Remove deletes inst from the block's instruction list without touching
// its operands' use-lists (callers that want full teardown should also
// clear inst's own operands via SetOperand(i, nil) first).
func (b *Block) Remove(inst Instruction) {
	for i, e := range b.Instrs {
		if e == inst {
			b.Instrs = append(b.Instrs[:i], b.Instrs[i+1:]...)
			return
		}
	}
}

func joinNames(blocks []*Block) string {
	names := make([]string, len(blocks))
	for i, b := range blocks {
		names[i] = b.Name()
	}
	return strings.Join(names, ", ")
}
