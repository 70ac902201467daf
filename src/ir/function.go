package ir

import "strconv"

// Linkage distinguishes externally-visible declarations/definitions from
// module-private ones (spec §3).
type Linkage int

const (
	External Linkage = iota
	Private
)

// Function is a named function: either a definition (non-empty Blocks, the
// first being the entry block with no predecessors) or a declaration (no
// body).
type Function struct {
	valueBase
	Module  *Module
	Linkage Linkage
	Params  []*Param
	Blocks  []*Block

	blockSeq int
	valSeq   int
}

// NewFunction creates a function named name with the given signature and
// linkage. Callers add parameters with AddParam and blocks with NewBlock.
func NewFunction(m *Module, name string, t *FuncType, linkage Linkage) *Function {
	f := &Function{Module: m, Linkage: linkage}
	f.typ = t
	f.name = name
	return f
}

// FuncType returns the function's signature.
func (f *Function) FuncType() *FuncType { return f.typ.(*FuncType) }

// IsDeclaration reports whether f has no body.
func (f *Function) IsDeclaration() bool { return len(f.Blocks) == 0 }

// Entry returns the function's entry block, or nil for a declaration.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// AddParam appends a new parameter of type t to f's signature and returns
// its Value handle.
func (f *Function) AddParam(t Type, name string) *Param {
	p := &Param{Parent: f, Index: len(f.Params)}
	p.typ = t
	p.name = name
	f.Params = append(f.Params, p)
	return p
}

// NewBlock appends a fresh, unterminated block to f.
func (f *Function) NewBlock(label string) *Block {
	b := &Block{id: f.blockSeq, label: label, Parent: f}
	f.blockSeq++
	f.Blocks = append(f.Blocks, b)
	return b
}

// InsertBlockAfter inserts a new block immediately after mark and returns it.
// Used by the loop unroller and inliner when splicing in cloned blocks.
func (f *Function) InsertBlockAfter(mark *Block, label string) *Block {
	b := &Block{id: f.blockSeq, label: label, Parent: f}
	f.blockSeq++
	for i, e := range f.Blocks {
		if e == mark {
			rest := append([]*Block{b}, f.Blocks[i+1:]...)
			f.Blocks = append(f.Blocks[:i+1], rest...)
			return b
		}
	}
	f.Blocks = append(f.Blocks, b)
	return b
}

// RemoveBlock deletes b from f's block list. Callers are responsible for
// having already detached b's instructions from any use-lists.
func (f *Function) RemoveBlock(b *Block) {
	for i, e := range f.Blocks {
		if e == b {
			f.Blocks = append(f.Blocks[:i], f.Blocks[i+1:]...)
			return
		}
	}
}

// FreshValueName returns a fresh, function-unique SSA name with the given
// hint prefix, e.g. "t" -> "t0", "t1", ...
func (f *Function) FreshValueName(hint string) string {
	n := f.valSeq
	f.valSeq++
	return hint + strconv.Itoa(n)
}
