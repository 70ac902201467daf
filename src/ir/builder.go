package ir

// Builder is a cursor holding (current block, insertion position), per
// spec §4.1. Unlike the teacher's lir package (whose Create* methods live
// directly on *Block), Builder is a standalone cursor value so insertion
// point state can be saved and restored explicitly — needed by Emit-IR's
// short-circuit lowering, which must hop between pending blocks and come
// back (spec §4.2.1, §9 "Builder-scoped insertion point").
type Builder struct {
	Ctx   *Context
	block *Block
	// before, if non-nil, is the instruction new instructions are inserted
	// before; if nil, new instructions are appended at the block's end.
	before Instruction
	saved  []cursor
}

type cursor struct {
	block  *Block
	before Instruction
}

// NewBuilder creates a builder over ctx with no insertion point set; call
// SetInsertPointEnd or SetInsertPointBefore before emitting.
func NewBuilder(ctx *Context) *Builder { return &Builder{Ctx: ctx} }

// SetInsertPointEnd points the cursor at the end of b.
func (bd *Builder) SetInsertPointEnd(b *Block) {
	bd.block = b
	bd.before = nil
}

// SetInsertPointBefore points the cursor immediately before mark in mark's
// block.
func (bd *Builder) SetInsertPointBefore(mark Instruction) {
	bd.block = mark.Block()
	bd.before = mark
}

// Block returns the builder's current insertion block.
func (bd *Builder) Block() *Block { return bd.block }

// PushInsertPoint saves the current cursor state so it can be restored with
// PopInsertPoint after a detour (e.g. lowering a short-circuit RHS block).
func (bd *Builder) PushInsertPoint() {
	bd.saved = append(bd.saved, cursor{block: bd.block, before: bd.before})
}

// PopInsertPoint restores the most recently pushed cursor state.
func (bd *Builder) PopInsertPoint() {
	n := len(bd.saved)
	if n == 0 {
		return
	}
	c := bd.saved[n-1]
	bd.saved = bd.saved[:n-1]
	bd.block = c.block
	bd.before = c.before
}

func (bd *Builder) emit(inst Instruction) Instruction {
	if bd.before != nil {
		bd.block.InsertBefore(inst, bd.before)
	} else {
		bd.block.Append(inst)
	}
	return inst
}

func (bd *Builder) fresh(hint string) string {
	return bd.block.Parent.FreshValueName(hint)
}

// CreateAlloca emits an alloca of elem in the builder's current block.
// Callers that need entry-block placement (spec §4.2.3: "always in the
// current function's entry block") use SetInsertPointBefore on the entry
// block's first non-alloca instruction instead of relying on the general
// cursor position.
func (bd *Builder) CreateAlloca(elem Type, name string) *Alloca {
	if name == "" {
		name = bd.fresh("local")
	}
	a := NewAlloca(bd.Ctx, elem, name)
	bd.emit(a)
	return a
}

// CreateLoad emits a load of type t from pointer.
func (bd *Builder) CreateLoad(t Type, pointer Value) *Load {
	l := NewLoad(t, pointer, bd.fresh("t"))
	bd.emit(l)
	return l
}

// CreateStore emits a store of value into pointer.
func (bd *Builder) CreateStore(value, pointer Value) *Store {
	s := NewStore(value, pointer)
	bd.emit(s)
	return s
}

// CreateBinOp emits op(lhs, rhs) of type t.
func (bd *Builder) CreateBinOp(t Type, op BinOpKind, lhs, rhs Value) *BinOp {
	b := NewBinOp(t, op, lhs, rhs, bd.fresh("t"))
	bd.emit(b)
	return b
}

// CreateICmp emits pred(lhs, rhs).
func (bd *Builder) CreateICmp(pred ICmpPred, lhs, rhs Value) *ICmp {
	c := NewICmp(bd.Ctx, pred, lhs, rhs, bd.fresh("t"))
	bd.emit(c)
	return c
}

// CreateGEP emits a getelementptr of base with indices.
func (bd *Builder) CreateGEP(sourceType Type, base Value, indices ...Value) *GEP {
	g := NewGEP(bd.Ctx, sourceType, base, indices, bd.fresh("t"))
	bd.emit(g)
	return g
}

// CreateSExt emits a sign-extension/truncation of value to destType.
func (bd *Builder) CreateSExt(destType Type, value Value) *SExt {
	e := NewSExt(destType, value, bd.fresh("t"))
	bd.emit(e)
	return e
}

// CreateCall emits a call to callee with args.
func (bd *Builder) CreateCall(callee *Function, args ...Value) *Call {
	name := ""
	if _, ok := callee.FuncType().Ret.(*VoidType); !ok {
		name = bd.fresh("t")
	}
	c := NewCall(callee, args, name)
	bd.emit(c)
	return c
}

// CreatePhi emits an empty phi of type t.
func (bd *Builder) CreatePhi(t Type) *Phi {
	p := NewPhi(t, bd.fresh("phi"))
	bd.emit(p)
	return p
}

// CreateBr emits an unconditional branch, terminating the current block.
func (bd *Builder) CreateBr(target *Block) *Br {
	b := NewBr(target)
	bd.emit(b)
	return b
}

// CreateCondBr emits a conditional branch, terminating the current block.
func (bd *Builder) CreateCondBr(cond Value, trueTarget, falseTarget *Block) *CondBr {
	c := NewCondBr(cond, trueTarget, falseTarget)
	bd.emit(c)
	return c
}

// CreateRet emits a return, terminating the current block.
func (bd *Builder) CreateRet(value Value) *Ret {
	r := NewRet(value)
	bd.emit(r)
	return r
}

// CreateUnreachable emits an unreachable terminator.
func (bd *Builder) CreateUnreachable() *Unreachable {
	u := NewUnreachable()
	bd.emit(u)
	return u
}
