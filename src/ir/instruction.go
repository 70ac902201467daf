package ir

import "fmt"

// BinOpKind enumerates the binary arithmetic/bitwise operators spec §3 lists.
type BinOpKind int

const (
	Add BinOpKind = iota
	Sub
	Mul
	SDiv
	SRem
	Shl
	AShr
	And
	Or
)

func (k BinOpKind) String() string {
	return [...]string{"add", "sub", "mul", "sdiv", "srem", "shl", "ashr", "and", "or"}[k]
}

// ICmpPred enumerates the integer comparison predicates spec §3 lists.
type ICmpPred int

const (
	EQ ICmpPred = iota
	NE
	SLT
	SLE
	SGT
	SGE
)

func (p ICmpPred) String() string {
	return [...]string{"eq", "ne", "slt", "sle", "sgt", "sge"}[p]
}

// Instruction is any Value produced inside a basic block. Every concrete
// instruction kind stores its operands directly and keeps them wired into
// each operand's use-list through SetOperand.
type Instruction interface {
	Value
	Block() *Block
	setBlock(*Block)
	Operands() []Value
	SetOperand(i int, v Value)
	IsTerminator() bool
	String() string
}

// instBase is embedded by every concrete instruction.
type instBase struct {
	valueBase
	block    *Block
	operands []Value
	useCache map[int]*Use
}

func (i *instBase) Block() *Block      { return i.block }
func (i *instBase) setBlock(b *Block)  { i.block = b }
func (i *instBase) Operands() []Value  { return i.operands }
func (i *instBase) IsTerminator() bool { return false }

func (i *instBase) SetOperand(idx int, v Value) {
	old := i.operands[idx]
	i.operands[idx] = v
	if old != nil {
		// The caller may be rewriting the same Use it is already iterating
		// (ReplaceAllUsesWith); removeUse is idempotent per Use pointer.
		old.removeUse(i.use(idx))
	}
	if v != nil {
		v.addUse(i.use(idx))
	}
}

// use returns a stable *Use for operand idx. Uses are allocated once per
// (instruction, index) pair the first time the operand is wired, then
// reused so removeUse's pointer-identity comparison keeps working across
// rewrites.
func (i *instBase) use(idx int) *Use {
	if i.useCache == nil {
		i.useCache = make(map[int]*Use)
	}
	u, ok := i.useCache[idx]
	if !ok {
		u = &Use{Index: idx}
		i.useCache[idx] = u
	}
	return u
}

// setOwner finishes constructing inst: it records inst as the User on every
// cached Use object and wires initial operands into their use-lists.
func setOwner(inst Instruction, base *instBase, operands []Value) {
	base.operands = operands
	base.useCache = make(map[int]*Use, len(operands))
	for idx, v := range operands {
		u := &Use{User: inst, Index: idx}
		base.useCache[idx] = u
		if v != nil {
			v.addUse(u)
		}
	}
}

// Alloca reserves stack storage for a value of Elem type. It always lives in
// the function entry block (spec §4.2.3).
type Alloca struct {
	instBase
	Elem Type
}

// NewAlloca builds an alloca instruction. The produced value has pointer
// type; Elem records what it points to for Load/Store/GEP bookkeeping.
func NewAlloca(ctx *Context, elem Type, name string) *Alloca {
	a := &Alloca{Elem: elem}
	a.typ = ctx.Ptr()
	a.name = name
	setOwner(a, &a.instBase, nil)
	return a
}
func (a *Alloca) String() string { return fmt.Sprintf("%%%s = alloca %s", a.name, a.Elem) }

// Load reads the value stored at Pointer.
type Load struct {
	instBase
}

// NewLoad builds a load of type t from pointer p.
func NewLoad(t Type, p Value, name string) *Load {
	l := &Load{}
	l.typ = t
	l.name = name
	setOwner(l, &l.instBase, []Value{p})
	return l
}
func (l *Load) Pointer() Value   { return l.operands[0] }
func (l *Load) String() string   { return fmt.Sprintf("%%%s = load %s, ptr %s", l.name, l.typ, operandName(l.Pointer())) }

// Store writes Value to Pointer. Produces no SSA value.
type Store struct {
	instBase
}

// NewStore builds a store of value into pointer.
func NewStore(value, pointer Value) *Store {
	s := &Store{}
	s.typ = &VoidType{}
	setOwner(s, &s.instBase, []Value{value, pointer})
	return s
}
func (s *Store) StoredValue() Value { return s.operands[0] }
func (s *Store) Pointer() Value     { return s.operands[1] }
func (s *Store) String() string {
	return fmt.Sprintf("store %s, ptr %s", operandName(s.StoredValue()), operandName(s.Pointer()))
}

// BinOp is a binary arithmetic/bitwise instruction.
type BinOp struct {
	instBase
	Op BinOpKind
}

// NewBinOp builds op(lhs, rhs) of type t.
func NewBinOp(t Type, op BinOpKind, lhs, rhs Value, name string) *BinOp {
	b := &BinOp{Op: op}
	b.typ = t
	b.name = name
	setOwner(b, &b.instBase, []Value{lhs, rhs})
	return b
}
func (b *BinOp) LHS() Value { return b.operands[0] }
func (b *BinOp) RHS() Value { return b.operands[1] }
func (b *BinOp) String() string {
	return fmt.Sprintf("%%%s = %s %s, %s", b.name, b.Op, operandName(b.LHS()), operandName(b.RHS()))
}

// ICmp is an integer comparison producing an i1.
type ICmp struct {
	instBase
	Pred ICmpPred
}

// NewICmp builds pred(lhs, rhs) of type i1.
func NewICmp(ctx *Context, pred ICmpPred, lhs, rhs Value, name string) *ICmp {
	c := &ICmp{Pred: pred}
	c.typ = ctx.I1()
	c.name = name
	setOwner(c, &c.instBase, []Value{lhs, rhs})
	return c
}
func (c *ICmp) LHS() Value { return c.operands[0] }
func (c *ICmp) RHS() Value { return c.operands[1] }
func (c *ICmp) String() string {
	return fmt.Sprintf("%%%s = icmp %s %s, %s", c.name, c.Pred, operandName(c.LHS()), operandName(c.RHS()))
}

// GEP computes a symbolic address into an aggregate, matching standard
// LLVM-style GEP semantics: the first index strides Base as an array of
// SourceType, subsequent indices descend into composite types (spec §3).
type GEP struct {
	instBase
	SourceType Type
	Inbounds   bool
}

// NewGEP builds a GEP of Base with the given index operands.
func NewGEP(ctx *Context, sourceType Type, base Value, indices []Value, name string) *GEP {
	g := &GEP{SourceType: sourceType, Inbounds: true}
	g.typ = ctx.Ptr()
	g.name = name
	ops := append([]Value{base}, indices...)
	setOwner(g, &g.instBase, ops)
	return g
}
func (g *GEP) Base() Value      { return g.operands[0] }
func (g *GEP) Indices() []Value { return g.operands[1:] }
func (g *GEP) String() string {
	s := fmt.Sprintf("%%%s = getelementptr inbounds %s, ptr %s", g.name, g.SourceType, operandName(g.Base()))
	for _, idx := range g.Indices() {
		s += ", " + operandName(idx)
	}
	return s
}

// SExt sign-extends (or truncates, per spec §4.2's IntegralCast rule) Value
// to DestType.
type SExt struct {
	instBase
	DestType Type
}

// NewSExt builds a sign-extension/truncation of value to destType.
func NewSExt(destType Type, value Value, name string) *SExt {
	e := &SExt{DestType: destType}
	e.typ = destType
	e.name = name
	setOwner(e, &e.instBase, []Value{value})
	return e
}
func (e *SExt) Value0() Value { return e.operands[0] }
func (e *SExt) String() string {
	return fmt.Sprintf("%%%s = sext %s to %s", e.name, operandName(e.Value0()), e.DestType)
}

// Call invokes a callee Function with Args. The callee itself is wired as
// operand 0 so Function.Uses() reflects its call sites (needed by the
// inliner's post-pass, spec §4.7: "functions with no users ... removed").
type Call struct {
	instBase
}

// NewCall builds a call to callee with the given arguments.
func NewCall(callee *Function, args []Value, name string) *Call {
	c := &Call{}
	c.typ = callee.FuncType().Ret
	c.name = name
	ops := append([]Value{callee}, args...)
	setOwner(c, &c.instBase, ops)
	return c
}
func (c *Call) Callee() *Function { return c.operands[0].(*Function) }
func (c *Call) Args() []Value     { return c.operands[1:] }
func (c *Call) String() string {
	s := fmt.Sprintf("%%%s = call %s(", c.name, c.Callee().Name())
	for i, a := range c.Args() {
		if i > 0 {
			s += ", "
		}
		s += operandName(a)
	}
	return s + ")"
}

// PhiIncoming is one (value, predecessor block) pair of a Phi.
type PhiIncoming struct {
	Value Value
	Block *Block
}

// Phi resolves a value at a CFG join point, one incoming value per
// predecessor (spec §3: "their incoming block set equals the predecessor
// set of the containing block").
type Phi struct {
	instBase
	Incoming []PhiIncoming
}

// NewPhi builds an empty phi of type t; incoming pairs are added with
// AddIncoming as mem2reg discovers them.
func NewPhi(t Type, name string) *Phi {
	p := &Phi{}
	p.typ = t
	p.name = name
	setOwner(p, &p.instBase, nil)
	return p
}

// AddIncoming records that value arrives from pred, wiring its use-list.
func (p *Phi) AddIncoming(value Value, pred *Block) {
	idx := len(p.operands)
	p.operands = append(p.operands, value)
	p.Incoming = append(p.Incoming, PhiIncoming{Value: value, Block: pred})
	u := &Use{User: p, Index: idx}
	p.useCache[idx] = u
	if value != nil {
		value.addUse(u)
	}
}

// SetOperand rewires operand idx and keeps Incoming[idx].Value in step,
// so ReplaceAllUsesWith also updates the phi's incoming list.
func (p *Phi) SetOperand(idx int, v Value) {
	p.instBase.SetOperand(idx, v)
	p.Incoming[idx].Value = v
}

// RemoveIncoming drops the incoming pair from pred, e.g. after
// control-flow simplification deletes or merges a predecessor.
func (p *Phi) RemoveIncoming(pred *Block) {
	for i, in := range p.Incoming {
		if in.Block == pred {
			// Every operand's use is rebuilt below with a shifted index, so
			// the old uses are dropped first.
			for j, v := range p.operands {
				if v != nil {
					v.removeUse(p.useCache[j])
				}
			}
			p.Incoming = append(p.Incoming[:i], p.Incoming[i+1:]...)
			p.operands = append(p.operands[:i], p.operands[i+1:]...)
			p.rebuildUseCache()
			return
		}
	}
}

// RewriteIncomingBlock renames an incoming edge's predecessor, used when
// control-flow simplification merges from into into.
func (p *Phi) RewriteIncomingBlock(from, into *Block) {
	for i := range p.Incoming {
		if p.Incoming[i].Block == from {
			p.Incoming[i].Block = into
		}
	}
}

func (p *Phi) rebuildUseCache() {
	p.useCache = make(map[int]*Use, len(p.operands))
	for idx, v := range p.operands {
		u := &Use{User: p, Index: idx}
		p.useCache[idx] = u
		if v != nil {
			v.addUse(u)
		}
	}
}

func (p *Phi) String() string {
	s := fmt.Sprintf("%%%s = phi %s ", p.name, p.typ)
	for i, in := range p.Incoming {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("[%s, %%%s]", operandName(in.Value), in.Block.Name())
	}
	return s
}

// Br is an unconditional branch terminator.
type Br struct {
	instBase
	Target *Block
}

// NewBr builds an unconditional branch to target.
func NewBr(target *Block) *Br {
	b := &Br{Target: target}
	b.typ = &VoidType{}
	setOwner(b, &b.instBase, nil)
	return b
}
func (b *Br) IsTerminator() bool { return true }
func (b *Br) String() string     { return fmt.Sprintf("br label %%%s", b.Target.Name()) }

// CondBr is a conditional branch terminator.
type CondBr struct {
	instBase
	True, False *Block
}

// NewCondBr builds a conditional branch on cond to trueTarget/falseTarget.
func NewCondBr(cond Value, trueTarget, falseTarget *Block) *CondBr {
	c := &CondBr{True: trueTarget, False: falseTarget}
	c.typ = &VoidType{}
	setOwner(c, &c.instBase, []Value{cond})
	return c
}
func (c *CondBr) Cond() Value        { return c.operands[0] }
func (c *CondBr) IsTerminator() bool { return true }
func (c *CondBr) String() string {
	return fmt.Sprintf("br %s, label %%%s, label %%%s", operandName(c.Cond()), c.True.Name(), c.False.Name())
}

// Ret returns from the current function, optionally with a value.
type Ret struct {
	instBase
}

// NewRet builds a return of value, or a bare "ret void" if value is nil.
func NewRet(value Value) *Ret {
	r := &Ret{}
	r.typ = &VoidType{}
	if value != nil {
		setOwner(r, &r.instBase, []Value{value})
	} else {
		setOwner(r, &r.instBase, nil)
	}
	return r
}
func (r *Ret) Value0() Value {
	if len(r.operands) == 0 {
		return nil
	}
	return r.operands[0]
}
func (r *Ret) IsTerminator() bool { return true }
func (r *Ret) String() string {
	if v := r.Value0(); v != nil {
		return "ret " + operandName(v)
	}
	return "ret void"
}

// Unreachable marks a block that control flow can never reach the end of.
type Unreachable struct {
	instBase
}

// NewUnreachable builds an unreachable terminator.
func NewUnreachable() *Unreachable {
	u := &Unreachable{}
	u.typ = &VoidType{}
	setOwner(u, &u.instBase, nil)
	return u
}
func (u *Unreachable) IsTerminator() bool { return true }
func (u *Unreachable) String() string     { return "unreachable" }

func operandName(v Value) string {
	if v == nil {
		return "<nil>"
	}
	if v.Name() != "" {
		return "%" + v.Name()
	}
	switch c := v.(type) {
	case *ConstantInt:
		return fmt.Sprintf("%d", c.Val)
	case *ConstantNull:
		return "null"
	case *Undef:
		return "undef"
	}
	return "<anon>"
}
