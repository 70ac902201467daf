package ir

// Value is a polymorphic handle: an instruction result, a function
// parameter, a constant integer, a constant null pointer, an undef of some
// type, a global variable, or a function. Every value keeps a use-list so
// ReplaceAllUsesWith can rewrite all referencing operands without a module
// scan (spec §3: "Use-lists ... mutated atomically with operand writes").
type Value interface {
	Type() Type
	Name() string
	Uses() []*Use
	addUse(u *Use)
	removeUse(u *Use)
}

// Use records that User references a Value through operand Index. It is the
// Go rendition of the "arena of instructions addressed by stable handles"
// design note: rather than indexing into an arena, plain pointers to heap
// structs serve as the stable handle (Go's collector, unlike the C++
// original's raw pointers, has no trouble with the resulting reference
// cycles between a value and its users).
type Use struct {
	User  Instruction
	Index int
}

// valueBase is embedded by every concrete Value to provide the type
// accessor and use-list bookkeeping.
type valueBase struct {
	typ  Type
	name string
	uses []*Use
}

func (v *valueBase) Type() Type     { return v.typ }
func (v *valueBase) Name() string   { return v.name }
func (v *valueBase) Uses() []*Use   { return v.uses }
func (v *valueBase) addUse(u *Use)  { v.uses = append(v.uses, u) }
func (v *valueBase) removeUse(u *Use) {
	for i, e := range v.uses {
		if e == u {
			v.uses = append(v.uses[:i], v.uses[i+1:]...)
			return
		}
	}
}

// ReplaceAllUsesWith rewrites every operand that currently references old to
// reference new instead, updating both values' use-lists. Used by mem2reg,
// CSE, the inliner and control-flow simplification.
func ReplaceAllUsesWith(old, new Value) {
	if old == new {
		return
	}
	uses := append([]*Use(nil), old.Uses()...)
	for _, u := range uses {
		u.User.SetOperand(u.Index, new)
	}
}

// ConstantInt is a constant integer value of a given integer type.
type ConstantInt struct {
	valueBase
	Val int64
}

// NewConstantInt builds a constant integer of type t with value v.
func NewConstantInt(t *IntType, v int64) *ConstantInt {
	return &ConstantInt{valueBase: valueBase{typ: t}, Val: v}
}

// ConstantNull is the constant null pointer.
type ConstantNull struct {
	valueBase
}

// NewConstantNull builds a null pointer constant.
func NewConstantNull(t *PointerType) *ConstantNull {
	return &ConstantNull{valueBase: valueBase{typ: t}}
}

// Undef is an undefined value of some type, used by mem2reg to materialize
// phi-incoming values with no dominating definition (spec §4.4).
type Undef struct {
	valueBase
}

// NewUndef builds an undef value of type t.
func NewUndef(t Type) *Undef {
	return &Undef{valueBase: valueBase{typ: t}}
}

// Param is a function parameter. Names are advisory (spec §3).
type Param struct {
	valueBase
	Parent *Function
	Index  int
}
