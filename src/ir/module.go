package ir

import (
	"github.com/sasha-s/go-deadlock"
)

// GlobalVariable is a module-level storage location (spec §3). It may carry
// a synthesized constructor (Ctor) when its initializer is not a constant
// expression — see emitir's global-initializer lowering (spec §4.2.3).
type GlobalVariable struct {
	valueBase
	Module    *Module
	Linkage   Linkage
	Init      Value // a Constant* or nil (implies zero-initialized)
	Mutable   bool
	Ctor      *Function // set iff the initializer needed module-init code
	Priority  int       // global_ctors priority, always 0 per spec §4.2.3
	elemType  Type
}

// NewGlobalVariable creates a zero-initialized global of type t.
func NewGlobalVariable(m *Module, name string, t Type, linkage Linkage, mutable bool) *GlobalVariable {
	g := &GlobalVariable{Module: m, Linkage: linkage, Mutable: mutable}
	g.typ = m.Ctx.Ptr()
	g.name = name
	g.elemType = t
	return g
}

// ElemType returns the type of the storage g points to (GlobalVariable's
// own Type() is always an opaque pointer, per spec §3).
func (g *GlobalVariable) ElemType() Type { return g.elemType }

// idgen hands out module-unique sequence numbers. It is guarded by a
// deadlock-checking mutex (rather than the teacher's bare sync.Mutex,
// src/ir/lir/module.go's Module.seq) so that any future reintroduction of
// concurrent module construction is caught immediately in tests instead of
// deadlocking silently, even though the pipeline itself runs single-threaded
// per spec §5.
type idgen struct {
	mu  deadlock.Mutex
	cur int
}

func (g *idgen) next() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.cur
	g.cur++
	return id
}

// Module owns an ordered sequence of global variables and functions, plus
// the shared type-interning Context (spec §3).
type Module struct {
	Name      string
	Ctx       *Context
	Globals   []*GlobalVariable
	Functions []*Function

	ids idgen
}

// NewModule creates an empty module named name with a fresh type context.
func NewModule(name string) *Module {
	return &Module{Name: name, Ctx: NewContext()}
}

// AddGlobal appends g to the module's global list.
func (m *Module) AddGlobal(g *GlobalVariable) { m.Globals = append(m.Globals, g) }

// AddFunction appends f to the module's function list.
func (m *Module) AddFunction(f *Function) { m.Functions = append(m.Functions, f) }

// GetGlobal returns the global named name, or nil.
func (m *Module) GetGlobal(name string) *GlobalVariable {
	for _, g := range m.Globals {
		if g.name == name {
			return g
		}
	}
	return nil
}

// GetFunction returns the function named name, or nil.
func (m *Module) GetFunction(name string) *Function {
	for _, f := range m.Functions {
		if f.name == name {
			return f
		}
	}
	return nil
}

// RemoveFunction deletes f from the module's function list, e.g. after the
// inliner finds it has no remaining callers (spec §4.7).
func (m *Module) RemoveFunction(f *Function) {
	for i, e := range m.Functions {
		if e == f {
			m.Functions = append(m.Functions[:i], m.Functions[i+1:]...)
			return
		}
	}
}

// FreshID returns a module-unique integer, for naming synthesized basic
// blocks and temporaries that must not collide across functions. Nothing
// in this module calls it.
func (m *Module) FreshID() int { return m.ids.next() }
