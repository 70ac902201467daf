package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yatcc/src/analysis"
	"yatcc/src/ir"
)

// addOne is a branch-free callee: fn add_one(p) { return p + 1; }
func buildAddOne(ctx *ir.Context, mod *ir.Module) *ir.Function {
	fn := ir.NewFunction(mod, "add_one", ctx.Func(ctx.I32(), ctx.I32()), ir.External)
	mod.AddFunction(fn)
	p := fn.AddParam(ctx.I32(), "p")
	entry := fn.NewBlock("entry")
	bd := ir.NewBuilder(ctx)
	bd.SetInsertPointEnd(entry)
	sum := bd.CreateBinOp(ctx.I32(), ir.Add, p, ir.NewConstantInt(ctx.I32(), 1))
	bd.CreateRet(sum)
	return fn
}

// ----- Inline -----

func TestInlineReplacesCallWithCalleeBody(t *testing.T) {
	ctx := ir.NewContext()
	mod := ir.NewModule("m")
	callee := buildAddOne(ctx, mod)

	caller := ir.NewFunction(mod, "main", ctx.Func(ctx.I32()), ir.External)
	mod.AddFunction(caller)
	entry := caller.NewBlock("entry")
	bd := ir.NewBuilder(ctx)
	bd.SetInsertPointEnd(entry)
	call := bd.CreateCall(callee, ir.NewConstantInt(ctx.I32(), 41))
	bd.CreateRet(call)

	changed := Inline(mod, 0)
	require.True(t, changed)

	for _, inst := range entry.Instrs {
		_, isCall := inst.(*ir.Call)
		assert.False(t, isCall)
	}
	ret := entry.Terminator().(*ir.Ret)
	bo, ok := ret.Value0().(*ir.BinOp)
	require.True(t, ok)
	assert.Equal(t, ir.Add, bo.Op)

	// add_one has no remaining callers, so the dead-function sweep drops it.
	assert.Nil(t, mod.GetFunction("add_one"))
}

func TestIsInlineableRejectsSelfRecursive(t *testing.T) {
	ctx := ir.NewContext()
	mod := ir.NewModule("m")
	fn := ir.NewFunction(mod, "loopy", ctx.Func(ctx.Void()), ir.External)
	mod.AddFunction(fn)
	entry := fn.NewBlock("entry")
	entry.Append(ir.NewCall(fn, nil, ""))
	entry.Append(ir.NewRet(nil))

	cg := analysis.BuildCallGraph(mod)
	assert.False(t, isInlineable(fn, cg, 0))
}

func TestIsInlineableRejectsBranches(t *testing.T) {
	ctx := ir.NewContext()
	mod := ir.NewModule("m")
	fn := ir.NewFunction(mod, "branchy", ctx.Func(ctx.Void()), ir.External)
	mod.AddFunction(fn)
	entry := fn.NewBlock("entry")
	then := fn.NewBlock("then")
	els := fn.NewBlock("else")
	entry.Append(ir.NewCondBr(ir.NewConstantInt(ctx.I1(), 1), then, els))
	then.Append(ir.NewRet(nil))
	els.Append(ir.NewRet(nil))

	cg := analysis.BuildCallGraph(mod)
	assert.False(t, isInlineable(fn, cg, 0))
}

func TestIsInlineableRespectsSizeCeiling(t *testing.T) {
	ctx := ir.NewContext()
	mod := ir.NewModule("m")
	fn := buildAddOne(ctx, mod)

	cg := analysis.BuildCallGraph(mod)
	assert.True(t, isInlineable(fn, cg, 0))
	assert.False(t, isInlineable(fn, cg, 1))
}

// TestInlineKeepsCtorFunctionAlive guards against removeDeadFunctions
// sweeping away a synthesized global constructor: a ctor is reachable only
// through GlobalVariable.Ctor, never as a Value operand, so it has no
// Uses() and must be excluded from the dead-function sweep through its
// GlobalVariable.Ctor link rather than by use count (emitir/decl.go's
// lowerGlobalVarDecl).
func TestInlineKeepsCtorFunctionAlive(t *testing.T) {
	ctx := ir.NewContext()
	mod := ir.NewModule("m")

	g := ir.NewGlobalVariable(mod, "g", ctx.I32(), ir.External, true)
	mod.AddGlobal(g)

	ctor := ir.NewFunction(mod, ".ctor.g", ctx.Func(ctx.Void()), ir.Private)
	mod.AddFunction(ctor)
	entry := ctor.NewBlock("entry")
	bd := ir.NewBuilder(ctx)
	bd.SetInsertPointEnd(entry)
	bd.CreateStore(ir.NewConstantInt(ctx.I32(), 9), g)
	bd.CreateRet(nil)
	g.Ctor = ctor

	main := ir.NewFunction(mod, "main", ctx.Func(ctx.I32()), ir.External)
	mod.AddFunction(main)
	mainEntry := main.NewBlock("entry")
	mainEntry.Append(ir.NewRet(ir.NewConstantInt(ctx.I32(), 0)))

	Inline(mod, 0)

	assert.NotNil(t, mod.GetFunction(".ctor.g"), "ctor must survive the dead-function sweep")
	assert.Equal(t, ctor, g.Ctor)
}
