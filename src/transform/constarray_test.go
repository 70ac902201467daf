package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yatcc/src/ir"
)

// ----- PromoteConstantArrays -----

func TestPromoteConstantArraysResolvesDominatedLoad(t *testing.T) {
	ctx := ir.NewContext()
	mod := ir.NewModule("m")
	fn := ir.NewFunction(mod, "f", ctx.Func(ctx.I32()), ir.External)
	mod.AddFunction(fn)
	entry := fn.NewBlock("entry")
	arrTy := ctx.Array(ctx.I32(), 4)

	bd := ir.NewBuilder(ctx)
	bd.SetInsertPointEnd(entry)
	arr := bd.CreateAlloca(arrTy, "arr")
	zero := ir.NewConstantInt(ctx.I32(), 0)
	gepStore := bd.CreateGEP(arrTy, arr, zero, ir.NewConstantInt(ctx.I32(), 2))
	bd.CreateStore(ir.NewConstantInt(ctx.I32(), 42), gepStore)
	gepLoad := bd.CreateGEP(arrTy, arr, zero, ir.NewConstantInt(ctx.I32(), 2))
	loaded := bd.CreateLoad(ctx.I32(), gepLoad)
	bd.CreateRet(loaded)

	changed := PromoteConstantArrays(fn)
	require.True(t, changed)

	ret := entry.Terminator().(*ir.Ret)
	c, ok := ret.Value0().(*ir.ConstantInt)
	require.True(t, ok)
	assert.Equal(t, int64(42), c.Val)

	for _, inst := range entry.Instrs {
		_, isAlloca := inst.(*ir.Alloca)
		assert.False(t, isAlloca)
	}
}

func TestPromoteConstantArraysLeavesDynamicIndexUntouched(t *testing.T) {
	ctx := ir.NewContext()
	mod := ir.NewModule("m")
	fn := ir.NewFunction(mod, "f", ctx.Func(ctx.I32(), ctx.I32()), ir.External)
	mod.AddFunction(fn)
	idx := fn.AddParam(ctx.I32(), "idx")
	entry := fn.NewBlock("entry")
	arrTy := ctx.Array(ctx.I32(), 4)

	bd := ir.NewBuilder(ctx)
	bd.SetInsertPointEnd(entry)
	arr := bd.CreateAlloca(arrTy, "arr")
	zero := ir.NewConstantInt(ctx.I32(), 0)
	gepStore := bd.CreateGEP(arrTy, arr, zero, ir.NewConstantInt(ctx.I32(), 0))
	bd.CreateStore(ir.NewConstantInt(ctx.I32(), 1), gepStore)
	gepLoad := bd.CreateGEP(arrTy, arr, zero, idx)
	loaded := bd.CreateLoad(ctx.I32(), gepLoad)
	bd.CreateRet(loaded)

	changed := PromoteConstantArrays(fn)
	assert.False(t, changed)
	found := false
	for _, inst := range entry.Instrs {
		if inst == ir.Instruction(arr) {
			found = true
		}
	}
	assert.True(t, found)
}
