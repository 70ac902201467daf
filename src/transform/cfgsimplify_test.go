package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yatcc/src/ir"
)

// ----- SimplifyCFG -----

func TestRemoveUnreachableDeletesDeadBlock(t *testing.T) {
	ctx := ir.NewContext()
	mod := ir.NewModule("m")
	fn := ir.NewFunction(mod, "f", ctx.Func(ctx.Void()), ir.External)
	mod.AddFunction(fn)

	entry := fn.NewBlock("entry")
	dead := fn.NewBlock("dead")
	entry.Append(ir.NewRet(nil))
	dead.Append(ir.NewRet(nil))

	changed := SimplifyCFG(fn)
	require.True(t, changed)
	for _, b := range fn.Blocks {
		assert.NotEqual(t, dead, b)
	}
}

func TestFoldOneSidedBranchesConstantCondition(t *testing.T) {
	ctx := ir.NewContext()
	mod := ir.NewModule("m")
	fn := ir.NewFunction(mod, "f", ctx.Func(ctx.Void()), ir.External)
	mod.AddFunction(fn)

	entry := fn.NewBlock("entry")
	then := fn.NewBlock("then")
	els := fn.NewBlock("else")

	bd := ir.NewBuilder(ctx)
	bd.SetInsertPointEnd(entry)
	cmp := bd.CreateICmp(ir.EQ, ir.NewConstantInt(ctx.I32(), 1), ir.NewConstantInt(ctx.I32(), 1))
	bd.CreateCondBr(cmp, then, els)

	bd.SetInsertPointEnd(then)
	bd.CreateRet(nil)
	bd.SetInsertPointEnd(els)
	bd.CreateRet(nil)

	require.True(t, SimplifyCFG(fn))
	// els is unreachable once the CondBr collapses to a plain branch to
	// then, and then itself gets merged into entry since it is now entry's
	// only successor with no other predecessor.
	for _, b := range fn.Blocks {
		assert.NotEqual(t, els, b)
	}
	_, ok := entry.Terminator().(*ir.Ret)
	assert.True(t, ok)
}

func TestMergeBlocksFoldsSingleSuccessorSinglePredecessor(t *testing.T) {
	ctx := ir.NewContext()
	mod := ir.NewModule("m")
	fn := ir.NewFunction(mod, "f", ctx.Func(ctx.I32()), ir.External)
	mod.AddFunction(fn)

	entry := fn.NewBlock("entry")
	next := fn.NewBlock("next")

	bd := ir.NewBuilder(ctx)
	bd.SetInsertPointEnd(entry)
	bd.CreateBr(next)
	bd.SetInsertPointEnd(next)
	v := bd.CreateBinOp(ctx.I32(), ir.Add, ir.NewConstantInt(ctx.I32(), 1), ir.NewConstantInt(ctx.I32(), 1))
	bd.CreateRet(v)

	require.True(t, SimplifyCFG(fn))
	require.Len(t, fn.Blocks, 1)
	ret, ok := fn.Blocks[0].Terminator().(*ir.Ret)
	require.True(t, ok)
	assert.Equal(t, ir.Value(v), ret.Value0())
}
