package transform

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yatcc/src/ir"
)

// incomingSnapshot renders a phi's incoming list as (constant value, source
// block name) pairs, ignoring instruction identity, so two Mem2Reg runs
// over structurally identical but pointer-distinct diamonds can be diffed
// with cmp.Diff instead of asserting on *ir.Phi/*ir.Block pointers directly.
type incomingPair struct {
	Value int64
	Block string
}

func incomingSnapshot(phi *ir.Phi) []incomingPair {
	snap := make([]incomingPair, len(phi.Incoming))
	for i, in := range phi.Incoming {
		snap[i] = incomingPair{Value: in.Value.(*ir.ConstantInt).Val, Block: in.Block.Name()}
	}
	return snap
}

// ----- Mem2Reg -----

// buildDiamondWithAlloca builds:
//
//	entry: %x = alloca i32; store 10, %x; condbr %cond, then, else
//	then:  store 20, %x; br merge
//	else:  store 30, %x; br merge
//	merge: %v = load %x; ret %v
func buildDiamondWithAlloca(ctx *ir.Context, fn *ir.Function) (merge *ir.Block, x *ir.Alloca) {
	entry := fn.NewBlock("entry")
	then := fn.NewBlock("then")
	els := fn.NewBlock("else")
	merge = fn.NewBlock("merge")

	cond := fn.AddParam(ctx.I1(), "cond")

	bd := ir.NewBuilder(ctx)
	bd.SetInsertPointEnd(entry)
	x = bd.CreateAlloca(ctx.I32(), "x")
	bd.CreateStore(ir.NewConstantInt(ctx.I32(), 10), x)
	bd.CreateCondBr(cond, then, els)

	bd.SetInsertPointEnd(then)
	bd.CreateStore(ir.NewConstantInt(ctx.I32(), 20), x)
	bd.CreateBr(merge)

	bd.SetInsertPointEnd(els)
	bd.CreateStore(ir.NewConstantInt(ctx.I32(), 30), x)
	bd.CreateBr(merge)

	bd.SetInsertPointEnd(merge)
	v := bd.CreateLoad(ctx.I32(), x)
	bd.CreateRet(v)
	return
}

func TestMem2RegPromotesDiamond(t *testing.T) {
	ctx := ir.NewContext()
	mod := ir.NewModule("m")
	fn := ir.NewFunction(mod, "f", ctx.Func(ctx.I32(), ctx.I1()), ir.External)
	mod.AddFunction(fn)
	merge, x := buildDiamondWithAlloca(ctx, fn)

	changed := Mem2Reg(fn)
	require.True(t, changed)

	for _, inst := range fn.Entry().Instrs {
		_, isAlloca := inst.(*ir.Alloca)
		assert.False(t, isAlloca, "alloca should have been removed")
	}
	assert.Len(t, x.Uses(), 0)

	phis := merge.Phis()
	require.Len(t, phis, 1)
	assert.Len(t, phis[0].Incoming, 2)

	ret, ok := merge.Terminator().(*ir.Ret)
	require.True(t, ok)
	assert.Equal(t, ir.Value(phis[0]), ret.Value0())
}

// TestMem2RegPhiIncomingSnapshotStable checks the promoted phi's incoming
// list structurally (value, source-block-name pairs) rather than by
// instruction identity, so the same diamond shape rebuilt in an unrelated
// function still promotes to the identical incoming-list shape.
func TestMem2RegPhiIncomingSnapshotStable(t *testing.T) {
	ctx := ir.NewContext()
	mod := ir.NewModule("m")

	fnA := ir.NewFunction(mod, "a", ctx.Func(ctx.I32(), ctx.I1()), ir.External)
	mod.AddFunction(fnA)
	mergeA, _ := buildDiamondWithAlloca(ctx, fnA)
	require.True(t, Mem2Reg(fnA))
	snapA := incomingSnapshot(mergeA.Phis()[0])

	fnB := ir.NewFunction(mod, "b", ctx.Func(ctx.I32(), ctx.I1()), ir.External)
	mod.AddFunction(fnB)
	mergeB, _ := buildDiamondWithAlloca(ctx, fnB)
	require.True(t, Mem2Reg(fnB))
	snapB := incomingSnapshot(mergeB.Phis()[0])

	want := []incomingPair{{Value: 20, Block: "then"}, {Value: 30, Block: "else"}}
	if diff := cmp.Diff(want, snapA); diff != "" {
		t.Errorf("fnA phi incoming mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(snapA, snapB); diff != "" {
		t.Errorf("fnA and fnB phi incoming diverged (-a +b):\n%s", diff)
	}
}

func TestMem2RegSkipsEscapingAlloca(t *testing.T) {
	ctx := ir.NewContext()
	mod := ir.NewModule("m")
	fn := ir.NewFunction(mod, "f", ctx.Func(ctx.Void()), ir.External)
	mod.AddFunction(fn)
	entry := fn.NewBlock("entry")

	bd := ir.NewBuilder(ctx)
	bd.SetInsertPointEnd(entry)
	x := bd.CreateAlloca(ctx.I32(), "x")
	y := bd.CreateAlloca(ctx.Ptr(), "y")
	// storing x's address itself (not through a load/store of its scalar
	// value) makes x's address escape; it must not be promoted.
	bd.CreateStore(x, y)
	bd.CreateRet(nil)

	changed := Mem2Reg(fn)
	assert.False(t, changed)

	found := false
	for _, inst := range fn.Entry().Instrs {
		if inst == ir.Instruction(x) {
			found = true
		}
	}
	assert.True(t, found, "escaping alloca must survive mem2reg")
}

func TestMem2RegUndefForUninitializedPath(t *testing.T) {
	ctx := ir.NewContext()
	mod := ir.NewModule("m")
	fn := ir.NewFunction(mod, "f", ctx.Func(ctx.I32()), ir.External)
	mod.AddFunction(fn)
	entry := fn.NewBlock("entry")

	bd := ir.NewBuilder(ctx)
	bd.SetInsertPointEnd(entry)
	x := bd.CreateAlloca(ctx.I32(), "x")
	v := bd.CreateLoad(ctx.I32(), x)
	bd.CreateRet(v)

	changed := Mem2Reg(fn)
	require.True(t, changed)

	ret := fn.Entry().Terminator().(*ir.Ret)
	_, isUndef := ret.Value0().(*ir.Undef)
	assert.True(t, isUndef)
}
