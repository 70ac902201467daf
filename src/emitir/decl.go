package emitir

import (
	"yatcc/src/asg"
	"yatcc/src/diag"
	"yatcc/src/ir"
)

// declareSignature registers d's name and type in the module before any
// body or initializer is lowered, so forward references across
// declarations in the same translation unit resolve (spec §4.2).
func (l *Lowering) declareSignature(d asg.Decl) {
	switch n := d.(type) {
	case *asg.FunctionDecl:
		if l.mod.GetFunction(n.Name) != nil {
			return
		}
		paramTypes := make([]ir.Type, len(n.Params))
		for i, p := range n.Params {
			paramTypes[i] = p.T
		}
		ft := l.mod.Ctx.Func(n.RetType, paramTypes...)
		fn := ir.NewFunction(l.mod, n.Name, ft, ir.External)
		l.mod.AddFunction(fn)
	case *asg.VarDecl:
		if _, ok := l.globals[n.Name]; ok {
			return
		}
		g := ir.NewGlobalVariable(l.mod, n.Name, n.T, ir.External, true)
		l.mod.AddGlobal(g)
		l.globals[n.Name] = g
	}
}

func (l *Lowering) lowerTopLevelDecl(d asg.Decl) {
	switch n := d.(type) {
	case *asg.FunctionDecl:
		l.lowerFunction(n)
	case *asg.VarDecl:
		l.lowerGlobalVarDecl(n)
	}
}

// lowerFunction lowers one function definition: entry-block parameter
// slots (spec §4.2.3), the body, and an implicit return if control can
// fall off the end.
func (l *Lowering) lowerFunction(n *asg.FunctionDecl) {
	fn := l.mod.GetFunction(n.Name)
	if n.Body == nil {
		return
	}
	l.fn = fn
	entry := fn.NewBlock("entry")
	l.bd.SetInsertPointEnd(entry)
	l.pushScope()

	for _, p := range n.Params {
		param := fn.AddParam(p.T, p.Name)
		addr := l.bd.CreateAlloca(p.T, p.Name+".addr")
		l.bd.CreateStore(param, addr)
		l.define(p.Name, addr)
	}

	l.lowerStmt(n.Body)

	if l.bd.Block().Terminator() == nil {
		if _, void := n.RetType.(*ir.VoidType); void {
			l.bd.CreateRet(nil)
		} else {
			l.bd.CreateRet(ir.NewConstantInt(n.RetType.(*ir.IntType), 0))
		}
	}

	l.popScope()
	l.fn = nil
}

func (l *Lowering) lowerLocalDecl(n *asg.VarDecl) {
	addr := l.allocaInEntry(n.T, n.Name+".addr")
	l.define(n.Name, addr)
	l.initStorage(addr, n.T, n.Name, n.Init)
}

// allocaInEntry places a new alloca right after the entry block's existing
// allocas, keeping them all at the top of the function as spec §4.2.3
// requires ("always in the current function's entry block") regardless of
// how deeply nested the declaring DeclStmt is.
func (l *Lowering) allocaInEntry(t ir.Type, name string) *ir.Alloca {
	entry := l.fn.Entry()
	var mark ir.Instruction
	for _, inst := range entry.Instrs {
		if _, ok := inst.(*ir.Alloca); !ok {
			mark = inst
			break
		}
	}
	l.bd.PushInsertPoint()
	if mark != nil {
		l.bd.SetInsertPointBefore(mark)
	} else {
		l.bd.SetInsertPointEnd(entry)
	}
	a := l.bd.CreateAlloca(t, name)
	l.bd.PopInsertPoint()
	return a
}

// initStorage emits the stores for addr's initializer, scalar or array.
func (l *Lowering) initStorage(addr ir.Value, t ir.Type, name string, init asg.Expr) {
	if init == nil {
		return
	}
	if at, ok := t.(*ir.ArrayType); ok {
		list, ok := init.(*asg.InitListExpr)
		if !ok {
			l.fatalDecl(diag.InputInvalid, name, "array initialized with a non-list expression")
		}
		l.initArray(addr, at, name, list)
		return
	}
	l.bd.CreateStore(l.lowerExpr(init), addr)
}

// initArray lowers a brace initializer element by element, zero-filling any
// remainder (spec §4.2.3's ImplicitInitExpr), and rejecting a list longer
// than the array's capacity. at may itself be multi-dimensional (an
// ArrayType of ArrayType); initArrayElems recurses one dimension at a time
// and flattens the whole thing to row-major order, one GEP per leaf scalar.
func (l *Lowering) initArray(addr ir.Value, at *ir.ArrayType, name string, list *asg.InitListExpr) {
	zero := ir.NewConstantInt(l.mod.Ctx.I32(), 0)
	l.initArrayElems(addr, at, at, name, list, []ir.Value{zero})
}

// initArrayElems lowers one dimension of a (possibly nested) array
// initializer. root is the outermost array type and stays fixed across the
// recursion since addr is always the original base address; cur is the
// dimension currently being walked, and prefix carries the GEP index
// accumulated by every enclosing dimension so a leaf scalar is always
// reached through a single GEP off the original alloca.
func (l *Lowering) initArrayElems(addr ir.Value, root, cur *ir.ArrayType, name string, list *asg.InitListExpr, prefix []ir.Value) {
	if int64(len(list.Elems)) > cur.Len {
		l.fatalDecl(diag.OutOfRangeInit, name, "initializer has %d elements, array holds %d", len(list.Elems), cur.Len)
	}
	i32 := l.mod.Ctx.I32()
	switch elemTy := cur.Elem.(type) {
	case *ir.ArrayType:
		for i := int64(0); i < cur.Len; i++ {
			idx := append(append([]ir.Value(nil), prefix...), ir.NewConstantInt(i32, i))
			sub := &asg.InitListExpr{T: elemTy}
			if i < int64(len(list.Elems)) {
				switch e := list.Elems[i].(type) {
				case *asg.InitListExpr:
					sub = e
				case *asg.ImplicitInitExpr:
					// zero-fill the whole row, sub already empty
				default:
					l.fatalDecl(diag.InputInvalid, name, "nested array initialized with a non-list expression")
				}
			}
			l.initArrayElems(addr, root, elemTy, name, sub, idx)
		}
	case *ir.IntType:
		for i := int64(0); i < cur.Len; i++ {
			idx := append(append([]ir.Value(nil), prefix...), ir.NewConstantInt(i32, i))
			elemPtr := l.bd.CreateGEP(root, addr, idx...)
			if i < int64(len(list.Elems)) {
				if _, implicit := list.Elems[i].(*asg.ImplicitInitExpr); !implicit {
					l.bd.CreateStore(l.lowerExpr(list.Elems[i]), elemPtr)
					continue
				}
			}
			l.bd.CreateStore(ir.NewConstantInt(elemTy, 0), elemPtr)
		}
	default:
		l.fatalDecl(diag.UnsupportedConstruct, name, "array element type %s is not a scalar integer or nested array", cur.Elem)
	}
}

// lowerGlobalVarDecl attaches a constant initializer directly, or — when
// the initializer is not foldable at lowering time, e.g. an array literal
// or an expression referencing another global — synthesizes a module
// constructor function that performs the equivalent stores before main
// runs (spec §4.2.3).
func (l *Lowering) lowerGlobalVarDecl(n *asg.VarDecl) {
	g := l.globals[n.Name].(*ir.GlobalVariable)
	if n.Init == nil {
		return
	}
	if c, ok := asConstant(n.Init); ok {
		g.Init = c
		return
	}

	ctorType := l.mod.Ctx.Func(l.mod.Ctx.Void())
	ctor := ir.NewFunction(l.mod, ".ctor."+n.Name, ctorType, ir.Private)
	l.mod.AddFunction(ctor)
	g.Ctor = ctor
	g.Priority = 0

	savedFn := l.fn
	l.fn = ctor
	entry := ctor.NewBlock("entry")
	l.bd.SetInsertPointEnd(entry)
	l.initStorage(g, g.ElemType(), n.Name, n.Init)
	l.bd.CreateRet(nil)
	l.fn = savedFn
}

// asConstant folds the handful of expression forms that can become a
// GlobalVariable.Init directly without a constructor: integer literals,
// and the implicit casts/negation a front-end wraps around one.
func asConstant(e asg.Expr) (ir.Value, bool) {
	switch n := e.(type) {
	case *asg.IntegerLiteral:
		return ir.NewConstantInt(n.T.(*ir.IntType), n.Value), true
	case *asg.ImplicitCastExpr:
		if n.Kind != asg.IntegralCast && n.Kind != asg.NoOp {
			return nil, false
		}
		c, ok := asConstant(n.Sub)
		if !ok {
			return nil, false
		}
		ci, ok := c.(*ir.ConstantInt)
		if !ok {
			return nil, false
		}
		return ir.NewConstantInt(n.T.(*ir.IntType), ci.Val), true
	case *asg.UnaryExpr:
		if n.Op != asg.UnaryNeg {
			return nil, false
		}
		c, ok := asConstant(n.Sub)
		if !ok {
			return nil, false
		}
		ci, ok := c.(*ir.ConstantInt)
		if !ok {
			return nil, false
		}
		return ir.NewConstantInt(n.T.(*ir.IntType), -ci.Val), true
	default:
		return nil, false
	}
}
