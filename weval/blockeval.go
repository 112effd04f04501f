// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package weval

import (
	"context"

	"github.com/aclements/weval/abstractval"
	"github.com/aclements/weval/ctxtree"
	"github.com/aclements/weval/ir"
)

// useValue implements §4.5: resolve an SSA operand in the current
// context, walking up through ancestor contexts until an entry is
// found, and record a producer->consumer dependency along the way.
func (ev *Evaluator) useValue(pp *pointState, v ir.Value) (ir.Value, abstractval.Value) {
	v = ev.orig.ResolveAlias(v)

	lookupCtx := pp.ctx
	for {
		cs := ev.state.contexts[lookupCtx]
		if cs != nil {
			if e, ok := cs.values[v]; ok {
				ev.recordDep(lookupCtx, v, pp)
				return e.New, e.Abs
			}
		}
		if ev.contexts.IsRoot(lookupCtx) {
			// Fatal per §7: traversing to the root context
			// without finding a definition is a broken
			// invariant, not a user error.
			panic("weval: use of undefined value reached root context")
		}
		lookupCtx = ev.contexts.Parent(lookupCtx)
	}
}

// recordDep records that the consumer block pp depends on the original
// block that defines v, under lookupCtx. Per SPEC_FULL §9's first open
// question, this is intentionally an over-approximation: a stale entry
// left behind after control stops flowing through the consumer is
// safe, just wasteful.
func (ev *Evaluator) recordDep(producerCtx ctxtree.ID, v ir.Value, consumer *pointState) {
	defBlock := consumer.origBlock
	for id, b := range ev.orig.Blocks {
		for _, p := range b.Params {
			if p.Value == v {
				defBlock = id
			}
		}
		for _, iv := range b.Insts {
			if iv == v {
				defBlock = id
			}
		}
	}
	producer := blockKey{Ctx: producerCtx, Block: defBlock}
	consumerKey := blockKey{Ctx: consumer.ctx, Block: consumer.origBlock}
	if producer == consumerKey {
		return
	}
	set := ev.blockDeps[producer]
	if set == nil {
		set = make(map[blockKey]bool)
		ev.blockDeps[producer] = set
	}
	set[consumerKey] = true
}

// defValue implements §4.6: store or meet (new, abs) into the current
// context's SSA map for orig, and if the meet strictly lowered the
// abstract value, re-enqueue every recorded consumer.
func (ev *Evaluator) defValue(pp *pointState, orig ir.Value, newVal ir.Value, abs abstractval.Value) {
	cs := ev.state.ctx(pp.ctx)
	prior, had := cs.values[orig]
	merged := abs
	if had {
		merged = prior.Abs.Meet(abs)
	}
	changed := !had || merged != prior.Abs
	cs.values[orig] = ssaEntry{New: newVal, Abs: merged}

	if !changed {
		return
	}
	producer := blockKey{Ctx: pp.ctx, Block: pp.origBlock}
	for consumer := range ev.blockDeps[producer] {
		ev.requeue(consumer)
	}
}

// evalBlockBody implements §4.7: walk the original block's
// instructions, resolving operands, folding where possible, and
// emitting a residual instruction otherwise.
func (ev *Evaluator) evalBlockBody(pp *pointState) {
	origBlock := ev.orig.Blocks[pp.origBlock]
	newBlock := ev.newBody.Blocks[pp.newBlock]

	for _, v := range origBlock.Insts {
		def := ev.orig.Defs[v]
		switch def.Kind {
		case ir.DefAlias:
			// Not emitted; resolved on use.
			continue

		case ir.DefPickOutput:
			argNew, _ := ev.useValue(pp, def.Arg)
			newVal := ev.newBody.NewValue(ir.ValueDef{
				Kind:  ir.DefPickOutput,
				Arg:   argNew,
				Index: def.Index,
				Type:  def.Type,
			})
			newBlock.Insts = append(newBlock.Insts, newVal)
			ev.defValue(pp, v, newVal, abstractval.RuntimeValue(0))

		case ir.DefOperator:
			ev.evalOperator(pp, newBlock, v, def)

		default:
			// Fatal per §7: the core never walks into other
			// ValueDef kinds (block params etc.) from inside a
			// block body.
			panic("weval: unexpected ValueDef kind in block body")
		}
	}
}

func (ev *Evaluator) evalOperator(pp *pointState, newBlock *ir.Block, orig ir.Value, def *ir.ValueDef) {
	argsNew := make([]ir.Value, len(def.Args))
	argsAbs := make([]abstractval.Value, len(def.Args))
	for i, a := range def.Args {
		argsNew[i], argsAbs[i] = ev.useValue(pp, a)
	}

	if replacement, abs, handled := ev.abstractEvalIntrinsic(pp, def, argsNew, argsAbs); handled {
		ev.defValue(pp, orig, replacement, abs)
		return
	}

	abs := ev.abstractEval(pp, def, argsAbs)
	if abs.Kind == abstractval.Top {
		// Fatal per §7.
		panic("weval: abstract_eval produced Top as a settled result")
	}

	if abs.Kind == abstractval.Concrete && isConstFoldableType(def.Type) {
		newVal := constOperator(ev.newBody, abs.Val)
		newBlock.Insts = append(newBlock.Insts, newVal)
		ev.log().Log(context.Background(), LevelTrace, "folded operator to constant",
			"op", def.Op, "orig_value", int(orig))
		ev.defValue(pp, orig, newVal, abs)
		return
	}

	newVal := ev.newBody.NewValue(ir.ValueDef{
		Kind:     ir.DefOperator,
		Op:       def.Op,
		Args:     argsNew,
		ArgTypes: def.ArgTypes,
		Type:      def.Type,
		MemArg:    def.MemArg,
		FuncIndex: def.FuncIndex,
		Imm:       def.Imm,
		Bits:      def.Bits,
	})
	newBlock.Insts = append(newBlock.Insts, newVal)
	ev.defValue(pp, orig, newVal, abs)
}

func isConstFoldableType(t ir.Type) bool {
	switch t {
	case ir.I32, ir.I64, ir.F32, ir.F64:
		return true
	}
	return false
}

// constOperator implements the const_operator helper from
// original_source/src/eval.rs: one constant-instruction constructor
// per IR type (see SPEC_FULL.md §12).
func constOperator(f *ir.Func, v abstractval.WasmVal) ir.Value {
	var op ir.Operator
	switch v.Type {
	case ir.I32:
		op = ir.OpI32Const
	case ir.I64:
		op = ir.OpI64Const
	case ir.F32:
		op = ir.OpF32Const
	case ir.F64:
		op = ir.OpF64Const
	default:
		panic("weval: const_operator on non-numeric type")
	}
	bits := v.I64
	switch v.Type {
	case ir.I32:
		bits = uint64(v.I32)
	case ir.F32:
		bits = uint64(v.F32)
	case ir.F64:
		bits = v.F64
	}
	return f.NewValue(ir.ValueDef{Kind: ir.DefOperator, Op: op, Type: v.Type, Bits: bits})
}
