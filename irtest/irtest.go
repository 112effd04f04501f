// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package irtest is a small DSL for building ir.Func values in tests,
// adapted from the Fun/Bloc/Valu/Goto/If/Exit builders in the Go
// compiler's cmd/internal/ssa func_test.go. Unlike that DSL's
// Phi-via-predecessor-order values, this IR passes values across
// edges as explicit block-parameter arguments, so Goto/If take the
// argument names for the block they target.
package irtest

import (
	"fmt"

	"github.com/aclements/weval/ir"
)

// Fun builds a Func from a signature and a set of named blocks, one of
// which (entryName) becomes the entry. Block and value names must be
// unique across the whole Func.
//
//	f := Fun(ir.Sig{Params: []ir.Type{ir.I32}}, "entry",
//	    Bloc("entry",
//	        Param("n", ir.I32),
//	        Valu("c", ir.OpI32Const, ir.I32).WithBits(1),
//	        Goto(Edge("exit", "n"))),
//	    Bloc("exit",
//	        Param("r", ir.I32),
//	        Return("r")))
func Fun(sig ir.Sig, entryName string, blocs ...bloc) *Built {
	f := ir.NewFunc(sig)
	blocks := make(map[string]ir.BlockID)
	values := make(map[string]ir.Value)

	for _, b := range blocs {
		id := f.NewBlock()
		blocks[b.name] = id
	}
	entry, ok := blocks[entryName]
	if !ok {
		panic(fmt.Sprintf("irtest: no block named %q", entryName))
	}
	f.Entry = entry

	// First pass: allocate every param and instruction's Value id, so
	// forward references (a value used by a later edge, a block used
	// before its own definition) resolve.
	for _, b := range blocs {
		blk := f.Blocks[blocks[b.name]]
		for _, p := range b.params {
			v := f.NewValue(ir.ValueDef{Kind: ir.DefOther, Type: p.typ})
			blk.Params = append(blk.Params, ir.Param{Type: p.typ, Value: v})
			values[p.name] = v
		}
		for _, val := range b.valus {
			values[val.name] = f.NewValue(ir.ValueDef{})
		}
	}

	// Second pass: fill in each instruction's real definition (now
	// that args can resolve) and each block's terminator.
	for _, b := range blocs {
		blk := f.Blocks[blocks[b.name]]
		for _, val := range b.valus {
			args := make([]ir.Value, len(val.args))
			argTypes := make([]ir.Type, len(val.args))
			for i, a := range val.args {
				av, ok := values[a]
				if !ok {
					panic(fmt.Sprintf("irtest: value %q used by %q is undefined", a, val.name))
				}
				args[i] = av
				argTypes[i] = f.Defs[av].Type
			}
			id := values[val.name]
			*f.Defs[id] = ir.ValueDef{
				Kind:      ir.DefOperator,
				Type:      val.typ,
				Op:        val.op,
				Args:      args,
				ArgTypes:  argTypes,
				MemArg:    val.memArg,
				FuncIndex: val.funcIndex,
				Imm:       val.imm,
				Bits:      val.bits,
			}
			blk.Insts = append(blk.Insts, id)
		}
		blk.Term = buildTerm(b.term, blocks, values)
	}

	return &Built{Func: f, Blocks: blocks, Values: values}
}

// Built is the Func Fun produced, plus the name indexes needed to
// assert against specific blocks and values afterward.
type Built struct {
	Func   *ir.Func
	Blocks map[string]ir.BlockID
	Values map[string]ir.Value
}

func buildTerm(t term, blocks map[string]ir.BlockID, values map[string]ir.Value) ir.Terminator {
	switch t.kind {
	case ir.TermBr:
		return ir.Terminator{Kind: ir.TermBr, Target0: edge(blocks, values, t.targets[0])}
	case ir.TermCondBr:
		return ir.Terminator{
			Kind:    ir.TermCondBr,
			Cond:    values[t.cond],
			Target0: edge(blocks, values, t.targets[0]),
			Target1: edge(blocks, values, t.targets[1]),
		}
	case ir.TermSelect:
		targets := make([]ir.Edge, len(t.targets))
		for i, e := range t.targets {
			targets[i] = edge(blocks, values, e)
		}
		return ir.Terminator{Kind: ir.TermSelect, Cond: values[t.cond], Target0: targets[0], Targets: targets}
	case ir.TermReturn:
		vals := make([]ir.Value, len(t.retArgs))
		for i, a := range t.retArgs {
			vals[i] = values[a]
		}
		return ir.Terminator{Kind: ir.TermReturn, Values: vals}
	case ir.TermUnreachable:
		return ir.Terminator{Kind: ir.TermUnreachable}
	}
	return ir.Terminator{Kind: ir.TermNone}
}

func edge(blocks map[string]ir.BlockID, values map[string]ir.Value, e namedEdge) ir.Edge {
	id, ok := blocks[e.block]
	if !ok {
		panic(fmt.Sprintf("irtest: no block named %q", e.block))
	}
	args := make([]ir.Value, len(e.args))
	for i, a := range e.args {
		v, ok := values[a]
		if !ok {
			panic(fmt.Sprintf("irtest: edge argument %q is undefined", a))
		}
		args[i] = v
	}
	return ir.Edge{Block: id, Args: args}
}

// bloc defines one named block: its parameters, its instructions (via
// Valu), and exactly one terminator (via Goto, If, Select, Return, or
// Unreachable).
type bloc struct {
	name   string
	params []paramSpec
	valus  []valuSpec
	term   term
}

// Bloc defines a block for Fun. entries should consist of calls to
// Param and Valu, plus exactly one call to Goto, If, Select, Return,
// or Unreachable.
func Bloc(name string, entries ...interface{}) bloc {
	b := bloc{name: name}
	seenTerm := false
	for _, e := range entries {
		switch v := e.(type) {
		case paramSpec:
			b.params = append(b.params, v)
		case valuSpec:
			b.valus = append(b.valus, v)
		case term:
			if seenTerm {
				panic(fmt.Sprintf("irtest: block %q has more than one terminator", name))
			}
			b.term = v
			seenTerm = true
		}
	}
	if !seenTerm {
		panic(fmt.Sprintf("irtest: block %q has no terminator", name))
	}
	return b
}

type paramSpec struct {
	name string
	typ  ir.Type
}

// Param declares a block parameter, bound to the name used to
// reference it from Valu args and edge arg lists.
func Param(name string, t ir.Type) paramSpec { return paramSpec{name, t} }

type valuSpec struct {
	name      string
	op        ir.Operator
	typ       ir.Type
	args      []string
	memArg    ir.MemArg
	funcIndex int
	imm       int
	bits      uint64
}

// Valu defines an instruction. Extra per-operator fields (a load's
// MemArg, a call's FuncIndex, a const's Bits, a global access's Imm)
// are set afterward via the With* helpers:
//
//	Valu("x", ir.OpI32Const, ir.I32).WithBits(7)
func Valu(name string, op ir.Operator, t ir.Type, args ...string) valuSpec {
	return valuSpec{name: name, op: op, typ: t, args: args}
}

func (v valuSpec) WithBits(bits uint64) valuSpec     { v.bits = bits; return v }
func (v valuSpec) WithMemArg(m ir.MemArg) valuSpec   { v.memArg = m; return v }
func (v valuSpec) WithFuncIndex(idx int) valuSpec    { v.funcIndex = idx; return v }
func (v valuSpec) WithImm(imm int) valuSpec          { v.imm = imm; return v }

type namedEdge struct {
	block string
	args  []string
}

// Edge names a target block and the values passed to its parameters.
func Edge(block string, args ...string) namedEdge { return namedEdge{block, args} }

type term struct {
	kind    ir.TermKind
	cond    string
	targets []namedEdge
	retArgs []string
}

// Goto is an unconditional branch.
func Goto(e namedEdge) term { return term{kind: ir.TermBr, targets: []namedEdge{e}} }

// If is a conditional branch to then when cond is truthy, else to els.
func If(cond string, then, els namedEdge) term {
	return term{kind: ir.TermCondBr, cond: cond, targets: []namedEdge{then, els}}
}

// Select dispatches on cond's concrete value to one of targets, or
// targets[0] if not in range.
func Select(cond string, targets ...namedEdge) term {
	return term{kind: ir.TermSelect, cond: cond, targets: targets}
}

// Return exits the function with the given values.
func Return(args ...string) term { return term{kind: ir.TermReturn, retArgs: args} }

// Unreachable marks a block that is never meant to be reached.
func Unreachable() term { return term{kind: ir.TermUnreachable} }
