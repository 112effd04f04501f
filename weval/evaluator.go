// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package weval implements the context-sensitive partial evaluator:
// given a function body and a Directive of per-argument initial
// values, it produces a new, specialized function body with constants
// folded, dead branches eliminated, and interpreter loops duplicated
// per distinct staged program counter.
//
// The structure below is modeled on rtcheck's worklist-driven
// inter-procedural walker in main.go (walkFunction/walkBlock,
// PathState/PathStateSet, the funcInfo memoization cache): a single
// mutable state struct threaded through recursive-looking but
// iterative traversal, with an explicit worklist and dedup set rather
// than true recursion, so that back-edges in the input graph don't
// turn into Go call-stack recursion.
package weval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aclements/weval/ctxtree"
	"github.com/aclements/weval/ir"
)

// blockKey identifies one (context, original block) pair, the unit
// the worklist and block_deps operate over.
type blockKey struct {
	Ctx   ctxtree.ID
	Block ir.BlockID
}

// Evaluator is the transient state of one function specialization run.
// It is not reused across functions.
type Evaluator struct {
	logger *slog.Logger

	orig *ir.Func
	cfg  *ir.CFGInfo

	intrinsics Intrinsics
	image      Image
	mainHeap   int

	newBody *ir.Func

	contexts *ctxtree.Tree
	state    *FunctionState

	// blockMap records, for every (ctx, orig) pair that has been
	// materialized, which new block it was emitted into.
	blockMap map[blockKey]ir.BlockID

	// blockDeps maps a producer (ctx, block) to the set of consumer
	// (ctx, block) pairs that read a value defined in it, so def_value
	// can re-enqueue them when a producer's abstract value changes.
	blockDeps map[blockKey]map[blockKey]bool

	queue    []blockKey
	queueSet map[blockKey]bool

	headers map[ir.BlockID]bool

	// entryKey and entryPrefix record the folded constants synthesized
	// for concrete directive parameters (§4.2): these values are
	// created once, up front, rather than by evalBlockBody walking an
	// original instruction, so run's per-visit Insts reset (which
	// otherwise only ever gets refilled by walking orig's Insts) must
	// be told to re-seed them on every visit to the entry block.
	entryKey    blockKey
	entryPrefix []ir.Value
}

func (l *Evaluator) log() *slog.Logger {
	if l.logger != nil {
		return l.logger
	}
	return slog.Default()
}

// specialize runs one function's specialization to fixpoint and
// returns the new body. It implements §4.2.
func specialize(logger *slog.Logger, orig *ir.Func, intrinsics Intrinsics, image Image, mainHeap int, params []ParamInit) (*ir.Func, error) {
	ev := &Evaluator{
		logger:     logger,
		orig:       orig,
		cfg:        ir.Analyze(orig),
		intrinsics: intrinsics,
		image:      image,
		mainHeap:   mainHeap,
		newBody:    ir.NewFunc(orig.Sig),
		contexts:   ctxtree.New(),
		state:      newFunctionState(),
		blockMap:   make(map[blockKey]ir.BlockID),
		blockDeps:  make(map[blockKey]map[blockKey]bool),
		queueSet:   make(map[blockKey]bool),
	}
	ev.computeHeaders()

	root := ctxtree.Root
	newEntry := ev.newBody.NewBlock()
	ev.newBody.Entry = newEntry

	entryBlock := orig.Blocks[orig.Entry]
	flow := ProgPointState{}

	cs := ev.state.ctx(root)
	newBlock := ev.newBody.Blocks[newEntry]
	if len(params) != len(entryBlock.Params) {
		return nil, fmt.Errorf("weval: directive supplies %d params, function takes %d", len(params), len(entryBlock.Params))
	}
	for i, p := range entryBlock.Params {
		abs := params[i].toAbstract()
		var newVal ir.Value
		if params[i].Concrete {
			newVal = constOperator(ev.newBody, params[i].Val)
			ev.entryPrefix = append(ev.entryPrefix, newVal)
		} else {
			newVal = ev.newBody.NewValue(ir.ValueDef{Kind: ir.DefOther, Type: p.Type})
			newBlock.Params = append(newBlock.Params, ir.Param{Type: p.Type, Value: newVal})
		}
		cs.values[p.Value] = ssaEntry{New: newVal, Abs: abs}
	}
	cs.blockEntry[orig.Entry] = flow

	ev.entryKey = blockKey{Ctx: root, Block: orig.Entry}
	ev.enqueue(ev.entryKey, newEntry)
	ev.run()

	return ev.newBody, nil
}

// enqueue records that (key) materializes to block new and pushes it
// onto the worklist if not already queued.
func (ev *Evaluator) enqueue(key blockKey, new ir.BlockID) {
	ev.blockMap[key] = new
	if !ev.queueSet[key] {
		ev.queueSet[key] = true
		ev.queue = append(ev.queue, key)
	}
}

// requeue pushes an already-materialized (ctx, block) pair back onto
// the worklist, used by def_value and target retargeting when a
// stored entry state changes.
func (ev *Evaluator) requeue(key blockKey) {
	if _, ok := ev.blockMap[key]; !ok {
		return
	}
	if !ev.queueSet[key] {
		ev.queueSet[key] = true
		ev.queue = append(ev.queue, key)
	}
}

// run drains the worklist, per §4.4.
func (ev *Evaluator) run() {
	for len(ev.queue) > 0 {
		key := ev.queue[0]
		ev.queue = ev.queue[1:]
		delete(ev.queueSet, key)

		newID := ev.blockMap[key]
		newBlock := ev.newBody.Blocks[newID]
		newBlock.Insts = newBlock.Insts[:0] // re-evaluation overwrites prior emission
		if key == ev.entryKey {
			newBlock.Insts = append(newBlock.Insts, ev.entryPrefix...)
		}

		flow := ev.state.ctx(key.Ctx).blockEntry[key.Block]
		pp := &pointState{ctx: key.Ctx, origBlock: key.Block, newBlock: newID, flow: flow}

		ev.log().Log(context.Background(), LevelTrace, "visiting block",
			"ctx", int(key.Ctx), "orig_block", int(key.Block), "new_block", int(newID))

		ev.evalBlockBody(pp)
		ev.evalTerminator(pp)

		// The terminator may have mutated pp.flow (staged_pc
		// consumption); it is not written back anywhere because
		// flow only flows forward along edges, never back into
		// this block's own entry.
	}
}

// pointState is the per-visit scratch the block-body and terminator
// evaluation functions thread through; it is not retained once the
// worklist item finishes.
type pointState struct {
	ctx       ctxtree.ID
	origBlock ir.BlockID
	newBlock  ir.BlockID
	flow      ProgPointState
}

func (ev *Evaluator) computeHeaders() {
	ev.headers = make(map[ir.BlockID]bool)
	for id, b := range ev.orig.Blocks {
		for _, v := range b.Insts {
			def := ev.orig.Defs[v]
			if def.Kind == ir.DefOperator && def.Op == ir.OpCall && ev.intrinsics.LoopHeader.matches(def.FuncIndex) {
				ev.headers[id] = true
			}
		}
	}
}
