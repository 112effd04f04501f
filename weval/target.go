// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package weval

import (
	"github.com/aclements/weval/abstractval"
	"github.com/aclements/weval/ctxtree"
	"github.com/aclements/weval/ir"
)

// evalTerminator implements §4.8: transcribe, or fold a conditional
// terminator into an unconditional Br when its condition is settled.
func (ev *Evaluator) evalTerminator(pp *pointState) {
	term := ev.orig.Blocks[pp.origBlock].Term
	newBlock := ev.newBody.Blocks[pp.newBlock]

	switch term.Kind {
	case ir.TermNone, ir.TermUnreachable:
		newBlock.Term = ir.Terminator{Kind: term.Kind}

	case ir.TermBr:
		ev.evalTarget(pp, newBlock, term.Target0)

	case ir.TermCondBr:
		_, cond := ev.useValue(pp, term.Cond)
		if truthy, ok := cond.IsConstTruthy(); ok {
			target := term.Target1
			if truthy {
				target = term.Target0
			}
			ev.log().Debug("folded conditional branch", "block", int(pp.origBlock), "taken", truthy)
			ev.evalTarget(pp, newBlock, target)
			return
		}
		condNew, _ := ev.useValue(pp, term.Cond)
		newBlock.Term.Kind = ir.TermCondBr
		newBlock.Term.Cond = condNew
		ev.evalTargetInto(pp, &newBlock.Term.Target0, term.Target0)
		ev.evalTargetInto(pp, &newBlock.Term.Target1, term.Target1)

	case ir.TermSelect:
		_, sel := ev.useValue(pp, term.Cond)
		if k, ok := sel.IsConstU32(); ok {
			target := term.Target0
			if int(k) < len(term.Targets) {
				target = term.Targets[k]
			}
			ev.evalTarget(pp, newBlock, target)
			return
		}
		selNew, _ := ev.useValue(pp, term.Cond)
		newBlock.Term.Kind = ir.TermSelect
		newBlock.Term.Cond = selNew
		ev.evalTargetInto(pp, &newBlock.Term.Target0, term.Target0)
		newBlock.Term.Targets = make([]ir.Edge, len(term.Targets))
		for i, t := range term.Targets {
			ev.evalTargetInto(pp, &newBlock.Term.Targets[i], t)
		}

	case ir.TermReturn:
		vals := make([]ir.Value, len(term.Values))
		for i, v := range term.Values {
			vals[i], _ = ev.useValue(pp, v)
		}
		newBlock.Term = ir.Terminator{Kind: ir.TermReturn, Values: vals}
	}
}

// evalTarget retargets a single edge and writes it as the new block's
// sole Br target.
func (ev *Evaluator) evalTarget(pp *pointState, newBlock *ir.Block, edge ir.Edge) {
	newBlock.Term.Kind = ir.TermBr
	ev.evalTargetInto(pp, &newBlock.Term.Target0, edge)
}

// evalTargetInto implements §4.9: choose the target context via the
// pop/push phases, materialize the target block if needed, and fill
// in out with the retargeted edge (parallel-move argument passing).
func (ev *Evaluator) evalTargetInto(pp *pointState, out *ir.Edge, edge ir.Edge) {
	targetCtx := ev.retarget(pp, edge.Block)

	key := blockKey{Ctx: targetCtx, Block: edge.Block}
	newID, exists := ev.blockMap[key]

	if !exists {
		newID = ev.newBody.NewBlock()
	}
	newTargetBlock := ev.newBody.Blocks[newID]

	// Parallel-move semantics (§4.9, §9): read all source abstract
	// values before writing any target block parameter.
	origParams := ev.orig.Blocks[edge.Block].Params
	argsNew := make([]ir.Value, len(edge.Args))
	argsAbs := make([]abstractval.Value, len(edge.Args))
	for i, a := range edge.Args {
		argsNew[i], argsAbs[i] = ev.useValue(pp, a)
	}

	cs := ev.state.ctx(targetCtx)
	if !exists {
		for i, p := range origParams {
			newParam := ev.newBody.NewValue(ir.ValueDef{Kind: ir.DefOther, Type: p.Type})
			newTargetBlock.Params = append(newTargetBlock.Params, ir.Param{Type: p.Type, Value: newParam})
			cs.values[p.Value] = ssaEntry{New: newParam, Abs: argsAbs[i]}
		}
		cs.blockEntry[edge.Block] = ev.targetFlow(pp, edge.Block, targetCtx)
		ev.enqueue(key, newID)
	} else {
		changed := false
		for i, p := range origParams {
			prior := cs.values[p.Value]
			merged := prior.Abs.Meet(argsAbs[i])
			if merged != prior.Abs {
				changed = true
			}
			cs.values[p.Value] = ssaEntry{New: prior.New, Abs: merged}
		}
		entryFlow := ev.targetFlow(pp, edge.Block, targetCtx)
		prior := cs.blockEntry[edge.Block]
		merged := prior.Meet(entryFlow)
		if !merged.Equal(prior) {
			cs.blockEntry[edge.Block] = merged
			changed = true
		}
		if changed {
			ev.requeue(key)
		}
	}

	out.Block = edge.Block
	out.Args = argsNew
}

// targetFlow is the ProgPointState that flows into (target, targetCtx)
// along this edge: pp.flow, with staged_pc cleared if this edge
// actually consumed it (see retarget).
func (ev *Evaluator) targetFlow(pp *pointState, target ir.BlockID, targetCtx ctxtree.ID) ProgPointState {
	flow := pp.flow
	if ev.headers[target] && pp.origBlock != target {
		// A fresh loop entry (push phase): staged_pc from outside
		// the loop has no meaning inside it.
		flow.StagedPC = StagedPC{}
	}
	return flow
}

// retarget implements §4.9's pop/push phases and returns the context
// the edge to target should materialize into.
func (ev *Evaluator) retarget(pp *pointState, target ir.BlockID) ctxtree.ID {
	ctx := pp.ctx

	// Pop phase.
	for {
		if ev.contexts.IsRoot(ctx) {
			break
		}
		elem := ev.contexts.Elem(ctx)
		if elem.Header == ev.orig.Entry {
			break
		}
		if !ev.cfg.Dominates(elem.Header, target) {
			// Pop to the parent context and stop: this is a
			// single-shot check, not a loop up the ancestor
			// chain (original_source/src/eval.rs's target_block
			// always breaks after one iteration).
			ctx = ev.contexts.Parent(ctx)
			break
		}
		if elem.Header == target {
			// Loop back-edge.
			switch pp.flow.StagedPC.Kind {
			case StagedNone:
				// No context change.
			case StagedConflict:
				pp.flow.StagedPC = StagedPC{}
			case StagedSome:
				parent := ev.contexts.Parent(ctx)
				var pcElem *uint64
				if pp.flow.StagedPC.PC == nil {
					pcElem = ctxtree.PCUnknown
				} else {
					v := *pp.flow.StagedPC.PC
					pcElem = &v
				}
				ctx = ev.contexts.Create(parent, ctxtree.Elem{PC: pcElem, Header: elem.Header})
				pp.flow.StagedPC = StagedPC{}
				ev.log().Debug("duplicating loop body for staged pc",
					"header", int(elem.Header), "new_ctx", int(ctx))
			}
		}
		break
	}

	// Push phase: entering a loop from outside (not a back-edge
	// revisit) gets a fresh child context.
	if ev.headers[target] && !ev.cfg.Dominates(target, pp.origBlock) {
		ctx = ev.contexts.Create(ctx, ctxtree.Elem{PC: nil, Header: target})
	}

	return ctx
}
