// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import "testing"

// diamond builds:
//
//	entry -> (then|els) -> join -> return
func diamond() *Func {
	f := NewFunc(Sig{})
	entry := f.NewBlock()
	then := f.NewBlock()
	els := f.NewBlock()
	join := f.NewBlock()
	f.Entry = entry

	cond := f.NewValue(ValueDef{Kind: DefOther, Type: I32})
	f.Blocks[entry].Insts = append(f.Blocks[entry].Insts, cond)
	f.Blocks[entry].Term = Terminator{
		Kind:    TermCondBr,
		Cond:    cond,
		Target0: Edge{Block: then},
		Target1: Edge{Block: els},
	}
	f.Blocks[then].Term = Terminator{Kind: TermBr, Target0: Edge{Block: join}}
	f.Blocks[els].Term = Terminator{Kind: TermBr, Target0: Edge{Block: join}}
	f.Blocks[join].Term = Terminator{Kind: TermReturn}
	return f
}

func TestAnalyzeDominatesDiamond(t *testing.T) {
	f := diamond()
	c := Analyze(f)

	if !c.Dominates(f.Entry, f.Entry) {
		t.Error("entry should dominate itself")
	}
	for id := range f.Blocks {
		if !c.Dominates(f.Entry, id) {
			t.Errorf("entry should dominate block %d", id)
		}
	}

	// then and els each dominate only themselves (not join, since join
	// has two predecessors). Find join: the block with two preds.
	var join BlockID
	for id := range f.Blocks {
		if len(c.preds[id]) == 2 {
			join = id
		}
	}
	for id := range f.Blocks {
		if id != f.Entry && id != join {
			if c.Dominates(id, join) {
				t.Errorf("block %d should not dominate join", id)
			}
		}
	}
}

func TestDominatesUnreachable(t *testing.T) {
	f := NewFunc(Sig{})
	entry := f.NewBlock()
	unreachable := f.NewBlock()
	f.Entry = entry
	f.Blocks[entry].Term = Terminator{Kind: TermReturn}

	c := Analyze(f)
	if !c.Dominates(unreachable, unreachable) {
		t.Error("an unreachable block should dominate itself")
	}
	if c.Dominates(entry, unreachable) {
		t.Error("entry should not be recorded as dominating an unreachable block")
	}
}

func TestReversePostorderLoop(t *testing.T) {
	// entry -> header -> body -> header (back edge)
	//                 -> exit
	f := NewFunc(Sig{})
	entry := f.NewBlock()
	header := f.NewBlock()
	body := f.NewBlock()
	exit := f.NewBlock()
	f.Entry = entry

	f.Blocks[entry].Term = Terminator{Kind: TermBr, Target0: Edge{Block: header}}
	cond := f.NewValue(ValueDef{Kind: DefOther, Type: I32})
	f.Blocks[header].Insts = append(f.Blocks[header].Insts, cond)
	f.Blocks[header].Term = Terminator{
		Kind:    TermCondBr,
		Cond:    cond,
		Target0: Edge{Block: body},
		Target1: Edge{Block: exit},
	}
	f.Blocks[body].Term = Terminator{Kind: TermBr, Target0: Edge{Block: header}}
	f.Blocks[exit].Term = Terminator{Kind: TermReturn}

	c := Analyze(f)
	if !c.Dominates(header, body) {
		t.Error("header should dominate body")
	}
	if !c.Dominates(header, exit) {
		t.Error("header should dominate exit")
	}
	if c.Dominates(body, header) {
		t.Error("body should not dominate header (it's a back edge, not a dominance relation)")
	}
}

func TestResolveAlias(t *testing.T) {
	f := NewFunc(Sig{})
	a := f.NewValue(ValueDef{Kind: DefOther, Type: I32})
	b := f.NewValue(ValueDef{Kind: DefAlias, Arg: a})
	c := f.NewValue(ValueDef{Kind: DefAlias, Arg: b})

	if got := f.ResolveAlias(c); got != a {
		t.Errorf("ResolveAlias(c) = %v, want %v", got, a)
	}
	if got := f.ResolveAlias(a); got != a {
		t.Errorf("ResolveAlias(a) = %v, want %v (non-alias resolves to itself)", got, a)
	}
}

func TestResolveAliasPanicsOnMissingDef(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic resolving an undefined value")
		}
	}()
	f := NewFunc(Sig{})
	f.ResolveAlias(Value(999))
}
