// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package weval

import "github.com/aclements/weval/abstractval"

// StagedPCKind selects among the three states a staged loop
// program-counter can be in.
type StagedPCKind int

const (
	StagedNone StagedPCKind = iota
	StagedSome
	StagedConflict
)

// StagedPC is the pending-pc field of a ProgPointState. Per
// SPEC_FULL.md §12 (grounded in original_source/src/eval.rs), a
// StagedSome does not always carry a known value: PC is nil both for
// "no staging" (Kind == StagedNone) and for "staged, but the value
// wasn't concrete yet" (Kind == StagedSome, PC == nil). Distinguish
// those two by Kind, not by PC being nil.
type StagedPC struct {
	Kind StagedPCKind
	PC   *uint64
}

func samePC(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Meet implements §3's StagedPC meet: None is the identity, equal
// Somes stay equal, anything else collapses to Conflict. This is the
// one place StagedPC::Conflict's information loss happens (see
// SPEC_FULL.md §9's second open question); it is intentional.
func (s StagedPC) Meet(t StagedPC) StagedPC {
	if s.Kind == StagedNone {
		return t
	}
	if t.Kind == StagedNone {
		return s
	}
	if s.Kind == StagedSome && t.Kind == StagedSome && samePC(s.PC, t.PC) {
		return s
	}
	return StagedPC{Kind: StagedConflict}
}

// ProgPointState is the flow-sensitive state carried into a block: the
// known values of globals, and the loop pc staged for the next
// back-edge.
type ProgPointState struct {
	Globals  map[int]abstractval.Value
	StagedPC StagedPC
}

// Global returns the abstract value of global g, defaulting to
// Runtime if it has never been recorded (§3: "missing key => runtime").
func (p ProgPointState) Global(g int) abstractval.Value {
	if v, ok := p.Globals[g]; ok {
		return v
	}
	return abstractval.RuntimeValue(0)
}

// WithGlobal returns a copy of p with global g set to v.
func (p ProgPointState) WithGlobal(g int, v abstractval.Value) ProgPointState {
	out := ProgPointState{StagedPC: p.StagedPC, Globals: make(map[int]abstractval.Value, len(p.Globals)+1)}
	for k, val := range p.Globals {
		out.Globals[k] = val
	}
	out.Globals[g] = v
	return out
}

// Meet intersects two ProgPointStates: the global maps intersect key
// by key (a key missing from either side defaults to Runtime and the
// meet of anything with Runtime is Runtime, so such keys can simply be
// dropped), and StagedPC meets per the rule above.
func (p ProgPointState) Meet(q ProgPointState) ProgPointState {
	out := ProgPointState{StagedPC: p.StagedPC.Meet(q.StagedPC), Globals: make(map[int]abstractval.Value)}
	for g, pv := range p.Globals {
		if qv, ok := q.Globals[g]; ok {
			m := pv.Meet(qv)
			if m.Kind != abstractval.Runtime {
				out.Globals[g] = m
			}
		}
	}
	return out
}

// Equal reports whether two states carry the same information, used
// to decide whether meeting into a stored block-entry state actually
// changed anything (and therefore whether to re-enqueue).
func (p ProgPointState) Equal(q ProgPointState) bool {
	if p.StagedPC != q.StagedPC {
		if !(p.StagedPC.Kind == q.StagedPC.Kind && samePC(p.StagedPC.PC, q.StagedPC.PC)) {
			return false
		}
	}
	if len(p.Globals) != len(q.Globals) {
		return false
	}
	for g, pv := range p.Globals {
		qv, ok := q.Globals[g]
		if !ok || pv != qv {
			return false
		}
	}
	return true
}
