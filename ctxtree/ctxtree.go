// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ctxtree implements the interned context tree that records
// which loop-specialization path the evaluator is currently under.
// The interning scheme (a dense arena of nodes plus a (parent,
// element) -> id map) is the same shape as rtcheck's StackFrame
// interning in main.go (internedStackFrames, Extend, Intern,
// TrimCommonPrefix) and its StringSpace, generalized from "a call
// stack of *ssa.Call sites" to "a path of loop specialization
// decisions".
package ctxtree

import "github.com/aclements/weval/ir"

// Elem is one step in a context path: a loop header block and the
// staged program-counter value (if any) that selected this particular
// specialization of it. PC has three states represented with a
// pointer: nil means "no pc was requested for this context" (the
// child context pushed on loop entry, before any loop_pc32_update);
// a non-nil pointer to a present value means "specialized for this
// concrete pc"; see the PCUnknown sentinel for the third state.
type Elem struct {
	PC     *uint64
	Header ir.BlockID
}

// PCUnknown marks a context created because a loop_pc32_update call
// staged a pc request whose value was not concrete at the time. It is
// distinct from "no pc was requested" (nil) and from a concrete pc: a
// context can be created here once, and it is never reused by value
// (unlike concrete pcs, which are interned and reused whenever the
// same constant recurs). See original_source/src/eval.rs and
// SPEC_FULL.md §12.
var PCUnknown = new(uint64)

// ID identifies a node in the context tree. The zero ID is the root
// (the empty path).
type ID int

const Root ID = 0

type node struct {
	parent ID
	elem   Elem
}

// Tree is an arena of interned context nodes.
type Tree struct {
	nodes []node
	byKey map[key]ID
}

type key struct {
	parent ID
	header ir.BlockID
	pcKind int // 0 = nil, 1 = unknown, 2 = concrete
	pcVal  uint64
}

// New returns a tree containing only the root context.
func New() *Tree {
	return &Tree{
		nodes: []node{{parent: Root, elem: Elem{}}},
		byKey: make(map[key]ID),
	}
}

func elemKey(parent ID, e Elem) key {
	k := key{parent: parent, header: e.Header}
	switch {
	case e.PC == nil:
		k.pcKind = 0
	case e.PC == PCUnknown:
		k.pcKind = 1
	default:
		k.pcKind = 2
		k.pcVal = *e.PC
	}
	return k
}

// Create returns the id of the context with the given parent and
// element, interning it if it has not been seen before. Equal-parent
// + equal-element contexts always return the same id.
func (t *Tree) Create(parent ID, e Elem) ID {
	k := elemKey(parent, e)
	if id, ok := t.byKey[k]; ok {
		return id
	}
	id := ID(len(t.nodes))
	t.nodes = append(t.nodes, node{parent: parent, elem: e})
	t.byKey[k] = id
	return id
}

// Parent returns id's parent. The root is its own parent.
func (t *Tree) Parent(id ID) ID {
	if id == Root {
		return Root
	}
	return t.nodes[id].parent
}

// Elem returns id's own element. The root has the zero Elem and
// callers must not rely on its Header being meaningful.
func (t *Tree) Elem(id ID) Elem {
	return t.nodes[id].elem
}

// IsRoot reports whether id is the root context.
func (t *Tree) IsRoot(id ID) bool { return id == Root }
