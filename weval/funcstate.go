// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package weval

import (
	"github.com/aclements/weval/abstractval"
	"github.com/aclements/weval/ctxtree"
	"github.com/aclements/weval/ir"
)

// ssaEntry is what a context's value map records for one original SSA
// value: the value it was rewritten to in the new body, and the
// abstract value currently known for it.
type ssaEntry struct {
	New ir.Value
	Abs abstractval.Value
}

// contextState is the per-context slice of FunctionState: the map from
// original value to (specialized value, abstract value), and the map
// from original block to that block's current entry ProgPointState.
type contextState struct {
	values      map[ir.Value]ssaEntry
	blockEntry  map[ir.BlockID]ProgPointState
}

func newContextState() *contextState {
	return &contextState{
		values:     make(map[ir.Value]ssaEntry),
		blockEntry: make(map[ir.BlockID]ProgPointState),
	}
}

// FunctionState is the full per-context state for one specialization
// run: a contextState per context id that has been touched so far.
type FunctionState struct {
	contexts map[ctxtree.ID]*contextState
}

func newFunctionState() *FunctionState {
	return &FunctionState{contexts: make(map[ctxtree.ID]*contextState)}
}

func (fs *FunctionState) ctx(id ctxtree.ID) *contextState {
	c, ok := fs.contexts[id]
	if !ok {
		c = newContextState()
		fs.contexts[id] = c
	}
	return c
}
