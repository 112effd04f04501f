// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package weval

import "github.com/aclements/weval/ir"

// Module is the §6 Module collaborator: a registry of functions the
// evaluator can read bodies from and append specialized copies to.
// Concrete implementations live in package module; the evaluator only
// ever sees this interface, so it never cares how functions are
// stored.
type Module interface {
	// FuncBody returns the function's body, or nil if it is an
	// import (no body to specialize).
	FuncBody(id int) *ir.Func
	// FuncSig returns the function's signature.
	FuncSig(id int) ir.Sig
	// AddFunc appends a new function and returns its index.
	AddFunc(body *ir.Func) int
}

// Image is the §6 Image collaborator: the read-only memory image a
// specialization run may fold constant loads from, plus the one
// allowed write (recording where each specialized function landed).
type Image interface {
	MainHeap() int
	// ReadSize reads size bytes (1, 2, 4, or 8) little-endian at
	// addr in the given memory, returning ok=false if addr falls
	// outside a mapped constant region.
	ReadSize(memory int, addr uint32, size int) (val uint64, ok bool)
	WriteU32(memory int, addr uint32, value uint32)
}

// Intrinsics is the §6 Intrinsics collaborator: the function indices
// (if present in this module) of the three calls the transfer table
// treats specially. A zero value (Present == false) means the module
// does not import that intrinsic, so calls to it are never produced
// and the corresponding index is never matched.
type Intrinsics struct {
	AssumeConstMemory IntrinsicFunc
	LoopPC32Update    IntrinsicFunc
	LoopHeader        IntrinsicFunc
}

// IntrinsicFunc names one optional intrinsic's function index.
type IntrinsicFunc struct {
	Present bool
	Index   int
}

func (f IntrinsicFunc) matches(callee int) bool {
	return f.Present && f.Index == callee
}
