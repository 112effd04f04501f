// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package module implements the §6 Module collaborator: an in-memory
// registry of function signatures and bodies, with imports recorded
// as signature-only entries (nil body).
package module

import "github.com/aclements/weval/ir"

// Function is one entry in a Module's function table. Body is nil for
// an import.
type Function struct {
	Sig  ir.Sig
	Body *ir.Func
	Name string
}

// Module is a mutable table of functions, built up by a loader and
// appended to by the evaluator as it adds specialized bodies.
type Module struct {
	Funcs   []Function
	Exports map[string]int
}

// New returns an empty module.
func New() *Module {
	return &Module{Exports: make(map[string]int)}
}

// AddImport registers an imported function (no body) and returns its
// index.
func (m *Module) AddImport(name string, sig ir.Sig) int {
	m.Funcs = append(m.Funcs, Function{Sig: sig, Name: name})
	return len(m.Funcs) - 1
}

// FuncBody returns id's body, or nil if it is an import.
func (m *Module) FuncBody(id int) *ir.Func {
	if id < 0 || id >= len(m.Funcs) {
		return nil
	}
	return m.Funcs[id].Body
}

// FuncSig returns id's signature.
func (m *Module) FuncSig(id int) ir.Sig {
	return m.Funcs[id].Sig
}

// AddFunc appends a new, already-complete function body and returns
// its index. This is how the evaluator installs a specialized copy.
func (m *Module) AddFunc(body *ir.Func) int {
	m.Funcs = append(m.Funcs, Function{Sig: body.Sig, Body: body})
	return len(m.Funcs) - 1
}

// FindExport returns the index of the function exported under name, or
// ok=false. Intrinsics are discovered this way (§6).
func (m *Module) FindExport(name string) (int, bool) {
	id, ok := m.Exports[name]
	return id, ok
}
