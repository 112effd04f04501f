// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package module

import (
	"testing"

	"github.com/aclements/weval/ir"
)

func TestAddImportAndFuncBody(t *testing.T) {
	m := New()
	id := m.AddImport("env.foo", ir.Sig{Params: []ir.Type{ir.I32}})
	if got := m.FuncBody(id); got != nil {
		t.Errorf("FuncBody(import) = %v, want nil", got)
	}
	if got := m.FuncSig(id); len(got.Params) != 1 || got.Params[0] != ir.I32 {
		t.Errorf("FuncSig(import) = %+v, want one I32 param", got)
	}
}

func TestAddFunc(t *testing.T) {
	m := New()
	body := ir.NewFunc(ir.Sig{Results: []ir.Type{ir.I32}})
	id := m.AddFunc(body)
	if got := m.FuncBody(id); got != body {
		t.Errorf("FuncBody(added) = %v, want %v", got, body)
	}
}

func TestFuncBodyOutOfRange(t *testing.T) {
	m := New()
	if got := m.FuncBody(-1); got != nil {
		t.Errorf("FuncBody(-1) = %v, want nil", got)
	}
	if got := m.FuncBody(0); got != nil {
		t.Errorf("FuncBody(0) on empty module = %v, want nil", got)
	}
}

func TestFindExport(t *testing.T) {
	m := New()
	id := m.AddImport("weval.assume_const_memory", ir.Sig{})
	m.Exports["weval.assume_const_memory"] = id

	got, ok := m.FindExport("weval.assume_const_memory")
	if !ok || got != id {
		t.Errorf("FindExport = %v, %v, want %v, true", got, ok, id)
	}
	if _, ok := m.FindExport("nope"); ok {
		t.Error("FindExport should report false for an unexported name")
	}
}
