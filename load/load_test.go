// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package load

import (
	"strings"
	"testing"

	"github.com/aclements/weval/abstractval"
	"github.com/aclements/weval/ir"
	"github.com/aclements/weval/module"
)

func testModule() *module.Module {
	m := module.New()
	id := m.AddImport("run", ir.Sig{Params: []ir.Type{ir.I32, ir.I64}})
	m.Exports["run"] = id
	return m
}

func TestParseDirectivesBasic(t *testing.T) {
	m := testModule()
	text := "# a comment\n\nrun 0x10 0x29 _\n"

	ds, err := ParseDirectives(strings.NewReader(text), m)
	if err != nil {
		t.Fatalf("ParseDirectives: %v", err)
	}
	if len(ds) != 1 {
		t.Fatalf("len(directives) = %d, want 1", len(ds))
	}
	d := ds[0]
	if d.Func != 0 {
		t.Errorf("Func = %d, want 0", d.Func)
	}
	if d.FuncIndexOutAddr != 0x10 {
		t.Errorf("FuncIndexOutAddr = %#x, want 0x10", d.FuncIndexOutAddr)
	}
	if len(d.ConstParams) != 2 {
		t.Fatalf("len(ConstParams) = %d, want 2", len(d.ConstParams))
	}
	if !d.ConstParams[0].Concrete || d.ConstParams[0].Val.I32 != 0x29 {
		t.Errorf("ConstParams[0] = %+v, want Concrete i32 0x29", d.ConstParams[0])
	}
	if d.ConstParams[1].Concrete {
		t.Errorf("ConstParams[1] = %+v, want runtime", d.ConstParams[1])
	}
}

func TestParseDirectivesConstMemoryTag(t *testing.T) {
	m := module.New()
	id := m.AddImport("f", ir.Sig{Params: []ir.Type{ir.I32}})
	m.Exports["f"] = id

	ds, err := ParseDirectives(strings.NewReader("f 0 0x1000c\n"), m)
	if err != nil {
		t.Fatalf("ParseDirectives: %v", err)
	}
	p := ds[0].ConstParams[0]
	if !p.Concrete || p.Val.I32 != 0x1000 {
		t.Fatalf("ConstParams[0] = %+v, want Concrete i32 0x1000", p)
	}
	if !p.Tags.Has(abstractval.ConstMemory) {
		t.Errorf("ConstParams[0].Tags = %v, want ConstMemory set", p.Tags)
	}
}

func TestParseDirectivesUnknownExport(t *testing.T) {
	m := module.New()
	if _, err := ParseDirectives(strings.NewReader("nope 0\n"), m); err == nil {
		t.Fatal("ParseDirectives with unknown export: want error, got nil")
	}
}

func TestParseDirectivesWrongArgCount(t *testing.T) {
	m := testModule()
	if _, err := ParseDirectives(strings.NewReader("run 0 1\n"), m); err == nil {
		t.Fatal("ParseDirectives with too few args: want error, got nil")
	}
}

func TestParseDirectivesFloatArgRejected(t *testing.T) {
	m := module.New()
	id := m.AddImport("f", ir.Sig{Params: []ir.Type{ir.F32}})
	m.Exports["f"] = id
	if _, err := ParseDirectives(strings.NewReader("f 0 1\n"), m); err == nil {
		t.Fatal("ParseDirectives with a concrete float arg: want error, got nil")
	}
}

func TestParseDirectivesBadOutAddr(t *testing.T) {
	m := testModule()
	if _, err := ParseDirectives(strings.NewReader("run notahex 1 2\n"), m); err == nil {
		t.Fatal("ParseDirectives with a malformed out-addr: want error, got nil")
	}
}
