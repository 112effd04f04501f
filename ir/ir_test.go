// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import "testing"

func TestTypeString(t *testing.T) {
	cases := []struct {
		typ  Type
		want string
	}{
		{I32, "i32"},
		{I64, "i64"},
		{F32, "f32"},
		{F64, "f64"},
		{TypeInvalid, "invalid"},
		{Type(99), "invalid"},
	}
	for _, c := range cases {
		if got := c.typ.String(); got != c.want {
			t.Errorf("%v.String() = %q, want %q", c.typ, got, c.want)
		}
	}
}

func TestNewFuncIDsAreUnique(t *testing.T) {
	f := NewFunc(Sig{Params: []Type{I32}})
	b0 := f.NewBlock()
	b1 := f.NewBlock()
	if b0 == b1 {
		t.Fatalf("NewBlock returned duplicate ids: %v, %v", b0, b1)
	}

	v0 := f.NewValue(ValueDef{Kind: DefOther, Type: I32})
	v1 := f.NewValue(ValueDef{Kind: DefOther, Type: I32})
	if v0 == v1 {
		t.Fatalf("NewValue returned duplicate ids: %v, %v", v0, v1)
	}
	if len(f.Defs) != 2 {
		t.Fatalf("len(f.Defs) = %d, want 2", len(f.Defs))
	}
}

func TestNewValueStoresDef(t *testing.T) {
	f := NewFunc(Sig{})
	v := f.NewValue(ValueDef{Kind: DefOperator, Op: OpI32Add, Type: I32})
	def, ok := f.Defs[v]
	if !ok {
		t.Fatalf("NewValue did not record a def for %v", v)
	}
	if def.Op != OpI32Add || def.Type != I32 {
		t.Errorf("def = %+v, want Op=OpI32Add Type=I32", def)
	}
}
