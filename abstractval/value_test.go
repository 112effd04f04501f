// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package abstractval

import "testing"

func TestMeetTopIsIdentity(t *testing.T) {
	c := ConcreteValue(I32Val(7), ConstMemory)
	if got := TopValue.Meet(c); got != c {
		t.Errorf("Top.Meet(c) = %+v, want %+v", got, c)
	}
	if got := c.Meet(TopValue); got != c {
		t.Errorf("c.Meet(Top) = %+v, want %+v", got, c)
	}
}

func TestMeetRuntimeAbsorbs(t *testing.T) {
	c := ConcreteValue(I32Val(7), 0)
	r := RuntimeValue(0)
	if got := c.Meet(r); got.Kind != Runtime {
		t.Errorf("Concrete.Meet(Runtime).Kind = %v, want Runtime", got.Kind)
	}
	if got := r.Meet(c); got.Kind != Runtime {
		t.Errorf("Runtime.Meet(Concrete).Kind = %v, want Runtime", got.Kind)
	}
}

func TestMeetEqualConcretesStayConcrete(t *testing.T) {
	a := ConcreteValue(I32Val(7), ConstMemory)
	b := ConcreteValue(I32Val(7), 0)
	got := a.Meet(b)
	if got.Kind != Concrete {
		t.Fatalf("Meet of equal concretes = %v, want Concrete", got.Kind)
	}
	if v, ok := got.IsConstU32(); !ok || v != 7 {
		t.Errorf("Meet result = %v, ok=%v, want 7, true", v, ok)
	}
	// Tags meet (AND), so the differing ConstMemory bit drops out.
	if got.Tags.Has(ConstMemory) {
		t.Error("meet of tags should intersect, not union")
	}
}

func TestMeetUnequalConcretesWidenToRuntime(t *testing.T) {
	a := ConcreteValue(I32Val(7), 0)
	b := ConcreteValue(I32Val(8), 0)
	if got := a.Meet(b); got.Kind != Runtime {
		t.Errorf("Meet of unequal concretes = %v, want Runtime", got.Kind)
	}
}

func TestIsConstU32(t *testing.T) {
	if _, ok := TopValue.IsConstU32(); ok {
		t.Error("Top should not be a const u32")
	}
	if _, ok := RuntimeValue(0).IsConstU32(); ok {
		t.Error("Runtime should not be a const u32")
	}
	if _, ok := ConcreteValue(I64Val(1), 0).IsConstU32(); ok {
		t.Error("a concrete i64 should not be a const u32")
	}
	v, ok := ConcreteValue(I32Val(42), 0).IsConstU32()
	if !ok || v != 42 {
		t.Errorf("IsConstU32() = %v, %v, want 42, true", v, ok)
	}
}

func TestIsConstTruthy(t *testing.T) {
	cases := []struct {
		v          Value
		wantTruthy bool
		wantOK     bool
	}{
		{ConcreteValue(I32Val(0), 0), false, true},
		{ConcreteValue(I32Val(1), 0), true, true},
		{ConcreteValue(I64Val(0), 0), false, true},
		{ConcreteValue(I64Val(5), 0), true, true},
		{RuntimeValue(0), false, false},
		{TopValue, false, false},
	}
	for _, c := range cases {
		truthy, ok := c.v.IsConstTruthy()
		if truthy != c.wantTruthy || ok != c.wantOK {
			t.Errorf("%+v.IsConstTruthy() = %v, %v, want %v, %v", c.v, truthy, ok, c.wantTruthy, c.wantOK)
		}
	}
}

func TestBelow(t *testing.T) {
	c7 := ConcreteValue(I32Val(7), 0)
	c8 := ConcreteValue(I32Val(8), 0)
	r := RuntimeValue(0)

	if !TopValue.Below(c7) {
		t.Error("Top should be below any Concrete")
	}
	if !TopValue.Below(r) {
		t.Error("Top should be below Runtime")
	}
	if !c7.Below(r) {
		t.Error("Concrete should be below Runtime")
	}
	if !c7.Below(c7) {
		t.Error("a value should be below itself")
	}
	if c7.Below(c8) {
		t.Error("distinct concretes should not be Below one another")
	}
	if r.Below(c7) {
		t.Error("Runtime should never be below a Concrete")
	}
}

func TestTagsMeet(t *testing.T) {
	if got := (ConstMemory).Meet(ConstMemory); got != ConstMemory {
		t.Errorf("ConstMemory.Meet(ConstMemory) = %v, want ConstMemory", got)
	}
	if got := Tags(0).Meet(ConstMemory); got != 0 {
		t.Errorf("0.Meet(ConstMemory) = %v, want 0", got)
	}
}
