// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package abstractval implements the three-point abstract value
// lattice the evaluator propagates over SSA values: Top, Concrete, and
// Runtime. The lattice and its meet operator are modeled on
// rtcheck's DynValue/DynConst pair in val.go, generalized from a
// points-to/constant lattice over Go values to a WebAssembly constant
// lattice with a side-channel tag bitset.
package abstractval

import "github.com/aclements/weval/ir"

// Tags is a bitset over a small fixed vocabulary of side-channel
// facts about a value. The only tag the core transfer functions
// consult is ConstMemory.
type Tags uint32

const (
	// ConstMemory marks an address as known to live in a region of
	// the memory image that is safe to fold loads from.
	ConstMemory Tags = 1 << iota
)

// Meet intersects two tag sets (meet(a,b) = a & b, matching §3).
func (t Tags) Meet(u Tags) Tags { return t & u }

func (t Tags) Has(bit Tags) bool { return t&bit != 0 }

// Kind discriminates the three points of the lattice.
type Kind int

const (
	// Top is the lattice's bottom-of-information element: nothing
	// has been observed yet. It must never survive as a settled
	// operator result; abstract_eval producing Top is a bug (§7).
	Top Kind = iota
	Concrete
	Runtime
)

// WasmVal is a concrete constant of one of the four numeric types. Only
// one field is meaningful, selected by Type.
type WasmVal struct {
	Type ir.Type
	I32  uint32
	I64  uint64
	F32  uint32 // raw bits
	F64  uint64 // raw bits
}

func I32Val(v uint32) WasmVal { return WasmVal{Type: ir.I32, I32: v} }
func I64Val(v uint64) WasmVal { return WasmVal{Type: ir.I64, I64: v} }

// Equal reports whether two WasmVals are the same type and bit
// pattern.
func (a WasmVal) Equal(b WasmVal) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case ir.I32:
		return a.I32 == b.I32
	case ir.I64:
		return a.I64 == b.I64
	case ir.F32:
		return a.F32 == b.F32
	case ir.F64:
		return a.F64 == b.F64
	}
	return false
}

// Value is one point of the abstract-value lattice: Top,
// Concrete(val, tags), or Runtime(tags).
type Value struct {
	Kind  Kind
	Val   WasmVal
	Tags  Tags
}

var TopValue = Value{Kind: Top}

func RuntimeValue(tags Tags) Value { return Value{Kind: Runtime, Tags: tags} }

func ConcreteValue(v WasmVal, tags Tags) Value { return Value{Kind: Concrete, Val: v, Tags: tags} }

// IsConstU32 returns the value's bits as a uint32 if it is a concrete
// i32, and whether that succeeded. It is the one conversion the
// terminator-folding and load-folding logic need.
func (v Value) IsConstU32() (uint32, bool) {
	if v.Kind == Concrete && v.Val.Type == ir.I32 {
		return v.Val.I32, true
	}
	return 0, false
}

// IsConstTruthy reports whether v is a concrete value known to be
// nonzero, for CondBr folding.
func (v Value) IsConstTruthy() (truthy bool, ok bool) {
	if v.Kind != Concrete {
		return false, false
	}
	switch v.Val.Type {
	case ir.I32:
		return v.Val.I32 != 0, true
	case ir.I64:
		return v.Val.I64 != 0, true
	}
	return false, false
}

// Meet implements the §3 meet rule: Top is the identity, Runtime
// absorbs, and two equal Concretes stay Concrete (with tags met);
// unequal Concretes widen to Runtime. Only descents (toward Runtime)
// are ever produced by repeated application, which is what guarantees
// termination (§5).
func (a Value) Meet(b Value) Value {
	if a.Kind == Top {
		return b
	}
	if b.Kind == Top {
		return a
	}
	if a.Kind == Runtime || b.Kind == Runtime {
		return RuntimeValue(a.tagsOr(b))
	}
	// Both Concrete.
	if a.Val.Equal(b.Val) {
		return ConcreteValue(a.Val, a.Tags.Meet(b.Tags))
	}
	return RuntimeValue(a.Tags.Meet(b.Tags))
}

func (a Value) tagsOr(b Value) Tags {
	at, bt := a.Tags, b.Tags
	if a.Kind == Top {
		at = bt
	}
	if b.Kind == Top {
		bt = at
	}
	return at.Meet(bt)
}

// Below reports whether a is at or below b in the lattice (Top <=
// Concrete <= Runtime, with distinct Concretes incomparable but both
// below Runtime). It exists only to let tests and the monotonicity
// checker (§8 property 1) assert that re-evaluation never moves a
// value upward.
func (a Value) Below(b Value) bool {
	if a.Kind == b.Kind && a.Kind == Concrete {
		return a.Val.Equal(b.Val)
	}
	return a.Kind <= b.Kind
}
