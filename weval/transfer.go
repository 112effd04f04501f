// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package weval

import (
	"github.com/aclements/weval/abstractval"
	"github.com/aclements/weval/ir"
)

// abstractEvalIntrinsic implements the three well-known intrinsic
// calls from §4.10. It returns handled=false for every other
// OpCall (ordinary calls are opaque and fall through to the generic
// path, which transcribes them as Runtime; SPEC_FULL.md's non-goals
// exclude cross-function inlining).
func (ev *Evaluator) abstractEvalIntrinsic(pp *pointState, def *ir.ValueDef, argsNew []ir.Value, argsAbs []abstractval.Value) (replacement ir.Value, abs abstractval.Value, handled bool) {
	if def.Op != ir.OpCall {
		return 0, abstractval.Value{}, false
	}
	switch {
	case ev.intrinsics.AssumeConstMemory.matches(def.FuncIndex):
		a := argsAbs[0]
		a.Tags |= abstractval.ConstMemory
		return argsNew[0], a, true

	case ev.intrinsics.LoopPC32Update.matches(def.FuncIndex):
		a := argsAbs[0]
		if pc, ok := a.IsConstU32(); ok {
			pc64 := uint64(pc)
			pp.flow.StagedPC = pp.flow.StagedPC.Meet(StagedPC{Kind: StagedSome, PC: &pc64})
		} else {
			pp.flow.StagedPC = pp.flow.StagedPC.Meet(StagedPC{Kind: StagedSome, PC: nil})
		}
		return argsNew[0], a, true

	case ev.intrinsics.LoopHeader.matches(def.FuncIndex):
		return ev.newBody.NewValue(ir.ValueDef{Kind: ir.DefOperator, Op: ir.OpCall, FuncIndex: def.FuncIndex}), abstractval.RuntimeValue(0), true
	}
	return 0, abstractval.Value{}, false
}

// abstractEval dispatches §4.10's nullary/unary/binary/ternary transfer
// functions. It also special-cases global.get/global.set, which read
// and write pp.flow.Globals directly rather than folding over operand
// values.
func (ev *Evaluator) abstractEval(pp *pointState, def *ir.ValueDef, args []abstractval.Value) abstractval.Value {
	switch def.Op {
	case ir.OpGlobalGet:
		return pp.flow.Global(def.Imm)
	case ir.OpGlobalSet:
		pp.flow = pp.flow.WithGlobal(def.Imm, args[0])
		return abstractval.RuntimeValue(0)
	}

	switch len(args) {
	case 0:
		return ev.abstractEvalNullary(def)
	case 1:
		return ev.abstractEvalUnary(def, args[0])
	case 2:
		return ev.abstractEvalBinary(def, args[0], args[1])
	case 3:
		return ev.abstractEvalTernary(def, args[0], args[1], args[2])
	}
	return abstractval.RuntimeValue(0)
}

func (ev *Evaluator) abstractEvalNullary(def *ir.ValueDef) abstractval.Value {
	switch def.Op {
	case ir.OpI32Const:
		return abstractval.ConcreteValue(abstractval.I32Val(uint32(def.Bits)), 0)
	case ir.OpI64Const:
		return abstractval.ConcreteValue(abstractval.I64Val(def.Bits), 0)
	case ir.OpF32Const, ir.OpF64Const:
		// Floating-point constants are folded into the IR as
		// constants by construction, but arithmetic over them is
		// not (§1 non-goal), so downstream uses still see them as
		// Concrete; nothing more to compute here.
		t := ir.F32
		if def.Op == ir.OpF64Const {
			t = ir.F64
		}
		v := abstractval.WasmVal{Type: t}
		if t == ir.F32 {
			v.F32 = uint32(def.Bits)
		} else {
			v.F64 = def.Bits
		}
		return abstractval.ConcreteValue(v, 0)
	}
	return abstractval.RuntimeValue(0)
}

func (ev *Evaluator) abstractEvalUnary(def *ir.ValueDef, a abstractval.Value) abstractval.Value {
	switch def.Op {
	case ir.OpI32Load, ir.OpI32Load8S, ir.OpI32Load8U, ir.OpI32Load16S, ir.OpI32Load16U,
		ir.OpI64Load, ir.OpI64Load8S, ir.OpI64Load8U, ir.OpI64Load16S, ir.OpI64Load16U, ir.OpI64Load32S, ir.OpI64Load32U:
		return ev.evalLoad(def, a)
	}

	if a.Kind != abstractval.Concrete {
		return abstractval.RuntimeValue(a.Tags)
	}

	switch def.Op {
	case ir.OpI32Eqz:
		return boolVal32(a.Val.I32 == 0)
	case ir.OpI64Eqz:
		return boolVal32(a.Val.I64 == 0)
	case ir.OpI32Clz:
		return abstractval.ConcreteValue(abstractval.I32Val(uint32(clz32(a.Val.I32))), a.Tags)
	case ir.OpI32Ctz:
		return abstractval.ConcreteValue(abstractval.I32Val(uint32(ctz32(a.Val.I32))), a.Tags)
	case ir.OpI32Popcnt:
		return abstractval.ConcreteValue(abstractval.I32Val(uint32(popcount32(a.Val.I32))), a.Tags)
	case ir.OpI64Clz:
		return abstractval.ConcreteValue(abstractval.I64Val(uint64(clz64(a.Val.I64))), a.Tags)
	case ir.OpI64Ctz:
		return abstractval.ConcreteValue(abstractval.I64Val(uint64(ctz64(a.Val.I64))), a.Tags)
	case ir.OpI64Popcnt:
		return abstractval.ConcreteValue(abstractval.I64Val(uint64(popcount64(a.Val.I64))), a.Tags)
	case ir.OpI32WrapI64:
		return abstractval.ConcreteValue(abstractval.I32Val(uint32(a.Val.I64)), a.Tags)
	case ir.OpI64ExtendI32S:
		return abstractval.ConcreteValue(abstractval.I64Val(uint64(int64(int32(a.Val.I32)))), a.Tags)
	case ir.OpI64ExtendI32U:
		return abstractval.ConcreteValue(abstractval.I64Val(uint64(a.Val.I32)), a.Tags)
	case ir.OpI32Extend8S:
		return abstractval.ConcreteValue(abstractval.I32Val(uint32(int32(int8(a.Val.I32)))), a.Tags)
	case ir.OpI32Extend16S:
		return abstractval.ConcreteValue(abstractval.I32Val(uint32(int32(int16(a.Val.I32)))), a.Tags)
	case ir.OpI64Extend8S:
		return abstractval.ConcreteValue(abstractval.I64Val(uint64(int64(int8(a.Val.I64)))), a.Tags)
	case ir.OpI64Extend16S:
		return abstractval.ConcreteValue(abstractval.I64Val(uint64(int64(int16(a.Val.I64)))), a.Tags)
	case ir.OpI64Extend32S:
		return abstractval.ConcreteValue(abstractval.I64Val(uint64(int64(int32(a.Val.I64)))), a.Tags)
	}
	return abstractval.RuntimeValue(a.Tags)
}

// evalLoad folds a load iff the address carries ConstMemory, per §8
// property 7 (load-fold restriction).
func (ev *Evaluator) evalLoad(def *ir.ValueDef, addr abstractval.Value) abstractval.Value {
	if addr.Kind != abstractval.Concrete || addr.Val.Type != ir.I32 {
		return abstractval.RuntimeValue(0)
	}
	if !addr.Tags.Has(abstractval.ConstMemory) {
		return abstractval.RuntimeValue(0)
	}
	size, signed, resultType := loadShape(def.Op)
	k := addr.Val.I32 + def.MemArg.Offset
	raw, ok := ev.image.ReadSize(def.MemArg.Memory, k, size)
	if !ok {
		return abstractval.RuntimeValue(0)
	}
	val := extend(raw, size, signed, resultType)
	return abstractval.ConcreteValue(val, addr.Tags)
}

func loadShape(op ir.Operator) (size int, signed bool, resultType ir.Type) {
	switch op {
	case ir.OpI32Load:
		return 4, false, ir.I32
	case ir.OpI32Load8S:
		return 1, true, ir.I32
	case ir.OpI32Load8U:
		return 1, false, ir.I32
	case ir.OpI32Load16S:
		return 2, true, ir.I32
	case ir.OpI32Load16U:
		return 2, false, ir.I32
	case ir.OpI64Load:
		return 8, false, ir.I64
	case ir.OpI64Load8S:
		return 1, true, ir.I64
	case ir.OpI64Load8U:
		return 1, false, ir.I64
	case ir.OpI64Load16S:
		return 2, true, ir.I64
	case ir.OpI64Load16U:
		return 2, false, ir.I64
	case ir.OpI64Load32S:
		return 4, true, ir.I64
	case ir.OpI64Load32U:
		return 4, false, ir.I64
	}
	return 0, false, ir.TypeInvalid
}

func extend(raw uint64, size int, signed bool, resultType ir.Type) abstractval.WasmVal {
	bits := uint(size) * 8
	if signed && bits < 64 {
		shift := 64 - bits
		signExtended := uint64(int64(raw<<shift) >> shift)
		raw = signExtended
	}
	if resultType == ir.I32 {
		return abstractval.I32Val(uint32(raw))
	}
	return abstractval.I64Val(raw)
}

func boolVal32(b bool) abstractval.Value {
	if b {
		return abstractval.ConcreteValue(abstractval.I32Val(1), 0)
	}
	return abstractval.ConcreteValue(abstractval.I32Val(0), 0)
}

func (ev *Evaluator) abstractEvalBinary(def *ir.ValueDef, a, b abstractval.Value) abstractval.Value {
	tags := a.Tags.Meet(b.Tags)
	if a.Kind != abstractval.Concrete || b.Kind != abstractval.Concrete {
		return abstractval.RuntimeValue(tags)
	}
	if is64, ok := binaryWidth(def.Op); ok {
		if is64 {
			v, ok := evalBinary64(def.Op, a.Val.I64, b.Val.I64)
			if !ok {
				return abstractval.RuntimeValue(tags)
			}
			return abstractval.ConcreteValue(v, tags)
		}
		v, ok := evalBinary32(def.Op, a.Val.I32, b.Val.I32)
		if !ok {
			return abstractval.RuntimeValue(tags)
		}
		return abstractval.ConcreteValue(v, tags)
	}
	return abstractval.RuntimeValue(tags)
}

func binaryWidth(op ir.Operator) (is64, ok bool) {
	switch op {
	case ir.OpI32Add, ir.OpI32Sub, ir.OpI32Mul, ir.OpI32DivS, ir.OpI32DivU, ir.OpI32RemS, ir.OpI32RemU,
		ir.OpI32And, ir.OpI32Or, ir.OpI32Xor, ir.OpI32Shl, ir.OpI32ShrS, ir.OpI32ShrU, ir.OpI32Rotl, ir.OpI32Rotr,
		ir.OpI32Eq, ir.OpI32Ne, ir.OpI32LtS, ir.OpI32LtU, ir.OpI32GtS, ir.OpI32GtU, ir.OpI32LeS, ir.OpI32LeU, ir.OpI32GeS, ir.OpI32GeU:
		return false, true
	case ir.OpI64Add, ir.OpI64Sub, ir.OpI64Mul, ir.OpI64DivS, ir.OpI64DivU, ir.OpI64RemS, ir.OpI64RemU,
		ir.OpI64And, ir.OpI64Or, ir.OpI64Xor, ir.OpI64Shl, ir.OpI64ShrS, ir.OpI64ShrU, ir.OpI64Rotl, ir.OpI64Rotr,
		ir.OpI64Eq, ir.OpI64Ne, ir.OpI64LtS, ir.OpI64LtU, ir.OpI64GtS, ir.OpI64GtU, ir.OpI64LeS, ir.OpI64LeU, ir.OpI64GeS, ir.OpI64GeU:
		return true, true
	}
	return false, false
}

// evalBinary32 folds a 32-bit binary op, or returns ok=false for a
// divide/remainder that must stay runtime (zero divisor, or the
// signed INT_MIN/-1 overflow case).
func evalBinary32(op ir.Operator, x, y uint32) (abstractval.WasmVal, bool) {
	sx, sy := int32(x), int32(y)
	switch op {
	case ir.OpI32Add:
		return abstractval.I32Val(x + y), true
	case ir.OpI32Sub:
		return abstractval.I32Val(x - y), true
	case ir.OpI32Mul:
		return abstractval.I32Val(x * y), true
	case ir.OpI32DivU:
		if y == 0 {
			return abstractval.WasmVal{}, false
		}
		return abstractval.I32Val(x / y), true
	case ir.OpI32RemU:
		if y == 0 {
			return abstractval.WasmVal{}, false
		}
		return abstractval.I32Val(x % y), true
	case ir.OpI32DivS:
		if y == 0 || (sx == -0x80000000 && sy == -1) {
			return abstractval.WasmVal{}, false
		}
		return abstractval.I32Val(uint32(sx / sy)), true
	case ir.OpI32RemS:
		if y == 0 || (sx == -0x80000000 && sy == -1) {
			return abstractval.WasmVal{}, false
		}
		return abstractval.I32Val(uint32(sx % sy)), true
	case ir.OpI32And:
		return abstractval.I32Val(x & y), true
	case ir.OpI32Or:
		return abstractval.I32Val(x | y), true
	case ir.OpI32Xor:
		return abstractval.I32Val(x ^ y), true
	case ir.OpI32Shl:
		return abstractval.I32Val(x << (y & 0x1f)), true
	case ir.OpI32ShrU:
		return abstractval.I32Val(x >> (y & 0x1f)), true
	case ir.OpI32ShrS:
		return abstractval.I32Val(uint32(sx >> (y & 0x1f))), true
	case ir.OpI32Rotl:
		n := y & 0x1f
		return abstractval.I32Val((x << n) | (x >> (32 - n) & okMask(n))), true
	case ir.OpI32Rotr:
		n := y & 0x1f
		return abstractval.I32Val((x >> n) | (x << (32 - n) & okMask(n))), true
	case ir.OpI32Eq:
		return boolU32(x == y), true
	case ir.OpI32Ne:
		return boolU32(x != y), true
	case ir.OpI32LtS:
		return boolU32(sx < sy), true
	case ir.OpI32LtU:
		return boolU32(x < y), true
	case ir.OpI32GtS:
		return boolU32(sx > sy), true
	case ir.OpI32GtU:
		return boolU32(x > y), true
	case ir.OpI32LeS:
		return boolU32(sx <= sy), true
	case ir.OpI32LeU:
		return boolU32(x <= y), true
	case ir.OpI32GeS:
		return boolU32(sx >= sy), true
	case ir.OpI32GeU:
		return boolU32(x >= y), true
	}
	return abstractval.WasmVal{}, false
}

func evalBinary64(op ir.Operator, x, y uint64) (abstractval.WasmVal, bool) {
	sx, sy := int64(x), int64(y)
	switch op {
	case ir.OpI64Add:
		return abstractval.I64Val(x + y), true
	case ir.OpI64Sub:
		return abstractval.I64Val(x - y), true
	case ir.OpI64Mul:
		return abstractval.I64Val(x * y), true
	case ir.OpI64DivU:
		if y == 0 {
			return abstractval.WasmVal{}, false
		}
		return abstractval.I64Val(x / y), true
	case ir.OpI64RemU:
		if y == 0 {
			return abstractval.WasmVal{}, false
		}
		return abstractval.I64Val(x % y), true
	case ir.OpI64DivS:
		if y == 0 || (sx == -0x8000000000000000 && sy == -1) {
			return abstractval.WasmVal{}, false
		}
		return abstractval.I64Val(uint64(sx / sy)), true
	case ir.OpI64RemS:
		if y == 0 || (sx == -0x8000000000000000 && sy == -1) {
			return abstractval.WasmVal{}, false
		}
		return abstractval.I64Val(uint64(sx % sy)), true
	case ir.OpI64And:
		return abstractval.I64Val(x & y), true
	case ir.OpI64Or:
		return abstractval.I64Val(x | y), true
	case ir.OpI64Xor:
		return abstractval.I64Val(x ^ y), true
	case ir.OpI64Shl:
		return abstractval.I64Val(x << (y & 0x3f)), true
	case ir.OpI64ShrU:
		return abstractval.I64Val(x >> (y & 0x3f)), true
	case ir.OpI64ShrS:
		return abstractval.I64Val(uint64(sx >> (y & 0x3f))), true
	case ir.OpI64Rotl:
		n := y & 0x3f
		return abstractval.I64Val((x << n) | (x >> (64 - n) & okMask64(n))), true
	case ir.OpI64Rotr:
		n := y & 0x3f
		return abstractval.I64Val((x >> n) | (x << (64 - n) & okMask64(n))), true
	case ir.OpI64Eq:
		return boolU32(x == y), true
	case ir.OpI64Ne:
		return boolU32(x != y), true
	case ir.OpI64LtS:
		return boolU32(sx < sy), true
	case ir.OpI64LtU:
		return boolU32(x < y), true
	case ir.OpI64GtS:
		return boolU32(sx > sy), true
	case ir.OpI64GtU:
		return boolU32(x > y), true
	case ir.OpI64LeS:
		return boolU32(sx <= sy), true
	case ir.OpI64LeU:
		return boolU32(x <= y), true
	case ir.OpI64GeS:
		return boolU32(sx >= sy), true
	case ir.OpI64GeU:
		return boolU32(x >= y), true
	}
	return abstractval.WasmVal{}, false
}

// okMask guards the degenerate n==0 rotate case, where (x >> (32-0))
// would shift by 32 (undefined in Go for a uint32).
func okMask(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	return ^uint32(0)
}

func okMask64(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	return ^uint64(0)
}

func boolU32(b bool) abstractval.WasmVal {
	if b {
		return abstractval.I32Val(1)
	}
	return abstractval.I32Val(0)
}

func (ev *Evaluator) abstractEvalTernary(def *ir.ValueDef, sel, t, f abstractval.Value) abstractval.Value {
	switch def.Op {
	case ir.OpSelect, ir.OpTypedSelect:
		truthy, ok := sel.IsConstTruthy()
		if !ok {
			return abstractval.RuntimeValue(0)
		}
		if truthy {
			return t
		}
		return f
	}
	return abstractval.RuntimeValue(0)
}

func clz32(x uint32) int {
	n := 0
	for i := 31; i >= 0; i-- {
		if x&(1<<uint(i)) != 0 {
			break
		}
		n++
	}
	return n
}

func ctz32(x uint32) int {
	if x == 0 {
		return 32
	}
	n := 0
	for x&1 == 0 {
		x >>= 1
		n++
	}
	return n
}

func popcount32(x uint32) int {
	n := 0
	for x != 0 {
		n += int(x & 1)
		x >>= 1
	}
	return n
}

func clz64(x uint64) int {
	n := 0
	for i := 63; i >= 0; i-- {
		if x&(1<<uint(i)) != 0 {
			break
		}
		n++
	}
	return n
}

func ctz64(x uint64) int {
	if x == 0 {
		return 64
	}
	n := 0
	for x&1 == 0 {
		x >>= 1
		n++
	}
	return n
}

func popcount64(x uint64) int {
	n := 0
	for x != 0 {
		n += int(x & 1)
		x >>= 1
	}
	return n
}
