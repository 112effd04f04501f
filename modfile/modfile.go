// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package modfile decodes the module and image files cmd/weval reads.
// Parsing an actual WebAssembly binary is out of scope (§1's Non-goals
// bound this to partial evaluation of an already-decoded IR), so this
// package defines weval's own small JSON encoding of a module and its
// memory image — the same approach dashquery/main.go, buildstats, and
// cl-fetch take for their own ad hoc on-disk formats (plain
// encoding/json, no schema/IDL).
package modfile

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aclements/weval/image"
	"github.com/aclements/weval/ir"
	"github.com/aclements/weval/module"
)

// File is the on-disk shape of a module: every function plus the
// export table used to resolve directive function names and
// intrinsics.
type File struct {
	Funcs   []FuncFile     `json:"funcs"`
	Exports map[string]int `json:"exports"`
}

// FuncFile is one function: its signature, and (unless Import) its
// body as a flat list of blocks.
type FuncFile struct {
	Name    string      `json:"name,omitempty"`
	Params  []string    `json:"params"`
	Results []string     `json:"results"`
	Import  bool        `json:"import,omitempty"`
	Entry   int         `json:"entry"`
	Blocks  []BlockFile `json:"blocks,omitempty"`
}

// BlockFile is one block. Its params and instructions each define one
// value; values are numbered implicitly in file order (every block's
// params, then its insts, in the order blocks appear in Funcs[].Blocks)
// starting from 0, and Args/Cond/Values below refer to that numbering.
type BlockFile struct {
	Params []string    `json:"params,omitempty"`
	Insts  []ValueFile `json:"insts,omitempty"`
	Term   TermFile    `json:"term"`
}

// ValueFile is one instruction.
type ValueFile struct {
	Op        string `json:"op"`
	Type      string `json:"type,omitempty"`
	Args      []int  `json:"args,omitempty"`
	Memory    int    `json:"memory,omitempty"`
	Offset    uint32 `json:"offset,omitempty"`
	FuncIndex int    `json:"func_index,omitempty"`
	Imm       int    `json:"imm,omitempty"`
	Bits      uint64 `json:"bits,omitempty"`
}

// TermFile is a block's terminator.
type TermFile struct {
	Kind    string     `json:"kind"`
	Cond    int        `json:"cond,omitempty"`
	Target0 EdgeFile   `json:"target0,omitempty"`
	Target1 EdgeFile   `json:"target1,omitempty"`
	Targets []EdgeFile `json:"targets,omitempty"`
	Values  []int      `json:"values,omitempty"`
}

// EdgeFile names a target block (index into Funcs[].Blocks) and the
// value indices passed as its parameters.
type EdgeFile struct {
	Block int   `json:"block"`
	Args  []int `json:"args,omitempty"`
}

// DecodeModule parses a File and builds the module.Module it describes.
func DecodeModule(data []byte) (*module.Module, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("modfile: %w", err)
	}

	m := module.New()
	for name, id := range f.Exports {
		m.Exports[name] = id
	}

	for _, ff := range f.Funcs {
		sig, err := decodeSig(ff)
		if err != nil {
			return nil, err
		}
		if ff.Import {
			m.AddImport(ff.Name, sig)
			continue
		}
		body, err := decodeFunc(sig, ff)
		if err != nil {
			return nil, fmt.Errorf("function %q: %w", ff.Name, err)
		}
		m.AddFunc(body)
	}
	return m, nil
}

func decodeSig(ff FuncFile) (ir.Sig, error) {
	params, err := decodeTypes(ff.Params)
	if err != nil {
		return ir.Sig{}, err
	}
	results, err := decodeTypes(ff.Results)
	if err != nil {
		return ir.Sig{}, err
	}
	return ir.Sig{Params: params, Results: results}, nil
}

func decodeTypes(names []string) ([]ir.Type, error) {
	out := make([]ir.Type, len(names))
	for i, n := range names {
		t, ok := typeByName[n]
		if !ok {
			return nil, fmt.Errorf("unknown type %q", n)
		}
		out[i] = t
	}
	return out, nil
}

var typeByName = map[string]ir.Type{"i32": ir.I32, "i64": ir.I64, "f32": ir.F32, "f64": ir.F64}

// opByName maps WebAssembly-style text names to the Operator values
// the transfer-function table in package weval understands. An
// operator name not in this table is rejected by DecodeModule.
var opByName = map[string]ir.Operator{
	"i32.const": ir.OpI32Const,
	"i64.const": ir.OpI64Const,
	"f32.const": ir.OpF32Const,
	"f64.const": ir.OpF64Const,

	"global.get": ir.OpGlobalGet,
	"global.set": ir.OpGlobalSet,

	"i32.eqz":         ir.OpI32Eqz,
	"i64.eqz":         ir.OpI64Eqz,
	"i32.clz":         ir.OpI32Clz,
	"i32.ctz":         ir.OpI32Ctz,
	"i32.popcnt":      ir.OpI32Popcnt,
	"i64.clz":         ir.OpI64Clz,
	"i64.ctz":         ir.OpI64Ctz,
	"i64.popcnt":      ir.OpI64Popcnt,
	"i32.wrap_i64":    ir.OpI32WrapI64,
	"i64.extend_i32_s": ir.OpI64ExtendI32S,
	"i64.extend_i32_u": ir.OpI64ExtendI32U,
	"i32.extend8_s":   ir.OpI32Extend8S,
	"i32.extend16_s":  ir.OpI32Extend16S,
	"i64.extend8_s":   ir.OpI64Extend8S,
	"i64.extend16_s":  ir.OpI64Extend16S,
	"i64.extend32_s":  ir.OpI64Extend32S,

	"i32.load":    ir.OpI32Load,
	"i32.load8_s": ir.OpI32Load8S,
	"i32.load8_u": ir.OpI32Load8U,
	"i32.load16_s": ir.OpI32Load16S,
	"i32.load16_u": ir.OpI32Load16U,
	"i64.load":    ir.OpI64Load,
	"i64.load8_s": ir.OpI64Load8S,
	"i64.load8_u": ir.OpI64Load8U,
	"i64.load16_s": ir.OpI64Load16S,
	"i64.load16_u": ir.OpI64Load16U,
	"i64.load32_s": ir.OpI64Load32S,
	"i64.load32_u": ir.OpI64Load32U,

	"i32.add":  ir.OpI32Add,
	"i32.sub":  ir.OpI32Sub,
	"i32.mul":  ir.OpI32Mul,
	"i32.div_s": ir.OpI32DivS,
	"i32.div_u": ir.OpI32DivU,
	"i32.rem_s": ir.OpI32RemS,
	"i32.rem_u": ir.OpI32RemU,
	"i32.and":  ir.OpI32And,
	"i32.or":   ir.OpI32Or,
	"i32.xor":  ir.OpI32Xor,
	"i32.shl":  ir.OpI32Shl,
	"i32.shr_s": ir.OpI32ShrS,
	"i32.shr_u": ir.OpI32ShrU,
	"i32.rotl": ir.OpI32Rotl,
	"i32.rotr": ir.OpI32Rotr,
	"i32.eq":   ir.OpI32Eq,
	"i32.ne":   ir.OpI32Ne,
	"i32.lt_s": ir.OpI32LtS,
	"i32.lt_u": ir.OpI32LtU,
	"i32.gt_s": ir.OpI32GtS,
	"i32.gt_u": ir.OpI32GtU,
	"i32.le_s": ir.OpI32LeS,
	"i32.le_u": ir.OpI32LeU,
	"i32.ge_s": ir.OpI32GeS,
	"i32.ge_u": ir.OpI32GeU,

	"i64.add":  ir.OpI64Add,
	"i64.sub":  ir.OpI64Sub,
	"i64.mul":  ir.OpI64Mul,
	"i64.div_s": ir.OpI64DivS,
	"i64.div_u": ir.OpI64DivU,
	"i64.rem_s": ir.OpI64RemS,
	"i64.rem_u": ir.OpI64RemU,
	"i64.and":  ir.OpI64And,
	"i64.or":   ir.OpI64Or,
	"i64.xor":  ir.OpI64Xor,
	"i64.shl":  ir.OpI64Shl,
	"i64.shr_s": ir.OpI64ShrS,
	"i64.shr_u": ir.OpI64ShrU,
	"i64.rotl": ir.OpI64Rotl,
	"i64.rotr": ir.OpI64Rotr,
	"i64.eq":   ir.OpI64Eq,
	"i64.ne":   ir.OpI64Ne,
	"i64.lt_s": ir.OpI64LtS,
	"i64.lt_u": ir.OpI64LtU,
	"i64.gt_s": ir.OpI64GtS,
	"i64.gt_u": ir.OpI64GtU,
	"i64.le_s": ir.OpI64LeS,
	"i64.le_u": ir.OpI64LeU,
	"i64.ge_s": ir.OpI64GeS,
	"i64.ge_u": ir.OpI64GeU,

	"select":       ir.OpSelect,
	"typed_select": ir.OpTypedSelect,
	"call":         ir.OpCall,
}

// decodeFunc builds an ir.Func from a FuncFile body. It numbers values
// the same way BlockFile's doc comment promises: a first pass assigns
// every param and inst a Value id in file order so that later args
// (including back-edge arguments to earlier blocks) resolve.
func decodeFunc(sig ir.Sig, ff FuncFile) (*ir.Func, error) {
	f := ir.NewFunc(sig)
	if ff.Entry < 0 || ff.Entry >= len(ff.Blocks) {
		return nil, fmt.Errorf("entry block index %d out of range", ff.Entry)
	}

	blockIDs := make([]ir.BlockID, len(ff.Blocks))
	for i := range ff.Blocks {
		blockIDs[i] = f.NewBlock()
	}
	f.Entry = blockIDs[ff.Entry]

	var values []ir.Value
	for _, bf := range ff.Blocks {
		for _, p := range bf.Params {
			t, ok := typeByName[p]
			if !ok {
				return nil, fmt.Errorf("unknown param type %q", p)
			}
			values = append(values, f.NewValue(ir.ValueDef{Kind: ir.DefOther, Type: t}))
		}
		for range bf.Insts {
			values = append(values, f.NewValue(ir.ValueDef{}))
		}
	}

	valueIdx := 0
	for bi, bf := range ff.Blocks {
		blk := f.Blocks[blockIDs[bi]]
		for _, p := range bf.Params {
			t := typeByName[p]
			blk.Params = append(blk.Params, ir.Param{Type: t, Value: values[valueIdx]})
			valueIdx++
		}
		for _, vf := range bf.Insts {
			id := values[valueIdx]
			valueIdx++
			def, err := decodeValue(f, values, vf)
			if err != nil {
				return nil, err
			}
			*f.Defs[id] = def
			blk.Insts = append(blk.Insts, id)
		}
		term, err := decodeTerm(blockIDs, values, bf.Term)
		if err != nil {
			return nil, err
		}
		blk.Term = term
	}
	return f, nil
}

func decodeValue(f *ir.Func, values []ir.Value, vf ValueFile) (ir.ValueDef, error) {
	op, ok := opByName[vf.Op]
	if !ok {
		return ir.ValueDef{}, fmt.Errorf("unknown operator %q", vf.Op)
	}
	typ := typeByName[vf.Type] // zero value (TypeInvalid) if absent/unknown, which is fine for ops with no result
	args := make([]ir.Value, len(vf.Args))
	argTypes := make([]ir.Type, len(vf.Args))
	for i, a := range vf.Args {
		if a < 0 || a >= len(values) {
			return ir.ValueDef{}, fmt.Errorf("arg index %d out of range", a)
		}
		args[i] = values[a]
		if def, ok := f.Defs[values[a]]; ok {
			argTypes[i] = def.Type
		}
	}
	return ir.ValueDef{
		Kind:      ir.DefOperator,
		Type:      typ,
		Op:        op,
		Args:      args,
		ArgTypes:  argTypes,
		MemArg:    ir.MemArg{Memory: vf.Memory, Offset: vf.Offset},
		FuncIndex: vf.FuncIndex,
		Imm:       vf.Imm,
		Bits:      vf.Bits,
	}, nil
}

func decodeTerm(blockIDs []ir.BlockID, values []ir.Value, tf TermFile) (ir.Terminator, error) {
	decodeEdge := func(ef EdgeFile) (ir.Edge, error) {
		if ef.Block < 0 || ef.Block >= len(blockIDs) {
			return ir.Edge{}, fmt.Errorf("edge target %d out of range", ef.Block)
		}
		args := make([]ir.Value, len(ef.Args))
		for i, a := range ef.Args {
			if a < 0 || a >= len(values) {
				return ir.Edge{}, fmt.Errorf("edge arg index %d out of range", a)
			}
			args[i] = values[a]
		}
		return ir.Edge{Block: blockIDs[ef.Block], Args: args}, nil
	}

	switch tf.Kind {
	case "none":
		return ir.Terminator{Kind: ir.TermNone}, nil
	case "unreachable":
		return ir.Terminator{Kind: ir.TermUnreachable}, nil
	case "br":
		e, err := decodeEdge(tf.Target0)
		return ir.Terminator{Kind: ir.TermBr, Target0: e}, err
	case "condbr":
		e0, err := decodeEdge(tf.Target0)
		if err != nil {
			return ir.Terminator{}, err
		}
		e1, err := decodeEdge(tf.Target1)
		if err != nil {
			return ir.Terminator{}, err
		}
		return ir.Terminator{Kind: ir.TermCondBr, Cond: values[tf.Cond], Target0: e0, Target1: e1}, nil
	case "select":
		targets := make([]ir.Edge, len(tf.Targets))
		for i, ef := range tf.Targets {
			e, err := decodeEdge(ef)
			if err != nil {
				return ir.Terminator{}, err
			}
			targets[i] = e
		}
		var t0 ir.Edge
		if len(targets) > 0 {
			t0 = targets[0]
		}
		return ir.Terminator{Kind: ir.TermSelect, Cond: values[tf.Cond], Target0: t0, Targets: targets}, nil
	case "return":
		vals := make([]ir.Value, len(tf.Values))
		for i, v := range tf.Values {
			if v < 0 || v >= len(values) {
				return ir.Terminator{}, fmt.Errorf("return value index %d out of range", v)
			}
			vals[i] = values[v]
		}
		return ir.Terminator{Kind: ir.TermReturn, Values: vals}, nil
	}
	return ir.Terminator{}, fmt.Errorf("unknown terminator kind %q", tf.Kind)
}

// ImageFile is the on-disk shape of a memory image.
type ImageFile struct {
	MainHeap int           `json:"main_heap"`
	Memories []MemoryFile `json:"memories"`
}

// MemoryFile is one linear memory, its bytes base64-encoded.
type MemoryFile struct {
	Bytes      string `json:"bytes"`
	ConstStart uint32 `json:"const_start"`
	ConstEnd   uint32 `json:"const_end"`
}

// EncodeModule renders a module.Module back to the File JSON encoding,
// the inverse of DecodeModule. It is used by cmd/weval to write out
// the specialized module.
func EncodeModule(m *module.Module) ([]byte, error) {
	f := File{Exports: m.Exports}
	for _, fn := range m.Funcs {
		ff := FuncFile{
			Name:    fn.Name,
			Params:  encodeTypes(fn.Sig.Params),
			Results: encodeTypes(fn.Sig.Results),
			Import:  fn.Body == nil,
		}
		if fn.Body != nil {
			bf, err := encodeFunc(fn.Body)
			if err != nil {
				return nil, err
			}
			ff.Entry, ff.Blocks = bf.entry, bf.blocks
		}
		f.Funcs = append(f.Funcs, ff)
	}
	return json.MarshalIndent(f, "", "  ")
}

func encodeTypes(types []ir.Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}

type encodedFunc struct {
	entry  int
	blocks []BlockFile
}

// encodeFunc assigns each value a flat index in the same order
// DecodeModule expects (every block's params then insts, in block
// order) and renders every block and instruction in that numbering.
func encodeFunc(f *ir.Func) (encodedFunc, error) {
	blockOrder := make([]ir.BlockID, 0, len(f.Blocks))
	blockIndex := make(map[ir.BlockID]int, len(f.Blocks))
	// A stable order independent of Go map iteration: blocks are
	// numbered by id, since NewBlock hands out ids sequentially.
	for id := ir.BlockID(0); int(id) < len(f.Blocks); id++ {
		if _, ok := f.Blocks[id]; !ok {
			continue
		}
		blockIndex[id] = len(blockOrder)
		blockOrder = append(blockOrder, id)
	}

	valueIndex := make(map[ir.Value]int)
	next := 0
	for _, id := range blockOrder {
		b := f.Blocks[id]
		for _, p := range b.Params {
			valueIndex[p.Value] = next
			next++
		}
		for _, v := range b.Insts {
			valueIndex[v] = next
			next++
		}
	}

	encodeEdge := func(e ir.Edge) EdgeFile {
		args := make([]int, len(e.Args))
		for i, a := range e.Args {
			args[i] = valueIndex[a]
		}
		return EdgeFile{Block: blockIndex[e.Block], Args: args}
	}

	blocks := make([]BlockFile, len(blockOrder))
	for bi, id := range blockOrder {
		b := f.Blocks[id]
		var bf BlockFile
		for _, p := range b.Params {
			bf.Params = append(bf.Params, p.Type.String())
		}
		for _, v := range b.Insts {
			def := f.Defs[v]
			name, ok := nameByOp[def.Op]
			if !ok {
				return encodedFunc{}, fmt.Errorf("operator %v has no text name", def.Op)
			}
			args := make([]int, len(def.Args))
			for i, a := range def.Args {
				args[i] = valueIndex[a]
			}
			bf.Insts = append(bf.Insts, ValueFile{
				Op:        name,
				Type:      def.Type.String(),
				Args:      args,
				Memory:    def.MemArg.Memory,
				Offset:    def.MemArg.Offset,
				FuncIndex: def.FuncIndex,
				Imm:       def.Imm,
				Bits:      def.Bits,
			})
		}

		term := b.Term
		tf := TermFile{}
		switch term.Kind {
		case ir.TermNone:
			tf.Kind = "none"
		case ir.TermUnreachable:
			tf.Kind = "unreachable"
		case ir.TermBr:
			tf.Kind = "br"
			tf.Target0 = encodeEdge(term.Target0)
		case ir.TermCondBr:
			tf.Kind = "condbr"
			tf.Cond = valueIndex[term.Cond]
			tf.Target0 = encodeEdge(term.Target0)
			tf.Target1 = encodeEdge(term.Target1)
		case ir.TermSelect:
			tf.Kind = "select"
			tf.Cond = valueIndex[term.Cond]
			for _, e := range term.Targets {
				tf.Targets = append(tf.Targets, encodeEdge(e))
			}
		case ir.TermReturn:
			tf.Kind = "return"
			for _, v := range term.Values {
				tf.Values = append(tf.Values, valueIndex[v])
			}
		}
		bf.Term = tf
		blocks[bi] = bf
	}

	return encodedFunc{entry: blockIndex[f.Entry], blocks: blocks}, nil
}

var nameByOp = func() map[ir.Operator]string {
	m := make(map[ir.Operator]string, len(opByName))
	for name, op := range opByName {
		m[op] = name
	}
	return m
}()

// DecodeImage parses an ImageFile and builds the image.Image it describes.
func DecodeImage(data []byte) (*image.Image, error) {
	var f ImageFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("modfile: %w", err)
	}
	mems := make([]*image.Memory, len(f.Memories))
	for i, mf := range f.Memories {
		b, err := base64.StdEncoding.DecodeString(mf.Bytes)
		if err != nil {
			return nil, fmt.Errorf("memory %d: %w", i, err)
		}
		mems[i] = &image.Memory{Bytes: b, ConstStart: mf.ConstStart, ConstEnd: mf.ConstEnd}
	}
	return image.New(mems, f.MainHeap), nil
}
