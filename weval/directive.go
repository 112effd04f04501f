// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package weval

import "github.com/aclements/weval/abstractval"

// ParamInit is the initial abstract value a Directive supplies for one
// formal parameter: either Runtime or a concrete WasmVal (optionally
// pre-tagged, e.g. const_memory for a pointer argument known to point
// into a read-only region).
type ParamInit struct {
	Concrete bool
	Val      abstractval.WasmVal
	Tags     abstractval.Tags
}

func (p ParamInit) toAbstract() abstractval.Value {
	if p.Concrete {
		return abstractval.ConcreteValue(p.Val, p.Tags)
	}
	return abstractval.RuntimeValue(0)
}

// Directive is one request to the driver: specialize Func with the
// given per-argument initial values, and write the resulting
// function's index to FuncIndexOutAddr in the image's main heap.
type Directive struct {
	Func             int
	ConstParams      []ParamInit
	FuncIndexOutAddr uint32
}
