// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intrinsics

import "testing"

type fakeExporter map[string]int

func (f fakeExporter) FindExport(name string) (int, bool) {
	id, ok := f[name]
	return id, ok
}

func TestResolveAllPresent(t *testing.T) {
	exp := fakeExporter{
		"weval.assume_const_memory": 3,
		"weval.loop_pc32_update":    4,
		"weval.loop_header":         5,
	}
	got := Resolve(exp)
	if !got.AssumeConstMemory.Present || got.AssumeConstMemory.Index != 3 {
		t.Errorf("AssumeConstMemory = %+v, want Present Index=3", got.AssumeConstMemory)
	}
	if !got.LoopPC32Update.Present || got.LoopPC32Update.Index != 4 {
		t.Errorf("LoopPC32Update = %+v, want Present Index=4", got.LoopPC32Update)
	}
	if !got.LoopHeader.Present || got.LoopHeader.Index != 5 {
		t.Errorf("LoopHeader = %+v, want Present Index=5", got.LoopHeader)
	}
}

func TestResolveNonePresent(t *testing.T) {
	got := Resolve(fakeExporter{})
	if got.AssumeConstMemory.Present || got.LoopPC32Update.Present || got.LoopHeader.Present {
		t.Errorf("Resolve of an empty exporter should yield all-absent intrinsics, got %+v", got)
	}
}

func TestResolvePartial(t *testing.T) {
	got := Resolve(fakeExporter{"weval.loop_header": 9})
	if got.AssumeConstMemory.Present {
		t.Error("AssumeConstMemory should be absent")
	}
	if !got.LoopHeader.Present || got.LoopHeader.Index != 9 {
		t.Errorf("LoopHeader = %+v, want Present Index=9", got.LoopHeader)
	}
}
