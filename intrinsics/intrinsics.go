// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package intrinsics resolves the three well-known intrinsic names
// (§6) to function indices by looking them up as exports of a loaded
// module. A module that does not export one of these names simply
// does not get that intrinsic's folding behavior.
package intrinsics

import "github.com/aclements/weval/weval"

const (
	assumeConstMemoryName = "weval.assume_const_memory"
	loopPC32UpdateName    = "weval.loop_pc32_update"
	loopHeaderName        = "weval.loop_header"
)

// exporter is the subset of module.Module's surface that resolution
// needs; it lets this package avoid importing package module directly
// and instead take anything with a FindExport method.
type exporter interface {
	FindExport(name string) (int, bool)
}

// Resolve looks up each of the three intrinsic export names in m and
// returns the weval.Intrinsics describing which are present.
func Resolve(m exporter) weval.Intrinsics {
	return weval.Intrinsics{
		AssumeConstMemory: lookup(m, assumeConstMemoryName),
		LoopPC32Update:    lookup(m, loopPC32UpdateName),
		LoopHeader:        lookup(m, loopHeaderName),
	}
}

func lookup(m exporter, name string) weval.IntrinsicFunc {
	id, ok := m.FindExport(name)
	if !ok {
		return weval.IntrinsicFunc{}
	}
	return weval.IntrinsicFunc{Present: true, Index: id}
}
