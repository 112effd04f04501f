// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package image implements the §6 Image collaborator: a set of named
// byte-addressed memories, each with an optional "constant region" —
// the range the loader knows was initialized from the module's data
// segments and will not be mutated before the evaluator runs, and
// therefore is safe to fold loads from when the address also carries
// the const_memory tag.
package image

import "encoding/binary"

// Memory is one linear memory: its bytes, and the sub-range of those
// bytes that is safe to read during folding.
type Memory struct {
	Bytes      []byte
	ConstStart uint32
	ConstEnd   uint32
}

func (m *Memory) inConstRegion(addr uint32, size int) bool {
	end := uint64(addr) + uint64(size)
	return uint64(addr) >= uint64(m.ConstStart) && end <= uint64(m.ConstEnd) && end <= uint64(len(m.Bytes))
}

// Image is a collection of memories, one of which is the "main heap"
// used for directive output addresses.
type Image struct {
	Memories []*Memory
	MainID   int
}

// New returns an Image over the given memories, with memory index
// mainID designated as the main heap.
func New(memories []*Memory, mainID int) *Image {
	return &Image{Memories: memories, MainID: mainID}
}

func (im *Image) MainHeap() int { return im.MainID }

// ReadSize reads size (1, 2, 4, or 8) bytes little-endian at addr in
// the given memory. It returns ok=false if the read falls outside that
// memory's constant region, which is the only condition under which
// the evaluator's load-folding transfer function is allowed to
// consult it (§8, load-fold restriction).
func (im *Image) ReadSize(memory int, addr uint32, size int) (uint64, bool) {
	if memory < 0 || memory >= len(im.Memories) {
		return 0, false
	}
	m := im.Memories[memory]
	if !m.inConstRegion(addr, size) {
		return 0, false
	}
	b := m.Bytes[addr : addr+uint32(size)]
	switch size {
	case 1:
		return uint64(b[0]), true
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), true
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), true
	case 8:
		return binary.LittleEndian.Uint64(b), true
	}
	return 0, false
}

// WriteU32 writes a little-endian u32, used by the driver to record
// each directive's resulting function index.
func (im *Image) WriteU32(memory int, addr uint32, value uint32) {
	m := im.Memories[memory]
	if need := int(addr) + 4; need > len(m.Bytes) {
		grown := make([]byte, need)
		copy(grown, m.Bytes)
		m.Bytes = grown
	}
	binary.LittleEndian.PutUint32(m.Bytes[addr:addr+4], value)
}
