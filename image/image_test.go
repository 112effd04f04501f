// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package image

import "testing"

func TestReadSizeWithinConstRegion(t *testing.T) {
	mem := &Memory{
		Bytes:      []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
		ConstStart: 4,
		ConstEnd:   12,
	}
	im := New([]*Memory{mem}, 0)

	got, ok := im.ReadSize(0, 4, 4)
	if !ok {
		t.Fatal("expected a read within the const region to succeed")
	}
	// little-endian bytes 4,5,6,7 -> 0x07060504
	if want := uint64(0x07060504); got != want {
		t.Errorf("ReadSize = %#x, want %#x", got, want)
	}
}

func TestReadSizeOutsideConstRegionFails(t *testing.T) {
	mem := &Memory{
		Bytes:      []byte{0, 1, 2, 3, 4, 5, 6, 7},
		ConstStart: 4,
		ConstEnd:   8,
	}
	im := New([]*Memory{mem}, 0)

	if _, ok := im.ReadSize(0, 0, 4); ok {
		t.Error("a read before ConstStart should fail")
	}
	if _, ok := im.ReadSize(0, 6, 4); ok {
		t.Error("a read extending past ConstEnd should fail")
	}
}

func TestReadSizeBadMemoryIndex(t *testing.T) {
	im := New([]*Memory{{Bytes: make([]byte, 8), ConstEnd: 8}}, 0)
	if _, ok := im.ReadSize(1, 0, 4); ok {
		t.Error("an out-of-range memory index should fail")
	}
	if _, ok := im.ReadSize(-1, 0, 4); ok {
		t.Error("a negative memory index should fail")
	}
}

func TestReadSizeAllWidths(t *testing.T) {
	mem := &Memory{
		Bytes:      []byte{0xff, 1, 2, 3, 4, 5, 6, 7, 8},
		ConstStart: 0,
		ConstEnd:   9,
	}
	im := New([]*Memory{mem}, 0)

	if v, ok := im.ReadSize(0, 0, 1); !ok || v != 0xff {
		t.Errorf("1-byte read = %#x, %v, want 0xff, true", v, ok)
	}
	if v, ok := im.ReadSize(0, 1, 2); !ok || v != 0x0201 {
		t.Errorf("2-byte read = %#x, %v, want 0x0201, true", v, ok)
	}
	if v, ok := im.ReadSize(0, 1, 8); !ok || v != 0x0807060504030201 {
		t.Errorf("8-byte read = %#x, %v, want 0x0807060504030201, true", v, ok)
	}
}

func TestWriteU32GrowsMemory(t *testing.T) {
	mem := &Memory{Bytes: []byte{}}
	im := New([]*Memory{mem}, 0)

	im.WriteU32(0, 16, 0xdeadbeef)
	if len(mem.Bytes) < 20 {
		t.Fatalf("WriteU32 did not grow the memory: len = %d", len(mem.Bytes))
	}
	got := mem.Bytes[16:20]
	want := []byte{0xef, 0xbe, 0xad, 0xde}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("WriteU32 wrote %v, want %v", got, want)
		}
	}
}

func TestMainHeap(t *testing.T) {
	im := New([]*Memory{{}, {}}, 1)
	if im.MainHeap() != 1 {
		t.Errorf("MainHeap() = %d, want 1", im.MainHeap())
	}
}
