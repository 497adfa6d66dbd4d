// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package bitvec

import (
	"testing"
	"unsafe"
)

func TestNbit(t *testing.T) {
	for _, x := range [...][2]int{
		{int(unsafe.Sizeof(uint(0))) * 8, (&V[uint]{}).nbit()},
		{8, (&V[uint8]{}).nbit()},
		{16, (&V[uint16]{}).nbit()},
		{32, (&V[uint32]{}).nbit()},
		{64, (&V[uint64]{}).nbit()},
	} {
		if x[0] != x[1] {
			t.Fatalf("V[T].nbit:\nhave %d\nwant %d", x[1], x[0])
		}
	}
}

func TestZero(t *testing.T) {
	var v V[uint16]
	if n := v.Len(); n != 0 {
		t.Fatalf("v.Len:\nhave %d\nwant 0", n)
	}
	if n := v.Rem(); n != 0 {
		t.Fatalf("v.Rem:\nhave %d\nwant 0", n)
	}
	if _, ok := v.Search(); ok {
		t.Fatal("v.Search:\nhave true\nwant false")
	}
}

func TestGrow(t *testing.T) {
	var v V[uint32]
	for _, x := range [...]struct {
		nplus, wantLen int
	}{
		{1, 32},
		{2, 96},
		{0, 96},
		{-1, 96},
		{5, 256},
	} {
		if n, i := v.Len(), v.Grow(x.nplus); n != i {
			t.Fatalf("v.Grow:\nhave %d\nwant %d", i, n)
		}
		if n := v.Len(); n != x.wantLen {
			t.Fatalf("v.Grow: Len:\nhave %d\nwant %d", n, x.wantLen)
		}
		if n := v.Rem(); n != x.wantLen {
			t.Fatalf("v.Grow: Rem:\nhave %d\nwant %d", n, x.wantLen)
		}
	}
	v.Ensure(257)
	if n := v.Len(); n != 288 {
		t.Fatalf("v.Ensure: Len:\nhave %d\nwant 288", n)
	}
}

func TestSet(t *testing.T) {
	var v V[uint8]
	v.Grow(2)
	v.Set(3)
	v.Set(3)
	v.Set(9)
	if n := v.Rem(); n != 14 {
		t.Fatalf("v.Set: Rem:\nhave %d\nwant 14", n)
	}
	for i := range v.Len() {
		if have, want := v.IsSet(i), i == 3 || i == 9; have != want {
			t.Fatalf("v.IsSet(%d):\nhave %t\nwant %t", i, have, want)
		}
	}
	if i, ok := v.Search(); !ok || i != 0 {
		t.Fatalf("v.Search:\nhave %d, %t\nwant 0, true", i, ok)
	}
}

func TestSearchRange(t *testing.T) {
	var v V[uint16]
	v.Grow(4)
	v.SetRange(0, 5)
	v.SetRange(8, 2)
	v.Set(17)
	for _, x := range [...]struct {
		n, index int
		ok       bool
	}{
		{1, 5, true},
		{3, 5, true},
		{4, 10, true},
		{7, 10, true},
		{8, 18, true},
		{46, 18, true},
		{47, 0, false},
	} {
		index, ok := v.SearchRange(x.n)
		if ok != x.ok || ok && index != x.index {
			t.Fatalf("v.SearchRange(%d):\nhave %d, %t\nwant %d, %t", x.n, index, ok, x.index, x.ok)
		}
	}
}

func TestAlloc(t *testing.T) {
	var v V[uint8]
	for _, x := range [...][2]int{
		// n, index
		{1, 0},
		{3, 1},
		{0, 4},
		{8, 5},
		{2, 13},
	} {
		if i := v.Alloc(x[0]); i != x[1] {
			t.Fatalf("v.Alloc(%d):\nhave %d\nwant %d", x[0], i, x[1])
		}
	}
	if i := v.Alloc(1); i != 15 {
		t.Fatalf("v.Alloc(1):\nhave %d\nwant 15", i)
	}
	if n := v.Len() - v.Rem(); n != 16 {
		t.Fatalf("set bits:\nhave %d\nwant 16", n)
	}
}

func TestAll(t *testing.T) {
	var v V[uint32]
	v.Grow(2)
	v.Set(1)
	v.Set(40)
	n := 0
	for i, set := range v.All() {
		if set != (i == 1 || i == 40) {
			t.Fatalf("v.All: bit %d:\nhave %t\nwant %t", i, set, !set)
		}
		n++
	}
	if n != 64 {
		t.Fatalf("v.All: count:\nhave %d\nwant 64", n)
	}
}
