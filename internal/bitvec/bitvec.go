// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package bitvec defines a bit vector type used to track
// occupancy of shader registers and root slots.
package bitvec

import (
	"iter"
	"math/bits"
	"unsafe"
)

// Uint represents the granularity of a bit vector.
type Uint interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// V is a growable bit vector with custom granularity.
// The zero value is an empty vector.
type V[T Uint] struct {
	s   []T
	rem int
}

func (*V[T]) nbit() int { return int(unsafe.Sizeof(T(0))) * 8 }

// Len returns the number of bits in the vector.
func (v *V[_]) Len() int { return len(v.s) * v.nbit() }

// Rem returns the number of unset bits in the vector.
func (v *V[_]) Rem() int { return v.rem }

// Grow appends nplus Uints worth of unset bits.
// It returns the value of v.Len prior to growing.
func (v *V[T]) Grow(nplus int) (index int) {
	index = v.Len()
	if nplus > 0 {
		v.rem += nplus * v.nbit()
		v.s = append(v.s, make([]T, nplus)...)
	}
	return
}

// Ensure grows the vector so that bits in [0, n) exist.
func (v *V[T]) Ensure(n int) {
	if d := n - v.Len(); d > 0 {
		nb := v.nbit()
		v.Grow((d + nb - 1) / nb)
	}
}

func (v *V[T]) at(index int) (int, T) {
	n := v.nbit()
	return index / n, T(1) << (index & (n - 1))
}

// Set sets a given bit.
func (v *V[T]) Set(index int) {
	i, b := v.at(index)
	if v.s[i]&b == 0 {
		v.s[i] |= b
		v.rem--
	}
}

// IsSet checks whether a given bit is set.
func (v *V[T]) IsSet(index int) bool {
	i, b := v.at(index)
	return v.s[i]&b != 0
}

// SetRange sets every bit in [index, index+n), growing the
// vector as needed.
func (v *V[T]) SetRange(index, n int) {
	v.Ensure(index + n)
	for i := index; i < index+n; i++ {
		v.Set(i)
	}
}

// Search locates the first unset bit.
// It fails only when v.Rem() == 0.
func (v *V[T]) Search() (index int, ok bool) {
	if v.rem == 0 {
		return
	}
	for i, x := range v.s {
		if x != ^T(0) {
			return i*v.nbit() + bits.TrailingZeros64(uint64(^x)), true
		}
	}
	return
}

// SearchRange locates the first range of n contiguous
// unset bits.
// If ok is true, every bit in [index, index+n) can be set.
func (v *V[T]) SearchRange(n int) (index int, ok bool) {
	if n <= 1 {
		return v.Search()
	}
	if v.rem < n {
		return
	}
	cnt := 0
	for i := range v.Len() {
		if v.IsSet(i) {
			cnt = 0
			continue
		}
		if cnt++; cnt == n {
			return i - n + 1, true
		}
	}
	return
}

// Alloc finds n contiguous unset bits, growing the vector
// if necessary, and sets them.
// It returns the index of the first bit.
func (v *V[T]) Alloc(n int) int {
	if n <= 0 {
		n = 1
	}
	index, ok := v.SearchRange(n)
	if !ok {
		// Extend from the last set bit.
		index = v.Len()
		for index > 0 && !v.IsSet(index-1) {
			index--
		}
	}
	v.SetRange(index, n)
	return index
}

// All returns an iterator over all bits of the vector.
// The second value of the pair indicates whether the bit
// is set.
func (v *V[T]) All() iter.Seq2[int, bool] {
	return func(yield func(int, bool) bool) {
		n := v.nbit()
		for i, x := range v.s {
			for b := range n {
				if !yield(i*n+b, x&(1<<b) != 0) {
					return
				}
			}
		}
	}
}
