// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package dxbc

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// The container checksum is MD5 with a non-standard final
// block, so the compression function is needed on its own.
// crypto/md5 does not expose it.

var md5Shift = [64]int{
	7, 12, 17, 22, 7, 12, 17, 22, 7, 12, 17, 22, 7, 12, 17, 22,
	5, 9, 14, 20, 5, 9, 14, 20, 5, 9, 14, 20, 5, 9, 14, 20,
	4, 11, 16, 23, 4, 11, 16, 23, 4, 11, 16, 23, 4, 11, 16, 23,
	6, 10, 15, 21, 6, 10, 15, 21, 6, 10, 15, 21, 6, 10, 15, 21,
}

var md5K [64]uint32

func init() {
	for i := range md5K {
		md5K[i] = uint32(math.Floor(math.Abs(math.Sin(float64(i+1))) * (1 << 32)))
	}
}

type md5State [4]uint32

func newMD5State() md5State {
	return md5State{0x67452301, 0xefcdab89, 0x98badcfe, 0x10325476}
}

// block compresses one 64-byte block into s.
func (s *md5State) block(p []byte) {
	var m [16]uint32
	for i := range m {
		m[i] = binary.LittleEndian.Uint32(p[4*i:])
	}
	a, b, c, d := s[0], s[1], s[2], s[3]
	for i := 0; i < 64; i++ {
		var f uint32
		var g int
		switch i / 16 {
		case 0:
			f = b&c | ^b&d
			g = i
		case 1:
			f = d&b | ^d&c
			g = (5*i + 1) & 15
		case 2:
			f = b ^ c ^ d
			g = (3*i + 5) & 15
		default:
			f = c ^ (b | ^d)
			g = (7 * i) & 15
		}
		f += a + md5K[i] + m[g]
		a, d, c = d, c, b
		b += bits.RotateLeft32(f, md5Shift[i])
	}
	s[0] += a
	s[1] += b
	s[2] += c
	s[3] += d
}

func (s *md5State) sum() (out [16]byte) {
	for i, x := range s {
		binary.LittleEndian.PutUint32(out[4*i:], x)
	}
	return
}

// Checksum computes the checksum of the container in b.
// The bytes that hold the magic and the checksum itself
// are not included.
func Checksum(b []byte) [16]byte {
	data := b[versionOff:]
	n := len(data)
	nbits := uint32(n * 8)
	tail := (nbits >> 2) | 1
	full := n - n%64
	left := n - full

	s := newMD5State()
	for i := 0; i < full; i += 64 {
		s.block(data[i : i+64])
	}
	var blk [64]byte
	if left >= 56 {
		copy(blk[:], data[full:])
		blk[left] = 0x80
		s.block(blk[:])
		blk = [64]byte{}
		binary.LittleEndian.PutUint32(blk[:], nbits)
		binary.LittleEndian.PutUint32(blk[60:], tail)
		s.block(blk[:])
	} else {
		binary.LittleEndian.PutUint32(blk[:], nbits)
		copy(blk[4:], data[full:])
		blk[4+left] = 0x80
		binary.LittleEndian.PutUint32(blk[60:], tail)
		s.block(blk[:])
	}
	return s.sum()
}
