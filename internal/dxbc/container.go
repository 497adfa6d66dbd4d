// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package dxbc reads and patches DXBC containers, the file
// format used for compiled D3D shaders and serialized root
// signatures.
package dxbc

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// FourCC identifies a container part.
type FourCC uint32

// MakeFourCC creates a FourCC from its string form.
func MakeFourCC(s string) FourCC {
	if len(s) != 4 {
		panic("dxbc: FourCC must have 4 characters")
	}
	return FourCC(uint32(s[0]) | uint32(s[1])<<8 | uint32(s[2])<<16 | uint32(s[3])<<24)
}

// String returns the FourCC as text.
func (c FourCC) String() string {
	return string([]byte{byte(c), byte(c >> 8), byte(c >> 16), byte(c >> 24)})
}

// Known FourCCs.
var (
	Magic = MakeFourCC("DXBC")
	RDEF  = MakeFourCC("RDEF")
	SHDR  = MakeFourCC("SHDR")
	SHEX  = MakeFourCC("SHEX")
	DXIL  = MakeFourCC("DXIL")
	ILDB  = MakeFourCC("ILDB")
	RTS0  = MakeFourCC("RTS0")
	ISGN  = MakeFourCC("ISGN")
	OSGN  = MakeFourCC("OSGN")
	STAT  = MakeFourCC("STAT")
)

// Header layout.
const (
	checksumOff  = 4
	checksumSize = 16
	versionOff   = checksumOff + checksumSize
	sizeOff      = versionOff + 4
	countOff     = sizeOff + 4
	headerSize   = countOff + 4
	partHdrSize  = 8
)

// ErrFormat is the cause of every parse error.
var ErrFormat = errors.New("dxbc: malformed container")

// Part is a part of a container.
// Data aliases the container's bytes.
type Part struct {
	FourCC FourCC
	Data   []byte
	// Offset of Data in the container.
	Offset int
}

// Container is a parsed DXBC container.
type Container struct {
	raw   []byte
	parts []Part
}

// Parse parses b.
// The returned container references b.
func Parse(b []byte) (*Container, error) {
	if len(b) < headerSize {
		return nil, errors.Wrap(ErrFormat, "short header")
	}
	if FourCC(binary.LittleEndian.Uint32(b)) != Magic {
		return nil, errors.Wrap(ErrFormat, "bad magic")
	}
	size := binary.LittleEndian.Uint32(b[sizeOff:])
	if int(size) != len(b) {
		return nil, errors.Wrapf(ErrFormat, "size is %d, have %d bytes", size, len(b))
	}
	n := int(binary.LittleEndian.Uint32(b[countOff:]))
	if n > (len(b)-headerSize)/4 {
		return nil, errors.Wrapf(ErrFormat, "part count %d", n)
	}
	c := &Container{raw: b, parts: make([]Part, n)}
	for i := range c.parts {
		off := int(binary.LittleEndian.Uint32(b[headerSize+4*i:]))
		if off < headerSize+4*n || off+partHdrSize > len(b) {
			return nil, errors.Wrapf(ErrFormat, "part %d offset %d", i, off)
		}
		psize := int(binary.LittleEndian.Uint32(b[off+4:]))
		if psize > len(b)-off-partHdrSize {
			return nil, errors.Wrapf(ErrFormat, "part %d size %d", i, psize)
		}
		c.parts[i] = Part{
			FourCC: FourCC(binary.LittleEndian.Uint32(b[off:])),
			Data:   b[off+partHdrSize : off+partHdrSize+psize],
			Offset: off + partHdrSize,
		}
	}
	return c, nil
}

// Bytes returns the container's bytes.
func (c *Container) Bytes() []byte { return c.raw }

// Parts returns the container's parts.
func (c *Container) Parts() []Part { return c.parts }

// Part returns the first part identified by cc.
func (c *Container) Part(cc FourCC) (Part, bool) {
	for _, p := range c.parts {
		if p.FourCC == cc {
			return p, true
		}
	}
	return Part{}, false
}

// IsDXIL returns whether the container holds DXIL
// rather than legacy bytecode.
func (c *Container) IsDXIL() bool {
	_, dxil := c.Part(DXIL)
	_, ildb := c.Part(ILDB)
	return dxil || ildb
}

// Program returns the part that holds the program,
// which is one of DXIL, SHEX or SHDR.
func (c *Container) Program() (Part, bool) {
	for _, cc := range [...]FourCC{DXIL, SHEX, SHDR} {
		if p, ok := c.Part(cc); ok {
			return p, true
		}
	}
	return Part{}, false
}

// IsDXIL sniffs b for DXIL.
// It returns false for anything that is not a valid
// container.
func IsDXIL(b []byte) bool {
	c, err := Parse(b)
	if err != nil {
		return false
	}
	return c.IsDXIL()
}

// Assemble creates a container from a list of parts.
// Only FourCC and Data of each part are used.
// The checksum is computed.
func Assemble(parts []Part) []byte {
	size := headerSize + 4*len(parts)
	for _, p := range parts {
		size += partHdrSize + len(p.Data)
	}
	b := make([]byte, size)
	binary.LittleEndian.PutUint32(b, uint32(Magic))
	binary.LittleEndian.PutUint32(b[versionOff:], 1)
	binary.LittleEndian.PutUint32(b[sizeOff:], uint32(size))
	binary.LittleEndian.PutUint32(b[countOff:], uint32(len(parts)))
	off := headerSize + 4*len(parts)
	for i, p := range parts {
		binary.LittleEndian.PutUint32(b[headerSize+4*i:], uint32(off))
		binary.LittleEndian.PutUint32(b[off:], uint32(p.FourCC))
		binary.LittleEndian.PutUint32(b[off+4:], uint32(len(p.Data)))
		copy(b[off+partHdrSize:], p.Data)
		off += partHdrSize + len(p.Data)
	}
	Sign(b)
	return b
}

// Sign computes the checksum of the container in b and
// stores it in the header.
func Sign(b []byte) {
	sum := Checksum(b)
	copy(b[checksumOff:versionOff], sum[:])
}

// Verify returns whether the checksum stored in b is
// correct.
func Verify(b []byte) bool {
	if len(b) < headerSize {
		return false
	}
	sum := Checksum(b)
	for i := range sum {
		if b[checksumOff+i] != sum[i] {
			return false
		}
	}
	return true
}

// ProgramVersion is the version token at the start of
// a program part.
type ProgramVersion uint32

// Program types.
const (
	PixelShader    = 0
	VertexShader   = 1
	GeometryShader = 2
	HullShader     = 3
	DomainShader   = 4
	ComputeShader  = 5
	LibraryShader  = 6
	MeshShader     = 13
	AmplShader     = 14
)

// MakeProgramVersion creates a version token.
func MakeProgramVersion(typ, major, minor int) ProgramVersion {
	return ProgramVersion(typ<<16 | (major&15)<<4 | minor&15)
}

// Type returns the program type.
func (v ProgramVersion) Type() int { return int(v >> 16) }

// Major returns the major shader model version.
func (v ProgramVersion) Major() int { return int(v>>4) & 15 }

// Minor returns the minor shader model version.
func (v ProgramVersion) Minor() int { return int(v) & 15 }

// Version returns the version token of the container's
// program.
func (c *Container) Version() (ProgramVersion, error) {
	p, ok := c.Program()
	if !ok {
		return 0, errors.Wrap(ErrFormat, "no program part")
	}
	if len(p.Data) < 4 {
		return 0, errors.Wrapf(ErrFormat, "%s part too short", p.FourCC)
	}
	return ProgramVersion(binary.LittleEndian.Uint32(p.Data)), nil
}
