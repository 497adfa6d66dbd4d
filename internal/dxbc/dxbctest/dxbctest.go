// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package dxbctest builds synthetic shader containers for
// tests.
package dxbctest

import (
	"encoding/binary"

	"github.com/gviegas/rootsig/internal/dxbc"
)

// Resource describes an RDEF binding.
type Resource struct {
	Name      string
	Type      dxbc.InputType
	Dimension uint32
	BindPoint uint32
	BindCount uint32
	Space     uint32
	ID        uint32
}

// RDEF creates the data of an RDEF part.
// Records are 40 bytes long if the version is 5.1 or
// later and 32 bytes long otherwise.
func RDEF(major, minor int, res []Resource) []byte {
	hdr := 28
	if major >= 5 {
		hdr = 60
	}
	rec := 32
	if major > 5 || major == 5 && minor >= 1 {
		rec = 40
	}
	const creator = "dxbctest\x00"
	strOff := hdr + rec*len(res)
	size := strOff + len(creator)
	for _, r := range res {
		size += len(r.Name) + 1
	}
	size = (size + 3) &^ 3

	b := make([]byte, size)
	put := func(off int, v uint32) { binary.LittleEndian.PutUint32(b[off:], v) }
	put(8, uint32(len(res)))
	put(12, uint32(hdr))
	b[16] = byte(minor)
	b[17] = byte(major)
	put(24, uint32(strOff))
	copy(b[strOff:], creator)
	if hdr == 60 {
		copy(b[28:], "RD11")
		put(32, 60)
		put(36, 24)
		put(40, 40)
		put(44, 36)
		put(48, 12)
		put(52, uint32(rec))
	}
	str := strOff + len(creator)
	for i, r := range res {
		off := hdr + i*rec
		put(off, uint32(str))
		put(off+4, uint32(r.Type))
		put(off+12, r.Dimension)
		put(off+20, r.BindPoint)
		put(off+24, r.BindCount)
		if rec == 40 {
			put(off+32, r.Space)
			put(off+36, r.ID)
		}
		copy(b[str:], r.Name)
		str += len(r.Name) + 1
	}
	return b
}

// Operand types.
const (
	OTemp     = 0
	OInput    = 1
	OImm32    = 4
	OSampler  = 6
	OResource = 7
	OCBuffer  = 8
	OUAV      = 30
)

// Opcodes.
const (
	OpLd                = 45
	OpCustomData        = 53
	OpMov               = 54
	OpRet               = 62
	OpSample            = 69
	OpDclResource       = 88
	OpDclConstantBuffer = 89
	OpDclSampler        = 90
	OpDclInput          = 95
	OpDclTemps          = 104
	OpDclGlobalFlags    = 106
	OpInterfaceCall     = 120
	OpDclThreadGroup    = 155
	OpDclUAVTyped       = 156
	OpDclUAVRaw         = 157
	OpDclResourceStruct = 162
	OpStoreUAVTyped     = 164
)

// Operand creates a four-component operand of type typ
// whose indices are all immediate.
func Operand(typ uint32, index ...uint32) []uint32 {
	tok := uint32(2) | typ<<12 | uint32(len(index))<<20
	return append([]uint32{tok}, index...)
}

// RelOperand creates a four-component operand whose last
// index is an immediate added to a temporary register.
func RelOperand(typ uint32, temp uint32, index ...uint32) []uint32 {
	n := len(index)
	tok := uint32(2) | typ<<12 | uint32(n)<<20 | 3<<(22+3*(n-1))
	w := append([]uint32{tok}, index...)
	return append(w, 1|OTemp<<12|1<<20, temp)
}

// Imm32 creates an immediate operand.
func Imm32(v ...uint32) []uint32 {
	nc := uint32(1)
	if len(v) == 4 {
		nc = 2
	}
	return append([]uint32{nc | OImm32<<12}, v...)
}

// Program builds a SHDR/SHEX program.
type Program struct {
	words []uint32
}

// NewProgram creates a program of the given type and
// shader model.
func NewProgram(typ, major, minor int) *Program {
	return &Program{words: []uint32{uint32(dxbc.MakeProgramVersion(typ, major, minor)), 0}}
}

// Inst appends an instruction.
func (p *Program) Inst(op uint32, operands ...[]uint32) *Program {
	return p.inst(op, false, operands)
}

// InstExt appends an instruction that has an extended
// opcode token.
func (p *Program) InstExt(op uint32, operands ...[]uint32) *Program {
	return p.inst(op, true, operands)
}

func (p *Program) inst(op uint32, ext bool, operands [][]uint32) *Program {
	n := 1
	if ext {
		n++
	}
	for _, o := range operands {
		n += len(o)
	}
	tok := op | uint32(n)<<24
	if ext {
		tok |= 1 << 31
	}
	p.words = append(p.words, tok)
	if ext {
		p.words = append(p.words, 1)
	}
	for _, o := range operands {
		p.words = append(p.words, o...)
	}
	return p
}

// CustomData appends a custom data block.
func (p *Program) CustomData(data ...uint32) *Program {
	p.words = append(p.words, OpCustomData, uint32(len(data)+2))
	p.words = append(p.words, data...)
	return p
}

// Words returns the program tokens.
func (p *Program) Words() []uint32 {
	p.words[1] = uint32(len(p.words))
	return p.words
}

// Bytes returns the program data.
func (p *Program) Bytes() []byte {
	w := p.Words()
	b := make([]byte, 4*len(w))
	for i, x := range w {
		binary.LittleEndian.PutUint32(b[4*i:], x)
	}
	return b
}

// Shader creates a container with RDEF and program parts.
// The program part is SHEX for shader model 5 and later and
// SHDR otherwise.
func Shader(typ, major, minor int, res []Resource, p *Program) []byte {
	cc := dxbc.SHEX
	if major < 5 {
		cc = dxbc.SHDR
	}
	return dxbc.Assemble([]dxbc.Part{
		{FourCC: dxbc.RDEF, Data: RDEF(major, minor, res)},
		{FourCC: dxbc.ISGN, Data: make([]byte, 8)},
		{FourCC: cc, Data: p.Bytes()},
	})
}

// DXIL creates a container with a DXIL part.
// The program version is stored in the DXIL program
// header.
func DXIL(typ, major, minor int, payload []byte) []byte {
	d := make([]byte, 24+len(payload))
	binary.LittleEndian.PutUint32(d, uint32(dxbc.MakeProgramVersion(typ, major, minor)))
	binary.LittleEndian.PutUint32(d[4:], uint32(len(d)/4))
	copy(d[8:], "DXIL")
	copy(d[24:], payload)
	return dxbc.Assemble([]dxbc.Part{{FourCC: dxbc.DXIL, Data: d}})
}

// Word reads the i-th DWORD of the program part of the
// container in b.
func Word(b []byte, i int) uint32 {
	c, err := dxbc.Parse(b)
	if err != nil {
		panic(err)
	}
	p, ok := c.Program()
	if !ok {
		panic("dxbctest: no program")
	}
	return binary.LittleEndian.Uint32(p.Data[4*i:])
}
