// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package dxbc

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// InputType is the type of a shader input, as recorded in
// the RDEF part (D3D_SHADER_INPUT_TYPE).
type InputType uint32

// Shader input types.
const (
	InputCBuffer InputType = iota
	InputTBuffer
	InputTexture
	InputSampler
	InputUAVTyped
	InputStructured
	InputUAVStructured
	InputByteAddress
	InputUAVByteAddress
	InputUAVAppend
	InputUAVConsume
	InputUAVStructuredCounter
	InputAccelStruct
	InputUAVFeedback
)

// Class returns the register class of t.
func (t InputType) Class() Class {
	switch t {
	case InputCBuffer:
		return ClassCBuffer
	case InputSampler:
		return ClassSampler
	case InputUAVTyped, InputUAVStructured, InputUAVByteAddress,
		InputUAVAppend, InputUAVConsume, InputUAVStructuredCounter, InputUAVFeedback:
		return ClassUAV
	}
	return ClassSRV
}

// String returns the name of the input type.
func (t InputType) String() string {
	names := [...]string{
		"cbuffer", "tbuffer", "texture", "sampler", "uav_typed",
		"structured", "uav_structured", "byteaddress", "uav_byteaddress",
		"uav_append", "uav_consume", "uav_structured_counter",
		"accelstruct", "uav_feedback",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "unknown"
}

// Class is a register class.
type Class int

// Register classes.
const (
	ClassCBuffer Class = iota
	ClassSRV
	ClassUAV
	ClassSampler
)

// String returns the register prefix of the class.
func (c Class) String() string {
	switch c {
	case ClassCBuffer:
		return "b"
	case ClassSRV:
		return "t"
	case ClassUAV:
		return "u"
	case ClassSampler:
		return "s"
	}
	return "?"
}

// Dimension values of interest (D3D_SRV_DIMENSION).
const (
	DimUnknown  = 0
	DimBuffer   = 1
	DimBufferEx = 11
)

// Binding is a resource binding recorded in the RDEF part.
// BindCount is 0 for unbounded arrays.
// Space and ID are only meaningful for SM 5.1 and later.
type Binding struct {
	Name       string
	Type       InputType
	ReturnType uint32
	Dimension  uint32
	NumSamples uint32
	BindPoint  uint32
	BindCount  uint32
	Flags      uint32
	Space      uint32
	ID         uint32
}

// IsBuffer returns whether the binding refers to a buffer
// rather than to a texture.
func (b *Binding) IsBuffer() bool {
	switch b.Type {
	case InputTBuffer, InputStructured, InputByteAddress, InputUAVStructured,
		InputUAVByteAddress, InputUAVAppend, InputUAVConsume, InputUAVStructuredCounter:
		return true
	case InputTexture, InputUAVTyped:
		return b.Dimension == DimBuffer || b.Dimension == DimBufferEx
	}
	return false
}

// RDEF layout.
const (
	rdefHdrSize    = 28
	rdefBindOff    = 12
	rdefBindCnt    = 8
	rdefVersionOff = 16
	bindSize50     = 32
	bindSize51     = 40
)

// rdef is a parsed RDEF part.
type rdef struct {
	off      int // offset of data in the container
	major    int
	minor    int
	bindOff  int
	bindSize int
	binds    []Binding
}

func parseRDEF(p Part) (*rdef, error) {
	d := p.Data
	if len(d) < rdefHdrSize {
		return nil, errors.Wrap(ErrFormat, "short RDEF")
	}
	r := &rdef{
		off:   p.Offset,
		minor: int(d[rdefVersionOff]),
		major: int(d[rdefVersionOff+1]),
	}
	n := int(binary.LittleEndian.Uint32(d[rdefBindCnt:]))
	r.bindOff = int(binary.LittleEndian.Uint32(d[rdefBindOff:]))
	r.bindSize = bindSize50
	if r.major > 5 || r.major == 5 && r.minor >= 1 {
		r.bindSize = bindSize51
	}
	if n < 0 || r.bindOff > len(d) || n > (len(d)-r.bindOff)/r.bindSize {
		return nil, errors.Wrapf(ErrFormat, "RDEF bindings [%d x %d] at %d", n, r.bindSize, r.bindOff)
	}
	r.binds = make([]Binding, n)
	for i := range r.binds {
		rec := d[r.bindOff+i*r.bindSize:]
		name, err := cstring(d, binary.LittleEndian.Uint32(rec))
		if err != nil {
			return nil, err
		}
		b := &r.binds[i]
		b.Name = name
		b.Type = InputType(binary.LittleEndian.Uint32(rec[4:]))
		b.ReturnType = binary.LittleEndian.Uint32(rec[8:])
		b.Dimension = binary.LittleEndian.Uint32(rec[12:])
		b.NumSamples = binary.LittleEndian.Uint32(rec[16:])
		b.BindPoint = binary.LittleEndian.Uint32(rec[20:])
		b.BindCount = binary.LittleEndian.Uint32(rec[24:])
		b.Flags = binary.LittleEndian.Uint32(rec[28:])
		if r.bindSize == bindSize51 {
			b.Space = binary.LittleEndian.Uint32(rec[32:])
			b.ID = binary.LittleEndian.Uint32(rec[36:])
		}
	}
	return r, nil
}

// patch writes new bind point and space of binding i.
// The space is dropped for SM 5.0 records.
func (r *rdef) patch(out []byte, i int, bindPoint, space uint32) {
	rec := out[r.off+r.bindOff+i*r.bindSize:]
	binary.LittleEndian.PutUint32(rec[20:], bindPoint)
	if r.bindSize == bindSize51 {
		binary.LittleEndian.PutUint32(rec[32:], space)
	}
}

func cstring(d []byte, off uint32) (string, error) {
	if int(off) >= len(d) {
		return "", errors.Wrapf(ErrFormat, "string offset %d", off)
	}
	n := bytes.IndexByte(d[off:], 0)
	if n < 0 {
		return "", errors.Wrap(ErrFormat, "unterminated string")
	}
	return string(d[off : int(off)+n]), nil
}

// Reflect returns the resource bindings of the legacy
// bytecode in b.
func Reflect(b []byte) ([]Binding, error) {
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	return c.Reflect()
}

// Reflect returns the resource bindings of the container.
// It fails for DXIL, whose reflection data is not stored
// in RDEF form.
func (c *Container) Reflect() ([]Binding, error) {
	p, ok := c.Part(RDEF)
	if !ok {
		return nil, errors.Wrap(ErrFormat, "no RDEF part")
	}
	r, err := parseRDEF(p)
	if err != nil {
		return nil, err
	}
	return r.binds, nil
}
