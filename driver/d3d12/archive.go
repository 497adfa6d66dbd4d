// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import (
	"encoding/binary"
	"slices"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/gviegas/rootsig/driver"
)

// archiveHeader is the fixed-size prefix of a signature's
// internal data.
type archiveHeader struct {
	ShaderStages   uint32
	StaticStages   uint32
	PipelineType   uint8
	_              uint8
	StaticStgIndex [maxStaticStages]int8
	AttribsOffset  uint64
	NumAttribs     uint32
	_              uint32
	SamplersOffset uint64
	NumSamplers    uint32
	_              uint32
}

const (
	archiveHdrSize     = 48
	resAttribsSize     = 16
	splrAttribsSize    = 8
	attribsRegMask     = 1<<24 - 1
	attribsSpaceShift  = 24
	attribsInvalidWord = invalidIndex
)

// The header must not change size.
const (
	_ = uint(archiveHdrSize - unsafe.Sizeof(archiveHeader{}))
	_ = uint(unsafe.Sizeof(archiveHeader{}) - archiveHdrSize)
)

var errArchive = errors.New("d3d12: malformed signature internal data")

// append appends the wire form of a to b.
func (a *ResourceAttribs) append(b []byte) []byte {
	le := binary.LittleEndian
	b = le.AppendUint32(b, a.Register&attribsRegMask|uint32(a.Space)<<attribsSpaceShift)
	b = le.AppendUint16(b, a.RootIndex)
	b = append(b, uint8(a.ParamType))
	if a.ImtblAssigned {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	b = le.AppendUint32(b, a.OffsetFromTableStart)
	return le.AppendUint32(b, a.ImtblSamplerIndex)
}

func (a *ResourceAttribs) decode(b []byte) {
	le := binary.LittleEndian
	x := le.Uint32(b)
	*a = ResourceAttribs{
		Register:             x & attribsRegMask,
		Space:                uint8(x >> attribsSpaceShift),
		RootIndex:            le.Uint16(b[4:]),
		ParamType:            ParamType(b[6]),
		ImtblAssigned:        b[7] != 0,
		OffsetFromTableStart: le.Uint32(b[8:]),
		ImtblSamplerIndex:    le.Uint32(b[12:]),
	}
}

// append appends the wire form of a to b.
// Invalid attribs are written as all ones.
func (a *ImmutableSamplerAttribs) append(b []byte) []byte {
	le := binary.LittleEndian
	if !a.Valid {
		b = le.AppendUint32(b, attribsInvalidWord)
		return le.AppendUint32(b, attribsInvalidWord)
	}
	b = le.AppendUint32(b, a.ArraySize)
	return le.AppendUint32(b, a.Register&attribsRegMask|a.Space<<attribsSpaceShift)
}

func (a *ImmutableSamplerAttribs) decode(b []byte) {
	le := binary.LittleEndian
	n, x := le.Uint32(b), le.Uint32(b[4:])
	if n == attribsInvalidWord && x == attribsInvalidWord {
		*a = ImmutableSamplerAttribs{}
		return
	}
	*a = ImmutableSamplerAttribs{
		ArraySize: n,
		Register:  x & attribsRegMask,
		Space:     x >> attribsSpaceShift,
		Valid:     true,
	}
}

// InternalData returns the serialized form of the
// signature's derived state.
// It does not include the description itself.
func (s *Signature) InternalData() []byte {
	hdr := archiveHeader{
		ShaderStages:   uint32(s.stages),
		StaticStages:   uint32(s.staticStgs),
		PipelineType:   uint8(s.ptype),
		StaticStgIndex: s.stgIndex,
		AttribsOffset:  archiveHdrSize,
		NumAttribs:     uint32(len(s.attribs)),
		NumSamplers:    uint32(len(s.splrAttr)),
	}
	hdr.SamplersOffset = hdr.AttribsOffset + uint64(len(s.attribs))*resAttribsSize
	n := int(hdr.SamplersOffset) + len(s.splrAttr)*splrAttribsSize
	b, err := binary.Append(make([]byte, 0, n), binary.LittleEndian, &hdr)
	if err != nil {
		// Fixed-size header.
		panic(err)
	}
	for i := range s.attribs {
		b = s.attribs[i].append(b)
	}
	for i := range s.splrAttr {
		b = s.splrAttr[i].append(b)
	}
	return b
}

// NewSignatureFromInternalData recreates a signature from
// its description and the data produced by InternalData.
// Registers and root parameters are taken from data rather
// than derived from desc.
func NewSignatureFromInternalData(desc *driver.SignatureDesc, data []byte) (*Signature, error) {
	const op = "NewSignatureFromInternalData"
	s := &Signature{desc: copyDesc(desc)}
	if err := s.validate(); err != nil {
		return nil, err
	}
	var hdr archiveHeader
	if _, err := binary.Decode(data, binary.LittleEndian, &hdr); err != nil {
		return nil, configErr(op, "%q: %v", s.desc.Name, errors.Wrap(errArchive, err.Error()))
	}
	switch {
	case int(hdr.NumAttribs) != len(s.desc.Descs):
		return nil, configErr(op, "%q: data has %d resources, description has %d", s.desc.Name, hdr.NumAttribs, len(s.desc.Descs))
	case int(hdr.NumSamplers) != len(s.desc.Splrs):
		return nil, configErr(op, "%q: data has %d immutable samplers, description has %d", s.desc.Name, hdr.NumSamplers, len(s.desc.Splrs))
	case !inBounds(hdr.AttribsOffset, uint64(hdr.NumAttribs)*resAttribsSize, len(data)),
		!inBounds(hdr.SamplersOffset, uint64(hdr.NumSamplers)*splrAttribsSize, len(data)):
		return nil, configErr(op, "%q: %v", s.desc.Name, errors.Wrapf(errArchive, "arrays past %d bytes", len(data)))
	}
	s.stages = driver.Stage(hdr.ShaderStages)
	s.staticStgs = driver.Stage(hdr.StaticStages)
	s.ptype = driver.PipelineType(hdr.PipelineType)
	s.stgIndex = hdr.StaticStgIndex
	s.attribs = make([]ResourceAttribs, hdr.NumAttribs)
	for i := range s.attribs {
		s.attribs[i].decode(data[hdr.AttribsOffset+uint64(i)*resAttribsSize:])
		s.maxSpace = max(s.maxSpace, uint32(s.attribs[i].Space))
	}
	s.splrAttr = make([]ImmutableSamplerAttribs, hdr.NumSamplers)
	for i := range s.splrAttr {
		s.splrAttr[i].decode(data[hdr.SamplersOffset+uint64(i)*splrAttribsSize:])
	}
	if err := s.rebuildRootParams(); err != nil {
		return nil, err
	}
	s.initSamplers()
	s.hash = s.computeHash()
	s.refs.Store(1)
	return s, nil
}

// inBounds reports whether n bytes starting at off fit in
// a buffer of the given size.
func inBounds(off, n uint64, size int) bool {
	return off <= uint64(size) && n <= uint64(size)-off
}

// rebuildRootParams recreates root tables and views from
// the resource attribs.
func (s *Signature) rebuildRootParams() error {
	const op = "NewSignatureFromInternalData"
	tables := make(map[uint16]int)
	for i := range s.attribs {
		r := &s.desc.Descs[i]
		a := &s.attribs[i]
		if a.ImtblAssigned {
			if int(a.ImtblSamplerIndex) >= len(s.splrAttr) {
				return configErr(op, "%q: resource %q refers to immutable sampler %d", s.desc.Name, r.Name, a.ImtblSamplerIndex)
			}
			continue
		}
		vis := convStage(r.Stages)
		switch a.ParamType {
		case ParamCBV, ParamSRV, ParamUAV:
			s.views = append(s.views, RootView{
				RootIndex:  uint32(a.RootIndex),
				Type:       a.ParamType,
				Visibility: vis,
				Register:   a.Register,
				Space:      uint32(a.Space),
			})
		case ParamTable:
			t, ok := tables[a.RootIndex]
			if !ok {
				t = len(s.tables)
				tables[a.RootIndex] = t
				s.tables = append(s.tables, RootTable{RootIndex: uint32(a.RootIndex), Visibility: vis})
			}
			n := uint32(r.Len)
			if r.Flags&driver.FRuntimeArray != 0 {
				n = Unbounded
			}
			s.tables[t].Ranges = append(s.tables[t].Ranges, DescriptorRange{
				Type:           rangeType(r.Type),
				NumDescriptors: n,
				BaseRegister:   a.Register,
				Space:          uint32(a.Space),
				Offset:         a.OffsetFromTableStart,
			})
		default:
			return configErr(op, "%q: resource %q has parameter type %d", s.desc.Name, r.Name, a.ParamType)
		}
	}
	slices.SortFunc(s.tables, func(a, b RootTable) int { return int(a.RootIndex) - int(b.RootIndex) })
	slices.SortFunc(s.views, func(a, b RootView) int { return int(a.RootIndex) - int(b.RootIndex) })
	seen := make(map[uint32]bool)
	for _, t := range s.tables {
		seen[t.RootIndex] = true
	}
	for _, v := range s.views {
		if seen[v.RootIndex] {
			return configErr(op, "%q: root index %d is used more than once", s.desc.Name, v.RootIndex)
		}
		seen[v.RootIndex] = true
	}
	for i := range s.TotalRootParamCount() {
		if !seen[uint32(i)] {
			return configErr(op, "%q: root index %d is not used", s.desc.Name, i)
		}
	}
	return nil
}
