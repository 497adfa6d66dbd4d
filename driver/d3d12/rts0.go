// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/gviegas/rootsig/internal/dxbc"
)

// Serialized root signature layout (version 1.0).
const (
	rtsVersion     = 1
	rtsHdrSize     = 24
	rtsParamSize   = 12
	rtsTableSize   = 8
	rtsRangeSize   = 20
	rtsConstSize   = 12
	rtsDescSize    = 8
	rtsSamplerSize = 52
)

var errRTS0 = errors.New("d3d12: malformed root signature blob")

// serializeRTS0 encodes desc as an RTS0 part.
func serializeRTS0(desc *RootSignatureDesc) []byte {
	le := binary.LittleEndian
	b := make([]byte, rtsHdrSize+rtsParamSize*len(desc.Params))
	le.PutUint32(b, rtsVersion)
	le.PutUint32(b[4:], uint32(len(desc.Params)))
	le.PutUint32(b[8:], rtsHdrSize)
	le.PutUint32(b[12:], uint32(len(desc.Samplers)))
	le.PutUint32(b[20:], uint32(desc.Flags))
	for i := range desc.Params {
		p := &desc.Params[i]
		hdr := rtsHdrSize + i*rtsParamSize
		le.PutUint32(b[hdr:], uint32(p.Type))
		le.PutUint32(b[hdr+4:], uint32(p.Visibility))
		le.PutUint32(b[hdr+8:], uint32(len(b)))
		switch p.Type {
		case ParamTable:
			b = le.AppendUint32(b, uint32(len(p.Table)))
			b = le.AppendUint32(b, uint32(len(b)+4))
			for _, r := range p.Table {
				b = le.AppendUint32(b, uint32(r.Type))
				b = le.AppendUint32(b, r.NumDescriptors)
				b = le.AppendUint32(b, r.BaseRegister)
				b = le.AppendUint32(b, r.Space)
				b = le.AppendUint32(b, r.Offset)
			}
		case ParamConstants:
			b = le.AppendUint32(b, p.Constants.Register)
			b = le.AppendUint32(b, p.Constants.Space)
			b = le.AppendUint32(b, p.Constants.Num32)
		default:
			b = le.AppendUint32(b, p.Descriptor.Register)
			b = le.AppendUint32(b, p.Descriptor.Space)
		}
	}
	le.PutUint32(b[16:], uint32(len(b)))
	for _, s := range desc.Samplers {
		for _, x := range [...]uint32{
			s.Filter, s.AddressU, s.AddressV, s.AddressW,
			math.Float32bits(s.MipLODBias), s.MaxAnisotropy,
			s.Comparison, s.BorderColor,
			math.Float32bits(s.MinLOD), math.Float32bits(s.MaxLOD),
			s.Register, s.Space, uint32(s.Visibility),
		} {
			b = le.AppendUint32(b, x)
		}
	}
	return b
}

// rtsReader reads DWORDs with bounds checking.
type rtsReader struct {
	b   []byte
	err error
}

func (r *rtsReader) u32(off uint32) uint32 {
	if r.err != nil {
		return 0
	}
	if uint64(off)+4 > uint64(len(r.b)) {
		r.err = errors.Wrapf(errRTS0, "read at %d past %d bytes", off, len(r.b))
		return 0
	}
	return binary.LittleEndian.Uint32(r.b[off:])
}

// count validates an element count against the space left
// after off.
func (r *rtsReader) count(n, off, size uint32) uint32 {
	if r.err == nil && uint64(off)+uint64(n)*uint64(size) > uint64(len(r.b)) {
		r.err = errors.Wrapf(errRTS0, "%d elements at %d past %d bytes", n, off, len(r.b))
	}
	if r.err != nil {
		return 0
	}
	return n
}

// parseRTS0 decodes an RTS0 part.
func parseRTS0(b []byte) (*RootSignatureDesc, error) {
	r := &rtsReader{b: b}
	if v := r.u32(0); r.err == nil && v != rtsVersion {
		return nil, errors.Wrapf(errRTS0, "version %#x", v)
	}
	np := r.count(r.u32(4), r.u32(8), rtsParamSize)
	poff := r.u32(8)
	ns := r.count(r.u32(12), r.u32(16), rtsSamplerSize)
	soff := r.u32(16)
	desc := &RootSignatureDesc{
		Params:   make([]RootParameter, np),
		Samplers: make([]StaticSampler, ns),
		Flags:    RootFlags(r.u32(20)),
	}
	for i := range desc.Params {
		hdr := poff + uint32(i)*rtsParamSize
		p := &desc.Params[i]
		p.Type = ParamType(r.u32(hdr))
		p.Visibility = Visibility(r.u32(hdr + 4))
		pay := r.u32(hdr + 8)
		switch p.Type {
		case ParamTable:
			roff := r.u32(pay + 4)
			n := r.count(r.u32(pay), roff, rtsRangeSize)
			p.Table = make([]DescriptorRange, n)
			for j := range p.Table {
				x := roff + uint32(j)*rtsRangeSize
				p.Table[j] = DescriptorRange{
					Type:           RangeType(r.u32(x)),
					NumDescriptors: r.u32(x + 4),
					BaseRegister:   r.u32(x + 8),
					Space:          r.u32(x + 12),
					Offset:         r.u32(x + 16),
				}
			}
		case ParamConstants:
			p.Constants = RootConstants{r.u32(pay), r.u32(pay + 4), r.u32(pay + 8)}
		case ParamCBV, ParamSRV, ParamUAV:
			p.Descriptor = RootDescriptor{r.u32(pay), r.u32(pay + 4)}
		default:
			return nil, errors.Wrapf(errRTS0, "parameter %d has type %d", i, p.Type)
		}
	}
	for i := range desc.Samplers {
		x := soff + uint32(i)*rtsSamplerSize
		desc.Samplers[i] = StaticSampler{
			Filter:        r.u32(x),
			AddressU:      r.u32(x + 4),
			AddressV:      r.u32(x + 8),
			AddressW:      r.u32(x + 12),
			MipLODBias:    math.Float32frombits(r.u32(x + 16)),
			MaxAnisotropy: r.u32(x + 20),
			Comparison:    r.u32(x + 24),
			BorderColor:   r.u32(x + 28),
			MinLOD:        math.Float32frombits(r.u32(x + 32)),
			MaxLOD:        math.Float32frombits(r.u32(x + 36)),
			Register:      r.u32(x + 40),
			Space:         r.u32(x + 44),
			Visibility:    Visibility(r.u32(x + 48)),
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return desc, nil
}

// SerializeRootSignature encodes desc as a DXBC container
// holding a single RTS0 part.
func SerializeRootSignature(desc *RootSignatureDesc) []byte {
	return dxbc.Assemble([]dxbc.Part{{FourCC: dxbc.RTS0, Data: serializeRTS0(desc)}})
}

// DeserializeRootSignature decodes a serialized root
// signature. blob can be either a DXBC container or a
// bare RTS0 part.
func DeserializeRootSignature(blob []byte) (*RootSignatureDesc, error) {
	if len(blob) >= 4 && dxbc.FourCC(binary.LittleEndian.Uint32(blob)) == dxbc.Magic {
		c, err := dxbc.Parse(blob)
		if err != nil {
			return nil, err
		}
		p, ok := c.Part(dxbc.RTS0)
		if !ok {
			return nil, errors.Wrap(errRTS0, "no RTS0 part")
		}
		blob = p.Data
	}
	return parseRTS0(blob)
}

// regInterval is a register range of a root signature.
type regInterval struct {
	class RangeType
	space uint32
	first uint32
	last  uint32
	vis   Visibility
	where string
}

func (a *regInterval) overlaps(b *regInterval) bool {
	if a.class != b.class || a.space != b.space {
		return false
	}
	if a.vis != VisAll && b.vis != VisAll && a.vis != b.vis {
		return false
	}
	return a.first <= b.last && b.first <= a.last
}

func interval(class RangeType, space, base, n uint32, vis Visibility, where string) regInterval {
	last := uint32(math.MaxUint32)
	if n != Unbounded && uint64(base)+uint64(n) <= math.MaxUint32 {
		last = base + n - 1
	}
	return regInterval{class, space, base, last, vis, where}
}

// validateRootSignature checks the rules that the native
// runtime enforces on creation.
func validateRootSignature(desc *RootSignatureDesc) error {
	var ivs []regInterval
	for i := range desc.Params {
		p := &desc.Params[i]
		if p.Visibility > VisMesh {
			return errors.Errorf("parameter %d has visibility %d", i, p.Visibility)
		}
		where := func(s string) string { return "parameter " + strconv.Itoa(i) + s }
		switch p.Type {
		case ParamTable:
			if len(p.Table) == 0 {
				return errors.Errorf("parameter %d is an empty table", i)
			}
			smp := p.Table[0].Type == RangeSampler
			for j, r := range p.Table {
				if r.Type > RangeSampler {
					return errors.Errorf("parameter %d range %d has type %d", i, j, r.Type)
				}
				if (r.Type == RangeSampler) != smp {
					return errors.Errorf("parameter %d mixes samplers with other descriptors", i)
				}
				if r.NumDescriptors == 0 {
					return errors.Errorf("parameter %d range %d is empty", i, j)
				}
				ivs = append(ivs, interval(r.Type, r.Space, r.BaseRegister, r.NumDescriptors, p.Visibility, where(" range "+strconv.Itoa(j))))
			}
		case ParamConstants:
			ivs = append(ivs, interval(RangeCBV, p.Constants.Space, p.Constants.Register, 1, p.Visibility, where("")))
		case ParamCBV:
			ivs = append(ivs, interval(RangeCBV, p.Descriptor.Space, p.Descriptor.Register, 1, p.Visibility, where("")))
		case ParamSRV:
			ivs = append(ivs, interval(RangeSRV, p.Descriptor.Space, p.Descriptor.Register, 1, p.Visibility, where("")))
		case ParamUAV:
			ivs = append(ivs, interval(RangeUAV, p.Descriptor.Space, p.Descriptor.Register, 1, p.Visibility, where("")))
		default:
			return errors.Errorf("parameter %d has type %d", i, p.Type)
		}
	}
	for i, s := range desc.Samplers {
		ivs = append(ivs, interval(RangeSampler, s.Space, s.Register, 1, s.Visibility, "static sampler "+strconv.Itoa(i)))
	}
	for i := range ivs {
		for j := i + 1; j < len(ivs); j++ {
			if ivs[i].overlaps(&ivs[j]) {
				a, b := &ivs[i], &ivs[j]
				return errors.Errorf("%s (%s%d space%d) overlaps %s (%s%d space%d)",
					a.where, a.class, a.first, a.space, b.where, b.class, b.first, b.space)
			}
		}
	}
	return nil
}
