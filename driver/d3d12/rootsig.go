// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import (
	"strconv"
	"sync/atomic"

	"github.com/gviegas/rootsig/internal/bitvec"
)

// MaxRootCost is the size limit of a root signature, in
// DWORDs. Tables cost one DWORD and root views cost two.
const (
	MaxRootCost = 64
	tableCost   = 1
	viewCost    = 2
)

// SignatureBase is the location of a signature's root
// parameters and register spaces in a root signature.
type SignatureBase struct {
	RootIndex     uint32
	RegisterSpace uint32
}

// RootSignature is a native root signature composed from a
// number of signatures.
// It implements driver.Layout.
type RootSignature struct {
	cache  *rootSigCache
	sigs   []*Signature
	base   []SignatureBase
	spaces uint32
	desc   RootSignatureDesc
	native NativeRootSignature
	hash   uint64
	refs   atomic.Int32
}

// newRootSignature composes sigs into a new root signature.
// sigs is indexed by binding index; nil entries are
// skipped and reserve nothing.
// hash is stored as is.
func newRootSignature(dev Device, sigs []*Signature, hash uint64, cfg *Config) (*RootSignature, error) {
	const op = "CreateRootSignature"

	// Sizing pass.
	var nparam, nrange, nsplr, cost int
	for _, s := range sigs {
		if s == nil {
			continue
		}
		nparam += s.TotalRootParamCount()
		cost += s.NumRootTables()*tableCost + s.NumRootViews()*viewCost
		for i := range s.NumRootTables() {
			nrange += len(s.RootTable(i).Ranges)
		}
		for i := range s.ImmutableSamplerCount() {
			if a := s.ImmutableSamplerAttribs(i); a.Valid {
				nsplr += int(a.ArraySize)
			}
		}
	}

	if cost > MaxRootCost {
		return nil, configErr(op, "root signature costs %d DWORDs, limit is %d", cost, MaxRootCost)
	}

	rs := &RootSignature{
		sigs: make([]*Signature, len(sigs)),
		base: make([]SignatureBase, len(sigs)),
		desc: RootSignatureDesc{
			Params:   make([]RootParameter, nparam),
			Samplers: make([]StaticSampler, 0, nsplr),
			Flags:    FlagAllowInputLayout,
		},
		hash: hash,
	}
	ranges := make([]DescriptorRange, nrange)
	var slots bitvec.V[uint32]
	if cfg.DebugChecks {
		slots.Ensure(nparam)
	}
	setSlot := func(i uint32) *RootParameter {
		if cfg.DebugChecks {
			if slots.IsSet(int(i)) {
				panic("d3d12: root parameter " + strconv.FormatUint(uint64(i), 10) + " written twice")
			}
			slots.Set(int(i))
		}
		return &rs.desc.Params[i]
	}

	// Filling pass.
	var rootIndex, space uint32
	nrange = 0
	for bi, s := range sigs {
		rs.base[bi] = SignatureBase{RootIndex: rootIndex, RegisterSpace: space}
		if s == nil {
			continue
		}
		rs.sigs[bi] = s
		for i := range s.NumRootTables() {
			t := s.RootTable(i)
			n := len(t.Ranges)
			dst := ranges[nrange : nrange+n : nrange+n]
			nrange += n
			for j, r := range t.Ranges {
				r.Space += space
				dst[j] = r
			}
			*setSlot(rootIndex + t.RootIndex) = RootParameter{
				Type:       ParamTable,
				Visibility: t.Visibility,
				Table:      dst,
			}
		}
		for i := range s.NumRootViews() {
			v := s.RootView(i)
			*setSlot(rootIndex + v.RootIndex) = RootParameter{
				Type:       v.Type,
				Visibility: v.Visibility,
				Descriptor: RootDescriptor{Register: v.Register, Space: v.Space + space},
			}
		}
		for i := range s.ImmutableSamplerCount() {
			a := s.ImmutableSamplerAttribs(i)
			if !a.Valid {
				continue
			}
			for k := range a.ArraySize {
				ss := *s.ImmutableSampler(i)
				ss.Register = a.Register + k
				ss.Space = a.Space + space
				rs.desc.Samplers = append(rs.desc.Samplers, ss)
			}
		}
		rootIndex += uint32(s.TotalRootParamCount())
		space += s.MaxSpaceUsed() + 1
	}
	rs.spaces = space
	if cfg.DebugChecks {
		for i, set := range slots.All() {
			if i >= nparam {
				break
			}
			if !set {
				panic("d3d12: root parameter " + strconv.Itoa(i) + " not written")
			}
		}
	}

	blob, err := dev.SerializeRootSignature(&rs.desc)
	if err != nil {
		return nil, nativeErr(op, err, "failed to serialize root signature with %d parameters", nparam)
	}
	rs.native, err = dev.CreateRootSignature(cfg.NodeMask, blob)
	if err != nil {
		return nil, nativeErr(op, err, "failed to create root signature")
	}
	for _, s := range rs.sigs {
		if s != nil {
			s.AddRef()
		}
	}
	rs.refs.Store(1)
	log().Debug("root signature created",
		"hash", hash,
		"device", dev.Name(),
		"params", nparam,
		"ranges", nrange,
		"samplers", len(rs.desc.Samplers),
		"spaces", rs.spaces)
	return rs, nil
}

// Hash returns the combined hash of the root signature's
// signatures.
func (rs *RootSignature) Hash() uint64 { return rs.hash }

// NumSignatures returns the number of signature slots,
// including nil ones.
func (rs *RootSignature) NumSignatures() int { return len(rs.sigs) }

// Signature returns the signature whose binding index is
// i. It returns nil for unused binding indices.
func (rs *RootSignature) Signature(i int) *Signature {
	if i < 0 || i >= len(rs.sigs) {
		return nil
	}
	return rs.sigs[i]
}

// Base returns the base root index and register space of
// the signature whose binding index is i.
func (rs *RootSignature) Base(i int) SignatureBase { return rs.base[i] }

// TotalSpacesUsed returns the number of register spaces
// reserved by the root signature's signatures.
func (rs *RootSignature) TotalSpacesUsed() uint32 { return rs.spaces }

// Desc returns the native description.
// It must not be modified.
func (rs *RootSignature) Desc() *RootSignatureDesc { return &rs.desc }

// Native returns the native root signature.
func (rs *RootSignature) Native() NativeRootSignature { return rs.native }

// tryAddRef increments the reference count unless it has
// dropped to zero.
func (rs *RootSignature) tryAddRef() bool {
	for {
		n := rs.refs.Load()
		if n <= 0 {
			return false
		}
		if rs.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release releases one reference to rs.
// The last release destroys the native root signature,
// releases the signatures and sweeps the cache bucket
// that rs belongs to.
func (rs *RootSignature) Release() {
	switch n := rs.refs.Add(-1); {
	case n > 0:
		return
	case n < 0:
		panic("d3d12: root signature released too many times")
	}
	rs.native.Release()
	for _, s := range rs.sigs {
		if s != nil {
			s.Destroy()
		}
	}
	if rs.cache != nil {
		rs.cache.sweep(rs.hash)
	}
	log().Debug("root signature destroyed", "hash", rs.hash)
}

// Destroy implements driver.Destroyer.
func (rs *RootSignature) Destroy() {
	if rs != nil {
		rs.Release()
	}
}
