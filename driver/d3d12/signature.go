// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import (
	"encoding/binary"
	"math"
	"slices"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"

	"github.com/gviegas/rootsig/driver"
	"github.com/gviegas/rootsig/internal/bitvec"
)

// MaxSignatures is the maximum number of signatures that
// a root signature can be composed from.
const MaxSignatures = 8

// maxStaticStages is the number of stages for which a
// signature can hold static resources.
const maxStaticStages = 6

// invalidIndex marks unset indices in attribs.
const invalidIndex = math.MaxUint32

// ResourceAttribs are the native binding attributes of a
// signature resource.
type ResourceAttribs struct {
	// Register is a 24-bit shader register.
	Register uint32
	// Space is relative to the signature.
	Space     uint8
	RootIndex uint16
	ParamType ParamType
	// ImtblAssigned is set when an immutable sampler
	// replaces the resource.
	ImtblAssigned bool
	// Offset in descriptors from the start of the root
	// table. It is invalidIndex for root views.
	OffsetFromTableStart uint32
	// ImtblSamplerIndex is invalidIndex unless
	// ImtblAssigned is set.
	ImtblSamplerIndex uint32
}

// ImmutableSamplerAttribs are the native binding
// attributes of an immutable sampler.
// Valid is false for samplers that are not visible to any
// stage.
type ImmutableSamplerAttribs struct {
	ArraySize uint32
	Register  uint32
	Space     uint32
	Valid     bool
}

// RootTable is a descriptor table contributed by a
// signature. RootIndex is relative to the signature.
type RootTable struct {
	RootIndex  uint32
	Visibility Visibility
	Ranges     []DescriptorRange
}

// RootView is a root descriptor contributed by a
// signature. RootIndex is relative to the signature.
type RootView struct {
	RootIndex  uint32
	Type       ParamType
	Visibility Visibility
	Register   uint32
	Space      uint32
}

// Signature implements driver.Signature.
type Signature struct {
	desc driver.SignatureDesc

	attribs  []ResourceAttribs
	splrAttr []ImmutableSamplerAttribs
	splrs    []StaticSampler

	tables []RootTable
	views  []RootView

	stages     driver.Stage
	staticStgs driver.Stage
	ptype      driver.PipelineType
	stgIndex   [maxStaticStages]int8
	maxSpace   uint32

	hash uint64
	refs atomic.Int32
}

// NewSignature creates a new resource signature.
// desc is copied.
func NewSignature(desc *driver.SignatureDesc) (*Signature, error) {
	s := &Signature{desc: copyDesc(desc)}
	if err := s.validate(); err != nil {
		return nil, err
	}
	s.attribs = make([]ResourceAttribs, len(s.desc.Descs))
	s.splrAttr = make([]ImmutableSamplerAttribs, len(s.desc.Splrs))
	if err := s.allocRegisters(); err != nil {
		return nil, err
	}
	s.initRootParams()
	if err := s.initStages(); err != nil {
		return nil, err
	}
	s.initSamplers()
	s.hash = s.computeHash()
	s.refs.Store(1)
	log().Debug("signature created",
		"name", s.desc.Name,
		"index", s.desc.BindingIndex,
		"resources", len(s.attribs),
		"tables", len(s.tables),
		"views", len(s.views),
		"spaces", s.maxSpace+1)
	return s, nil
}

func copyDesc(desc *driver.SignatureDesc) driver.SignatureDesc {
	return driver.SignatureDesc{
		Name:         desc.Name,
		BindingIndex: desc.BindingIndex,
		Descs:        slices.Clone(desc.Descs),
		Splrs:        slices.Clone(desc.Splrs),
	}
}

func (s *Signature) validate() error {
	const op = "NewSignature"
	d := &s.desc
	if d.BindingIndex < 0 || d.BindingIndex >= MaxSignatures {
		return configErr(op, "%q: binding index %d is not in [0, %d)", d.Name, d.BindingIndex, MaxSignatures)
	}
	names := make(map[string]bool, len(d.Descs))
	for i := range d.Descs {
		r := &d.Descs[i]
		switch {
		case r.Name == "":
			return configErr(op, "%q: resource %d has no name", d.Name, i)
		case names[r.Name]:
			return configErr(op, "%q: resource %q is declared more than once", d.Name, r.Name)
		case r.Type < driver.DBuffer || r.Type > driver.DAccelStruct:
			return configErr(op, "%q: resource %q has invalid type %d", d.Name, r.Name, r.Type)
		case r.Stages == 0 || r.Stages&^driver.SAll != 0:
			return configErr(op, "%q: resource %q has invalid stages %#x", d.Name, r.Name, int(r.Stages))
		case r.Flags&driver.FRuntimeArray != 0 && r.Len != 0:
			return configErr(op, "%q: runtime array %q must have length 0", d.Name, r.Name)
		case r.Flags&driver.FRuntimeArray == 0 && r.Len < 1:
			return configErr(op, "%q: resource %q has length %d", d.Name, r.Name, r.Len)
		case r.Var < driver.VStatic || r.Var > driver.VDynamic:
			return configErr(op, "%q: resource %q has invalid variable type %d", d.Name, r.Name, r.Var)
		}
		names[r.Name] = true
	}
	splrs := make(map[string]bool, len(d.Splrs))
	for i := range d.Splrs {
		if d.Splrs[i].Name == "" {
			return configErr(op, "%q: immutable sampler %d has no name", d.Name, i)
		}
		if splrs[d.Splrs[i].Name] {
			return configErr(op, "%q: immutable sampler %q is declared more than once", d.Name, d.Splrs[i].Name)
		}
		splrs[d.Splrs[i].Name] = true
	}
	return nil
}

// rangeType returns the descriptor range type that holds
// resources of type t.
func rangeType(t driver.DescType) RangeType {
	switch t {
	case driver.DBuffer, driver.DImage:
		return RangeUAV
	case driver.DConstant:
		return RangeCBV
	case driver.DSampler:
		return RangeSampler
	}
	return RangeSRV
}

// findImtblSampler returns the index of the immutable
// sampler that replaces resource r, or -1.
func (s *Signature) findImtblSampler(r *driver.Descriptor) int {
	if r.Type != driver.DSampler {
		return -1
	}
	for i := range s.desc.Splrs {
		if s.desc.Splrs[i].Name == r.Name && s.desc.Splrs[i].Stages&r.Stages != 0 {
			return i
		}
	}
	return -1
}

// allocRegisters assigns registers and spaces.
// Fixed-size resources are packed per register class in
// space 0; every runtime array gets a space of its own.
func (s *Signature) allocRegisters() error {
	var regs [RangeSampler + 1]bitvec.V[uint64]
	space := uint32(0)
	for i := range s.desc.Descs {
		r := &s.desc.Descs[i]
		a := &s.attribs[i]
		a.OffsetFromTableStart = invalidIndex
		a.ImtblSamplerIndex = invalidIndex
		if r.Flags&driver.FRuntimeArray != 0 {
			space++
			if space > math.MaxUint8 {
				return configErr("NewSignature", "%q: too many runtime arrays", s.desc.Name)
			}
			a.Space = uint8(space)
		} else {
			a.Register = uint32(regs[rangeType(r.Type)].Alloc(r.Len))
		}
		if j := s.findImtblSampler(r); j >= 0 {
			if r.Len == 0 {
				return configErr("NewSignature", "%q: immutable sampler %q cannot be a runtime array", s.desc.Name, r.Name)
			}
			a.ImtblAssigned = true
			a.ImtblSamplerIndex = uint32(j)
			s.splrAttr[j] = ImmutableSamplerAttribs{
				ArraySize: uint32(r.Len),
				Register:  a.Register,
				Space:     uint32(a.Space),
				Valid:     true,
			}
		}
	}
	for j := range s.desc.Splrs {
		if s.splrAttr[j].Valid || s.desc.Splrs[j].Stages == 0 {
			continue
		}
		s.splrAttr[j] = ImmutableSamplerAttribs{
			ArraySize: 1,
			Register:  uint32(regs[RangeSampler].Alloc(1)),
			Valid:     true,
		}
	}
	s.maxSpace = space
	return nil
}

// tableKey identifies the root table of a resource.
type tableKey struct {
	vis     Visibility
	dynamic bool
	sampler bool
	// Runtime arrays are placed in tables of their own.
	runtime int
}

// initRootParams creates root tables and views.
// Root indices follow creation order.
func (s *Signature) initRootParams() {
	tables := make(map[tableKey]int)
	sizes := make([]uint32, 0)
	next := uint32(0)
	for i := range s.desc.Descs {
		r := &s.desc.Descs[i]
		a := &s.attribs[i]
		if a.ImtblAssigned {
			continue
		}
		vis := convStage(r.Stages)
		if r.Type == driver.DConstant && r.Var == driver.VDynamic && r.Len == 1 && r.Flags&driver.FNoDynamicBuffers == 0 {
			a.RootIndex = uint16(next)
			a.ParamType = ParamCBV
			s.views = append(s.views, RootView{
				RootIndex:  next,
				Type:       ParamCBV,
				Visibility: vis,
				Register:   a.Register,
				Space:      uint32(a.Space),
			})
			next++
			continue
		}
		key := tableKey{
			vis:     vis,
			dynamic: r.Var == driver.VDynamic,
			sampler: r.Type == driver.DSampler,
		}
		n := uint32(r.Len)
		if r.Flags&driver.FRuntimeArray != 0 {
			key.runtime = i + 1
			n = Unbounded
		}
		t, ok := tables[key]
		if !ok {
			t = len(s.tables)
			tables[key] = t
			s.tables = append(s.tables, RootTable{RootIndex: next, Visibility: vis})
			sizes = append(sizes, 0)
			next++
		}
		a.RootIndex = uint16(s.tables[t].RootIndex)
		a.ParamType = ParamTable
		a.OffsetFromTableStart = sizes[t]
		s.tables[t].Ranges = append(s.tables[t].Ranges, DescriptorRange{
			Type:           rangeType(r.Type),
			NumDescriptors: n,
			BaseRegister:   a.Register,
			Space:          uint32(a.Space),
			Offset:         sizes[t],
		})
		if n != Unbounded {
			sizes[t] += n
		}
	}
}

// initStages computes the stage masks and the indices of
// stages that have static resources.
func (s *Signature) initStages() error {
	for i := range s.desc.Descs {
		r := &s.desc.Descs[i]
		s.stages |= r.Stages
		if r.Var == driver.VStatic {
			s.staticStgs |= r.Stages
		}
	}
	for i := range s.desc.Splrs {
		s.stages |= s.desc.Splrs[i].Stages
	}
	switch {
	case s.stages&driver.SRayTracing != 0:
		s.ptype = driver.PRayTracing
	case s.stages&(driver.SAmplification|driver.SMesh) != 0:
		s.ptype = driver.PMesh
	case s.stages == driver.SCompute:
		s.ptype = driver.PCompute
	default:
		s.ptype = driver.PGraphics
	}
	for i := range s.stgIndex {
		s.stgIndex[i] = -1
	}
	n := 0
	for b := 0; b < 14; b++ {
		if s.staticStgs&(1<<b) == 0 {
			continue
		}
		if n == maxStaticStages {
			return configErr("NewSignature", "%q: static resources are used by more than %d stages", s.desc.Name, maxStaticStages)
		}
		s.stgIndex[n] = int8(b)
		n++
	}
	return nil
}

// initSamplers creates the static sampler templates.
func (s *Signature) initSamplers() {
	s.splrs = make([]StaticSampler, len(s.desc.Splrs))
	for i := range s.desc.Splrs {
		ss := convSampling(&s.desc.Splrs[i].Sampling)
		ss.Register = s.splrAttr[i].Register
		ss.Space = s.splrAttr[i].Space
		ss.Visibility = convStage(s.desc.Splrs[i].Stages)
		s.splrs[i] = ss
	}
}

// computeHash hashes the contents of the signature.
// The name is not included.
func (s *Signature) computeHash() uint64 {
	h, _ := blake2b.New256(nil)
	le := binary.LittleEndian
	var b []byte
	b = le.AppendUint32(b, uint32(s.desc.BindingIndex))
	b = le.AppendUint32(b, uint32(len(s.desc.Descs)))
	for _, r := range s.desc.Descs {
		b = le.AppendUint32(b, uint32(len(r.Name)))
		b = append(b, r.Name...)
		for _, x := range [...]int{int(r.Type), int(r.Stages), r.Len, int(r.Var), int(r.Flags)} {
			b = le.AppendUint32(b, uint32(x))
		}
	}
	b = le.AppendUint32(b, uint32(len(s.desc.Splrs)))
	for i, sp := range s.desc.Splrs {
		b = le.AppendUint32(b, uint32(len(sp.Name)))
		b = append(b, sp.Name...)
		b = le.AppendUint32(b, uint32(sp.Stages))
		ss := &s.splrs[i]
		for _, x := range [...]uint32{
			ss.Filter, ss.AddressU, ss.AddressV, ss.AddressW,
			math.Float32bits(ss.MipLODBias), ss.MaxAnisotropy, ss.Comparison,
			ss.BorderColor, math.Float32bits(ss.MinLOD), math.Float32bits(ss.MaxLOD),
		} {
			b = le.AppendUint32(b, x)
		}
	}
	for i := range s.attribs {
		b = s.attribs[i].append(b)
	}
	for i := range s.splrAttr {
		b = s.splrAttr[i].append(b)
	}
	h.Write(b)
	return le.Uint64(h.Sum(nil))
}

// BindingIndex implements driver.Signature.
func (s *Signature) BindingIndex() int { return s.desc.BindingIndex }

// Name returns the name of the signature.
func (s *Signature) Name() string { return s.desc.Name }

// Desc returns the signature's description.
// It must not be modified.
func (s *Signature) Desc() *driver.SignatureDesc { return &s.desc }

// Hash returns the content hash of the signature.
func (s *Signature) Hash() uint64 { return s.hash }

// TotalRootParamCount returns the number of root
// parameters of the signature.
func (s *Signature) TotalRootParamCount() int { return len(s.tables) + len(s.views) }

// NumRootTables returns the number of root tables.
func (s *Signature) NumRootTables() int { return len(s.tables) }

// RootTable returns the i-th root table.
func (s *Signature) RootTable(i int) *RootTable { return &s.tables[i] }

// NumRootViews returns the number of root views.
func (s *Signature) NumRootViews() int { return len(s.views) }

// RootView returns the i-th root view.
func (s *Signature) RootView(i int) *RootView { return &s.views[i] }

// NumResources returns the number of resources.
func (s *Signature) NumResources() int { return len(s.attribs) }

// Resource returns the i-th resource and its attribs.
func (s *Signature) Resource(i int) (*driver.Descriptor, *ResourceAttribs) {
	return &s.desc.Descs[i], &s.attribs[i]
}

// ImmutableSamplerCount returns the number of immutable
// samplers.
func (s *Signature) ImmutableSamplerCount() int { return len(s.splrAttr) }

// ImmutableSamplerAttribs returns the attribs of the i-th
// immutable sampler.
func (s *Signature) ImmutableSamplerAttribs(i int) *ImmutableSamplerAttribs { return &s.splrAttr[i] }

// ImmutableSampler returns the static sampler template of
// the i-th immutable sampler.
// Its register and space are relative to the signature.
func (s *Signature) ImmutableSampler(i int) *StaticSampler { return &s.splrs[i] }

// MaxSpaceUsed returns the largest register space used by
// the signature.
func (s *Signature) MaxSpaceUsed() uint32 { return s.maxSpace }

// ShaderStages returns the stages that use the signature.
func (s *Signature) ShaderStages() driver.Stage { return s.stages }

// PipelineType returns the type of pipeline that the
// signature is meant for.
func (s *Signature) PipelineType() driver.PipelineType { return s.ptype }

// HasImmutableSamplerArray returns whether an immutable
// sampler array is visible to stage.
func (s *Signature) HasImmutableSamplerArray(stage driver.Stage) bool {
	for i := range s.splrAttr {
		if s.splrAttr[i].Valid && s.splrAttr[i].ArraySize > 1 && s.desc.Splrs[i].Stages&stage != 0 {
			return true
		}
	}
	return false
}

// IsCompatibleWith returns whether s and other produce the
// same root signature layout.
func (s *Signature) IsCompatibleWith(other *Signature) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil || s.hash != other.hash {
		return false
	}
	return s.desc.BindingIndex == other.desc.BindingIndex &&
		slices.Equal(s.desc.Descs, other.desc.Descs) &&
		slices.Equal(s.desc.Splrs, other.desc.Splrs) &&
		slices.Equal(s.attribs, other.attribs) &&
		slices.Equal(s.splrAttr, other.splrAttr)
}

// replacesResource returns whether immutable sampler i was
// assigned to a resource of s that stage uses.
func (s *Signature) replacesResource(i int, stage driver.Stage) bool {
	for j := range s.attribs {
		a := &s.attribs[j]
		if a.ImtblAssigned && a.ImtblSamplerIndex == uint32(i) && s.desc.Descs[j].Stages&stage != 0 {
			return true
		}
	}
	return false
}

// contributeBindings inserts the resources that stage uses
// into m, with spaces biased by baseSpace.
func (s *Signature) contributeBindings(stage driver.Stage, baseSpace uint32, m ResourceBindingMap) error {
	for i := range s.desc.Descs {
		r := &s.desc.Descs[i]
		if r.Stages&stage == 0 {
			continue
		}
		a := &s.attribs[i]
		err := m.Insert(r.Name, BindInfo{
			BindPoint: a.Register,
			Space:     uint32(a.Space) + baseSpace,
			ArraySize: uint32(r.Len),
			Type:      r.Type,
		})
		if err != nil {
			return err
		}
	}
	for i := range s.desc.Splrs {
		sp := &s.desc.Splrs[i]
		a := &s.splrAttr[i]
		if sp.Stages&stage == 0 || !a.Valid {
			continue
		}
		if s.replacesResource(i, stage) {
			continue
		}
		err := m.Insert(sp.Name, BindInfo{
			BindPoint: a.Register,
			Space:     a.Space + baseSpace,
			ArraySize: a.ArraySize,
			Type:      driver.DSampler,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// AddRef increments the reference count.
func (s *Signature) AddRef() { s.refs.Add(1) }

// Destroy implements driver.Signature.
// It releases one reference.
func (s *Signature) Destroy() {
	if s == nil {
		return
	}
	if s.refs.Add(-1) < 0 {
		panic("d3d12: signature destroyed too many times")
	}
}
