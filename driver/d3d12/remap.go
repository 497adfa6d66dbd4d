// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/gogpu/naga/hlsl"

	"github.com/gviegas/rootsig/driver"
	"github.com/gviegas/rootsig/internal/dxbc"
)

// DXCompiler is the interface to a DXIL-capable shader
// compiler.
type DXCompiler interface {
	// RemapResourceBindings returns a copy of code whose
	// resources are bound as m describes.
	RemapResourceBindings(m ResourceBindingMap, code []byte) ([]byte, error)

	// Reflect returns the resources that code declares.
	Reflect(code []byte) ([]ShaderResource, error)
}

// ShaderStage is the bytecode of every shader of a given
// stage.
type ShaderStage struct {
	Stage driver.Stage
	Code  [][]byte
}

// ValidateResourcesFunc checks that the resources of a
// shader agree with the signatures they are bound to.
type ValidateResourcesFunc func(stage driver.Stage, res []ShaderResource, m ResourceBindingMap) error

// ValidateBindingsFunc checks that the resources of a
// shader are already bound as m describes.
type ValidateBindingsFunc func(res []ShaderResource, m ResourceBindingMap) error

// RemapParams are the parameters of
// Remapper.RemapShaderResources.
type RemapParams struct {
	Stages []ShaderStage
	// Sigs is indexed by binding index.
	Sigs     []*Signature
	Root     *RootSignature
	Compiler DXCompiler
	// Local is the local root signature of ray tracing
	// shaders. It is optional.
	Local *LocalRootSignature
	// ValidateResources is optional.
	ValidateResources ValidateResourcesFunc
	// ValidateBindings replaces remapping when not nil.
	ValidateBindings ValidateBindingsFunc
}

// Remapper moves shader resources to the locations that a
// root signature assigns to them.
// It is safe for concurrent use.
type Remapper struct {
	blobs *lru.Cache
}

// NewRemapper creates a new remapper that caches up to
// cacheSize remapped shaders.
// A cacheSize of zero disables caching.
func NewRemapper(cacheSize int) (*Remapper, error) {
	r := &Remapper{}
	if cacheSize > 0 {
		var err error
		if r.blobs, err = lru.New(cacheSize); err != nil {
			return nil, errors.Wrap(err, "d3d12: remap cache")
		}
	}
	return r, nil
}

// BuildBindingMap creates the binding map of stage.
// It also reports whether an immutable sampler array is
// visible to stage.
func BuildBindingMap(stage driver.Stage, sigs []*Signature, root *RootSignature, local *LocalRootSignature) (ResourceBindingMap, bool, error) {
	m := make(ResourceBindingMap)
	imtblArr := false
	for i, s := range sigs {
		if s == nil {
			continue
		}
		if err := s.contributeBindings(stage, root.Base(i).RegisterSpace, m); err != nil {
			return nil, false, err
		}
		imtblArr = imtblArr || s.HasImmutableSamplerArray(stage)
	}
	if local != nil {
		if _, ok := m[local.Name]; ok {
			return nil, false, configErr("RemapShaderResources", "shader record %q has the name of a signature resource", local.Name)
		}
		m[local.Name] = local.BindInfo()
	}
	return m, imtblArr, nil
}

// RemapShaderResources remaps or validates every shader
// of p.Stages.
// It returns the new bytecode of each shader, in the same
// order. The input bytecode is not modified.
func (r *Remapper) RemapShaderResources(p *RemapParams) ([]ShaderStage, error) {
	const op = "RemapShaderResources"
	out := make([]ShaderStage, len(p.Stages))
	for i, stg := range p.Stages {
		m, imtblArr, err := BuildBindingMap(stg.Stage, p.Sigs, p.Root, p.Local)
		if err != nil {
			return nil, err
		}
		out[i] = ShaderStage{Stage: stg.Stage, Code: make([][]byte, len(stg.Code))}
		for j, code := range stg.Code {
			c, err := dxbc.Parse(code)
			if err != nil {
				return nil, configErr(op, "%s shader %d: %v", stg.Stage, j, err)
			}
			ver, err := c.Version()
			if err != nil {
				return nil, configErr(op, "%s shader %d: %v", stg.Stage, j, err)
			}
			sm, ok := shaderModel(ver)
			if !ok {
				return nil, compatErr(op, "%s shader %d: shader model %d.%d is not supported", stg.Stage, j, ver.Major(), ver.Minor())
			}
			if imtblArr && sm >= hlsl.ShaderModel5_1 {
				return nil, compatErr(op, "%s shader %d: immutable sampler arrays cannot be used with %s", stg.Stage, j, sm)
			}
			if p.Root.TotalSpacesUsed() > 1 && sm < hlsl.ShaderModel5_1 {
				return nil, compatErr(op, "%s shader %d: %s cannot address the %d register spaces of the root signature", stg.Stage, j, sm, p.Root.TotalSpacesUsed())
			}
			dxil := c.IsDXIL()
			log().Debug("remapping shader",
				"stage", stg.Stage.String(),
				"model", sm.String(),
				"dxil", dxil,
				"resources", len(m))

			if p.ValidateResources != nil || p.ValidateBindings != nil {
				res, err := reflectShader(code, dxil, p.Compiler)
				switch {
				case errors.Is(err, ErrNoCompiler):
					return nil, nativeErr(op, ErrNoCompiler, "cannot validate %s shader %d", stg.Stage, j)
				case err != nil:
					return nil, compatErr(op, "%s shader %d: %v", stg.Stage, j, err)
				default:
					if p.ValidateResources != nil {
						if err := p.ValidateResources(stg.Stage, res, m); err != nil {
							return nil, err
						}
					}
					if p.ValidateBindings != nil {
						if err := p.ValidateBindings(res, m); err != nil {
							return nil, err
						}
					}
				}
			}

			if p.ValidateBindings != nil {
				out[i].Code[j] = slices.Clone(code)
				continue
			}
			if out[i].Code[j], err = r.remap(code, dxil, m, p.Compiler); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// remap patches a single shader.
func (r *Remapper) remap(code []byte, dxil bool, m ResourceBindingMap, comp DXCompiler) ([]byte, error) {
	const op = "RemapShaderResources"
	var key [blake2b.Size256]byte
	if r.blobs != nil {
		key = blobKey(code, m)
		if b, ok := r.blobs.Get(key); ok {
			log().Debug("remapped shader cache hit")
			return slices.Clone(b.([]byte)), nil
		}
	}
	var b []byte
	var err error
	if dxil {
		if comp == nil {
			return nil, nativeErr(op, ErrNoCompiler, "cannot remap DXIL")
		}
		if b, err = comp.RemapResourceBindings(m, code); err != nil {
			return nil, nativeErr(op, err, "DXIL remapping failed")
		}
	} else {
		if b, err = dxbc.Remap(code, lookupFunc(m)); err != nil {
			return nil, compatErr(op, "%v", err)
		}
	}
	if r.blobs != nil {
		r.blobs.Add(key, slices.Clone(b))
	}
	return b, nil
}

// blobKey hashes code together with m.
func blobKey(code []byte, m ResourceBindingMap) [blake2b.Size256]byte {
	h, _ := blake2b.New256(nil)
	h.Write(code)
	var b []byte
	for _, name := range m.Names() {
		bi := m[name]
		b = binary.LittleEndian.AppendUint32(b[:0], uint32(len(name)))
		b = append(b, name...)
		for _, x := range [...]uint32{bi.BindPoint, bi.Space, bi.ArraySize, uint32(bi.Type)} {
			b = binary.LittleEndian.AppendUint32(b, x)
		}
		h.Write(b)
	}
	var key [blake2b.Size256]byte
	h.Sum(key[:0])
	return key
}

// classOf returns the register class of resources of type
// t.
func classOf(t driver.DescType) dxbc.Class {
	switch rangeType(t) {
	case RangeCBV:
		return dxbc.ClassCBuffer
	case RangeUAV:
		return dxbc.ClassUAV
	case RangeSampler:
		return dxbc.ClassSampler
	}
	return dxbc.ClassSRV
}

// lookupFunc returns a dxbc.Lookup that resolves names
// using m.
func lookupFunc(m ResourceBindingMap) dxbc.Lookup {
	return func(name string, class dxbc.Class) (dxbc.Target, bool) {
		bi, ok := m[name]
		if !ok || classOf(bi.Type) != class {
			return dxbc.Target{}, false
		}
		return dxbc.Target{BindPoint: bi.BindPoint, Space: bi.Space}, true
	}
}

// lookupResource finds the entry of name in m.
// Array elements resolve to the array's entry; elem is
// the element index.
func lookupResource(m ResourceBindingMap, name string) (bi BindInfo, elem uint32, ok bool) {
	if bi, ok = m[name]; ok {
		return
	}
	base, elem, sub := dxbc.SplitSubscript(name)
	if !sub {
		return
	}
	if bi, ok = m[base]; !ok || bi.ArraySize != 0 && elem >= bi.ArraySize {
		return BindInfo{}, 0, false
	}
	return
}

// ValidateShaderResources checks that every resource in
// res is present in m with a compatible type and array
// size. It is a ValidateResourcesFunc.
func ValidateShaderResources(stage driver.Stage, res []ShaderResource, m ResourceBindingMap) error {
	const op = "ValidateShaderResources"
	for _, r := range res {
		bi, elem, ok := lookupResource(m, r.Name)
		switch {
		case !ok:
			return compatErr(op, "%s resource %q is not in any signature", stage, r.Name)
		case r.Kind.DescType() != bi.Type:
			return compatErr(op, "%s resource %q is a %s, but the signature declares a %s", stage, r.Name, r.Kind, bi.Type)
		case r.BindCount == 0 && bi.ArraySize != 0:
			return compatErr(op, "%s resource %q is unbounded, but the signature declares %d elements", stage, r.Name, bi.ArraySize)
		case bi.ArraySize != 0 && uint64(elem)+uint64(r.BindCount) > uint64(bi.ArraySize):
			return compatErr(op, "%s resource %q has %d elements, but the signature declares %d", stage, r.Name, r.BindCount, bi.ArraySize)
		}
	}
	return nil
}

// BindingDiff is a resource whose binding differs from the
// one in a binding map.
type BindingDiff struct {
	Name string
	Have dxbc.Target
	Want dxbc.Target
	// Missing is set when the resource is not in the map.
	Missing bool
}

// BindingMismatchError lists the resources whose bindings
// differ from a binding map.
type BindingMismatchError struct {
	Diffs []BindingDiff
}

func (e *BindingMismatchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d binding(s) differ", len(e.Diffs))
	for _, d := range e.Diffs {
		if d.Missing {
			fmt.Fprintf(&sb, "; %q: missing", d.Name)
			continue
		}
		fmt.Fprintf(&sb, "; %q: have %d space%d, want %d space%d",
			d.Name, d.Have.BindPoint, d.Have.Space, d.Want.BindPoint, d.Want.Space)
	}
	return sb.String()
}

// ValidateShaderBindings checks that every resource in res
// is bound as m describes. It is a ValidateBindingsFunc.
// Mismatches are reported as a *BindingMismatchError.
func ValidateShaderBindings(res []ShaderResource, m ResourceBindingMap) error {
	var diffs []BindingDiff
	for _, r := range res {
		have := dxbc.Target{BindPoint: r.BindPoint, Space: r.Space}
		bi, elem, ok := lookupResource(m, r.Name)
		if !ok {
			diffs = append(diffs, BindingDiff{Name: r.Name, Have: have, Missing: true})
			continue
		}
		want := dxbc.Target{BindPoint: bi.BindPoint + elem, Space: bi.Space}
		if have != want {
			diffs = append(diffs, BindingDiff{Name: r.Name, Have: have, Want: want})
		}
	}
	if len(diffs) == 0 {
		return nil
	}
	return &Error{
		Kind: ErrCompat,
		Op:   "ValidateShaderBindings",
		Msg:  "shader was not compiled for this layout",
		Err:  &BindingMismatchError{Diffs: diffs},
	}
}
