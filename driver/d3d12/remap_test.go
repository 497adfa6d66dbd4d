// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import (
	"bytes"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/gviegas/rootsig/driver"
	"github.com/gviegas/rootsig/internal/dxbc"
	"github.com/gviegas/rootsig/internal/dxbc/dxbctest"
)

// passDesc places arr before tex, so that SM 5.0 shaders
// compiled with tex at t0 must be moved.
var passDesc = driver.SignatureDesc{
	Name:         "pass",
	BindingIndex: 0,
	Descs: []driver.Descriptor{
		{Name: "arr", Type: driver.DTexture, Stages: driver.SFragment, Len: 3, Var: driver.VMutable},
		{Name: "tex", Type: driver.DTexture, Stages: driver.SFragment, Len: 1, Var: driver.VMutable},
		{Name: "smp", Type: driver.DSampler, Stages: driver.SFragment, Len: 1, Var: driver.VMutable},
		{Name: "Globals", Type: driver.DConstant, Stages: driver.SFragment, Len: 1, Var: driver.VMutable},
	},
}

var globalsDesc = driver.SignatureDesc{
	Name:         "globals",
	BindingIndex: 0,
	Descs: []driver.Descriptor{
		{Name: "Globals", Type: driver.DConstant, Stages: driver.SFragment, Len: 1, Var: driver.VMutable},
	},
}

var materialDesc = driver.SignatureDesc{
	Name:         "material",
	BindingIndex: 1,
	Descs: []driver.Descriptor{
		{Name: "smp", Type: driver.DSampler, Stages: driver.SFragment, Len: 1, Var: driver.VMutable},
		{Name: "tex", Type: driver.DTexture, Stages: driver.SFragment, Len: 1, Var: driver.VMutable},
		{Name: "bindless", Type: driver.DTexture, Stages: driver.SFragment, Var: driver.VMutable, Flags: driver.FRuntimeArray},
	},
}

func sm50Shader() []byte {
	res := []dxbctest.Resource{
		{Name: "Globals", Type: dxbc.InputCBuffer, BindPoint: 0, BindCount: 1},
		{Name: "smp", Type: dxbc.InputSampler, BindPoint: 0, BindCount: 1},
		{Name: "tex", Type: dxbc.InputTexture, Dimension: 4, BindPoint: 0, BindCount: 1},
		{Name: "arr", Type: dxbc.InputTexture, Dimension: 4, BindPoint: 1, BindCount: 3},
	}
	const ret = 0x5555
	p := dxbctest.NewProgram(dxbc.PixelShader, 5, 0).
		Inst(dxbctest.OpDclConstantBuffer, dxbctest.Operand(dxbctest.OCBuffer, 0, 4)).
		Inst(dxbctest.OpDclSampler, dxbctest.Operand(dxbctest.OSampler, 0)).
		Inst(dxbctest.OpDclResource, dxbctest.Operand(dxbctest.OResource, 0), []uint32{ret}).
		Inst(dxbctest.OpDclResource, dxbctest.Operand(dxbctest.OResource, 1), []uint32{ret}).
		Inst(dxbctest.OpDclResource, dxbctest.Operand(dxbctest.OResource, 3), []uint32{ret}).
		Inst(dxbctest.OpDclTemps, []uint32{2}).
		InstExt(dxbctest.OpSample, dxbctest.Operand(dxbctest.OTemp, 0), dxbctest.Operand(dxbctest.OInput, 0), dxbctest.Operand(dxbctest.OResource, 0), dxbctest.Operand(dxbctest.OSampler, 0)).
		Inst(dxbctest.OpMov, dxbctest.Operand(dxbctest.OTemp, 1), dxbctest.Operand(dxbctest.OCBuffer, 0, 2)).
		Inst(dxbctest.OpSample, dxbctest.Operand(dxbctest.OTemp, 0), dxbctest.Operand(dxbctest.OInput, 0), dxbctest.Operand(dxbctest.OResource, 3), dxbctest.Operand(dxbctest.OSampler, 0)).
		Inst(dxbctest.OpRet)
	return dxbctest.Shader(dxbc.PixelShader, 5, 0, res, p)
}

func sm51Shader() []byte {
	res := []dxbctest.Resource{
		{Name: "Globals", Type: dxbc.InputCBuffer, BindPoint: 0, BindCount: 1},
		{Name: "smp", Type: dxbc.InputSampler, BindPoint: 0, BindCount: 1},
		{Name: "tex", Type: dxbc.InputTexture, Dimension: 4, BindPoint: 0, BindCount: 1},
		{Name: "bindless", Type: dxbc.InputTexture, Dimension: 4, BindPoint: 4, BindCount: 0, ID: 1},
	}
	const ret = 0x5555
	p := dxbctest.NewProgram(dxbc.PixelShader, 5, 1).
		Inst(dxbctest.OpDclConstantBuffer, dxbctest.Operand(dxbctest.OCBuffer, 0, 0, 0), []uint32{4, 0}).
		Inst(dxbctest.OpDclSampler, dxbctest.Operand(dxbctest.OSampler, 0, 0, 0), []uint32{0}).
		Inst(dxbctest.OpDclResource, dxbctest.Operand(dxbctest.OResource, 0, 0, 0), []uint32{ret, 0}).
		Inst(dxbctest.OpDclResource, dxbctest.Operand(dxbctest.OResource, 1, 4, ^uint32(0)), []uint32{ret, 0}).
		Inst(dxbctest.OpSample, dxbctest.Operand(dxbctest.OTemp, 0), dxbctest.Operand(dxbctest.OInput, 0), dxbctest.Operand(dxbctest.OResource, 0, 0), dxbctest.Operand(dxbctest.OSampler, 0, 0)).
		Inst(dxbctest.OpSample, dxbctest.Operand(dxbctest.OTemp, 1), dxbctest.Operand(dxbctest.OInput, 0), dxbctest.RelOperand(dxbctest.OResource, 0, 1, 4), dxbctest.Operand(dxbctest.OSampler, 0, 0)).
		Inst(dxbctest.OpRet)
	return dxbctest.Shader(dxbc.PixelShader, 5, 1, res, p)
}

func dxilShader() []byte {
	return dxbctest.DXIL(dxbc.PixelShader, 6, 0, []byte{'B', 'C', 0xc0, 0xde})
}

// fakeCompiler records its calls.
type fakeCompiler struct {
	mu     sync.Mutex
	res    []ShaderResource
	err    error
	remaps []ResourceBindingMap
}

func (c *fakeCompiler) RemapResourceBindings(m ResourceBindingMap, code []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.remaps = append(c.remaps, m)
	return append(append([]byte(nil), code...), 0xde, 0xad), nil
}

func (c *fakeCompiler) Reflect(code []byte) ([]ShaderResource, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.res, nil
}

func fragment(code ...[]byte) []ShaderStage {
	return []ShaderStage{{Stage: driver.SFragment, Code: code}}
}

func newRemapper(t *testing.T, cacheSize int) *Remapper {
	t.Helper()
	r, err := NewRemapper(cacheSize)
	if err != nil {
		t.Fatalf("NewRemapper:\nhave %v\nwant nil", err)
	}
	return r
}

func TestRemapSM50(t *testing.T) {
	dev := newSoftDevice()
	s := newSig(t, &passDesc)
	defer s.Destroy()
	rs := compose(t, dev, s)
	defer rs.Release()

	code := sm50Shader()
	orig := bytes.Clone(code)
	p := &RemapParams{
		Stages:            fragment(code),
		Sigs:              []*Signature{s},
		Root:              rs,
		ValidateResources: ValidateShaderResources,
	}
	out, err := newRemapper(t, 0).RemapShaderResources(p)
	if err != nil {
		t.Fatalf("Remapper.RemapShaderResources:\nhave %v\nwant nil", err)
	}
	if !bytes.Equal(code, orig) {
		t.Fatal("Remapper.RemapShaderResources: input was modified")
	}
	if len(out) != 1 || out[0].Stage != driver.SFragment || len(out[0].Code) != 1 {
		t.Fatalf("Remapper.RemapShaderResources:\nhave %+v\nwant a single fragment shader", out)
	}
	b := out[0].Code[0]
	if !dxbc.Verify(b) {
		t.Fatal("Remapper.RemapShaderResources: checksum is wrong")
	}
	for _, x := range [...]struct{ pos, want int }{
		{4, 0}, {8, 0},
		{11, 3}, {15, 0}, {19, 2},
		{30, 3}, {45, 2},
	} {
		if w := dxbctest.Word(b, x.pos); w != uint32(x.want) {
			t.Fatalf("program DWORD %d:\nhave %d\nwant %d", x.pos, w, x.want)
		}
	}

	// The remapped shader matches the layout.
	res, err := reflectShader(b, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	m, _, err := BuildBindingMap(driver.SFragment, p.Sigs, rs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateShaderBindings(res, m); err != nil {
		t.Fatalf("ValidateShaderBindings:\nhave %v\nwant nil", err)
	}
	p.Stages = out
	p.ValidateBindings = ValidateShaderBindings
	again, err := newRemapper(t, 0).RemapShaderResources(p)
	if err != nil {
		t.Fatalf("Remapper.RemapShaderResources (validate only):\nhave %v\nwant nil", err)
	}
	if !bytes.Equal(again[0].Code[0], b) {
		t.Fatal("Remapper.RemapShaderResources (validate only): code was changed")
	}
}

func TestRemapMismatch(t *testing.T) {
	dev := newSoftDevice()
	s := newSig(t, &passDesc)
	defer s.Destroy()
	rs := compose(t, dev, s)
	defer rs.Release()

	_, err := newRemapper(t, 0).RemapShaderResources(&RemapParams{
		Stages:           fragment(sm50Shader()),
		Sigs:             []*Signature{s},
		Root:             rs,
		ValidateBindings: ValidateShaderBindings,
	})
	if k, _ := KindOf(err); k != ErrCompat {
		t.Fatalf("Remapper.RemapShaderResources (validate only):\nhave %v\nwant compat error", err)
	}
	var mis *BindingMismatchError
	if !errors.As(err, &mis) {
		t.Fatalf("Remapper.RemapShaderResources (validate only):\nhave %T\nwant *BindingMismatchError", errors.Cause(err))
	}
	want := []BindingDiff{
		{Name: "tex", Have: dxbc.Target{BindPoint: 0}, Want: dxbc.Target{BindPoint: 3}},
		{Name: "arr", Have: dxbc.Target{BindPoint: 1}, Want: dxbc.Target{BindPoint: 0}},
	}
	if len(mis.Diffs) != len(want) {
		t.Fatalf("BindingMismatchError.Diffs:\nhave %+v\nwant %+v", mis.Diffs, want)
	}
	for i := range want {
		if mis.Diffs[i] != want[i] {
			t.Fatalf("BindingMismatchError.Diffs[%d]:\nhave %+v\nwant %+v", i, mis.Diffs[i], want[i])
		}
	}

	err = ValidateShaderBindings([]ShaderResource{{Name: "nope", Kind: KindTexture, BindCount: 1}}, ResourceBindingMap{})
	if !errors.As(err, &mis) || len(mis.Diffs) != 1 || !mis.Diffs[0].Missing {
		t.Fatalf("ValidateShaderBindings (missing):\nhave %v\nwant a missing diff", err)
	}
}

func TestRemapSM51(t *testing.T) {
	dev := newSoftDevice()
	s0 := newSig(t, &globalsDesc)
	defer s0.Destroy()
	s1 := newSig(t, &materialDesc)
	defer s1.Destroy()
	rs := compose(t, dev, s0, s1)
	defer rs.Release()

	out, err := newRemapper(t, 0).RemapShaderResources(&RemapParams{
		Stages:            fragment(sm51Shader()),
		Sigs:              []*Signature{s0, s1},
		Root:              rs,
		ValidateResources: ValidateShaderResources,
	})
	if err != nil {
		t.Fatalf("Remapper.RemapShaderResources:\nhave %v\nwant nil", err)
	}
	binds, err := dxbc.Reflect(out[0].Code[0])
	if err != nil {
		t.Fatal(err)
	}
	want := [...]dxbc.Target{{BindPoint: 0, Space: 0}, {BindPoint: 0, Space: 1}, {BindPoint: 0, Space: 1}, {BindPoint: 0, Space: 2}}
	for i := range want {
		if b := binds[i]; b.BindPoint != want[i].BindPoint || b.Space != want[i].Space {
			t.Fatalf("dxbc.Reflect: %s:\nhave %d space%d\nwant %d space%d", b.Name, b.BindPoint, b.Space, want[i].BindPoint, want[i].Space)
		}
	}

	// SM 5.0 cannot address more than one space.
	_, err = newRemapper(t, 0).RemapShaderResources(&RemapParams{
		Stages: fragment(sm50Shader()),
		Sigs:   []*Signature{s0, s1},
		Root:   rs,
	})
	if k, _ := KindOf(err); k != ErrCompat {
		t.Fatalf("Remapper.RemapShaderResources (SM 5.0, 3 spaces):\nhave %v\nwant compat error", err)
	}
}

func TestRemapUnbound(t *testing.T) {
	dev := newSoftDevice()
	s := newSig(t, &globalsDesc)
	defer s.Destroy()
	rs := compose(t, dev, s)
	defer rs.Release()

	p := &RemapParams{
		Stages: fragment(sm50Shader()),
		Sigs:   []*Signature{s},
		Root:   rs,
	}
	if _, err := newRemapper(t, 0).RemapShaderResources(p); err == nil {
		t.Fatal("Remapper.RemapShaderResources (unbound):\nhave nil\nwant error")
	} else if k, _ := KindOf(err); k != ErrCompat {
		t.Fatalf("Remapper.RemapShaderResources (unbound):\nhave %v\nwant compat error", err)
	}
	p.ValidateResources = ValidateShaderResources
	if _, err := newRemapper(t, 0).RemapShaderResources(p); err == nil {
		t.Fatal("Remapper.RemapShaderResources (missing resource):\nhave nil\nwant error")
	}
	p.ValidateResources = nil
	p.Stages = fragment([]byte("not a container"))
	if _, err := newRemapper(t, 0).RemapShaderResources(p); err == nil {
		t.Fatal("Remapper.RemapShaderResources (malformed):\nhave nil\nwant error")
	} else if k, _ := KindOf(err); k != ErrConfig {
		t.Fatalf("Remapper.RemapShaderResources (malformed):\nhave %v\nwant config error", err)
	}
}

func TestRemapImmutableSamplerArray(t *testing.T) {
	dev := newSoftDevice()
	s := newSig(t, &samplerDesc)
	defer s.Destroy()
	sigs := []*Signature{nil, s}
	rs := compose(t, dev, sigs...)
	defer rs.Release()

	if !s.HasImmutableSamplerArray(driver.SFragment) {
		t.Fatal("Signature.HasImmutableSamplerArray:\nhave false\nwant true")
	}
	_, err := newRemapper(t, 0).RemapShaderResources(&RemapParams{
		Stages:   fragment(dxilShader()),
		Sigs:     sigs,
		Root:     rs,
		Compiler: &fakeCompiler{},
	})
	if k, _ := KindOf(err); k != ErrCompat {
		t.Fatalf("Remapper.RemapShaderResources (SM 6.0, sampler array):\nhave %v\nwant compat error", err)
	}
}

func TestRemapDXIL(t *testing.T) {
	dev := newSoftDevice()
	s := newSig(t, &globalsDesc)
	defer s.Destroy()
	rs := compose(t, dev, s)
	defer rs.Release()

	code := dxilShader()
	p := &RemapParams{
		Stages:            fragment(code),
		Sigs:              []*Signature{s},
		Root:              rs,
		ValidateResources: ValidateShaderResources,
	}
	_, err := newRemapper(t, 0).RemapShaderResources(p)
	if !errors.Is(err, ErrNoCompiler) {
		t.Fatalf("Remapper.RemapShaderResources (no compiler):\nhave %v\nwant %v", err, ErrNoCompiler)
	}
	if k, _ := KindOf(err); k != ErrNative {
		t.Fatalf("Remapper.RemapShaderResources (no compiler):\nhave %v\nwant native error", err)
	}
	vp := *p
	vp.ValidateBindings = ValidateShaderBindings
	out, err := newRemapper(t, 0).RemapShaderResources(&vp)
	if k, _ := KindOf(err); k != ErrNative || !errors.Is(err, ErrNoCompiler) || out != nil {
		t.Fatalf("Remapper.RemapShaderResources (validation only, no compiler):\nhave %v\nwant %v", err, ErrNoCompiler)
	}

	comp := &fakeCompiler{res: []ShaderResource{{Name: "Globals", Kind: KindCBuffer, BindPoint: 0, BindCount: 1}}}
	p.Compiler = comp
	r := newRemapper(t, 4)
	out1, err := r.RemapShaderResources(p)
	if err != nil {
		t.Fatalf("Remapper.RemapShaderResources:\nhave %v\nwant nil", err)
	}
	out2, err := r.RemapShaderResources(p)
	if err != nil {
		t.Fatalf("Remapper.RemapShaderResources:\nhave %v\nwant nil", err)
	}
	if len(comp.remaps) != 1 {
		t.Fatalf("DXCompiler.RemapResourceBindings: calls:\nhave %d\nwant 1", len(comp.remaps))
	}
	if bi := comp.remaps[0]["Globals"]; bi != (BindInfo{ArraySize: 1, Type: driver.DConstant}) {
		t.Fatalf("DXCompiler.RemapResourceBindings: Globals:\nhave %v\nwant b0 space0", bi)
	}
	want := append(bytes.Clone(code), 0xde, 0xad)
	if !bytes.Equal(out1[0].Code[0], want) || !bytes.Equal(out2[0].Code[0], want) {
		t.Fatal("Remapper.RemapShaderResources: wrong DXIL output")
	}
	// Cached blobs are not shared.
	out1[0].Code[0][0] = 0
	out3, _ := r.RemapShaderResources(p)
	if !bytes.Equal(out3[0].Code[0], want) {
		t.Fatal("Remapper.RemapShaderResources: cached blob was modified")
	}

	comp.res = []ShaderResource{{Name: "Globals", Kind: KindTexture, BindCount: 1}}
	if _, err := newRemapper(t, 0).RemapShaderResources(p); err == nil {
		t.Fatal("Remapper.RemapShaderResources (type mismatch):\nhave nil\nwant error")
	}
	comp.res = nil
	comp.err = errors.New("compiler failure")
	if _, err := newRemapper(t, 0).RemapShaderResources(p); err == nil {
		t.Fatal("Remapper.RemapShaderResources (compiler failure):\nhave nil\nwant error")
	}
}

func TestRemapBlobCache(t *testing.T) {
	dev := newSoftDevice()
	s := newSig(t, &passDesc)
	defer s.Destroy()
	rs := compose(t, dev, s)
	defer rs.Release()

	r := newRemapper(t, 2)
	p := &RemapParams{Stages: fragment(sm50Shader()), Sigs: []*Signature{s}, Root: rs}
	out1, err := r.RemapShaderResources(p)
	if err != nil {
		t.Fatal(err)
	}
	if n := r.blobs.Len(); n != 1 {
		t.Fatalf("Remapper blob cache: Len:\nhave %d\nwant 1", n)
	}
	out2, err := r.RemapShaderResources(p)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out1[0].Code[0], out2[0].Code[0]) {
		t.Fatal("Remapper.RemapShaderResources: cached output differs")
	}
	if &out1[0].Code[0][0] == &out2[0].Code[0][0] {
		t.Fatal("Remapper.RemapShaderResources: cached output is shared")
	}
	if n := r.blobs.Len(); n != 1 {
		t.Fatalf("Remapper blob cache: Len:\nhave %d\nwant 1", n)
	}

	// A different map produces a different key.
	m1, _, _ := BuildBindingMap(driver.SFragment, p.Sigs, rs, nil)
	m2, _, _ := BuildBindingMap(driver.SFragment, p.Sigs, rs, nil)
	if blobKey(p.Stages[0].Code[0], m1) != blobKey(p.Stages[0].Code[0], m2) {
		t.Fatal("blobKey: equal maps have distinct keys")
	}
	m2["tex"] = BindInfo{BindPoint: 9, ArraySize: 1, Type: driver.DTexture}
	if blobKey(p.Stages[0].Code[0], m1) == blobKey(p.Stages[0].Code[0], m2) {
		t.Fatal("blobKey: distinct maps have equal keys")
	}
}

func TestValidateShaderResources(t *testing.T) {
	m := ResourceBindingMap{
		"cb":   {BindPoint: 0, ArraySize: 1, Type: driver.DConstant},
		"arr":  {BindPoint: 1, ArraySize: 4, Type: driver.DTexture},
		"rt":   {BindPoint: 0, Space: 1, ArraySize: 0, Type: driver.DTexture},
		"uav":  {BindPoint: 0, ArraySize: 1, Type: driver.DBuffer},
		"smps": {BindPoint: 0, ArraySize: 2, Type: driver.DSampler},
	}
	ok := []ShaderResource{
		{Name: "cb", Kind: KindCBuffer, BindCount: 1},
		{Name: "arr", Kind: KindTexture, BindCount: 4},
		{Name: "arr[3]", Kind: KindTexture, BindCount: 1},
		{Name: "rt", Kind: KindTexture, BindCount: 0},
		{Name: "rt", Kind: KindTexture, BindCount: 100},
		{Name: "uav", Kind: KindUAVBuffer, BindCount: 1},
		{Name: "smps[1]", Kind: KindSampler, BindCount: 1},
	}
	if err := ValidateShaderResources(driver.SFragment, ok, m); err != nil {
		t.Fatalf("ValidateShaderResources:\nhave %v\nwant nil", err)
	}
	for _, r := range [...]ShaderResource{
		{Name: "missing", Kind: KindTexture, BindCount: 1},
		{Name: "cb", Kind: KindTexture, BindCount: 1},
		{Name: "arr", Kind: KindTexture, BindCount: 5},
		{Name: "arr", Kind: KindTexture, BindCount: 0},
		{Name: "arr[4]", Kind: KindTexture, BindCount: 1},
		{Name: "uav", Kind: KindUAVImage, BindCount: 1},
	} {
		err := ValidateShaderResources(driver.SFragment, []ShaderResource{r}, m)
		if k, _ := KindOf(err); err == nil || k != ErrCompat {
			t.Fatalf("ValidateShaderResources(%+v):\nhave %v\nwant compat error", r, err)
		}
	}
}

func TestBuildBindingMap(t *testing.T) {
	dev := newSoftDevice()
	s0 := newSig(t, &globalsDesc)
	defer s0.Destroy()
	s1 := newSig(t, &samplerDesc)
	defer s1.Destroy()
	sigs := []*Signature{s0, s1}
	rs := compose(t, dev, sigs...)
	defer rs.Release()

	m, arr, err := BuildBindingMap(driver.SFragment, sigs, rs, nil)
	if err != nil {
		t.Fatalf("BuildBindingMap:\nhave %v\nwant nil", err)
	}
	if !arr {
		t.Fatal("BuildBindingMap: sampler array:\nhave false\nwant true")
	}
	for name, want := range map[string]BindInfo{
		"Globals": {BindPoint: 0, Space: 0, ArraySize: 1, Type: driver.DConstant},
		"tex":     {BindPoint: 0, Space: 1, ArraySize: 1, Type: driver.DTexture},
		"shadow":  {BindPoint: 0, Space: 1, ArraySize: 3, Type: driver.DSampler},
		"dyn":     {BindPoint: 3, Space: 1, ArraySize: 1, Type: driver.DSampler},
		"extra":   {BindPoint: 4, Space: 1, ArraySize: 1, Type: driver.DSampler},
	} {
		if bi, ok := m[name]; !ok || bi != want {
			t.Fatalf("BuildBindingMap: %q:\nhave %v\nwant %v", name, bi, want)
		}
	}
	if len(m) != 5 {
		t.Fatalf("BuildBindingMap: len:\nhave %d\nwant 5", len(m))
	}

	m, arr, err = BuildBindingMap(driver.SVertex, sigs, rs, nil)
	if err != nil || arr || len(m) != 1 {
		t.Fatalf("BuildBindingMap (vertex):\nhave %v, %t, %v\nwant only extra", m, arr, err)
	}
	if _, ok := m["extra"]; !ok {
		t.Fatal("BuildBindingMap (vertex): extra is missing")
	}
}

func TestBuildBindingMapCollision(t *testing.T) {
	dev := newSoftDevice()
	s0 := newSig(t, &driver.SignatureDesc{
		Name:  "s0",
		Descs: []driver.Descriptor{{Name: "smp", Type: driver.DSampler, Stages: driver.SFragment, Len: 1}},
	})
	defer s0.Destroy()
	s1 := newSig(t, &driver.SignatureDesc{
		Name:         "s1",
		BindingIndex: 1,
		Splrs:        []driver.ImmutableSampler{{Name: "smp", Stages: driver.SFragment}},
	})
	defer s1.Destroy()
	rs := compose(t, dev, s0, s1)
	defer rs.Release()

	_, _, err := BuildBindingMap(driver.SFragment, []*Signature{s0, s1}, rs, nil)
	if k, _ := KindOf(err); k != ErrConfig {
		t.Fatalf("BuildBindingMap (smp in both signatures):\nhave %v\nwant config error", err)
	}
	// Visible to different stages.
	m, _, err := BuildBindingMap(driver.SVertex, []*Signature{s0, s1}, rs, nil)
	if err != nil || len(m) != 0 {
		t.Fatalf("BuildBindingMap (vertex):\nhave %v, %v\nwant empty, nil", m, err)
	}
}

func TestLocalRootSignature(t *testing.T) {
	dev := newSoftDevice()
	for _, x := range [...]struct {
		name string
		size int
	}{
		{"", 16},
		{"rec", 0},
		{"rec", 6},
		{"rec", MaxShaderRecordSize + 4},
	} {
		if _, err := newLocalRootSignature(dev, x.name, x.size, &testConfig); err == nil {
			t.Fatalf("newLocalRootSignature(%q, %d):\nhave nil\nwant error", x.name, x.size)
		}
	}

	l, err := newLocalRootSignature(dev, "Record", 32, &testConfig)
	if err != nil {
		t.Fatalf("newLocalRootSignature:\nhave %v\nwant nil", err)
	}
	desc := l.Desc()
	if len(desc.Params) != 1 || desc.Params[0].Constants.Num32 != 8 || desc.Flags != FlagLocalRootSignature {
		t.Fatalf("LocalRootSignature.Desc:\nhave %+v\nwant 8 constants", *desc)
	}
	if bi := l.BindInfo(); bi.Space != LocalRootSpace || bi.BindPoint != LocalRootRegister {
		t.Fatalf("LocalRootSignature.BindInfo:\nhave %v\nwant b%d space%d", bi, LocalRootRegister, uint32(LocalRootSpace))
	}

	s := newSig(t, &globalsDesc)
	defer s.Destroy()
	rs := compose(t, dev, s)
	defer rs.Release()
	m, _, err := BuildBindingMap(driver.SFragment, []*Signature{s}, rs, l)
	if err != nil {
		t.Fatalf("BuildBindingMap:\nhave %v\nwant nil", err)
	}
	if bi := m["Record"]; bi != l.BindInfo() {
		t.Fatalf("BuildBindingMap: Record:\nhave %v\nwant %v", bi, l.BindInfo())
	}
	l.Destroy()

	l, err = newLocalRootSignature(dev, "Globals", 4, &testConfig)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Destroy()
	if _, _, err := BuildBindingMap(driver.SFragment, []*Signature{s}, rs, l); err == nil {
		t.Fatal("BuildBindingMap (name collision):\nhave nil\nwant error")
	}
}
