// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package main

import (
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"

	"github.com/gviegas/rootsig/driver/d3d12"
)

// shaderModels are the accepted values of -sm.
var shaderModels = map[string]hlsl.ShaderModel{
	"5.0": hlsl.ShaderModel5_0,
	"5.1": hlsl.ShaderModel5_1,
	"6.0": hlsl.ShaderModel6_0,
	"6.1": hlsl.ShaderModel6_1,
	"6.2": hlsl.ShaderModel6_2,
	"6.3": hlsl.ShaderModel6_3,
	"6.4": hlsl.ShaderModel6_4,
	"6.5": hlsl.ShaderModel6_5,
	"6.6": hlsl.ShaderModel6_6,
	"6.7": hlsl.ShaderModel6_7,
}

// hlslBindings maps the resources of module to the
// locations that rs assigns to them.
// WGSL @group selects the signature with that binding
// index and @binding selects a resource of it.
func hlslBindings(module *ir.Module, rs *d3d12.RootSignature) (map[hlsl.ResourceBinding]hlsl.BindTarget, error) {
	bm := make(map[hlsl.ResourceBinding]hlsl.BindTarget)
	for i := range module.GlobalVariables {
		gv := &module.GlobalVariables[i]
		if gv.Binding == nil {
			continue
		}
		g, b := gv.Binding.Group, gv.Binding.Binding
		s := rs.Signature(int(g))
		if s == nil {
			return nil, errors.Errorf("%s: @group(%d) has no signature", gv.Name, g)
		}
		if int(b) >= s.NumResources() {
			return nil, errors.Errorf("%s: @binding(%d) is out of range for signature %q", gv.Name, b, s.Name())
		}
		r, a := s.Resource(int(b))
		space := uint32(a.Space) + rs.Base(int(g)).RegisterSpace
		if space > math.MaxUint8 {
			return nil, errors.Errorf("%s: space %d cannot be expressed in HLSL bindings", gv.Name, space)
		}
		t := hlsl.BindTarget{Space: uint8(space), Register: a.Register}
		if r.Len > 1 {
			n := uint32(r.Len)
			t.BindingArraySize = &n
		}
		bm[hlsl.ResourceBinding{Group: g, Binding: b}] = t
	}
	return bm, nil
}

// compileHLSL translates WGSL source to HLSL whose
// registers match rs, and writes it to w.
func compileHLSL(w io.Writer, source string, rs *d3d12.RootSignature, sm hlsl.ShaderModel) error {
	ast, err := naga.Parse(source)
	if err != nil {
		return errors.Wrap(err, "parsing WGSL")
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return errors.Wrap(err, "lowering WGSL")
	}
	bm, err := hlslBindings(module, rs)
	if err != nil {
		return err
	}
	if rs.TotalSpacesUsed() > 1 && sm < hlsl.ShaderModel5_1 {
		return errors.Errorf("%s cannot address the %d register spaces of the layout", sm, rs.TotalSpacesUsed())
	}
	opts := hlsl.DefaultOptions()
	opts.ShaderModel = sm
	opts.BindingMap = bm
	opts.FakeMissingBindings = false
	code, info, err := hlsl.Compile(module, opts)
	if err != nil {
		return errors.Wrap(err, "generating HLSL")
	}
	if _, err := io.WriteString(w, code); err != nil {
		return err
	}
	names := maps.Keys(info.RegisterBindings)
	slices.Sort(names)
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "// %s: %s\n", name, info.RegisterBindings[name]); err != nil {
			return err
		}
	}
	return nil
}
