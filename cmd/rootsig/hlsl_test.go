// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package main

import (
	"strings"
	"testing"

	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
)

func global(name string, group, binding uint32) ir.GlobalVariable {
	return ir.GlobalVariable{
		Name:    name,
		Space:   ir.SpaceUniform,
		Type:    0,
		Binding: &ir.ResourceBinding{Group: group, Binding: binding},
	}
}

func uniformModule(globals ...ir.GlobalVariable) *ir.Module {
	return &ir.Module{
		Types: []ir.Type{{
			Name: "float4",
			Inner: ir.VectorType{
				Size:   ir.Vec4,
				Scalar: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4},
			},
		}},
		GlobalVariables: globals,
	}
}

func TestHLSLBindings(t *testing.T) {
	s := openSession(t, tLayout)
	module := uniformModule(
		global("camera", 0, 0),
		global("albedo", 1, 0),
		global("textures", 1, 1),
		ir.GlobalVariable{Name: "private", Space: ir.SpacePrivate},
	)
	bm, err := hlslBindings(module, s.root)
	if err != nil {
		t.Fatalf("hlslBindings:\nhave %v\nwant nil", err)
	}
	if len(bm) != 3 {
		t.Fatalf("hlslBindings: len:\nhave %d\nwant 3", len(bm))
	}
	if x := bm[hlsl.ResourceBinding{Group: 0, Binding: 0}]; x.Space != 0 || x.Register != 0 || x.BindingArraySize != nil {
		t.Fatalf("hlslBindings: camera:\nhave %+v\nwant b0 space0", x)
	}
	x := bm[hlsl.ResourceBinding{Group: 1, Binding: 0}]
	if x.Space != 1 || x.Register != 0 || x.BindingArraySize == nil || *x.BindingArraySize != 2 {
		t.Fatalf("hlslBindings: albedo:\nhave %+v\nwant t0 space1, 2 elements", x)
	}
	if x := bm[hlsl.ResourceBinding{Group: 1, Binding: 1}]; x.Space != 2 || x.Register != 0 {
		t.Fatalf("hlslBindings: textures:\nhave %+v\nwant t0 space2", x)
	}

	for _, gv := range [...]ir.GlobalVariable{
		global("nogroup", 5, 0),
		global("nobinding", 0, 9),
	} {
		if _, err := hlslBindings(uniformModule(gv), s.root); err == nil {
			t.Fatalf("hlslBindings(%s):\nhave nil\nwant error", gv.Name)
		}
	}
}

func TestHLSLCompile(t *testing.T) {
	s := openSession(t, tLayout)
	module := uniformModule(global("uniforms", 1, 0))
	bm, err := hlslBindings(module, s.root)
	if err != nil {
		t.Fatal(err)
	}
	opts := hlsl.DefaultOptions()
	opts.BindingMap = bm
	opts.FakeMissingBindings = false
	code, _, err := hlsl.Compile(module, opts)
	if err != nil {
		t.Fatalf("hlsl.Compile:\nhave %v\nwant nil", err)
	}
	if !strings.Contains(code, "register(b0, space1)") {
		t.Fatalf("hlsl.Compile: binding of uniforms not found in\n%s", code)
	}

	var sb strings.Builder
	if err := compileHLSL(&sb, "this is not wgsl", s.root, hlsl.ShaderModel5_1); err == nil {
		t.Fatal("compileHLSL (invalid source):\nhave nil\nwant error")
	}
}
