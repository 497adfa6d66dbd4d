// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import (
	"math/bits"
	"slices"

	"github.com/pkg/errors"

	"github.com/gviegas/rootsig/driver"
	"github.com/gviegas/rootsig/internal/dxbc"
)

// Pipeline implements driver.Pipeline.
// It owns a reference to its root signature and the
// remapped bytecode of its shaders.
type Pipeline struct {
	typ      driver.PipelineType
	root     *RootSignature
	local    *LocalRootSignature
	implicit *Signature
	stages   []ShaderStage
}

// NewPipeline implements driver.GPU.
func (d *Driver) NewPipeline(state *driver.PipelineState) (driver.Pipeline, error) {
	p, err := d.newPipeline(state)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Driver) newPipeline(state *driver.PipelineState) (*Pipeline, error) {
	const op = "NewPipeline"
	stages, err := groupStages(state)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{typ: state.Type}

	sigs := state.Sigs
	if len(sigs) == 0 {
		if p.implicit, err = d.implicitSignature(state); err != nil {
			return nil, err
		}
		sigs = []driver.Signature{p.implicit}
	}
	ss, err := sortSignatures(op, sigs)
	if err != nil {
		p.Destroy()
		return nil, err
	}

	if state.Type == driver.PRayTracing && state.ShaderRecordSize > 0 {
		for _, s := range ss {
			if s == nil {
				continue
			}
			if slices.ContainsFunc(s.desc.Descs, func(r driver.Descriptor) bool { return r.Name == state.ShaderRecordName }) {
				p.Destroy()
				return nil, configErr(op, "shader record %q has the name of a resource of signature %q", state.ShaderRecordName, s.Name())
			}
		}
		if p.local, err = newLocalRootSignature(d.dev, state.ShaderRecordName, state.ShaderRecordSize, &d.cfg); err != nil {
			p.Destroy()
			return nil, err
		}
	}

	if p.root, err = d.cache.GetOrCreate(ss); err != nil {
		p.Destroy()
		return nil, err
	}

	params := &RemapParams{
		Stages:            stages,
		Sigs:              ss,
		Root:              p.root,
		Compiler:          d.comp,
		Local:             p.local,
		ValidateResources: ValidateShaderResources,
	}
	if d.cfg.DisableRemapping {
		params.ValidateBindings = ValidateShaderBindings
	}
	if p.stages, err = d.remap.RemapShaderResources(params); err != nil {
		p.Destroy()
		return nil, err
	}
	log().Debug("pipeline created",
		"type", int(state.Type),
		"stages", len(p.stages),
		"hash", p.root.Hash(),
		"implicit", p.implicit != nil)
	return p, nil
}

// groupStages validates the shader functions of state and
// groups their bytecode by stage, in stage order.
func groupStages(state *driver.PipelineState) ([]ShaderStage, error) {
	const op = "NewPipeline"
	if len(state.Funcs) == 0 {
		return nil, configErr(op, "pipeline has no shaders")
	}
	valid := state.Type.Stages()
	var stages []ShaderStage
	for i, f := range state.Funcs {
		c, ok := f.Func.Code.(*shaderCode)
		switch {
		case !ok || c == nil:
			return nil, configErr(op, "shader %d was not created by this driver", i)
		case bits.OnesCount(uint(f.Stage)) != 1 || f.Stage&valid == 0:
			return nil, configErr(op, "shader %d has stage %s, which is not valid for this pipeline", i, f.Stage)
		case c.stage() != 0 && c.stage() != f.Stage:
			return nil, configErr(op, "shader %d is a %s shader, but is used as %s", i, c.stage(), f.Stage)
		}
		j := slices.IndexFunc(stages, func(s ShaderStage) bool { return s.Stage == f.Stage })
		if j < 0 {
			j = len(stages)
			stages = append(stages, ShaderStage{Stage: f.Stage})
		}
		stages[j].Code = append(stages[j].Code, c.Bytes())
	}
	slices.SortFunc(stages, func(a, b ShaderStage) int { return int(a.Stage) - int(b.Stage) })
	return stages, nil
}

// implicitSignature creates a signature that holds every
// resource that the shaders of state declare.
func (d *Driver) implicitSignature(state *driver.PipelineState) (*Signature, error) {
	const op = "NewPipeline"
	var descs []driver.Descriptor
	for _, f := range state.Funcs {
		c := f.Func.Code.(*shaderCode)
		res, err := reflectShader(c.Bytes(), c.IsDXIL(), d.comp)
		switch {
		case errors.Is(err, ErrNoCompiler):
			return nil, nativeErr(op, err, "cannot derive a signature from the %s shader", f.Stage)
		case err != nil:
			return nil, configErr(op, "cannot derive a signature from the %s shader: %v", f.Stage, errors.Cause(err))
		}
		for _, r := range res {
			if state.Type == driver.PRayTracing && r.Name == state.ShaderRecordName {
				continue
			}
			if r.BindCount == 0 {
				return nil, configErr(op, "%s resource %q is a runtime-sized array, which requires an explicit resource signature", f.Stage, r.Name)
			}
			name, n := r.Name, int(r.BindCount)
			if base, elem, ok := dxbc.SplitSubscript(name); ok {
				name, n = base, int(elem)+1
			}
			i := slices.IndexFunc(descs, func(x driver.Descriptor) bool { return x.Name == name })
			if i < 0 {
				descs = append(descs, driver.Descriptor{
					Name:   name,
					Type:   r.Kind.DescType(),
					Stages: f.Stage,
					Len:    n,
					Var:    driver.VMutable,
				})
				continue
			}
			if descs[i].Type != r.Kind.DescType() {
				return nil, configErr(op, "resource %q is declared as both %s and %s", name, descs[i].Type, r.Kind.DescType())
			}
			descs[i].Stages |= f.Stage
			descs[i].Len = max(descs[i].Len, n)
		}
	}
	return NewSignature(&driver.SignatureDesc{Name: "implicit", Descs: descs})
}

// Layout implements driver.Pipeline.
func (p *Pipeline) Layout() driver.Layout { return p.root }

// RootSignature returns the pipeline's root signature.
func (p *Pipeline) RootSignature() *RootSignature { return p.root }

// LocalRootSignature returns the pipeline's local root
// signature, or nil if it has none.
func (p *Pipeline) LocalRootSignature() *LocalRootSignature { return p.local }

// Code returns the bytecode of the shaders of stage, as
// remapped for the pipeline's root signature.
func (p *Pipeline) Code(stage driver.Stage) [][]byte {
	for _, s := range p.stages {
		if s.Stage == stage {
			return s.Code
		}
	}
	return nil
}

// Destroy implements driver.Destroyer.
func (p *Pipeline) Destroy() {
	if p == nil {
		return
	}
	if p.root != nil {
		p.root.Release()
	}
	p.local.Destroy()
	p.implicit.Destroy()
	*p = Pipeline{}
}
