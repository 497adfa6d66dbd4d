// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import (
	"github.com/gogpu/naga/hlsl"

	"github.com/gviegas/rootsig/driver"
	"github.com/gviegas/rootsig/internal/dxbc"
)

// ResourceKind is the kind of a shader resource.
type ResourceKind int

// Resource kinds.
const (
	KindCBuffer ResourceKind = iota
	KindTexture
	KindBuffer
	KindSampler
	KindUAVImage
	KindUAVBuffer
	KindAccelStruct
)

// String returns the name of the resource kind.
func (k ResourceKind) String() string {
	names := [...]string{"cbuffer", "texture", "buffer", "sampler", "uav image", "uav buffer", "accelstruct"}
	if k >= 0 && int(k) < len(names) {
		return names[k]
	}
	return "invalid"
}

// DescType returns the descriptor type that holds
// resources of kind k.
func (k ResourceKind) DescType() driver.DescType {
	switch k {
	case KindCBuffer:
		return driver.DConstant
	case KindTexture:
		return driver.DTexture
	case KindBuffer:
		return driver.DBufferRO
	case KindSampler:
		return driver.DSampler
	case KindUAVImage:
		return driver.DImage
	case KindUAVBuffer:
		return driver.DBuffer
	}
	return driver.DAccelStruct
}

// ShaderResource is a resource declared by a shader.
// BindCount is 0 for unbounded arrays.
type ShaderResource struct {
	Name      string
	Kind      ResourceKind
	BindPoint uint32
	BindCount uint32
	Space     uint32
}

func convBinding(b *dxbc.Binding) ShaderResource {
	var k ResourceKind
	switch b.Type.Class() {
	case dxbc.ClassCBuffer:
		k = KindCBuffer
	case dxbc.ClassSampler:
		k = KindSampler
	case dxbc.ClassUAV:
		if b.IsBuffer() {
			k = KindUAVBuffer
		} else {
			k = KindUAVImage
		}
	default:
		switch {
		case b.Type == dxbc.InputAccelStruct:
			k = KindAccelStruct
		case b.IsBuffer():
			k = KindBuffer
		default:
			k = KindTexture
		}
	}
	return ShaderResource{
		Name:      b.Name,
		Kind:      k,
		BindPoint: b.BindPoint,
		BindCount: b.BindCount,
		Space:     b.Space,
	}
}

// shaderCode implements driver.ShaderCode.
type shaderCode struct {
	b    []byte
	dxil bool
	ver  dxbc.ProgramVersion
	sm   hlsl.ShaderModel
}

// newShaderCode creates a new shader code from a DXBC
// container. data is copied.
func newShaderCode(data []byte) (*shaderCode, error) {
	const op = "NewShaderCode"
	b := append([]byte(nil), data...)
	c, err := dxbc.Parse(b)
	if err != nil {
		return nil, configErr(op, "%v", err)
	}
	ver, err := c.Version()
	if err != nil {
		return nil, configErr(op, "%v", err)
	}
	sm, ok := shaderModel(ver)
	if !ok {
		return nil, compatErr(op, "shader model %d.%d is not supported", ver.Major(), ver.Minor())
	}
	return &shaderCode{b: b, dxil: c.IsDXIL(), ver: ver, sm: sm}, nil
}

// shaderModel converts a program version to a shader
// model. Versions below 5.0 are treated as 5.0.
func shaderModel(v dxbc.ProgramVersion) (hlsl.ShaderModel, bool) {
	switch maj, mnr := v.Major(), v.Minor(); {
	case maj < 5:
		return hlsl.ShaderModel5_0, true
	case maj == 5 && mnr == 0:
		return hlsl.ShaderModel5_0, true
	case maj == 5:
		return hlsl.ShaderModel5_1, true
	case maj == 6 && mnr <= 7:
		return hlsl.ShaderModel6_0 + hlsl.ShaderModel(mnr), true
	}
	return 0, false
}

// Bytes implements driver.ShaderCode.
func (c *shaderCode) Bytes() []byte { return c.b }

// Destroy implements driver.Destroyer.
func (c *shaderCode) Destroy() {
	if c != nil {
		c.b = nil
	}
}

// ShaderModel returns the shader model of the code.
func (c *shaderCode) ShaderModel() hlsl.ShaderModel { return c.sm }

// IsDXIL returns whether the code is DXIL.
func (c *shaderCode) IsDXIL() bool { return c.dxil }

// stage returns the stage of the code's program, or 0 for
// libraries.
func (c *shaderCode) stage() driver.Stage {
	switch c.ver.Type() {
	case dxbc.PixelShader:
		return driver.SFragment
	case dxbc.VertexShader:
		return driver.SVertex
	case dxbc.GeometryShader:
		return driver.SGeometry
	case dxbc.HullShader:
		return driver.SHull
	case dxbc.DomainShader:
		return driver.SDomain
	case dxbc.ComputeShader:
		return driver.SCompute
	case dxbc.MeshShader:
		return driver.SMesh
	case dxbc.AmplShader:
		return driver.SAmplification
	}
	return 0
}

// reflectShader returns the resources that b declares.
// DXIL requires comp.
func reflectShader(b []byte, dxil bool, comp DXCompiler) ([]ShaderResource, error) {
	if dxil {
		if comp == nil {
			return nil, ErrNoCompiler
		}
		return comp.Reflect(b)
	}
	binds, err := dxbc.Reflect(b)
	if err != nil {
		return nil, err
	}
	res := make([]ShaderResource, len(binds))
	for i := range binds {
		res[i] = convBinding(&binds[i])
	}
	return res, nil
}
