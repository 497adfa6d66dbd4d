// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import "math"

// RangeType is the type of a descriptor range
// (D3D12_DESCRIPTOR_RANGE_TYPE).
type RangeType uint32

// Descriptor range types.
const (
	RangeSRV RangeType = iota
	RangeUAV
	RangeCBV
	RangeSampler
)

// String returns the register prefix of the range type.
func (t RangeType) String() string {
	switch t {
	case RangeSRV:
		return "t"
	case RangeUAV:
		return "u"
	case RangeCBV:
		return "b"
	case RangeSampler:
		return "s"
	}
	return "?"
}

// ParamType is the type of a root parameter
// (D3D12_ROOT_PARAMETER_TYPE).
type ParamType uint32

// Root parameter types.
const (
	ParamTable ParamType = iota
	ParamConstants
	ParamCBV
	ParamSRV
	ParamUAV
)

// String returns the name of the parameter type.
func (t ParamType) String() string {
	switch t {
	case ParamTable:
		return "table"
	case ParamConstants:
		return "constants"
	case ParamCBV:
		return "cbv"
	case ParamSRV:
		return "srv"
	case ParamUAV:
		return "uav"
	}
	return "invalid"
}

// Visibility is the shader visibility of a root parameter
// (D3D12_SHADER_VISIBILITY).
type Visibility uint32

// Shader visibilities.
const (
	VisAll Visibility = iota
	VisVertex
	VisHull
	VisDomain
	VisGeometry
	VisPixel
	VisAmplification
	VisMesh
)

// String returns the name of the visibility.
func (v Visibility) String() string {
	names := [...]string{"all", "vertex", "hull", "domain", "geometry", "pixel", "amplification", "mesh"}
	if int(v) < len(names) {
		return names[v]
	}
	return "invalid"
}

// RootFlags is a mask of D3D12_ROOT_SIGNATURE_FLAGS.
type RootFlags uint32

// Root signature flags.
const (
	FlagAllowInputLayout   RootFlags = 0x1
	FlagLocalRootSignature RootFlags = 0x80
)

// Unbounded is the descriptor count of unbounded ranges.
const Unbounded = math.MaxUint32

// DescriptorRange is a D3D12_DESCRIPTOR_RANGE.
type DescriptorRange struct {
	Type           RangeType
	NumDescriptors uint32
	BaseRegister   uint32
	Space          uint32
	// Offset in descriptors from the start of the table.
	Offset uint32
}

// RootConstants describes 32-bit constants placed in the
// root signature.
type RootConstants struct {
	Register uint32
	Space    uint32
	Num32    uint32
}

// RootDescriptor describes a view placed in the root
// signature.
type RootDescriptor struct {
	Register uint32
	Space    uint32
}

// RootParameter is a D3D12_ROOT_PARAMETER.
// Only the field that matches Type is meaningful.
type RootParameter struct {
	Type       ParamType
	Visibility Visibility
	Table      []DescriptorRange
	Constants  RootConstants
	Descriptor RootDescriptor
}

// StaticSampler is a D3D12_STATIC_SAMPLER_DESC.
type StaticSampler struct {
	Filter        uint32
	AddressU      uint32
	AddressV      uint32
	AddressW      uint32
	MipLODBias    float32
	MaxAnisotropy uint32
	Comparison    uint32
	BorderColor   uint32
	MinLOD        float32
	MaxLOD        float32
	Register      uint32
	Space         uint32
	Visibility    Visibility
}

// RootSignatureDesc is a D3D12_ROOT_SIGNATURE_DESC.
type RootSignatureDesc struct {
	Params   []RootParameter
	Samplers []StaticSampler
	Flags    RootFlags
}

// Device is the native device interface used to create
// root signatures.
// Implementations must be safe for concurrent use.
type Device interface {
	// SerializeRootSignature serializes desc into the
	// version 1.0 binary form.
	SerializeRootSignature(desc *RootSignatureDesc) ([]byte, error)

	// CreateRootSignature creates a root signature from
	// its serialized form.
	CreateRootSignature(nodeMask uint32, blob []byte) (NativeRootSignature, error)

	// Name identifies the device in logs.
	Name() string
}

// NativeRootSignature is a root signature created by a
// Device.
type NativeRootSignature interface {
	Release()
}
