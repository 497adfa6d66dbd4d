// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package driver

// GPU is the main interface to an underlying driver
// implementation.
// It is used to create resource signatures, layouts and
// pipelines.
// A GPU is obtained from a call to Driver.Open.
type GPU interface {
	// Driver returns the Driver that owns the GPU.
	Driver() Driver

	// NewShaderCode creates a new shader code from
	// compiled shader bytecode.
	// The data is copied.
	NewShaderCode(data []byte) (ShaderCode, error)

	// NewSignature creates a new resource signature.
	NewSignature(desc *SignatureDesc) (Signature, error)

	// NewLayout creates a new layout from a number of
	// resource signatures.
	// sigs may be given in any order; they are arranged by
	// binding index. Layouts built from compatible signatures
	// in the same order may be shared.
	NewLayout(sigs []Signature) (Layout, error)

	// NewPipeline creates a new pipeline.
	NewPipeline(state *PipelineState) (Pipeline, error)

	// Limits returns the implementation limits.
	// They are immutable for the lifetime of the GPU.
	Limits() Limits
}

// Destroyer is the interface that wraps the Destroy method.
// Types that implement this interface may hold references to
// native objects that are not managed by GC, so Destroy must
// be called explicitly to ensure such objects are released.
type Destroyer interface {
	Destroy()
}

// ShaderCode is the interface that defines a shader binary.
type ShaderCode interface {
	Destroyer

	// Bytes returns the bytecode.
	// The slice must not be modified.
	Bytes() []byte
}

// ShaderFunc specifies a function within a shader binary.
type ShaderFunc struct {
	Code ShaderCode
	Name string
}

// StageFunc associates a shader function with the stage
// it runs in.
type StageFunc struct {
	Stage Stage
	Func  ShaderFunc
}

// Stage is a mask of programmable stages.
type Stage int

// Stages.
const (
	SVertex Stage = 1 << iota
	SFragment
	SCompute
	SGeometry
	SHull
	SDomain
	SAmplification
	SMesh
	SRayGen
	SRayMiss
	SClosestHit
	SAnyHit
	SIntersection
	SCallable

	// Stages usable in graphics pipelines.
	SGraphics = SVertex | SFragment | SGeometry | SHull | SDomain
	// Stages usable in mesh pipelines.
	SMeshing = SAmplification | SMesh | SFragment
	// Stages usable in ray tracing pipelines.
	SRayTracing = SRayGen | SRayMiss | SClosestHit | SAnyHit | SIntersection | SCallable
	// Every stage.
	SAll Stage = 1<<iota - 1
)

// String returns the names of the stages in s.
func (s Stage) String() string {
	if s == 0 {
		return "none"
	}
	names := [...]string{
		"vertex", "fragment", "compute", "geometry", "hull",
		"domain", "amplification", "mesh", "raygen", "miss",
		"closesthit", "anyhit", "intersection", "callable",
	}
	var str string
	for i := range names {
		if s&(1<<i) == 0 {
			continue
		}
		if str != "" {
			str += "|"
		}
		str += names[i]
	}
	return str
}

// DescType is the type of a descriptor.
type DescType int

// Descriptor types.
const (
	// Read/write buffer.
	DBuffer DescType = iota
	// Read/write image.
	DImage
	// Constant buffer.
	DConstant
	// Sampled texture.
	DTexture
	// Texture sampler.
	DSampler
	// Read-only buffer.
	DBufferRO
	// Ray tracing acceleration structure.
	DAccelStruct
)

// String returns the name of the descriptor type.
func (t DescType) String() string {
	switch t {
	case DBuffer:
		return "buffer"
	case DImage:
		return "image"
	case DConstant:
		return "constant"
	case DTexture:
		return "texture"
	case DSampler:
		return "sampler"
	case DBufferRO:
		return "buffer(ro)"
	case DAccelStruct:
		return "accelstruct"
	}
	return "invalid"
}

// VarType is the type of a descriptor's update frequency.
type VarType int

// Variable types.
const (
	// Set once, shared by every binding of the signature.
	VStatic VarType = iota
	// Set once per binding.
	VMutable
	// Set any number of times per binding.
	VDynamic
)

// DescFlag is a mask of descriptor flags.
type DescFlag int

// Descriptor flags.
const (
	// The constant buffer must not be bound as a root
	// view, even if it is dynamic.
	FNoDynamicBuffers DescFlag = 1 << iota
	// The descriptor is an array whose size is not known
	// until shader execution. Descriptor.Len must be 0.
	FRuntimeArray
)

// Descriptor describes data for use in shaders.
// Name identifies the descriptor in shader code.
// Len is the array size; it must be 1 for non-array
// descriptors and 0 for runtime arrays.
type Descriptor struct {
	Name   string
	Type   DescType
	Stages Stage
	Len    int
	Var    VarType
	Flags  DescFlag
}

// ImmutableSampler describes a sampler that is baked into
// the layout.
// If Name matches the name of a DSampler descriptor of the
// same signature whose stages overlap, the immutable sampler
// replaces it, including its array size.
type ImmutableSampler struct {
	Name     string
	Stages   Stage
	Sampling Sampling
}

// SignatureDesc describes a resource signature.
// BindingIndex determines the order of the signature in
// layouts that use it. It must be less than
// Limits.MaxSignatures.
type SignatureDesc struct {
	Name         string
	BindingIndex int
	Descs        []Descriptor
	Splrs        []ImmutableSampler
}

// Signature is the interface that defines a group of
// descriptors that are bound together.
// It may be used by any number of layouts and pipelines.
type Signature interface {
	Destroyer

	// BindingIndex returns the binding index of the
	// signature.
	BindingIndex() int
}

// Layout is the interface that defines the bindings
// between a number of signatures and the shaders
// in a pipeline.
type Layout interface {
	Destroyer
}

// PipelineType is the type of a pipeline.
type PipelineType int

// Pipeline types.
const (
	PGraphics PipelineType = iota
	PCompute
	PMesh
	PRayTracing
)

// Stages returns the stages that are valid for the
// pipeline type.
func (t PipelineType) Stages() Stage {
	switch t {
	case PGraphics:
		return SGraphics
	case PCompute:
		return SCompute
	case PMesh:
		return SMeshing
	case PRayTracing:
		return SRayTracing
	}
	return 0
}

// PipelineState defines the programmable state of a
// pipeline.
// If Sigs is empty, the driver derives a signature from
// the shaders, which fails if they declare runtime-sized
// arrays.
// ShaderRecordName and ShaderRecordSize describe the
// constant buffer that shader records of a ray tracing
// pipeline expose. They are ignored for other pipeline
// types.
type PipelineState struct {
	Type             PipelineType
	Sigs             []Signature
	Funcs            []StageFunc
	ShaderRecordName string
	ShaderRecordSize int
}

// Pipeline is the interface that defines a GPU pipeline.
type Pipeline interface {
	Destroyer

	// Layout returns the layout used by the pipeline.
	Layout() Layout
}

// CmpFunc is the type of comparison functions.
type CmpFunc int

// Comparison functions.
const (
	CNever CmpFunc = iota
	CLess
	CEqual
	CLessEqual
	CGreater
	CNotEqual
	CGreaterEqual
	CAlways
)

// Filter is the type of sampler filters.
type Filter int

// Filters.
const (
	FNearest Filter = iota
	FLinear
	// FNoMipmap forces mip level 0 to be used.
	// It is only valid as the mip filter of a sampler.
	FNoMipmap
)

// AddrMode is the type of sampler address modes.
type AddrMode int

// Address modes.
const (
	AWrap AddrMode = iota
	AMirror
	AClamp
	ABorder
)

// BorderColor is the type of sampler border colors.
type BorderColor int

// Border colors.
const (
	BTransparentBlack BorderColor = iota
	BOpaqueBlack
	BOpaqueWhite
)

// Sampling describes image sampler state.
type Sampling struct {
	Min      Filter
	Mag      Filter
	Mipmap   Filter
	AddrU    AddrMode
	AddrV    AddrMode
	AddrW    AddrMode
	MaxAniso int
	Cmp      CmpFunc
	// Compare enables comparison sampling using Cmp.
	Compare bool
	Border  BorderColor
	MinLOD  float32
	MaxLOD  float32
	LODBias float32
}

// Limits describes implementation limits.
// These may vary across drivers and devices.
type Limits struct {
	// Maximum number of signatures in a layout.
	MaxSignatures int
	// Maximum number of root parameters in a layout.
	MaxRootParams int
	// Maximum number of immutable samplers in a layout.
	MaxImmutableSamplers int
	// Largest register space usable by signatures.
	MaxRegisterSpace int
	// Maximum size of a shader record, in bytes.
	MaxShaderRecordSize int
}
