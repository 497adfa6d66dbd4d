// Copyright 2024 Gustavo C. Viegas. All rights reserved.

//go:build windows && (amd64 || arm64)

package d3d12

import (
	"runtime"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/gviegas/rootsig/driver"
)

var (
	d3d12DLL = windows.NewLazySystemDLL("d3d12.dll")

	procD3D12CreateDevice                   = d3d12DLL.NewProc("D3D12CreateDevice")
	procD3D12SerializeRootSignature         = d3d12DLL.NewProc("D3D12SerializeRootSignature")
	iidID3D12Device                         = windows.GUID{Data1: 0x189819f1, Data2: 0x1db6, Data3: 0x4b57, Data4: [8]byte{0xbe, 0x54, 0x18, 0x21, 0x33, 0x9b, 0x85, 0xf7}}
	iidID3D12RootSignature                  = windows.GUID{Data1: 0xc54a6b66, Data2: 0x72df, Data3: 0x4ee8, Data4: [8]byte{0x8b, 0xe5, 0xa9, 0x46, 0xa1, 0x42, 0x92, 0x14}}
	featureLevel11_0                uintptr = 0xb000
	rootSignatureVersion1_0         uintptr = 1
)

// COM vtable indices.
const (
	vtblRelease             = 2
	vtblGetBufferPointer    = 3
	vtblGetBufferSize       = 4
	vtblCreateRootSignature = 16
)

// comVtblFn resolves a COM method by vtable index.
func comVtblFn(obj uintptr, idx int) uintptr {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtbl + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
}

func comRelease(obj uintptr) {
	if obj != 0 {
		syscall.SyscallN(comVtblFn(obj, vtblRelease), obj)
	}
}

// blobBytes copies the contents of an ID3DBlob.
func blobBytes(blob uintptr) []byte {
	p, _, _ := syscall.SyscallN(comVtblFn(blob, vtblGetBufferPointer), blob)
	n, _, _ := syscall.SyscallN(comVtblFn(blob, vtblGetBufferSize), blob)
	if p == 0 || n == 0 {
		return nil
	}
	return append([]byte(nil), unsafe.Slice((*byte)(unsafe.Pointer(p)), n)...)
}

type _D3D12_DESCRIPTOR_RANGE struct {
	RangeType                         uint32
	NumDescriptors                    uint32
	BaseShaderRegister                uint32
	RegisterSpace                     uint32
	OffsetInDescriptorsFromTableStart uint32
}

// _D3D12_ROOT_PARAMETER has the layout of the C struct
// on 64-bit targets. u0, u1 and u2 alias the union.
type _D3D12_ROOT_PARAMETER struct {
	ParameterType    uint32
	_                uint32
	u0               uint32
	u1               uint32
	u2               uintptr
	ShaderVisibility uint32
	_                uint32
}

type _D3D12_STATIC_SAMPLER_DESC struct {
	Filter           uint32
	AddressU         uint32
	AddressV         uint32
	AddressW         uint32
	MipLODBias       float32
	MaxAnisotropy    uint32
	ComparisonFunc   uint32
	BorderColor      uint32
	MinLOD           float32
	MaxLOD           float32
	ShaderRegister   uint32
	RegisterSpace    uint32
	ShaderVisibility uint32
}

type _D3D12_ROOT_SIGNATURE_DESC struct {
	NumParameters     uint32
	pParameters       *_D3D12_ROOT_PARAMETER
	NumStaticSamplers uint32
	pStaticSamplers   *_D3D12_STATIC_SAMPLER_DESC
	Flags             uint32
}

var _ = [1]struct{}{}[unsafe.Sizeof(_D3D12_ROOT_PARAMETER{})-32]
var _ = [1]struct{}{}[unsafe.Sizeof(_D3D12_STATIC_SAMPLER_DESC{})-52]

// nativeDevice is a Device backed by d3d12.dll.
type nativeDevice struct {
	dev uintptr
}

type nativeRootSignature struct {
	obj uintptr
}

func openNativeDevice() (Device, error) {
	if err := d3d12DLL.Load(); err != nil {
		return nil, errors.Wrap(driver.ErrNotInstalled, err.Error())
	}
	if err := procD3D12CreateDevice.Find(); err != nil {
		return nil, errors.Wrap(driver.ErrNotInstalled, err.Error())
	}
	var dev uintptr
	hr, _, _ := syscall.SyscallN(
		procD3D12CreateDevice.Addr(),
		0,
		featureLevel11_0,
		uintptr(unsafe.Pointer(&iidID3D12Device)),
		uintptr(unsafe.Pointer(&dev)),
	)
	if int32(hr) < 0 || dev == 0 {
		return nil, errors.Wrapf(driver.ErrNoDevice, "D3D12CreateDevice: %#08x", uint32(hr))
	}
	return &nativeDevice{dev: dev}, nil
}

func (d *nativeDevice) Name() string { return "d3d12.dll" }

// SerializeRootSignature implements Device.
func (d *nativeDevice) SerializeRootSignature(desc *RootSignatureDesc) ([]byte, error) {
	nranges := 0
	for i := range desc.Params {
		nranges += len(desc.Params[i].Table)
	}
	ranges := make([]_D3D12_DESCRIPTOR_RANGE, 0, nranges)
	params := make([]_D3D12_ROOT_PARAMETER, len(desc.Params))
	for i := range desc.Params {
		p := &desc.Params[i]
		np := &params[i]
		np.ParameterType = uint32(p.Type)
		np.ShaderVisibility = uint32(p.Visibility)
		switch p.Type {
		case ParamTable:
			first := len(ranges)
			for _, r := range p.Table {
				ranges = append(ranges, _D3D12_DESCRIPTOR_RANGE{
					uint32(r.Type), r.NumDescriptors, r.BaseRegister, r.Space, r.Offset,
				})
			}
			np.u0 = uint32(len(p.Table))
			if len(p.Table) > 0 {
				np.u2 = uintptr(unsafe.Pointer(&ranges[first]))
			}
		case ParamConstants:
			np.u0 = p.Constants.Register
			np.u1 = p.Constants.Space
			np.u2 = uintptr(p.Constants.Num32)
		default:
			np.u0 = p.Descriptor.Register
			np.u1 = p.Descriptor.Space
		}
	}
	samplers := make([]_D3D12_STATIC_SAMPLER_DESC, len(desc.Samplers))
	for i, s := range desc.Samplers {
		samplers[i] = _D3D12_STATIC_SAMPLER_DESC{
			s.Filter, s.AddressU, s.AddressV, s.AddressW, s.MipLODBias,
			s.MaxAnisotropy, s.Comparison, s.BorderColor, s.MinLOD, s.MaxLOD,
			s.Register, s.Space, uint32(s.Visibility),
		}
	}
	ndesc := _D3D12_ROOT_SIGNATURE_DESC{
		NumParameters:     uint32(len(params)),
		NumStaticSamplers: uint32(len(samplers)),
		Flags:             uint32(desc.Flags),
	}
	if len(params) > 0 {
		ndesc.pParameters = &params[0]
	}
	if len(samplers) > 0 {
		ndesc.pStaticSamplers = &samplers[0]
	}

	var blob, errBlob uintptr
	hr, _, _ := syscall.SyscallN(
		procD3D12SerializeRootSignature.Addr(),
		uintptr(unsafe.Pointer(&ndesc)),
		rootSignatureVersion1_0,
		uintptr(unsafe.Pointer(&blob)),
		uintptr(unsafe.Pointer(&errBlob)),
	)
	runtime.KeepAlive(ranges)
	runtime.KeepAlive(params)
	runtime.KeepAlive(samplers)
	var msg string
	if errBlob != 0 {
		msg = string(blobBytes(errBlob))
		comRelease(errBlob)
	}
	if int32(hr) < 0 {
		comRelease(blob)
		return nil, errors.Errorf("D3D12SerializeRootSignature: %#08x: %s", uint32(hr), msg)
	}
	defer comRelease(blob)
	return blobBytes(blob), nil
}

// CreateRootSignature implements Device.
func (d *nativeDevice) CreateRootSignature(nodeMask uint32, blob []byte) (NativeRootSignature, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty root signature blob")
	}
	var obj uintptr
	hr, _, _ := syscall.SyscallN(
		comVtblFn(d.dev, vtblCreateRootSignature),
		d.dev,
		uintptr(nodeMask),
		uintptr(unsafe.Pointer(&blob[0])),
		uintptr(len(blob)),
		uintptr(unsafe.Pointer(&iidID3D12RootSignature)),
		uintptr(unsafe.Pointer(&obj)),
	)
	runtime.KeepAlive(blob)
	if int32(hr) < 0 {
		return nil, errors.Errorf("ID3D12Device::CreateRootSignature: %#08x", uint32(hr))
	}
	return &nativeRootSignature{obj: obj}, nil
}

// Close releases the device.
func (d *nativeDevice) Close() {
	comRelease(d.dev)
	d.dev = 0
}

// Release implements NativeRootSignature.
func (s *nativeRootSignature) Release() {
	comRelease(s.obj)
	s.obj = 0
}
