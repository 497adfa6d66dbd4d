// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import (
	"github.com/gviegas/rootsig/driver"
)

// Location of the shader record constant buffer.
const (
	LocalRootSpace    = 0xFFFFFFEF
	LocalRootRegister = 0
)

// MaxShaderRecordSize is the largest shader record that a
// local root signature can expose, in bytes.
const MaxShaderRecordSize = 256

// LocalRootSignature is the root signature of the shader
// records of a ray tracing pipeline.
// Records are exposed as 32-bit constants bound to a
// reserved register.
type LocalRootSignature struct {
	Name       string
	RecordSize uint32
	desc       RootSignatureDesc
	native     NativeRootSignature
}

// newLocalRootSignature creates a local root signature for
// records of the given size.
func newLocalRootSignature(dev Device, name string, size int, cfg *Config) (*LocalRootSignature, error) {
	const op = "CreateLocalRootSignature"
	switch {
	case name == "":
		return nil, configErr(op, "shader record has no name")
	case size <= 0 || size%4 != 0:
		return nil, configErr(op, "shader record %q has size %d, which is not a positive multiple of 4", name, size)
	case size > MaxShaderRecordSize:
		return nil, configErr(op, "shader record %q has size %d, which exceeds %d", name, size, MaxShaderRecordSize)
	}
	l := &LocalRootSignature{
		Name:       name,
		RecordSize: uint32(size),
		desc: RootSignatureDesc{
			Params: []RootParameter{{
				Type:       ParamConstants,
				Visibility: VisAll,
				Constants: RootConstants{
					Register: LocalRootRegister,
					Space:    LocalRootSpace,
					Num32:    uint32(size / 4),
				},
			}},
			Flags: FlagLocalRootSignature,
		},
	}
	blob, err := dev.SerializeRootSignature(&l.desc)
	if err != nil {
		return nil, nativeErr(op, err, "failed to serialize local root signature %q", name)
	}
	if l.native, err = dev.CreateRootSignature(cfg.NodeMask, blob); err != nil {
		return nil, nativeErr(op, err, "failed to create local root signature %q", name)
	}
	log().Debug("local root signature created", "name", name, "size", size)
	return l, nil
}

// BindInfo returns the binding of the shader record.
func (l *LocalRootSignature) BindInfo() BindInfo {
	return BindInfo{
		BindPoint: LocalRootRegister,
		Space:     LocalRootSpace,
		ArraySize: 1,
		Type:      driver.DConstant,
	}
}

// Desc returns the native description.
// It must not be modified.
func (l *LocalRootSignature) Desc() *RootSignatureDesc { return &l.desc }

// Native returns the native root signature.
func (l *LocalRootSignature) Native() NativeRootSignature { return l.native }

// Destroy releases the native root signature.
func (l *LocalRootSignature) Destroy() {
	if l == nil || l.native == nil {
		return
	}
	l.native.Release()
	l.native = nil
}
