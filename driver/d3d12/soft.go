// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// softDevice is a Device implemented in Go.
// It serializes and validates root signatures the way the
// native runtime does, but creates no GPU objects.
type softDevice struct {
	created  atomic.Int64
	released atomic.Int64
}

// softRootSignature is the NativeRootSignature of
// softDevice.
type softRootSignature struct {
	dev  *softDevice
	desc *RootSignatureDesc
	done atomic.Bool
}

func newSoftDevice() *softDevice { return &softDevice{} }

func (d *softDevice) Name() string { return "soft" }

// SerializeRootSignature implements Device.
func (d *softDevice) SerializeRootSignature(desc *RootSignatureDesc) ([]byte, error) {
	if err := validateRootSignature(desc); err != nil {
		return nil, err
	}
	return SerializeRootSignature(desc), nil
}

// CreateRootSignature implements Device.
func (d *softDevice) CreateRootSignature(nodeMask uint32, blob []byte) (NativeRootSignature, error) {
	if nodeMask&(nodeMask-1) != 0 {
		return nil, errors.Errorf("node mask %#x has more than one bit set", nodeMask)
	}
	desc, err := DeserializeRootSignature(blob)
	if err != nil {
		return nil, err
	}
	if err := validateRootSignature(desc); err != nil {
		return nil, err
	}
	d.created.Add(1)
	return &softRootSignature{dev: d, desc: desc}, nil
}

// Created returns the number of root signatures that the
// device has created.
func (d *softDevice) Created() int64 { return d.created.Load() }

// Live returns the number of root signatures that have
// not been released.
func (d *softDevice) Live() int64 { return d.created.Load() - d.released.Load() }

// Release implements NativeRootSignature.
func (s *softRootSignature) Release() {
	if s.done.CompareAndSwap(false, true) {
		s.dev.released.Add(1)
	}
}
