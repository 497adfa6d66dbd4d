// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import (
	"github.com/gviegas/rootsig/driver"
)

// D3D12_FILTER bits.
const (
	filterMipLinear   = 0x1
	filterMagLinear   = 0x4
	filterMinLinear   = 0x10
	filterAnisotropic = 0x55
	filterComparison  = 0x80
)

const maxAnisotropy = 16

// convSampling converts a driver.Sampling to a static
// sampler. Register, space and visibility are left unset.
func convSampling(spln *driver.Sampling) StaticSampler {
	var filter uint32
	if spln.Min == driver.FLinear {
		filter |= filterMinLinear
	}
	if spln.Mag == driver.FLinear {
		filter |= filterMagLinear
	}
	if spln.Mipmap == driver.FLinear {
		filter |= filterMipLinear
	}
	aniso := uint32(min(max(spln.MaxAniso, 1), maxAnisotropy))
	if aniso > 1 {
		filter = filterAnisotropic
	}
	cmp := uint32(0)
	if spln.Compare {
		filter |= filterComparison
		cmp = convCmpFunc(spln.Cmp)
	}
	maxLOD := spln.MaxLOD
	if spln.Mipmap == driver.FNoMipmap {
		maxLOD = spln.MinLOD
	}
	return StaticSampler{
		Filter:        filter,
		AddressU:      convAddrMode(spln.AddrU),
		AddressV:      convAddrMode(spln.AddrV),
		AddressW:      convAddrMode(spln.AddrW),
		MipLODBias:    spln.LODBias,
		MaxAnisotropy: aniso,
		Comparison:    cmp,
		BorderColor:   uint32(spln.Border),
		MinLOD:        spln.MinLOD,
		MaxLOD:        maxLOD,
	}
}

// convAddrMode converts a driver.AddrMode to a
// D3D12_TEXTURE_ADDRESS_MODE.
func convAddrMode(am driver.AddrMode) uint32 {
	switch am {
	case driver.AWrap:
		return 1
	case driver.AMirror:
		return 2
	case driver.AClamp:
		return 3
	case driver.ABorder:
		return 4
	}

	// Expected to be unreachable.
	return 0
}

// convCmpFunc converts a driver.CmpFunc to a
// D3D12_COMPARISON_FUNC.
func convCmpFunc(cf driver.CmpFunc) uint32 {
	if cf < driver.CNever || cf > driver.CAlways {
		// Expected to be unreachable.
		return 0
	}
	return uint32(cf-driver.CNever) + 1
}

// convStage converts a driver.Stage to a shader visibility.
// Stages that have no dedicated visibility, as well as
// combinations of stages, are visible to all.
func convStage(s driver.Stage) Visibility {
	switch s {
	case driver.SVertex:
		return VisVertex
	case driver.SFragment:
		return VisPixel
	case driver.SGeometry:
		return VisGeometry
	case driver.SHull:
		return VisHull
	case driver.SDomain:
		return VisDomain
	case driver.SAmplification:
		return VisAmplification
	case driver.SMesh:
		return VisMesh
	}
	return VisAll
}
