// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package driver_test

import (
	"log"

	"github.com/gviegas/rootsig/driver"
	_ "github.com/gviegas/rootsig/driver/d3d12"
)

var (
	drv driver.Driver
	gpu driver.GPU
)

// TODO: Update when other backends are implemented.
func init() {
	// Select a driver to use.
	drivers := driver.Drivers()
drvLoop:
	for i := range drivers {
		switch drivers[i].Name() {
		case "d3d12":
			drv = drivers[i]
			break drvLoop
		}
	}
	if drv == nil {
		log.Fatal("driver.Drivers(): driver not found")
	}
	var err error
	gpu, err = drv.Open()
	if err != nil {
		log.Fatal(err)
	}
	// Ideally, we should call drv.Close somewhere.
}

// Per-frame resources.
var frameDesc = driver.SignatureDesc{
	Name:         "frame",
	BindingIndex: 0,
	Descs: []driver.Descriptor{
		{Name: "Camera", Type: driver.DConstant, Stages: driver.SVertex | driver.SFragment, Len: 1, Var: driver.VDynamic},
		{Name: "Lights", Type: driver.DBufferRO, Stages: driver.SFragment, Len: 1, Var: driver.VMutable},
	},
}

// Per-material resources.
var materialDesc = driver.SignatureDesc{
	Name:         "material",
	BindingIndex: 1,
	Descs: []driver.Descriptor{
		{Name: "albedo", Type: driver.DTexture, Stages: driver.SFragment, Len: 1, Var: driver.VMutable},
		{Name: "textures", Type: driver.DTexture, Stages: driver.SFragment, Var: driver.VMutable, Flags: driver.FRuntimeArray},
		{Name: "smp", Type: driver.DSampler, Stages: driver.SFragment, Len: 1, Var: driver.VStatic},
	},
	Splrs: []driver.ImmutableSampler{
		{Name: "smp", Stages: driver.SFragment, Sampling: driver.Sampling{Min: driver.FLinear, Mag: driver.FLinear, Mipmap: driver.FLinear, MaxLOD: 1000}},
	},
}
