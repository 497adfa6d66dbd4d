// Copyright 2024 Gustavo C. Viegas. All rights reserved.

//go:build !windows || !(amd64 || arm64)

package d3d12

import "github.com/gviegas/rootsig/driver"

// openNativeDevice fails on platforms without d3d12.dll.
func openNativeDevice() (Device, error) { return nil, driver.ErrNotInstalled }
