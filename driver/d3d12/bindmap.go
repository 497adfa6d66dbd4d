// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import (
	"fmt"
	"io"
	"slices"

	"golang.org/x/exp/maps"

	"github.com/gviegas/rootsig/driver"
)

// BindInfo is the location of a named shader resource.
// ArraySize is 0 for unbounded arrays.
type BindInfo struct {
	BindPoint uint32
	Space     uint32
	ArraySize uint32
	Type      driver.DescType
}

// ResourceBindingMap maps resource names to their
// locations in a root signature.
type ResourceBindingMap map[string]BindInfo

// Insert adds a new entry to m.
// It fails if name is already present.
func (m ResourceBindingMap) Insert(name string, bi BindInfo) error {
	if old, ok := m[name]; ok {
		return configErr("ResourceBindingMap.Insert", "%q is bound to both %s and %s", name, old, bi)
	}
	m[name] = bi
	return nil
}

// Names returns the names in m in sorted order.
func (m ResourceBindingMap) Names() []string {
	names := maps.Keys(m)
	slices.Sort(names)
	return names
}

// Dump writes the entries of m to w, one per line, in
// sorted order.
func (m ResourceBindingMap) Dump(w io.Writer) error {
	for _, name := range m.Names() {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", name, m[name]); err != nil {
			return err
		}
	}
	return nil
}

// String returns the location of bi in HLSL notation.
func (bi BindInfo) String() string {
	arr := ""
	switch bi.ArraySize {
	case 0:
		arr = "[]"
	case 1:
	default:
		arr = fmt.Sprintf("[%d]", bi.ArraySize)
	}
	return fmt.Sprintf("%s%d%s space%d (%s)", rangeType(bi.Type), bi.BindPoint, arr, bi.Space, bi.Type)
}
