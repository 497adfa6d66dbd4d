// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gviegas/rootsig/driver"
	"github.com/gviegas/rootsig/driver/d3d12"
)

// count formats a descriptor count.
func count(n uint32) string {
	if n == d3d12.Unbounded {
		return "unbounded"
	}
	return fmt.Sprint(n)
}

// printRootSignature writes a description of rs to w.
func printRootSignature(w io.Writer, rs *d3d12.RootSignature) error {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "root signature %#016x\n", rs.Hash())
	fmt.Fprintf(tw, "spaces:\t%d\n", rs.TotalSpacesUsed())
	for i := range rs.NumSignatures() {
		s := rs.Signature(i)
		if s == nil {
			fmt.Fprintf(tw, "signature %d:\t(none)\n", i)
			continue
		}
		b := rs.Base(i)
		fmt.Fprintf(tw, "signature %d:\t%q\troot %d\tspace %d\n", i, s.Name(), b.RootIndex, b.RegisterSpace)
	}

	desc := rs.Desc()
	fmt.Fprintf(tw, "parameters:\t%d\n", len(desc.Params))
	for i := range desc.Params {
		p := &desc.Params[i]
		switch p.Type {
		case d3d12.ParamTable:
			fmt.Fprintf(tw, "  [%d]\t%s\t%s\n", i, p.Type, p.Visibility)
			for _, r := range p.Table {
				fmt.Fprintf(tw, "  \t%s%d\tspace %d\tcount %s\toffset %d\n",
					r.Type, r.BaseRegister, r.Space, count(r.NumDescriptors), r.Offset)
			}
		case d3d12.ParamConstants:
			fmt.Fprintf(tw, "  [%d]\t%s\t%s\tb%d\tspace %d\tnum32 %d\n",
				i, p.Type, p.Visibility, p.Constants.Register, p.Constants.Space, p.Constants.Num32)
		default:
			fmt.Fprintf(tw, "  [%d]\t%s\t%s\t%d\tspace %d\n",
				i, p.Type, p.Visibility, p.Descriptor.Register, p.Descriptor.Space)
		}
	}
	fmt.Fprintf(tw, "static samplers:\t%d\n", len(desc.Samplers))
	for i := range desc.Samplers {
		ss := &desc.Samplers[i]
		fmt.Fprintf(tw, "  [%d]\ts%d\tspace %d\t%s\tfilter %#x\n", i, ss.Register, ss.Space, ss.Visibility, ss.Filter)
	}
	return tw.Flush()
}

// printBindings writes the binding map of every stage in
// stages to w.
func printBindings(w io.Writer, rs *d3d12.RootSignature, stages driver.Stage) error {
	sigs := make([]*d3d12.Signature, rs.NumSignatures())
	for i := range sigs {
		sigs[i] = rs.Signature(i)
	}
	for b := driver.SVertex; b <= driver.SCallable; b <<= 1 {
		if stages&b == 0 {
			continue
		}
		m, _, err := d3d12.BuildBindingMap(b, sigs, rs, nil)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s:\n", b); err != nil {
			return err
		}
		if err := m.Dump(w); err != nil {
			return err
		}
	}
	return nil
}
