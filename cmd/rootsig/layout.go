// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package main

import (
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/gviegas/rootsig/driver"
)

// layout is the contents of a layout file.
type layout struct {
	Signatures []signature `toml:"signature"`
	Pipeline   pipeline    `toml:"pipeline"`
}

type signature struct {
	Name         string     `toml:"name"`
	BindingIndex int        `toml:"binding_index"`
	Resources    []resource `toml:"resource"`
	Samplers     []sampler  `toml:"sampler"`
}

type resource struct {
	Name             string   `toml:"name"`
	Type             string   `toml:"type"`
	Stages           []string `toml:"stages"`
	Len              int      `toml:"len"`
	Var              string   `toml:"var"`
	RuntimeArray     bool     `toml:"runtime_array"`
	NoDynamicBuffers bool     `toml:"no_dynamic_buffers"`
}

type sampler struct {
	Name     string    `toml:"name"`
	Stages   []string  `toml:"stages"`
	Min      string    `toml:"min"`
	Mag      string    `toml:"mag"`
	Mipmap   string    `toml:"mipmap"`
	Address  [3]string `toml:"address"`
	MaxAniso int       `toml:"max_aniso"`
	Compare  string    `toml:"compare"`
	Border   string    `toml:"border"`
	MinLOD   float32   `toml:"min_lod"`
	MaxLOD   float32   `toml:"max_lod"`
	LODBias  float32   `toml:"lod_bias"`
}

type pipeline struct {
	Type             string `toml:"type"`
	ShaderRecordName string `toml:"shader_record_name"`
	ShaderRecordSize int    `toml:"shader_record_size"`
}

var (
	descTypes = map[string]driver.DescType{
		"buffer":      driver.DBuffer,
		"image":       driver.DImage,
		"constant":    driver.DConstant,
		"texture":     driver.DTexture,
		"sampler":     driver.DSampler,
		"buffer_ro":   driver.DBufferRO,
		"accelstruct": driver.DAccelStruct,
	}
	varTypes = map[string]driver.VarType{
		"":        driver.VMutable,
		"static":  driver.VStatic,
		"mutable": driver.VMutable,
		"dynamic": driver.VDynamic,
	}
	filters = map[string]driver.Filter{
		"":         driver.FNearest,
		"nearest":  driver.FNearest,
		"linear":   driver.FLinear,
		"nomipmap": driver.FNoMipmap,
	}
	addrModes = map[string]driver.AddrMode{
		"":       driver.AWrap,
		"wrap":   driver.AWrap,
		"mirror": driver.AMirror,
		"clamp":  driver.AClamp,
		"border": driver.ABorder,
	}
	cmpFuncs = map[string]driver.CmpFunc{
		"never":         driver.CNever,
		"less":          driver.CLess,
		"equal":         driver.CEqual,
		"less_equal":    driver.CLessEqual,
		"greater":       driver.CGreater,
		"not_equal":     driver.CNotEqual,
		"greater_equal": driver.CGreaterEqual,
		"always":        driver.CAlways,
	}
	borders = map[string]driver.BorderColor{
		"":                  driver.BTransparentBlack,
		"transparent_black": driver.BTransparentBlack,
		"opaque_black":      driver.BOpaqueBlack,
		"opaque_white":      driver.BOpaqueWhite,
	}
	pipelineTypes = map[string]driver.PipelineType{
		"":           driver.PGraphics,
		"graphics":   driver.PGraphics,
		"compute":    driver.PCompute,
		"mesh":       driver.PMesh,
		"raytracing": driver.PRayTracing,
	}
)

// lookup returns m[key] or an error naming what.
func lookup[T any](m map[string]T, what, key string) (T, error) {
	v, ok := m[strings.ToLower(key)]
	if !ok {
		return v, errors.Errorf("unknown %s %q", what, key)
	}
	return v, nil
}

// parseStage converts stage names to a driver.Stage.
// Names are the ones that driver.Stage.String produces.
func parseStage(names []string) (driver.Stage, error) {
	var s driver.Stage
	for _, name := range names {
		name = strings.ToLower(name)
		if name == "all" {
			s |= driver.SAll
			continue
		}
		found := false
		for b := driver.SVertex; b <= driver.SCallable; b <<= 1 {
			if b.String() == name {
				s |= b
				found = true
				break
			}
		}
		if !found {
			return 0, errors.Errorf("unknown stage %q", name)
		}
	}
	return s, nil
}

// loadLayout reads a layout file.
func loadLayout(path string) (*layout, error) {
	var l layout
	md, err := toml.DecodeFile(path, &l)
	if err != nil {
		return nil, errors.Wrapf(err, "reading layout %s", path)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		slog.Warn("unknown layout keys", "path", path, "keys", keys)
	}
	if len(l.Signatures) == 0 {
		return nil, errors.Errorf("layout %s has no signatures", path)
	}
	return &l, nil
}

// descs converts the signatures of l.
func (l *layout) descs() ([]driver.SignatureDesc, error) {
	descs := make([]driver.SignatureDesc, len(l.Signatures))
	for i := range l.Signatures {
		s := &l.Signatures[i]
		d := &descs[i]
		d.Name = s.Name
		d.BindingIndex = s.BindingIndex
		d.Descs = make([]driver.Descriptor, len(s.Resources))
		for j := range s.Resources {
			if err := s.Resources[j].conv(&d.Descs[j]); err != nil {
				return nil, errors.Wrapf(err, "signature %q: resource %q", s.Name, s.Resources[j].Name)
			}
		}
		d.Splrs = make([]driver.ImmutableSampler, len(s.Samplers))
		for j := range s.Samplers {
			if err := s.Samplers[j].conv(&d.Splrs[j]); err != nil {
				return nil, errors.Wrapf(err, "signature %q: sampler %q", s.Name, s.Samplers[j].Name)
			}
		}
	}
	return descs, nil
}

func (r *resource) conv(d *driver.Descriptor) (err error) {
	d.Name = r.Name
	d.Len = r.Len
	if d.Type, err = lookup(descTypes, "type", r.Type); err != nil {
		return
	}
	if d.Stages, err = parseStage(r.Stages); err != nil {
		return
	}
	if d.Var, err = lookup(varTypes, "var", r.Var); err != nil {
		return
	}
	if r.RuntimeArray {
		d.Flags |= driver.FRuntimeArray
	} else if d.Len == 0 {
		d.Len = 1
	}
	if r.NoDynamicBuffers {
		d.Flags |= driver.FNoDynamicBuffers
	}
	return
}

func (s *sampler) conv(is *driver.ImmutableSampler) (err error) {
	is.Name = s.Name
	if is.Stages, err = parseStage(s.Stages); err != nil {
		return
	}
	spln := &is.Sampling
	if spln.Min, err = lookup(filters, "filter", s.Min); err != nil {
		return
	}
	if spln.Mag, err = lookup(filters, "filter", s.Mag); err != nil {
		return
	}
	if spln.Mipmap, err = lookup(filters, "filter", s.Mipmap); err != nil {
		return
	}
	for i, am := range [...]*driver.AddrMode{&spln.AddrU, &spln.AddrV, &spln.AddrW} {
		if *am, err = lookup(addrModes, "address mode", s.Address[i]); err != nil {
			return
		}
	}
	if s.Compare != "" {
		if spln.Cmp, err = lookup(cmpFuncs, "comparison", s.Compare); err != nil {
			return
		}
		spln.Compare = true
	}
	if spln.Border, err = lookup(borders, "border color", s.Border); err != nil {
		return
	}
	spln.MaxAniso = s.MaxAniso
	spln.MinLOD = s.MinLOD
	spln.MaxLOD = s.MaxLOD
	spln.LODBias = s.LODBias
	return
}
