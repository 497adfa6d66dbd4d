// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package d3d12 implements driver interfaces using the
// Direct3D 12 binding model.
// Signatures are composed into root signatures, which are
// shared between pipelines, and shader bytecode is remapped
// to match them.
package d3d12

import (
	"math"

	"github.com/gviegas/rootsig/driver"
)

const driverName = "d3d12"

// Driver implements driver.Driver and driver.GPU.
type Driver struct {
	cfg   Config
	comp  DXCompiler
	dev   Device
	cache *rootSigCache
	remap *Remapper
	lim   driver.Limits
}

func init() {
	driver.Register(&Driver{cfg: DefaultConfig()})
}

// Configure sets the configuration to use on Open.
// It must not be called while the driver is open.
func (d *Driver) Configure(cfg Config) error {
	if d.dev != nil {
		return configErr("Configure", "driver is open")
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	d.cfg = cfg
	return nil
}

// SetCompiler sets the compiler used to reflect and remap
// DXIL shaders. It may be nil.
func (d *Driver) SetCompiler(comp DXCompiler) { d.comp = comp }

// Open initializes the driver.
// It uses the native device unless Config.SoftDevice is
// set, falling back to the software device when d3d12.dll
// cannot be loaded.
func (d *Driver) Open() (gpu driver.GPU, err error) {
	if d.dev != nil {
		return d, nil
	}
	var dev Device
	if !d.cfg.SoftDevice {
		if dev, err = openNativeDevice(); err != nil {
			log().Info("native device unavailable, using soft device", "err", err)
		}
	}
	if dev == nil {
		dev = newSoftDevice()
	}
	if d.remap, err = NewRemapper(d.cfg.BlobCacheSize); err != nil {
		d.Close()
		return nil, err
	}
	d.dev = dev
	d.cache = newRootSigCache(dev, &d.cfg)
	d.lim = driver.Limits{
		MaxSignatures:        MaxSignatures,
		MaxRootParams:        MaxRootCost,
		MaxImmutableSamplers: 2032,
		MaxRegisterSpace:     math.MaxInt32,
		MaxShaderRecordSize:  MaxShaderRecordSize,
	}
	log().Info("driver opened", "device", dev.Name())
	return d, nil
}

// Name returns the driver name.
func (d *Driver) Name() string { return driverName }

// Close deinitializes the driver.
// The configuration and compiler are kept.
func (d *Driver) Close() {
	if d == nil {
		return
	}
	if c, ok := d.dev.(interface{ Close() }); ok {
		c.Close()
	}
	*d = Driver{cfg: d.cfg, comp: d.comp}
}

// Driver implements driver.GPU.
func (d *Driver) Driver() driver.Driver { return d }

// Limits implements driver.GPU.
func (d *Driver) Limits() driver.Limits { return d.lim }

// Device returns the device in use.
// It is nil if the driver is not open.
func (d *Driver) Device() Device { return d.dev }

// CacheStats returns the number of root signature cache
// hits and misses.
func (d *Driver) CacheStats() (hits, misses int64) { return d.cache.Stats() }

// NewShaderCode implements driver.GPU.
func (d *Driver) NewShaderCode(data []byte) (driver.ShaderCode, error) {
	c, err := newShaderCode(data)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewSignature implements driver.GPU.
func (d *Driver) NewSignature(desc *driver.SignatureDesc) (driver.Signature, error) {
	s, err := NewSignature(desc)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewLayout implements driver.GPU.
// The returned layout is a *RootSignature.
func (d *Driver) NewLayout(sigs []driver.Signature) (driver.Layout, error) {
	ss, err := sortSignatures("NewLayout", sigs)
	if err != nil {
		return nil, err
	}
	rs, err := d.cache.GetOrCreate(ss)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// sortSignatures arranges sigs by binding index.
// Unused indices are nil.
func sortSignatures(op string, sigs []driver.Signature) ([]*Signature, error) {
	n := 0
	for _, s := range sigs {
		s, ok := s.(*Signature)
		if !ok || s == nil {
			return nil, configErr(op, "signature was not created by this driver")
		}
		n = max(n, s.BindingIndex()+1)
	}
	ss := make([]*Signature, n)
	for _, s := range sigs {
		s := s.(*Signature)
		i := s.BindingIndex()
		if ss[i] != nil {
			return nil, configErr(op, "signatures %q and %q have the same binding index %d", ss[i].Name(), s.Name(), i)
		}
		ss[i] = s
	}
	return ss, nil
}
