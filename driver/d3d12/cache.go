// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import (
	"sync"
)

// rootSigCache deduplicates root signatures by content.
// Entries do not hold references: an entry whose
// reference count has dropped to zero cannot be resolved
// and is removed when a root signature of the same bucket
// is destroyed.
type rootSigCache struct {
	dev Device
	cfg *Config

	mu     sync.Mutex
	m      map[uint64][]*RootSignature
	hits   int64
	misses int64
}

func newRootSigCache(dev Device, cfg *Config) *rootSigCache {
	return &rootSigCache{
		dev: dev,
		cfg: cfg,
		m:   make(map[uint64][]*RootSignature),
	}
}

// combineHash mixes v into seed.
func combineHash(seed, v uint64) uint64 {
	return seed ^ (v + 0x9e3779b97f4a7c15 + seed<<6 + seed>>2)
}

// hashSignatures computes the combined hash of sigs, which
// is indexed by binding index.
func hashSignatures(sigs []*Signature) uint64 {
	h := combineHash(0, uint64(len(sigs)))
	for _, s := range sigs {
		var v uint64
		if s != nil {
			v = s.Hash()
		}
		h = combineHash(h, v)
	}
	return h
}

// compatible returns whether the signatures of rs match
// sigs slot by slot.
func (rs *RootSignature) compatible(sigs []*Signature) bool {
	if len(rs.sigs) != len(sigs) {
		return false
	}
	for i, s := range sigs {
		switch t := rs.sigs[i]; {
		case s == nil && t == nil:
		case s == nil || t == nil:
			return false
		case !t.IsCompatibleWith(s):
			return false
		}
	}
	return true
}

// GetOrCreate returns a root signature for sigs, which is
// indexed by binding index.
// The returned root signature holds a new reference that
// the caller must release.
func (c *rootSigCache) GetOrCreate(sigs []*Signature) (*RootSignature, error) {
	hash := hashSignatures(sigs)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rs := range c.m[hash] {
		if rs.compatible(sigs) && rs.tryAddRef() {
			c.hits++
			log().Debug("root signature cache hit", "hash", hash)
			return rs, nil
		}
	}
	c.misses++
	rs, err := newRootSignature(c.dev, sigs, hash, c.cfg)
	if err != nil {
		return nil, err
	}
	rs.cache = c
	c.m[hash] = append(c.m[hash], rs)
	log().Debug("root signature cache miss", "hash", hash, "bucket", len(c.m[hash]))
	return rs, nil
}

// sweep removes unresolvable entries whose hash is hash.
func (c *rootSigCache) sweep(hash uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.m[hash]
	n := 0
	for _, rs := range b {
		if rs.refs.Load() > 0 {
			b[n] = rs
			n++
		}
	}
	clear(b[n:])
	if n == 0 {
		delete(c.m, hash)
	} else {
		c.m[hash] = b[:n]
	}
}

// Len returns the number of entries in the cache,
// including unresolvable ones.
func (c *rootSigCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.m {
		n += len(b)
	}
	return n
}

// Stats returns the number of cache hits and misses.
func (c *rootSigCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
