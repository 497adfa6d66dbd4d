// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import (
	"io"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config controls the behavior of the driver.
// It is usually read from a TOML file.
type Config struct {
	// DisableRemapping makes pipeline creation validate
	// the bindings of shaders instead of patching them.
	DisableRemapping bool `toml:"disable_remapping"`
	// SoftDevice forces the use of the software device,
	// even where d3d12.dll is available.
	SoftDevice bool `toml:"soft_device"`
	// DebugChecks enables root slot tracking during root
	// signature composition.
	DebugChecks bool `toml:"debug_checks"`
	// NodeMask is passed to the native device when root
	// signatures are created.
	NodeMask uint32 `toml:"node_mask"`
	// BlobCacheSize is the number of remapped shaders that
	// are kept in memory. Zero disables the cache.
	BlobCacheSize int `toml:"blob_cache_size"`
}

// DefaultConfig returns the configuration used when none
// is given.
func DefaultConfig() Config {
	return Config{BlobCacheSize: 256}
}

// LoadConfig reads a configuration file.
// Keys missing from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return DefaultConfig(), errors.Wrapf(err, "d3d12: reading config %s", path)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		log().Warn("unknown config keys", "path", path, "keys", keys)
	}
	if err := cfg.validate(); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// Encode writes cfg to w in TOML format.
func (cfg *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(cfg)
}

func (cfg *Config) validate() error {
	if cfg.BlobCacheSize < 0 {
		return configErr("LoadConfig", "blob_cache_size is negative (%d)", cfg.BlobCacheSize)
	}
	return nil
}
