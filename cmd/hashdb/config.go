package main

import (
	"fmt"
	"os"

	"github.com/5l1v3r1/hashdb/pkg/hashdb"
	"gopkg.in/yaml.v2"
)

// cliConfig holds the optional defaults an operator can pin in a
// config file instead of repeating settings flags on every `create`,
// mirroring the teacher's internal/config.Config. Unlike the
// teacher's GetConfig, a missing file is not fatal here: the CLI has
// sane built-in defaults (hashdb.DefaultSettings) and a config file is
// a convenience, not a precondition for booting a server process.
type cliConfig struct {
	LogLevel             string `yaml:"log_level"`
	ByteAlignment        uint64 `yaml:"byte_alignment"`
	BlockSize            uint64 `yaml:"block_size"`
	MaxSourceOffsetPairs uint32 `yaml:"max_source_offset_pairs"`
	HashPrefixBits       uint32 `yaml:"hash_prefix_bits"`
	HashSuffixBytes      uint32 `yaml:"hash_suffix_bytes"`
	HashBlockSize        uint32 `yaml:"hash_block_size"`
}

// loadConfig reads path if it exists, returning a zero-value
// cliConfig (meaning "use hashdb.DefaultSettings() untouched") when it
// doesn't.
func loadConfig(path string) (cliConfig, error) {
	var cfg cliConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// settingsFromConfig overlays cfg's nonzero fields onto
// hashdb.DefaultSettings().
func settingsFromConfig(cfg cliConfig) hashdb.Settings {
	s := hashdb.DefaultSettings()
	if cfg.ByteAlignment != 0 {
		s.ByteAlignment = cfg.ByteAlignment
	}
	if cfg.BlockSize != 0 {
		s.BlockSize = cfg.BlockSize
	}
	if cfg.MaxSourceOffsetPairs != 0 {
		s.MaxSourceOffsetPairs = cfg.MaxSourceOffsetPairs
	}
	if cfg.HashPrefixBits != 0 {
		s.HashPrefixBits = cfg.HashPrefixBits
	}
	if cfg.HashSuffixBytes != 0 {
		s.HashSuffixBytes = cfg.HashSuffixBytes
	}
	if cfg.HashBlockSize != 0 {
		s.HashBlockSize = cfg.HashBlockSize
	}
	return s
}
