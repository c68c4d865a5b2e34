package hashdb

import (
	"encoding/json"
	"fmt"
)

// SettingsVersion is the compiled schema id. Opening a database whose
// on-disk settings record carries a different version is fatal.
const SettingsVersion = 3

// Settings is the small structured record written once, at database
// creation, and never modified thereafter.
type Settings struct {
	SettingsVersion  int    `json:"settings_version"`
	ByteAlignment    uint64 `json:"byte_alignment"`
	BlockSize        uint64 `json:"block_size"`
	MaxSourceOffsetPairs uint32 `json:"max_source_offset_pairs"`
	HashPrefixBits   uint32 `json:"hash_prefix_bits"`
	HashSuffixBytes  uint32 `json:"hash_suffix_bytes"`
	HashBlockSize    uint32 `json:"hash_block_size"` // byte width of H_b / H_s in this db
}

// DefaultSettings returns the settings used when a caller does not
// supply its own, matching the values exercised by the spec's literal
// test scenarios (8-byte hashes, 512-byte alignment).
func DefaultSettings() Settings {
	return Settings{
		SettingsVersion:      SettingsVersion,
		ByteAlignment:        512,
		BlockSize:            4096,
		MaxSourceOffsetPairs: 100,
		HashPrefixBits:       16,
		HashSuffixBytes:      6,
		HashBlockSize:        8,
	}
}

// Validate checks internal consistency of a settings record before it
// is written to disk.
func (s Settings) Validate() error {
	if s.SettingsVersion != SettingsVersion {
		return fmt.Errorf("unsupported settings_version %d, expected %d", s.SettingsVersion, SettingsVersion)
	}
	if s.ByteAlignment == 0 {
		return fmt.Errorf("byte_alignment must be nonzero")
	}
	if s.MaxSourceOffsetPairs == 0 {
		return fmt.Errorf("max_source_offset_pairs must be nonzero")
	}
	if s.HashBlockSize < 4 || s.HashBlockSize > 32 {
		return fmt.Errorf("hash byte width %d out of range [4,32]", s.HashBlockSize)
	}
	if s.HashPrefixBits == 0 || s.HashPrefixBits > s.HashBlockSize*8 {
		return fmt.Errorf("hash_prefix_bits %d out of range for %d-byte hashes", s.HashPrefixBits, s.HashBlockSize)
	}
	return nil
}

// MarshalSettings renders settings in their stable, schema-fixed JSON
// key order (struct declaration order, which encoding/json preserves).
func MarshalSettings(s Settings) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// UnmarshalSettings parses a settings record previously written by
// MarshalSettings.
func UnmarshalSettings(data []byte) (Settings, error) {
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("malformed settings record: %w", err)
	}
	return s, nil
}

// AlignOffset reports whether off is a valid offset under s.
func (s Settings) AlignOffset(off uint64) bool {
	return off%s.ByteAlignment == 0
}
