package logunit

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var configValidate = validator.New()

// EngineConfig configures an Engine instance, grounded on the
// ClusterConfig/DefaultClusterConfig/Validate() triad in
// pkg/cluster/config.go.
type EngineConfig struct {
	// LogDir is the filesystem path holding segment files. Created if
	// absent.
	LogDir string `yaml:"logDir" validate:"required"`

	// NoVerify disables checksum verification on read. Header records
	// still carry VerifyChecksum consistent with this flag.
	NoVerify bool `yaml:"noVerify"`

	// RecordsPerLogFile is the number of addresses packed into one
	// segment.
	RecordsPerLogFile int64 `yaml:"recordsPerLogFile" validate:"required,gt=0"`

	// Version is written into every FileHeader and checked on open.
	Version uint32 `yaml:"version" validate:"required,gt=0"`

	// CompactThreshold bounds the live-to-pending ratio compaction
	// compares against: a full segment is rewritten when
	// pending*CompactThreshold >= live.
	CompactThreshold int64 `yaml:"compactThreshold" validate:"required,gt=0"`

	// StreamSegmentsEnabled controls whether stream-tagged addresses
	// (LogAddress.Stream != nil) are accepted. Disabling this collapses
	// an engine to a single global namespace, rejecting any operation
	// against a stream-tagged address with ErrStreamSegmentsDisabled.
	StreamSegmentsEnabled bool `yaml:"streamSegmentsEnabled"`

	// ColdArchive configures optional cold-tier archiving of compacted
	// segments. When Enabled, cmd/logunit-server constructs an
	// Archiver from Bucket/Prefix and installs it on the Engine; the
	// storage core itself never reads this field.
	ColdArchive ColdArchiveConfig `yaml:"coldArchive"`
}

// ColdArchiveConfig configures the optional S3 cold-archive hook.
type ColdArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket" validate:"required_if=Enabled true"`
	Prefix  string `yaml:"prefix"`
}

// DefaultEngineConfig returns the compile-time default configuration.
func DefaultEngineConfig(logDir string) EngineConfig {
	return EngineConfig{
		LogDir:                logDir,
		NoVerify:              false,
		RecordsPerLogFile:     10000,
		Version:               1,
		CompactThreshold:      20,
		StreamSegmentsEnabled: true,
		ColdArchive:           ColdArchiveConfig{Prefix: "logunit"},
	}
}

// Validate checks the configuration's structural constraints.
func (c *EngineConfig) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("logunit: invalid engine config: %w", err)
	}
	return nil
}

// LoadEngineConfigYAML reads an EngineConfig from a YAML file, applying
// DefaultEngineConfig("") first so a partial file only overrides what it
// names; the file must set logDir, since the default leaves it empty.
func LoadEngineConfigYAML(path string) (EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("logunit: reading config %s: %w", path, err)
	}

	cfg := DefaultEngineConfig("")
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("logunit: parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}
