// Package config loads run configuration for dnpak.
//
// Configuration is read from a single YAML file named by the --config
// flag or the DNPAK_CONFIG environment variable. There is no automatic
// discovery; without a file the defaults apply. Command-line flags
// override file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"dnpak/pkg/core"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "DNPAK_CONFIG"

// Config is the run configuration.
type Config struct {
	// KeyList is the candidate key file, one key per line.
	KeyList string `yaml:"key_list"`

	// Encryption enables the key search for non-exempt entries.
	Encryption bool `yaml:"encryption"`

	// Workers bounds concurrent entries. Zero means one per CPU.
	Workers int `yaml:"workers"`

	// Exempt lists entries stored without encryption.
	Exempt ExemptConfig `yaml:"exempt"`

	// Output configures how extracted files are written.
	Output OutputConfig `yaml:"output"`

	// LogLevel is "info" or "debug".
	LogLevel string `yaml:"log_level"`
}

// ExemptConfig mirrors core.ExemptPolicy.
type ExemptConfig struct {
	Suffixes []string `yaml:"suffixes"`
	Markers  []string `yaml:"markers"`
}

// OutputConfig configures extracted files.
type OutputConfig struct {
	// Compression is "none" or "lz4".
	Compression string `yaml:"compression"`

	// Manifest, when set, receives a YAML report of the run.
	Manifest string `yaml:"manifest"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	exempt := core.DefaultExemptPolicy()
	return &Config{
		KeyList:    "keylist.txt",
		Encryption: true,
		Workers:    runtime.NumCPU(),
		Exempt: ExemptConfig{
			Suffixes: exempt.Suffixes,
			Markers:  exempt.Markers,
		},
		Output:   OutputConfig{Compression: string(core.CompressionNone)},
		LogLevel: "info",
	}
}

// Load reads path over the defaults. An empty path falls back to
// DNPAK_CONFIG, and to the defaults when that is unset too.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if _, err := core.ParseCompression(c.Output.Compression); err != nil {
		errs = append(errs, err)
	}
	switch c.LogLevel {
	case "", "info", "debug":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level: %q", c.LogLevel))
	}
	if c.Encryption && c.KeyList == "" {
		errs = append(errs, errors.New("key_list is required when encryption is enabled"))
	}
	return errors.Join(errs...)
}

// Options converts the configuration to extraction options.
func (c *Config) Options() (core.Options, error) {
	comp, err := core.ParseCompression(c.Output.Compression)
	if err != nil {
		return core.Options{}, err
	}
	return core.Options{
		Encryption:  c.Encryption,
		KeyListPath: c.KeyList,
		Exempt: core.ExemptPolicy{
			Suffixes: c.Exempt.Suffixes,
			Markers:  c.Exempt.Markers,
		},
		Workers:     c.Workers,
		Compression: comp,
	}, nil
}
