// Package config loads bdup's run configuration: defaults, overridden by an
// optional YAML file, overridden by command line flags.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v2"

	"github.com/UjOwtuc/bdup/internal/fingerprint"
)

// DefaultArchiveRoot is burp's default storage directory.
const DefaultArchiveRoot = "/var/spool/burp"

// Config is the resolved run configuration.
type Config struct {
	ArchiveRoot    string   `yaml:"archive_root"`
	Workers        int      `yaml:"workers"`
	HashAlgorithm  string   `yaml:"hash_algorithm"`
	DryRun         bool     `yaml:"dry_run"`
	IncludeClients []string `yaml:"include_clients,omitempty"`
	Quiet          bool     `yaml:"quiet"`
	Verbose        bool     `yaml:"verbose"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ArchiveRoot:   DefaultArchiveRoot,
		Workers:       runtime.NumCPU(),
		HashAlgorithm: fingerprint.AlgorithmMD5,
	}
}

// Load reads the configuration file at path on top of the defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("error reading configuration: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks for values no run can work with.
func (c *Config) Validate() error {
	if c.ArchiveRoot == "" {
		return fmt.Errorf("archive root must not be empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.Workers)
	}
	if _, err := fingerprint.NewHasher(c.HashAlgorithm); err != nil {
		return err
	}
	return nil
}
