package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/UjOwtuc/bdup/internal/config"
	"github.com/UjOwtuc/bdup/testutil"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	if cfg.ArchiveRoot != config.DefaultArchiveRoot {
		t.Errorf("Unexpected default archive root %q", cfg.ArchiveRoot)
	}
	if cfg.Workers <= 0 {
		t.Errorf("Expected a positive default worker count, got %d", cfg.Workers)
	}
	if cfg.HashAlgorithm != "md5" {
		t.Errorf("Expected md5 as default algorithm, got %q", cfg.HashAlgorithm)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default configuration failed validation: %v", err)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := config.Default()
	if cfg.ArchiveRoot != want.ArchiveRoot || cfg.Workers != want.Workers || cfg.HashAlgorithm != want.HashAlgorithm {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := testutil.TempDir(t, "bdup-config")
	path := filepath.Join(dir, "bdup.yaml")
	content := `archive_root: /srv/burp
workers: 3
hash_algorithm: blake3
include_clients:
  - alice
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ArchiveRoot != "/srv/burp" || cfg.Workers != 3 || cfg.HashAlgorithm != "blake3" {
		t.Errorf("Unexpected configuration %+v", cfg)
	}
	if len(cfg.IncludeClients) != 1 || cfg.IncludeClients[0] != "alice" {
		t.Errorf("Unexpected client filter %v", cfg.IncludeClients)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load("/nonexistent/bdup.yaml"); err == nil {
		t.Error("Expected an error for a missing configuration file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := testutil.TempDir(t, "bdup-config")
	path := filepath.Join(dir, "bdup.yaml")
	if err := os.WriteFile(path, []byte("workers: [not a number"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Error("Expected an error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"defaults", func(c *config.Config) {}, false},
		{"empty root", func(c *config.Config) { c.ArchiveRoot = "" }, true},
		{"zero workers", func(c *config.Config) { c.Workers = 0 }, true},
		{"negative workers", func(c *config.Config) { c.Workers = -1 }, true},
		{"unknown algorithm", func(c *config.Config) { c.HashAlgorithm = "crc32" }, true},
		{"blake3", func(c *config.Config) { c.HashAlgorithm = "blake3" }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("Expected a validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestDumpIsLoadable(t *testing.T) {
	cfg := config.Default()
	cfg.ArchiveRoot = "/srv/burp"
	cfg.IncludeClients = []string{"alice", "bob"}

	var buf bytes.Buffer
	if err := config.Dump(&buf, cfg); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if !strings.Contains(buf.String(), "archive_root: /srv/burp") {
		t.Errorf("Unexpected dump output:\n%s", buf.String())
	}

	dir := testutil.TempDir(t, "bdup-config")
	path := filepath.Join(dir, "dump.yaml")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("Failed to write dump: %v", err)
	}
	reloaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("Failed to reload dump: %v", err)
	}
	if reloaded.ArchiveRoot != cfg.ArchiveRoot || len(reloaded.IncludeClients) != 2 {
		t.Errorf("Dump did not round-trip: %+v", reloaded)
	}
}
