package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/btsweep/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "sweep.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestLoad_FromFile(t *testing.T) {
	cfgPath := writeConfig(t, `
sweep:
  multi_pro: true
  workers: 4
  params:
    instrument: "^GSPC"
    sma_fast: [10, 20]
    save_db: true
  dimensions:
    save_db: true

storage:
  db_path: "/tmp/btsweep/results.db"
  archive:
    type: localfs
    path: "/tmp/btsweep/archive"
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if !cfg.Sweep.MultiProcess {
		t.Error("expected multi_pro true")
	}
	if cfg.Sweep.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Sweep.Workers)
	}
	if !cfg.Sweep.RunTestNow {
		t.Error("expected run_test_now to default to true")
	}
	if cfg.Storage.Archive.Type != "localfs" {
		t.Errorf("expected localfs, got %s", cfg.Storage.Archive.Type)
	}
	fast, ok := cfg.Sweep.Params["sma_fast"].([]any)
	if !ok || len(fast) != 2 {
		t.Errorf("expected sma_fast list of 2, got %#v", cfg.Sweep.Params["sma_fast"])
	}
	if !cfg.Sweep.Dimensions["save_db"] {
		t.Error("expected save_db dimension")
	}
	if cfg.Data.Yahoo.Timeout != 30*time.Second {
		t.Errorf("expected default yahoo timeout, got %v", cfg.Data.Yahoo.Timeout)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("BTSWEEP_TEST_SECRET", "s3cr3t")
	cfgPath := writeConfig(t, `
storage:
  archive:
    type: s3
    s3:
      bucket: results
      secret_key: "${BTSWEEP_TEST_SECRET}"
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Storage.Archive.S3.SecretKey != "s3cr3t" {
		t.Errorf("expected expanded secret, got %q", cfg.Storage.Archive.S3.SecretKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Storage.DBPath != "data/results.db" {
		t.Errorf("expected default db path, got %s", cfg.Storage.DBPath)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("expected default metrics path, got %s", cfg.Metrics.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr *core.Error
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "negative workers",
			mutate:  func(c *Config) { c.Sweep.Workers = -1 },
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:    "localfs without path",
			mutate:  func(c *Config) { c.Storage.Archive.Type = "localfs" },
			wantErr: core.ErrConfigMissing,
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Storage.Archive.Type = "s3" },
			wantErr: core.ErrConfigMissing,
		},
		{
			name:    "unknown archive",
			mutate:  func(c *Config) { c.Storage.Archive.Type = "ftp" },
			wantErr: core.ErrConfigInvalid,
		},
		{
			name: "metrics without listen",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Listen = ""
			},
			wantErr: core.ErrConfigMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
