package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/newthinker/btsweep/internal/config"
	"github.com/newthinker/btsweep/internal/core"
)

func TestNew(t *testing.T) {
	s, err := New(config.ArchiveConfig{})
	if err != nil || s != nil {
		t.Errorf("New(empty) = %v, %v; want nil, nil", s, err)
	}

	s, err = New(config.ArchiveConfig{Type: "localfs", Path: t.TempDir()})
	if err != nil {
		t.Fatalf("New(localfs): %v", err)
	}
	if _, ok := s.(*LocalFS); !ok {
		t.Errorf("expected *LocalFS, got %T", s)
	}

	s, err = New(config.ArchiveConfig{Type: "s3", S3: config.S3Config{Bucket: "b", Region: "us-east-1"}})
	if err != nil {
		t.Fatalf("New(s3): %v", err)
	}
	if _, ok := s.(*S3Storage); !ok {
		t.Errorf("expected *S3Storage, got %T", s)
	}

	if _, err := New(config.ArchiveConfig{Type: "ftp"}); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		batch, file, want string
	}{
		{"sma sweep", "/tmp/results/results-abc.xlsx", "sma_sweep/results-abc.xlsx"},
		{"2024-01-02 10:30", "chart.png", "2024-01-02_1030/chart.png"},
		{"a/b", "x.html", "a_b/x.html"},
	}
	for _, tt := range tests {
		if got := Key(tt.batch, tt.file); got != tt.want {
			t.Errorf("Key(%q, %q) = %q, want %q", tt.batch, tt.file, got, tt.want)
		}
	}
}

func TestPutFile(t *testing.T) {
	local := filepath.Join(t.TempDir(), "results-abc.xlsx")
	if err := os.WriteFile(local, []byte("xlsx"), 0644); err != nil {
		t.Fatal(err)
	}
	fs, _ := NewLocalFS(t.TempDir())

	if err := PutFile(context.Background(), fs, "batch/results-abc.xlsx", local); err != nil {
		t.Fatalf("PutFile: %v", err)
	}
	got, _ := fs.Get(context.Background(), "batch/results-abc.xlsx")
	if string(got) != "xlsx" {
		t.Errorf("got %q", got)
	}

	if err := PutFile(context.Background(), fs, "k", filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing local file")
	}
}
