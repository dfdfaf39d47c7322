// Package archive copies result artifacts (workbooks, tearsheets, charts) to
// a cold storage backend.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/newthinker/btsweep/internal/config"
	"github.com/newthinker/btsweep/internal/core"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("archive: not found")

// Storage is a flat key/value store for artifacts. Keys use "/" separators.
type Storage interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// New returns the backend named by cfg.Type, or nil when archiving is off.
func New(cfg config.ArchiveConfig) (Storage, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "localfs":
		return NewLocalFS(cfg.Path)
	case "s3":
		return NewS3(S3Config(cfg.S3))
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("archive type %q", cfg.Type))
	}
}

// Key builds the artifact key for a file of a batch.
func Key(batch, file string) string {
	batch = strings.NewReplacer(" ", "_", ":", "", "/", "_").Replace(batch)
	return path.Join(batch, path.Base(file))
}

// PutFile uploads a local file under key.
func PutFile(ctx context.Context, s Storage, key, localPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	if err := s.Put(ctx, key, data); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("archiving %s: %w", key, err))
	}
	return nil
}

func cleanKey(key string) (string, error) {
	k := path.Clean("/" + key)[1:]
	if k == "" || k != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("archive: invalid key %q", key)
	}
	return k, nil
}
