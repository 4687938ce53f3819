package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStorage keeps scratch files in one directory on disk. It cannot
// share; wrap it in S3Storage for that.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates dir if needed. An empty dir means
// $TMPDIR/moments.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "moments")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

// TempDir returns the scratch directory.
func (s *LocalStorage) TempDir() string {
	return s.dir
}

// SaveTemp streams data into <dir>/<base>_<uuid><ext>.
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}

	path := filepath.Join(s.dir, scratchName(name))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) // #nosec G304 - path is built from our own dir
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	_, err = io.Copy(f, data)
	if err = errors.Join(err, f.Close()); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	return path, nil
}

// LoadTemp opens path for reading.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	f, err := os.Open(path) // #nosec G304 - paths come from SaveTemp
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}
	return f, nil
}

// CleanupTemp removes every path it can and reports all failures joined.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove temp file %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// S3Enabled reports false: local storage never publishes.
func (s *LocalStorage) S3Enabled() bool { return false }

// UploadToS3 always returns ErrS3NotConfigured.
func (s *LocalStorage) UploadToS3(context.Context, string, string, io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

// scratchName keeps the hint's extension last so tools sniffing by suffix
// still see it.
func scratchName(hint string) string {
	ext := filepath.Ext(hint)
	base := strings.TrimSuffix(filepath.Base(hint), ext)
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "tmp"
	}
	return base + "_" + uuid.NewString() + ext
}
