// Package storage keeps the scratch files a composition works on and
// publishes shared generations to S3.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrS3NotConfigured is returned by UploadToS3 when no bucket is configured.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// ErrBucketRequired is returned by NewS3Storage without a bucket or region.
var ErrBucketRequired = errors.New("S3 bucket and region are required")

// Storage is the file layer shared by composition and sharing.
type Storage interface {
	// SaveTemp writes data to a new scratch file. name is a hint: its
	// extension is kept so ffmpeg can probe the container by suffix.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp opens a scratch file. The caller closes it.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes scratch files. Missing files are not an error.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 publishes data under key and returns its public URL.
	UploadToS3(ctx context.Context, key, contentType string, data io.Reader) (url string, err error)
}

// CanPublish reports whether s is configured to publish through UploadToS3.
// Stores that do not implement S3Enabled are assumed to be.
func CanPublish(s Storage) bool {
	if p, ok := s.(interface{ S3Enabled() bool }); ok {
		return p.S3Enabled()
	}
	return true
}
