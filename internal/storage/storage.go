// Package storage resolves media references that are not plain HTTP URLs:
// objects in S3-compatible buckets ("s3://bucket/key") and files on the
// worker's local disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ErrNotFound is returned when the referenced object or file does not exist.
var ErrNotFound = errors.New("storage: media not found")

// S3Ref is a parsed s3://bucket/key reference.
type S3Ref struct {
	Bucket string
	Key    string
}

// ParseS3URL parses "s3://bucket/key". ok is false for any other scheme or
// when the bucket or key is missing.
func ParseS3URL(ref string) (S3Ref, bool) {
	if !strings.HasPrefix(strings.ToLower(ref), "s3://") {
		return S3Ref{}, false
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return S3Ref{}, false
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return S3Ref{}, false
	}
	return S3Ref{Bucket: u.Host, Key: key}, true
}

// LocalPath returns the filesystem path for a file:// URL or a bare path.
func LocalPath(ref string) string {
	if strings.HasPrefix(ref, "file://") {
		if u, err := url.Parse(ref); err == nil {
			return u.Path
		}
		return strings.TrimPrefix(ref, "file://")
	}
	return ref
}

// ReadLocal reads a local media file, mapping a missing file to ErrNotFound.
func ReadLocal(ref string) ([]byte, error) {
	path := LocalPath(ref)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// ObjectReader fetches whole objects from a bucket.
type ObjectReader interface {
	Get(ctx context.Context, ref S3Ref) ([]byte, error)
}
