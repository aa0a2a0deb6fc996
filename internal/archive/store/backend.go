// Package store implements the archive object backends (spec.md §4.I:
// "target locations are one of {local file, S3-compatible, Azure Blob,
// Google Cloud object}"). Kept as its own package, separate from
// internal/archive, so internal/archive depends only on the Backend
// interface and never on a specific cloud SDK directly.
package store

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Kind discriminates the Location tagged variants (mirrors
// original_source/tachikoma-audit-archival/src/archive.rs's
// ArchiveLocation enum).
type Kind string

const (
	Local     Kind = "local"
	S3        Kind = "s3"
	AzureBlob Kind = "azure_blob"
	GCS       Kind = "gcs"
)

// Location names one archive object, however its backend addresses
// objects.
type Location struct {
	Kind Kind

	// Local
	Path string

	// S3
	Bucket string
	Key    string
	Region string

	// AzureBlob
	Container string
	Blob      string

	// GCS
	Object string
}

// ParseLocation parses an archive_target URI (spec.md §6:
// archive_target) into a Location. Recognized schemes: "s3://bucket/key",
// "azureblob://container/blob", "gcs://bucket/object"; anything else is
// treated as a local filesystem path.
func ParseLocation(target string) (Location, error) {
	switch {
	case strings.HasPrefix(target, "s3://"):
		bucket, key, ok := splitTwo(strings.TrimPrefix(target, "s3://"))
		if !ok {
			return Location{}, fmt.Errorf("store: invalid s3 target %q, want s3://bucket/key", target)
		}
		return Location{Kind: S3, Bucket: bucket, Key: key}, nil
	case strings.HasPrefix(target, "azureblob://"):
		container, blob, ok := splitTwo(strings.TrimPrefix(target, "azureblob://"))
		if !ok {
			return Location{}, fmt.Errorf("store: invalid azureblob target %q, want azureblob://container/blob", target)
		}
		return Location{Kind: AzureBlob, Container: container, Blob: blob}, nil
	case strings.HasPrefix(target, "gcs://"):
		bucket, object, ok := splitTwo(strings.TrimPrefix(target, "gcs://"))
		if !ok {
			return Location{}, fmt.Errorf("store: invalid gcs target %q, want gcs://bucket/object", target)
		}
		return Location{Kind: GCS, Bucket: bucket, Object: object}, nil
	default:
		return Location{Kind: Local, Path: target}, nil
	}
}

func splitTwo(s string) (string, string, bool) {
	i := strings.IndexByte(s, '/')
	if i < 0 || i == 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// Backend is the write/read contract every archive destination
// implements. Put is expected to be atomic at the object level (spec.md
// §4.I: "a temporary key is written and then renamed/promoted; partial
// uploads are never observable").
type Backend interface {
	Put(ctx context.Context, loc Location, r io.Reader, size int64) error
	Get(ctx context.Context, loc Location) (io.ReadCloser, error)
	Exists(ctx context.Context, loc Location) (bool, error)
}

// RangeBackend is implemented by backends that can serve a byte range
// without fetching the whole object (spec.md §4.J: "ranged read when
// the backend supports it").
type RangeBackend interface {
	GetRange(ctx context.Context, loc Location, offset, length int64) (io.ReadCloser, error)
}
