package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalBackend stores archive objects on the local filesystem, writing
// to a temporary path and renaming over the destination so a reader
// never observes a partial object — the same tmp-file-then-os.Rename
// idiom cmd/rigd/main.go uses for its address file.
type LocalBackend struct{}

func NewLocalBackend() *LocalBackend {
	return &LocalBackend{}
}

func (b *LocalBackend) Put(ctx context.Context, loc Location, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(loc.Path), 0o755); err != nil {
		return fmt.Errorf("store: mkdir for %s: %w", loc.Path, err)
	}
	tmp := loc.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("store: create temp object: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("store: write temp object: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("store: sync temp object: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: close temp object: %w", err)
	}
	if err := os.Rename(tmp, loc.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: promote object: %w", err)
	}
	return nil
}

func (b *LocalBackend) Get(ctx context.Context, loc Location) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(loc.Path)
}

func (b *LocalBackend) GetRange(ctx context.Context, loc Location, offset, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(loc.Path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return limitedReadCloser{r: io.LimitReader(f, length), c: f}, nil
}

func (b *LocalBackend) Exists(ctx context.Context, loc Location) (bool, error) {
	_, err := os.Stat(loc.Path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type limitedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (l limitedReadCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l limitedReadCloser) Close() error               { return l.c.Close() }
