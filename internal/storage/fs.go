package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"meetscribe/internal/fileutil"
	"meetscribe/internal/stage"
)

// FS stores objects as files under a root directory.
type FS struct {
	root string
}

// NewFS prepares root and returns a filesystem bucket.
func NewFS(root string) (*FS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("storage: fs backend requires storage.dir")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure %s: %w", root, err)
	}
	return &FS{root: root}, nil
}

// Root returns the bucket directory.
func (b *FS) Root() string {
	return b.root
}

func (b *FS) path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(b.root, filepath.FromSlash(key)), nil
}

// Put writes body to key atomically.
func (b *FS) Put(ctx context.Context, key string, body io.Reader, _ string) error {
	target, err := b.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := fileutil.WriteAtomic(target, contextReader{ctx: ctx, r: body}, 0o644); err != nil {
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	return nil
}

// Open returns a reader for key.
func (b *FS) Open(_ context.Context, key string) (io.ReadCloser, error) {
	target, err := b.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", key, err)
	}
	return f, nil
}

// HealthCheck verifies the root directory is usable.
func (b *FS) HealthCheck(context.Context) stage.Health {
	return stage.FromError(stage.ComponentStorage, fileutil.CheckDir(b.root))
}

// contextReader stops a long copy once the context is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
