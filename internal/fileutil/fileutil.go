package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Written describes the bytes persisted by WriteAtomic.
type Written struct {
	Bytes  int64
	SHA256 string
}

// WriteAtomic streams r into dst through a temp file in the same directory and
// renames it into place, so readers never observe a partial object. The temp
// file is removed on any failure.
func WriteAtomic(dst string, r io.Reader, mode os.FileMode) (Written, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Written{}, fmt.Errorf("ensure directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return Written{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		return Written{}, fmt.Errorf("write %s: %w", dst, err)
	}
	if err := tmp.Sync(); err != nil {
		return Written{}, fmt.Errorf("sync %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return Written{}, fmt.Errorf("close %s: %w", dst, err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return Written{}, fmt.Errorf("chmod %s: %w", dst, err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return Written{}, fmt.Errorf("rename into %s: %w", dst, err)
	}
	committed = true
	return Written{Bytes: n, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// CheckDir verifies that path is a directory the process can read, write, and traverse.
func CheckDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("%s: insufficient permissions: %w", path, err)
	}
	return nil
}
