// Package filex holds small filesystem helpers shared by the store, the
// local sync folder and the captures copy.
package filex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// EnsureDir creates dir (and parents) if needed and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}
	return abs, nil
}

// EnsureParentDir creates the directory that will hold file path.
func EnsureParentDir(path string) error {
	_, err := EnsureDir(filepath.Dir(path))
	return err
}

// WriteAtomic writes r to path through a temp file in the same directory,
// renamed into place once fully written. A non-zero modTime is applied to
// the result.
func WriteAtomic(path string, r io.Reader, modTime time.Time) error {
	dir := filepath.Dir(path)
	if err := EnsureParentDir(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(tmpName, modTime, modTime); err != nil {
			return fmt.Errorf("chtimes %s: %w", tmpName, err)
		}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
