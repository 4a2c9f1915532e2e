package syncfolder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/client/synccodec"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/filex"
)

// Local is a sync folder on the local filesystem.
type Local struct {
	root string
}

func NewLocal(root string) *Local {
	return &Local{root: root}
}

func (l *Local) Location() string { return l.root }

func (l *Local) syncFilePath() string { return filepath.Join(l.root, synccodec.FileName) }

func (l *Local) capturesDir() string { return filepath.Join(l.root, synccodec.CapturesFolder) }

func (l *Local) Check(ctx context.Context) error {
	const op = "syncfolder.Local.Check"

	fi, err := os.Stat(l.root)
	if err != nil {
		return common.E(common.KindSyncFolderUnavailable, op, err)
	}
	if !fi.IsDir() {
		return common.E(common.KindSyncFolderUnavailable, op, fmt.Errorf("%s is not a directory", l.root))
	}

	probe, err := os.CreateTemp(l.root, ".vaultsync-probe-*")
	if err != nil {
		return common.E(common.KindSyncFolderUnavailable, op, fmt.Errorf("folder is not writable: %w", err))
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}

func (l *Local) ReadSyncFile(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(l.syncFilePath())
	if err != nil {
		return nil, fmt.Errorf("failed to read sync file: %w", err)
	}
	return data, nil
}

func (l *Local) WriteSyncFile(ctx context.Context, data []byte) error {
	if err := filex.WriteAtomic(l.syncFilePath(), bytes.NewReader(data), time.Time{}); err != nil {
		return fmt.Errorf("failed to write sync file: %w", err)
	}
	return nil
}

func (l *Local) ListCaptures(ctx context.Context) ([]FileInfo, error) {
	return ListDir(l.capturesDir())
}

func (l *Local) PutCapture(ctx context.Context, name string, r io.Reader, size int64, modTime time.Time) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := filex.WriteAtomic(filepath.Join(l.capturesDir(), name), r, modTime); err != nil {
		return fmt.Errorf("failed to put capture %s: %w", name, err)
	}
	return nil
}

func (l *Local) OpenCapture(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(l.capturesDir(), name))
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %s: %w", name, err)
	}
	return f, nil
}

// ListDir lists the regular files of dir, skipping hidden ones. A missing
// dir yields an empty list.
func ListDir(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || e.Name()[0] == '.' {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{Name: e.Name(), Size: fi.Size(), ModTime: fi.ModTime()})
	}
	return out, nil
}
