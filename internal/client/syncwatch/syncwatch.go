// Package syncwatch notices when the exchange file in a local sync folder is
// created or rewritten, typically by a cloud drive client delivering another
// device's export.
package syncwatch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/client/synccodec"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/radovskyb/watcher"
)

// Watch polls dir every interval and calls onChange whenever the sync file
// in it appears or changes. It blocks until ctx is done.
func Watch(ctx context.Context, dir string, interval time.Duration, log logging.Logger, onChange func()) error {
	if log == nil {
		log = logging.Nop()
	}

	w := watcher.New()
	// atomic writes show up as a rename onto the sync file
	w.FilterOps(watcher.Create, watcher.Write, watcher.Rename, watcher.Move)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	defer w.Close()

	started := make(chan error, 1)
	go func() { started <- w.Start(interval) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.Event:
			if ev.IsDir() || filepath.Base(ev.Path) != synccodec.FileName {
				continue
			}
			log.Debug(ctx, "sync file changed", "op", ev.Op.String(), "path", ev.Path)
			onChange()
		case err := <-w.Error:
			log.Warn(ctx, "sync folder watcher error", "folder", dir, "error", err)
		case err := <-started:
			if err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}
			return nil
		case <-w.Closed:
			return nil
		}
	}
}
