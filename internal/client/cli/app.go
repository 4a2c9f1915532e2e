package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/client/services"
	"github.com/dmitrijs2005/vaultsync/internal/client/syncwatch"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
)

// Services bundles what the App drives.
type Services struct {
	Vaults   services.VaultService
	Engine   services.SyncEngine
	Settings services.SettingsService
	Purger   services.PurgeManager
}

type App struct {
	vaultService services.VaultService
	syncEngine   services.SyncEngine
	settings     services.SettingsService
	purger       services.PurgeManager
	log          logging.Logger

	reader *bufio.Reader
	mu     sync.Mutex
	out    io.Writer

	// keys holds the keys of vaults unlocked in this session, by vault id.
	keys    map[int64][]byte
	current *models.Vault
}

// NewApp builds an App reading from in and writing to out. Nil in and out
// default to the process stdin and stdout.
func NewApp(s Services, log logging.Logger, in io.Reader, out io.Writer) *App {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if log == nil {
		log = logging.Nop()
	}
	return &App{
		vaultService: s.Vaults,
		syncEngine:   s.Engine,
		settings:     s.Settings,
		purger:       s.Purger,
		log:          log,
		reader:       bufio.NewReader(in),
		out:          out,
		keys:         map[int64][]byte{},
	}
}

// watchInterval is how often a local sync folder is polled.
const watchInterval = 5 * time.Second

// Run performs the startup checks, serves the REPL until the user leaves
// and then runs the on-close sync.
func (a *App) Run(ctx context.Context) {
	a.Startup(ctx)

	watchCtx, stop := context.WithCancel(ctx)
	go a.WatchSyncFolder(watchCtx, watchInterval)
	runREPL(ctx, a, a.status, a.reader)
	stop()

	a.Shutdown(ctx)
}

// Startup purges expired tombstones and tells the user when the sync folder
// holds changes from another device.
func (a *App) Startup(ctx context.Context) {
	if res, ran, err := a.purger.AutoPurge(ctx); err != nil {
		a.log.Warn(ctx, "auto purge failed", "error", err)
	} else if ran && (res.PurgedItems > 0 || res.PurgedVaults > 0) {
		a.printf("Purged %d vault(s) and %d item(s) deleted long ago\n", res.PurgedVaults, res.PurgedItems)
	}

	check, err := a.settings.CheckSyncOnStartup(ctx)
	if err != nil || !check {
		return
	}
	st, err := a.syncEngine.Status(ctx)
	if err != nil {
		a.log.Warn(ctx, "sync status failed", "error", err)
		return
	}
	if st.SyncEnabled && st.HasChanges {
		a.printf("Sync folder has changes from %s (exported %s). Run 'import' to merge them.\n",
			st.RemoteDeviceName, st.RemoteExportedAt)
	}
}

// Shutdown exports with the keys unlocked in this session when
// sync_on_close is enabled.
func (a *App) Shutdown(ctx context.Context) {
	on, err := a.settings.SyncOnClose(ctx)
	if err != nil || !on {
		return
	}
	if _, ok, err := a.settings.SyncFolder(ctx); err != nil || !ok {
		return
	}
	res, err := a.syncEngine.Export(ctx, services.ExportRequest{Keys: a.keys})
	if err != nil {
		a.log.Error(ctx, "sync on close failed", "error", err)
		a.printf("Sync on close failed: %v\n", err)
		return
	}
	a.printExport(res)
}

func (a *App) isOpen() bool {
	return a.current != nil
}

func (a *App) status() string {
	if a.current == nil {
		return "no vault"
	}
	return a.current.Name
}

// WatchSyncFolder announces remote changes while the session runs. Only
// local folders are watched; it returns when ctx is done.
func (a *App) WatchSyncFolder(ctx context.Context, interval time.Duration) {
	loc, ok, err := a.settings.SyncFolder(ctx)
	if err != nil || !ok || strings.HasPrefix(loc, "s3://") {
		return
	}
	err = syncwatch.Watch(ctx, loc, interval, a.log, func() {
		st, err := a.syncEngine.Status(ctx)
		if err != nil || !st.HasChanges {
			return
		}
		a.printf("\nNew export from %s at %s. Run 'import' to merge it.\n", st.RemoteDeviceName, st.RemoteExportedAt)
	})
	if err != nil {
		a.log.Warn(ctx, "sync folder watcher stopped", "folder", loc, "error", err)
	}
}

// printf and println may be called from the watcher goroutine.
func (a *App) printf(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) println(args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintln(a.out, args...)
}
