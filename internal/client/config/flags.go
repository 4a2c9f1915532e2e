package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/vaultsync/internal/flagx"
)

var ownFlags = []string{"-d", "-captures", "-log-level", "-log-format", "-sync", "-purge-days"}

// parseFlags overlays cfg with command-line flags:
//
//	-d string           path to the SQLite database
//	-captures string    local captures directory
//	-log-level string   debug, info, warn or error
//	-log-format string  text or json
//	-sync string        sync folder (directory or s3://bucket/prefix)
//	-purge-days int     tombstone retention in days
//
// Arguments belonging to other layers are filtered out first.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("vaultctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to the SQLite database")
	fs.StringVar(&cfg.CapturesDir, "captures", cfg.CapturesDir, "local captures directory")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text|json)")
	fs.StringVar(&cfg.SyncFolder, "sync", cfg.SyncFolder, "sync folder")
	fs.IntVar(&cfg.PurgeDays, "purge-days", cfg.PurgeDays, "tombstone retention in days")

	if err := fs.Parse(flagx.FilterArgs(args, ownFlags)); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}
