package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/vaultsync/internal/buildinfo"
	"github.com/dmitrijs2005/vaultsync/internal/client/cli"
	"github.com/dmitrijs2005/vaultsync/internal/client/config"
	"github.com/dmitrijs2005/vaultsync/internal/client/dbstore"
	"github.com/dmitrijs2005/vaultsync/internal/client/services"
	"github.com/dmitrijs2005/vaultsync/internal/client/syncfolder"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/timex"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	db, err := dbstore.Open(ctx, cfg.DatabasePath, cfg.BusyTimeout)
	if err != nil {
		log.Fatalf("error opening database: %v", err)
	}
	defer db.Close()

	s3opts := syncfolder.S3Options{
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
	}
	open := func(ctx context.Context, location string) (syncfolder.Folder, error) {
		return syncfolder.Open(ctx, location, s3opts)
	}

	clock := timex.Clock(timex.SystemClock)
	settings := services.NewSettingsService(db, logger)
	if err := applyOverrides(ctx, settings, cfg); err != nil {
		log.Fatalf("error applying configuration: %v", err)
	}

	app := cli.NewApp(cli.Services{
		Vaults:   services.NewVaultService(db, nil, logger, clock),
		Engine:   services.NewSyncEngine(db, open, cfg.CapturesDir, nil, logger, clock),
		Settings: settings,
		Purger:   services.NewPurgeManager(db, logger, clock),
	}, logger, os.Stdin, os.Stdout)

	app.Run(ctx)
}

// applyOverrides stores configured values that replace database settings.
func applyOverrides(ctx context.Context, st services.SettingsService, cfg *config.Config) error {
	if cfg.SyncFolder != "" {
		if err := st.SetSyncFolder(ctx, cfg.SyncFolder); err != nil {
			return err
		}
	}
	if cfg.PurgeDays > 0 {
		if err := st.SetPurgeDays(ctx, cfg.PurgeDays); err != nil {
			return err
		}
	}
	return nil
}
