// Package migrations holds the versioned schema of the local vault store.
//
// Versions 1 and 4 are plain SQL; 2 and 3 are Go because they must inspect
// the existing table shape (legacy databases) or generate per-row uuids.
// Every step is idempotent so it is safe over stores created before the
// goose version table existed.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var Migrations embed.FS

func goMigrations() []*goose.Migration {
	return []*goose.Migration{
		goose.NewGoMigration(2, &goose.GoFunc{RunTx: addSyncColumns}, nil),
		goose.NewGoMigration(3, &goose.GoFunc{RunTx: backfillIdentity}, nil),
	}
}

// NewProvider returns a goose provider over the embedded SQL files and the
// Go migrations of this package.
func NewProvider(db *sql.DB) (*goose.Provider, error) {
	return goose.NewProvider(goose.DialectSQLite3, db, Migrations,
		goose.WithGoMigrations(goMigrations()...),
		goose.WithDisableGlobalRegistry(true),
	)
}

// Up applies all pending migrations.
func Up(ctx context.Context, db *sql.DB) error {
	const op = "migrations.Up"

	p, err := NewProvider(db)
	if err != nil {
		return common.E(common.KindMigration, op, err)
	}
	if _, err := p.Up(ctx); err != nil {
		return common.E(common.KindMigration, op, err)
	}
	return nil
}

// Version reports the current schema version.
func Version(ctx context.Context, db *sql.DB) (int64, error) {
	p, err := NewProvider(db)
	if err != nil {
		return 0, common.E(common.KindMigration, "migrations.Version", err)
	}
	v, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}
