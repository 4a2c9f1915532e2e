// Package dbstore opens the local SQLite store and brings its schema up to
// date.
package dbstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/client/migrations"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/filex"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// MemoryPath opens a private in-memory store.
const MemoryPath = ":memory:"

// migrate is a seam for tests.
var migrate = migrations.Up

// DSN builds the modernc.org/sqlite data source name for path.
func DSN(path string, busyTimeout time.Duration) string {
	if path == MemoryPath {
		return MemoryPath
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		path, busyTimeout.Milliseconds())
}

// Open opens (creating if needed) the store at path and applies pending
// migrations. The pool is limited to a single connection: the store has one
// writer, and an in-memory database lives only as long as its connection.
// Code running inside a transaction must therefore use the *sql.Tx only.
func Open(ctx context.Context, path string, busyTimeout time.Duration) (*sql.DB, error) {
	const op = "dbstore.Open"

	if path != MemoryPath {
		if err := filex.EnsureParentDir(path); err != nil {
			return nil, common.E(common.KindIO, op, err)
		}
	}

	db, err := sql.Open(driverName, DSN(path, busyTimeout))
	if err != nil {
		return nil, common.E(common.KindStorage, op, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, common.E(common.KindStorage, op, err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
