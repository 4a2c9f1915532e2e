// Package dbx provides the small database/sql glue shared by the vault
// repositories: the DBTX interface satisfied by both *sql.DB and *sql.Tx,
// a transaction runner, and row-count helpers.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrUnexpectedRowCount reports a mutation that touched a different number
// of rows than the caller required.
var ErrUnexpectedRowCount = errors.New("unexpected rows affected")

// DBTX is the subset of database/sql used by the repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxBeginner is implemented by *sql.DB.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// WithTx begins a transaction, runs fn with it, and commits when fn returns
// nil. Any error or panic rolls the whole transaction back, so none of the
// writes made through tx become visible. Panics are rethrown.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    items := items.NewSQLiteRepository(tx)
//	    return items.SetSortOrder(ctx, id, vaultID, 0)
//	})
func WithTx(ctx context.Context, db TxBeginner, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit transaction: %w", cerr)
		}
	}()

	err = fn(ctx, tx)
	return err
}

// RowsAffected returns the affected row count of res.
func RowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// ExpectRows fails with ErrUnexpectedRowCount unless res touched exactly want rows.
func ExpectRows(res sql.Result, want int64) error {
	n, err := RowsAffected(res)
	if err != nil {
		return err
	}
	if n != want {
		return fmt.Errorf("%w: got %d, want %d", ErrUnexpectedRowCount, n, want)
	}
	return nil
}
