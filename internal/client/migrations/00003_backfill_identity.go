package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// backfillIdentity gives legacy rows a uuid and an updated_at so they can
// take part in sync.
func backfillIdentity(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"vaults", "vault_items"} {
		if err := backfillUUIDs(ctx, tx, table); err != nil {
			return err
		}
		stmt := fmt.Sprintf(`UPDATE %s SET updated_at = created_at WHERE updated_at IS NULL OR updated_at = ''`, table)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to backfill %s.updated_at: %w", table, err)
		}
	}
	return nil
}

func backfillUUIDs(ctx context.Context, tx *sql.Tx, table string) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE uuid IS NULL OR uuid = ''`, table))
	if err != nil {
		return fmt.Errorf("failed to select %s without uuid: %w", table, err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan %s id: %w", table, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to iterate %s ids: %w", table, err)
	}
	rows.Close()

	stmt := fmt.Sprintf(`UPDATE %s SET uuid = ? WHERE id = ?`, table)
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, stmt, uuid.NewString(), id); err != nil {
			return fmt.Errorf("failed to assign uuid to %s %d: %w", table, id, err)
		}
	}
	return nil
}
