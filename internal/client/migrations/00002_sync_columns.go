package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

type column struct {
	name string
	ddl  string
}

// has_password defaults to 1: rows that exist before this step were created
// when every vault had a password.
var syncColumns = map[string][]column{
	"vaults": {
		{"cover_image", "TEXT"},
		{"has_password", "INTEGER NOT NULL DEFAULT 1"},
		{"uuid", "TEXT"},
		{"updated_at", "TEXT"},
		{"deleted_at", "TEXT"},
	},
	"vault_items": {
		{"image", "TEXT"},
		{"summary", "TEXT"},
		{"sort_order", "INTEGER"},
		{"uuid", "TEXT"},
		{"updated_at", "TEXT"},
		{"deleted_at", "TEXT"},
	},
}

func addSyncColumns(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"vaults", "vault_items"} {
		existing, err := tableColumns(ctx, tx, table)
		if err != nil {
			return err
		}
		for _, c := range syncColumns[table] {
			if _, ok := existing[c.name]; ok {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, c.name, c.ddl)
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to add %s.%s: %w", table, c.name, err)
			}
		}
	}
	return nil
}

func tableColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		cols[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate columns of %s: %w", table, err)
	}
	return cols, nil
}
