package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/dbx"
)

const selectColumns = `id, vault_id, uuid, title, content, image, summary, sort_order, created_at, updated_at, deleted_at`

const displayOrder = `ORDER BY CASE WHEN sort_order IS NULL THEN 1 ELSE 0 END, sort_order ASC, created_at DESC, id DESC`

// SQLiteRepository implements Repository over a DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*models.VaultItem, error) {
	var (
		it        models.VaultItem
		uuid      sql.NullString
		updatedAt sql.NullString
	)
	if err := s.Scan(&it.ID, &it.VaultID, &uuid, &it.Title, &it.Content, &it.Image, &it.Summary,
		&it.SortOrder, &it.CreatedAt, &updatedAt, &it.DeletedAt); err != nil {
		return nil, err
	}
	it.UUID = uuid.String
	it.UpdatedAt = updatedAt.String
	if it.UpdatedAt == "" {
		it.UpdatedAt = it.CreatedAt
	}
	return &it, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, it *models.VaultItem) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO vault_items (vault_id, uuid, title, content, image, summary, sort_order, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.VaultID, it.UUID, it.Title, it.Content, it.Image, it.Summary, it.SortOrder, it.CreatedAt, it.UpdatedAt, it.DeletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get item id: %w", err)
	}
	it.ID = id
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.VaultItem, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM vault_items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return it, nil
}

func (r *SQLiteRepository) FindByUUID(ctx context.Context, uuid string) (*models.VaultItem, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM vault_items WHERE uuid = ?`, uuid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find item %s: %w", uuid, err)
	}
	return it, nil
}

func (r *SQLiteRepository) ListByVault(ctx context.Context, vaultID int64) ([]*models.VaultItem, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM vault_items WHERE vault_id = ? AND deleted_at IS NULL `+displayOrder, vaultID)
}

func (r *SQLiteRepository) ListAllByVault(ctx context.Context, vaultID int64) ([]*models.VaultItem, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM vault_items WHERE vault_id = ? ORDER BY id`, vaultID)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.VaultItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	result := make([]*models.VaultItem, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		result = append(result, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate item rows: %w", err)
	}
	return result, nil
}

// execOne runs a single-row update and maps zero affected rows to
// common.ErrNotFound.
func (r *SQLiteRepository) execOne(ctx context.Context, what string, id int64, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s item %d: %w", what, id, err)
	}
	n, err := dbx.RowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("item %d: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) execMany(ctx context.Context, what string, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", what, err)
	}
	return dbx.RowsAffected(res)
}

func (r *SQLiteRepository) UpdateContent(ctx context.Context, id int64, content []byte, updatedAt string) error {
	return r.execOne(ctx, "update content of", id,
		`UPDATE vault_items SET content = ?, updated_at = ? WHERE id = ?`, content, updatedAt, id)
}

func (r *SQLiteRepository) UpdateTitle(ctx context.Context, id int64, title, updatedAt string) error {
	return r.execOne(ctx, "update title of", id,
		`UPDATE vault_items SET title = ?, updated_at = ? WHERE id = ?`, title, updatedAt, id)
}

func (r *SQLiteRepository) UpdateImage(ctx context.Context, id int64, image *string, updatedAt string) error {
	return r.execOne(ctx, "update image of", id,
		`UPDATE vault_items SET image = ?, updated_at = ? WHERE id = ?`, image, updatedAt, id)
}

func (r *SQLiteRepository) UpdateSummary(ctx context.Context, id int64, summary *string, updatedAt string) error {
	return r.execOne(ctx, "update summary of", id,
		`UPDATE vault_items SET summary = ?, updated_at = ? WHERE id = ?`, summary, updatedAt, id)
}

func (r *SQLiteRepository) Move(ctx context.Context, id, vaultID int64, updatedAt string) error {
	return r.execOne(ctx, "move", id,
		`UPDATE vault_items SET vault_id = ?, sort_order = NULL, updated_at = ? WHERE id = ?`, vaultID, updatedAt, id)
}

func (r *SQLiteRepository) SetSortOrder(ctx context.Context, id, vaultID, order int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE vault_items SET sort_order = ? WHERE id = ? AND vault_id = ? AND deleted_at IS NULL`, order, id, vaultID)
	if err != nil {
		return fmt.Errorf("failed to set sort order of item %d: %w", id, err)
	}
	if err := dbx.ExpectRows(res, 1); err != nil {
		if errors.Is(err, dbx.ErrUnexpectedRowCount) {
			return fmt.Errorf("item %d in vault %d: %w", id, vaultID, common.ErrNotFound)
		}
		return err
	}
	return nil
}

func (r *SQLiteRepository) ApplyRemote(ctx context.Context, it *models.VaultItem) error {
	return r.execOne(ctx, "apply remote to", it.ID, `
		UPDATE vault_items SET title = ?, content = ?, image = ?, summary = ?, sort_order = ?, updated_at = ?
		WHERE id = ?`,
		it.Title, it.Content, it.Image, it.Summary, it.SortOrder, it.UpdatedAt, it.ID)
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id int64, deletedAt, updatedAt string) error {
	return r.execOne(ctx, "delete", id,
		`UPDATE vault_items SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, deletedAt, updatedAt, id)
}

func (r *SQLiteRepository) MarkDeletedByVault(ctx context.Context, vaultID int64, deletedAt, updatedAt string) (int64, error) {
	return r.execMany(ctx, fmt.Sprintf("delete items of vault %d", vaultID),
		`UPDATE vault_items SET deleted_at = ?, updated_at = ? WHERE vault_id = ? AND deleted_at IS NULL`, deletedAt, updatedAt, vaultID)
}

func (r *SQLiteRepository) HardDelete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM vault_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to hard delete item %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) HardDeleteByVault(ctx context.Context, vaultID int64) (int64, error) {
	return r.execMany(ctx, fmt.Sprintf("hard delete items of vault %d", vaultID),
		`DELETE FROM vault_items WHERE vault_id = ?`, vaultID)
}

func (r *SQLiteRepository) PurgeDeletedBefore(ctx context.Context, cutoff string) (int64, error) {
	return r.execMany(ctx, "purge deleted items",
		`DELETE FROM vault_items WHERE deleted_at IS NOT NULL AND deleted_at < ?`, cutoff)
}

func (r *SQLiteRepository) AssignUUID(ctx context.Context, id int64, uuid string) error {
	return r.execOne(ctx, "assign uuid to", id,
		`UPDATE vault_items SET uuid = ? WHERE id = ? AND (uuid IS NULL OR uuid = '')`, uuid, id)
}
