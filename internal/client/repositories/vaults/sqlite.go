package vaults

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/dbx"
)

const selectColumns = `id, uuid, name, encrypted_password, has_password, cover_image, created_at, updated_at, deleted_at`

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

func scanVault(s scanner) (*models.Vault, error) {
	var (
		v         models.Vault
		uuid      sql.NullString
		updatedAt sql.NullString
	)
	if err := s.Scan(&v.ID, &uuid, &v.Name, &v.EncryptedPassword, &v.HasPassword,
		&v.CoverImage, &v.CreatedAt, &updatedAt, &v.DeletedAt); err != nil {
		return nil, err
	}
	v.UUID = uuid.String
	v.UpdatedAt = updatedAt.String
	if v.UpdatedAt == "" {
		v.UpdatedAt = v.CreatedAt
	}
	return &v, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, v *models.Vault) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO vaults (uuid, name, encrypted_password, has_password, cover_image, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.UUID, v.Name, nonNilBytes(v.EncryptedPassword), v.HasPassword, v.CoverImage, v.CreatedAt, v.UpdatedAt, v.DeletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert vault: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get vault id: %w", err)
	}
	v.ID = id
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.Vault, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM vaults WHERE id = ?`, id)
	v, err := scanVault(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vault %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vault %d: %w", id, err)
	}
	return v, nil
}

func (r *SQLiteRepository) FindByUUID(ctx context.Context, uuid string) (*models.Vault, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM vaults WHERE uuid = ?`, uuid)
	v, err := scanVault(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vault %s: %w", uuid, err)
	}
	return v, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Vault, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM vaults WHERE deleted_at IS NULL ORDER BY created_at DESC, id DESC`)
}

func (r *SQLiteRepository) ListAll(ctx context.Context) ([]*models.Vault, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM vaults ORDER BY id`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.Vault, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select vaults: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Vault, 0)
	for rows.Next() {
		v, err := scanVault(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vault row: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vault rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) exec(ctx context.Context, what string, id int64, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s vault %d: %w", what, id, err)
	}
	n, err := dbx.RowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("vault %d: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) UpdatePassword(ctx context.Context, id int64, encryptedPassword []byte, hasPassword bool, updatedAt string) error {
	return r.exec(ctx, "update password of", id,
		`UPDATE vaults SET encrypted_password = ?, has_password = ?, updated_at = ? WHERE id = ?`,
		nonNilBytes(encryptedPassword), hasPassword, updatedAt, id)
}

func (r *SQLiteRepository) Rename(ctx context.Context, id int64, name, updatedAt string) error {
	return r.exec(ctx, "rename", id,
		`UPDATE vaults SET name = ?, updated_at = ? WHERE id = ?`, name, updatedAt, id)
}

func (r *SQLiteRepository) UpdateCover(ctx context.Context, id int64, cover *string, updatedAt string) error {
	return r.exec(ctx, "update cover of", id,
		`UPDATE vaults SET cover_image = ?, updated_at = ? WHERE id = ?`, cover, updatedAt, id)
}

func (r *SQLiteRepository) Touch(ctx context.Context, id int64, at string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE vaults SET updated_at = ? WHERE id = ? AND (updated_at IS NULL OR updated_at < ?)`, at, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch vault %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) ApplyRemote(ctx context.Context, id int64, name string, cover *string, updatedAt string) error {
	return r.exec(ctx, "apply remote to", id,
		`UPDATE vaults SET name = ?, cover_image = ?, updated_at = ? WHERE id = ?`, name, cover, updatedAt, id)
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id int64, deletedAt, updatedAt string) error {
	return r.exec(ctx, "delete", id,
		`UPDATE vaults SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, deletedAt, updatedAt, id)
}

func (r *SQLiteRepository) HardDelete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM vaults WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to hard delete vault %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) ListDeletedBefore(ctx context.Context, cutoff string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM vaults WHERE deleted_at IS NOT NULL AND deleted_at < ? ORDER BY id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to select deleted vaults: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan vault id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deleted vaults: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) AssignUUID(ctx context.Context, id int64, uuid string) error {
	return r.exec(ctx, "assign uuid to", id,
		`UPDATE vaults SET uuid = ? WHERE id = ? AND (uuid IS NULL OR uuid = '')`, uuid, id)
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
