package vaults

import (
	"context"

	"github.com/dmitrijs2005/vaultsync/internal/client/models"
)

type Repository interface {
	// Create inserts v and sets v.ID.
	Create(ctx context.Context, v *models.Vault) error
	// GetByID returns the vault (tombstones included) or common.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*models.Vault, error)
	// FindByUUID returns nil, nil when no vault has the uuid.
	FindByUUID(ctx context.Context, uuid string) (*models.Vault, error)
	// List returns live vaults, newest first.
	List(ctx context.Context) ([]*models.Vault, error)
	// ListAll returns every vault including tombstones, by id.
	ListAll(ctx context.Context) ([]*models.Vault, error)

	UpdatePassword(ctx context.Context, id int64, encryptedPassword []byte, hasPassword bool, updatedAt string) error
	Rename(ctx context.Context, id int64, name, updatedAt string) error
	UpdateCover(ctx context.Context, id int64, cover *string, updatedAt string) error
	// Touch raises updated_at to at, never lowering it.
	Touch(ctx context.Context, id int64, at string) error
	// ApplyRemote overwrites metadata with a newer remote version.
	ApplyRemote(ctx context.Context, id int64, name string, cover *string, updatedAt string) error
	// MarkDeleted tombstones a live vault; common.ErrNotFound if none.
	MarkDeleted(ctx context.Context, id int64, deletedAt, updatedAt string) error
	HardDelete(ctx context.Context, id int64) error
	// ListDeletedBefore returns ids of tombstones older than cutoff.
	ListDeletedBefore(ctx context.Context, cutoff string) ([]int64, error)
	// AssignUUID sets a uuid on a row that has none.
	AssignUUID(ctx context.Context, id int64, uuid string) error
}
