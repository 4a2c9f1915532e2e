package items

import (
	"context"

	"github.com/dmitrijs2005/vaultsync/internal/client/models"
)

type Repository interface {
	// Create inserts it and sets it.ID.
	Create(ctx context.Context, it *models.VaultItem) error
	// GetByID returns the item (tombstones included) or common.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*models.VaultItem, error)
	// FindByUUID returns nil, nil when no item has the uuid.
	FindByUUID(ctx context.Context, uuid string) (*models.VaultItem, error)
	// ListByVault returns live items in display order.
	ListByVault(ctx context.Context, vaultID int64) ([]*models.VaultItem, error)
	// ListAllByVault returns every item of the vault including tombstones.
	ListAllByVault(ctx context.Context, vaultID int64) ([]*models.VaultItem, error)

	UpdateContent(ctx context.Context, id int64, content []byte, updatedAt string) error
	UpdateTitle(ctx context.Context, id int64, title, updatedAt string) error
	UpdateImage(ctx context.Context, id int64, image *string, updatedAt string) error
	UpdateSummary(ctx context.Context, id int64, summary *string, updatedAt string) error
	// Move reassigns the item to vaultID and clears its sort order.
	Move(ctx context.Context, id, vaultID int64, updatedAt string) error
	// SetSortOrder fails with common.ErrNotFound unless the live item id
	// belongs to vaultID.
	SetSortOrder(ctx context.Context, id, vaultID, order int64) error
	// ApplyRemote overwrites title, content, image, summary, sort order and
	// updated_at from it.
	ApplyRemote(ctx context.Context, it *models.VaultItem) error

	// MarkDeleted tombstones a live item; common.ErrNotFound if none.
	MarkDeleted(ctx context.Context, id int64, deletedAt, updatedAt string) error
	// MarkDeletedByVault tombstones every live item of a vault.
	MarkDeletedByVault(ctx context.Context, vaultID int64, deletedAt, updatedAt string) (int64, error)
	HardDelete(ctx context.Context, id int64) error
	HardDeleteByVault(ctx context.Context, vaultID int64) (int64, error)
	// PurgeDeletedBefore hard-deletes item tombstones older than cutoff.
	PurgeDeletedBefore(ctx context.Context, cutoff string) (int64, error)
	AssignUUID(ctx context.Context, id int64, uuid string) error
}
