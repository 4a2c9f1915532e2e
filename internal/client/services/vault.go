package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/client/capture"
	"github.com/dmitrijs2005/vaultsync/internal/client/index"
	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/client/repositories/items"
	"github.com/dmitrijs2005/vaultsync/internal/client/repositories/vaults"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/dmitrijs2005/vaultsync/internal/dbx"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/timex"
	"github.com/google/uuid"
)

type VaultService interface {
	CreateVault(ctx context.Context, name, password string, hasPassword bool) (*models.Vault, error)
	ListVaults(ctx context.Context) ([]*models.Vault, error)
	GetVault(ctx context.Context, id int64) (*models.Vault, error)
	LockedVaults(ctx context.Context) ([]*models.Vault, error)
	VerifyPassword(ctx context.Context, vaultID int64, key []byte) error
	UnlockVault(ctx context.Context, vaultID int64, password string) ([]byte, error)
	RenameVault(ctx context.Context, id int64, name string) error
	UpdateCover(ctx context.Context, id int64, cover *string) error
	ChangePassword(ctx context.Context, vaultID int64, oldKey []byte, newPassword string, enable bool) ([]byte, error)
	SoftDeleteVault(ctx context.Context, id int64) error
	HardDeleteVault(ctx context.Context, id int64) error

	InsertItem(ctx context.Context, vaultID int64, key []byte, in models.NewItem) (*models.ItemView, error)
	AddCapture(ctx context.Context, vaultID int64, key []byte, p capture.Producer) (*models.ItemView, error)
	GetItem(ctx context.Context, itemID int64, key []byte) (*models.ItemView, error)
	ListItems(ctx context.Context, vaultID int64) ([]*models.VaultItem, error)
	ListItemsDecrypted(ctx context.Context, vaultID int64, key []byte) ([]*models.ItemView, error)
	UpdateContent(ctx context.Context, itemID int64, content string, key []byte) error
	UpdateTitle(ctx context.Context, itemID int64, title string) error
	UpdateImage(ctx context.Context, itemID int64, image *string) error
	UpdateSummary(ctx context.Context, itemID int64, summary *string) error
	MoveItem(ctx context.Context, itemID, targetVaultID int64, sourceKey, targetKey []byte) error
	Reorder(ctx context.Context, vaultID int64, itemIDs []int64) error
	SoftDeleteItem(ctx context.Context, itemID int64) error
	HardDeleteItem(ctx context.Context, itemID int64) error
}

type vaultService struct {
	db      *sql.DB
	indexer index.Indexer
	log     logging.Logger
	clock   timex.Clock
}

// NewVaultService builds the vault store on an opened database. A nil
// indexer or logger is replaced by a no-op.
func NewVaultService(db *sql.DB, indexer index.Indexer, log logging.Logger, clock timex.Clock) VaultService {
	if indexer == nil {
		indexer = index.Nop{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &vaultService{db: db, indexer: indexer, log: log, clock: clock}
}

func liveVault(ctx context.Context, db dbx.DBTX, id int64) (*models.Vault, error) {
	v, err := vaults.NewSQLiteRepository(db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Deleted() {
		return nil, fmt.Errorf("vault %d: %w", id, common.ErrNotFound)
	}
	return v, nil
}

func liveItem(ctx context.Context, db dbx.DBTX, id int64) (*models.VaultItem, error) {
	it, err := items.NewSQLiteRepository(db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Deleted() {
		return nil, fmt.Errorf("item %d: %w", id, common.ErrNotFound)
	}
	return it, nil
}

func viewOf(it *models.VaultItem, content string) *models.ItemView {
	return &models.ItemView{
		ID:        it.ID,
		VaultID:   it.VaultID,
		UUID:      it.UUID,
		Title:     it.Title,
		Content:   content,
		Image:     it.Image,
		Summary:   it.Summary,
		SortOrder: it.SortOrder,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
		DeletedAt: it.DeletedAt,
	}
}

func (s *vaultService) CreateVault(ctx context.Context, name, password string, hasPassword bool) (*models.Vault, error) {
	const op = "VaultService.CreateVault"

	protected := hasPassword && password != ""
	now := s.clock.Now()
	v := &models.Vault{
		UUID:        uuid.NewString(),
		Name:        name,
		HasPassword: protected,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := vaults.NewSQLiteRepository(tx)
		if err := repo.Create(ctx, v); err != nil {
			return err
		}
		if !protected {
			return nil
		}
		// the salt is the id, so the payload can only be built after insert
		payload, err := cryptox.EncryptString(VaultKey(password, v.ID), password)
		if err != nil {
			return common.E(common.KindCrypto, op, err)
		}
		v.EncryptedPassword = payload
		return repo.UpdatePassword(ctx, v.ID, payload, true, now)
	})
	if err != nil {
		return nil, common.Lift(err, common.KindStorage, op)
	}

	s.log.Info(ctx, "vault created", "vault_id", v.ID, "protected", protected)
	return v, nil
}

func (s *vaultService) ListVaults(ctx context.Context) ([]*models.Vault, error) {
	list, err := vaults.NewSQLiteRepository(s.db).List(ctx)
	return list, common.Lift(err, common.KindStorage, "VaultService.ListVaults")
}

func (s *vaultService) GetVault(ctx context.Context, id int64) (*models.Vault, error) {
	v, err := liveVault(ctx, s.db, id)
	if err != nil {
		return nil, common.Lift(err, common.KindStorage, "VaultService.GetVault")
	}
	return v, nil
}

// LockedVaults lists the live vaults that need a password to open.
func (s *vaultService) LockedVaults(ctx context.Context) ([]*models.Vault, error) {
	list, err := s.ListVaults(ctx)
	if err != nil {
		return nil, err
	}
	locked := make([]*models.Vault, 0, len(list))
	for _, v := range list {
		if v.HasPassword {
			locked = append(locked, v)
		}
	}
	return locked, nil
}

func (s *vaultService) VerifyPassword(ctx context.Context, vaultID int64, key []byte) error {
	const op = "VaultService.VerifyPassword"
	v, err := liveVault(ctx, s.db, vaultID)
	if err != nil {
		return common.Lift(err, common.KindStorage, op)
	}
	return checkVaultKey(op, v, key)
}

// UnlockVault derives and verifies the key for password. The password is
// ignored for passwordless vaults.
func (s *vaultService) UnlockVault(ctx context.Context, vaultID int64, password string) ([]byte, error) {
	const op = "VaultService.UnlockVault"
	v, err := liveVault(ctx, s.db, vaultID)
	if err != nil {
		return nil, common.Lift(err, common.KindStorage, op)
	}
	if !v.HasPassword {
		password = ""
	}
	key := VaultKey(password, v.ID)
	if err := checkVaultKey(op, v, key); err != nil {
		s.log.Warn(ctx, "vault unlock rejected", "vault_id", v.ID)
		return nil, err
	}
	return key, nil
}

func (s *vaultService) RenameVault(ctx context.Context, id int64, name string) error {
	const op = "VaultService.RenameVault"
	if _, err := liveVault(ctx, s.db, id); err != nil {
		return common.Lift(err, common.KindStorage, op)
	}
	err := vaults.NewSQLiteRepository(s.db).Rename(ctx, id, name, s.clock.Now())
	return common.Lift(err, common.KindStorage, op)
}

func (s *vaultService) UpdateCover(ctx context.Context, id int64, cover *string) error {
	const op = "VaultService.UpdateCover"
	if _, err := liveVault(ctx, s.db, id); err != nil {
		return common.Lift(err, common.KindStorage, op)
	}
	err := vaults.NewSQLiteRepository(s.db).UpdateCover(ctx, id, cover, s.clock.Now())
	return common.Lift(err, common.KindStorage, op)
}

// ChangePassword re-encrypts every item of the vault, tombstones included,
// under the key of newPassword and returns that key. With enable false or
// an empty newPassword the vault becomes passwordless.
func (s *vaultService) ChangePassword(ctx context.Context, vaultID int64, oldKey []byte, newPassword string, enable bool) ([]byte, error) {
	const op = "VaultService.ChangePassword"

	protected := enable && newPassword != ""
	if !protected {
		newPassword = ""
	}
	var newKey []byte

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		v, err := liveVault(ctx, tx, vaultID)
		if err != nil {
			return err
		}
		key, err := usableKey(op, v, oldKey)
		if err != nil {
			return err
		}
		newKey = VaultKey(newPassword, v.ID)

		itemRepo := items.NewSQLiteRepository(tx)
		all, err := itemRepo.ListAllByVault(ctx, v.ID)
		if err != nil {
			return err
		}
		for _, it := range all {
			pt, err := cryptox.Decrypt(key, it.Content)
			if err != nil {
				return common.EntityE(common.KindCrypto, op, "item", it.ID, err)
			}
			ct, err := cryptox.Encrypt(newKey, pt)
			common.WipeByteArray(pt)
			if err != nil {
				return common.EntityE(common.KindCrypto, op, "item", it.ID, err)
			}
			// plaintext is unchanged, so the item keeps its sync timestamp
			if err := itemRepo.UpdateContent(ctx, it.ID, ct, it.UpdatedAt); err != nil {
				return err
			}
		}

		var payload []byte
		if protected {
			if payload, err = cryptox.EncryptString(newKey, newPassword); err != nil {
				return common.E(common.KindCrypto, op, err)
			}
		}
		return vaults.NewSQLiteRepository(tx).UpdatePassword(ctx, v.ID, payload, protected, s.clock.Now())
	})
	if err != nil {
		return nil, common.Lift(err, common.KindStorage, op)
	}

	s.log.Info(ctx, "vault password changed", "vault_id", vaultID, "protected", protected)
	return newKey, nil
}

// SoftDeleteVault tombstones the vault and all of its live items.
func (s *vaultService) SoftDeleteVault(ctx context.Context, id int64) error {
	const op = "VaultService.SoftDeleteVault"

	var removed []*models.VaultItem
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := liveVault(ctx, tx, id); err != nil {
			return err
		}
		itemRepo := items.NewSQLiteRepository(tx)
		var err error
		if removed, err = itemRepo.ListByVault(ctx, id); err != nil {
			return err
		}
		now := s.clock.Now()
		if _, err := itemRepo.MarkDeletedByVault(ctx, id, now, now); err != nil {
			return err
		}
		return vaults.NewSQLiteRepository(tx).MarkDeleted(ctx, id, now, now)
	})
	if err != nil {
		return common.Lift(err, common.KindStorage, op)
	}

	for _, it := range removed {
		s.unindex(ctx, it.UUID)
	}
	s.log.Info(ctx, "vault deleted", "vault_id", id, "items", len(removed))
	return nil
}

// HardDeleteVault removes the vault row and every item row without leaving
// tombstones.
func (s *vaultService) HardDeleteVault(ctx context.Context, id int64) error {
	const op = "VaultService.HardDeleteVault"

	var removed []*models.VaultItem
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		vaultRepo := vaults.NewSQLiteRepository(tx)
		if _, err := vaultRepo.GetByID(ctx, id); err != nil {
			return err
		}
		itemRepo := items.NewSQLiteRepository(tx)
		var err error
		if removed, err = itemRepo.ListAllByVault(ctx, id); err != nil {
			return err
		}
		if _, err := itemRepo.HardDeleteByVault(ctx, id); err != nil {
			return err
		}
		return vaultRepo.HardDelete(ctx, id)
	})
	if err != nil {
		return common.Lift(err, common.KindStorage, op)
	}

	for _, it := range removed {
		s.unindex(ctx, it.UUID)
	}
	return nil
}

func (s *vaultService) InsertItem(ctx context.Context, vaultID int64, key []byte, in models.NewItem) (*models.ItemView, error) {
	const op = "VaultService.InsertItem"

	v, err := liveVault(ctx, s.db, vaultID)
	if err != nil {
		return nil, common.Lift(err, common.KindStorage, op)
	}
	if key, err = usableKey(op, v, key); err != nil {
		return nil, err
	}
	ct, err := cryptox.EncryptString(key, in.Content)
	if err != nil {
		return nil, common.E(common.KindCrypto, op, err)
	}

	now := s.clock.Now()
	it := &models.VaultItem{
		VaultID:   v.ID,
		UUID:      uuid.NewString(),
		Title:     in.Title,
		Content:   ct,
		Image:     in.Image,
		Summary:   in.Summary,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := items.NewSQLiteRepository(tx).Create(ctx, it); err != nil {
			return err
		}
		return vaults.NewSQLiteRepository(tx).Touch(ctx, v.ID, now)
	})
	if err != nil {
		return nil, common.Lift(err, common.KindStorage, op)
	}

	s.index(ctx, it, in.Content)
	return viewOf(it, in.Content), nil
}

// AddCapture asks p for the focused window and stores it as a new item.
func (s *vaultService) AddCapture(ctx context.Context, vaultID int64, key []byte, p capture.Producer) (*models.ItemView, error) {
	meta, err := p.Capture(ctx)
	if err != nil {
		return nil, common.E(common.KindIO, "VaultService.AddCapture", err)
	}
	in := models.NewItem{
		Title:   meta.Title(),
		Content: meta.Content(s.clock.Now()),
	}
	if name := meta.ImageName(); name != "" {
		in.Image = &name
	}
	return s.InsertItem(ctx, vaultID, key, in)
}

func (s *vaultService) GetItem(ctx context.Context, itemID int64, key []byte) (*models.ItemView, error) {
	const op = "VaultService.GetItem"

	it, err := liveItem(ctx, s.db, itemID)
	if err != nil {
		return nil, common.Lift(err, common.KindStorage, op)
	}
	v, err := liveVault(ctx, s.db, it.VaultID)
	if err != nil {
		return nil, common.Lift(err, common.KindStorage, op)
	}
	if key, err = usableKey(op, v, key); err != nil {
		return nil, err
	}
	pt, err := cryptox.DecryptString(key, it.Content)
	if err != nil {
		return nil, common.EntityE(common.KindCrypto, op, "item", it.ID, err)
	}
	return viewOf(it, pt), nil
}

// ListItems returns live items of the vault with their content still
// encrypted.
func (s *vaultService) ListItems(ctx context.Context, vaultID int64) ([]*models.VaultItem, error) {
	const op = "VaultService.ListItems"
	if _, err := liveVault(ctx, s.db, vaultID); err != nil {
		return nil, common.Lift(err, common.KindStorage, op)
	}
	list, err := items.NewSQLiteRepository(s.db).ListByVault(ctx, vaultID)
	return list, common.Lift(err, common.KindStorage, op)
}

func (s *vaultService) ListItemsDecrypted(ctx context.Context, vaultID int64, key []byte) ([]*models.ItemView, error) {
	const op = "VaultService.ListItemsDecrypted"

	v, err := liveVault(ctx, s.db, vaultID)
	if err != nil {
		return nil, common.Lift(err, common.KindStorage, op)
	}
	if key, err = usableKey(op, v, key); err != nil {
		return nil, err
	}
	list, err := items.NewSQLiteRepository(s.db).ListByVault(ctx, vaultID)
	if err != nil {
		return nil, common.Lift(err, common.KindStorage, op)
	}

	views := make([]*models.ItemView, 0, len(list))
	for _, it := range list {
		pt, err := cryptox.DecryptString(key, it.Content)
		if err != nil {
			return nil, common.EntityE(common.KindCrypto, op, "item", it.ID, err)
		}
		views = append(views, viewOf(it, pt))
	}
	return views, nil
}

func (s *vaultService) UpdateContent(ctx context.Context, itemID int64, content string, key []byte) error {
	const op = "VaultService.UpdateContent"

	it, err := liveItem(ctx, s.db, itemID)
	if err != nil {
		return common.Lift(err, common.KindStorage, op)
	}
	v, err := liveVault(ctx, s.db, it.VaultID)
	if err != nil {
		return common.Lift(err, common.KindStorage, op)
	}
	if key, err = usableKey(op, v, key); err != nil {
		return err
	}
	ct, err := cryptox.EncryptString(key, content)
	if err != nil {
		return common.E(common.KindCrypto, op, err)
	}

	now := s.clock.Now()
	err = s.mutateItem(ctx, it, now, func(repo items.Repository) error {
		return repo.UpdateContent(ctx, it.ID, ct, now)
	})
	if err != nil {
		return common.Lift(err, common.KindStorage, op)
	}

	it.UpdatedAt = now
	s.index(ctx, it, content)
	return nil
}

func (s *vaultService) UpdateTitle(ctx context.Context, itemID int64, title string) error {
	return s.updateField(ctx, "VaultService.UpdateTitle", itemID, func(repo items.Repository, now string) error {
		return repo.UpdateTitle(ctx, itemID, title, now)
	})
}

func (s *vaultService) UpdateImage(ctx context.Context, itemID int64, image *string) error {
	return s.updateField(ctx, "VaultService.UpdateImage", itemID, func(repo items.Repository, now string) error {
		return repo.UpdateImage(ctx, itemID, image, now)
	})
}

func (s *vaultService) UpdateSummary(ctx context.Context, itemID int64, summary *string) error {
	return s.updateField(ctx, "VaultService.UpdateSummary", itemID, func(repo items.Repository, now string) error {
		return repo.UpdateSummary(ctx, itemID, summary, now)
	})
}

func (s *vaultService) updateField(ctx context.Context, op string, itemID int64, fn func(repo items.Repository, now string) error) error {
	it, err := liveItem(ctx, s.db, itemID)
	if err != nil {
		return common.Lift(err, common.KindStorage, op)
	}
	now := s.clock.Now()
	err = s.mutateItem(ctx, it, now, func(repo items.Repository) error {
		return fn(repo, now)
	})
	return common.Lift(err, common.KindStorage, op)
}

// mutateItem runs fn and touches the owning vault in one transaction.
func (s *vaultService) mutateItem(ctx context.Context, it *models.VaultItem, now string, fn func(repo items.Repository) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := fn(items.NewSQLiteRepository(tx)); err != nil {
			return err
		}
		return vaults.NewSQLiteRepository(tx).Touch(ctx, it.VaultID, now)
	})
}

// MoveItem reassigns the item to another vault, re-encrypting its content
// under the target vault's key. The item loses its sort position.
func (s *vaultService) MoveItem(ctx context.Context, itemID, targetVaultID int64, sourceKey, targetKey []byte) error {
	const op = "VaultService.MoveItem"

	var moved *models.VaultItem
	var plaintext string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		it, err := liveItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if it.VaultID == targetVaultID {
			return nil
		}
		src, err := liveVault(ctx, tx, it.VaultID)
		if err != nil {
			return err
		}
		dst, err := liveVault(ctx, tx, targetVaultID)
		if err != nil {
			return err
		}
		if sourceKey, err = usableKey(op, src, sourceKey); err != nil {
			return err
		}
		if targetKey, err = usableKey(op, dst, targetKey); err != nil {
			return err
		}

		pt, err := cryptox.DecryptString(sourceKey, it.Content)
		if err != nil {
			return common.EntityE(common.KindCrypto, op, "item", it.ID, err)
		}
		ct, err := cryptox.EncryptString(targetKey, pt)
		if err != nil {
			return common.EntityE(common.KindCrypto, op, "item", it.ID, err)
		}

		now := s.clock.Now()
		repo := items.NewSQLiteRepository(tx)
		if err := repo.UpdateContent(ctx, it.ID, ct, now); err != nil {
			return err
		}
		if err := repo.Move(ctx, it.ID, dst.ID, now); err != nil {
			return err
		}
		vaultRepo := vaults.NewSQLiteRepository(tx)
		if err := vaultRepo.Touch(ctx, src.ID, now); err != nil {
			return err
		}
		if err := vaultRepo.Touch(ctx, dst.ID, now); err != nil {
			return err
		}

		it.VaultID, it.UpdatedAt, it.SortOrder = dst.ID, now, nil
		moved, plaintext = it, pt
		return nil
	})
	if err != nil {
		return common.Lift(err, common.KindStorage, op)
	}
	if moved != nil {
		s.index(ctx, moved, plaintext)
	}
	return nil
}

// Reorder assigns sort_order 0..n-1 to itemIDs. Any id that is not a live
// item of the vault rolls the whole batch back.
func (s *vaultService) Reorder(ctx context.Context, vaultID int64, itemIDs []int64) error {
	const op = "VaultService.Reorder"

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := liveVault(ctx, tx, vaultID); err != nil {
			return err
		}
		repo := items.NewSQLiteRepository(tx)
		for i, id := range itemIDs {
			if err := repo.SetSortOrder(ctx, id, vaultID, int64(i)); err != nil {
				return fmt.Errorf("item %d: %w", id, err)
			}
		}
		return vaults.NewSQLiteRepository(tx).Touch(ctx, vaultID, s.clock.Now())
	})
	return common.Lift(err, common.KindStorage, op)
}

func (s *vaultService) SoftDeleteItem(ctx context.Context, itemID int64) error {
	const op = "VaultService.SoftDeleteItem"

	it, err := liveItem(ctx, s.db, itemID)
	if err != nil {
		return common.Lift(err, common.KindStorage, op)
	}
	now := s.clock.Now()
	err = s.mutateItem(ctx, it, now, func(repo items.Repository) error {
		return repo.MarkDeleted(ctx, it.ID, now, now)
	})
	if err != nil {
		return common.Lift(err, common.KindStorage, op)
	}
	s.unindex(ctx, it.UUID)
	return nil
}

func (s *vaultService) HardDeleteItem(ctx context.Context, itemID int64) error {
	const op = "VaultService.HardDeleteItem"

	repo := items.NewSQLiteRepository(s.db)
	it, err := repo.GetByID(ctx, itemID)
	if err != nil {
		return common.Lift(err, common.KindStorage, op)
	}
	if err := repo.HardDelete(ctx, it.ID); err != nil {
		return common.Lift(err, common.KindStorage, op)
	}
	s.unindex(ctx, it.UUID)
	return nil
}

func (s *vaultService) index(ctx context.Context, it *models.VaultItem, content string) {
	indexItem(ctx, s.indexer, s.log, it, content)
}

func (s *vaultService) unindex(ctx context.Context, id string) {
	if err := s.indexer.Delete(ctx, id); err != nil {
		s.log.Warn(ctx, "search index delete failed", "item_uuid", id, "error", err)
	}
}

func indexItem(ctx context.Context, ix index.Indexer, log logging.Logger, it *models.VaultItem, content string) {
	doc := index.Document{
		ID:        it.UUID,
		Title:     it.Title,
		Content:   content,
		Type:      index.ItemType(content),
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
		Path:      it.Image,
	}
	if err := ix.Upsert(ctx, doc); err != nil {
		log.Warn(ctx, "search index upsert failed", "item_uuid", it.UUID, "error", err)
	}
}
