package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/client/repositories/items"
	"github.com/dmitrijs2005/vaultsync/internal/client/repositories/vaults"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/dbx"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/timex"
)

type PurgeManager interface {
	// Purge hard-deletes tombstones older than retentionDays.
	Purge(ctx context.Context, retentionDays int) (*PurgeResult, error)
	// AutoPurge runs Purge with the configured retention when a sync folder
	// is set; ran is false otherwise.
	AutoPurge(ctx context.Context) (res *PurgeResult, ran bool, err error)
}

type purgeManager struct {
	db    *sql.DB
	log   logging.Logger
	clock timex.Clock
}

func NewPurgeManager(db *sql.DB, log logging.Logger, clock timex.Clock) PurgeManager {
	if log == nil {
		log = logging.Nop()
	}
	return &purgeManager{db: db, log: log, clock: clock}
}

func (m *purgeManager) Purge(ctx context.Context, retentionDays int) (*PurgeResult, error) {
	const op = "PurgeManager.Purge"

	if retentionDays < 0 {
		return nil, common.E(common.KindStorage, op, fmt.Errorf("retention must not be negative: %d", retentionDays))
	}
	cutoff := timex.Format(m.clock.Time().AddDate(0, 0, -retentionDays))

	res := &PurgeResult{}
	err := dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		itemRepo := items.NewSQLiteRepository(tx)
		n, err := itemRepo.PurgeDeletedBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		res.PurgedItems = int(n)

		vaultRepo := vaults.NewSQLiteRepository(tx)
		ids, err := vaultRepo.ListDeletedBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, id := range ids {
			// items of a tombstoned vault normally went with the item pass
			if _, err := itemRepo.HardDeleteByVault(ctx, id); err != nil {
				return err
			}
			if err := vaultRepo.HardDelete(ctx, id); err != nil {
				return err
			}
		}
		res.PurgedVaults = len(ids)
		return nil
	})
	if err != nil {
		return nil, common.Lift(err, common.KindStorage, op)
	}

	m.log.Info(ctx, "purged tombstones", "cutoff", cutoff, "vaults", res.PurgedVaults, "items", res.PurgedItems)
	return res, nil
}

func (m *purgeManager) AutoPurge(ctx context.Context) (*PurgeResult, bool, error) {
	st := NewSettingsService(m.db, m.log)
	if _, ok, err := st.SyncFolder(ctx); err != nil || !ok {
		return nil, false, err
	}
	days, err := st.PurgeDays(ctx)
	if err != nil {
		return nil, false, err
	}
	res, err := m.Purge(ctx, days)
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}
