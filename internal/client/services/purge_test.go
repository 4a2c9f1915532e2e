package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/client/repositories/items"
	"github.com/dmitrijs2005/vaultsync/internal/client/repositories/vaults"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurge_RetentionWindow(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	clock := newTestClock()
	vs := NewVaultService(db, nil, nil, clock.clock())
	pm := NewPurgeManager(db, nil, clock.clock())

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	v, err := vs.CreateVault(ctx, "open", "", false)
	require.NoError(t, err)
	old, err := vs.InsertItem(ctx, v.ID, nil, models.NewItem{Title: "old", Content: "x"})
	require.NoError(t, err)
	recent, err := vs.InsertItem(ctx, v.ID, nil, models.NewItem{Title: "recent", Content: "y"})
	require.NoError(t, err)

	clock.set(now.AddDate(0, 0, -31))
	require.NoError(t, vs.SoftDeleteItem(ctx, old.ID))
	clock.set(now.AddDate(0, 0, -29))
	require.NoError(t, vs.SoftDeleteItem(ctx, recent.ID))

	gone, err := vs.CreateVault(ctx, "gone", "", false)
	require.NoError(t, err)
	clock.set(now.AddDate(0, 0, -40))
	require.NoError(t, vs.SoftDeleteVault(ctx, gone.ID))

	clock.set(now)
	res, err := pm.Purge(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PurgedItems)
	assert.Equal(t, 1, res.PurgedVaults)

	itemRepo := items.NewSQLiteRepository(db)
	_, err = itemRepo.GetByID(ctx, old.ID)
	assert.True(t, errors.Is(err, common.ErrNotFound))
	kept, err := itemRepo.GetByID(ctx, recent.ID)
	require.NoError(t, err)
	assert.True(t, kept.Deleted())

	_, err = vaults.NewSQLiteRepository(db).GetByID(ctx, gone.ID)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	_, err = pm.Purge(ctx, -1)
	assert.Error(t, err)
}

func TestAutoPurge_OnlyWithSyncFolder(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	clock := newTestClock()
	pm := NewPurgeManager(db, nil, clock.clock())

	res, ran, err := pm.AutoPurge(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Nil(t, res)

	require.NoError(t, NewSettingsService(db, nil).SetSyncFolder(ctx, t.TempDir()))
	res, ran, err = pm.AutoPurge(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, &PurgeResult{}, res)
}
