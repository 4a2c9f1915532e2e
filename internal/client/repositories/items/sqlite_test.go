package items

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/vaultsync/internal/client/dbstore"
	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := dbstore.Open(context.Background(), dbstore.MemoryPath, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ts(day int) string {
	return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02T15:04:05.000000000Z07:00")
}

func newItem(vaultID int64, uuid, title string, day int) *models.VaultItem {
	return &models.VaultItem{
		VaultID:   vaultID,
		UUID:      uuid,
		Title:     title,
		Content:   []byte("ct-" + title),
		CreatedAt: ts(day),
		UpdatedAt: ts(day),
	}
}

func titles(list []*models.VaultItem) []string {
	out := make([]string, len(list))
	for i, it := range list {
		out[i] = it.Title
	}
	return out
}

func TestCreateGetFind(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	it := newItem(1, "i-1", "note", 1)
	it.Summary = models.Ptr("short")
	it.SortOrder = models.Ptr(int64(4))
	require.NoError(t, r.Create(ctx, it))
	require.NotZero(t, it.ID)

	got, err := r.GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, it, got)

	found, err := r.FindByUUID(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, it.ID, found.ID)

	missing, err := r.FindByUUID(ctx, "none")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = r.GetByID(ctx, 777)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestListByVault_Order(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	a := newItem(1, "a", "a", 1)
	b := newItem(1, "b", "b", 2)
	c := newItem(1, "c", "c", 3)
	d := newItem(1, "d", "d", 4)
	other := newItem(2, "o", "other", 5)
	b.SortOrder = models.Ptr(int64(1))
	d.SortOrder = models.Ptr(int64(0))
	for _, it := range []*models.VaultItem{a, b, c, d, other} {
		require.NoError(t, r.Create(ctx, it))
	}

	list, err := r.ListByVault(ctx, 1)
	require.NoError(t, err)
	// ordered first, ascending; then unordered newest first
	assert.Equal(t, []string{"d", "b", "c", "a"}, titles(list))

	require.NoError(t, r.MarkDeleted(ctx, c.ID, ts(10), ts(10)))
	list, err = r.ListByVault(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b", "a"}, titles(list))

	all, err := r.ListAllByVault(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSetSortOrder_WrongVaultIsNotFound(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	it := newItem(1, "s", "s", 1)
	require.NoError(t, r.Create(ctx, it))

	require.NoError(t, r.SetSortOrder(ctx, it.ID, 1, 5))
	err := r.SetSortOrder(ctx, it.ID, 2, 6)
	require.ErrorIs(t, err, common.ErrNotFound)

	got, err := r.GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), models.Deref(got.SortOrder))
}

func TestMutations(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	it := newItem(1, "m", "m", 1)
	it.SortOrder = models.Ptr(int64(2))
	require.NoError(t, r.Create(ctx, it))

	require.NoError(t, r.UpdateContent(ctx, it.ID, []byte("new-ct"), ts(2)))
	require.NoError(t, r.UpdateTitle(ctx, it.ID, "renamed", ts(3)))
	require.NoError(t, r.UpdateImage(ctx, it.ID, models.Ptr("shot.png"), ts(4)))
	require.NoError(t, r.UpdateSummary(ctx, it.ID, models.Ptr("sum"), ts(5)))
	require.NoError(t, r.Move(ctx, it.ID, 9, ts(6)))

	got, err := r.GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("new-ct"), got.Content)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, "shot.png", models.Deref(got.Image))
	assert.Equal(t, "sum", models.Deref(got.Summary))
	assert.Equal(t, int64(9), got.VaultID)
	assert.Nil(t, got.SortOrder, "move clears sort order")
	assert.Equal(t, ts(6), got.UpdatedAt)

	got.Title = "remote"
	got.Content = []byte("remote-ct")
	got.SortOrder = models.Ptr(int64(7))
	got.UpdatedAt = ts(20)
	require.NoError(t, r.ApplyRemote(ctx, got))

	again, err := r.GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	require.ErrorIs(t, r.UpdateTitle(ctx, 1234, "x", ts(1)), common.ErrNotFound)
}

func TestDeletesAndPurge(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	a := newItem(1, "a", "a", 1)
	b := newItem(1, "b", "b", 1)
	c := newItem(2, "c", "c", 1)
	for _, it := range []*models.VaultItem{a, b, c} {
		require.NoError(t, r.Create(ctx, it))
	}

	require.NoError(t, r.MarkDeleted(ctx, a.ID, ts(2), ts(2)))
	require.ErrorIs(t, r.MarkDeleted(ctx, a.ID, ts(3), ts(3)), common.ErrNotFound)

	n, err := r.MarkDeletedByVault(ctx, 1, ts(20), ts(20))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only b was still live")

	purged, err := r.PurgeDeletedBefore(ctx, ts(10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = r.GetByID(ctx, a.ID)
	require.ErrorIs(t, err, common.ErrNotFound)

	n, err = r.HardDeleteByVault(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, r.HardDelete(ctx, c.ID))
	all, err := r.ListAllByVault(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAssignUUID(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	res, err := db.ExecContext(ctx, `INSERT INTO vault_items (vault_id, title, content, created_at) VALUES (1, 'legacy', x'00', ?)`, ts(1))
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)

	require.NoError(t, r.AssignUUID(ctx, id, "u"))
	require.ErrorIs(t, r.AssignUUID(ctx, id, "v"), common.ErrNotFound)
}

func TestSetSortOrder_DriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("disk I/O error")
	mock.ExpectExec("UPDATE vault_items SET sort_order").WillReturnError(boom)

	err = NewSQLiteRepository(db).SetSortOrder(context.Background(), 1, 1, 0)
	require.ErrorIs(t, err, boom)
	require.False(t, errors.Is(err, common.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}
