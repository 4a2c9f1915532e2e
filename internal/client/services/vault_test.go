package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/vaultsync/internal/client/capture"
	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/client/repositories/items"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVaultService(t *testing.T) (VaultService, *recordingIndexer) {
	t.Helper()
	ix := newRecordingIndexer()
	return NewVaultService(openDB(t), ix, nil, newTestClock().clock()), ix
}

func TestVaultKey_Deterministic(t *testing.T) {
	a := VaultKey("pw", 7)
	assert.Len(t, a, 32)
	assert.Equal(t, a, VaultKey("pw", 7))
	assert.NotEqual(t, a, VaultKey("pw", 8))
	assert.NotEqual(t, a, VaultKey("", 7))
}

func TestCreateVault_ProtectedAndPasswordless(t *testing.T) {
	ctx := context.Background()
	svc, _ := newVaultService(t)

	p, err := svc.CreateVault(ctx, "secret", "pw", true)
	require.NoError(t, err)
	assert.True(t, p.HasPassword)
	assert.NotEmpty(t, p.EncryptedPassword)
	assert.NotEmpty(t, p.UUID)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)

	// an empty password downgrades to passwordless
	o, err := svc.CreateVault(ctx, "open", "", true)
	require.NoError(t, err)
	assert.False(t, o.HasPassword)
	assert.Empty(t, o.EncryptedPassword)

	list, err := svc.ListVaults(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "open", list[0].Name, "newest first")

	locked, err := svc.LockedVaults(ctx)
	require.NoError(t, err)
	require.Len(t, locked, 1)
	assert.Equal(t, p.ID, locked[0].ID)
}

func TestVerifyPassword_Errors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newVaultService(t)

	v, err := svc.CreateVault(ctx, "secret", "pw", true)
	require.NoError(t, err)

	require.NoError(t, svc.VerifyPassword(ctx, v.ID, VaultKey("pw", v.ID)))

	err = svc.VerifyPassword(ctx, v.ID, VaultKey("nope", v.ID))
	assert.True(t, errors.Is(err, common.ErrInvalidPassword))

	err = svc.VerifyPassword(ctx, v.ID, []byte("short"))
	assert.True(t, errors.Is(err, common.ErrKeyLength))

	err = svc.VerifyPassword(ctx, v.ID+100, VaultKey("pw", v.ID))
	assert.True(t, errors.Is(err, common.ErrNotFound))
	assert.False(t, errors.Is(err, common.ErrInvalidPassword))

	open, err := svc.CreateVault(ctx, "open", "", false)
	require.NoError(t, err)
	require.NoError(t, svc.VerifyPassword(ctx, open.ID, make([]byte, 32)))
}

func TestUnlockVault(t *testing.T) {
	ctx := context.Background()
	svc, _ := newVaultService(t)

	v, err := svc.CreateVault(ctx, "secret", "pw", true)
	require.NoError(t, err)

	key, err := svc.UnlockVault(ctx, v.ID, "pw")
	require.NoError(t, err)
	assert.Equal(t, VaultKey("pw", v.ID), key)

	_, err = svc.UnlockVault(ctx, v.ID, "bad")
	assert.Equal(t, common.KindInvalidPassword, common.KindOf(err))

	open, err := svc.CreateVault(ctx, "open", "", false)
	require.NoError(t, err)
	key, err = svc.UnlockVault(ctx, open.ID, "ignored")
	require.NoError(t, err)
	assert.Equal(t, VaultKey("", open.ID), key)
}

func TestItems_CRUDTouchesVault(t *testing.T) {
	ctx := context.Background()
	svc, ix := newVaultService(t)

	v, err := svc.CreateVault(ctx, "secret", "pw", true)
	require.NoError(t, err)
	key := VaultKey("pw", v.ID)

	_, err = svc.InsertItem(ctx, v.ID, nil, models.NewItem{Title: "x", Content: "y"})
	assert.True(t, errors.Is(err, common.ErrPasswordRequired))

	view, err := svc.InsertItem(ctx, v.ID, key, models.NewItem{Title: "note", Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", view.Content)
	assert.Contains(t, ix.upserts, view.UUID)

	raw, err := svc.ListItems(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.NotEqual(t, []byte("hello"), raw[0].Content)

	afterInsert, err := svc.GetVault(ctx, v.ID)
	require.NoError(t, err)
	assert.Greater(t, afterInsert.UpdatedAt, v.UpdatedAt)

	require.NoError(t, svc.UpdateContent(ctx, view.ID, "https://example.com", key))
	require.NoError(t, svc.UpdateTitle(ctx, view.ID, "link"))
	require.NoError(t, svc.UpdateSummary(ctx, view.ID, models.Ptr("sum")))
	require.NoError(t, svc.UpdateImage(ctx, view.ID, models.Ptr("a.png")))

	got, err := svc.GetItem(ctx, view.ID, key)
	require.NoError(t, err)
	assert.Equal(t, "link", got.Title)
	assert.Equal(t, "https://example.com", got.Content)
	assert.Equal(t, "sum", models.Deref(got.Summary))
	assert.Equal(t, "a.png", models.Deref(got.Image))
	assert.Greater(t, got.UpdatedAt, view.UpdatedAt)
	assert.Equal(t, "url", ix.upserts[view.UUID].Type)

	afterEdits, err := svc.GetVault(ctx, v.ID)
	require.NoError(t, err)
	assert.Greater(t, afterEdits.UpdatedAt, afterInsert.UpdatedAt)

	_, err = svc.GetItem(ctx, view.ID, VaultKey("bad", v.ID))
	assert.Equal(t, common.KindInvalidPassword, common.KindOf(err))

	require.NoError(t, svc.SoftDeleteItem(ctx, view.ID))
	assert.Contains(t, ix.deletes, view.UUID)
	_, err = svc.GetItem(ctx, view.ID, key)
	assert.True(t, errors.Is(err, common.ErrNotFound))
	assert.True(t, errors.Is(svc.SoftDeleteItem(ctx, view.ID), common.ErrNotFound))

	views, err := svc.ListItemsDecrypted(ctx, v.ID, key)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestPasswordlessVault_UsesDerivedKey(t *testing.T) {
	ctx := context.Background()
	svc, _ := newVaultService(t)

	v, err := svc.CreateVault(ctx, "open", "", false)
	require.NoError(t, err)

	view, err := svc.InsertItem(ctx, v.ID, nil, models.NewItem{Title: "t", Content: "c"})
	require.NoError(t, err)

	got, err := svc.GetItem(ctx, view.ID, VaultKey("", v.ID))
	require.NoError(t, err)
	assert.Equal(t, "c", got.Content)
}

func TestPasswordlessVault_IgnoresSuppliedKey(t *testing.T) {
	ctx := context.Background()
	svc, _ := newVaultService(t)

	v, err := svc.CreateVault(ctx, "open", "", false)
	require.NoError(t, err)
	foreign := VaultKey("other", v.ID+1)

	view, err := svc.InsertItem(ctx, v.ID, foreign, models.NewItem{Title: "t", Content: "c"})
	require.NoError(t, err)
	require.NoError(t, svc.UpdateContent(ctx, view.ID, "c2", foreign))

	got, err := svc.GetItem(ctx, view.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "c2", got.Content)

	list, err := svc.ListItemsDecrypted(ctx, v.ID, foreign)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c2", list[0].Content)
}

func TestAddCapture(t *testing.T) {
	ctx := context.Background()
	svc, _ := newVaultService(t)

	v, err := svc.CreateVault(ctx, "open", "", false)
	require.NoError(t, err)

	p := capture.Static{AppName: "Editor", WindowTitle: "main.go", ScreenshotPath: "/tmp/shots/cap-1.png"}
	view, err := svc.AddCapture(ctx, v.ID, nil, p)
	require.NoError(t, err)
	assert.Equal(t, "main.go", view.Title)
	assert.Equal(t, "cap-1.png", models.Deref(view.Image))
	assert.Contains(t, view.Content, "App: Editor")

	failing := capture.ProducerFunc(func(context.Context) (capture.Metadata, error) {
		return capture.Metadata{}, errors.New("no display")
	})
	_, err = svc.AddCapture(ctx, v.ID, nil, failing)
	assert.Equal(t, common.KindIO, common.KindOf(err))
}

func TestReorder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newVaultService(t)

	v, err := svc.CreateVault(ctx, "open", "", false)
	require.NoError(t, err)
	other, err := svc.CreateVault(ctx, "other", "", false)
	require.NoError(t, err)

	var ids []int64
	for _, title := range []string{"a", "b", "c"} {
		it, err := svc.InsertItem(ctx, v.ID, nil, models.NewItem{Title: title, Content: title})
		require.NoError(t, err)
		ids = append(ids, it.ID)
	}
	foreign, err := svc.InsertItem(ctx, other.ID, nil, models.NewItem{Title: "x", Content: "x"})
	require.NoError(t, err)

	titles := func() []string {
		list, err := svc.ListItems(ctx, v.ID)
		require.NoError(t, err)
		out := make([]string, 0, len(list))
		for _, it := range list {
			out = append(out, it.Title)
		}
		return out
	}

	require.NoError(t, svc.Reorder(ctx, v.ID, []int64{ids[2], ids[0], ids[1]}))
	assert.Equal(t, []string{"c", "a", "b"}, titles())

	err = svc.Reorder(ctx, v.ID, []int64{ids[0], foreign.ID, ids[2]})
	assert.True(t, errors.Is(err, common.ErrNotFound))
	assert.Equal(t, []string{"c", "a", "b"}, titles(), "failed reorder must not change anything")
}

func TestChangePassword_ReencryptsAllItems(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	svc := NewVaultService(db, nil, nil, newTestClock().clock())

	v, err := svc.CreateVault(ctx, "secret", "old", true)
	require.NoError(t, err)
	oldKey := VaultKey("old", v.ID)

	live, err := svc.InsertItem(ctx, v.ID, oldKey, models.NewItem{Title: "live", Content: "one"})
	require.NoError(t, err)
	gone, err := svc.InsertItem(ctx, v.ID, oldKey, models.NewItem{Title: "gone", Content: "two"})
	require.NoError(t, err)
	require.NoError(t, svc.SoftDeleteItem(ctx, gone.ID))

	_, err = svc.ChangePassword(ctx, v.ID, VaultKey("wrong", v.ID), "new", true)
	assert.Equal(t, common.KindInvalidPassword, common.KindOf(err))

	newKey, err := svc.ChangePassword(ctx, v.ID, oldKey, "new", true)
	require.NoError(t, err)
	assert.Equal(t, VaultKey("new", v.ID), newKey)

	assert.Equal(t, common.KindInvalidPassword, common.KindOf(svc.VerifyPassword(ctx, v.ID, oldKey)))
	require.NoError(t, svc.VerifyPassword(ctx, v.ID, newKey))

	got, err := svc.GetItem(ctx, live.ID, newKey)
	require.NoError(t, err)
	assert.Equal(t, "one", got.Content)

	// tombstones are re-encrypted too
	row, err := items.NewSQLiteRepository(db).GetByID(ctx, gone.ID)
	require.NoError(t, err)
	require.True(t, row.Deleted())
	pt, err := cryptox.DecryptString(newKey, row.Content)
	require.NoError(t, err)
	assert.Equal(t, "two", pt)

	// disabling the password switches to the empty-password key
	openKey, err := svc.ChangePassword(ctx, v.ID, newKey, "", true)
	require.NoError(t, err)
	assert.Equal(t, VaultKey("", v.ID), openKey)

	after, err := svc.GetVault(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, after.HasPassword)
	assert.Empty(t, after.EncryptedPassword)

	got, err = svc.GetItem(ctx, live.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "one", got.Content)
}

func TestMoveItem_ReencryptsForTarget(t *testing.T) {
	ctx := context.Background()
	svc, _ := newVaultService(t)

	src, err := svc.CreateVault(ctx, "secret", "pw", true)
	require.NoError(t, err)
	srcKey := VaultKey("pw", src.ID)
	dst, err := svc.CreateVault(ctx, "open", "", false)
	require.NoError(t, err)

	it, err := svc.InsertItem(ctx, src.ID, srcKey, models.NewItem{Title: "t", Content: "moving"})
	require.NoError(t, err)
	require.NoError(t, svc.Reorder(ctx, src.ID, []int64{it.ID}))

	err = svc.MoveItem(ctx, it.ID, dst.ID, nil, nil)
	assert.True(t, errors.Is(err, common.ErrPasswordRequired))

	require.NoError(t, svc.MoveItem(ctx, it.ID, dst.ID, srcKey, nil))

	got, err := svc.GetItem(ctx, it.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, dst.ID, got.VaultID)
	assert.Equal(t, "moving", got.Content)
	assert.Nil(t, got.SortOrder)

	left, err := svc.ListItems(ctx, src.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestSoftDeleteVault_Cascades(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	ix := newRecordingIndexer()
	svc := NewVaultService(db, ix, nil, newTestClock().clock())

	v, err := svc.CreateVault(ctx, "open", "", false)
	require.NoError(t, err)
	a, err := svc.InsertItem(ctx, v.ID, nil, models.NewItem{Title: "a", Content: "a"})
	require.NoError(t, err)

	require.NoError(t, svc.SoftDeleteVault(ctx, v.ID))
	assert.Contains(t, ix.deletes, a.UUID)

	_, err = svc.GetVault(ctx, v.ID)
	assert.True(t, errors.Is(err, common.ErrNotFound))
	list, err := svc.ListVaults(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	row, err := items.NewSQLiteRepository(db).GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, row.Deleted())

	require.NoError(t, svc.HardDeleteVault(ctx, v.ID))
	_, err = items.NewSQLiteRepository(db).GetByID(ctx, a.ID)
	assert.True(t, errors.Is(err, common.ErrNotFound))
	assert.True(t, errors.Is(svc.HardDeleteVault(ctx, v.ID), common.ErrNotFound))
}

func TestRenameAndCover(t *testing.T) {
	ctx := context.Background()
	svc, _ := newVaultService(t)

	v, err := svc.CreateVault(ctx, "old", "", false)
	require.NoError(t, err)
	require.NoError(t, svc.RenameVault(ctx, v.ID, "new"))
	require.NoError(t, svc.UpdateCover(ctx, v.ID, models.Ptr("cover.jpg")))

	got, err := svc.GetVault(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)
	assert.Equal(t, "cover.jpg", models.Deref(got.CoverImage))
	assert.Greater(t, got.UpdatedAt, v.UpdatedAt)

	assert.True(t, errors.Is(svc.RenameVault(ctx, v.ID+1, "x"), common.ErrNotFound))
}

func TestHardDeleteItem(t *testing.T) {
	ctx := context.Background()
	svc, ix := newVaultService(t)

	v, err := svc.CreateVault(ctx, "open", "", false)
	require.NoError(t, err)
	it, err := svc.InsertItem(ctx, v.ID, nil, models.NewItem{Title: "a", Content: "a"})
	require.NoError(t, err)

	require.NoError(t, svc.HardDeleteItem(ctx, it.ID))
	assert.Contains(t, ix.deletes, it.UUID)
	assert.True(t, errors.Is(svc.HardDeleteItem(ctx, it.ID), common.ErrNotFound))
}
