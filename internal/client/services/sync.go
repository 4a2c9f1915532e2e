package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dmitrijs2005/vaultsync/internal/client/index"
	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/client/repositories/items"
	"github.com/dmitrijs2005/vaultsync/internal/client/repositories/vaults"
	"github.com/dmitrijs2005/vaultsync/internal/client/synccodec"
	"github.com/dmitrijs2005/vaultsync/internal/client/syncfolder"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/dmitrijs2005/vaultsync/internal/dbx"
	"github.com/dmitrijs2005/vaultsync/internal/filex"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/timex"
	"github.com/google/uuid"
)

// ConflictSuffix is appended to the title of the sibling created when both
// sides edited an item since the last merge.
const ConflictSuffix = " [Conflict]"

// FolderOpener resolves the configured sync folder location.
type FolderOpener func(ctx context.Context, location string) (syncfolder.Folder, error)

type SyncEngine interface {
	Export(ctx context.Context, req ExportRequest) (*ExportResult, error)
	Import(ctx context.Context, passwords map[string]string) (*ImportResult, error)
	Status(ctx context.Context) (*SyncStatus, error)
	// Preview returns nil when no sync folder is set or it holds no file.
	Preview(ctx context.Context) (*SyncPreview, error)
}

type syncEngine struct {
	db          *sql.DB
	open        FolderOpener
	capturesDir string
	indexer     index.Indexer
	log         logging.Logger
	clock       timex.Clock
}

func NewSyncEngine(db *sql.DB, open FolderOpener, capturesDir string, indexer index.Indexer, log logging.Logger, clock timex.Clock) SyncEngine {
	if indexer == nil {
		indexer = index.Nop{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &syncEngine{db: db, open: open, capturesDir: capturesDir, indexer: indexer, log: log, clock: clock}
}

func (e *syncEngine) settings() SettingsService { return NewSettingsService(e.db, e.log) }

func (e *syncEngine) folder(ctx context.Context, op string) (syncfolder.Folder, error) {
	loc, ok, err := e.settings().SyncFolder(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.E(common.KindSyncFolderUnavailable, op, errors.New("sync folder not configured"))
	}
	f, err := e.open(ctx, loc)
	if err != nil {
		return nil, common.Lift(err, common.KindSyncFolderUnavailable, op)
	}
	return f, nil
}

func (e *syncEngine) warn(ctx context.Context, warnings *[]string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.log.Warn(ctx, msg)
	*warnings = append(*warnings, msg)
}

func skipReason(err error) string {
	switch common.KindOf(err) {
	case common.KindPasswordRequired:
		return "password required but not provided"
	case common.KindKeyLength:
		return "invalid key length"
	case common.KindInvalidPassword:
		return "invalid password"
	default:
		return err.Error()
	}
}

// Export writes every selected vault, tombstones included, as plaintext to
// the shared sync file and copies new or changed captures next to it.
func (e *syncEngine) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	const op = "SyncEngine.Export"

	folder, err := e.folder(ctx, op)
	if err != nil {
		return nil, err
	}
	if err := folder.Check(ctx); err != nil {
		return nil, common.Lift(err, common.KindSyncFolderUnavailable, op)
	}

	st := e.settings()
	deviceID, err := st.DeviceID(ctx)
	if err != nil {
		return nil, err
	}
	deviceName, err := st.DeviceName(ctx)
	if err != nil {
		return nil, err
	}

	all, err := vaults.NewSQLiteRepository(e.db).ListAll(ctx)
	if err != nil {
		return nil, common.E(common.KindStorage, op, err)
	}

	res := &ExportResult{SkippedVaults: []string{}, Warnings: []string{}}
	out := make([]synccodec.Vault, 0, len(all))
	for _, v := range all {
		if len(req.VaultIDs) > 0 && !slices.Contains(req.VaultIDs, v.ID) {
			continue
		}
		sv, err := e.exportVault(ctx, op, v, req.Keys[v.ID], res)
		if err != nil {
			res.SkippedVaults = append(res.SkippedVaults, v.Name)
			e.warn(ctx, &res.Warnings, "Skipped vault '%s': %s", v.Name, skipReason(err))
			continue
		}
		out = append(out, *sv)
		res.ExportedItems += len(sv.Items)
	}
	res.ExportedVaults = len(out)

	captures := e.exportCaptures(ctx, folder, res)

	now := e.clock.Now()
	data, err := synccodec.Marshal(&synccodec.File{
		FormatVersion: synccodec.FormatVersion,
		DeviceID:      deviceID,
		DeviceName:    deviceName,
		ExportedAt:    now,
		Vaults:        out,
		Captures:      captures,
	})
	if err != nil {
		return nil, err
	}
	if err := folder.WriteSyncFile(ctx, data); err != nil {
		return nil, common.Lift(err, common.KindIO, op)
	}
	if err := st.RecordSync(ctx, now, deviceName); err != nil {
		return nil, err
	}

	e.log.Info(ctx, "sync export finished",
		"folder", folder.Location(),
		"vaults", res.ExportedVaults,
		"items", res.ExportedItems,
		"captures", res.ExportedCaptures,
		"skipped", len(res.SkippedVaults))
	return res, nil
}

func (e *syncEngine) exportVault(ctx context.Context, op string, v *models.Vault, key []byte, res *ExportResult) (*synccodec.Vault, error) {
	key, err := resolveProtectedKey(op, v, key)
	if err != nil {
		return nil, err
	}

	if v.UUID == "" {
		id := uuid.NewString()
		if err := vaults.NewSQLiteRepository(e.db).AssignUUID(ctx, v.ID, id); err != nil {
			return nil, err
		}
		v.UUID = id
		e.warn(ctx, &res.Warnings, "Vault '%s' has no UUID, generating one", v.Name)
	}

	itemRepo := items.NewSQLiteRepository(e.db)
	list, err := itemRepo.ListAllByVault(ctx, v.ID)
	if err != nil {
		return nil, err
	}

	out := make([]synccodec.Item, 0, len(list))
	for _, it := range list {
		content, err := cryptox.DecryptString(key, it.Content)
		if err != nil {
			if v.HasPassword {
				return nil, common.EntityE(common.KindCrypto, op, "item", it.ID, err)
			}
			// rows written before passwordless vaults were encrypted
			content = strings.ToValidUTF8(string(it.Content), "�")
		}
		if it.UUID == "" {
			id := uuid.NewString()
			if err := itemRepo.AssignUUID(ctx, it.ID, id); err != nil {
				return nil, err
			}
			it.UUID = id
			e.warn(ctx, &res.Warnings, "Item '%s' has no UUID, generating one", it.Title)
		}
		out = append(out, synccodec.Item{
			UUID:      it.UUID,
			Title:     it.Title,
			Content:   content,
			CreatedAt: it.CreatedAt,
			UpdatedAt: it.UpdatedAt,
			DeletedAt: it.DeletedAt,
			Image:     it.Image,
			Summary:   it.Summary,
			SortOrder: it.SortOrder,
		})
	}

	updatedAt := v.UpdatedAt
	if updatedAt == "" {
		updatedAt = e.clock.Now()
	}
	return &synccodec.Vault{
		UUID:        v.UUID,
		Name:        v.Name,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   v.DeletedAt,
		CoverImage:  v.CoverImage,
		HasPassword: v.HasPassword,
		Items:       out,
	}, nil
}

// exportCaptures lists every local capture and uploads those missing from
// the folder or newer than the copy there.
func (e *syncEngine) exportCaptures(ctx context.Context, folder syncfolder.Folder, res *ExportResult) []synccodec.Capture {
	local, err := syncfolder.ListDir(e.capturesDir)
	if err != nil {
		e.warn(ctx, &res.Warnings, "Failed to list local captures: %v", err)
		return nil
	}
	if len(local) == 0 {
		return nil
	}

	remote, err := folder.ListCaptures(ctx)
	if err != nil {
		e.warn(ctx, &res.Warnings, "Failed to list remote captures: %v", err)
	}
	have := make(map[string]syncfolder.FileInfo, len(remote))
	for _, fi := range remote {
		have[fi.Name] = fi
	}

	out := make([]synccodec.Capture, 0, len(local))
	for _, fi := range local {
		if r, ok := have[fi.Name]; !ok || fi.ModTime.After(r.ModTime) {
			if err := e.putCapture(ctx, folder, fi); err != nil {
				e.warn(ctx, &res.Warnings, "Failed to copy capture '%s': %v", fi.Name, err)
			}
		}
		out = append(out, synccodec.Capture{
			Filename:  fi.Name,
			CreatedAt: timex.Format(fi.ModTime),
			SizeBytes: fi.Size,
		})
	}
	res.ExportedCaptures = len(out)
	return out
}

func (e *syncEngine) putCapture(ctx context.Context, folder syncfolder.Folder, fi syncfolder.FileInfo) error {
	f, err := os.Open(filepath.Join(e.capturesDir, fi.Name))
	if err != nil {
		return err
	}
	defer f.Close()
	return folder.PutCapture(ctx, fi.Name, f, fi.Size, fi.ModTime)
}

// vaultImport collects what one vault's import changed. It is merged into
// the result only after the vault's transaction commits.
type vaultImport struct {
	vaults    int
	items     int
	conflicts []string
	warnings  []string
	skipped   bool
	upserts   []indexedItem
	deletes   []string
}

type indexedItem struct {
	item    *models.VaultItem
	content string
}

// Import merges the shared sync file into the local store. Each vault is
// applied in its own transaction; a failing vault is rolled back and
// reported as skipped while the rest continue.
func (e *syncEngine) Import(ctx context.Context, passwords map[string]string) (*ImportResult, error) {
	const op = "SyncEngine.Import"

	folder, err := e.folder(ctx, op)
	if err != nil {
		return nil, err
	}
	data, err := folder.ReadSyncFile(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.EntityE(common.KindNotFound, op, "sync file", folder.Location(), nil)
		}
		return nil, common.Lift(err, common.KindIO, op)
	}
	file, err := synccodec.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	normalizeFile(file)

	st := e.settings()
	lastSync, _, err := st.LastSync(ctx)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Conflicts: []string{}, Warnings: []string{}, SkippedVaults: []string{}}
	for i := range file.Vaults {
		sv := &file.Vaults[i]

		var out *vaultImport
		err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			var err error
			out, err = e.importVault(ctx, tx, sv, passwords[sv.UUID], lastSync)
			return err
		})
		if err != nil {
			res.SkippedVaults = append(res.SkippedVaults, sv.Name)
			e.warn(ctx, &res.Warnings, "Skipped vault '%s': %v", sv.Name, err)
			continue
		}

		res.ImportedVaults += out.vaults
		res.ImportedItems += out.items
		res.Conflicts = append(res.Conflicts, out.conflicts...)
		for _, w := range out.warnings {
			e.warn(ctx, &res.Warnings, "%s", w)
		}
		if out.skipped {
			res.SkippedVaults = append(res.SkippedVaults, sv.Name)
		}
		for _, u := range out.upserts {
			indexItem(ctx, e.indexer, e.log, u.item, u.content)
		}
		for _, id := range out.deletes {
			if err := e.indexer.Delete(ctx, id); err != nil {
				e.log.Warn(ctx, "search index delete failed", "item_uuid", id, "error", err)
			}
		}
	}

	e.importCaptures(ctx, folder, res)

	if err := st.RecordSync(ctx, e.clock.Now(), file.DeviceName); err != nil {
		return nil, err
	}

	e.log.Info(ctx, "sync import finished",
		"folder", folder.Location(),
		"remote_device", file.DeviceName,
		"vaults", res.ImportedVaults,
		"items", res.ImportedItems,
		"captures", res.ImportedCaptures,
		"conflicts", len(res.Conflicts),
		"skipped", len(res.SkippedVaults))
	return res, nil
}

// normalizeFile rewrites remote timestamps into the local fixed-width form
// so they compare correctly against local ones.
func normalizeFile(f *synccodec.File) {
	norm := func(p *string) *string {
		if p == nil {
			return nil
		}
		s := timex.Normalize(*p)
		return &s
	}
	f.ExportedAt = timex.Normalize(f.ExportedAt)
	for i := range f.Vaults {
		v := &f.Vaults[i]
		v.CreatedAt = timex.Normalize(v.CreatedAt)
		v.UpdatedAt = timex.Normalize(v.UpdatedAt)
		v.DeletedAt = norm(v.DeletedAt)
		for j := range v.Items {
			it := &v.Items[j]
			it.CreatedAt = timex.Normalize(it.CreatedAt)
			it.UpdatedAt = timex.Normalize(it.UpdatedAt)
			it.DeletedAt = norm(it.DeletedAt)
		}
	}
}

func (e *syncEngine) importVault(ctx context.Context, tx dbx.DBTX, sv *synccodec.Vault, password, lastSync string) (*vaultImport, error) {
	const op = "SyncEngine.Import"

	out := &vaultImport{}
	vaultRepo := vaults.NewSQLiteRepository(tx)
	local, err := vaultRepo.FindByUUID(ctx, sv.UUID)
	if err != nil {
		return nil, err
	}
	if local == nil {
		return out, e.createFromRemote(ctx, tx, sv, password, out)
	}

	if sv.Deleted() && !local.Deleted() {
		itemRepo := items.NewSQLiteRepository(tx)
		live, err := itemRepo.ListByVault(ctx, local.ID)
		if err != nil {
			return nil, err
		}
		if _, err := itemRepo.MarkDeletedByVault(ctx, local.ID, *sv.DeletedAt, *sv.DeletedAt); err != nil {
			return nil, err
		}
		if err := vaultRepo.MarkDeleted(ctx, local.ID, *sv.DeletedAt, max(local.UpdatedAt, sv.UpdatedAt)); err != nil {
			return nil, err
		}
		for _, it := range live {
			out.deletes = append(out.deletes, it.UUID)
		}
		out.vaults++
		return out, nil
	}

	if sv.UpdatedAt > local.UpdatedAt {
		if err := vaultRepo.ApplyRemote(ctx, local.ID, sv.Name, sv.CoverImage, sv.UpdatedAt); err != nil {
			return nil, err
		}
		out.vaults++
	}

	key, err := importKey(op, local, password)
	if err != nil {
		if k := common.KindOf(err); k == common.KindPasswordRequired || k == common.KindInvalidPassword {
			out.skipped = true
			out.warnings = append(out.warnings, fmt.Sprintf("Skipped vault '%s': %s", sv.Name, skipReason(err)))
			return out, nil
		}
		return nil, err
	}

	newest := ""
	for i := range sv.Items {
		si := &sv.Items[i]
		outcome, stored, err := importItem(ctx, tx, local.ID, key, si, lastSync)
		if err != nil {
			return nil, err
		}
		if !outcome.counts() {
			continue
		}
		out.items++
		newest = max(newest, stored.UpdatedAt)
		switch outcome {
		case ItemConflict:
			out.conflicts = append(out.conflicts, si.Title)
			out.upserts = append(out.upserts, indexedItem{stored, si.Content})
		case ItemDeleted:
			out.deletes = append(out.deletes, stored.UUID)
		default:
			out.upserts = append(out.upserts, indexedItem{stored, si.Content})
		}
	}
	if newest != "" {
		if err := vaultRepo.Touch(ctx, local.ID, newest); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// importKey resolves the local key for re-encrypting incoming plaintext.
func importKey(op string, v *models.Vault, password string) ([]byte, error) {
	if !v.HasPassword {
		return VaultKey("", v.ID), nil
	}
	if password == "" {
		return nil, common.EntityE(common.KindPasswordRequired, op, "vault", v.ID, nil)
	}
	return resolveProtectedKey(op, v, VaultKey(password, v.ID))
}

// createFromRemote materializes a vault this store has never seen. Remote
// tombstones are not materialized and new vaults never produce conflicts.
func (e *syncEngine) createFromRemote(ctx context.Context, tx dbx.DBTX, sv *synccodec.Vault, password string, out *vaultImport) error {
	const op = "SyncEngine.Import"

	if sv.Deleted() {
		return nil
	}
	if sv.HasPassword && password == "" {
		out.skipped = true
		out.warnings = append(out.warnings, fmt.Sprintf("Skipped vault '%s': password required for new vault", sv.Name))
		return nil
	}
	if !sv.HasPassword {
		password = ""
	}

	vaultRepo := vaults.NewSQLiteRepository(tx)
	v := &models.Vault{
		UUID:        sv.UUID,
		Name:        sv.Name,
		HasPassword: sv.HasPassword,
		CoverImage:  sv.CoverImage,
		CreatedAt:   sv.CreatedAt,
		UpdatedAt:   sv.UpdatedAt,
	}
	if err := vaultRepo.Create(ctx, v); err != nil {
		return err
	}
	key := VaultKey(password, v.ID)
	if sv.HasPassword {
		payload, err := cryptox.EncryptString(key, password)
		if err != nil {
			return common.E(common.KindCrypto, op, err)
		}
		if err := vaultRepo.UpdatePassword(ctx, v.ID, payload, true, v.UpdatedAt); err != nil {
			return err
		}
	}
	out.vaults++

	repo := items.NewSQLiteRepository(tx)
	for i := range sv.Items {
		si := &sv.Items[i]
		if si.Deleted() {
			continue
		}
		it, err := insertRemoteItem(ctx, repo, v.ID, key, si, si.UUID, si.Title)
		if err != nil {
			return err
		}
		out.items++
		out.upserts = append(out.upserts, indexedItem{it, si.Content})
	}
	return nil
}

// importItem merges one remote item into vault vaultID. lastSync is the
// watermark of the previous merge; with none recorded no conflict is ever
// reported.
func importItem(ctx context.Context, tx dbx.DBTX, vaultID int64, key []byte, si *synccodec.Item, lastSync string) (ItemOutcome, *models.VaultItem, error) {
	repo := items.NewSQLiteRepository(tx)
	local, err := repo.FindByUUID(ctx, si.UUID)
	if err != nil {
		return ItemSkipped, nil, err
	}

	if local == nil {
		if si.Deleted() {
			return ItemSkipped, nil, nil
		}
		it, err := insertRemoteItem(ctx, repo, vaultID, key, si, si.UUID, si.Title)
		if err != nil {
			return ItemSkipped, nil, err
		}
		return ItemImported, it, nil
	}

	if si.Deleted() {
		if local.Deleted() {
			return ItemSkipped, nil, nil
		}
		if err := repo.MarkDeleted(ctx, local.ID, *si.DeletedAt, si.UpdatedAt); err != nil {
			return ItemSkipped, nil, err
		}
		local.DeletedAt, local.UpdatedAt = si.DeletedAt, si.UpdatedAt
		return ItemDeleted, local, nil
	}

	if lastSync != "" && local.UpdatedAt > lastSync && si.UpdatedAt > lastSync && local.UpdatedAt != si.UpdatedAt {
		it, err := insertRemoteItem(ctx, repo, vaultID, key, si, uuid.NewString(), si.Title+ConflictSuffix)
		if err != nil {
			return ItemSkipped, nil, err
		}
		return ItemConflict, it, nil
	}

	if si.UpdatedAt > local.UpdatedAt {
		ct, err := cryptox.EncryptString(key, si.Content)
		if err != nil {
			return ItemSkipped, nil, common.EntityE(common.KindCrypto, "SyncEngine.Import", "item", local.ID, err)
		}
		local.Title = si.Title
		local.Content = ct
		local.Image = si.Image
		local.Summary = si.Summary
		local.SortOrder = si.SortOrder
		local.UpdatedAt = si.UpdatedAt
		// moved to this vault on the remote side; content is now under this vault's key
		if local.VaultID != vaultID {
			if err := repo.Move(ctx, local.ID, vaultID, si.UpdatedAt); err != nil {
				return ItemSkipped, nil, err
			}
			local.VaultID = vaultID
		}
		if err := repo.ApplyRemote(ctx, local); err != nil {
			return ItemSkipped, nil, err
		}
		return ItemUpdated, local, nil
	}

	return ItemSkipped, nil, nil
}

func insertRemoteItem(ctx context.Context, repo items.Repository, vaultID int64, key []byte, si *synccodec.Item, id, title string) (*models.VaultItem, error) {
	ct, err := cryptox.EncryptString(key, si.Content)
	if err != nil {
		return nil, common.EntityE(common.KindCrypto, "SyncEngine.Import", "item", id, err)
	}
	it := &models.VaultItem{
		VaultID:   vaultID,
		UUID:      id,
		Title:     title,
		Content:   ct,
		Image:     si.Image,
		Summary:   si.Summary,
		SortOrder: si.SortOrder,
		CreatedAt: si.CreatedAt,
		UpdatedAt: si.UpdatedAt,
	}
	if err := repo.Create(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// importCaptures downloads captures the local store does not have yet.
func (e *syncEngine) importCaptures(ctx context.Context, folder syncfolder.Folder, res *ImportResult) {
	remote, err := folder.ListCaptures(ctx)
	if err != nil {
		e.warn(ctx, &res.Warnings, "Failed to list remote captures: %v", err)
		return
	}
	if len(remote) == 0 {
		return
	}
	dir, err := filex.EnsureDir(e.capturesDir)
	if err != nil {
		e.warn(ctx, &res.Warnings, "Failed to create local captures folder: %v", err)
		return
	}

	for _, fi := range remote {
		dst := filepath.Join(dir, fi.Name)
		if _, err := os.Stat(dst); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			e.warn(ctx, &res.Warnings, "Failed to copy capture '%s': %v", fi.Name, err)
			continue
		}
		if err := fetchCapture(ctx, folder, fi, dst); err != nil {
			e.warn(ctx, &res.Warnings, "Failed to copy capture '%s': %v", fi.Name, err)
			continue
		}
		res.ImportedCaptures++
	}
}

func fetchCapture(ctx context.Context, folder syncfolder.Folder, fi syncfolder.FileInfo, dst string) error {
	rc, err := folder.OpenCapture(ctx, fi.Name)
	if err != nil {
		return err
	}
	defer rc.Close()
	return filex.WriteAtomic(dst, rc, fi.ModTime)
}
