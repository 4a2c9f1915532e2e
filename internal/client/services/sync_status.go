package services

import (
	"context"
	"errors"
	"io/fs"

	"github.com/dmitrijs2005/vaultsync/internal/client/repositories/vaults"
	"github.com/dmitrijs2005/vaultsync/internal/client/synccodec"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/timex"
)

// Status reports local sync settings and what the shared folder holds. An
// unreachable folder or unreadable file is reported as no remote file.
func (e *syncEngine) Status(ctx context.Context) (*SyncStatus, error) {
	st := e.settings()
	loc, ok, err := st.SyncFolder(ctx)
	if err != nil {
		return nil, err
	}
	name, err := st.DeviceName(ctx)
	if err != nil {
		return nil, err
	}
	at, device, err := st.LastSync(ctx)
	if err != nil {
		return nil, err
	}

	s := &SyncStatus{
		SyncEnabled:    ok,
		SyncFolder:     loc,
		DeviceName:     name,
		LastSyncAt:     at,
		LastSyncDevice: device,
	}
	if !ok {
		return s, nil
	}

	folder, err := e.open(ctx, loc)
	if err != nil {
		e.log.Warn(ctx, "sync folder unavailable", "folder", loc, "error", err)
		return s, nil
	}
	data, err := folder.ReadSyncFile(ctx)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			e.log.Warn(ctx, "failed to read sync file", "folder", loc, "error", err)
		}
		return s, nil
	}
	s.RemoteFileExists = true

	h, err := synccodec.DecodeHeader(data)
	if err != nil {
		e.log.Warn(ctx, "unreadable sync file", "folder", loc, "error", err)
		return s, nil
	}
	s.RemoteExportedAt = timex.Normalize(h.ExportedAt)
	s.RemoteDeviceName = h.DeviceName
	s.HasChanges = at == "" || s.RemoteExportedAt > at
	return s, nil
}

func (e *syncEngine) Preview(ctx context.Context) (*SyncPreview, error) {
	const op = "SyncEngine.Preview"

	loc, ok, err := e.settings().SyncFolder(ctx)
	if err != nil || !ok {
		return nil, err
	}
	folder, err := e.open(ctx, loc)
	if err != nil {
		return nil, common.Lift(err, common.KindSyncFolderUnavailable, op)
	}
	data, err := folder.ReadSyncFile(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, common.Lift(err, common.KindIO, op)
	}
	file, err := synccodec.Unmarshal(data)
	if err != nil {
		return nil, err
	}

	local, err := vaults.NewSQLiteRepository(e.db).List(ctx)
	if err != nil {
		return nil, common.E(common.KindStorage, op, err)
	}
	protected := make(map[string]bool, len(local))
	for _, v := range local {
		protected[v.UUID] = v.HasPassword
	}

	p := &SyncPreview{
		DeviceName:            file.DeviceName,
		ExportedAt:            timex.Normalize(file.ExportedAt),
		CaptureCount:          len(file.Captures),
		VaultsNeedingPassword: []string{},
		PasswordVaults:        []RemoteVault{},
	}
	for _, v := range file.Vaults {
		p.ItemCount += len(v.Items)
		if v.Deleted() {
			continue
		}
		p.VaultCount++
		// a new protected vault, or an existing one that is protected locally
		if lp, exists := protected[v.UUID]; v.HasPassword && (!exists || lp) {
			p.VaultsNeedingPassword = append(p.VaultsNeedingPassword, v.Name)
			p.PasswordVaults = append(p.PasswordVaults, RemoteVault{UUID: v.UUID, Name: v.Name})
		}
	}
	return p, nil
}
