package services

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/denisbrodbeck/machineid"
	"github.com/dmitrijs2005/vaultsync/internal/client/repositories/settings"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/dbx"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/google/uuid"
)

// Keys of the sync_settings table.
const (
	KeyDeviceID           = "device_id"
	KeyDeviceName         = "device_name"
	KeySyncFolder         = "sync_folder"
	KeyLastSyncAt         = "last_sync_at"
	KeyLastSyncDevice     = "last_sync_device"
	KeySyncOnClose        = "sync_on_close"
	KeyCheckSyncOnStartup = "check_sync_on_startup"
	KeyPurgeDays          = "purge_deleted_after_days"
)

const (
	DefaultPurgeDays  = 30
	machineIDAppScope = "vaultsync"
	unknownDevice     = "Unknown"
)

var (
	protectedID = machineid.ProtectedID
	hostname    = os.Hostname
)

type SettingsService interface {
	DeviceID(ctx context.Context) (string, error)
	DeviceName(ctx context.Context) (string, error)
	SetDeviceName(ctx context.Context, name string) error
	SyncFolder(ctx context.Context) (string, bool, error)
	SetSyncFolder(ctx context.Context, location string) error
	ClearSyncFolder(ctx context.Context) error
	LastSync(ctx context.Context) (at, device string, err error)
	RecordSync(ctx context.Context, at, device string) error
	SyncOnClose(ctx context.Context) (bool, error)
	SetSyncOnClose(ctx context.Context, enabled bool) error
	CheckSyncOnStartup(ctx context.Context) (bool, error)
	SetCheckSyncOnStartup(ctx context.Context, enabled bool) error
	PurgeDays(ctx context.Context) (int, error)
	SetPurgeDays(ctx context.Context, days int) error
	All(ctx context.Context) (map[string]string, error)
}

type settingsService struct {
	repo settings.Repository
	log  logging.Logger
}

func NewSettingsService(db dbx.DBTX, log logging.Logger) SettingsService {
	if log == nil {
		log = logging.Nop()
	}
	return &settingsService{repo: settings.NewSQLiteRepository(db), log: log}
}

func (s *settingsService) get(ctx context.Context, op, key string) (string, bool, error) {
	v, ok, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", false, common.E(common.KindStorage, op, err)
	}
	return v, ok, nil
}

func (s *settingsService) set(ctx context.Context, op, key, value string) error {
	if err := s.repo.Set(ctx, key, value); err != nil {
		return common.E(common.KindStorage, op, err)
	}
	return nil
}

// DeviceID returns the stable device identifier, creating and persisting
// one on first use. The machine id is preferred; a random uuid is used
// where the platform does not expose one.
func (s *settingsService) DeviceID(ctx context.Context) (string, error) {
	const op = "SettingsService.DeviceID"

	if id, ok, err := s.get(ctx, op, KeyDeviceID); err != nil || ok {
		return id, err
	}
	id, err := protectedID(machineIDAppScope)
	if err != nil || id == "" {
		s.log.Debug(ctx, "machine id unavailable, using random device id", "error", err)
		id = uuid.NewString()
	}
	if err := s.set(ctx, op, KeyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

// DeviceName returns the configured name, or the host name when unset.
func (s *settingsService) DeviceName(ctx context.Context) (string, error) {
	name, ok, err := s.get(ctx, "SettingsService.DeviceName", KeyDeviceName)
	if err != nil || ok {
		return name, err
	}
	if h, err := hostname(); err == nil && h != "" {
		return h, nil
	}
	return unknownDevice, nil
}

func (s *settingsService) SetDeviceName(ctx context.Context, name string) error {
	return s.set(ctx, "SettingsService.SetDeviceName", KeyDeviceName, name)
}

func (s *settingsService) SyncFolder(ctx context.Context) (string, bool, error) {
	v, ok, err := s.get(ctx, "SettingsService.SyncFolder", KeySyncFolder)
	if ok && v == "" {
		ok = false
	}
	return v, ok, err
}

func (s *settingsService) SetSyncFolder(ctx context.Context, location string) error {
	return s.set(ctx, "SettingsService.SetSyncFolder", KeySyncFolder, location)
}

func (s *settingsService) ClearSyncFolder(ctx context.Context) error {
	if err := s.repo.Delete(ctx, KeySyncFolder); err != nil {
		return common.E(common.KindStorage, "SettingsService.ClearSyncFolder", err)
	}
	return nil
}

// LastSync returns the watermark and the device of the last export or
// import; both are empty when this store never synced.
func (s *settingsService) LastSync(ctx context.Context) (string, string, error) {
	const op = "SettingsService.LastSync"
	at, _, err := s.get(ctx, op, KeyLastSyncAt)
	if err != nil {
		return "", "", err
	}
	device, _, err := s.get(ctx, op, KeyLastSyncDevice)
	return at, device, err
}

func (s *settingsService) RecordSync(ctx context.Context, at, device string) error {
	const op = "SettingsService.RecordSync"
	if err := s.set(ctx, op, KeyLastSyncAt, at); err != nil {
		return err
	}
	return s.set(ctx, op, KeyLastSyncDevice, device)
}

func (s *settingsService) boolSetting(ctx context.Context, op, key string, def bool) (bool, error) {
	v, ok, err := s.get(ctx, op, key)
	if err != nil || !ok {
		return def, err
	}
	return v == "true" || v == "1", nil
}

func (s *settingsService) SyncOnClose(ctx context.Context) (bool, error) {
	return s.boolSetting(ctx, "SettingsService.SyncOnClose", KeySyncOnClose, false)
}

func (s *settingsService) SetSyncOnClose(ctx context.Context, enabled bool) error {
	return s.set(ctx, "SettingsService.SetSyncOnClose", KeySyncOnClose, strconv.FormatBool(enabled))
}

func (s *settingsService) CheckSyncOnStartup(ctx context.Context) (bool, error) {
	return s.boolSetting(ctx, "SettingsService.CheckSyncOnStartup", KeyCheckSyncOnStartup, true)
}

func (s *settingsService) SetCheckSyncOnStartup(ctx context.Context, enabled bool) error {
	return s.set(ctx, "SettingsService.SetCheckSyncOnStartup", KeyCheckSyncOnStartup, strconv.FormatBool(enabled))
}

func (s *settingsService) PurgeDays(ctx context.Context) (int, error) {
	const op = "SettingsService.PurgeDays"
	v, ok, err := s.get(ctx, op, KeyPurgeDays)
	if err != nil || !ok {
		return DefaultPurgeDays, err
	}
	days, err := strconv.Atoi(v)
	if err != nil {
		return 0, common.E(common.KindStorage, op, fmt.Errorf("invalid purge days value %q", v))
	}
	return days, nil
}

func (s *settingsService) SetPurgeDays(ctx context.Context, days int) error {
	const op = "SettingsService.SetPurgeDays"
	if days < 0 {
		return common.E(common.KindStorage, op, fmt.Errorf("purge days must not be negative: %d", days))
	}
	return s.set(ctx, op, KeyPurgeDays, strconv.Itoa(days))
}

func (s *settingsService) All(ctx context.Context) (map[string]string, error) {
	m, err := s.repo.List(ctx)
	if err != nil {
		return nil, common.E(common.KindStorage, "SettingsService.All", err)
	}
	return m, nil
}
