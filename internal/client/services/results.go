package services

// ExportRequest selects what Export writes. Keys are addressed by local vault
// id and are required for password-protected vaults; an empty VaultIDs
// exports every vault.
type ExportRequest struct {
	Keys     map[int64][]byte
	VaultIDs []int64
}

type ExportResult struct {
	ExportedVaults   int      `json:"exported_vaults"`
	ExportedItems    int      `json:"exported_items"`
	ExportedCaptures int      `json:"exported_captures"`
	SkippedVaults    []string `json:"skipped_vaults"`
	Warnings         []string `json:"warnings"`
}

type ImportResult struct {
	ImportedVaults   int      `json:"imported_vaults"`
	ImportedItems    int      `json:"imported_items"`
	ImportedCaptures int      `json:"imported_captures"`
	Conflicts        []string `json:"conflicts"`
	Warnings         []string `json:"warnings"`
	SkippedVaults    []string `json:"skipped_vaults"`
}

type PurgeResult struct {
	PurgedVaults int `json:"purged_vaults"`
	PurgedItems  int `json:"purged_items"`
}

type SyncStatus struct {
	SyncEnabled      bool   `json:"sync_enabled"`
	SyncFolder       string `json:"sync_folder,omitempty"`
	DeviceName       string `json:"device_name"`
	LastSyncAt       string `json:"last_sync_at,omitempty"`
	LastSyncDevice   string `json:"last_sync_device,omitempty"`
	RemoteFileExists bool   `json:"remote_file_exists"`
	RemoteExportedAt string `json:"remote_exported_at,omitempty"`
	RemoteDeviceName string `json:"remote_device_name,omitempty"`
	HasChanges       bool   `json:"has_changes"`
}

type SyncPreview struct {
	DeviceName            string   `json:"device_name"`
	ExportedAt            string   `json:"exported_at"`
	VaultCount            int      `json:"vault_count"`
	ItemCount             int      `json:"item_count"`
	CaptureCount          int      `json:"capture_count"`
	VaultsNeedingPassword []string `json:"vaults_needing_password"`
	// PasswordVaults carries the same vaults with their uuids, which is
	// how Import expects passwords to be addressed.
	PasswordVaults []RemoteVault `json:"password_vaults"`
}

// RemoteVault names a vault found in the sync file.
type RemoteVault struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// ItemOutcome is the result of merging one remote item.
type ItemOutcome int

const (
	ItemSkipped ItemOutcome = iota
	ItemImported
	ItemUpdated
	ItemConflict
	ItemDeleted
)

func (o ItemOutcome) String() string {
	switch o {
	case ItemImported:
		return "imported"
	case ItemUpdated:
		return "updated"
	case ItemConflict:
		return "conflict"
	case ItemDeleted:
		return "deleted"
	default:
		return "skipped"
	}
}

// counts reports whether the outcome changed local state.
func (o ItemOutcome) counts() bool { return o != ItemSkipped }
