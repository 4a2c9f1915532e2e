package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/vaultsync/internal/client/services"
)

// Export writes every vault to the sync folder. Locked vaults not unlocked in
// this session are offered for unlock; an empty password skips them.
func (a *App) Export(ctx context.Context) error {
	locked, err := a.vaultService.LockedVaults(ctx)
	if err != nil {
		return err
	}
	for _, v := range locked {
		if _, ok := a.keys[v.ID]; ok {
			continue
		}
		pw, err := GetPassword(a.out, fmt.Sprintf("Password for vault %q (empty to skip)", v.Name))
		if err != nil {
			return err
		}
		if pw == "" {
			continue
		}
		key, err := a.vaultService.UnlockVault(ctx, v.ID, pw)
		if err != nil {
			a.printf("Skipping vault %q: %v\n", v.Name, err)
			continue
		}
		a.keys[v.ID] = key
	}

	res, err := a.syncEngine.Export(ctx, services.ExportRequest{Keys: a.keys})
	if err != nil {
		return err
	}
	a.printExport(res)
	return nil
}

func (a *App) printExport(res *services.ExportResult) {
	a.printf("Exported %d vault(s), %d item(s), %d capture(s)\n",
		res.ExportedVaults, res.ExportedItems, res.ExportedCaptures)
	a.printList("Skipped", res.SkippedVaults)
	a.printList("Warning", res.Warnings)
}

// Import merges the sync file, asking for the passwords of the protected
// vaults it carries.
func (a *App) Import(ctx context.Context) error {
	p, err := a.syncEngine.Preview(ctx)
	if err != nil {
		return err
	}
	if p == nil {
		a.println("Nothing to import")
		return nil
	}
	a.printf("Importing %d vault(s) and %d item(s) exported by %s at %s\n",
		p.VaultCount, p.ItemCount, p.DeviceName, p.ExportedAt)

	passwords := make(map[string]string, len(p.PasswordVaults))
	for _, v := range p.PasswordVaults {
		pw, err := GetPassword(a.out, fmt.Sprintf("Password for vault %q (empty to skip)", v.Name))
		if err != nil {
			return err
		}
		if pw != "" {
			passwords[v.UUID] = pw
		}
	}

	res, err := a.syncEngine.Import(ctx, passwords)
	if err != nil {
		return err
	}
	a.printf("Imported %d vault(s), %d item(s), %d capture(s)\n",
		res.ImportedVaults, res.ImportedItems, res.ImportedCaptures)
	a.printList("Conflict", res.Conflicts)
	a.printList("Skipped", res.SkippedVaults)
	a.printList("Warning", res.Warnings)
	return a.refreshCurrent(ctx)
}

func (a *App) printList(label string, lines []string) {
	for _, l := range lines {
		a.printf("  %s: %s\n", label, l)
	}
}

func (a *App) Status(ctx context.Context) error {
	st, err := a.syncEngine.Status(ctx)
	if err != nil {
		return err
	}
	a.printf("Device:      %s\n", st.DeviceName)
	if !st.SyncEnabled {
		a.println("Sync folder: not configured (settings set sync_folder <path>)")
		return nil
	}
	a.printf("Sync folder: %s\n", st.SyncFolder)
	a.printf("Last sync:   %s\n", orNever(st.LastSyncAt, st.LastSyncDevice))
	if !st.RemoteFileExists {
		a.println("Remote file: none")
		return nil
	}
	a.printf("Remote file: exported %s by %s\n", st.RemoteExportedAt, st.RemoteDeviceName)
	if st.HasChanges {
		a.println("Remote has changes, run 'import'")
	}
	return nil
}

func orNever(at, device string) string {
	if at == "" {
		return "never"
	}
	return fmt.Sprintf("%s (%s)", at, device)
}

func (a *App) Preview(ctx context.Context) error {
	p, err := a.syncEngine.Preview(ctx)
	if err != nil {
		return err
	}
	if p == nil {
		a.println("No sync file")
		return nil
	}
	a.printf("Exported %s by %s\n", p.ExportedAt, p.DeviceName)
	a.printf("Vaults: %d  Items: %d  Captures: %d\n", p.VaultCount, p.ItemCount, p.CaptureCount)
	if len(p.VaultsNeedingPassword) > 0 {
		a.printf("Need a password: %s\n", strings.Join(p.VaultsNeedingPassword, ", "))
	}
	return nil
}

// Purge removes tombstones older than the given or configured day count.
func (a *App) Purge(ctx context.Context, args []string) error {
	var days int
	switch len(args) {
	case 0:
		d, err := a.settings.PurgeDays(ctx)
		if err != nil {
			return err
		}
		days = d
	case 1:
		d, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid day count %q", args[0])
		}
		days = d
	default:
		return errors.New("usage: purge [days]")
	}
	out, err := a.purger.Purge(ctx, days)
	if err != nil {
		return err
	}
	a.printf("Purged %d vault(s) and %d item(s) deleted more than %d day(s) ago\n",
		out.PurgedVaults, out.PurgedItems, days)
	return nil
}

// Settings lists the stored settings, or changes one:
//
//	settings set <key> <value>
//	settings unset sync_folder
func (a *App) Settings(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.listSettings(ctx)
	}
	switch {
	case args[0] == "set" && len(args) >= 3:
		return a.setSetting(ctx, args[1], strings.Join(args[2:], " "))
	case args[0] == "unset" && len(args) == 2 && args[1] == services.KeySyncFolder:
		if err := a.settings.ClearSyncFolder(ctx); err != nil {
			return err
		}
		a.println("Sync disabled")
		return nil
	}
	return errors.New("usage: settings [set <key> <value> | unset sync_folder]")
}

func (a *App) listSettings(ctx context.Context) error {
	// resolve the derived values so they show up on a fresh store
	if _, err := a.settings.DeviceID(ctx); err != nil {
		return err
	}
	name, err := a.settings.DeviceName(ctx)
	if err != nil {
		return err
	}
	all, err := a.settings.All(ctx)
	if err != nil {
		return err
	}
	if _, ok := all[services.KeyDeviceName]; !ok {
		all[services.KeyDeviceName] = name
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		a.printf("%-26s %s\n", k, all[k])
	}
	return nil
}

func (a *App) setSetting(ctx context.Context, key, value string) error {
	var err error
	switch key {
	case services.KeyDeviceName:
		err = a.settings.SetDeviceName(ctx, value)
	case services.KeySyncFolder:
		err = a.settings.SetSyncFolder(ctx, value)
	case services.KeySyncOnClose, services.KeyCheckSyncOnStartup:
		on, perr := strconv.ParseBool(value)
		if perr != nil {
			return fmt.Errorf("%s expects true or false", key)
		}
		if key == services.KeySyncOnClose {
			err = a.settings.SetSyncOnClose(ctx, on)
		} else {
			err = a.settings.SetCheckSyncOnStartup(ctx, on)
		}
	case services.KeyPurgeDays:
		days, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("%s expects a number of days", key)
		}
		err = a.settings.SetPurgeDays(ctx, days)
	default:
		return fmt.Errorf("unknown or read-only setting %q", key)
	}
	if err != nil {
		return err
	}
	a.printf("%s = %s\n", key, value)
	return nil
}
