package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/common"
)

func (a *App) Vaults(ctx context.Context) error {
	list, err := a.vaultService.ListVaults(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.println("No vaults yet, use 'create'")
		return nil
	}
	for _, v := range list {
		state := "open"
		if v.HasPassword {
			state = "locked"
			if _, ok := a.keys[v.ID]; ok {
				state = "unlocked"
			}
		}
		a.printf("%4d  %-30s %s\n", v.ID, v.Name, state)
	}
	return nil
}

func (a *App) CreateVault(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Vault name", a.out)
	if err != nil {
		return err
	}
	if name == "" {
		return errors.New("vault name must not be empty")
	}

	protect, err := GetConfirm(a.reader, "Protect with a password?", a.out)
	if err != nil {
		return err
	}
	var password string
	if protect {
		if password, err = a.newPassword(); err != nil {
			return err
		}
	}

	v, err := a.vaultService.CreateVault(ctx, name, password, protect)
	if err != nil {
		return err
	}
	a.printf("Vault %q created with id %d\n", v.Name, v.ID)
	return nil
}

// newPassword asks for a password twice.
func (a *App) newPassword() (string, error) {
	pw, err := GetPassword(a.out, "New password")
	if err != nil {
		return "", err
	}
	again, err := GetPassword(a.out, "Repeat password")
	if err != nil {
		return "", err
	}
	if pw != again {
		return "", errors.New("passwords do not match")
	}
	return pw, nil
}

// keyFor returns the session key of v, unlocking it on first use.
func (a *App) keyFor(ctx context.Context, v *models.Vault) ([]byte, error) {
	if key, ok := a.keys[v.ID]; ok {
		return key, nil
	}
	var password string
	if v.HasPassword {
		pw, err := GetPassword(a.out, fmt.Sprintf("Password for vault %q", v.Name))
		if err != nil {
			return nil, err
		}
		password = pw
	}
	key, err := a.vaultService.UnlockVault(ctx, v.ID, password)
	if err != nil {
		return nil, err
	}
	a.keys[v.ID] = key
	return key, nil
}

func (a *App) OpenVault(ctx context.Context, args []string) error {
	id, err := parseID(args, "open <vault id>")
	if err != nil {
		return err
	}
	v, err := a.vaultService.GetVault(ctx, id)
	if err != nil {
		return err
	}
	if _, err := a.keyFor(ctx, v); err != nil {
		return err
	}
	a.current = v
	a.printf("Opened vault %q\n", v.Name)
	return nil
}

// forget wipes and drops the session key of vault id.
func (a *App) forget(id int64) {
	if key, ok := a.keys[id]; ok {
		common.WipeByteArray(key)
		delete(a.keys, id)
	}
}

// CloseVault forgets the key of the current vault.
func (a *App) CloseVault(ctx context.Context) error {
	a.forget(a.current.ID)
	a.printf("Closed vault %q\n", a.current.Name)
	a.current = nil
	return nil
}

func (a *App) RenameVault(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: rename <vault id> <name>")
	}
	id, err := parseID(args[:1], "rename <vault id> <name>")
	if err != nil {
		return err
	}
	name := strings.Join(args[1:], " ")
	if err := a.vaultService.RenameVault(ctx, id, name); err != nil {
		return err
	}
	if err := a.refreshCurrent(ctx); err != nil {
		return err
	}
	a.println("Vault renamed")
	return nil
}

func (a *App) DeleteVault(ctx context.Context, args []string) error {
	id, err := parseID(args, "delete <vault id>")
	if err != nil {
		return err
	}
	v, err := a.vaultService.GetVault(ctx, id)
	if err != nil {
		return err
	}
	ok, err := GetConfirm(a.reader, fmt.Sprintf("Delete vault %q and all its items?", v.Name), a.out)
	if err != nil || !ok {
		return err
	}
	if err := a.vaultService.SoftDeleteVault(ctx, id); err != nil {
		return err
	}
	a.forget(id)
	if a.current != nil && a.current.ID == id {
		a.current = nil
	}
	a.printf("Vault %q deleted\n", v.Name)
	return nil
}

// ChangePassword sets a new password on the current vault; an empty
// password removes the protection.
func (a *App) ChangePassword(ctx context.Context) error {
	oldKey, err := a.keyFor(ctx, a.current)
	if err != nil {
		return err
	}
	a.println("Leave the password empty to remove protection")
	pw, err := a.newPassword()
	if err != nil {
		return err
	}
	key, err := a.vaultService.ChangePassword(ctx, a.current.ID, oldKey, pw, pw != "")
	if err != nil {
		return err
	}
	a.keys[a.current.ID] = key
	if err := a.refreshCurrent(ctx); err != nil {
		return err
	}
	a.println("Password changed")
	return nil
}

// refreshCurrent reloads the open vault, closing it when it is gone.
func (a *App) refreshCurrent(ctx context.Context) error {
	if a.current == nil {
		return nil
	}
	v, err := a.vaultService.GetVault(ctx, a.current.ID)
	if errors.Is(err, common.ErrNotFound) {
		a.printf("Vault %q is no longer available\n", a.current.Name)
		a.forget(a.current.ID)
		a.current = nil
		return nil
	}
	if err != nil {
		return err
	}
	a.current = v
	return nil
}
