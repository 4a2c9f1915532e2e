package services

import (
	"strconv"

	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
)

// VaultKey derives the content key of vault vaultID. Passwordless vaults use
// the empty password; the salt is always the decimal local id.
func VaultKey(password string, vaultID int64) []byte {
	return cryptox.DeriveKey(password, strconv.FormatInt(vaultID, 10), cryptox.Iterations)
}

// checkVaultKey verifies key against the vault's stored payload. Any
// 32-byte key is accepted for a passwordless vault.
func checkVaultKey(op string, v *models.Vault, key []byte) error {
	if err := cryptox.CheckKey(key); err != nil {
		return common.EntityE(common.KindKeyLength, op, "vault", v.ID, err)
	}
	if !v.HasPassword {
		return nil
	}
	if _, err := cryptox.Decrypt(key, v.EncryptedPassword); err != nil {
		return common.EntityE(common.KindInvalidPassword, op, "vault", v.ID, nil)
	}
	return nil
}

// usableKey returns the key to encrypt v's content with. Passwordless vaults
// always get the derived key, whatever the caller supplies.
func usableKey(op string, v *models.Vault, key []byte) ([]byte, error) {
	if !v.HasPassword {
		return VaultKey("", v.ID), nil
	}
	if len(key) == 0 {
		return nil, common.EntityE(common.KindPasswordRequired, op, "vault", v.ID, nil)
	}
	if err := checkVaultKey(op, v, key); err != nil {
		return nil, err
	}
	return key, nil
}

// resolveProtectedKey resolves the key used to read v's content during export and
// import. A protected vault without a usable key yields a KindPasswordRequired,
// KindKeyLength or KindInvalidPassword error; callers skip the vault on those.
func resolveProtectedKey(op string, v *models.Vault, key []byte) ([]byte, error) {
	if !v.HasPassword {
		return VaultKey("", v.ID), nil
	}
	if len(key) == 0 {
		return nil, common.EntityE(common.KindPasswordRequired, op, "vault", v.ID, nil)
	}
	if err := checkVaultKey(op, v, key); err != nil {
		return nil, err
	}
	return key, nil
}
