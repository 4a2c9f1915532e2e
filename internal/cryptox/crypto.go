// Package cryptox holds the key derivation and the authenticated cipher used
// for everything the store keeps encrypted: item content and the per-vault
// password verification payload.
//
// Keys are derived with PBKDF2-HMAC-SHA256 from the vault password and the
// vault's decimal id. The cipher is XChaCha20-Poly1305 with a random 24-byte
// nonce prepended to every ciphertext.
package cryptox

import (
	"crypto/sha256"
	"errors"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the length of every vault key.
	KeySize = chacha20poly1305.KeySize
	// NonceSize is the length of the nonce prefix of a sealed blob.
	NonceSize = chacha20poly1305.NonceSizeX
	// Iterations is the PBKDF2 work factor. Keys are never stored, so it
	// must not change or existing vaults become unreadable.
	Iterations = 100_000
)

var (
	// ErrInvalidCiphertext is returned for blobs too short to hold a nonce.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	// ErrDecryptionFailed covers every authentication failure: wrong key,
	// tampered tag or mangled nonce.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrInvalidKeyLength is returned for keys that are not KeySize bytes.
	ErrInvalidKeyLength = errors.New("key must be 32 bytes")
)

// DeriveKey derives a KeySize key from password and salt. The same inputs
// always produce the same key.
func DeriveKey(password, salt string, iterations int) []byte {
	return pbkdf2.Key([]byte(password), []byte(salt), iterations, KeySize, sha256.New)
}

// CheckKey validates the key length.
func CheckKey(key []byte) error {
	if len(key) != KeySize {
		return common.E(common.KindKeyLength, "CheckKey", ErrInvalidKeyLength)
	}
	return nil
}

// Encrypt seals plaintext under key and returns nonce||ciphertext.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, common.E(common.KindKeyLength, "Encrypt", ErrInvalidKeyLength)
	}

	nonce := common.GenerateRandByteArray(NonceSize)

	out := make([]byte, 0, NonceSize+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. Any authentication failure is
// reported as ErrDecryptionFailed with no further detail.
func Decrypt(key, blob []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, common.E(common.KindKeyLength, "Decrypt", ErrInvalidKeyLength)
	}
	if len(blob) < NonceSize {
		return nil, common.E(common.KindCrypto, "Decrypt", ErrInvalidCiphertext)
	}

	plaintext, err := aead.Open(nil, blob[:NonceSize], blob[NonceSize:], nil)
	if err != nil {
		return nil, common.E(common.KindCrypto, "Decrypt", ErrDecryptionFailed)
	}
	return plaintext, nil
}

// EncryptString is Encrypt for text payloads.
func EncryptString(key []byte, plaintext string) ([]byte, error) {
	return Encrypt(key, []byte(plaintext))
}

// DecryptString is Decrypt for text payloads.
func DecryptString(key, blob []byte) (string, error) {
	b, err := Decrypt(key, blob)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
