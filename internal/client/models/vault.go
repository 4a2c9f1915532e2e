// Package models defines the entities persisted by the local vault store.
//
// Timestamps are kept as fixed-width RFC3339 UTC strings (timex.Format) so
// they compare lexicographically in the same order as chronologically.
package models

// Vault is a named collection of items sharing one encryption key.
type Vault struct {
	// ID is the local autoincrement key; it is also the key-derivation salt.
	ID int64
	// UUID is the cross-device identity.
	UUID string

	Name string

	// HasPassword is false for vaults keyed from the empty password.
	HasPassword bool
	// EncryptedPassword is the password encrypted under the vault key and
	// serves as the verification payload. Empty when HasPassword is false.
	EncryptedPassword []byte

	CoverImage *string

	CreatedAt string
	UpdatedAt string
	// DeletedAt marks a tombstone.
	DeletedAt *string
}

// Deleted reports whether v is a tombstone.
func (v *Vault) Deleted() bool { return v.DeletedAt != nil }

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// Deref returns *p or the zero value.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
