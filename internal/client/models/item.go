package models

// VaultItem is an item as stored: Content is nonce||ciphertext.
type VaultItem struct {
	ID      int64
	VaultID int64
	UUID    string

	Title   string
	Content []byte

	Image     *string
	Summary   *string
	SortOrder *int64

	CreatedAt string
	UpdatedAt string
	DeletedAt *string
}

func (i *VaultItem) Deleted() bool { return i.DeletedAt != nil }

// ItemView is a decrypted item.
type ItemView struct {
	ID      int64
	VaultID int64
	UUID    string

	Title   string
	Content string

	Image     *string
	Summary   *string
	SortOrder *int64

	CreatedAt string
	UpdatedAt string
	DeletedAt *string
}

// NewItem carries user-supplied fields for an item insert.
type NewItem struct {
	Title   string
	Content string
	Image   *string
	Summary *string
}
