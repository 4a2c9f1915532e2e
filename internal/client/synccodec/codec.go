// Package synccodec encodes and decodes the exchange file written to a sync
// folder. Item content in this format is plaintext; the file is protected
// only by access to the folder.
package synccodec

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/common"
)

const (
	// FormatVersion is the only version Unmarshal accepts.
	FormatVersion = "1.0"
	// FileName is the exchange file in the root of the sync folder. Devices
	// already syncing expect exactly this name.
	FileName = "brainbox.sync"
	// CapturesFolder holds loose attachment files next to FileName.
	CapturesFolder = "captures"
)

type File struct {
	FormatVersion string    `json:"format_version"`
	DeviceID      string    `json:"device_id"`
	DeviceName    string    `json:"device_name"`
	ExportedAt    string    `json:"exported_at"`
	Vaults        []Vault   `json:"vaults"`
	Captures      []Capture `json:"captures"`
}

type Vault struct {
	UUID        string  `json:"uuid"`
	Name        string  `json:"name"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	DeletedAt   *string `json:"deleted_at,omitempty"`
	CoverImage  *string `json:"cover_image,omitempty"`
	HasPassword bool    `json:"has_password"`
	Items       []Item  `json:"items"`
}

func (v *Vault) Deleted() bool { return v.DeletedAt != nil }

type Item struct {
	UUID      string  `json:"uuid"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	DeletedAt *string `json:"deleted_at,omitempty"`
	Image     *string `json:"image,omitempty"`
	Summary   *string `json:"summary,omitempty"`
	SortOrder *int64  `json:"sort_order,omitempty"`
}

func (i *Item) Deleted() bool { return i.DeletedAt != nil }

type Capture struct {
	Filename  string `json:"filename"`
	CreatedAt string `json:"created_at"`
	SizeBytes int64  `json:"size_bytes"`
}

// Header is the part of File read by status checks, which must work even
// on files this build cannot import.
type Header struct {
	FormatVersion string `json:"format_version"`
	DeviceID      string `json:"device_id"`
	DeviceName    string `json:"device_name"`
	ExportedAt    string `json:"exported_at"`
}

// Marshal renders f as indented JSON. Nil slices are written as [].
func Marshal(f *File) ([]byte, error) {
	out := *f
	if out.FormatVersion == "" {
		out.FormatVersion = FormatVersion
	}
	if out.Captures == nil {
		out.Captures = []Capture{}
	}
	out.Vaults = make([]Vault, len(f.Vaults))
	for i, v := range f.Vaults {
		if v.Items == nil {
			v.Items = []Item{}
		}
		out.Vaults[i] = v
	}

	b, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, common.E(common.KindSyncFormat, "synccodec.Marshal", err)
	}
	return b, nil
}

// Unmarshal decodes data and rejects any format version other than
// FormatVersion.
func Unmarshal(data []byte) (*File, error) {
	const op = "synccodec.Unmarshal"

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, common.E(common.KindSyncFormat, op, fmt.Errorf("invalid sync file: %w", err))
	}
	if f.FormatVersion != FormatVersion {
		return nil, common.E(common.KindSyncFormat, op,
			fmt.Errorf("unsupported format version %q, expected %q", f.FormatVersion, FormatVersion))
	}
	return &f, nil
}

// DecodeHeader reads only the header fields and performs no version check.
func DecodeHeader(data []byte) (*Header, error) {
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, common.E(common.KindSyncFormat, "synccodec.DecodeHeader", err)
	}
	return &h, nil
}
