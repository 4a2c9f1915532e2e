// Package syncfolder abstracts the shared location the exchange file and
// captures are written to: a plain directory (typically one a cloud drive
// client keeps in sync) or an S3-compatible bucket prefix.
//
// Missing objects are reported as errors matching fs.ErrNotExist on every
// implementation.
package syncfolder

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// FileInfo describes one capture in the folder.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

type Folder interface {
	// Location is the user-facing address of the folder.
	Location() string
	// Check fails with common.ErrSyncFolderUnavailable when the folder
	// cannot be used.
	Check(ctx context.Context) error

	ReadSyncFile(ctx context.Context) ([]byte, error)
	WriteSyncFile(ctx context.Context, data []byte) error

	// ListCaptures is empty when the captures subfolder does not exist yet.
	ListCaptures(ctx context.Context) ([]FileInfo, error)
	PutCapture(ctx context.Context, name string, r io.Reader, size int64, modTime time.Time) error
	OpenCapture(ctx context.Context, name string) (io.ReadCloser, error)
}

// S3Options configures S3 folders opened through Open.
type S3Options struct {
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

const s3Scheme = "s3://"

// Open returns the Folder for location: s3://bucket/prefix selects S3,
// anything else is a local directory.
func Open(ctx context.Context, location string, opts S3Options) (Folder, error) {
	if strings.HasPrefix(location, s3Scheme) {
		bucket, prefix, err := ParseS3Location(location)
		if err != nil {
			return nil, err
		}
		return NewS3FromConfig(ctx, bucket, prefix, opts)
	}
	return NewLocal(location), nil
}

// ParseS3Location splits s3://bucket/some/prefix.
func ParseS3Location(location string) (bucket, prefix string, err error) {
	rest := strings.TrimPrefix(location, s3Scheme)
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid s3 location %q: missing bucket", location)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// validName rejects capture names that would escape the captures folder.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || path.Base(name) != name {
		return fmt.Errorf("invalid capture name %q", name)
	}
	return nil
}
