// Package settings persists the sync_settings key/value table.
package settings

import (
	"context"
)

type Repository interface {
	// Get reports ok=false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]string, error)
}
