// Package storefactory builds a store.ContentStore from SS configuration,
// selecting among the diskstore and s3store backends. It lives apart from
// the store package itself so those backend packages can depend on
// store's types without creating an import cycle.
package storefactory

import (
	"context"
	"fmt"

	"github.com/marmos91/dfs/internal/config"
	"github.com/marmos91/dfs/pkg/dataplane/store"
	"github.com/marmos91/dfs/pkg/dataplane/store/diskstore"
	"github.com/marmos91/dfs/pkg/dataplane/store/s3store"
)

// New builds the ContentStore selected by cfg.Store.Backend for the given
// storage server id. "disk" (the default) roots a diskstore.Store under
// cfg.Server.StorageRoot/BackupRoot; "s3" builds an s3store.Store from
// cfg.Store.S3 instead, namespacing every key under ssID.
func New(ctx context.Context, cfg *config.SSConfig, ssID string) (store.ContentStore, error) {
	backend, err := newBackend(ctx, cfg, ssID)
	if err != nil {
		return nil, err
	}
	return store.WithQuota(backend, cfg.Server.MaxFileBytes), nil
}

func newBackend(ctx context.Context, cfg *config.SSConfig, ssID string) (store.ContentStore, error) {
	switch cfg.Store.Backend {
	case "", "disk":
		return diskstore.New(cfg.Server.StorageRoot, cfg.Server.BackupRoot, ssID)
	case "s3":
		return s3store.New(ctx, s3store.Config{
			Bucket:          cfg.Store.S3.Bucket,
			Region:          cfg.Store.S3.Region,
			Endpoint:        cfg.Store.S3.Endpoint,
			AccessKeyID:     cfg.Store.S3.AccessKeyID,
			SecretAccessKey: cfg.Store.S3.SecretAccessKey,
			SSID:            ssID,
		})
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Store.Backend)
	}
}
