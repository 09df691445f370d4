package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dfs/internal/bytesize"
)

// ErrQuotaExceeded is returned by a quota-wrapped ContentStore's WriteAtomic
// when data exceeds the configured MaxFileBytes limit.
var ErrQuotaExceeded = errors.New("store: file exceeds configured max_file_bytes")

// quotaStore wraps a ContentStore and rejects WriteAtomic calls whose data
// would exceed a fixed byte limit, leaving every other operation untouched.
type quotaStore struct {
	ContentStore
	max bytesize.ByteSize
}

// WithQuota wraps next so that WriteAtomic enforces max, unless max is zero
// (unlimited), in which case next is returned unwrapped.
func WithQuota(next ContentStore, max bytesize.ByteSize) ContentStore {
	if max == 0 {
		return next
	}
	return &quotaStore{ContentStore: next, max: max}
}

func (q *quotaStore) WriteAtomic(ctx context.Context, path string, data []byte) error {
	if bytesize.ByteSize(len(data)) > q.max {
		return fmt.Errorf("%w: %d bytes exceeds limit of %s", ErrQuotaExceeded, len(data), q.max)
	}
	return q.ContentStore.WriteAtomic(ctx, path, data)
}
