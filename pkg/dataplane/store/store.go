// Package store defines the ContentStore abstraction a storage server uses
// for its byte-level work: the live file tree, checkpoint copies, and the
// single-step undo backup pair described in spec.md §4.7/§4.8. Concrete
// backends live in the diskstore and s3store subpackages; callers construct
// one and depend only on this interface.
package store

import (
	"context"
	"errors"
	"time"
)

// Info is the subset of file metadata ContentStore.Stat exposes: enough for
// INFO's size computation and for the control handler to decide whether a
// path already exists.
type Info struct {
	Size    int64
	ModTime time.Time
}

// ContentStore is the storage backend a storage server uses for file bytes,
// folders, checkpoints, and single-step undo backups. Every path passed in
// is a filename (optionally folder-prefixed, e.g. "notes/today.txt")
// relative to the store's own pre-rooted storage directory for its SS id;
// callers never see or choose the on-disk root.
type ContentStore interface {
	// Read returns the full current bytes of path.
	Read(ctx context.Context, path string) ([]byte, error)

	// WriteAtomic replaces path's bytes via write-to-temp-then-rename,
	// creating any missing parent directories first.
	WriteAtomic(ctx context.Context, path string, data []byte) error

	// Stat returns size/mtime for path without reading its bytes.
	Stat(ctx context.Context, path string) (Info, error)

	// Remove deletes path, returning ErrNotFound if it doesn't exist.
	Remove(ctx context.Context, path string) error

	// CreateFolder makes path and any missing parents, idempotently.
	CreateFolder(ctx context.Context, path string) error

	// Move renames oldPath to newPath, creating newPath's parent
	// directory if it doesn't exist.
	Move(ctx context.Context, oldPath, newPath string) error

	// Checkpoint copies path's current bytes into a tagged checkpoint,
	// overwriting any existing checkpoint under the same tag.
	Checkpoint(ctx context.Context, path, tag string) error

	// ReadCheckpoint returns the bytes captured under tag for path.
	ReadCheckpoint(ctx context.Context, path, tag string) ([]byte, error)

	// RestoreCheckpoint overwrites path's current bytes with the ones
	// captured under tag.
	RestoreCheckpoint(ctx context.Context, path, tag string) error

	// ListCheckpoints returns every tag captured for path, unordered.
	ListCheckpoints(ctx context.Context, path string) ([]string, error)

	// StageBackup seizes a pre-commit snapshot of path's bytes, captured
	// by the edit session before any write lands. It is promoted by
	// CommitBackup once that session's write durably commits.
	StageBackup(ctx context.Context, path string, data []byte) error

	// CommitBackup promotes the staged snapshot into the active
	// single-step undo backup and clears the undo-state flag, per the
	// EDITING -> COMMITTING transition of spec.md §4.8.
	CommitBackup(ctx context.Context, path string) error

	// Undo swaps path's current bytes with its active backup, refusing
	// with ErrUndoUnavailable if the undo-state flag is already set
	// since the last commit.
	Undo(ctx context.Context, path string) error

	// ListFiles returns every live file path in the store (checkpoints
	// excluded), used to advertise on-disk state during registration.
	ListFiles(ctx context.Context) ([]string, error)

	// Close releases any resources (index databases, open handles) held
	// by the store.
	Close() error
}

// Sentinel errors every ContentStore implementation returns so callers can
// map them to the wire protocol's response codes without depending on a
// specific backend's error types.
var (
	ErrNotFound        = errors.New("store: not found")
	ErrAlreadyExists   = errors.New("store: already exists")
	ErrUndoUnavailable = errors.New("store: undo already used since last write")
)
