// Package lock implements the storage server's sentence lock table: a flat
// map keyed by (filename, sentence index) with non-blocking acquisition, per
// spec.md §4.8/§5. It is a deliberately narrower cousin of the teacher's
// unified LockManager (pkg/metadata/lock), which also tracks byte-range
// locks, oplocks, and grace periods for NFS/SMB — none of which apply here,
// since this protocol has exactly one lock kind and no lease-breaking.
package lock

import (
	"fmt"
	"sync"
)

// Key identifies a single sentence within a file.
type Key struct {
	Filename string
	Sentence int
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%d", k.Filename, k.Sentence)
}

// Table is a flat sentence lock table guarded by one mutex, matching
// spec.md §5's "single flat table keyed by (filename, sentence)" and its
// "lock acquisition never blocks; failure is reported as FileLocked" rule.
type Table struct {
	mu    sync.Mutex
	held  map[Key]string // key -> holder username
}

// New creates an empty sentence lock table.
func New() *Table {
	return &Table{held: make(map[Key]string)}
}

// TryLock attempts to acquire the lock for (filename, sentence) on behalf
// of owner. It never blocks: if the sentence is already held by a
// different owner, it returns ok=false and the current holder's name
// without altering table state. Re-acquiring a lock already held by the
// same owner succeeds (idempotent within one edit session).
func (t *Table) TryLock(filename string, sentence int, owner string) (ok bool, holder string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := Key{Filename: filename, Sentence: sentence}
	if current, locked := t.held[key]; locked && current != owner {
		return false, current
	}
	t.held[key] = owner
	return true, ""
}

// Unlock releases (filename, sentence) if owner currently holds it. It is a
// no-op otherwise, so every exit path in the WRITE handler (commit, error,
// peer close) can call it unconditionally.
func (t *Table) Unlock(filename string, sentence int, owner string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := Key{Filename: filename, Sentence: sentence}
	if current, locked := t.held[key]; locked && current == owner {
		delete(t.held, key)
	}
}

// Holder returns the current holder of (filename, sentence), if any.
func (t *Table) Holder(filename string, sentence int) (holder string, locked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	holder, locked = t.held[Key{Filename: filename, Sentence: sentence}]
	return holder, locked
}

// Count returns the number of sentences currently locked, for diagnostics.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.held)
}
