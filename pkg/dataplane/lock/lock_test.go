package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryLockGrantsAndBlocksOthers(t *testing.T) {
	tbl := New()

	ok, holder := tbl.TryLock("notes.txt", 0, "alice")
	assert.True(t, ok)
	assert.Empty(t, holder)

	ok, holder = tbl.TryLock("notes.txt", 0, "bob")
	assert.False(t, ok)
	assert.Equal(t, "alice", holder)
}

func TestTryLockIsIdempotentForSameOwner(t *testing.T) {
	tbl := New()
	ok, _ := tbl.TryLock("notes.txt", 0, "alice")
	assert.True(t, ok)

	ok, _ = tbl.TryLock("notes.txt", 0, "alice")
	assert.True(t, ok)
}

func TestUnlockReleasesAndAllowsReacquire(t *testing.T) {
	tbl := New()
	tbl.TryLock("notes.txt", 0, "alice")
	tbl.Unlock("notes.txt", 0, "alice")

	ok, holder := tbl.TryLock("notes.txt", 0, "bob")
	assert.True(t, ok)
	assert.Empty(t, holder)
}

func TestUnlockByNonHolderIsNoop(t *testing.T) {
	tbl := New()
	tbl.TryLock("notes.txt", 0, "alice")
	tbl.Unlock("notes.txt", 0, "bob")

	holder, locked := tbl.Holder("notes.txt", 0)
	assert.True(t, locked)
	assert.Equal(t, "alice", holder)
}

func TestLocksAreIndependentPerSentence(t *testing.T) {
	tbl := New()
	tbl.TryLock("notes.txt", 0, "alice")

	ok, _ := tbl.TryLock("notes.txt", 1, "bob")
	assert.True(t, ok)
	assert.Equal(t, 2, tbl.Count())
}
