package metadata

import (
	"testing"

	"github.com/marmos91/dfs/internal/codes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFileOwnerHasFullAccess(t *testing.T) {
	r := New()
	f, err := r.CreateFile("poem.txt", "alice", "ss-1", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", f.Owner)

	require.NoError(t, r.CheckPermission("poem.txt", "alice", true))
	require.NoError(t, r.CheckPermission("poem.txt", "alice", false))
}

func TestCreateFileDuplicateNameRejected(t *testing.T) {
	r := New()
	_, err := r.CreateFile("poem.txt", "alice", "ss-1", "")
	require.NoError(t, err)

	_, err = r.CreateFile("poem.txt", "bob", "ss-1", "")
	require.Error(t, err)
	se := err.(*codes.StoreError)
	assert.Equal(t, codes.FileExists, se.Code)
}

func TestCreateFileUnknownFolderRejected(t *testing.T) {
	r := New()
	_, err := r.CreateFile("poem.txt", "alice", "ss-1", "drafts")
	require.Error(t, err)
	assert.Equal(t, codes.FolderNotFound, err.(*codes.StoreError).Code)
}

func TestPermissionDeniedForStranger(t *testing.T) {
	r := New()
	_, err := r.CreateFile("poem.txt", "alice", "ss-1", "")
	require.NoError(t, err)

	err = r.CheckPermission("poem.txt", "bob", false)
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, err.(*codes.StoreError).Code)
}

func TestAddAccessWriteImpliesRead(t *testing.T) {
	r := New()
	_, err := r.CreateFile("poem.txt", "alice", "ss-1", "")
	require.NoError(t, err)

	require.NoError(t, r.AddAccess("poem.txt", "bob", AccessWrite))
	require.NoError(t, r.CheckPermission("poem.txt", "bob", true))
	require.NoError(t, r.CheckPermission("poem.txt", "bob", false))
}

func TestRemoveAccessCannotTargetOwner(t *testing.T) {
	r := New()
	_, err := r.CreateFile("poem.txt", "alice", "ss-1", "")
	require.NoError(t, err)

	err = r.RemoveAccess("poem.txt", "alice")
	require.Error(t, err)
}

func TestCreateFolderAutoCreatesParents(t *testing.T) {
	r := New()
	require.NoError(t, r.CreateFolder("a/b/c", "alice"))
	assert.True(t, r.FolderExists("a"))
	assert.True(t, r.FolderExists("a/b"))
	assert.True(t, r.FolderExists("a/b/c"))
}

func TestCreateFolderDuplicateRejected(t *testing.T) {
	r := New()
	require.NoError(t, r.CreateFolder("drafts", "alice"))
	err := r.CreateFolder("drafts", "alice")
	require.Error(t, err)
	assert.Equal(t, codes.FolderExists, err.(*codes.StoreError).Code)
}

func TestMoveCreatesDestinationFolder(t *testing.T) {
	r := New()
	_, err := r.CreateFile("poem.txt", "alice", "ss-1", "")
	require.NoError(t, err)

	require.NoError(t, r.Move("poem.txt", "drafts"))
	f, err := r.Get("poem.txt")
	require.NoError(t, err)
	assert.Equal(t, "drafts", f.Folder)
	assert.True(t, r.FolderExists("drafts"))
}

func TestCheckpointUniquenessPerFile(t *testing.T) {
	r := New()
	_, err := r.CreateFile("poem.txt", "alice", "ss-1", "")
	require.NoError(t, err)

	require.NoError(t, r.AddCheckpoint("poem.txt", "v1", "alice", 10))
	err = r.AddCheckpoint("poem.txt", "v1", "alice", 20)
	assert.Error(t, err)
}

func TestAccessRequestLifecycle(t *testing.T) {
	r := New()
	_, err := r.CreateFile("poem.txt", "alice", "ss-1", "")
	require.NoError(t, err)

	id, err := r.RequestAccess("poem.txt", "bob", AccessWrite)
	require.NoError(t, err)

	pending, err := r.ViewRequests("poem.txt")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)

	require.NoError(t, r.RespondRequest("poem.txt", id, true))
	require.NoError(t, r.CheckPermission("poem.txt", "bob", true))

	_, err = r.ViewRequests("poem.txt")
	require.Error(t, err)
	assert.Equal(t, codes.NoPendingRequests, err.(*codes.StoreError).Code)
}

func TestRespondRequestDenied(t *testing.T) {
	r := New()
	_, err := r.CreateFile("poem.txt", "alice", "ss-1", "")
	require.NoError(t, err)

	id, err := r.RequestAccess("poem.txt", "bob", AccessRead)
	require.NoError(t, err)
	require.NoError(t, r.RespondRequest("poem.txt", id, false))

	err = r.CheckPermission("poem.txt", "bob", false)
	assert.Error(t, err)
}

func TestSearchSubstringMatch(t *testing.T) {
	r := New()
	_, _ = r.CreateFile("poem.txt", "alice", "ss-1", "")
	_, _ = r.CreateFile("notes.txt", "alice", "ss-1", "")

	results := r.Search("poem")
	assert.Equal(t, []string{"poem.txt"}, results)
}

func TestSearchOrdersExactThenSubstringThenInsensitive(t *testing.T) {
	r := New()
	_, _ = r.CreateFile("poem", "alice", "ss-1", "")
	_, _ = r.CreateFile("poem.txt", "alice", "ss-1", "")
	_, _ = r.CreateFile("POEMS.txt", "alice", "ss-1", "")
	_, _ = r.CreateFile("notes.txt", "alice", "ss-1", "")

	results := r.Search("poem")
	assert.Equal(t, []string{"poem", "poem.txt", "POEMS.txt"}, results)
}

func TestEnumerateForViewFiltersByAccess(t *testing.T) {
	r := New()
	_, _ = r.CreateFile("mine.txt", "alice", "ss-1", "")
	_, _ = r.CreateFile("shared.txt", "bob", "ss-1", "")
	_, _ = r.CreateFile("private.txt", "bob", "ss-1", "")
	require.NoError(t, r.AddAccess("shared.txt", "alice", AccessRead))

	names := func(entries []ViewEntry) []string {
		var out []string
		for _, e := range entries {
			out = append(out, e.Name)
		}
		return out
	}

	assert.Equal(t, []string{"mine.txt", "shared.txt"}, names(r.EnumerateForView("alice", false)))
	assert.Equal(t, []string{"mine.txt", "private.txt", "shared.txt"}, names(r.EnumerateForView("alice", true)))
}

func TestDeleteFileThenRecreate(t *testing.T) {
	r := New()
	_, err := r.CreateFile("poem.txt", "alice", "ss-1", "")
	require.NoError(t, err)

	require.NoError(t, r.DeleteFile("poem.txt"))
	_, err = r.Get("poem.txt")
	require.Error(t, err)

	_, err = r.CreateFile("poem.txt", "bob", "ss-1", "")
	require.NoError(t, err)
}
