package codes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "Success", Success.String())
	assert.Equal(t, "FileLocked", FileLocked.String())
	assert.Contains(t, ErrorCode(9999).String(), "Unknown")
}

func TestIsError(t *testing.T) {
	assert.False(t, Success.IsError())
	assert.False(t, SsInfo.IsError())
	assert.False(t, Data.IsError())
	assert.False(t, Ack.IsError())
	assert.True(t, FileNotFound.IsError())
	assert.True(t, PermissionDenied.IsError())
}

func TestStoreErrorMessage(t *testing.T) {
	err := NewFileNotFoundError("poem.txt")
	assert.Equal(t, FileNotFound, err.Code)
	assert.Contains(t, err.Error(), "poem.txt")
	assert.Contains(t, err.Error(), "FileNotFound")
}

func TestStoreErrorWithoutPath(t *testing.T) {
	err := NewInvalidRequestError("bad opcode")
	assert.NotContains(t, err.Error(), "()")
}

func TestAsStoreError(t *testing.T) {
	assert.Nil(t, AsStoreError(nil))

	se := NewFileLockedError("alice")
	assert.Same(t, se, AsStoreError(se))

	wrapped := AsStoreError(errors.New("disk full"))
	assert.Equal(t, ServerError, wrapped.Code)
	assert.Contains(t, wrapped.Error(), "disk full")
}

func TestFactoryFunctionsSetExpectedCodes(t *testing.T) {
	cases := []struct {
		name string
		err  *StoreError
		code ErrorCode
	}{
		{"folder not found", NewFolderNotFoundError("drafts"), FolderNotFound},
		{"permission denied", NewPermissionDeniedError("poem.txt"), PermissionDenied},
		{"file exists", NewFileExistsError("poem.txt"), FileExists},
		{"folder exists", NewFolderExistsError("drafts"), FolderExists},
		{"ss unavailable", NewSsUnavailableError("ss-1"), SsUnavailable},
		{"sentence oor", NewSentenceOutOfRangeError("poem.txt", 5), SentenceOutOfRange},
		{"word oor", NewWordOutOfRangeError("poem.txt", 5), WordOutOfRange},
		{"checkpoint not found", NewCheckpointNotFoundError("poem.txt", "v1"), CheckpointNotFound},
		{"no pending requests", NewNoPendingRequestsError("poem.txt"), NoPendingRequests},
		{"request not found", NewRequestNotFoundError(7), RequestNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.code, c.err.Code)
		})
	}
}
