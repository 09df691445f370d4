// Package codes defines the response/error code taxonomy carried in every
// wire Record's ErrorCode field, and the StoreError type used internally to
// propagate them alongside a message and the path/file they concern.
//
// Import graph: codes <- wire <- everything else. It has no internal
// dependencies so both the coordinator and the dataplane can depend on it
// without creating cycles.
package codes

import "fmt"

// ErrorCode is the response code a server places in a Record's ErrorCode
// field. Zero values in this enum are deliberately not "Success" so an
// unset/zeroed Record can never be mistaken for a successful response.
type ErrorCode uint16

const (
	// Success indicates the request completed normally.
	Success ErrorCode = iota + 1

	// SsInfo carries a storage-server redirect (ss_ip/ss_port populated).
	SsInfo

	// Data is an intermediate STREAM frame; more frames or a terminating
	// Success follow.
	Data

	// Ack acknowledges a control operation with no payload to return.
	Ack

	// FileNotFound indicates the named file does not exist.
	FileNotFound

	// PermissionDenied indicates the caller lacks the required read/write
	// capability, or is not the owner where ownership is required.
	PermissionDenied

	// FileLocked indicates a sentence lock is held by another user, or
	// (reused) that the username already has an active session.
	FileLocked

	// FileExists indicates a name collision on create.
	FileExists

	// InvalidRequest indicates a malformed or out-of-protocol request.
	InvalidRequest

	// ServerError indicates an internal failure unrelated to caller input.
	ServerError

	// SsUnavailable indicates the storage server for this file could not
	// be reached.
	SsUnavailable

	// SentenceOutOfRange indicates sentence_num is outside the file's
	// sentence count.
	SentenceOutOfRange

	// WordOutOfRange indicates word_index is outside the sentence's word
	// count.
	WordOutOfRange

	// FolderNotFound indicates the named folder does not exist.
	FolderNotFound

	// FolderExists indicates a name collision on folder create.
	FolderExists

	// CheckpointNotFound indicates the named checkpoint tag does not exist.
	CheckpointNotFound

	// NoPendingRequests indicates an owner asked to view access requests
	// but none are queued.
	NoPendingRequests

	// RequestNotFound indicates the named access request id does not exist.
	RequestNotFound
)

// String returns the wire name of the error code, as used in log output.
func (e ErrorCode) String() string {
	switch e {
	case Success:
		return "Success"
	case SsInfo:
		return "SsInfo"
	case Data:
		return "Data"
	case Ack:
		return "Ack"
	case FileNotFound:
		return "FileNotFound"
	case PermissionDenied:
		return "PermissionDenied"
	case FileLocked:
		return "FileLocked"
	case FileExists:
		return "FileExists"
	case InvalidRequest:
		return "InvalidRequest"
	case ServerError:
		return "ServerError"
	case SsUnavailable:
		return "SsUnavailable"
	case SentenceOutOfRange:
		return "SentenceOutOfRange"
	case WordOutOfRange:
		return "WordOutOfRange"
	case FolderNotFound:
		return "FolderNotFound"
	case FolderExists:
		return "FolderExists"
	case CheckpointNotFound:
		return "CheckpointNotFound"
	case NoPendingRequests:
		return "NoPendingRequests"
	case RequestNotFound:
		return "RequestNotFound"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(e))
	}
}

// IsError reports whether the code represents a failure rather than a
// success/redirect/intermediate response.
func (e ErrorCode) IsError() bool {
	switch e {
	case Success, SsInfo, Data, Ack:
		return false
	default:
		return true
	}
}

// StoreError is the error type every coordinator/dataplane operation
// returns on failure. Its Code is placed directly into the outgoing
// Record's ErrorCode field by the connection handler.
type StoreError struct {
	Code    ErrorCode
	Message string
	Path    string // file, folder, or checkpoint tag this error concerns
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New wraps a code and message into a StoreError.
func New(code ErrorCode, message string) *StoreError {
	return &StoreError{Code: code, Message: message}
}

// NewWithPath wraps a code, message, and concerning path into a StoreError.
func NewWithPath(code ErrorCode, message, path string) *StoreError {
	return &StoreError{Code: code, Message: message, Path: path}
}

// NewFileNotFoundError creates a FileNotFound error.
func NewFileNotFoundError(filename string) *StoreError {
	return NewWithPath(FileNotFound, "file not found", filename)
}

// NewFolderNotFoundError creates a FolderNotFound error.
func NewFolderNotFoundError(folder string) *StoreError {
	return NewWithPath(FolderNotFound, "folder not found", folder)
}

// NewPermissionDeniedError creates a PermissionDenied error.
func NewPermissionDeniedError(filename string) *StoreError {
	return NewWithPath(PermissionDenied, "permission denied", filename)
}

// NewFileLockedError creates a FileLocked error naming the current holder.
func NewFileLockedError(holder string) *StoreError {
	return NewWithPath(FileLocked, "locked by "+holder, holder)
}

// NewAlreadyLoggedInError creates the FileLocked-reused "already logged in"
// error, naming the peer address and login time of the existing session.
func NewAlreadyLoggedInError(peerAddr string, loggedInAt string) *StoreError {
	return New(FileLocked, fmt.Sprintf("already logged in from %s at %s", peerAddr, loggedInAt))
}

// NewFileExistsError creates a FileExists error.
func NewFileExistsError(filename string) *StoreError {
	return NewWithPath(FileExists, "file already exists", filename)
}

// NewFolderExistsError creates a FolderExists error.
func NewFolderExistsError(folder string) *StoreError {
	return NewWithPath(FolderExists, "folder already exists", folder)
}

// NewInvalidRequestError creates an InvalidRequest error.
func NewInvalidRequestError(reason string) *StoreError {
	return New(InvalidRequest, reason)
}

// NewServerError wraps an unexpected internal failure.
func NewServerError(err error) *StoreError {
	return New(ServerError, err.Error())
}

// NewSsUnavailableError creates a SsUnavailable error for the given SS id.
func NewSsUnavailableError(ssID string) *StoreError {
	return NewWithPath(SsUnavailable, "storage server unreachable", ssID)
}

// NewSentenceOutOfRangeError creates a SentenceOutOfRange error.
func NewSentenceOutOfRangeError(filename string, sentenceNum int32) *StoreError {
	return NewWithPath(SentenceOutOfRange, fmt.Sprintf("sentence %d out of range", sentenceNum), filename)
}

// NewWordOutOfRangeError creates a WordOutOfRange error.
func NewWordOutOfRangeError(filename string, wordIndex int32) *StoreError {
	return NewWithPath(WordOutOfRange, fmt.Sprintf("word %d out of range", wordIndex), filename)
}

// NewCheckpointNotFoundError creates a CheckpointNotFound error.
func NewCheckpointNotFoundError(filename, tag string) *StoreError {
	return NewWithPath(CheckpointNotFound, "checkpoint not found: "+tag, filename)
}

// NewNoPendingRequestsError creates a NoPendingRequests error.
func NewNoPendingRequestsError(filename string) *StoreError {
	return NewWithPath(NoPendingRequests, "no pending access requests", filename)
}

// NewRequestNotFoundError creates a RequestNotFound error.
func NewRequestNotFoundError(requestID uint32) *StoreError {
	return New(RequestNotFound, fmt.Sprintf("access request %d not found", requestID))
}

// AsStoreError unwraps err into a *StoreError if possible, falling back to a
// generic ServerError so callers always get a code to put on the wire.
func AsStoreError(err error) *StoreError {
	if err == nil {
		return nil
	}
	if se, ok := err.(*StoreError); ok {
		return se
	}
	return NewServerError(err)
}
