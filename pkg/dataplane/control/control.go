// Package control implements the SS Control Handler: the opcodes the
// naming server sends down a storage server's persistent control socket
// (spec.md §4.7). It is always invoked from the single goroutine reading
// that socket, so it assumes serialized access to the ContentStore for
// these operations — the same serialization the NS enforces on its side
// of the connection.
package control

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"unicode"

	"github.com/marmos91/dfs/internal/codes"
	"github.com/marmos91/dfs/internal/wire"
	"github.com/marmos91/dfs/pkg/dataplane/store"
)

// maxViewPayload bounds how many checkpoint bytes VIEWCHECKPOINT copies
// into a single Record's Data field.
const maxViewPayload = 4096

// Handler dispatches control-plane opcodes against a ContentStore.
type Handler struct {
	Store store.ContentStore
}

// New creates a Handler over st.
func New(st store.ContentStore) *Handler {
	return &Handler{Store: st}
}

// Handle processes one control Record and returns its response. It never
// panics on an unsupported opcode; callers outside the handled set get
// InvalidRequest.
func (h *Handler) Handle(ctx context.Context, req *wire.Record) *wire.Record {
	switch req.Type {
	case wire.Create:
		return h.handleCreate(ctx, req)
	case wire.Delete:
		return h.handleDelete(ctx, req)
	case wire.CreateFolder:
		return h.handleCreateFolder(ctx, req)
	case wire.Move:
		return h.handleMove(ctx, req)
	case wire.Checkpoint:
		return h.handleCheckpoint(ctx, req)
	case wire.ViewCheckpoint:
		return h.handleViewCheckpoint(ctx, req)
	case wire.Revert:
		return h.handleRevert(ctx, req)
	case wire.Info:
		return h.handleInfo(ctx, req)
	case wire.Heartbeat:
		return ackResponse([]byte("alive"))
	default:
		return errorResponse(codes.NewInvalidRequestError("unsupported control opcode " + req.Type.String()))
	}
}

func errorResponse(err error) *wire.Record {
	se := codes.AsStoreError(err)
	resp := &wire.Record{ErrorCode: se.Code}
	_ = resp.SetData([]byte(se.Message))
	return resp
}

func successResponse(data []byte) *wire.Record {
	resp := &wire.Record{ErrorCode: codes.Success}
	_ = resp.SetData(data)
	return resp
}

func ackResponse(data []byte) *wire.Record {
	resp := &wire.Record{ErrorCode: codes.Ack}
	_ = resp.SetData(data)
	return resp
}

func (h *Handler) handleCreate(ctx context.Context, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	if _, err := h.Store.Stat(ctx, filename); err == nil {
		return errorResponse(codes.NewFileExistsError(filename))
	} else if !errors.Is(err, store.ErrNotFound) {
		return errorResponse(codes.NewServerError(err))
	}

	if err := h.Store.WriteAtomic(ctx, filename, nil); err != nil {
		return errorResponse(codes.NewServerError(err))
	}
	if err := h.Store.StageBackup(ctx, filename, nil); err != nil {
		return errorResponse(codes.NewServerError(err))
	}
	if err := h.Store.CommitBackup(ctx, filename); err != nil {
		return errorResponse(codes.NewServerError(err))
	}
	return successResponse(nil)
}

func (h *Handler) handleDelete(ctx context.Context, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	if err := h.Store.Remove(ctx, filename); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errorResponse(codes.NewFileNotFoundError(filename))
		}
		return errorResponse(codes.NewServerError(err))
	}
	return successResponse(nil)
}

func (h *Handler) handleCreateFolder(ctx context.Context, req *wire.Record) *wire.Record {
	path := req.GetFilename()
	if err := h.Store.CreateFolder(ctx, path); err != nil {
		return errorResponse(codes.NewServerError(err))
	}
	return successResponse(nil)
}

func (h *Handler) handleMove(ctx context.Context, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	folder := req.GetFolder()
	newPath := filename
	if folder != "" {
		newPath = folder + "/" + baseName(filename)
	}
	if err := h.Store.CreateFolder(ctx, folder); err != nil {
		return errorResponse(codes.NewServerError(err))
	}
	if err := h.Store.Move(ctx, filename, newPath); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errorResponse(codes.NewFileNotFoundError(filename))
		}
		return errorResponse(codes.NewServerError(err))
	}
	return successResponse(nil)
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func (h *Handler) handleCheckpoint(ctx context.Context, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	tag := req.GetCheckpointTag()
	if err := h.Store.Checkpoint(ctx, filename, tag); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errorResponse(codes.NewFileNotFoundError(filename))
		}
		return errorResponse(codes.NewServerError(err))
	}
	return successResponse(nil)
}

func (h *Handler) handleViewCheckpoint(ctx context.Context, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	tag := req.GetCheckpointTag()
	data, err := h.Store.ReadCheckpoint(ctx, filename, tag)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errorResponse(codes.NewCheckpointNotFoundError(filename, tag))
		}
		return errorResponse(codes.NewServerError(err))
	}
	if len(data) > maxViewPayload {
		data = data[:maxViewPayload]
	}
	return successResponse(data)
}

func (h *Handler) handleRevert(ctx context.Context, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	tag := req.GetCheckpointTag()
	if err := h.Store.RestoreCheckpoint(ctx, filename, tag); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errorResponse(codes.NewCheckpointNotFoundError(filename, tag))
		}
		return errorResponse(codes.NewServerError(err))
	}
	return successResponse(nil)
}

func (h *Handler) handleInfo(ctx context.Context, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	data, err := h.Store.Read(ctx, filename)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errorResponse(codes.NewFileNotFoundError(filename))
		}
		return errorResponse(codes.NewServerError(err))
	}
	size, words, chars := measure(data)
	return successResponse([]byte(fmt.Sprintf("%d:%d:%d", size, words, chars)))
}

// measure computes (size, words, chars) per spec.md §4.7: words are maximal
// runs of non-whitespace, chars count every byte except '\n' and '\r'.
func measure(data []byte) (size, words, chars int) {
	size = len(data)
	inWord := false
	for _, b := range data {
		if b == '\n' || b == '\r' {
			continue
		}
		chars++
	}
	for _, r := range bytes.Runes(data) {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	return size, words, chars
}
