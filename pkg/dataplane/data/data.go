// Package data implements the SS Data Handler: the five client-facing
// interactions on a storage server's data port (spec.md §4.8) — READ,
// STREAM, UNDO, VIEWCHECKPOINT, and the WRITE sentence/word edit session built on
// pkg/dataplane/editfsm and pkg/dataplane/lock.
package data

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/marmos91/dfs/internal/codes"
	"github.com/marmos91/dfs/internal/metrics"
	"github.com/marmos91/dfs/internal/wire"
	"github.com/marmos91/dfs/pkg/dataplane/editfsm"
	"github.com/marmos91/dfs/pkg/dataplane/lock"
	"github.com/marmos91/dfs/pkg/dataplane/store"
)

// wordPace is the documented per-word STREAM delay (spec.md §4.8/§9); it is
// a user-experience choice, not a throughput limit, and is preserved as-is.
const wordPace = 100 * time.Millisecond

// maxViewPayload bounds VIEWCHECKPOINT's response payload, matching the SS
// Control Handler's own bound for the same opcode.
const maxViewPayload = 4096

// commitSuffix is the token that ends a WRITE edit session and triggers
// ETIRW ("WRITE" reversed), per spec.md §4.8.
const commitSuffix = "ETIRW"

// Handler dispatches one client connection's data-plane opcode against a
// ContentStore and the SS-wide sentence lock table.
type Handler struct {
	Store store.ContentStore
	Locks *lock.Table
}

// New creates a Handler over st, sharing locks across every connection the
// owning storage server accepts.
func New(st store.ContentStore, locks *lock.Table) *Handler {
	return &Handler{Store: st, Locks: locks}
}

// HandleConn reads the first record from conn and drives the matching
// interaction to completion, closing conn on return. Exactly one of
// READ/STREAM/UNDO/WRITE/VIEWCHECKPOINT runs per connection.
func (h *Handler) HandleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	req, err := wire.ReadRecord(conn)
	if err != nil {
		return
	}

	start := time.Now()
	var finalCode codes.ErrorCode
	switch req.Type {
	case wire.Read:
		finalCode = h.handleRead(ctx, conn, req)
	case wire.Stream:
		finalCode = h.handleStream(ctx, conn, req)
	case wire.Undo:
		finalCode = h.handleUndo(ctx, conn, req)
	case wire.ViewCheckpoint:
		finalCode = h.handleViewCheckpoint(ctx, conn, req)
	case wire.Write:
		finalCode = h.handleWrite(ctx, conn, req)
	default:
		resp := errorResponse(codes.NewInvalidRequestError("unsupported data opcode " + req.Type.String()))
		_ = wire.WriteRecord(conn, resp)
		finalCode = resp.ErrorCode
	}
	metrics.ObserveRequest(req.Type.String(), finalCode.String(), time.Since(start))
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

func (h *Handler) handleRead(ctx context.Context, conn net.Conn, req *wire.Record) codes.ErrorCode {
	filename := req.GetFilename()
	data, err := h.Store.Read(ctx, filename)
	if err != nil {
		resp := errorResponse(readErr(filename, err))
		_ = wire.WriteRecord(conn, resp)
		return resp.ErrorCode
	}
	resp := successResponse(data)
	_ = wire.WriteRecord(conn, resp)
	return resp.ErrorCode
}

func readErr(filename string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return codes.NewFileNotFoundError(filename)
	}
	return codes.NewServerError(err)
}

// handleStream splits the file into lines and words, emitting one Data
// frame per word with a 100ms pace and a "\n" frame at each original line
// boundary, then a stop packet. A write failure mid-stream means the peer
// is gone; the handler simply returns.
func (h *Handler) handleStream(ctx context.Context, conn net.Conn, req *wire.Record) codes.ErrorCode {
	filename := req.GetFilename()
	data, err := h.Store.Read(ctx, filename)
	if err != nil {
		resp := errorResponse(readErr(filename, err))
		_ = wire.WriteRecord(conn, resp)
		return resp.ErrorCode
	}

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		for _, word := range strings.Fields(line) {
			frame := &wire.Record{ErrorCode: codes.Data}
			if err := frame.SetData([]byte(word)); err != nil {
				continue
			}
			if err := wire.WriteRecord(conn, frame); err != nil {
				return codes.Data
			}
			time.Sleep(wordPace)
		}
		if i < len(lines)-1 {
			frame := &wire.Record{ErrorCode: codes.Data}
			_ = frame.SetData([]byte("\n"))
			if err := wire.WriteRecord(conn, frame); err != nil {
				return codes.Data
			}
		}
	}
	_ = wire.WriteRecord(conn, wire.StopPacket())
	return codes.Success
}

func (h *Handler) handleUndo(ctx context.Context, conn net.Conn, req *wire.Record) codes.ErrorCode {
	filename := req.GetFilename()
	err := h.Store.Undo(ctx, filename)
	var resp *wire.Record
	switch {
	case err == nil:
		resp = successResponse(nil)
	case errors.Is(err, store.ErrUndoUnavailable):
		resp = errorResponse(codes.NewInvalidRequestError("consecutive undo"))
	case errors.Is(err, store.ErrNotFound):
		resp = errorResponse(codes.NewFileNotFoundError(filename))
	default:
		resp = errorResponse(codes.NewServerError(err))
	}
	_ = wire.WriteRecord(conn, resp)
	return resp.ErrorCode
}

func (h *Handler) handleViewCheckpoint(ctx context.Context, conn net.Conn, req *wire.Record) codes.ErrorCode {
	filename := req.GetFilename()
	tag := req.GetCheckpointTag()
	data, err := h.Store.ReadCheckpoint(ctx, filename, tag)
	var resp *wire.Record
	switch {
	case err == nil:
		if len(data) > maxViewPayload {
			data = data[:maxViewPayload]
		}
		resp = successResponse(data)
	case errors.Is(err, store.ErrNotFound):
		resp = errorResponse(codes.NewCheckpointNotFoundError(filename, tag))
	default:
		resp = errorResponse(codes.NewServerError(err))
	}
	_ = wire.WriteRecord(conn, resp)
	return resp.ErrorCode
}

// handleWrite drives one WRITE edit session end to end: the first record
// selects a sentence, every subsequent record is either a word-level insert
// or the ETIRW commit trigger. The sentence lock, if acquired, is released
// on every exit path.
func (h *Handler) handleWrite(ctx context.Context, conn net.Conn, first *wire.Record) codes.ErrorCode {
	filename := first.GetFilename()
	username := first.GetUsername()

	sess, err := editfsm.Open(ctx, h.Store, h.Locks, filename, username)
	if err != nil {
		resp := errorResponse(codes.NewServerError(err))
		_ = wire.WriteRecord(conn, resp)
		return resp.ErrorCode
	}
	defer sess.Release()

	req := first
	for {
		if !sess.Locked() {
			code := h.selectSentence(conn, sess, req)
			if code != codes.Success {
				// FileLocked and any unrecoverable I/O error terminate the
				// session; SentenceOutOfRange lets the client retry with a
				// different sentence_num on the same connection.
				if code == codes.FileLocked || code == codes.ServerError {
					return code
				}
			}
		} else {
			done, code := h.editSentence(ctx, conn, sess, req)
			if done {
				return code
			}
		}

		req, err = wire.ReadRecord(conn)
		if err != nil {
			return codes.ServerError
		}
	}
}

func (h *Handler) selectSentence(conn net.Conn, sess *editfsm.Session, req *wire.Record) codes.ErrorCode {
	text, err := sess.SelectSentence(req.SentenceNum)
	if err != nil {
		resp := writeErrForSelect(err)
		_ = wire.WriteRecord(conn, resp)
		return resp.ErrorCode
	}
	resp := successResponse([]byte(text))
	_ = wire.WriteRecord(conn, resp)
	return codes.Success
}

func writeErrForSelect(err error) *wire.Record {
	var rangeErr *editfsm.SentenceOutOfRangeError
	if errors.As(err, &rangeErr) {
		resp := &wire.Record{ErrorCode: codes.SentenceOutOfRange, WordIndex: rangeErr.WordIndex}
		_ = resp.SetData([]byte(err.Error()))
		return resp
	}
	var lockedErr *editfsm.FileLockedError
	if errors.As(err, &lockedErr) {
		resp := &wire.Record{ErrorCode: codes.FileLocked}
		_ = resp.SetData([]byte(lockedErr.Holder))
		return resp
	}
	return errorResponse(codes.NewServerError(err))
}

// editSentence processes one record in the EDITING state. It returns
// done=true once the session reaches COMMITTING/DONE or hits a terminal
// error; otherwise the caller reads the next record and loops.
func (h *Handler) editSentence(ctx context.Context, conn net.Conn, sess *editfsm.Session, req *wire.Record) (done bool, code codes.ErrorCode) {
	if string(req.GetData()) == commitSuffix {
		content, err := sess.Commit(ctx)
		if err != nil {
			resp := errorResponse(codes.NewServerError(err))
			_ = wire.WriteRecord(conn, resp)
			return true, resp.ErrorCode
		}
		resp := successResponse([]byte(content))
		_ = wire.WriteRecord(conn, resp)
		return true, codes.Success
	}

	text, wordIndex, err := sess.InsertWords(req.WordIndex, string(req.GetData()))
	if err != nil {
		resp := &wire.Record{ErrorCode: codes.WordOutOfRange, WordIndex: wordIndex}
		_ = resp.SetData([]byte(err.Error()))
		_ = wire.WriteRecord(conn, resp)
		return false, codes.WordOutOfRange
	}

	resp := &wire.Record{ErrorCode: codes.Success, WordIndex: wordIndex}
	_ = resp.SetData([]byte(text))
	_ = wire.WriteRecord(conn, resp)
	return false, codes.Success
}
