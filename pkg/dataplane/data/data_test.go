package data

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dfs/internal/codes"
	"github.com/marmos91/dfs/internal/wire"
	"github.com/marmos91/dfs/pkg/dataplane/lock"
	"github.com/marmos91/dfs/pkg/dataplane/store/diskstore"
)

// serve starts a one-shot listener that hands exactly one accepted
// connection to h.HandleConn, mirroring how the storage server's data
// listener dispatches each new connection.
func serve(t *testing.T, h *Handler) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		h.HandleConn(context.Background(), conn)
	}()
	return ln.Addr()
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	st, err := diskstore.New(t.TempDir(), t.TempDir(), "ss1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(st, lock.New())
}

func dialAndSend(t *testing.T, addr net.Addr, req *wire.Record) *wire.Record {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, wire.WriteRecord(conn, req))
	resp, err := wire.ReadRecord(conn)
	require.NoError(t, err)
	return resp
}

func TestReadReturnsFileContent(t *testing.T) {
	h := newTestHandler(t)
	require.NoError(t, h.Store.WriteAtomic(context.Background(), "notes.txt", []byte("hello")))
	addr := serve(t, h)

	req, _ := wire.NewRequest(wire.Read, "alice", "notes.txt")
	resp := dialAndSend(t, addr, req)
	assert.Equal(t, codes.Success, resp.ErrorCode)
	assert.Equal(t, "hello", string(resp.GetData()))
}

func TestReadMissingFileIsFileNotFound(t *testing.T) {
	h := newTestHandler(t)
	addr := serve(t, h)

	req, _ := wire.NewRequest(wire.Read, "alice", "ghost.txt")
	resp := dialAndSend(t, addr, req)
	assert.Equal(t, codes.FileNotFound, resp.ErrorCode)
}

func TestStreamEmptyFileEmitsOnlyStopPacket(t *testing.T) {
	h := newTestHandler(t)
	require.NoError(t, h.Store.WriteAtomic(context.Background(), "empty.txt", nil))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		h.HandleConn(context.Background(), conn)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	req, _ := wire.NewRequest(wire.Stream, "alice", "empty.txt")
	require.NoError(t, wire.WriteRecord(conn, req))

	resp, err := wire.ReadRecord(conn)
	require.NoError(t, err)
	assert.Equal(t, codes.Success, resp.ErrorCode)
	assert.Empty(t, resp.GetData())
}

func TestUndoThenUndoAgainIsInvalidRequest(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)
	require.NoError(t, h.Store.WriteAtomic(ctx, "notes.txt", []byte("changed")))
	require.NoError(t, h.Store.StageBackup(ctx, "notes.txt", []byte("original")))
	require.NoError(t, h.Store.CommitBackup(ctx, "notes.txt"))
	addr := serve(t, h)

	req, _ := wire.NewRequest(wire.Undo, "alice", "notes.txt")
	resp := dialAndSend(t, addr, req)
	require.Equal(t, codes.Success, resp.ErrorCode)

	data, err := h.Store.Read(ctx, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	req2, _ := wire.NewRequest(wire.Undo, "alice", "notes.txt")
	resp2 := dialAndSend(t, addr, req2)
	assert.Equal(t, codes.InvalidRequest, resp2.ErrorCode)
}

func TestWriteSelectEditCommitRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)
	require.NoError(t, h.Store.WriteAtomic(ctx, "poem.txt", []byte("Hello world")))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		h.HandleConn(ctx, conn)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	selectReq, _ := wire.NewRequest(wire.Write, "alice", "poem.txt")
	selectReq.SentenceNum = 0
	require.NoError(t, wire.WriteRecord(conn, selectReq))
	resp, err := wire.ReadRecord(conn)
	require.NoError(t, err)
	require.Equal(t, codes.Success, resp.ErrorCode)
	assert.Equal(t, "Hello world", string(resp.GetData()))

	editReq := &wire.Record{Type: wire.Write, WordIndex: 2}
	_ = editReq.SetData([]byte("there. Again"))
	require.NoError(t, wire.WriteRecord(conn, editReq))
	resp, err = wire.ReadRecord(conn)
	require.NoError(t, err)
	require.Equal(t, codes.Success, resp.ErrorCode)
	assert.Equal(t, "Hello world there.", string(resp.GetData()))
	assert.Equal(t, int32(3), resp.WordIndex)

	commitReq := &wire.Record{Type: wire.Write}
	_ = commitReq.SetData([]byte("ETIRW"))
	require.NoError(t, wire.WriteRecord(conn, commitReq))
	resp, err = wire.ReadRecord(conn)
	require.NoError(t, err)
	require.Equal(t, codes.Success, resp.ErrorCode)
	assert.Equal(t, "Hello world there. Again\n", string(resp.GetData()))

	onDisk, err := h.Store.Read(ctx, "poem.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello world there. Again\n", string(onDisk))
}

func TestWriteLockConflictReturnsFileLockedAndTerminates(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)
	require.NoError(t, h.Store.WriteAtomic(ctx, "poem.txt", []byte("Hello world")))
	ok, _ := h.Locks.TryLock("poem.txt", 0, "alice")
	require.True(t, ok)

	addr := serve(t, h)
	req, _ := wire.NewRequest(wire.Write, "bob", "poem.txt")
	req.SentenceNum = 0
	resp := dialAndSend(t, addr, req)
	assert.Equal(t, codes.FileLocked, resp.ErrorCode)
	assert.Equal(t, "alice", string(resp.GetData()))
}

func TestWriteSentenceOutOfRangeAllowsRetryOnSameConnection(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)
	require.NoError(t, h.Store.WriteAtomic(ctx, "poem.txt", []byte("Hello world.")))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		h.HandleConn(ctx, conn)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	badReq, _ := wire.NewRequest(wire.Write, "alice", "poem.txt")
	badReq.SentenceNum = 5
	require.NoError(t, wire.WriteRecord(conn, badReq))
	resp, err := wire.ReadRecord(conn)
	require.NoError(t, err)
	assert.Equal(t, codes.SentenceOutOfRange, resp.ErrorCode)
	assert.Equal(t, int32(1), resp.WordIndex)

	goodReq := &wire.Record{Type: wire.Write, SentenceNum: 0}
	_ = goodReq.SetUsername("alice")
	require.NoError(t, wire.WriteRecord(conn, goodReq))
	resp, err = wire.ReadRecord(conn)
	require.NoError(t, err)
	assert.Equal(t, codes.Success, resp.ErrorCode)
	assert.Equal(t, "Hello world.", string(resp.GetData()))
}

func TestWriteWordOutOfRangeCarriesBoundAndKeepsSession(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)
	require.NoError(t, h.Store.WriteAtomic(ctx, "poem.txt", []byte("Hello world")))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		h.HandleConn(ctx, conn)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	selectReq, _ := wire.NewRequest(wire.Write, "alice", "poem.txt")
	selectReq.SentenceNum = 0
	require.NoError(t, wire.WriteRecord(conn, selectReq))
	resp, err := wire.ReadRecord(conn)
	require.NoError(t, err)
	require.Equal(t, codes.Success, resp.ErrorCode)

	badEdit := &wire.Record{Type: wire.Write, WordIndex: 9}
	_ = badEdit.SetData([]byte("oops"))
	require.NoError(t, wire.WriteRecord(conn, badEdit))
	resp, err = wire.ReadRecord(conn)
	require.NoError(t, err)
	assert.Equal(t, codes.WordOutOfRange, resp.ErrorCode)
	assert.Equal(t, int32(2), resp.WordIndex)

	goodEdit := &wire.Record{Type: wire.Write, WordIndex: 2}
	_ = goodEdit.SetData([]byte("again"))
	require.NoError(t, wire.WriteRecord(conn, goodEdit))
	resp, err = wire.ReadRecord(conn)
	require.NoError(t, err)
	assert.Equal(t, codes.Success, resp.ErrorCode)
	assert.Equal(t, "Hello world again", string(resp.GetData()))
}
