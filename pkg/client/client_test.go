package client

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dfs/internal/codes"
	"github.com/marmos91/dfs/internal/wire"
)

// fakeNS starts a one-shot listener that hands every record it reads to
// handle, writing back whatever it returns, until the connection closes.
func fakeNS(t *testing.T, handle func(req *wire.Record) *wire.Record) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			req, err := wire.ReadRecord(conn)
			if err != nil {
				return
			}
			if err := wire.WriteRecord(conn, handle(req)); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String()
}

func dialAndLogin(t *testing.T, addr string) *Client {
	t.Helper()
	c, err := Dial(addr)
	require.NoError(t, err)
	require.NoError(t, c.Login("alice"))
	return c
}

func TestLoginSuccess(t *testing.T) {
	addr := fakeNS(t, func(req *wire.Record) *wire.Record {
		assert.Equal(t, wire.RegisterClient, req.Type)
		return &wire.Record{ErrorCode: codes.Success}
	})
	c := dialAndLogin(t, addr)
	defer c.Close()
	assert.Equal(t, "alice", c.Username())
}

func TestLoginAlreadyLoggedIn(t *testing.T) {
	addr := fakeNS(t, func(req *wire.Record) *wire.Record {
		resp := &wire.Record{ErrorCode: codes.FileLocked}
		_ = resp.SetData([]byte("already logged in from 10.0.0.1 at 12:00"))
		return resp
	})
	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	err = c.Login("alice")
	require.Error(t, err)
	var clientErr *Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, codes.FileLocked, clientErr.Code)
}

func TestCreateSuccess(t *testing.T) {
	var loggedIn bool
	addr := fakeNS(t, func(req *wire.Record) *wire.Record {
		if !loggedIn {
			loggedIn = true
			return &wire.Record{ErrorCode: codes.Success}
		}
		assert.Equal(t, wire.Create, req.Type)
		assert.Equal(t, "notes.txt", req.GetFilename())
		return &wire.Record{ErrorCode: codes.Success}
	})
	c := dialAndLogin(t, addr)
	defer c.Close()

	require.NoError(t, c.Create("notes.txt", ""))
}

func TestInfoWithACL(t *testing.T) {
	var loggedIn bool
	addr := fakeNS(t, func(req *wire.Record) *wire.Record {
		if !loggedIn {
			loggedIn = true
			return &wire.Record{ErrorCode: codes.Success}
		}
		resp := &wire.Record{ErrorCode: codes.Success}
		_ = resp.SetData([]byte("42:7:40 bob:3 carol:1"))
		return resp
	})
	c := dialAndLogin(t, addr)
	defer c.Close()

	info, err := c.Info("notes.txt")
	require.NoError(t, err)
	assert.Equal(t, 42, info.Size)
	assert.Equal(t, 7, info.Words)
	assert.Equal(t, 40, info.Chars)
	require.Len(t, info.ACL, 2)
	assert.Equal(t, ACLEntry{Username: "bob", Access: 3}, info.ACL[0])
	assert.Equal(t, ACLEntry{Username: "carol", Access: 1}, info.ACL[1])
}

func TestParseStorageServersPairsFields(t *testing.T) {
	out := parseStorageServers("ss1:127.0.0.1:9000 status=active ss2:127.0.0.1:9001 status=failed")
	require.Len(t, out, 2)
	assert.Equal(t, StorageServer{ID: "ss1", Addr: "127.0.0.1:9000", Status: "active"}, out[0])
	assert.Equal(t, StorageServer{ID: "ss2", Addr: "127.0.0.1:9001", Status: "failed"}, out[1])
}

// fakeSS starts a one-shot listener that hands every record it reads to
// handle, like fakeNS, standing in for a storage server's data port.
func fakeSS(t *testing.T, handle func(req *wire.Record) *wire.Record) (string, uint16) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			req, err := wire.ReadRecord(conn)
			if err != nil {
				return
			}
			if err := wire.WriteRecord(conn, handle(req)); err != nil {
				return
			}
		}
	}()
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return "127.0.0.1", uint16(port)
}

func TestReadRedirectsAndFetchesContent(t *testing.T) {
	ssIP, ssPort := fakeSS(t, func(req *wire.Record) *wire.Record {
		assert.Equal(t, wire.Read, req.Type)
		resp := &wire.Record{ErrorCode: codes.Success}
		_ = resp.SetData([]byte("hello world"))
		return resp
	})

	var loggedIn bool
	addr := fakeNS(t, func(req *wire.Record) *wire.Record {
		if !loggedIn {
			loggedIn = true
			return &wire.Record{ErrorCode: codes.Success}
		}
		assert.Equal(t, wire.Read, req.Type)
		resp := &wire.Record{ErrorCode: codes.SsInfo, SSPort: ssPort}
		_ = resp.SetSSIP(ssIP)
		return resp
	})
	c := dialAndLogin(t, addr)
	defer c.Close()

	data, err := c.Read("notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestUndoConsecutiveCallIsInvalidRequest(t *testing.T) {
	ssIP, ssPort := fakeSS(t, func(req *wire.Record) *wire.Record {
		resp := &wire.Record{ErrorCode: codes.InvalidRequest}
		_ = resp.SetData([]byte("consecutive undo"))
		return resp
	})

	var loggedIn bool
	addr := fakeNS(t, func(req *wire.Record) *wire.Record {
		if !loggedIn {
			loggedIn = true
			return &wire.Record{ErrorCode: codes.Success}
		}
		resp := &wire.Record{ErrorCode: codes.SsInfo, SSPort: ssPort}
		_ = resp.SetSSIP(ssIP)
		return resp
	})
	c := dialAndLogin(t, addr)
	defer c.Close()

	err := c.Undo("poem.txt")
	require.Error(t, err)
	var clientErr *Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, codes.InvalidRequest, clientErr.Code)
}

func TestWriteSessionSelectInsertCommit(t *testing.T) {
	step := 0
	ssIP, ssPort := fakeSS(t, func(req *wire.Record) *wire.Record {
		step++
		switch step {
		case 1:
			assert.Equal(t, wire.Write, req.Type)
			assert.Equal(t, int32(0), req.SentenceNum)
			resp := &wire.Record{ErrorCode: codes.Success}
			_ = resp.SetData([]byte("Hello world"))
			return resp
		case 2:
			assert.Equal(t, int32(2), req.WordIndex)
			assert.Equal(t, "there. Again", string(req.GetData()))
			resp := &wire.Record{ErrorCode: codes.Success, WordIndex: 3}
			_ = resp.SetData([]byte("Hello world there."))
			return resp
		default:
			assert.Equal(t, "ETIRW", string(req.GetData()))
			resp := &wire.Record{ErrorCode: codes.Success}
			_ = resp.SetData([]byte("Hello world there. Again"))
			return resp
		}
	})

	var loggedIn bool
	addr := fakeNS(t, func(req *wire.Record) *wire.Record {
		if !loggedIn {
			loggedIn = true
			return &wire.Record{ErrorCode: codes.Success}
		}
		resp := &wire.Record{ErrorCode: codes.SsInfo, SSPort: ssPort}
		_ = resp.SetSSIP(ssIP)
		return resp
	})
	c := dialAndLogin(t, addr)
	defer c.Close()

	sess, text, err := c.BeginWrite("poem.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)

	text, wordIndex, err := sess.InsertWords(2, "there. Again")
	require.NoError(t, err)
	assert.Equal(t, "Hello world there.", text)
	assert.Equal(t, int32(3), wordIndex)

	final, err := sess.Commit()
	require.NoError(t, err)
	assert.Equal(t, "Hello world there. Again", final)
}

func TestViewParsesLongEntriesFromTheRight(t *testing.T) {
	var loggedIn bool
	addr := fakeNS(t, func(req *wire.Record) *wire.Record {
		if !loggedIn {
			loggedIn = true
			return &wire.Record{ErrorCode: codes.Success}
		}
		assert.Equal(t, wire.View, req.Type)
		assert.NotZero(t, req.Flags&wire.FlagViewLong)
		resp := &wire.Record{ErrorCode: codes.Success}
		_ = resp.SetData([]byte("notes.txt:42:7:40 docs/plan.txt:0:0:0"))
		return resp
	})
	c := dialAndLogin(t, addr)
	defer c.Close()

	entries, err := c.View(false, true)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ViewEntry{Name: "notes.txt", Size: 42, Words: 7, Chars: 40}, entries[0])
	assert.Equal(t, "docs/plan.txt", entries[1].Name)

	colon, err := parseViewEntry("a:b.txt:1:2:3")
	require.NoError(t, err)
	assert.Equal(t, ViewEntry{Name: "a:b.txt", Size: 1, Words: 2, Chars: 3}, colon)
}
