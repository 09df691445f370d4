package coordinator

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/marmos91/dfs/internal/codes"
	"github.com/marmos91/dfs/internal/config"
	"github.com/marmos91/dfs/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	cfg := &config.NSConfig{}
	config.ApplyNSDefaults(cfg)
	cfg.Server.Port = 0
	cfg.Server.AdminAddr = ""

	c := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	})
	return c
}

func dial(t *testing.T, c *Coordinator) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", c.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func login(t *testing.T, conn net.Conn, username string) *wire.Record {
	t.Helper()
	req, err := wire.NewRequest(wire.RegisterClient, username, "")
	require.NoError(t, err)
	require.NoError(t, wire.WriteRecord(conn, req))
	resp, err := wire.ReadRecord(conn)
	require.NoError(t, err)
	return resp
}

func TestClientLoginAndLogout(t *testing.T) {
	c := startTestCoordinator(t)
	conn := dial(t, c)

	resp := login(t, conn, "alice")
	require.Equal(t, codes.Success, resp.ErrorCode)

	search := &wire.Record{Type: wire.Search}
	_ = search.SetData([]byte(""))
	require.NoError(t, wire.WriteRecord(conn, search))
	resp, err := wire.ReadRecord(conn)
	require.NoError(t, err)
	assert.Equal(t, codes.Success, resp.ErrorCode)
}

func TestDuplicateLoginRejected(t *testing.T) {
	c := startTestCoordinator(t)
	first := dial(t, c)
	require.Equal(t, codes.Success, login(t, first, "bob").ErrorCode)

	second := dial(t, c)
	resp := login(t, second, "bob")
	assert.True(t, resp.ErrorCode.IsError())
}

func TestRegisterSSMergesAdvertisedFiles(t *testing.T) {
	c := startTestCoordinator(t)

	_, err := c.metadata.CreateFile("known.txt", "alice", "ss1", "")
	require.NoError(t, err)

	conn := dial(t, c)
	reg := wire.SSRegistration{
		ID:          "ss1",
		IP:          "127.0.0.1",
		ClientPort:  9001,
		ControlPort: 9002,
		Files:       []string{"known.txt", "legacy.txt"},
	}
	payload, err := reg.Marshal()
	require.NoError(t, err)
	req := &wire.Record{Type: wire.RegisterSS}
	require.NoError(t, req.SetData(payload))
	require.NoError(t, wire.WriteRecord(conn, req))

	resp, err := wire.ReadRecord(conn)
	require.NoError(t, err)
	require.Equal(t, codes.Ack, resp.ErrorCode)

	// A file discovered post-hoc gets a synthetic "system" owner; one
	// already known keeps its owner.
	legacy, err := c.metadata.Get("legacy.txt")
	require.NoError(t, err)
	assert.Equal(t, "system", legacy.Owner)
	assert.Equal(t, "ss1", legacy.HomeSS)

	known, err := c.metadata.Get("known.txt")
	require.NoError(t, err)
	assert.Equal(t, "alice", known.Owner)
}

func TestUnknownFirstOpcodeRejected(t *testing.T) {
	c := startTestCoordinator(t)
	conn := dial(t, c)

	require.NoError(t, wire.WriteRecord(conn, &wire.Record{Type: wire.Read}))
	resp, err := wire.ReadRecord(conn)
	require.NoError(t, err)
	assert.Equal(t, codes.InvalidRequest, resp.ErrorCode)
}
