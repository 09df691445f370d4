package ssregistry

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/marmos91/dfs/internal/codes"
	"github.com/marmos91/dfs/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSS echoes back an Ack for every control record it receives, proving
// the worker enforces strict one-in-one-out ordering.
func fakeSS(t *testing.T, conn net.Conn) {
	t.Helper()
	go func() {
		for {
			req, err := wire.ReadRecord(conn)
			if err != nil {
				return
			}
			resp := &wire.Record{Type: req.Type, ErrorCode: codes.Ack}
			_ = wire.WriteRecord(conn, resp)
		}
	}()
}

func TestRegisterAndPickActive(t *testing.T) {
	reg := New()
	client, server := net.Pipe()
	defer client.Close()
	fakeSS(t, server)

	reg.Register("ss-1", "10.0.0.1", 9001, 9002, []string{"a.txt"}, client)

	rec, ok := reg.Get("ss-1")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1:9001", rec.ClientAddr())

	best, ok := reg.PickActive()
	require.True(t, ok)
	assert.Equal(t, "ss-1", best.ID)
}

func TestSendControlRoundTrip(t *testing.T) {
	reg := New()
	client, server := net.Pipe()
	defer client.Close()
	fakeSS(t, server)

	reg.Register("ss-1", "10.0.0.1", 9001, 9002, nil, client)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := reg.SendControl(ctx, "ss-1", &wire.Record{Type: wire.Create})
	require.NoError(t, err)
	assert.Equal(t, codes.Ack, resp.ErrorCode)
}

func TestSendControlUnknownSS(t *testing.T) {
	reg := New()
	_, err := reg.SendControl(context.Background(), "missing", &wire.Record{})
	require.Error(t, err)
	se, ok := err.(*codes.StoreError)
	require.True(t, ok)
	assert.Equal(t, codes.SsUnavailable, se.Code)
}

func TestMarkFailedAndRecovered(t *testing.T) {
	reg := New()
	client, server := net.Pipe()
	defer client.Close()
	fakeSS(t, server)
	reg.Register("ss-1", "10.0.0.1", 9001, 9002, nil, client)

	reg.MarkFailed("ss-1")
	rec, _ := reg.Get("ss-1")
	assert.Equal(t, StatusFailed, rec.Status)

	_, ok := reg.PickActive()
	assert.False(t, ok)

	reg.MarkRecovered("ss-1")
	rec, _ = reg.Get("ss-1")
	assert.Equal(t, StatusActive, rec.Status)
}

func TestAddAndRemoveFile(t *testing.T) {
	reg := New()
	client, server := net.Pipe()
	defer client.Close()
	fakeSS(t, server)
	reg.Register("ss-1", "10.0.0.1", 9001, 9002, nil, client)

	reg.AddFile("ss-1", "poem.txt")
	home, ok := reg.HomeOf("poem.txt")
	require.True(t, ok)
	assert.Equal(t, "ss-1", home)

	reg.RemoveFile("ss-1", "poem.txt")
	_, ok = reg.HomeOf("poem.txt")
	assert.False(t, ok)
}

func TestCounts(t *testing.T) {
	reg := New()
	c1, s1 := net.Pipe()
	defer c1.Close()
	fakeSS(t, s1)
	c2, s2 := net.Pipe()
	defer c2.Close()
	fakeSS(t, s2)

	reg.Register("ss-1", "10.0.0.1", 9001, 9002, nil, c1)
	reg.Register("ss-2", "10.0.0.2", 9001, 9002, nil, c2)
	reg.MarkFailed("ss-2")

	active, failed := reg.Counts()
	assert.Equal(t, 1, active)
	assert.Equal(t, 1, failed)
}

func TestRegisterReplacesExistingSession(t *testing.T) {
	reg := New()
	c1, s1 := net.Pipe()
	fakeSS(t, s1)
	reg.Register("ss-1", "10.0.0.1", 9001, 9002, nil, c1)

	c2, s2 := net.Pipe()
	defer c2.Close()
	fakeSS(t, s2)
	reg.Register("ss-1", "10.0.0.1", 9001, 9002, nil, c2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := reg.SendControl(ctx, "ss-1", &wire.Record{Type: wire.Heartbeat})
	require.NoError(t, err)
	assert.Equal(t, codes.Ack, resp.ErrorCode)
}
