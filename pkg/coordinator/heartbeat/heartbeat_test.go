package heartbeat

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/marmos91/dfs/internal/codes"
	"github.com/marmos91/dfs/internal/wire"
	"github.com/marmos91/dfs/pkg/coordinator/ssregistry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeMarksHealthyAndUnhealthy(t *testing.T) {
	reg := ssregistry.New()

	// A responsive SS.
	clientOK, serverOK := net.Pipe()
	defer clientOK.Close()
	go func() {
		req, err := wire.ReadRecord(serverOK)
		if err != nil {
			return
		}
		_ = wire.WriteRecord(serverOK, &wire.Record{Type: req.Type, ErrorCode: codes.Ack})
	}()
	reg.Register("ss-ok", "10.0.0.1", 9001, 9002, nil, clientOK)

	// An unresponsive SS: close immediately so the read fails.
	clientDown, serverDown := net.Pipe()
	serverDown.Close()
	reg.Register("ss-down", "10.0.0.2", 9001, 9002, nil, clientDown)

	mon := New(reg, time.Hour, 200*time.Millisecond)
	mon.probeAll(context.Background())

	okRec, _ := reg.Get("ss-ok")
	assert.Equal(t, ssregistry.StatusActive, okRec.Status)

	downRec, _ := reg.Get("ss-down")
	assert.Equal(t, ssregistry.StatusFailed, downRec.Status)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	reg := ssregistry.New()
	mon := New(reg, 10*time.Millisecond, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mon.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestProbeOneMarksFailedOnTimeout(t *testing.T) {
	reg := ssregistry.New()

	// Server that never answers, simulating a wedged SS.
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	go func() {
		_, _ = wire.ReadRecord(server) // reads the heartbeat but never replies
	}()
	reg.Register("ss-slow", "10.0.0.3", 9001, 9002, nil, client)

	mon := New(reg, time.Hour, 50*time.Millisecond)
	mon.probeOne(context.Background(), "ss-slow")

	rec, _ := reg.Get("ss-slow")
	require.Equal(t, ssregistry.StatusFailed, rec.Status)
}
