package adminapi

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marmos91/dfs/pkg/coordinator/session"
	"github.com/marmos91/dfs/pkg/coordinator/ssregistry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, func()) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	go func() {
		buf := make([]byte, 1024)
		for {
			if _, err := serverConn.Read(buf); err != nil {
				return
			}
		}
	}()

	ssReg := ssregistry.New()
	ssReg.Register("ss1", "127.0.0.1", 9001, 9002, []string{"a.txt"}, clientConn)

	s := &Server{SS: ssReg, Sessions: session.New(), Started: time.Now()}
	return s, func() { clientConn.Close() }
}

func TestStatusEndpoint(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestListSSEndpoint(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/ss", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ss1")
	assert.Contains(t, rec.Body.String(), "active")
}

func TestShutdownInvokesHook(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	called := make(chan struct{})
	s.Shutdown = func() { close(called) }

	req := httptest.NewRequest(http.MethodPost, "/shutdown", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("shutdown hook was not invoked")
	}
}
