package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer for testing.
// Returns the buffer and a cleanup function to restore original output.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false
	mu.Unlock()

	reconfigure()

	cleanup := func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		reconfigure()
	}

	return buf, cleanup
}

func TestLevelFiltering(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("WARN")
	SetFormat("text")

	Info("should be filtered")
	Warn("should appear")

	output := buf.String()
	assert.NotContains(t, output, "should be filtered")
	assert.Contains(t, output, "should appear")
}

func TestJSONFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	SetFormat("json")

	Info("hello", "k", "v")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "v", entry["k"])
}

func TestContextLogging(t *testing.T) {
	t.Run("injects fields", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		SetFormat("json")

		lc := &LogContext{
			TraceID:  "abc123",
			Opcode:   "WRITE",
			Filename: "poem.txt",
			Username: "alice",
			ClientIP: "192.168.1.100",
		}
		ctx := WithContext(context.Background(), lc)

		InfoCtx(ctx, "operation completed", "extra_field", "value")

		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
		assert.Equal(t, "abc123", entry["trace_id"])
		assert.Equal(t, "WRITE", entry["opcode"])
		assert.Equal(t, "poem.txt", entry["filename"])
		assert.Equal(t, "alice", entry["username"])
		assert.Equal(t, "192.168.1.100", entry["client_ip"])
		assert.Equal(t, "value", entry["extra_field"])
	})

	t.Run("nil context does not panic", func(t *testing.T) {
		_, cleanup := captureOutput()
		defer cleanup()
		SetLevel("INFO")
		require.NotPanics(t, func() { InfoCtx(nil, "test") })
	})

	t.Run("context without LogContext does not panic", func(t *testing.T) {
		_, cleanup := captureOutput()
		defer cleanup()
		SetLevel("INFO")
		require.NotPanics(t, func() { InfoCtx(context.Background(), "test") })
	})
}

func TestLogContext(t *testing.T) {
	t.Run("NewLogContext", func(t *testing.T) {
		lc := NewLogContext("192.168.1.100")
		assert.Equal(t, "192.168.1.100", lc.ClientIP)
		assert.False(t, lc.StartTime.IsZero())
	})

	t.Run("Clone is independent", func(t *testing.T) {
		lc := &LogContext{TraceID: "trace123", Opcode: "READ", ClientIP: "192.168.1.100"}
		clone := lc.Clone()
		assert.Equal(t, *lc, *clone)

		clone.Opcode = "WRITE"
		assert.Equal(t, "READ", lc.Opcode)
	})

	t.Run("Clone of nil is nil", func(t *testing.T) {
		var lc *LogContext
		assert.Nil(t, lc.Clone())
	})

	t.Run("WithOpcode does not mutate receiver", func(t *testing.T) {
		lc := NewLogContext("192.168.1.100")
		lc2 := lc.WithOpcode("READ")
		assert.Equal(t, "READ", lc2.Opcode)
		assert.Equal(t, "", lc.Opcode)
	})

	t.Run("WithUsername", func(t *testing.T) {
		lc := NewLogContext("192.168.1.100")
		lc2 := lc.WithUsername("alice")
		assert.Equal(t, "alice", lc2.Username)
	})
}

func TestFieldHelpers(t *testing.T) {
	assert.Equal(t, KeyOpcode, Opcode("READ").Key)
	assert.Equal(t, KeyFilename, Filename("a.txt").Key)
	assert.Equal(t, KeyUsername, Username("alice").Key)
	assert.Equal(t, KeySSID, SSID("ss1").Key)

	zero := Err(nil)
	assert.Equal(t, "", zero.Key)
}
