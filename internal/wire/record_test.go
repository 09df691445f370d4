package wire

import (
	"bytes"
	"strings"
	"testing"

	"github.com/marmos91/dfs/internal/codes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	req, err := NewRequest(Write, "alice", "poem.txt")
	require.NoError(t, err)
	req.SentenceNum = 2
	req.WordIndex = 5
	require.NoError(t, req.SetData([]byte("hello")))

	var buf bytes.Buffer
	require.NoError(t, WriteRecord(&buf, req))

	got, err := ReadRecord(&buf)
	require.NoError(t, err)

	assert.Equal(t, Write, got.Type)
	assert.Equal(t, "alice", got.GetUsername())
	assert.Equal(t, "poem.txt", got.GetFilename())
	assert.Equal(t, int32(2), got.SentenceNum)
	assert.Equal(t, int32(5), got.WordIndex)
	assert.Equal(t, "hello", string(got.GetData()))
}

func TestRecordFixedStringOverflow(t *testing.T) {
	rec := &Record{}
	longName := strings.Repeat("x", nameSize+1)
	err := rec.SetFilename(longName)
	assert.Error(t, err)
}

func TestRecordDataOverflow(t *testing.T) {
	rec := &Record{}
	err := rec.SetData(make([]byte, dataSize+1))
	assert.Error(t, err)
}

func TestStopPacket(t *testing.T) {
	sp := StopPacket()
	assert.Equal(t, codes.Success, sp.ErrorCode)
	assert.Equal(t, uint32(0), sp.DataLength)
	assert.Empty(t, sp.GetData())
}

func TestReadRecordShortReadErrors(t *testing.T) {
	_, err := ReadRecord(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err)
}

func TestOpCodeString(t *testing.T) {
	assert.Equal(t, "WRITE", Write.String())
	assert.Equal(t, "REGISTER_SS", RegisterSS.String())
	assert.Equal(t, "UNKNOWN", OpCode(9999).String())
	assert.True(t, Write.Valid())
	assert.False(t, OpCode(9999).Valid())
}
