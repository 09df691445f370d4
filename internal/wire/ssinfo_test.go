package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSRegistrationRoundTrip(t *testing.T) {
	reg := SSRegistration{
		ID:          "ss-1",
		IP:          "10.0.0.5",
		ClientPort:  9001,
		ControlPort: 9002,
		Files:       []string{"notes.txt", "docs/report.txt"},
	}

	data, err := reg.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalSSRegistration(data)
	require.NoError(t, err)
	assert.Equal(t, reg, got)
}

func TestSSRegistrationFitsInRecordData(t *testing.T) {
	reg := SSRegistration{ID: "ss-1", IP: "255.255.255.255", ClientPort: 65535, ControlPort: 65535}
	data, err := reg.Marshal()
	require.NoError(t, err)
	assert.Less(t, len(data), dataSize)

	rec := &Record{Type: RegisterSS}
	require.NoError(t, rec.SetData(data))

	got, err := UnmarshalSSRegistration(rec.GetData())
	require.NoError(t, err)
	assert.Equal(t, reg, got)
}
