package wire

import (
	"bytes"
	"fmt"

	"github.com/marmos91/dfs/internal/wire/xdrutil"
)

// SSRegistration is the packed payload an SS places in a REGISTER_SS
// record's Data field. Unlike every other opcode, which carries plain
// UTF-8 text, this one nests a structured value inside the otherwise
// fixed-layout Record — so it gets its own length-prefixed encoding instead
// of a fixed byte-array field.
type SSRegistration struct {
	ID          string
	IP          string
	ClientPort  uint16
	ControlPort uint16

	// Files lists what is already on the SS's disk, so a restarted SS's
	// registration lets the naming server reconstruct file records.
	Files []string
}

// maxRegistrationFiles is the largest Files count UnmarshalSSRegistration
// accepts; Marshal does not check it.
const maxRegistrationFiles = 4096

// Marshal encodes the registration as opaque-length-prefixed fields,
// suitable for Record.SetData.
func (s SSRegistration) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdrutil.WriteString(buf, s.ID); err != nil {
		return nil, fmt.Errorf("wire: marshal ss registration id: %w", err)
	}
	if err := xdrutil.WriteString(buf, s.IP); err != nil {
		return nil, fmt.Errorf("wire: marshal ss registration ip: %w", err)
	}
	if err := xdrutil.WriteUint16(buf, s.ClientPort); err != nil {
		return nil, fmt.Errorf("wire: marshal ss registration client_port: %w", err)
	}
	if err := xdrutil.WriteUint16(buf, s.ControlPort); err != nil {
		return nil, fmt.Errorf("wire: marshal ss registration control_port: %w", err)
	}
	if err := xdrutil.WriteUint32(buf, uint32(len(s.Files))); err != nil {
		return nil, fmt.Errorf("wire: marshal ss registration file count: %w", err)
	}
	for _, f := range s.Files {
		if err := xdrutil.WriteString(buf, f); err != nil {
			return nil, fmt.Errorf("wire: marshal ss registration file %q: %w", f, err)
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalSSRegistration decodes a payload produced by Marshal.
func UnmarshalSSRegistration(data []byte) (SSRegistration, error) {
	r := bytes.NewReader(data)

	id, err := xdrutil.ReadString(r)
	if err != nil {
		return SSRegistration{}, fmt.Errorf("wire: unmarshal ss registration id: %w", err)
	}
	ip, err := xdrutil.ReadString(r)
	if err != nil {
		return SSRegistration{}, fmt.Errorf("wire: unmarshal ss registration ip: %w", err)
	}
	clientPort, err := xdrutil.ReadUint16(r)
	if err != nil {
		return SSRegistration{}, fmt.Errorf("wire: unmarshal ss registration client_port: %w", err)
	}
	controlPort, err := xdrutil.ReadUint16(r)
	if err != nil {
		return SSRegistration{}, fmt.Errorf("wire: unmarshal ss registration control_port: %w", err)
	}
	count, err := xdrutil.ReadUint32(r)
	if err != nil {
		return SSRegistration{}, fmt.Errorf("wire: unmarshal ss registration file count: %w", err)
	}
	if count > maxRegistrationFiles {
		return SSRegistration{}, fmt.Errorf("wire: ss registration advertises %d files, limit %d", count, maxRegistrationFiles)
	}
	var files []string
	for i := uint32(0); i < count; i++ {
		f, err := xdrutil.ReadString(r)
		if err != nil {
			return SSRegistration{}, fmt.Errorf("wire: unmarshal ss registration file %d: %w", i, err)
		}
		files = append(files, f)
	}

	return SSRegistration{ID: id, IP: ip, ClientPort: clientPort, ControlPort: controlPort, Files: files}, nil
}
