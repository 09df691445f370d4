// Package wire implements the fixed-layout binary record exchanged on every
// connection between clients, the naming server, and storage servers. One
// Record is one read: every field has a fixed width, so a peer performs
// exactly one io.ReadFull per message rather than parsing a length-prefixed
// or delimited stream.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/marmos91/dfs/internal/codes"
)

const (
	usernameSize = 64
	nameSize     = 256
	tagSize      = 32
	ipSize       = 46
	dataSize     = 4096
)

// Flags bit assignments. The low two bits carry the requested access kind
// for ADD_ACCESS/REQUESTACCESS and mirror the ACL read/write bits; VIEW
// interprets its own modifier bits; RESPONDREQUEST treats any non-zero
// Flags value as approval.
const (
	FlagAccessRead  uint32 = 1 << 0
	FlagAccessWrite uint32 = 1 << 1

	// FlagViewAll (-a) lists every file in the namespace, not just those
	// the caller owns or can read. FlagViewLong (-l) refreshes each file's
	// size/word/char counts from its home SS before emitting them.
	FlagViewAll  uint32 = 1 << 2
	FlagViewLong uint32 = 1 << 3
)

// Record is the single message type exchanged over the wire protocol,
// serialized with a fixed big-endian layout so its size never needs to be
// negotiated.
type Record struct {
	Type          OpCode
	Username      [usernameSize]byte
	Filename      [nameSize]byte
	Folder        [nameSize]byte
	CheckpointTag [tagSize]byte
	SentenceNum   int32
	WordIndex     int32
	Flags         uint32
	RequestID     uint32
	DataLength    uint32
	Data          [dataSize]byte
	ErrorCode     codes.ErrorCode
	SSIP          [ipSize]byte
	SSPort        uint16
}

// recordSize is the exact on-wire byte count of a Record, used to size the
// read buffer; binary.Size is computed once since Record has no pointers or
// variable-length fields.
var recordSize = binary.Size(Record{})

// NewRequest builds a zeroed Record for opcode op with username and filename
// populated, ready for callers to set any remaining fields before sending.
func NewRequest(op OpCode, username, filename string) (*Record, error) {
	r := &Record{Type: op}
	if err := r.SetUsername(username); err != nil {
		return nil, err
	}
	if err := r.SetFilename(filename); err != nil {
		return nil, err
	}
	return r, nil
}

// SetUsername copies s into the fixed Username field, erroring if it
// overflows.
func (r *Record) SetUsername(s string) error {
	return putFixedString(r.Username[:], s, "username")
}

// SetFilename copies s into the fixed Filename field, erroring if it
// overflows.
func (r *Record) SetFilename(s string) error {
	return putFixedString(r.Filename[:], s, "filename")
}

// SetFolder copies s into the fixed Folder field, erroring if it overflows.
func (r *Record) SetFolder(s string) error {
	return putFixedString(r.Folder[:], s, "folder")
}

// SetCheckpointTag copies s into the fixed CheckpointTag field, erroring if
// it overflows.
func (r *Record) SetCheckpointTag(s string) error {
	return putFixedString(r.CheckpointTag[:], s, "checkpoint_tag")
}

// SetSSIP copies s into the fixed SSIP field, erroring if it overflows.
func (r *Record) SetSSIP(s string) error {
	return putFixedString(r.SSIP[:], s, "ss_ip")
}

// SetData copies b into the Data field and sets DataLength, erroring if b is
// larger than the field.
func (r *Record) SetData(b []byte) error {
	if len(b) > dataSize {
		return fmt.Errorf("wire: data length %d exceeds record capacity %d", len(b), dataSize)
	}
	var zero [dataSize]byte
	r.Data = zero
	copy(r.Data[:], b)
	r.DataLength = uint32(len(b))
	return nil
}

// GetUsername returns the Username field as a string, trimmed of trailing
// NUL padding.
func (r *Record) GetUsername() string { return fixedToString(r.Username[:]) }

// GetFilename returns the Filename field as a string, trimmed of trailing
// NUL padding.
func (r *Record) GetFilename() string { return fixedToString(r.Filename[:]) }

// GetFolder returns the Folder field as a string, trimmed of trailing NUL
// padding.
func (r *Record) GetFolder() string { return fixedToString(r.Folder[:]) }

// GetCheckpointTag returns the CheckpointTag field as a string, trimmed of
// trailing NUL padding.
func (r *Record) GetCheckpointTag() string { return fixedToString(r.CheckpointTag[:]) }

// GetSSIP returns the SSIP field as a string, trimmed of trailing NUL
// padding.
func (r *Record) GetSSIP() string { return fixedToString(r.SSIP[:]) }

// GetData returns the valid prefix of Data as indicated by DataLength.
func (r *Record) GetData() []byte {
	n := r.DataLength
	if n > dataSize {
		n = dataSize
	}
	return r.Data[:n]
}

func putFixedString(dst []byte, s string, field string) error {
	if len(s) > len(dst) {
		return fmt.Errorf("wire: %s %q exceeds field size %d", field, s, len(dst))
	}
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, s)
	return nil
}

func fixedToString(b []byte) string {
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		n = len(b)
	}
	return string(b[:n])
}

// ReadRecord performs one fixed-size read from r and decodes it into a
// Record. It never returns a partial Record: either the full layout was
// read or an error is returned.
func ReadRecord(r io.Reader) (*Record, error) {
	buf := make([]byte, recordSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("wire: read record: %w", err)
	}
	rec := &Record{}
	if err := binary.Read(bytes.NewReader(buf), binary.BigEndian, rec); err != nil {
		return nil, fmt.Errorf("wire: decode record: %w", err)
	}
	return rec, nil
}

// WriteRecord encodes rec with the fixed big-endian layout and writes it to
// w in a single call.
func WriteRecord(w io.Writer, rec *Record) error {
	buf := new(bytes.Buffer)
	buf.Grow(recordSize)
	if err := binary.Write(buf, binary.BigEndian, rec); err != nil {
		return fmt.Errorf("wire: encode record: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("wire: write record: %w", err)
	}
	return nil
}

// StopPacket returns the STREAM terminator record: error_code=Success and
// an empty data payload.
func StopPacket() *Record {
	return &Record{ErrorCode: codes.Success}
}
