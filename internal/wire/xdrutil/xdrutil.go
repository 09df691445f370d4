// Package xdrutil provides the length+data+padding opaque encoding used to
// pack a storage-server registration record inside a wire Record's fixed
// Data field. It is the one place the wire protocol needs a nested
// variable-length value inside an otherwise fixed-size record, so it borrows
// the alignment convention of RFC 4506 (XDR) rather than inventing one.
package xdrutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// maxOpaqueLength bounds a single opaque field; the outer Record.Data array
// is a few KB, so anything near this is already a protocol violation.
const maxOpaqueLength = 64 * 1024

// WriteOpaque appends length-prefixed, 4-byte-padded data to buf.
func WriteOpaque(buf *bytes.Buffer, data []byte) error {
	length := uint32(len(data))
	if err := binary.Write(buf, binary.BigEndian, length); err != nil {
		return fmt.Errorf("xdrutil: write length: %w", err)
	}
	if _, err := buf.Write(data); err != nil {
		return fmt.Errorf("xdrutil: write data: %w", err)
	}
	return writePadding(buf, length)
}

// WriteString appends a length-prefixed, 4-byte-padded string to buf.
func WriteString(buf *bytes.Buffer, s string) error {
	return WriteOpaque(buf, []byte(s))
}

// WriteUint16 appends a big-endian uint16 to buf.
func WriteUint16(buf *bytes.Buffer, v uint16) error {
	return binary.Write(buf, binary.BigEndian, v)
}

// WriteUint32 appends a big-endian uint32 to buf.
func WriteUint32(buf *bytes.Buffer, v uint32) error {
	return binary.Write(buf, binary.BigEndian, v)
}

func writePadding(buf *bytes.Buffer, dataLen uint32) error {
	padding := (4 - (dataLen % 4)) % 4
	if padding == 0 {
		return nil
	}
	_, err := buf.Write(make([]byte, padding))
	return err
}

// ReadOpaque reads a length-prefixed, 4-byte-padded byte slice from r.
func ReadOpaque(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("xdrutil: read length: %w", err)
	}
	if length > maxOpaqueLength {
		return nil, fmt.Errorf("xdrutil: opaque length %d exceeds maximum %d", length, maxOpaqueLength)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("xdrutil: read data: %w", err)
	}

	padding := (4 - (length % 4)) % 4
	if padding > 0 {
		var padBuf [3]byte
		if _, err := io.ReadFull(r, padBuf[:padding]); err != nil {
			return nil, fmt.Errorf("xdrutil: skip padding: %w", err)
		}
	}
	return data, nil
}

// ReadString reads a length-prefixed, 4-byte-padded string from r.
func ReadString(r io.Reader) (string, error) {
	data, err := ReadOpaque(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadUint16 reads a big-endian uint16 from r.
func ReadUint16(r io.Reader) (uint16, error) {
	var v uint16
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

// ReadUint32 reads a big-endian uint32 from r.
func ReadUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}
