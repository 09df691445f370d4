package logger

import "log/slog"

// Standard field keys for structured logging.
// Use these keys consistently so log lines from the naming server and
// storage servers line up under log aggregation/querying.
const (
	KeyTraceID = "trace_id" // per-connection correlation id

	KeyOpcode    = "opcode"     // wire opcode: CREATE, WRITE, HEARTBEAT, ...
	KeyStatus    = "status"     // response error_code name
	KeyStatusMsg = "status_msg" // human-readable status message

	KeyFilename   = "filename"   // target file or folder name
	KeyFolder     = "folder"     // destination folder for MOVE/VIEWFOLDER
	KeySentence   = "sentence"   // sentence index for WRITE
	KeyWordIndex  = "word_index" // word index for WRITE
	KeyCheckpoint = "checkpoint" // checkpoint tag
	KeySize       = "size"       // byte size

	KeyUsername = "username" // requester/owner
	KeyClientIP = "client_ip"

	KeySSID   = "ss_id" // storage server id
	KeySSAddr = "ss_addr"

	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// Opcode returns a slog.Attr for the wire opcode name.
func Opcode(name string) slog.Attr {
	return slog.String(KeyOpcode, name)
}

// StatusMsg returns a slog.Attr for the human-readable status message.
func StatusMsg(msg string) slog.Attr {
	return slog.String(KeyStatusMsg, msg)
}

// Filename returns a slog.Attr for the target file or folder name.
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// Folder returns a slog.Attr for the destination folder.
func Folder(name string) slog.Attr {
	return slog.String(KeyFolder, name)
}

// Size returns a slog.Attr for a byte size.
func Size(s uint64) slog.Attr {
	return slog.Uint64(KeySize, s)
}

// ClientIP returns a slog.Attr for the peer IP address.
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Username returns a slog.Attr for the requester/owner username.
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// SSID returns a slog.Attr for a storage server id.
func SSID(id string) slog.Attr {
	return slog.String(KeySSID, id)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, or a zero Attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
