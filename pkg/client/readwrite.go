package client

import (
	"net"

	"github.com/marmos91/dfs/internal/codes"
	"github.com/marmos91/dfs/internal/wire"
)

// redirect asks the naming server where filename lives, returning the
// SsInfo response so callers can dial the storage server directly.
func (c *Client) redirect(op wire.OpCode, filename string) (*wire.Record, error) {
	req, err := wire.NewRequest(op, c.username, filename)
	if err != nil {
		return nil, err
	}
	resp, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.ErrorCode != codes.SsInfo {
		return nil, newError(resp)
	}
	return resp, nil
}

// Read returns filename's full current content.
func (c *Client) Read(filename string) ([]byte, error) {
	redirect, err := c.redirect(wire.Read, filename)
	if err != nil {
		return nil, err
	}
	conn, err := dialSS(redirect)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req, err := wire.NewRequest(wire.Read, c.username, filename)
	if err != nil {
		return nil, err
	}
	if err := wire.WriteRecord(conn, req); err != nil {
		return nil, err
	}
	resp, err := wire.ReadRecord(conn)
	if err != nil {
		return nil, err
	}
	if resp.ErrorCode.IsError() {
		return nil, newError(resp)
	}
	return resp.GetData(), nil
}

// Undo swaps filename's most recent backup back in as its current
// content; a second consecutive call on the same file fails with
// InvalidRequest since only one level of undo is kept.
func (c *Client) Undo(filename string) error {
	redirect, err := c.redirect(wire.Undo, filename)
	if err != nil {
		return err
	}
	conn, err := dialSS(redirect)
	if err != nil {
		return err
	}
	defer conn.Close()

	req, err := wire.NewRequest(wire.Undo, c.username, filename)
	if err != nil {
		return err
	}
	if err := wire.WriteRecord(conn, req); err != nil {
		return err
	}
	resp, err := wire.ReadRecord(conn)
	if err != nil {
		return err
	}
	if resp.ErrorCode.IsError() {
		return newError(resp)
	}
	return nil
}

// Stream reads filename word by word, invoking onWord for every word in
// document order and onLineBreak between original lines, matching the
// storage server's 100ms-paced STREAM framing. It returns once the
// server's stop packet arrives.
func (c *Client) Stream(filename string, onWord func(word string), onLineBreak func()) error {
	redirect, err := c.redirect(wire.Stream, filename)
	if err != nil {
		return err
	}
	conn, err := dialSS(redirect)
	if err != nil {
		return err
	}
	defer conn.Close()

	req, err := wire.NewRequest(wire.Stream, c.username, filename)
	if err != nil {
		return err
	}
	if err := wire.WriteRecord(conn, req); err != nil {
		return err
	}

	for {
		frame, err := wire.ReadRecord(conn)
		if err != nil {
			return err
		}
		if frame.ErrorCode == codes.Success {
			return nil
		}
		if frame.ErrorCode != codes.Data {
			return newError(frame)
		}
		word := string(frame.GetData())
		if word == "\n" {
			if onLineBreak != nil {
				onLineBreak()
			}
			continue
		}
		if onWord != nil {
			onWord(word)
		}
	}
}

// WriteSession is one open WRITE edit session against a file's home
// storage server: a sentence is selected, zero or more word inserts are
// applied, and Commit (or Close without committing) ends it.
type WriteSession struct {
	conn     net.Conn
	username string
	filename string
}

// BeginWrite asks the naming server for filename's home storage server
// and opens a WRITE session there, selecting sentenceNum. The returned
// text is that sentence's current content.
func (c *Client) BeginWrite(filename string, sentenceNum int32) (*WriteSession, string, error) {
	redirect, err := c.redirect(wire.Write, filename)
	if err != nil {
		return nil, "", err
	}
	conn, err := dialSS(redirect)
	if err != nil {
		return nil, "", err
	}

	req, err := wire.NewRequest(wire.Write, c.username, filename)
	if err != nil {
		conn.Close()
		return nil, "", err
	}
	req.SentenceNum = sentenceNum
	if err := wire.WriteRecord(conn, req); err != nil {
		conn.Close()
		return nil, "", err
	}
	resp, err := wire.ReadRecord(conn)
	if err != nil {
		conn.Close()
		return nil, "", err
	}
	if resp.ErrorCode.IsError() {
		conn.Close()
		return nil, "", newError(resp)
	}
	return &WriteSession{conn: conn, username: c.username, filename: filename}, string(resp.GetData()), nil
}

// InsertWords inserts payload's words at wordIndex in the selected
// sentence, returning the sentence's new text and its new word count.
func (ws *WriteSession) InsertWords(wordIndex int32, payload string) (string, int32, error) {
	req := &wire.Record{Type: wire.Write, WordIndex: wordIndex}
	if err := req.SetData([]byte(payload)); err != nil {
		return "", 0, err
	}
	if err := wire.WriteRecord(ws.conn, req); err != nil {
		return "", 0, err
	}
	resp, err := wire.ReadRecord(ws.conn)
	if err != nil {
		return "", 0, err
	}
	if resp.ErrorCode.IsError() {
		return "", 0, newError(resp)
	}
	return string(resp.GetData()), resp.WordIndex, nil
}

// etirwTrigger is the literal token ("WRITE" reversed) that commits a
// WRITE session's accumulated edits to disk.
const etirwTrigger = "ETIRW"

// Commit ends the session by writing its accumulated edits to disk,
// returning the file's full new content, and closes the connection.
func (ws *WriteSession) Commit() (string, error) {
	defer ws.conn.Close()

	req := &wire.Record{Type: wire.Write}
	if err := req.SetData([]byte(etirwTrigger)); err != nil {
		return "", err
	}
	if err := wire.WriteRecord(ws.conn, req); err != nil {
		return "", err
	}
	resp, err := wire.ReadRecord(ws.conn)
	if err != nil {
		return "", err
	}
	if resp.ErrorCode.IsError() {
		return "", newError(resp)
	}
	return string(resp.GetData()), nil
}

// Close abandons the session without committing, simply dropping the
// connection; the storage server releases the sentence lock on close.
func (ws *WriteSession) Close() error {
	return ws.conn.Close()
}
