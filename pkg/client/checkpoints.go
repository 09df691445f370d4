package client

import (
	"strings"

	"github.com/marmos91/dfs/internal/codes"
	"github.com/marmos91/dfs/internal/wire"
)

// Checkpoint snapshots filename's current content under tag; the caller
// must hold write access.
func (c *Client) Checkpoint(filename, tag string) error {
	req, err := wire.NewRequest(wire.Checkpoint, c.username, filename)
	if err != nil {
		return err
	}
	if err := req.SetCheckpointTag(tag); err != nil {
		return err
	}
	resp, err := c.roundTrip(req)
	if err != nil {
		return err
	}
	if resp.ErrorCode.IsError() {
		return newError(resp)
	}
	return nil
}

// ListCheckpoints lists every checkpoint tag recorded for filename.
func (c *Client) ListCheckpoints(filename string) ([]string, error) {
	resp, err := c.request(wire.ListCheckpoints, filename)
	if err != nil {
		return nil, err
	}
	if resp.ErrorCode.IsError() {
		return nil, newError(resp)
	}
	return strings.Fields(string(resp.GetData())), nil
}

// ViewCheckpoint reads back the bytes saved under tag, without restoring
// them as the file's current content. It redirects to filename's home
// storage server like Read/Write/Stream/Undo.
func (c *Client) ViewCheckpoint(filename, tag string) ([]byte, error) {
	req, err := wire.NewRequest(wire.ViewCheckpoint, c.username, filename)
	if err != nil {
		return nil, err
	}
	if err := req.SetCheckpointTag(tag); err != nil {
		return nil, err
	}
	redirect, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	if redirect.ErrorCode != codes.SsInfo {
		return nil, newError(redirect)
	}
	return viewCheckpointOverSS(req, redirect)
}

// viewCheckpointOverSS dials the storage server an SsInfo redirect named
// and replays the VIEWCHECKPOINT request there, returning the bytes.
func viewCheckpointOverSS(req, redirect *wire.Record) ([]byte, error) {
	conn, err := dialSS(redirect)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

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

// Revert restores filename's current content from the checkpoint tagged
// tag; the caller must hold write access.
func (c *Client) Revert(filename, tag string) error {
	req, err := wire.NewRequest(wire.Revert, c.username, filename)
	if err != nil {
		return err
	}
	if err := req.SetCheckpointTag(tag); err != nil {
		return err
	}
	resp, err := c.roundTrip(req)
	if err != nil {
		return err
	}
	if resp.ErrorCode.IsError() {
		return newError(resp)
	}
	return nil
}
