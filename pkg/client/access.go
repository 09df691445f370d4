package client

import (
	"strconv"
	"strings"

	"github.com/marmos91/dfs/internal/wire"
)

// Access bits, mirroring metadata.AccessRead/AccessWrite without importing
// the coordinator package from a client library.
const (
	AccessRead  uint8 = 1 << 0
	AccessWrite uint8 = 1 << 1
)

// UserAccess is one user's access bits on a file, as returned by ListUsers.
type UserAccess struct {
	Username string
	Access   uint8
}

// ListUsers returns every user with explicit access to filename.
func (c *Client) ListUsers(filename string) ([]UserAccess, error) {
	resp, err := c.request(wire.ListUsers, filename)
	if err != nil {
		return nil, err
	}
	if resp.ErrorCode.IsError() {
		return nil, newError(resp)
	}
	return parseUserAccessList(string(resp.GetData()))
}

func parseUserAccessList(s string) ([]UserAccess, error) {
	var out []UserAccess
	for _, field := range strings.Fields(s) {
		parts := strings.SplitN(field, ":", 2)
		if len(parts) != 2 {
			continue
		}
		bits, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		out = append(out, UserAccess{Username: parts[0], Access: uint8(bits)})
	}
	return out, nil
}

// AddAccess grants target the given access bits on filename; the caller
// must own filename. The session's own identity is tracked server-side
// from login, not from this record, so the Username field here carries
// the grant's target rather than the caller.
func (c *Client) AddAccess(filename, target string, bits uint8) error {
	req, err := wire.NewRequest(wire.AddAccess, target, filename)
	if err != nil {
		return err
	}
	req.Flags = uint32(bits)
	resp, err := c.roundTrip(req)
	if err != nil {
		return err
	}
	if resp.ErrorCode.IsError() {
		return newError(resp)
	}
	return nil
}

// RemAccess revokes target's access to filename; the caller must own it.
func (c *Client) RemAccess(filename, target string) error {
	req, err := wire.NewRequest(wire.RemAccess, target, filename)
	if err != nil {
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

// RequestAccess files a pending access request for bits on filename,
// returning the request ID its owner will later approve or deny.
func (c *Client) RequestAccess(filename string, bits uint8) (uint32, error) {
	req, err := wire.NewRequest(wire.RequestAccess, c.username, filename)
	if err != nil {
		return 0, err
	}
	req.Flags = uint32(bits)
	resp, err := c.roundTrip(req)
	if err != nil {
		return 0, err
	}
	if resp.ErrorCode.IsError() {
		return 0, newError(resp)
	}
	return resp.RequestID, nil
}

// AccessRequest is one pending RequestAccess call awaiting a decision.
type AccessRequest struct {
	ID        uint32
	Requester string
	Access    uint8
}

// ViewRequests lists the pending access requests on filename; the caller
// must own it.
func (c *Client) ViewRequests(filename string) ([]AccessRequest, error) {
	resp, err := c.request(wire.ViewRequests, filename)
	if err != nil {
		return nil, err
	}
	if resp.ErrorCode.IsError() {
		return nil, newError(resp)
	}
	return parseAccessRequests(string(resp.GetData()))
}

func parseAccessRequests(s string) ([]AccessRequest, error) {
	var out []AccessRequest
	for _, field := range strings.Fields(s) {
		parts := strings.SplitN(field, ":", 3)
		if len(parts) != 3 {
			continue
		}
		id, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			continue
		}
		bits, err := strconv.Atoi(parts[2])
		if err != nil {
			continue
		}
		out = append(out, AccessRequest{ID: uint32(id), Requester: parts[1], Access: uint8(bits)})
	}
	return out, nil
}

// RespondRequest approves or denies a pending access request by ID; the
// caller must own the file it concerns.
func (c *Client) RespondRequest(filename string, requestID uint32, approve bool) error {
	req, err := wire.NewRequest(wire.RespondRequest, c.username, filename)
	if err != nil {
		return err
	}
	req.RequestID = requestID
	if approve {
		req.Flags = 1
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
