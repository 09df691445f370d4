// Package client implements a thin Go client for the naming-server/
// storage-server wire protocol, grounded on pkg/apiclient's shape (a
// connection-holding Client type with one method per operation and a
// typed error returned from non-success responses) but built over raw
// wire.Record exchanges instead of HTTP/JSON.
package client

import (
	"fmt"
	"net"
	"time"

	"github.com/marmos91/dfs/internal/codes"
	"github.com/marmos91/dfs/internal/wire"
)

// defaultDialTimeout bounds how long Dial waits to connect to the naming
// server or a storage server.
const defaultDialTimeout = 5 * time.Second

// Client is a logged-in session against a naming server. Every data-plane
// operation (Read/Write/Stream/Undo/ViewCheckpoint) dials the storage
// server the naming server redirects it to and closes that connection
// when the operation completes, matching how the source protocol's
// clients are documented to behave: one data connection per operation,
// not a pooled/kept-alive one.
type Client struct {
	conn     net.Conn
	username string
}

// Dial connects to a naming server at addr. The caller must call Login
// before issuing any other operation.
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, defaultDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial naming server %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection to the naming server.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Username returns the username this client logged in as.
func (c *Client) Username() string {
	return c.username
}

// Login sends REGISTER_CLIENT and blocks until the naming server accepts
// or rejects it. FileLocked is the protocol's reused code for "this
// username is already logged in elsewhere".
func (c *Client) Login(username string) error {
	req, err := wire.NewRequest(wire.RegisterClient, username, "")
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
	c.username = username
	return nil
}

// roundTrip writes req to the naming server and reads exactly one
// response record.
func (c *Client) roundTrip(req *wire.Record) (*wire.Record, error) {
	if err := wire.WriteRecord(c.conn, req); err != nil {
		return nil, fmt.Errorf("client: send %s: %w", req.Type, err)
	}
	resp, err := wire.ReadRecord(c.conn)
	if err != nil {
		return nil, fmt.Errorf("client: read response to %s: %w", req.Type, err)
	}
	return resp, nil
}

// request builds a Record for op/filename under the logged-in username
// and round-trips it against the naming server.
func (c *Client) request(op wire.OpCode, filename string) (*wire.Record, error) {
	req, err := wire.NewRequest(op, c.username, filename)
	if err != nil {
		return nil, err
	}
	return c.roundTrip(req)
}

// dialSS opens a one-shot data-plane connection to the storage server an
// SsInfo response redirected to.
func dialSS(resp *wire.Record) (net.Conn, error) {
	addr := net.JoinHostPort(resp.GetSSIP(), fmt.Sprintf("%d", resp.SSPort))
	conn, err := net.DialTimeout("tcp", addr, defaultDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial storage server %s: %w", addr, err)
	}
	return conn, nil
}

// Error is returned whenever a response's ErrorCode indicates failure; it
// carries the wire code so callers can type-switch on it the way the
// storage/coordinator packages do with codes.StoreError.
type Error struct {
	Code    codes.ErrorCode
	Message string
}

func newError(resp *wire.Record) *Error {
	return &Error{Code: resp.ErrorCode, Message: string(resp.GetData())}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
