package client

import (
	"fmt"
	"strings"

	"github.com/marmos91/dfs/internal/wire"
)

// Search returns the names of every file visible to the caller whose name
// contains pattern.
func (c *Client) Search(pattern string) ([]string, error) {
	req, err := wire.NewRequest(wire.Search, c.username, "")
	if err != nil {
		return nil, err
	}
	if err := req.SetData([]byte(pattern)); err != nil {
		return nil, err
	}
	resp, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.ErrorCode.IsError() {
		return nil, newError(resp)
	}
	return strings.Fields(string(resp.GetData())), nil
}

// StorageServer is one entry from ListSS.
type StorageServer struct {
	ID     string
	Addr   string
	Status string
}

// ListSS lists every storage server the naming server knows about, active
// or not.
func (c *Client) ListSS() ([]StorageServer, error) {
	req, err := wire.NewRequest(wire.ListSS, c.username, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.ErrorCode.IsError() {
		return nil, newError(resp)
	}
	return parseStorageServers(string(resp.GetData())), nil
}

// parseStorageServers parses ListSS's "<id>:<addr> status=<status> ..."
// text, where each entry contributes two whitespace-separated fields.
func parseStorageServers(s string) []StorageServer {
	fields := strings.Fields(s)
	var out []StorageServer
	for i := 0; i+1 < len(fields); i += 2 {
		id, addr, _ := strings.Cut(fields[i], ":")
		_, status, _ := strings.Cut(fields[i+1], "=")
		out = append(out, StorageServer{ID: id, Addr: addr, Status: status})
	}
	return out
}

// Exec asks the naming server to run filename's content as a script on
// its own host, returning captured output. Disabled unless the server
// operator enabled the EXEC opcode.
func (c *Client) Exec(filename string) ([]byte, error) {
	resp, err := c.request(wire.Exec, filename)
	if err != nil {
		return nil, err
	}
	if resp.ErrorCode.IsError() {
		return nil, fmt.Errorf("client: exec %s: %w", filename, newError(resp))
	}
	return resp.GetData(), nil
}
