package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marmos91/dfs/internal/wire"
)

// Create asks the naming server to allocate filename on whichever storage
// server it currently prefers, optionally placing it under folder.
func (c *Client) Create(filename, folder string) error {
	return c.CreateOn(filename, folder, "")
}

// CreateOn is Create with an explicit home storage server; an empty ssID
// lets the naming server pick its USE default (the most recently
// registered active one).
func (c *Client) CreateOn(filename, folder, ssID string) error {
	req, err := wire.NewRequest(wire.Create, c.username, filename)
	if err != nil {
		return err
	}
	if folder != "" {
		if err := req.SetFolder(folder); err != nil {
			return err
		}
	}
	if ssID != "" {
		if err := req.SetData([]byte(ssID)); err != nil {
			return err
		}
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

// Delete removes filename; the caller must be its owner.
func (c *Client) Delete(filename string) error {
	resp, err := c.request(wire.Delete, filename)
	if err != nil {
		return err
	}
	if resp.ErrorCode.IsError() {
		return newError(resp)
	}
	return nil
}

// FileInfo is the parsed result of an Info call.
type FileInfo struct {
	Size  int
	Words int
	Chars int

	// ACL is populated only when the caller owns filename, one entry per
	// grantee with Access carrying metadata.AccessRead/AccessWrite bits.
	ACL []ACLEntry
}

// ACLEntry is one grantee's access bits on a file, as seen by its owner.
type ACLEntry struct {
	Username string
	Access   uint8
}

// Info fetches filename's size/word/char counts and, if the caller owns
// it, its access control list.
func (c *Client) Info(filename string) (*FileInfo, error) {
	resp, err := c.request(wire.Info, filename)
	if err != nil {
		return nil, err
	}
	if resp.ErrorCode.IsError() {
		return nil, newError(resp)
	}
	return parseFileInfo(string(resp.GetData()))
}

func parseFileInfo(s string) (*FileInfo, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("client: empty INFO response")
	}
	counts := strings.Split(fields[0], ":")
	if len(counts) != 3 {
		return nil, fmt.Errorf("client: malformed INFO counts %q", fields[0])
	}
	size, err := strconv.Atoi(counts[0])
	if err != nil {
		return nil, fmt.Errorf("client: malformed INFO size %q: %w", counts[0], err)
	}
	words, err := strconv.Atoi(counts[1])
	if err != nil {
		return nil, fmt.Errorf("client: malformed INFO words %q: %w", counts[1], err)
	}
	chars, err := strconv.Atoi(counts[2])
	if err != nil {
		return nil, fmt.Errorf("client: malformed INFO chars %q: %w", counts[2], err)
	}

	info := &FileInfo{Size: size, Words: words, Chars: chars}
	for _, entry := range fields[1:] {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			continue
		}
		bits, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		info.ACL = append(info.ACL, ACLEntry{Username: parts[0], Access: uint8(bits)})
	}
	return info, nil
}

// ViewEntry is one file as listed by View; Size/Words/Chars are populated
// only when the long flag was set.
type ViewEntry struct {
	Name  string
	Size  int
	Words int
	Chars int
}

// View lists the files the caller owns or holds read access to. all asks
// for every file in the namespace; long asks the naming server to refresh
// each file's size/word/char counts from its home storage server and
// include them.
func (c *Client) View(all, long bool) ([]ViewEntry, error) {
	req, err := wire.NewRequest(wire.View, c.username, "")
	if err != nil {
		return nil, err
	}
	if all {
		req.Flags |= wire.FlagViewAll
	}
	if long {
		req.Flags |= wire.FlagViewLong
	}
	resp, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.ErrorCode.IsError() {
		return nil, newError(resp)
	}

	var out []ViewEntry
	for _, field := range strings.Fields(string(resp.GetData())) {
		if !long {
			out = append(out, ViewEntry{Name: field})
			continue
		}
		entry, err := parseViewEntry(field)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// parseViewEntry splits a long-form "name:size:words:chars" entry from the
// right, so a filename containing ':' still parses.
func parseViewEntry(s string) (ViewEntry, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 4 {
		return ViewEntry{}, fmt.Errorf("client: malformed VIEW entry %q", s)
	}
	counts := parts[len(parts)-3:]
	name := strings.Join(parts[:len(parts)-3], ":")
	size, err := strconv.Atoi(counts[0])
	if err != nil {
		return ViewEntry{}, fmt.Errorf("client: malformed VIEW size in %q: %w", s, err)
	}
	words, err := strconv.Atoi(counts[1])
	if err != nil {
		return ViewEntry{}, fmt.Errorf("client: malformed VIEW words in %q: %w", s, err)
	}
	chars, err := strconv.Atoi(counts[2])
	if err != nil {
		return ViewEntry{}, fmt.Errorf("client: malformed VIEW chars in %q: %w", s, err)
	}
	return ViewEntry{Name: name, Size: size, Words: words, Chars: chars}, nil
}

// CreateFolder asks the naming server to create an (empty) folder path.
func (c *Client) CreateFolder(path string) error {
	resp, err := c.request(wire.CreateFolder, path)
	if err != nil {
		return err
	}
	if resp.ErrorCode.IsError() {
		return newError(resp)
	}
	return nil
}

// ViewFolder lists the files visible to the caller inside folder.
func (c *Client) ViewFolder(folder string) ([]string, error) {
	req, err := wire.NewRequest(wire.ViewFolder, c.username, "")
	if err != nil {
		return nil, err
	}
	if err := req.SetFolder(folder); err != nil {
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

// Move relocates filename into newFolder; the caller must hold write
// access.
func (c *Client) Move(filename, newFolder string) error {
	req, err := wire.NewRequest(wire.Move, c.username, filename)
	if err != nil {
		return err
	}
	if err := req.SetFolder(newFolder); err != nil {
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
