package adminclient

import "time"

// Status mirrors adminapi's statusPayload.
type Status struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Sessions      int     `json:"sessions"`
	ActiveSS      int     `json:"active_storage_servers"`
	FailedSS      int     `json:"failed_storage_servers"`
}

// Status fetches the naming server's current status.
func (c *Client) Status() (*Status, error) {
	var s Status
	if err := c.get("/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// StorageServer mirrors adminapi's ssPayload.
type StorageServer struct {
	ID            string    `json:"id"`
	ClientAddr    string    `json:"client_addr"`
	Status        string    `json:"status"`
	RegisteredAt  time.Time `json:"registered_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	FileCount     int       `json:"file_count"`
}

// ListSS lists every storage server the naming server knows about.
func (c *Client) ListSS() ([]StorageServer, error) {
	var out []StorageServer
	if err := c.get("/ss", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Shutdown triggers the naming server's graceful shutdown, the same
// effect as the stdin "SHUTDOWN" console command.
func (c *Client) Shutdown() error {
	return c.post("/shutdown", nil)
}
