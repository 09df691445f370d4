// Package session implements the Session Table: the naming server's record
// of active client logins, enforcing at most one session per username.
package session

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/marmos91/dfs/internal/codes"
)

// Session describes one authenticated client connection.
type Session struct {
	Username  string
	PeerAddr  string
	LoggedInAt time.Time
	Conn      net.Conn
}

// Table is the Session Table: a lock-guarded map keyed by username.
type Table struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates an empty Session Table.
func New() *Table {
	return &Table{sessions: make(map[string]*Session)}
}

// Login registers a new session for username, rejecting a second
// concurrent login with a FileLocked error (the wire protocol reuses that
// opcode for "already logged in") naming the existing peer and login time.
func (t *Table) Login(username, peerAddr string, conn net.Conn) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.sessions[username]; ok {
		return nil, codes.NewAlreadyLoggedInError(existing.PeerAddr, existing.LoggedInAt.Format(time.RFC3339))
	}

	sess := &Session{Username: username, PeerAddr: peerAddr, LoggedInAt: time.Now(), Conn: conn}
	t.sessions[username] = sess
	return sess, nil
}

// Logout removes username's session, e.g. on disconnect or handler error.
func (t *Table) Logout(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, username)
}

// Get returns the session for username, if any.
func (t *Table) Get(username string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[username]
	return s, ok
}

// Count returns the number of active sessions, for the metrics gauge.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// String renders a session for admin-API/CLI display.
func (s *Session) String() string {
	return fmt.Sprintf("%s (from %s, since %s)", s.Username, s.PeerAddr, s.LoggedInAt.Format(time.RFC3339))
}
