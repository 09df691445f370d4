// Package coordinator wires the Metadata Registry, SS Registry, Session
// Table, Search Cache, Heartbeat Monitor, EXEC runner, Request Router, and
// admin HTTP API into the naming server process: one TCP listener, one
// goroutine per accepted connection, and the background tasks that keep
// storage-server health and metrics current.
package coordinator

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dfs/internal/codes"
	"github.com/marmos91/dfs/internal/config"
	"github.com/marmos91/dfs/internal/logger"
	"github.com/marmos91/dfs/internal/metrics"
	"github.com/marmos91/dfs/internal/wire"
	"github.com/marmos91/dfs/pkg/coordinator/adminapi"
	"github.com/marmos91/dfs/pkg/coordinator/exec"
	"github.com/marmos91/dfs/pkg/coordinator/heartbeat"
	"github.com/marmos91/dfs/pkg/coordinator/metadata"
	"github.com/marmos91/dfs/pkg/coordinator/router"
	"github.com/marmos91/dfs/pkg/coordinator/searchcache"
	"github.com/marmos91/dfs/pkg/coordinator/session"
	"github.com/marmos91/dfs/pkg/coordinator/ssregistry"
)

// Coordinator is the naming server: the single value that owns every
// NS-side subsystem and the client/SS-facing TCP listener.
type Coordinator struct {
	cfg *config.NSConfig

	metadata *metadata.Registry
	ss       *ssregistry.Registry
	sessions *session.Table
	cache    *searchcache.Cache
	heart    *heartbeat.Monitor
	router   *router.Router

	listener      net.Listener
	listenerReady chan struct{}
	conns         sync.WaitGroup
	started       time.Time

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// New builds a Coordinator from NS configuration, wiring every subsystem.
func New(cfg *config.NSConfig) *Coordinator {
	metadataReg := metadata.New()
	ssReg := ssregistry.New()
	sessions := session.New()
	cache := searchcache.New(cfg.Server.SearchCacheSize)
	execRunner := exec.New(cfg.Exec)

	rt := router.New(router.Deps{
		Metadata: metadataReg,
		SS:       ssReg,
		Sessions: sessions,
		Cache:    cache,
		Exec:     execRunner,
	})

	return &Coordinator{
		cfg:           cfg,
		metadata:      metadataReg,
		ss:            ssReg,
		sessions:      sessions,
		cache:         cache,
		heart:         heartbeat.New(ssReg, cfg.Server.HeartbeatInterval, cfg.Server.HeartbeatTimeout),
		router:        rt,
		started:       time.Now(),
		shutdown:      make(chan struct{}),
		listenerReady: make(chan struct{}),
	}
}

// Serve listens on the configured port and blocks until ctx is canceled or
// Shutdown is called, accepting client and storage-server connections and
// running the heartbeat monitor, metrics endpoint, admin API, and stdin
// console in the background.
func (c *Coordinator) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", c.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("coordinator: listen on port %d: %w", c.cfg.Server.Port, err)
	}
	c.listener = listener
	close(c.listenerReady)
	logger.Info("naming server listening", "port", c.cfg.Server.Port)

	if c.cfg.Metrics.Enabled {
		metrics.InitRegistry("dfsns")
	}

	go c.heart.Run(ctx)
	go c.serveAdminAPI()
	go c.runConsole()

	go func() {
		<-ctx.Done()
		c.Shutdown()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-c.shutdown:
				return c.gracefulShutdown()
			default:
				logger.Warn("accept error", logger.Err(err))
				continue
			}
		}

		c.conns.Add(1)
		go func() {
			defer c.conns.Done()
			c.handleConn(conn)
		}()
	}
}

// Addr blocks until Serve has bound its listener and returns its address.
// Useful for tests that bind to port 0.
func (c *Coordinator) Addr() net.Addr {
	<-c.listenerReady
	return c.listener.Addr()
}

// Shutdown closes the listener, stopping new connections; it is idempotent
// and safe to call from the stdin console, the admin API, or ctx
// cancellation.
func (c *Coordinator) Shutdown() {
	c.shutdownOnce.Do(func() {
		close(c.shutdown)
		if c.listener != nil {
			c.listener.Close()
		}
	})
}

func (c *Coordinator) gracefulShutdown() error {
	logger.Info("naming server shutting down, notifying storage servers")

	notifyCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, rec := range c.ss.List() {
		if rec.Status != ssregistry.StatusActive {
			continue
		}
		req := &wire.Record{Type: wire.Shutdown}
		if _, err := c.ss.SendControl(notifyCtx, rec.ID, req); err != nil {
			logger.Warn("shutdown notification failed", logger.SSID(rec.ID), logger.Err(err))
		}
	}

	c.conns.Wait()
	return nil
}

// runConsole implements the stdin "SHUTDOWN" console command.
func (c *Coordinator) runConsole() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "SHUTDOWN" {
			c.Shutdown()
			return
		}
	}
}

func (c *Coordinator) serveAdminAPI() {
	if c.cfg.Server.AdminAddr == "" {
		return
	}
	srv := &adminapi.Server{SS: c.ss, Sessions: c.sessions, Started: c.started, Shutdown: c.Shutdown}
	if err := http.ListenAndServe(c.cfg.Server.AdminAddr, srv.Router()); err != nil {
		logger.Warn("admin api server stopped", logger.Err(err))
	}
}

// handleConn reads the first record off a new connection to decide whether
// it is a storage server registering its control channel or a client
// logging in, then dispatches into the matching loop.
func (c *Coordinator) handleConn(conn net.Conn) {
	first, err := wire.ReadRecord(conn)
	if err != nil {
		conn.Close()
		return
	}

	switch first.Type {
	case wire.RegisterSS:
		c.handleRegisterSS(conn, first)
	case wire.RegisterClient:
		c.handleClientLoop(conn, first)
	default:
		resp := &wire.Record{ErrorCode: codes.InvalidRequest}
		_ = wire.WriteRecord(conn, resp)
		conn.Close()
	}
}

// handleRegisterSS parks the connection as the SS's persistent control
// channel; it never enters the client request loop, since this socket now
// belongs to ssregistry's control worker.
func (c *Coordinator) handleRegisterSS(conn net.Conn, req *wire.Record) {
	reg, err := wire.UnmarshalSSRegistration(req.GetData())
	if err != nil {
		resp := &wire.Record{ErrorCode: codes.InvalidRequest}
		_ = wire.WriteRecord(conn, resp)
		conn.Close()
		return
	}

	rec := c.ss.Register(reg.ID, reg.IP, reg.ClientPort, reg.ControlPort, reg.Files, conn)

	// Files discovered post-hoc (an SS restarting with data) get a synthetic
	// "system" owner; files already known keep their owner and ACLs.
	for _, name := range rec.Files {
		if _, err := c.metadata.Get(name); err != nil {
			_, _ = c.metadata.CreateFile(name, "system", rec.ID, "")
		}
	}
	c.cache.InvalidateAll()

	ack := &wire.Record{Type: wire.RegisterSS, ErrorCode: codes.Ack}
	_ = wire.WriteRecord(conn, ack)
	logger.Info("storage server registered", logger.SSID(reg.ID))
}

// handleClientLoop implements the UNAUTHENTICATED -> AUTHENTICATED state
// machine: the first record must be REGISTER_CLIENT, after which every
// subsequent record is dispatched through the Request Router until the
// peer disconnects.
func (c *Coordinator) handleClientLoop(conn net.Conn, req *wire.Record) {
	defer conn.Close()

	username := req.GetUsername()
	sess, err := c.sessions.Login(username, conn.RemoteAddr().String(), conn)
	if err != nil {
		resp := &wire.Record{ErrorCode: codes.AsStoreError(err).Code}
		_ = resp.SetData([]byte(codes.AsStoreError(err).Message))
		_ = wire.WriteRecord(conn, resp)
		return
	}
	defer c.sessions.Logout(username)
	metrics.SetActiveSessions(c.sessions.Count())

	welcome := &wire.Record{ErrorCode: codes.Success}
	if err := wire.WriteRecord(conn, welcome); err != nil {
		return
	}
	logger.Info("client authenticated", logger.Username(username), logger.ClientIP(sess.PeerAddr))

	ctx := context.Background()
	for {
		req, err := wire.ReadRecord(conn)
		if err != nil {
			return
		}
		resp := c.router.Dispatch(ctx, username, req)
		if err := wire.WriteRecord(conn, resp); err != nil {
			return
		}
	}
}
