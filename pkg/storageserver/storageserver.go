// Package storageserver wires the ContentStore, sentence lock table, SS
// Control Handler, and SS Data Handler into one storage-server process: a
// control connection dialed to the naming server, a data-plane TCP
// listener for clients, and the background tasks (stdin console) that keep
// the process manageable.
package storageserver

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dfs/internal/codes"
	"github.com/marmos91/dfs/internal/config"
	"github.com/marmos91/dfs/internal/logger"
	"github.com/marmos91/dfs/internal/metrics"
	"github.com/marmos91/dfs/internal/wire"
	"github.com/marmos91/dfs/pkg/dataplane/control"
	"github.com/marmos91/dfs/pkg/dataplane/data"
	"github.com/marmos91/dfs/pkg/dataplane/lock"
	"github.com/marmos91/dfs/pkg/dataplane/store"
	"github.com/marmos91/dfs/pkg/dataplane/store/storefactory"
)

// Identity is the static identity a storage server advertises to the
// naming server on REGISTER_SS, matching the CLI surface of spec.md §6:
// `<ss_id> <ns_ip> <ns_port> <client_port>`.
type Identity struct {
	ID         string
	NSAddr     string
	ClientPort uint16
}

// ControlPort is always ClientPort+1000, per spec.md §6.
func (id Identity) ControlPort() uint16 {
	return id.ClientPort + 1000
}

// Server is a storage server: one ContentStore, one sentence lock table,
// the control and data handlers built over them, and the listeners/
// connections tying it to the naming server and its clients.
type Server struct {
	cfg      *config.SSConfig
	identity Identity

	store   store.ContentStore
	locks   *lock.Table
	ctrl    *control.Handler
	dataHdl *data.Handler

	dataListener net.Listener
	controlConn  net.Conn
	conns        sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// New builds a Server from SS configuration and identity, opening its
// ContentStore.
func New(ctx context.Context, cfg *config.SSConfig, identity Identity) (*Server, error) {
	st, err := storefactory.New(ctx, cfg, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("storageserver: open content store: %w", err)
	}
	locks := lock.New()
	return &Server{
		cfg:      cfg,
		identity: identity,
		store:    st,
		locks:    locks,
		ctrl:     control.New(st),
		dataHdl:  data.New(st, locks),
		shutdown: make(chan struct{}),
	}, nil
}

// Serve opens the data-plane listener, registers with the naming server,
// and blocks handling control and data traffic until ctx is canceled or
// Shutdown is called.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.identity.ClientPort))
	if err != nil {
		return fmt.Errorf("storageserver: listen on client port %d: %w", s.identity.ClientPort, err)
	}
	s.dataListener = ln
	logger.Info("storage server data listener ready", logger.SSID(s.identity.ID))

	if s.cfg.Metrics.Enabled {
		metrics.InitRegistry("dfsss")
	}

	advertiseIP := s.cfg.Server.AdvertiseIP
	if advertiseIP == "" {
		advertiseIP, err = discoverLocalIP(s.identity.NSAddr)
		if err != nil {
			return fmt.Errorf("storageserver: discover advertise ip: %w", err)
		}
	}

	conn, err := s.registerWithNS(advertiseIP)
	if err != nil {
		return err
	}
	s.controlConn = conn

	go s.runConsole()
	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	go s.runControlLoop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Warn("data listener accept error", logger.Err(err))
				continue
			}
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.dataHdl.HandleConn(context.Background(), conn)
		}()
	}
}

// registerWithNS dials the naming server, sends REGISTER_SS, and returns
// the now-persistent control connection. Files already on disk (from a
// prior run) are listed so a restarted SS's registration lets the NS
// reconstruct file records without operator intervention.
func (s *Server) registerWithNS(advertiseIP string) (net.Conn, error) {
	conn, err := net.Dial("tcp", s.identity.NSAddr)
	if err != nil {
		return nil, fmt.Errorf("storageserver: dial naming server %s: %w", s.identity.NSAddr, err)
	}

	files, err := s.store.ListFiles(context.Background())
	if err != nil {
		logger.Warn("listing on-disk files for registration failed", logger.Err(err))
		files = nil
	}

	reg := wire.SSRegistration{
		ID:          s.identity.ID,
		IP:          advertiseIP,
		ClientPort:  s.identity.ClientPort,
		ControlPort: s.identity.ControlPort(),
		Files:       files,
	}
	payload, err := reg.Marshal()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("storageserver: marshal registration: %w", err)
	}

	req := &wire.Record{Type: wire.RegisterSS}
	if err := req.SetData(payload); err != nil {
		// Too many files to fit the record; register without the list, so
		// the naming server has no records for these files.
		logger.Warn("registration file list too large, omitting", logger.Size(uint64(len(payload))))
		reg.Files = nil
		if payload, err = reg.Marshal(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("storageserver: marshal registration: %w", err)
		}
		if err := req.SetData(payload); err != nil {
			conn.Close()
			return nil, fmt.Errorf("storageserver: set registration payload: %w", err)
		}
	}
	if err := wire.WriteRecord(conn, req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storageserver: send registration: %w", err)
	}

	resp, err := wire.ReadRecord(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("storageserver: read registration ack: %w", err)
	}
	if resp.ErrorCode.IsError() {
		conn.Close()
		return nil, fmt.Errorf("storageserver: registration rejected: %s", resp.ErrorCode)
	}

	logger.Info("registered with naming server", logger.SSID(s.identity.ID))
	return conn, nil
}

// runControlLoop is the one task permitted to read the NS control socket,
// dispatching every record to the Control Handler and replying in place.
// SHUTDOWN is intercepted here, since replying then exiting the process is
// outside the handler's scope.
func (s *Server) runControlLoop() {
	ctx := context.Background()
	for {
		req, err := wire.ReadRecord(s.controlConn)
		if err != nil {
			logger.Warn("control socket closed", logger.Err(err))
			s.Shutdown()
			return
		}

		if req.Type == wire.Shutdown {
			resp := &wire.Record{ErrorCode: codes.Ack}
			_ = wire.WriteRecord(s.controlConn, resp)
			s.Shutdown()
			return
		}

		start := time.Now()
		resp := s.ctrl.Handle(ctx, req)
		metrics.ObserveRequest(req.Type.String(), resp.ErrorCode.String(), time.Since(start))
		if err := wire.WriteRecord(s.controlConn, resp); err != nil {
			logger.Warn("control socket write failed", logger.Err(err))
			s.Shutdown()
			return
		}
	}
}

// runConsole implements the stdin "DISCONNECT" console command.
func (s *Server) runConsole() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "DISCONNECT" {
			s.Shutdown()
			return
		}
	}
}

// Shutdown closes the data listener and control connection, stopping new
// work; it is idempotent.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		if s.dataListener != nil {
			s.dataListener.Close()
		}
		if s.controlConn != nil {
			s.controlConn.Close()
		}
	})
}

func (s *Server) gracefulShutdown() error {
	logger.Info("storage server shutting down, draining connections", logger.SSID(s.identity.ID))
	s.conns.Wait()
	return s.store.Close()
}

// discoverLocalIP finds the local outbound IP by dialing a UDP socket to a
// public address and reading the local socket name it picks, without
// sending any packets. LAN-only; deployments behind NAT or in containers
// should set Server.AdvertiseIP instead (spec.md §9's open question).
func discoverLocalIP(nsAddr string) (string, error) {
	host, _, err := net.SplitHostPort(nsAddr)
	if err != nil {
		host = nsAddr
	}
	target := net.JoinHostPort(host, "80")
	if host == "" {
		target = "8.8.8.8:80"
	}

	conn, err := net.Dial("udp", target)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("storageserver: unexpected local addr type %T", conn.LocalAddr())
	}
	return localAddr.IP.String(), nil
}
