package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/dfs/internal/config"
	"github.com/marmos91/dfs/internal/logger"
	"github.com/marmos91/dfs/pkg/storageserver"
)

var (
	startStorageRoot string
	startBackupRoot  string
	startAdvertiseIP string
	startDaemonMode  bool
	startForeground  bool
	startPidFile     string
	startLogFile     string
)

var startCmd = &cobra.Command{
	Use:   "start <ss_id> <ns_ip> <ns_port> <client_port>",
	Short: "Start a storage server",
	Long: `Start a storage server, registering it with a naming server.

ss_id identifies this storage server to the naming server and is used to
namespace its on-disk storage and backup roots. ns_ip and ns_port locate
the naming server to dial on startup; client_port is the TCP port this
storage server accepts client data connections on (its control port is
always client_port+1000). Type DISCONNECT on stdin, or send SIGINT/SIGTERM,
to stop it.

Examples:
  # Register with a naming server on this host and serve clients on 9000
  dfsss start ss1 127.0.0.1 8080 9000

  # Override the on-disk roots
  dfsss start ss1 127.0.0.1 8080 9000 --storage-root /data/ss1/storage --backup-root /data/ss1/backup`,
	Args: cobra.ExactArgs(4),
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startStorageRoot, "storage-root", "", "Directory holding active file content (default: built-in default)")
	startCmd.Flags().StringVar(&startBackupRoot, "backup-root", "", "Directory holding ETIRW backup copies (default: built-in default)")
	startCmd.Flags().StringVar(&startAdvertiseIP, "advertise-ip", "", "IP address to advertise to the naming server (default: auto-discovered)")
	startCmd.Flags().BoolVar(&startDaemonMode, "daemon", false, "Run in the background, detached from the terminal")
	startCmd.Flags().BoolVar(&startForeground, "foreground", false, "Internal: re-exec target for --daemon, runs in the foreground and writes --pid-file")
	startCmd.Flags().StringVar(&startPidFile, "pid-file", "", "PID file path used by --daemon/--foreground (default: per-ss_id state dir)")
	startCmd.Flags().StringVar(&startLogFile, "log-file", "", "Log file path used by --daemon (default: per-ss_id state dir)")
	_ = startCmd.Flags().MarkHidden("foreground")
}

func runStart(cmd *cobra.Command, args []string) error {
	ssID, nsIP, nsPortArg, clientPortArg := args[0], args[1], args[2], args[3]

	nsPort, err := strconv.Atoi(nsPortArg)
	if err != nil {
		return fmt.Errorf("invalid ns_port %q: %w", nsPortArg, err)
	}
	clientPort, err := strconv.ParseUint(clientPortArg, 10, 16)
	if err != nil {
		return fmt.Errorf("invalid client_port %q: %w", clientPortArg, err)
	}

	if startDaemonMode {
		pidPath := startPidFile
		if pidPath == "" {
			pidPath = defaultPidFile(ssID)
		}
		logPath := startLogFile
		if logPath == "" {
			logPath = defaultLogFile(ssID)
		}
		daemonArgs := append([]string{"start"}, args...)
		daemonArgs = append(daemonArgs, "--foreground", "--pid-file", pidPath)
		if startStorageRoot != "" {
			daemonArgs = append(daemonArgs, "--storage-root", startStorageRoot)
		}
		if startBackupRoot != "" {
			daemonArgs = append(daemonArgs, "--backup-root", startBackupRoot)
		}
		if startAdvertiseIP != "" {
			daemonArgs = append(daemonArgs, "--advertise-ip", startAdvertiseIP)
		}
		if GetConfigFile() != "" {
			daemonArgs = append(daemonArgs, "--config", GetConfigFile())
		}
		return startDaemon(ssID, pidPath, logPath, daemonArgs)
	}

	if startForeground {
		pidPath := startPidFile
		if pidPath == "" {
			pidPath = defaultPidFile(ssID)
		}
		if err := os.MkdirAll(stateDir(ssID), 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
		if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidPath) }()
	}

	cfg, err := config.LoadSS(GetConfigFile())
	if err != nil {
		return err
	}
	if startStorageRoot != "" {
		cfg.Server.StorageRoot = startStorageRoot
	}
	if startBackupRoot != "" {
		cfg.Server.BackupRoot = startBackupRoot
	}
	if startAdvertiseIP != "" {
		cfg.Server.AdvertiseIP = startAdvertiseIP
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	identity := storageserver.Identity{
		ID:         ssID,
		NSAddr:     net.JoinHostPort(nsIP, strconv.Itoa(nsPort)),
		ClientPort: uint16(clientPort),
	}

	srv, err := storageserver.New(ctx, cfg, identity)
	if err != nil {
		return fmt.Errorf("failed to initialize storage server: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("storage server is running, type DISCONNECT or press Ctrl+C to stop", logger.SSID(ssID))

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown", logger.SSID(ssID))
		srv.Shutdown()
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("storage server shutdown error", logger.Err(err))
			return err
		}
		logger.Info("storage server stopped gracefully", logger.SSID(ssID))

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("storage server error", logger.Err(err))
			return err
		}
		logger.Info("storage server stopped", logger.SSID(ssID))
	}

	return nil
}
