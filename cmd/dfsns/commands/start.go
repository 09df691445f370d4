package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/dfs/internal/logger"
	"github.com/marmos91/dfs/pkg/coordinator"

	"github.com/marmos91/dfs/internal/config"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the naming server",
	Long: `Start the naming server on its configured port (default 8080).

The naming server takes no positional arguments: every storage server and
client dials in to the same fixed address. Type SHUTDOWN on stdin, or send
SIGINT/SIGTERM, to stop it.

Examples:
  # Start with built-in defaults
  dfsns start

  # Start with a config file
  dfsns start --config /etc/dfs/ns.yaml`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadNS(GetConfigFile())
	if err != nil {
		return err
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

	nsd := coordinator.New(cfg)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- nsd.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("naming server is running, type SHUTDOWN or press Ctrl+C to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		nsd.Shutdown()
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("naming server shutdown error", logger.Err(err))
			return err
		}
		logger.Info("naming server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("naming server error", logger.Err(err))
			return err
		}
		logger.Info("naming server stopped")
	}

	return nil
}
