package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dfs/pkg/adminclient"
)

var shutdownForce bool

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Trigger a graceful naming server shutdown",
	Long: `Ask the naming server to shut down gracefully, the same effect
as typing SHUTDOWN on its console. Refuses to run without --yes, since
this drops every client and storage server connection.

Examples:
  dfsctl shutdown --yes`,
	RunE: runShutdown,
}

func init() {
	shutdownCmd.Flags().BoolVar(&shutdownForce, "yes", false, "confirm the shutdown")
}

func runShutdown(cmd *cobra.Command, args []string) error {
	if !shutdownForce {
		return fmt.Errorf("refusing to shut down %s without --yes", serverURL)
	}
	if err := adminclient.New(serverURL).Shutdown(); err != nil {
		return fmt.Errorf("requesting shutdown: %w", err)
	}
	fmt.Println("shutdown requested")
	return nil
}
