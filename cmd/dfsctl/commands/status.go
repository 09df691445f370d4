package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/dfs/internal/cli/output"
	"github.com/marmos91/dfs/pkg/adminclient"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show naming server status",
	Long: `Display the naming server's uptime, active session count, and
storage server counts.

Examples:
  dfsctl status
  dfsctl status -o json`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := adminclient.New(serverURL).Status()
	if err != nil {
		return fmt.Errorf("fetching status: %w", err)
	}

	format, err := output.ParseFormat(outputFmt)
	if err != nil {
		return err
	}

	table := output.KeyValues([][2]string{
		{"Server", serverURL},
		{"Uptime (s)", fmt.Sprintf("%.0f", status.UptimeSeconds)},
		{"Sessions", fmt.Sprintf("%d", status.Sessions)},
		{"Active SS", fmt.Sprintf("%d", status.ActiveSS)},
		{"Failed SS", fmt.Sprintf("%d", status.FailedSS)},
	})
	return output.Render(os.Stdout, format, status, table)
}
