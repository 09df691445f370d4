package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/dfs/internal/cli/output"
	"github.com/marmos91/dfs/pkg/adminclient"
)

var ssCmd = &cobra.Command{
	Use:   "ss",
	Short: "List registered storage servers",
	Long: `List every storage server the naming server has registered,
active or failed, along with its file count and last heartbeat.

Examples:
  dfsctl ss
  dfsctl ss -o json`,
	RunE: runSS,
}

func ssTable(servers []adminclient.StorageServer) output.Table {
	t := output.Table{Header: []string{"ID", "Address", "Status", "Files", "Last Heartbeat"}}
	for _, s := range servers {
		t.Rows = append(t.Rows, []string{
			s.ID,
			s.ClientAddr,
			s.Status,
			fmt.Sprintf("%d", s.FileCount),
			s.LastHeartbeat.Format("15:04:05"),
		})
	}
	return t
}

func runSS(cmd *cobra.Command, args []string) error {
	servers, err := adminclient.New(serverURL).ListSS()
	if err != nil {
		return fmt.Errorf("listing storage servers: %w", err)
	}

	format, err := output.ParseFormat(outputFmt)
	if err != nil {
		return err
	}
	return output.Render(os.Stdout, format, servers, ssTable(servers))
}
