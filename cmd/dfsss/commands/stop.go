package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// errProcessDone is returned by stopProcess when the process has already
// exited.
var errProcessDone = errors.New("process already done")

var (
	stopPidFile string
	stopForce   bool
)

var stopCmd = &cobra.Command{
	Use:   "stop <ss_id>",
	Short: "Stop a daemonized storage server",
	Long: `Stop a storage server previously started with 'dfsss start --daemon'.

By default sends a graceful shutdown signal (SIGTERM); --force kills it
immediately.

Examples:
  dfsss stop ss1
  dfsss stop ss1 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "Path to PID file (default: per-ss_id state dir)")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Force kill instead of graceful shutdown")
}

func runStop(cmd *cobra.Command, args []string) error {
	ssID := args[0]

	pidPath := stopPidFile
	if pidPath == "" {
		pidPath = defaultPidFile(ssID)
	}

	pidData, err := os.ReadFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("PID file not found: %s\n\nIs %s running as a daemon?", pidPath, ssID)
		}
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		return fmt.Errorf("invalid PID in file: %s", string(pidData))
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	if err := stopProcess(process, stopForce); err != nil {
		if errors.Is(err, errProcessDone) {
			fmt.Printf("storage server %s already stopped\n", ssID)
			_ = os.Remove(pidPath)
			return nil
		}
		return err
	}

	_ = os.Remove(pidPath)
	if stopForce {
		fmt.Printf("storage server %s terminated\n", ssID)
	} else {
		fmt.Printf("shutdown signal sent to %s\n", ssID)
	}
	return nil
}
