//go:build windows

package commands

import (
	"fmt"
	"os"
)

// startDaemon is not supported on Windows; use --foreground instead.
func startDaemon(ssID, pidPath, logPath string, startArgs []string) error {
	return fmt.Errorf("daemon mode is not supported on Windows, run dfsss start in the foreground instead")
}

// stopProcess terminates a storage server process on Windows. Force mode
// uses process.Kill(); graceful mode sends os.Interrupt.
func stopProcess(process *os.Process, force bool) error {
	var err error
	if force {
		err = process.Kill()
	} else {
		err = process.Signal(os.Interrupt)
	}
	if err == os.ErrProcessDone {
		return errProcessDone
	}
	if err != nil {
		return fmt.Errorf("failed to stop process: %w", err)
	}
	return nil
}
