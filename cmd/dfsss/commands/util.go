package commands

import (
	"os"
	"path/filepath"
	"runtime"
)

// stateDir returns the directory dfsss keeps a storage server's PID and
// daemon log file under, namespaced by ss_id since operators commonly run
// several storage servers on one host.
func stateDir(ssID string) string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData != "" {
			return filepath.Join(localAppData, "dfsss", ssID)
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "dfsss", ssID)
		}
		return filepath.Join(homeDir, "AppData", "Local", "dfsss", ssID)
	}

	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "dfsss", ssID)
		}
		base = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(base, "dfsss", ssID)
}

func defaultPidFile(ssID string) string {
	return filepath.Join(stateDir(ssID), "dfsss.pid")
}

func defaultLogFile(ssID string) string {
	return filepath.Join(stateDir(ssID), "dfsss.log")
}
