// Package exec implements the EXEC opcode: the naming server fetches a
// file's bytes from its home storage server, writes them to a temporary
// script path, and runs it, returning captured stdout+stderr to the
// client.
//
// The source protocol this models shells out on the NS host with no
// sandboxing at all, using attacker-controlled file contents as the script
// body — an unauthenticated remote code execution primitive. This
// implementation keeps the operation gated off by default (Config.Enabled)
// and, when enabled, runs the script with the temp script's own directory
// as its working directory; with Config.Sandbox also set, the subprocess
// gets only PATH=/usr/bin:/bin instead of inheriting the naming server's
// environment.
package exec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/marmos91/dfs/internal/codes"
	"github.com/marmos91/dfs/internal/config"
)

// Runner executes a fetched file's bytes as a shell script, subject to the
// gating and bounds in Config.
type Runner struct {
	cfg config.ExecConfig
}

// New creates a Runner from the naming server's exec configuration.
func New(cfg config.ExecConfig) *Runner {
	return &Runner{cfg: cfg}
}

// Run writes script to a private temp file and executes it, returning
// combined stdout+stderr truncated to maxOutput bytes (the wire Record's
// data field is fixed-size). Returns InvalidRequest if EXEC is disabled.
func (r *Runner) Run(ctx context.Context, script []byte, maxOutput int) ([]byte, error) {
	if !r.cfg.Enabled {
		return nil, codes.NewInvalidRequestError("EXEC is disabled on this naming server")
	}

	dir, err := os.MkdirTemp("", "dfs-exec-*")
	if err != nil {
		return nil, codes.NewServerError(fmt.Errorf("exec: create temp dir: %w", err))
	}
	defer os.RemoveAll(dir)

	scriptPath := filepath.Join(dir, "script.sh")
	if err := os.WriteFile(scriptPath, script, 0700); err != nil {
		return nil, codes.NewServerError(fmt.Errorf("exec: write script: %w", err))
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", scriptPath)
	cmd.Dir = dir
	if r.cfg.Sandbox {
		// Minimal environment: no inherited secrets, no PATH beyond the
		// basics needed to run a shell script.
		cmd.Env = []string{"PATH=/usr/bin:/bin"}
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	_ = cmd.Run() // exit status is not surfaced; only captured output is

	output := out.Bytes()
	if len(output) > maxOutput {
		output = output[:maxOutput]
	}
	return output, nil
}
