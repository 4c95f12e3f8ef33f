package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/sneakbots/sentinel/pkg/models"
)

// WorkerFlag is the argument that switches the sentinel binary into
// deployment worker mode.
const WorkerFlag = "-deployment-worker"

// ProcessLauncher starts moderation workers by re-executing the running
// binary in worker mode. The start event is handed over as JSON on stdin
// so credentials in the conf never appear in the process list.
type ProcessLauncher struct {
	binary     string
	configPath string
	logger     *slog.Logger
}

// NewProcessLauncher resolves the current executable as the worker binary.
func NewProcessLauncher(configPath string, logger *slog.Logger) (*ProcessLauncher, error) {
	binary, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessLauncher{binary: binary, configPath: configPath, logger: logger}, nil
}

// Launch starts the worker process. The child gets the controller's
// stdout/stderr so worker logs land in the same place.
func (l *ProcessLauncher) Launch(ctx context.Context, ev *models.DeploymentEvent) (WorkerHandle, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal start event: %w", err)
	}

	args := []string{WorkerFlag}
	if l.configPath != "" {
		args = append(args, "-config", l.configPath)
	}

	// Not CommandContext: the controller owns termination via signals.
	cmd := exec.Command(l.binary, args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker process: %w", err)
	}
	l.logger.Info("Worker process started", "deployment_id", ev.DeploymentID, "pid", cmd.Process.Pid)
	return &processHandle{cmd: cmd}, nil
}

type processHandle struct {
	cmd *exec.Cmd
}

func (h *processHandle) Wait() error {
	return h.cmd.Wait()
}

func (h *processHandle) Signal(sig os.Signal) error {
	return h.cmd.Process.Signal(sig)
}

func (h *processHandle) Kill() error {
	return h.cmd.Process.Kill()
}
