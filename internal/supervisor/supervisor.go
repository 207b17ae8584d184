// Package supervisor launches the external scan and migrate tool processes
// and watches their exit status.
//
// Process exit and the tool's own STOP message on the control plane are two
// independent completion signals. The supervisor only logs exits; the
// orchestrator acts solely on the protocol signal.
package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"freight/internal/config"
	"freight/internal/logging"
	"freight/internal/protocol"
)

var commandContext = exec.CommandContext

// ExitEvent describes one supervised process leaving. Err is nil on a zero
// exit status.
type ExitEvent struct {
	Tool   string
	Dir    string
	PID    int
	Err    error
	Stderr string
}

// Supervisor spawns worker tool processes. It never kills them: shutdown
// leaves in-flight workers running, and a worker that exits without a STOP
// only produces a log line.
type Supervisor struct {
	cfg    *config.Config
	logger *slog.Logger
	onExit func(ExitEvent)

	wg sync.WaitGroup
}

// Option configures optional supervisor behavior.
type Option func(*Supervisor)

// WithExitHook registers a callback invoked after every process exit, from
// the waiter goroutine.
func WithExitHook(hook func(ExitEvent)) Option {
	return func(s *Supervisor) { s.onExit = hook }
}

// New constructs a supervisor for the configured tools.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "supervisor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Launch starts the tool process for a directory and returns its OS pid
// immediately after spawn. The invocation contract is 'scan <dir>' and
// 'migrate <dir> <dest>', with dest computed as destRoot/base(dir).
//
// ctx gates the spawn only: a canceled context stops new launches but is
// never attached to the process, so shutdown leaves started workers alive.
func (s *Supervisor) Launch(ctx context.Context, tool, dir string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("launch %s worker for %s: %w", tool, dir, err)
	}

	var args []string
	var binary string
	switch tool {
	case protocol.ToolScan:
		binary = s.cfg.Workers.ScanTool
		args = []string{dir}
	case protocol.ToolMigrate:
		binary = s.cfg.Workers.MigrateTool
		args = []string{dir, filepath.Join(s.cfg.Paths.DestDir, filepath.Base(dir))}
	default:
		return 0, fmt.Errorf("unknown tool %q", tool)
	}

	// Workers outlive the run that launched them; a run-scoped context
	// here would SIGKILL them on cancel.
	cmd := commandContext(context.Background(), binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(),
		"FREIGHT_SOCKET="+s.cfg.Paths.ControlSocket,
		"FREIGHT_RSYNC_FLAGS="+s.cfg.Workers.RsyncFlags,
		fmt.Sprintf("FREIGHT_PARALLEL=%d", s.cfg.Workers.ParallelWorkers),
		fmt.Sprintf("FREIGHT_RETRY_ATTEMPTS=%d", s.cfg.Workers.RetryAttempts),
		fmt.Sprintf("FREIGHT_SOCKET_RETRY_INTERVAL=%d", s.cfg.Workers.SocketRetryInterval),
		"FREIGHT_LARGE_DIR_SIZE="+s.cfg.Workers.LargeDirectorySize,
	)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s worker for %s: %w", tool, dir, err)
	}
	pid := cmd.Process.Pid
	s.logger.Info("worker launched",
		logging.String(logging.FieldTool, tool),
		logging.String(logging.FieldDirectory, dir),
		logging.Int(logging.FieldPID, pid))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.await(tool, dir, pid, cmd, &stderr)
	}()
	return pid, nil
}

// await logs the process exit. Informational only; orchestration trusts
// the protocol STOP instead.
func (s *Supervisor) await(tool, dir string, pid int, cmd *exec.Cmd, stderr *bytes.Buffer) {
	err := cmd.Wait()
	event := ExitEvent{Tool: tool, Dir: dir, PID: pid, Err: err, Stderr: strings.TrimSpace(stderr.String())}

	if err != nil {
		var exitErr *exec.ExitError
		attrs := []logging.Attr{
			logging.String(logging.FieldTool, tool),
			logging.String(logging.FieldDirectory, dir),
			logging.Int(logging.FieldPID, pid),
			logging.Error(err),
		}
		if errors.As(err, &exitErr) && event.Stderr != "" {
			attrs = append(attrs, logging.String("stderr", event.Stderr))
		}
		s.logger.Error("worker process failed", logging.Args(attrs...)...)
	} else {
		s.logger.Info("worker process exited",
			logging.String(logging.FieldTool, tool),
			logging.String(logging.FieldDirectory, dir),
			logging.Int(logging.FieldPID, pid))
	}

	if s.onExit != nil {
		s.onExit(event)
	}
}

// WaitExits blocks until every watcher goroutine for already-launched
// processes has finished. Tests use it for determinism.
func (s *Supervisor) WaitExits() {
	s.wg.Wait()
}
