package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"freight/internal/config"
	"freight/internal/daemon"
	"freight/internal/ipc"
	"freight/internal/logging"
	"freight/internal/runlog"
	"freight/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *runlog.Store
	daemon     *daemon.Daemon
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedTools(0))

	configPath := filepath.Join(cfg.Paths.LogDir, "config.toml")
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("save config: %v", err)
	}

	store, err := runlog.Open(cfg)
	if err != nil {
		t.Fatalf("runlog.Open: %v", err)
	}

	logger := logging.NewNop()
	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		store.Close()
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := cfg.IPCSocketPath()
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		d.Close()
		store.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("unix sockets unavailable in sandbox: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
		store.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		socketPath: socketPath,
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Not running") {
		t.Fatalf("expected not-running daemon line, got %q", out)
	}
	if !strings.Contains(out, "Environment") || !strings.Contains(out, "Scan tool") {
		t.Fatalf("expected environment checks in output, got %q", out)
	}
}

func TestCLIWorkersCommandEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"workers"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("workers: %v", err)
	}
	if !strings.Contains(out, "No workers have reported in") {
		t.Fatalf("unexpected workers output: %q", out)
	}
}

func TestCLIHistoryCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if err := env.store.RecordRun(ctx, "run-alpha", "/src", "/dst"); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := env.store.FinishRun(ctx, "run-alpha", "completed"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	out, _, err := runCLI(t, []string{"history"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "run-alpha") || !strings.Contains(out, "completed") {
		t.Fatalf("history missing run: %q", out)
	}

	out, _, err = runCLI(t, []string{"history", "run-alpha"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history run-alpha: %v", err)
	}
	if !strings.Contains(out, "No events recorded for this run") {
		t.Fatalf("expected empty event trail message, got %q", out)
	}
}

func TestCLILogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	logPath := env.cfg.LogFilePath()
	if err := os.WriteFile(logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--lines", "2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs --lines: %v", err)
	}
	if strings.Contains(out, "first") {
		t.Fatalf("expected only trailing lines, got %q", out)
	}
	if !strings.Contains(out, "second") || !strings.Contains(out, "third") {
		t.Fatalf("unexpected logs output: %q", out)
	}
}

func TestCLIConfigValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}
}
