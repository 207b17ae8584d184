package supervisor_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"freight/internal/logging"
	"freight/internal/supervisor"
	"freight/internal/testsupport"
)

func TestLaunchReturnsPIDAndReportsExit(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedTools(0))

	var mu sync.Mutex
	var exits []supervisor.ExitEvent
	sup := supervisor.New(cfg, logging.NewNop(), supervisor.WithExitHook(func(evt supervisor.ExitEvent) {
		mu.Lock()
		exits = append(exits, evt)
		mu.Unlock()
	}))

	dir := filepath.Join(cfg.Paths.SourceDir, "users")
	pid, err := sup.Launch(context.Background(), "scan", dir)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("expected a real pid, got %d", pid)
	}

	sup.WaitExits()
	mu.Lock()
	defer mu.Unlock()
	if len(exits) != 1 {
		t.Fatalf("expected 1 exit event, got %d", len(exits))
	}
	if exits[0].Err != nil {
		t.Fatalf("stub exited nonzero: %v", exits[0].Err)
	}
	if exits[0].Tool != "scan" || exits[0].Dir != dir {
		t.Fatalf("unexpected exit event: %+v", exits[0])
	}
}

func TestLaunchFailingToolReportsExitError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedTools(3))

	done := make(chan supervisor.ExitEvent, 1)
	sup := supervisor.New(cfg, logging.NewNop(), supervisor.WithExitHook(func(evt supervisor.ExitEvent) {
		done <- evt
	}))

	if _, err := sup.Launch(context.Background(), "migrate", filepath.Join(cfg.Paths.SourceDir, "a")); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	sup.WaitExits()

	evt := <-done
	if evt.Err == nil {
		t.Fatal("expected exit error from nonzero status")
	}
}

func TestLaunchedWorkerSurvivesContextCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithToolScript("#!/bin/sh\nsleep 0.3\nexit 0\n"))

	done := make(chan supervisor.ExitEvent, 1)
	sup := supervisor.New(cfg, logging.NewNop(), supervisor.WithExitHook(func(evt supervisor.ExitEvent) {
		done <- evt
	}))

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := sup.Launch(ctx, "scan", filepath.Join(cfg.Paths.SourceDir, "users")); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	cancel()

	sup.WaitExits()
	evt := <-done
	if evt.Err != nil {
		t.Fatalf("worker should run to completion after cancel, got exit err: %v", evt.Err)
	}

	if _, err := sup.Launch(ctx, "scan", filepath.Join(cfg.Paths.SourceDir, "more")); err == nil {
		t.Fatal("expected launch with canceled context to be rejected")
	}
}

func TestLaunchMissingBinaryFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workers.ScanTool = filepath.Join(t.TempDir(), "no-such-tool")

	sup := supervisor.New(cfg, logging.NewNop())
	if _, err := sup.Launch(context.Background(), "scan", cfg.Paths.SourceDir); err == nil {
		t.Fatal("expected spawn error for missing binary")
	}
}

func TestLaunchRejectsUnknownTool(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedTools(0))
	sup := supervisor.New(cfg, logging.NewNop())
	if _, err := sup.Launch(context.Background(), "compress", "/tmp"); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}
