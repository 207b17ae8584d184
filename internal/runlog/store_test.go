package runlog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"freight/internal/bus"
	"freight/internal/config"
	"freight/internal/logging"
	"freight/internal/protocol"
	"freight/internal/runlog"
	"freight/internal/testsupport"
)

func mustOpen(t *testing.T, cfg *config.Config) *runlog.Store {
	t.Helper()
	store, err := runlog.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndListRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := mustOpen(t, cfg)

	ctx := context.Background()
	if err := store.RecordRun(ctx, "run-1", "/src", "/dst"); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	bytes := uint64(4096)
	if err := store.RecordMessage(ctx, "run-1", protocol.Start{Tool: "scan", Dir: "/src/a"}); err != nil {
		t.Fatalf("RecordMessage(start) failed: %v", err)
	}
	if err := store.RecordMessage(ctx, "run-1", protocol.Stop{Tool: "scan", Dir: "/src/a", Status: "ok", Bytes: &bytes}); err != nil {
		t.Fatalf("RecordMessage(stop) failed: %v", err)
	}
	if err := store.RecordProcessExit(ctx, "run-1", "scan", "/src/a", 4242, nil); err != nil {
		t.Fatalf("RecordProcessExit failed: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", "completed"); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.ID != "run-1" || run.SourceDir != "/src" || run.DestDir != "/dst" {
		t.Fatalf("unexpected run: %#v", run)
	}
	if run.FinishedAt == nil || run.Outcome != "completed" {
		t.Fatalf("run not finished: %#v", run)
	}

	events, err := store.ListEvents(ctx, "run-1", 0)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Kind != "START" || events[1].Kind != "STOP" || events[2].Kind != "EXIT" {
		t.Fatalf("unexpected event order: %#v", events)
	}
	if events[1].Bytes == nil || *events[1].Bytes != 4096 {
		t.Fatalf("stop event lost its byte count: %#v", events[1])
	}
	if events[2].Status != "exit_ok" {
		t.Fatalf("unexpected exit status: %q", events[2].Status)
	}
}

func TestProcessExitRecordsError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := mustOpen(t, cfg)

	ctx := context.Background()
	if err := store.RecordRun(ctx, "run-err", "/src", "/dst"); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := store.RecordProcessExit(ctx, "run-err", "migrate", "/src/b", 99, errors.New("exit status 2")); err != nil {
		t.Fatalf("RecordProcessExit failed: %v", err)
	}

	events, err := store.ListEvents(ctx, "run-err", 0)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Status != "exit_error" {
		t.Fatalf("unexpected events: %#v", events)
	}
}

func TestReopenPreservesHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := mustOpen(t, cfg)

	ctx := context.Background()
	if err := store.RecordRun(ctx, "run-persist", "/src", "/dst"); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := mustOpen(t, cfg)
	runs, err := reopened.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns after reopen failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-persist" {
		t.Fatalf("history lost across reopen: %#v", runs)
	}
}

func TestRecorderTailsBus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := mustOpen(t, cfg)

	ctx := context.Background()
	if err := store.RecordRun(ctx, "run-bus", "/src", "/dst"); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	b := bus.New(16)
	recorder := runlog.NewRecorder(store, b, "run-bus", logging.NewNop())
	defer recorder.Close()

	b.Publish(protocol.Start{Tool: "scan", Dir: "/src/a"})
	b.Publish(protocol.Stop{Tool: "scan", Dir: "/src/a", Status: "ok"})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		events, err := store.ListEvents(ctx, "run-bus", 0)
		if err != nil {
			t.Fatalf("ListEvents failed: %v", err)
		}
		if len(events) == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("recorder never wrote both events")
}
