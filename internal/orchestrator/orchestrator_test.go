package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"freight/internal/bus"
	"freight/internal/config"
	"freight/internal/logging"
	"freight/internal/orchestrator"
	"freight/internal/protocol"
	"freight/internal/testsupport"
)

// recordingLauncher stands in for the process supervisor and notes every
// launch request.
type recordingLauncher struct {
	mu       sync.Mutex
	launches []launch
	failFor  map[string]error // keyed by tool+":"+dir
	nextPID  int
}

type launch struct {
	tool string
	dir  string
}

func newRecordingLauncher() *recordingLauncher {
	return &recordingLauncher{failFor: make(map[string]error), nextPID: 1000}
}

func (l *recordingLauncher) Launch(_ context.Context, tool, dir string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, ok := l.failFor[tool+":"+dir]; ok {
		return 0, err
	}
	l.launches = append(l.launches, launch{tool: tool, dir: dir})
	l.nextPID++
	return l.nextPID, nil
}

func (l *recordingLauncher) count(tool, dir string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, entry := range l.launches {
		if entry.tool == tool && entry.dir == dir {
			n++
		}
	}
	return n
}

func runOrchestrator(t *testing.T, cfg *config.Config, launcher orchestrator.Launcher, b *bus.Bus) (*orchestrator.Orchestrator, <-chan error) {
	t.Helper()
	o := orchestrator.New(cfg, launcher, b, logging.NewNop(), "run-test")
	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { done <- o.Run(ctx) }()
	return o, done
}

func waitForState(t *testing.T, o *orchestrator.Orchestrator, dir string, want orchestrator.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, view := range o.Jobs() {
			if view.Dir == dir && view.State == want {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s; jobs: %+v", dir, want, o.Jobs())
}

func TestDiscoverySkipsHiddenDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SourceDirs(t, cfg, "a", "b", ".cache")

	launcher := newRecordingLauncher()
	b := bus.New(64)
	o, done := runOrchestrator(t, cfg, launcher, b)

	dirA := filepath.Join(cfg.Paths.SourceDir, "a")
	dirB := filepath.Join(cfg.Paths.SourceDir, "b")
	waitForState(t, o, dirA, orchestrator.StateScanning)
	waitForState(t, o, dirB, orchestrator.StateScanning)

	if len(o.Jobs()) != 2 {
		t.Fatalf("expected 2 jobs, got %+v", o.Jobs())
	}

	// Finish both so Run returns.
	bytes := uint64(1000)
	b.Publish(protocol.Stop{Tool: "scan", Dir: dirA, Status: "ok", Bytes: &bytes})
	b.Publish(protocol.Stop{Tool: "scan", Dir: dirB, Status: "error"})
	waitForState(t, o, dirA, orchestrator.StateMigrating)
	b.Publish(protocol.Stop{Tool: "migrate", Dir: dirA, Status: "ok"})

	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if n := launcher.count("migrate", dirA); n != 1 {
		t.Fatalf("expected exactly one migrate launch for a, got %d", n)
	}
	if n := launcher.count("migrate", dirB); n != 0 {
		t.Fatalf("failed scan must not trigger migrate, got %d launches", n)
	}
	waitForState(t, o, dirB, orchestrator.StateScanFailed)
}

func TestScanStopWithoutOkStatusNeverMigrates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SourceDirs(t, cfg, "solo")

	launcher := newRecordingLauncher()
	b := bus.New(64)
	o, done := runOrchestrator(t, cfg, launcher, b)

	dir := filepath.Join(cfg.Paths.SourceDir, "solo")
	waitForState(t, o, dir, orchestrator.StateScanning)

	// Status absent counts as failure.
	b.Publish(protocol.Stop{Tool: "scan", Dir: dir})
	waitForState(t, o, dir, orchestrator.StateScanFailed)

	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if n := launcher.count("migrate", dir); n != 0 {
		t.Fatalf("expected no migrate launches, got %d", n)
	}
}

func TestOnlyStopMessagesCauseTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SourceDirs(t, cfg, "quiet")

	launcher := newRecordingLauncher()
	b := bus.New(64)
	o, _ := runOrchestrator(t, cfg, launcher, b)

	dir := filepath.Join(cfg.Paths.SourceDir, "quiet")
	waitForState(t, o, dir, orchestrator.StateScanning)

	b.Publish(protocol.Start{Tool: "scan", Dir: dir})
	b.Publish(protocol.Progress{Tool: "scan", Dir: dir, Text: "halfway"})
	b.Publish(protocol.Stop{Tool: "compress", Dir: dir, Status: "ok"})

	time.Sleep(50 * time.Millisecond)
	waitForState(t, o, dir, orchestrator.StateScanning)
}

func TestConcurrentScanCompletionsAdvanceIndependently(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("dir%02d", i)
	}
	testsupport.SourceDirs(t, cfg, names...)

	launcher := newRecordingLauncher()
	b := bus.New(256)
	o, done := runOrchestrator(t, cfg, launcher, b)

	for _, name := range names {
		waitForState(t, o, filepath.Join(cfg.Paths.SourceDir, name), orchestrator.StateScanning)
	}

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(dir string) {
			defer wg.Done()
			b.Publish(protocol.Stop{Tool: "scan", Dir: dir, Status: "ok"})
		}(filepath.Join(cfg.Paths.SourceDir, name))
	}
	wg.Wait()

	for _, name := range names {
		dir := filepath.Join(cfg.Paths.SourceDir, name)
		waitForState(t, o, dir, orchestrator.StateMigrating)
		b.Publish(protocol.Stop{Tool: "migrate", Dir: dir, Status: "ok"})
	}

	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	for _, name := range names {
		dir := filepath.Join(cfg.Paths.SourceDir, name)
		if n := launcher.count("migrate", dir); n != 1 {
			t.Fatalf("%s: expected one migrate launch, got %d", name, n)
		}
	}
}

func TestScanSpawnFailureIsTerminalForThatDirectoryOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SourceDirs(t, cfg, "bad", "good")

	launcher := newRecordingLauncher()
	badDir := filepath.Join(cfg.Paths.SourceDir, "bad")
	goodDir := filepath.Join(cfg.Paths.SourceDir, "good")
	launcher.failFor["scan:"+badDir] = errors.New("executable not found")

	b := bus.New(64)
	o, done := runOrchestrator(t, cfg, launcher, b)

	waitForState(t, o, badDir, orchestrator.StateScanFailed)
	waitForState(t, o, goodDir, orchestrator.StateScanning)

	b.Publish(protocol.Stop{Tool: "scan", Dir: goodDir, Status: "ok"})
	waitForState(t, o, goodDir, orchestrator.StateMigrating)
	b.Publish(protocol.Stop{Tool: "migrate", Dir: goodDir, Status: "ok"})

	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestMigrateSpawnFailureMarksJobFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SourceDirs(t, cfg, "only")

	launcher := newRecordingLauncher()
	dir := filepath.Join(cfg.Paths.SourceDir, "only")
	launcher.failFor["migrate:"+dir] = errors.New("executable not found")

	b := bus.New(64)
	o, done := runOrchestrator(t, cfg, launcher, b)
	waitForState(t, o, dir, orchestrator.StateScanning)

	b.Publish(protocol.Stop{Tool: "scan", Dir: dir, Status: "ok"})
	waitForState(t, o, dir, orchestrator.StateMigrateFailed)

	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestStalledJobTimesOut(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithJobTimeout(1))
	testsupport.SourceDirs(t, cfg, "stuck")

	launcher := newRecordingLauncher()
	b := bus.New(64)
	o, done := runOrchestrator(t, cfg, launcher, b)

	dir := filepath.Join(cfg.Paths.SourceDir, "stuck")
	waitForState(t, o, dir, orchestrator.StateScanning)
	waitForState(t, o, dir, orchestrator.StateTimedOut)

	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if n := launcher.count("migrate", dir); n != 0 {
		t.Fatalf("timed-out job must not migrate, got %d launches", n)
	}
}

func TestEmptySourceRootFailsDiscovery(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	launcher := newRecordingLauncher()
	o := orchestrator.New(cfg, launcher, bus.New(16), logging.NewNop(), "run-empty")
	if err := o.Run(context.Background()); !errors.Is(err, orchestrator.ErrNoDirectories) {
		t.Fatalf("expected ErrNoDirectories, got %v", err)
	}
}

func TestMissingSourceRootIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.SourceDir = filepath.Join(cfg.Paths.SourceDir, "does-not-exist")

	o := orchestrator.New(cfg, newRecordingLauncher(), bus.New(16), logging.NewNop(), "run-missing")
	if err := o.Run(context.Background()); err == nil {
		t.Fatal("expected discovery error for missing source root")
	}
}
