// Package orchestrator advances each source directory through the scan and
// migrate phases based on STOP messages observed on the status bus.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"freight/internal/bus"
	"freight/internal/config"
	"freight/internal/logging"
	"freight/internal/protocol"
)

// Launcher starts one worker tool process. *supervisor.Supervisor is the
// production implementation.
type Launcher interface {
	Launch(ctx context.Context, tool, dir string) (int, error)
}

// ErrNoDirectories is returned when the source root has nothing to migrate.
var ErrNoDirectories = errors.New("no migratable directories under source root")

// Orchestrator runs one migration: a state machine per directory, driven
// exclusively by protocol STOP events. Jobs for different directories are
// independent; none ever waits on another.
type Orchestrator struct {
	cfg      *config.Config
	launcher Launcher
	bus      *bus.Bus
	logger   *slog.Logger
	runID    string

	jobTimeout time.Duration

	mu   sync.RWMutex
	jobs map[string]*job
}

// New constructs an orchestrator for one run.
func New(cfg *config.Config, launcher Launcher, b *bus.Bus, logger *slog.Logger, runID string) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		launcher:   launcher,
		bus:        b,
		logger:     logging.NewComponentLogger(logger, "orchestrator").With(logging.String(logging.FieldRunID, runID)),
		runID:      runID,
		jobTimeout: time.Duration(cfg.Workers.JobTimeoutSeconds) * time.Second,
		jobs:       make(map[string]*job),
	}
}

// RunID identifies this migration run.
func (o *Orchestrator) RunID() string { return o.runID }

// Run discovers the directories under the source root, launches a scan
// worker for each, and advances jobs until every one is terminal or the
// context is canceled. Discovery failure is the only error that aborts the
// whole run; per-directory failures are terminal for that directory only.
func (o *Orchestrator) Run(ctx context.Context) error {
	dirs, err := discoverDirectories(o.cfg.Paths.SourceDir)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		return ErrNoDirectories
	}

	// Subscribe before launching anything so no early STOP can be missed.
	sub := o.bus.Subscribe("orchestrator")
	defer o.bus.Unsubscribe(sub)

	o.mu.Lock()
	for _, dir := range dirs {
		o.jobs[dir] = &job{
			dir:       dir,
			name:      filepath.Base(dir),
			state:     StatePending,
			updatedAt: time.Now(),
		}
	}
	o.mu.Unlock()

	o.logger.Info("migration run starting",
		logging.Int("directories", len(dirs)),
		logging.String("source", o.cfg.Paths.SourceDir),
		logging.String("dest", o.cfg.Paths.DestDir))

	for _, dir := range dirs {
		o.startScan(ctx, dir)
	}

	var expiry <-chan time.Time
	if o.jobTimeout > 0 {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		expiry = ticker.C
	}

	for {
		if o.allTerminal() {
			o.logger.Info("migration run finished")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-sub.C():
			o.handleMessage(ctx, msg)
		case <-expiry:
			o.expireStalledJobs()
		}
	}
}

// Jobs returns a copy of every job, sorted by directory name.
func (o *Orchestrator) Jobs() []JobView {
	o.mu.RLock()
	views := make([]JobView, 0, len(o.jobs))
	for _, j := range o.jobs {
		views = append(views, j.view())
	}
	o.mu.RUnlock()

	sort.Slice(views, func(i, k int) bool { return views[i].Dir < views[k].Dir })
	return views
}

// handleMessage applies one bus message. Only STOP messages from the scan
// and migrate tools cause transitions; everything else is registry-only
// traffic.
func (o *Orchestrator) handleMessage(ctx context.Context, msg protocol.Message) {
	stop, ok := msg.(protocol.Stop)
	if !ok {
		return
	}

	switch stop.Tool {
	case protocol.ToolScan:
		o.handleScanStop(ctx, stop)
	case protocol.ToolMigrate:
		o.handleMigrateStop(stop)
	}
}

func (o *Orchestrator) handleScanStop(ctx context.Context, stop protocol.Stop) {
	o.mu.Lock()
	j, ok := o.jobs[stop.Dir]
	if !ok || j.state != StateScanning {
		o.mu.Unlock()
		return
	}
	if stop.Ok() {
		j.transition(StateScanOk)
	} else {
		j.transition(StateScanFailed)
	}
	scanOk := j.state == StateScanOk
	o.mu.Unlock()

	if scanOk {
		o.logger.Info("scan succeeded",
			logging.String(logging.FieldDirectory, stop.Dir))
		o.startMigrate(ctx, stop.Dir)
	} else {
		o.logger.Warn("scan failed",
			logging.String(logging.FieldDirectory, stop.Dir),
			logging.String("status", stop.Status))
	}
}

func (o *Orchestrator) handleMigrateStop(stop protocol.Stop) {
	o.mu.Lock()
	defer o.mu.Unlock()

	j, ok := o.jobs[stop.Dir]
	if !ok || j.state != StateMigrating {
		return
	}
	if stop.Ok() {
		j.transition(StateMigrateOk)
		o.logger.Info("migration succeeded",
			logging.String(logging.FieldDirectory, stop.Dir))
	} else {
		j.transition(StateMigrateFailed)
		o.logger.Warn("migration failed",
			logging.String(logging.FieldDirectory, stop.Dir),
			logging.String("status", stop.Status))
	}
}

// startScan moves a pending job into scanning. A spawn failure is terminal
// for this directory; there are no retries.
func (o *Orchestrator) startScan(ctx context.Context, dir string) {
	pid, err := o.launcher.Launch(ctx, protocol.ToolScan, dir)

	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[dir]
	if !ok {
		return
	}
	if err != nil {
		j.transition(StateScanFailed)
		o.logger.Error("failed to launch scan worker",
			logging.String(logging.FieldDirectory, dir),
			logging.Error(err))
		return
	}
	j.scanPID = pid
	j.transition(StateScanning)
	j.arm(o.jobTimeout)
}

// startMigrate launches the second phase after a successful scan. Same
// no-retry spawn policy as startScan.
func (o *Orchestrator) startMigrate(ctx context.Context, dir string) {
	pid, err := o.launcher.Launch(ctx, protocol.ToolMigrate, dir)

	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[dir]
	if !ok || j.state != StateScanOk {
		return
	}
	if err != nil {
		j.transition(StateMigrateFailed)
		o.logger.Error("failed to launch migrate worker",
			logging.String(logging.FieldDirectory, dir),
			logging.Error(err))
		return
	}
	j.migratePID = pid
	j.transition(StateMigrating)
	j.arm(o.jobTimeout)
}

// expireStalledJobs escalates jobs whose worker never sent a STOP within
// the configured deadline. Disabled when job_timeout_seconds is zero.
func (o *Orchestrator) expireStalledJobs() {
	now := time.Now()
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, j := range o.jobs {
		if j.state != StateScanning && j.state != StateMigrating {
			continue
		}
		if j.deadline.IsZero() || now.Before(j.deadline) {
			continue
		}
		stalled := j.state
		j.transition(StateTimedOut)
		o.logger.Error("job timed out waiting for worker STOP",
			logging.String(logging.FieldDirectory, j.dir),
			logging.String("stalled_state", string(stalled)),
			logging.Duration("timeout", o.jobTimeout))
	}
}

func (o *Orchestrator) allTerminal() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, j := range o.jobs {
		if !j.state.Terminal() {
			return false
		}
	}
	return true
}

func (j *job) transition(next State) {
	j.state = next
	j.updatedAt = time.Now()
	if next.Terminal() {
		j.deadline = time.Time{}
	}
}

func (j *job) arm(timeout time.Duration) {
	if timeout > 0 {
		j.deadline = time.Now().Add(timeout)
	}
}
