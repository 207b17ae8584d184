package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"freight/internal/bus"
	"freight/internal/config"
	"freight/internal/control"
	"freight/internal/logging"
	"freight/internal/orchestrator"
	"freight/internal/registry"
	"freight/internal/runlog"
	"freight/internal/supervisor"
)

// ErrRunInProgress is returned when a migration run is requested while one
// is still active. The daemon executes one run at a time.
var ErrRunInProgress = errors.New("a migration run is already in progress")

// Daemon owns the shared control-plane state and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Registry
	bus      *bus.Bus
	store    *runlog.Store
	logPath  string

	lockPath string
	lock     *flock.Flock

	control *control.Server

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	mu  sync.Mutex
	run *migrationRun
}

// migrationRun tracks one in-flight (or most recently finished) run.
type migrationRun struct {
	id        string
	sourceDir string
	destDir   string
	startedAt time.Time
	orch      *orchestrator.Orchestrator
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
}

// RunStatus describes the active or most recent migration run.
type RunStatus struct {
	ID        string
	SourceDir string
	DestDir   string
	StartedAt time.Time
	Active    bool
	Error     string
	Jobs      []orchestrator.JobView
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	LockPath      string
	ControlSocket string
	HistoryDBPath string
	Workers       int
	Run           *RunStatus
}

// Worker is one registry record together with its identity, in a form the
// IPC layer can serialize.
type Worker struct {
	Tool        string
	Dir         string
	Status      string
	LastMessage string
	Bytes       *uint64
	Host        string
	PID         int
	Connected   bool
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *runlog.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "freightd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		registry: registry.New(),
		bus:      bus.New(bus.DefaultCapacity),
		store:    store,
		logPath:  cfg.LogFilePath(),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and opens the worker control socket.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another freight daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	srv, err := control.NewServer(d.ctx, d.cfg.Paths.ControlSocket, d.registry, d.bus, d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("open control socket: %w", err)
	}
	srv.Serve()
	d.control = srv

	d.running.Store(true)
	d.logger.Info("freight daemon started",
		logging.String("lock", d.lockPath),
		logging.String("socket", d.cfg.Paths.ControlSocket))
	return nil
}

// Migrate begins a migration run from source to dest. Empty arguments fall
// back to the configured paths. It returns the run ID immediately; the run
// itself proceeds in the background.
func (d *Daemon) Migrate(ctx context.Context, source, dest string) (string, error) {
	if !d.running.Load() {
		return "", errors.New("daemon is not running")
	}

	runCfg := *d.cfg
	if source != "" {
		runCfg.Paths.SourceDir = source
	}
	if dest != "" {
		runCfg.Paths.DestDir = dest
	}
	if err := runCfg.ValidateMigration(); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.run != nil {
		select {
		case <-d.run.done:
		default:
			return "", ErrRunInProgress
		}
	}

	runID := uuid.NewString()
	if err := d.store.RecordRun(ctx, runID, runCfg.Paths.SourceDir, runCfg.Paths.DestDir); err != nil {
		return "", err
	}

	recorder := runlog.NewRecorder(d.store, d.bus, runID, d.logger)
	sup := supervisor.New(&runCfg, d.logger, supervisor.WithExitHook(func(ev supervisor.ExitEvent) {
		recorder.RecordExit(ev.Tool, ev.Dir, ev.PID, ev.Err)
	}))
	orch := orchestrator.New(&runCfg, sup, d.bus, d.logger, runID)

	runCtx, cancelRun := context.WithCancel(d.ctx)
	run := &migrationRun{
		id:        runID,
		sourceDir: runCfg.Paths.SourceDir,
		destDir:   runCfg.Paths.DestDir,
		startedAt: time.Now(),
		orch:      orch,
		cancel:    cancelRun,
		done:      make(chan struct{}),
	}
	d.run = run

	go func() {
		err := orch.Run(runCtx)
		run.err = err
		cancelRun()

		outcome := "completed"
		switch {
		case errors.Is(err, context.Canceled):
			outcome = "canceled"
		case err != nil:
			outcome = "failed: " + err.Error()
		}
		if finishErr := d.store.FinishRun(context.Background(), runID, outcome); finishErr != nil {
			d.logger.Warn("finish run record", logging.Error(finishErr))
		}
		close(run.done)
		recorder.Close()

		// Workers are left running past the run's end; their exits still
		// reach the recorder directly whenever they arrive.
		sup.WaitExits()
	}()

	d.logger.Info("migration run accepted",
		logging.String(logging.FieldRunID, runID),
		logging.String("source", runCfg.Paths.SourceDir),
		logging.String("dest", runCfg.Paths.DestDir))
	return runID, nil
}

// WaitRun blocks until the current run finishes and returns its error.
// It returns immediately when no run was ever started.
func (d *Daemon) WaitRun(ctx context.Context) error {
	d.mu.Lock()
	run := d.run
	d.mu.Unlock()
	if run == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-run.done:
		return run.err
	}
}

// Status reports daemon runtime information.
func (d *Daemon) Status(context.Context) Status {
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		LockPath:      d.lockPath,
		ControlSocket: d.cfg.Paths.ControlSocket,
		HistoryDBPath: d.store.Path(),
		Workers:       d.registry.Len(),
	}

	d.mu.Lock()
	run := d.run
	d.mu.Unlock()
	if run != nil {
		active := true
		select {
		case <-run.done:
			active = false
		default:
		}
		rs := &RunStatus{
			ID:        run.id,
			SourceDir: run.sourceDir,
			DestDir:   run.destDir,
			StartedAt: run.startedAt,
			Active:    active,
			Jobs:      run.orch.Jobs(),
		}
		if !active && run.err != nil {
			rs.Error = run.err.Error()
		}
		status.Run = rs
	}
	return status
}

// Workers returns the registry contents sorted by tool then directory.
func (d *Daemon) Workers() []Worker {
	snapshot := d.registry.Snapshot()
	workers := make([]Worker, 0, len(snapshot))
	for id, record := range snapshot {
		workers = append(workers, Worker{
			Tool:        id.Tool,
			Dir:         id.Dir,
			Status:      record.Status,
			LastMessage: record.LastMessage,
			Bytes:       record.Bytes,
			Host:        record.Host,
			PID:         record.PID,
			Connected:   record.Connected,
		})
	}
	sort.Slice(workers, func(i, k int) bool {
		if workers[i].Tool != workers[k].Tool {
			return workers[i].Tool < workers[k].Tool
		}
		return workers[i].Dir < workers[k].Dir
	})
	return workers
}

// Jobs returns the job table of the active or most recent run.
func (d *Daemon) Jobs() []orchestrator.JobView {
	d.mu.Lock()
	run := d.run
	d.mu.Unlock()
	if run == nil {
		return nil
	}
	return run.orch.Jobs()
}

// History lists recorded runs, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]runlog.Run, error) {
	return d.store.ListRuns(ctx, limit)
}

// RunEvents lists the recorded events of one run.
func (d *Daemon) RunEvents(ctx context.Context, runID string, limit int) ([]runlog.Event, error) {
	return d.store.ListEvents(ctx, runID, limit)
}

// LogPath returns the daemon log file location.
func (d *Daemon) LogPath() string { return d.logPath }

// Stop cancels the active run, closes the control socket, and releases the
// daemon lock. In-flight worker processes are left running.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	if d.run != nil {
		d.run.cancel()
	}
	d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.control != nil {
		d.control.Close()
		d.control = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("freight daemon stopped")
}

// Close stops the daemon and releases the history store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
