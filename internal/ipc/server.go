package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"freight/internal/daemon"
	"freight/internal/logging"
	"freight/internal/logs"
	"freight/internal/orchestrator"
	"freight/internal/runlog"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Freight", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func convertJobs(views []orchestrator.JobView) []Job {
	jobs := make([]Job, 0, len(views))
	for _, view := range views {
		jobs = append(jobs, Job{
			Dir:        view.Dir,
			Name:       view.Name,
			State:      string(view.State),
			ScanPID:    view.ScanPID,
			MigratePID: view.MigratePID,
			UpdatedAt:  view.UpdatedAt,
		})
	}
	return jobs
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.LockPath = status.LockPath
	resp.ControlSocket = status.ControlSocket
	resp.HistoryDBPath = status.HistoryDBPath
	resp.Workers = status.Workers
	if status.Run != nil {
		resp.Run = &RunStatus{
			ID:        status.Run.ID,
			SourceDir: status.Run.SourceDir,
			DestDir:   status.Run.DestDir,
			StartedAt: status.Run.StartedAt,
			Active:    status.Run.Active,
			Error:     status.Run.Error,
			Jobs:      convertJobs(status.Run.Jobs),
		}
	}
	return nil
}

func (s *service) Migrate(req MigrateRequest, resp *MigrateResponse) error {
	s.logger.Debug("migration run requested",
		logging.String("source", req.SourceDir),
		logging.String("dest", req.DestDir))
	runID, err := s.daemon.Migrate(s.ctx, req.SourceDir, req.DestDir)
	if err != nil {
		resp.Accepted = false
		resp.Message = err.Error()
		return nil
	}
	resp.Accepted = true
	resp.RunID = runID
	resp.Message = "migration run started"
	s.logger.Info("migration run started via IPC",
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldEventType, "run_start"))
	return nil
}

func (s *service) Workers(_ WorkersRequest, resp *WorkersResponse) error {
	workers := s.daemon.Workers()
	resp.Workers = make([]Worker, 0, len(workers))
	for _, worker := range workers {
		resp.Workers = append(resp.Workers, Worker{
			Tool:        worker.Tool,
			Dir:         worker.Dir,
			Status:      worker.Status,
			LastMessage: worker.LastMessage,
			Bytes:       worker.Bytes,
			Host:        worker.Host,
			PID:         worker.PID,
			Connected:   worker.Connected,
		})
	}
	return nil
}

func (s *service) Jobs(_ JobsRequest, resp *JobsResponse) error {
	resp.Jobs = convertJobs(s.daemon.Jobs())
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	runs, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Runs = make([]Run, 0, len(runs))
	for _, run := range runs {
		resp.Runs = append(resp.Runs, convertRun(run))
	}
	return nil
}

func (s *service) RunEvents(req RunEventsRequest, resp *RunEventsResponse) error {
	if req.RunID == "" {
		return errors.New("run events require a run id")
	}
	events, err := s.daemon.RunEvents(s.ctx, req.RunID, req.Limit)
	if err != nil {
		return err
	}
	resp.Events = make([]Event, 0, len(events))
	for _, ev := range events {
		resp.Events = append(resp.Events, Event{
			At:     ev.At,
			Kind:   ev.Kind,
			Tool:   ev.Tool,
			Dir:    ev.Dir,
			Status: ev.Status,
			Bytes:  ev.Bytes,
			Detail: ev.Detail,
		})
	}
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait < 0 {
		wait = 0
	}

	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}

	result, err := logs.Tail(ctx, s.daemon.LogPath(), logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func convertRun(run runlog.Run) Run {
	return Run{
		ID:         run.ID,
		SourceDir:  run.SourceDir,
		DestDir:    run.DestDir,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Outcome:    run.Outcome,
	}
}
