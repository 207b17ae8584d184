package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"freight/internal/bus"
	"freight/internal/logging"
	"freight/internal/protocol"
	"freight/internal/registry"
)

// Server accepts worker connections on the control-plane socket. Each
// connection is handled by its own goroutine; decoded messages update the
// shared registry and are republished on the status bus. The protocol is
// one-way: the server never writes to a worker.
type Server struct {
	path     string
	registry *registry.Registry
	bus      *bus.Bus
	logger   *slog.Logger

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewServer binds the control socket, removing any stale socket file left
// by a previous run.
func NewServer(ctx context.Context, path string, reg *registry.Registry, b *bus.Bus, logger *slog.Logger) (*Server, error) {
	if reg == nil || b == nil {
		return nil, errors.New("control server requires registry and bus")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on control socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:     path,
		registry: reg,
		bus:      b,
		logger:   logging.NewComponentLogger(logger, "control"),
		listener: listener,
		ctx:      serverCtx,
		cancel:   cancel,
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// Path returns the bound socket path.
func (s *Server) Path() string { return s.path }

// Serve starts the accept loop. It returns immediately; connections are
// handled until Close or context cancellation.
func (s *Server) Serve() {
	s.logger.Info("control plane listening", logging.String("socket", s.path))
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
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.trackConn(conn)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.untrackConn(c)
				s.handleConnection(c)
			}(conn)
		}
	}()
}

func (s *Server) trackConn(c net.Conn) {
	s.connMu.Lock()
	s.conns[c] = struct{}{}
	s.connMu.Unlock()
}

func (s *Server) untrackConn(c net.Conn) {
	s.connMu.Lock()
	delete(s.conns, c)
	s.connMu.Unlock()
}

// Close stops accepting, severs any open worker connections so their
// handlers can finish, waits for them, and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.connMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.connMu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove control socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

// handleConnection reads newline-delimited protocol lines until EOF or a
// read error. One undecodable line is logged and skipped, never fatal to
// the connection; a read error terminates only this handler.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	var (
		identity    protocol.WorkerID
		hasIdentity bool
	)
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		// Blank lines (workers emitting stray trailing newlines) are
		// tolerated rather than reported as malformed messages.
		if len(line) == 0 {
			continue
		}

		msg, err := protocol.Parse(line)
		if err != nil {
			s.logger.Warn("undecodable control message", logging.Error(err))
			continue
		}

		identity = s.registry.Apply(msg)
		hasIdentity = true
		s.bus.Publish(msg)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Warn("control connection read failed", logging.Error(err))
	}

	if hasIdentity {
		s.registry.MarkDisconnected(identity)
		s.logger.Debug("worker disconnected",
			logging.String(logging.FieldTool, identity.Tool),
			logging.String(logging.FieldDirectory, identity.Dir))
	}
}
