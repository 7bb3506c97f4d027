// Package control exposes the scheduler's run-now, shutdown and status
// operations over a unix domain socket, one JSON request per connection.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/turtacn/naa/internal/orchestrator"
	naaerrors "github.com/turtacn/naa/pkg/errors"
	"github.com/turtacn/naa/pkg/logger"
)

const (
	CmdRunNow   = "run-now"
	CmdShutdown = "shutdown"
	CmdStatus   = "status"
)

const defaultTimeout = 5 * time.Second

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK     bool                 `json:"ok"`
	Status *orchestrator.Status `json:"status,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// Handler is the scheduler side of the control surface. *orchestrator.Engine
// satisfies it.
type Handler interface {
	TriggerRunNow()
	RequestShutdown()
	Status() orchestrator.Status
}

type Server struct {
	socketPath string
	handler    Handler
	timeout    time.Duration
	logger     logger.Logger
}

func NewServer(path string, h Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.Log
	}
	return &Server{
		socketPath: path,
		handler:    h,
		timeout:    defaultTimeout,
		logger:     log.With("component", "control"),
	}
}

// Listen binds the socket, replacing a stale socket file left by a previous
// run. Any other kind of file at the path is left alone.
func (s *Server) Listen() (net.Listener, error) {
	if fi, err := os.Lstat(s.socketPath); err == nil {
		if fi.Mode()&os.ModeSocket == 0 {
			return nil, naaerrors.New(naaerrors.ErrCodeControlSocket, "Listen", s.socketPath+" exists and is not a socket", nil)
		}
		if conn, dialErr := net.DialTimeout("unix", s.socketPath, 200*time.Millisecond); dialErr == nil {
			conn.Close()
			return nil, naaerrors.New(naaerrors.ErrCodeControlSocket, "Listen", "another instance is listening on "+s.socketPath, nil)
		}
		os.Remove(s.socketPath)
	}
	l, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return nil, naaerrors.New(naaerrors.ErrCodeControlSocket, "Listen", "cannot bind "+s.socketPath, err)
	}
	// owner only
	os.Chmod(s.socketPath, 0o700)
	return l, nil
}

// Serve accepts requests until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	l, err := s.Listen()
	if err != nil {
		return err
	}
	return s.serve(ctx, l)
}

func (s *Server) serve(ctx context.Context, l net.Listener) error {
	defer os.Remove(s.socketPath)
	defer l.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		l.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	s.logger.Info("Control: Listening", "socket", s.socketPath)
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("Control: Stopped")
				return nil
			}
			return naaerrors.New(naaerrors.ErrCodeControlSocket, "Serve", "accept failed", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(s.timeout))

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.logger.Warn("Control: Malformed request", "err", err)
		s.reply(conn, Response{Error: "malformed request"})
		return
	}
	s.logger.Debug("Control: Request", "command", req.Command)
	s.reply(conn, s.dispatch(req))
}

func (s *Server) dispatch(req Request) Response {
	switch req.Command {
	case CmdRunNow:
		s.handler.TriggerRunNow()
	case CmdShutdown:
		s.handler.RequestShutdown()
	case CmdStatus:
	default:
		return Response{Error: "unknown command " + req.Command}
	}
	st := s.handler.Status()
	return Response{OK: true, Status: &st}
}

func (s *Server) reply(conn net.Conn, resp Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Warn("Control: Cannot write response", "err", err)
	}
}

// Personal.AI order the ending
