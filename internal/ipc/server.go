// Package ipc serves the governor's line protocol on a Unix stream
// socket. Each connection carries exactly one request and one reply:
// the client writes a command line, the server answers and closes.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSocketPath is where the governor listens unless configured
// otherwise.
const DefaultSocketPath = "/data/local/tmp/system_ai.sock"

// maxRequestSize bounds a single request. Longer input is truncated and
// matched on its prefix like any other.
const maxRequestSize = 127

// writeTimeout bounds the reply write.
const writeTimeout = 5 * time.Second

// Backoff between consecutive Accept failures, doubling up to the cap.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Config tunes the server.
type Config struct {
	SocketPath    string
	MaxConcurrent int
	ReadTimeout   time.Duration
}

// CommandObserver is told about every handled command.
type CommandObserver func(name, reply string)

// Server accepts connections and dispatches commands against a
// Controller.
type Server struct {
	cfg      Config
	ctrl     Controller
	logger   zerolog.Logger
	observer CommandObserver

	sem    chan struct{}
	active sync.WaitGroup
}

// NewServer creates a server. Zero config fields get defaults.
func NewServer(cfg Config, ctrl Controller, logger zerolog.Logger) *Server {
	if cfg.SocketPath == "" {
		cfg.SocketPath = DefaultSocketPath
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	return &Server{
		cfg:    cfg,
		ctrl:   ctrl,
		logger: logger,
		sem:    make(chan struct{}, cfg.MaxConcurrent),
	}
}

// SetObserver installs a hook called after every command.
func (s *Server) SetObserver(o CommandObserver) { s.observer = o }

// SocketPath returns the configured endpoint.
func (s *Server) SocketPath() string { return s.cfg.SocketPath }

// Listen removes any stale socket file and binds the endpoint. It is
// separate from Serve so the daemon can fail fast at startup.
func (s *Server) Listen() (net.Listener, error) {
	if err := os.Remove(s.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket %s: %w", s.cfg.SocketPath, err)
	}
	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.cfg.SocketPath, err)
	}
	return ln, nil
}

// Serve accepts connections on ln until ctx is cancelled, then waits for
// in-flight handlers and removes the socket file.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer func() {
		ln.Close()
		if err := os.Remove(s.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Msg("remove socket on shutdown")
		}
	}()

	// Unblock Accept when the context is cancelled.
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.logger.Info().Str("path", s.cfg.SocketPath).Msg("IPC socket ready")

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			s.logger.Error().Err(err).Dur("retry_in", delay).Msg("accept failed")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			continue
		}
		delay = 0

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			conn.Close()
			s.active.Wait()
			return nil
		}

		s.active.Add(1)
		go func() {
			defer func() {
				<-s.sem
				s.active.Done()
			}()
			s.handleConnection(conn)
		}()
	}

	s.active.Wait()
	return nil
}

// handleConnection runs one request-reply exchange.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	buf := make([]byte, maxRequestSize)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		s.logger.Debug().Err(err).Msg("read request")
	}

	reply, name := Dispatch(s.ctrl, buf[:n])

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := io.WriteString(conn, reply); err != nil {
		s.logger.Debug().Err(err).Str("command", name).Msg("write reply")
	}

	s.logger.Debug().Str("command", name).Int("bytes", n).Msg("command handled")
	if s.observer != nil {
		s.observer(name, reply)
	}
}
