package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/raniellyferreira/lrukv/execute"
	"github.com/raniellyferreira/lrukv/protocol"
	"github.com/raniellyferreira/lrukv/storage"
)

const (
	defaultHost           = "0.0.0.0"
	defaultReadBufferSize = 4096
	defaultWriteTimeout   = 10 * time.Second
	defaultDrainTimeout   = 5 * time.Second

	// acceptBackoff is the pause after a temporary accept failure
	acceptBackoff = 50 * time.Millisecond
)

// Builder turns a parsed header into an executable command
type Builder interface {
	Build(h *protocol.Header) (execute.Command, error)
}

// Server accepts connections and serves commands against one store
type Server struct {
	store   storage.Storage
	builder Builder

	// Configuration
	host           string
	readTimeout    time.Duration
	writeTimeout   time.Duration
	drainTimeout   time.Duration
	readBufferSize int
	reusePort      bool
	logger         Logger
	metrics        MetricsCollector

	// Lifecycle
	started atomic.Bool
	running atomic.Bool
	group   errgroup.Group
	done    chan struct{}

	// Connection management. mu guards listener, conns and maxConns.
	mu       sync.Mutex
	listener net.Listener
	conns    map[uuid.UUID]*Conn
	maxConns int

	// Counters
	accepted atomic.Int64
	rejected atomic.Int64
	commands atomic.Int64
	failures atomic.Int64
}

// NewServer creates a server for store. builder creates the commands the
// server executes.
func NewServer(store storage.Storage, builder Builder) *Server {
	return &Server{
		store:          store,
		builder:        builder,
		host:           defaultHost,
		writeTimeout:   defaultWriteTimeout,
		drainTimeout:   defaultDrainTimeout,
		readBufferSize: defaultReadBufferSize,
		logger:         &defaultLogger{},
		done:           make(chan struct{}),
		conns:          make(map[uuid.UUID]*Conn),
	}
}

// SetBuilder replaces the command builder. Must be called before Start.
func (s *Server) SetBuilder(builder Builder) {
	s.builder = builder
}

// SetLogger sets the logger
func (s *Server) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetMetrics sets the metrics collector
func (s *Server) SetMetrics(metrics MetricsCollector) {
	s.metrics = metrics
}

// SetHost sets the interface to bind. Must be called before Start.
func (s *Server) SetHost(host string) {
	s.host = host
}

// SetTimeouts configures per-read and per-write deadlines. Zero disables
// the deadline.
func (s *Server) SetTimeouts(read, write time.Duration) {
	s.readTimeout = read
	s.writeTimeout = write
}

// SetDrainTimeout bounds how long a request that is partly received when
// Stop is called may take to arrive in full.
func (s *Server) SetDrainTimeout(d time.Duration) {
	if d > 0 {
		s.drainTimeout = d
	}
}

// SetReusePort sets SO_REUSEPORT on the listening socket so several
// servers can bind the same port.
func (s *Server) SetReusePort(enabled bool) {
	s.reusePort = enabled
}

// SetReadBufferSize sets the initial per-connection read buffer size
func (s *Server) SetReadBufferSize(n int) {
	if n > 0 {
		s.readBufferSize = n
	}
}

// Start binds to port and begins accepting connections in the background.
// At most maxConnections connections are served at once.
func (s *Server) Start(port, maxConnections int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidArgument, port)
	}
	if maxConnections <= 0 {
		return fmt.Errorf("%w: max connections %d", ErrInvalidArgument, maxConnections)
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(port))
	lc := net.ListenConfig{Control: listenControl(s.reusePort)}
	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		s.started.Store(false)
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.maxConns = maxConnections
	s.mu.Unlock()

	s.running.Store(true)
	s.logger.Info("Server started", "addr", listener.Addr().String(), "max_connections", maxConnections)

	go s.acceptConnections(listener)
	return nil
}

// Stop signals shutdown and returns immediately. The listener stops
// accepting and blocked reads are woken. Idle workers exit; a worker in
// the middle of a request keeps reading until the request is complete,
// bounded by the drain timeout, and answers it. Use Join to wait.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("Stopping server", "active_connections", len(s.conns))
	if err := s.listener.Close(); err != nil {
		s.logger.Debug("Listener close failed", "error", err)
	}
	for _, c := range s.conns {
		c.wake()
	}
}

// Join blocks until the accept loop and every worker have returned. It
// returns immediately on a server that was never started.
func (s *Server) Join() {
	if !s.started.Load() {
		return
	}
	<-s.done
}

// Addr returns the listening address, or the empty string before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Running reports whether the server is accepting connections
func (s *Server) Running() bool {
	return s.running.Load()
}

// Stats returns server counters
func (s *Server) Stats() map[string]int64 {
	s.mu.Lock()
	active := len(s.conns)
	s.mu.Unlock()

	return map[string]int64{
		"curr_connections":     int64(active),
		"total_connections":    s.accepted.Load(),
		"rejected_connections": s.rejected.Load(),
		"cmd_total":            s.commands.Load(),
		"cmd_errors":           s.failures.Load(),
	}
}

// acceptConnections runs until the listener is closed, then waits for all
// workers before signalling Join.
func (s *Server) acceptConnections(listener net.Listener) {
	defer close(s.done)

	for {
		nc, err := listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("Accept failed", "error", err)
			if s.metrics != nil {
				s.metrics.RecordError("accept")
			}
			time.Sleep(acceptBackoff)
			continue
		}

		s.admit(nc)
	}

	// Every worker deregisters itself before returning, so the active set
	// is empty once Wait returns.
	_ = s.group.Wait()
	s.logger.Info("Server stopped")
}

// admit registers nc and spawns its worker, or closes it when the server
// is at its connection limit or stopping.
func (s *Server) admit(nc net.Conn) {
	s.mu.Lock()
	if !s.running.Load() || len(s.conns) >= s.maxConns {
		active := len(s.conns)
		s.mu.Unlock()

		nc.Close()
		s.rejected.Inc()
		if s.metrics != nil {
			s.metrics.RecordConnectionRejected()
		}
		s.logger.Debug("Connection rejected", "remote", nc.RemoteAddr().String(), "active", active)
		return
	}

	c := newConn(s, nc)
	s.conns[c.id] = c
	s.mu.Unlock()

	s.accepted.Inc()
	if s.metrics != nil {
		s.metrics.RecordConnectionAccepted()
	}
	s.logger.Debug("Connection accepted", "conn", c.id.String(), "remote", nc.RemoteAddr().String())

	s.group.Go(func() error {
		c.serve()
		return nil
	})
}

// release removes c from the active set
func (s *Server) release(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
}
