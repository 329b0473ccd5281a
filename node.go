package lrukv

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/raniellyferreira/lrukv/execute"
	"github.com/raniellyferreira/lrukv/lua"
	"github.com/raniellyferreira/lrukv/server"
	"github.com/raniellyferreira/lrukv/storage"
	"github.com/raniellyferreira/lrukv/storage/policy"
)

// Stats is a snapshot of cache and server counters
type Stats struct {
	Cache storage.Stats

	ActiveConnections   int64
	TotalConnections    int64
	RejectedConnections int64
	Commands            int64
	CommandErrors       int64
}

// Node is one cache plus the server that exposes it
type Node struct {
	// Configuration
	config *config

	// Components
	storage *storage.LRU
	server  *server.Server

	// State
	mu        sync.Mutex
	started   bool
	closed    bool
	stopWatch func() bool
}

// New creates a Node with the given options
//
// The node is created but not started. Use Start() to begin serving.
//
// Example:
//
//	node, err := lrukv.New(
//		lrukv.WithPort(11211),
//		lrukv.WithCapacity(64<<20),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Since: v1.0.0
func New(opts ...Option) (*Node, error) {
	cfg := defaultConfig()

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	// Create storage
	var storeOpts []storage.LRUOption
	if cfg.maxEntrySize > 0 {
		storeOpts = append(storeOpts, storage.WithAdmission(policy.MaxEntryCost{Limit: cfg.maxEntrySize}))
	}
	store := storage.NewLRU(cfg.capacity, storeOpts...)

	// Create server
	builderOpts := []execute.BuilderOption{execute.WithVersion(VersionString())}
	if cfg.scripting {
		builderOpts = append(builderOpts, execute.WithScripting(lua.NewEngine(lua.WithTimeout(cfg.scriptTimeout))))
	}

	srv := server.NewServer(store, nil)
	builderOpts = append(builderOpts, execute.WithExtraStats(srv.Stats))
	srv.SetBuilder(execute.NewBuilder(builderOpts...))

	srv.SetHost(cfg.host)
	srv.SetTimeouts(cfg.readTimeout, cfg.writeTimeout)
	srv.SetDrainTimeout(cfg.drainTimeout)
	srv.SetReusePort(cfg.reusePort)
	srv.SetReadBufferSize(cfg.readBufferSize)
	srv.SetLogger(&serverLogger{logger: cfg.logger})
	if cfg.metrics != nil {
		srv.SetMetrics(cfg.metrics)
	}

	return &Node{
		config:  cfg,
		storage: store,
		server:  srv,
	}, nil
}

// Start binds the listener and begins serving in the background. It
// returns once the listener is bound. Cancelling ctx stops the node; Join
// waits for the drain.
//
// Example:
//
//	if err := node.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// Since: v1.0.0
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrClosed
	}
	if n.started {
		return ErrAlreadyStarted
	}

	if err := n.server.Start(n.config.port, n.config.maxConnections); err != nil {
		addr := net.JoinHostPort(n.config.host, strconv.Itoa(n.config.port))
		n.config.logger.Error("Failed to start server", Field{Key: "error", Value: err}, Field{Key: "addr", Value: addr})
		return &ConnectionError{Addr: addr, Err: err}
	}

	n.started = true
	n.stopWatch = context.AfterFunc(ctx, n.server.Stop)
	n.config.logger.Info("Cache server listening",
		Field{Key: "addr", Value: n.server.Addr()},
		Field{Key: "capacity", Value: n.config.capacity},
		Field{Key: "max_connections", Value: n.config.maxConnections},
	)
	return nil
}

// Stop signals shutdown and returns immediately. Requests already
// executing still get their responses.
func (n *Node) Stop() {
	n.server.Stop()
}

// Join blocks until every connection has been drained after Stop
func (n *Node) Join() {
	n.server.Join()
}

// Close stops the node and waits for the drain. The cache stays readable
// through Storage.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	if n.stopWatch != nil {
		n.stopWatch()
	}
	n.mu.Unlock()

	n.server.Stop()
	n.server.Join()
	n.config.logger.Info("Cache server closed")
	return nil
}

// Addr returns the bound listener address
func (n *Node) Addr() (string, error) {
	addr := n.server.Addr()
	if addr == "" {
		return "", ErrNotStarted
	}
	return addr, nil
}

// Storage returns the cache for in-process use
func (n *Node) Storage() *storage.LRU {
	return n.storage
}

// Stats returns current counters
func (n *Node) Stats() Stats {
	srv := n.server.Stats()
	return Stats{
		Cache:               n.storage.Stats(),
		ActiveConnections:   srv["curr_connections"],
		TotalConnections:    srv["total_connections"],
		RejectedConnections: srv["rejected_connections"],
		Commands:            srv["cmd_total"],
		CommandErrors:       srv["cmd_errors"],
	}
}
