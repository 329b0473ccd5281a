package lrukv

import (
	"time"
)

// config holds the configuration for a Node
type config struct {
	// Listener settings
	host           string
	port           int
	maxConnections int
	reusePort      bool

	// Cache settings
	capacity     int64
	maxEntrySize int64

	// Timeouts and buffers
	readTimeout    time.Duration
	writeTimeout   time.Duration
	drainTimeout   time.Duration
	readBufferSize int

	// Scripting
	scripting     bool
	scriptTimeout time.Duration

	// Observability
	logger  Logger
	metrics MetricsCollector
}

// defaultConfig returns a configuration with sensible defaults
func defaultConfig() *config {
	return &config{
		host:           "0.0.0.0",
		port:           8080,
		maxConnections: 10,
		capacity:       1 << 20,
		readTimeout:    0, // wait for requests indefinitely
		writeTimeout:   10 * time.Second,
		drainTimeout:   5 * time.Second,
		readBufferSize: 4096,
		scripting:      true,
		scriptTimeout:  5 * time.Second,
		logger:         &defaultLogger{},
	}
}

// Option represents a configuration option for a Node
type Option func(*config) error

// WithPort sets the TCP port to listen on. Port 0 picks a free port.
//
// Example:
//
//	WithPort(11211)
func WithPort(port int) Option {
	return func(c *config) error {
		if port < 0 || port > 65535 {
			return ErrInvalidConfig
		}
		c.port = port
		return nil
	}
}

// WithHost sets the interface to bind (default 0.0.0.0)
//
// Example:
//
//	WithHost("127.0.0.1")
func WithHost(host string) Option {
	return func(c *config) error {
		c.host = host
		return nil
	}
}

// WithMaxConnections sets how many connections are served at once.
// Connections beyond the limit are closed immediately.
//
// Example:
//
//	WithMaxConnections(64)
func WithMaxConnections(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return ErrInvalidConfig
		}
		c.maxConnections = n
		return nil
	}
}

// WithCapacity sets the cache budget in bytes, counted as the sum of key
// and value lengths
//
// Example:
//
//	WithCapacity(64 << 20) // 64 MiB
func WithCapacity(bytes int64) Option {
	return func(c *config) error {
		if bytes <= 0 {
			return ErrInvalidConfig
		}
		c.capacity = bytes
		return nil
	}
}

// WithMaxEntrySize rejects entries whose key plus value exceed limit bytes,
// even when they would fit in the cache. 0 means no limit besides the
// capacity.
//
// Example:
//
//	WithMaxEntrySize(1 << 20)
func WithMaxEntrySize(limit int64) Option {
	return func(c *config) error {
		if limit < 0 {
			return ErrInvalidConfig
		}
		c.maxEntrySize = limit
		return nil
	}
}

// WithReadTimeout closes connections that send nothing for the given
// duration. 0 disables the timeout.
//
// Example:
//
//	WithReadTimeout(5 * time.Minute)
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return ErrInvalidConfig
		}
		c.readTimeout = timeout
		return nil
	}
}

// WithWriteTimeout sets the deadline for writing one response
//
// Example:
//
//	WithWriteTimeout(10 * time.Second)
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout <= 0 {
			return ErrInvalidConfig
		}
		c.writeTimeout = timeout
		return nil
	}
}

// WithReadBufferSize sets the initial per-connection read buffer. Buffers
// grow for large bodies and shrink back afterwards.
//
// Example:
//
//	WithReadBufferSize(16 << 10)
func WithReadBufferSize(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return ErrInvalidConfig
		}
		c.readBufferSize = n
		return nil
	}
}

// WithDrainTimeout bounds how long a request that is partly received at
// shutdown may take to arrive before its connection is closed
//
// Example:
//
//	WithDrainTimeout(2 * time.Second)
func WithDrainTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout <= 0 {
			return ErrInvalidConfig
		}
		c.drainTimeout = timeout
		return nil
	}
}

// WithReusePort sets SO_REUSEPORT on the listener so several nodes can
// share one port (default: disabled)
//
// Example:
//
//	WithReusePort(true)
func WithReusePort(enabled bool) Option {
	return func(c *config) error {
		c.reusePort = enabled
		return nil
	}
}

// WithScripting enables or disables the eval, evalsha and script commands
// (default: enabled)
//
// Example:
//
//	WithScripting(false)
func WithScripting(enabled bool) Option {
	return func(c *config) error {
		c.scripting = enabled
		return nil
	}
}

// WithScriptTimeout bounds the run time of a single script
//
// Example:
//
//	WithScriptTimeout(time.Second)
func WithScriptTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout <= 0 {
			return ErrInvalidConfig
		}
		c.scriptTimeout = timeout
		return nil
	}
}

// WithLogger sets a custom logger
//
// Example:
//
//	WithLogger(myCustomLogger)
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return ErrInvalidConfig
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics enables metrics collection with the provided collector
//
// Example:
//
//	WithMetrics(myMetricsCollector)
func WithMetrics(collector MetricsCollector) Option {
	return func(c *config) error {
		c.metrics = collector
		return nil
	}
}
