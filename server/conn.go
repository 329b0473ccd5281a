package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/raniellyferreira/lrukv/protocol"
)

// maxRetainedOutput caps the response buffer kept between requests
const maxRetainedOutput = 64 << 10

// Conn is one admitted connection and its framing state. It is owned by a
// single worker goroutine; only wake may be called from elsewhere.
type Conn struct {
	id     uuid.UUID
	conn   net.Conn
	server *Server

	// buf holds bytes read but not yet consumed
	buf    []byte
	out    []byte
	parser protocol.Parser
}

func newConn(s *Server, nc net.Conn) *Conn {
	return &Conn{
		id:     uuid.New(),
		conn:   nc,
		server: s,
		buf:    make([]byte, 0, s.readBufferSize),
	}
}

// wake interrupts a blocked read so the worker notices shutdown. A worker
// in the middle of a request treats the wake-up as spurious and re-arms
// its deadline in fill.
func (c *Conn) wake() {
	c.conn.SetReadDeadline(time.Now())
}

// serve runs the request loop until the peer goes away, a fatal error
// occurs, or the server stops. Bytes already buffered when the server
// stops belong to a request that is answered before the worker exits.
func (c *Conn) serve() {
	defer func() {
		c.conn.Close()
		c.server.release(c)
	}()

	for c.server.running.Load() || len(c.buf) > 0 {
		if err := c.handleRequest(); err != nil {
			c.closed(err)
			return
		}
	}
	c.server.logger.Debug("Connection closed on shutdown", "conn", c.id.String())
}

// handleRequest reads one header and its body, executes the command and
// writes the response.
func (c *Conn) handleRequest() error {
	defer c.parser.Reset()

	for {
		consumed, complete, err := c.parser.Parse(c.buf)
		if complete {
			c.discard(consumed)
			if err != nil {
				// Malformed line: answer and keep the connection.
				c.server.failures.Inc()
				if c.server.metrics != nil {
					c.server.metrics.RecordError("protocol")
				}
				return c.respond(protocol.ErrorResponse(err))
			}
			break
		}
		if err != nil {
			// The header never terminated; the stream cannot be resynced.
			_ = c.respond(protocol.ClientErrorPrefix + err.Error())
			return err
		}
		if err := c.fill(); err != nil {
			return err
		}
	}

	header := c.parser.Header()
	need := header.BodySize()

	var body []byte
	if need > 0 {
		c.reserve(need)
		for {
			var ok bool
			if body, _, ok = protocol.SplitBody(c.buf, need); ok {
				break
			}
			if err := c.fill(); err != nil {
				return err
			}
		}
	}

	resp := c.execute(header, body)
	c.discard(need)
	c.shrink()

	return c.respond(resp)
}

// execute builds and runs the command. Failures become error responses.
func (c *Conn) execute(h *protocol.Header, body []byte) (resp string) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.server.logger.Error("Command panicked", "conn", c.id.String(), "command", h.Name, "panic", r)
			c.server.failures.Inc()
			if c.server.metrics != nil {
				c.server.metrics.RecordError("panic")
			}
			resp = protocol.ErrorResponse(fmt.Errorf("internal error executing %s", h.Name))
		}
	}()

	cmd, err := c.server.builder.Build(h)
	if err == nil {
		resp, err = cmd.Execute(c.server.store, body)
	}

	c.server.commands.Inc()
	if c.server.metrics != nil {
		c.server.metrics.RecordCommandProcessed(h.Name, time.Since(start))
	}

	if err != nil {
		c.server.failures.Inc()
		if c.server.metrics != nil {
			c.server.metrics.RecordError("command")
		}
		c.server.logger.Debug("Command failed", "conn", c.id.String(), "request", h.String(), "error", err)
		return protocol.ErrorResponse(err)
	}
	return resp
}

// respond writes resp followed by the line terminator
func (c *Conn) respond(resp string) error {
	if c.server.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.writeTimeout)); err != nil {
			return err
		}
	}

	c.out = append(c.out[:0], resp...)
	c.out = append(c.out, protocol.CRLF...)
	_, err := c.conn.Write(c.out)
	if cap(c.out) > maxRetainedOutput {
		c.out = nil
	}
	return err
}

// fill reads more bytes onto the end of buf, growing it when full.
//
// After Stop an idle worker gets errStopping. A worker holding part of a
// request keeps reading under the drain deadline instead.
func (c *Conn) fill() error {
	if len(c.buf) == cap(c.buf) {
		c.reserve(2 * cap(c.buf))
	}

	for {
		deadline := c.readDeadline()
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return err
		}
		// Checked after the deadline is set so a concurrent wake is never
		// overwritten by a read that then blocks.
		if !c.server.running.Load() && c.idle() {
			return errStopping
		}

		n, err := c.conn.Read(c.buf[len(c.buf):cap(c.buf)])
		c.buf = c.buf[:len(c.buf)+n]
		if n > 0 {
			return nil
		}
		if err == nil {
			return io.ErrNoProgress
		}
		if c.woken(err, deadline) {
			continue
		}
		return err
	}
}

// readDeadline is the deadline for the next read. Once the server stops
// it is the drain deadline, or the read timeout when that is shorter.
func (c *Conn) readDeadline() time.Time {
	timeout := c.server.readTimeout
	if !c.server.running.Load() && (timeout == 0 || c.server.drainTimeout < timeout) {
		timeout = c.server.drainTimeout
	}
	if timeout == 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

// idle reports whether the worker waits for the first byte of a request
func (c *Conn) idle() bool {
	return len(c.buf) == 0 && c.parser.Header() == nil
}

// woken reports whether err is the timeout forced by wake rather than the
// expiry of deadline.
func (c *Conn) woken(err error, deadline time.Time) bool {
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		return false
	}
	return !c.server.running.Load() && (deadline.IsZero() || time.Now().Before(deadline))
}

// reserve ensures buf can hold n bytes without reallocating
func (c *Conn) reserve(n int) {
	if n <= cap(c.buf) {
		return
	}
	grown := make([]byte, len(c.buf), n)
	copy(grown, c.buf)
	c.buf = grown
}

// discard drops n bytes from the front of buf, shifting the rest down
func (c *Conn) discard(n int) {
	c.buf = c.buf[:copy(c.buf, c.buf[n:])]
}

// shrink returns a buffer grown for a large body to its configured size
func (c *Conn) shrink() {
	size := c.server.readBufferSize
	if cap(c.buf) <= size || len(c.buf) > size {
		return
	}
	small := make([]byte, len(c.buf), size)
	copy(small, c.buf)
	c.buf = small
}

// closed logs why the worker ended
func (c *Conn) closed(err error) {
	var ne net.Error
	switch {
	case errors.Is(err, io.EOF):
		c.server.logger.Debug("Connection closed by peer", "conn", c.id.String())
	case errors.Is(err, errStopping), !c.server.running.Load():
		c.server.logger.Debug("Connection closed on shutdown", "conn", c.id.String())
	case errors.As(err, &ne) && ne.Timeout():
		c.server.logger.Debug("Connection timed out", "conn", c.id.String())
	default:
		c.server.logger.Debug("Connection error", "conn", c.id.String(), "error", err)
		if c.server.metrics != nil {
			c.server.metrics.RecordError("transport")
		}
	}
}
