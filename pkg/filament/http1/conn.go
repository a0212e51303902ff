package http1

import (
	"crypto/tls"
	"io"
	"net"
	"sync/atomic"
	"time"
)

// Lifecycle describes what happens to a connection once the current
// message has been handled.
type Lifecycle uint8

const (
	// LifecycleClose closes the connection after the response is sent.
	LifecycleClose Lifecycle = iota

	// LifecycleKeepAlive keeps the connection open for the next
	// request.
	LifecycleKeepAlive

	// LifecyclePipelined means unconsumed bytes already sitting in
	// the read buffer belong to the next request.
	LifecyclePipelined
)

// String returns the string representation of the lifecycle.
func (l Lifecycle) String() string {
	switch l {
	case LifecycleClose:
		return "close"
	case LifecycleKeepAlive:
		return "keepalive"
	case LifecyclePipelined:
		return "pipelined"
	default:
		return "unknown"
	}
}

// Connection owns a TCP stream, optionally wrapped in TLS, together
// with a fixed-size read buffer and a bookmark of the buffer's
// unconsumed window. The bookmark is what lets a fresh parser resume
// on a pipelined connection without re-reading from the socket.
//
// All TLS operations are passthrough when no TLS configuration was
// supplied, so call sites never need to branch on whether TLS is in
// use.
//
// A Connection is not safe for concurrent use; all operations for one
// connection happen on the goroutine currently serving it.
type Connection struct {
	conn    net.Conn
	tlsConn *tls.Conn
	ssl     bool

	// read buffer and bookmark; readPos..readEnd is the unconsumed
	// window
	readBuf []byte
	readPos int
	readEnd int

	lifecycle       Lifecycle
	finishedHandler func(*Connection)
	closed          atomic.Bool
}

// NewConnection wraps an established network connection. The
// lifecycle starts as close; the server upgrades it after examining
// each request.
func NewConnection(nc net.Conn) *Connection {
	return &Connection{
		conn:    nc,
		readBuf: make([]byte, ReadBufferSize),
	}
}

// Connect dials addr ("host:port") and returns a client connection.
func Connect(addr string) (*Connection, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewConnection(nc), nil
}

// HandshakeServer performs a server-side TLS handshake. A nil config
// is a no-op passthrough: the connection stays plain and SSLFlag
// remains false.
func (c *Connection) HandshakeServer(cfg *tls.Config) error {
	if cfg == nil {
		return nil
	}
	tc := tls.Server(c.conn, cfg)
	if err := tc.Handshake(); err != nil {
		return err
	}
	c.tlsConn = tc
	c.ssl = true
	return nil
}

// HandshakeClient performs a client-side TLS handshake. A nil config
// is a no-op passthrough.
func (c *Connection) HandshakeClient(cfg *tls.Config) error {
	if cfg == nil {
		return nil
	}
	tc := tls.Client(c.conn, cfg)
	if err := tc.Handshake(); err != nil {
		return err
	}
	c.tlsConn = tc
	c.ssl = true
	return nil
}

// SSLFlag reports whether the connection is running over TLS.
func (c *Connection) SSLFlag() bool { return c.ssl }

// stream returns the reader/writer in effect: the TLS stream when a
// handshake succeeded, the plain stream otherwise.
func (c *Connection) stream() io.ReadWriter {
	if c.ssl {
		return c.tlsConn
	}
	return c.conn
}

// ReadSome reads once from the stream into the connection's read
// buffer and resets the unconsumed window to the bytes just read.
func (c *Connection) ReadSome() (int, error) {
	if c.closed.Load() {
		return 0, ErrConnectionClosed
	}
	n, err := c.stream().Read(c.readBuf)
	c.readPos = 0
	c.readEnd = n
	return n, err
}

// ReadBuffer returns the unconsumed window of the read buffer.
func (c *Connection) ReadBuffer() []byte {
	return c.readBuf[c.readPos:c.readEnd]
}

// HasBufferedData reports whether unconsumed bytes remain in the read
// buffer (the pipelining condition).
func (c *Connection) HasBufferedData() bool {
	return c.readPos < c.readEnd
}

// advanceRead consumes n bytes from the front of the unconsumed
// window, bookkeeping for the bookmark.
func (c *Connection) advanceRead(n int) {
	c.readPos += n
	if c.readPos > c.readEnd {
		c.readPos = c.readEnd
	}
}

// SaveReadPos bookmarks an explicit unconsumed window. LoadReadPos
// returns it. Most callers never touch these directly; Receive keeps
// the bookmark current as it drives the parser.
func (c *Connection) SaveReadPos(pos, end int) {
	c.readPos = pos
	c.readEnd = end
}

// LoadReadPos returns the bookmarked unconsumed window.
func (c *Connection) LoadReadPos() (pos, end int) {
	return c.readPos, c.readEnd
}

// Write writes b to the stream in full.
func (c *Connection) Write(b []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrConnectionClosed
	}
	return c.stream().Write(b)
}

// SetDeadline sets the read/write deadline on the underlying socket.
func (c *Connection) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// Lifecycle returns the connection's lifecycle.
func (c *Connection) Lifecycle() Lifecycle { return c.lifecycle }

// SetLifecycle sets the connection's lifecycle.
func (c *Connection) SetLifecycle(l Lifecycle) { c.lifecycle = l }

// SetFinishedHandler installs the callable invoked by Finish, which
// returns the connection to whoever is managing it.
func (c *Connection) SetFinishedHandler(h func(*Connection)) {
	c.finishedHandler = h
}

// Finish hands the connection back to its manager (typically the
// server, which decides whether to parse another request or close).
func (c *Connection) Finish() {
	if c.finishedHandler != nil {
		c.finishedHandler(c)
	}
}

// Close shuts down the connection. Idempotent; errors from the
// underlying socket are ignored.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.ssl {
		_ = c.tlsConn.Close()
	}
	_ = c.conn.Close()
	return nil
}

// IsOpen reports whether Close has not yet been called.
func (c *Connection) IsOpen() bool { return !c.closed.Load() }

// RemoteAddr returns the remote network address.
func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// RemoteIP returns the IP of the remote peer, or nil for non-TCP
// transports.
func (c *Connection) RemoteIP() net.IP {
	if ta, ok := c.conn.RemoteAddr().(*net.TCPAddr); ok {
		return ta.IP
	}
	return nil
}
