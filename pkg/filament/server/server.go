// Package server dispatches HTTP/1.x requests to registered resource
// handlers over keep-alive and pipelined connections, with optional
// TLS and an authentication hook.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yourusername/filament/pkg/filament/http1"
	"github.com/yourusername/filament/pkg/filament/socket"
)

// Config holds server configuration knobs.
type Config struct {
	// Addr is the TCP address to listen on (e.g. ":8080").
	// Default: ":8080"
	Addr string

	// TLSConfig enables TLS: accepted connections perform a server
	// handshake before parsing. Nil serves plaintext.
	TLSConfig *tls.Config

	// Socket tunes the listening socket and accepted connections.
	// Nil uses socket.DefaultConfig (SO_REUSEADDR, TCP_NODELAY,
	// keepalive).
	Socket *socket.Config

	// MaxConnections bounds concurrently served connections.
	// 0 means unlimited.
	MaxConnections int64

	// MaxContentLength caps buffered request bodies.
	// Default: http1.DefaultMaxContentLength
	MaxContentLength int

	// ReadTimeout is the per-request deadline for reading a whole
	// request, and doubles as the keep-alive idle timeout.
	// 0 disables it.
	ReadTimeout time.Duration

	// Auth, when set, is consulted before resource resolution.
	Auth Auth

	// ErrorLog receives per-connection failures. Nil discards them.
	ErrorLog *log.Logger
}

// Server accepts connections, parses requests and dispatches them to
// registered resource handlers. One goroutine serves one connection;
// responses on a connection are emitted in request order, and
// pipelined request bytes are consumed from the connection's read
// buffer before new I/O is issued.
type Server struct {
	cfg      Config
	listener net.Listener

	// resource and redirect tables, shared by dispatch lookups
	tablesMu   sync.Mutex
	resources  []resourceEntry
	redirects  map[string]string
	notFound   Handler
	badRequest Handler

	// currently open connections
	connsMu sync.Mutex
	conns   map[*http1.Connection]struct{}

	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	started atomic.Bool
	stopped atomic.Bool
}

// New returns an unstarted server.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.MaxContentLength == 0 {
		cfg.MaxContentLength = http1.DefaultMaxContentLength
	}
	s := &Server{
		cfg:       cfg,
		redirects: make(map[string]string),
		conns:     make(map[*http1.Connection]struct{}),
	}
	if cfg.MaxConnections > 0 {
		s.sem = semaphore.NewWeighted(cfg.MaxConnections)
	}
	return s
}

// Addr returns the listener's address once the server has started;
// useful when the configured port was 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start opens the listening socket and begins accepting connections.
func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}
	lc := net.ListenConfig{Control: socket.ListenControl(s.cfg.Socket)}
	ln, err := lc.Listen(context.Background(), "tcp", s.cfg.Addr)
	if err != nil {
		s.started.Store(false)
		return err
	}
	s.listener = ln
	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the acceptor and every open connection, then waits for
// all connection goroutines to finish. Safe to call more than once.
func (s *Server) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.connsMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.connsMu.Unlock()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			// closed acceptor means Stop was called; not an error
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logf("accept: %v", err)
			if s.stopped.Load() {
				return
			}
			continue
		}

		if s.sem != nil {
			if err := s.sem.Acquire(context.Background(), 1); err != nil {
				_ = nc.Close()
				return
			}
		}
		if err := socket.Tune(nc, s.cfg.Socket); err != nil {
			s.logf("socket tuning: %v", err)
		}

		s.wg.Add(1)
		go s.serveConn(nc)
	}
}

// serveConn runs one connection's request loop: read and parse a
// request, decide its lifecycle, dispatch it, and either continue
// with the next (possibly already buffered) request or close.
func (s *Server) serveConn(nc net.Conn) {
	defer s.wg.Done()
	if s.sem != nil {
		defer s.sem.Release(1)
	}

	// a connection accepted while Stop was running is not served
	if s.stopped.Load() {
		_ = nc.Close()
		return
	}

	conn := http1.NewConnection(nc)
	conn.SetFinishedHandler(func(c *http1.Connection) {
		// hand-back point for handlers completing out of band; the
		// serve loop itself resumes when the handler returns
	})

	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
	defer func() {
		s.connsMu.Lock()
		delete(s.conns, conn)
		s.connsMu.Unlock()
		_ = conn.Close()
	}()

	if s.cfg.TLSConfig != nil {
		if err := conn.HandshakeServer(s.cfg.TLSConfig); err != nil {
			s.logf("tls handshake: %v", err)
			return
		}
	}

	for {
		if !s.serveOne(conn) {
			return
		}
	}
}

// serveOne handles a single request. Returns false when the
// connection must close.
func (s *Server) serveOne(conn *http1.Connection) bool {
	if s.cfg.ReadTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return false
		}
	}

	req := http1.GetRequest()
	parser := http1.GetRequestParser()
	parser.SetMaxContentLength(s.cfg.MaxContentLength)
	defer func() {
		http1.PutRequestParser(parser)
		http1.PutRequest(req)
	}()

	if _, err := http1.Receive(req, conn, parser); err != nil {
		if isParseError(err) {
			// malformed request: answer 400, then close
			conn.SetLifecycle(http1.LifecycleClose)
			s.tablesMu.Lock()
			bad := s.badRequest
			s.tablesMu.Unlock()
			if bad != nil {
				s.invoke(bad, req, conn)
			} else {
				defaultBadRequest(req, conn)
			}
			s.logf("bad request from %v: %v", conn.RemoteAddr(), err)
		} else if !errors.Is(err, http1.ErrTruncatedMessage) &&
			!errors.Is(err, http1.ErrConnectionClosed) && !s.stopped.Load() {
			s.logf("read from %v: %v", conn.RemoteAddr(), err)
		}
		return false
	}

	conn.SetLifecycle(lifecycleFor(req, conn))
	s.dispatch(req, conn)

	return conn.Lifecycle() != http1.LifecycleClose && conn.IsOpen()
}

// lifecycleFor decides what happens to the connection after this
// request: HTTP/1.1 defaults to keep-alive unless the client sent
// "Connection: close"; HTTP/1.0 must ask for keep-alive explicitly;
// leftover bytes past the request boundary mark the connection
// pipelined.
func lifecycleFor(req *http1.Request, conn *http1.Connection) http1.Lifecycle {
	keepAlive := false
	if req.VersionMajor() > 1 ||
		(req.VersionMajor() == 1 && req.VersionMinor() >= 1) {
		keepAlive = req.CheckKeepAlive()
	} else if req.VersionMajor() == 1 {
		keepAlive = strings.EqualFold(req.GetHeader(http1.HeaderConnection),
			http1.ConnectionKeepAlive)
	}

	switch {
	case conn.HasBufferedData():
		return http1.LifecyclePipelined
	case keepAlive:
		return http1.LifecycleKeepAlive
	default:
		return http1.LifecycleClose
	}
}

// isParseError distinguishes protocol violations (answered with 400)
// from transport failures (closed silently).
func isParseError(err error) bool {
	for _, perr := range []error{
		http1.ErrMethodChar, http1.ErrMethodSize,
		http1.ErrURIChar, http1.ErrURISize,
		http1.ErrQueryChar, http1.ErrQuerySize,
		http1.ErrVersionEmpty, http1.ErrVersionChar,
		http1.ErrStatusEmpty, http1.ErrStatusChar,
		http1.ErrHeaderChar, http1.ErrHeaderNameSize,
		http1.ErrHeaderValueSize, http1.ErrFoldedHeader,
		http1.ErrInvalidContentLength, http1.ErrChunkChar,
	} {
		if errors.Is(err, perr) {
			return true
		}
	}
	return false
}

func (s *Server) logf(format string, args ...interface{}) {
	if s.cfg.ErrorLog != nil {
		s.cfg.ErrorLog.Printf(format, args...)
	}
}
