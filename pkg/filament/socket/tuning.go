// Package socket provides cross-platform socket tuning for the
// listener and accepted connections. Options that matter for HTTP
// workloads (address reuse, Nagle, keepalive, kernel buffer sizes)
// are applied through a single Config; platform-specific options live
// in tuning_linux.go.
package socket

import (
	"net"
	"syscall"
)

// Config represents socket tuning configuration.
// Zero values mean "use system defaults".
type Config struct {
	// SO_REUSEADDR - Allow rebinding a listening address in TIME_WAIT.
	// Default: true (a restarted server must be able to rebind)
	ReuseAddr bool

	// TCP_NODELAY - Disable Nagle's algorithm for low latency.
	// Default: true (recommended for request/response protocols)
	NoDelay bool

	// SO_KEEPALIVE - Enable TCP keepalive probes.
	// Default: true (recommended for long-lived connections)
	KeepAlive bool

	// SO_RCVBUF - Receive buffer size in bytes.
	// Default: 0 (system default)
	RecvBuffer int

	// SO_SNDBUF - Send buffer size in bytes.
	// Default: 0 (system default)
	SendBuffer int

	// TCP_DEFER_ACCEPT - Only wake the accept loop when data arrives
	// (Linux only). Default: false
	DeferAccept bool
}

// DefaultConfig returns the recommended configuration for HTTP
// servers.
func DefaultConfig() *Config {
	return &Config{
		ReuseAddr: true,
		NoDelay:   true,
		KeepAlive: true,
	}
}

// ListenControl returns a net.ListenConfig Control function that
// applies cfg to the listening socket before bind.
func ListenControl(cfg *Config) func(network, address string, rc syscall.RawConn) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return func(network, address string, rc syscall.RawConn) error {
		var applyErr error
		err := rc.Control(func(fd uintptr) {
			applyErr = applyListenerOptions(int(fd), cfg)
		})
		if err != nil {
			return err
		}
		return applyErr
	}
}

// Tune applies per-connection options to an accepted TCP connection.
// Errors are reported but a failed option never aborts the
// connection; a missing optimization is not a protocol failure.
func Tune(conn net.Conn, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tc.SetNoDelay(cfg.NoDelay); err != nil {
		return err
	}
	if err := tc.SetKeepAlive(cfg.KeepAlive); err != nil {
		return err
	}
	if cfg.RecvBuffer > 0 {
		if err := tc.SetReadBuffer(cfg.RecvBuffer); err != nil {
			return err
		}
	}
	if cfg.SendBuffer > 0 {
		if err := tc.SetWriteBuffer(cfg.SendBuffer); err != nil {
			return err
		}
	}
	return nil
}
