//go:build windows

package socket

// applyListenerOptions is a no-op on Windows; the Go runtime already
// sets SO_REUSEADDR semantics appropriate for the platform.
func applyListenerOptions(fd int, cfg *Config) error {
	return nil
}
