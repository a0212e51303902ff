package server

import (
	"net"
	"testing"

	"github.com/yourusername/filament/pkg/filament/http1"
)

// newTestConn returns a Connection whose peer end is drained by a
// background reader, so handlers that write never block.
func newTestConn(t *testing.T) *http1.Connection {
	t.Helper()
	a, b := net.Pipe()
	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := b.Read(buf); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() { a.Close(); b.Close() })
	return http1.NewConnection(a)
}

// recordingHandler appends its tag to calls and reports handled per
// the handled flag.
func recordingHandler(calls *[]string, tag string, handled bool) Handler {
	return func(req *http1.Request, conn *http1.Connection) bool {
		*calls = append(*calls, tag)
		return handled
	}
}

func dispatchPath(t *testing.T, s *Server, path string) {
	t.Helper()
	req := http1.NewRequestWithMethod(http1.MethodGet, path)
	s.dispatch(req, newTestConn(t))
}

func TestDispatchLongestPrefixWins(t *testing.T) {
	var calls []string
	s := New(Config{})
	s.AddResource("/", recordingHandler(&calls, "root", true))
	s.AddResource("/api", recordingHandler(&calls, "api", true))
	s.AddResource("/api/users", recordingHandler(&calls, "users", true))

	dispatchPath(t, s, "/api/users/42")
	if len(calls) != 1 || calls[0] != "users" {
		t.Errorf("calls = %v, want [users]", calls)
	}

	calls = nil
	dispatchPath(t, s, "/api/items")
	if len(calls) != 1 || calls[0] != "api" {
		t.Errorf("calls = %v, want [api]", calls)
	}

	calls = nil
	dispatchPath(t, s, "/other")
	if len(calls) != 1 || calls[0] != "root" {
		t.Errorf("calls = %v, want [root]", calls)
	}
}

func TestDispatchLatestRegistrationWinsTies(t *testing.T) {
	var calls []string
	s := New(Config{})
	s.AddResource("/api", recordingHandler(&calls, "first", true))
	s.AddResource("/api", recordingHandler(&calls, "second", true))

	dispatchPath(t, s, "/api")
	if len(calls) != 1 || calls[0] != "second" {
		t.Errorf("calls = %v, want [second]", calls)
	}
}

func TestDispatchDeclinedFallsBackToShorterPrefix(t *testing.T) {
	var calls []string
	s := New(Config{})
	s.AddResource("/", recordingHandler(&calls, "root", true))
	s.AddResource("/api", recordingHandler(&calls, "api", false))
	s.AddResource("/api/users", recordingHandler(&calls, "users", false))

	dispatchPath(t, s, "/api/users")
	want := []string{"users", "api", "root"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestDispatchTrailingSlashNormalized(t *testing.T) {
	var calls []string
	s := New(Config{})
	s.AddResource("/api", recordingHandler(&calls, "api", true))

	dispatchPath(t, s, "/api/")
	if len(calls) != 1 || calls[0] != "api" {
		t.Errorf("calls = %v, want [api]", calls)
	}
}

func TestDispatchRedirectChainTerminates(t *testing.T) {
	var calls []string
	s := New(Config{})
	s.AddRedirect("/a", "/b")
	s.AddRedirect("/b", "/c")
	s.AddRedirect("/c", "/final")
	s.AddResource("/final", recordingHandler(&calls, "final", true))

	req := http1.NewRequestWithMethod(http1.MethodGet, "/a")
	s.dispatch(req, newTestConn(t))
	if len(calls) != 1 || calls[0] != "final" {
		t.Errorf("calls = %v, want [final]", calls)
	}
	if req.Resource() != "/final" {
		t.Errorf("Resource = %q, want /final", req.Resource())
	}
	if req.OriginalResource() != "/a" {
		t.Errorf("OriginalResource = %q, want /a", req.OriginalResource())
	}
}

func TestDispatchUnmatchedUsesNotFoundHandler(t *testing.T) {
	var calls []string
	s := New(Config{})
	s.SetNotFoundHandler(recordingHandler(&calls, "notfound", true))
	s.AddResource("/api", recordingHandler(&calls, "api", true))

	dispatchPath(t, s, "/none")
	if len(calls) != 1 || calls[0] != "notfound" {
		t.Errorf("calls = %v, want [notfound]", calls)
	}
}

func TestDispatchPanicContained(t *testing.T) {
	s := New(Config{})
	s.AddResource("/boom", func(req *http1.Request, conn *http1.Connection) bool {
		panic("handler exploded")
	})
	// must not propagate the panic
	dispatchPath(t, s, "/boom")
}
