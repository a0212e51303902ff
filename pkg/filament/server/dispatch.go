package server

import (
	"sort"
	"strings"

	"github.com/yourusername/filament/pkg/filament/http1"
)

// Handler serves one request over one connection. The handler is
// responsible for constructing a response and sending it with
// http1.Send. Returning false declines the request, which makes the
// dispatcher fall back to the next shorter matching prefix.
type Handler func(req *http1.Request, conn *http1.Connection) bool

// maxRedirects bounds a redirect chain during resource resolution.
const maxRedirects = 10

type resourceEntry struct {
	prefix  string
	handler Handler
}

// AddResource registers handler for every resource whose path begins
// with prefix. Registering the same prefix again gives the later
// handler precedence; the earlier registration stays and is tried
// next when the later handler declines.
func (s *Server) AddResource(prefix string, handler Handler) {
	s.tablesMu.Lock()
	defer s.tablesMu.Unlock()
	s.resources = append(s.resources, resourceEntry{
		prefix:  stripTrailingSlash(prefix),
		handler: handler,
	})
}

// AddRedirect rewrites requests for resource to newResource before
// resolution. Redirects chain, bounded by maxRedirects hops.
func (s *Server) AddRedirect(resource, newResource string) {
	s.tablesMu.Lock()
	defer s.tablesMu.Unlock()
	s.redirects[stripTrailingSlash(resource)] = newResource
}

// SetNotFoundHandler replaces the default 404 handler.
func (s *Server) SetNotFoundHandler(h Handler) {
	s.tablesMu.Lock()
	defer s.tablesMu.Unlock()
	s.notFound = h
}

// SetBadRequestHandler replaces the default 400 handler.
func (s *Server) SetBadRequestHandler(h Handler) {
	s.tablesMu.Lock()
	defer s.tablesMu.Unlock()
	s.badRequest = h
}

func stripTrailingSlash(p string) string {
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		return p[:len(p)-1]
	}
	return p
}

// dispatch resolves the request's resource to a handler and invokes
// it. Resolution order: redirect rewriting (loop-checked), the
// authentication hook, then longest-prefix handler lookup with
// fallback to shorter prefixes when a handler declines.
func (s *Server) dispatch(req *http1.Request, conn *http1.Connection) {
	resource := stripTrailingSlash(req.Resource())

	// follow the redirect table, detecting cycles with a visited set
	s.tablesMu.Lock()
	visited := map[string]bool{resource: true}
	original := resource
	for hops := 0; ; hops++ {
		target, ok := s.redirects[resource]
		if !ok {
			break
		}
		target = stripTrailingSlash(target)
		if hops >= maxRedirects || visited[target] {
			s.tablesMu.Unlock()
			SendError(req, conn, http1.StatusCodeServerError,
				"maximum number of redirects exceeded")
			return
		}
		visited[target] = true
		resource = target
	}
	s.tablesMu.Unlock()

	if resource != original {
		req.SetOriginalResource(original)
		req.SetResource(resource)
	}

	// authentication hook runs before handler lookup
	if s.cfg.Auth != nil {
		decision := s.cfg.Auth.Check(req)
		switch decision.Result {
		case AuthDenied:
			realm := decision.Realm
			if realm == "" {
				realm = "Restricted"
			}
			resp := http1.NewResponseFromRequest(req)
			resp.SetStatusCode(http1.StatusCodeUnauthorized)
			resp.SetStatusMessage(http1.StatusMessageUnauthorized)
			resp.AddHeader("WWW-Authenticate", `Basic realm="`+realm+`"`)
			resp.SetContentString(errorPage(http1.StatusCodeUnauthorized,
				http1.StatusMessageUnauthorized))
			resp.ChangeHeader(http1.HeaderContentType, http1.ContentTypeHTML)
			s.sendResponse(resp, conn)
			return
		case AuthRedirect:
			Redirect(req, conn, decision.RedirectTo)
			return
		}
	}

	// longest matching prefix wins; among equal prefixes the latest
	// registration wins; a declining handler falls back to the next
	// shorter prefix
	s.tablesMu.Lock()
	candidates := make([]resourceEntry, 0, 4)
	for _, entry := range s.resources {
		if strings.HasPrefix(resource, entry.prefix) {
			candidates = append(candidates, entry)
		}
	}
	notFound := s.notFound
	s.tablesMu.Unlock()

	// longest prefix first; reversing before the stable sort makes the
	// latest registration win among equal prefixes
	for i, j := 0, len(candidates)-1; i < j; i, j = i+1, j-1 {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].prefix) > len(candidates[j].prefix)
	})
	for _, entry := range candidates {
		if s.invoke(entry.handler, req, conn) {
			return
		}
	}

	if notFound != nil {
		s.invoke(notFound, req, conn)
		return
	}
	defaultNotFound(req, conn)
}

// invoke runs a handler with panic containment. After a panic the
// connection is marked for close and a 500 response is written,
// whether or not the handler had already written to the connection.
func (s *Server) invoke(h Handler, req *http1.Request, conn *http1.Connection) (handled bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logf("handler panic serving %s: %v", req.Resource(), r)
			// state after a panic is suspect; do not reuse the stream
			conn.SetLifecycle(http1.LifecycleClose)
			SendError(req, conn, http1.StatusCodeServerError,
				http1.StatusMessageServerError)
			handled = true
		}
	}()
	return h(req, conn)
}

func (s *Server) sendResponse(resp *http1.Response, conn *http1.Connection) {
	if _, err := http1.Send(resp, conn, false); err != nil {
		s.logf("write failed: %v", err)
		conn.SetLifecycle(http1.LifecycleClose)
	}
}

// errorPage renders the minimal HTML body used by the built-in error
// handlers.
func errorPage(code int, message string) string {
	return "<html><head>\n<title>" + message + "</title>\n</head><body>\n" +
		"<h1>" + message + "</h1>\n</body></html>\n"
}

// SendError sends a minimal HTML error response on conn.
func SendError(req *http1.Request, conn *http1.Connection, code int, message string) {
	resp := http1.NewResponseFromRequest(req)
	resp.SetStatusCode(code)
	resp.SetStatusMessage(message)
	resp.ChangeHeader(http1.HeaderContentType, http1.ContentTypeHTML)
	resp.SetContentString(errorPage(code, message))
	if _, err := http1.Send(resp, conn, false); err != nil {
		conn.SetLifecycle(http1.LifecycleClose)
	}
}

// Redirect sends a 302 response pointing the client at location.
func Redirect(req *http1.Request, conn *http1.Connection, location string) {
	resp := http1.NewResponseFromRequest(req)
	resp.SetStatusCode(http1.StatusCodeFound)
	resp.SetStatusMessage(http1.StatusMessageFound)
	resp.ChangeHeader(http1.HeaderLocation, location)
	resp.SetContentString(errorPage(http1.StatusCodeFound, http1.StatusMessageFound))
	resp.ChangeHeader(http1.HeaderContentType, http1.ContentTypeHTML)
	if _, err := http1.Send(resp, conn, false); err != nil {
		conn.SetLifecycle(http1.LifecycleClose)
	}
}

// MethodNotAllowed sends a 405 response listing the allowed methods.
func MethodNotAllowed(req *http1.Request, conn *http1.Connection, allowed ...string) {
	resp := http1.NewResponseFromRequest(req)
	resp.SetStatusCode(http1.StatusCodeMethodNotAllowed)
	resp.SetStatusMessage(http1.StatusMessageMethodNotAllowed)
	resp.ChangeHeader(http1.HeaderAllow, strings.Join(allowed, ", "))
	resp.ChangeHeader(http1.HeaderContentType, http1.ContentTypeHTML)
	resp.SetContentString(errorPage(http1.StatusCodeMethodNotAllowed,
		http1.StatusMessageMethodNotAllowed))
	if _, err := http1.Send(resp, conn, false); err != nil {
		conn.SetLifecycle(http1.LifecycleClose)
	}
}

// NotImplemented sends a 501 response for a recognized resource whose
// method has no implementation.
func NotImplemented(req *http1.Request, conn *http1.Connection) {
	SendError(req, conn, http1.StatusCodeNotImplemented,
		http1.StatusMessageNotImplemented)
}

func defaultNotFound(req *http1.Request, conn *http1.Connection) bool {
	SendError(req, conn, http1.StatusCodeNotFound, http1.StatusMessageNotFound)
	return true
}

func defaultBadRequest(req *http1.Request, conn *http1.Connection) bool {
	SendError(req, conn, http1.StatusCodeBadRequest, http1.StatusMessageBadRequest)
	return true
}
