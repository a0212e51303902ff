package http1

// Request is the client-to-server message variant. In addition to the
// common Message record it carries the method, the resource path (as
// possibly rewritten by a dispatcher), the path as originally
// received, and the query string with its parsed dictionary.
type Request struct {
	Message

	method           string
	resource         string
	originalResource string
	queryString      string
	queries          Dict
}

// NewRequest returns an empty HTTP/1.1 request.
func NewRequest() *Request {
	return &Request{Message: newMessage()}
}

// NewRequestWithMethod returns a request with the method and resource
// already set, ready to have content or headers added before sending.
func NewRequestWithMethod(method, resource string) *Request {
	r := NewRequest()
	r.method = method
	r.resource = resource
	return r
}

// Base returns the embedded common message record.
func (r *Request) Base() *Message { return &r.Message }

func (r *Request) seal() {}

// Clear resets the request to its post-construction state.
func (r *Request) Clear() {
	r.Message.Clear()
	r.method = ""
	r.resource = ""
	r.originalResource = ""
	r.queryString = ""
	r.queries.Clear()
}

// Method returns the HTTP method ("GET", "POST", ...).
func (r *Request) Method() string { return r.method }

// SetMethod sets the HTTP method and invalidates the first line.
func (r *Request) SetMethod(m string) {
	r.method = m
	r.firstLineDirty = true
}

// Resource returns the URI path, after any rewrite performed by the
// dispatcher's redirect resolution.
func (r *Request) Resource() string { return r.resource }

// SetResource sets the URI path and invalidates the first line.
func (r *Request) SetResource(res string) {
	r.resource = res
	r.firstLineDirty = true
}

// OriginalResource returns the URI path as first received, before any
// redirect rewrote it. Empty if no redirect was applied.
func (r *Request) OriginalResource() string { return r.originalResource }

// SetOriginalResource records the pre-redirect URI path.
func (r *Request) SetOriginalResource(res string) { r.originalResource = res }

// QueryString returns the raw query string (without the '?').
func (r *Request) QueryString() string { return r.queryString }

// SetQueryString sets the raw query string and invalidates the first
// line.
func (r *Request) SetQueryString(q string) {
	r.queryString = q
	r.firstLineDirty = true
}

// Queries returns the parsed query-parameter dictionary. Populated
// from the URI query string and, for form posts, from the body.
func (r *Request) Queries() *Dict { return &r.queries }

// FirstLine returns "<method> <resource>[?<query>] <version>",
// rebuilding the cached copy if any component changed.
func (r *Request) FirstLine() string {
	if r.firstLineDirty {
		line := r.method + " " + r.resource
		if r.queryString != "" {
			line += "?" + r.queryString
		}
		r.firstLine = line + " " + r.versionString()
		r.firstLineDirty = false
	}
	return r.firstLine
}

// IsContentLengthImplied always reports false for requests; a request
// without Content-Length and without chunking is treated as having a
// zero-length body by the parser's header-finish step, so an explicit
// Content-Length must still be honored when present.
func (r *Request) IsContentLengthImplied() bool { return false }

// prepareCookieHeaders serializes the request's cookie dictionary
// into a single Cookie header.
func (r *Request) prepareCookieHeaders() {
	if r.cookies.Len() == 0 {
		return
	}
	var line string
	r.cookies.VisitAll(func(name, value string) bool {
		if line != "" {
			line += "; "
		}
		line += name + "=" + value
		return true
	})
	r.headers.Change(HeaderCookie, line)
}
