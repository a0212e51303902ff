package http1

import (
	"strconv"
	"time"
)

// SetCookieParams carries the attributes of an outgoing Set-Cookie
// header. Zero values omit the corresponding attribute.
type SetCookieParams struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	MaxAge   int
	Secure   bool
	HTTPOnly bool
}

// Response is the server-to-client message variant. It carries the
// status code and reason phrase, remembers the originating request's
// method for the implied-content-length predicate, and holds a list
// of outgoing cookies serialized as Set-Cookie headers on send.
type Response struct {
	Message

	statusCode    int
	statusMessage string

	// requestMethod is the method of the request this response
	// answers. A response to HEAD never carries a body.
	requestMethod string

	outCookies []SetCookieParams
}

// NewResponse returns an empty 200 OK HTTP/1.1 response.
func NewResponse() *Response {
	return &Response{
		Message:       newMessage(),
		statusCode:    StatusCodeOK,
		statusMessage: StatusMessageOK,
	}
}

// NewResponseFromRequest returns a response initialized to answer
// req: the protocol version is mirrored, chunked-coding capability is
// derived from the peer speaking HTTP/1.1, and the request method is
// remembered for the implied-content-length predicate.
func NewResponseFromRequest(req *Request) *Response {
	resp := NewResponse()
	resp.SetVersion(req.VersionMajor(), req.VersionMinor())
	resp.SetChunksSupported(req.VersionMajor() > 1 ||
		(req.VersionMajor() == 1 && req.VersionMinor() >= 1))
	resp.requestMethod = req.Method()
	return resp
}

// Base returns the embedded common message record.
func (r *Response) Base() *Message { return &r.Message }

func (r *Response) seal() {}

// Clear resets the response to its post-construction state.
func (r *Response) Clear() {
	r.Message.Clear()
	r.statusCode = StatusCodeOK
	r.statusMessage = StatusMessageOK
	r.requestMethod = ""
	r.outCookies = r.outCookies[:0]
}

// StatusCode returns the response status code.
func (r *Response) StatusCode() int { return r.statusCode }

// SetStatusCode sets the status code and invalidates the first line.
func (r *Response) SetStatusCode(code int) {
	r.statusCode = code
	r.firstLineDirty = true
}

// StatusMessage returns the reason phrase. May be empty; some peers
// omit it.
func (r *Response) StatusMessage() string { return r.statusMessage }

// SetStatusMessage sets the reason phrase and invalidates the first
// line.
func (r *Response) SetStatusMessage(msg string) {
	r.statusMessage = msg
	r.firstLineDirty = true
}

// RequestMethod returns the method of the request being answered.
func (r *Response) RequestMethod() string { return r.requestMethod }

// SetRequestMethod records the method of the request being answered.
func (r *Response) SetRequestMethod(m string) { r.requestMethod = m }

// FirstLine returns "<version> <code> <message>", rebuilding the
// cached copy if any component changed.
func (r *Response) FirstLine() string {
	if r.firstLineDirty {
		r.firstLine = r.versionString() + " " + strconv.Itoa(r.statusCode) + " " + r.statusMessage
		r.firstLineDirty = false
	}
	return r.firstLine
}

// IsContentLengthImplied reports whether this response implies a
// zero-length body: responses to HEAD, informational (1xx), 204 No
// Content and 304 Not Modified.
func (r *Response) IsContentLengthImplied() bool {
	if r.requestMethod == MethodHead {
		return true
	}
	return (r.statusCode >= 100 && r.statusCode <= 199) ||
		r.statusCode == 204 || r.statusCode == 304
}

// SetCookie queues a name=value cookie for the client.
func (r *Response) SetCookie(name, value string) {
	r.outCookies = append(r.outCookies, SetCookieParams{Name: name, Value: value})
}

// SetCookieWithParams queues an outgoing cookie with attributes.
func (r *Response) SetCookieWithParams(p SetCookieParams) {
	r.outCookies = append(r.outCookies, p)
}

// DeleteCookie queues a cookie removal (Max-Age=0).
func (r *Response) DeleteCookie(name string) {
	r.outCookies = append(r.outCookies, SetCookieParams{Name: name, MaxAge: -1})
}

// SetLastModified sets the Last-Modified header in RFC 1123 form.
func (r *Response) SetLastModified(t time.Time) {
	r.headers.Change(HeaderLastModified, t.UTC().Format(time.RFC1123))
}

// prepareCookieHeaders serializes queued cookies into Set-Cookie
// headers, one header per cookie.
func (r *Response) prepareCookieHeaders() {
	for _, c := range r.outCookies {
		line := c.Name + "=" + c.Value
		if c.Path != "" {
			line += "; Path=" + c.Path
		}
		if c.Domain != "" {
			line += "; Domain=" + c.Domain
		}
		if c.MaxAge > 0 {
			line += "; Max-Age=" + strconv.Itoa(c.MaxAge)
		} else if c.MaxAge < 0 {
			line += "; Max-Age=0"
		}
		if c.Secure {
			line += "; Secure"
		}
		if c.HTTPOnly {
			line += "; HttpOnly"
		}
		r.headers.Add(HeaderSetCookie, line)
	}
	r.outCookies = r.outCookies[:0]
}
