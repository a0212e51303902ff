package http1

import (
	"net"
	"strconv"

	"github.com/intuitivelabs/bytescase"
	"github.com/valyala/bytebufferpool"
)

// Msg is the interface shared by Request and Response. The two
// variants embed Message, which carries everything that is common to
// both sides of the protocol; Msg exists so the parser and the
// blocking I/O helpers can operate on either.
//
// The interface is sealed: only Request and Response implement it.
type Msg interface {
	// Base returns the embedded common message record.
	Base() *Message

	// FirstLine returns the message's first line (request line or
	// status line), recomputing it if a component changed since the
	// last call.
	FirstLine() string

	// IsContentLengthImplied reports whether the message implies a
	// zero-length payload regardless of framing headers. Responses to
	// HEAD and 1xx/204/304 responses imply zero; requests never do
	// (a request without Content-Length is handled by the parser's
	// header-finish logic instead).
	IsContentLengthImplied() bool

	// prepareCookieHeaders converts the variant's cookie state into
	// outgoing headers before serialization.
	prepareCookieHeaders()

	// seal restricts implementations to this package.
	seal()
}

// chunkCachePool provides pooled byte buffers for chunk reassembly
// and until-close content accumulation.
var chunkCachePool bytebufferpool.Pool

// Message holds the state common to requests and responses: protocol
// version, header and cookie dictionaries, the payload content buffer
// and the bookkeeping the parser needs to finalize a message.
//
// A Message is not safe for concurrent use; it belongs to a single
// connection's goroutine at any time.
type Message struct {
	versionMajor uint16
	versionMinor uint16

	headers Dict
	cookies Dict

	// Payload content. When a content buffer exists it is exactly
	// contentLength bytes long, and CreateContentBuffer additionally
	// guarantees one NUL byte of spare capacity past the end so textual
	// content can be handed to C-string consumers without copying. In
	// headers-only and payload-handler parsing no buffer is allocated
	// and contentLength holds the declared length.
	content       []byte
	contentLength int

	// chunkCache accumulates chunked (or until-close) body bytes until
	// ConcatenateChunks moves them into content. Lazily acquired from
	// a buffer pool, released on Clear.
	chunkCache *bytebufferpool.ByteBuffer

	// First-line cache. Variant accessors that change a component of
	// the first line mark it dirty; FirstLine rebuilds on demand.
	firstLine      string
	firstLineDirty bool

	isValid                bool
	chunksSupported        bool
	doNotSendContentLength bool
	chunked                bool

	remoteIP net.IP

	status           DataStatus
	missingPackets   bool
	dataAfterMissing bool
}

func newMessage() Message {
	return Message{
		versionMajor:   1,
		versionMinor:   1,
		firstLineDirty: true,
	}
}

// Clear resets the message to its post-construction state and
// releases all owned buffers.
func (m *Message) Clear() {
	m.versionMajor = 1
	m.versionMinor = 1
	m.headers.Clear()
	m.cookies.Clear()
	m.content = nil
	m.contentLength = 0
	m.releaseChunkCache()
	m.firstLine = ""
	m.firstLineDirty = true
	m.isValid = false
	m.chunksSupported = false
	m.doNotSendContentLength = false
	m.chunked = false
	m.remoteIP = nil
	m.status = StatusNone
	m.missingPackets = false
	m.dataAfterMissing = false
}

// Version accessors. Version 0.0 denotes an HTTP/0.9 Simple-Request.

// VersionMajor returns the major protocol version number.
func (m *Message) VersionMajor() uint16 { return m.versionMajor }

// VersionMinor returns the minor protocol version number.
func (m *Message) VersionMinor() uint16 { return m.versionMinor }

// SetVersion sets the protocol version and invalidates the cached
// first line.
func (m *Message) SetVersion(major, minor uint16) {
	m.versionMajor = major
	m.versionMinor = minor
	m.firstLineDirty = true
}

// versionString renders "HTTP/<major>.<minor>".
func (m *Message) versionString() string {
	return "HTTP/" + strconv.Itoa(int(m.versionMajor)) + "." + strconv.Itoa(int(m.versionMinor))
}

// Headers returns the message's header dictionary.
func (m *Message) Headers() *Dict { return &m.headers }

// Cookies returns the message's cookie dictionary. For requests this
// is populated from Cookie headers; for responses from Set-Cookie.
func (m *Message) Cookies() *Dict { return &m.cookies }

// GetHeader returns the first value of the named header, or "".
func (m *Message) GetHeader(name string) string { return m.headers.Find(name) }

// HasHeader reports whether the named header is present.
func (m *Message) HasHeader(name string) bool { return m.headers.Has(name) }

// AddHeader appends a header entry, preserving existing entries.
func (m *Message) AddHeader(name, value string) { m.headers.Add(name, value) }

// ChangeHeader replaces all entries for the named header with value.
func (m *Message) ChangeHeader(name, value string) { m.headers.Change(name, value) }

// DeleteHeader removes all entries for the named header.
func (m *Message) DeleteHeader(name string) { m.headers.Delete(name) }

// GetCookie returns the first value of the named cookie, or "".
func (m *Message) GetCookie(name string) string { return m.cookies.Find(name) }

// IsValid reports whether a parser completed this message without
// error.
func (m *Message) IsValid() bool { return m.isValid }

// SetIsValid records the parse outcome.
func (m *Message) SetIsValid(v bool) { m.isValid = v }

// ChunksSupported reports whether the peer is able to receive chunked
// transfer coding (true when the peer speaks HTTP/1.1).
func (m *Message) ChunksSupported() bool { return m.chunksSupported }

// SetChunksSupported records the peer's chunked-coding capability.
func (m *Message) SetChunksSupported(v bool) { m.chunksSupported = v }

// DoNotSendContentLength suppresses the Content-Length header when
// the message is serialized.
func (m *Message) DoNotSendContentLength(v bool) { m.doNotSendContentLength = v }

// IsChunked reports whether the message payload uses chunked transfer
// coding. Derived from the Transfer-Encoding header at parse-finish
// time, or set explicitly for outgoing messages.
func (m *Message) IsChunked() bool { return m.chunked }

// SetChunked marks the message as using chunked transfer coding.
func (m *Message) SetChunked(v bool) { m.chunked = v }

// UpdateTransferEncodingUsingHeader derives the chunked flag from the
// Transfer-Encoding header, matched case-insensitively.
func (m *Message) UpdateTransferEncodingUsingHeader() {
	te := m.headers.Find(HeaderTransferEncoding)
	m.chunked = len(te) == len(TransferEncodingChunked) &&
		bytescase.CmpEq([]byte(te), []byte(TransferEncodingChunked))
}

// UpdateContentLengthUsingHeader parses the Content-Length header and
// stores the result. Returns ErrInvalidContentLength if the value is
// not a non-negative integer.
func (m *Message) UpdateContentLengthUsingHeader() error {
	v := m.headers.Find(HeaderContentLength)
	if v == "" {
		return ErrInvalidContentLength
	}
	n := 0
	for i := 0; i < len(v); i++ {
		if !isDigit(v[i]) {
			return ErrInvalidContentLength
		}
		n = n*10 + int(v[i]-'0')
		if n < 0 {
			return ErrInvalidContentLength
		}
	}
	m.contentLength = n
	return nil
}

// RemoteIP returns the IP address of the remote peer, if known.
func (m *Message) RemoteIP() net.IP { return m.remoteIP }

// SetRemoteIP records the IP address of the remote peer.
func (m *Message) SetRemoteIP(ip net.IP) { m.remoteIP = ip }

// Status returns the message's data-integrity status.
func (m *Message) Status() DataStatus { return m.status }

// SetStatus sets the message's data-integrity status.
func (m *Message) SetStatus(s DataStatus) { m.status = s }

// HasMissingPackets reports whether any missing-data gap was recorded.
func (m *Message) HasMissingPackets() bool { return m.missingPackets }

// SetMissingPackets records that a missing-data gap occurred.
func (m *Message) SetMissingPackets(v bool) { m.missingPackets = v }

// HasDataAfterMissingPackets reports whether data was observed after
// a missing-data gap.
func (m *Message) HasDataAfterMissingPackets() bool { return m.dataAfterMissing }

// SetDataAfterMissingPackets records that data followed a gap.
func (m *Message) SetDataAfterMissingPackets(v bool) { m.dataAfterMissing = v }

// ContentLength returns the payload size in bytes: the size of the
// content buffer when one exists, otherwise the declared length.
func (m *Message) ContentLength() int { return m.contentLength }

// SetContentLength sets the payload size used by the next
// CreateContentBuffer call and by serialization.
func (m *Message) SetContentLength(n int) { m.contentLength = n }

// IsContentBufferAllocated reports whether a content buffer exists.
func (m *Message) IsContentBufferAllocated() bool { return m.content != nil }

// CreateContentBuffer allocates (or reallocates) the content buffer to
// hold exactly ContentLength bytes and returns it. One spare byte of
// capacity past the end is kept NUL so the buffer doubles as a C
// string when the content is textual.
func (m *Message) CreateContentBuffer() []byte {
	buf := make([]byte, m.contentLength+1)
	m.content = buf[:m.contentLength]
	return m.content
}

// Content returns the payload content buffer. May be nil if no buffer
// has been allocated.
func (m *Message) Content() []byte { return m.content }

// ContentString returns the payload content as a string.
func (m *Message) ContentString() string { return string(m.content) }

// SetContent copies b into a fresh content buffer and updates the
// content length to match.
func (m *Message) SetContent(b []byte) {
	m.contentLength = len(b)
	copy(m.CreateContentBuffer(), b)
}

// SetContentString is SetContent for string payloads.
func (m *Message) SetContentString(s string) {
	m.contentLength = len(s)
	copy(m.CreateContentBuffer(), s)
}

// chunk cache management

func (m *Message) chunkCacheBuf() *bytebufferpool.ByteBuffer {
	if m.chunkCache == nil {
		m.chunkCache = chunkCachePool.Get()
	}
	return m.chunkCache
}

func (m *Message) releaseChunkCache() {
	if m.chunkCache != nil {
		chunkCachePool.Put(m.chunkCache)
		m.chunkCache = nil
	}
}

// ChunkCacheLen returns the number of body bytes accumulated in the
// chunk cache.
func (m *Message) ChunkCacheLen() int {
	if m.chunkCache == nil {
		return 0
	}
	return len(m.chunkCache.B)
}

// appendChunkByte appends one body byte to the chunk cache.
func (m *Message) appendChunkByte(b byte) {
	cc := m.chunkCacheBuf()
	cc.B = append(cc.B, b)
}

// appendChunkBytes appends body bytes to the chunk cache.
func (m *Message) appendChunkBytes(b []byte) {
	cc := m.chunkCacheBuf()
	cc.B = append(cc.B, b...)
}

// ClearChunkCache discards any accumulated chunk bytes.
func (m *Message) ClearChunkCache() {
	if m.chunkCache != nil {
		m.chunkCache.Reset()
	}
}

// ConcatenateChunks moves the accumulated chunk-cache bytes into the
// content buffer and sets the content length to the total. The chunk
// cache is released back to its pool.
func (m *Message) ConcatenateChunks() {
	if m.chunkCache == nil {
		m.contentLength = 0
		m.CreateContentBuffer()
		return
	}
	m.contentLength = len(m.chunkCache.B)
	copy(m.CreateContentBuffer(), m.chunkCache.B)
	m.releaseChunkCache()
}

// CheckKeepAlive reports whether the message asks for the connection
// to be kept open: the protocol version is at least 1.1 and no
// "Connection: close" header is present. HTTP/1.0 peers must request
// keep-alive explicitly, which the server checks separately.
func (m *Message) CheckKeepAlive() bool {
	conn := m.headers.Find(HeaderConnection)
	if len(conn) == len(ConnectionClose) &&
		bytescase.CmpEq([]byte(conn), []byte(ConnectionClose)) {
		return false
	}
	return m.versionMajor > 1 || (m.versionMajor == 1 && m.versionMinor >= 1)
}

// prepareHeadersForSend adjusts framing headers before serialization:
// Connection reflects the keep-alive decision, Transfer-Encoding is
// set when sending chunks to a peer that supports them, and
// Content-Length is filled in otherwise (unless suppressed).
func (m *Message) prepareHeadersForSend(keepAlive, usingChunks bool) {
	if keepAlive {
		m.headers.Change(HeaderConnection, ConnectionKeepAlive)
	} else {
		m.headers.Change(HeaderConnection, ConnectionClose)
	}
	if usingChunks {
		if m.chunksSupported {
			m.headers.Change(HeaderTransferEncoding, TransferEncodingChunked)
		}
	} else if !m.doNotSendContentLength {
		m.headers.Change(HeaderContentLength, strconv.Itoa(m.contentLength))
	}
}
