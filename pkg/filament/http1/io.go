package http1

import (
	"io"

	"github.com/valyala/bytebufferpool"
)

// sendBufPool provides pooled buffers for message serialization so a
// whole message goes to the socket in one write.
var sendBufPool bytebufferpool.Pool

// Send serializes m and writes it to the connection, blocking until
// the write completes. The Connection header reflects the
// connection's lifecycle, Content-Length is filled in unless the
// message suppresses it or uses chunked coding, and queued cookies
// become headers. Returns the number of bytes written.
func Send(m Msg, c *Connection, headersOnly bool) (int, error) {
	base := m.Base()
	keepAlive := c.Lifecycle() != LifecycleClose

	m.prepareCookieHeaders()
	base.prepareHeadersForSend(keepAlive, base.IsChunked())

	buf := sendBufPool.Get()
	defer sendBufPool.Put(buf)

	buf.B = append(buf.B, m.FirstLine()...)
	buf.B = append(buf.B, crlfBytes...)
	base.Headers().VisitAll(func(name, value string) bool {
		buf.B = append(buf.B, name...)
		buf.B = append(buf.B, colonSpace...)
		buf.B = append(buf.B, value...)
		buf.B = append(buf.B, crlfBytes...)
		return true
	})
	buf.B = append(buf.B, crlfBytes...)

	if !headersOnly && base.ContentLength() > 0 {
		buf.B = append(buf.B, base.Content()...)
	}

	return c.Write(buf.B)
}

// Receive reads from the connection and drives the parser until a
// whole message has been absorbed or an error terminates it, blocking
// as needed. Bytes already bookmarked in the connection's read buffer
// (a pipelined request) are consumed before any new I/O is issued,
// and any bytes left after the message boundary are bookmarked for
// the next Receive on the same connection.
//
// If the peer closes mid-parse while the parser is reading content
// with no declared length, the close is the natural end of the
// message and Receive returns successfully with the connection's
// lifecycle set to close. A close in any other parser state returns
// ErrTruncatedMessage.
func Receive(m Msg, c *Connection, p *Parser) (int, error) {
	base := m.Base()
	base.SetRemoteIP(c.RemoteIP())

	total := 0
	for {
		if !c.HasBufferedData() {
			n, err := c.ReadSome()
			if n == 0 && err != nil {
				if err == io.EOF {
					if p.CheckPrematureEOF(m) {
						return total, ErrTruncatedMessage
					}
					// content-until-close ended normally
					c.SetLifecycle(LifecycleClose)
					return total, nil
				}
				return total, err
			}
		}

		p.SetReadBuffer(c.ReadBuffer())
		done, err := p.Parse(m)
		c.advanceRead(p.BytesLastRead())
		total += p.BytesLastRead()
		if err != nil {
			return total, err
		}
		if done {
			// the bookmark now marks the start of any pipelined bytes
			return total, nil
		}
	}
}
