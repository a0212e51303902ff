package http1

// headerState is the fine-grained automaton state while parsing the
// first line and header block (and, for chunked messages, the trailer
// block).
type headerState uint8

const (
	hdrMethodStart headerState = iota
	hdrMethod
	hdrURIStem
	hdrURIQuery
	hdrVersionH
	hdrVersionT1
	hdrVersionT2
	hdrVersionP
	hdrVersionSlash
	hdrVersionMajorStart
	hdrVersionMajor
	hdrVersionMinorStart
	hdrVersionMinor
	hdrStatusCodeStart
	hdrStatusCode
	hdrStatusMessage
	hdrExpectingNewline
	hdrExpectingCR
	hdrHeaderStart
	hdrHeaderName
	hdrSpaceBeforeHeaderValue
	hdrHeaderValue
	hdrExpectingFinalNewline
	hdrExpectingFinalCR
)

// parseHeaderBytes runs the header automaton over the current window.
// Returns (true, nil) when the header (or trailer) block is complete,
// (false, nil) when the window ran out first, and an error on any
// protocol violation.
//
// Line termination is tolerant: CRLF is canonical, but a lone CR or a
// lone LF also ends a line, and two identical terminators in a row
// end the whole block. A request line with no HTTP version token is
// accepted as an HTTP/0.9 Simple-Request (version 0.0) and completes
// the message immediately. Header continuation lines (leading SP/HT)
// are rejected per the RFC 7230 §3.2.4 deprecation of obs-fold.
func (p *Parser) parseHeaderBytes(m Msg) (bool, error) {
	base := m.Base()
	startPos := p.pos
	p.bytesLastRead = 0

	for p.pos < len(p.buf) {
		c := p.buf[p.pos]

		if p.saveRawHeaders {
			p.rawHeaders = append(p.rawHeaders, c)
		}

		switch p.hdrState {
		case hdrMethodStart:
			// ignore leading whitespace before the method
			if c != ' ' && c != '\r' && c != '\n' {
				if !isChar(c) || isControl(c) || isSpecial(c) {
					return p.headerFail(startPos, ErrMethodChar)
				}
				p.hdrState = hdrMethod
				p.method = append(p.method[:0], c)
			}

		case hdrMethod:
			if c == ' ' {
				p.resource = p.resource[:0]
				p.hdrState = hdrURIStem
			} else if !isChar(c) || isControl(c) || isSpecial(c) {
				return p.headerFail(startPos, ErrMethodChar)
			} else if len(p.method) >= MethodMax {
				return p.headerFail(startPos, ErrMethodSize)
			} else {
				p.method = append(p.method, c)
			}

		case hdrURIStem:
			switch {
			case c == ' ':
				p.hdrState = hdrVersionH
			case c == '?':
				p.queryString = p.queryString[:0]
				p.hdrState = hdrURIQuery
			case c == '\r':
				// no version token: HTTP/0.9 Simple-Request
				base.SetVersion(0, 0)
				p.hdrState = hdrExpectingNewline
			case c == '\n':
				// a lone LF ends the Simple-Request as well
				base.SetVersion(0, 0)
				p.pos++
				return p.headerDone(startPos)
			case isControl(c):
				return p.headerFail(startPos, ErrURIChar)
			case len(p.resource) >= ResourceMax:
				return p.headerFail(startPos, ErrURISize)
			default:
				p.resource = append(p.resource, c)
			}

		case hdrURIQuery:
			switch {
			case c == ' ':
				p.hdrState = hdrVersionH
			case c == '\r':
				base.SetVersion(0, 0)
				p.hdrState = hdrExpectingNewline
			case c == '\n':
				base.SetVersion(0, 0)
				p.pos++
				return p.headerDone(startPos)
			case isControl(c):
				return p.headerFail(startPos, ErrQueryChar)
			case len(p.queryString) >= QueryStringMax:
				return p.headerFail(startPos, ErrQuerySize)
			default:
				p.queryString = append(p.queryString, c)
			}

		case hdrVersionH:
			if c == '\r' || c == '\n' {
				// only a request may omit the version
				if !p.isRequest {
					return p.headerFail(startPos, ErrVersionEmpty)
				}
				base.SetVersion(0, 0)
				if c == '\n' {
					p.pos++
					return p.headerDone(startPos)
				}
				p.hdrState = hdrExpectingNewline
			} else if c != 'H' {
				return p.headerFail(startPos, ErrVersionChar)
			} else {
				p.hdrState = hdrVersionT1
			}

		case hdrVersionT1:
			if c != 'T' {
				return p.headerFail(startPos, ErrVersionChar)
			}
			p.hdrState = hdrVersionT2

		case hdrVersionT2:
			if c != 'T' {
				return p.headerFail(startPos, ErrVersionChar)
			}
			p.hdrState = hdrVersionP

		case hdrVersionP:
			if c != 'P' {
				return p.headerFail(startPos, ErrVersionChar)
			}
			p.hdrState = hdrVersionSlash

		case hdrVersionSlash:
			if c != '/' {
				return p.headerFail(startPos, ErrVersionChar)
			}
			p.hdrState = hdrVersionMajorStart

		case hdrVersionMajorStart:
			if !isDigit(c) {
				return p.headerFail(startPos, ErrVersionChar)
			}
			base.SetVersion(uint16(c-'0'), base.VersionMinor())
			p.hdrState = hdrVersionMajor

		case hdrVersionMajor:
			if c == '.' {
				p.hdrState = hdrVersionMinorStart
			} else if isDigit(c) {
				v := int(base.VersionMajor())*10 + int(c-'0')
				if v > 65535 {
					return p.headerFail(startPos, ErrVersionChar)
				}
				base.SetVersion(uint16(v), base.VersionMinor())
			} else {
				return p.headerFail(startPos, ErrVersionChar)
			}

		case hdrVersionMinorStart:
			if !isDigit(c) {
				return p.headerFail(startPos, ErrVersionChar)
			}
			base.SetVersion(base.VersionMajor(), uint16(c-'0'))
			p.hdrState = hdrVersionMinor

		case hdrVersionMinor:
			switch {
			case c == ' ':
				// trailing spaces after the version are ignored in a
				// request; in a response the status code follows
				if !p.isRequest {
					p.hdrState = hdrStatusCodeStart
				}
			case c == '\r':
				if !p.isRequest {
					return p.headerFail(startPos, ErrStatusEmpty)
				}
				p.hdrState = hdrExpectingNewline
			case c == '\n':
				if !p.isRequest {
					return p.headerFail(startPos, ErrStatusEmpty)
				}
				p.hdrState = hdrExpectingCR
			case isDigit(c):
				v := int(base.VersionMinor())*10 + int(c-'0')
				if v > 65535 {
					return p.headerFail(startPos, ErrVersionChar)
				}
				base.SetVersion(base.VersionMajor(), uint16(v))
			default:
				return p.headerFail(startPos, ErrVersionChar)
			}

		case hdrStatusCodeStart:
			if !isDigit(c) {
				return p.headerFail(startPos, ErrStatusChar)
			}
			p.statusCode = int(c - '0')
			p.hdrState = hdrStatusCode

		case hdrStatusCode:
			switch {
			case c == ' ':
				p.statusMessage = p.statusMessage[:0]
				p.hdrState = hdrStatusMessage
			case isDigit(c):
				p.statusCode = p.statusCode*10 + int(c-'0')
				if p.statusCode > 999999 {
					return p.headerFail(startPos, ErrStatusChar)
				}
			case c == '\r':
				// tolerate a status line with no reason phrase
				p.statusMessage = p.statusMessage[:0]
				p.hdrState = hdrExpectingNewline
			case c == '\n':
				p.statusMessage = p.statusMessage[:0]
				p.hdrState = hdrExpectingCR
			default:
				return p.headerFail(startPos, ErrStatusChar)
			}

		case hdrStatusMessage:
			switch {
			case c == '\r':
				p.hdrState = hdrExpectingNewline
			case c == '\n':
				p.hdrState = hdrExpectingCR
			case isControl(c):
				return p.headerFail(startPos, ErrStatusChar)
			case len(p.statusMessage) >= StatusMessageMax:
				return p.headerFail(startPos, ErrStatusChar)
			default:
				p.statusMessage = append(p.statusMessage, c)
			}

		case hdrExpectingNewline:
			// a CR was seen; an LF canonically follows
			if p.isRequest && base.VersionMajor() == 0 && p.msgState != parseFooters {
				// HTTP/0.9 Simple-Request: message complete; after a
				// lone CR the current byte is left unconsumed
				if c == '\n' {
					p.pos++
				}
				return p.headerDone(startPos)
			}
			switch {
			case c == '\n':
				p.hdrState = hdrHeaderStart
			case c == '\r':
				// two CRs in a row: CR-only line termination, the
				// header block is finished
				p.pos++
				return p.headerDone(startPos)
			case c == '\t' || c == ' ':
				return p.headerFail(startPos, ErrFoldedHeader)
			case !isChar(c) || isControl(c) || isSpecial(c):
				return p.headerFail(startPos, ErrHeaderChar)
			default:
				// first character of the next header's name
				p.headerName = append(p.headerName[:0], c)
				p.hdrState = hdrHeaderName
			}

		case hdrExpectingCR:
			// an LF was seen without a CR
			switch {
			case c == '\r':
				p.hdrState = hdrHeaderStart
			case c == '\n':
				// two LFs in a row: LF-only termination, block done
				p.pos++
				return p.headerDone(startPos)
			case c == '\t' || c == ' ':
				return p.headerFail(startPos, ErrFoldedHeader)
			case !isChar(c) || isControl(c) || isSpecial(c):
				return p.headerFail(startPos, ErrHeaderChar)
			default:
				p.headerName = append(p.headerName[:0], c)
				p.hdrState = hdrHeaderName
			}

		case hdrHeaderStart:
			switch {
			case c == '\r':
				p.hdrState = hdrExpectingFinalNewline
			case c == '\n':
				p.hdrState = hdrExpectingFinalCR
			case c == '\t' || c == ' ':
				return p.headerFail(startPos, ErrFoldedHeader)
			case !isChar(c) || isControl(c) || isSpecial(c):
				return p.headerFail(startPos, ErrHeaderChar)
			default:
				p.headerName = append(p.headerName[:0], c)
				p.hdrState = hdrHeaderName
			}

		case hdrHeaderName:
			switch {
			case c == ':':
				p.headerValue = p.headerValue[:0]
				p.hdrState = hdrSpaceBeforeHeaderValue
			case !isChar(c) || isControl(c) || isSpecial(c):
				return p.headerFail(startPos, ErrHeaderChar)
			case len(p.headerName) >= HeaderNameMax:
				return p.headerFail(startPos, ErrHeaderNameSize)
			default:
				p.headerName = append(p.headerName, c)
			}

		case hdrSpaceBeforeHeaderValue:
			switch {
			case c == ' ':
				p.hdrState = hdrHeaderValue
			case c == '\r':
				// empty header value
				base.AddHeader(string(p.headerName), string(p.headerValue))
				p.hdrState = hdrExpectingNewline
			case c == '\n':
				base.AddHeader(string(p.headerName), string(p.headerValue))
				p.hdrState = hdrExpectingCR
			case !isChar(c) || isControl(c) || isSpecial(c):
				return p.headerFail(startPos, ErrHeaderChar)
			default:
				p.headerValue = append(p.headerValue[:0], c)
				p.hdrState = hdrHeaderValue
			}

		case hdrHeaderValue:
			switch {
			case c == '\r':
				base.AddHeader(string(p.headerName), string(p.headerValue))
				p.hdrState = hdrExpectingNewline
			case c == '\n':
				base.AddHeader(string(p.headerName), string(p.headerValue))
				p.hdrState = hdrExpectingCR
			case c != '\t' && isControl(c):
				// TEXT is any octet except CTLs, HT excepted
				return p.headerFail(startPos, ErrHeaderChar)
			case len(p.headerValue) >= HeaderValueMax:
				return p.headerFail(startPos, ErrHeaderValueSize)
			default:
				p.headerValue = append(p.headerValue, c)
			}

		case hdrExpectingFinalNewline:
			if c == '\n' {
				p.pos++
			}
			return p.headerDone(startPos)

		case hdrExpectingFinalCR:
			if c == '\r' {
				p.pos++
			}
			return p.headerDone(startPos)
		}

		p.pos++
	}

	p.bytesLastRead = p.pos - startPos
	p.bytesTotalRead += p.bytesLastRead
	return false, nil
}

func (p *Parser) headerDone(startPos int) (bool, error) {
	p.bytesLastRead = p.pos - startPos
	p.bytesTotalRead += p.bytesLastRead
	return true, nil
}

func (p *Parser) headerFail(startPos int, err error) (bool, error) {
	p.bytesLastRead = p.pos - startPos
	p.bytesTotalRead += p.bytesLastRead
	return false, err
}
