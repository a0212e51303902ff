package http1

// chunkState is the automaton state while parsing chunked transfer
// coding.
type chunkState uint8

const (
	chunkSizeStart chunkState = iota
	chunkSize
	chunkIgnoredExtension
	chunkExpectingCRAfterSize
	chunkExpectingLFAfterSize
	chunkData
	chunkExpectingCRAfterData
	chunkExpectingLFAfterData
	chunkExpectingFinalCROrFooters
	chunkExpectingFinalLF
)

// finishHeaderParsing decides how the payload will be framed once the
// header block is complete, allocates the content buffer when a
// length is known, and moves the accumulated first-line data into the
// message.
func (p *Parser) finishHeaderParsing(m Msg) (bool, error) {
	base := m.Base()

	p.bytesContentRemaining = 0
	p.bytesContentRead = 0
	base.SetContentLength(0)
	base.UpdateTransferEncodingUsingHeader()
	p.updateMessageWithHeaderData(m)

	done := false
	switch {
	case base.IsChunked():
		p.msgState = parseChunks
		if p.headersOnly {
			done = true
		}

	case m.IsContentLengthImplied():
		// zero-length body regardless of headers
		p.msgState = parseEnd
		done = true

	case base.HasHeader(HeaderContentLength):
		if err := base.UpdateContentLengthUsingHeader(); err != nil {
			return false, err
		}
		if base.ContentLength() == 0 {
			p.msgState = parseEnd
			done = true
			break
		}
		p.msgState = parseContent
		p.bytesContentRemaining = base.ContentLength()
		// the buffer is capped; bytes past the cap are consumed from
		// the wire but discarded
		if base.ContentLength() > p.maxContentLength {
			base.SetContentLength(p.maxContentLength)
		}
		if p.headersOnly {
			done = true
		} else if p.payloadHandler == nil {
			// streaming mode never buffers content
			base.CreateContentBuffer()
		}

	default:
		// no framing information at all
		if p.isRequest {
			// requests without Content-Length carry no body
			p.msgState = parseEnd
			done = true
		} else {
			// responses read until the peer closes
			base.ClearChunkCache()
			p.msgState = parseContentNoLength
			if p.headersOnly {
				done = true
			}
		}
	}

	return done, nil
}

// parseChunkBytes runs the chunked-coding automaton over the current
// window. Chunk sizes are hex, tolerantly surrounded by whitespace;
// ';' introduces an extension that is ignored through the next CRLF.
// A zero-size chunk either ends the message at the final CRLF or, if
// trailer headers follow, flips the parser into footers mode.
func (p *Parser) parseChunkBytes(base *Message) (bool, error) {
	startPos := p.pos
	p.bytesLastRead = 0

	for p.pos < len(p.buf) {
		c := p.buf[p.pos]

		switch p.chunkState {
		case chunkSizeStart:
			if isHexDigit(c) {
				p.chunkSizeHex = append(p.chunkSizeHex[:0], c)
				p.chunkState = chunkSize
			} else if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
				// leading whitespace tolerated; there is no ambiguity
			} else {
				return p.chunkFail(startPos, ErrChunkChar)
			}

		case chunkSize:
			switch {
			case isHexDigit(c):
				p.chunkSizeHex = append(p.chunkSizeHex, c)
			case c == '\r':
				p.chunkState = chunkExpectingLFAfterSize
			case c == ' ' || c == '\t':
				// trailing whitespace tolerated
				p.chunkState = chunkExpectingCRAfterSize
			case c == ';':
				// chunk extension, ignored through CRLF
				p.chunkState = chunkIgnoredExtension
			default:
				return p.chunkFail(startPos, ErrChunkChar)
			}

		case chunkIgnoredExtension:
			if c == '\r' {
				p.chunkState = chunkExpectingLFAfterSize
			}

		case chunkExpectingCRAfterSize:
			switch {
			case c == '\r':
				p.chunkState = chunkExpectingLFAfterSize
			case c == ' ' || c == '\t':
			default:
				return p.chunkFail(startPos, ErrChunkChar)
			}

		case chunkExpectingLFAfterSize:
			// strict: anything but LF leaves the chunk start ambiguous
			if c != '\n' {
				return p.chunkFail(startPos, ErrChunkChar)
			}
			p.bytesReadInCurrentChunk = 0
			p.sizeOfCurrentChunk = parseHexInt(p.chunkSizeHex)
			if p.sizeOfCurrentChunk == 0 {
				p.chunkState = chunkExpectingFinalCROrFooters
			} else {
				p.chunkState = chunkData
			}

		case chunkData:
			if p.bytesReadInCurrentChunk < p.sizeOfCurrentChunk {
				n := p.sizeOfCurrentChunk - p.bytesReadInCurrentChunk
				if avail := p.bytesAvailable(); n > avail {
					n = avail
				}
				data := p.buf[p.pos : p.pos+n]
				if p.payloadHandler != nil {
					p.payloadHandler(data)
				} else if room := p.maxContentLength - base.ChunkCacheLen(); room > 0 {
					if n > room {
						base.appendChunkBytes(data[:room])
					} else {
						base.appendChunkBytes(data)
					}
				}
				p.bytesReadInCurrentChunk += n
				p.pos += n
			}
			if p.bytesReadInCurrentChunk == p.sizeOfCurrentChunk {
				p.chunkState = chunkExpectingCRAfterData
			}
			continue

		case chunkExpectingCRAfterData:
			// exactly size bytes were consumed; CRLF must follow
			if c != '\r' {
				return p.chunkFail(startPos, ErrChunkChar)
			}
			p.chunkState = chunkExpectingLFAfterData

		case chunkExpectingLFAfterData:
			if c != '\n' {
				return p.chunkFail(startPos, ErrChunkChar)
			}
			p.chunkState = chunkSizeStart

		case chunkExpectingFinalCROrFooters:
			if c == '\r' {
				p.chunkState = chunkExpectingFinalLF
			} else {
				// trailer headers follow the last chunk; re-enter the
				// headers automaton in footers mode
				p.msgState = parseFooters
				p.hdrState = hdrHeaderStart
				return p.chunkDone(startPos)
			}

		case chunkExpectingFinalLF:
			if c != '\n' {
				return p.chunkFail(startPos, ErrChunkChar)
			}
			p.pos++
			return p.chunkDone(startPos)
		}

		p.pos++
	}

	p.bytesLastRead = p.pos - startPos
	p.bytesTotalRead += p.bytesLastRead
	p.bytesContentRead += p.bytesLastRead
	return false, nil
}

func (p *Parser) chunkDone(startPos int) (bool, error) {
	p.bytesLastRead = p.pos - startPos
	p.bytesTotalRead += p.bytesLastRead
	p.bytesContentRead += p.bytesLastRead
	return true, nil
}

func (p *Parser) chunkFail(startPos int, err error) (bool, error) {
	p.bytesLastRead = p.pos - startPos
	p.bytesTotalRead += p.bytesLastRead
	p.bytesContentRead += p.bytesLastRead
	return false, err
}

// parseHexInt converts accumulated hex digits to an int. The digits
// were validated as they were accumulated.
func parseHexInt(digits []byte) int {
	n := 0
	for _, d := range digits {
		n = n<<4 | hexValue(d)
	}
	return n
}

// consumeContent copies length-delimited payload bytes into the
// content buffer (or streams them). Bytes past the buffered-content
// cap are consumed but not stored, so the stream position stays
// aligned with the framing.
func (p *Parser) consumeContent(base *Message) (bool, error) {
	if p.bytesContentRemaining == 0 {
		p.bytesLastRead = 0
		return true, nil
	}

	n := p.bytesAvailable()
	done := false
	if n >= p.bytesContentRemaining {
		n = p.bytesContentRemaining
		done = true
	}
	p.bytesContentRemaining -= n

	data := p.buf[p.pos : p.pos+n]
	if p.payloadHandler != nil {
		p.payloadHandler(data)
	} else if p.bytesContentRead < p.maxContentLength {
		content := base.Content()
		if p.bytesContentRead+n > p.maxContentLength {
			copy(content[p.bytesContentRead:], data[:p.maxContentLength-p.bytesContentRead])
		} else {
			copy(content[p.bytesContentRead:], data)
		}
	}

	p.pos += n
	p.bytesContentRead += n
	p.bytesTotalRead += n
	p.bytesLastRead = n

	return done, nil
}

// consumeContentAsNextChunk absorbs every available byte as payload
// content; used when a response has neither Content-Length nor
// chunking and runs until the peer closes.
func (p *Parser) consumeContentAsNextChunk(base *Message) int {
	n := p.bytesAvailable()
	if n == 0 {
		p.bytesLastRead = 0
		return 0
	}

	data := p.buf[p.pos : p.pos+n]
	if p.payloadHandler != nil {
		p.payloadHandler(data)
	} else if room := p.maxContentLength - base.ChunkCacheLen(); room > 0 {
		if n > room {
			base.appendChunkBytes(data[:room])
		} else {
			base.appendChunkBytes(data)
		}
	}

	p.pos += n
	p.bytesLastRead = n
	p.bytesTotalRead += n
	p.bytesContentRead += n
	return n
}
