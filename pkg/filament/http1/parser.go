package http1

// PayloadHandler receives body bytes as they are parsed, in lieu of
// buffering them into the message. The callback must not retain the
// slice beyond the call; it aliases the parser's input window.
type PayloadHandler func(data []byte)

// messageState is the outer parse state of a message.
type messageState uint8

const (
	parseStart messageState = iota
	parseHeaders
	parseFooters
	parseContent
	parseChunks
	parseContentNoLength
	parseEnd
)

// missingDataByte fills payload positions lost to packet drops.
const missingDataByte = 'X'

// Parser is an incremental HTTP/1.x message parser.
//
// The parser is a resumable state machine: the caller supplies input
// with SetReadBuffer and drives it with Parse, which consumes bytes
// until the message completes, the window is exhausted, or an error
// occurs. A window may end anywhere, including inside a token or a
// chunk header; the next Parse call picks up exactly where the last
// one stopped. This makes the parser usable with short reads, with
// pipelined connections, and with lossy byte sources (see
// ParseMissingData).
//
// Design:
// - Byte-at-a-time automaton for headers and chunk framing, bulk
//   copies for payload content
// - No internal I/O; Parse never blocks
// - Reentrant across calls but not safe for concurrent use; one
//   parser serves one connection at a time
type Parser struct {
	isRequest bool

	// input window
	buf []byte
	pos int

	// state machine
	msgState   messageState
	hdrState   headerState
	chunkState chunkState

	// first-line and header accumulators
	method        []byte
	resource      []byte
	queryString   []byte
	statusMessage []byte
	headerName    []byte
	headerValue   []byte
	statusCode    int

	// chunk bookkeeping
	chunkSizeHex            []byte
	sizeOfCurrentChunk      int
	bytesReadInCurrentChunk int

	// content bookkeeping
	bytesContentRemaining int
	bytesContentRead      int

	// counters
	bytesLastRead  int
	bytesTotalRead int

	// configuration
	maxContentLength int
	headersOnly      bool
	saveRawHeaders   bool
	rawHeaders       []byte
	payloadHandler   PayloadHandler
}

// NewRequestParser returns a parser for client-to-server messages.
func NewRequestParser() *Parser { return NewParser(true) }

// NewResponseParser returns a parser for server-to-client messages.
func NewResponseParser() *Parser { return NewParser(false) }

// NewParser returns a parser for requests (isRequest true) or
// responses. The buffered-content cap starts at
// DefaultMaxContentLength.
func NewParser(isRequest bool) *Parser {
	return &Parser{
		isRequest:        isRequest,
		hdrState:         initialHeaderState(isRequest),
		maxContentLength: DefaultMaxContentLength,
	}
}

func initialHeaderState(isRequest bool) headerState {
	if isRequest {
		return hdrMethodStart
	}
	// responses begin at the HTTP version token
	return hdrVersionH
}

// Reset prepares the parser for the next message on the same
// connection. Configuration (content cap, modes, payload handler) is
// preserved; all per-message state and counters are cleared.
func (p *Parser) Reset() {
	p.buf = nil
	p.pos = 0
	p.msgState = parseStart
	p.hdrState = initialHeaderState(p.isRequest)
	p.chunkState = chunkSizeStart
	p.method = p.method[:0]
	p.resource = p.resource[:0]
	p.queryString = p.queryString[:0]
	p.statusMessage = p.statusMessage[:0]
	p.headerName = p.headerName[:0]
	p.headerValue = p.headerValue[:0]
	p.statusCode = 0
	p.chunkSizeHex = p.chunkSizeHex[:0]
	p.sizeOfCurrentChunk = 0
	p.bytesReadInCurrentChunk = 0
	p.bytesContentRemaining = 0
	p.bytesContentRead = 0
	p.bytesLastRead = 0
	p.bytesTotalRead = 0
	p.rawHeaders = p.rawHeaders[:0]
}

// SetMaxContentLength caps the number of payload bytes buffered into
// a message. Bytes beyond the cap are consumed and discarded.
func (p *Parser) SetMaxContentLength(n int) { p.maxContentLength = n }

// MaxContentLength returns the buffered-content cap.
func (p *Parser) MaxContentLength() int { return p.maxContentLength }

// ParseHeadersOnly makes Parse report completion as soon as the
// header block has been consumed, leaving any body bytes in the
// window for the caller.
func (p *Parser) ParseHeadersOnly(b bool) { p.headersOnly = b }

// SetPayloadHandler streams body bytes to h instead of buffering them
// in the message. Chunked trailers are still parsed into headers.
func (p *Parser) SetPayloadHandler(h PayloadHandler) { p.payloadHandler = h }

// SaveRawHeaders preserves the exact header bytes as received, for
// forensic use; retrieve them with RawHeaders.
func (p *Parser) SaveRawHeaders(b bool) { p.saveRawHeaders = b }

// RawHeaders returns the verbatim header bytes when SaveRawHeaders is
// enabled.
func (p *Parser) RawHeaders() []byte { return p.rawHeaders }

// SetReadBuffer supplies the next window of input bytes. The parser
// aliases b until the window is exhausted; the caller must not mutate
// it while parsing.
func (p *Parser) SetReadBuffer(b []byte) {
	p.buf = b
	p.pos = 0
}

// Remaining returns the unconsumed tail of the current window. After
// Parse reports completion, these bytes belong to the next message on
// the connection (pipelining).
func (p *Parser) Remaining() []byte { return p.buf[p.pos:] }

// BytesLastRead returns the bytes consumed by the last Parse or
// ParseMissingData call.
func (p *Parser) BytesLastRead() int { return p.bytesLastRead }

// BytesTotalRead returns the bytes consumed for the current message
// across all calls.
func (p *Parser) BytesTotalRead() int { return p.bytesTotalRead }

// BytesContentRead returns the payload bytes consumed so far.
func (p *Parser) BytesContentRead() int { return p.bytesContentRead }

func (p *Parser) eof() bool { return p.pos >= len(p.buf) }

func (p *Parser) bytesAvailable() int { return len(p.buf) - p.pos }

// Parse consumes bytes from the current window and advances the
// message. It returns (true, nil) when the message is complete,
// (false, nil) when the window was exhausted mid-message (feed more
// bytes with SetReadBuffer and call again), and (false, err) on a
// protocol violation, which is terminal for this message.
func (p *Parser) Parse(m Msg) (bool, error) {
	base := m.Base()

	// any byte arriving after a recorded gap upgrades the eventual
	// status from truncated to partial
	if base.HasMissingPackets() {
		base.SetDataAfterMissingPackets(true)
	}

	var done bool
	var err error
	totalParsed := 0

	for {
		switch p.msgState {
		case parseStart:
			p.msgState = parseHeaders
			continue

		case parseHeaders, parseFooters:
			inFooters := p.msgState == parseFooters
			done, err = p.parseHeaderBytes(m)
			totalParsed += p.bytesLastRead
			if err == nil && done && !inFooters {
				done, err = p.finishHeaderParsing(m)
			}

		case parseChunks:
			done, err = p.parseChunkBytes(base)
			totalParsed += p.bytesLastRead
			if err == nil && done {
				if p.payloadHandler == nil {
					base.ConcatenateChunks()
				}
				// a zero-size chunk followed by trailer headers
				// re-enters the headers automaton in footers mode
				if p.msgState == parseFooters {
					done = false
				}
			}

		case parseContent:
			done, err = p.consumeContent(base)
			totalParsed += p.bytesLastRead

		case parseContentNoLength:
			p.consumeContentAsNextChunk(base)
			totalParsed += p.bytesLastRead
			// never completes on its own; ends when the peer closes

		case parseEnd:
			done = true
		}

		if err != nil || done || p.eof() {
			break
		}
	}

	p.bytesLastRead = totalParsed

	if err != nil {
		p.computeMsgStatus(base, false)
		return false, err
	}
	if done {
		p.msgState = parseEnd
		p.finishMessage(m)
	}
	return done, nil
}

// ParseMissingData informs the parser that n bytes of the message
// were lost upstream but are accounted for in the stream position.
// Loss during header parsing is unrecoverable; loss inside payload
// content is patched with filler bytes where the framing allows it.
func (p *Parser) ParseMissingData(m Msg, n int) (bool, error) {
	base := m.Base()
	base.SetMissingPackets(true)

	var done bool
	var err error

	switch p.msgState {
	case parseStart, parseHeaders, parseFooters:
		err = ErrMissingHeaderData

	case parseChunks:
		// recoverable only when the gap fits inside the current chunk
		if p.chunkState == chunkData &&
			p.bytesReadInCurrentChunk < p.sizeOfCurrentChunk &&
			p.sizeOfCurrentChunk-p.bytesReadInCurrentChunk >= n {
			p.fillMissing(base, n)
			p.bytesReadInCurrentChunk += n
			p.bytesLastRead = n
			p.bytesTotalRead += n
			p.bytesContentRead += n
			if p.bytesReadInCurrentChunk == p.sizeOfCurrentChunk {
				p.chunkState = chunkExpectingCRAfterData
			}
		} else {
			err = ErrMissingChunkData
		}

	case parseContent:
		if p.bytesContentRemaining == 0 {
			done = true
		} else if p.bytesContentRemaining < n {
			err = ErrMissingTooMuchContent
		} else {
			if p.payloadHandler != nil {
				p.streamFiller(n)
			} else if p.bytesContentRead+n <= p.maxContentLength {
				content := base.Content()
				for i := 0; i < n; i++ {
					content[p.bytesContentRead+i] = missingDataByte
				}
			}
			p.bytesContentRead += n
			p.bytesContentRemaining -= n
			p.bytesTotalRead += n
			p.bytesLastRead = n
			if p.bytesContentRemaining == 0 {
				done = true
			}
		}

	case parseContentNoLength:
		p.fillMissing(base, n)
		p.bytesLastRead = n
		p.bytesTotalRead += n
		p.bytesContentRead += n

	case parseEnd:
		done = true
	}

	if err != nil {
		p.computeMsgStatus(base, false)
		return false, err
	}
	if done {
		p.msgState = parseEnd
		p.finishMessage(m)
	}
	return done, nil
}

// fillMissing appends n filler bytes to the chunk cache (or streams
// them), respecting the buffered-content cap.
func (p *Parser) fillMissing(base *Message, n int) {
	if p.payloadHandler != nil {
		p.streamFiller(n)
		return
	}
	for i := 0; i < n && base.ChunkCacheLen() < p.maxContentLength; i++ {
		base.appendChunkByte(missingDataByte)
	}
}

func (p *Parser) streamFiller(n int) {
	filler := [1]byte{missingDataByte}
	for i := 0; i < n; i++ {
		p.payloadHandler(filler[:])
	}
}

// CheckPrematureEOF consults the parser state after the peer closed
// the connection mid-message. For content read until close, EOF is
// the natural end: the message is finalized and false (not premature)
// is returned. In every other state the close truncated the message
// and true is returned.
func (p *Parser) CheckPrematureEOF(m Msg) bool {
	if p.msgState != parseContentNoLength {
		return true
	}
	p.msgState = parseEnd
	if p.payloadHandler == nil {
		m.Base().ConcatenateChunks()
	}
	p.finishMessage(m)
	return false
}

// finishMessage finalizes a message according to how far parsing got,
// computes its data-integrity status, and performs post-parse
// enrichment (queries, cookies, form bodies).
func (p *Parser) finishMessage(m Msg) {
	base := m.Base()

	switch p.msgState {
	case parseStart:
		base.SetIsValid(false)
		base.SetContentLength(0)
		base.CreateContentBuffer()
		base.SetStatus(StatusNone)
		return

	case parseEnd:
		base.SetIsValid(true)

	case parseHeaders, parseFooters:
		base.SetIsValid(false)
		p.updateMessageWithHeaderData(m)
		base.SetContentLength(0)
		base.CreateContentBuffer()

	case parseContent:
		base.SetIsValid(false)
		// we may have consumed more bytes than we buffered
		if p.bytesContentRead < p.maxContentLength {
			base.SetContentLength(p.bytesContentRead)
		}

	case parseChunks:
		// valid only if parsing stopped cleanly between chunks
		base.SetIsValid(p.chunkState == chunkSizeStart)
		if p.payloadHandler == nil {
			base.ConcatenateChunks()
		}

	case parseContentNoLength:
		base.SetIsValid(true)
		if p.payloadHandler == nil {
			base.ConcatenateChunks()
		}
	}

	p.computeMsgStatus(base, base.IsValid())

	// parse form bodies into the request's query dictionary
	if p.isRequest && p.payloadHandler == nil && !p.headersOnly {
		req, ok := m.(*Request)
		if !ok {
			return
		}
		ct := req.GetHeader(HeaderContentType)
		switch {
		case hasPrefixFold(ct, ContentTypeURLEncoded):
			ParseURLEncoded(req.Queries(), req.Content())
		case hasPrefixFold(ct, ContentTypeMultipart):
			ParseMultipartFormData(req.Queries(), ct, req.Content())
		}
	}
}

// computeMsgStatus derives the message's data-integrity status from
// the missing-packet flags and the parse outcome.
func (p *Parser) computeMsgStatus(base *Message, parsedOK bool) {
	var st DataStatus
	switch {
	case base.HasMissingPackets() && base.HasDataAfterMissingPackets():
		st = StatusPartial
	case base.HasMissingPackets():
		st = StatusTruncated
	case parsedOK:
		st = StatusOK
	default:
		st = StatusTruncated
	}
	base.SetStatus(st)
}

// updateMessageWithHeaderData moves the accumulated first-line fields
// into the message and parses cookies and the URI query string.
func (p *Parser) updateMessageWithHeaderData(m Msg) {
	switch t := m.(type) {
	case *Request:
		t.SetMethod(string(p.method))
		t.SetResource(string(p.resource))
		t.SetQueryString(string(p.queryString))
		if len(p.queryString) > 0 {
			ParseURLEncoded(t.Queries(), p.queryString)
		}
		for _, v := range t.Headers().Values(HeaderCookie) {
			ParseCookieHeader(t.Cookies(), v, false)
		}

	case *Response:
		t.SetStatusCode(p.statusCode)
		t.SetStatusMessage(string(p.statusMessage))
		for _, v := range t.Headers().Values(HeaderSetCookie) {
			ParseCookieHeader(t.Cookies(), v, true)
		}
	}
}

// hasPrefixFold reports whether s begins with prefix under ASCII
// case folding. Content-Type values may carry parameters after the
// media type ("...; charset=UTF-8"), so a prefix match is the right
// comparison.
func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && keyEqual(s[:len(prefix)], prefix)
}
