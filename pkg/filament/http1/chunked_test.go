package http1

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseChunkedBody(t *testing.T) {
	input := "POST /echo HTTP/1.1\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		"A\r\nabcdefghij\r\n" +
		"5\r\nklmno\r\n" +
		"0\r\n\r\n"
	req, p, done, err := parseRequestString(t, input)
	if err != nil || !done {
		t.Fatalf("Parse = (%v, %v), want (true, nil)", done, err)
	}
	if !req.IsChunked() {
		t.Error("IsChunked = false, want true")
	}
	if req.ContentLength() != 15 {
		t.Errorf("ContentLength = %d, want 15", req.ContentLength())
	}
	if got := req.ContentString(); got != "abcdefghijklmno" {
		t.Errorf("content = %q, want %q", got, "abcdefghijklmno")
	}
	if p.BytesTotalRead() != len(input) {
		t.Errorf("BytesTotalRead = %d, want %d", p.BytesTotalRead(), len(input))
	}
}

func TestParseChunkedBodySplitAcrossReads(t *testing.T) {
	input := "POST /echo HTTP/1.1\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		"A\r\nabcdefghij\r\n" +
		"5\r\nklmno\r\n" +
		"0\r\n\r\n"
	for split := 1; split < len(input)-1; split++ {
		req := NewRequest()
		p := NewRequestParser()
		p.SetReadBuffer([]byte(input[:split]))
		done, err := p.Parse(req)
		if err != nil {
			t.Fatalf("split %d: %v", split, err)
		}
		if !done {
			p.SetReadBuffer([]byte(input[split:]))
			done, err = p.Parse(req)
		}
		if err != nil || !done {
			t.Fatalf("split %d: Parse = (%v, %v), want (true, nil)", split, done, err)
		}
		if got := req.ContentString(); got != "abcdefghijklmno" {
			t.Fatalf("split %d: content = %q", split, got)
		}
	}
}

func TestParseChunkedWithExtensionAndWhitespace(t *testing.T) {
	// extensions after ';' are ignored; whitespace around the size is
	// tolerated
	input := "POST /echo HTTP/1.1\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		"4;name=value\r\nWiki\r\n" +
		" 5 \r\npedia\r\n" +
		"0\r\n\r\n"
	req, _, done, err := parseRequestString(t, input)
	if err != nil || !done {
		t.Fatalf("Parse = (%v, %v), want (true, nil)", done, err)
	}
	if got := req.ContentString(); got != "Wikipedia" {
		t.Errorf("content = %q, want %q", got, "Wikipedia")
	}
}

func TestParseChunkedTrailers(t *testing.T) {
	input := "POST /echo HTTP/1.1\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		"5\r\nhello\r\n" +
		"0\r\n" +
		"X-Checksum: abc123\r\n" +
		"\r\n"
	req, _, done, err := parseRequestString(t, input)
	if err != nil || !done {
		t.Fatalf("Parse = (%v, %v), want (true, nil)", done, err)
	}
	if got := req.ContentString(); got != "hello" {
		t.Errorf("content = %q, want %q", got, "hello")
	}
	// trailer headers land in the header dictionary, retrievable
	// case-insensitively
	if got := req.GetHeader("x-checksum"); got != "abc123" {
		t.Errorf("GetHeader(x-checksum) = %q, want %q", got, "abc123")
	}
}

func TestParseChunkedInvalidFraming(t *testing.T) {
	input := "POST /echo HTTP/1.1\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		"5\r\nhelloXX" // missing CRLF after chunk data
	_, _, _, err := parseRequestString(t, input)
	if !errors.Is(err, ErrChunkChar) {
		t.Errorf("err = %v, want ErrChunkChar", err)
	}
}

func TestParseContentUntilClose(t *testing.T) {
	// a response without Content-Length or chunking reads until the
	// peer closes
	input := "HTTP/1.1 200 OK\r\n\r\npartial body then close"
	resp := NewResponse()
	p := NewResponseParser()
	p.SetReadBuffer([]byte(input))
	done, err := p.Parse(resp)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if done {
		t.Fatal("Parse done before close")
	}

	// the peer closes; that is the natural end of the message
	if premature := p.CheckPrematureEOF(resp); premature {
		t.Fatal("CheckPrematureEOF = true, want false")
	}
	if got := resp.ContentString(); got != "partial body then close" {
		t.Errorf("content = %q, want %q", got, "partial body then close")
	}
	if !resp.IsValid() {
		t.Error("IsValid = false, want true")
	}
	if resp.Status() != StatusOK {
		t.Errorf("Status = %v, want %v", resp.Status(), StatusOK)
	}
}

func TestCheckPrematureEOFMidContent(t *testing.T) {
	input := "HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\nshort"
	resp := NewResponse()
	p := NewResponseParser()
	p.SetReadBuffer([]byte(input))
	done, err := p.Parse(resp)
	if err != nil || done {
		t.Fatalf("Parse = (%v, %v), want (false, nil)", done, err)
	}
	if premature := p.CheckPrematureEOF(resp); !premature {
		t.Error("CheckPrematureEOF = false, want true")
	}
}

func TestParseContentLengthCapDiscardsExcess(t *testing.T) {
	body := strings.Repeat("x", 100)
	input := "POST / HTTP/1.1\r\nContent-Length: 100\r\n\r\n" + body
	req := NewRequest()
	p := NewRequestParser()
	p.SetMaxContentLength(10)
	p.SetReadBuffer([]byte(input))
	done, err := p.Parse(req)
	if err != nil || !done {
		t.Fatalf("Parse = (%v, %v), want (true, nil)", done, err)
	}
	// only the first 10 bytes are buffered, but all 100 were consumed
	if req.ContentLength() != 10 {
		t.Errorf("ContentLength = %d, want 10", req.ContentLength())
	}
	if p.BytesContentRead() != 100 {
		t.Errorf("BytesContentRead = %d, want 100", p.BytesContentRead())
	}
	if p.BytesTotalRead() != len(input) {
		t.Errorf("BytesTotalRead = %d, want %d", p.BytesTotalRead(), len(input))
	}
}

func TestPayloadHandlerStreamsContent(t *testing.T) {
	var streamed bytes.Buffer
	input := "POST / HTTP/1.1\r\nContent-Length: 11\r\n\r\nhello world"
	req := NewRequest()
	p := NewRequestParser()
	p.SetPayloadHandler(func(data []byte) {
		streamed.Write(data)
	})
	p.SetReadBuffer([]byte(input))
	done, err := p.Parse(req)
	if err != nil || !done {
		t.Fatalf("Parse = (%v, %v), want (true, nil)", done, err)
	}
	if got := streamed.String(); got != "hello world" {
		t.Errorf("streamed = %q, want %q", got, "hello world")
	}
	// content was not buffered into the message
	if req.IsContentBufferAllocated() && len(req.Content()) != 0 {
		t.Errorf("content buffered despite payload handler: %q", req.Content())
	}
}

func TestPayloadHandlerStreamsChunks(t *testing.T) {
	var streamed bytes.Buffer
	input := "POST / HTTP/1.1\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		"3\r\nfoo\r\n3\r\nbar\r\n0\r\n\r\n"
	req := NewRequest()
	p := NewRequestParser()
	p.SetPayloadHandler(func(data []byte) {
		streamed.Write(data)
	})
	p.SetReadBuffer([]byte(input))
	done, err := p.Parse(req)
	if err != nil || !done {
		t.Fatalf("Parse = (%v, %v), want (true, nil)", done, err)
	}
	if got := streamed.String(); got != "foobar" {
		t.Errorf("streamed = %q, want %q", got, "foobar")
	}
}

func TestParseMissingDataDuringHeadersFails(t *testing.T) {
	req := NewRequest()
	p := NewRequestParser()
	p.SetReadBuffer([]byte("GET / HT"))
	if _, err := p.Parse(req); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_, err := p.ParseMissingData(req, 10)
	if !errors.Is(err, ErrMissingHeaderData) {
		t.Errorf("err = %v, want ErrMissingHeaderData", err)
	}
}

func TestParseMissingDataInContentFillsGap(t *testing.T) {
	req := NewRequest()
	p := NewRequestParser()
	p.SetReadBuffer([]byte("POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nab"))
	if done, err := p.Parse(req); err != nil || done {
		t.Fatalf("Parse = (%v, %v), want (false, nil)", done, err)
	}

	// four bytes lost in the middle
	if done, err := p.ParseMissingData(req, 4); err != nil || done {
		t.Fatalf("ParseMissingData = (%v, %v), want (false, nil)", done, err)
	}

	p.SetReadBuffer([]byte("ghij"))
	done, err := p.Parse(req)
	if err != nil || !done {
		t.Fatalf("final Parse = (%v, %v), want (true, nil)", done, err)
	}
	if got := req.ContentString(); got != "abXXXXghij" {
		t.Errorf("content = %q, want %q", got, "abXXXXghij")
	}
	if req.Status() != StatusPartial {
		t.Errorf("Status = %v, want %v", req.Status(), StatusPartial)
	}
}

func TestParseMissingDataTruncatedWhenNothingFollows(t *testing.T) {
	req := NewRequest()
	p := NewRequestParser()
	p.SetReadBuffer([]byte("POST / HTTP/1.1\r\nContent-Length: 4\r\n\r\nab"))
	if done, err := p.Parse(req); err != nil || done {
		t.Fatalf("Parse = (%v, %v), want (false, nil)", done, err)
	}

	// the final two bytes are lost; the gap completes the message
	done, err := p.ParseMissingData(req, 2)
	if err != nil || !done {
		t.Fatalf("ParseMissingData = (%v, %v), want (true, nil)", done, err)
	}
	if got := req.ContentString(); got != "abXX" {
		t.Errorf("content = %q, want %q", got, "abXX")
	}
	if req.Status() != StatusTruncated {
		t.Errorf("Status = %v, want %v", req.Status(), StatusTruncated)
	}
}

func TestParseMissingDataTooLargeFails(t *testing.T) {
	req := NewRequest()
	p := NewRequestParser()
	p.SetReadBuffer([]byte("POST / HTTP/1.1\r\nContent-Length: 4\r\n\r\nab"))
	if _, err := p.Parse(req); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_, err := p.ParseMissingData(req, 10)
	if !errors.Is(err, ErrMissingTooMuchContent) {
		t.Errorf("err = %v, want ErrMissingTooMuchContent", err)
	}
}

func TestParseMissingDataInsideChunk(t *testing.T) {
	req := NewRequest()
	p := NewRequestParser()
	p.SetReadBuffer([]byte("POST / HTTP/1.1\r\n" +
		"Transfer-Encoding: chunked\r\n\r\n" +
		"A\r\nabc"))
	if done, err := p.Parse(req); err != nil || done {
		t.Fatalf("Parse = (%v, %v), want (false, nil)", done, err)
	}

	// three bytes lost inside the 10-byte chunk
	if done, err := p.ParseMissingData(req, 3); err != nil || done {
		t.Fatalf("ParseMissingData = (%v, %v), want (false, nil)", done, err)
	}

	p.SetReadBuffer([]byte("ghij\r\n0\r\n\r\n"))
	done, err := p.Parse(req)
	if err != nil || !done {
		t.Fatalf("final Parse = (%v, %v), want (true, nil)", done, err)
	}
	if got := req.ContentString(); got != "abcXXXghij" {
		t.Errorf("content = %q, want %q", got, "abcXXXghij")
	}
}

func TestParseMissingDataAcrossChunkBoundaryFails(t *testing.T) {
	req := NewRequest()
	p := NewRequestParser()
	p.SetReadBuffer([]byte("POST / HTTP/1.1\r\n" +
		"Transfer-Encoding: chunked\r\n\r\n" +
		"4\r\nab"))
	if _, err := p.Parse(req); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_, err := p.ParseMissingData(req, 10)
	if !errors.Is(err, ErrMissingChunkData) {
		t.Errorf("err = %v, want ErrMissingChunkData", err)
	}
}
