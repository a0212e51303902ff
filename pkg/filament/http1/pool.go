package http1

import "sync"

// Object pools for the per-request hot path. A keep-alive connection
// handling thousands of requests reuses the same few objects instead
// of allocating a message and parser per request.

var requestPool = sync.Pool{
	New: func() interface{} { return NewRequest() },
}

var responsePool = sync.Pool{
	New: func() interface{} { return NewResponse() },
}

var requestParserPool = sync.Pool{
	New: func() interface{} { return NewRequestParser() },
}

var responseParserPool = sync.Pool{
	New: func() interface{} { return NewResponseParser() },
}

// GetRequest returns a cleared request from the pool. Callers must
// return it with PutRequest when done.
func GetRequest() *Request {
	return requestPool.Get().(*Request)
}

// PutRequest clears req and returns it to the pool. The request and
// every slice obtained from it must not be used afterwards.
func PutRequest(req *Request) {
	req.Clear()
	requestPool.Put(req)
}

// GetResponse returns a cleared response from the pool.
func GetResponse() *Response {
	return responsePool.Get().(*Response)
}

// PutResponse clears resp and returns it to the pool.
func PutResponse(resp *Response) {
	resp.Clear()
	responsePool.Put(resp)
}

// GetRequestParser returns a reset request parser from the pool.
func GetRequestParser() *Parser {
	return requestParserPool.Get().(*Parser)
}

// PutRequestParser resets p (including configuration) and returns it
// to the pool.
func PutRequestParser(p *Parser) {
	p.Reset()
	p.maxContentLength = DefaultMaxContentLength
	p.headersOnly = false
	p.saveRawHeaders = false
	p.payloadHandler = nil
	requestParserPool.Put(p)
}

// GetResponseParser returns a reset response parser from the pool.
func GetResponseParser() *Parser {
	return responseParserPool.Get().(*Parser)
}

// PutResponseParser resets p (including configuration) and returns it
// to the pool.
func PutResponseParser(p *Parser) {
	p.Reset()
	p.maxContentLength = DefaultMaxContentLength
	p.headersOnly = false
	p.saveRawHeaders = false
	p.payloadHandler = nil
	responseParserPool.Put(p)
}
