package http1

import (
	"bytes"
	"encoding/base64"
	"strings"
)

// queryParseState tracks position within an url-encoded string.
type queryParseState uint8

const (
	queryParseName queryParseState = iota
	queryParseValue
)

// ParseURLEncoded parses an application/x-www-form-urlencoded byte
// string (a URI query string or a form body) into dict. Names and
// values are URL-decoded; '&' separates pairs, ',' separates multiple
// values for one name, and stray CR/LF/TAB bytes (common inside POST
// bodies) are ignored. Returns false on a control character or an
// oversized name or value.
func ParseURLEncoded(dict *Dict, data []byte) bool {
	if len(data) == 0 {
		return true
	}

	state := queryParseName
	var name, value []byte

	emit := func() {
		dict.Add(URLDecode(string(name)), URLDecode(string(value)))
	}

	for _, c := range data {
		switch state {
		case queryParseName:
			switch {
			case c == '=':
				// end of name (empty is fine)
				state = queryParseValue
			case c == '&':
				// "&&" or a pair with no '='; empty names are skipped
				if len(name) > 0 {
					emit()
					name = name[:0]
				}
			case c == '\r' || c == '\n' || c == '\t':
			default:
				if isControl(c) || len(name) >= QueryNameMax {
					return false
				}
				name = append(name, c)
			}

		case queryParseValue:
			switch {
			case c == '&':
				if len(name) > 0 {
					emit()
					name = name[:0]
				}
				value = value[:0]
				state = queryParseName
			case c == ',':
				// multi-value list for the same name
				if len(name) > 0 {
					emit()
				}
				value = value[:0]
			case c == '\r' || c == '\n' || c == '\t':
			default:
				if isControl(c) || len(value) >= QueryValueMax {
					return false
				}
				value = append(value, c)
			}
		}
	}

	if len(name) > 0 {
		emit()
	}
	return true
}

// SerializeURLEncoded renders dict as an url-encoded string, the
// inverse of ParseURLEncoded for dictionaries without duplicate keys.
func SerializeURLEncoded(dict *Dict) string {
	var sb strings.Builder
	dict.VisitAll(func(name, value string) bool {
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(URLEncode(name))
		sb.WriteByte('=')
		sb.WriteString(URLEncode(value))
		return true
	})
	return sb.String()
}

// multipartParseState tracks position within multipart/form-data.
type multipartParseState uint8

const (
	mpParseStart multipartParseState = iota
	mpParseHeaderCR
	mpParseHeaderLF
	mpParseHeaderName
	mpParseHeaderSpace
	mpParseHeaderValue
	mpParseHeaderLastLF
	mpParseFieldData
)

// ParseMultipartFormData parses a multipart/form-data body (RFC 2388)
// into dict. The part boundary comes from the "boundary=" attribute
// of contentType; field names come from each part's
// Content-Disposition header. Parts with a text/* type or no type at
// all are stored verbatim; binary parts are re-encoded as data URIs
// (see EncodeDataURI). An empty body returns true; otherwise returns
// false if no field could be extracted.
func ParseMultipartFormData(dict *Dict, contentType string, data []byte) bool {
	if len(data) == 0 {
		return true
	}

	pos := strings.Index(contentType, "boundary=")
	if pos < 0 {
		return false
	}
	boundary := []byte("--" + contentType[pos+len("boundary="):])

	state := mpParseStart
	var headerName, headerValue []byte
	var fieldName string
	var fieldType string
	saveField := true
	found := false

	i := bytes.Index(data, boundary)
	if i < 0 {
		return false
	}

	for i < len(data) {
		c := data[i]

		switch state {
		case mpParseStart:
			// position is at a boundary; reset per-field state
			headerName = headerName[:0]
			headerValue = headerValue[:0]
			fieldName = ""
			fieldType = ""
			saveField = true
			i += len(boundary)
			state = mpParseHeaderCR
			continue

		case mpParseHeaderCR:
			switch {
			case c == '\r':
				state = mpParseHeaderLF
			case c == '\n':
				state = mpParseHeaderName
			case c == '-' && i+1 < len(data) && data[i+1] == '-':
				// closing boundary
				return found
			default:
				return false
			}

		case mpParseHeaderLF:
			if c != '\n' {
				return false
			}
			state = mpParseHeaderName

		case mpParseHeaderName:
			switch {
			case c == '\r' || c == '\n':
				if len(headerName) == 0 {
					// blank line: headers done, field data follows
					if c == '\r' {
						state = mpParseHeaderLastLF
					} else {
						state = mpParseFieldData
					}
				} else {
					// premature line end; start the next header
					if c == '\r' {
						state = mpParseHeaderLF
					}
				}
			case c == ':':
				state = mpParseHeaderSpace
			default:
				headerName = append(headerName, c)
			}

		case mpParseHeaderSpace:
			switch {
			case c == '\r':
				state = mpParseHeaderLF
			case c == '\n':
				state = mpParseHeaderName
			case c != ' ':
				headerValue = append(headerValue, c)
				state = mpParseHeaderValue
			}

		case mpParseHeaderValue:
			if c == '\r' || c == '\n' {
				name := string(headerName)
				value := string(headerValue)
				if keyEqual(name, HeaderContentType) {
					fieldType = value
					saveField = hasPrefixFold(value, "text/")
				} else if keyEqual(name, HeaderContentDisposition) {
					if n := strings.Index(value, `name="`); n >= 0 {
						rest := value[n+len(`name="`):]
						if q := strings.IndexByte(rest, '"'); q >= 0 {
							fieldName = rest[:q]
						} else {
							fieldName = rest
						}
					}
				}
				headerName = headerName[:0]
				headerValue = headerValue[:0]
				if c == '\r' {
					state = mpParseHeaderLF
				} else {
					state = mpParseHeaderName
				}
			} else {
				headerValue = append(headerValue, c)
			}

		case mpParseHeaderLastLF:
			if c != '\n' {
				return false
			}
			if fieldName != "" {
				state = mpParseFieldData
			} else {
				// nameless part; skip to the next boundary
				state = mpParseStart
				next := bytes.Index(data[i:], boundary)
				if next < 0 {
					return found
				}
				i += next
				continue
			}

		case mpParseFieldData:
			fieldEnd := len(data)
			next := bytes.Index(data[i:], boundary)
			nextPos := -1
			if next >= 0 {
				nextPos = i + next
				fieldEnd = nextPos
				// exclude the CRLF preceding the boundary
				if fieldEnd >= 2 && data[fieldEnd-2] == '\r' && data[fieldEnd-1] == '\n' {
					fieldEnd -= 2
				}
			}
			fieldData := data[i:fieldEnd]
			if saveField {
				dict.Add(fieldName, string(fieldData))
			} else {
				// binary part: re-encode so the dictionary stays textual
				dict.Add(fieldName, EncodeDataURI(fieldType, fieldData))
			}
			found = true
			if nextPos < 0 {
				return found
			}
			state = mpParseStart
			i = nextPos
			continue
		}

		i++
	}

	return found
}

// EncodeDataURI renders binary field data as a textual
// "data:<mime>; base64, <payload>" string.
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + "; base64, " + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a string produced by EncodeDataURI back into
// the payload bytes and the media type.
func DecodeDataURI(s string) (data []byte, mime string, err error) {
	const prefix = "data:"
	const marker = "; base64, "
	if !strings.HasPrefix(s, prefix) {
		return nil, "", ErrDataURI
	}
	rest := s[len(prefix):]
	n := strings.Index(rest, marker)
	if n < 0 {
		return nil, "", ErrDataURI
	}
	mime = rest[:n]
	data, err = base64.StdEncoding.DecodeString(rest[n+len(marker):])
	if err != nil {
		return nil, "", ErrDataURI
	}
	return data, mime, nil
}
