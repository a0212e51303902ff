package http1

import "github.com/intuitivelabs/bytescase"

// setCookieAttributes are the attribute names that may appear in a
// Set-Cookie header alongside the cookie pair itself. They are
// recognized case-insensitively and are not stored as cookies.
var setCookieAttributes = []string{
	"Comment", "Domain", "Max-Age", "Path", "Secure", "Version",
	"Expires", "HttpOnly",
}

// isCookieAttribute reports whether name is a cookie attribute rather
// than a cookie. In a Set-Cookie header the RFC 6265 attribute names
// are matched; in a Cookie header only the RFC 2109 '$'-prefixed
// attributes apply. Empty names are treated as attributes so they are
// silently skipped.
func isCookieAttribute(name string, setCookieHeader bool) bool {
	if name == "" {
		return true
	}
	if name[0] == '$' {
		return true
	}
	if !setCookieHeader {
		return false
	}
	for _, attr := range setCookieAttributes {
		if len(attr) == len(name) && bytescase.CmpEq([]byte(attr), []byte(name)) {
			return true
		}
	}
	return false
}

// cookieParseState tracks position within a cookie header.
type cookieParseState uint8

const (
	cookieParseName cookieParseState = iota
	cookieParseValue
	cookieParseIgnore
)

// ParseCookieHeader parses a Cookie or Set-Cookie header value into
// dict. Both RFC 2109 and RFC 6265 wire forms are accepted: values
// may be quoted with '"' or '\'', pairs are separated by ';'
// (canonical) or ',' (legacy), attributes are filtered per
// isCookieAttribute, and empty cookie names are skipped. Returns
// false if a control character or an oversized name or value is
// encountered.
func ParseCookieHeader(dict *Dict, header string, setCookieHeader bool) bool {
	state := cookieParseName
	var name, value []byte
	var quote byte

	emit := func() {
		if !isCookieAttribute(string(name), setCookieHeader) {
			dict.Add(string(name), string(value))
		}
	}

	for i := 0; i < len(header); i++ {
		c := header[i]

		switch state {
		case cookieParseName:
			switch {
			case c == '=':
				// end of name (empty is fine, filtered at emit)
				quote = 0
				state = cookieParseValue
			case c == ';' || c == ',':
				// a pair with no '='; value stays empty. Empty names
				// occur naturally after quoted values and are skipped.
				if len(name) > 0 {
					emit()
					name = name[:0]
				}
			case c == ' ':
				// whitespace between pairs is ignored
			default:
				if isControl(c) || len(name) >= CookieNameMax {
					return false
				}
				name = append(name, c)
			}

		case cookieParseValue:
			if quote == 0 {
				switch {
				case c == ';' || c == ',':
					emit()
					name = name[:0]
					value = value[:0]
					state = cookieParseName
				case c == '\'' || c == '"':
					if len(value) == 0 {
						quote = c
					} else if len(value) >= CookieValueMax {
						return false
					} else {
						value = append(value, c)
					}
				case c == ' ' && len(value) == 0:
					// leading unquoted whitespace is ignored
				default:
					if isControl(c) || len(value) >= CookieValueMax {
						return false
					}
					value = append(value, c)
				}
			} else {
				if c == quote {
					emit()
					name = name[:0]
					value = value[:0]
					state = cookieParseIgnore
				} else if len(value) >= CookieValueMax {
					return false
				} else {
					value = append(value, c)
				}
			}

		case cookieParseIgnore:
			// skip everything up to the next separator
			if c == ';' || c == ',' {
				state = cookieParseName
			}
		}
	}

	// last pair in the header
	if state != cookieParseIgnore && len(name) > 0 {
		emit()
	}
	return true
}
