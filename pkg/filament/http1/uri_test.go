package http1

import "testing"

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri  string
		want URIParts
	}{
		{
			uri:  "http://example.com/index.html",
			want: URIParts{Proto: "http", Host: "example.com", Port: 80, Path: "/index.html"},
		},
		{
			uri:  "https://example.com/secure",
			want: URIParts{Proto: "https", Host: "example.com", Port: 443, Path: "/secure"},
		},
		{
			uri:  "HTTP://example.com/",
			want: URIParts{Proto: "HTTP", Host: "example.com", Port: 80, Path: "/"},
		},
		{
			uri:  "http://example.com:8080/app?a=1&b=2",
			want: URIParts{Proto: "http", Host: "example.com", Port: 8080, Path: "/app", Query: "a=1&b=2"},
		},
		{
			uri:  "example.com/path",
			want: URIParts{Host: "example.com", Path: "/path"},
		},
		{
			uri:  "ftp://files.example.com/pub",
			want: URIParts{Proto: "ftp", Host: "files.example.com", Port: 0, Path: "/pub"},
		},
	}
	for _, tt := range tests {
		got, err := ParseURI(tt.uri)
		if err != nil {
			t.Errorf("ParseURI(%q) failed: %v", tt.uri, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseURI(%q) = %+v, want %+v", tt.uri, got, tt.want)
		}
	}
}

func TestParseURIErrors(t *testing.T) {
	for _, uri := range []string{
		"http://example.com",   // no slash after host
		"http:///path",         // empty host
		"http://host:abc/path", // non-numeric port
		"http://host:/path",    // empty port
	} {
		if _, err := ParseURI(uri); err == nil {
			t.Errorf("ParseURI(%q) succeeded, want error", uri)
		}
	}
}

func TestParseForwardedFor(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"203.0.113.7", "203.0.113.7", true},
		{"10.0.0.1, 203.0.113.7", "203.0.113.7", true},
		{"192.168.1.10, 172.20.0.5, 8.8.8.8", "8.8.8.8", true},
		{"10.1.2.3, 127.0.0.1", "", false},
		{"not an ip", "", false},
		{"", "", false},
		{"172.15.0.1", "172.15.0.1", true}, // just below the 172.16/12 range
		{"172.32.0.1", "172.32.0.1", true}, // just above the 172.16/12 range
	}
	for _, tt := range tests {
		got, ok := ParseForwardedFor(tt.header)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseForwardedFor(%q) = (%q, %v), want (%q, %v)",
				tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
