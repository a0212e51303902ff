package server

import (
	"github.com/yourusername/filament/pkg/filament/http1"
)

// AuthResult is the outcome of an authentication check.
type AuthResult uint8

const (
	// AuthAllow lets the request proceed to resource resolution.
	AuthAllow AuthResult = iota

	// AuthDenied rejects the request with 401 Unauthorized.
	AuthDenied

	// AuthRedirect sends the client to a login resource.
	AuthRedirect
)

// AuthDecision carries the result of an authentication check plus the
// data needed to act on it.
type AuthDecision struct {
	Result AuthResult

	// Realm is sent in the WWW-Authenticate challenge when the result
	// is AuthDenied. Default: "Restricted".
	Realm string

	// RedirectTo is the login resource used when the result is
	// AuthRedirect.
	RedirectTo string
}

// Auth is the authentication hook consulted before resource
// resolution. Implementations inspect the request (typically the
// Authorization header or a session cookie) and decide whether it may
// proceed. Concrete strategies live outside the core.
type Auth interface {
	Check(req *http1.Request) AuthDecision
}

// AuthFunc adapts a function to the Auth interface.
type AuthFunc func(req *http1.Request) AuthDecision

// Check calls f(req).
func (f AuthFunc) Check(req *http1.Request) AuthDecision { return f(req) }
