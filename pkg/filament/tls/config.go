// Package tls builds crypto/tls configurations for the server: static
// cert/key files, self-signed certificates for tests and local
// development, and automatic certificates via ACME (Let's Encrypt).
package tls

import (
	"crypto/tls"
	"errors"

	"golang.org/x/crypto/acme/autocert"
)

var (
	// ErrNoCertificate indicates neither a key pair nor an ACME
	// domain list was configured.
	ErrNoCertificate = errors.New("tls: no certificate source configured")
)

// Config describes where server certificates come from. Exactly one
// source should be set; they are consulted in field order.
type Config struct {
	// CertFile / KeyFile load a static PEM key pair.
	CertFile string
	KeyFile  string

	// ACMEDomains enables automatic certificates for the listed
	// hostnames via Let's Encrypt.
	ACMEDomains []string

	// ACMECacheDir stores obtained certificates across restarts.
	// Default: "certs".
	ACMECacheDir string

	// SelfSigned generates an in-memory certificate at startup.
	// For tests and local development only.
	SelfSigned bool

	// SelfSignedHosts are the names/addresses baked into a
	// self-signed certificate. Default: "localhost", "127.0.0.1".
	SelfSignedHosts []string

	// MinVersion for the TLS handshake. Default: TLS 1.2.
	MinVersion uint16
}

// Build returns a crypto/tls server configuration for cfg, or
// ErrNoCertificate if no source is set.
func Build(cfg *Config) (*tls.Config, error) {
	if cfg == nil {
		return nil, ErrNoCertificate
	}

	minVersion := cfg.MinVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}

	switch {
	case cfg.CertFile != "" && cfg.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		return &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   minVersion,
		}, nil

	case len(cfg.ACMEDomains) > 0:
		cacheDir := cfg.ACMECacheDir
		if cacheDir == "" {
			cacheDir = "certs"
		}
		mgr := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.ACMEDomains...),
			Cache:      autocert.DirCache(cacheDir),
		}
		tc := mgr.TLSConfig()
		tc.MinVersion = minVersion
		return tc, nil

	case cfg.SelfSigned:
		hosts := cfg.SelfSignedHosts
		if len(hosts) == 0 {
			hosts = []string{"localhost", "127.0.0.1"}
		}
		cert, err := GenerateSelfSigned(hosts)
		if err != nil {
			return nil, err
		}
		return &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   minVersion,
		}, nil
	}

	return nil, ErrNoCertificate
}
