package domain

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/harveywai/expirywatch/pkg/expiry"
)

const defaultDialTimeout = 10 * time.Second

// CertificateLookup reads the expiry of the certificate served on a host.
type CertificateLookup struct {
	// Timeout bounds the TCP connect. Defaults to 10 seconds.
	Timeout time.Duration
	// RootCAs overrides the system pool.
	RootCAs *x509.CertPool
}

// ExpiryDate performs a verified TLS handshake and returns the leaf NotAfter.
// A certificate whose NotAfter has passed is reported as
// expiry.ErrCertificateExpired. One that is not valid yet is a plain error.
func (c *CertificateLookup) ExpiryDate(ctx context.Context, domain string) (time.Time, error) {
	host, addr := hostPort(domain)

	timeout := c.Timeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config: &tls.Config{
			ServerName: host,
			RootCAs:    c.RootCAs,
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		var invalid x509.CertificateInvalidError
		if errors.As(err, &invalid) && invalid.Reason == x509.Expired &&
			invalid.Cert != nil && time.Now().After(invalid.Cert.NotAfter) {
			return time.Time{}, fmt.Errorf("%s: %w", domain, expiry.ErrCertificateExpired)
		}
		return time.Time{}, fmt.Errorf("tls handshake with %s failed: %w", addr, err)
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return time.Time{}, fmt.Errorf("%s presented no certificates", addr)
	}
	return certs[0].NotAfter, nil
}

// hostPort splits an optional port off domain, defaulting to 443.
func hostPort(domain string) (string, string) {
	if host, _, err := net.SplitHostPort(domain); err == nil {
		return host, domain
	}
	return domain, net.JoinHostPort(domain, "443")
}

// NormalizeHost turns a configured URL or host into a bare host name, keeping an
// explicit port. "https://www.example.com/path" becomes "www.example.com".
func NormalizeHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			raw = u.Host
		}
	} else if i := strings.IndexAny(raw, "/?#"); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimSuffix(strings.ToLower(raw), ".")
	return raw
}
