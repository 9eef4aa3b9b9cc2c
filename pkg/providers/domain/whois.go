package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// expirationLayouts are tried in order against the parsed WHOIS expiration date.
var expirationLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006.01.02",
	"02-Jan-2006",
}

// Registration holds the WHOIS facts for a registrable domain.
type Registration struct {
	RootDomain  string
	Registrar   string
	ExpiryDate  time.Time
	NameServers []string
}

// RegistryLookup resolves a domain's paid-till date from WHOIS.
type RegistryLookup struct {
	// Query returns the raw WHOIS response. Defaults to whois.Whois.
	Query func(domain string) (string, error)
}

// ExpiryDate returns the registration expiry of the domain's registrable root.
func (r *RegistryLookup) ExpiryDate(ctx context.Context, domain string) (time.Time, error) {
	reg, err := r.Inspect(ctx, domain)
	if err != nil {
		return time.Time{}, err
	}
	return reg.ExpiryDate, nil
}

// Inspect runs the WHOIS lookup and parses the registrar, expiry and name servers.
func (r *RegistryLookup) Inspect(ctx context.Context, domain string) (*Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root := RootDomain(domain)
	query := r.Query
	if query == nil {
		query = func(d string) (string, error) { return whois.Whois(d) }
	}

	raw, err := query(root)
	if err != nil {
		return nil, fmt.Errorf("WHOIS lookup failed for %s: %w", root, err)
	}

	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("WHOIS parse failed for %s: %w", root, err)
	}
	if parsed.Domain == nil || parsed.Domain.ExpirationDate == "" {
		return nil, fmt.Errorf("WHOIS expiration date not found for %s", root)
	}

	expires, err := parseExpiration(parsed.Domain.ExpirationDate)
	if err != nil {
		return nil, fmt.Errorf("WHOIS expiration date for %s: %w", root, err)
	}

	reg := &Registration{RootDomain: root, ExpiryDate: expires}
	if parsed.Registrar != nil {
		reg.Registrar = parsed.Registrar.Name
	}
	for _, ns := range parsed.Domain.NameServers {
		host := strings.TrimSuffix(strings.TrimSpace(ns), ".")
		if host != "" {
			reg.NameServers = append(reg.NameServers, host)
		}
	}
	return reg, nil
}

// RootDomain derives the registrable domain, e.g.
// "api.internal.example.co.uk" -> "example.co.uk". Unparseable input is returned as is.
func RootDomain(domain string) string {
	host, _ := hostPort(domain)
	if dn, err := publicsuffix.Parse(host); err == nil && dn.SLD != "" && dn.TLD != "" {
		return dn.SLD + "." + dn.TLD
	}
	return host
}

func parseExpiration(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range expirationLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
