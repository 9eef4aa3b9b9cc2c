package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harveywai/expirywatch/pkg/auth"
	"github.com/harveywai/expirywatch/pkg/expiry"
	"github.com/harveywai/expirywatch/pkg/providers/domain"
)

func TestGetStatus(t *testing.T) {
	cases := []struct {
		line scanLine
		want string
	}{
		{scanLine{err: errors.New("refused")}, "Offline"},
		{scanLine{record: expiry.Record{DaysLeft: -1, ExpireDate: "INVALID"}}, "Expired"},
		{scanLine{record: expiry.Record{DaysLeft: 3}}, "Critical"},
		{scanLine{record: expiry.Record{DaysLeft: 20}}, "Warning"},
		{scanLine{record: expiry.Record{DaysLeft: 30}}, "OK"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, getStatus(tc.line, 30))
	}
}

func TestPrintResultAndSummary(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	printResult(&buf, scanLine{host: "a.com", record: expiry.Record{Domain: "a.com", DaysLeft: 5, ExpireDate: "2026-01-06"}}, "Critical")
	printResult(&buf, scanLine{host: "b.com", err: errors.New("i/o timeout")}, "Offline")
	printSummary(&buf, 2, 2)

	out := buf.String()
	assert.Contains(t, out, "Domain: a.com | Status: Critical | Days Left: 5 | Expiry Date: 2026-01-06")
	assert.Contains(t, out, "Domain: b.com | Status: Offline | Error: i/o timeout")
	assert.Contains(t, out, "Total Scanned: 2")
	assert.Contains(t, out, "At Risk Domains: 2")
}

func TestPrintResult_RegistryDetails(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	printResult(&buf, scanLine{
		host:   "example.com",
		record: expiry.Record{Domain: "example.com", DaysLeft: 200, ExpireDate: "2026-10-27"},
		registration: &domain.Registration{
			RootDomain:  "example.com",
			Registrar:   "Example Registrar, Inc.",
			NameServers: []string{"a.iana-servers.net", "b.iana-servers.net"},
		},
	}, "OK")

	assert.Equal(t,
		"Domain: example.com | Status: OK | Days Left: 200 | Expiry Date: 2026-10-27 | Registrar: Example Registrar, Inc. | Name Servers: a.iana-servers.net, b.iana-servers.net\n",
		buf.String())
}

const registryResponse = `   Domain Name: EXAMPLE.COM
   Registry Domain ID: 2336799_DOMAIN_COM-VRSN
   Registrar WHOIS Server: whois.example-registrar.com
   Updated Date: 2025-08-14T07:01:34Z
   Creation Date: 1995-08-14T04:00:00Z
   Registry Expiry Date: 2026-10-27T00:00:00Z
   Registrar: Example Registrar, Inc.
   Registrar IANA ID: 376
   Domain Status: clientDeleteProhibited https://icann.org/epp#clientDeleteProhibited
   Name Server: NS1.EXAMPLE.COM
   Name Server: NS2.EXAMPLE.COM
   DNSSEC: unsigned
`

func TestScanAll_KeepsRegistration(t *testing.T) {
	expires := time.Date(2026, 10, 27, 0, 0, 0, 0, time.UTC)
	details := &registryDetails{
		lookup: &domain.RegistryLookup{Query: func(string) (string, error) {
			return registryResponse, nil
		}},
		seen: map[string]*domain.Registration{},
	}
	filter := &expiry.Filter{
		Lookup:          details,
		MinimumLeftDays: 30,
		Now:             func() time.Time { return expires.Add(-200 * 24 * time.Hour) },
	}

	lines := scanAll(context.Background(), filter, []string{"www.example.com"}, details)

	require.Len(t, lines, 1)
	require.NoError(t, lines[0].err)
	assert.Equal(t, 200, lines[0].record.DaysLeft)
	require.NotNil(t, lines[0].registration)
	assert.Equal(t, "example.com", lines[0].registration.RootDomain)
	assert.True(t, expires.Equal(lines[0].registration.ExpiryDate))
	assert.Equal(t, "Example Registrar, Inc.", lines[0].registration.Registrar)
	assert.Len(t, lines[0].registration.NameServers, 2)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("EXPIRYWATCH_JWT_SECRET", "s3cret")
	t.Setenv("GITHUB_REPOSITORY", "acme/web")

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--subject", "cron", "--repository", "acme/web"})

	require.NoError(t, root.Execute())

	claims, err := auth.ValidateToken("s3cret", strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "cron", claims.Subject)
	assert.Equal(t, "acme/web", claims.Repository)
}

func TestRunCommand_ConfigErrorFails(t *testing.T) {
	t.Setenv("INPUT_MINIMUM_LEFT_DAYS", "soon")

	root := newRootCommand()
	root.SetArgs([]string{"run"})

	assert.ErrorContains(t, root.Execute(), "minimum_left_days")
}

func TestRunCommand_MissingURLs(t *testing.T) {
	t.Setenv("INPUT_URLS", "")
	t.Setenv("INPUT_URL", "")
	t.Setenv("URLS", "")
	t.Setenv("INPUT_MINIMUM_LEFT_DAYS", "30")
	t.Setenv("MINIMUM_LEFT_DAYS", "")
	t.Setenv("INPUT_CHECK_ACTION", "ssl")

	root := newRootCommand()
	root.SetArgs([]string{"run"})

	assert.ErrorContains(t, root.Execute(), "no urls configured")
}
