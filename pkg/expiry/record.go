package expiry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// ExpiredDaysLeft is reported for a certificate that has already expired.
	ExpiredDaysLeft = -1
	// InvalidExpireDate replaces the expiry date of an expired certificate.
	InvalidExpireDate = "INVALID"

	dateLayout = "2006-01-02"
)

var (
	// ErrCertificateExpired is returned by a Lookup when the certificate is past its NotAfter.
	ErrCertificateExpired = errors.New("certificate has expired")
	// ErrInvalidCheckType is returned for a check action other than ssl or registry.
	ErrInvalidCheckType = errors.New("invalid check action")
)

// CheckType selects between certificate and registry expiry checks.
type CheckType string

const (
	CheckSSL      CheckType = "ssl"
	CheckRegistry CheckType = "registry"
)

// ParseCheckType validates a check action string.
func ParseCheckType(s string) (CheckType, error) {
	switch ct := CheckType(strings.ToLower(strings.TrimSpace(s))); ct {
	case CheckSSL, CheckRegistry:
		return ct, nil
	default:
		return "", fmt.Errorf("%w: %q (want ssl or registry)", ErrInvalidCheckType, s)
	}
}

// Record is one report row.
type Record struct {
	Domain     string `json:"domain"`
	DaysLeft   int    `json:"days_left"`
	ExpireDate string `json:"expire_date"`
}

// Lookup resolves the expiry date of a domain's certificate or registration.
type Lookup interface {
	ExpiryDate(ctx context.Context, domain string) (time.Time, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, domain string) (time.Time, error)

func (f LookupFunc) ExpiryDate(ctx context.Context, domain string) (time.Time, error) {
	return f(ctx, domain)
}

// DaysLeft counts whole days until expiry, rounding up, so 205.5 days becomes 206.
// Negative once the date has passed.
func DaysLeft(expiry, now time.Time) int {
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}

// FormatDate renders an expiry date the way reports show it.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
