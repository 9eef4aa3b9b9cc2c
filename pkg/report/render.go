// Package report renders expiry records as Markdown issue bodies and compares
// the tables of two rendered bodies.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/harveywai/expirywatch/pkg/expiry"
)

const (
	tableHeader    = "| Domain | Days Left | Expiry Date |\n"
	tableSeparator = "|--------|-----------|-------------|\n"
)

// Title is the issue title used to find and create the tracking issue.
func Title(checkType expiry.CheckType) string {
	return fmt.Sprintf("🚨 Domain %s Alert: Expiring Domains Detected", checkType)
}

// Labels returns the labels applied to a newly created issue.
func Labels(checkType expiry.CheckType) []string {
	return []string{fmt.Sprintf("domain-%s-check", checkType), "automated", "maintenance"}
}

// Render builds the issue body. Only the "Last Updated" line depends on now.
func Render(records []expiry.Record, checkType expiry.CheckType, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Domain %s Check Results\n\n", checkType)
	fmt.Fprintf(&b, "Last Updated: %s\n\n", now.UTC().Format("2006-01-02"))
	b.WriteString("The following domains require attention:\n\n")
	writeTable(&b, records)
	b.WriteString("\n### Action Required\n")
	b.WriteString("Please review these domains and take necessary action to prevent service interruption.\n\n")
	b.WriteString("---\n*This issue is automatically updated by GitHub Actions*")

	return b.String()
}

// RenderUpdateComment builds the shorter comment appended when the table changed.
func RenderUpdateComment(records []expiry.Record, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### Domain Check Update (%s)\n\n", now.UTC().Format("2006-01-02"))
	noun := "domains"
	if len(records) == 1 {
		noun = "domain"
	}
	fmt.Fprintf(&b, "Updated status for %d %s:\n\n", len(records), noun)
	writeTable(&b, records)

	return b.String()
}

func writeTable(b *strings.Builder, records []expiry.Record) {
	b.WriteString(tableHeader)
	b.WriteString(tableSeparator)
	for _, r := range records {
		fmt.Fprintf(b, "| %s | %d | %s |\n", r.Domain, r.DaysLeft, r.ExpireDate)
	}
}
