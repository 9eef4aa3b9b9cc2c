package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harveywai/expirywatch/pkg/config"
	"github.com/harveywai/expirywatch/pkg/expiry"
	"github.com/harveywai/expirywatch/pkg/providers/domain"
	"github.com/harveywai/expirywatch/pkg/runner"
)

// criticalThreshold marks domains that need action within a week.
const criticalThreshold = 7

type scanLine struct {
	host   string
	record expiry.Record
	// registration is set for registry checks.
	registration *domain.Registration
	err          error
}

// registryDetails keeps the full WHOIS result of each lookup so the scan can
// show registrar and name servers alongside the expiry.
type registryDetails struct {
	lookup *domain.RegistryLookup
	seen   map[string]*domain.Registration
}

func (r *registryDetails) ExpiryDate(ctx context.Context, host string) (time.Time, error) {
	reg, err := r.lookup.Inspect(ctx, host)
	if err != nil {
		return time.Time{}, err
	}
	r.seen[host] = reg
	return reg.ExpiryDate, nil
}

func scanEntry(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [domain...]",
		Short: "Print the expiry status of every domain without touching issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.URLs = config.ParseURLs(strings.Join(args, "\n"))
			}
			if len(cfg.URLs) == 0 {
				return config.ErrNoURLs
			}

			lookup := runner.LookupFor(cfg.CheckType, cfg.Timeout)
			var details *registryDetails
			if reg, ok := lookup.(*domain.RegistryLookup); ok {
				details = &registryDetails{lookup: reg, seen: map[string]*domain.Registration{}}
				lookup = details
			}

			filter := &expiry.Filter{
				Lookup:          lookup,
				MinimumLeftDays: cfg.MinimumLeftDays,
				Log:             log,
			}
			lines := scanAll(cmd.Context(), filter, cfg.URLs, details)

			out := cmd.OutOrStdout()
			atRisk := 0
			for _, l := range lines {
				status := getStatus(l, cfg.MinimumLeftDays)
				if status != "OK" {
					atRisk++
				}
				printResult(out, l, status)
			}
			printSummary(out, len(lines), atRisk)
			return nil
		},
	}
}

func scanAll(ctx context.Context, filter *expiry.Filter, hosts []string, details *registryDetails) []scanLine {
	lines := make([]scanLine, 0, len(hosts))
	for _, h := range hosts {
		rec, err := filter.Check(ctx, h)
		line := scanLine{host: h, record: rec, err: err}
		if details != nil && err == nil {
			line.registration = details.seen[h]
		}
		lines = append(lines, line)
	}
	return lines
}

// getStatus classifies a scanned domain against the run threshold.
func getStatus(l scanLine, warningThreshold int) string {
	if l.err != nil {
		return "Offline"
	}
	if l.record.ExpireDate == expiry.InvalidExpireDate || l.record.DaysLeft < 0 {
		return "Expired"
	}
	if l.record.DaysLeft < criticalThreshold {
		return "Critical"
	}
	if l.record.DaysLeft < warningThreshold {
		return "Warning"
	}
	return "OK"
}

func printResult(w io.Writer, l scanLine, status string) {
	if l.err != nil {
		fmt.Fprintf(w, "Domain: %s | Status: %s | Error: %v\n", l.host, color.RedString("Offline"), l.err)
		return
	}

	var statusColor string
	switch status {
	case "Expired", "Critical":
		statusColor = color.RedString(status)
	case "Warning":
		statusColor = color.YellowString(status)
	default:
		statusColor = color.GreenString(status)
	}

	fmt.Fprintf(w, "Domain: %s | Status: %s | Days Left: %d | Expiry Date: %s",
		l.record.Domain,
		statusColor,
		l.record.DaysLeft,
		l.record.ExpireDate,
	)
	if reg := l.registration; reg != nil {
		registrar := reg.Registrar
		if registrar == "" {
			registrar = "unknown"
		}
		fmt.Fprintf(w, " | Registrar: %s | Name Servers: %s", registrar, strings.Join(reg.NameServers, ", "))
	}
	fmt.Fprintln(w)
}

func printSummary(w io.Writer, totalScanned, atRisk int) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(w, color.CyanString("Scan Summary:"))
	fmt.Fprintf(w, "Total Scanned: %d\n", totalScanned)
	if atRisk > 0 {
		fmt.Fprintln(w, color.YellowString("At Risk Domains: %d", atRisk))
	} else {
		fmt.Fprintln(w, color.GreenString("At Risk Domains: %d", atRisk))
	}
	fmt.Fprintln(w, strings.Repeat("=", 60))
}
