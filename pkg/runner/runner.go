// Package runner wires the filter, renderer and reconciler into a single run.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/harveywai/expirywatch/pkg/actions"
	"github.com/harveywai/expirywatch/pkg/config"
	"github.com/harveywai/expirywatch/pkg/database"
	"github.com/harveywai/expirywatch/pkg/expiry"
	"github.com/harveywai/expirywatch/pkg/issue"
	"github.com/harveywai/expirywatch/pkg/notify"
	"github.com/harveywai/expirywatch/pkg/providers/domain"
	"github.com/harveywai/expirywatch/pkg/providers/github"
)

// Summary is what a completed run produced.
type Summary struct {
	CheckType       expiry.CheckType `json:"check_type"`
	MinimumLeftDays int              `json:"minimum_left_days"`
	DomainsChecked  int              `json:"domains_checked"`
	Records         []expiry.Record  `json:"records"`
	Action          issue.Action     `json:"action"`
	Search          string           `json:"search"`
	IssueNumber     int              `json:"issue_number,omitempty"`
	IssueURL        string           `json:"issue_url,omitempty"`
	Commented       bool             `json:"commented"`
}

// Runner performs one check-and-reconcile pass.
type Runner struct {
	Config  *config.Config
	Lookup  expiry.Lookup
	Tracker issue.Tracker
	// History and Webhook are optional.
	History *database.Store
	Webhook *notify.Webhook
	Outputs *actions.Outputs
	Now     func() time.Time
	Log     *actions.Logger
}

// LookupFor returns the collaborator for a check type.
func LookupFor(checkType expiry.CheckType, timeout time.Duration) expiry.Lookup {
	if checkType == expiry.CheckRegistry {
		return &domain.RegistryLookup{}
	}
	return &domain.CertificateLookup{Timeout: timeout}
}

// New builds a Runner with the GitHub tracker and the optional history store
// and webhook described by cfg. Close releases the history store.
func New(ctx context.Context, cfg *config.Config, log *actions.Logger) (*Runner, error) {
	if err := cfg.ValidateForRun(); err != nil {
		return nil, err
	}

	tracker, err := github.NewTracker(ctx, github.Config{
		Token:   cfg.Token,
		Owner:   cfg.Owner,
		Repo:    cfg.Repo,
		BaseURL: cfg.APIURL,
	})
	if err != nil {
		return nil, err
	}

	r := &Runner{
		Config:  cfg,
		Lookup:  LookupFor(cfg.CheckType, cfg.Timeout),
		Tracker: tracker,
		Outputs: &actions.Outputs{},
		Log:     log,
	}

	if cfg.HistoryDB != "" {
		store, err := database.Open(cfg.HistoryDB)
		if err != nil {
			return nil, err
		}
		r.History = store
	}
	if cfg.WebhookURL != "" {
		r.Webhook = &notify.Webhook{
			URL:          cfg.WebhookURL,
			SecretKey:    cfg.WebhookSecret,
			BodyTemplate: cfg.WebhookTemplate,
		}
	}

	return r, nil
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	return r.History.Close()
}

// Run checks the configured domains and reconciles the tracking issue. Only
// issue writes and configuration problems fail the run.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	cfg := r.Config
	if r.Outputs == nil {
		r.Outputs = &actions.Outputs{}
	}

	r.Log.Infof("url: %v", cfg.URLs)
	r.Log.Infof("check action: %s", cfg.CheckType)
	r.Outputs.Set("action", cfg.CheckType)
	r.Outputs.Set("run-action", cfg.CheckType)

	filter := &expiry.Filter{
		Lookup:          r.Lookup,
		MinimumLeftDays: cfg.MinimumLeftDays,
		Workers:         cfg.Workers,
		Now:             r.Now,
		Log:             r.Log,
	}

	var records []expiry.Record
	if len(cfg.URLs) == 1 {
		records = r.checkSingle(ctx, filter, cfg.URLs[0])
	} else {
		records = filter.Run(ctx, cfg.URLs)
	}
	r.Log.Infof("%d of %d domain(s) below %d days", len(records), len(cfg.URLs), cfg.MinimumLeftDays)

	reconciler := &issue.Reconciler{
		Tracker: r.Tracker,
		Owner:   cfg.Owner,
		Repo:    cfg.Repo,
		Now:     r.Now,
		Log:     r.Log,
	}
	res, err := reconciler.Reconcile(ctx, issue.Request{
		Records:   records,
		CheckType: cfg.CheckType,
		Assignees: cfg.Assignees,
	})
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		CheckType:       cfg.CheckType,
		MinimumLeftDays: cfg.MinimumLeftDays,
		DomainsChecked:  len(cfg.URLs),
		Records:         records,
		Action:          res.Action,
		Search:          res.Search.String(),
		Commented:       res.Commented,
	}

	r.Outputs.Set("issue-body", res.Body)
	if res.Issue != nil {
		summary.IssueNumber = res.Issue.Number
		summary.IssueURL = res.Issue.HTMLURL
		r.Outputs.Set("issue_url", res.Issue.HTMLURL)
		r.Outputs.Set("issue_number", res.Issue.Number)
	}

	r.record(ctx, summary)
	r.notify(ctx, summary)

	return summary, nil
}

// checkSingle is the single-domain path, which also sets the per-check-type
// expiry outputs whether or not the domain is below the threshold.
func (r *Runner) checkSingle(ctx context.Context, filter *expiry.Filter, host string) []expiry.Record {
	rec, err := filter.Check(ctx, host)
	if err != nil {
		r.Log.Warningf("lookup failed for %s: %v", host, err)
		return nil
	}

	dateKey, daysKey := "ssl-expire-date", "ssl-expire-days-left"
	if r.Config.CheckType == expiry.CheckRegistry {
		dateKey, daysKey = "paid-till-date", "paid-till-days-left"
	}
	r.Outputs.Set(dateKey, rec.ExpireDate)
	r.Outputs.Set(daysKey, rec.DaysLeft)

	if !filter.Below(rec) {
		return nil
	}
	return []expiry.Record{rec}
}

func (r *Runner) record(ctx context.Context, s *Summary) {
	if r.History == nil {
		return
	}

	run := &database.CheckRun{
		Repository:      r.Config.Repository(),
		CheckType:       string(s.CheckType),
		MinimumLeftDays: s.MinimumLeftDays,
		DomainsChecked:  s.DomainsChecked,
		Action:          string(s.Action),
		SearchOutcome:   s.Search,
		IssueNumber:     s.IssueNumber,
		IssueURL:        s.IssueURL,
		Commented:       s.Commented,
	}
	for _, rec := range s.Records {
		run.Records = append(run.Records, database.ExpiryRow{
			DomainName: rec.Domain,
			DaysLeft:   rec.DaysLeft,
			ExpireDate: rec.ExpireDate,
		})
	}

	if err := r.History.RecordRun(ctx, run); err != nil {
		r.Log.Warningf("failed to record run history: %v", err)
	}
}

func (r *Runner) notify(ctx context.Context, s *Summary) {
	if r.Webhook == nil || s.Action == issue.ActionSkipped {
		return
	}

	err := r.Webhook.Send(ctx, notify.RunEvent{
		Repository:      r.Config.Repository(),
		CheckType:       s.CheckType,
		MinimumLeftDays: s.MinimumLeftDays,
		Action:          string(s.Action),
		IssueNumber:     s.IssueNumber,
		IssueURL:        s.IssueURL,
		Records:         s.Records,
	})
	if err != nil {
		r.Log.Warningf("failed to send webhook notification: %v", err)
	}
}

// String renders a one-line description of the summary.
func (s *Summary) String() string {
	if s.IssueURL == "" {
		return fmt.Sprintf("%s: %d/%d domain(s) need attention, issue %s", s.CheckType, len(s.Records), s.DomainsChecked, s.Action)
	}
	return fmt.Sprintf("%s: %d/%d domain(s) need attention, issue %s: %s", s.CheckType, len(s.Records), s.DomainsChecked, s.Action, s.IssueURL)
}
