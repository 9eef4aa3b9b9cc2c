package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harveywai/expirywatch/pkg/actions"
	"github.com/harveywai/expirywatch/pkg/config"
	"github.com/harveywai/expirywatch/pkg/database"
	"github.com/harveywai/expirywatch/pkg/expiry"
	"github.com/harveywai/expirywatch/pkg/issue"
	"github.com/harveywai/expirywatch/pkg/notify"
	"github.com/harveywai/expirywatch/pkg/providers/domain"
	"github.com/harveywai/expirywatch/pkg/report"
)

var now = time.Date(2026, 4, 10, 6, 0, 0, 0, time.UTC)

type memTracker struct {
	issues   []issue.Issue
	creates  []issue.NewIssue
	updates  int
	comments []string
	next     int
}

func (m *memTracker) SearchIssues(_ context.Context, _ string) ([]issue.Issue, error) {
	if len(m.issues) == 0 {
		return nil, nil
	}
	return []issue.Issue{m.issues[len(m.issues)-1]}, nil
}

func (m *memTracker) CreateIssue(_ context.Context, in issue.NewIssue) (*issue.Issue, error) {
	m.creates = append(m.creates, in)
	m.next++
	created := issue.Issue{Number: m.next, Title: in.Title, Body: in.Body, HTMLURL: fmt.Sprintf("https://github.com/acme/web/issues/%d", m.next)}
	m.issues = append(m.issues, created)
	return &created, nil
}

func (m *memTracker) UpdateIssue(_ context.Context, number int, body string, _ []string) (*issue.Issue, error) {
	m.updates++
	for i := range m.issues {
		if m.issues[i].Number == number {
			m.issues[i].Body = body
			return &m.issues[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (m *memTracker) CreateComment(_ context.Context, _ int, body string) error {
	m.comments = append(m.comments, body)
	return nil
}

func fixedLookup(offsets map[string]int, errs map[string]error) expiry.LookupFunc {
	return func(_ context.Context, d string) (time.Time, error) {
		if err, ok := errs[d]; ok {
			return time.Time{}, err
		}
		return now.AddDate(0, 0, offsets[d]), nil
	}
}

func newRunner(cfg *config.Config, lookup expiry.Lookup, tr issue.Tracker) *Runner {
	cfg.Owner, cfg.Repo = "acme", "web"
	return &Runner{
		Config:  cfg,
		Lookup:  lookup,
		Tracker: tr,
		Outputs: &actions.Outputs{},
		Now:     func() time.Time { return now },
	}
}

func output(t *testing.T, r *Runner, name string) string {
	t.Helper()
	v, ok := r.Outputs.Get(name)
	require.True(t, ok, "output %s not set", name)
	return v
}

func TestRun_CreatesIssueForDomainsBelowThreshold(t *testing.T) {
	tr := &memTracker{}
	r := newRunner(&config.Config{
		URLs:            []string{"a.com", "b.com"},
		CheckType:       expiry.CheckSSL,
		MinimumLeftDays: 30,
	}, fixedLookup(map[string]int{"a.com": 10, "b.com": 90}, nil), tr)

	summary, err := r.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, summary.Records, 1)
	assert.Equal(t, "a.com", summary.Records[0].Domain)
	assert.Equal(t, 10, summary.Records[0].DaysLeft)

	require.Len(t, tr.creates, 1)
	assert.Equal(t, []string{"| a.com | 10 | 2026-04-20 |"}, report.ExtractTableRows(tr.creates[0].Body))

	assert.Equal(t, issue.ActionCreated, summary.Action)
	assert.Equal(t, "ssl", output(t, r, "action"))
	assert.Equal(t, "ssl", output(t, r, "run-action"))
	assert.Equal(t, "1", output(t, r, "issue_number"))
	assert.Equal(t, "https://github.com/acme/web/issues/1", output(t, r, "issue_url"))
	assert.Equal(t, tr.creates[0].Body, output(t, r, "issue-body"))
	_, legacy := r.Outputs.Get("ssl-expire-date")
	assert.False(t, legacy, "legacy outputs are single-domain only")
}

func TestRun_ExpiredCertificateReported(t *testing.T) {
	tr := &memTracker{}
	r := newRunner(&config.Config{
		URLs:            []string{"c.com"},
		CheckType:       expiry.CheckSSL,
		MinimumLeftDays: 0,
	}, fixedLookup(nil, map[string]error{"c.com": expiry.ErrCertificateExpired}), tr)

	summary, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []expiry.Record{{Domain: "c.com", DaysLeft: -1, ExpireDate: "INVALID"}}, summary.Records)
	assert.Equal(t, "INVALID", output(t, r, "ssl-expire-date"))
	assert.Equal(t, "-1", output(t, r, "ssl-expire-days-left"))
}

func TestRun_SingleRegistryDomainAboveThreshold(t *testing.T) {
	tr := &memTracker{}
	r := newRunner(&config.Config{
		URLs:            []string{"example.com"},
		CheckType:       expiry.CheckRegistry,
		MinimumLeftDays: 30,
	}, fixedLookup(map[string]int{"example.com": 200}, nil), tr)

	summary, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, summary.Records)
	assert.Equal(t, issue.ActionSkipped, summary.Action)
	assert.Empty(t, tr.creates)
	assert.Equal(t, "2026-10-27", output(t, r, "paid-till-date"))
	assert.Equal(t, "200", output(t, r, "paid-till-days-left"))
	_, hasURL := r.Outputs.Get("issue_url")
	assert.False(t, hasURL)
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	tr := &memTracker{}
	cfg := &config.Config{URLs: []string{"a.com", "b.com"}, CheckType: expiry.CheckSSL, MinimumLeftDays: 30}
	lookup := fixedLookup(map[string]int{"a.com": 10, "b.com": 20}, nil)

	_, err := newRunner(cfg, lookup, tr).Run(context.Background())
	require.NoError(t, err)

	second := newRunner(cfg, lookup, tr)
	summary, err := second.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, issue.ActionUpdated, summary.Action)
	assert.Len(t, tr.creates, 1)
	assert.Equal(t, 1, tr.updates)
	assert.Empty(t, tr.comments)
	assert.False(t, summary.Commented)
}

func TestRun_ChangedRecordsAddComment(t *testing.T) {
	tr := &memTracker{}
	cfg := &config.Config{URLs: []string{"a.com", "b.com"}, CheckType: expiry.CheckSSL, MinimumLeftDays: 30}

	_, err := newRunner(cfg, fixedLookup(map[string]int{"a.com": 10, "b.com": 90}, nil), tr).Run(context.Background())
	require.NoError(t, err)

	summary, err := newRunner(cfg, fixedLookup(map[string]int{"a.com": 10, "b.com": 25}, nil), tr).Run(context.Background())

	require.NoError(t, err)
	assert.True(t, summary.Commented)
	require.Len(t, tr.comments, 1)
	assert.True(t, strings.Contains(tr.comments[0], "Updated status for 2 domains"))
}

func TestRun_RecordsHistoryAndNotifies(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := database.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	r := newRunner(&config.Config{
		URLs:            []string{"a.com", "b.com"},
		CheckType:       expiry.CheckSSL,
		MinimumLeftDays: 30,
	}, fixedLookup(map[string]int{"a.com": 1, "b.com": 2}, nil), &memTracker{})
	r.History = store
	r.Webhook = &notify.Webhook{URL: srv.URL}

	_, err = r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	runs, err := store.RecentRuns(context.Background(), "acme/web", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "created", runs[0].Action)
	assert.Equal(t, "not-found", runs[0].SearchOutcome)
	require.Len(t, runs[0].Records, 2)
	assert.Equal(t, "a.com", runs[0].Records[0].DomainName)
}

type failingTracker struct{ memTracker }

func (f *failingTracker) CreateIssue(context.Context, issue.NewIssue) (*issue.Issue, error) {
	return nil, errors.New("403 resource not accessible by integration")
}

func TestRun_CreateFailureFailsRun(t *testing.T) {
	r := newRunner(&config.Config{
		URLs:            []string{"a.com", "b.com"},
		CheckType:       expiry.CheckSSL,
		MinimumLeftDays: 30,
	}, fixedLookup(map[string]int{"a.com": 1, "b.com": 2}, nil), &failingTracker{})

	summary, err := r.Run(context.Background())

	assert.Nil(t, summary)
	assert.ErrorContains(t, err, "resource not accessible")
}

func TestNew_ValidatesConfig(t *testing.T) {
	_, err := New(context.Background(), &config.Config{}, nil)

	assert.ErrorIs(t, err, config.ErrNoURLs)
}

func TestNew_WebhookFromConfig(t *testing.T) {
	r, err := New(context.Background(), &config.Config{
		URLs:            []string{"a.com"},
		CheckType:       expiry.CheckSSL,
		Token:           "ghs_123",
		Owner:           "acme",
		Repo:            "web",
		WebhookURL:      "https://hooks.example.com/expiry",
		WebhookSecret:   "s3cret",
		WebhookTemplate: "{{count}} expiring",
	}, nil)
	require.NoError(t, err)
	defer r.Close()

	require.NotNil(t, r.Webhook)
	assert.Equal(t, "https://hooks.example.com/expiry", r.Webhook.URL)
	assert.Equal(t, "s3cret", r.Webhook.SecretKey)
	assert.Equal(t, "{{count}} expiring", r.Webhook.BodyTemplate)
	assert.Nil(t, r.History)
}

func TestLookupFor(t *testing.T) {
	assert.Equal(t, &domain.CertificateLookup{Timeout: time.Second}, LookupFor(expiry.CheckSSL, time.Second))
	assert.IsType(t, &domain.RegistryLookup{}, LookupFor(expiry.CheckRegistry, time.Second))
}
