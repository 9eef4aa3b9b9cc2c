package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/harveywai/expirywatch/pkg/expiry"
)

// DefaultTemplate is used when a Webhook has no BodyTemplate.
const DefaultTemplate = "Domain {{check_type}} check: {{count}} domain(s) below {{threshold}} days, issue {{action}}: {{issue_url}}"

var placeholder = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// FormatMessage replaces placeholders like {{key}} or {{ key }} with values from
// data. Unknown placeholders are left untouched.
func FormatMessage(template string, data map[string]string) string {
	if template == "" {
		return ""
	}

	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		keyMatch := placeholder.FindStringSubmatch(match)
		if len(keyMatch) < 2 {
			return match
		}
		if value, ok := data[strings.TrimSpace(keyMatch[1])]; ok {
			return value
		}
		return match
	})
}

// RunEvent is what a finished run reports.
type RunEvent struct {
	Repository      string
	CheckType       expiry.CheckType
	MinimumLeftDays int
	Action          string
	IssueNumber     int
	IssueURL        string
	Records         []expiry.Record
}

// NotificationPayload is the JSON body posted to the webhook.
type NotificationPayload struct {
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	Event       string          `json:"event"`
	Repository  string          `json:"repository"`
	IssueNumber int             `json:"issue_number,omitempty"`
	IssueURL    string          `json:"issue_url,omitempty"`
	Time        string          `json:"time"`
	Domains     []expiry.Record `json:"domains"`
}

// Webhook posts run summaries to a generic JSON endpoint.
type Webhook struct {
	URL          string
	SecretKey    string
	BodyTemplate string
	Client       *http.Client
	Now          func() time.Time
}

// Send posts the event. Non-2xx responses are errors.
func (w *Webhook) Send(ctx context.Context, ev RunEvent) error {
	if w.URL == "" {
		return fmt.Errorf("webhook url is required")
	}

	payload := w.payload(ev)
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.SecretKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.SecretKey)
	}

	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status code %d", resp.StatusCode)
	}
	return nil
}

func (w *Webhook) payload(ev RunEvent) NotificationPayload {
	data := map[string]string{
		"repository":   ev.Repository,
		"check_type":   string(ev.CheckType),
		"threshold":    fmt.Sprintf("%d", ev.MinimumLeftDays),
		"action":       ev.Action,
		"count":        fmt.Sprintf("%d", len(ev.Records)),
		"issue_number": fmt.Sprintf("%d", ev.IssueNumber),
		"issue_url":    ev.IssueURL,
	}

	tmpl := w.BodyTemplate
	if tmpl == "" {
		tmpl = DefaultTemplate
	}

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	domains := ev.Records
	if domains == nil {
		domains = []expiry.Record{}
	}

	return NotificationPayload{
		Title:       fmt.Sprintf("Domain %s Alert", ev.CheckType),
		Body:        FormatMessage(tmpl, data),
		Event:       "issue_" + ev.Action,
		Repository:  ev.Repository,
		IssueNumber: ev.IssueNumber,
		IssueURL:    ev.IssueURL,
		Time:        now().UTC().Format(time.RFC3339),
		Domains:     domains,
	}
}
