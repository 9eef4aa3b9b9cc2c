package issue

import (
	"context"
	"fmt"
	"time"

	"github.com/harveywai/expirywatch/pkg/actions"
	"github.com/harveywai/expirywatch/pkg/expiry"
	"github.com/harveywai/expirywatch/pkg/report"
)

// SearchOutcome is what the search for an existing issue produced.
type SearchOutcome int

const (
	SearchNotFound SearchOutcome = iota
	SearchFound
	// SearchUnavailable means the search call failed. The run continues as if
	// nothing was found, which may create a duplicate issue.
	SearchUnavailable
)

func (s SearchOutcome) String() string {
	switch s {
	case SearchFound:
		return "found"
	case SearchUnavailable:
		return "unavailable"
	default:
		return "not-found"
	}
}

// Action is the write the reconciler performed.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	// ActionSkipped means nothing needed attention and no issue was open.
	ActionSkipped Action = "skipped"
)

// Request is the input for one reconciliation.
type Request struct {
	Records   []expiry.Record
	CheckType expiry.CheckType
	Assignees []string
}

// Result describes what Reconcile did.
type Result struct {
	Action    Action
	Search    SearchOutcome
	Issue     *Issue
	Body      string
	Commented bool
}

// Reconciler owns the create-or-update decision for one repository.
type Reconciler struct {
	Tracker Tracker
	Owner   string
	Repo    string
	Now     func() time.Time
	Log     *actions.Logger
}

// Reconcile renders the report and writes it to the tracking issue. Search
// failures are tolerated; any failed write is returned.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (*Result, error) {
	now := r.now()
	title := report.Title(req.CheckType)
	body := report.Render(req.Records, req.CheckType, now)

	existing, outcome := r.findExisting(ctx, title)
	res := &Result{Search: outcome, Body: body}

	if existing != nil {
		if _, err := r.Tracker.UpdateIssue(ctx, existing.Number, body, req.Assignees); err != nil {
			r.Log.Errorf("failed to update issue #%d: %v", existing.Number, err)
			return nil, fmt.Errorf("failed to update issue #%d: %w", existing.Number, err)
		}
		r.Log.Infof("Updated existing issue #%d: %s", existing.Number, existing.HTMLURL)

		if report.HasSignificantChange(existing.Body, body) {
			comment := report.RenderUpdateComment(req.Records, now)
			if err := r.Tracker.CreateComment(ctx, existing.Number, comment); err != nil {
				r.Log.Errorf("failed to comment on issue #%d: %v", existing.Number, err)
				return nil, fmt.Errorf("failed to comment on issue #%d: %w", existing.Number, err)
			}
			r.Log.Debugf("added update comment to issue #%d", existing.Number)
			res.Commented = true
		}

		res.Action = ActionUpdated
		res.Issue = existing
		return res, nil
	}

	if len(req.Records) == 0 {
		r.Log.Infof("No domains below threshold and no open issue, nothing to do")
		res.Action = ActionSkipped
		return res, nil
	}

	created, err := r.Tracker.CreateIssue(ctx, NewIssue{
		Title:     title,
		Body:      body,
		Labels:    report.Labels(req.CheckType),
		Assignees: req.Assignees,
	})
	if err != nil {
		r.Log.Errorf("failed to create issue: %v", err)
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}
	r.Log.Infof("Created new issue: %s", created.HTMLURL)

	res.Action = ActionCreated
	res.Issue = created
	return res, nil
}

func (r *Reconciler) findExisting(ctx context.Context, title string) (*Issue, SearchOutcome) {
	query := SearchQuery(r.Owner, r.Repo, title)
	r.Log.Debugf("Searching for issues with query: %s", query)

	found, err := r.Tracker.SearchIssues(ctx, query)
	if err != nil {
		r.Log.Warningf("Failed to search for existing issues: %v", err)
		return nil, SearchUnavailable
	}
	if len(found) == 0 {
		r.Log.Debugf("No existing issue found")
		return nil, SearchNotFound
	}

	r.Log.Debugf("Found existing issue: #%d", found[0].Number)
	return &found[0], SearchFound
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
