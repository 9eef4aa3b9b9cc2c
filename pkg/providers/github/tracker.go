// Package github implements issue.Tracker on the GitHub REST API.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"

	"github.com/harveywai/expirywatch/pkg/issue"
)

// Config identifies the repository and credentials the tracker works against.
type Config struct {
	Token string
	Owner string
	Repo  string
	// BaseURL overrides the API root, e.g. GITHUB_API_URL on GitHub Enterprise.
	BaseURL string
}

// Tracker talks to the issues and search APIs of one repository.
type Tracker struct {
	client *github.Client
	owner  string
	repo   string
}

// NewTracker builds a token-authenticated client for cfg.
func NewTracker(ctx context.Context, cfg Config) (*Tracker, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("github token is required")
	}
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github repository is required")
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: cfg.Token},
	)
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)

	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github api url %q: %w", cfg.BaseURL, err)
		}
		client.BaseURL = base
	}

	return &Tracker{client: client, owner: cfg.Owner, repo: cfg.Repo}, nil
}

// SearchIssues returns the most recently updated issue matching query.
func (t *Tracker) SearchIssues(ctx context.Context, query string) ([]issue.Issue, error) {
	result, _, err := t.client.Search.Issues(ctx, query, &github.SearchOptions{
		Sort:        "updated",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return nil, err
	}
	if result.GetTotal() == 0 || len(result.Issues) == 0 {
		return nil, nil
	}
	return []issue.Issue{convertIssue(result.Issues[0])}, nil
}

func (t *Tracker) CreateIssue(ctx context.Context, in issue.NewIssue) (*issue.Issue, error) {
	req := &github.IssueRequest{
		Title:     github.String(in.Title),
		Body:      github.String(in.Body),
		Labels:    nonNil(in.Labels),
		Assignees: nonNil(in.Assignees),
	}

	created, _, err := t.client.Issues.Create(ctx, t.owner, t.repo, req)
	if err != nil {
		return nil, err
	}
	out := convertIssue(created)
	return &out, nil
}

func (t *Tracker) UpdateIssue(ctx context.Context, number int, body string, assignees []string) (*issue.Issue, error) {
	req := &github.IssueRequest{
		Body:      github.String(body),
		Assignees: nonNil(assignees),
	}

	updated, _, err := t.client.Issues.Edit(ctx, t.owner, t.repo, number, req)
	if err != nil {
		return nil, err
	}
	out := convertIssue(updated)
	return &out, nil
}

func (t *Tracker) CreateComment(ctx context.Context, number int, body string) error {
	_, _, err := t.client.Issues.CreateComment(ctx, t.owner, t.repo, number, &github.IssueComment{
		Body: github.String(body),
	})
	return err
}

func convertIssue(in *github.Issue) issue.Issue {
	return issue.Issue{
		Number:  in.GetNumber(),
		Title:   in.GetTitle(),
		Body:    in.GetBody(),
		HTMLURL: in.GetHTMLURL(),
	}
}

// nonNil makes an empty assignee list serialize as [] so updates clear assignees.
func nonNil(s []string) *[]string {
	if s == nil {
		s = []string{}
	}
	return &s
}
