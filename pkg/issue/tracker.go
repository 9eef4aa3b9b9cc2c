// Package issue reconciles a rendered expiry report against the open tracking
// issue: update it when one exists, otherwise create it.
package issue

import (
	"context"
	"fmt"
	"regexp"
)

// Issue is the subset of a remote issue the reconciler reads.
type Issue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
}

// NewIssue describes an issue to create.
type NewIssue struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string
}

// Tracker is the issue-tracker API the reconciler depends on.
type Tracker interface {
	// SearchIssues runs an issue search and returns at most one result, the most
	// recently updated.
	SearchIssues(ctx context.Context, query string) ([]Issue, error)
	CreateIssue(ctx context.Context, in NewIssue) (*Issue, error)
	// UpdateIssue replaces body and assignees wholesale.
	UpdateIssue(ctx context.Context, number int, body string, assignees []string) (*Issue, error)
	CreateComment(ctx context.Context, number int, body string) error
}

var searchSpecial = regexp.MustCompile(`[.*+?^${}()|\[\]\\]`)

// EscapeTitle backslash-escapes regex and Markdown-special characters.
func EscapeTitle(title string) string {
	return searchSpecial.ReplaceAllStringFunc(title, func(m string) string { return `\` + m })
}

// SearchQuery builds the search used to find the open tracking issue.
func SearchQuery(owner, repo, title string) string {
	return fmt.Sprintf(`repo:%s/%s is:issue is:open in:title "%s"`, owner, repo, EscapeTitle(title))
}
